package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/persiashop/storefront-backend/pkg/config"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub events topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client is the storefront's handle on Pub/Sub: the events topic the relay
// publishes to and the subscription the analytics worker drains.
type Client struct {
	ps      *pubsub.Client
	project string
	cfg     config.PubSubConfig
}

// NewClient dials Pub/Sub and refuses to return until the configured resources
// are known to exist; a typo in a topic name fails at boot, not at first publish.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	switch {
	case project == "":
		return nil, errProjectIDRequired
	case strings.TrimSpace(cfg.EventsTopic) == "":
		return nil, errTopicRequired
	}

	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{ps: ps, project: project, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":        c.name(kindTopic, cfg.EventsTopic),
			"subscription": c.name(kindSubscription, cfg.AnalyticsSubscription),
		}), "pubsub client initialized")
	}
	return c, nil
}

// Ping checks that the events topic exists and, when configured, the
// analytics subscription too.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errNotInitialized
	}
	if err := c.exists(ctx, kindTopic, c.cfg.EventsTopic); err != nil {
		return err
	}
	if strings.TrimSpace(c.cfg.AnalyticsSubscription) == "" {
		return nil
	}
	return c.exists(ctx, kindSubscription, c.cfg.AnalyticsSubscription)
}

func (c *Client) exists(ctx context.Context, kind, id string) error {
	full := c.name(kind, id)
	if full == "" {
		return fmt.Errorf("%s %q not configured", strings.TrimSuffix(kind, "s"), id)
	}

	var err error
	if kind == kindTopic {
		_, err = c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	} else {
		_, err = c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	}
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s does not exist", full)
	default:
		return fmt.Errorf("checking %s: %w", full, err)
	}
}

// Subscription returns a subscriber for a subscription ID or full resource name.
func (c *Client) Subscription(id string) *pubsub.Subscriber {
	if c == nil || c.ps == nil {
		return nil
	}
	full := c.name(kindSubscription, id)
	if full == "" {
		return nil
	}
	return c.ps.Subscriber(full)
}

func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher returns a publisher for a topic ID or full resource name. The relay
// sink asks for one per resolved event topic.
func (c *Client) Publisher(id string) *pubsub.Publisher {
	if c == nil || c.ps == nil {
		return nil
	}
	full := c.name(kindTopic, id)
	if full == "" {
		return nil
	}
	return c.ps.Publisher(full)
}

func (c *Client) EventsPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.cfg.EventsTopic)
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

func (c *Client) name(kind, id string) string {
	return resourceName(c.project, kind, id)
}

// resourceName expands a short ID into projects/<p>/<kind>/<id>. Names that
// are already fully qualified for kind are returned as is.
func resourceName(project, kind, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/") {
		return id
	}
	project = strings.TrimSpace(project)
	if project == "" {
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + id
}
