package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persiashop/storefront-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		project string
		kind    string
		input   string
		want    string
	}{
		{"short topic", "shop", "topics", "storefront-events", "projects/shop/topics/storefront-events"},
		{"full topic passes through", "other", "topics", "projects/shop/topics/x", "projects/shop/topics/x"},
		{"short subscription", "shop", "subscriptions", " analytics ", "projects/shop/subscriptions/analytics"},
		{"wrong kind is expanded", "shop", "subscriptions", "projects/shop/topics/x", "projects/shop/subscriptions/projects/shop/topics/x"},
		{"empty name", "shop", "topics", "  ", ""},
		{"missing project", "", "topics", "events", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resourceName(tc.project, tc.kind, tc.input))
		})
	}
}

func TestNewClientRequiresProjectAndTopic(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{EventsTopic: "events"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "shop"}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errTopicRequired)
}

func TestNilClientIsSafe(t *testing.T) {
	t.Parallel()

	var c *Client
	assert.Nil(t, c.EventsPublisher())
	assert.Nil(t, c.AnalyticsSubscription())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)

	empty := &Client{project: "shop"}
	assert.Nil(t, empty.Publisher("events"))
	assert.Nil(t, empty.Subscription("analytics"))
}
