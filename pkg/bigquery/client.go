// Package bigquery streams analytics rows into the storefront events table.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/persiashop/storefront-backend/pkg/config"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery events table is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// EventRow is one analytics row. The event id doubles as the streaming
// InsertID, so redelivered messages are deduplicated by BigQuery (best effort).
type EventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	AggregateType string             `bigquery:"aggregate_type"`
	AggregateID   string             `bigquery:"aggregate_id"`
	UserID        bigquery.NullInt64 `bigquery:"user_id"`
	Quantity      bigquery.NullInt64 `bigquery:"quantity"`
	Amount        bigquery.NullInt64 `bigquery:"amount"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	IngestedAt    time.Time          `bigquery:"ingested_at"`
	Payload       string             `bigquery:"payload"`
}

type Client struct {
	bq    *bigquery.Client
	table *bigquery.Table
}

// NewClient connects to BigQuery. The dataset must exist; the events table is
// created from EventRow, day-partitioned on occurred_at, when it is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	dataset := strings.TrimSpace(cfg.Dataset)
	table := strings.TrimSpace(cfg.EventsTable)
	switch {
	case project == "":
		return nil, errProjectIDRequired
	case dataset == "":
		return nil, errDatasetRequired
	case table == "":
		return nil, errTableNameRequired
	}

	bq, err := bigquery.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{bq: bq, table: bq.Dataset(dataset).Table(table)}

	created, err := c.ensureTable(ctx)
	if err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"dataset": dataset, "table": table, "created": created})
		logg.Info(ctx, "bigquery events table ready")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(gcp.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func eventsTableMetadata() (*bigquery.TableMetadata, error) {
	schema, err := bigquery.InferSchema(EventRow{})
	if err != nil {
		return nil, fmt.Errorf("infer events schema: %w", err)
	}
	return &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "occurred_at",
		},
		Clustering: &bigquery.Clustering{Fields: []string{"event_type"}},
	}, nil
}

// ensureTable reports whether it had to create the table.
func (c *Client) ensureTable(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.table.Metadata(ctx); err == nil {
		return false, nil
	} else if !isNotFound(err) {
		return false, fmt.Errorf("checking table %s.%s: %w", c.table.DatasetID, c.table.TableID, err)
	}

	meta, err := eventsTableMetadata()
	if err != nil {
		return false, err
	}
	if err := c.table.Create(ctx, meta); err != nil && !isAlreadyExists(err) {
		return false, fmt.Errorf("creating table %s.%s: %w", c.table.DatasetID, c.table.TableID, err)
	}
	return true, nil
}

// Ping checks the events table is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.table == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	_, err := c.table.Metadata(ctx)
	return err
}

// InsertEvents streams rows. A partial failure reports the first row error
// and how many rows were rejected.
func (c *Client) InsertEvents(ctx context.Context, rows ...EventRow) error {
	if c == nil || c.table == nil {
		return errClientNotInitialized
	}
	if len(rows) == 0 {
		return nil
	}
	err := c.table.Inserter().Put(ctx, savers(rows))
	var multi bigquery.PutMultiError
	if errors.As(err, &multi) && len(multi) > 0 {
		return fmt.Errorf("%d of %d rows rejected: %w", len(multi), len(rows), multi[0].Errors)
	}
	return err
}

func savers(rows []EventRow) []*bigquery.StructSaver {
	out := make([]*bigquery.StructSaver, len(rows))
	for i, row := range rows {
		out[i] = &bigquery.StructSaver{Struct: row, InsertID: row.EventID}
	}
	return out
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func apiStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

func isNotFound(err error) bool { return apiStatus(err) == http.StatusNotFound }

func isAlreadyExists(err error) bool { return apiStatus(err) == http.StatusConflict }
