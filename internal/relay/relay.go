// Package relay moves committed outbox rows onto Pub/Sub.
//
// Each drain runs in one transaction: rows are fetched (locked with SKIP LOCKED
// on Postgres), sent one by one, and their bookkeeping is written before the
// transaction commits. A send failure only marks the row; rows that can never
// be delivered are copied to outbox_dlq and removed.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/persiashop/storefront-backend/pkg/config"
	"github.com/persiashop/storefront-backend/pkg/db/models"
	"github.com/persiashop/storefront-backend/pkg/enums"
	"github.com/persiashop/storefront-backend/pkg/logger"
	"github.com/persiashop/storefront-backend/pkg/metrics"
	"github.com/persiashop/storefront-backend/pkg/outbox"
	"github.com/persiashop/storefront-backend/pkg/outbox/registry"
)

type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Store is the outbox table as the relay sees it.
type Store interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
}

type DeadLetters interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type Resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// Options tune the drain loop. Zero values fall back to defaults.
type Options struct {
	BatchSize      int
	MaxAttempts    int
	PollInterval   time.Duration
	PublishTimeout time.Duration
	MaxBackoff     time.Duration
}

// OptionsFromConfig maps the outbox settings onto relay options.
func OptionsFromConfig(cfg config.OutboxConfig) Options {
	return Options{
		BatchSize:      cfg.BatchSize,
		MaxAttempts:    cfg.MaxAttempts,
		PollInterval:   time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		PublishTimeout: cfg.PublishTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 15 * time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Second
	}
	return o
}

type Deps struct {
	Tx          TxRunner
	Store       Store
	DeadLetters DeadLetters
	Resolver    Resolver
	Sink        Sink
	Metrics     *metrics.OutboxMetrics
	Logger      *logger.Logger
}

// BatchStats counts what one drain did with its rows.
type BatchStats struct {
	Published int
	Retried   int
	Parked    int
}

func (s BatchStats) Total() int {
	return s.Published + s.Retried + s.Parked
}

type Relay struct {
	deps Deps
	opts Options
	now  func() time.Time
}

func New(deps Deps, opts Options) (*Relay, error) {
	switch {
	case deps.Tx == nil:
		return nil, errors.New("transaction runner is required")
	case deps.Store == nil:
		return nil, errors.New("outbox store is required")
	case deps.DeadLetters == nil:
		return nil, errors.New("dead letter store is required")
	case deps.Resolver == nil:
		return nil, errors.New("event resolver is required")
	case deps.Sink == nil:
		return nil, errors.New("sink is required")
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Relay{deps: deps, opts: opts.withDefaults(), now: time.Now}, nil
}

// Run drains until ctx is canceled. Idle polls wait PollInterval; failed
// drains back off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	wait := newBackoff(r.opts.PollInterval, r.opts.MaxBackoff)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		stats, err := r.Drain(ctx)
		var pause time.Duration
		switch {
		case err != nil:
			r.deps.Logger.Error(ctx, "outbox drain failed", err)
			pause = wait.next()
		case stats.Total() > 0:
			wait.reset()
			continue
		default:
			wait.reset()
			pause = jitter(r.opts.PollInterval)
		}

		if err := sleepCtx(ctx, pause); err != nil {
			return err
		}
	}
}

// Drain handles one batch and reports what happened to each row. An error
// means bookkeeping failed and the whole batch was rolled back.
func (r *Relay) Drain(ctx context.Context) (BatchStats, error) {
	started := r.now()
	var stats BatchStats
	err := r.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		stats = BatchStats{}
		rows, err := r.deps.Store.FetchUnpublishedForPublish(tx, r.opts.BatchSize, r.opts.MaxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, row := range rows {
			outcome, err := r.deliver(ctx, tx, row)
			if err != nil {
				return err
			}
			switch outcome {
			case metrics.RelayPublished:
				stats.Published++
			case metrics.RelayRetried:
				stats.Retried++
			case metrics.RelayParked:
				stats.Parked++
			}
		}
		return nil
	})
	if err != nil {
		return BatchStats{}, err
	}
	if stats.Total() > 0 {
		r.deps.Metrics.ObserveBatch(r.now().Sub(started))
		r.deps.Logger.Info(r.deps.Logger.WithFields(ctx, map[string]any{
			"published": stats.Published,
			"retried":   stats.Retried,
			"parked":    stats.Parked,
		}), "outbox batch drained")
	}
	return stats, nil
}

func (r *Relay) deliver(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (string, error) {
	logCtx := r.deps.Logger.WithFields(ctx, map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID,
		"attempt_count":  row.AttemptCount,
	})

	resolved, err := r.deps.Resolver.Resolve(row)
	if err != nil {
		return r.park(logCtx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.opts.PublishTimeout)
	serverID, sendErr := r.deps.Sink.Send(sendCtx, resolved.Descriptor.Topic, buildMessage(row, resolved.Envelope))
	cancel()

	if sendErr == nil {
		if err := r.deps.Store.MarkPublishedTx(tx, row.ID); err != nil {
			return "", fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		r.deps.Metrics.IncEvent(metrics.RelayPublished)
		r.deps.Metrics.ObserveLag(r.now().Sub(row.CreatedAt))
		r.deps.Logger.Info(r.deps.Logger.WithField(logCtx, "message_id", serverID), "outbox event published")
		return metrics.RelayPublished, nil
	}

	if registry.IsNonRetryable(sendErr) {
		return r.park(logCtx, tx, row, enums.OutboxDLQReasonNonRetryable, sendErr)
	}
	if row.AttemptCount+1 >= r.opts.MaxAttempts {
		return r.park(logCtx, tx, row, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, sendErr))
	}

	if err := r.deps.Store.MarkFailedTx(tx, row.ID, sendErr); err != nil {
		return "", fmt.Errorf("mark %s failed: %w", row.ID, err)
	}
	r.deps.Metrics.IncEvent(metrics.RelayRetried)
	r.deps.Logger.Warn(r.deps.Logger.WithField(logCtx, "error", sendErr.Error()), "outbox publish failed, will retry")
	return metrics.RelayRetried, nil
}

func (r *Relay) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) (string, error) {
	entry := outbox.DeadLetter(row, reason, cause, r.now())
	if err := r.deps.DeadLetters.InsertTx(tx, entry); err != nil {
		return "", fmt.Errorf("park %s: %w", row.ID, err)
	}
	if err := r.deps.Store.DeleteTx(tx, row.ID); err != nil {
		return "", fmt.Errorf("remove parked %s: %w", row.ID, err)
	}
	r.deps.Metrics.IncEvent(metrics.RelayParked)
	r.deps.Logger.Warn(r.deps.Logger.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event moved to dead letters")
	return metrics.RelayParked, nil
}
