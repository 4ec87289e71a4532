package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persiashop/storefront-backend/internal/analytics/types"
	"github.com/persiashop/storefront-backend/pkg/bigquery"
	"github.com/persiashop/storefront-backend/pkg/enums"
	"github.com/persiashop/storefront-backend/pkg/logger"
	"github.com/persiashop/storefront-backend/pkg/outbox/registry"
)

type fakeWriter struct {
	rows []bigquery.EventRow
	err  error
}

func (f *fakeWriter) InsertEvents(_ context.Context, rows ...bigquery.EventRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func newTestRouter(t *testing.T, writer Writer) *Router {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "analytics-router-test", Output: io.Discard})
	r, err := NewRouter(writer, registry.NewDefaultDecoderRegistry(), logg, nil)
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return r
}

func TestRouterWritesCartMergedRow(t *testing.T) {
	writer := &fakeWriter{}
	r := newTestRouter(t, writer)
	occurred := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	env := types.Envelope{
		EventID:       "evt-1",
		EventType:     enums.EventCartMerged,
		AggregateType: enums.AggregateCart,
		AggregateID:   "5",
		Version:       1,
		OccurredAt:    occurred,
		Payload:       json.RawMessage(`{"cart_id":5,"user_id":9,"items_updated":1,"items_inserted":2,"quantity":4}`),
	}
	require.NoError(t, r.Handle(context.Background(), env))
	require.Len(t, writer.rows, 1)

	row := writer.rows[0]
	assert.Equal(t, "evt-1", row.EventID)
	assert.Equal(t, "cart_merged", row.EventType)
	assert.Equal(t, "5", row.AggregateID)
	assert.EqualValues(t, 9, row.UserID.Int64)
	assert.EqualValues(t, 4, row.Quantity.Int64)
	assert.False(t, row.Amount.Valid)
	assert.Equal(t, occurred, row.OccurredAt)
	assert.JSONEq(t, string(env.Payload), row.Payload)
}

func TestRouterWritesOrderCreatedRow(t *testing.T) {
	writer := &fakeWriter{}
	r := newTestRouter(t, writer)

	env := types.Envelope{
		EventID:       "evt-2",
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   "77",
		Payload:       json.RawMessage(`{"order_id":77,"user_id":3,"status":"pending","total_amount":125000,"item_count":2}`),
	}
	require.NoError(t, r.Handle(context.Background(), env))
	require.Len(t, writer.rows, 1)
	assert.EqualValues(t, 125000, writer.rows[0].Amount.Int64)
	assert.EqualValues(t, 2, writer.rows[0].Quantity.Int64)
}

func TestRouterWritesOrderStatusChangedRow(t *testing.T) {
	writer := &fakeWriter{}
	r := newTestRouter(t, writer)

	env := types.Envelope{
		EventID:       "evt-3",
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   "77",
		Payload:       json.RawMessage(`{"order_id":77,"user_id":3,"from":"pending","to":"shipped","total_amount":125000,"changed_by":1}`),
	}
	require.NoError(t, r.Handle(context.Background(), env))
	require.Len(t, writer.rows, 1)
	assert.EqualValues(t, 3, writer.rows[0].UserID.Int64)
	assert.EqualValues(t, 125000, writer.rows[0].Amount.Int64)
	assert.False(t, writer.rows[0].Quantity.Valid)
}

func TestRouterRejectsUnknownEventAndBadPayload(t *testing.T) {
	writer := &fakeWriter{}
	r := newTestRouter(t, writer)

	err := r.Handle(context.Background(), types.Envelope{EventType: "cart_deleted", Payload: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrUnsupportedEventType)

	err = r.Handle(context.Background(), types.Envelope{EventType: enums.EventCartMerged, Payload: json.RawMessage(`not json`)})
	assert.Error(t, err)

	err = r.Handle(context.Background(), types.Envelope{EventType: enums.EventCartMerged, Version: 9, Payload: json.RawMessage(`{}`)})
	assert.Error(t, err, "unregistered versions must not decode")
	assert.Empty(t, writer.rows)
}

func TestRouterSurfacesWriterFailure(t *testing.T) {
	r := newTestRouter(t, &fakeWriter{err: errors.New("bq down")})
	err := r.Handle(context.Background(), types.Envelope{
		EventType: enums.EventCartMerged,
		Payload:   json.RawMessage(`{"user_id":1}`),
	})
	assert.EqualError(t, err, "bq down")
}
