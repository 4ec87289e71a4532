package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persiashop/storefront-backend/pkg/enums"
	"github.com/persiashop/storefront-backend/pkg/outbox"
)

func TestFromMessagePrefersBodyAndFillsFromAttributes(t *testing.T) {
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	body, err := json.Marshal(outbox.PayloadEnvelope{
		EventID:    "1f0c7f2e-9a43-4a55-8f1d-0f7c3f3e9d10",
		OccurredAt: occurred,
		Data:       json.RawMessage(`{"order_id":11}`),
	})
	require.NoError(t, err)

	env, err := FromMessage(body, map[string]string{
		"event_id":       "ignored",
		"event_type":     " order_created ",
		"aggregate_type": "order",
		"aggregate_id":   "11",
		"version":        "2",
	})
	require.NoError(t, err)
	assert.Equal(t, "1f0c7f2e-9a43-4a55-8f1d-0f7c3f3e9d10", env.EventID)
	assert.Equal(t, enums.EventOrderCreated, env.EventType)
	assert.Equal(t, enums.AggregateOrder, env.AggregateType)
	assert.Equal(t, 2, env.Version)
	assert.Equal(t, occurred, env.OccurredAt)
	assert.JSONEq(t, `{"order_id":11}`, string(env.Payload))
}

func TestFromMessageUsesCreatedAtWhenBodyHasNoTimestamp(t *testing.T) {
	env, err := FromMessage([]byte(`{"version":1,"data":{}}`), map[string]string{
		"event_id":       "evt",
		"event_type":     "cart_merged",
		"aggregate_type": "cart",
		"aggregate_id":   "3",
		"created_at":     "2026-01-02T03:04:05Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "evt", env.EventID)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), env.OccurredAt)
}

func TestFromMessageRejectsIncompleteMessages(t *testing.T) {
	valid := map[string]string{"event_type": "cart_merged", "aggregate_type": "cart", "aggregate_id": "3", "event_id": "e"}
	cases := map[string]struct {
		body  string
		attrs map[string]string
	}{
		"bad body":          {body: "{", attrs: valid},
		"unknown type":      {body: "{}", attrs: map[string]string{"event_type": "cart_deleted", "aggregate_type": "cart", "aggregate_id": "3", "event_id": "e"}},
		"unknown aggregate": {body: "{}", attrs: map[string]string{"event_type": "cart_merged", "aggregate_type": "store", "aggregate_id": "3", "event_id": "e"}},
		"no aggregate id":   {body: "{}", attrs: map[string]string{"event_type": "cart_merged", "aggregate_type": "cart", "event_id": "e"}},
		"no event id":       {body: "{}", attrs: map[string]string{"event_type": "cart_merged", "aggregate_type": "cart", "aggregate_id": "3"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromMessage([]byte(tc.body), tc.attrs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}
