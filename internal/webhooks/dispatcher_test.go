package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propai/propai/internal/store"
	"github.com/propai/propai/pkg/schema"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestDispatcher(t *testing.T, st store.Store, opts Options) *Dispatcher {
	t.Helper()
	if opts.BaseDelay == 0 {
		opts.BaseDelay = time.Millisecond
	}
	return NewDispatcher(st, slog.New(slog.DiscardHandler), opts)
}

func registerWebhook(t *testing.T, st store.Store, eventType, url, secret string) *store.Webhook {
	t.Helper()
	w := &store.Webhook{
		ID:        uuid.New().String(),
		EventType: eventType,
		URL:       url,
		Secret:    secret,
		Active:    true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.CreateWebhook(context.Background(), w))
	return w
}

func TestDispatchDeliversSignedPayload(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	var gotBody []byte
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	registerWebhook(t, st, "lead.hot", srv.URL, "s3cret")
	d := newTestDispatcher(t, st, Options{})

	result, err := d.DispatchEvent(ctx, "lead.hot", map[string]any{"leadId": 5})
	require.NoError(t, err)
	require.Equal(t, 1, result.Queued)
	require.Len(t, result.Deliveries, 1)

	delivery := result.Deliveries[0]
	assert.Equal(t, schema.DeliveryStatusSuccess, delivery.Status)
	assert.Equal(t, 1, delivery.Attempts)
	require.NotNil(t, delivery.ResponseCode)
	assert.Equal(t, 200, *delivery.ResponseCode)

	// Envelope shape and headers.
	var payload Payload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "lead.hot", payload.EventType)
	assert.NotEmpty(t, payload.OccurredAt)
	assert.EqualValues(t, 5, payload.Data["leadId"])

	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "PropAI-Webhooks/1.0", gotHeaders.Get("User-Agent"))
	assert.Equal(t, "lead.hot", gotHeaders.Get("X-PropAI-Event"))

	// Signature covers the exact body bytes.
	assert.Equal(t, Signature("s3cret", gotBody), gotHeaders.Get("X-PropAI-Signature"))

	// Persisted row mirrors the result.
	stored, err := st.GetWebhookDelivery(ctx, delivery.DeliveryID)
	require.NoError(t, err)
	assert.Equal(t, schema.DeliveryStatusSuccess, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.ResponseCode)
	assert.Equal(t, 200, *stored.ResponseCode)
	assert.JSONEq(t, string(gotBody), string(stored.Payload))
}

func TestDispatchOmitsSignatureWithoutSecret(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	registerWebhook(t, st, "lead.created", srv.URL, "")
	d := newTestDispatcher(t, st, Options{})

	result, err := d.DispatchEvent(ctx, "lead.created", nil)
	require.NoError(t, err)
	require.Len(t, result.Deliveries, 1)
	assert.Equal(t, schema.DeliveryStatusSuccess, result.Deliveries[0].Status)
	_, present := gotHeaders["X-Propai-Signature"]
	assert.False(t, present)
}

func TestDispatchRetriesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	registerWebhook(t, st, "lead.updated", srv.URL, "")
	d := newTestDispatcher(t, st, Options{MaxAttempts: 3, BaseDelay: time.Millisecond})

	result, err := d.DispatchEvent(ctx, "lead.updated", map[string]any{})
	require.NoError(t, err)
	require.Len(t, result.Deliveries, 1)

	delivery := result.Deliveries[0]
	assert.Equal(t, schema.DeliveryStatusFailed, delivery.Status)
	assert.Equal(t, 3, delivery.Attempts)
	assert.EqualValues(t, 3, requests.Load())
	require.NotNil(t, delivery.ResponseCode)
	assert.Equal(t, 500, *delivery.ResponseCode)
	assert.Contains(t, delivery.Error, "HTTP 500")

	// One row mutated across attempts, not one row per attempt.
	rows, err := st.ListWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, schema.DeliveryStatusFailed, rows[0].Status)
	assert.Equal(t, 3, rows[0].Attempts)
	assert.Contains(t, rows[0].LastError, "HTTP 500")
}

func TestDispatchRecoversOnLaterAttempt(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	registerWebhook(t, st, "workflow.completed", srv.URL, "")
	d := newTestDispatcher(t, st, Options{MaxAttempts: 3, BaseDelay: time.Millisecond})

	result, err := d.DispatchEvent(ctx, "workflow.completed", map[string]any{})
	require.NoError(t, err)
	require.Len(t, result.Deliveries, 1)
	assert.Equal(t, schema.DeliveryStatusSuccess, result.Deliveries[0].Status)
	assert.Equal(t, 2, result.Deliveries[0].Attempts)
}

func TestDispatchNetworkErrorLeavesNoResponseCode(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	// Nothing listens here.
	registerWebhook(t, st, "lead.created", "http://127.0.0.1:1/hook", "")
	d := newTestDispatcher(t, st, Options{MaxAttempts: 2, BaseDelay: time.Millisecond})

	result, err := d.DispatchEvent(ctx, "lead.created", map[string]any{})
	require.NoError(t, err)
	require.Len(t, result.Deliveries, 1)

	delivery := result.Deliveries[0]
	assert.Equal(t, schema.DeliveryStatusFailed, delivery.Status)
	assert.Nil(t, delivery.ResponseCode)
	assert.NotEmpty(t, delivery.Error)

	stored, err := st.GetWebhookDelivery(ctx, delivery.DeliveryID)
	require.NoError(t, err)
	assert.Nil(t, stored.ResponseCode)
}

func TestDispatchZeroSubscribers(t *testing.T) {
	st := newTestStore(t)
	d := newTestDispatcher(t, st, Options{})

	result, err := d.DispatchEvent(context.Background(), "lead.created", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Queued)
	assert.Empty(t, result.Deliveries)

	rows, err := st.ListWebhookDeliveries(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDispatchRejectsUnknownEvent(t *testing.T) {
	st := newTestStore(t)
	d := newTestDispatcher(t, st, Options{})

	_, err := d.DispatchEvent(context.Background(), "lead.deleted", nil)
	require.Error(t, err)

	var perr *schema.PropError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, schema.ErrCodeUnsupportedEvent, perr.Code)
}

func TestDispatchFansOutConcurrently(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	registerWebhook(t, st, "lead.hot", srv.URL+"/a", "")
	registerWebhook(t, st, "lead.hot", srv.URL+"/b", "")
	// Inactive and other-event subscribers are not fanned out to.
	inactive := registerWebhook(t, st, "lead.hot", srv.URL+"/c", "")
	require.NoError(t, st.UpdateWebhook(ctx, inactive.ID, store.WebhookPatch{Active: boolPtr(false)}))
	registerWebhook(t, st, "lead.created", srv.URL+"/d", "")

	d := newTestDispatcher(t, st, Options{})
	result, err := d.DispatchEvent(ctx, "lead.hot", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Queued)
	assert.EqualValues(t, 2, requests.Load())
	for _, delivery := range result.Deliveries {
		assert.Equal(t, schema.DeliveryStatusSuccess, delivery.Status)
	}
}

func TestDispatchTwiceCreatesIndependentDeliveries(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	registerWebhook(t, st, "lead.updated", srv.URL, "")
	d := newTestDispatcher(t, st, Options{})

	first, err := d.DispatchEvent(ctx, "lead.updated", map[string]any{"n": 1})
	require.NoError(t, err)
	second, err := d.DispatchEvent(ctx, "lead.updated", map[string]any{"n": 2})
	require.NoError(t, err)
	assert.NotEqual(t, first.Deliveries[0].DeliveryID, second.Deliveries[0].DeliveryID)

	rows, err := st.ListWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func boolPtr(b bool) *bool { return &b }
