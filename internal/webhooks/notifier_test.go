package webhooks

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierDeliversInBackground(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	registerWebhook(t, st, "lead.created", srv.URL, "")

	d := newTestDispatcher(t, st, Options{})
	n := NewNotifier(d, slog.New(slog.DiscardHandler), 8)
	n.Start(ctx)

	n.Notify("lead.created", map[string]any{"leadId": 1})
	n.Notify("lead.created", map[string]any{"leadId": 2})
	n.Close()

	assert.EqualValues(t, 2, requests.Load())

	rows, err := st.ListWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestNotifierNeverBlocksProducer(t *testing.T) {
	st := newTestStore(t)
	d := newTestDispatcher(t, st, Options{})
	// Worker never started; the queue fills up and overflow is dropped.
	n := NewNotifier(d, slog.New(slog.DiscardHandler), 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			n.Notify("lead.updated", map[string]any{"i": i})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked the producer")
	}
}

func TestNotifierSwallowsDispatchErrors(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	d := newTestDispatcher(t, st, Options{})
	n := NewNotifier(d, slog.New(slog.DiscardHandler), 4)
	n.Start(ctx)

	// Unsupported event type fails inside the worker, not the producer.
	n.Notify("not.an.event", nil)
	n.Close()
}
