package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/propai/propai/internal/store"
	"github.com/propai/propai/pkg/schema"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond

	userAgent       = "PropAI-Webhooks/1.0"
	eventHeader     = "X-PropAI-Event"
	signatureHeader = "X-PropAI-Signature"
)

// occurredAtLayout keeps millisecond precision in the envelope.
const occurredAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Payload is the event envelope sent to every subscriber. It is
// serialized exactly once per event: the same bytes are signed, stored
// on each delivery row, and posted.
type Payload struct {
	EventType  string         `json:"event_type"`
	OccurredAt string         `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// DeliveryResult summarizes one subscriber's attempt sequence.
type DeliveryResult struct {
	DeliveryID   string `json:"delivery_id"`
	WebhookID    string `json:"webhook_id"`
	Status       schema.DeliveryStatus `json:"status"`
	Attempts     int    `json:"attempts"`
	ResponseCode *int   `json:"response_code,omitempty"`
	Error        string `json:"error,omitempty"`
}

// DispatchResult summarizes a single event's fan-out.
type DispatchResult struct {
	EventType  string           `json:"event_type"`
	Queued     int              `json:"queued"`
	Deliveries []DeliveryResult `json:"deliveries"`
}

// Options overrides delivery tuning per dispatcher.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Client      *http.Client
}

// Dispatcher fans out domain events to registered subscribers. Fan-out
// across subscribers is concurrent; each subscriber's retry loop is
// sequential with exponential backoff between attempts. Delivery rows
// are mutated in place across attempts rather than forked per attempt.
type Dispatcher struct {
	store       store.Store
	client      *http.Client
	logger      *slog.Logger
	maxAttempts int
	baseDelay   time.Duration
}

// NewDispatcher creates a Dispatcher with the given options. Zero
// option fields fall back to defaults.
func NewDispatcher(st store.Store, logger *slog.Logger, opts Options) *Dispatcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Dispatcher{
		store:       st,
		client:      opts.Client,
		logger:      logger,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
	}
}

// Signature computes the hex HMAC-SHA256 of the payload bytes with the
// subscriber's secret.
func Signature(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// DispatchEvent delivers one event to every active subscriber for its
// type. It blocks until every subscriber's attempt sequence finishes;
// individual delivery failures never surface as an error, only
// unsupported event types and subscriber lookup failures do.
func (d *Dispatcher) DispatchEvent(ctx context.Context, eventType string, data map[string]any) (*DispatchResult, error) {
	if !IsAllowedEvent(eventType) {
		return nil, schema.NewErrorf(schema.ErrCodeUnsupportedEvent, "unsupported webhook event: %s", eventType)
	}

	subscribers, err := d.store.ListActiveWebhooksForEvent(ctx, eventType)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list webhooks: %s", err.Error()).WithCause(err)
	}
	if len(subscribers) == 0 {
		return &DispatchResult{EventType: eventType, Queued: 0, Deliveries: []DeliveryResult{}}, nil
	}

	if data == nil {
		data = map[string]any{}
	}
	payload := Payload{
		EventType:  eventType,
		OccurredAt: time.Now().UTC().Format(occurredAtLayout),
		Data:       data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "event data is not JSON-serializable").WithCause(err)
	}

	results := make([]DeliveryResult, len(subscribers))
	var wg sync.WaitGroup
	for i, webhook := range subscribers {
		wg.Add(1)
		go func(i int, webhook *store.Webhook) {
			defer wg.Done()
			results[i] = d.deliver(ctx, webhook, eventType, body)
		}(i, webhook)
	}
	wg.Wait()

	return &DispatchResult{
		EventType:  eventType,
		Queued:     len(subscribers),
		Deliveries: results,
	}, nil
}

// deliver runs one subscriber's attempt sequence against a single
// delivery row.
func (d *Dispatcher) deliver(ctx context.Context, webhook *store.Webhook, eventType string, body []byte) DeliveryResult {
	delivery := &store.WebhookDelivery{
		ID:        uuid.New().String(),
		WebhookID: webhook.ID,
		Payload:   json.RawMessage(body),
		Status:    schema.DeliveryStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.store.CreateWebhookDelivery(ctx, delivery); err != nil {
		d.logger.ErrorContext(ctx, "failed to create delivery record",
			slog.String("webhook_id", webhook.ID),
			slog.String("error", err.Error()),
		)
		return DeliveryResult{WebhookID: webhook.ID, Status: schema.DeliveryStatusFailed, Error: err.Error()}
	}

	var lastError string
	var lastResponseCode *int

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		code, err := d.post(ctx, webhook, eventType, body)
		if err == nil && code >= 200 && code < 300 {
			lastResponseCode = &code
			d.updateDelivery(ctx, delivery.ID, schema.DeliveryStatusSuccess, attempt, lastResponseCode, "")
			return DeliveryResult{
				DeliveryID:   delivery.ID,
				WebhookID:    webhook.ID,
				Status:       schema.DeliveryStatusSuccess,
				Attempts:     attempt,
				ResponseCode: lastResponseCode,
			}
		}
		if err != nil {
			lastError = err.Error()
		} else {
			lastError = fmt.Sprintf("HTTP %d", code)
			lastResponseCode = &code
		}

		d.updateDelivery(ctx, delivery.ID, schema.DeliveryStatusFailed, attempt, lastResponseCode, lastError)

		if attempt < d.maxAttempts {
			delay := d.baseDelay * (1 << (attempt - 1))
			if werr := sleepCtx(ctx, delay); werr != nil {
				lastError = werr.Error()
				break
			}
		}
	}

	d.logger.ErrorContext(ctx, "webhook delivery failed",
		slog.String("webhook_id", webhook.ID),
		slog.String("delivery_id", delivery.ID),
		slog.String("event_type", eventType),
		slog.String("error", lastError),
	)
	return DeliveryResult{
		DeliveryID:   delivery.ID,
		WebhookID:    webhook.ID,
		Status:       schema.DeliveryStatusFailed,
		Attempts:     d.maxAttempts,
		ResponseCode: lastResponseCode,
		Error:        lastError,
	}
}

// post issues one HTTP attempt. response_code is reported only when a
// response was actually received.
func (d *Dispatcher) post(ctx context.Context, webhook *store.Webhook, eventType string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(eventHeader, eventType)
	if webhook.Secret != "" {
		req.Header.Set(signatureHeader, Signature(webhook.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (d *Dispatcher) updateDelivery(ctx context.Context, id string, status schema.DeliveryStatus, attempts int, responseCode *int, lastError string) {
	if err := d.store.UpdateWebhookDelivery(ctx, id, status, attempts, responseCode, lastError); err != nil {
		d.logger.ErrorContext(ctx, "failed to update delivery record",
			slog.String("delivery_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
