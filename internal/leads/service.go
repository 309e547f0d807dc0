package leads

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/propai/propai/internal/store"
	"github.com/propai/propai/pkg/schema"
)

// EventNotifier receives lead lifecycle events for webhook fan-out.
type EventNotifier interface {
	Notify(eventType string, data map[string]any)
}

// Service owns lead lifecycle and the conversation log. Writes go to
// the store first; lifecycle events are fired after the write succeeds
// and never affect its outcome.
type Service struct {
	store    store.Store
	notifier EventNotifier
	logger   *slog.Logger
}

// NewService creates a lead Service. The notifier may be nil.
func NewService(st store.Store, notifier EventNotifier, logger *slog.Logger) *Service {
	return &Service{store: st, notifier: notifier, logger: logger}
}

// cleanValue trims a field value; empty and nil values collapse to
// "skip this field".
func cleanValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	trimmed := strings.TrimSpace(fmt.Sprintf("%v", v))
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// GetOrCreate returns the lead for the given key, creating it with
// status "new" when absent. Creation fires lead.created.
func (s *Service) GetOrCreate(ctx context.Context, leadKey, source, phone, email string) (*store.Lead, error) {
	if strings.TrimSpace(leadKey) == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "lead key is required")
	}

	existing, err := s.store.GetLeadByKey(ctx, leadKey)
	if err == nil {
		return existing, nil
	}
	if !schema.IsCode(err, schema.ErrCodeNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	lead := &store.Lead{
		LeadKey:   leadKey,
		Source:    source,
		Status:    "new",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p, ok := cleanValue(phone); ok {
		lead.Phone = p
	}
	if e, ok := cleanValue(email); ok {
		lead.Email = e
	}
	if err := s.store.CreateLead(ctx, lead); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "lead created",
		slog.Int64("lead_id", lead.ID),
		slog.String("source", source),
	)
	s.notify("lead.created", map[string]any{
		"leadId":  lead.ID,
		"leadKey": lead.LeadKey,
		"source":  lead.Source,
		"status":  lead.Status,
	})
	return lead, nil
}

// GetByID returns a lead by its numeric id.
func (s *Service) GetByID(ctx context.Context, leadID int64) (*store.Lead, error) {
	return s.store.GetLead(ctx, leadID)
}

// UpdateFields applies a partial update: values are trimmed, and
// empty or nil values are skipped rather than clearing columns. Fires
// lead.updated, plus lead.hot when the update moves the status into
// "hot" from something else.
func (s *Service) UpdateFields(ctx context.Context, leadID int64, fields map[string]any) error {
	cleaned := make(map[string]any, len(fields))
	for key, value := range fields {
		if v, ok := cleanValue(value); ok {
			cleaned[key] = v
		}
	}
	if len(cleaned) == 0 {
		return nil
	}

	before, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return err
	}
	if err := s.store.UpdateLeadFields(ctx, leadID, cleaned); err != nil {
		return err
	}

	data := map[string]any{
		"leadId": leadID,
		"fields": cleaned,
	}
	s.notify("lead.updated", data)

	if newStatus, ok := cleaned["status"].(string); ok && newStatus == "hot" && before.Status != "hot" {
		s.logger.InfoContext(ctx, "lead promoted to hot", slog.Int64("lead_id", leadID))
		s.notify("lead.hot", map[string]any{
			"leadId":         leadID,
			"previousStatus": before.Status,
		})
	}
	return nil
}

// AddMessage appends one entry to a lead's conversation log.
func (s *Service) AddMessage(ctx context.Context, leadID int64, source, direction, content string) error {
	if direction != "inbound" && direction != "outbound" {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid message direction: %s", direction)
	}
	return s.store.AddMessage(ctx, &store.Message{
		LeadID:    leadID,
		Source:    source,
		Direction: direction,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}

// List returns leads ordered by most recent activity.
func (s *Service) List(ctx context.Context, limit int) ([]*store.Lead, error) {
	if limit <= 0 {
		limit = 200
	}
	return s.store.ListLeads(ctx, limit)
}

// ListMessages returns a lead's conversation log, newest first.
func (s *Service) ListMessages(ctx context.Context, leadID int64, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListMessages(ctx, leadID, limit)
}

// ListNeedingFollowup returns open leads with no activity in the given
// window.
func (s *Service) ListNeedingFollowup(ctx context.Context, hours int) ([]*store.Lead, error) {
	if hours <= 0 {
		hours = 24
	}
	return s.store.ListLeadsNeedingFollowup(ctx, hours)
}

func (s *Service) notify(eventType string, data map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(eventType, data)
}
