package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/propai/propai/internal/store"
	"github.com/propai/propai/internal/webhooks"
)

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Store.ListWebhooks(r.Context())
	if err != nil {
		writePropError(w, err)
		return
	}
	if records == nil {
		records = []*store.Webhook{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	input, errs := webhooks.ValidateCreate(body)
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	now := time.Now().UTC()
	record := &store.Webhook{
		ID:        uuid.New().String(),
		EventType: input.EventType,
		URL:       input.URL,
		Secret:    input.Secret,
		Active:    input.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deps.Store.CreateWebhook(r.Context(), record); err != nil {
		writePropError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	record, err := s.deps.Store.GetWebhook(r.Context(), r.PathValue("id"))
	if err != nil {
		writePropError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.deps.Store.GetWebhook(r.Context(), id); err != nil {
		writePropError(w, err)
		return
	}

	body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	input, errs := webhooks.ValidateUpdate(body)
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	patch := store.WebhookPatch{
		EventType: input.EventType,
		URL:       input.URL,
		Secret:    input.Secret,
		Active:    input.Active,
	}
	if err := s.deps.Store.UpdateWebhook(r.Context(), id, patch); err != nil {
		writePropError(w, err)
		return
	}

	updated, err := s.deps.Store.GetWebhook(r.Context(), id)
	if err != nil {
		writePropError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeleteWebhook(r.Context(), r.PathValue("id")); err != nil {
		writePropError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Store.ListWebhookDeliveries(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writePropError(w, err)
		return
	}
	if records == nil {
		records = []*store.WebhookDelivery{}
	}
	writeJSON(w, http.StatusOK, records)
}
