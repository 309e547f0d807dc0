package httpapi

import (
	"net/http"

	"github.com/propai/propai/internal/store"
)

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Leads.List(r.Context(), queryInt(r, "limit", 200))
	if err != nil {
		writePropError(w, err)
		return
	}
	if records == nil {
		records = []*store.Lead{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	lead, err := s.deps.Leads.GetByID(r.Context(), id)
	if err != nil {
		writePropError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	messages, err := s.deps.Leads.ListMessages(r.Context(), id, queryInt(r, "limit", 20))
	if err != nil {
		writePropError(w, err)
		return
	}
	if messages == nil {
		messages = []*store.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}
