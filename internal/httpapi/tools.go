package httpapi

import (
	"fmt"
	"net/http"

	"github.com/propai/propai/internal/store"
	"github.com/propai/propai/internal/tools"
)

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Gateway.Registry().List())
}

// handleInvokeTool runs a single tool through the gateway. The caller
// origin comes from the X-PropAI-Source header, defaulting to "web".
func (s *Server) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	call := tools.CallContext{Source: r.Header.Get("X-PropAI-Source")}
	if raw, ok := body["leadId"]; ok {
		if f, isNum := raw.(float64); isNum && f > 0 {
			leadID := int64(f)
			call.LeadID = &leadID
		}
	}

	output, err := s.deps.Gateway.Invoke(r.Context(), name, body, call)
	if err != nil {
		writePropError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tool":   name,
		"output": output,
	})
}

func (s *Server) handleListToolCalls(w http.ResponseWriter, r *http.Request) {
	filter := store.ToolCallFilter{
		ToolName:      r.URL.Query().Get("tool"),
		WorkflowRunID: r.URL.Query().Get("run"),
		Limit:         queryInt(r, "limit", 100),
	}
	if leadID := int64(queryInt(r, "lead", 0)); leadID > 0 {
		filter.LeadID = &leadID
	}

	calls, err := s.deps.Store.ListToolCalls(r.Context(), filter)
	if err != nil {
		writePropError(w, err)
		return
	}
	if calls == nil {
		calls = []*store.ToolCall{}
	}
	writeJSON(w, http.StatusOK, calls)
}
