package httpapi

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/propai/propai/internal/engine"
	"github.com/propai/propai/internal/store"
)

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	names := s.deps.Engine.List()
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string][]string{"workflows": names})
}

// handleRunWorkflow triggers a synchronous workflow run. The request
// body is the workflow input; an optional leadId links the run to a
// lead.
func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	rc := engine.RunContext{Source: "web", Values: body}
	if raw, ok := body["leadId"]; ok {
		if f, isNum := raw.(float64); isNum && f > 0 {
			leadID := int64(f)
			rc.LeadID = &leadID
		}
	}

	results, err := s.deps.Engine.Run(r.Context(), name, body, rc)
	if err != nil {
		writePropError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflow": name,
		"results":  results,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.deps.Store.ListWorkflowRuns(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writePropError(w, err)
		return
	}
	if runs == nil {
		runs = []*store.WorkflowRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns a run together with all of its step attempt
// records.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.deps.Store.GetWorkflowRun(r.Context(), id)
	if err != nil {
		writePropError(w, err)
		return
	}
	steps, err := s.deps.Store.ListWorkflowSteps(r.Context(), id)
	if err != nil {
		writePropError(w, err)
		return
	}
	if steps == nil {
		steps = []*store.WorkflowStep{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run":   run,
		"steps": steps,
	})
}
