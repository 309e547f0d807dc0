package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/propai/propai/internal/engine"
	"github.com/propai/propai/internal/leads"
	"github.com/propai/propai/internal/store"
	"github.com/propai/propai/internal/tools"
)

// Deps holds the server's collaborators.
type Deps struct {
	Store   store.Store
	Engine  *engine.Engine
	Gateway *tools.Gateway
	Leads   *leads.Service
	Logger  *slog.Logger
}

// Server exposes the admin and observability API: webhook subscription
// CRUD, workflow triggering, tool invocation, and read-only views over
// the ledger.
type Server struct {
	deps Deps
	http *http.Server
}

// NewServer builds the Server and its route table.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/webhooks", s.handleListWebhooks)
	mux.HandleFunc("POST /api/webhooks", s.handleCreateWebhook)
	mux.HandleFunc("GET /api/webhooks/{id}", s.handleGetWebhook)
	mux.HandleFunc("PUT /api/webhooks/{id}", s.handleUpdateWebhook)
	mux.HandleFunc("DELETE /api/webhooks/{id}", s.handleDeleteWebhook)
	mux.HandleFunc("GET /api/deliveries", s.handleListDeliveries)

	mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	mux.HandleFunc("POST /api/workflows/{name}/run", s.handleRunWorkflow)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)

	mux.HandleFunc("GET /api/tools", s.handleListTools)
	mux.HandleFunc("POST /api/tools/{name}/invoke", s.handleInvokeTool)
	mux.HandleFunc("GET /api/tool-calls", s.handleListToolCalls)

	mux.HandleFunc("GET /api/leads", s.handleListLeads)
	mux.HandleFunc("GET /api/leads/{id}", s.handleGetLead)
	mux.HandleFunc("GET /api/leads/{id}/messages", s.handleListMessages)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.deps.Logger.Info("http api listening", slog.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
