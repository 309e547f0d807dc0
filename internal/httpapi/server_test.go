package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propai/propai/internal/engine"
	"github.com/propai/propai/internal/leads"
	"github.com/propai/propai/internal/store"
	"github.com/propai/propai/internal/tools"
	"github.com/propai/propai/internal/workflows"
)

type staticAI struct{ reply string }

func (s staticAI) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return s.reply, nil
}

func newTestServer(t *testing.T) (*Server, store.Store, *leads.Service) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.DiscardHandler)
	leadSvc := leads.NewService(st, nil, logger)

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.NewAIGenerateTool(staticAI{reply: "drafted"})))
	require.NoError(t, registry.Register(tools.NewLeadUpdateTool(leadSvc)))
	require.NoError(t, registry.Register(tools.NewTransformTool()))
	gateway := tools.NewGateway(registry, st, tools.Policy{Disabled: []string{"transform"}}, logger)

	eng := engine.New(st, gateway, nil, logger)
	require.NoError(t, workflows.Register(eng, leadSvc))

	srv := NewServer("127.0.0.1:0", Deps{
		Store:   st,
		Engine:  eng,
		Gateway: gateway,
		Leads:   leadSvc,
		Logger:  logger,
	})
	return srv, st, leadSvc
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookCRUDLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	// Create.
	rec := doJSON(t, h, http.MethodPost, "/api/webhooks", map[string]any{
		"event_type": "lead.hot",
		"url":        "https://example.com/hook",
		"secret":     "s3cret",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[store.Webhook](t, rec)
	require.NotEmpty(t, created.ID)
	assert.True(t, created.Active)

	// List.
	rec = doJSON(t, h, http.MethodGet, "/api/webhooks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]store.Webhook](t, rec)
	require.Len(t, list, 1)

	// Update: deactivate and clear the secret.
	rec = doJSON(t, h, http.MethodPut, "/api/webhooks/"+created.ID, map[string]any{
		"active": false,
		"secret": "",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[store.Webhook](t, rec)
	assert.False(t, updated.Active)
	assert.Empty(t, updated.Secret)

	// Delete.
	rec = doJSON(t, h, http.MethodDelete, "/api/webhooks/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/webhooks/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookCreateValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/webhooks", map[string]any{
		"event_type": "lead.deleted",
		"url":        "ftp://nope",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string][]string](t, rec)
	assert.Len(t, body["errors"], 2)
}

func TestWebhookUpdateRequiresExisting(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPut, "/api/webhooks/missing", map[string]any{"active": false})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunWorkflowEndpoint(t *testing.T) {
	srv, st, leadSvc := newTestServer(t)
	h := srv.Handler()

	lead, err := leadSvc.GetOrCreate(context.Background(), "web:1", "web", "", "")
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/api/workflows/lead_followup/run", map[string]any{
		"leadId": lead.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "lead_followup", body["workflow"])

	runs, err := st.ListWorkflowRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	updated, err := leadSvc.GetByID(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Contains(t, updated.Notes, "drafted")
}

func TestRunUnknownWorkflow(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/workflows/nope/run", map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvokeToolEndpoint(t *testing.T) {
	srv, st, leadSvc := newTestServer(t)
	h := srv.Handler()

	lead, err := leadSvc.GetOrCreate(context.Background(), "web:2", "web", "", "")
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/api/tools/lead_update/invoke", map[string]any{
		"leadId": lead.ID,
		"fields": map[string]any{"status": "contacted"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	calls, err := st.ListToolCalls(context.Background(), store.ToolCallFilter{ToolName: "lead_update"})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "web", calls[0].Source)
}

func TestInvokeDisabledToolForbidden(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/tools/transform/invoke", map[string]any{
		"expression": ".",
		"data":       map[string]any{},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInvokeUnknownToolNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/tools/missing/invoke", map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestObservabilityEndpoints(t *testing.T) {
	srv, _, leadSvc := newTestServer(t)
	h := srv.Handler()

	lead, err := leadSvc.GetOrCreate(context.Background(), "wa:+1", "whatsapp", "", "")
	require.NoError(t, err)
	require.NoError(t, leadSvc.AddMessage(context.Background(), lead.ID, "whatsapp", "inbound", "hi"))

	rec := doJSON(t, h, http.MethodPost, "/api/workflows/lead_followup/run", map[string]any{"leadId": lead.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]store.WorkflowRun](t, rec)
	require.Len(t, runs, 1)

	rec = doJSON(t, h, http.MethodGet, "/api/runs/"+runs[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[map[string]json.RawMessage](t, rec)
	var steps []store.WorkflowStep
	require.NoError(t, json.Unmarshal(detail["steps"], &steps))
	assert.Len(t, steps, 3)

	rec = doJSON(t, h, http.MethodGet, "/api/tool-calls?tool=ai_generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	calls := decode[[]store.ToolCall](t, rec)
	require.Len(t, calls, 1)
	assert.Equal(t, runs[0].ID, calls[0].WorkflowRunID)

	rec = doJSON(t, h, http.MethodGet, "/api/leads", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	leadList := decode[[]store.Lead](t, rec)
	require.Len(t, leadList, 1)

	rec = doJSON(t, h, http.MethodGet, "/api/leads/1/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	messages := decode[[]store.Message](t, rec)
	require.Len(t, messages, 1)

	rec = doJSON(t, h, http.MethodGet, "/api/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	wfs := decode[map[string][]string](t, rec)
	assert.Contains(t, wfs["workflows"], "lead_followup")
	assert.Contains(t, wfs["workflows"], "lead_followup_scan")

	rec = doJSON(t, h, http.MethodGet, "/api/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	infos := decode[[]tools.ToolInfo](t, rec)
	assert.Len(t, infos, 3)
}
