package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/propai/propai/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Workflow runs ---

func (s *LibSQLStore) CreateWorkflowRun(ctx context.Context, run *WorkflowRun) error {
	input, err := marshalMap(run.Input)
	if err != nil {
		return fmt.Errorf("marshal run input: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflow_runs (id, name, status, input_json, output_json, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, string(run.Status), input, nil, nullStr(run.Error),
		timeOrNow(run.StartedAt), nullTime(run.FinishedAt),
	)
	return err
}

func (s *LibSQLStore) FinishWorkflowRun(ctx context.Context, id string, status schema.RunStatus, output map[string]any, errMsg string) error {
	out, err := marshalMap(output)
	if err != nil {
		return fmt.Errorf("marshal run output: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflow_runs SET status = ?, output_json = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), out, nullStr(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "workflow_run", id)
}

func (s *LibSQLStore) GetWorkflowRun(ctx context.Context, id string) (*WorkflowRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, input_json, output_json, error, started_at, finished_at
		 FROM workflow_runs WHERE id = ?`, id,
	)
	run, err := scanWorkflowRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("workflow_run", id)
	}
	return run, err
}

func (s *LibSQLStore) ListWorkflowRuns(ctx context.Context, limit int) ([]*WorkflowRun, error) {
	query := `SELECT id, name, status, input_json, output_json, error, started_at, finished_at
		 FROM workflow_runs ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*WorkflowRun
	for rows.Next() {
		run, err := scanWorkflowRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanWorkflowRun(scan func(...any) error) (*WorkflowRun, error) {
	run := &WorkflowRun{}
	var status string
	var inputJSON, outputJSON, errMsg sql.NullString
	var finishedAt sql.NullTime
	if err := scan(&run.ID, &run.Name, &status, &inputJSON, &outputJSON, &errMsg, &run.StartedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.Status = schema.RunStatus(status)
	run.Input = unmarshalMap(inputJSON)
	run.Output = unmarshalMap(outputJSON)
	run.Error = errMsg.String
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return run, nil
}

// --- Workflow steps ---

func (s *LibSQLStore) CreateWorkflowStep(ctx context.Context, step *WorkflowStep) error {
	input, err := marshalMap(step.Input)
	if err != nil {
		return fmt.Errorf("marshal step input: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflow_steps (id, workflow_run_id, step_name, tool_name, status, input_json, output_json, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID, step.WorkflowRunID, step.StepName, step.ToolName, string(step.Status),
		input, nil, nullStr(step.Error), timeOrNow(step.StartedAt), nullTime(step.FinishedAt),
	)
	return err
}

func (s *LibSQLStore) FinishWorkflowStep(ctx context.Context, id string, status schema.StepStatus, output map[string]any, errMsg string) error {
	out, err := marshalMap(output)
	if err != nil {
		return fmt.Errorf("marshal step output: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflow_steps SET status = ?, output_json = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), out, nullStr(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "workflow_step", id)
}

func (s *LibSQLStore) ListWorkflowSteps(ctx context.Context, workflowRunID string) ([]*WorkflowStep, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_run_id, step_name, tool_name, status, input_json, output_json, error, started_at, finished_at
		 FROM workflow_steps WHERE workflow_run_id = ? ORDER BY started_at ASC, id ASC`, workflowRunID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*WorkflowStep
	for rows.Next() {
		st := &WorkflowStep{}
		var status string
		var inputJSON, outputJSON, errMsg sql.NullString
		var finishedAt sql.NullTime
		if err := rows.Scan(&st.ID, &st.WorkflowRunID, &st.StepName, &st.ToolName, &status,
			&inputJSON, &outputJSON, &errMsg, &st.StartedAt, &finishedAt); err != nil {
			return nil, err
		}
		st.Status = schema.StepStatus(status)
		st.Input = unmarshalMap(inputJSON)
		st.Output = unmarshalMap(outputJSON)
		st.Error = errMsg.String
		if finishedAt.Valid {
			st.FinishedAt = &finishedAt.Time
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// --- Tool calls ---

func (s *LibSQLStore) CreateToolCall(ctx context.Context, call *ToolCall) error {
	input, err := marshalMap(call.Input)
	if err != nil {
		return fmt.Errorf("marshal tool call input: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tool_calls (id, tool_name, input_json, output_json, status, error, lead_id, workflow_run_id, source, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.ID, call.ToolName, input, nil, string(call.Status), nullStr(call.Error),
		nullInt64(call.LeadID), nullStr(call.WorkflowRunID), nullStr(call.Source),
		timeOrNow(call.StartedAt), nullTime(call.FinishedAt),
	)
	return err
}

func (s *LibSQLStore) FinishToolCall(ctx context.Context, id string, status schema.ToolCallStatus, output map[string]any, errMsg string) error {
	out, err := marshalMap(output)
	if err != nil {
		return fmt.Errorf("marshal tool call output: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tool_calls SET output_json = ?, status = ?, error = ?, finished_at = ? WHERE id = ?`,
		out, string(status), nullStr(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "tool_call", id)
}

func (s *LibSQLStore) GetToolCall(ctx context.Context, id string) (*ToolCall, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tool_name, input_json, output_json, status, error, lead_id, workflow_run_id, source, started_at, finished_at
		 FROM tool_calls WHERE id = ?`, id,
	)
	call, err := scanToolCall(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("tool_call", id)
	}
	return call, err
}

func (s *LibSQLStore) ListToolCalls(ctx context.Context, filter ToolCallFilter) ([]*ToolCall, error) {
	var where []string
	var args []any

	if filter.ToolName != "" {
		where = append(where, "tool_name = ?")
		args = append(args, filter.ToolName)
	}
	if filter.WorkflowRunID != "" {
		where = append(where, "workflow_run_id = ?")
		args = append(args, filter.WorkflowRunID)
	}
	if filter.LeadID != nil {
		where = append(where, "lead_id = ?")
		args = append(args, *filter.LeadID)
	}

	query := `SELECT id, tool_name, input_json, output_json, status, error, lead_id, workflow_run_id, source, started_at, finished_at FROM tool_calls`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []*ToolCall
	for rows.Next() {
		call, err := scanToolCall(rows.Scan)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

func scanToolCall(scan func(...any) error) (*ToolCall, error) {
	call := &ToolCall{}
	var status string
	var inputJSON, outputJSON, errMsg, runID, source sql.NullString
	var leadID sql.NullInt64
	var finishedAt sql.NullTime
	if err := scan(&call.ID, &call.ToolName, &inputJSON, &outputJSON, &status, &errMsg,
		&leadID, &runID, &source, &call.StartedAt, &finishedAt); err != nil {
		return nil, err
	}
	call.Status = schema.ToolCallStatus(status)
	call.Input = unmarshalMap(inputJSON)
	call.Output = unmarshalMap(outputJSON)
	call.Error = errMsg.String
	call.WorkflowRunID = runID.String
	call.Source = source.String
	if leadID.Valid {
		call.LeadID = &leadID.Int64
	}
	if finishedAt.Valid {
		call.FinishedAt = &finishedAt.Time
	}
	return call, nil
}

// --- Webhooks ---

func (s *LibSQLStore) CreateWebhook(ctx context.Context, w *Webhook) error {
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhooks (id, event_type, url, secret, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.EventType, w.URL, nullStr(w.Secret), boolInt(w.Active), w.CreatedAt, w.UpdatedAt,
	)
	return err
}

func (s *LibSQLStore) GetWebhook(ctx context.Context, id string) (*Webhook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, event_type, url, secret, active, created_at, updated_at FROM webhooks WHERE id = ?`, id,
	)
	w, err := scanWebhook(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("webhook", id)
	}
	return w, err
}

func (s *LibSQLStore) UpdateWebhook(ctx context.Context, id string, patch WebhookPatch) error {
	var sets []string
	var args []any

	if patch.EventType != nil {
		sets = append(sets, "event_type = ?")
		args = append(args, *patch.EventType)
	}
	if patch.URL != nil {
		sets = append(sets, "url = ?")
		args = append(args, *patch.URL)
	}
	if patch.Secret != nil {
		sets = append(sets, "secret = ?")
		args = append(args, nullStr(*patch.Secret))
	}
	if patch.Active != nil {
		sets = append(sets, "active = ?")
		args = append(args, boolInt(*patch.Active))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE webhooks SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "webhook", id)
}

func (s *LibSQLStore) DeleteWebhook(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "webhook", id)
}

func (s *LibSQLStore) ListWebhooks(ctx context.Context) ([]*Webhook, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_type, url, secret, active, created_at, updated_at
		 FROM webhooks ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWebhooks(rows)
}

func (s *LibSQLStore) ListActiveWebhooksForEvent(ctx context.Context, eventType string) ([]*Webhook, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_type, url, secret, active, created_at, updated_at
		 FROM webhooks WHERE event_type = ? AND active = 1 ORDER BY created_at ASC, id ASC`, eventType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWebhooks(rows)
}

func scanWebhooks(rows *sql.Rows) ([]*Webhook, error) {
	var hooks []*Webhook
	for rows.Next() {
		w, err := scanWebhook(rows.Scan)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, w)
	}
	return hooks, rows.Err()
}

func scanWebhook(scan func(...any) error) (*Webhook, error) {
	w := &Webhook{}
	var secret sql.NullString
	var active int
	if err := scan(&w.ID, &w.EventType, &w.URL, &secret, &active, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Secret = secret.String
	w.Active = active != 0
	return w, nil
}

// --- Webhook deliveries ---

func (s *LibSQLStore) CreateWebhookDelivery(ctx context.Context, d *WebhookDelivery) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, webhook_id, payload, status, attempts, last_error, response_code, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.WebhookID, nullRaw(d.Payload), string(d.Status), d.Attempts,
		nullStr(d.LastError), nullIntPtr(d.ResponseCode), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (s *LibSQLStore) UpdateWebhookDelivery(ctx context.Context, id string, status schema.DeliveryStatus, attempts int, responseCode *int, lastError string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status = ?, attempts = ?, last_error = ?, response_code = ?, updated_at = ? WHERE id = ?`,
		string(status), attempts, nullStr(lastError), nullIntPtr(responseCode), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "webhook_delivery", id)
}

func (s *LibSQLStore) GetWebhookDelivery(ctx context.Context, id string) (*WebhookDelivery, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, webhook_id, payload, status, attempts, last_error, response_code, created_at, updated_at
		 FROM webhook_deliveries WHERE id = ?`, id,
	)
	d, err := scanDelivery(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("webhook_delivery", id)
	}
	return d, err
}

func (s *LibSQLStore) ListWebhookDeliveries(ctx context.Context, limit int) ([]*WebhookDelivery, error) {
	query := `SELECT id, webhook_id, payload, status, attempts, last_error, response_code, created_at, updated_at
		 FROM webhook_deliveries ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows.Scan)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func scanDelivery(scan func(...any) error) (*WebhookDelivery, error) {
	d := &WebhookDelivery{}
	var status string
	var payload, lastError sql.NullString
	var responseCode sql.NullInt64
	if err := scan(&d.ID, &d.WebhookID, &payload, &status, &d.Attempts, &lastError, &responseCode, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Status = schema.DeliveryStatus(status)
	if payload.Valid && payload.String != "" {
		d.Payload = json.RawMessage(payload.String)
	}
	d.LastError = lastError.String
	if responseCode.Valid {
		code := int(responseCode.Int64)
		d.ResponseCode = &code
	}
	return d, nil
}

// --- Leads ---

// leadColumns is the set of lead fields updatable via UpdateLeadFields.
// Keys outside this set are rejected rather than interpolated into SQL.
var leadColumns = map[string]struct{}{
	"lead_name": {}, "phone": {}, "email": {}, "group_name": {},
	"lead_type": {}, "contact": {}, "urgency_score": {}, "intent": {},
	"budget": {}, "location": {}, "configuration": {}, "timeline": {},
	"source": {}, "status": {}, "notes": {},
}

func (s *LibSQLStore) CreateLead(ctx context.Context, l *Lead) error {
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = now
	}
	if l.Status == "" {
		l.Status = "new"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (lead_key, lead_name, phone, email, group_name, lead_type, contact, urgency_score, intent, budget, location, configuration, timeline, source, status, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.LeadKey, nullStr(l.LeadName), nullStr(l.Phone), nullStr(l.Email), nullStr(l.GroupName),
		nullStr(l.LeadType), nullStr(l.Contact), nullIntPtr(l.UrgencyScore), nullStr(l.Intent),
		nullStr(l.Budget), nullStr(l.Location), nullStr(l.Configuration), nullStr(l.Timeline),
		nullStr(l.Source), l.Status, nullStr(l.Notes), l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = id
	return nil
}

func (s *LibSQLStore) GetLead(ctx context.Context, id int64) (*Lead, error) {
	row := s.db.QueryRowContext(ctx, leadSelect+` WHERE id = ?`, id)
	l, err := scanLead(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("lead", fmt.Sprintf("%d", id))
	}
	return l, err
}

func (s *LibSQLStore) GetLeadByKey(ctx context.Context, leadKey string) (*Lead, error) {
	row := s.db.QueryRowContext(ctx, leadSelect+` WHERE lead_key = ?`, leadKey)
	l, err := scanLead(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("lead", leadKey)
	}
	return l, err
}

func (s *LibSQLStore) UpdateLeadFields(ctx context.Context, id int64, fields map[string]any) error {
	var sets []string
	var args []any
	for key, value := range fields {
		if _, ok := leadColumns[key]; !ok {
			return schema.NewErrorf(schema.ErrCodeValidation, "unknown lead field %q", key)
		}
		sets = append(sets, key+" = ?")
		args = append(args, value)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE leads SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "lead", fmt.Sprintf("%d", id))
}

func (s *LibSQLStore) ListLeads(ctx context.Context, limit int) ([]*Lead, error) {
	query := leadSelect + ` ORDER BY updated_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeads(rows)
}

func (s *LibSQLStore) ListLeadsNeedingFollowup(ctx context.Context, hours int) ([]*Lead, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	rows, err := s.db.QueryContext(ctx,
		leadSelect+` WHERE updated_at <= ? AND status NOT IN ('closed', 'lost') ORDER BY updated_at ASC`,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeads(rows)
}

const leadSelect = `SELECT id, lead_key, lead_name, phone, email, group_name, lead_type, contact, urgency_score, intent, budget, location, configuration, timeline, source, status, notes, created_at, updated_at FROM leads`

func scanLeads(rows *sql.Rows) ([]*Lead, error) {
	var leads []*Lead
	for rows.Next() {
		l, err := scanLead(rows.Scan)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func scanLead(scan func(...any) error) (*Lead, error) {
	l := &Lead{}
	var leadName, phone, email, groupName, leadType, contact sql.NullString
	var intent, budget, location, configuration, timeline, source, status, notes sql.NullString
	var urgency sql.NullInt64
	if err := scan(&l.ID, &l.LeadKey, &leadName, &phone, &email, &groupName, &leadType, &contact,
		&urgency, &intent, &budget, &location, &configuration, &timeline, &source, &status, &notes,
		&l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.LeadName = leadName.String
	l.Phone = phone.String
	l.Email = email.String
	l.GroupName = groupName.String
	l.LeadType = leadType.String
	l.Contact = contact.String
	l.Intent = intent.String
	l.Budget = budget.String
	l.Location = location.String
	l.Configuration = configuration.String
	l.Timeline = timeline.String
	l.Source = source.String
	l.Status = status.String
	l.Notes = notes.String
	if urgency.Valid {
		score := int(urgency.Int64)
		l.UrgencyScore = &score
	}
	return l, nil
}

// --- Messages ---

func (s *LibSQLStore) AddMessage(ctx context.Context, m *Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (lead_id, source, direction, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.LeadID, nullStr(m.Source), nullStr(m.Direction), m.Content, m.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

func (s *LibSQLStore) ListMessages(ctx context.Context, leadID int64, limit int) ([]*Message, error) {
	query := `SELECT id, lead_id, source, direction, content, created_at FROM messages WHERE lead_id = ? ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{}
		var source, direction sql.NullString
		if err := rows.Scan(&m.ID, &m.LeadID, &source, &direction, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Source = source.String
		m.Direction = direction.String
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// --- Maintenance ---

// ReconcileStaleRunning marks run and step rows stuck in running state as
// errored. Called once at startup; a process restart mid-run leaves such
// rows behind since there is no resume logic.
func (s *LibSQLStore) ReconcileStaleRunning(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflow_runs SET status = 'error', error = 'interrupted: process restarted mid-run', finished_at = ? WHERE status = 'running'`,
		now,
	)
	if err != nil {
		return 0, err
	}
	runs, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE workflow_steps SET status = 'error', error = 'interrupted: process restarted mid-run', finished_at = ? WHERE status = 'running'`,
		now,
	); err != nil {
		return runs, err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE tool_calls SET status = 'error', error = 'interrupted: process restarted mid-run', finished_at = ? WHERE status = 'running'`,
		now,
	); err != nil {
		return runs, err
	}
	return runs, nil
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.PropError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullIntPtr(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalMap(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalMap(ns sql.NullString) map[string]any {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil
	}
	return m
}
