package leads

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propai/propai/internal/store"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	data   []map[string]any
}

func (r *recordingNotifier) Notify(eventType string, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	r.data = append(r.data, data)
}

func newTestService(t *testing.T) (*Service, *recordingNotifier, store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	notifier := &recordingNotifier{}
	return NewService(st, notifier, slog.New(slog.DiscardHandler)), notifier, st
}

func TestGetOrCreateFiresCreatedOnce(t *testing.T) {
	ctx := context.Background()
	svc, notifier, _ := newTestService(t)

	lead, err := svc.GetOrCreate(ctx, "wa:+15550100", "whatsapp", " +15550100 ", "")
	require.NoError(t, err)
	assert.Equal(t, "new", lead.Status)
	assert.Equal(t, "+15550100", lead.Phone)
	assert.Empty(t, lead.Email)

	// Second call returns the same lead and fires nothing.
	again, err := svc.GetOrCreate(ctx, "wa:+15550100", "whatsapp", "", "")
	require.NoError(t, err)
	assert.Equal(t, lead.ID, again.ID)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "lead.created", notifier.events[0])
	assert.Equal(t, lead.ID, notifier.data[0]["leadId"])
}

func TestGetOrCreateRequiresKey(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.GetOrCreate(context.Background(), "  ", "web", "", "")
	require.Error(t, err)
}

func TestUpdateFieldsSkipsEmptyValues(t *testing.T) {
	ctx := context.Background()
	svc, notifier, st := newTestService(t)

	lead, err := svc.GetOrCreate(ctx, "web:1", "web", "", "")
	require.NoError(t, err)

	// Empty and nil values must not clear existing columns.
	require.NoError(t, svc.UpdateFields(ctx, lead.ID, map[string]any{
		"lead_name": "  Ada Lovelace  ",
		"budget":    "",
		"location":  nil,
	}))

	updated, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.LeadName)
	assert.Empty(t, updated.Budget)

	require.Len(t, notifier.events, 2)
	assert.Equal(t, "lead.updated", notifier.events[1])
	fields := notifier.data[1]["fields"].(map[string]any)
	_, hasBudget := fields["budget"]
	assert.False(t, hasBudget)
}

func TestUpdateFieldsAllEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, notifier, _ := newTestService(t)

	lead, err := svc.GetOrCreate(ctx, "web:2", "web", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateFields(ctx, lead.ID, map[string]any{"budget": "  "}))
	require.Len(t, notifier.events, 1) // only lead.created
}

func TestUpdateFieldsFiresHotOnTransition(t *testing.T) {
	ctx := context.Background()
	svc, notifier, _ := newTestService(t)

	lead, err := svc.GetOrCreate(ctx, "web:3", "web", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateFields(ctx, lead.ID, map[string]any{"status": "hot"}))
	require.Len(t, notifier.events, 3)
	assert.Equal(t, "lead.updated", notifier.events[1])
	assert.Equal(t, "lead.hot", notifier.events[2])
	assert.Equal(t, "new", notifier.data[2]["previousStatus"])

	// Updating an already-hot lead does not re-fire lead.hot.
	require.NoError(t, svc.UpdateFields(ctx, lead.ID, map[string]any{"status": "hot"}))
	require.Len(t, notifier.events, 4)
	assert.Equal(t, "lead.updated", notifier.events[3])
}

func TestAddAndListMessages(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	lead, err := svc.GetOrCreate(ctx, "wa:+1", "whatsapp", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.AddMessage(ctx, lead.ID, "whatsapp", "inbound", "hi, looking for a 2BR"))
	require.NoError(t, svc.AddMessage(ctx, lead.ID, "whatsapp", "outbound", "great, what's your budget?"))
	require.Error(t, svc.AddMessage(ctx, lead.ID, "whatsapp", "sideways", "nope"))

	messages, err := svc.ListMessages(ctx, lead.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
}

func TestListNeedingFollowupDefaultsWindow(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.GetOrCreate(ctx, "web:4", "web", "", "")
	require.NoError(t, err)

	// A lead touched just now is not due for follow-up.
	due, err := svc.ListNeedingFollowup(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, due)
}
