package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/propai/propai/internal/engine"
	"github.com/propai/propai/internal/leads"
	"github.com/propai/propai/internal/store"
)

// DefaultFollowupHours is the inactivity window when the trigger does
// not pass one.
const DefaultFollowupHours = 48

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func buildFollowupPrompt(lead *store.Lead) string {
	return "Draft a concise follow-up message for this real estate lead.\n" +
		"Lead:\n" +
		fmt.Sprintf("Name: %s\n", orDash(lead.LeadName)) +
		fmt.Sprintf("Intent: %s\n", orDash(lead.Intent)) +
		fmt.Sprintf("Budget: %s\n", orDash(lead.Budget)) +
		fmt.Sprintf("Location: %s\n", orDash(lead.Location)) +
		fmt.Sprintf("Timeline: %s\n", orDash(lead.Timeline)) +
		"Keep it professional and ask one clarifying question."
}

func followupHours(rc engine.RunContext) int {
	if v, ok := rc.Value("followupHours"); ok {
		switch h := v.(type) {
		case int:
			if h > 0 {
				return h
			}
		case float64:
			if h > 0 {
				return int(h)
			}
		}
	}
	return DefaultFollowupHours
}

// Register adds the built-in workflow catalog to the engine.
func Register(eng *engine.Engine, leadSvc *leads.Service) error {
	catalog := []*engine.Workflow{
		followupScanWorkflow(leadSvc),
		followupWorkflow(leadSvc),
	}
	for _, wf := range catalog {
		if err := eng.Register(wf); err != nil {
			return err
		}
	}
	return nil
}

// followupScanWorkflow finds leads with no recent activity and returns
// them for per-lead follow-up runs.
func followupScanWorkflow(leadSvc *leads.Service) *engine.Workflow {
	return &engine.Workflow{
		Name:        "lead_followup_scan",
		Description: "Scan for leads needing follow-up and draft messages",
		Steps: []engine.Step{
			{
				Name:  "find_leads",
				Retry: &engine.RetryPolicy{Retries: 2, Delay: 500 * time.Millisecond, BackoffFactor: 2},
				Run: func(ctx context.Context, rc engine.RunContext, results engine.Results) (map[string]any, error) {
					found, err := leadSvc.ListNeedingFollowup(ctx, followupHours(rc))
					if err != nil {
						return nil, err
					}
					return map[string]any{"leads": found}, nil
				},
			},
		},
	}
}

// followupWorkflow drafts and stores a follow-up message for one lead.
// The draft lands in the lead's notes for an agent to review and send.
func followupWorkflow(leadSvc *leads.Service) *engine.Workflow {
	return &engine.Workflow{
		Name:        "lead_followup",
		Description: "Generate follow-up draft for a specific lead",
		Steps: []engine.Step{
			{
				Name: "load_lead",
				Run: func(ctx context.Context, rc engine.RunContext, results engine.Results) (map[string]any, error) {
					if rc.LeadID == nil {
						return nil, fmt.Errorf("lead_followup requires a lead id")
					}
					lead, err := leadSvc.GetByID(ctx, *rc.LeadID)
					if err != nil {
						return nil, err
					}
					return map[string]any{"lead": lead}, nil
				},
			},
			{
				Name:  "compose_followup",
				Tool:  "ai_generate",
				Retry: &engine.RetryPolicy{Retries: 2, Delay: 800 * time.Millisecond, BackoffFactor: 2},
				Input: func(rc engine.RunContext, results engine.Results) map[string]any {
					lead := results["load_lead"]["lead"].(*store.Lead)
					return map[string]any{
						"prompt":       buildFollowupPrompt(lead),
						"systemPrompt": "You write follow-up messages for real estate leads.",
					}
				},
			},
			{
				Name:  "save_followup",
				Tool:  "lead_update",
				Retry: &engine.RetryPolicy{Retries: 1, Delay: 300 * time.Millisecond, BackoffFactor: 2},
				Input: func(rc engine.RunContext, results engine.Results) map[string]any {
					lead := results["load_lead"]["lead"].(*store.Lead)
					draft, _ := results["compose_followup"]["text"].(string)
					notes := "Follow-up draft:\n" + draft
					if lead.Notes != "" {
						notes = lead.Notes + "\n\n" + notes
					}
					return map[string]any{
						"leadId": lead.ID,
						"fields": map[string]any{"notes": notes},
					}
				},
			},
		},
	}
}
