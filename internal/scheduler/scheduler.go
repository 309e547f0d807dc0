package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/propai/propai/internal/engine"
	"github.com/propai/propai/internal/store"
)

// WorkflowRunner is the engine surface the scheduler drives.
// Satisfied by *engine.Engine.
type WorkflowRunner interface {
	Run(ctx context.Context, name string, input map[string]any, rc engine.RunContext) (engine.Results, error)
}

// Job is one cron-declared workflow trigger from configuration.
type Job struct {
	Name          string         `json:"name"`
	Cron          string         `json:"cron"`
	Workflow      string         `json:"workflow"`
	Enabled       bool           `json:"enabled"`
	FollowupHours int            `json:"followup_hours,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

type scheduledJob struct {
	Job
	schedule cron.Schedule
	nextRun  time.Time
}

// Scheduler fires configured cron jobs against the workflow engine.
// A job that is still executing when its next slot arrives is skipped
// rather than stacked.
type Scheduler struct {
	runner WorkflowRunner
	parser cron.Parser
	logger *slog.Logger
	jobs   []*scheduledJob

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// New creates a Scheduler from the configured job list. Invalid cron
// expressions are rejected up front.
func New(runner WorkflowRunner, jobs []Job, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		inflight: make(map[string]struct{}),
	}

	now := time.Now().UTC()
	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		schedule, err := s.parser.Parse(job.Cron)
		if err != nil {
			return nil, fmt.Errorf("parse cron expression %q for job %q: %w", job.Cron, job.Name, err)
		}
		s.jobs = append(s.jobs, &scheduledJob{
			Job:      job,
			schedule: schedule,
			nextRun:  schedule.Next(now),
		})
	}
	return s, nil
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.jobs)))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, time.Now().UTC())
		}
	}
}

// tick runs every due job and advances its next-run time.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for _, job := range s.jobs {
		if job.nextRun.After(now) {
			continue
		}
		job.nextRun = job.schedule.Next(now)
		if !s.tryAcquire(job.Name) {
			s.logger.Warn("scheduled job still running, skipping slot",
				slog.String("job", job.Name),
			)
			continue
		}
		s.runJob(ctx, job)
		s.release(job.Name)
	}
}

// runJob executes one job. The follow-up scan is special-cased: its
// found leads each get their own lead_followup run so every lead gets
// an independent audit trail.
func (s *Scheduler) runJob(ctx context.Context, job *scheduledJob) {
	s.logger.Info("running scheduled job",
		slog.String("job", job.Name),
		slog.String("workflow", job.Workflow),
	)

	if job.Workflow == "lead_followup_scan" {
		s.runFollowupScan(ctx, job)
		return
	}

	_, err := s.runner.Run(ctx, job.Workflow, job.Payload, engine.RunContext{Source: "scheduler"})
	if err != nil {
		s.logger.Error("scheduled job failed",
			slog.String("job", job.Name),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Scheduler) runFollowupScan(ctx context.Context, job *scheduledJob) {
	hours := job.FollowupHours
	if hours <= 0 {
		hours = 48
	}
	results, err := s.runner.Run(ctx, "lead_followup_scan",
		map[string]any{"followupHours": hours},
		engine.RunContext{
			Source: "scheduler",
			Values: map[string]any{"followupHours": hours},
		},
	)
	if err != nil {
		s.logger.Error("follow-up scan failed",
			slog.String("job", job.Name),
			slog.String("error", err.Error()),
		)
		return
	}

	found, _ := results["find_leads"]["leads"].([]*store.Lead)
	for _, lead := range found {
		leadID := lead.ID
		_, err := s.runner.Run(ctx, "lead_followup",
			map[string]any{"leadId": leadID},
			engine.RunContext{Source: "scheduler", LeadID: &leadID},
		)
		if err != nil {
			// One lead's failure must not stop the rest of the batch.
			s.logger.Error("lead follow-up failed",
				slog.String("job", job.Name),
				slog.Int64("lead_id", leadID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *Scheduler) tryAcquire(name string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[name]; ok {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

func (s *Scheduler) release(name string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, name)
}

// Stop gracefully shuts down the scheduling loop.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}

// NextRun exposes a job's next firing time, mainly for observability.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	for _, job := range s.jobs {
		if job.Name == name {
			return job.nextRun, true
		}
	}
	return time.Time{}, false
}
