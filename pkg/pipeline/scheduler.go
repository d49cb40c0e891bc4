package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/quartzlabs/wikiexport/pkg/job"
)

// SchedulerConfig tunes the periodic driver.
type SchedulerConfig struct {
	// Schedule is a cron expression or @every duration driving ticks.
	Schedule string

	// Cap bounds how many jobs one tick selects for dispatch.
	Cap int
}

// Scheduler drives the pipeline: on every tick it sweeps expired jobs,
// selects up to Cap in-progress jobs oldest first, and advances each by
// exactly one stage. Stage execution is asynchronous; the tick never
// blocks on a stage finishing.
type Scheduler struct {
	cfg      SchedulerConfig
	pipeline *Pipeline
	logger   *zap.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	// wg tracks in-flight stage goroutines so Stop can drain them.
	wg sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// DefaultSchedule is used when no schedule is configured.
const DefaultSchedule = "@every 30s"

// DefaultCap is the default per-tick dispatch bound.
const DefaultCap = 4

// NewScheduler constructs a stopped scheduler.
func NewScheduler(cfg SchedulerConfig, p *Pipeline, logger *zap.Logger) *Scheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultCap
	}
	return &Scheduler{cfg: cfg, pipeline: p, logger: logger}
}

// Start begins ticking on the configured schedule. ctx bounds the
// lifetime of every dispatched stage.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already started")
	}

	c := cron.New()
	id, err := c.AddFunc(s.cfg.Schedule, func() { s.Tick(ctx) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron = c
	s.entryID = id
	s.running = true
	c.Start()

	s.logger.Info("scheduler started",
		zap.String("schedule", s.cfg.Schedule),
		zap.Int("cap", s.cfg.Cap))
	return nil
}

// Stop halts ticking and waits for in-flight stages to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	s.mu.Unlock()

	<-c.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Tick runs one scheduling pass. Exported so tests and the CLI can
// drive the pipeline without a timer.
func (s *Scheduler) Tick(ctx context.Context) {
	now := time.Now().UTC()
	s.pipeline.SweepExpired(ctx, now)

	jobs, err := s.pipeline.store.ListInProgress(ctx, s.cfg.Cap)
	if err != nil {
		s.logger.Error("tick: list in-progress jobs failed", zap.Error(err))
		return
	}
	if s.pipeline.telemetry != nil {
		s.pipeline.telemetry.SetInFlight(len(jobs))
	}

	for _, j := range jobs {
		s.advance(ctx, j)
	}
}

// advance applies the per-job tick rules: restart rewind first, then
// the re-entrancy guard, then a single asynchronous stage dispatch.
func (s *Scheduler) advance(ctx context.Context, j *job.ExportJob) {
	log := s.logger.With(
		zap.String("job_id", j.ID),
		zap.String("status", string(j.Status)))

	if j.RestartRequested {
		log.Info("restart requested, rewinding job")
		s.pipeline.Cleanup(ctx, j, job.ErrRestarted)
		if err := s.pipeline.store.ResetForRestart(ctx, j.ID); err != nil {
			log.Error("reset for restart failed", zap.Error(err))
		}
		// The rewound job is picked up from initializing on the next
		// tick; no notification is emitted for a restart.
		return
	}

	// The stage dispatched on an earlier tick has not advanced the
	// persisted status yet; dispatching again would run it twice.
	if j.Status == j.StatusOnPrevTick {
		log.Debug("stage still running, skipping")
		return
	}

	if err := s.pipeline.store.MarkObserved(ctx, j.ID, j.Status); err != nil {
		log.Error("mark observed failed", zap.Error(err))
		return
	}
	j.StatusOnPrevTick = j.Status

	if s.pipeline.telemetry != nil {
		s.pipeline.telemetry.JobDispatched(string(j.Status))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("stage panicked", zap.Any("panic", r))
			}
		}()
		// Dispatch settles the job itself; the error is tick-local.
		if err := s.pipeline.Dispatch(ctx, j); err != nil {
			log.Debug("stage returned error", zap.Error(err))
		}
	}()
}
