// Package scheduler runs named maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/common"
)

// Handler is the work of one job run
type Handler func(ctx context.Context) error

// jobEntry represents a registered job with metadata
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     Handler
	cronID      cron.EntryID
	lastRun     *time.Time
	isRunning   bool
	lastError   string
}

// JobStatus is a snapshot of a registered job
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	IsRunning   bool       `json:"is_running"`
	LastError   string     `json:"last_error,omitempty"`
}

// Service owns the cron runner. Schedules use the six-field form with seconds.
type Service struct {
	cron    *cron.Cron
	logger  arbor.ILogger
	jobMu   sync.Mutex // Protects jobs map and entry state
	jobs    map[string]*jobEntry
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates a new scheduler service
func NewService(logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
		jobs:   make(map[string]*jobEntry),
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterJob adds a job. An empty schedule registers a job that only runs via RunJob.
func (s *Service) RegisterJob(name, schedule, description string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("job %s: handler cannot be nil", name)
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
	}

	if schedule != "" {
		id, err := s.cron.AddFunc(schedule, func() { s.execute(entry) })
		if err != nil {
			return fmt.Errorf("job %s: invalid schedule %q: %w", name, schedule, err)
		}
		entry.cronID = id
	}

	s.jobs[name] = entry

	s.logger.Debug().
		Str("job", name).
		Str("schedule", schedule).
		Msg("Job registered")
	return nil
}

// Start begins running scheduled jobs
func (s *Service) Start() error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.cron.Start()
	s.running = true

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for running jobs to return
func (s *Service) Stop() error {
	s.jobMu.Lock()
	if !s.running {
		s.jobMu.Unlock()
		return nil
	}
	s.running = false
	s.jobMu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// RunJob runs a registered job now and returns its error.
// A job that is already running is not started twice.
func (s *Service) RunJob(name string) error {
	s.jobMu.Lock()
	entry, ok := s.jobs[name]
	s.jobMu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return s.execute(entry)
}

func (s *Service) execute(entry *jobEntry) error {
	s.jobMu.Lock()
	if entry.isRunning {
		s.jobMu.Unlock()
		s.logger.Debug().Str("job", entry.name).Msg("Job still running, skipping")
		return nil
	}
	entry.isRunning = true
	s.wg.Add(1)
	s.jobMu.Unlock()

	var err error
	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job %s panicked: %v", entry.name, r)
			}
		}()
		err = entry.handler(s.ctx)
	}()

	s.jobMu.Lock()
	entry.isRunning = false
	entry.lastRun = &start
	entry.lastError = ""
	if err != nil {
		entry.lastError = err.Error()
	}
	s.jobMu.Unlock()
	s.wg.Done()

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("job", entry.name).
			Msg("Job failed")
	} else {
		s.logger.Debug().
			Str("job", entry.name).
			Dur("duration", time.Since(start)).
			Msg("Job completed")
	}
	return err
}

// Jobs returns the status of every registered job ordered by name
func (s *Service) Jobs() []JobStatus {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, entry := range s.jobs {
		status := JobStatus{
			Name:        entry.name,
			Schedule:    entry.schedule,
			Description: entry.description,
			LastRun:     entry.lastRun,
			IsRunning:   entry.isRunning,
			LastError:   entry.lastError,
		}
		if entry.cronID != 0 {
			if next := s.cron.Entry(entry.cronID).Next; !next.IsZero() {
				status.NextRun = &next
			}
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

// StaleIngestionSweeper is what the stale sweep job needs from the ingestion pipeline
type StaleIngestionSweeper interface {
	SweepStale(ctx context.Context) (int, error)
}

// RegisterStaleSweep schedules the sweep that fails abandoned ingestions
func (s *Service) RegisterStaleSweep(config *common.IngestionConfig, sweeper StaleIngestionSweeper) error {
	if config.SweepSchedule == "" {
		return nil
	}
	return s.RegisterJob("stale_ingestion_sweep", config.SweepSchedule, "Fail ingestions that outlived ingestion.max_duration", func(ctx context.Context) error {
		_, err := sweeper.SweepStale(ctx)
		return err
	})
}
