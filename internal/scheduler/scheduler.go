package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/RalphPichler23/twi-react-backend/internal/config"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
)

// PropertySource lists every property for a full reindex
type PropertySource interface {
	AllProperties(ctx context.Context) ([]models.Property, error)
}

// BulkIndexer writes properties to the search index
type BulkIndexer interface {
	IndexProperties(properties []models.Property) error
}

// GalleryRepairer fixes galleries that were left without a primary image
type GalleryRepairer interface {
	RepairPrimaries(ctx context.Context) (int, error)
}

// RunResult summarizes one nightly run
type RunResult struct {
	StartedAt time.Time `json:"started_at"`
	Repaired  int       `json:"repaired"`
	Indexed   int       `json:"indexed"`
	Duration  string    `json:"duration"`
}

// Scheduler runs the nightly maintenance job: repair gallery primaries, then
// push every property to the search index.
type Scheduler struct {
	cron     *cron.Cron
	config   config.SchedulerConfig
	source   PropertySource
	indexer  BulkIndexer
	repairer GalleryRepairer
	batch    int

	mu        sync.Mutex
	running   bool
	isStarted bool
	lastRun   *RunResult
}

// NewScheduler creates a new scheduler. indexer and repairer may be nil.
func NewScheduler(cfg config.SchedulerConfig, source PropertySource, indexer BulkIndexer, repairer GalleryRepairer) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		config:   cfg,
		source:   source,
		indexer:  indexer,
		repairer: repairer,
		batch:    500,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	if !s.config.ReindexEnabled {
		log.Println("[scheduler] nightly reindex is disabled in configuration")
		return nil
	}

	cronSpec := s.config.CronSpec()
	_, err := s.cron.AddFunc(cronSpec, func() {
		log.Println("[scheduler] starting nightly job")
		if _, err := s.RunNow(context.Background()); err != nil {
			log.Printf("[scheduler] nightly job failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reindex %q: %w", cronSpec, err)
	}

	s.cron.Start()
	s.mu.Lock()
	s.isStarted = true
	s.mu.Unlock()
	log.Printf("[scheduler] started reindex_time=%s cron=%q", s.config.ReindexTime, cronSpec)
	return nil
}

// Stop stops the scheduler and waits for a running job
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.isStarted
	s.isStarted = false
	s.mu.Unlock()
	if started {
		<-s.cron.Stop().Done()
		log.Println("[scheduler] stopped")
	}
}

// ErrAlreadyRunning is returned by RunNow while a run is in progress
var ErrAlreadyRunning = fmt.Errorf("reindex already running")

// RunNow executes the nightly job immediately
func (s *Scheduler) RunNow(ctx context.Context) (*RunResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	result := &RunResult{StartedAt: time.Now()}

	if s.repairer != nil {
		n, err := s.repairer.RepairPrimaries(ctx)
		if err != nil {
			log.Printf("[scheduler] gallery repair failed: %v", err)
		}
		result.Repaired = n
	}

	if s.indexer != nil {
		properties, err := s.source.AllProperties(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load properties: %w", err)
		}
		for start := 0; start < len(properties); start += s.batch {
			end := start + s.batch
			if end > len(properties) {
				end = len(properties)
			}
			if err := s.indexer.IndexProperties(properties[start:end]); err != nil {
				return nil, fmt.Errorf("failed to index properties %d-%d: %w", start, end, err)
			}
			result.Indexed += end - start
		}
	}

	result.Duration = time.Since(result.StartedAt).Round(time.Millisecond).String()
	log.Printf("[scheduler] run completed repaired=%d indexed=%d duration=%s", result.Repaired, result.Indexed, result.Duration)

	s.mu.Lock()
	s.lastRun = result
	s.mu.Unlock()
	return result, nil
}

// LastRun returns the result of the most recent completed run
func (s *Scheduler) LastRun() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
