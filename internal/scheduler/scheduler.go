package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"mail-triage-go/internal/config"
	"mail-triage-go/internal/mail"
	"mail-triage-go/internal/metrics"
)

// Fetcher lists the unread messages of one mailbox.
type Fetcher interface {
	FetchUnread(ctx context.Context, account string) ([]mail.InboundMessage, error)
}

// Pipeline consumes fetched messages and owns the mark-read retry sweep.
type Pipeline interface {
	Process(ctx context.Context, account string, msg mail.InboundMessage)
	RetrySweep(ctx context.Context)
}

// Scheduler drives the periodic poll cycle: fetch unread mail per account,
// process it in bounded concurrent batches, and periodically sweep the
// mark-read retry set.
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	config    *config.SchedulerConfig
	accounts  []string
	fetcher   Fetcher
	pipeline  Pipeline
	metrics   *metrics.Metrics
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	cycles    int
	isRunning bool
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.SchedulerConfig, accounts []string, fetcher Fetcher, pipeline Pipeline, metrics *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		config:   cfg,
		accounts: accounts,
		fetcher:  fetcher,
		pipeline: pipeline,
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// A previous Stop cancelled the context; poll cycles check it, so a
	// restart needs a fresh one.
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	schedule := fmt.Sprintf("@every %s", s.config.PollInterval)

	// Drop the entry left by a previous run so restarts don't stack jobs.
	s.cron.Remove(s.entryID)
	entryID, err := s.cron.AddFunc(schedule, s.pollCycle)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with poll interval: %s", s.config.PollInterval)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	// Cancel context to stop any running operations
	s.cancel()

	// Stop the cron scheduler
	ctx := s.cron.Stop()

	// Wait for all jobs to complete
	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// pollCycle is the main processing function that runs periodically
func (s *Scheduler) pollCycle() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Scheduler not running, skipping poll cycle")
		return
	}
	ctx := s.ctx
	s.mu.RUnlock()

	startTime := time.Now()
	s.metrics.PollCount.Inc()

	for _, account := range s.accounts {
		select {
		case <-ctx.Done():
			logrus.Info("Poll cycle cancelled")
			return
		default:
		}
		s.pollAccount(ctx, account)
	}

	s.mu.Lock()
	s.cycles++
	sweep := s.config.SweepEvery > 0 && s.cycles%s.config.SweepEvery == 0
	s.mu.Unlock()

	if sweep {
		s.pipeline.RetrySweep(ctx)
	}

	logrus.Infof("Poll cycle completed in %v", time.Since(startTime))
}

// pollAccount fetches one mailbox and processes its unread messages in
// batches of BatchSize, each batch concurrent, with a pause between
// batches to stay inside provider rate limits.
func (s *Scheduler) pollAccount(ctx context.Context, account string) {
	messages, err := s.fetcher.FetchUnread(ctx, account)
	if err != nil {
		logrus.Errorf("Failed to fetch unread mail for %s: %v", account, err)
		return
	}
	if len(messages) == 0 {
		return
	}

	logrus.Infof("Fetched %d unread messages for %s", len(messages), account)

	batchSize := s.config.BatchSize
	for i := 0; i < len(messages); i += batchSize {
		select {
		case <-ctx.Done():
			return
		default:
		}

		end := i + batchSize
		if end > len(messages) {
			end = len(messages)
		}

		var batch sync.WaitGroup
		for _, msg := range messages[i:end] {
			batch.Add(1)
			go func(m mail.InboundMessage) {
				defer batch.Done()
				s.pipeline.Process(ctx, account, m)
			}(msg)
		}
		batch.Wait()

		if end < len(messages) && s.config.BatchPause > 0 {
			select {
			case <-time.After(s.config.BatchPause):
			case <-ctx.Done():
				return
			}
		}
	}
}

// RunOnce runs one poll cycle immediately (for manual triggering)
func (s *Scheduler) RunOnce() error {
	if !s.IsRunning() {
		return fmt.Errorf("scheduler is not running")
	}
	logrus.Info("Running poll cycle once")
	s.pollCycle()
	return nil
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	if !s.IsRunning() {
		return time.Time{}
	}

	entry := s.cron.Entry(s.entryID)
	return entry.Next
}

// GetLastRun returns the time of the last run
func (s *Scheduler) GetLastRun() time.Time {
	if !s.IsRunning() {
		return time.Time{}
	}

	entry := s.cron.Entry(s.entryID)
	return entry.Prev
}

// Wait waits for in-flight poll cycles to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
