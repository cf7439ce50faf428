package worker

import (
	"context"
	"log/slog"
	"time"

	bookingdomain "github.com/cuongbtq/tolkbooking/internal/booking/domain"
	"github.com/cuongbtq/tolkbooking/internal/booking/store"
	"github.com/cuongbtq/tolkbooking/internal/worker/domain"
)

// JobFinder lists jobs matching the criteria
type JobFinder interface {
	FilterJobs(ctx context.Context, criteria store.JobCriteria) ([]*bookingdomain.Job, error)
}

// CommandEnqueuer publishes a command for a job
type CommandEnqueuer interface {
	Enqueue(ctx context.Context, t domain.CommandType, jobID int64) (*domain.Command, error)
}

// SweeperConfig holds expiry sweeper configuration
type SweeperConfig struct {
	Finder   JobFinder
	Enqueuer CommandEnqueuer
	Interval time.Duration
	Clock    func() time.Time
	Logger   *slog.Logger
}

// Sweeper periodically queues expire commands for pending jobs past will_expire_at
type Sweeper struct {
	finder   JobFinder
	enqueuer CommandEnqueuer
	interval time.Duration
	clock    func() time.Time
	logger   *slog.Logger
}

// NewSweeper creates a new Sweeper
func NewSweeper(cfg *SweeperConfig) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{
		finder:   cfg.Finder,
		enqueuer: cfg.Enqueuer,
		interval: interval,
		clock:    clock,
		logger:   cfg.Logger,
	}
}

// Start sweeps once, then on every tick until ctx is canceled
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Expiry sweeper started", slog.Duration("interval", s.interval))
	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep queues an expire command for each overdue pending job and returns how
// many were queued. Jobs that fail to enqueue are picked up on the next sweep.
func (s *Sweeper) Sweep(ctx context.Context) int {
	jobs, err := s.finder.FilterJobs(ctx, store.JobCriteria{
		Statuses:      []bookingdomain.JobStatus{bookingdomain.StatusPending},
		ExpiresBefore: s.clock(),
	})
	if err != nil {
		s.logger.Error("Failed to list expired jobs", slog.Any("error", err))
		return 0
	}
	if len(jobs) == 0 {
		return 0
	}

	queued := 0
	for _, job := range jobs {
		if _, err := s.enqueuer.Enqueue(ctx, domain.CommandExpire, job.ID); err != nil {
			s.logger.Error("Failed to enqueue expire command",
				slog.Int64("job_id", job.ID),
				slog.Any("error", err),
			)
			continue
		}
		queued++
	}

	s.logger.Info("Expiry sweep finished",
		slog.Int("found", len(jobs)),
		slog.Int("queued", queued),
	)
	return queued
}
