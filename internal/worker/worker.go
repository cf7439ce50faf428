package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/tolkbooking/internal/booking/orchestrator"
	"github.com/cuongbtq/tolkbooking/internal/worker/domain"
)

// DeliverySource hands out the command queue deliveries
type DeliverySource interface {
	Consume(consumerTag string, prefetch int) (<-chan amqp.Delivery, error)
}

// Executor runs the booking operations that can be queued
type Executor interface {
	ResendPush(ctx context.Context, jobID int64) (*orchestrator.Result, error)
	ResendSMS(ctx context.Context, jobID int64) (*orchestrator.Result, error)
	ExpireJob(ctx context.Context, jobID int64) (*orchestrator.Result, error)
}

// Config holds worker configuration
type Config struct {
	Logger         *slog.Logger
	Source         DeliverySource
	Executor       Executor
	WorkerID       string
	Concurrency    int
	PrefetchCount  int
	CommandTimeout time.Duration
}

// Worker consumes booking commands and runs them on a fixed pool of goroutines
type Worker struct {
	logger         *slog.Logger
	source         DeliverySource
	executor       Executor
	workerID       string
	concurrency    int
	prefetchCount  int
	commandTimeout time.Duration
	commandsChan   chan *domain.CommandMessage
	wg             sync.WaitGroup
	stopChan       chan struct{}
	stopOnce       sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Worker{
		logger:         cfg.Logger,
		source:         cfg.Source,
		executor:       cfg.Executor,
		workerID:       cfg.WorkerID,
		concurrency:    concurrency,
		prefetchCount:  cfg.PrefetchCount,
		commandTimeout: timeout,
		commandsChan:   make(chan *domain.CommandMessage, concurrency),
		stopChan:       make(chan struct{}),
	}
}

// Start subscribes to the command queue and processes commands until ctx is canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("command_timeout", w.commandTimeout),
	)

	deliveries, err := w.source.Consume(w.workerID, w.prefetchCount)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	w.logger.Info("Worker dispatcher exited", slog.String("worker_id", w.workerID))
	return nil
}

// Stop signals the pool and waits for in-flight commands to finish
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
