package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/tolkbooking/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop runs commands from commandsChan and settles each delivery
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started", slog.String("worker_name", workerName))

	for {
		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg := <-w.commandsChan:
			w.settle(workerName, msg, w.processCommand(ctx, msg.Command))
		}
	}
}

// settle ACKs a processed command or NACKs it, requeueing only retryable failures
func (w *Worker) settle(workerName string, msg *domain.CommandMessage, err error) {
	attrs := []any{
		slog.String("worker_name", workerName),
		slog.String("command_id", msg.Command.CommandID),
		slog.Int64("job_id", msg.Command.JobID),
	}

	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			w.logger.Error("Failed to ACK message", append(attrs, slog.Any("error", ackErr))...)
		}
		return
	}

	requeue := shouldRequeue(err, msg.Redelivered)
	w.logger.Error("Command processing failed",
		append(attrs, slog.Any("error", err), slog.Bool("requeue", requeue))...,
	)
	if nackErr := msg.Nack(requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message", append(attrs, slog.Any("error", nackErr))...)
	}
}

// shouldRequeue requeues retryable errors once. A redelivered command that fails
// again is dropped.
func shouldRequeue(err error, redelivered bool) bool {
	if errors.Is(err, domain.ErrInvalidCommand) || errors.Is(err, domain.ErrUnknownCommand) {
		return false
	}

	var retryableErr *domain.RetryableError
	if errors.As(err, &retryableErr) {
		return !redelivered
	}

	return false
}
