package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	bookingdomain "github.com/cuongbtq/tolkbooking/internal/booking/domain"
	"github.com/cuongbtq/tolkbooking/internal/booking/orchestrator"
	"github.com/cuongbtq/tolkbooking/internal/worker/domain"
)

// processCommand runs one command under the command timeout and classifies the error
func (w *Worker) processCommand(ctx context.Context, cmd *domain.Command) error {
	w.logger.Info("Processing command",
		slog.String("command_id", cmd.CommandID),
		slog.String("command", string(cmd.Command)),
		slog.Int64("job_id", cmd.JobID),
	)

	cmdCtx, cancel := context.WithTimeout(ctx, w.commandTimeout)
	defer cancel()

	result, err := w.execute(cmdCtx, cmd)
	if err != nil {
		return classify(cmd, err)
	}

	if !result.OK() {
		// soft failures are final, retrying would give the same answer
		w.logger.Warn("Command finished with a failure result",
			slog.String("command_id", cmd.CommandID),
			slog.Int64("job_id", cmd.JobID),
			slog.String("message", result.Message),
		)
		return nil
	}

	w.logger.Info("Command completed",
		slog.String("command_id", cmd.CommandID),
		slog.String("command", string(cmd.Command)),
		slog.Int64("job_id", cmd.JobID),
		slog.Int("count", result.Count),
		slog.String("message", result.Message),
	)
	return nil
}

func (w *Worker) execute(ctx context.Context, cmd *domain.Command) (*orchestrator.Result, error) {
	switch cmd.Command {
	case domain.CommandResendPush:
		return w.executor.ResendPush(ctx, cmd.JobID)
	case domain.CommandResendSMS:
		return w.executor.ResendSMS(ctx, cmd.JobID)
	case domain.CommandExpire:
		return w.executor.ExpireJob(ctx, cmd.JobID)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, cmd.Command)
	}
}

// classify marks transport failures, timeouts and shutdown interruptions
// retryable. Missing jobs and everything else are final.
func classify(cmd *domain.Command, err error) error {
	wrapped := fmt.Errorf("%s job %d: %w", cmd.Command, cmd.JobID, err)

	if errors.Is(err, bookingdomain.ErrNotFound) {
		return wrapped
	}

	var terr *bookingdomain.TransportError
	if errors.As(err, &terr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewRetryableError(wrapped)
	}

	return wrapped
}
