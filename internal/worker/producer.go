package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/tolkbooking/internal/worker/domain"
)

// Publisher sends a message body to the command exchange
type Publisher interface {
	Publish(ctx context.Context, routingKey, messageID string, body []byte) error
}

// Producer enqueues booking commands for the worker service
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new Producer
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// Enqueue publishes a command for the job and returns it
func (p *Producer) Enqueue(ctx context.Context, t domain.CommandType, jobID int64) (*domain.Command, error) {
	cmd := domain.NewCommand(t, jobID)
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	if err := p.publisher.Publish(ctx, cmd.RoutingKey(), cmd.CommandID, body); err != nil {
		return nil, fmt.Errorf("failed to publish %s for job %d: %w", t, jobID, err)
	}

	p.logger.Info("Command enqueued",
		slog.String("command_id", cmd.CommandID),
		slog.String("command", string(t)),
		slog.Int64("job_id", jobID),
	)
	return cmd, nil
}
