package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/tolkbooking/internal/worker/domain"
)

// startMessageDispatcher decodes deliveries and hands them to the worker pool.
// It returns when ctx is canceled, Stop is called or the delivery channel closes.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case <-w.stopChan:
			w.logger.Info("Message dispatcher stopped - stopChan closed")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			msg, ok := w.decode(delivery)
			if !ok {
				continue
			}

			select {
			case w.commandsChan <- msg:
				w.logger.Debug("Command dispatched to worker pool",
					slog.String("command_id", msg.Command.CommandID),
					slog.Uint64("delivery_tag", msg.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching command")
				// hand it back so another consumer can pick it up
				if nackErr := msg.Nack(true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.Any("error", nackErr),
					)
				}
				return
			}
		}
	}
}

// decode parses and validates a delivery. Malformed messages are NACKed
// without requeue and reported as not ok.
func (w *Worker) decode(delivery amqp.Delivery) (*domain.CommandMessage, bool) {
	var cmd domain.Command
	err := json.Unmarshal(delivery.Body, &cmd)
	if err == nil {
		err = cmd.Validate()
	}
	if err != nil {
		w.logger.Error("Rejecting malformed command",
			slog.Any("error", err),
			slog.String("body", string(delivery.Body)),
		)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			w.logger.Error("Failed to NACK malformed message",
				slog.Any("error", nackErr),
			)
		}
		return nil, false
	}

	return &domain.CommandMessage{
		Command:     &cmd,
		DeliveryTag: delivery.DeliveryTag,
		Redelivered: delivery.Redelivered,
		Ack:         func() error { return delivery.Ack(false) },
		Nack:        func(requeue bool) error { return delivery.Nack(false, requeue) },
	}, true
}
