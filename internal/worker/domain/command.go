package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// CommandType names a booking operation the worker can run.
type CommandType string

const (
	CommandResendPush CommandType = "resend_push"
	CommandResendSMS  CommandType = "resend_sms"
	CommandExpire     CommandType = "expire"
)

// RoutingKeyPrefix is prepended to the command type to form the routing key.
const RoutingKeyPrefix = "booking.command."

// Command is the message body on the booking command queue
type Command struct {
	CommandID string      `json:"command_id"`
	Command   CommandType `json:"command"`
	JobID     int64       `json:"job_id"`
}

// NewCommand creates a command with a fresh id
func NewCommand(t CommandType, jobID int64) *Command {
	return &Command{
		CommandID: uuid.NewString(),
		Command:   t,
		JobID:     jobID,
	}
}

// RoutingKey returns the key the command is published under
func (c *Command) RoutingKey() string {
	return RoutingKeyPrefix + string(c.Command)
}

// Validate checks the id format, the command type and the job id
func (c *Command) Validate() error {
	if _, err := uuid.Parse(c.CommandID); err != nil {
		return fmt.Errorf("%w: command_id is not a UUID", ErrInvalidCommand)
	}
	switch c.Command {
	case CommandResendPush, CommandResendSMS, CommandExpire:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Command)
	}
	if c.JobID <= 0 {
		return fmt.Errorf("%w: job_id must be positive", ErrInvalidCommand)
	}
	return nil
}

// CommandMessage pairs a decoded command with its delivery for ACK/NACK
type CommandMessage struct {
	Command     *Command
	DeliveryTag uint64
	Redelivered bool
	Ack         func() error
	Nack        func(requeue bool) error
}
