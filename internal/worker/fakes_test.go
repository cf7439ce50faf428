package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/cuongbtq/tolkbooking/internal/booking/orchestrator"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAcknowledger records how each delivery tag was settled
type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  []uint64
	requeue map[uint64]bool
	settled chan uint64
}

func newFakeAcknowledger() *fakeAcknowledger {
	return &fakeAcknowledger{
		requeue: make(map[uint64]bool),
		settled: make(chan uint64, 16),
	}
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	a.acked = append(a.acked, tag)
	a.mu.Unlock()
	a.settled <- tag
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	a.nacked = append(a.nacked, tag)
	a.requeue[tag] = requeue
	a.mu.Unlock()
	a.settled <- tag
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

// fakeExecutor returns canned results per command
type fakeExecutor struct {
	mu     sync.Mutex
	calls  []string
	result *orchestrator.Result
	err    error
}

func (e *fakeExecutor) record(name string) (*orchestrator.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, name)
	if e.err != nil {
		return nil, e.err
	}
	if e.result != nil {
		return e.result, nil
	}
	return &orchestrator.Result{Status: orchestrator.StatusSuccess}, nil
}

func (e *fakeExecutor) ResendPush(ctx context.Context, jobID int64) (*orchestrator.Result, error) {
	return e.record("resend_push")
}

func (e *fakeExecutor) ResendSMS(ctx context.Context, jobID int64) (*orchestrator.Result, error) {
	return e.record("resend_sms")
}

func (e *fakeExecutor) ExpireJob(ctx context.Context, jobID int64) (*orchestrator.Result, error) {
	return e.record("expire")
}

type published struct {
	routingKey string
	messageID  string
	body       []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{routingKey: routingKey, messageID: messageID, body: body})
	return nil
}
