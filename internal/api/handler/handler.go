package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
	"github.com/cuongbtq/tolkbooking/internal/booking/lifecycle"
	"github.com/cuongbtq/tolkbooking/internal/booking/orchestrator"
	workerdomain "github.com/cuongbtq/tolkbooking/internal/worker/domain"
)

// BookingService is the orchestrator surface the HTTP layer drives
type BookingService interface {
	CreateJob(ctx context.Context, customer *domain.User, req orchestrator.CreateRequest) (*orchestrator.Result, error)
	AcceptJob(ctx context.Context, jobID int64, translator *domain.User) (*orchestrator.Result, error)
	AcceptJobByID(ctx context.Context, jobID int64, translator *domain.User) (*orchestrator.Result, error)
	CancelJob(ctx context.Context, jobID int64, actor *domain.User) (*orchestrator.Result, error)
	EndJob(ctx context.Context, jobID int64, actor *domain.User) (*orchestrator.Result, error)
	CustomerNotCall(ctx context.Context, jobID int64, actor *domain.User) (*orchestrator.Result, error)
	UpdateJob(ctx context.Context, jobID int64, actor *domain.User, req lifecycle.UpdateRequest) (*orchestrator.Result, error)
	Reopen(ctx context.Context, jobID int64, actor *domain.User) (*orchestrator.Result, error)
	ResendPush(ctx context.Context, jobID int64) (*orchestrator.Result, error)
	ResendSMS(ctx context.Context, jobID int64) (*orchestrator.Result, error)
}

// UserFinder resolves the acting user
type UserFinder interface {
	FindUser(ctx context.Context, id int64) (*domain.User, error)
}

// JobLister lists the jobs open to a translator
type JobLister interface {
	JobsForTranslator(ctx context.Context, translator *domain.User, now time.Time) ([]*domain.Job, error)
}

// CommandEnqueuer queues an operation for the worker service
type CommandEnqueuer interface {
	Enqueue(ctx context.Context, t workerdomain.CommandType, jobID int64) (*workerdomain.Command, error)
}

// HealthCheck reports whether a backing service is reachable
type HealthCheck func(ctx context.Context) error

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Bookings     BookingService
	Users        UserFinder
	Jobs         JobLister
	Commands     CommandEnqueuer
	HealthChecks map[string]HealthCheck
	Clock        func() time.Time
}

// BookingHandler handles booking HTTP requests
type BookingHandler struct {
	logger   *slog.Logger
	bookings BookingService
	users    UserFinder
	jobs     JobLister
	commands CommandEnqueuer
	clock    func() time.Time
}

// NewBookingHandler creates a new BookingHandler instance
func NewBookingHandler(deps *Dependencies) *BookingHandler {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &BookingHandler{
		logger:   deps.Logger,
		bookings: deps.Bookings,
		users:    deps.Users,
		jobs:     deps.Jobs,
		commands: deps.Commands,
		clock:    clock,
	}
}
