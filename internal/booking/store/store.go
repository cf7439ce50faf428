// Package store defines the entity repository the booking core persists through.
package store

import (
	"context"
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

// UserCriteria narrows the translator candidate pool. Zero values mean "any".
type UserCriteria struct {
	Type           domain.UserType
	TranslatorType domain.TranslatorType
	LanguageID     int64
	EnabledOnly    bool
}

// JobCriteria narrows jobs for the translator-side view.
type JobCriteria struct {
	Statuses      []domain.JobStatus
	JobType       domain.JobType
	LanguageIDs   []int64
	DueAfter      time.Time
	// ExpiresBefore selects jobs whose will_expire_at is before the given time.
	ExpiresBefore time.Time
}

// AssignmentCriteria selects assignments by owner and job.
type AssignmentCriteria struct {
	UserID     int64
	JobID      int64
	ActiveOnly bool
}

// Repository is find/filter/save/create over the booking entities.
// Find methods return an error wrapping domain.ErrNotFound for unknown ids.
type Repository interface {
	FindJob(ctx context.Context, id int64) (*domain.Job, error)
	FindUser(ctx context.Context, id int64) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	// FindActiveAssignment returns nil without error when the job has no active assignment.
	FindActiveAssignment(ctx context.Context, jobID int64) (*domain.Assignment, error)
	// FindLatestAssignment returns the most recent assignment of any state, or nil.
	FindLatestAssignment(ctx context.Context, jobID int64) (*domain.Assignment, error)

	FilterUsers(ctx context.Context, criteria UserCriteria) ([]*domain.User, error)
	FilterJobs(ctx context.Context, criteria JobCriteria) ([]*domain.Job, error)
	FilterAssignments(ctx context.Context, criteria AssignmentCriteria) ([]*domain.Assignment, error)
	Blacklist(ctx context.Context, customerID int64) ([]int64, error)
	LanguageName(ctx context.Context, languageID int64) (string, error)

	CreateJob(ctx context.Context, job *domain.Job) error
	SaveJob(ctx context.Context, job *domain.Job) error
	// CreateAssignment fails with domain.ErrAlreadyAssigned when an active assignment exists.
	CreateAssignment(ctx context.Context, a *domain.Assignment) error
	SaveAssignment(ctx context.Context, a *domain.Assignment) error
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error
}

// Store is a Repository that can serialize work per job.
type Store interface {
	Repository

	// WithJobLock runs fn in one transaction holding the job's row lock.
	// Writes made through repo are committed only if fn returns nil.
	WithJobLock(ctx context.Context, jobID int64, fn func(ctx context.Context, repo Repository) error) error
}
