// Package orchestrator exposes the booking operations: create, accept, cancel, end, reopen,
// update and the notification resends. Every write runs under the store's per-job lock and
// notifications are delivered after commit.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
	"github.com/cuongbtq/tolkbooking/internal/booking/lifecycle"
	"github.com/cuongbtq/tolkbooking/internal/booking/notify"
	"github.com/cuongbtq/tolkbooking/internal/booking/store"
)

const (
	auditCreated         = "job.created"
	auditAccepted        = "job.accepted"
	auditCancelled       = "job.cancelled"
	auditReleased        = "job.released"
	auditEnded           = "job.ended"
	auditCustomerNotCall = "job.customer_not_call"
	auditReopened        = "job.reopened"
	auditExpired         = "job.expired"
)

// Notifier delivers intents and runs the resend operations.
type Notifier interface {
	Dispatch(ctx context.Context, intents ...notify.Intent) notify.Report
	Broadcast(ctx context.Context, b *notify.Broadcast) (int, error)
	SendSMSToTranslators(ctx context.Context, job *domain.Job) (int, error)
	Texts() notify.Texts
}

// Config holds orchestrator dependencies
type Config struct {
	Store     store.Store
	Lifecycle *lifecycle.Service
	Notifier  Notifier
	Languages notify.LanguageNamer
	// Location is where customers enter due dates. Defaults to UTC.
	Location *time.Location
	Clock    func() time.Time
	Logger   *slog.Logger
}

// Orchestrator is the entry point of the booking core.
type Orchestrator struct {
	store     store.Store
	lifecycle *lifecycle.Service
	notifier  Notifier
	languages notify.LanguageNamer
	location  *time.Location
	clock     func() time.Time
	logger    *slog.Logger
}

// New creates a new orchestrator
func New(cfg *Config) *Orchestrator {
	o := &Orchestrator{
		store:     cfg.Store,
		lifecycle: cfg.Lifecycle,
		notifier:  cfg.Notifier,
		languages: cfg.Languages,
		location:  cfg.Location,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
	if o.location == nil {
		o.location = time.UTC
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// AcceptJob assigns the pending job to translator.
func (o *Orchestrator) AcceptJob(ctx context.Context, jobID int64, translator *domain.User) (*Result, error) {
	return o.accept(ctx, jobID, translator, false)
}

// AcceptJobByID is AcceptJob for callers that only know the job id; on success the
// result carries the acceptance message and the customer also gets a push.
func (o *Orchestrator) AcceptJobByID(ctx context.Context, jobID int64, translator *domain.User) (*Result, error) {
	return o.accept(ctx, jobID, translator, true)
}

func (o *Orchestrator) accept(ctx context.Context, jobID int64, translator *domain.User, byID bool) (*Result, error) {
	if translator == nil || translator.Type != domain.UserTranslator {
		return &Result{Status: StatusFail, Field: "translator", Message: "only translators can accept bookings"}, nil
	}
	now := o.clock()

	var job *domain.Job
	var customer *domain.User
	err := o.store.WithJobLock(ctx, jobID, func(ctx context.Context, repo store.Repository) error {
		var err error
		if job, err = repo.FindJob(ctx, jobID); err != nil {
			return err
		}
		if err := o.checkDoubleBooking(ctx, repo, job, translator.ID); err != nil {
			return err
		}

		taken := domain.NewConflictError(msgTaken(o.language(ctx, job.FromLanguageID), job.Duration, o.due(job)))
		if job.Status != domain.StatusPending {
			return taken
		}
		err = repo.CreateAssignment(ctx, &domain.Assignment{JobID: job.ID, UserID: translator.ID, CreatedAt: now})
		if errors.Is(err, domain.ErrAlreadyAssigned) {
			return taken
		}
		if err != nil {
			return fmt.Errorf("failed to create assignment: %w", err)
		}

		from := job.Status
		job.Status = domain.StatusAssigned
		job.UpdatedAt = now
		if err := repo.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		if customer, err = repo.FindUser(ctx, job.CustomerID); err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}
		return repo.AppendAudit(ctx, domain.NewAuditEntry(translator.ID, job.ID, auditAccepted, []domain.DiffEntry{
			{Field: "status", Old: string(from), New: string(job.Status)},
			{Field: "translator", New: translator.Email},
		}, now))
	})
	if err != nil {
		return softResult(err)
	}

	o.logger.Info("Job accepted",
		slog.Int64("job_id", job.ID),
		slog.Int64("translator_id", translator.ID),
	)

	intents := []notify.Intent{
		notify.JobAcceptedEmail(customer, job),
		notify.NewPush(notify.MsgAcceptConfirmed, job, translator),
	}
	res := success(job, "")
	if byID {
		intents = append(intents, notify.NewPush(notify.MsgBookingAccepted, job, customer))
		res.Message = o.notifier.Texts().Accepted(job, o.language(ctx, job.FromLanguageID))
	}
	o.notifier.Dispatch(ctx, intents...)
	return res, nil
}

// checkDoubleBooking fails when translator already holds an active assignment overlapping job.
func (o *Orchestrator) checkDoubleBooking(ctx context.Context, repo store.Repository, job *domain.Job, translatorID int64) error {
	held, err := repo.FilterAssignments(ctx, store.AssignmentCriteria{UserID: translatorID, ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("failed to load assignments: %w", err)
	}
	for _, a := range held {
		if a.JobID == job.ID {
			continue
		}
		other, err := repo.FindJob(ctx, a.JobID)
		if err != nil {
			return fmt.Errorf("failed to load assigned job: %w", err)
		}
		if domain.Overlaps(other, job) {
			return domain.NewConflictError(msgDoubleBooked(o.due(job)))
		}
	}
	return nil
}

// CancelJob withdraws a booking on behalf of actor. Customers withdraw the booking itself;
// translators and staff release the assignment so the job goes back on the market.
func (o *Orchestrator) CancelJob(ctx context.Context, jobID int64, actor *domain.User) (*Result, error) {
	if actor == nil {
		return nil, domain.NewValidationError("actor", "missing")
	}
	if actor.Type == domain.UserCustomer {
		return o.withdraw(ctx, jobID, actor)
	}
	return o.release(ctx, jobID, actor)
}

func (o *Orchestrator) withdraw(ctx context.Context, jobID int64, customer *domain.User) (*Result, error) {
	now := o.clock()

	var job *domain.Job
	var translator *domain.User
	err := o.store.WithJobLock(ctx, jobID, func(ctx context.Context, repo store.Repository) error {
		var err error
		if job, err = repo.FindJob(ctx, jobID); err != nil {
			return err
		}
		if job.CustomerID != customer.ID {
			return domain.NewConflictError(msgNotCancellable)
		}
		if job.Status != domain.StatusPending && job.Status != domain.StatusAssigned {
			return domain.NewConflictError(msgNotCancellable)
		}

		active, err := repo.FindActiveAssignment(ctx, jobID)
		if err != nil {
			return err
		}
		if active != nil {
			if translator, err = repo.FindUser(ctx, active.UserID); err != nil {
				return fmt.Errorf("failed to load translator: %w", err)
			}
			cancelAt := now
			active.CancelAt = &cancelAt
			if err := repo.SaveAssignment(ctx, active); err != nil {
				return fmt.Errorf("failed to cancel assignment: %w", err)
			}
		}

		from := job.Status
		withdrawAt := now
		job.WithdrawAt = &withdrawAt
		job.Status = domain.CustomerWithdrawStatus(job.Due, now)
		job.UpdatedAt = now
		if err := repo.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		return repo.AppendAudit(ctx, domain.NewAuditEntry(customer.ID, jobID, auditCancelled, []domain.DiffEntry{
			{Field: "status", Old: string(from), New: string(job.Status)},
		}, now))
	})
	if err != nil {
		return softResult(err)
	}

	o.logger.Info("Job withdrawn by customer",
		slog.Int64("job_id", jobID),
		slog.String("status", string(job.Status)),
	)

	if translator != nil {
		o.notifier.Dispatch(ctx, notify.NewPush(notify.MsgCustomerCancelled, job, translator))
	}
	return success(job, ""), nil
}

func (o *Orchestrator) release(ctx context.Context, jobID int64, actor *domain.User) (*Result, error) {
	now := o.clock()

	var (
		job          *domain.Job
		customer     *domain.User
		translatorID int64
	)
	err := o.store.WithJobLock(ctx, jobID, func(ctx context.Context, repo store.Repository) error {
		var err error
		if job, err = repo.FindJob(ctx, jobID); err != nil {
			return err
		}
		active, err := repo.FindActiveAssignment(ctx, jobID)
		if err != nil {
			return err
		}
		if active == nil {
			return domain.NewConflictError(msgNotCancellable)
		}
		if actor.Type == domain.UserTranslator && active.UserID != actor.ID {
			return domain.NewConflictError(msgNotAssignee)
		}
		if job.Due.Sub(now) <= domain.CancelWindow {
			return domain.NewConflictError(msgCancelWithin24)
		}

		cancelAt := now
		active.CancelAt = &cancelAt
		if err := repo.SaveAssignment(ctx, active); err != nil {
			return fmt.Errorf("failed to cancel assignment: %w", err)
		}
		translatorID = active.UserID

		from := job.Status
		job.Status = domain.StatusPending
		job.CreatedAt = now
		job.WillExpireAt = domain.WillExpireAt(job.Due, now)
		job.UpdatedAt = now
		if err := repo.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		if customer, err = repo.FindUser(ctx, job.CustomerID); err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}
		return repo.AppendAudit(ctx, domain.NewAuditEntry(actor.ID, jobID, auditReleased, []domain.DiffEntry{
			{Field: "status", Old: string(from), New: string(job.Status)},
			{Field: "translator", Old: strconv.FormatInt(translatorID, 10)},
		}, now))
	})
	if err != nil {
		return softResult(err)
	}

	o.logger.Info("Job released by translator",
		slog.Int64("job_id", jobID),
		slog.Int64("translator_id", translatorID),
		slog.Int64("actor_id", actor.ID),
	)

	o.notifier.Dispatch(ctx,
		notify.NewPush(notify.MsgTranslatorCancelled, job, customer),
		notify.NewBroadcast(job, translatorID),
	)
	return success(job, ""), nil
}

// EndJob completes a started session. Jobs that are not started are left untouched.
func (o *Orchestrator) EndJob(ctx context.Context, jobID int64, actor *domain.User) (*Result, error) {
	now := o.clock()

	var (
		job        *domain.Job
		customer   *domain.User
		translator *domain.User
		ended      bool
	)
	err := o.store.WithJobLock(ctx, jobID, func(ctx context.Context, repo store.Repository) error {
		var err error
		if job, err = repo.FindJob(ctx, jobID); err != nil {
			return err
		}
		if job.Status != domain.StatusStarted {
			return nil
		}

		active, err := repo.FindActiveAssignment(ctx, jobID)
		if err != nil {
			return err
		}
		if active != nil {
			completedAt, by := now, actorID(actor)
			active.CompletedAt = &completedAt
			active.CompletedBy = &by
			if err := repo.SaveAssignment(ctx, active); err != nil {
				return fmt.Errorf("failed to complete assignment: %w", err)
			}
			if translator, err = repo.FindUser(ctx, active.UserID); err != nil {
				return fmt.Errorf("failed to load translator: %w", err)
			}
		}

		endAt := now
		job.EndAt = &endAt
		job.SessionTime = domain.FormatClock(now.Sub(job.Due))
		job.Status = domain.StatusCompleted
		job.UpdatedAt = now
		if err := repo.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		if customer, err = repo.FindUser(ctx, job.CustomerID); err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}
		ended = true
		return repo.AppendAudit(ctx, domain.NewAuditEntry(actorID(actor), jobID, auditEnded, []domain.DiffEntry{
			{Field: "status", Old: string(domain.StatusStarted), New: string(domain.StatusCompleted)},
			{Field: "session_time", New: job.SessionTime},
		}, now))
	})
	if err != nil {
		return softResult(err)
	}
	if !ended {
		return success(job, ""), nil
	}

	session := domain.FormatSessionTime(now.Sub(job.Due))
	intents := []notify.Intent{notify.SessionEndedEmail(customer, job, session, domain.ForTextInvoice)}
	if translator != nil {
		intents = append(intents, notify.SessionEndedEmail(translator, job, session, domain.ForTextPayroll))
	}
	o.notifier.Dispatch(ctx, intents...)
	return success(job, ""), nil
}

// CustomerNotCall records that the customer never showed up. Nobody is notified.
func (o *Orchestrator) CustomerNotCall(ctx context.Context, jobID int64, actor *domain.User) (*Result, error) {
	now := o.clock()

	var job *domain.Job
	err := o.store.WithJobLock(ctx, jobID, func(ctx context.Context, repo store.Repository) error {
		var err error
		if job, err = repo.FindJob(ctx, jobID); err != nil {
			return err
		}
		if job.Status != domain.StatusAssigned && job.Status != domain.StatusStarted {
			return domain.NewConflictError(msgNotStarted)
		}

		active, err := repo.FindActiveAssignment(ctx, jobID)
		if err != nil {
			return err
		}
		if active != nil {
			completedAt := now
			active.CompletedAt = &completedAt
			if err := repo.SaveAssignment(ctx, active); err != nil {
				return fmt.Errorf("failed to complete assignment: %w", err)
			}
		}

		from := job.Status
		endAt := now
		job.EndAt = &endAt
		job.Status = domain.StatusNotCarriedOutCustomer
		job.UpdatedAt = now
		if err := repo.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		return repo.AppendAudit(ctx, domain.NewAuditEntry(actorID(actor), jobID, auditCustomerNotCall, []domain.DiffEntry{
			{Field: "status", Old: string(from), New: string(job.Status)},
		}, now))
	})
	if err != nil {
		return softResult(err)
	}
	return success(job, ""), nil
}

// UpdateJob applies an admin edit through the lifecycle table.
func (o *Orchestrator) UpdateJob(ctx context.Context, jobID int64, actor *domain.User, req lifecycle.UpdateRequest) (*Result, error) {
	res, err := o.lifecycle.Update(ctx, jobID, actor, req)
	if err != nil {
		return softResult(err)
	}
	message := "Updated"
	if !res.Changed() {
		message = "No changes"
	}
	return success(res.Job, message), nil
}

// Reopen puts a job back on the market. A timed-out job is copied into a new booking;
// any other job is reset in place.
func (o *Orchestrator) Reopen(ctx context.Context, jobID int64, actor *domain.User) (*Result, error) {
	if actor == nil {
		return softResult(domain.NewValidationError("actor", "missing"))
	}
	now := o.clock()

	var target *domain.Job
	err := o.store.WithJobLock(ctx, jobID, func(ctx context.Context, repo store.Repository) error {
		job, err := repo.FindJob(ctx, jobID)
		if err != nil {
			return err
		}

		active, err := repo.FindActiveAssignment(ctx, jobID)
		if err != nil {
			return err
		}
		if active != nil {
			cancelAt := now
			active.CancelAt = &cancelAt
			if err := repo.SaveAssignment(ctx, active); err != nil {
				return fmt.Errorf("failed to cancel assignment: %w", err)
			}
		}

		if job.Status == domain.StatusTimedOut {
			target = reopenedCopy(job, now)
			if err := repo.CreateJob(ctx, target); err != nil {
				return fmt.Errorf("failed to create job: %w", err)
			}
		} else {
			target = job
			target.Status = domain.StatusPending
			target.CreatedAt = now
			target.UpdatedAt = now
			target.WillExpireAt = domain.WillExpireAt(job.Due, now)
			if err := repo.SaveJob(ctx, target); err != nil {
				return fmt.Errorf("failed to save job: %w", err)
			}
		}

		cancelAt := now
		placeholder := &domain.Assignment{JobID: target.ID, UserID: actor.ID, CreatedAt: now, CancelAt: &cancelAt}
		if err := repo.CreateAssignment(ctx, placeholder); err != nil {
			return fmt.Errorf("failed to record reopening: %w", err)
		}

		return repo.AppendAudit(ctx, domain.NewAuditEntry(actor.ID, jobID, auditReopened, []domain.DiffEntry{
			{Field: "status", Old: string(job.Status), New: string(domain.StatusPending)},
			{Field: "job_id", Old: strconv.FormatInt(jobID, 10), New: strconv.FormatInt(target.ID, 10)},
		}, now))
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		o.logger.Error("Failed to reopen job",
			slog.Int64("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return fail(msgTryAgain), nil
	}

	o.logger.Info("Job reopened",
		slog.Int64("job_id", jobID),
		slog.Int64("reopened_id", target.ID),
	)

	o.notifier.Dispatch(ctx, notify.NewBroadcast(target))
	return success(target, msgReopened), nil
}

func reopenedCopy(job *domain.Job, now time.Time) *domain.Job {
	c := job.Clone()
	c.ID = 0
	c.Status = domain.StatusPending
	c.CreatedAt = now
	c.UpdatedAt = now
	c.WillExpireAt = domain.WillExpireAt(job.Due, now)
	c.AdminComments = reopenComment(job.ID)
	c.SessionTime = ""
	c.EndAt = nil
	c.WithdrawAt = nil
	c.EmailSent = false
	c.EmailSentToVirpal = false
	c.Cust16HourEmail = false
	c.Cust48HourEmail = false
	return c
}

// ResendPush broadcasts the job again. Delivery errors are returned.
func (o *Orchestrator) ResendPush(ctx context.Context, jobID int64) (*Result, error) {
	job, err := o.store.FindJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	n, err := o.notifier.Broadcast(ctx, notify.NewBroadcast(job))
	if err != nil {
		return softResult(err)
	}
	return &Result{Status: StatusSuccess, Message: "Push sent", Job: job, Count: n}, nil
}

// ResendSMS texts every eligible translator about the job. Delivery errors are returned.
func (o *Orchestrator) ResendSMS(ctx context.Context, jobID int64) (*Result, error) {
	job, err := o.store.FindJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	n, err := o.notifier.SendSMSToTranslators(ctx, job)
	if err != nil {
		return softResult(err)
	}
	return &Result{Status: StatusSuccess, Message: "SMS sent", Job: job, Count: n}, nil
}

// ExpireJob times out a pending job that nobody accepted before will_expire_at.
func (o *Orchestrator) ExpireJob(ctx context.Context, jobID int64) (*Result, error) {
	now := o.clock()

	var (
		job      *domain.Job
		customer *domain.User
		expired  bool
	)
	err := o.store.WithJobLock(ctx, jobID, func(ctx context.Context, repo store.Repository) error {
		var err error
		if job, err = repo.FindJob(ctx, jobID); err != nil {
			return err
		}
		if job.Status != domain.StatusPending || now.Before(job.WillExpireAt) {
			return nil
		}

		job.Status = domain.StatusTimedOut
		job.UpdatedAt = now
		if err := repo.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		if customer, err = repo.FindUser(ctx, job.CustomerID); err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}
		expired = true
		return repo.AppendAudit(ctx, domain.NewAuditEntry(0, jobID, auditExpired, []domain.DiffEntry{
			{Field: "status", Old: string(domain.StatusPending), New: string(domain.StatusTimedOut)},
		}, now))
	})
	if err != nil {
		return softResult(err)
	}
	if !expired {
		return &Result{Status: StatusSuccess, Message: msgNotExpired, Job: job}, nil
	}

	o.logger.Info("Job expired", slog.Int64("job_id", jobID))
	o.notifier.Dispatch(ctx, notify.NewPush(notify.MsgJobExpired, job, customer))
	return success(job, ""), nil
}

// due formats the job time the way user facing messages show it.
func (o *Orchestrator) due(job *domain.Job) string {
	return o.notifier.Texts().Due(job)
}

func (o *Orchestrator) language(ctx context.Context, id int64) string {
	if o.languages != nil {
		if name, err := o.languages.Name(ctx, id); err == nil && name != "" {
			return name
		}
	}
	return strconv.FormatInt(id, 10)
}

func actorID(u *domain.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}
