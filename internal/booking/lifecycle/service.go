package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
	"github.com/cuongbtq/tolkbooking/internal/booking/notify"
	"github.com/cuongbtq/tolkbooking/internal/booking/store"
)

const auditActionUpdate = "job.updated"

// Dispatcher delivers notification intents after a change is committed.
type Dispatcher interface {
	Dispatch(ctx context.Context, intents ...notify.Intent) notify.Report
}

// UpdateRequest is an admin edit of a job. Zero values leave the field unchanged.
type UpdateRequest struct {
	Status          domain.JobStatus
	AdminComment    string
	SessionTime     string
	Due             *time.Time
	FromLanguageID  int64
	TranslatorID    int64
	TranslatorEmail string
	Reference       *string
}

// UpdateResult describes a committed update.
type UpdateResult struct {
	Job     *domain.Job
	Status  Outcome
	Diff    []domain.DiffEntry
	Notices notify.Report
}

// Changed reports whether anything was persisted.
func (r *UpdateResult) Changed() bool {
	return len(r.Diff) > 0
}

// Service runs composite job updates: translator, due and language sub-changes plus one
// status transition, persisted atomically and notified after commit.
type Service struct {
	store    store.Store
	machine  *Machine
	notifier Dispatcher
	clock    func() time.Time
	logger   *slog.Logger
}

// NewService creates a new lifecycle service
func NewService(st store.Store, notifier Dispatcher, clock func() time.Time, logger *slog.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:    st,
		machine:  NewMachine(),
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// Machine exposes the transition table engine.
func (s *Service) Machine() *Machine {
	return s.machine
}

// parties are the users notified about an update.
type parties struct {
	customer      *domain.User
	oldTranslator *domain.User
	newTranslator *domain.User
	translator    *domain.User
}

type subChanges struct {
	translator bool
	due        bool
	oldDue     time.Time
	language   bool
	oldLang    int64
}

// Update applies req to the job as actor.
func (s *Service) Update(ctx context.Context, jobID int64, actor *domain.User, req UpdateRequest) (*UpdateResult, error) {
	now := s.clock()
	res := &UpdateResult{}
	var (
		p   parties
		sub subChanges
	)

	err := s.store.WithJobLock(ctx, jobID, func(ctx context.Context, repo store.Repository) error {
		job, err := repo.FindJob(ctx, jobID)
		if err != nil {
			return err
		}
		if p.customer, err = repo.FindUser(ctx, job.CustomerID); err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}

		current, err := currentAssignment(ctx, repo, jobID)
		if err != nil {
			return err
		}
		if current != nil {
			if p.oldTranslator, err = repo.FindUser(ctx, current.UserID); err != nil {
				return fmt.Errorf("failed to load translator: %w", err)
			}
		}
		p.translator = p.oldTranslator

		var diff []domain.DiffEntry

		newID, err := resolveTranslator(ctx, repo, req)
		if err != nil {
			return err
		}
		if newID != 0 && (current == nil || current.UserID != newID) {
			entry, newTr, err := s.reassign(ctx, repo, job, current, p.oldTranslator, newID, now)
			if err != nil {
				return err
			}
			diff = append(diff, entry)
			p.newTranslator, p.translator = newTr, newTr
			sub.translator = true
		}

		if req.Due != nil && !req.Due.Equal(job.Due) {
			sub.due, sub.oldDue = true, job.Due
			diff = append(diff, domain.DiffEntry{
				Field: "due",
				Old:   job.Due.Format(time.RFC3339),
				New:   req.Due.Format(time.RFC3339),
			})
			job.Due = *req.Due
			job.WillExpireAt = domain.WillExpireAt(job.Due, job.CreatedAt)
		}

		if req.FromLanguageID != 0 && req.FromLanguageID != job.FromLanguageID {
			sub.language, sub.oldLang = true, job.FromLanguageID
			diff = append(diff, domain.DiffEntry{
				Field: "language",
				Old:   languageLabel(ctx, repo, job.FromLanguageID),
				New:   languageLabel(ctx, repo, req.FromLanguageID),
			})
			job.FromLanguageID = req.FromLanguageID
		}

		oldComment := job.AdminComments
		outcome, err := s.machine.Apply(job, Change{
			Requested:         req.Status,
			AdminComment:      req.AdminComment,
			SessionTime:       req.SessionTime,
			TranslatorChanged: sub.translator,
		}, now)
		if err != nil {
			return err
		}
		res.Status = outcome
		if outcome.Changed {
			diff = append(diff, domain.DiffEntry{Field: "status", Old: string(outcome.From), New: string(outcome.To)})
			if outcome.Has(EffectCompleteSession) {
				if err := completeAssignment(ctx, repo, jobID, actor, now); err != nil {
					return err
				}
			}
		}

		if c := strings.TrimSpace(req.AdminComment); c != "" && c != oldComment {
			diff = append(diff, domain.DiffEntry{Field: "admin_comments", Old: oldComment, New: c})
			job.AdminComments = c
		}
		if req.Reference != nil && *req.Reference != job.Reference {
			diff = append(diff, domain.DiffEntry{Field: "reference", Old: job.Reference, New: *req.Reference})
			job.Reference = *req.Reference
		}

		res.Job = job
		res.Diff = diff
		if len(diff) == 0 {
			return nil
		}

		job.UpdatedAt = now
		if err := repo.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		return repo.AppendAudit(ctx, domain.NewAuditEntry(actorID(actor), jobID, auditActionUpdate, diff, now))
	})
	if err != nil {
		return nil, err
	}

	if !res.Changed() {
		return res, nil
	}

	s.logger.Info("Job updated",
		slog.Int64("job_id", jobID),
		slog.Int64("actor_id", actorID(actor)),
		slog.Any("diff", res.Diff),
	)

	intents := StatusIntents(res.Status, res.Job, p.customer, p.translator)
	if !res.Job.Due.Before(now) {
		intents = append(intents, subChangeIntents(res.Job, sub, p)...)
	}
	res.Notices = s.notifier.Dispatch(ctx, dedupe(intents)...)
	return res, nil
}

func (s *Service) reassign(ctx context.Context, repo store.Repository, job *domain.Job, current *domain.Assignment,
	oldTr *domain.User, newID int64, now time.Time) (domain.DiffEntry, *domain.User, error) {
	newTr, err := repo.FindUser(ctx, newID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.DiffEntry{}, nil, domain.NewValidationError("translator", "unknown translator "+strconv.FormatInt(newID, 10))
		}
		return domain.DiffEntry{}, nil, err
	}
	if newTr.Type != domain.UserTranslator {
		return domain.DiffEntry{}, nil, domain.NewValidationError("translator", "user is not a translator")
	}

	if current != nil && current.Active() {
		cancelAt := now
		current.CancelAt = &cancelAt
		if err := repo.SaveAssignment(ctx, current); err != nil {
			return domain.DiffEntry{}, nil, fmt.Errorf("failed to cancel assignment: %w", err)
		}
	}
	if err := repo.CreateAssignment(ctx, &domain.Assignment{JobID: job.ID, UserID: newID, CreatedAt: now}); err != nil {
		return domain.DiffEntry{}, nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	old := ""
	if oldTr != nil {
		old = oldTr.Email
	}
	return domain.DiffEntry{Field: "translator", Old: old, New: newTr.Email}, newTr, nil
}

// currentAssignment is the active assignment, or the completed one for finished jobs.
func currentAssignment(ctx context.Context, repo store.Repository, jobID int64) (*domain.Assignment, error) {
	a, err := repo.FindActiveAssignment(ctx, jobID)
	if err != nil || a != nil {
		return a, err
	}
	latest, err := repo.FindLatestAssignment(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.CompletedAt != nil {
		return latest, nil
	}
	return nil, nil
}

func completeAssignment(ctx context.Context, repo store.Repository, jobID int64, actor *domain.User, now time.Time) error {
	a, err := repo.FindActiveAssignment(ctx, jobID)
	if err != nil || a == nil {
		return err
	}
	completedAt := now
	a.CompletedAt = &completedAt
	if actor != nil {
		by := actor.ID
		a.CompletedBy = &by
	}
	if err := repo.SaveAssignment(ctx, a); err != nil {
		return fmt.Errorf("failed to complete assignment: %w", err)
	}
	return nil
}

func resolveTranslator(ctx context.Context, repo store.Repository, req UpdateRequest) (int64, error) {
	email := strings.TrimSpace(req.TranslatorEmail)
	if email == "" {
		return req.TranslatorID, nil
	}
	u, err := repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.NewValidationError("translator_email", "no user with email "+email)
		}
		return 0, err
	}
	return u.ID, nil
}

func languageLabel(ctx context.Context, repo store.Repository, id int64) string {
	name, err := repo.LanguageName(ctx, id)
	if err != nil || name == "" {
		return strconv.FormatInt(id, 10)
	}
	return name
}

// StatusIntents turns the notification effects of a transition into intents.
// translator may be nil, in which case translator-facing effects are skipped.
func StatusIntents(o Outcome, job *domain.Job, customer, translator *domain.User) []notify.Intent {
	if !o.Changed {
		return nil
	}
	var out []notify.Intent
	for _, e := range o.Effects {
		switch e {
		case EffectBroadcast:
			out = append(out, notify.NewBroadcast(job))
		case EffectEmailCustomerReopened:
			out = append(out, notify.JobReopenedEmail(customer, job))
		case EffectEmailCustomerAccepted:
			out = append(out, notify.JobAcceptedEmail(customer, job))
		case EffectEmailCustomerStatusChanged:
			out = append(out, notify.StatusChangedEmail(customer, job))
		case EffectEmailTranslatorAssigned:
			if translator != nil {
				out = append(out, notify.NewTranslatorEmail(translator, job))
			}
		case EffectEmailTranslatorCancelled:
			if translator != nil {
				out = append(out, notify.CancelTranslatorEmail(translator, job))
			}
		case EffectEmailSessionEnded:
			session := domain.FormatSessionTime(o.SessionDuration)
			out = append(out, notify.SessionEndedEmail(customer, job, session, domain.ForTextInvoice))
			if translator != nil {
				out = append(out, notify.SessionEndedEmail(translator, job, session, domain.ForTextPayroll))
			}
		case EffectRemindBoth:
			recipients := []*domain.User{customer}
			if translator != nil {
				recipients = append(recipients, translator)
			}
			out = append(out, notify.NewPush(notify.MsgSessionReminder, job, recipients...))
		}
	}
	return out
}

func subChangeIntents(job *domain.Job, sub subChanges, p parties) []notify.Intent {
	var out []notify.Intent
	if sub.due {
		out = append(out, notify.DateChangedEmail(p.customer, job, sub.oldDue))
		if p.translator != nil {
			out = append(out, notify.DateChangedEmail(p.translator, job, sub.oldDue))
		}
	}
	if sub.translator {
		out = append(out, notify.TranslatorChangedEmails(p.customer, p.oldTranslator, p.newTranslator, job)...)
	}
	if sub.language {
		out = append(out, notify.LanguageChangedEmail(p.customer, job, sub.oldLang))
		if p.translator != nil {
			out = append(out, notify.LanguageChangedEmail(p.translator, job, sub.oldLang))
		}
	}
	return out
}

// dedupe drops repeated emails of the same template to the same address.
func dedupe(intents []notify.Intent) []notify.Intent {
	seen := make(map[string]struct{}, len(intents))
	out := intents[:0]
	for _, in := range intents {
		if e, ok := in.(*notify.Email); ok && e.Payload.User != nil {
			key := string(e.Template) + "|" + strings.ToLower(e.Recipient())
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, in)
	}
	return out
}

func actorID(u *domain.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}
