// Package matching selects the translators a job is offered to, and the jobs a translator may take.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
	"github.com/cuongbtq/tolkbooking/internal/booking/eligibility"
	"github.com/cuongbtq/tolkbooking/internal/booking/store"
)

// Engine resolves candidate pools from the store and applies the eligibility rules.
type Engine struct {
	repo   store.Repository
	logger *slog.Logger
}

// NewEngine creates a new matching engine
func NewEngine(repo store.Repository, logger *slog.Logger) *Engine {
	return &Engine{
		repo:   repo,
		logger: logger,
	}
}

// Match keeps the translators of pool that are eligible for s.
func Match(s eligibility.Subject, pool []*domain.User) []*domain.User {
	out := make([]*domain.User, 0, len(pool))
	for _, tr := range pool {
		if eligibility.Eligible(s, tr) {
			out = append(out, tr)
		}
	}
	return out
}

// Subject loads the job owner and blacklist needed to evaluate job.
func (e *Engine) Subject(ctx context.Context, job *domain.Job) (eligibility.Subject, error) {
	if err := eligibility.CheckJob(job); err != nil {
		return eligibility.Subject{}, err
	}

	customer, err := e.repo.FindUser(ctx, job.CustomerID)
	if err != nil {
		return eligibility.Subject{}, fmt.Errorf("failed to load job owner: %w", err)
	}

	blacklist, err := e.repo.Blacklist(ctx, job.CustomerID)
	if err != nil {
		return eligibility.Subject{}, fmt.Errorf("failed to load blacklist: %w", err)
	}

	return eligibility.Subject{Job: job, Customer: customer, Blacklist: blacklist}, nil
}

// MatchTranslators returns every translator the job may be broadcast to.
func (e *Engine) MatchTranslators(ctx context.Context, job *domain.Job) ([]*domain.User, error) {
	s, err := e.Subject(ctx, job)
	if err != nil {
		return nil, err
	}

	translatorType, _ := eligibility.TranslatorTypeFor(job.JobType)
	pool, err := e.repo.FilterUsers(ctx, store.UserCriteria{
		Type:           domain.UserTranslator,
		TranslatorType: translatorType,
		LanguageID:     job.FromLanguageID,
		EnabledOnly:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load translator pool: %w", err)
	}

	matched := Match(s, pool)

	e.logger.Debug("Matched translators",
		slog.Int64("job_id", job.ID),
		slog.Int("pool", len(pool)),
		slog.Int("eligible", len(matched)),
	)

	return matched, nil
}

// JobsForTranslator lists the pending future jobs translator could accept, evaluated with
// the same rules as MatchTranslators.
func (e *Engine) JobsForTranslator(ctx context.Context, translator *domain.User, now time.Time) ([]*domain.Job, error) {
	jobs, err := e.repo.FilterJobs(ctx, store.JobCriteria{
		Statuses:    []domain.JobStatus{domain.StatusPending},
		JobType:     eligibility.JobTypeFor(translator.Meta.TranslatorType),
		LanguageIDs: translator.Languages,
		DueAfter:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load pending jobs: %w", err)
	}

	out := make([]*domain.Job, 0, len(jobs))
	for _, job := range jobs {
		s, err := e.Subject(ctx, job)
		if err != nil {
			e.logger.Warn("Skipping job that cannot be evaluated",
				slog.Int64("job_id", job.ID),
				slog.Any("error", err),
			)
			continue
		}
		if eligibility.Eligible(s, translator) {
			out = append(out, job)
		}
	}
	return out, nil
}
