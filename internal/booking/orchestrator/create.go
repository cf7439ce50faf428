package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
	"github.com/cuongbtq/tolkbooking/internal/booking/notify"
)

const (
	immediateLead  = 5 * time.Minute
	dueInputLayout = "01/02/2006 15:04"
)

// Customer requirement tokens accepted in CreateRequest.JobFor.
const (
	JobForMale              = "male"
	JobForFemale            = "female"
	JobForNormal            = "normal"
	JobForCertified         = "certified"
	JobForCertifiedInLaw    = "certified_in_law"
	JobForCertifiedInHealth = "certified_in_health"
)

// CreateRequest is a customer's booking order. DueDate is MM/DD/YYYY and DueTime HH:MM in
// the booking location; both are ignored for immediate bookings.
type CreateRequest struct {
	FromLanguageID int64
	Immediate      bool
	DueDate        string
	DueTime        string
	Duration       int
	PhoneType      bool
	PhysicalType   bool
	JobFor         []string
	Town           string
	UserEmail      string
	Reference      string
	ByAdmin        bool
}

// CreateJob books a new job for customer, acknowledges it by email and offers it to
// the matching translators.
func (o *Orchestrator) CreateJob(ctx context.Context, customer *domain.User, req CreateRequest) (*Result, error) {
	if customer == nil {
		return softResult(domain.NewValidationError("actor", "missing"))
	}
	if customer.Type != domain.UserCustomer {
		return fail(msgNotCustomer), nil
	}

	now := o.clock()
	job, err := o.newJob(customer, req, now)
	if err != nil {
		return softResult(err)
	}

	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	entry := domain.NewAuditEntry(customer.ID, job.ID, auditCreated, []domain.DiffEntry{
		{Field: "status", New: string(job.Status)},
	}, now)
	if err := o.store.AppendAudit(ctx, entry); err != nil {
		o.logger.Error("Failed to audit job creation",
			slog.Int64("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	o.logger.Info("Job created",
		slog.Int64("job_id", job.ID),
		slog.Int64("customer_id", customer.ID),
		slog.Bool("immediate", job.Immediate),
		slog.Time("due", job.Due),
	)

	o.notifier.Dispatch(ctx, notify.JobCreatedEmail(customer, job), notify.NewBroadcast(job))
	return success(job, ""), nil
}

func (o *Orchestrator) newJob(customer *domain.User, req CreateRequest, now time.Time) (*domain.Job, error) {
	if req.FromLanguageID <= 0 {
		return nil, domain.NewValidationError("from_language_id", msgFillAllFields)
	}
	if !req.Immediate {
		if strings.TrimSpace(req.DueDate) == "" {
			return nil, domain.NewValidationError("due_date", msgFillAllFields)
		}
		if strings.TrimSpace(req.DueTime) == "" {
			return nil, domain.NewValidationError("due_time", msgFillAllFields)
		}
		if !req.PhoneType && !req.PhysicalType {
			return nil, domain.NewValidationError("customer_phone_type", msgChooseOne)
		}
	}
	if req.Duration <= 0 {
		return nil, domain.NewValidationError("duration", msgFillAllFields)
	}

	job := &domain.Job{
		CustomerID:           customer.ID,
		Status:               domain.StatusPending,
		JobType:              jobTypeFor(customer.Meta.ConsumerType),
		FromLanguageID:       req.FromLanguageID,
		Immediate:            req.Immediate,
		Duration:             req.Duration,
		CustomerPhoneType:    req.PhoneType,
		CustomerPhysicalType: req.PhysicalType,
		Town:                 strings.TrimSpace(req.Town),
		ByAdmin:              req.ByAdmin,
		Reference:            req.Reference,
		UserEmail:            strings.TrimSpace(req.UserEmail),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if job.Town == "" {
		job.Town = customer.Meta.City
	}
	job.Gender, job.Certified = requirements(req.JobFor)

	if req.Immediate {
		job.Due = now.Add(immediateLead)
		job.CustomerPhoneType = true
	} else {
		due, err := time.ParseInLocation(dueInputLayout,
			strings.TrimSpace(req.DueDate)+" "+strings.TrimSpace(req.DueTime), o.location)
		if err != nil {
			return nil, domain.NewValidationError("due_date", "invalid date "+req.DueDate+" "+req.DueTime)
		}
		if due.Before(now) {
			return nil, domain.NewValidationError("due_date", msgPastDate)
		}
		job.Due = due
	}
	job.WillExpireAt = domain.WillExpireAt(job.Due, now)
	return job, nil
}

// requirements maps the customer's job_for tokens to gender and certification. A plain
// "normal" request combines with at most one certification token.
func requirements(jobFor []string) (domain.Gender, domain.Certification) {
	has := make(map[string]bool, len(jobFor))
	for _, f := range jobFor {
		has[strings.TrimSpace(f)] = true
	}

	var gender domain.Gender
	switch {
	case has[JobForMale]:
		gender = domain.GenderMale
	case has[JobForFemale]:
		gender = domain.GenderFemale
	}

	var cert domain.Certification
	switch {
	case has[JobForNormal]:
		cert = domain.CertNormal
		if has[JobForCertified] {
			cert = domain.CertBoth
		}
		if has[JobForCertifiedInLaw] {
			cert = domain.CertNLaw
		}
		if has[JobForCertifiedInHealth] {
			cert = domain.CertNHealth
		}
	case has[JobForCertified]:
		cert = domain.CertYes
	case has[JobForCertifiedInLaw]:
		cert = domain.CertLaw
	case has[JobForCertifiedInHealth]:
		cert = domain.CertHealth
	}
	return gender, cert
}

// jobTypeFor picks the translator pool from the customer's consumer type.
func jobTypeFor(consumerType string) domain.JobType {
	switch consumerType {
	case "rwsconsumer":
		return domain.JobTypeRWS
	case "paid":
		return domain.JobTypePaid
	default:
		return domain.JobTypeUnpaid
	}
}
