package orchestrator

import (
	"errors"
	"fmt"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

// ResultStatus is the outcome reported to the caller.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusFail    ResultStatus = "fail"
)

// Result is what an operation hands back to the HTTP layer. Soft failures such as
// conflicts and validation errors are results, not errors.
type Result struct {
	Status  ResultStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Field   string       `json:"field_name,omitempty"`
	Job     *domain.Job  `json:"job,omitempty"`
	Count   int          `json:"count,omitempty"`
}

// OK reports whether the operation succeeded.
func (r *Result) OK() bool {
	return r.Status == StatusSuccess
}

func success(job *domain.Job, message string) *Result {
	return &Result{Status: StatusSuccess, Job: job, Message: message}
}

func fail(message string) *Result {
	return &Result{Status: StatusFail, Message: message}
}

// softResult converts validation and conflict errors into fail results. Other errors are
// returned unchanged.
func softResult(err error) (*Result, error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return &Result{Status: StatusFail, Field: verr.Field, Message: verr.Message}, nil
	}
	var cerr *domain.ConflictError
	if errors.As(err, &cerr) {
		return fail(cerr.Reason), nil
	}
	return nil, err
}

const (
	msgCancelWithin24 = "Du kan inte avboka en bokning som sker inom 24 timmar genom DigitalTolk. " +
		"Vänligen ring på +46 73 75 86 865 och gör din avbokning over telefon. Tack!"
	msgNotCancellable = "Bokningen kan inte längre avbokas."
	msgNotAssignee    = "Du är inte tolk för denna bokning."
	msgReopened       = "Tolk cancelled!"
	msgTryAgain       = "Please try again."
	msgNotExpired     = "Bokningen har inte gått ut."
	msgNotStarted     = "Bokningen pågår inte."
	msgNotCustomer    = "Unable to create booking for translator."
	msgFillAllFields  = "Du måste fylla in alla fält"
	msgChooseOne      = "Du måste göra ett val här"
	msgPastDate       = "Can't create booking for past dates."
)

func msgDoubleBooked(due string) string {
	return fmt.Sprintf("Du har redan en bokning den tiden %s. Du har inte fått denna tolkning", due)
}

func msgTaken(language string, duration int, due string) string {
	return fmt.Sprintf("Denna %stolkning %dmin %s har redan accepterats av annan tolk. Du har inte fått denna tolkning",
		language, duration, due)
}

func reopenComment(originalID int64) string {
	return fmt.Sprintf("This booking is a reopening of booking #%d", originalID)
}
