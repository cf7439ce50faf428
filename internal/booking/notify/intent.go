package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

// Kind is the notification_type tag every push carries.
type Kind string

const (
	KindSuitableJob        Kind = "suitable_job"
	KindJobAccepted        Kind = "job_accepted"
	KindJobCancelled       Kind = "job_cancelled"
	KindJobExpired         Kind = "job_expired"
	KindSessionStartRemind Kind = "session_start_remind"
)

// Message selects the localized text of a targeted push.
type Message string

const (
	MsgBookingAccepted     Message = "booking_accepted"
	MsgAcceptConfirmed     Message = "accept_confirmed"
	MsgCustomerCancelled   Message = "customer_cancelled"
	MsgTranslatorCancelled Message = "translator_cancelled"
	MsgJobExpired          Message = "job_expired"
	MsgSessionReminder     Message = "session_reminder"
)

var messageKinds = map[Message]Kind{
	MsgBookingAccepted:     KindJobAccepted,
	MsgAcceptConfirmed:     KindJobAccepted,
	MsgCustomerCancelled:   KindJobCancelled,
	MsgTranslatorCancelled: KindJobCancelled,
	MsgJobExpired:          KindJobExpired,
	MsgSessionReminder:     KindSessionStartRemind,
}

// Intent is one notification an operation wants delivered after its state is persisted.
type Intent interface {
	Validate() error
	String() string
}

// Push targets specific users.
type Push struct {
	Message    Message
	Job        *domain.Job
	Recipients []*domain.User
}

// NewPush creates a targeted push intent.
func NewPush(msg Message, job *domain.Job, recipients ...*domain.User) *Push {
	return &Push{Message: msg, Job: job, Recipients: recipients}
}

// Kind returns the notification_type of the push.
func (p *Push) Kind() Kind {
	return messageKinds[p.Message]
}

func (p *Push) Validate() error {
	if _, ok := messageKinds[p.Message]; !ok {
		return fmt.Errorf("unknown push message %q", p.Message)
	}
	if p.Job == nil {
		return errors.New("push without job")
	}
	if len(p.Recipients) == 0 {
		return errors.New("push without recipients")
	}
	for _, u := range p.Recipients {
		if u == nil {
			return errors.New("push with nil recipient")
		}
	}
	return nil
}

func (p *Push) String() string {
	return fmt.Sprintf("push %s job=%d recipients=%d", p.Message, jobID(p.Job), len(p.Recipients))
}

// Broadcast offers a pending job to every eligible translator.
type Broadcast struct {
	Job     *domain.Job
	Exclude []int64
}

// NewBroadcast creates a suitable_job broadcast intent.
func NewBroadcast(job *domain.Job, exclude ...int64) *Broadcast {
	return &Broadcast{Job: job, Exclude: exclude}
}

func (b *Broadcast) Validate() error {
	if b.Job == nil {
		return errors.New("broadcast without job")
	}
	return nil
}

func (b *Broadcast) String() string {
	return fmt.Sprintf("broadcast job=%d exclude=%v", jobID(b.Job), b.Exclude)
}

// Template is the mail collaborator's template key.
type Template string

const (
	TplJobCreated                Template = "emails.job-created"
	TplJobAccepted               Template = "emails.job-accepted"
	TplJobReopened               Template = "emails.job-change-status-to-customer"
	TplSessionEnded              Template = "emails.session-ended"
	TplStatusChanged             Template = "emails.status-changed-from-pending-or-assigned-customer"
	TplCancelTranslator          Template = "emails.job-cancel-translator"
	TplTranslatorChangedNew      Template = "emails.job-changed-translator-new-translator"
	TplTranslatorChangedOld      Template = "emails.job-changed-translator-old-translator"
	TplTranslatorChangedCustomer Template = "emails.job-changed-translator-customer"
	TplDateChanged               Template = "emails.job-changed-date"
	TplLanguageChanged           Template = "emails.job-changed-lang"
)

// EmailPayload is the data handed to the template. Fields unused by a template stay empty.
type EmailPayload struct {
	User          *domain.User `json:"user"`
	Job           *domain.Job  `json:"job"`
	SessionTime   string       `json:"session_time,omitempty"`
	ForText       string       `json:"for_text,omitempty"`
	OldTime       *time.Time   `json:"old_time,omitempty"`
	OldLanguageID int64        `json:"-"`
	OldLanguage   string       `json:"old_lang,omitempty"`
	NewLanguage   string       `json:"new_lang,omitempty"`
}

// Email is one templated mail to one recipient.
type Email struct {
	Template Template
	Payload  EmailPayload
}

func newEmail(tpl Template, to *domain.User, job *domain.Job) *Email {
	return &Email{Template: tpl, Payload: EmailPayload{User: to, Job: job}}
}

// JobCreatedEmail acknowledges a new booking to the customer.
func JobCreatedEmail(customer *domain.User, job *domain.Job) *Email {
	return newEmail(TplJobCreated, customer, job)
}

// JobAcceptedEmail confirms to the customer that a translator took the booking.
func JobAcceptedEmail(customer *domain.User, job *domain.Job) *Email {
	return newEmail(TplJobAccepted, customer, job)
}

// JobReopenedEmail tells the customer a timed-out booking is open again.
func JobReopenedEmail(customer *domain.User, job *domain.Job) *Email {
	return newEmail(TplJobReopened, customer, job)
}

// StatusChangedEmail tells the customer an admin changed the booking status.
func StatusChangedEmail(customer *domain.User, job *domain.Job) *Email {
	return newEmail(TplStatusChanged, customer, job)
}

// CancelTranslatorEmail tells the assigned translator the booking was withdrawn.
func CancelTranslatorEmail(translator *domain.User, job *domain.Job) *Email {
	return newEmail(TplCancelTranslator, translator, job)
}

// SessionEndedEmail carries the session summary; forText is domain.ForTextInvoice for the
// customer and domain.ForTextPayroll for the translator.
func SessionEndedEmail(to *domain.User, job *domain.Job, sessionTime, forText string) *Email {
	e := newEmail(TplSessionEnded, to, job)
	e.Payload.SessionTime = sessionTime
	e.Payload.ForText = forText
	return e
}

// TranslatorChangedEmails notifies customer, previous and new translator of a reassignment.
// oldTranslator may be nil.
func TranslatorChangedEmails(customer, oldTranslator, newTranslator *domain.User, job *domain.Job) []Intent {
	out := []Intent{newEmail(TplTranslatorChangedCustomer, customer, job)}
	if oldTranslator != nil {
		out = append(out, newEmail(TplTranslatorChangedOld, oldTranslator, job))
	}
	if newTranslator != nil {
		out = append(out, newEmail(TplTranslatorChangedNew, newTranslator, job))
	}
	return out
}

// NewTranslatorEmail tells a translator an admin assigned them.
func NewTranslatorEmail(translator *domain.User, job *domain.Job) *Email {
	return newEmail(TplTranslatorChangedNew, translator, job)
}

// DateChangedEmail reports a moved booking with its previous due time.
func DateChangedEmail(to *domain.User, job *domain.Job, oldDue time.Time) *Email {
	e := newEmail(TplDateChanged, to, job)
	e.Payload.OldTime = &oldDue
	return e
}

// LanguageChangedEmail reports a changed source language.
func LanguageChangedEmail(to *domain.User, job *domain.Job, oldLanguageID int64) *Email {
	e := newEmail(TplLanguageChanged, to, job)
	e.Payload.OldLanguageID = oldLanguageID
	return e
}

// Recipient is the address the email goes to. A booking may carry its own contact
// address, which takes precedence for mail to the booking's customer.
func (e *Email) Recipient() string {
	u, j := e.Payload.User, e.Payload.Job
	if u == nil {
		return ""
	}
	if j != nil && j.UserEmail != "" && u.ID == j.CustomerID {
		return j.UserEmail
	}
	return u.Email
}

func (e *Email) Validate() error {
	p := e.Payload
	if p.User == nil || e.Recipient() == "" {
		return fmt.Errorf("%s: recipient without email", e.Template)
	}
	if p.Job == nil {
		return fmt.Errorf("%s: missing job", e.Template)
	}
	switch e.Template {
	case TplSessionEnded:
		if p.SessionTime == "" {
			return fmt.Errorf("%s: missing session_time", e.Template)
		}
		if p.ForText != domain.ForTextInvoice && p.ForText != domain.ForTextPayroll {
			return fmt.Errorf("%s: unknown for_text %q", e.Template, p.ForText)
		}
	case TplDateChanged:
		if p.OldTime == nil {
			return fmt.Errorf("%s: missing old_time", e.Template)
		}
	case TplLanguageChanged:
		if p.OldLanguageID == 0 {
			return fmt.Errorf("%s: missing old language", e.Template)
		}
	case TplJobCreated, TplJobAccepted, TplJobReopened, TplStatusChanged, TplCancelTranslator,
		TplTranslatorChangedNew, TplTranslatorChangedOld, TplTranslatorChangedCustomer:
	default:
		return fmt.Errorf("unknown email template %q", e.Template)
	}
	return nil
}

func (e *Email) String() string {
	return fmt.Sprintf("email %s job=%d to=%s", e.Template, jobID(e.Payload.Job), e.Recipient())
}

func jobID(j *domain.Job) int64 {
	if j == nil {
		return 0
	}
	return j.ID
}
