// Package lifecycle applies admin status changes to jobs through an explicit transition table.
package lifecycle

import (
	"strings"
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

// Requirement flags fields a transition needs in the change request.
type Requirement uint8

const (
	NeedAdminComment Requirement = 1 << iota
	NeedSessionTime
)

// Guard restricts a rule to changes that also did something else in the same update.
type Guard uint8

const (
	GuardNone Guard = iota
	GuardTranslatorChanged
)

// Effect is one consequence of a transition. State effects are applied by Apply,
// notification effects are turned into intents after commit.
type Effect uint8

const (
	EffectRearm Effect = iota + 1
	EffectCompleteSession
	EffectBroadcast
	EffectEmailCustomerReopened
	EffectEmailCustomerAccepted
	EffectEmailCustomerStatusChanged
	EffectEmailTranslatorAssigned
	EffectEmailTranslatorCancelled
	EffectEmailSessionEnded
	EffectRemindBoth
)

// anyStatus matches every target in a rule.
const anyStatus domain.JobStatus = "*"

// Rule is one row of the transition table.
type Rule struct {
	From     domain.JobStatus
	To       domain.JobStatus
	Guard    Guard
	Requires Requirement
	Effects  []Effect
}

func (r Rule) matches(from, to domain.JobStatus, translatorChanged bool) bool {
	if r.From != from || (r.To != anyStatus && r.To != to) {
		return false
	}
	return r.Guard != GuardTranslatorChanged || translatorChanged
}

// Table lists the allowed transitions. The first matching rule wins, so specific targets
// precede wildcards. Pairs matching no rule are rejected.
var Table = []Rule{
	{From: domain.StatusTimedOut, To: domain.StatusPending,
		Effects: []Effect{EffectRearm, EffectEmailCustomerReopened, EffectBroadcast}},
	{From: domain.StatusTimedOut, To: anyStatus, Guard: GuardTranslatorChanged,
		Effects: []Effect{EffectEmailCustomerAccepted}},

	{From: domain.StatusCompleted, To: domain.StatusTimedOut, Requires: NeedAdminComment},

	{From: domain.StatusStarted, To: domain.StatusCompleted, Requires: NeedAdminComment | NeedSessionTime,
		Effects: []Effect{EffectCompleteSession, EffectEmailSessionEnded}},
	{From: domain.StatusStarted, To: anyStatus, Requires: NeedAdminComment | NeedSessionTime},

	{From: domain.StatusPending, To: domain.StatusTimedOut, Requires: NeedAdminComment,
		Effects: []Effect{EffectEmailCustomerStatusChanged}},
	{From: domain.StatusPending, To: domain.StatusAssigned, Guard: GuardTranslatorChanged,
		Effects: []Effect{EffectEmailCustomerAccepted, EffectEmailTranslatorAssigned, EffectRemindBoth}},
	{From: domain.StatusPending, To: anyStatus,
		Effects: []Effect{EffectEmailCustomerStatusChanged}},

	{From: domain.StatusWithdrawAfter24, To: domain.StatusTimedOut, Requires: NeedAdminComment},

	{From: domain.StatusAssigned, To: domain.StatusWithdrawBefore24,
		Effects: []Effect{EffectEmailCustomerStatusChanged, EffectEmailTranslatorCancelled}},
	{From: domain.StatusAssigned, To: domain.StatusWithdrawAfter24,
		Effects: []Effect{EffectEmailCustomerStatusChanged, EffectEmailTranslatorCancelled}},
	{From: domain.StatusAssigned, To: domain.StatusTimedOut, Requires: NeedAdminComment},
}

// Change is a requested status change with the fields some transitions require.
type Change struct {
	Requested         domain.JobStatus
	AdminComment      string
	SessionTime       string
	TranslatorChanged bool
}

// Outcome reports what Apply did.
type Outcome struct {
	Changed bool
	From    domain.JobStatus
	To      domain.JobStatus
	Effects []Effect
	// SessionDuration is set when the transition completed a session.
	SessionDuration time.Duration
}

// Has reports whether the outcome carries effect.
func (o Outcome) Has(effect Effect) bool {
	for _, e := range o.Effects {
		if e == effect {
			return true
		}
	}
	return false
}

// Machine applies changes according to its table.
type Machine struct {
	rules []Rule
}

// NewMachine creates a machine over Table.
func NewMachine() *Machine {
	return &Machine{rules: Table}
}

// Lookup returns the rule governing from → to.
func (m *Machine) Lookup(from, to domain.JobStatus, translatorChanged bool) (Rule, bool) {
	for _, r := range m.rules {
		if r.matches(from, to, translatorChanged) {
			return r, true
		}
	}
	return Rule{}, false
}

// Apply validates ch against the table and mutates job on success. Requesting the current
// status, an unknown status or a pair not in the table leaves job untouched and reports
// no change. A legal pair with a missing field returns a ValidationError and also leaves
// job untouched.
func (m *Machine) Apply(job *domain.Job, ch Change, now time.Time) (Outcome, error) {
	from := job.Status
	out := Outcome{From: from, To: from}

	if ch.Requested == "" || ch.Requested == from || !ch.Requested.Valid() {
		return out, nil
	}
	rule, ok := m.Lookup(from, ch.Requested, ch.TranslatorChanged)
	if !ok {
		return out, nil
	}

	comment := strings.TrimSpace(ch.AdminComment)
	if rule.Requires&NeedAdminComment != 0 && comment == "" {
		return out, domain.NewValidationError("admin_comments", "required when changing status from "+string(from))
	}
	if rule.Requires&NeedSessionTime != 0 && strings.TrimSpace(ch.SessionTime) == "" {
		return out, domain.NewValidationError("session_time", "required when changing status from "+string(from))
	}

	var session time.Duration
	if containsEffect(rule.Effects, EffectCompleteSession) {
		d, err := domain.ParseSessionTime(ch.SessionTime)
		if err != nil {
			return out, domain.NewValidationError("session_time", err.Error())
		}
		session = d
	}

	for _, e := range rule.Effects {
		switch e {
		case EffectRearm:
			rearm(job, now)
		case EffectCompleteSession:
			end := now
			job.EndAt = &end
			job.SessionTime = domain.FormatClock(session)
		}
	}
	if comment != "" {
		job.AdminComments = comment
	}
	job.Status = ch.Requested

	out.Changed = true
	out.To = ch.Requested
	out.Effects = rule.Effects
	out.SessionDuration = session
	return out, nil
}

// rearm puts a timed-out job back on the market as if it had just been created.
func rearm(job *domain.Job, now time.Time) {
	job.CreatedAt = now
	job.WillExpireAt = domain.WillExpireAt(job.Due, now)
	job.EmailSent = false
	job.EmailSentToVirpal = false
}

func containsEffect(effects []Effect, want Effect) bool {
	for _, e := range effects {
		if e == want {
			return true
		}
	}
	return false
}
