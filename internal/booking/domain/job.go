package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job is one interpretation booking.
type Job struct {
	ID                   int64         `db:"id" json:"id"`
	CustomerID           int64         `db:"user_id" json:"user_id"`
	Status               JobStatus     `db:"status" json:"status"`
	JobType              JobType       `db:"job_type" json:"job_type"`
	FromLanguageID       int64         `db:"from_language_id" json:"from_language_id"`
	Immediate            bool          `db:"immediate" json:"immediate"`
	Due                  time.Time     `db:"due" json:"due"`
	Duration             int           `db:"duration" json:"duration"`
	Gender               Gender        `db:"gender" json:"gender,omitempty"`
	Certified            Certification `db:"certified" json:"certified,omitempty"`
	CustomerPhoneType    bool          `db:"customer_phone_type" json:"customer_phone_type"`
	CustomerPhysicalType bool          `db:"customer_physical_type" json:"customer_physical_type"`
	Town                 string        `db:"town" json:"town,omitempty"`
	AdminComments        string        `db:"admin_comments" json:"admin_comments,omitempty"`
	SessionTime          string        `db:"session_time" json:"session_time,omitempty"`
	Flagged              bool          `db:"flagged" json:"flagged"`
	ManuallyHandled      bool          `db:"manually_handled" json:"manually_handled"`
	ByAdmin              bool          `db:"by_admin" json:"by_admin"`
	Reference            string        `db:"reference" json:"reference,omitempty"`
	UserEmail            string        `db:"user_email" json:"user_email,omitempty"`
	SpecificTranslatorID *int64        `db:"specific_translator_id" json:"specific_translator_id,omitempty"`
	EmailSent            bool          `db:"email_sent" json:"-"`
	EmailSentToVirpal    bool          `db:"email_sent_tovirpal" json:"-"`
	Cust16HourEmail      bool          `db:"cust_16_hour_email" json:"-"`
	Cust48HourEmail      bool          `db:"cust_48_hour_email" json:"-"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
	WillExpireAt         time.Time     `db:"will_expire_at" json:"will_expire_at"`
	EndAt                *time.Time    `db:"end_at" json:"end_at,omitempty"`
	WithdrawAt           *time.Time    `db:"withdraw_at" json:"withdraw_at,omitempty"`
}

// PhysicalOnly reports whether the customer wants in-person presence and no phone alternative.
func (j *Job) PhysicalOnly() bool {
	return j.CustomerPhysicalType && !j.CustomerPhoneType
}

// Clone returns a shallow copy with pointer fields detached.
func (j *Job) Clone() *Job {
	c := *j
	if j.EndAt != nil {
		t := *j.EndAt
		c.EndAt = &t
	}
	if j.WithdrawAt != nil {
		t := *j.WithdrawAt
		c.WithdrawAt = &t
	}
	if j.SpecificTranslatorID != nil {
		id := *j.SpecificTranslatorID
		c.SpecificTranslatorID = &id
	}
	return &c
}

// Assignment is one translator's claim on a job. Rows are never reused:
// reassignment cancels the old row and creates a new one.
type Assignment struct {
	ID          int64      `db:"id" json:"id"`
	JobID       int64      `db:"job_id" json:"job_id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CancelAt    *time.Time `db:"cancel_at" json:"cancel_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy *int64     `db:"completed_by" json:"completed_by,omitempty"`
}

// Active reports whether the assignment is neither cancelled nor completed.
func (a *Assignment) Active() bool {
	return a.CancelAt == nil && a.CompletedAt == nil
}

// User is a customer, translator or staff member. Read-only for the booking core.
type User struct {
	ID        int64    `db:"id" json:"id"`
	Type      UserType `db:"user_type" json:"user_type"`
	Enabled   bool     `db:"enabled" json:"enabled"`
	Email     string   `db:"email" json:"email"`
	Name      string   `db:"name" json:"name"`
	Mobile    string   `db:"mobile" json:"mobile,omitempty"`
	Meta      UserMeta `db:"-" json:"meta"`
	Languages []int64  `db:"-" json:"languages,omitempty"`
}

// SpeaksLanguage reports whether languageID is in the user's language set.
func (u *User) SpeaksLanguage(languageID int64) bool {
	for _, id := range u.Languages {
		if id == languageID {
			return true
		}
	}
	return false
}

// UserMeta holds profile attributes and notification preferences.
type UserMeta struct {
	UserID             int64           `db:"user_id" json:"-"`
	ConsumerType       string          `db:"consumer_type" json:"consumer_type,omitempty"`
	TranslatorType     TranslatorType  `db:"translator_type" json:"translator_type,omitempty"`
	TranslatorLevel    TranslatorLevel `db:"translator_level" json:"translator_level,omitempty"`
	Gender             Gender          `db:"gender" json:"gender,omitempty"`
	City               string          `db:"city" json:"city,omitempty"`
	NotGetEmergency    string          `db:"not_get_emergency" json:"not_get_emergency,omitempty"`
	NotGetNighttime    string          `db:"not_get_nighttime" json:"not_get_nighttime,omitempty"`
	NotGetNotification string          `db:"not_get_notification" json:"not_get_notification,omitempty"`
}

// DiffEntry records one field change of a booking.
type DiffEntry struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// AuditEntry is an append-only record of a booking change.
type AuditEntry struct {
	ID        uuid.UUID   `json:"id"`
	ActorID   int64       `json:"actor_id"`
	JobID     int64       `json:"job_id"`
	Action    string      `json:"action"`
	Diff      []DiffEntry `json:"diff"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewAuditEntry stamps a fresh id and time on an audit record.
func NewAuditEntry(actorID, jobID int64, action string, diff []DiffEntry, now time.Time) *AuditEntry {
	return &AuditEntry{
		ID:        uuid.New(),
		ActorID:   actorID,
		JobID:     jobID,
		Action:    action,
		Diff:      diff,
		CreatedAt: now,
	}
}
