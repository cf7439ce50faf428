package domain

// JobStatus is the lifecycle state of a booking.
type JobStatus string

// Job status constants
const (
	StatusPending               JobStatus = "pending"
	StatusAssigned              JobStatus = "assigned"
	StatusStarted               JobStatus = "started"
	StatusCompleted             JobStatus = "completed"
	StatusWithdrawBefore24      JobStatus = "withdrawbefore24"
	StatusWithdrawAfter24       JobStatus = "withdrawafter24"
	StatusTimedOut              JobStatus = "timedout"
	StatusNotCarriedOutCustomer JobStatus = "not_carried_out_customer"
)

// AllStatuses lists every status in a stable order.
var AllStatuses = []JobStatus{
	StatusPending,
	StatusAssigned,
	StatusStarted,
	StatusCompleted,
	StatusWithdrawBefore24,
	StatusWithdrawAfter24,
	StatusTimedOut,
	StatusNotCarriedOutCustomer,
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// JobType decides which translator pool a booking is offered to.
type JobType string

const (
	JobTypePaid   JobType = "paid"
	JobTypeRWS    JobType = "rws"
	JobTypeUnpaid JobType = "unpaid"
)

// TranslatorType is stored in user meta for translators.
type TranslatorType string

const (
	TranslatorProfessional TranslatorType = "professional"
	TranslatorRWS          TranslatorType = "rwstranslator"
	TranslatorVolunteer    TranslatorType = "volunteer"
)

// TranslatorLevel is the certification tier a translator holds.
type TranslatorLevel string

const (
	LevelCertified       TranslatorLevel = "Certified"
	LevelCertifiedLaw    TranslatorLevel = "Certified with specialisation in law"
	LevelCertifiedHealth TranslatorLevel = "Certified with specialisation in health care"
	LevelLayman          TranslatorLevel = "Layman"
	LevelReadCourses     TranslatorLevel = "Read Translation courses"
)

// AllLevels is the unrestricted level set.
var AllLevels = []TranslatorLevel{
	LevelCertified,
	LevelCertifiedLaw,
	LevelCertifiedHealth,
	LevelLayman,
	LevelReadCourses,
}

// Certification is the level requirement a customer put on a job.
type Certification string

const (
	CertNone    Certification = ""
	CertNormal  Certification = "normal"
	CertYes     Certification = "yes"
	CertBoth    Certification = "both"
	CertLaw     Certification = "law"
	CertNLaw    Certification = "n_law"
	CertHealth  Certification = "health"
	CertNHealth Certification = "n_health"
)

// Gender is used both as a job requirement and a translator attribute.
type Gender string

const (
	GenderAny    Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// UserType separates customers from translators and staff.
type UserType string

const (
	UserCustomer   UserType = "customer"
	UserTranslator UserType = "translator"
	UserAdmin      UserType = "admin"
	UserSuperAdmin UserType = "superadmin"
)

// IsStaff reports whether the user acts on behalf of the booking office.
func (t UserType) IsStaff() bool {
	return t == UserAdmin || t == UserSuperAdmin
}

// Preference values stored in user meta. Anything else counts as unset.
const (
	PreferenceYes = "yes"
	PreferenceNo  = "no"
)

// Session-ended email context for each recipient role.
const (
	ForTextInvoice = "faktura"
	ForTextPayroll = "lön"
)
