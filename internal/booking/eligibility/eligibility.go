// Package eligibility decides whether a translator may be offered a job.
// Everything here is pure so the same rules apply from the job side and the translator side.
package eligibility

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

// Reason names the first rule that excluded a translator. Empty means eligible.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonNotTranslator  Reason = "not_translator"
	ReasonDisabled       Reason = "disabled"
	ReasonTranslatorType Reason = "translator_type"
	ReasonLanguage       Reason = "language"
	ReasonGender         Reason = "gender"
	ReasonLevel          Reason = "level"
	ReasonBlacklisted    Reason = "blacklisted"
	ReasonTown           Reason = "town"
	ReasonEarmarked      Reason = "earmarked"
)

// Subject is the job side of an evaluation.
type Subject struct {
	Job       *domain.Job
	Customer  *domain.User
	Blacklist []int64
}

var translatorTypes = map[domain.JobType]domain.TranslatorType{
	domain.JobTypePaid:   domain.TranslatorProfessional,
	domain.JobTypeRWS:    domain.TranslatorRWS,
	domain.JobTypeUnpaid: domain.TranslatorVolunteer,
}

// TranslatorTypeFor maps a job type to the translator pool it is offered to.
func TranslatorTypeFor(t domain.JobType) (domain.TranslatorType, bool) {
	tt, ok := translatorTypes[t]
	return tt, ok
}

// JobTypeFor is the reverse mapping; unknown translator types see unpaid jobs.
func JobTypeFor(t domain.TranslatorType) domain.JobType {
	for jt, tt := range translatorTypes {
		if tt == t {
			return jt
		}
	}
	return domain.JobTypeUnpaid
}

var (
	certifiedLevels = []domain.TranslatorLevel{domain.LevelCertified, domain.LevelCertifiedLaw, domain.LevelCertifiedHealth}
	normalLevels    = []domain.TranslatorLevel{domain.LevelLayman, domain.LevelReadCourses}
)

// RequiredLevels returns the translator levels acceptable for a certification requirement.
func RequiredLevels(c domain.Certification) ([]domain.TranslatorLevel, bool) {
	switch c {
	case domain.CertNone:
		return domain.AllLevels, true
	case domain.CertYes:
		return certifiedLevels, true
	case domain.CertBoth:
		return append(append([]domain.TranslatorLevel(nil), certifiedLevels...), normalLevels...), true
	case domain.CertLaw, domain.CertNLaw:
		return []domain.TranslatorLevel{domain.LevelCertifiedLaw}, true
	case domain.CertHealth, domain.CertNHealth:
		return []domain.TranslatorLevel{domain.LevelCertifiedHealth}, true
	case domain.CertNormal:
		return normalLevels, true
	default:
		return nil, false
	}
}

// CheckJob rejects jobs whose requirements cannot be evaluated.
func CheckJob(job *domain.Job) error {
	if job == nil {
		return domain.NewValidationError("job", "missing")
	}
	if _, ok := TranslatorTypeFor(job.JobType); !ok {
		return domain.NewValidationError("job_type", fmt.Sprintf("unknown job type %q", job.JobType))
	}
	if _, ok := RequiredLevels(job.Certified); !ok {
		return domain.NewValidationError("certified", fmt.Sprintf("unknown certification %q", job.Certified))
	}
	switch job.Gender {
	case domain.GenderAny, domain.GenderMale, domain.GenderFemale:
	default:
		return domain.NewValidationError("gender", fmt.Sprintf("unknown gender %q", job.Gender))
	}
	return nil
}

// Evaluate returns the first rule that excludes translator from s, or ReasonNone.
// The job must have passed CheckJob.
func Evaluate(s Subject, translator *domain.User) Reason {
	job := s.Job

	if translator.Type != domain.UserTranslator {
		return ReasonNotTranslator
	}
	if !translator.Enabled {
		return ReasonDisabled
	}
	if want, _ := TranslatorTypeFor(job.JobType); translator.Meta.TranslatorType != want {
		return ReasonTranslatorType
	}
	if !translator.SpeaksLanguage(job.FromLanguageID) {
		return ReasonLanguage
	}
	if job.Gender != domain.GenderAny && translator.Meta.Gender != job.Gender {
		return ReasonGender
	}
	if levels, _ := RequiredLevels(job.Certified); !hasLevel(levels, translator.Meta.TranslatorLevel) {
		return ReasonLevel
	}
	for _, id := range s.Blacklist {
		if id == translator.ID {
			return ReasonBlacklisted
		}
	}
	if job.PhysicalOnly() && !SameTown(CustomerTown(s), translator.Meta.City) {
		return ReasonTown
	}
	if job.SpecificTranslatorID != nil && *job.SpecificTranslatorID != translator.ID {
		return ReasonEarmarked
	}
	return ReasonNone
}

// Eligible is Evaluate reduced to a bool.
func Eligible(s Subject, translator *domain.User) bool {
	return Evaluate(s, translator) == ReasonNone
}

// CustomerTown is the customer's registered town, falling back to the town on the job.
func CustomerTown(s Subject) string {
	if s.Customer != nil && strings.TrimSpace(s.Customer.Meta.City) != "" {
		return s.Customer.Meta.City
	}
	return s.Job.Town
}

// SameTown compares town names ignoring case, surrounding space and Unicode composition.
func SameTown(a, b string) bool {
	a, b = normalizeTown(a), normalizeTown(b)
	return a != "" && a == b
}

func normalizeTown(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

func hasLevel(levels []domain.TranslatorLevel, l domain.TranslatorLevel) bool {
	for _, v := range levels {
		if v == l {
			return true
		}
	}
	return false
}
