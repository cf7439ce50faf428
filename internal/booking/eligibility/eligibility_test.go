package eligibility

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

func baseJob() *domain.Job {
	return &domain.Job{
		ID:             1,
		CustomerID:     100,
		Status:         domain.StatusPending,
		JobType:        domain.JobTypePaid,
		FromLanguageID: 5,
		Certified:      domain.CertLaw,
		Due:            time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Duration:       60,
	}
}

func baseTranslator(id int64) *domain.User {
	return &domain.User{
		ID:        id,
		Type:      domain.UserTranslator,
		Enabled:   true,
		Email:     "tolk@example.com",
		Languages: []int64{3, 5},
		Meta: domain.UserMeta{
			TranslatorType:  domain.TranslatorProfessional,
			TranslatorLevel: domain.LevelCertifiedLaw,
			Gender:          domain.GenderFemale,
			City:            "Stockholm",
		},
	}
}

func TestEvaluate(t *testing.T) {
	earmarked := int64(77)

	tests := []struct {
		name     string
		mutate   func(s *Subject, tr *domain.User)
		expected Reason
	}{
		{
			name:     "all criteria match",
			mutate:   func(*Subject, *domain.User) {},
			expected: ReasonNone,
		},
		{
			name: "language missing excludes regardless of level",
			mutate: func(_ *Subject, tr *domain.User) {
				tr.Languages = []int64{3}
			},
			expected: ReasonLanguage,
		},
		{
			name: "customer is never a candidate",
			mutate: func(_ *Subject, tr *domain.User) {
				tr.Type = domain.UserCustomer
			},
			expected: ReasonNotTranslator,
		},
		{
			name: "disabled translator",
			mutate: func(_ *Subject, tr *domain.User) {
				tr.Enabled = false
			},
			expected: ReasonDisabled,
		},
		{
			name: "volunteer for paid job",
			mutate: func(_ *Subject, tr *domain.User) {
				tr.Meta.TranslatorType = domain.TranslatorVolunteer
			},
			expected: ReasonTranslatorType,
		},
		{
			name: "gender mismatch",
			mutate: func(s *Subject, _ *domain.User) {
				s.Job.Gender = domain.GenderMale
			},
			expected: ReasonGender,
		},
		{
			name: "gender match",
			mutate: func(s *Subject, _ *domain.User) {
				s.Job.Gender = domain.GenderFemale
			},
			expected: ReasonNone,
		},
		{
			name: "health level for law job",
			mutate: func(_ *Subject, tr *domain.User) {
				tr.Meta.TranslatorLevel = domain.LevelCertifiedHealth
			},
			expected: ReasonLevel,
		},
		{
			name: "layman accepted when both is requested",
			mutate: func(s *Subject, tr *domain.User) {
				s.Job.Certified = domain.CertBoth
				tr.Meta.TranslatorLevel = domain.LevelLayman
			},
			expected: ReasonNone,
		},
		{
			name: "any level when certification absent",
			mutate: func(s *Subject, tr *domain.User) {
				s.Job.Certified = domain.CertNone
				tr.Meta.TranslatorLevel = domain.LevelReadCourses
			},
			expected: ReasonNone,
		},
		{
			name: "blacklisted by customer",
			mutate: func(s *Subject, tr *domain.User) {
				s.Blacklist = []int64{tr.ID}
			},
			expected: ReasonBlacklisted,
		},
		{
			name: "earmarked for someone else",
			mutate: func(s *Subject, _ *domain.User) {
				s.Job.SpecificTranslatorID = &earmarked
			},
			expected: ReasonEarmarked,
		},
		{
			name: "earmarked for this translator",
			mutate: func(s *Subject, tr *domain.User) {
				id := tr.ID
				s.Job.SpecificTranslatorID = &id
			},
			expected: ReasonNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Subject{Job: baseJob()}
			tr := baseTranslator(1)
			tt.mutate(&s, tr)
			require.NoError(t, CheckJob(s.Job))
			assert.Equal(t, tt.expected, Evaluate(s, tr))
		})
	}
}

func TestEvaluate_PhysicalOnlyTown(t *testing.T) {
	customer := &domain.User{ID: 100, Type: domain.UserCustomer, Meta: domain.UserMeta{City: "Stockholm"}}

	tests := []struct {
		name     string
		phone    bool
		city     string
		expected Reason
	}{
		{name: "other town excluded", city: "Göteborg", expected: ReasonTown},
		{name: "same town included", city: "Stockholm", expected: ReasonNone},
		{name: "case and space insensitive", city: "  stockholm ", expected: ReasonNone},
		{name: "no registered town excluded", city: "", expected: ReasonTown},
		{name: "phone alternative ignores town", phone: true, city: "Göteborg", expected: ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := baseJob()
			job.CustomerPhysicalType = true
			job.CustomerPhoneType = tt.phone
			tr := baseTranslator(1)
			tr.Meta.City = tt.city

			assert.Equal(t, tt.expected, Evaluate(Subject{Job: job, Customer: customer}, tr))
		})
	}
}

func TestCustomerTown_FallsBackToJobTown(t *testing.T) {
	job := baseJob()
	job.Town = "Malmö"

	assert.Equal(t, "Malmö", CustomerTown(Subject{Job: job}))
	assert.Equal(t, "Malmö", CustomerTown(Subject{Job: job, Customer: &domain.User{}}))
	assert.Equal(t, "Lund", CustomerTown(Subject{Job: job, Customer: &domain.User{Meta: domain.UserMeta{City: "Lund"}}}))
}

func TestSameTown(t *testing.T) {
	// "Göteborg" with a decomposed ö
	decomposed := "Go\u0308teborg"

	assert.True(t, SameTown("Göteborg", decomposed))
	assert.True(t, SameTown("GÖTEBORG", "göteborg"))
	assert.False(t, SameTown("Göteborg", "Stockholm"))
	assert.False(t, SameTown("", ""))
}

func TestRequiredLevels(t *testing.T) {
	tests := []struct {
		cert     domain.Certification
		expected []domain.TranslatorLevel
	}{
		{domain.CertYes, []domain.TranslatorLevel{domain.LevelCertified, domain.LevelCertifiedLaw, domain.LevelCertifiedHealth}},
		{domain.CertLaw, []domain.TranslatorLevel{domain.LevelCertifiedLaw}},
		{domain.CertNLaw, []domain.TranslatorLevel{domain.LevelCertifiedLaw}},
		{domain.CertHealth, []domain.TranslatorLevel{domain.LevelCertifiedHealth}},
		{domain.CertNHealth, []domain.TranslatorLevel{domain.LevelCertifiedHealth}},
		{domain.CertNormal, []domain.TranslatorLevel{domain.LevelLayman, domain.LevelReadCourses}},
		{domain.CertNone, domain.AllLevels},
	}

	for _, tt := range tests {
		t.Run(string(tt.cert), func(t *testing.T) {
			levels, ok := RequiredLevels(tt.cert)
			require.True(t, ok)
			assert.ElementsMatch(t, tt.expected, levels)
		})
	}

	both, ok := RequiredLevels(domain.CertBoth)
	require.True(t, ok)
	assert.ElementsMatch(t, domain.AllLevels, both)

	_, ok = RequiredLevels("gold")
	assert.False(t, ok)
}

func TestTypeMapping(t *testing.T) {
	for _, jt := range []domain.JobType{domain.JobTypePaid, domain.JobTypeRWS, domain.JobTypeUnpaid} {
		tt, ok := TranslatorTypeFor(jt)
		require.True(t, ok)
		assert.Equal(t, jt, JobTypeFor(tt))
	}
	assert.Equal(t, domain.JobTypeUnpaid, JobTypeFor("freelancer"))
}

func TestCheckJob(t *testing.T) {
	job := baseJob()
	job.JobType = "charity"

	err := CheckJob(job)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "job_type", verr.Field)

	job = baseJob()
	job.Certified = "gold"
	require.True(t, errors.As(CheckJob(job), &verr))
	assert.Equal(t, "certified", verr.Field)
}
