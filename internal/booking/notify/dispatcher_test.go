package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

var (
	noon     = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	midnight = time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
)

type fixture struct {
	push    *fakePush
	mail    *fakeMailer
	sms     *fakeSMS
	matcher *fakeMatcher
	d       *Dispatcher
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		push:    &fakePush{},
		mail:    &fakeMailer{},
		sms:     &fakeSMS{},
		matcher: &fakeMatcher{customer: &domain.User{ID: 100, Meta: domain.UserMeta{City: "Uppsala"}}},
	}
	f.d = NewDispatcher(&Config{
		Push:      f.push,
		Mail:      f.mail,
		SMS:       f.sms,
		Matcher:   f.matcher,
		Languages: fakeLanguages{5: "Arabiska"},
		Delay:     NewDelayPolicy(22*time.Hour, 7*time.Hour, time.UTC),
		SMSFrom:   "DigitalTolk",
		Clock:     func() time.Time { return now },
		Logger:    discardLogger(),
	})
	return f
}

func user(id int64, email string) *domain.User {
	return &domain.User{ID: id, Type: domain.UserTranslator, Enabled: true, Email: email, Mobile: "+4670000000" + strconv.FormatInt(id, 10)}
}

func job() *domain.Job {
	return &domain.Job{ID: 42, CustomerID: 100, FromLanguageID: 5, Duration: 90, Due: time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC), JobType: domain.JobTypePaid}
}

func TestBroadcast_FiltersAndCountsRecipients(t *testing.T) {
	f := newFixture(noon)
	optedOut := user(3, "c@example.com")
	optedOut.Meta.NotGetNotification = domain.PreferenceYes
	f.matcher.translators = []*domain.User{user(1, "A@example.com"), user(2, "b@example.com"), optedOut, user(4, "d@example.com")}

	n, err := f.d.Broadcast(context.Background(), NewBroadcast(job(), 4))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, f.push.sent, 1)
	sent := f.push.sent[0]
	assert.Nil(t, sent.sendAfter)
	assert.Equal(t, 2, sent.tags.Targets())
	assert.Equal(t, KindSuitableJob, sent.payload.Data.NotificationType)
	assert.Equal(t, "Ny bokning för Arabiskatolk 90min 2026-03-05 09:30", sent.payload.Contents["en"])
	assert.Equal(t, Sound{Android: "normal_booking", IOS: "normal_booking.mp3"}, sent.payload.Sound)

	raw, err := json.Marshal(sent.tags)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"key":"email","relation":"=","value":"a@example.com"},{"operator":"OR"},{"key":"email","relation":"=","value":"b@example.com"}]`, string(raw))
}

func TestBroadcast_EmergencyOptOut(t *testing.T) {
	optOut := user(2, "b@example.com")
	optOut.Meta.NotGetEmergency = domain.PreferenceYes

	tests := []struct {
		name      string
		immediate bool
		expected  int
	}{
		{name: "immediate job skips emergency opt-out", immediate: true, expected: 1},
		{name: "regular job reaches everyone", immediate: false, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(noon)
			f.matcher.translators = []*domain.User{user(1, "a@example.com"), optOut}
			j := job()
			j.Immediate = tt.immediate

			n, err := f.d.Broadcast(context.Background(), NewBroadcast(j))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}

func TestBroadcast_NightSplitsImmediateAndDelayed(t *testing.T) {
	f := newFixture(midnight)
	awake := user(1, "a@example.com")
	awake.Meta.NotGetNighttime = domain.PreferenceNo
	f.matcher.translators = []*domain.User{awake, user(2, "b@example.com"), user(3, "c@example.com")}

	n, err := f.d.Broadcast(context.Background(), NewBroadcast(job()))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, f.push.sent, 2)
	assert.Nil(t, f.push.sent[0].sendAfter)
	assert.Equal(t, 1, f.push.sent[0].tags.Targets())

	require.NotNil(t, f.push.sent[1].sendAfter)
	assert.Equal(t, time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC), *f.push.sent[1].sendAfter)
	assert.Equal(t, 2, f.push.sent[1].tags.Targets())
}

func TestBroadcast_NoRecipientsSendsNothing(t *testing.T) {
	f := newFixture(noon)

	n, err := f.d.Broadcast(context.Background(), NewBroadcast(job()))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.push.sent)
}

func TestSendPush_JobData(t *testing.T) {
	f := newFixture(noon)
	f.matcher.customer.Meta.ConsumerType = "paid"
	j := job()
	j.Gender = domain.GenderFemale
	j.Certified = domain.CertBoth

	_, err := f.d.SendPush(context.Background(), NewPush(MsgJobExpired, j, user(1, "a@example.com")))
	require.NoError(t, err)

	require.Len(t, f.push.sent, 1)
	assert.Equal(t, PushData{
		NotificationType: KindJobExpired,
		JobID:            42,
		Language:         "Arabiska",
		Due:              "2026-03-05 09:30",
		DueDate:          "2026-03-05",
		DueTime:          "09:30",
		Duration:         90,
		Immediate:        domain.PreferenceNo,
		JobType:          domain.JobTypePaid,
		Gender:           domain.GenderFemale,
		Certified:        domain.CertBoth,
		CustomerTown:     "Uppsala",
		CustomerType:     "paid",
		JobFor:           []string{"Kvinna", "Godkänd tolk", "Auktoriserad"},
	}, f.push.sent[0].payload.Data)
}

func TestJobFor(t *testing.T) {
	tests := []struct {
		name      string
		gender    domain.Gender
		certified domain.Certification
		expected  []string
	}{
		{name: "no requirements", expected: []string{}},
		{name: "male", gender: domain.GenderMale, expected: []string{"Man"}},
		{name: "authorized", certified: domain.CertYes, expected: []string{"Auktoriserad"}},
		{name: "health care", gender: domain.GenderFemale, certified: domain.CertNHealth, expected: []string{"Kvinna", "Sjukvårdstolk"}},
		{name: "law", certified: domain.CertLaw, expected: []string{"Rättstolk"}},
		{name: "other level passes through", certified: domain.CertNormal, expected: []string{"normal"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, JobFor(&domain.Job{Gender: tt.gender, Certified: tt.certified}))
		})
	}
}

func TestSendPush_TransportFailure(t *testing.T) {
	f := newFixture(noon)
	f.push.fail = true

	_, err := f.d.SendPush(context.Background(), NewPush(MsgJobExpired, job(), user(1, "a@example.com")))
	var terr *domain.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ChannelPush, terr.Channel)
}

func TestDispatch_LogsFailuresAndWaits(t *testing.T) {
	f := newFixture(noon)
	f.mail.fail = true
	customer := &domain.User{ID: 100, Type: domain.UserCustomer, Enabled: true, Email: "kund@example.com"}

	report := f.d.Dispatch(context.Background(),
		NewPush(MsgBookingAccepted, job(), customer),
		JobAcceptedEmail(customer, job()),
		SessionEndedEmail(customer, job(), "", domain.ForTextInvoice),
	)

	assert.Equal(t, Report{Attempted: 3, Failed: 2}, report)
	require.Len(t, f.push.sent, 1)
	assert.Equal(t, KindJobAccepted, f.push.sent[0].payload.Data.NotificationType)
	assert.Equal(t, defaultSound, f.push.sent[0].payload.Sound)
}

func TestSendEmail_SubjectAndLanguages(t *testing.T) {
	f := newFixture(noon)
	f.d.languages = fakeLanguages{5: "Arabiska", 7: "Somaliska"}
	customer := &domain.User{ID: 100, Email: "kund@example.com", Name: "Kund"}

	require.NoError(t, f.d.SendEmail(context.Background(), LanguageChangedEmail(customer, job(), 7)))
	require.NoError(t, f.d.SendEmail(context.Background(), JobReopenedEmail(customer, job())))

	require.Len(t, f.mail.sent, 2)
	assert.Equal(t, "Meddelande om ändring av tolkbokning för uppdrag # 42", f.mail.sent[0].subject)
	assert.Equal(t, "Somaliska", f.mail.sent[0].payload.OldLanguage)
	assert.Equal(t, "Arabiska", f.mail.sent[0].payload.NewLanguage)
	assert.Equal(t, "Vi har nu återöppnat er bokning av Arabiskatolk för bokning #42", f.mail.sent[1].subject)
}

func TestSendEmail_BookingAddressForCustomer(t *testing.T) {
	f := newFixture(noon)
	customer := &domain.User{ID: 100, Email: "kund@example.com", Name: "Kund"}
	tolk := user(200, "tolk@example.com")
	j := job()
	j.UserEmail = "bokning@foretag.se"

	require.NoError(t, f.d.SendEmail(context.Background(), JobAcceptedEmail(customer, j)))
	require.NoError(t, f.d.SendEmail(context.Background(), SessionEndedEmail(tolk, j, "1 tim 30 min", domain.ForTextPayroll)))

	require.Len(t, f.mail.sent, 2)
	assert.Equal(t, "bokning@foretag.se", f.mail.sent[0].to)
	assert.Equal(t, "tolk@example.com", f.mail.sent[1].to)

	j.UserEmail = ""
	require.NoError(t, f.d.SendEmail(context.Background(), JobAcceptedEmail(customer, j)))
	assert.Equal(t, "kund@example.com", f.mail.sent[2].to)
}

func TestSendSMSToTranslators(t *testing.T) {
	f := newFixture(noon)
	noMobile := user(3, "c@example.com")
	noMobile.Mobile = ""
	f.matcher.translators = []*domain.User{user(1, "a@example.com"), user(2, "b@example.com"), noMobile}

	j := job()
	j.CustomerPhysicalType = true

	n, err := f.d.SendSMSToTranslators(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, f.sms.messages, 2)
	assert.Contains(t, f.sms.messages[user(1, "").Mobile], "på plats i Uppsala den 05.03.2026 kl 09:30, 01h 30min")
	assert.Contains(t, f.sms.messages[user(1, "").Mobile], "#42")
}

func TestSendSMSToTranslators_PropagatesTransportError(t *testing.T) {
	f := newFixture(noon)
	f.matcher.translators = []*domain.User{user(1, "a@example.com"), user(2, "b@example.com")}
	f.sms.failTo = user(2, "").Mobile

	n, err := f.d.SendSMSToTranslators(context.Background(), job())
	assert.Equal(t, 2, n)
	var terr *domain.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ChannelSMS, terr.Channel)
	assert.Contains(t, f.sms.messages[user(1, "").Mobile], "telefontolkning")
}
