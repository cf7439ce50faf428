package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

func TestIntentValidation(t *testing.T) {
	customer := &domain.User{ID: 1, Email: "kund@example.com"}
	noEmail := &domain.User{ID: 2}
	j := &domain.Job{ID: 9}
	withContact := &domain.Job{ID: 10, CustomerID: 2, UserEmail: "bokning@foretag.se"}

	tests := []struct {
		name    string
		intent  Intent
		wantErr bool
	}{
		{name: "push", intent: NewPush(MsgJobExpired, j, customer)},
		{name: "push without recipients", intent: NewPush(MsgJobExpired, j), wantErr: true},
		{name: "push with unknown message", intent: NewPush("hello", j, customer), wantErr: true},
		{name: "broadcast without job", intent: NewBroadcast(nil), wantErr: true},
		{name: "session ended", intent: SessionEndedEmail(customer, j, "1 tim 30 min", domain.ForTextInvoice)},
		{name: "session ended without time", intent: SessionEndedEmail(customer, j, "", domain.ForTextPayroll), wantErr: true},
		{name: "session ended with unknown recipient role", intent: SessionEndedEmail(customer, j, "1 tim", "kvitto"), wantErr: true},
		{name: "email without address", intent: JobAcceptedEmail(noEmail, j), wantErr: true},
		{name: "job created", intent: JobCreatedEmail(customer, j)},
		{name: "job created to booking contact", intent: JobCreatedEmail(noEmail, withContact)},
		{name: "date change", intent: DateChangedEmail(customer, j, time.Now())},
		{name: "language change without old language", intent: LanguageChangedEmail(customer, j, 0), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.intent.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTranslatorChangedEmails(t *testing.T) {
	customer := &domain.User{ID: 1, Email: "kund@example.com"}
	newTr := &domain.User{ID: 3, Email: "ny@example.com"}

	assert.Len(t, TranslatorChangedEmails(customer, nil, newTr, &domain.Job{ID: 1}), 2)
	assert.Len(t, TranslatorChangedEmails(customer, &domain.User{ID: 2, Email: "old@example.com"}, newTr, &domain.Job{ID: 1}), 3)
}

func TestPushKind(t *testing.T) {
	assert.Equal(t, KindJobCancelled, NewPush(MsgCustomerCancelled, nil).Kind())
	assert.Equal(t, KindSessionStartRemind, NewPush(MsgSessionReminder, nil).Kind())
	assert.Equal(t, Sound{Android: "emergency_booking", IOS: "emergency_booking.mp3"}, SoundFor(KindSuitableJob, true))
	assert.Equal(t, defaultSound, SoundFor(KindJobExpired, true))
}
