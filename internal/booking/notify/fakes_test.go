package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
	"github.com/cuongbtq/tolkbooking/internal/booking/eligibility"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentPush struct {
	tags      TagExpression
	payload   PushPayload
	sendAfter *time.Time
}

type fakePush struct {
	mu   sync.Mutex
	sent []sentPush
	fail bool
}

func (f *fakePush) Send(_ context.Context, tags TagExpression, payload PushPayload, sendAfter *time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("provider down")
	}
	f.sent = append(f.sent, sentPush{tags: tags, payload: payload, sendAfter: sendAfter})
	return "notification-id", nil
}

type sentMail struct {
	to       string
	subject  string
	template Template
	payload  EmailPayload
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (f *fakeMailer) Send(_ context.Context, toEmail, _, subject string, template Template, payload EmailPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp refused")
	}
	f.sent = append(f.sent, sentMail{to: toEmail, subject: subject, template: template, payload: payload})
	return nil
}

type fakeSMS struct {
	mu       sync.Mutex
	messages map[string]string
	failTo   string
}

func (f *fakeSMS) Send(_ context.Context, _, to, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if to == f.failTo {
		return "", errors.New("invalid number")
	}
	if f.messages == nil {
		f.messages = map[string]string{}
	}
	f.messages[to] = message
	return "sms-id", nil
}

type fakeMatcher struct {
	customer    *domain.User
	translators []*domain.User
}

func (f *fakeMatcher) Subject(_ context.Context, job *domain.Job) (eligibility.Subject, error) {
	return eligibility.Subject{Job: job, Customer: f.customer}, nil
}

func (f *fakeMatcher) MatchTranslators(context.Context, *domain.Job) ([]*domain.User, error) {
	return f.translators, nil
}

type fakeLanguages map[int64]string

func (f fakeLanguages) Name(_ context.Context, id int64) (string, error) {
	if name, ok := f[id]; ok {
		return name, nil
	}
	return "", domain.NotFoundf("language %d", id)
}
