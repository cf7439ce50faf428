// Package notify turns notification intents into push, email and SMS deliveries.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
	"github.com/cuongbtq/tolkbooking/internal/booking/eligibility"
)

const (
	ChannelPush  = "push"
	ChannelEmail = "email"
	ChannelSMS   = "sms"

	defaultConcurrency = 8
)

// PushData is the custom data attached to every push.
type PushData struct {
	NotificationType Kind                 `json:"notification_type"`
	JobID            int64                `json:"job_id"`
	Language         string               `json:"language,omitempty"`
	Due              string               `json:"due,omitempty"`
	DueDate          string               `json:"due_date,omitempty"`
	DueTime          string               `json:"due_time,omitempty"`
	Duration         int                  `json:"duration,omitempty"`
	Immediate        string               `json:"immediate,omitempty"`
	JobType          domain.JobType       `json:"job_type,omitempty"`
	Gender           domain.Gender        `json:"gender,omitempty"`
	Certified        domain.Certification `json:"certified,omitempty"`
	CustomerTown     string               `json:"customer_town,omitempty"`
	CustomerType     string               `json:"customer_type,omitempty"`
	JobFor           []string             `json:"job_for"`
}

// PushPayload is what a push transport delivers to the tagged devices.
type PushPayload struct {
	Data     PushData
	Contents map[string]string
	Sound    Sound
}

// PushSender delivers one push to every device matching tags. sendAfter nil means now.
type PushSender interface {
	Send(ctx context.Context, tags TagExpression, payload PushPayload, sendAfter *time.Time) (string, error)
}

// Mailer renders template with payload and mails it.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject string, template Template, payload EmailPayload) error
}

// SMSSender sends one text message and returns the provider message id.
type SMSSender interface {
	Send(ctx context.Context, from, to, message string) (string, error)
}

// LanguageNamer resolves a language id to its display label.
type LanguageNamer interface {
	Name(ctx context.Context, id int64) (string, error)
}

// Matcher resolves the translators a job is offered to.
type Matcher interface {
	Subject(ctx context.Context, job *domain.Job) (eligibility.Subject, error)
	MatchTranslators(ctx context.Context, job *domain.Job) ([]*domain.User, error)
}

// Config holds dispatcher dependencies
type Config struct {
	Push        PushSender
	Mail        Mailer
	SMS         SMSSender
	Matcher     Matcher
	Languages   LanguageNamer
	Delay       *DelayPolicy
	SMSFrom     string
	Concurrency int
	Clock       func() time.Time
	Logger      *slog.Logger
}

// Dispatcher delivers intents. Delivery failures of a Dispatch call are logged and never
// returned, so a committed state change is not reported as failed.
type Dispatcher struct {
	push        PushSender
	mail        Mailer
	sms         SMSSender
	matcher     Matcher
	languages   LanguageNamer
	delay       *DelayPolicy
	texts       Texts
	smsFrom     string
	concurrency int
	clock       func() time.Time
	logger      *slog.Logger
}

// Report summarizes a Dispatch call.
type Report struct {
	Attempted int
	Failed    int
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(cfg *Config) *Dispatcher {
	d := &Dispatcher{
		push:        cfg.Push,
		mail:        cfg.Mail,
		sms:         cfg.SMS,
		matcher:     cfg.Matcher,
		languages:   cfg.Languages,
		delay:       cfg.Delay,
		smsFrom:     cfg.SMSFrom,
		concurrency: cfg.Concurrency,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}
	if d.delay == nil {
		d.delay = NewDelayPolicy(22*time.Hour, 7*time.Hour, time.UTC)
	}
	if d.concurrency <= 0 {
		d.concurrency = defaultConcurrency
	}
	if d.clock == nil {
		d.clock = time.Now
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.texts = NewTexts(d.delay.Location)
	return d
}

// Texts returns the renderer bound to the booking location.
func (d *Dispatcher) Texts() Texts {
	return d.texts
}

// Dispatch delivers intents in parallel and waits for all of them.
func (d *Dispatcher) Dispatch(ctx context.Context, intents ...Intent) Report {
	var failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for _, in := range intents {
		if in == nil {
			continue
		}
		g.Go(func() error {
			if err := d.deliver(ctx, in); err != nil {
				failed.Add(1)
				d.logger.Error("Failed to deliver notification",
					slog.String("intent", in.String()),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return Report{Attempted: countNonNil(intents), Failed: int(failed.Load())}
}

func (d *Dispatcher) deliver(ctx context.Context, in Intent) error {
	if err := in.Validate(); err != nil {
		return fmt.Errorf("invalid intent: %w", err)
	}
	switch v := in.(type) {
	case *Push:
		_, err := d.SendPush(ctx, v)
		return err
	case *Broadcast:
		_, err := d.Broadcast(ctx, v)
		return err
	case *Email:
		return d.SendEmail(ctx, v)
	default:
		return fmt.Errorf("unsupported intent %T", in)
	}
}

// SendPush delivers a targeted push and returns how many users were addressed.
func (d *Dispatcher) SendPush(ctx context.Context, p *Push) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	language := d.languageName(ctx, p.Job.FromLanguageID)
	payload := d.payload(ctx, p.Kind(), p.Job, language, d.texts.Push(p.Message, p.Job, language))
	return d.pushToUsers(ctx, payload, filterReachable(p.Recipients, false, false))
}

// Broadcast offers the job to every eligible translator and returns how many were addressed.
func (d *Dispatcher) Broadcast(ctx context.Context, b *Broadcast) (int, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	translators, err := d.matcher.MatchTranslators(ctx, b.Job)
	if err != nil {
		return 0, fmt.Errorf("failed to match translators: %w", err)
	}

	excluded := make(map[int64]struct{}, len(b.Exclude))
	for _, id := range b.Exclude {
		excluded[id] = struct{}{}
	}
	candidates := make([]*domain.User, 0, len(translators))
	for _, tr := range translators {
		if _, skip := excluded[tr.ID]; !skip {
			candidates = append(candidates, tr)
		}
	}
	recipients := filterReachable(candidates, true, b.Job.Immediate)

	language := d.languageName(ctx, b.Job.FromLanguageID)
	payload := d.payload(ctx, KindSuitableJob, b.Job, language, d.texts.Broadcast(b.Job, language))

	d.logger.Info("Broadcasting job",
		slog.Int64("job_id", b.Job.ID),
		slog.Int("matched", len(translators)),
		slog.Int("recipients", len(recipients)),
	)
	return d.pushToUsers(ctx, payload, recipients)
}

// SendEmail renders the subject and mails e.
func (d *Dispatcher) SendEmail(ctx context.Context, e *Email) error {
	if err := e.Validate(); err != nil {
		return err
	}
	language := d.languageName(ctx, e.Payload.Job.FromLanguageID)
	if e.Template == TplLanguageChanged {
		e.Payload.NewLanguage = language
		e.Payload.OldLanguage = d.languageName(ctx, e.Payload.OldLanguageID)
	}

	to := e.Payload.User
	if err := d.mail.Send(ctx, e.Recipient(), to.Name, d.texts.Subject(e, language), e.Template, e.Payload); err != nil {
		return domain.NewTransportError(ChannelEmail, err)
	}
	return nil
}

// SendSMSToTranslators texts every eligible translator with a mobile number about job.
// It returns the number of eligible translators; failed sends are joined into a
// TransportError.
func (d *Dispatcher) SendSMSToTranslators(ctx context.Context, job *domain.Job) (int, error) {
	s, err := d.matcher.Subject(ctx, job)
	if err != nil {
		return 0, err
	}
	translators, err := d.matcher.MatchTranslators(ctx, job)
	if err != nil {
		return 0, fmt.Errorf("failed to match translators: %w", err)
	}

	town := job.Town
	if town == "" {
		town = eligibility.CustomerTown(s)
	}
	message, err := RenderSMS(job, town, d.delay.Location)
	if err != nil {
		return 0, err
	}

	var (
		errs []error
		sent atomic.Int64
	)
	errc := make(chan error, len(translators))
	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for _, tr := range translators {
		if tr.Mobile == "" {
			continue
		}
		g.Go(func() error {
			if _, err := d.sms.Send(ctx, d.smsFrom, tr.Mobile, message); err != nil {
				errc <- fmt.Errorf("translator %d: %w", tr.ID, err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	close(errc)
	for err := range errc {
		errs = append(errs, err)
	}

	d.logger.Info("Sent job SMS",
		slog.Int64("job_id", job.ID),
		slog.Int("translators", len(translators)),
		slog.Int64("sent", sent.Load()),
		slog.Int("failed", len(errs)),
	)

	if len(errs) > 0 {
		return len(translators), domain.NewTransportError(ChannelSMS, errors.Join(errs...))
	}
	return len(translators), nil
}

func (d *Dispatcher) payload(ctx context.Context, kind Kind, job *domain.Job, language, text string) PushPayload {
	immediate := domain.PreferenceNo
	if job.Immediate {
		immediate = domain.PreferenceYes
	}
	data := PushData{
		NotificationType: kind,
		JobID:            job.ID,
		Language:         language,
		Due:              d.texts.Due(job),
		DueDate:          d.texts.DueDate(job),
		DueTime:          d.texts.DueTime(job),
		Duration:         job.Duration,
		Immediate:        immediate,
		JobType:          job.JobType,
		Gender:           job.Gender,
		Certified:        job.Certified,
		CustomerTown:     job.Town,
		JobFor:           JobFor(job),
	}
	if s, err := d.matcher.Subject(ctx, job); err != nil {
		d.logger.Warn("Failed to resolve job customer",
			slog.Int64("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	} else if s.Customer != nil {
		data.CustomerType = s.Customer.Meta.ConsumerType
		if data.CustomerTown == "" {
			data.CustomerTown = eligibility.CustomerTown(s)
		}
	}
	return PushPayload{
		Data:     data,
		Contents: map[string]string{"en": text},
		Sound:    SoundFor(kind, job.Immediate),
	}
}

// pushToUsers splits users into an immediate and a delayed group and sends one push per
// non-empty group.
func (d *Dispatcher) pushToUsers(ctx context.Context, payload PushPayload, users []*domain.User) (int, error) {
	now := d.clock()
	var immediate, delayed []*domain.User
	for _, u := range users {
		if d.delay.ShouldDelay(u, now) {
			delayed = append(delayed, u)
		} else {
			immediate = append(immediate, u)
		}
	}

	var errs []error
	if tags := EmailTags(immediate); len(tags) > 0 {
		if _, err := d.push.Send(ctx, tags, payload, nil); err != nil {
			errs = append(errs, err)
		}
	}
	if tags := EmailTags(delayed); len(tags) > 0 {
		at := d.delay.NextBusinessTime(now)
		if _, err := d.push.Send(ctx, tags, payload, &at); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return len(users), domain.NewTransportError(ChannelPush, errors.Join(errs...))
	}
	return len(users), nil
}

func (d *Dispatcher) languageName(ctx context.Context, id int64) string {
	if d.languages != nil {
		name, err := d.languages.Name(ctx, id)
		if err == nil && name != "" {
			return name
		}
		if err != nil {
			d.logger.Warn("Failed to resolve language",
				slog.Int64("language_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return strconv.FormatInt(id, 10)
}

// filterReachable drops disabled users and users who opted out of notifications.
// For offers of immediate jobs it also drops translators who opted out of emergencies.
func filterReachable(users []*domain.User, offer, immediate bool) []*domain.User {
	out := make([]*domain.User, 0, len(users))
	for _, u := range users {
		if !u.Enabled || u.Meta.NotGetNotification == domain.PreferenceYes {
			continue
		}
		if offer && immediate && u.Meta.NotGetEmergency == domain.PreferenceYes {
			continue
		}
		out = append(out, u)
	}
	return out
}

func countNonNil(intents []Intent) int {
	n := 0
	for _, in := range intents {
		if in != nil {
			n++
		}
	}
	return n
}
