// Package mail sends templated booking emails through Amazon SES.
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"

	"github.com/cuongbtq/tolkbooking/internal/booking/notify"
)

// SES template names allow letters, digits, '-' and '_' only.
var templateName = strings.NewReplacer(".", "_")

// Config holds the sender identity
type Config struct {
	From           string
	TemplatePrefix string
}

// SES implements notify.Mailer
type SES struct {
	api    sesiface.SESAPI
	cfg    Config
	logger *slog.Logger
}

// NewSES creates a new SES mailer
func NewSES(api sesiface.SESAPI, cfg Config, logger *slog.Logger) *SES {
	return &SES{api: api, cfg: cfg, logger: logger}
}

type templateData struct {
	notify.EmailPayload
	Subject string `json:"subject"`
	Name    string `json:"name"`
}

// Send renders the stored SES template for tpl with payload.
func (m *SES) Send(ctx context.Context, toEmail, toName, subject string, tpl notify.Template, payload notify.EmailPayload) error {
	data, err := json.Marshal(templateData{EmailPayload: payload, Subject: subject, Name: toName})
	if err != nil {
		return fmt.Errorf("marshal template data: %w", err)
	}

	to := toEmail
	if toName != "" {
		to = fmt.Sprintf("%q <%s>", toName, toEmail)
	}
	name := m.cfg.TemplatePrefix + templateName.Replace(string(tpl))

	out, err := m.api.SendTemplatedEmailWithContext(ctx, &ses.SendTemplatedEmailInput{
		Source:       aws.String(m.cfg.From),
		Destination:  &ses.Destination{ToAddresses: []*string{aws.String(to)}},
		Template:     aws.String(name),
		TemplateData: aws.String(string(data)),
	})
	if err != nil {
		m.logger.Error("Failed to send email",
			slog.String("template", name),
			slog.String("to", toEmail),
			slog.Any("error", err),
		)
		return fmt.Errorf("ses send %s: %w", name, err)
	}

	m.logger.Info("Email sent",
		slog.String("template", name),
		slog.String("to", toEmail),
		slog.String("message_id", aws.StringValue(out.MessageId)),
	)
	return nil
}
