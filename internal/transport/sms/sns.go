// Package sms sends text messages through Amazon SNS.
package sms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
)

const (
	attrSenderID = "AWS.SNS.SMS.SenderID"
	attrSMSType  = "AWS.SNS.SMS.SMSType"
)

// SNS implements notify.SMSSender
type SNS struct {
	api    snsiface.SNSAPI
	logger *slog.Logger
}

// NewSNS creates a new SNS sender
func NewSNS(api snsiface.SNSAPI, logger *slog.Logger) *SNS {
	return &SNS{api: api, logger: logger}
}

// Send publishes message to the phone number to, labelled with the sender id from.
func (s *SNS) Send(ctx context.Context, from, to, message string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("sms: empty recipient")
	}
	attrs := map[string]*sns.MessageAttributeValue{
		attrSMSType: {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if from != "" {
		attrs[attrSenderID] = &sns.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(from)}
	}

	out, err := s.api.PublishWithContext(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(to),
		Message:           aws.String(message),
		MessageAttributes: attrs,
	})
	if err != nil {
		s.logger.Error("Failed to send SMS", slog.String("to", to), slog.Any("error", err))
		return "", fmt.Errorf("sns publish: %w", err)
	}

	id := aws.StringValue(out.MessageId)
	s.logger.Info("SMS sent", slog.String("to", to), slog.String("message_id", id))
	return id, nil
}
