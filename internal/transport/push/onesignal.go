// Package push delivers notifications through the OneSignal REST API.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/notify"
)

const (
	DefaultURL     = "https://onesignal.com/api/v1/notifications"
	defaultHeading = "DigitalTolk"
	sendAfterFmt   = "2006-01-02 15:04:05 GMT-0700"
	maxAttempts    = 3
)

// Config holds OneSignal credentials
type Config struct {
	URL     string
	AppID   string
	APIKey  string
	Timeout time.Duration
	// Backoff is the wait before the second attempt, doubled for each further one.
	Backoff time.Duration
}

// Client sends notifications to devices selected by tags
type Client struct {
	url        string
	appID      string
	apiKey     string
	backoff    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new OneSignal client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Client{
		url:     url,
		appID:   cfg.AppID,
		apiKey:  cfg.APIKey,
		backoff: backoff,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

type request struct {
	AppID         string               `json:"app_id"`
	Tags          notify.TagExpression `json:"tags"`
	Headings      map[string]string    `json:"headings"`
	Contents      map[string]string    `json:"contents"`
	Data          notify.PushData      `json:"data"`
	AndroidSound  string               `json:"android_sound"`
	IOSSound      string               `json:"ios_sound"`
	IOSBadgeType  string               `json:"ios_badgeType"`
	IOSBadgeCount int                  `json:"ios_badgeCount"`
	SendAfter     string               `json:"send_after,omitempty"`
}

type response struct {
	ID         string          `json:"id"`
	Recipients int             `json:"recipients"`
	Errors     json.RawMessage `json:"errors,omitempty"`
}

// Send implements notify.PushSender and returns the provider notification id.
func (c *Client) Send(ctx context.Context, tags notify.TagExpression, payload notify.PushPayload, sendAfter *time.Time) (string, error) {
	body := request{
		AppID:         c.appID,
		Tags:          tags,
		Headings:      map[string]string{"en": defaultHeading},
		Contents:      payload.Contents,
		Data:          payload.Data,
		AndroidSound:  payload.Sound.Android,
		IOSSound:      payload.Sound.IOS,
		IOSBadgeType:  "Increase",
		IOSBadgeCount: 1,
	}
	if sendAfter != nil {
		body.SendAfter = sendAfter.Format(sendAfterFmt)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal push: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			c.logger.Debug("Retrying push",
				slog.Int64("job_id", payload.Data.JobID),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", wait),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		id, retry, err := c.post(ctx, raw)
		if err == nil {
			c.logger.Info("Push sent",
				slog.String("notification_id", id),
				slog.Int64("job_id", payload.Data.JobID),
				slog.String("type", string(payload.Data.NotificationType)),
				slog.Int("targets", tags.Targets()),
			)
			return id, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return "", lastErr
}

// post performs one request. retry reports whether the failure is worth another attempt.
func (c *Client) post(ctx context.Context, raw []byte) (id string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", false, err
		}
		return "", true, fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("Push provider unavailable", slog.Int("status", resp.StatusCode))
		return "", true, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Push rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return "", false, fmt.Errorf("push rejected with status %d: %s", resp.StatusCode, body)
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return "", false, fmt.Errorf("unmarshal response: %w", err)
	}
	return out.ID, false, nil
}
