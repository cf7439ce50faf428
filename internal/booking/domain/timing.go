package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CancelWindow is how long before due a booking counts as cancelled early.
const CancelWindow = 24 * time.Hour

// WillExpireAt computes when an unaccepted booking times out.
// Short-notice bookings stay open until due; far-ahead bookings close 48h before.
func WillExpireAt(due, created time.Time) time.Time {
	lead := due.Sub(created)
	switch {
	case lead <= 90*time.Minute:
		return due
	case lead <= 24*time.Hour:
		return created.Add(90 * time.Minute)
	case lead <= 72*time.Hour:
		return created.Add(16 * time.Hour)
	default:
		return due.Add(-48 * time.Hour)
	}
}

// CustomerWithdrawStatus picks the withdraw status for a customer cancellation at now.
// Exactly 24h before due still counts as early.
func CustomerWithdrawStatus(due, now time.Time) JobStatus {
	if due.Sub(now) >= CancelWindow {
		return StatusWithdrawBefore24
	}
	return StatusWithdrawAfter24
}

// ParseSessionTime parses an "H:M" or "H:M:S" duration.
func ParseSessionTime(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedDuration, s)
	}

	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedDuration, s)
		}
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedDuration, s)
		}
		total += time.Duration(n) * units[i]
	}
	return total, nil
}

// FormatClock renders d as "H:MM:SS", the stored session time format.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// FormatSessionTime renders d the way invoices and payroll show it: "1 tim 30 min".
func FormatSessionTime(d time.Duration) string {
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	return fmt.Sprintf("%d tim %d min", h, m)
}

// HoursMinutes renders a booking length in minutes for SMS texts.
func HoursMinutes(minutes int) string {
	switch {
	case minutes < 60:
		return fmt.Sprintf("%dmin", minutes)
	case minutes == 60:
		return "1h"
	default:
		return fmt.Sprintf("%02dh %02dmin", minutes/60, minutes%60)
	}
}

// DueWindow returns the half-open interval a booking occupies.
func DueWindow(j *Job) (time.Time, time.Time) {
	return j.Due, j.Due.Add(time.Duration(j.Duration) * time.Minute)
}

// Overlaps reports whether two bookings occupy the translator at the same time.
// Zero-length bookings overlap only when they share the same due time.
func Overlaps(a, b *Job) bool {
	if a.Due.Equal(b.Due) {
		return true
	}
	aStart, aEnd := DueWindow(a)
	bStart, bEnd := DueWindow(b)
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
