package notify

import (
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

// DelayPolicy holds pushes sent during the night window until the window ends.
// Start and End are offsets from local midnight; a window with Start > End wraps midnight.
type DelayPolicy struct {
	Start    time.Duration
	End      time.Duration
	Location *time.Location
}

// NewDelayPolicy creates a policy for the [start, end) night window in loc.
func NewDelayPolicy(start, end time.Duration, loc *time.Location) *DelayPolicy {
	if loc == nil {
		loc = time.UTC
	}
	return &DelayPolicy{Start: start, End: end, Location: loc}
}

func (p *DelayPolicy) sinceMidnight(t time.Time) (time.Time, time.Duration) {
	local := t.In(p.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.Location)
	return midnight, local.Sub(midnight)
}

// IsNight reports whether t falls inside the night window.
func (p *DelayPolicy) IsNight(t time.Time) bool {
	_, off := p.sinceMidnight(t)
	if p.Start <= p.End {
		return off >= p.Start && off < p.End
	}
	return off >= p.Start || off < p.End
}

// NextBusinessTime is the end of the night window containing t, or t itself outside it.
func (p *DelayPolicy) NextBusinessTime(t time.Time) time.Time {
	if !p.IsNight(t) {
		return t
	}
	midnight, off := p.sinceMidnight(t)
	if p.Start > p.End && off >= p.Start {
		midnight = midnight.AddDate(0, 0, 1)
	}
	return time.Date(midnight.Year(), midnight.Month(), midnight.Day(), 0, 0, 0, 0, p.Location).Add(p.End)
}

// ShouldDelay reports whether a push to u at now is held back. Users are delayed at night
// unless they explicitly answered "no" to not_get_nighttime.
func (p *DelayPolicy) ShouldDelay(u *domain.User, now time.Time) bool {
	if u.Meta.NotGetNighttime == domain.PreferenceNo {
		return false
	}
	return p.IsNight(now)
}
