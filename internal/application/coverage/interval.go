package coverage

import (
	"context"
	"sync"
	"time"
)

// TimeSource reports coverage mode=time: since no execution-data signal is
// available, it models the GUIDE-deadline fallback as a coverage value that
// saturates at 100 once interval has elapsed, so the shared adaptive-growth
// machinery in Monitor reports a stall once the value stops rising
// (spec.md §4.E "time" mode, §4.G "rearm time deadline"). The saturation
// clock restarts only on Reset.
type TimeSource struct {
	interval time.Duration
	start    time.Time
}

// NewTimeSource creates a source that saturates after interval has elapsed
// since the source was created (or last Reset).
func NewTimeSource(interval time.Duration) *TimeSource {
	return &TimeSource{interval: interval, start: time.Now()}
}

// Coverage returns elapsed/interval as a percentage, capped at 100.
func (s *TimeSource) Coverage(ctx context.Context) (float64, error) {
	elapsed := time.Since(s.start)
	pct := float64(elapsed) / float64(s.interval) * 100
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

// Reset restarts the saturation clock from now. The controller does not
// call it: on re-entering EXPLORE it clears the Monitor's window and rearms
// its Deadline instead.
func (s *TimeSource) Reset() {
	s.start = time.Now()
}

// Deadline is a plain elapsed-time gate, independent of any CoverageMonitor
// variant, used as the always-present fallback that forces a mode
// transition once GUIDANCE_INTERVAL_SECONDS has passed even if coverage
// growth hasn't stalled (spec.md §4.G "rearm time deadline").
type Deadline struct {
	mu       sync.Mutex
	interval time.Duration
	deadline time.Time
}

// NewDeadline creates a Deadline armed for interval from now.
func NewDeadline(interval time.Duration) *Deadline {
	return &Deadline{interval: interval, deadline: time.Now().Add(interval)}
}

// Expired reports whether the deadline has passed.
func (d *Deadline) Expired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Now().After(d.deadline)
}

// Rearm resets the deadline to interval from now.
func (d *Deadline) Rearm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deadline = time.Now().Add(d.interval)
}
