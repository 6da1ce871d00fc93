package sim

import "time"

const (
	DefaultTickInterval = 16 * time.Millisecond
	DefaultMaxStep      = 100 * time.Millisecond
)

// Clock is a best-effort ticker that measures wall time between ticks.
// Step clamps the measured delta to MaxStep so a stall cannot make carts jump
// across several waypoints at once.
//
// Clock is not safe for concurrent use; the goroutine selecting on C must
// also call Start, Stop and Step.
type Clock struct {
	interval time.Duration
	maxStep  time.Duration
	ticker   *time.Ticker
	last     time.Time
	now      func() time.Time
}

// NewClock creates a stopped clock. Non-positive values fall back to the defaults.
func NewClock(interval, maxStep time.Duration) *Clock {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if maxStep <= 0 {
		maxStep = DefaultMaxStep
	}
	return &Clock{interval: interval, maxStep: maxStep, now: time.Now}
}

// SetNow replaces the time source used by Start.
func (c *Clock) SetNow(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Interval returns the tick period.
func (c *Clock) Interval() time.Duration {
	return c.interval
}

// MaxStep returns the largest delta Step will report.
func (c *Clock) MaxStep() time.Duration {
	return c.maxStep
}

// Running reports whether the ticker is active.
func (c *Clock) Running() bool {
	return c.ticker != nil
}

// Start begins ticking. Starting a running clock only resets the reference time.
func (c *Clock) Start() {
	c.last = c.now()
	if c.ticker == nil {
		c.ticker = time.NewTicker(c.interval)
	}
}

// Stop halts the ticker. Ticks already queued are discarded.
func (c *Clock) Stop() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

// C returns the tick channel, or nil while stopped so a select never fires on it.
func (c *Clock) C() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.C
}

// Step returns the seconds elapsed since the previous Step or Start, clamped
// to [0, MaxStep].
func (c *Clock) Step(now time.Time) float64 {
	if c.last.IsZero() {
		c.last = now
		return 0
	}
	d := now.Sub(c.last)
	c.last = now
	if d < 0 {
		return 0
	}
	if d > c.maxStep {
		d = c.maxStep
	}
	return d.Seconds()
}
