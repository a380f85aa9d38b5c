package timing

import (
	"sync"
	"time"
)

// Clock is the timestamp source for the frame loop.
type Clock interface {
	Now() Tick
	Frequency() Frequency
}

// Sleeper performs the two halves of a paced wait. A Clock that also
// implements Sleeper controls how the Pacer waits on it; otherwise the
// Pacer sleeps on the OS and spins on the clock.
type Sleeper interface {
	// Sleep blocks for roughly d. It may wake early or late.
	Sleep(d time.Duration)
	// Spin is called once per iteration of the tight wait loop.
	Spin()
}

// MonotonicClock reports ticks elapsed since its creation using the
// runtime's monotonic clock reading.
type MonotonicClock struct {
	epoch time.Time
	freq  Frequency
}

// NewMonotonicClock creates a clock at the given frequency. A frequency
// above one tick per nanosecond is clamped since time.Time cannot resolve it.
func NewMonotonicClock(freq Frequency) *MonotonicClock {
	if freq <= 0 {
		freq = DefaultFrequency
	}
	if freq > Frequency(time.Second) {
		freq = Frequency(time.Second)
	}
	return &MonotonicClock{epoch: time.Now(), freq: freq}
}

func (c *MonotonicClock) Now() Tick {
	return c.freq.FromDuration(time.Since(c.epoch))
}

func (c *MonotonicClock) Frequency() Frequency { return c.freq }

// ManualClock is a controllable clock for tests and deterministic runs.
// Sleeping on it advances it instead of blocking.
type ManualClock struct {
	mu   sync.RWMutex
	now  Tick
	freq Frequency

	// SpinStep is how far one Spin call advances the clock.
	SpinStep Tick
}

// NewManualClock creates a manual clock starting at start.
func NewManualClock(freq Frequency, start Tick) *ManualClock {
	if freq <= 0 {
		freq = DefaultFrequency
	}
	return &ManualClock{
		now:      start,
		freq:     freq,
		SpinStep: Tick(freq / 10_000), // 100µs
	}
}

func (c *ManualClock) Now() Tick {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *ManualClock) Frequency() Frequency { return c.freq }

// Set moves the clock to t. Moving it backwards is allowed so tests can
// simulate a broken timestamp source.
func (c *ManualClock) Set(t Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d ticks.
func (c *ManualClock) Advance(d Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

func (c *ManualClock) Sleep(d time.Duration) {
	c.Advance(c.freq.FromDuration(d))
}

func (c *ManualClock) Spin() {
	step := c.SpinStep
	if step <= 0 {
		step = 1
	}
	c.Advance(step)
}
