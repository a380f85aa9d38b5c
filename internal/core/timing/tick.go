package timing

import (
	"math"
	"time"
)

// Tick counts clock ticks since process start. All frame timing arithmetic
// is done in Ticks; seconds and time.Duration are derived views.
type Tick int64

// Frequency is the number of ticks per second reported by a Clock.
type Frequency int64

// DefaultFrequency matches a 100ns tick.
const DefaultFrequency Frequency = 10_000_000

// FromSeconds converts seconds to ticks, rounding to the nearest tick.
// Non-finite input yields 0.
func (f Frequency) FromSeconds(s float64) Tick {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return Tick(math.Round(s * float64(f)))
}

// Seconds converts ticks to seconds. Display and API use only.
func (f Frequency) Seconds(t Tick) float64 {
	return float64(t) / float64(f)
}

// Duration converts ticks to a time.Duration without overflowing the
// intermediate product for long intervals.
func (f Frequency) Duration(t Tick) time.Duration {
	q := int64(t) / int64(f)
	r := int64(t) % int64(f)
	return time.Duration(q)*time.Second + time.Duration(r*int64(time.Second)/int64(f))
}

// FromDuration converts a time.Duration to ticks, truncating.
func (f Frequency) FromDuration(d time.Duration) Tick {
	q := int64(d) / int64(time.Second)
	r := int64(d) % int64(time.Second)
	return Tick(q*int64(f) + r*int64(f)/int64(time.Second))
}
