package timing

import (
	"errors"
	"fmt"
)

// ErrClockRegression reports a timestamp earlier than the previous frame.
// It means the clock source is unreliable and is never clamped away.
var ErrClockRegression = errors.New("clock regression")

// TimeState is the loop's view of simulation time. It is owned by the
// frame loop goroutine and needs no locking.
type TimeState struct {
	Total      Tick // timestamp of the current frame
	Delta      Tick // Total minus the previous frame's Total
	FixedTotal Tick // fire time of the most recent fixed step
	FixedDelta Tick // period used by the most recent fixed step

	TargetDelta      Tick // 0 disables frame pacing
	TargetFixedDelta Tick // <= 0 disables the fixed step

	Freq Frequency // captured once when the loop starts
}

func (s TimeState) TotalSeconds() float64      { return s.Freq.Seconds(s.Total) }
func (s TimeState) DeltaSeconds() float64      { return s.Freq.Seconds(s.Delta) }
func (s TimeState) FixedTotalSeconds() float64 { return s.Freq.Seconds(s.FixedTotal) }
func (s TimeState) FixedDeltaSeconds() float64 { return s.Freq.Seconds(s.FixedDelta) }

// AdvanceFrame moves Total to now and records the elapsed delta.
// On regression the state is left untouched.
func (s *TimeState) AdvanceFrame(now Tick) (Tick, error) {
	delta := now - s.Total
	if delta < 0 {
		return 0, fmt.Errorf("%w: now %d is %d ticks before previous frame", ErrClockRegression, now, -delta)
	}
	s.Total = now
	s.Delta = delta
	return delta, nil
}
