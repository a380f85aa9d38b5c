package timing

import "iter"

// FixedStep turns frame advances into fixed-period steps. The next fire
// time only ever moves forward by whole periods, so the cadence cannot
// drift against the clock.
type FixedStep struct {
	pending Tick
	armed   bool
	skipped uint64

	// MaxSteps caps the steps emitted by a single Poll. Debt beyond the cap
	// is dropped in whole periods. 0 means unlimited.
	MaxSteps int
}

// Reset arms the accumulator so the first step fires one period after
// the state's current Total.
func (a *FixedStep) Reset(s *TimeState) {
	a.armed = false
	if s.TargetFixedDelta > 0 {
		a.pending = s.Total + s.TargetFixedDelta
		a.armed = true
	}
}

// Pending returns the next fire time and whether the accumulator is armed.
func (a *FixedStep) Pending() (Tick, bool) { return a.pending, a.armed }

// Skipped returns the number of steps dropped by the MaxSteps cap.
func (a *FixedStep) Skipped() uint64 { return a.skipped }

// Poll yields the fire time of every step due at s.Total, in increasing
// order, updating s.FixedTotal and s.FixedDelta before each yield.
//
// The period is re-read before every step, so a change made by a consumer
// applies to the next comparison; debt already scheduled with the old
// period is kept. Disabling the step disarms the accumulator, and
// re-enabling it anchors the next fire time one period after s.Total.
// Breaking out of the loop early leaves the remaining debt for the next
// Poll.
func (a *FixedStep) Poll(s *TimeState) iter.Seq[Tick] {
	return func(yield func(Tick) bool) {
		emitted := 0
		for {
			period := s.TargetFixedDelta
			if period <= 0 {
				a.armed = false
				return
			}
			if !a.armed {
				a.pending = s.Total + period
				a.armed = true
				return
			}
			if a.pending > s.Total {
				return
			}
			if a.MaxSteps > 0 && emitted >= a.MaxSteps {
				behind := (s.Total-a.pending)/period + 1
				a.pending += behind * period
				a.skipped += uint64(behind)
				return
			}

			fire := a.pending
			a.pending += period
			s.FixedTotal = fire
			s.FixedDelta = period
			emitted++
			if !yield(fire) {
				return
			}
		}
	}
}
