package timing

import (
	"time"
)

// DefaultSpinThreshold is the tail of a wait handled by spinning. OS sleeps
// on common desktop kernels wake within this window; re-measure per target.
const DefaultSpinThreshold = 2 * time.Millisecond

// Pacer blocks the calling goroutine until a target tick using a coarse OS
// sleep followed by a short spin on the clock.
type Pacer struct {
	clock   Clock
	sleeper Sleeper
	spin    Tick
}

// NewPacer creates a pacer on clock. A negative spinThreshold is treated
// as zero (sleep only, then a final check loop).
func NewPacer(clock Clock, spinThreshold time.Duration) *Pacer {
	p := &Pacer{clock: clock, sleeper: osSleeper{}}
	if s, ok := clock.(Sleeper); ok {
		p.sleeper = s
	}
	p.SetSpinThreshold(spinThreshold)
	return p
}

// SetSpinThreshold changes the spin tail. Owner goroutine only.
func (p *Pacer) SetSpinThreshold(d time.Duration) {
	if d < 0 {
		d = 0
	}
	p.spin = p.clock.Frequency().FromDuration(d)
}

// SpinThreshold returns the spin tail in ticks.
func (p *Pacer) SpinThreshold() Tick { return p.spin }

// WaitUntil returns once the clock reads at least target. It returns
// immediately if target has already passed.
func (p *Pacer) WaitUntil(target Tick) {
	remaining := target - p.clock.Now()
	if remaining <= 0 {
		return
	}
	if coarse := remaining - p.spin; coarse > 0 {
		p.sleeper.Sleep(p.clock.Frequency().Duration(coarse))
	}
	for p.clock.Now() < target {
		p.sleeper.Spin()
	}
}

type osSleeper struct{}

func (osSleeper) Sleep(d time.Duration) { time.Sleep(d) }

func (osSleeper) Spin() {}
