package main

import (
	"context"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/fault"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/system"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/timing"
	"go.uber.org/zap"
)

// newDefaultRunner builds the simulation used when no script is
// configured: a fixed-step counter and a once-per-second heartbeat log.
func newDefaultRunner(log *zap.Logger, onFault fault.Handler) *system.Runner {
	var steps, frames uint64
	var nextBeat timing.Tick

	r := system.NewRunner(onFault)
	r.Register(system.Func{Name: "step_counter", In: system.PhaseFixed, Fn: func(context.Context, timing.TimeState) {
		steps++
	}})
	r.Register(system.Func{Name: "heartbeat", In: system.PhaseLateUpdate, Fn: func(_ context.Context, t timing.TimeState) {
		frames++
		if t.Total < nextBeat {
			return
		}
		nextBeat = t.Total + timing.Tick(t.Freq)
		log.Debug("heartbeat",
			zap.Float64("total", t.TotalSeconds()),
			zap.Uint64("frames", frames),
			zap.Uint64("fixed_steps", steps),
		)
	}})
	return r
}
