package loop

import (
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/timing"
	"go.uber.org/zap/zapcore"
)

// Stats are cumulative frame loop counters.
type Stats struct {
	Frames       uint64
	FixedSteps   uint64
	SkippedSteps uint64 // dropped by the catch-up cap
	LateFrames   uint64 // WaitForNextUpdate found the target already past
	Faults       uint64 // recovered callback panics
	Actions      uint64 // scheduler actions drained
	LastDelta    timing.Tick
}

func (s Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("frames", s.Frames)
	enc.AddUint64("fixed_steps", s.FixedSteps)
	enc.AddUint64("skipped_steps", s.SkippedSteps)
	enc.AddUint64("late_frames", s.LateFrames)
	enc.AddUint64("faults", s.Faults)
	enc.AddUint64("actions", s.Actions)
	enc.AddInt64("last_delta", int64(s.LastDelta))
	return nil
}
