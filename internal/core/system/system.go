package system

import (
	"context"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/timing"
)

// Phase decides which frame loop callback runs a system and in what order.
type Phase int

const (
	PhaseFixed      Phase = iota // 0: once per fixed step
	PhaseUpdate                  // 1: once per frame, game logic
	PhaseLateUpdate              // 2: once per frame, after all updates
	PhaseRender                  // 3: once per frame, when the renderer is ready
)

func (p Phase) String() string {
	switch p {
	case PhaseFixed:
		return "fixed"
	case PhaseUpdate:
		return "update"
	case PhaseLateUpdate:
		return "late_update"
	case PhaseRender:
		return "render"
	}
	return "unknown"
}

// System is the interface every simulation system implements.
type System interface {
	Phase() Phase
	Run(ctx context.Context, t timing.TimeState)
}

// Func adapts a function to a System.
type Func struct {
	Name string
	In   Phase
	Fn   func(ctx context.Context, t timing.TimeState)
}

func (f Func) Phase() Phase                                { return f.In }
func (f Func) Run(ctx context.Context, t timing.TimeState) { f.Fn(ctx, t) }
func (f Func) String() string                              { return f.Name }
