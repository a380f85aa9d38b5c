package loop

import (
	"context"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/timing"
)

// Window is the platform window polled once per frame.
type Window interface {
	// DequeueEvents appends every event received since the last call to
	// buf and returns it. Must not block.
	DequeueEvents(buf []any) []any
	Size() (width, height int)
}

// Renderer reports whether a frame can be drawn right now. Not being ready
// is a normal transient state, not an error.
type Renderer interface {
	Ready() bool
}

// Simulation receives the loop's callbacks on the owning goroutine. ctx
// carries the loop's scheduler (scheduler.FromContext). In FixedUpdate,
// t.FixedTotal is the fire time of the step being run.
type Simulation interface {
	FixedUpdate(ctx context.Context, t timing.TimeState)
	Update(ctx context.Context, t timing.TimeState)
	Render(ctx context.Context, t timing.TimeState)
}

// Funcs adapts three optional functions to a Simulation.
type Funcs struct {
	OnFixedUpdate func(ctx context.Context, t timing.TimeState)
	OnUpdate      func(ctx context.Context, t timing.TimeState)
	OnRender      func(ctx context.Context, t timing.TimeState)
}

func (f Funcs) FixedUpdate(ctx context.Context, t timing.TimeState) {
	if f.OnFixedUpdate != nil {
		f.OnFixedUpdate(ctx, t)
	}
}

func (f Funcs) Update(ctx context.Context, t timing.TimeState) {
	if f.OnUpdate != nil {
		f.OnUpdate(ctx, t)
	}
}

func (f Funcs) Render(ctx context.Context, t timing.TimeState) {
	if f.OnRender != nil {
		f.OnRender(ctx, t)
	}
}
