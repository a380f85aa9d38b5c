package system

import (
	"context"
	"fmt"
	"sort"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/fault"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/timing"
)

// Runner executes registered systems in phase order. It serves as the frame
// loop's simulation: each loop callback runs the systems of its phases.
// Frame loop goroutine only.
type Runner struct {
	systems []System
	sorted  bool
	onFault fault.Handler
}

func NewRunner(onFault fault.Handler) *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
		onFault: onFault,
	}
}

// Register adds s. Systems in the same phase run in registration order.
func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Len() int { return len(r.systems) }

func (r *Runner) FixedUpdate(ctx context.Context, t timing.TimeState) {
	r.RunPhase(ctx, PhaseFixed, t)
}

func (r *Runner) Update(ctx context.Context, t timing.TimeState) {
	r.RunPhase(ctx, PhaseUpdate, t)
	r.RunPhase(ctx, PhaseLateUpdate, t)
}

func (r *Runner) Render(ctx context.Context, t timing.TimeState) {
	r.RunPhase(ctx, PhaseRender, t)
}

// RunPhase runs only the systems of the given phase. A panicking system
// is reported and the next one still runs.
func (r *Runner) RunPhase(ctx context.Context, phase Phase, t timing.TimeState) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() != phase {
			continue
		}
		fault.Guard(name(s), r.onFault, func() { s.Run(ctx, t) })
	}
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}

func name(s System) string {
	if st, ok := s.(fmt.Stringer); ok {
		return st.String()
	}
	return fmt.Sprintf("%T", s)
}
