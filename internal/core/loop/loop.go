package loop

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/event"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/fault"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/scheduler"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/timing"
	"go.uber.org/zap"
)

var (
	ErrNotStarted     = errors.New("frame loop not started")
	ErrAlreadyStarted = errors.New("frame loop already started")
	ErrStopped        = errors.New("frame loop stopped")
)

// State is the frame loop lifecycle state. Stopped is terminal.
type State int32

const (
	StateNotStarted State = iota
	StateRunning
	StateStopped
)

// Options configure a FrameLoop.
type Options struct {
	TargetUpdateDelta float64 // seconds, 0 = uncapped
	TargetFixedDelta  float64 // seconds, <= 0 disables the fixed step
	SpinThreshold     time.Duration
	MaxCatchUpSteps   int           // 0 = unlimited
	CloseTimeout      time.Duration // scheduler drain budget at Stop

	Clock   timing.Clock  // nil = monotonic clock at timing.DefaultFrequency
	OnFault fault.Handler // nil = log through the loop's logger
}

// FrameLoop drives one session: time, input, scheduled work, fixed steps,
// update and render, all on the goroutine that called Start.
type FrameLoop struct {
	opts     Options
	clock    timing.Clock
	pacer    *timing.Pacer
	sched    *scheduler.Scheduler
	bus      *event.Bus
	sim      Simulation
	window   Window
	renderer Renderer
	log      *zap.Logger
	onFault  fault.Handler

	state atomic.Int32
	quit  atomic.Bool
	ctx   context.Context

	// seconds, stored as float64 bits so any goroutine may set them
	targetUpdate atomic.Uint64
	targetFixed  atomic.Uint64

	// owner goroutine only
	time           timing.TimeState
	fixed          timing.FixedStep
	lastFrameStart timing.Tick
	events         []any
	width, height  int
	stats          Stats
	faults         atomic.Uint64
	err            error
	drained        bool
}

// New creates a loop in the NotStarted state. window and renderer may be
// nil: no input, always ready to render.
func New(opts Options, sim Simulation, window Window, renderer Renderer, log *zap.Logger) *FrameLoop {
	if log == nil {
		log = zap.NewNop()
	}
	if sim == nil {
		sim = Funcs{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = timing.NewMonotonicClock(timing.DefaultFrequency)
	}

	l := &FrameLoop{
		opts:     opts,
		clock:    clock,
		pacer:    timing.NewPacer(clock, opts.SpinThreshold),
		sim:      sim,
		window:   window,
		renderer: renderer,
		log:      log,
		events:   make([]any, 0, 32),
	}

	report := opts.OnFault
	if report == nil {
		report = fault.LogHandler(log)
	}
	l.onFault = func(f *fault.Fault) {
		l.faults.Add(1)
		report(f)
	}
	l.sched = scheduler.New(log.Named("scheduler"), l.onFault)
	l.bus = event.NewBus(l.onFault)
	l.fixed.MaxSteps = opts.MaxCatchUpSteps
	l.SetTargetUpdateDelta(opts.TargetUpdateDelta)
	l.SetTargetFixedDelta(opts.TargetFixedDelta)
	return l
}

func (l *FrameLoop) Scheduler() *scheduler.Scheduler { return l.sched }
func (l *FrameLoop) Bus() *event.Bus                 { return l.bus }
func (l *FrameLoop) Clock() timing.Clock             { return l.clock }
func (l *FrameLoop) State() State                    { return State(l.state.Load()) }

// Time returns the current time state. Owner goroutine only.
func (l *FrameLoop) Time() timing.TimeState { return l.time }

// Err returns the error that ended the loop, if any.
func (l *FrameLoop) Err() error { return l.err }

// WindowSize returns the window size sampled at the start of the frame.
func (l *FrameLoop) WindowSize() (int, int) { return l.width, l.height }

// Stats returns a snapshot of the loop counters. Owner goroutine only.
func (l *FrameLoop) Stats() Stats {
	s := l.stats
	s.Faults = l.faults.Load()
	s.SkippedSteps = l.fixed.Skipped()
	return s
}

// SetTargetUpdateDelta sets the frame pacing target in seconds; 0 or less
// uncaps the frame rate. Safe from any goroutine; applies at the next
// frame or wait.
func (l *FrameLoop) SetTargetUpdateDelta(seconds float64) {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	l.targetUpdate.Store(math.Float64bits(seconds))
	if l.State() == StateRunning && l.sched.IsOwner() {
		l.applyTargets()
	}
}

// SetTargetFixedDelta sets the fixed step period in seconds; 0 or less
// disables the fixed step. Safe from any goroutine. On the owner goroutine
// it applies to the very next fixed step comparison.
func (l *FrameLoop) SetTargetFixedDelta(seconds float64) {
	if math.IsNaN(seconds) {
		seconds = 0
	}
	l.targetFixed.Store(math.Float64bits(seconds))
	if l.State() == StateRunning && l.sched.IsOwner() {
		l.applyTargets()
	}
}

func (l *FrameLoop) TargetUpdateDelta() float64 {
	return math.Float64frombits(l.targetUpdate.Load())
}

func (l *FrameLoop) TargetFixedDelta() float64 {
	return math.Float64frombits(l.targetFixed.Load())
}

func (l *FrameLoop) applyTargets() {
	f := l.time.Freq
	l.time.TargetDelta = f.FromSeconds(l.TargetUpdateDelta())
	l.time.TargetFixedDelta = f.FromSeconds(l.TargetFixedDelta())
}

// RequestQuit makes the next RunOneFrame return false. Safe from any
// goroutine.
func (l *FrameLoop) RequestQuit(reason string) {
	if l.quit.CompareAndSwap(false, true) {
		l.log.Info("quit requested", zap.String("reason", reason))
	}
}

// Start captures the clock frequency and current time, arms the fixed
// step and binds the scheduler to the calling goroutine. Cancelling ctx
// ends the loop like a quit request.
func (l *FrameLoop) Start(ctx context.Context) {
	switch l.State() {
	case StateRunning:
		panic(ErrAlreadyStarted)
	case StateStopped:
		panic(fmt.Errorf("start: %w", ErrStopped))
	}

	l.sched.Bind()
	l.ctx = ctx
	l.time = timing.TimeState{
		Total: l.clock.Now(),
		Freq:  l.clock.Frequency(),
	}
	l.applyTargets()
	l.fixed.Reset(&l.time)
	l.lastFrameStart = l.time.Total
	if l.window != nil {
		l.width, l.height = l.window.Size()
	}
	l.state.Store(int32(StateRunning))

	l.log.Info("frame loop started",
		zap.Int64("frequency", int64(l.time.Freq)),
		zap.Float64("target_update_delta", l.TargetUpdateDelta()),
		zap.Float64("target_fixed_delta", l.TargetFixedDelta()),
		zap.Int64("spin_threshold", int64(l.pacer.SpinThreshold())),
	)
}

func (l *FrameLoop) mustRun(op string) {
	switch l.State() {
	case StateNotStarted:
		panic(fmt.Errorf("%s: %w", op, ErrNotStarted))
	case StateStopped:
		panic(fmt.Errorf("%s: %w", op, ErrStopped))
	}
}

// RunOneFrame runs one iteration and reports whether the host should keep
// looping. It returns false on a quit event or request, when the start
// context is done, or when the clock regressed (see Err).
func (l *FrameLoop) RunOneFrame() bool {
	l.mustRun("run frame")
	if l.quit.Load() || l.ctx.Err() != nil {
		return false
	}

	ctx, exit := l.sched.Enter(l.ctx)
	defer exit()

	// 1. time
	now := l.clock.Now()
	l.applyTargets()
	delta, err := l.time.AdvanceFrame(now)
	if err != nil {
		l.err = err
		l.log.Error("frame timing aborted", zap.Error(err))
		return false
	}
	l.lastFrameStart = now
	l.stats.Frames++
	l.stats.LastDelta = delta

	// 2. input
	if l.pumpInput() {
		return false
	}

	// 3. scheduled work
	l.stats.Actions += uint64(l.sched.Drain())

	// 4. fixed steps
	skipped := l.fixed.Skipped()
	for range l.fixed.Poll(&l.time) {
		t := l.time
		fault.Guard("fixed_update", l.onFault, func() { l.sim.FixedUpdate(ctx, t) })
		l.stats.FixedSteps++
	}
	if n := l.fixed.Skipped() - skipped; n > 0 {
		l.log.Warn("fixed steps dropped by catch-up cap",
			zap.Uint64("skipped", n),
			zap.Int("max_steps", l.fixed.MaxSteps),
			zap.Int64("delta", int64(delta)),
		)
	}

	// 5. update
	t := l.time
	fault.Guard("update", l.onFault, func() { l.sim.Update(ctx, t) })

	// 6. render
	if l.renderer == nil || l.renderer.Ready() {
		fault.Guard("render", l.onFault, func() { l.sim.Render(ctx, t) })
	}

	return true
}

// pumpInput samples the window and delivers its events. It reports
// whether a quit event was seen.
func (l *FrameLoop) pumpInput() bool {
	l.bus.Flush()
	if l.window == nil {
		return false
	}

	if w, h := l.window.Size(); w != l.width || h != l.height {
		l.width, l.height = w, h
		l.bus.Publish(event.Resize{Width: w, Height: h})
	}

	l.events = l.window.DequeueEvents(l.events[:0])
	defer clear(l.events)
	for _, ev := range l.events {
		if q, ok := ev.(event.Quit); ok {
			l.log.Info("quit event", zap.String("reason", q.Reason))
			l.quit.Store(true)
			return true
		}
		l.bus.Publish(ev)
	}
	return false
}

// WaitForNextUpdate blocks until one target frame period after the start
// of the last frame. It returns at once when pacing is disabled or the
// target has already passed. Owner goroutine only.
func (l *FrameLoop) WaitForNextUpdate() {
	l.mustRun("wait")
	if !l.sched.IsOwner() {
		panic(fmt.Errorf("wait: %w", scheduler.ErrNotOwner))
	}

	l.applyTargets()
	if l.time.TargetDelta <= 0 {
		return
	}
	target := l.lastFrameStart + l.time.TargetDelta
	if l.clock.Now() >= target {
		l.stats.LateFrames++
		return
	}
	l.pacer.WaitUntil(target)
}

// Stop closes the scheduler within the configured timeout and ends the
// session. It reports whether all queued and in-flight work drained; the
// loop is stopped either way. Calling it again returns the first result.
func (l *FrameLoop) Stop() bool {
	switch l.State() {
	case StateStopped:
		return l.drained
	case StateNotStarted:
		l.state.Store(int32(StateStopped))
		l.drained = true
		return true
	}

	l.drained = l.sched.Close(l.opts.CloseTimeout)
	l.state.Store(int32(StateStopped))
	if !l.drained {
		l.log.Warn("frame loop stopped with undrained work", zap.Duration("timeout", l.opts.CloseTimeout))
	}
	l.log.Info("frame loop stopped", zap.Object("stats", l.Stats()))
	return l.drained
}
