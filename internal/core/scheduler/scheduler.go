package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/fault"
	"go.uber.org/zap"
)

var (
	ErrClosed   = errors.New("scheduler closed")
	ErrNotOwner = errors.New("scheduler used from a goroutine that does not own it")
)

// State is the scheduler lifecycle state.
type State int32

const (
	StateIdle     State = iota // no frame scope entered
	StateActive                // inside an Enter scope on the owner
	StateDraining              // Close in progress
	StateClosed                // terminal, Post and Send fail with ErrClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Callback is a unit of work marshalled onto the owner goroutine.
type Callback func(state any)

type action struct {
	fn    Callback
	state any
	done  chan error // set by Send from a foreign goroutine
}

// closePoll is how long Close sleeps between drains while waiting.
const closePoll = time.Millisecond

// Scheduler runs callbacks queued from any goroutine on the single goroutine
// that owns it, at explicit drain points.
//
// pending is the only field shared across goroutines and is guarded by mu,
// which is held for an append or a slice swap and never while user code runs.
type Scheduler struct {
	mu      sync.Mutex
	pending []action

	// owner goroutine only
	spare    []action
	depth    int
	draining bool
	drained  bool

	owner    atomic.Uint64
	state    atomic.Int32
	inFlight atomic.Int64

	onFault fault.Handler
	log     *zap.Logger
}

// New creates an unbound scheduler. Faults raised by callbacks go to
// onFault; a nil onFault logs them.
func New(log *zap.Logger, onFault fault.Handler) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if onFault == nil {
		onFault = fault.LogHandler(log)
	}
	return &Scheduler{
		pending: make([]action, 0, 64),
		spare:   make([]action, 0, 64),
		onFault: onFault,
		log:     log,
	}
}

// Bind makes the calling goroutine the owner. Binding again from another
// goroutine panics.
func (s *Scheduler) Bind() {
	id := goroutineID()
	if !s.owner.CompareAndSwap(0, id) && s.owner.Load() != id {
		panic(fmt.Errorf("bind: %w", ErrNotOwner))
	}
}

// IsOwner reports whether the caller is the owner goroutine.
func (s *Scheduler) IsOwner() bool {
	owner := s.owner.Load()
	return owner != 0 && owner == goroutineID()
}

func (s *Scheduler) mustOwn(op string) {
	if !s.IsOwner() {
		panic(fmt.Errorf("%s: %w", op, ErrNotOwner))
	}
}

func (s *Scheduler) State() State { return State(s.state.Load()) }

// Pending returns the number of queued actions.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// InFlight returns the number of registered outstanding operations.
func (s *Scheduler) InFlight() int64 { return s.inFlight.Load() }

// Post queues fn to run on the owner at its next drain. Safe from any
// goroutine; never runs fn inline.
func (s *Scheduler) Post(fn Callback, state any) error {
	if fn == nil {
		return nil
	}
	return s.enqueue(action{fn: fn, state: state})
}

func (s *Scheduler) enqueue(a action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed {
		return ErrClosed
	}
	s.pending = append(s.pending, a)
	return nil
}

// Send runs fn on the owner and waits for it to finish. Called on the owner
// it runs inline. A panic in fn is returned as a *fault.Fault (and also
// reported to the fault handler). If the scheduler closes before fn runs,
// Send returns ErrClosed.
func (s *Scheduler) Send(fn Callback, state any) error {
	if fn == nil {
		return nil
	}
	if s.IsOwner() {
		if s.State() == StateClosed {
			return ErrClosed
		}
		if f := fault.Guard("send", s.onFault, func() { fn(state) }); f != nil {
			return f
		}
		return nil
	}

	done := make(chan error, 1)
	if err := s.enqueue(action{fn: fn, state: state, done: done}); err != nil {
		return err
	}
	return <-done
}

// OperationStarted registers outstanding asynchronous work that will later
// post a continuation. Close keeps draining while any are registered.
func (s *Scheduler) OperationStarted() {
	s.inFlight.Add(1)
}

// OperationCompleted balances OperationStarted.
func (s *Scheduler) OperationCompleted() {
	if s.inFlight.Add(-1) < 0 {
		panic("scheduler: OperationCompleted without matching OperationStarted")
	}
}

// Drain runs every action queued before the call, in FIFO order, and
// returns how many ran. Actions queued while draining run next time.
// A nested Drain from inside an action is a no-op. Owner only.
func (s *Scheduler) Drain() int {
	s.mustOwn("drain")
	if s.draining {
		return 0
	}
	s.draining = true
	defer func() { s.draining = false }()

	s.mu.Lock()
	batch := s.pending
	s.pending = s.spare[:0]
	s.mu.Unlock()

	for i := range batch {
		s.invoke(batch[i])
		batch[i] = action{}
	}
	s.spare = batch[:0]
	return len(batch)
}

func (s *Scheduler) invoke(a action) {
	f := fault.Guard("scheduled_action", s.onFault, func() { a.fn(a.state) })
	if a.done == nil {
		return
	}
	if f != nil {
		a.done <- f
		return
	}
	a.done <- nil
}

// Close drains until the queue is empty and no operations are in flight,
// or until timeout elapses, then closes the scheduler. It reports whether
// everything drained. Actions left behind are dropped and their Send
// callers get ErrClosed. Owner only; calling it again returns the first
// result.
func (s *Scheduler) Close(timeout time.Duration) bool {
	s.mustOwn("close")
	switch s.State() {
	case StateClosed:
		return s.drained
	case StateDraining:
		panic("scheduler: Close called from inside Close")
	}
	s.state.Store(int32(StateDraining))

	deadline := time.Now().Add(timeout)
	drained := false
	for {
		s.Drain()
		if s.Pending() == 0 && s.InFlight() == 0 {
			drained = true
			break
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			break
		}
		time.Sleep(min(wait, closePoll))
	}

	s.mu.Lock()
	s.state.Store(int32(StateClosed))
	left := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, a := range left {
		if a.done != nil {
			a.done <- ErrClosed
		}
	}
	if !drained {
		s.log.Warn("scheduler closed before draining",
			zap.Int("dropped", len(left)),
			zap.Int64("in_flight", s.InFlight()),
			zap.Duration("timeout", timeout),
		)
	}
	s.drained = drained
	return drained
}
