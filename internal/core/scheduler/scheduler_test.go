package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/fault"
)

func newBound(t *testing.T) (*Scheduler, *[]*fault.Fault) {
	t.Helper()
	var mu sync.Mutex
	faults := []*fault.Fault{}
	s := New(nil, func(f *fault.Fault) {
		mu.Lock()
		faults = append(faults, f)
		mu.Unlock()
	})
	s.Bind()
	return s, &faults
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPostRunsOnlyAtDrain(t *testing.T) {
	s, _ := newBound(t)

	var runs atomic.Int32
	var onOwner atomic.Bool
	posted := make(chan struct{})
	go func() {
		s.Post(func(any) {
			runs.Add(1)
			onOwner.Store(s.IsOwner())
		}, nil)
		close(posted)
	}()
	<-posted

	if runs.Load() != 0 {
		t.Fatal("Expected Post not to run the action inline")
	}
	if s.Pending() != 1 {
		t.Fatalf("Expected 1 pending action, got %d", s.Pending())
	}

	if n := s.Drain(); n != 1 {
		t.Errorf("Expected Drain to run 1 action, got %d", n)
	}
	if runs.Load() != 1 || !onOwner.Load() {
		t.Errorf("Expected action to run once on the owner, runs=%d owner=%v", runs.Load(), onOwner.Load())
	}

	if n := s.Drain(); n != 0 || runs.Load() != 1 {
		t.Errorf("Expected second Drain to run nothing, ran %d (total %d)", n, runs.Load())
	}
}

func TestPostPassesState(t *testing.T) {
	s, _ := newBound(t)
	var got any
	s.Post(func(st any) { got = st }, 42)
	s.Drain()
	if got != 42 {
		t.Errorf("Expected state 42, got %v", got)
	}
}

func TestSendFromForeignGoroutineBlocks(t *testing.T) {
	s, _ := newBound(t)

	var ran atomic.Bool
	var returned atomic.Bool
	errCh := make(chan error, 1)
	go func() {
		err := s.Send(func(any) { ran.Store(true) }, nil)
		returned.Store(true)
		errCh <- err
	}()

	waitFor(t, func() bool { return s.Pending() == 1 })
	time.Sleep(5 * time.Millisecond)
	if returned.Load() {
		t.Fatal("Expected Send to block until the owner drains")
	}

	s.Drain()
	if err := <-errCh; err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if !ran.Load() {
		t.Error("Expected action to have run before Send returned")
	}
}

func TestSendFromOwnerRunsInline(t *testing.T) {
	s, _ := newBound(t)

	depth, maxDepth := 0, 0
	enter := func(any) {
		depth++
		if depth > maxDepth {
			maxDepth = depth
		}
		depth--
	}

	for i := 0; i < 3; i++ {
		if err := s.Send(enter, nil); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if maxDepth != 1 {
		t.Errorf("Expected reentrancy depth 1, got %d", maxDepth)
	}
	if s.Pending() != 0 {
		t.Errorf("Expected owner Send not to enqueue, pending=%d", s.Pending())
	}
}

func TestSendReturnsFault(t *testing.T) {
	s, faults := newBound(t)

	err := s.Send(func(any) { panic("inline") }, nil)
	var f *fault.Fault
	if !errors.As(err, &f) || f.Value != "inline" {
		t.Errorf("Expected inline fault, got %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Send(func(any) { panic("queued") }, nil) }()
	waitFor(t, func() bool { return s.Pending() == 1 })
	s.Drain()

	if err := <-errCh; !errors.As(err, &f) || f.Value != "queued" {
		t.Errorf("Expected queued fault, got %v", err)
	}
	if len(*faults) != 2 {
		t.Errorf("Expected both faults reported, got %d", len(*faults))
	}
}

func TestConcurrentPosts(t *testing.T) {
	s, _ := newBound(t)

	const perWriter = 200
	type entry struct{ writer, seq int }
	var got []entry // owner only

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				e := entry{w, i}
				s.Post(func(any) { got = append(got, e) }, nil)
			}
		}(w)
	}
	wg.Wait()

	s.Drain()

	if len(got) != 2*perWriter {
		t.Fatalf("Expected %d actions, got %d", 2*perWriter, len(got))
	}
	next := [2]int{}
	for _, e := range got {
		if e.seq != next[e.writer] {
			t.Fatalf("Expected writer %d seq %d, got %d", e.writer, next[e.writer], e.seq)
		}
		next[e.writer]++
	}
}

func TestPostDuringDrainRunsNextDrain(t *testing.T) {
	s, _ := newBound(t)

	var order []string
	s.Post(func(any) {
		order = append(order, "first")
		s.Post(func(any) { order = append(order, "second") }, nil)
		if s.Drain() != 0 {
			t.Error("Expected nested Drain to be a no-op")
		}
	}, nil)

	if n := s.Drain(); n != 1 {
		t.Errorf("Expected 1 action in first drain, got %d", n)
	}
	if len(order) != 1 {
		t.Fatalf("Expected re-posted action to wait for the next drain, got %v", order)
	}
	s.Drain()
	if len(order) != 2 || order[1] != "second" {
		t.Errorf("Expected [first second], got %v", order)
	}
}

func TestPanickingActionDoesNotStopDrain(t *testing.T) {
	s, faults := newBound(t)

	ran := 0
	s.Post(func(any) { ran++ }, nil)
	s.Post(func(any) { panic("broken continuation") }, nil)
	s.Post(func(any) { ran++ }, nil)

	if n := s.Drain(); n != 3 {
		t.Errorf("Expected 3 actions, got %d", n)
	}
	if ran != 2 {
		t.Errorf("Expected both healthy actions to run, got %d", ran)
	}
	if len(*faults) != 1 || (*faults)[0].Source != "scheduled_action" {
		t.Errorf("Expected one scheduled_action fault, got %v", *faults)
	}
}

func TestDrainFromForeignGoroutinePanics(t *testing.T) {
	s, _ := newBound(t)

	errCh := make(chan any, 1)
	go func() {
		defer func() { errCh <- recover() }()
		s.Drain()
	}()

	r := <-errCh
	err, ok := r.(error)
	if !ok || !errors.Is(err, ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner panic, got %v", r)
	}
}

func TestUnboundSchedulerRejectsDrain(t *testing.T) {
	s := New(nil, nil)
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected Drain on an unbound scheduler to panic")
		}
	}()
	s.Drain()
}

func TestOperationCompletedUnderflowPanics(t *testing.T) {
	s := New(nil, nil)
	defer func() {
		if recover() == nil {
			t.Error("Expected unbalanced OperationCompleted to panic")
		}
	}()
	s.OperationCompleted()
}

func TestCloseDrainsInFlightWork(t *testing.T) {
	s, _ := newBound(t)

	var continued atomic.Bool
	s.OperationStarted()
	go func() {
		defer s.OperationCompleted()
		time.Sleep(20 * time.Millisecond)
		s.Post(func(any) { continued.Store(true) }, nil)
	}()

	if !s.Close(time.Second) {
		t.Fatal("Expected Close to drain everything")
	}
	if !continued.Load() {
		t.Error("Expected the in-flight continuation to run before Close returned")
	}
	if s.State() != StateClosed {
		t.Errorf("Expected closed state, got %v", s.State())
	}
	if err := s.Post(func(any) {}, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
	if !s.Close(0) {
		t.Error("Expected repeated Close to return the first result")
	}
}

func TestCloseTimesOutOnHangingWork(t *testing.T) {
	s, _ := newBound(t)

	s.OperationStarted() // never completed

	start := time.Now()
	if s.Close(20 * time.Millisecond) {
		t.Fatal("Expected Close to report an incomplete drain")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Expected Close to honour its timeout, took %v", elapsed)
	}
}

func TestCloseTimesOutOnSelfReposting(t *testing.T) {
	s, _ := newBound(t)

	var again Callback
	again = func(any) {
		time.Sleep(2 * time.Millisecond)
		s.Post(again, nil)
	}
	s.Post(again, nil)

	if s.Close(15 * time.Millisecond) {
		t.Error("Expected Close to time out")
	}
	if s.Pending() != 0 {
		t.Errorf("Expected leftover actions to be dropped, got %d", s.Pending())
	}
}

func TestCloseReleasesBlockedSenders(t *testing.T) {
	s, _ := newBound(t)

	// The first action keeps the queue busy past the deadline; the Send
	// queued behind it must not hang.
	release := make(chan struct{})
	s.OperationStarted()

	errCh := make(chan error, 1)
	s.Post(func(any) {
		go func() { errCh <- s.Send(func(any) {}, nil) }()
		waitFor(t, func() bool { return s.Pending() == 1 })
		time.Sleep(20 * time.Millisecond)
	}, nil)

	go func() {
		<-release
		s.OperationCompleted()
	}()

	if s.Close(5 * time.Millisecond) {
		t.Fatal("Expected Close to time out")
	}
	close(release)

	if err := <-errCh; !errors.Is(err, ErrClosed) {
		t.Errorf("Expected blocked Send to get ErrClosed, got %v", err)
	}
}

func TestEnterScope(t *testing.T) {
	s, _ := newBound(t)

	if s.State() != StateIdle {
		t.Fatalf("Expected idle, got %v", s.State())
	}

	ctx, exit := s.Enter(context.Background())
	if s.State() != StateActive {
		t.Errorf("Expected active inside scope, got %v", s.State())
	}
	if got, ok := FromContext(ctx); !ok || got != s {
		t.Error("Expected context to resolve to the scheduler")
	}

	_, innerExit := s.Enter(ctx)
	innerExit()
	if s.State() != StateActive {
		t.Errorf("Expected nested exit to keep the outer scope active, got %v", s.State())
	}

	exit()
	exit()
	if s.State() != StateIdle {
		t.Errorf("Expected idle after exit, got %v", s.State())
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("Expected plain context to carry no scheduler")
	}
}

func TestEnterScopeRestoredOnPanic(t *testing.T) {
	s, _ := newBound(t)

	func() {
		defer func() { recover() }()
		_, exit := s.Enter(context.Background())
		defer exit()
		panic("frame fault")
	}()

	if s.State() != StateIdle {
		t.Errorf("Expected scope released after panic, got %v", s.State())
	}
}

func TestAsync(t *testing.T) {
	s, _ := newBound(t)
	ctx, exit := s.Enter(context.Background())
	defer exit()

	var got int
	var gotErr error
	var onOwner bool
	err := Async(ctx, func(context.Context) (int, error) { return 7, nil }, func(v int, err error) {
		got, gotErr, onOwner = v, err, s.IsOwner()
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	waitFor(t, func() bool { return s.InFlight() == 0 })
	s.Drain()
	if got != 7 || gotErr != nil || !onOwner {
		t.Errorf("Expected 7 delivered on the owner, got %d %v owner=%v", got, gotErr, onOwner)
	}

	var perr error
	Async(ctx, func(context.Context) (int, error) { panic("worker") }, func(_ int, err error) { perr = err })
	waitFor(t, func() bool { return s.InFlight() == 0 })
	s.Drain()
	var f *fault.Fault
	if !errors.As(perr, &f) || f.Source != "async" {
		t.Errorf("Expected async fault, got %v", perr)
	}

	if err := Async(context.Background(), func(context.Context) (int, error) { return 0, nil }, func(int, error) {}); !errors.Is(err, ErrNoScheduler) {
		t.Errorf("Expected ErrNoScheduler, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	if StateDraining.String() != "draining" {
		t.Errorf("Unexpected %q", StateDraining.String())
	}
	if State(9).String() != "State(9)" {
		t.Errorf("Unexpected %q", State(9).String())
	}
}
