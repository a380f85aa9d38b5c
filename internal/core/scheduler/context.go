package scheduler

import (
	"context"
	"errors"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/fault"
	"go.uber.org/zap"
)

var ErrNoScheduler = errors.New("no scheduler in context")

type ctxKey struct{}

// Enter installs s as the ambient scheduler for code running within a
// frame. The returned context resolves to s through FromContext; the
// returned exit func must be deferred and is safe to call more than once.
//
//	ctx, exit := s.Enter(ctx)
//	defer exit()
func (s *Scheduler) Enter(ctx context.Context) (context.Context, func()) {
	s.mustOwn("enter")
	if s.depth == 0 && s.State() == StateIdle {
		s.state.Store(int32(StateActive))
	}
	s.depth++

	exited := false
	return context.WithValue(ctx, ctxKey{}, s), func() {
		if exited {
			return
		}
		exited = true
		s.depth--
		if s.depth == 0 {
			s.state.CompareAndSwap(int32(StateActive), int32(StateIdle))
		}
	}
}

// FromContext returns the scheduler installed by Enter.
func FromContext(ctx context.Context) (*Scheduler, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Scheduler)
	return s, ok
}

// Async runs work on a new goroutine and posts then back to the scheduler
// found in ctx. The work is registered as in flight until its continuation
// is queued, so Close waits for it. A panic in work reaches then as a
// *fault.Fault error.
func Async[T any](ctx context.Context, work func(context.Context) (T, error), then func(T, error)) error {
	s, ok := FromContext(ctx)
	if !ok {
		return ErrNoScheduler
	}

	s.OperationStarted()
	go func() {
		defer s.OperationCompleted()

		var v T
		var err error
		if f := fault.Guard("async", s.onFault, func() { v, err = work(ctx) }); f != nil {
			err = f
		}
		if perr := s.Post(func(any) { then(v, err) }, nil); perr != nil {
			s.log.Warn("async continuation dropped", zap.Error(perr))
		}
	}()
	return nil
}
