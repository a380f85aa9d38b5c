// Package fault is the single reporting boundary for recovered callback
// panics. Every recoverable failure in the frame core ends up in a Handler.
package fault

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// Fault is a recovered panic from a user callback.
type Fault struct {
	Source string // which callback faulted, e.g. "fixed_update"
	Value  any    // the recovered value
	Stack  []byte
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: panic: %v", f.Source, f.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (f *Fault) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}

// Handler receives faults. It is called on the goroutine that recovered.
type Handler func(*Fault)

// LogHandler returns a Handler that logs each fault at error level.
func LogHandler(log *zap.Logger) Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(f *Fault) {
		log.Error("callback panicked",
			zap.String("source", f.Source),
			zap.Any("panic", f.Value),
			zap.ByteString("stack", f.Stack),
		)
	}
}

// Guard runs fn, converting a panic into a Fault passed to h. It returns
// the fault, or nil when fn returned normally.
func Guard(source string, h Handler, fn func()) (f *Fault) {
	defer func() {
		if r := recover(); r != nil {
			f = &Fault{Source: source, Value: r, Stack: debug.Stack()}
			if h != nil {
				h(f)
			}
		}
	}()
	fn()
	return nil
}
