package event

import (
	"reflect"
	"sync"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/fault"
)

// Bus routes events to typed subscribers on the frame loop goroutine.
//
// Platform input is delivered immediately with Publish. Simulation code can
// Emit events during frame N; they sit in the back buffer and are delivered
// by Flush at the start of frame N+1.
type Bus struct {
	mu       sync.RWMutex // only protects handler registration
	handlers map[reflect.Type][]func(any)
	front    []any
	back     []any
	onFault  fault.Handler
}

func NewBus(onFault fault.Handler) *Bus {
	return &Bus{
		handlers: make(map[reflect.Type][]func(any)),
		front:    make([]any, 0, 32),
		back:     make([]any, 0, 32),
		onFault:  onFault,
	}
}

// Subscribe registers fn for events whose dynamic type is exactly T.
// Safe from any goroutine.
func Subscribe[T any](b *Bus, fn func(T)) {
	t := reflect.TypeFor[T]()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// Publish delivers ev to its subscribers now and returns how many received
// it. A panicking subscriber is reported and does not stop the others.
func (b *Bus) Publish(ev any) int {
	if ev == nil {
		return 0
	}
	b.mu.RLock()
	hs := b.handlers[reflect.TypeOf(ev)]
	b.mu.RUnlock()
	for _, h := range hs {
		fault.Guard("event", b.onFault, func() { h(ev) })
	}
	return len(hs)
}

// Emit queues ev for delivery at the next Flush. Frame loop goroutine only.
func Emit[T any](b *Bus, ev T) {
	b.back = append(b.back, ev)
}

// Flush swaps the buffers and delivers everything emitted since the last
// Flush. Events emitted by handlers during Flush wait for the next one.
func (b *Bus) Flush() int {
	b.front, b.back = b.back, b.front[:0]
	for i, ev := range b.front {
		b.Publish(ev)
		b.front[i] = nil
	}
	n := len(b.front)
	b.front = b.front[:0]
	return n
}
