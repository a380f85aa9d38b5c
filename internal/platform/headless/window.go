// Package headless is a window-less backend for servers and CI. It has a
// fixed size, is always ready to render and can end the session after a
// set number of frames.
package headless

import (
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/event"
	"go.uber.org/zap"
)

type Window struct {
	width, height int
	maxFrames     int
	frames        int
	log           *zap.Logger
}

// New returns a window that emits event.Quit on the frame after maxFrames
// frames have been polled; 0 runs until something else stops the loop.
func New(width, height, maxFrames int, log *zap.Logger) *Window {
	if log == nil {
		log = zap.NewNop()
	}
	return &Window{width: width, height: height, maxFrames: maxFrames, log: log}
}

func (w *Window) DequeueEvents(buf []any) []any {
	w.frames++
	if w.maxFrames > 0 && w.frames > w.maxFrames {
		w.log.Debug("headless frame budget reached", zap.Int("max_frames", w.maxFrames))
		buf = append(buf, event.Quit{Reason: "max frames"})
	}
	return buf
}

func (w *Window) Size() (int, int) { return w.width, w.height }
func (w *Window) Ready() bool      { return true }

// Frames returns how many times events were polled.
func (w *Window) Frames() int { return w.frames }
