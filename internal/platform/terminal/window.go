// Package terminal runs the frame loop in a text terminal through tcell.
// The Window is both the loop's input source and its renderer.
package terminal

import (
	"fmt"
	"sync"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/event"
	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
)

const eventBuffer = 128

// Window wraps a tcell screen. Events are read by a background goroutine
// into a buffered channel and handed to the loop without blocking.
type Window struct {
	screen tcell.Screen
	events chan tcell.Event
	quit   chan struct{}
	log    *zap.Logger

	closeOnce sync.Once
	closed    bool // owner goroutine only
}

// New initialises screen, or the terminal's own screen when screen is nil,
// and starts reading its events.
func New(screen tcell.Screen, log *zap.Logger) (*Window, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("open terminal: %w", err)
		}
		screen = s
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	screen.HideCursor()
	screen.Clear()

	w := &Window{
		screen: screen,
		events: make(chan tcell.Event, eventBuffer),
		quit:   make(chan struct{}),
		log:    log,
	}
	go screen.ChannelEvents(w.events, w.quit)

	width, height := screen.Size()
	log.Debug("terminal window opened", zap.Int("width", width), zap.Int("height", height))
	return w, nil
}

// Screen exposes the underlying screen for drawing.
func (w *Window) Screen() tcell.Screen {
	return w.screen
}

// DequeueEvents appends the events read since the last call. Ctrl-C and
// Escape become event.Quit.
func (w *Window) DequeueEvents(buf []any) []any {
	for {
		select {
		case ev, ok := <-w.events:
			if !ok {
				return buf
			}
			if out := w.translate(ev); out != nil {
				buf = append(buf, out)
			}
		default:
			return buf
		}
	}
}

func (w *Window) translate(ev tcell.Event) any {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyCtrlC:
			return event.Quit{Reason: "ctrl-c"}
		case tcell.KeyEscape:
			return event.Quit{Reason: "escape"}
		}
		return translateKey(ev)
	case *tcell.EventResize:
		// Size is sampled by the loop; the screen only needs to redraw.
		w.screen.Sync()
	}
	return nil
}

func translateKey(ev *tcell.EventKey) event.Key {
	k := event.Key{Mods: translateMods(ev.Modifiers())}
	switch ev.Key() {
	case tcell.KeyRune:
		k.Code = event.KeyRune
		k.Rune = ev.Rune()
	case tcell.KeyEnter:
		k.Code = event.KeyEnter
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		k.Code = event.KeyBackspace
	case tcell.KeyTab:
		k.Code = event.KeyTab
	case tcell.KeyUp:
		k.Code = event.KeyUp
	case tcell.KeyDown:
		k.Code = event.KeyDown
	case tcell.KeyLeft:
		k.Code = event.KeyLeft
	case tcell.KeyRight:
		k.Code = event.KeyRight
	default:
		k.Code = event.KeyOther
	}
	return k
}

func translateMods(m tcell.ModMask) event.Modifier {
	var mods event.Modifier
	if m&tcell.ModShift != 0 {
		mods |= event.ModShift
	}
	if m&tcell.ModCtrl != 0 {
		mods |= event.ModCtrl
	}
	if m&tcell.ModAlt != 0 {
		mods |= event.ModAlt
	}
	return mods
}

func (w *Window) Size() (int, int) {
	if w.closed {
		return 0, 0
	}
	return w.screen.Size()
}

// Ready reports whether there is a screen area to draw on.
func (w *Window) Ready() bool {
	if w.closed {
		return false
	}
	width, height := w.screen.Size()
	return width > 0 && height > 0
}

// Close stops event reading and restores the terminal.
func (w *Window) Close() {
	w.closeOnce.Do(func() {
		w.closed = true
		close(w.quit)
		w.screen.Fini()
		w.log.Debug("terminal window closed")
	})
}
