package terminal

import (
	"context"
	"fmt"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/loop"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/timing"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

var (
	textStyle    = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	overlayStyle = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGreen)
)

// DrawText writes text starting at column x of row y, clipped to the
// screen.
func (w *Window) DrawText(x, y int, text string) {
	w.drawText(x, y, text, textStyle)
}

func (w *Window) drawText(x, y int, text string, style tcell.Style) {
	if w.closed {
		return
	}
	width, height := w.screen.Size()
	if y < 0 || y >= height {
		return
	}
	for _, r := range text {
		if x >= width {
			return
		}
		if x >= 0 {
			w.screen.SetContent(x, y, r, nil, style)
		}
		x += runewidth.RuneWidth(r)
	}
}

// DrawStats draws the frame statistics on the top row.
func (w *Window) DrawStats(t timing.TimeState, s loop.Stats) {
	line := fmt.Sprintf(" t=%7.2fs  dt=%6.2fms  frames=%d  fixed=%d  skipped=%d  late=%d  faults=%d ",
		t.TotalSeconds(), t.DeltaSeconds()*1000,
		s.Frames, s.FixedSteps, s.SkippedSteps, s.LateFrames, s.Faults)
	w.drawText(0, 0, line, overlayStyle)
}

// Overlay wraps sim so each rendered frame is cleared, drawn by sim, topped
// with the stats line and shown.
func (w *Window) Overlay(sim loop.Simulation, stats func() loop.Stats) loop.Simulation {
	return &overlay{Simulation: sim, win: w, stats: stats}
}

type overlay struct {
	loop.Simulation
	win   *Window
	stats func() loop.Stats
}

func (o *overlay) Render(ctx context.Context, t timing.TimeState) {
	if o.win.closed {
		return
	}
	o.win.screen.Clear()
	o.Simulation.Render(ctx, t)
	o.win.DrawStats(t, o.stats())
	o.win.screen.Show()
}
