package scripting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/scheduler"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/timing"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Host is the part of the frame loop a script may drive.
type Host interface {
	SetTargetUpdateDelta(seconds float64)
	SetTargetFixedDelta(seconds float64)
	RequestQuit(reason string)
}

// Canvas is a text surface scripts draw on from on_render.
type Canvas interface {
	DrawText(x, y int, text string)
	Size() (width, height int)
}

// Engine wraps a single gopher-lua VM and runs it as the frame loop's
// simulation. Frame loop goroutine only.
//
// Scripts may define on_fixed_update(fixed_total, fixed_delta),
// on_update(delta, total) and on_render(total); times are in seconds. The
// global table "pixl" exposes post, set_update_delta, set_fixed_delta,
// quit, log, draw and size.
type Engine struct {
	vm     *lua.LState
	log    *zap.Logger
	host   Host
	canvas Canvas
	ctx    context.Context // set while a callback runs

	onFixed  lua.LValue
	onUpdate lua.LValue
	onRender lua.LValue
}

// NewEngine creates a Lua engine and loads path, which is either a single
// .lua file or a directory whose .lua files are loaded in name order.
func NewEngine(path string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)

	info, err := os.Stat(path)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	if info.IsDir() {
		err = e.loadDir(path)
	} else {
		err = e.loadFile(path)
	}
	if err != nil {
		e.Close()
		return nil, err
	}
	e.resolveCallbacks()
	return e, nil
}

// NewEngineFromString loads a script held in memory; name is used in
// error messages.
func NewEngineFromString(name, src string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	fn, err := e.vm.Load(strings.NewReader(src), name)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	e.vm.Push(fn)
	if err := e.vm.PCall(0, lua.MultRet, nil); err != nil {
		e.Close()
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	e.resolveCallbacks()
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	e.registerAPI()
	return e
}

// Bind connects script calls that change loop settings to h.
func (e *Engine) Bind(h Host) {
	e.host = h
}

// SetCanvas gives pixl.draw and pixl.size a surface. Without one they do
// nothing and report a 0x0 size.
func (e *Engine) SetCanvas(c Canvas) {
	e.canvas = c
}

func (e *Engine) Close() {
	e.vm.Close()
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("load scripts: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		if err := e.loadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loadFile(path string) error {
	if err := e.vm.DoFile(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	e.log.Debug("loaded lua script", zap.String("file", path))
	return nil
}

func (e *Engine) resolveCallbacks() {
	e.onFixed = e.function("on_fixed_update")
	e.onUpdate = e.function("on_update")
	e.onRender = e.function("on_render")
	if e.onFixed == nil && e.onUpdate == nil && e.onRender == nil {
		e.log.Warn("lua scripts define no frame callbacks")
	}
}

func (e *Engine) function(name string) lua.LValue {
	fn := e.vm.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return nil
	}
	return fn
}

func (e *Engine) FixedUpdate(ctx context.Context, t timing.TimeState) {
	e.call(ctx, "on_fixed_update", e.onFixed,
		lua.LNumber(t.FixedTotalSeconds()), lua.LNumber(t.FixedDeltaSeconds()))
}

func (e *Engine) Update(ctx context.Context, t timing.TimeState) {
	e.call(ctx, "on_update", e.onUpdate,
		lua.LNumber(t.DeltaSeconds()), lua.LNumber(t.TotalSeconds()))
}

func (e *Engine) Render(ctx context.Context, t timing.TimeState) {
	e.call(ctx, "on_render", e.onRender, lua.LNumber(t.TotalSeconds()))
}

// call runs a script callback. A Lua error is raised as a Go panic so the
// frame loop reports it like any other faulty callback.
func (e *Engine) call(ctx context.Context, name string, fn lua.LValue, args ...lua.LValue) {
	if fn == nil {
		return
	}
	prev := e.ctx
	e.ctx = ctx
	defer func() { e.ctx = prev }()

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		panic(fmt.Errorf("lua %s: %w", name, err))
	}
}

var errNoFrame = errors.New("pixl.post called outside a frame callback")

func (e *Engine) registerAPI() {
	api := e.vm.NewTable()

	api.RawSetString("post", e.vm.NewFunction(func(L *lua.LState) int {
		fn := L.CheckFunction(1)
		if e.ctx == nil {
			L.RaiseError("%s", errNoFrame)
			return 0
		}
		sched, ok := scheduler.FromContext(e.ctx)
		if !ok {
			L.RaiseError("%s", errNoFrame)
			return 0
		}
		ctx := e.ctx
		if err := sched.Post(func(any) { e.call(ctx, "posted function", fn) }, nil); err != nil {
			L.RaiseError("post: %s", err)
		}
		return 0
	}))

	api.RawSetString("set_update_delta", e.vm.NewFunction(func(L *lua.LState) int {
		seconds := float64(L.CheckNumber(1))
		if e.host != nil {
			e.host.SetTargetUpdateDelta(seconds)
		}
		return 0
	}))

	api.RawSetString("set_fixed_delta", e.vm.NewFunction(func(L *lua.LState) int {
		seconds := float64(L.CheckNumber(1))
		if e.host != nil {
			e.host.SetTargetFixedDelta(seconds)
		}
		return 0
	}))

	api.RawSetString("quit", e.vm.NewFunction(func(L *lua.LState) int {
		reason := L.OptString(1, "script")
		if e.host != nil {
			e.host.RequestQuit(reason)
		}
		return 0
	}))

	api.RawSetString("log", e.vm.NewFunction(func(L *lua.LState) int {
		e.log.Info(L.CheckString(1), zap.String("source", "lua"))
		return 0
	}))

	api.RawSetString("draw", e.vm.NewFunction(func(L *lua.LState) int {
		x, y, text := L.CheckInt(1), L.CheckInt(2), L.CheckString(3)
		if e.canvas != nil {
			e.canvas.DrawText(x, y, text)
		}
		return 0
	}))

	api.RawSetString("size", e.vm.NewFunction(func(L *lua.LState) int {
		var w, h int
		if e.canvas != nil {
			w, h = e.canvas.Size()
		}
		L.Push(lua.LNumber(w))
		L.Push(lua.LNumber(h))
		return 2
	}))

	e.vm.SetGlobal("pixl", api)
}
