package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/config"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/fault"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/loop"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/timing"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/platform/headless"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/platform/terminal"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/scripting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func init() {
	// Platform windows expect their calls from the thread that created them.
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(backend string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              Pixl  v0.1.0                 \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        real-time frame scheduler          \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mbackend:\033[0m %s\n\n", backend)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value string) {
	dotsLen := max(42-len(label)-len(value), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), value)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printWarn(msg string) {
	fmt.Printf("  \033[33m!\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/pixl.toml"
	if p := os.Getenv("PIXL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	onTerminal := cfg.Window.Backend == "terminal"

	// 2. Init logger; the terminal backend owns the screen, so logs go to a file
	if onTerminal && cfg.Logging.File == "" {
		cfg.Logging.File = "pixl.log"
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Window.Backend)

	// 3. Simulation
	printSection("Simulation")
	var (
		engine *scripting.Engine
		sim    loop.Simulation
	)
	if cfg.Script.Path != "" {
		engine, err = scripting.NewEngine(cfg.Script.Path, log.Named("lua"))
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer engine.Close()
		sim = engine
		printOK(fmt.Sprintf("Lua scripts loaded from %s", cfg.Script.Path))
	} else {
		runner := newDefaultRunner(log.Named("systems"), fault.LogHandler(log.Named("systems")))
		sim = runner
		printOK(fmt.Sprintf("built-in systems registered (%d)", runner.Len()))
	}

	f := cfg.Frame
	freq := timing.Frequency(f.TickFrequency)
	printStat("target update delta (ticks)", fmt.Sprint(f.TargetUpdateTicks(freq)))
	printStat("target fixed delta (ticks)", fmt.Sprint(f.TargetFixedTicks(freq)))
	printStat("spin threshold", f.SpinThreshold.String())
	fmt.Println()

	// 4. Window
	var (
		fl       *loop.FrameLoop
		window   loop.Window
		renderer loop.Renderer
		term     *terminal.Window
	)
	switch cfg.Window.Backend {
	case "headless":
		w := headless.New(80, 25, cfg.Window.MaxFrames, log.Named("headless"))
		window, renderer = w, w
	case "terminal":
		term, err = terminal.New(nil, log.Named("terminal"))
		if err != nil {
			return fmt.Errorf("window: %w", err)
		}
		defer term.Close()
		window, renderer = term, term
		sim = term.Overlay(sim, func() loop.Stats { return fl.Stats() })
		if engine != nil {
			engine.SetCanvas(term)
		}
	}

	// 5. Frame loop
	fl = loop.New(loop.Options{
		TargetUpdateDelta: f.TargetUpdateDelta,
		TargetFixedDelta:  f.TargetFixedDelta,
		SpinThreshold:     f.SpinThreshold.Duration,
		MaxCatchUpSteps:   f.MaxCatchUpSteps,
		CloseTimeout:      f.CloseTimeout.Duration,
		Clock:             timing.NewMonotonicClock(freq),
	}, sim, window, renderer, log.Named("loop"))
	if engine != nil {
		engine.Bind(fl)
	}

	// Signals ask the loop to quit through its own scheduler.
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)
	go func() {
		sig := <-shutdownCh
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		reason := "signal " + sig.String()
		if err := fl.Scheduler().Post(func(any) { fl.RequestQuit(reason) }, nil); err != nil {
			fl.RequestQuit(reason)
		}
	}()

	if !onTerminal {
		printSection("Running")
		printReady("frame loop started (Ctrl-C to stop)")
		fmt.Println()
	}

	fl.Start(context.Background())
	for fl.RunOneFrame() {
		fl.WaitForNextUpdate()
	}
	drained := fl.Stop()
	stats := fl.Stats()

	if term != nil {
		term.Close()
	}

	printSection("Stopped")
	printStat("frames", fmt.Sprint(stats.Frames))
	printStat("fixed steps", fmt.Sprint(stats.FixedSteps))
	printStat("skipped fixed steps", fmt.Sprint(stats.SkippedSteps))
	printStat("late frames", fmt.Sprint(stats.LateFrames))
	printStat("faults", fmt.Sprint(stats.Faults))
	if drained {
		printOK("scheduled work drained")
	} else {
		printWarn(fmt.Sprintf("scheduled work still pending after %s", f.CloseTimeout))
	}
	fmt.Println()

	if err := fl.Err(); err != nil {
		return fmt.Errorf("frame loop: %w", err)
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
		if cfg.File == "" {
			zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.File != "" {
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.ErrorOutputPaths = []string{cfg.File}
	}

	return zapCfg.Build()
}
