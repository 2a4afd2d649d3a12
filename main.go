package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"morphfield/sculptor/internal/config"
	"morphfield/sculptor/internal/engine"
	"morphfield/sculptor/internal/field"
	"morphfield/sculptor/internal/fieldstats"
	"morphfield/sculptor/internal/geometry"
	"morphfield/sculptor/internal/gesture"
	httpapi "morphfield/sculptor/internal/http"
	"morphfield/sculptor/internal/input"
	"morphfield/sculptor/internal/logging"
	"morphfield/sculptor/internal/replay"
	"morphfield/sculptor/internal/stream"
)

// shutdownGrace bounds how long the HTTP server may take to drain on exit.
const shutdownGrace = 5 * time.Second

// app aggregates the long-lived service state for readiness reporting.
type app struct {
	hub     *Hub
	started time.Time

	mu         sync.Mutex
	startupErr error
}

// ClientCounts implements httpapi.ReadinessProvider.
func (a *app) ClientCounts() (int, int) {
	if a == nil || a.hub == nil {
		return 0, 0
	}
	return a.hub.ClientCounts()
}

// StartupError implements httpapi.ReadinessProvider.
func (a *app) StartupError() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startupErr
}

// Uptime implements httpapi.ReadinessProvider.
func (a *app) Uptime() time.Duration {
	if a == nil || a.started.IsZero() {
		return 0
	}
	return time.Since(a.started)
}

func (a *app) setStartupError(err error) {
	a.mu.Lock()
	a.startupErr = err
	a.mu.Unlock()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialise logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{started: time.Now()}

	//1.- Build the engine core: field, interaction cell, ingest gate.
	shape, ok := geometry.ParseShape(cfg.Shape)
	if !ok {
		return fmt.Errorf("configured shape %q is unknown", cfg.Shape)
	}
	fld := field.New(shape, cfg.ParticleCount)
	cell := gesture.NewCell()
	gate := input.NewGate(input.DefaultConfig)

	//2.- Session recording is optional; an unset directory disables it.
	var recorder *replay.Recorder
	if cfg.ReplayDir != "" {
		recorder, err = replay.NewRecorder(cfg.ReplayDir, nil)
		if err != nil {
			return fmt.Errorf("initialise session recorder: %w", err)
		}
	}

	hub := NewHub(cfg, cell, gate, logger)
	a.hub = hub

	//3.- The scheduler drives the hub directly; the recorder taps the same
	// ticks through its own sink when enabled.
	monitor := engine.NewTickMonitor()
	sinks := []engine.FrameSink{hub}
	if recorder != nil {
		sinks = append(sinks, recorderSink(recorder))
	}
	scheduler := engine.NewScheduler(fld, cell, cfg.TickHz, monitor, sinks...)

	presets, err := config.LoadPresets(cfg.PresetsPath)
	if err != nil {
		//4.- A broken preset catalogue degrades readiness but the sculpture
		// still runs with its configured defaults.
		logger.Error("preset catalogue rejected", logging.Error(err))
		a.setStartupError(fmt.Errorf("preset catalogue: %w", err))
	}

	scene := NewScene(fld, cfg.Color, presets, hub, recorder, scheduler.Ticks, logger)

	//5.- Assemble the HTTP surface: websocket, control API, static viewer.
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)

	handlers := httpapi.NewHandlerSet(httpapi.Options{
		Logger:      logger,
		Readiness:   a,
		Controller:  scene,
		Scene:       scene.Info,
		TickStats:   monitor.Snapshot,
		FieldStats:  func() fieldstats.Summary { return fieldstats.Summarize(fld.Base()) },
		IngestStats: gate.Totals,
		Replay:      dumpSessionFunc(recorder),
		ReplayStats: recorder.Snapshot,
		AdminToken:  cfg.AdminToken,
		RateLimiter: httpapi.NewSlidingWindowLimiter(cfg.ReplayDumpWindow, cfg.ReplayDumpBurst, nil),
	})
	handlers.Register(mux)

	if dir, err := resolveViewerDir(cfg.ViewerDir); err != nil {
		logger.Warn("viewer assets unavailable", logging.Error(err))
	} else {
		mux.Handle("/viewer/", http.StripPrefix("/viewer/", http.FileServer(http.Dir(dir))))
	}

	server := &http.Server{
		Addr:    cfg.Address,
		Handler: logging.HTTPTraceMiddleware(logger)(mux),
	}

	scheduler.Start(ctx)
	logger.Info("sculptor listening",
		logging.String("addr", cfg.Address),
		logging.String("shape", string(shape)),
		logging.Int("particles", fld.Count()),
		logging.Float64("tick_hz", cfg.TickHz),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		stop()
		scheduler.Stop()
		return fmt.Errorf("http server failed: %w", err)
	}

	//6.- Stop the animation first so no tick writes race the teardown, then
	// drain HTTP and disconnect clients.
	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", logging.Error(err))
	}
	hub.CloseAll()
	logger.Info("sculptor stopped", logging.Uint64("ticks", scheduler.Ticks()))
	return nil
}

// recorderSink adapts the session recorder into a frame sink by encoding each
// tick with the plain (uncompressed) codec.
func recorderSink(recorder *replay.Recorder) engine.FrameSink {
	return engine.FrameSinkFunc(func(tick uint64, shape geometry.ShapeKind, points []geometry.Point3) {
		payload, err := stream.Encode(tick, shape, points, false)
		if err != nil {
			return
		}
		recorder.RecordFrame(tick, payload)
	})
}

// dumpSessionFunc exposes the recorder to the control API; a nil recorder
// reports dumping as unavailable.
func dumpSessionFunc(recorder *replay.Recorder) httpapi.ReplayDumper {
	if recorder == nil {
		return nil
	}
	return httpapi.ReplayDumperFunc(func(ctx context.Context) (string, error) {
		return recorder.Dump("session")
	})
}

// resolveViewerDir locates the static viewer assets. An explicit configuration
// wins; otherwise a viewer directory beside the working directory is used.
func resolveViewerDir(configured string) (string, error) {
	dir := configured
	if dir == "" {
		dir = "viewer"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}
