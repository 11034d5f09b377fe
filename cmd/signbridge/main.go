package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"

	"github.com/ayusman/signbridge/internal/app"
	"github.com/ayusman/signbridge/internal/capture"
	"github.com/ayusman/signbridge/internal/classifier"
	"github.com/ayusman/signbridge/internal/config"
	"github.com/ayusman/signbridge/internal/detector"
	"github.com/ayusman/signbridge/internal/gesture"
	"github.com/ayusman/signbridge/internal/server"
	"github.com/ayusman/signbridge/internal/server/api"
	"github.com/ayusman/signbridge/internal/store"
)

func main() {
	cfg := config.Load()

	parser := argparse.NewParser("signbridge", "Sign language gesture recognition service")
	addr := parser.String("a", "addr", &argparse.Options{Help: "HTTP listen address", Default: cfg.HTTPAddr})
	modelPath := parser.String("m", "model", &argparse.Options{Help: "Gesture model file (.json weights or a network file)", Default: cfg.ModelPath})
	backend := parser.Selector("b", "backend", []string{"", string(classifier.KindSequence), string(classifier.KindAggregate)}, &argparse.Options{Help: "Force the backend kind", Default: string(cfg.Backend)})
	windowSize := parser.Int("w", "window", &argparse.Options{Help: "Window size (0 selects the backend default)", Default: cfg.WindowSize})
	requireModel := parser.Flag("", "require-model", &argparse.Options{Help: "Report MODEL_NOT_LOADED instead of heuristic labels when no model is loaded", Default: cfg.RequireModel})
	cameraID := parser.Int("", "camera", &argparse.Options{Help: "Local camera device to recognize continuously (-1 disables)", Default: cfg.CameraID})
	staticDir := parser.String("", "static", &argparse.Options{Help: "Directory of static web files", Default: cfg.StaticDir})
	dataDir := parser.String("d", "data", &argparse.Options{Help: "Data directory", Default: cfg.DataDir})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	cfg.HTTPAddr = *addr
	cfg.ModelPath = *modelPath
	cfg.Backend = classifier.Kind(*backend)
	cfg.WindowSize = *windowSize
	cfg.RequireModel = *requireModel
	cfg.CameraID = *cameraID
	cfg.StaticDir = *staticDir
	cfg.DataDir = *dataDir
	if cfg.StaticDir == "" {
		cfg.StaticDir = findWebDir(cfg.DataDir)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logs.Log) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	ext, err := detector.NewDefault(detector.Config{
		Script:          cfg.ExtractorScript,
		Python:          cfg.ExtractorPython,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	})
	if err != nil {
		logger.Warnf("MediaPipe not available (%v), every frame will report NO_HANDS", err)
	}

	backend, state := classifier.Load(cfg.ModelOptions(), logger)
	engine := gesture.NewEngine(gesture.Config{
		Extractor:    ext,
		Backend:      backend,
		Window:       cfg.WindowSize,
		RequireModel: cfg.RequireModel,
		Log:          logger,
	})
	defer engine.Close()
	logger.Infof("Gesture backend %v, window %v", state, engine.Window())

	sessions := gesture.NewSessions(engine)
	sessions.SetLimits(cfg.SessionIdle, cfg.MaxSessions)
	recorder := api.NewRecorder(st, logger)
	hub := server.NewHub(logger)

	srvConfig := server.Config{
		StaticDir:       cfg.StaticDir,
		Store:           st,
		Engine:          engine,
		Sessions:        sessions,
		Recorder:        recorder,
		Hub:             hub,
		ModelPath:       cfg.ModelPath,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Log:             logger,
	}

	if cfg.CameraEnabled() {
		camApp, err := app.New(app.Config{
			Camera:    capture.NewCamera(capture.Config{DeviceID: cfg.CameraID, FPS: cfg.CameraFPS}),
			Sessions:  sessions,
			Recorder:  recorder,
			Publisher: hub,
			FPS:       cfg.CameraFPS,
			Log:       logger,
		})
		if err != nil {
			return err
		}
		if err := camApp.Start(); err != nil {
			logger.Warnf("Camera %v not available: %v", cfg.CameraID, err)
		} else {
			defer camApp.Stop()
			srvConfig.Frames = camApp
		}
	}

	if cfg.StaticDir != "" {
		logger.Infof("Serving static files from %v", cfg.StaticDir)
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.New(srvConfig),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %v", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case s := <-sig:
		logger.Infof("Received %v, shutting down", s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

// findWebDir returns the first of web, ../web and <dataDir>/web that exists.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
