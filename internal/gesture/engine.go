package gesture

import (
	"sync/atomic"

	"github.com/cyclopcam/logs"

	"github.com/ayusman/signbridge/internal/classifier"
	"github.com/ayusman/signbridge/internal/detector"
	"github.com/ayusman/signbridge/internal/window"
)

// Config holds the collaborators of an Engine.
type Config struct {
	// Extractor produces landmarks from decoded frames. Nil uses a
	// MockExtractor that reports every part absent.
	Extractor detector.Extractor

	// Backend classifies full windows. Nil means no model is loaded.
	Backend classifier.Backend

	// Window is the buffer capacity per stream. Zero selects the backend
	// default. A sequence backend always uses its own window length.
	Window int

	// RequireModel reports MODEL_NOT_LOADED instead of heuristic labels
	// when no backend is loaded.
	RequireModel bool

	Log logs.Log
}

// Engine holds the state shared by every Recognizer: the extractor, the
// backend and its availability, and the counters. It is immutable after
// construction apart from the counters.
type Engine struct {
	extractor    detector.Extractor
	backend      classifier.Backend
	state        classifier.State
	window       int
	requireModel bool
	log          logs.Log
	stats        counters
}

// windowed is implemented by backends that require an exact window length.
type windowed interface {
	Window() int
}

// NewEngine creates an Engine from cfg.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		extractor:    cfg.Extractor,
		backend:      cfg.Backend,
		state:        classifier.StateAbsent,
		requireModel: cfg.RequireModel,
		log:          cfg.Log,
	}
	if e.extractor == nil {
		e.extractor = detector.NewMockExtractor()
	}
	if e.backend != nil {
		e.state = classifier.StateOf(e.backend.Kind())
	}

	e.window = cfg.Window
	if w, ok := e.backend.(windowed); ok {
		if cfg.Window != 0 && cfg.Window != w.Window() && e.log != nil {
			e.log.Warnf("Window size %v ignored; sequence model requires %v", cfg.Window, w.Window())
		}
		e.window = w.Window()
	}
	if e.window < 1 {
		e.window = classifier.DefaultWindow(e.state)
	}
	return e
}

// NewRecognizer returns a Recognizer with its own empty window.
func (e *Engine) NewRecognizer() *Recognizer {
	return &Recognizer{engine: e, buf: window.New(e.window)}
}

// State returns the backend availability.
func (e *Engine) State() classifier.State {
	return e.state
}

// Window returns the per-stream window capacity.
func (e *Engine) Window() int {
	return e.window
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// Close releases the backend and the extractor.
func (e *Engine) Close() error {
	var firstErr error
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			firstErr = err
		}
	}
	if err := e.extractor.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Stats are running totals across all recognizers of an Engine.
type Stats struct {
	Frames          int64 `json:"frames"`
	InvalidFrames   int64 `json:"invalid_frames"`
	ExtractorErrors int64 `json:"extractor_errors"`
	ModelLabels     int64 `json:"model_labels"`
	HeuristicLabels int64 `json:"heuristic_labels"`
	InferenceErrors int64 `json:"inference_errors"`
}

type counters struct {
	frames          atomic.Int64
	invalidFrames   atomic.Int64
	extractorErrors atomic.Int64
	modelLabels     atomic.Int64
	heuristicLabels atomic.Int64
	inferenceErrors atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Frames:          c.frames.Load(),
		InvalidFrames:   c.invalidFrames.Load(),
		ExtractorErrors: c.extractorErrors.Load(),
		ModelLabels:     c.modelLabels.Load(),
		HeuristicLabels: c.heuristicLabels.Load(),
		InferenceErrors: c.inferenceErrors.Load(),
	}
}
