package classifier

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/logs"
)

// Options controls how a model artifact is loaded.
type Options struct {
	// Path to the artifact. JSON files hold weights; any other extension is
	// read as a network graph by the OpenCV DNN module.
	Path string

	// Kind forces a backend. Empty means detect from the artifact.
	Kind Kind

	// Window is the sequence length required by a sequence backend.
	// Zero selects DefaultSequenceWindow.
	Window int

	// Labels overrides the label table. Nil uses the artifact's labels or
	// DefaultLabels.
	Labels []string
}

// Load opens the configured model. It never fails: any problem is logged and
// reported as StateAbsent so the caller can fall back to heuristics.
func Load(opts Options, log logs.Log) (Backend, State) {
	if opts.Path == "" {
		log.Infof("No gesture model configured; using heuristic fallback")
		return nil, StateAbsent
	}

	b, err := Open(opts)
	if err != nil {
		if errors.Is(err, ErrModelNotFound) {
			log.Infof("Gesture model not found at %v; using heuristic fallback", opts.Path)
		} else {
			log.Warnf("Failed to load gesture model: %v; using heuristic fallback", err)
		}
		return nil, StateAbsent
	}

	state := StateOf(b.Kind())
	switch m := b.(type) {
	case *Sequence:
		log.Infof("Gesture model loaded from %v (%v, window %v, hidden %v)", opts.Path, state, m.Window(), m.HiddenSize())
	default:
		log.Infof("Gesture model loaded from %v (%v)", opts.Path, state)
	}
	return b, state
}

// Open loads the artifact at opts.Path. Errors are *LoadError.
func Open(opts Options) (Backend, error) {
	if _, err := os.Stat(opts.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Path: opts.Path, Err: ErrModelNotFound}
		}
		return nil, &LoadError{Path: opts.Path, Err: err}
	}

	var (
		b   Backend
		err error
	)
	if strings.EqualFold(filepath.Ext(opts.Path), ".json") {
		b, err = openArtifact(opts)
	} else {
		b, err = openNetwork(opts)
	}
	if err != nil {
		return nil, &LoadError{Path: opts.Path, Err: err}
	}
	return b, nil
}

func openArtifact(opts Options) (Backend, error) {
	a, err := ReadArtifact(opts.Path)
	if err != nil {
		return nil, err
	}

	kind := opts.Kind
	if kind == "" {
		kind, err = a.DetectKind()
		if err != nil {
			return nil, err
		}
	}

	labels := opts.Labels
	if len(labels) == 0 {
		labels = a.Labels
	}
	if len(labels) == 0 {
		labels = DefaultLabels
	}

	switch kind {
	case KindSequence:
		return NewSequence(a, opts.Window, labels)
	case KindAggregate:
		m, err := loadDense(a)
		if err != nil {
			return nil, err
		}
		return newAggregate(m, labels), nil
	}
	return nil, fmt.Errorf("unknown backend kind %q", kind)
}

func openNetwork(opts Options) (Backend, error) {
	if opts.Kind == KindSequence {
		return nil, fmt.Errorf("network graphs only support the %v backend", KindAggregate)
	}

	g, err := openGraph(opts.Path)
	if err != nil {
		return nil, err
	}

	labels := opts.Labels
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	return newAggregate(g, labels), nil
}
