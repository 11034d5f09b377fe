// Package classifier provides the swappable gesture classification backends.
//
// Two backends exist: Sequence runs a recurrent model over the full window,
// Aggregate runs a fixed-input model over the window mean. Which one is used,
// if any, is decided once by Load and reported as a State.
package classifier

import (
	"errors"
	"fmt"

	"github.com/ayusman/signbridge/internal/feature"
)

// Kind identifies a backend variant.
type Kind string

const (
	// KindSequence consumes the whole window as an ordered sequence.
	KindSequence Kind = "sequence"
	// KindAggregate consumes the element-wise mean of the window.
	KindAggregate Kind = "aggregate"
)

// State is the availability of a classification backend.
type State int

const (
	StateAbsent State = iota
	StateSequence
	StateAggregate
)

func (s State) String() string {
	switch s {
	case StateSequence:
		return "loaded-sequence"
	case StateAggregate:
		return "loaded-aggregate"
	}
	return "absent"
}

// StateOf returns the loaded state for a backend kind.
func StateOf(k Kind) State {
	switch k {
	case KindSequence:
		return StateSequence
	case KindAggregate:
		return StateAggregate
	}
	return StateAbsent
}

// Default window sizes per backend.
const (
	DefaultSequenceWindow  = 16
	DefaultAggregateWindow = 8
)

// DefaultWindow returns the window size used when none is configured.
func DefaultWindow(s State) int {
	if s == StateAggregate {
		return DefaultAggregateWindow
	}
	return DefaultSequenceWindow
}

// Unknown is the label for model outputs outside the label table.
const Unknown = "UNKNOWN"

// DefaultLabels is the label table used when neither configuration nor the
// model artifact provides one. Index i of the model output maps to DefaultLabels[i].
var DefaultLabels = []string{
	"HELLO", "THANK_YOU", "YES", "NO", "PLEASE",
	"SORRY", "I_LOVE_YOU", "GOOD", "BAD", Unknown,
}

var (
	// ErrModelNotFound is returned when the model artifact does not exist.
	ErrModelNotFound = errors.New("model artifact not found")
	// ErrShapeMismatch is returned when weights do not match the declared dimensions.
	ErrShapeMismatch = errors.New("model shape mismatch")
	// ErrNoWeights is returned when an artifact carries metadata but no weights.
	ErrNoWeights = errors.New("model artifact has no weights")
	// ErrInvalidGraph is returned when a network file is not a readable graph.
	ErrInvalidGraph = errors.New("invalid network graph")
	// ErrWindowRejected is returned when Classify is called with a window the backend does not accept.
	ErrWindowRejected = errors.New("window rejected by backend")
)

// Prediction is the outcome of one classification.
type Prediction struct {
	Index int
	Label string
	// Score is the softmax probability for sequence backends and the raw
	// output value for aggregate backends.
	Score float32
}

// Backend classifies a window of feature vectors.
type Backend interface {
	// Kind returns the backend variant.
	Kind() Kind

	// Accepts reports whether Classify can run on this window.
	Accepts(window []feature.Vector) bool

	// Classify returns the predicted label for the window.
	Classify(window []feature.Vector) (Prediction, error)

	// Close releases any resources held by the backend.
	Close() error
}

// LoadError describes why a model artifact could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// InferenceError is a failure inside a single Classify call.
// The backend remains usable afterwards.
type InferenceError struct {
	Kind Kind
	Err  error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s inference: %v", e.Kind, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// labelAt maps an output index to the label table.
func labelAt(labels []string, idx int) string {
	if idx < 0 || idx >= len(labels) {
		return Unknown
	}
	return labels[idx]
}

// guard runs fn and turns errors and panics into *InferenceError.
func guard(kind Kind, fn func() (Prediction, error)) (p Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InferenceError{Kind: kind, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	p, err = fn()
	if err != nil {
		var ie *InferenceError
		if !errors.As(err, &ie) {
			err = &InferenceError{Kind: kind, Err: err}
		}
	}
	return p, err
}
