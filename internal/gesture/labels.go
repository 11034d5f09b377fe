// Package gesture turns a stream of encoded frames into gesture labels.
//
// An Engine holds the collaborators shared by every stream: the landmark
// extractor, the classification backend and the counters. Each stream gets
// its own Recognizer, which owns exactly one temporal window.
package gesture

// Label is a gesture token returned for a frame. It is either a label from the
// model's label table or one of the sentinels below.
type Label string

const (
	// InvalidFrame is returned when the input could not be decoded.
	InvalidFrame Label = "INVALID_FRAME"
	// NoHands is the fallback label when neither hand is present.
	NoHands Label = "NO_HANDS"
	// ModelNotLoaded is returned instead of a heuristic label when a model is required but absent.
	ModelNotLoaded Label = "MODEL_NOT_LOADED"
	// Error is returned when landmark extraction fails.
	Error Label = "ERROR"
	// Hello is the fallback label for a visible right hand.
	Hello Label = "HELLO"
	// HelloLeft is the fallback label for a visible left hand only.
	HelloLeft Label = "HELLO_L"
)

// Source records which stage produced a label.
type Source string

const (
	SourceModel     Source = "model"
	SourceHeuristic Source = "heuristic"
	SourceSentinel  Source = "sentinel"
)

// Sentinels lists the labels that are not produced by classification.
var Sentinels = []Label{InvalidFrame, NoHands, ModelNotLoaded, Error, HelloLeft}
