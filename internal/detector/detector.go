package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrExtractorUnavailable is returned when no landmark backend can be started.
var ErrExtractorUnavailable = errors.New("landmark extractor unavailable")

// Extractor defines the interface for landmark extraction implementations.
type Extractor interface {
	// Extract analyzes a decoded frame and returns the landmarks found in it.
	// Parts that were not detected are left empty; a frame with nothing in it
	// is not an error.
	Extract(frame *gocv.Mat) (*Holistic, error)

	// Close releases any resources held by the extractor.
	Close() error
}

// Config holds configuration options for landmark extraction.
type Config struct {
	// Script is the path to the MediaPipe Holistic service script.
	// When empty, well-known locations are searched.
	Script string

	// Python is the interpreter used to run Script. Empty means a venv
	// interpreter if one is found, else python3.
	Python string

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
