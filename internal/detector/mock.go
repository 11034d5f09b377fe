package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockExtractor is a test implementation of the Extractor interface.
// It allows tests to control the extraction results.
type MockExtractor struct {
	mu        sync.Mutex
	landmarks *Holistic
	err       error
	calls     int
}

// NewMockExtractor creates a new MockExtractor that reports every part absent.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{}
}

// SetLandmarks sets the landmarks that will be returned by Extract.
func (m *MockExtractor) SetLandmarks(h *Holistic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.landmarks = h
}

// SetError sets the error that will be returned by Extract.
func (m *MockExtractor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Extract calls so far.
func (m *MockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Extract returns the pre-configured landmarks or error.
func (m *MockExtractor) Extract(frame *gocv.Mat) (*Holistic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.landmarks == nil {
		return &Holistic{}, nil
	}
	copied := *m.landmarks
	return &copied, nil
}

// Close is a no-op for the mock extractor.
func (m *MockExtractor) Close() error {
	return nil
}

// OpenPalmHand returns 21 hand landmarks for an open palm with all fingers extended.
func OpenPalmHand() []Landmark {
	points := make([]Landmark, NumHandLandmarks)

	points[Wrist] = Landmark{X: 0.5, Y: 0.8}

	points[ThumbCMC] = Landmark{X: 0.55, Y: 0.75, Z: 0.02}
	points[ThumbMCP] = Landmark{X: 0.62, Y: 0.70, Z: 0.03}
	points[ThumbIP] = Landmark{X: 0.68, Y: 0.65, Z: 0.03}
	points[ThumbTip] = Landmark{X: 0.73, Y: 0.60, Z: 0.03}

	points[IndexMCP] = Landmark{X: 0.55, Y: 0.68}
	points[IndexPIP] = Landmark{X: 0.57, Y: 0.55}
	points[IndexDIP] = Landmark{X: 0.58, Y: 0.45}
	points[IndexTip] = Landmark{X: 0.58, Y: 0.35}

	points[MiddleMCP] = Landmark{X: 0.50, Y: 0.66}
	points[MiddlePIP] = Landmark{X: 0.50, Y: 0.52}
	points[MiddleDIP] = Landmark{X: 0.50, Y: 0.40}
	points[MiddleTip] = Landmark{X: 0.50, Y: 0.28}

	points[RingMCP] = Landmark{X: 0.45, Y: 0.68}
	points[RingPIP] = Landmark{X: 0.43, Y: 0.55}
	points[RingDIP] = Landmark{X: 0.42, Y: 0.45}
	points[RingTip] = Landmark{X: 0.42, Y: 0.35}

	points[PinkyMCP] = Landmark{X: 0.40, Y: 0.70}
	points[PinkyPIP] = Landmark{X: 0.37, Y: 0.60}
	points[PinkyDIP] = Landmark{X: 0.35, Y: 0.50}
	points[PinkyTip] = Landmark{X: 0.34, Y: 0.42}

	return points
}

// FullPose returns 33 pose landmarks with full visibility, spread over the frame.
func FullPose() []Landmark {
	points := make([]Landmark, NumPoseLandmarks)
	for i := range points {
		points[i] = Landmark{
			X:          0.3 + float64(i%11)*0.04,
			Y:          0.1 + float64(i/11)*0.3,
			Z:          -0.01 * float64(i%5),
			Visibility: 0.99,
		}
	}
	return points
}

// FaceMesh returns n face landmarks on a small ring around the face center.
func FaceMesh(n int) []Landmark {
	points := make([]Landmark, n)
	for i := range points {
		points[i] = Landmark{
			X: 0.5 + 0.001*float64(i),
			Y: 0.2 + 0.0005*float64(i),
			Z: -0.02,
		}
	}
	return points
}
