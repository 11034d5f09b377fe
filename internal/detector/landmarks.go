// Package detector provides the landmark extraction interface and types consumed by gesture recognition.
package detector

// Landmark counts per body part following the MediaPipe Holistic convention.
// See: https://developers.google.com/mediapipe/solutions/vision/holistic_landmarker
const (
	NumPoseLandmarks = 33
	NumHandLandmarks = 21
	// NumFaceLandmarks is the number of face landmarks used for features.
	// The face mesh reports several hundred points; only the first ones are kept.
	NumFaceLandmarks = 10
)

// Hand landmark indices.
const (
	Wrist     = 0
	ThumbCMC  = 1
	ThumbMCP  = 2
	ThumbIP   = 3
	ThumbTip  = 4
	IndexMCP  = 5
	IndexPIP  = 6
	IndexDIP  = 7
	IndexTip  = 8
	MiddleMCP = 9
	MiddlePIP = 10
	MiddleDIP = 11
	MiddleTip = 12
	RingMCP   = 13
	RingPIP   = 14
	RingDIP   = 15
	RingTip   = 16
	PinkyMCP  = 17
	PinkyPIP  = 18
	PinkyDIP  = 19
	PinkyTip  = 20
)

// Landmark is a detected keypoint. Visibility is only reported for pose landmarks.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility,omitempty"`
}

// Holistic holds the landmark sets found in one frame.
// A nil or empty slice means the part was not detected.
type Holistic struct {
	Pose      []Landmark `json:"pose,omitempty"`
	LeftHand  []Landmark `json:"left_hand,omitempty"`
	RightHand []Landmark `json:"right_hand,omitempty"`
	Face      []Landmark `json:"face,omitempty"`
}

// HasPose reports whether a pose was detected.
func (h *Holistic) HasPose() bool { return h != nil && len(h.Pose) > 0 }

// HasLeftHand reports whether a left hand was detected.
func (h *Holistic) HasLeftHand() bool { return h != nil && len(h.LeftHand) > 0 }

// HasRightHand reports whether a right hand was detected.
func (h *Holistic) HasRightHand() bool { return h != nil && len(h.RightHand) > 0 }

// HasFace reports whether a face was detected.
func (h *Holistic) HasFace() bool { return h != nil && len(h.Face) > 0 }

// HasHands reports whether at least one hand was detected.
func (h *Holistic) HasHands() bool { return h.HasLeftHand() || h.HasRightHand() }
