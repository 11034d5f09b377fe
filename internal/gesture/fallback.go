package gesture

import (
	"github.com/ayusman/signbridge/internal/feature"
)

// presenceEpsilon is the magnitude above which a coordinate counts as present.
const presenceEpsilon = 1e-6

// Fallback classifies a single feature vector by hand presence.
// The right hand takes priority over the left.
func Fallback(v feature.Vector) Label {
	switch {
	case present(v.Segment(feature.RightHand)):
		return Hello
	case present(v.Segment(feature.LeftHand)):
		return HelloLeft
	}
	return NoHands
}

func present(seg []float32) bool {
	for _, x := range seg {
		if x > presenceEpsilon || x < -presenceEpsilon {
			return true
		}
	}
	return false
}
