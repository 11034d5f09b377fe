// Package feature flattens per-frame landmarks into fixed-layout feature vectors.
//
// The layout never changes between frames, whatever was detected:
//
//	[  0, 132)  pose        33 × (x, y, z, visibility)
//	[132, 195)  left hand   21 × (x, y, z)
//	[195, 258)  right hand  21 × (x, y, z)
//	[258, 288)  face        first 10 × (x, y, z)
//
// Parts that were not detected contribute zeros.
package feature

import (
	"github.com/ayusman/signbridge/internal/detector"
)

// Part identifies one segment of a Vector.
type Part int

const (
	Pose Part = iota
	LeftHand
	RightHand
	Face
)

// Segment sizes and offsets.
const (
	PoseSize      = detector.NumPoseLandmarks * 4
	LeftHandSize  = detector.NumHandLandmarks * 3
	RightHandSize = detector.NumHandLandmarks * 3
	FaceSize      = detector.NumFaceLandmarks * 3

	PoseOffset      = 0
	LeftHandOffset  = PoseOffset + PoseSize
	RightHandOffset = LeftHandOffset + LeftHandSize
	FaceOffset      = RightHandOffset + RightHandSize

	// Size is the length of every feature vector.
	Size = FaceOffset + FaceSize
)

// Vector is the feature vector for one frame.
type Vector [Size]float32

// String returns the part name.
func (p Part) String() string {
	switch p {
	case Pose:
		return "pose"
	case LeftHand:
		return "left_hand"
	case RightHand:
		return "right_hand"
	case Face:
		return "face"
	}
	return "unknown"
}

// Bounds returns the [start, end) range of the part inside a Vector.
func (p Part) Bounds() (start, end int) {
	switch p {
	case Pose:
		return PoseOffset, PoseOffset + PoseSize
	case LeftHand:
		return LeftHandOffset, LeftHandOffset + LeftHandSize
	case RightHand:
		return RightHandOffset, RightHandOffset + RightHandSize
	case Face:
		return FaceOffset, FaceOffset + FaceSize
	}
	return 0, 0
}

// Segment returns the slice of v holding the given part.
// The slice aliases v; callers must not modify it.
func (v *Vector) Segment(p Part) []float32 {
	start, end := p.Bounds()
	return v[start:end]
}

// Build flattens the landmarks of one frame. It never fails: a nil holistic
// yields the zero vector.
func Build(h *detector.Holistic) Vector {
	var v Vector
	if h == nil {
		return v
	}

	putPoints(v[PoseOffset:PoseOffset+PoseSize], h.Pose, detector.NumPoseLandmarks, true)
	putPoints(v[LeftHandOffset:LeftHandOffset+LeftHandSize], h.LeftHand, detector.NumHandLandmarks, false)
	putPoints(v[RightHandOffset:RightHandOffset+RightHandSize], h.RightHand, detector.NumHandLandmarks, false)
	putPoints(v[FaceOffset:FaceOffset+FaceSize], h.Face, detector.NumFaceLandmarks, false)

	return v
}

// putPoints writes at most n points into dst in index order. Missing points stay zero.
func putPoints(dst []float32, points []detector.Landmark, n int, visibility bool) {
	stride := 3
	if visibility {
		stride = 4
	}

	for i := 0; i < n && i < len(points); i++ {
		p := points[i]
		o := i * stride
		dst[o] = float32(p.X)
		dst[o+1] = float32(p.Y)
		dst[o+2] = float32(p.Z)
		if visibility {
			dst[o+3] = float32(p.Visibility)
		}
	}
}

// Mean returns the element-wise mean of vs. An empty input yields the zero vector.
func Mean(vs []Vector) Vector {
	var sum [Size]float64
	var mean Vector
	if len(vs) == 0 {
		return mean
	}

	for i := range vs {
		for j, x := range vs[i] {
			sum[j] += float64(x)
		}
	}

	n := float64(len(vs))
	for j := range sum {
		mean[j] = float32(sum[j] / n)
	}
	return mean
}
