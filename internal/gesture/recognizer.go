package gesture

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/signbridge/internal/feature"
	"github.com/ayusman/signbridge/internal/window"
)

// Result is the outcome of recognizing one frame.
type Result struct {
	Label  Label   `json:"gesture"`
	Source Source  `json:"source"`
	Score  float32 `json:"score,omitempty"`
	// Window is the number of vectors buffered after this frame.
	Window int `json:"window"`
	// Changed is true when Label differs from the previous result of the
	// same recognizer.
	Changed bool `json:"changed"`
}

// Recognizer produces one label per frame for a single stream.
type Recognizer struct {
	engine *Engine
	buf    *window.Buffer

	mu   sync.Mutex
	last Label
}

// Recognize decodes an encoded image and returns its label.
// Undecodable input returns INVALID_FRAME and leaves the window untouched.
func (r *Recognizer) Recognize(encoded []byte) Result {
	r.engine.stats.frames.Add(1)

	if len(encoded) == 0 {
		return r.invalid()
	}
	img, err := gocv.IMDecode(encoded, gocv.IMReadColor)
	if err != nil {
		return r.invalid()
	}
	defer img.Close()
	if img.Empty() {
		return r.invalid()
	}

	return r.recognize(&img)
}

// RecognizeFrame labels an already decoded frame.
func (r *Recognizer) RecognizeFrame(frame *gocv.Mat) Result {
	r.engine.stats.frames.Add(1)

	if frame == nil || frame.Empty() {
		return r.invalid()
	}
	return r.recognize(frame)
}

// Reset empties the window and forgets the previous label.
func (r *Recognizer) Reset() {
	r.buf.Reset()
	r.mu.Lock()
	r.last = ""
	r.mu.Unlock()
}

// Len returns the number of buffered vectors.
func (r *Recognizer) Len() int {
	return r.buf.Len()
}

// Last returns the most recent label, or "" before the first frame.
func (r *Recognizer) Last() Label {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Recognizer) recognize(frame *gocv.Mat) Result {
	e := r.engine

	h, err := e.extractor.Extract(frame)
	if err != nil {
		e.stats.extractorErrors.Add(1)
		if e.log != nil {
			e.log.Warnf("Landmark extraction failed: %v", err)
		}
		return r.finish(Result{Label: Error, Source: SourceSentinel, Window: r.buf.Len()})
	}

	v := feature.Build(h)
	snap := r.buf.PushSnapshot(v)

	if e.backend != nil && e.backend.Accepts(snap) {
		p, err := e.backend.Classify(snap)
		if err == nil {
			e.stats.modelLabels.Add(1)
			return r.finish(Result{Label: Label(p.Label), Source: SourceModel, Score: p.Score, Window: len(snap)})
		}
		e.stats.inferenceErrors.Add(1)
		if e.log != nil {
			e.log.Errorf("Gesture inference failed: %v", err)
		}
	}

	if e.backend == nil && e.requireModel {
		return r.finish(Result{Label: ModelNotLoaded, Source: SourceSentinel, Window: len(snap)})
	}

	e.stats.heuristicLabels.Add(1)
	return r.finish(Result{Label: Fallback(snap[len(snap)-1]), Source: SourceHeuristic, Window: len(snap)})
}

func (r *Recognizer) invalid() Result {
	r.engine.stats.invalidFrames.Add(1)
	return r.finish(Result{Label: InvalidFrame, Source: SourceSentinel, Window: r.buf.Len()})
}

func (r *Recognizer) finish(res Result) Result {
	r.mu.Lock()
	res.Changed = res.Label != r.last
	r.last = res.Label
	r.mu.Unlock()
	return res
}
