package classifier

import (
	"fmt"

	"github.com/ayusman/signbridge/internal/feature"
)

// Sequence classifies a full window with a recurrent model. It is read-only
// after construction and safe for concurrent use.
type Sequence struct {
	model  *lstmModel
	window int
	labels []string
}

// NewSequence builds a Sequence backend from a parsed artifact.
func NewSequence(a *Artifact, window int, labels []string) (*Sequence, error) {
	if a.InputSize != feature.Size {
		return nil, fmt.Errorf("input size %d, want %d: %w", a.InputSize, feature.Size, ErrShapeMismatch)
	}
	if window < 1 {
		window = DefaultSequenceWindow
	}

	model, err := loadLSTM(a)
	if err != nil {
		return nil, err
	}
	return &Sequence{model: model, window: window, labels: labels}, nil
}

func (s *Sequence) Kind() Kind { return KindSequence }

// Window returns the exact window length the backend requires.
func (s *Sequence) Window() int { return s.window }

// HiddenSize returns the recurrent state width.
func (s *Sequence) HiddenSize() int { return s.model.hidden }

// Accepts reports whether the window is exactly full.
func (s *Sequence) Accepts(window []feature.Vector) bool {
	return len(window) == s.window
}

// Classify runs the window through the recurrent model and returns the
// softmax argmax.
func (s *Sequence) Classify(window []feature.Vector) (Prediction, error) {
	return guard(KindSequence, func() (Prediction, error) {
		if !s.Accepts(window) {
			return Prediction{}, fmt.Errorf("got %d vectors, want %d: %w", len(window), s.window, ErrWindowRejected)
		}

		seq := make([][]float32, len(window))
		for t := range window {
			seq[t] = window[t][:]
		}

		probs := softmax(s.model.forward(seq))
		idx := argmax(probs)
		return Prediction{Index: idx, Label: labelAt(s.labels, idx), Score: probs[idx]}, nil
	})
}

func (s *Sequence) Close() error { return nil }
