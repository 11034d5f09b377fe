package classifier

import (
	"errors"
	"fmt"

	"github.com/ayusman/signbridge/internal/feature"
)

// vectorModel maps one input vector to class scores.
type vectorModel interface {
	Forward(in []float32) ([]float32, error)
	Close() error
}

// Aggregate classifies the element-wise mean of the window with a
// fixed-input model.
type Aggregate struct {
	model  vectorModel
	labels []string
}

func newAggregate(m vectorModel, labels []string) *Aggregate {
	return &Aggregate{model: m, labels: labels}
}

func (a *Aggregate) Kind() Kind { return KindAggregate }

// Accepts reports whether the window holds at least one vector.
func (a *Aggregate) Accepts(window []feature.Vector) bool {
	return len(window) > 0
}

// Classify averages the window and returns the raw argmax of the model output.
func (a *Aggregate) Classify(window []feature.Vector) (Prediction, error) {
	return guard(KindAggregate, func() (Prediction, error) {
		if !a.Accepts(window) {
			return Prediction{}, fmt.Errorf("empty window: %w", ErrWindowRejected)
		}

		mean := feature.Mean(window)
		out, err := a.model.Forward(mean[:])
		if err != nil {
			return Prediction{}, err
		}
		if len(out) == 0 {
			return Prediction{}, errors.New("model produced no output")
		}

		idx := argmax(out)
		return Prediction{Index: idx, Label: labelAt(a.labels, idx), Score: out[idx]}, nil
	})
}

func (a *Aggregate) Close() error {
	return a.model.Close()
}

// denseModel is a feed-forward network read from a JSON artifact:
// an optional ReLU hidden layer followed by the fc output layer.
type denseModel struct {
	hidden *linear
	head   *linear
}

func loadDense(a *Artifact) (*denseModel, error) {
	if a.InputSize != feature.Size {
		return nil, fmt.Errorf("input size %d, want %d: %w", a.InputSize, feature.Size, ErrShapeMismatch)
	}

	m := &denseModel{}
	in := a.InputSize
	if a.Has("hidden.weight") {
		rows, err := a.Rows("hidden.weight")
		if err != nil {
			return nil, err
		}
		m.hidden, err = loadLinear(a, "hidden", in, rows)
		if err != nil {
			return nil, err
		}
		in = rows
	}

	var err error
	m.head, err = loadLinear(a, "fc", in, a.NumClasses)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *denseModel) Forward(in []float32) ([]float32, error) {
	x := in
	if m.hidden != nil {
		x = m.hidden.apply(x)
		relu(x)
	}
	return m.head.apply(x), nil
}

func (m *denseModel) Close() error { return nil }
