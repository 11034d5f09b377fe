package classifier

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/signbridge/internal/classifier/classifiertest"
	"github.com/ayusman/signbridge/internal/feature"
)

func window(n int) []feature.Vector {
	return make([]feature.Vector, n)
}

func TestParseArtifact(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		a, err := ParseArtifact([]byte(`{"model_state_dict": {"fc.bias": [0]}}`))
		require.NoError(t, err)
		assert.Equal(t, 288, a.InputSize)
		assert.Equal(t, 10, a.NumClasses)
		assert.Equal(t, 1, a.Version)
		assert.True(t, a.Has("fc.bias"))
	})

	t.Run("legacy metadata keys", func(t *testing.T) {
		a, err := ParseArtifact([]byte(`{"_input_size": 288, "_num_classes": 4, "model_state_dict": {}}`))
		require.NoError(t, err)
		assert.Equal(t, 4, a.NumClasses)
	})

	t.Run("top level weights", func(t *testing.T) {
		a, err := ParseArtifact([]byte(`{"num_classes": 3, "fc.weight": [[1]], "fc.bias": [0]}`))
		require.NoError(t, err)
		assert.True(t, a.Has("fc.weight"))
		assert.False(t, a.Has("num_classes"))
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		_, err := ParseArtifact([]byte(`{"kind": "transformer"}`))
		assert.Error(t, err)
	})

	t.Run("rejects non-positive dimensions", func(t *testing.T) {
		_, err := ParseArtifact([]byte(`{"num_classes": 0}`))
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		_, err := ParseArtifact([]byte(`{`))
		assert.Error(t, err)
	})
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Kind
		err  error
	}{
		{"declared", `{"kind": "aggregate", "model_state_dict": {"lstm.weight_ih_l0": []}}`, KindAggregate, nil},
		{"lstm weights", `{"model_state_dict": {"lstm.weight_ih_l0": [], "fc.bias": []}}`, KindSequence, nil},
		{"dense weights", `{"model_state_dict": {"fc.weight": [], "fc.bias": []}}`, KindAggregate, nil},
		{"no weights", `{"input_size": 288}`, "", ErrNoWeights},
		{"unrelated weights", `{"model_state_dict": {"conv.weight": []}}`, "", ErrNoWeights},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseArtifact([]byte(tt.json))
			require.NoError(t, err)

			got, err := a.DetectKind()
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSequence_Classify(t *testing.T) {
	dir := t.TempDir()
	path := classifiertest.WriteSequence(t, dir, 4, 10, 3)

	b, err := Open(Options{Path: path})
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, KindSequence, b.Kind())
	seq := b.(*Sequence)
	assert.Equal(t, DefaultSequenceWindow, seq.Window())
	assert.Equal(t, 4, seq.HiddenSize())

	t.Run("requires exactly a full window", func(t *testing.T) {
		assert.False(t, b.Accepts(window(0)))
		assert.False(t, b.Accepts(window(15)))
		assert.True(t, b.Accepts(window(16)))
		assert.False(t, b.Accepts(window(17)))
	})

	t.Run("predicts the winning class", func(t *testing.T) {
		p, err := b.Classify(window(16))
		require.NoError(t, err)
		assert.Equal(t, 3, p.Index)
		assert.Equal(t, "NO", p.Label)
		assert.Greater(t, p.Score, float32(0.5))
		assert.LessOrEqual(t, p.Score, float32(1))
	})

	t.Run("short window is an inference error", func(t *testing.T) {
		_, err := b.Classify(window(4))
		var ie *InferenceError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, KindSequence, ie.Kind)
		assert.ErrorIs(t, err, ErrWindowRejected)
	})
}

func TestSequence_UnknownIndex(t *testing.T) {
	// Twelve classes against a ten entry label table.
	path := classifiertest.WriteSequence(t, t.TempDir(), 2, 12, 11)

	b, err := Open(Options{Path: path, Window: 2})
	require.NoError(t, err)

	p, err := b.Classify(window(2))
	require.NoError(t, err)
	assert.Equal(t, 11, p.Index)
	assert.Equal(t, Unknown, p.Label)
}

func TestLSTM_Forward(t *testing.T) {
	// One hidden unit, every gate reads input 0 with weight 1.
	state := classifiertest.SequenceState(1, 2, -1)
	wih := classifiertest.Zeros(4, classifiertest.InputSize)
	for g := range wih {
		wih[g][0] = 1
	}
	state["lstm.weight_ih_l0"] = wih
	state["fc.weight"] = [][]float32{{1}, {-1}}

	path := classifiertest.WriteJSON(t, t.TempDir(), "lstm.json", map[string]any{
		"num_classes":      2,
		"model_state_dict": state,
	})

	b, err := Open(Options{Path: path, Window: 2})
	require.NoError(t, err)

	w := window(2)
	w[0][0], w[1][0] = 0.5, 0.5

	sig := func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
	gate := sig(0.5)
	cand := math.Tanh(0.5)
	c1 := gate * cand
	c2 := gate*c1 + gate*cand
	h2 := gate * math.Tanh(c2)

	logits := b.(*Sequence).model.forward([][]float32{w[0][:], w[1][:]})
	require.Len(t, logits, 2)
	assert.InDelta(t, h2, logits[0], 1e-5)
	assert.InDelta(t, -h2, logits[1], 1e-5)

	p, err := b.Classify(w)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Index)
	assert.InDelta(t, sig(2*h2), p.Score, 1e-5)
}

func TestAggregate_UsesWindowMean(t *testing.T) {
	w := classifiertest.Zeros(2, classifiertest.InputSize)
	w[0][0] = 1
	w[1][0] = -1

	path := classifiertest.WriteJSON(t, t.TempDir(), "dense.json", map[string]any{
		"num_classes": 2,
		"labels":      []string{"UP", "DOWN"},
		"model_state_dict": map[string]any{
			"fc.weight": w,
			"fc.bias":   []float32{0, 0},
		},
	})

	b, err := Open(Options{Path: path})
	require.NoError(t, err)
	require.Equal(t, KindAggregate, b.Kind())

	assert.False(t, b.Accepts(nil))
	assert.True(t, b.Accepts(window(1)))

	vs := window(2)
	vs[0][0], vs[1][0] = 1, -3

	p, err := b.Classify(vs)
	require.NoError(t, err)
	assert.Equal(t, "DOWN", p.Label)
	assert.InDelta(t, 1.0, p.Score, 1e-6)

	_, err = b.Classify(nil)
	assert.ErrorIs(t, err, ErrWindowRejected)
}

func TestAggregate_HiddenLayer(t *testing.T) {
	hidden := classifiertest.Zeros(2, classifiertest.InputSize)
	hidden[0][0] = 1
	hidden[1][0] = -1

	path := classifiertest.WriteJSON(t, t.TempDir(), "mlp.json", map[string]any{
		"num_classes": 2,
		"model_state_dict": map[string]any{
			"hidden.weight": hidden,
			"hidden.bias":   []float32{0, 0},
			// Class 1 wins only when the ReLU clips the negative unit.
			"fc.weight": [][]float32{{0, -1}, {0.5, 0}},
			"fc.bias":   []float32{0, 0},
		},
	})

	b, err := Open(Options{Path: path})
	require.NoError(t, err)

	vs := window(1)
	vs[0][0] = 2

	p, err := b.Classify(vs)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Index)
	assert.Equal(t, "THANK_YOU", p.Label)
}

type panicModel struct{ calls int }

func (m *panicModel) Forward(in []float32) ([]float32, error) {
	m.calls++
	if m.calls == 1 {
		panic("boom")
	}
	return []float32{0, 1}, nil
}

func (m *panicModel) Close() error { return nil }

func TestAggregate_RecoversPanics(t *testing.T) {
	b := newAggregate(&panicModel{}, DefaultLabels)

	_, err := b.Classify(window(1))
	var ie *InferenceError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, KindAggregate, ie.Kind)

	p, err := b.Classify(window(1))
	require.NoError(t, err, "backend must stay usable after a failed call")
	assert.Equal(t, "THANK_YOU", p.Label)
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(Options{Path: filepath.Join(dir, "missing.json")})
		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.ErrorIs(t, err, ErrModelNotFound)
	})

	t.Run("metadata without weights", func(t *testing.T) {
		path := classifiertest.WriteJSON(t, dir, "meta.json", map[string]any{"_input_size": 288, "_num_classes": 10})
		_, err := Open(Options{Path: path})
		assert.ErrorIs(t, err, ErrNoWeights)
	})

	t.Run("wrong input width", func(t *testing.T) {
		state := classifiertest.SequenceState(2, 10, 0)
		state["lstm.weight_ih_l0"] = classifiertest.Zeros(8, 100)
		path := classifiertest.WriteJSON(t, dir, "narrow.json", map[string]any{"model_state_dict": state})

		_, err := Open(Options{Path: path})
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("declared input size differs from feature size", func(t *testing.T) {
		path := classifiertest.WriteJSON(t, dir, "small.json", map[string]any{
			"input_size":       10,
			"model_state_dict": classifiertest.DenseState(10, 0),
		})
		_, err := Open(Options{Path: path})
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("head does not match class count", func(t *testing.T) {
		path := classifiertest.WriteJSON(t, dir, "classes.json", map[string]any{
			"num_classes":      5,
			"model_state_dict": classifiertest.DenseState(10, 0),
		})
		_, err := Open(Options{Path: path})
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("garbage graph", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.onnx")
		require.NoError(t, os.WriteFile(path, []byte("not a graph"), 0644))

		_, err := Open(Options{Path: path})
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})

	t.Run("graph cannot be a sequence backend", func(t *testing.T) {
		path := filepath.Join(dir, "model.onnx")
		require.NoError(t, os.WriteFile(path, []byte("not a graph"), 0644))

		_, err := Open(Options{Path: path, Kind: KindSequence})
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	log := logs.NewTestingLog(t)
	dir := t.TempDir()

	t.Run("no path", func(t *testing.T) {
		b, state := Load(Options{}, log)
		assert.Nil(t, b)
		assert.Equal(t, StateAbsent, state)
	})

	t.Run("missing artifact", func(t *testing.T) {
		b, state := Load(Options{Path: filepath.Join(dir, "gesture_weights.json")}, log)
		assert.Nil(t, b)
		assert.Equal(t, StateAbsent, state)
	})

	t.Run("corrupt artifact", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		b, state := Load(Options{Path: path}, log)
		assert.Nil(t, b)
		assert.Equal(t, StateAbsent, state)
	})

	t.Run("corrupt graph", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.onnx")
		require.NoError(t, os.WriteFile(path, []byte{0xff, 0xff, 0xff, 0x13, 0x00}, 0644))

		b, state := Load(Options{Path: path}, log)
		assert.Nil(t, b)
		assert.Equal(t, StateAbsent, state)
	})

	t.Run("graph", func(t *testing.T) {
		path := classifiertest.WriteGemmONNX(t, t.TempDir(), 10)
		b, state := Load(Options{Path: path}, log)
		require.NotNil(t, b)
		defer b.Close()
		assert.Equal(t, StateAggregate, state)
	})

	t.Run("sequence", func(t *testing.T) {
		path := classifiertest.WriteSequence(t, t.TempDir(), 2, 10, 0)
		b, state := Load(Options{Path: path}, log)
		require.NotNil(t, b)
		assert.Equal(t, StateSequence, state)
		assert.Equal(t, "loaded-sequence", state.String())
	})

	t.Run("aggregate", func(t *testing.T) {
		path := classifiertest.WriteDense(t, t.TempDir(), 10, 0)
		b, state := Load(Options{Path: path}, log)
		require.NotNil(t, b)
		assert.Equal(t, StateAggregate, state)
	})

	t.Run("label override", func(t *testing.T) {
		path := classifiertest.WriteDense(t, t.TempDir(), 3, 2)
		b, _ := Load(Options{Path: path, Labels: []string{"A", "B", "C"}}, log)
		require.NotNil(t, b)

		p, err := b.Classify(window(1))
		require.NoError(t, err)
		assert.Equal(t, "C", p.Label)
	})
}

func TestGraph_Classify(t *testing.T) {
	labels := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	path := classifiertest.WriteGemmONNX(t, t.TempDir(), len(labels))

	b, err := Open(Options{Path: path, Labels: labels})
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, KindAggregate, b.Kind())

	// The window mean has feature 3 at 3 and feature 7 at 0.5
	w := window(2)
	w[0][3], w[1][3] = 4, 2
	w[0][7] = 1

	p, err := b.Classify(w)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Index)
	assert.Equal(t, "D", p.Label)
	assert.InDelta(t, 3.0, p.Score, 1e-5)

	_, err = b.Classify(nil)
	assert.ErrorIs(t, err, ErrWindowRejected)
}

func TestCheckGraphFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0644))
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"gemm model", write("gemm.onnx", classifiertest.GemmONNX(4)), false},
		{"text", write("text.onnx", []byte("not a graph")), true},
		{"empty", write("empty.onnx", nil), true},
		// producer_name only, no graph
		{"no graph", write("nograph.onnx", []byte{0x12, 0x01, 'x'}), true},
		// graph holding only a name
		{"no nodes", write("nonodes.onnx", []byte{0x3a, 0x03, 0x12, 0x01, 'g'}), true},
		{"truncated", write("trunc.onnx", classifiertest.GemmONNX(4)[:40]), true},
		{"other formats are left to OpenCV", write("model.pb", []byte("anything")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkGraphFile(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidGraph)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSoftmax_LargeInputs(t *testing.T) {
	p := softmax([]float32{1000, 1001, 1002})
	for _, x := range p {
		assert.False(t, math.IsNaN(float64(x)), "softmax overflowed: %v", p)
	}
	assert.Equal(t, 2, argmax(p))
	assert.InDelta(t, 0.665, p[2], 1e-3)
}

func TestDefaultWindow(t *testing.T) {
	assert.Equal(t, 16, DefaultWindow(StateAbsent))
	assert.Equal(t, 16, DefaultWindow(StateSequence))
	assert.Equal(t, 8, DefaultWindow(StateAggregate))
}

func TestSoftmaxArgmax(t *testing.T) {
	p := softmax([]float32{1, 2, 3})
	var sum float32
	for _, x := range p {
		sum += x
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Equal(t, 2, argmax(p))

	assert.Equal(t, 0, argmax([]float32{1, 1}), "ties resolve to the lowest index")
	assert.Equal(t, -1, argmax(nil))
}
