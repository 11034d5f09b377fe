// Package classifiertest writes small model artifacts for tests.
package classifiertest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// InputSize matches feature.Size.
const InputSize = 288

// Zeros returns a rows x cols matrix of zeros.
func Zeros(rows, cols int) [][]float32 {
	m := make([][]float32, rows)
	for i := range m {
		m[i] = make([]float32, cols)
	}
	return m
}

// Bias returns an n-vector that is zero except for value at index hot.
func Bias(n, hot int, value float32) []float32 {
	b := make([]float32, n)
	if hot >= 0 && hot < n {
		b[hot] = value
	}
	return b
}

// SequenceState returns LSTM weights whose output always favours class winner.
func SequenceState(hidden, classes, winner int) map[string]any {
	return map[string]any{
		"lstm.weight_ih_l0": Zeros(4*hidden, InputSize),
		"lstm.weight_hh_l0": Zeros(4*hidden, hidden),
		"lstm.bias_ih_l0":   make([]float32, 4*hidden),
		"lstm.bias_hh_l0":   make([]float32, 4*hidden),
		"fc.weight":         Zeros(classes, hidden),
		"fc.bias":           Bias(classes, winner, 5),
	}
}

// DenseState returns fc weights whose output always favours class winner.
func DenseState(classes, winner int) map[string]any {
	return map[string]any{
		"fc.weight": Zeros(classes, InputSize),
		"fc.bias":   Bias(classes, winner, 5),
	}
}

// WriteJSON marshals v into dir/name and returns the path.
func WriteJSON(t testing.TB, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal artifact: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

// WriteSequence writes a sequence artifact that always predicts winner.
func WriteSequence(t testing.TB, dir string, hidden, classes, winner int) string {
	t.Helper()
	return WriteJSON(t, dir, "sequence.json", map[string]any{
		"version":          1,
		"input_size":       InputSize,
		"num_classes":      classes,
		"hidden_size":      hidden,
		"model_state_dict": SequenceState(hidden, classes, winner),
	})
}

// WriteDense writes an aggregate artifact that always predicts winner.
func WriteDense(t testing.TB, dir string, classes, winner int) string {
	t.Helper()
	return WriteJSON(t, dir, "dense.json", map[string]any{
		"version":          1,
		"input_size":       InputSize,
		"num_classes":      classes,
		"model_state_dict": DenseState(classes, winner),
	})
}
