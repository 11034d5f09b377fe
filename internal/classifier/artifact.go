package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ayusman/signbridge/internal/feature"
)

// Defaults for artifact metadata.
const (
	DefaultInputSize  = feature.Size
	DefaultNumClasses = 10
	DefaultHiddenSize = 128
)

// metadataKeys are top-level artifact fields that are never weights.
var metadataKeys = map[string]bool{
	"version":          true,
	"kind":             true,
	"input_size":       true,
	"_input_size":      true,
	"num_classes":      true,
	"_num_classes":     true,
	"hidden_size":      true,
	"labels":           true,
	"model_state_dict": true,
}

// Artifact is a versioned JSON weights file produced by the offline trainer.
//
//	{
//	  "version": 1,
//	  "kind": "sequence",
//	  "input_size": 288,
//	  "num_classes": 10,
//	  "labels": ["HELLO", ...],
//	  "model_state_dict": {"lstm.weight_ih_l0": [[...]], "fc.bias": [...], ...}
//	}
//
// input_size and num_classes default to 288 and 10; the legacy names
// _input_size and _num_classes are accepted. Weights may also sit at the top
// level instead of under model_state_dict.
type Artifact struct {
	Version    int
	Kind       Kind
	InputSize  int
	NumClasses int
	HiddenSize int
	Labels     []string
	State      map[string]json.RawMessage
}

// ReadArtifact reads and parses a JSON weights artifact.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrModelNotFound
		}
		return nil, err
	}
	return ParseArtifact(data)
}

// ParseArtifact parses a JSON weights artifact.
func ParseArtifact(data []byte) (*Artifact, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}

	a := &Artifact{
		Version:    1,
		InputSize:  DefaultInputSize,
		NumClasses: DefaultNumClasses,
	}

	fields := []struct {
		keys []string
		dst  any
	}{
		{[]string{"version"}, &a.Version},
		{[]string{"kind"}, &a.Kind},
		{[]string{"input_size", "_input_size"}, &a.InputSize},
		{[]string{"num_classes", "_num_classes"}, &a.NumClasses},
		{[]string{"hidden_size"}, &a.HiddenSize},
		{[]string{"labels"}, &a.Labels},
	}
	for _, f := range fields {
		for _, k := range f.keys {
			raw, ok := top[k]
			if !ok || string(raw) == "null" {
				continue
			}
			if err := json.Unmarshal(raw, f.dst); err != nil {
				return nil, fmt.Errorf("parse %s: %w", k, err)
			}
			break
		}
	}

	if raw, ok := top["model_state_dict"]; ok {
		if err := json.Unmarshal(raw, &a.State); err != nil {
			return nil, fmt.Errorf("parse model_state_dict: %w", err)
		}
	} else {
		a.State = make(map[string]json.RawMessage)
		for k, v := range top {
			if !metadataKeys[k] {
				a.State[k] = v
			}
		}
	}

	if a.InputSize <= 0 || a.NumClasses <= 0 {
		return nil, fmt.Errorf("input_size %d, num_classes %d: %w", a.InputSize, a.NumClasses, ErrShapeMismatch)
	}
	if a.Kind != "" && a.Kind != KindSequence && a.Kind != KindAggregate {
		return nil, fmt.Errorf("unknown kind %q", a.Kind)
	}

	return a, nil
}

// DetectKind returns the declared kind, or infers it from the weight names.
func (a *Artifact) DetectKind() (Kind, error) {
	if a.Kind != "" {
		return a.Kind, nil
	}
	if len(a.State) == 0 {
		return "", ErrNoWeights
	}
	for k := range a.State {
		if strings.HasPrefix(k, "lstm.") {
			return KindSequence, nil
		}
	}
	if _, ok := a.State["fc.weight"]; ok {
		return KindAggregate, nil
	}
	return "", fmt.Errorf("no recognised weights: %w", ErrNoWeights)
}

// Has reports whether a weight tensor exists.
func (a *Artifact) Has(name string) bool {
	_, ok := a.State[name]
	return ok
}

// Matrix returns the named 2-D tensor as a row-major slice. cols may be 0 to
// accept any width; the width found is returned.
func (a *Artifact) Matrix(name string, rows, cols int) ([]float32, int, error) {
	raw, ok := a.State[name]
	if !ok {
		return nil, 0, fmt.Errorf("%s missing: %w", name, ErrNoWeights)
	}

	var m [][]float32
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", name, err)
	}
	if len(m) != rows {
		return nil, 0, fmt.Errorf("%s has %d rows, want %d: %w", name, len(m), rows, ErrShapeMismatch)
	}
	if rows == 0 {
		return nil, 0, fmt.Errorf("%s is empty: %w", name, ErrShapeMismatch)
	}
	if cols == 0 {
		cols = len(m[0])
	}

	flat := make([]float32, 0, rows*cols)
	for i, row := range m {
		if len(row) != cols {
			return nil, 0, fmt.Errorf("%s row %d has %d columns, want %d: %w", name, i, len(row), cols, ErrShapeMismatch)
		}
		flat = append(flat, row...)
	}
	return flat, cols, nil
}

// Vector returns the named 1-D tensor.
func (a *Artifact) Vector(name string, n int) ([]float32, error) {
	raw, ok := a.State[name]
	if !ok {
		return nil, fmt.Errorf("%s missing: %w", name, ErrNoWeights)
	}

	var v []float32
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if len(v) != n {
		return nil, fmt.Errorf("%s has %d entries, want %d: %w", name, len(v), n, ErrShapeMismatch)
	}
	return v, nil
}

// Rows returns the number of rows of a 2-D tensor without validating it.
func (a *Artifact) Rows(name string) (int, error) {
	raw, ok := a.State[name]
	if !ok {
		return 0, fmt.Errorf("%s missing: %w", name, ErrNoWeights)
	}
	var m []json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return len(m), nil
}
