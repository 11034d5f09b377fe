package classifier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// ONNX ModelProto and GraphProto field numbers.
const (
	onnxModelGraph protowire.Number = 7
	onnxGraphNode  protowire.Number = 1
)

// checkGraphFile rejects .onnx files that do not hold an ONNX model with at
// least one node. OpenCV's importer can abort the process on malformed
// input, so these never reach it. Other formats are left to OpenCV.
func checkGraphFile(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".onnx") {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var graph []byte
	err = walkMessage(data, func(num protowire.Number, v []byte) {
		if num == onnxModelGraph {
			graph = v
		}
	})
	if err != nil {
		return fmt.Errorf("parse model: %v: %w", err, ErrInvalidGraph)
	}
	if graph == nil {
		return fmt.Errorf("model has no graph: %w", ErrInvalidGraph)
	}

	nodes := 0
	err = walkMessage(graph, func(num protowire.Number, v []byte) {
		if num == onnxGraphNode {
			nodes++
		}
	})
	if err != nil {
		return fmt.Errorf("parse graph: %v: %w", err, ErrInvalidGraph)
	}
	if nodes == 0 {
		return fmt.Errorf("graph has no nodes: %w", ErrInvalidGraph)
	}
	return nil
}

// walkMessage checks that b is well formed protobuf wire data and calls fn
// for every length-delimited field.
func walkMessage(b []byte, fn func(num protowire.Number, v []byte)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			fn(num, v)
			b = b[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}
