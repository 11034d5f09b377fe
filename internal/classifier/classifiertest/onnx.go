package classifiertest

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

// ONNX enum values.
const (
	onnxFloat   = 1 // TensorProto.FLOAT
	onnxAttrInt = 2 // AttributeProto.INT
)

// GemmONNX returns an ONNX model computing logits = input * W^T with a
// 1 x InputSize input and classes outputs. Row k of W is one at feature k,
// so the logit of class k equals input feature k.
func GemmONNX(classes int) []byte {
	w := make([]float32, classes*InputSize)
	for k := 0; k < classes && k < InputSize; k++ {
		w[k*InputSize+k] = 1
	}
	b := make([]float32, classes)

	var gemm []byte
	for _, in := range []string{"input", "W", "B"} {
		gemm = protowire.AppendTag(gemm, 1, protowire.BytesType)
		gemm = protowire.AppendString(gemm, in)
	}
	gemm = protowire.AppendTag(gemm, 2, protowire.BytesType)
	gemm = protowire.AppendString(gemm, "logits")
	gemm = protowire.AppendTag(gemm, 3, protowire.BytesType)
	gemm = protowire.AppendString(gemm, "fc")
	gemm = protowire.AppendTag(gemm, 4, protowire.BytesType)
	gemm = protowire.AppendString(gemm, "Gemm")
	gemm = appendMessage(gemm, 5, intAttribute("transB", 1))

	var graph []byte
	graph = appendMessage(graph, 1, gemm)
	graph = protowire.AppendTag(graph, 2, protowire.BytesType)
	graph = protowire.AppendString(graph, "gesture")
	graph = appendMessage(graph, 5, floatTensor("W", []int64{int64(classes), InputSize}, w))
	graph = appendMessage(graph, 5, floatTensor("B", []int64{int64(classes)}, b))
	graph = appendMessage(graph, 11, valueInfo("input", 1, InputSize))
	graph = appendMessage(graph, 12, valueInfo("logits", 1, int64(classes)))

	var opset []byte
	opset = protowire.AppendTag(opset, 2, protowire.VarintType)
	opset = protowire.AppendVarint(opset, 13)

	var model []byte
	model = protowire.AppendTag(model, 1, protowire.VarintType)
	model = protowire.AppendVarint(model, 7)
	model = protowire.AppendTag(model, 2, protowire.BytesType)
	model = protowire.AppendString(model, "signbridge-test")
	model = appendMessage(model, 7, graph)
	model = appendMessage(model, 8, opset)
	return model
}

// WriteGemmONNX writes GemmONNX(classes) to dir/gesture.onnx and returns the path.
func WriteGemmONNX(t testing.TB, dir string, classes int) string {
	t.Helper()
	path := filepath.Join(dir, "gesture.onnx")
	if err := os.WriteFile(path, GemmONNX(classes), 0644); err != nil {
		t.Fatalf("write onnx: %v", err)
	}
	return path
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func intAttribute(name string, v int64) []byte {
	var a []byte
	a = protowire.AppendTag(a, 1, protowire.BytesType)
	a = protowire.AppendString(a, name)
	a = protowire.AppendTag(a, 3, protowire.VarintType)
	a = protowire.AppendVarint(a, uint64(v))
	a = protowire.AppendTag(a, 20, protowire.VarintType)
	a = protowire.AppendVarint(a, onnxAttrInt)
	return a
}

func floatTensor(name string, dims []int64, data []float32) []byte {
	var t []byte
	for _, d := range dims {
		t = protowire.AppendTag(t, 1, protowire.VarintType)
		t = protowire.AppendVarint(t, uint64(d))
	}
	t = protowire.AppendTag(t, 2, protowire.VarintType)
	t = protowire.AppendVarint(t, onnxFloat)
	t = protowire.AppendTag(t, 8, protowire.BytesType)
	t = protowire.AppendString(t, name)

	raw := make([]byte, 4*len(data))
	for i, x := range data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(x))
	}
	t = protowire.AppendTag(t, 9, protowire.BytesType)
	return protowire.AppendBytes(t, raw)
}

func valueInfo(name string, dims ...int64) []byte {
	var shape []byte
	for _, d := range dims {
		var dim []byte
		dim = protowire.AppendTag(dim, 1, protowire.VarintType)
		dim = protowire.AppendVarint(dim, uint64(d))
		shape = appendMessage(shape, 1, dim)
	}

	var tensor []byte
	tensor = protowire.AppendTag(tensor, 1, protowire.VarintType)
	tensor = protowire.AppendVarint(tensor, onnxFloat)
	tensor = appendMessage(tensor, 2, shape)

	var typ []byte
	typ = appendMessage(typ, 1, tensor)

	var v []byte
	v = protowire.AppendTag(v, 1, protowire.BytesType)
	v = protowire.AppendString(v, name)
	return appendMessage(v, 2, typ)
}
