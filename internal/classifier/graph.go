package classifier

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/signbridge/internal/feature"
)

// graphModel runs an exported network (ONNX, TensorFlow, Caffe) through the
// OpenCV DNN module. The underlying net is not safe for concurrent use.
type graphModel struct {
	mu         sync.Mutex
	net        gocv.Net
	numClasses int
}

// openGraph loads a network file and probes it once with a zero vector to
// confirm it accepts a 1x288 input.
func openGraph(path string) (*graphModel, error) {
	if err := checkGraphFile(path); err != nil {
		return nil, err
	}

	net := gocv.ReadNet(path, "")
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("read network %s: %w", path, ErrInvalidGraph)
	}

	g := &graphModel{net: net}
	out, err := g.probe()
	if err != nil {
		net.Close()
		return nil, fmt.Errorf("probe network: %v: %w", err, ErrShapeMismatch)
	}
	g.numClasses = len(out)
	return g, nil
}

func (g *graphModel) probe() (out []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	var zero feature.Vector
	return g.Forward(zero[:])
}

func (g *graphModel) Forward(in []float32) ([]float32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	blob := gocv.NewMatWithSize(1, len(in), gocv.MatTypeCV32F)
	defer blob.Close()
	for i, x := range in {
		blob.SetFloatAt(0, i, x)
	}

	g.net.SetInput(blob, "")
	result := g.net.Forward("")
	defer result.Close()
	if result.Empty() {
		return nil, errors.New("network produced empty output")
	}

	data, err := result.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

func (g *graphModel) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.net.Close()
}
