package classifier

import (
	"fmt"

	"github.com/chewxy/math32"
)

// lstmLayer holds one recurrent layer in PyTorch layout: gate rows are
// ordered input, forget, cell, output.
type lstmLayer struct {
	in, hidden int
	wih        []float32 // 4H x in
	whh        []float32 // 4H x H
	bias       []float32 // bias_ih + bias_hh
}

// lstmModel is a stacked LSTM followed by a linear head on the last timestep.
type lstmModel struct {
	inputSize int
	hidden    int
	layers    []*lstmLayer
	head      *linear
}

// loadLSTM reads lstm.*_l{k} and fc.* tensors from an artifact.
func loadLSTM(a *Artifact) (*lstmModel, error) {
	rows, err := a.Rows("lstm.weight_hh_l0")
	if err != nil {
		return nil, err
	}
	hidden := a.HiddenSize
	if hidden == 0 {
		hidden = rows / 4
	}
	if hidden <= 0 || rows != 4*hidden {
		return nil, fmt.Errorf("lstm.weight_hh_l0 has %d rows for hidden size %d: %w", rows, hidden, ErrShapeMismatch)
	}

	m := &lstmModel{inputSize: a.InputSize, hidden: hidden}
	in := a.InputSize
	for k := 0; ; k++ {
		suffix := fmt.Sprintf("_l%d", k)
		if !a.Has("lstm.weight_ih" + suffix) {
			break
		}
		layer, err := loadLSTMLayer(a, suffix, in, hidden)
		if err != nil {
			return nil, err
		}
		m.layers = append(m.layers, layer)
		in = hidden
	}
	if len(m.layers) == 0 {
		return nil, fmt.Errorf("lstm.weight_ih_l0 missing: %w", ErrNoWeights)
	}

	m.head, err = loadLinear(a, "fc", hidden, a.NumClasses)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func loadLSTMLayer(a *Artifact, suffix string, in, hidden int) (*lstmLayer, error) {
	g := 4 * hidden
	wih, _, err := a.Matrix("lstm.weight_ih"+suffix, g, in)
	if err != nil {
		return nil, err
	}
	whh, _, err := a.Matrix("lstm.weight_hh"+suffix, g, hidden)
	if err != nil {
		return nil, err
	}

	bias := make([]float32, g)
	for _, name := range []string{"lstm.bias_ih" + suffix, "lstm.bias_hh" + suffix} {
		if !a.Has(name) {
			continue
		}
		b, err := a.Vector(name, g)
		if err != nil {
			return nil, err
		}
		for i := range bias {
			bias[i] += b[i]
		}
	}

	return &lstmLayer{in: in, hidden: hidden, wih: wih, whh: whh, bias: bias}, nil
}

// forward runs the sequence through every layer and returns the head logits
// for the final timestep.
func (m *lstmModel) forward(seq [][]float32) []float32 {
	for _, layer := range m.layers {
		seq = layer.run(seq)
	}
	return m.head.apply(seq[len(seq)-1])
}

func (l *lstmLayer) run(seq [][]float32) [][]float32 {
	H := l.hidden
	h := make([]float32, H)
	c := make([]float32, H)
	gates := make([]float32, 4*H)
	out := make([][]float32, len(seq))

	for t, x := range seq {
		for r := 0; r < 4*H; r++ {
			sum := l.bias[r]
			row := l.wih[r*l.in : (r+1)*l.in]
			for j, w := range row {
				sum += w * x[j]
			}
			row = l.whh[r*H : (r+1)*H]
			for j, w := range row {
				sum += w * h[j]
			}
			gates[r] = sum
		}

		for j := 0; j < H; j++ {
			i := sigmoid(gates[j])
			f := sigmoid(gates[H+j])
			g := math32.Tanh(gates[2*H+j])
			o := sigmoid(gates[3*H+j])
			c[j] = f*c[j] + i*g
			h[j] = o * math32.Tanh(c[j])
		}

		step := make([]float32, H)
		copy(step, h)
		out[t] = step
	}
	return out
}
