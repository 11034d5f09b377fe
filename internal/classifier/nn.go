package classifier

import (
	"github.com/chewxy/math32"
)

// linear is a fully connected layer y = Wx + b with W stored row-major.
type linear struct {
	in, out int
	w       []float32
	b       []float32
}

func loadLinear(a *Artifact, prefix string, in, out int) (*linear, error) {
	w, _, err := a.Matrix(prefix+".weight", out, in)
	if err != nil {
		return nil, err
	}
	b, err := a.Vector(prefix+".bias", out)
	if err != nil {
		return nil, err
	}
	return &linear{in: in, out: out, w: w, b: b}, nil
}

func (l *linear) apply(x []float32) []float32 {
	y := make([]float32, l.out)
	for r := 0; r < l.out; r++ {
		row := l.w[r*l.in : (r+1)*l.in]
		sum := l.b[r]
		for c, wv := range row {
			sum += wv * x[c]
		}
		y[r] = sum
	}
	return y
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

func relu(xs []float32) {
	for i, x := range xs {
		if x < 0 {
			xs[i] = 0
		}
	}
}

// softmax returns a probability distribution over xs.
func softmax(xs []float32) []float32 {
	out := make([]float32, len(xs))
	if len(xs) == 0 {
		return out
	}
	hi := xs[0]
	for _, x := range xs[1:] {
		if x > hi {
			hi = x
		}
	}
	var sum float32
	for i, x := range xs {
		out[i] = math32.Exp(x - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// argmax returns the index of the largest value, preferring the lowest index on ties.
func argmax(xs []float32) int {
	best := -1
	for i, x := range xs {
		if best < 0 || x > xs[best] {
			best = i
		}
	}
	return best
}
