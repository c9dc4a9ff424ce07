// Package autoenc implements the 1-D convolutional autoencoder used to
// embed per-segment traffic series into a low-dimensional latent space.
// Forward and backward passes are hand-rolled over float64 slices; the
// network is small enough that this beats dragging in a tensor runtime.
package autoenc

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// param is one trainable tensor, stored flat. Gradients accumulate
// across a minibatch and are consumed by the optimizer step.
type param struct {
	val  []float64
	grad []float64
}

func newParam(n int) *param {
	return &param{val: make([]float64, n), grad: make([]float64, n)}
}

func (p *param) zeroGrad() {
	for i := range p.grad {
		p.grad[i] = 0
	}
}

// glorotUniform fills w from U(-limit, limit), limit = sqrt(6/(fanIn+fanOut)).
func glorotUniform(w []float64, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
}

// conv1D is a stride-1 "same"-padded 1-D convolution, optionally ReLU.
// Weight layout: w[((k*in)+i)*out+o] for tap k, input channel i, output
// channel o. Activations flow as [time][channel].
type conv1D struct {
	kernel, in, out int
	relu            bool
	w, b            *param

	// per-sample caches, valid between a forward and its backward
	x      [][]float64
	preact [][]float64
}

func newConv1D(kernel, in, out int, relu bool, rng *rand.Rand) *conv1D {
	c := &conv1D{
		kernel: kernel, in: in, out: out, relu: relu,
		w: newParam(kernel * in * out),
		b: newParam(out),
	}
	glorotUniform(c.w.val, kernel*in, kernel*out, rng)
	return c
}

func (c *conv1D) forward(x [][]float64) [][]float64 {
	T := len(x)
	pad := (c.kernel - 1) / 2
	c.x = x
	c.preact = make([][]float64, T)
	y := make([][]float64, T)
	for t := 0; t < T; t++ {
		pre := make([]float64, c.out)
		copy(pre, c.b.val)
		for k := 0; k < c.kernel; k++ {
			src := t + k - pad
			if src < 0 || src >= T {
				continue
			}
			for i := 0; i < c.in; i++ {
				xv := x[src][i]
				if xv == 0 {
					continue
				}
				woff := ((k*c.in)+i)*c.out
				for o := 0; o < c.out; o++ {
					pre[o] += xv * c.w.val[woff+o]
				}
			}
		}
		c.preact[t] = pre
		if c.relu {
			act := make([]float64, c.out)
			for o, v := range pre {
				if v > 0 {
					act[o] = v
				}
			}
			y[t] = act
		} else {
			y[t] = pre
		}
	}
	return y
}

func (c *conv1D) backward(dy [][]float64) [][]float64 {
	T := len(c.x)
	pad := (c.kernel - 1) / 2
	dx := make([][]float64, T)
	for t := range dx {
		dx[t] = make([]float64, c.in)
	}
	for t := 0; t < T; t++ {
		for o := 0; o < c.out; o++ {
			g := dy[t][o]
			if c.relu && c.preact[t][o] <= 0 {
				continue
			}
			if g == 0 {
				continue
			}
			c.b.grad[o] += g
			for k := 0; k < c.kernel; k++ {
				src := t + k - pad
				if src < 0 || src >= T {
					continue
				}
				for i := 0; i < c.in; i++ {
					idx := ((k*c.in)+i)*c.out + o
					c.w.grad[idx] += c.x[src][i] * g
					dx[src][i] += c.w.val[idx] * g
				}
			}
		}
	}
	return dx
}

// maxPool1D halves the time axis (pool 2, stride 2, "same" padding: an
// odd tail forms a one-element window). Argmax indices are cached so the
// backward pass routes gradient only to the winning element.
type maxPool1D struct {
	argmax [][]int
	inLen  int
}

func poolOutLen(t int) int { return (t + 1) / 2 }

func (p *maxPool1D) forward(x [][]float64) [][]float64 {
	T := len(x)
	C := len(x[0])
	outT := poolOutLen(T)
	p.inLen = T
	p.argmax = make([][]int, outT)
	y := make([][]float64, outT)
	for t := 0; t < outT; t++ {
		lo := t * 2
		hi := lo + 1
		arg := make([]int, C)
		out := make([]float64, C)
		for c := 0; c < C; c++ {
			best, bestIdx := x[lo][c], lo
			if hi < T && x[hi][c] > best {
				best, bestIdx = x[hi][c], hi
			}
			out[c] = best
			arg[c] = bestIdx
		}
		y[t] = out
		p.argmax[t] = arg
	}
	return y
}

func (p *maxPool1D) backward(dy [][]float64) [][]float64 {
	dx := make([][]float64, p.inLen)
	C := len(dy[0])
	for t := range dx {
		dx[t] = make([]float64, C)
	}
	for t := range dy {
		for c := 0; c < C; c++ {
			dx[p.argmax[t][c]][c] += dy[t][c]
		}
	}
	return dx
}

// upSample1D doubles the time axis by repetition.
type upSample1D struct {
	inLen int
}

func (u *upSample1D) forward(x [][]float64) [][]float64 {
	u.inLen = len(x)
	y := make([][]float64, 2*len(x))
	for t, row := range x {
		a := make([]float64, len(row))
		b := make([]float64, len(row))
		copy(a, row)
		copy(b, row)
		y[2*t] = a
		y[2*t+1] = b
	}
	return y
}

func (u *upSample1D) backward(dy [][]float64) [][]float64 {
	dx := make([][]float64, u.inLen)
	for t := 0; t < u.inLen; t++ {
		row := make([]float64, len(dy[0]))
		for c := range row {
			row[c] = dy[2*t][c] + dy[2*t+1][c]
		}
		dx[t] = row
	}
	return dx
}

// dense is a fully-connected layer over flat vectors, optionally ReLU.
// Weights are (out x in) row-major so they can back a gonum matrix.
type dense struct {
	in, out int
	relu    bool
	w, b    *param

	x      []float64
	preact []float64
}

func newDense(in, out int, relu bool, rng *rand.Rand) *dense {
	d := &dense{
		in: in, out: out, relu: relu,
		w: newParam(out * in),
		b: newParam(out),
	}
	glorotUniform(d.w.val, in, out, rng)
	return d
}

func (d *dense) forward(x []float64) []float64 {
	d.x = x
	W := mat.NewDense(d.out, d.in, d.w.val)
	y := mat.NewVecDense(d.out, nil)
	y.MulVec(W, mat.NewVecDense(d.in, x))
	pre := make([]float64, d.out)
	for o := 0; o < d.out; o++ {
		pre[o] = y.AtVec(o) + d.b.val[o]
	}
	d.preact = pre
	if !d.relu {
		return pre
	}
	act := make([]float64, d.out)
	for o, v := range pre {
		if v > 0 {
			act[o] = v
		}
	}
	return act
}

func (d *dense) backward(dy []float64) []float64 {
	g := dy
	if d.relu {
		g = make([]float64, d.out)
		for o, v := range dy {
			if d.preact[o] > 0 {
				g[o] = v
			}
		}
	}
	for o := 0; o < d.out; o++ {
		gv := g[o]
		if gv == 0 {
			continue
		}
		d.b.grad[o] += gv
		woff := o * d.in
		for i := 0; i < d.in; i++ {
			d.w.grad[woff+i] += d.x[i] * gv
		}
	}
	W := mat.NewDense(d.out, d.in, d.w.val)
	dx := mat.NewVecDense(d.in, nil)
	dx.MulVec(W.T(), mat.NewVecDense(d.out, g))
	out := make([]float64, d.in)
	copy(out, dx.RawVector().Data)
	return out
}

// flatten converts [time][channel] to a flat vector, time-major.
func flatten(x [][]float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	C := len(x[0])
	out := make([]float64, len(x)*C)
	for t, row := range x {
		copy(out[t*C:(t+1)*C], row)
	}
	return out
}

// unflatten is the inverse of flatten for a known (time, channel) shape.
func unflatten(v []float64, T, C int) [][]float64 {
	out := make([][]float64, T)
	for t := 0; t < T; t++ {
		row := make([]float64, C)
		copy(row, v[t*C:(t+1)*C])
		out[t] = row
	}
	return out
}
