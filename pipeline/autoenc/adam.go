package autoenc

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Adam is the adaptive-moment optimizer, with the usual defaults
// (beta1=0.9, beta2=0.999, eps=1e-7) and a 1e-3 learning rate.
type Adam struct {
	lr, beta1, beta2, eps float64
	step                  int
	m, v                  [][]float64
}

// NewAdam creates an Adam optimizer with the given learning rate.
func NewAdam(lr float64) *Adam {
	return &Adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}
}

// apply consumes the accumulated gradients of params and updates their
// values in place. Moment buffers are lazily sized on first use.
func (a *Adam) apply(params []*param) {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, len(p.val))
			a.v[i] = make([]float64, len(p.val))
		}
	}
	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))
	for i, p := range params {
		m, v := a.m[i], a.v[i]
		for j, g := range p.grad {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g
			p.val[j] -= a.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.eps)
		}
	}
}

// mse returns the mean squared error between a reconstruction and its
// target series.
func mse(recon, target []float64) float64 {
	d := floats.Distance(recon, target, 2)
	return d * d / float64(len(target))
}

// Reconstruct runs the full autoencoder on one series.
func (n *Network) Reconstruct(series []float64) ([]float64, error) {
	return n.forward(series)
}

// FitBatch performs one optimizer step over a minibatch, using each
// series as its own reconstruction target, and returns the batch's mean
// reconstruction MSE (computed before the update).
func (n *Network) FitBatch(batch [][]float64, opt *Adam) (float64, error) {
	n.zeroGrad()
	total := 0.0
	scale := 1.0 / float64(len(batch)*n.timeSteps)
	for _, series := range batch {
		recon, err := n.forward(series)
		if err != nil {
			return 0, err
		}
		total += mse(recon, series)
		dRecon := make([]float64, n.timeSteps)
		for t := range dRecon {
			dRecon[t] = 2 * (recon[t] - series[t]) * scale
		}
		n.backward(dRecon)
	}
	opt.apply(n.params)
	return total / float64(len(batch)), nil
}

// Loss returns the mean reconstruction MSE over samples, leaving the
// weights untouched.
func (n *Network) Loss(samples [][]float64) (float64, error) {
	total := 0.0
	for _, series := range samples {
		recon, err := n.forward(series)
		if err != nil {
			return 0, err
		}
		total += mse(recon, series)
	}
	return total / float64(len(samples)), nil
}
