package autoenc

import (
	"fmt"
	"math/rand"
)

// ShapeMismatchError reports a series whose length does not match what
// the network was built for, or an internal decoder length that cannot
// cover the input. Length mismatches fail loudly; nothing is padded or
// truncated silently.
type ShapeMismatchError struct {
	Want int
	Got  int
	Site string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch at %s: want length %d, got %d", e.Site, e.Want, e.Got)
}

// Network is the symmetric convolutional autoencoder. One parameter
// store backs both the full reconstruction path and the encoder half;
// the Encoder view returned by Encoder() sees every weight update made
// during training.
//
// Encoder:  Conv1D(16,k5)+ReLU -> MaxPool(2) -> Conv1D(8,k5)+ReLU ->
//           MaxPool(2) -> Conv1D(8,k3)+ReLU -> Flatten -> Dense(latentDim)
// Decoder:  Dense(upSize*8)+ReLU -> Reshape(upSize,8) -> UpSample(2) ->
//           Conv1D(8,k3)+ReLU -> UpSample(2) -> Conv1D(16,k5)+ReLU ->
//           Conv1D(1,k3) -> crop to timeSteps
type Network struct {
	timeSteps int
	latentDim int
	upSize    int // ceil(timeSteps/4): length after the two pooling stages

	enc1, enc2, enc3 *conv1D
	pool1, pool2     *maxPool1D
	latent           *dense

	expand           *dense
	up1, up2         *upSample1D
	dec1, dec2, out  *conv1D

	params []*param

	// decoder crop cache for the backward pass
	precropLen int
}

// Build constructs a fresh autoencoder for series of length timeSteps.
// Weights are initialized from rng (Glorot uniform), so identical seeds
// yield identical networks.
func Build(latentDim, timeSteps int, rng *rand.Rand) (*Network, error) {
	if latentDim <= 0 {
		return nil, fmt.Errorf("latent dimension must be positive, got %d", latentDim)
	}
	if timeSteps <= 0 {
		return nil, fmt.Errorf("time steps must be positive, got %d", timeSteps)
	}

	upSize := (timeSteps + 3) / 4
	if 4*upSize < timeSteps {
		// Cannot happen for positive timeSteps, but the decoder length
		// contract is load-bearing enough to check rather than assume.
		return nil, &ShapeMismatchError{Want: timeSteps, Got: 4 * upSize, Site: "decoder"}
	}
	// Two ceil-halvings of timeSteps always land on upSize; the flatten
	// width below depends on it.
	if poolOutLen(poolOutLen(timeSteps)) != upSize {
		return nil, &ShapeMismatchError{Want: upSize, Got: poolOutLen(poolOutLen(timeSteps)), Site: "encoder pooling"}
	}

	n := &Network{
		timeSteps: timeSteps,
		latentDim: latentDim,
		upSize:    upSize,

		enc1:  newConv1D(5, 1, 16, true, rng),
		pool1: &maxPool1D{},
		enc2:  newConv1D(5, 16, 8, true, rng),
		pool2: &maxPool1D{},
		enc3:  newConv1D(3, 8, 8, true, rng),

		latent: newDense(upSize*8, latentDim, false, rng),
		expand: newDense(latentDim, upSize*8, true, rng),

		up1:  &upSample1D{},
		dec1: newConv1D(3, 8, 8, true, rng),
		up2:  &upSample1D{},
		dec2: newConv1D(5, 8, 16, true, rng),
		out:  newConv1D(3, 16, 1, false, rng),
	}

	n.params = []*param{
		n.enc1.w, n.enc1.b,
		n.enc2.w, n.enc2.b,
		n.enc3.w, n.enc3.b,
		n.latent.w, n.latent.b,
		n.expand.w, n.expand.b,
		n.dec1.w, n.dec1.b,
		n.dec2.w, n.dec2.b,
		n.out.w, n.out.b,
	}
	return n, nil
}

// TimeSteps returns the input series length the network was built for.
func (n *Network) TimeSteps() int { return n.timeSteps }

// LatentDim returns the bottleneck width.
func (n *Network) LatentDim() int { return n.latentDim }

func (n *Network) checkLen(series []float64, site string) error {
	if len(series) != n.timeSteps {
		return &ShapeMismatchError{Want: n.timeSteps, Got: len(series), Site: site}
	}
	return nil
}

// encodeForward runs the encoder half and caches layer state for a
// subsequent backward call.
func (n *Network) encodeForward(series []float64) []float64 {
	x := make([][]float64, len(series))
	for t, v := range series {
		x[t] = []float64{v}
	}
	h := n.enc1.forward(x)
	h = n.pool1.forward(h)
	h = n.enc2.forward(h)
	h = n.pool2.forward(h)
	h = n.enc3.forward(h)
	return n.latent.forward(flatten(h))
}

// forward runs the full autoencoder and returns the reconstruction,
// cropped to exactly timeSteps samples.
func (n *Network) forward(series []float64) ([]float64, error) {
	if err := n.checkLen(series, "autoencoder input"); err != nil {
		return nil, err
	}
	z := n.encodeForward(series)

	h := unflatten(n.expand.forward(z), n.upSize, 8)
	h = n.up1.forward(h)
	h = n.dec1.forward(h)
	h = n.up2.forward(h)
	h = n.dec2.forward(h)
	h = n.out.forward(h)

	n.precropLen = len(h)
	if n.precropLen < n.timeSteps {
		return nil, &ShapeMismatchError{Want: n.timeSteps, Got: n.precropLen, Site: "decoder output"}
	}
	recon := make([]float64, n.timeSteps)
	for t := 0; t < n.timeSteps; t++ {
		recon[t] = h[t][0]
	}
	return recon, nil
}

// backward accumulates parameter gradients given dLoss/dReconstruction.
// Must follow a forward call on the same sample. The cropped decoder
// tail receives zero gradient.
func (n *Network) backward(dRecon []float64) {
	dh := make([][]float64, n.precropLen)
	for t := 0; t < n.precropLen; t++ {
		if t < len(dRecon) {
			dh[t] = []float64{dRecon[t]}
		} else {
			dh[t] = []float64{0}
		}
	}
	dh = n.out.backward(dh)
	dh = n.dec2.backward(dh)
	dh = n.up2.backward(dh)
	dh = n.dec1.backward(dh)
	dh = n.up1.backward(dh)
	dz := n.expand.backward(flatten(dh))

	dflat := n.latent.backward(dz)
	dh = unflatten(dflat, n.upSize, 8)
	dh = n.enc3.backward(dh)
	dh = n.pool2.backward(dh)
	dh = n.enc2.backward(dh)
	dh = n.pool1.backward(dh)
	n.enc1.backward(dh)
}

// zeroGrad clears all accumulated gradients.
func (n *Network) zeroGrad() {
	for _, p := range n.params {
		p.zeroGrad()
	}
}

// Weights returns a flat copy of every trainable parameter, in a fixed
// order. Used for best-checkpoint snapshots.
func (n *Network) Weights() []float64 {
	total := 0
	for _, p := range n.params {
		total += len(p.val)
	}
	out := make([]float64, 0, total)
	for _, p := range n.params {
		out = append(out, p.val...)
	}
	return out
}

// SetWeights restores parameters from a Weights() snapshot.
func (n *Network) SetWeights(w []float64) error {
	total := 0
	for _, p := range n.params {
		total += len(p.val)
	}
	if len(w) != total {
		return &ShapeMismatchError{Want: total, Got: len(w), Site: "weight snapshot"}
	}
	off := 0
	for _, p := range n.params {
		copy(p.val, w[off:off+len(p.val)])
		off += len(p.val)
	}
	return nil
}

// Encoder returns the latent-only view over this network's parameters.
// It shares the parameter store: training the network trains the view.
func (n *Network) Encoder() *Encoder {
	return &Encoder{net: n}
}

// Encoder is the read-capable latent view handed to callers after
// training. It computes latent vectors only; the decoder half is not
// reachable through it.
type Encoder struct {
	net *Network
}

// Encode maps one series of length TimeSteps to its latent vector.
func (e *Encoder) Encode(series []float64) ([]float64, error) {
	if err := e.net.checkLen(series, "encoder input"); err != nil {
		return nil, err
	}
	z := e.net.encodeForward(series)
	out := make([]float64, len(z))
	copy(out, z)
	return out, nil
}

// LatentDim returns the width of vectors produced by Encode.
func (e *Encoder) LatentDim() int { return e.net.latentDim }

// TimeSteps returns the series length Encode expects.
func (e *Encoder) TimeSteps() int { return e.net.timeSteps }
