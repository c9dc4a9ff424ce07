package pipeline

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/flowlevel/flowlevel/pipeline/autoenc"
)

// earlyStopper implements patience-based early stopping on validation
// loss with a strict best-checkpoint policy: the weights snapshotted at
// the best epoch win, never the weights at the halting epoch.
type earlyStopper struct {
	patience    int
	bestLoss    float64
	bestEpoch   int
	wait        int
	bestWeights []float64
}

func newEarlyStopper(patience int) *earlyStopper {
	return &earlyStopper{patience: patience, bestLoss: math.Inf(1)}
}

// observe records one epoch's validation loss, snapshotting weights on
// improvement. Returns true when the patience window is exhausted and
// training should halt.
func (es *earlyStopper) observe(epoch int, valLoss float64, snapshot func() []float64) bool {
	if valLoss < es.bestLoss {
		es.bestLoss = valLoss
		es.bestEpoch = epoch
		es.wait = 0
		es.bestWeights = snapshot()
		return false
	}
	es.wait++
	return es.wait >= es.patience
}

// earlyStopPatience matches the patience the pipeline has always used.
const earlyStopPatience = 5

// Train builds a fresh autoencoder and fits it to reconstruct the
// dataset's scaled series, holding out the tail ValidationSplit fraction
// for validation. Returns the encoder view over the trained parameters
// (the decoder is discarded) and the best validation loss observed.
//
// The validation partition is the tail of the dataset in input order;
// only the training partition is shuffled, once per epoch.
func Train(cfg Config, ds *Dataset, rng *PartitionedRNG) (*autoenc.Encoder, float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, 0, err
	}

	n := len(ds.Scaled)
	nTrain := int(float64(n) * (1 - cfg.ValidationSplit))
	nVal := n - nTrain
	if nTrain < 1 {
		return nil, 0, &ConfigurationError{Field: "validation_split", Reason: fmt.Sprintf("leaves no training samples (%d segments, split %v)", n, cfg.ValidationSplit)}
	}
	if nVal < 1 {
		return nil, 0, &ConfigurationError{Field: "validation_split", Reason: fmt.Sprintf("leaves no validation samples (%d segments, split %v)", n, cfg.ValidationSplit)}
	}

	net, err := autoenc.Build(cfg.LatentDim, ds.TimeSteps, rng.ForSubsystem(SubsystemWeights))
	if err != nil {
		return nil, 0, fmt.Errorf("build autoencoder: %w", err)
	}

	val := ds.Scaled[nTrain:]
	trainIdx := make([]int, nTrain)
	for i := range trainIdx {
		trainIdx[i] = i
	}

	opt := autoenc.NewAdam(1e-3)
	es := newEarlyStopper(earlyStopPatience)
	shuffleRNG := rng.ForSubsystem(SubsystemShuffle)

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		shuffleRNG.Shuffle(nTrain, func(i, j int) {
			trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i]
		})

		trainLoss := 0.0
		batches := 0
		for start := 0; start < nTrain; start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > nTrain {
				end = nTrain
			}
			batch := make([][]float64, 0, end-start)
			for _, idx := range trainIdx[start:end] {
				batch = append(batch, ds.Scaled[idx])
			}
			loss, err := net.FitBatch(batch, opt)
			if err != nil {
				return nil, 0, err
			}
			trainLoss += loss
			batches++
		}
		trainLoss /= float64(batches)

		valLoss, err := net.Loss(val)
		if err != nil {
			return nil, 0, err
		}
		if !isFinite(trainLoss) || !isFinite(valLoss) {
			bad := trainLoss
			if !isFinite(valLoss) {
				bad = valLoss
			}
			return nil, 0, &TrainingDivergenceError{Epoch: epoch, Loss: bad}
		}

		logrus.Debugf("epoch %d/%d: loss=%.6f val_loss=%.6f", epoch, cfg.Epochs, trainLoss, valLoss)

		if es.observe(epoch, valLoss, net.Weights) {
			logrus.Debugf("early stop at epoch %d, best epoch %d", epoch, es.bestEpoch)
			break
		}
	}

	// Strict best-checkpoint: hand back the weights from the best epoch
	// whether or not the patience window ever triggered.
	if err := net.SetWeights(es.bestWeights); err != nil {
		return nil, 0, fmt.Errorf("restore best weights: %w", err)
	}

	logrus.Infof("Validation Loss: %v", es.bestLoss)

	return net.Encoder(), es.bestLoss, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
