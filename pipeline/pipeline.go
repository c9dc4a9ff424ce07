// Package pipeline implements the traffic flow-level analysis pipeline:
// preprocess per-segment vehicle-count series, train a 1-D convolutional
// autoencoder to embed them, cluster the latent vectors and rank the
// clusters into flow-level categories. Each Run is stateless given its
// inputs; a single master seed makes it fully reproducible.
package pipeline

// Run executes the full pipeline on a preprocessed dataset: train the
// autoencoder, encode, cluster, rank, and return the labeled report.
// Any failure aborts the run; no partial report is produced.
func Run(cfg Config, ds *Dataset) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := NewPartitionedRNG(NewRunKey(cfg.Seed))

	enc, bestValLoss, err := Train(cfg, ds, rng)
	if err != nil {
		return nil, err
	}

	report, err := GenerateReport(ds, enc, rng)
	if err != nil {
		return nil, err
	}
	report.BestValLoss = bestValLoss
	return report, nil
}
