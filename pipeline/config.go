package pipeline

// Config holds the hyperparameters for one pipeline run. It is populated
// by the caller (CLI flags, a config file, whatever) and treated as
// immutable once Validate has passed. The core never reads files or
// environment variables itself.
type Config struct {
	LatentDim       int     `yaml:"latent_dim"`
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	ValidationSplit float64 `yaml:"validation_split"`
	Seed            int64   `yaml:"seed"`
}

// DefaultConfig returns the hyperparameters used when no config file is
// given. validation_split 0.25 and seed 42 match the historical defaults
// of the pipeline.
func DefaultConfig() Config {
	return Config{
		LatentDim:       4,
		Epochs:          50,
		BatchSize:       32,
		ValidationSplit: 0.25,
		Seed:            42,
	}
}

// Validate checks the hyperparameters that can be checked without seeing
// the dataset. Split-versus-sample-count checks happen in Train, where
// the sample count is known.
func (c Config) Validate() error {
	if c.LatentDim <= 0 {
		return &ConfigurationError{Field: "latent_dim", Reason: "must be a positive integer"}
	}
	if c.Epochs <= 0 {
		return &ConfigurationError{Field: "epochs", Reason: "must be a positive integer"}
	}
	if c.BatchSize <= 0 {
		return &ConfigurationError{Field: "batch_size", Reason: "must be a positive integer"}
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		return &ConfigurationError{Field: "validation_split", Reason: "must be in [0, 1)"}
	}
	return nil
}
