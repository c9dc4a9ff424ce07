package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flowlevel/flowlevel/pipeline"
)

// GetModelConfig assembles the run configuration: defaults, then the
// YAML config file (the contract of model/config.yaml: latent_dim,
// epochs, batch_size, validation_split), then any explicitly set CLI
// flags on top.
func GetModelConfig(configFilePath string, cmd *cobra.Command) pipeline.Config {
	cfg := pipeline.DefaultConfig()

	if configFilePath != "" {
		data, err := os.ReadFile(configFilePath)
		if err != nil {
			logrus.Fatalf("Unable to read config file %s: %v", configFilePath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			logrus.Fatalf("Unable to parse config file %s: %v", configFilePath, err)
		}
		logrus.Infof("Loaded model config from %s", configFilePath)
	}

	// Explicit flags override the file.
	if cmd.Flags().Changed("latent-dim") {
		cfg.LatentDim = latentDim
	}
	if cmd.Flags().Changed("epochs") {
		cfg.Epochs = epochs
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.BatchSize = batchSize
	}
	if cmd.Flags().Changed("validation-split") {
		cfg.ValidationSplit = validationSplit
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}

	return cfg
}
