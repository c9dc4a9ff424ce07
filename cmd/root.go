package cmd

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/flowlevel/flowlevel/pipeline"
	"github.com/flowlevel/flowlevel/pipeline/store"
)

var (
	// CLI flags for pipeline IO
	inputPath  string // Raw vehicle-count CSV
	outputPath string // Report CSV destination
	configPath string // Optional model config YAML
	dbPath     string // Optional SQLite report store
	logLevel   string // Log verbosity level

	// CLI flags overriding model hyperparameters
	latentDim       int
	epochs          int
	batchSize       int
	validationSplit float64
	seed            int64
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "flowlevel",
	Short: "Traffic flow-level clustering pipeline",
}

// reportCmd runs the full pipeline: preprocess, train, cluster, report.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Train the autoencoder and generate the flow-level report",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg := GetModelConfig(configPath, cmd)
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		logrus.Infof("Starting run with latent_dim=%d, epochs=%d, batch_size=%d, validation_split=%v, seed=%d",
			cfg.LatentDim, cfg.Epochs, cfg.BatchSize, cfg.ValidationSplit, cfg.Seed)

		startTime := time.Now()

		table, err := pipeline.LoadVehicleCounts(inputPath)
		if err != nil {
			logrus.Fatalf("Unable to load vehicle counts: %v", err)
		}
		ds, err := pipeline.Preprocess(table)
		if err != nil {
			logrus.Fatalf("Unable to preprocess data: %v", err)
		}
		logrus.Infof("Loaded %d segments x %d time steps", len(ds.Segments), ds.TimeSteps)

		report, err := pipeline.Run(cfg, ds)
		if err != nil {
			logrus.Fatalf("Pipeline failed: %v", err)
		}

		if err := report.SaveCSV(outputPath); err != nil {
			logrus.Fatalf("Unable to write report: %v", err)
		}
		logrus.Infof("Saved results to: %s", outputPath)

		if dbPath != "" {
			s, err := store.Open(dbPath)
			if err != nil {
				logrus.Fatalf("Unable to open report store: %v", err)
			}
			defer s.Close()
			runID, err := s.SaveRun(context.Background(), cfg, report)
			if err != nil {
				logrus.Fatalf("Unable to persist report: %v", err)
			}
			logrus.Infof("Persisted run %d to %s", runID, dbPath)
		}

		logrus.Infof("Report complete in %v.", time.Since(startTime).Round(time.Millisecond))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	reportCmd.Flags().StringVar(&inputPath, "input", "data/raw/vehicle_count.csv", "Raw vehicle-count CSV (rows: time steps, columns: segments)")
	reportCmd.Flags().StringVar(&outputPath, "output", "data/processed/road_segment_flow_level_clusters.csv", "Report CSV destination")
	reportCmd.Flags().StringVar(&configPath, "config", "", "Model config YAML (latent_dim, epochs, batch_size, validation_split)")
	reportCmd.Flags().StringVar(&dbPath, "db", "", "Optional SQLite file to persist the run into")
	reportCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Hyperparameter overrides; file values win unless the flag is set.
	reportCmd.Flags().IntVar(&latentDim, "latent-dim", 4, "Latent space dimensionality")
	reportCmd.Flags().IntVar(&epochs, "epochs", 50, "Maximum training epochs")
	reportCmd.Flags().IntVar(&batchSize, "batch-size", 32, "Training batch size")
	reportCmd.Flags().Float64Var(&validationSplit, "validation-split", 0.25, "Fraction of segments held out for validation")
	reportCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for weights, shuffling and clustering")

	// Attach `report` as a subcommand to `root`
	rootCmd.AddCommand(reportCmd)
}
