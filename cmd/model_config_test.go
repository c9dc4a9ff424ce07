package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCmd registers the hyperparameter flags on a throwaway command
// so Changed() state does not leak between tests.
func newTestCmd() *cobra.Command {
	c := &cobra.Command{Use: "test"}
	c.Flags().IntVar(&latentDim, "latent-dim", 4, "")
	c.Flags().IntVar(&epochs, "epochs", 50, "")
	c.Flags().IntVar(&batchSize, "batch-size", 32, "")
	c.Flags().Float64Var(&validationSplit, "validation-split", 0.25, "")
	c.Flags().Int64Var(&seed, "seed", 42, "")
	return c
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGetModelConfig_Defaults(t *testing.T) {
	cfg := GetModelConfig("", newTestCmd())
	assert.Equal(t, 4, cfg.LatentDim)
	assert.Equal(t, 50, cfg.Epochs)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, 0.25, cfg.ValidationSplit)
	assert.Equal(t, int64(42), cfg.Seed)
}

func TestGetModelConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "latent_dim: 8\nepochs: 20\nbatch_size: 16\nvalidation_split: 0.2\n")

	cfg := GetModelConfig(path, newTestCmd())
	assert.Equal(t, 8, cfg.LatentDim)
	assert.Equal(t, 20, cfg.Epochs)
	assert.Equal(t, 16, cfg.BatchSize)
	assert.Equal(t, 0.2, cfg.ValidationSplit)
	// Not in the file: default survives.
	assert.Equal(t, int64(42), cfg.Seed)
}

func TestGetModelConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "latent_dim: 8\nepochs: 20\n")

	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("latent-dim", "16"))
	require.NoError(t, cmd.Flags().Set("seed", "7"))

	cfg := GetModelConfig(path, cmd)
	assert.Equal(t, 16, cfg.LatentDim, "explicit flag beats the file")
	assert.Equal(t, 20, cfg.Epochs, "file beats the default")
	assert.Equal(t, int64(7), cfg.Seed)
}
