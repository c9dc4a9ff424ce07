package pipeline

import (
	"fmt"

	"github.com/flowlevel/flowlevel/pipeline/autoenc"
)

// DataFormatError reports a malformed or empty input table.
type DataFormatError struct {
	Reason string
	Row    int // 1-based row in the raw file, 0 when not row-specific
}

func (e *DataFormatError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("data format: %s (row %d)", e.Reason, e.Row)
	}
	return fmt.Sprintf("data format: %s", e.Reason)
}

// ConfigurationError reports invalid hyperparameters, detected before any
// training work starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// ShapeMismatchError reports a tensor whose length does not line up with
// the length the network was built for. Defined in autoenc, where the
// length contracts live; aliased here so callers can match the whole
// taxonomy against one package.
type ShapeMismatchError = autoenc.ShapeMismatchError

// TrainingDivergenceError reports a non-finite loss during fitting.
type TrainingDivergenceError struct {
	Epoch int
	Loss  float64
}

func (e *TrainingDivergenceError) Error() string {
	return fmt.Sprintf("training diverged at epoch %d: loss=%v", e.Epoch, e.Loss)
}
