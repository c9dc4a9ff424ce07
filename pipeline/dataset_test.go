package pipeline

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadVehicleCounts(t *testing.T) {
	csv := "timestep,seg_a,seg_b,seg_c\n" +
		"0,1,5,9\n" +
		"1,2,6,10\n" +
		"2,3,7,11\n"

	table, err := ReadVehicleCounts(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []string{"seg_a", "seg_b", "seg_c"}, table.Segments)
	require.Len(t, table.Counts, 3)
	assert.Equal(t, []float64{1, 5, 9}, table.Counts[0])
	assert.Equal(t, []float64{3, 7, 11}, table.Counts[2])
}

func TestReadVehicleCounts_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"index column only", "timestep\n0\n1\n"},
		{"no data rows", "timestep,seg_a\n"},
		{"non-numeric count", "timestep,seg_a\n0,many\n"},
		{"ragged row", "timestep,seg_a,seg_b\n0,1,2\n1,3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadVehicleCounts(strings.NewReader(tt.input))
			require.Error(t, err)
			var dfe *DataFormatError
			assert.True(t, errors.As(err, &dfe), "want DataFormatError, got %T: %v", err, err)
		})
	}
}

func TestPreprocess_StandardizesPerTimeStep(t *testing.T) {
	// 4 segments x 3 time steps; statistics must be computed per time
	// step ACROSS segments, not per segment.
	table := &RawTable{
		Segments: []string{"a", "b", "c", "d"},
		Counts: [][]float64{
			{1, 2, 3, 4},
			{10, 20, 30, 40},
			{5, 5, 5, 5},
		},
	}

	ds, err := Preprocess(table)
	require.NoError(t, err)
	require.Len(t, ds.Scaled, 4)
	assert.Equal(t, 3, ds.TimeSteps)

	for step := 0; step < ds.TimeSteps; step++ {
		mean := 0.0
		for s := range ds.Scaled {
			mean += ds.Scaled[s][step]
		}
		mean /= float64(len(ds.Scaled))
		assert.InDelta(t, 0, mean, 1e-9, "time step %d mean", step)

		variance := 0.0
		for s := range ds.Scaled {
			d := ds.Scaled[s][step] - mean
			variance += d * d
		}
		variance /= float64(len(ds.Scaled))
		if step == 2 {
			// Constant time step scales to all zeros, not a divide-by-zero.
			assert.InDelta(t, 0, variance, 1e-9)
		} else {
			assert.InDelta(t, 1, variance, 1e-9, "time step %d variance", step)
		}
	}
}

func TestPreprocess_RawMeansSurviveScaling(t *testing.T) {
	table := &RawTable{
		Segments: []string{"a", "b"},
		Counts: [][]float64{
			{2, 100},
			{4, 200},
			{6, 300},
		},
	}

	ds, err := Preprocess(table)
	require.NoError(t, err)
	assert.InDelta(t, 4, ds.RawMeans[0], 1e-12)
	assert.InDelta(t, 200, ds.RawMeans[1], 1e-12)
}

func TestPreprocess_EmptyTable(t *testing.T) {
	var dfe *DataFormatError

	_, err := Preprocess(&RawTable{Segments: nil, Counts: [][]float64{{1}}})
	require.Error(t, err)
	assert.True(t, errors.As(err, &dfe))

	_, err = Preprocess(&RawTable{Segments: []string{"a"}, Counts: nil})
	require.Error(t, err)
	assert.True(t, errors.As(err, &dfe))
}

func TestPreprocess_IsPure(t *testing.T) {
	table := &RawTable{
		Segments: []string{"a", "b"},
		Counts:   [][]float64{{1, 2}, {3, 4}},
	}
	_, err := Preprocess(table)
	require.NoError(t, err)

	// The input table is untouched.
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, table.Counts)
}

func TestPreprocess_ScaledIsFinite(t *testing.T) {
	table := &RawTable{
		Segments: []string{"a", "b", "c"},
		Counts:   [][]float64{{0, 0, 0}, {7, 7, 7}},
	}
	ds, err := Preprocess(table)
	require.NoError(t, err)
	for s := range ds.Scaled {
		for _, v := range ds.Scaled[s] {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
}
