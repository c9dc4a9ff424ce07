package pipeline

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticCounts builds a time-major table of plausible vehicle counts:
// a daily sine profile per segment plus deterministic jitter.
func syntheticCounts(nSegments, timeSteps int) *RawTable {
	segments := make([]string, nSegments)
	for s := range segments {
		segments[s] = fmt.Sprintf("segment_%02d", s)
	}
	counts := make([][]float64, timeSteps)
	for t := range counts {
		row := make([]float64, nSegments)
		for s := range row {
			base := 20 + 15*math.Sin(2*math.Pi*float64(t)/float64(timeSteps)+float64(s))
			jitter := float64((s*31+t*17)%7) - 3
			v := math.Round(base + jitter + float64(3*s))
			if v < 0 {
				v = 0
			}
			row[s] = v
		}
		counts[t] = row
	}
	return &RawTable{Segments: segments, Counts: counts}
}

func TestRun_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full training run")
	}

	table := syntheticCounts(20, 96)
	ds, err := Preprocess(table)
	require.NoError(t, err)

	cfg := Config{LatentDim: 4, Epochs: 10, BatchSize: 8, ValidationSplit: 0.25, Seed: 42}
	report, err := Run(cfg, ds)
	require.NoError(t, err)

	require.Len(t, report.Rows, 20)
	validCategories := map[string]bool{CategoryLow: true, CategoryMedium: true, CategoryHigh: true}
	for i, row := range report.Rows {
		assert.Equal(t, ds.Segments[i], row.Segment)
		assert.GreaterOrEqual(t, row.ClusterID, 0)
		assert.Less(t, row.ClusterID, 3)
		assert.True(t, validCategories[row.Category], "row %d category %q", i, row.Category)
		assert.Equal(t, ds.RawMeans[i], row.AvgRawTraffic, "avg_raw_traffic must be the raw pre-scaling mean")
	}
	assert.True(t, isFinite(report.BestValLoss))
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	if testing.Short() {
		t.Skip("full training run")
	}

	table := syntheticCounts(12, 32)
	ds, err := Preprocess(table)
	require.NoError(t, err)

	cfg := Config{LatentDim: 3, Epochs: 5, BatchSize: 4, ValidationSplit: 0.25, Seed: 42}

	r1, err := Run(cfg, ds)
	require.NoError(t, err)
	r2, err := Run(cfg, ds)
	require.NoError(t, err)

	assert.Equal(t, r1.Rows, r2.Rows, "same seed and input must reproduce the report exactly")
	assert.Equal(t, r1.BestValLoss, r2.BestValLoss)
}

func TestRun_KnownTrafficGroups(t *testing.T) {
	if testing.Short() {
		t.Skip("full training run")
	}

	// Nine segments in three constant-traffic groups. Segments within a
	// group have identical series, so their latents coincide and the
	// 3-means fit must separate the groups perfectly. Time steps chosen
	// off a multiple of 4 to exercise the decoder crop during training.
	groups := []float64{1, 5, 9}
	const timeSteps = 10
	segments := make([]string, 9)
	counts := make([][]float64, timeSteps)
	for t := range counts {
		counts[t] = make([]float64, 9)
	}
	for s := 0; s < 9; s++ {
		segments[s] = fmt.Sprintf("seg_%d", s)
		for t := 0; t < timeSteps; t++ {
			counts[t][s] = groups[s/3]
		}
	}

	ds, err := Preprocess(&RawTable{Segments: segments, Counts: counts})
	require.NoError(t, err)

	cfg := Config{LatentDim: 2, Epochs: 5, BatchSize: 3, ValidationSplit: 0.25, Seed: 42}
	report, err := Run(cfg, ds)
	require.NoError(t, err)
	require.Len(t, report.Rows, 9)

	// Group members share cluster and category; groups are disjoint.
	for g := 0; g < 3; g++ {
		for m := 1; m < 3; m++ {
			assert.Equal(t, report.Rows[g*3].ClusterID, report.Rows[g*3+m].ClusterID)
			assert.Equal(t, report.Rows[g*3].Category, report.Rows[g*3+m].Category)
		}
	}
	assert.NotEqual(t, report.Rows[0].ClusterID, report.Rows[3].ClusterID)
	assert.NotEqual(t, report.Rows[3].ClusterID, report.Rows[6].ClusterID)
	assert.NotEqual(t, report.Rows[0].ClusterID, report.Rows[6].ClusterID)

	// Literal rank-to-name behavior at the pipeline level: the group
	// with the highest raw average (9) carries "Low Flow Level", the
	// middle group (5) "Medium", the lowest (1) "High".
	assert.Equal(t, CategoryHigh, report.Rows[0].Category)
	assert.Equal(t, CategoryMedium, report.Rows[3].Category)
	assert.Equal(t, CategoryLow, report.Rows[6].Category)

	for i, row := range report.Rows {
		assert.Equal(t, groups[i/3], row.AvgRawTraffic)
	}
}
