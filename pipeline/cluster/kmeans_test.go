package cluster

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func TestKMeans_SeparatesThreeTightGroups(t *testing.T) {
	// Three groups of three coincident points. Any 3-means fit that
	// minimizes inertia must put each group in its own cluster.
	points := [][]float64{
		{1, 1}, {1, 1}, {1, 1},
		{5, 5}, {5, 5}, {5, 5},
		{9, 9}, {9, 9}, {9, 9},
	}

	res, err := KMeans(points, DefaultOptions(), testRNG(42))
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Inertia, 1e-12)

	// Same group, same label; different groups, different labels.
	for g := 0; g < 3; g++ {
		base := res.Labels[g*3]
		assert.Equal(t, base, res.Labels[g*3+1])
		assert.Equal(t, base, res.Labels[g*3+2])
	}
	assert.NotEqual(t, res.Labels[0], res.Labels[3])
	assert.NotEqual(t, res.Labels[3], res.Labels[6])
	assert.NotEqual(t, res.Labels[0], res.Labels[6])
}

func TestKMeans_LabelsInRange(t *testing.T) {
	rng := testRNG(7)
	points := make([][]float64, 40)
	for i := range points {
		points[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
	}

	res, err := KMeans(points, DefaultOptions(), testRNG(42))
	require.NoError(t, err)
	require.Len(t, res.Labels, 40)
	for i, label := range res.Labels {
		assert.GreaterOrEqual(t, label, 0, "point %d", i)
		assert.Less(t, label, 3, "point %d", i)
	}
	assert.Len(t, res.Centroids, 3)
}

func TestKMeans_Deterministic(t *testing.T) {
	rng := testRNG(3)
	points := make([][]float64, 25)
	for i := range points {
		points[i] = []float64{rng.Float64() * 10, rng.Float64() * 10}
	}

	r1, err := KMeans(points, DefaultOptions(), testRNG(42))
	require.NoError(t, err)
	r2, err := KMeans(points, DefaultOptions(), testRNG(42))
	require.NoError(t, err)

	assert.Equal(t, r1.Labels, r2.Labels)
	assert.Equal(t, r1.Inertia, r2.Inertia)
}

func TestKMeans_TooFewPoints(t *testing.T) {
	_, err := KMeans([][]float64{{1}, {2}}, DefaultOptions(), testRNG(1))
	assert.Error(t, err)
}

func TestKMeans_InvalidK(t *testing.T) {
	_, err := KMeans([][]float64{{1}, {2}}, Options{K: 0, Restarts: 1, MaxIter: 10, Tol: 1e-4}, testRNG(1))
	assert.Error(t, err)
}

func TestKMeans_ExactClusterCountWorks(t *testing.T) {
	points := [][]float64{{0, 0}, {10, 0}, {0, 10}}
	res, err := KMeans(points, DefaultOptions(), testRNG(42))
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Inertia, 1e-12)
	seen := map[int]bool{}
	for _, l := range res.Labels {
		seen[l] = true
	}
	assert.Len(t, seen, 3)
}
