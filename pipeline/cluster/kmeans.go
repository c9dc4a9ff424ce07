// Package cluster provides the distance-based partitioning used to group
// latent traffic embeddings.
package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Options controls a k-means fit.
type Options struct {
	K        int     // number of clusters
	Restarts int     // independent initializations; the best inertia wins
	MaxIter  int     // Lloyd iteration cap per restart
	Tol      float64 // stop a restart when total squared centroid shift falls below this
}

// DefaultOptions mirrors the parameters the report has always been
// generated with: 3 clusters, 20 restarts.
func DefaultOptions() Options {
	return Options{K: 3, Restarts: 20, MaxIter: 300, Tol: 1e-4}
}

// Result is one k-means fit.
type Result struct {
	Labels    []int       // Labels[i] is the cluster id of points[i]
	Centroids [][]float64 // K centroids
	Inertia   float64     // within-cluster sum of squared distances
}

// KMeans partitions points into opts.K clusters, minimizing within-
// cluster sum of squared distances. Initialization is k-means++ drawn
// from rng, so a seeded rng makes the fit fully deterministic.
func KMeans(points [][]float64, opts Options, rng *rand.Rand) (*Result, error) {
	if opts.K <= 0 {
		return nil, fmt.Errorf("kmeans: K must be positive, got %d", opts.K)
	}
	if len(points) < opts.K {
		return nil, fmt.Errorf("kmeans: %d points cannot form %d clusters", len(points), opts.K)
	}
	if opts.Restarts <= 0 {
		opts.Restarts = 1
	}

	var best *Result
	for r := 0; r < opts.Restarts; r++ {
		res := lloyd(points, opts, rng)
		if best == nil || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

func lloyd(points [][]float64, opts Options, rng *rand.Rand) *Result {
	dim := len(points[0])
	centroids := seedPlusPlus(points, opts.K, rng)
	labels := make([]int, len(points))

	for iter := 0; iter < opts.MaxIter; iter++ {
		// Assignment step.
		for i, p := range points {
			bestDist := math.Inf(1)
			for c, cen := range centroids {
				d := floats.Distance(p, cen, 2)
				if d*d < bestDist {
					bestDist = d * d
					labels[i] = c
				}
			}
		}

		// Update step.
		next := make([][]float64, opts.K)
		counts := make([]int, opts.K)
		for c := range next {
			next[c] = make([]float64, dim)
		}
		for i, p := range points {
			floats.Add(next[labels[i]], p)
			counts[labels[i]]++
		}
		for c := range next {
			if counts[c] == 0 {
				// Re-seed a starved cluster with the point farthest from
				// its current centroid, the usual Lloyd repair.
				far := farthestPoint(points, labels, centroids)
				copy(next[c], points[far])
				labels[far] = c
				counts[c] = 1
				continue
			}
			floats.Scale(1/float64(counts[c]), next[c])
		}

		shift := 0.0
		for c := range centroids {
			d := floats.Distance(centroids[c], next[c], 2)
			shift += d * d
		}
		centroids = next
		if shift < opts.Tol {
			break
		}
	}

	// Final assignment against the settled centroids, plus inertia.
	inertia := 0.0
	for i, p := range points {
		bestDist := math.Inf(1)
		for c, cen := range centroids {
			d := floats.Distance(p, cen, 2)
			if d*d < bestDist {
				bestDist = d * d
				labels[i] = c
			}
		}
		inertia += bestDist
	}

	out := make([]int, len(labels))
	copy(out, labels)
	return &Result{Labels: out, Centroids: centroids, Inertia: inertia}
}

// seedPlusPlus picks K initial centroids with k-means++ weighting: the
// first uniformly, each next with probability proportional to squared
// distance from the nearest already-chosen centroid.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := points[rng.Intn(len(points))]
	centroids = append(centroids, clone(first))

	dists := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			nearest := math.Inf(1)
			for _, cen := range centroids {
				d := floats.Distance(p, cen, 2)
				if d*d < nearest {
					nearest = d * d
				}
			}
			dists[i] = nearest
			total += nearest
		}
		if total == 0 {
			// All remaining points coincide with a centroid; any pick works.
			centroids = append(centroids, clone(points[rng.Intn(len(points))]))
			continue
		}
		target := rng.Float64() * total
		acc := 0.0
		pick := len(points) - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				pick = i
				break
			}
		}
		centroids = append(centroids, clone(points[pick]))
	}
	return centroids
}

func farthestPoint(points [][]float64, labels []int, centroids [][]float64) int {
	far, farDist := 0, -1.0
	for i, p := range points {
		d := floats.Distance(p, centroids[labels[i]], 2)
		if d*d > farDist {
			farDist = d * d
			far = i
		}
	}
	return far
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
