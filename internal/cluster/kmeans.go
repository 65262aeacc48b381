// Package cluster implements the k-means clustering engine and the
// per-cluster analysis over its assignments.
package cluster

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Engine runs Lloyd's algorithm over a dense feature matrix.
//
// Initialization is k-means++ driven by Seed, so a run is fully
// reproducible: identical input, parameters and seed yield identical
// assignments and centroids. The assignment step is parallelized
// across vectors; the update step runs after a barrier.
type Engine struct {
	K             int
	MaxIterations int
	Tolerance     float64
	Seed          int64

	// Workers bounds assignment-step parallelism. 0 means GOMAXPROCS.
	Workers int
}

// NewEngine creates an engine from analysis configuration.
func NewEngine(cfg domain.AnalysisConfig) *Engine {
	return &Engine{
		K:             cfg.Clusters,
		MaxIterations: cfg.MaxIterations,
		Tolerance:     cfg.Tolerance,
		Seed:          cfg.Seed,
		Workers:       cfg.Workers,
	}
}

// FitResult holds the outcome of a clustering run.
type FitResult struct {
	// Assignment maps vector index to a cluster id in [0,K).
	Assignment []int

	// Centroids are the final cluster centers, finite in every
	// component. Frozen once Fit returns.
	Centroids [][]float64

	Iterations int
	Converged  bool
}

// Fit clusters the vectors into K groups.
//
// K < 1 or K > len(vectors) fails with domain.ErrInvalidConfig; the
// engine never clamps K silently. An empty matrix returns an empty
// result without error. Non-convergence within MaxIterations is not
// an error: the assignment at cutoff is returned.
func (e *Engine) Fit(vectors [][]float64) (*FitResult, error) {
	n := len(vectors)
	if n == 0 {
		return &FitResult{}, nil
	}
	if e.K < 1 || e.K > n {
		return nil, fmt.Errorf("%w: k=%d must be in [1,%d]", domain.ErrInvalidConfig, e.K, n)
	}

	maxIter := e.MaxIterations
	if maxIter <= 0 {
		maxIter = 100
	}
	tol := e.Tolerance
	if tol <= 0 {
		tol = 1e-4
	}

	rng := rand.New(rand.NewSource(e.Seed))
	centroids := e.seedCentroids(vectors, rng)

	result := &FitResult{
		Assignment: make([]int, n),
		Centroids:  centroids,
	}

	for iter := 0; iter < maxIter; iter++ {
		e.assign(vectors, centroids, result.Assignment)

		next := e.update(vectors, result.Assignment, centroids)

		shift := 0.0
		for c := range centroids {
			shift += sqDist(centroids[c], next[c])
		}
		result.Centroids = next
		result.Iterations = iter + 1
		centroids = next

		if shift < tol {
			result.Converged = true
			break
		}
	}

	// Final assignment against the frozen centroids.
	e.assign(vectors, result.Centroids, result.Assignment)

	return result, nil
}

// seedCentroids picks K initial centers with k-means++ weighted
// sampling: the first uniformly at random, each subsequent one with
// probability proportional to its squared distance from the nearest
// center already chosen.
func (e *Engine) seedCentroids(vectors [][]float64, rng *rand.Rand) [][]float64 {
	n := len(vectors)
	centroids := make([][]float64, 0, e.K)
	centroids = append(centroids, cloneVec(vectors[rng.Intn(n)]))

	d2 := make([]float64, n)
	for len(centroids) < e.K {
		total := 0.0
		last := centroids[len(centroids)-1]
		for i, v := range vectors {
			d := sqDist(v, last)
			if len(centroids) == 1 || d < d2[i] {
				d2[i] = d
			}
			total += d2[i]
		}

		var pick int
		if total == 0 {
			// All remaining mass is on duplicate points; fall back to
			// a uniform draw to keep the sequence seed-deterministic.
			pick = rng.Intn(n)
		} else {
			r := rng.Float64() * total
			cum := 0.0
			pick = n - 1
			for i, d := range d2 {
				cum += d
				if r < cum {
					pick = i
					break
				}
			}
		}
		centroids = append(centroids, cloneVec(vectors[pick]))
	}
	return centroids
}

// assign writes the nearest-centroid index for every vector. Ties
// break toward the lowest centroid index. Vectors are partitioned
// across workers; each worker owns a disjoint range of the output
// slice, so no synchronization beyond the final barrier is needed.
func (e *Engine) assign(vectors [][]float64, centroids [][]float64, out []int) {
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	n := len(vectors)
	if workers > n {
		workers = n
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				out[i] = nearest(vectors[i], centroids)
			}
		}(lo, hi)
	}
	wg.Wait()
}

// update recomputes each centroid as the elementwise mean of its
// members. A centroid with zero members is reseeded to the vector
// farthest from its nearest centroid, ties toward the lowest vector
// index, so no centroid ever goes NaN.
func (e *Engine) update(vectors [][]float64, assignment []int, centroids [][]float64) [][]float64 {
	dim := len(vectors[0])
	sums := make([][]float64, e.K)
	counts := make([]int, e.K)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	for i, c := range assignment {
		counts[c]++
		for j, x := range vectors[i] {
			sums[c][j] += x
		}
	}

	next := make([][]float64, e.K)
	for c := range next {
		if counts[c] == 0 {
			// Reseeded below once the non-empty centroids are known.
			next[c] = cloneVec(centroids[c])
			continue
		}
		next[c] = sums[c]
		for j := range next[c] {
			next[c][j] /= float64(counts[c])
		}
	}

	for c := range next {
		if counts[c] != 0 {
			continue
		}
		far := 0
		farDist := -1.0
		for i, v := range vectors {
			d := sqDist(v, next[nearest(v, next)])
			if d > farDist {
				farDist = d
				far = i
			}
		}
		next[c] = cloneVec(vectors[far])
	}

	return next
}

// nearest returns the index of the centroid closest to v by squared
// Euclidean distance. Strict comparison keeps the lowest index on ties.
func nearest(v []float64, centroids [][]float64) int {
	best := 0
	bestDist := sqDist(v, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := sqDist(v, centroids[c]); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for j := range a {
		d := a[j] - b[j]
		sum += d * d
	}
	return sum
}

func cloneVec(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
