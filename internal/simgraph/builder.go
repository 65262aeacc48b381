package simgraph

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Builder constructs the similarity graph from raw (unnormalized)
// feature vectors: an edge joins every unordered pair whose cosine
// similarity exceeds the threshold, weighted by that similarity.
//
// Construction is O(N²·D). There is no pre-filtering or blocking in
// this builder; callers with very large N must reduce the pair space
// themselves before building. In practice this bounds a single run to
// tens of thousands of records.
type Builder struct {
	Threshold float64

	// Workers bounds pairwise-similarity parallelism. 0 means
	// GOMAXPROCS. The result is identical for any worker count.
	Workers int
}

// NewBuilder creates a builder from analysis configuration.
func NewBuilder(cfg domain.AnalysisConfig) *Builder {
	return &Builder{
		Threshold: cfg.SimilarityThreshold,
		Workers:   cfg.Workers,
	}
}

// Build creates the graph with one node per record. The builder only
// borrows records and vectors; the returned graph holds transaction
// identifiers, not record references.
//
// The pair space is partitioned by row across workers. Each worker
// accumulates a local edge list; lists are concatenated and sorted by
// (u,v) so the assembled adjacency is independent of worker count and
// scheduling.
func (b *Builder) Build(records []*domain.Transaction, vectors [][]float64) *Graph {
	n := len(records)
	nodeIDs := make([]string, n)
	for i, tx := range records {
		nodeIDs[i] = tx.ID
	}
	g := newGraph(nodeIDs)
	if n < 2 {
		return g
	}

	norms := make([]float64, n)
	for i, v := range vectors {
		norms[i] = norm(v)
	}

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	locals := make([][]Edge, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var edges []Edge
			// Striped rows balance the triangular pair space better
			// than contiguous blocks.
			for i := w; i < n; i += workers {
				for j := i + 1; j < n; j++ {
					sim := cosine(vectors[i], vectors[j], norms[i], norms[j])
					if sim > b.Threshold {
						edges = append(edges, Edge{U: i, V: j, Weight: sim})
					}
				}
			}
			locals[w] = edges
		}(w)
	}
	wg.Wait()

	var all []Edge
	for _, edges := range locals {
		all = append(all, edges...)
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].U != all[b].U {
			return all[a].U < all[b].U
		}
		return all[a].V < all[b].V
	})

	for _, e := range all {
		g.addEdge(e.U, e.V, e.Weight)
	}
	return g
}

// cosine returns dot(a,b) / (|a|·|b|), defined as 0.0 when either
// norm is zero.
func cosine(a, b []float64, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0.0
	}
	dot := 0.0
	for j := range a {
		dot += a[j] * b[j]
	}
	return dot / (normA * normB)
}

func norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
