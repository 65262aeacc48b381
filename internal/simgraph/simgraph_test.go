package simgraph

import (
	"math"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func ip(v int) *int { return &v }

func buildTestGraph(t *testing.T, vectors [][]float64, threshold float64, fraud []int) (*Graph, []*domain.Transaction) {
	t.Helper()
	records := make([]*domain.Transaction, len(vectors))
	for i := range vectors {
		records[i] = &domain.Transaction{
			ID:         "tx-" + string(rune('a'+i)),
			UserID:     int64(i + 1),
			FraudLabel: ip(0),
		}
	}
	for _, i := range fraud {
		records[i].FraudLabel = ip(1)
	}

	b := &Builder{Threshold: threshold, Workers: 2}
	return b.Build(records, vectors), records
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"Identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		{"Orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"Opposite", []float64{1, 0}, []float64{-1, 0}, -1.0},
		{"ZeroVector", []float64{0, 0}, []float64{1, 1}, 0.0},
		{"BothZero", []float64{0, 0}, []float64{0, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosine(tt.a, tt.b, norm(tt.a), norm(tt.b))
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}

			// Symmetry
			rev := cosine(tt.b, tt.a, norm(tt.b), norm(tt.a))
			if got != rev {
				t.Errorf("cosine not symmetric: %v vs %v", got, rev)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	t.Run("ParallelVectorsLinked", func(t *testing.T) {
		// Same direction, different magnitude: cosine 1.0.
		vectors := [][]float64{{1, 1}, {2, 2}, {0, 5}}
		g, _ := buildTestGraph(t, vectors, 0.9, nil)

		if g.NumNodes() != 3 {
			t.Fatalf("expected 3 nodes, got %d", g.NumNodes())
		}
		if g.NumEdges() != 1 {
			t.Fatalf("expected 1 edge, got %d", g.NumEdges())
		}
		if g.Degree(0) != 1 || g.Degree(1) != 1 || g.Degree(2) != 0 {
			t.Errorf("unexpected degrees: %d %d %d", g.Degree(0), g.Degree(1), g.Degree(2))
		}
		if w := g.Weight(0, 0); math.Abs(w-1.0) > 1e-9 {
			t.Errorf("expected edge weight ~1.0, got %v", w)
		}
	})

	t.Run("ZeroNormNodesIsolated", func(t *testing.T) {
		vectors := [][]float64{{0, 0}, {0, 0}, {1, 1}}
		g, _ := buildTestGraph(t, vectors, 0.7, nil)

		if g.NumEdges() != 0 {
			t.Errorf("zero vectors must not link to anything, got %d edges", g.NumEdges())
		}
	})

	t.Run("SingleRecord", func(t *testing.T) {
		g, _ := buildTestGraph(t, [][]float64{{1, 2}}, 0.7, nil)
		if g.NumNodes() != 1 || g.NumEdges() != 0 {
			t.Errorf("expected lone node, got %d nodes %d edges", g.NumNodes(), g.NumEdges())
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		b := &Builder{Threshold: 0.7}
		g := b.Build(nil, nil)
		if g.NumNodes() != 0 || g.NumEdges() != 0 {
			t.Error("expected empty graph for empty input")
		}
	})

	t.Run("WorkerCountIndependence", func(t *testing.T) {
		vectors := [][]float64{
			{1, 2, 3}, {2, 4, 6}, {1, 0, 0}, {3, 2, 1}, {0.5, 1, 1.5}, {9, 1, 4},
		}
		records := make([]*domain.Transaction, len(vectors))
		for i := range records {
			records[i] = &domain.Transaction{ID: "tx", UserID: int64(i)}
		}

		serial := (&Builder{Threshold: 0.7, Workers: 1}).Build(records, vectors)
		parallel := (&Builder{Threshold: 0.7, Workers: 5}).Build(records, vectors)

		if serial.NumEdges() != parallel.NumEdges() {
			t.Fatalf("edge counts differ by worker count: %d vs %d", serial.NumEdges(), parallel.NumEdges())
		}
		for i := 0; i < serial.NumNodes(); i++ {
			a, b := serial.Neighbors(i), parallel.Neighbors(i)
			if len(a) != len(b) {
				t.Fatalf("node %d: neighbor counts differ: %d vs %d", i, len(a), len(b))
			}
			for n := range a {
				if a[n] != b[n] {
					t.Errorf("node %d neighbor %d differs: %d vs %d", i, n, a[n], b[n])
				}
				if serial.Weight(i, n) != parallel.Weight(i, n) {
					t.Errorf("node %d neighbor %d weight differs", i, n)
				}
			}
		}
	})
}

func TestFindRings(t *testing.T) {
	t.Run("FraudComponentReported", func(t *testing.T) {
		// Nodes 0,1,2 form a triangle of parallel vectors; node 3 is
		// isolated. Node 1 is fraudulent.
		vectors := [][]float64{{1, 1}, {2, 2}, {3, 3}, {-1, 1}}
		g, records := buildTestGraph(t, vectors, 0.9, []int{1})

		rings := FindRings(g, records)
		if len(rings) != 1 {
			t.Fatalf("expected 1 ring, got %d", len(rings))
		}

		ring := rings[0]
		if ring.Size != 3 {
			t.Errorf("expected ring of size 3, got %d", ring.Size)
		}
		if ring.FraudCount != 1 {
			t.Errorf("expected fraud count 1, got %d", ring.FraudCount)
		}
		if ring.UniqueUsers != 3 {
			t.Errorf("expected 3 unique users, got %d", ring.UniqueUsers)
		}
		// Triangle: all 3 possible edges present.
		if math.Abs(ring.Density-1.0) > 1e-12 {
			t.Errorf("expected density 1.0 for a triangle, got %v", ring.Density)
		}
		if math.Abs(ring.AvgDegreeCentrality-1.0) > 1e-12 {
			t.Errorf("expected centrality 1.0 for a triangle, got %v", ring.AvgDegreeCentrality)
		}
	})

	t.Run("FraudFreeComponentsDiscarded", func(t *testing.T) {
		vectors := [][]float64{{1, 1}, {2, 2}}
		g, records := buildTestGraph(t, vectors, 0.9, nil)

		rings := FindRings(g, records)
		if len(rings) != 0 {
			t.Errorf("expected no rings without fraud, got %d", len(rings))
		}
	})

	t.Run("SingletonFraudComponent", func(t *testing.T) {
		vectors := [][]float64{{1, 0}, {0, 1}}
		g, records := buildTestGraph(t, vectors, 0.9, []int{0})

		rings := FindRings(g, records)
		if len(rings) != 1 {
			t.Fatalf("expected 1 singleton ring, got %d", len(rings))
		}
		if rings[0].Size != 1 {
			t.Errorf("expected size 1, got %d", rings[0].Size)
		}
		if rings[0].Density != 0.0 {
			t.Errorf("singleton density must be exactly 0.0, got %v", rings[0].Density)
		}
		if rings[0].AvgDegreeCentrality != 0.0 {
			t.Errorf("singleton centrality must be exactly 0.0, got %v", rings[0].AvgDegreeCentrality)
		}
	})

	t.Run("MetricsInRange", func(t *testing.T) {
		vectors := [][]float64{
			{1, 1}, {2, 2}, {1, 1.1}, {5, 5.2}, {3, 3}, {-2, 4},
		}
		g, records := buildTestGraph(t, vectors, 0.7, []int{0, 3})

		for _, ring := range FindRings(g, records) {
			if ring.Density < 0 || ring.Density > 1 {
				t.Errorf("ring %d: density %v out of [0,1]", ring.ID, ring.Density)
			}
			if ring.AvgDegreeCentrality < 0 || ring.AvgDegreeCentrality > 1 {
				t.Errorf("ring %d: centrality %v out of [0,1]", ring.ID, ring.AvgDegreeCentrality)
			}
			if ring.FraudCount == 0 {
				t.Errorf("ring %d: reported without fraud", ring.ID)
			}
			if ring.UniqueUsers > ring.Size {
				t.Errorf("ring %d: unique users %d exceeds size %d", ring.ID, ring.UniqueUsers, ring.Size)
			}
		}
	})
}
