package simgraph

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// FindRings partitions the graph into connected components with a
// breadth-first traversal and reports every component containing at
// least one fraudulent transaction as a fraud-ring candidate.
// Fraud-free components are simply discarded.
//
// For a component of n nodes:
//   - density is the fraction of the n·(n-1)/2 possible member pairs
//     actually joined by an edge, 0.0 when n <= 1;
//   - avg degree centrality is the mean member degree divided by n-1,
//     0.0 when n <= 1.
//
// Both metrics are always in [0,1]. Records must be the same slice
// the graph was built from: node i corresponds to records[i].
func FindRings(g *Graph, records []*domain.Transaction) []domain.FraudRing {
	n := g.NumNodes()
	visited := make([]bool, n)
	queue := make([]int, 0, n)

	var rings []domain.FraudRing
	for root := 0; root < n; root++ {
		if visited[root] {
			continue
		}

		// BFS from the next unvisited node; every node is visited
		// exactly once across the outer loop.
		visited[root] = true
		queue = append(queue[:0], root)
		var members []int
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			members = append(members, node)
			for _, next := range g.Neighbors(node) {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}

		ring := summarize(g, records, members)
		if ring.FraudCount == 0 {
			continue
		}
		ring.ID = len(rings)
		rings = append(rings, ring)
	}
	return rings
}

func summarize(g *Graph, records []*domain.Transaction, members []int) domain.FraudRing {
	size := len(members)

	memberIDs := make([]string, size)
	fraudCount := 0
	users := make(map[int64]struct{}, size)
	degreeSum := 0
	for i, node := range members {
		memberIDs[i] = g.NodeID(node)
		tx := records[node]
		if tx.IsFraud() {
			fraudCount++
		}
		users[tx.UserID] = struct{}{}
		degreeSum += g.Degree(node)
	}

	density := 0.0
	centrality := 0.0
	if size > 1 {
		// Components are maximal, so every member edge stays inside
		// the component and the degree sum counts each edge twice.
		within := degreeSum / 2
		possible := size * (size - 1) / 2
		density = float64(within) / float64(possible)

		meanDegree := float64(degreeSum) / float64(size)
		centrality = meanDegree / float64(size-1)
	}

	return domain.FraudRing{
		Members:             memberIDs,
		Size:                size,
		Density:             density,
		AvgDegreeCentrality: centrality,
		FraudCount:          fraudCount,
		UniqueUsers:         len(users),
	}
}
