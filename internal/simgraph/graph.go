// Package simgraph builds the transaction similarity graph and
// extracts fraud-ring candidates from its connected components.
package simgraph

// Graph is an undirected similarity graph with one node per
// transaction. Nodes live in a dense arena indexed by the position of
// their transaction in the input slice; adjacency is plain integer
// slices, which keeps traversal cache-friendly and free of ownership
// concerns. No self-loops, no duplicate edges, symmetric by
// construction.
type Graph struct {
	nodeIDs []string
	adj     [][]int
	weights [][]float64
	edges   int
}

// Edge links two node indices with a similarity weight.
type Edge struct {
	U, V   int
	Weight float64
}

func newGraph(nodeIDs []string) *Graph {
	return &Graph{
		nodeIDs: nodeIDs,
		adj:     make([][]int, len(nodeIDs)),
		weights: make([][]float64, len(nodeIDs)),
	}
}

// addEdge inserts an undirected edge. Callers guarantee u < v and no
// duplicates; both directions are recorded.
func (g *Graph) addEdge(u, v int, weight float64) {
	g.adj[u] = append(g.adj[u], v)
	g.weights[u] = append(g.weights[u], weight)
	g.adj[v] = append(g.adj[v], u)
	g.weights[v] = append(g.weights[v], weight)
	g.edges++
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int { return len(g.nodeIDs) }

// NumEdges returns the undirected edge count.
func (g *Graph) NumEdges() int { return g.edges }

// NodeID returns the transaction identifier of a node.
func (g *Graph) NodeID(i int) string { return g.nodeIDs[i] }

// Degree returns the number of neighbors of a node.
func (g *Graph) Degree(i int) int { return len(g.adj[i]) }

// Neighbors returns the neighbor indices of a node in ascending
// order. The slice is owned by the graph; callers must not mutate it.
func (g *Graph) Neighbors(i int) []int { return g.adj[i] }

// Weight returns the similarity weight of the n-th neighbor edge of
// node i, parallel to Neighbors(i).
func (g *Graph) Weight(i, n int) float64 { return g.weights[i][n] }
