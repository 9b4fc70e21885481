// Package pathplan computes shortest routes over directed weighted graphs.
//
// Vertices are 0-based. Translation from the 1-based indices scripts use
// happens in the API layer, never here.
package pathplan

import (
	"errors"
	"fmt"
	"math"
)

// Unreached is the distance of a vertex not reachable from the source.
var Unreached = math.Inf(1)

// NoVertex marks the absence of a predecessor.
const NoVertex = -1

// ErrVertexRange is returned for vertex indices outside the graph.
var ErrVertexRange = errors.New("vertex out of range")

// Edge is a directed, weighted edge to Target.
type Edge struct {
	Target int
	Weight float64
}

// Graph is an adjacency list of n vertices.
type Graph struct {
	adj [][]Edge
}

// New returns a graph with n vertices and no edges.
func New(n int) *Graph {
	return &Graph{adj: make([][]Edge, n)}
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	return len(g.adj)
}

// AddEdge adds the edge u → v. Weights must be positive.
func (g *Graph) AddEdge(u, v int, w float64) error {
	if err := g.check(u); err != nil {
		return err
	}
	if err := g.check(v); err != nil {
		return err
	}
	if !(w > 0) || math.IsInf(w, 1) {
		return fmt.Errorf("pathplan: edge %d→%d: weight must be positive and finite, got %v", u, v, w)
	}
	g.adj[u] = append(g.adj[u], Edge{Target: v, Weight: w})
	return nil
}

// Neighbors returns the outgoing edges of u.
func (g *Graph) Neighbors(u int) []Edge {
	return g.adj[u]
}

func (g *Graph) check(v int) error {
	if v < 0 || v >= len(g.adj) {
		return fmt.Errorf("pathplan: %w: %d not in [0,%d)", ErrVertexRange, v, len(g.adj))
	}
	return nil
}
