package pathplan

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(t *testing.T) *Graph {
	t.Helper()
	// 0 → 1 → 2, the 0-based form of [[2],[3],[]].
	g := New(3)
	require.NoError(t, g.AddEdge(0, 1, 1))
	require.NoError(t, g.AddEdge(1, 2, 1))
	return g
}

func TestShortestPath_Chain(t *testing.T) {
	t.Parallel()
	path, err := ShortestPath(chain(t), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, path)
}

func TestShortestPath_SourceIsTarget(t *testing.T) {
	t.Parallel()
	path, err := ShortestPath(chain(t), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, path)
}

func TestShortestPath_UnreachedTargetIsSingleton(t *testing.T) {
	t.Parallel()
	g := New(2)
	path, err := ShortestPath(g, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, path)

	// Edges only point backwards.
	path, err = ShortestPath(chain(t), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, path)
}

func TestShortestPath_PrefersCheaperDetour(t *testing.T) {
	t.Parallel()
	g := New(4)
	require.NoError(t, g.AddEdge(0, 3, 10))
	require.NoError(t, g.AddEdge(0, 1, 1))
	require.NoError(t, g.AddEdge(1, 2, 1))
	require.NoError(t, g.AddEdge(2, 3, 1))

	dist, _, err := ShortestPaths(g, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, dist)

	path, err := ShortestPath(g, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, path)
}

func TestShortestPaths_UnreachedKeepsInfinity(t *testing.T) {
	t.Parallel()
	g := New(3)
	require.NoError(t, g.AddEdge(0, 1, 2))

	dist, prev, err := ShortestPaths(g, 0)
	require.NoError(t, err)
	assert.True(t, math.IsInf(dist[2], 1))
	assert.Equal(t, NoVertex, prev[2])
	assert.Equal(t, NoVertex, prev[0])
	assert.Equal(t, 0, prev[1])
}

func TestGraph_Errors(t *testing.T) {
	t.Parallel()
	g := New(2)
	assert.ErrorIs(t, g.AddEdge(0, 2, 1), ErrVertexRange)
	assert.ErrorIs(t, g.AddEdge(-1, 0, 1), ErrVertexRange)
	assert.Error(t, g.AddEdge(0, 1, 0))
	assert.Error(t, g.AddEdge(0, 1, math.Inf(1)))

	_, _, err := ShortestPaths(g, 5)
	assert.ErrorIs(t, err, ErrVertexRange)
	_, err = ShortestPath(g, 0, 9)
	assert.ErrorIs(t, err, ErrVertexRange)
}

// bruteForce enumerates every simple path from source and keeps the cheapest
// total weight per vertex.
func bruteForce(g *Graph, source int) []float64 {
	best := make([]float64, g.Len())
	for i := range best {
		best[i] = math.Inf(1)
	}
	visited := make([]bool, g.Len())
	var walk func(u int, d float64)
	walk = func(u int, d float64) {
		if d < best[u] {
			best[u] = d
		}
		visited[u] = true
		for _, e := range g.Neighbors(u) {
			if !visited[e.Target] {
				walk(e.Target, d+e.Weight)
			}
		}
		visited[u] = false
	}
	walk(source, 0)
	return best
}

func TestShortestPaths_MatchesBruteForce(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 11))

	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.IntN(7)
		g := New(n)
		for u := 0; u < n; u++ {
			for v := 0; v < n; v++ {
				if u != v && rng.IntN(3) == 0 {
					require.NoError(t, g.AddEdge(u, v, float64(1+rng.IntN(9))))
				}
			}
		}
		source := rng.IntN(n)

		dist, prev, err := ShortestPaths(g, source)
		require.NoError(t, err)
		want := bruteForce(g, source)

		for v := 0; v < n; v++ {
			assert.Equal(t, want[v], dist[v], "trial %d vertex %d", trial, v)
			if math.IsInf(dist[v], 1) || v == source {
				continue
			}
			// The reconstructed path must realise the distance.
			path := PathTo(prev, v)
			require.Equal(t, source, path[0])
			require.Equal(t, v, path[len(path)-1])
			assert.Equal(t, dist[v], pathCost(t, g, path))
		}
	}
}

func pathCost(t *testing.T, g *Graph, path []int) float64 {
	t.Helper()
	total := 0.0
	for i := 0; i+1 < len(path); i++ {
		cheapest := math.Inf(1)
		for _, e := range g.Neighbors(path[i]) {
			if e.Target == path[i+1] && e.Weight < cheapest {
				cheapest = e.Weight
			}
		}
		require.False(t, math.IsInf(cheapest, 1), "no edge %d→%d", path[i], path[i+1])
		total += cheapest
	}
	return total
}
