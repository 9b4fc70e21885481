package pathplan

import "container/heap"

// ShortestPaths runs Dijkstra from source. dist[v] is the length of the
// shortest path to v (Unreached if none) and prev[v] the vertex it is reached
// from (NoVertex for the source and unreached vertices).
func ShortestPaths(g *Graph, source int) (dist []float64, prev []int, err error) {
	if err := g.check(source); err != nil {
		return nil, nil, err
	}

	n := g.Len()
	dist = make([]float64, n)
	prev = make([]int, n)
	for i := range dist {
		dist[i] = Unreached
		prev[i] = NoVertex
	}
	dist[source] = 0

	frontier := newFrontier(n)
	frontier.upsert(source, 0)

	for frontier.Len() > 0 {
		item := heap.Pop(frontier).(*frontierItem)
		u, d := item.vertex, item.dist
		for _, e := range g.adj[u] {
			through := d + e.Weight
			if through < dist[e.Target] {
				dist[e.Target] = through
				prev[e.Target] = u
				frontier.upsert(e.Target, through)
			}
		}
	}
	return dist, prev, nil
}

// PathTo walks predecessors back from target. A target with no predecessor
// yields just [target], which is also what an unreached target produces.
func PathTo(prev []int, target int) []int {
	var rev []int
	for v := target; v != NoVertex; v = prev[v] {
		rev = append(rev, v)
	}
	path := make([]int, len(rev))
	for i, v := range rev {
		path[len(rev)-1-i] = v
	}
	return path
}

// ShortestPath returns the vertices from source to target inclusive.
func ShortestPath(g *Graph, source, target int) ([]int, error) {
	if err := g.check(target); err != nil {
		return nil, err
	}
	_, prev, err := ShortestPaths(g, source)
	if err != nil {
		return nil, err
	}
	return PathTo(prev, target), nil
}

// frontier is a min-heap of (dist, vertex) with one entry per vertex. An
// improved vertex has its stale entry replaced in place.
type frontier struct {
	items []*frontierItem
	pos   []*frontierItem // vertex → live entry, nil when not queued
}

type frontierItem struct {
	vertex int
	dist   float64
	index  int
}

func newFrontier(n int) *frontier {
	return &frontier{pos: make([]*frontierItem, n)}
}

func (f *frontier) Len() int { return len(f.items) }

func (f *frontier) Less(i, j int) bool {
	if f.items[i].dist != f.items[j].dist {
		return f.items[i].dist < f.items[j].dist
	}
	return f.items[i].vertex < f.items[j].vertex
}

func (f *frontier) Swap(i, j int) {
	f.items[i], f.items[j] = f.items[j], f.items[i]
	f.items[i].index = i
	f.items[j].index = j
}

func (f *frontier) Push(x any) {
	item := x.(*frontierItem)
	item.index = len(f.items)
	f.items = append(f.items, item)
	f.pos[item.vertex] = item
}

func (f *frontier) Pop() any {
	old := f.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	f.items = old[:n-1]
	f.pos[item.vertex] = nil
	return item
}

// upsert removes any stale entry for v and queues it at dist.
func (f *frontier) upsert(v int, dist float64) {
	if stale := f.pos[v]; stale != nil {
		heap.Remove(f, stale.index)
	}
	heap.Push(f, &frontierItem{vertex: v, dist: dist})
}
