// Package pathing answers movement and attack-range questions over a
// projected grid. It never mutates the grid or the roster behind it.
package pathing

import (
	"container/heap"

	"hextactics.gg/internal/sim/hexgrid"
)

// ShortestPath runs A* from start to goal. Entering an unoccupied tile costs 1;
// entering the goal costs 1 even when occupied; any other occupied tile is
// impassable. The returned path includes both endpoints.
func ShortestPath(g *hexgrid.Grid, start, goal hexgrid.Axial) ([]hexgrid.Axial, bool) {
	if !g.Contains(start) || !g.Contains(goal) {
		return nil, false
	}
	if start == goal {
		return []hexgrid.Axial{start}, true
	}

	pq := &priorityQueue{}
	heap.Init(pq)
	seq := 0
	heap.Push(pq, &node{pos: start, priority: hexgrid.Distance(start, goal)})
	costSoFar := map[hexgrid.Axial]int{start: 0}
	cameFrom := map[hexgrid.Axial]hexgrid.Axial{}
	closed := map[hexgrid.Axial]bool{}

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*node)
		if cur.pos == goal {
			return reconstruct(cameFrom, start, goal), true
		}
		if closed[cur.pos] {
			continue
		}
		closed[cur.pos] = true

		for _, next := range g.Ring(cur.pos, 1) {
			if next.Occupied() && next.Pos != goal {
				continue
			}
			cost := costSoFar[cur.pos] + 1
			if old, seen := costSoFar[next.Pos]; seen && cost >= old {
				continue
			}
			costSoFar[next.Pos] = cost
			cameFrom[next.Pos] = cur.pos
			seq++
			heap.Push(pq, &node{pos: next.Pos, priority: cost + hexgrid.Distance(next.Pos, goal), seq: seq})
		}
	}
	return nil, false
}

func reconstruct(cameFrom map[hexgrid.Axial]hexgrid.Axial, start, goal hexgrid.Axial) []hexgrid.Axial {
	path := []hexgrid.Axial{goal}
	for cur := goal; cur != start; {
		cur = cameFrom[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type node struct {
	pos      hexgrid.Axial
	priority int
	seq      int
}

// priorityQueue orders by f-score, then insertion order so ties resolve the
// same way on every run.
type priorityQueue []*node

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)   { *pq = append(*pq, x.(*node)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}
