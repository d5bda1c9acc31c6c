package graph

import "container/heap"

// Toposort returns the live application nodes in dependency order: every
// node appears after the producers of all of its inputs. Among ready
// nodes the lowest handle (creation order) is scheduled first, so the
// order is byte-stable across repeated calls on an unchanged graph. A
// cyclic graph yields a *ConsistencyError.
func Toposort(g *Graph) ([]ApplyID, error) {
	indegree := make([]int, len(g.applies))
	live := 0
	ready := &applyHeap{}
	for _, a := range g.applies {
		if a.dead {
			continue
		}
		live++
		deg := 0
		for _, in := range a.inputs {
			if g.values[in].producer != NoApply {
				deg++
			}
		}
		indegree[a.id] = deg
		if deg == 0 {
			heap.Push(ready, a.id)
		}
	}
	order := make([]ApplyID, 0, live)
	for ready.Len() > 0 {
		id := heap.Pop(ready).(ApplyID)
		order = append(order, id)
		for _, out := range g.applies[id].outputs {
			for _, c := range g.values[out].consumers {
				indegree[c.Apply]--
				if indegree[c.Apply] == 0 {
					heap.Push(ready, c.Apply)
				}
			}
		}
	}
	if len(order) != live {
		return nil, consistencyf("toposort", "%v: %d of %d nodes unschedulable",
			ErrCycle, live-len(order), live)
	}
	return order, nil
}

// applyHeap is a min-heap of application handles.
type applyHeap []ApplyID

func (h applyHeap) Len() int            { return len(h) }
func (h applyHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h applyHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *applyHeap) Push(x any)         { *h = append(*h, x.(ApplyID)) }
func (h *applyHeap) Pop() any {
	old := *h
	n := len(old)
	id := old[n-1]
	*h = old[:n-1]
	return id
}
