package graph

import (
	"container/list"
	"sort"
)

// Queue is a FIFO of node names used by breadth-first traversals.
type Queue struct {
	queue *list.List
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{queue: list.New()}
}

// Enqueue adds a node to the back of the queue.
func (q *Queue) Enqueue(node string) {
	q.queue.PushBack(node)
}

// Dequeue removes and returns the node at the front of the queue.
// Returns empty string and false if the queue is empty.
func (q *Queue) Dequeue() (string, bool) {
	if q.queue.Len() == 0 {
		return "", false
	}
	elem := q.queue.Front()
	q.queue.Remove(elem)
	return elem.Value.(string), true
}

// Len returns the number of queued nodes.
func (q *Queue) Len() int {
	return q.queue.Len()
}

// IsEmpty returns true if the queue has no nodes.
func (q *Queue) IsEmpty() bool {
	return q.queue.Len() == 0
}

// Components returns the connected components, each sorted, ordered by
// their smallest member.
func (g *Graph) Components() [][]string {
	seen := make(map[string]bool, len(g.adj))
	var comps [][]string

	for _, start := range g.Nodes() {
		if seen[start] {
			continue
		}
		seen[start] = true

		q := NewQueue()
		q.Enqueue(start)
		var comp []string
		for !q.IsEmpty() {
			node, _ := q.Dequeue()
			comp = append(comp, node)
			for _, n := range g.Neighbors(node) {
				if !seen[n] {
					seen[n] = true
					q.Enqueue(n)
				}
			}
		}
		sort.Strings(comp)
		comps = append(comps, comp)
	}
	return comps
}
