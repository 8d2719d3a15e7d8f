package core

import (
	"container/heap"
	"fmt"
	"strings"
)

// Vertex is a node of the dependency DAG
type Vertex[T comparable] struct {
	ID T
	// Order is the insertion index used to break ties between ready vertices
	Order int
	// DependsOn holds the vertices that must be emitted before this one
	DependsOn map[T]struct{}
}

// DAG is a directed graph of vertices and their dependencies
type DAG[T comparable] struct {
	Vertices map[T]*Vertex[T]
	order    []T
}

// NewDAG creates an empty DAG
func NewDAG[T comparable]() *DAG[T] {
	return &DAG[T]{
		Vertices: make(map[T]*Vertex[T]),
	}
}

// AddVertex adds a vertex with the given tie-break order
func (d *DAG[T]) AddVertex(id T, order int) error {
	if _, exists := d.Vertices[id]; exists {
		return fmt.Errorf("vertex %v already exists in the DAG", id)
	}
	d.Vertices[id] = &Vertex[T]{
		ID:        id,
		Order:     order,
		DependsOn: make(map[T]struct{}),
	}
	d.order = append(d.order, id)
	return nil
}

// AddDependencies records that id depends on every vertex in deps. Cycles,
// including self references, are accepted here and reported by
// TopologicalSort.
func (d *DAG[T]) AddDependencies(id T, deps []T) error {
	v, exists := d.Vertices[id]
	if !exists {
		return fmt.Errorf("vertex %v not found", id)
	}
	for _, dep := range deps {
		if _, exists := d.Vertices[dep]; !exists {
			return fmt.Errorf("dependency %v of %v not found", dep, id)
		}
		v.DependsOn[dep] = struct{}{}
	}
	return nil
}

// CycleError reports the vertices of a dependency cycle in traversal order
type CycleError[T comparable] struct {
	Cycle []T
}

// Error implements the error interface
func (e *CycleError[T]) Error() string {
	parts := make([]string, 0, len(e.Cycle)+1)
	for _, v := range e.Cycle {
		parts = append(parts, fmt.Sprint(v))
	}
	if len(e.Cycle) > 0 {
		parts = append(parts, fmt.Sprint(e.Cycle[0]))
	}
	return "dependency cycle: " + strings.Join(parts, " -> ")
}

// TopologicalSort returns the vertices with every dependency ahead of its
// dependents. Among vertices that are ready at the same time the one with
// the lowest Order goes first, so the result is stable for an unchanged DAG.
func (d *DAG[T]) TopologicalSort() ([]T, error) {
	remaining := make(map[T]int, len(d.Vertices))
	dependents := make(map[T][]T, len(d.Vertices))
	for _, id := range d.order {
		v := d.Vertices[id]
		remaining[id] = len(v.DependsOn)
		for dep := range v.DependsOn {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	ready := &vertexQueue[T]{}
	for _, id := range d.order {
		if remaining[id] == 0 {
			heap.Push(ready, d.Vertices[id])
		}
	}

	result := make([]T, 0, len(d.Vertices))
	for ready.Len() > 0 {
		v := heap.Pop(ready).(*Vertex[T])
		result = append(result, v.ID)
		for _, dependent := range dependents[v.ID] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				heap.Push(ready, d.Vertices[dependent])
			}
		}
	}

	if len(result) != len(d.Vertices) {
		return nil, &CycleError[T]{Cycle: d.findCycle(remaining)}
	}
	return result, nil
}

// findCycle walks unresolved dependencies from the lowest-order blocked
// vertex. Every blocked vertex has at least one blocked dependency, so the
// walk must revisit a vertex.
func (d *DAG[T]) findCycle(remaining map[T]int) []T {
	var start *Vertex[T]
	for _, id := range d.order {
		if remaining[id] > 0 {
			start = d.Vertices[id]
			break
		}
	}
	if start == nil {
		return nil
	}

	seen := make(map[T]int)
	var path []T
	current := start
	for {
		if at, ok := seen[current.ID]; ok {
			return path[at:]
		}
		seen[current.ID] = len(path)
		path = append(path, current.ID)

		var next *Vertex[T]
		for dep := range current.DependsOn {
			if remaining[dep] == 0 {
				continue
			}
			candidate := d.Vertices[dep]
			if next == nil || candidate.Order < next.Order {
				next = candidate
			}
		}
		current = next
	}
}

type vertexQueue[T comparable] []*Vertex[T]

func (q vertexQueue[T]) Len() int           { return len(q) }
func (q vertexQueue[T]) Less(i, j int) bool { return q[i].Order < q[j].Order }
func (q vertexQueue[T]) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *vertexQueue[T]) Push(x any) {
	*q = append(*q, x.(*Vertex[T]))
}

func (q *vertexQueue[T]) Pop() any {
	old := *q
	n := len(old)
	v := old[n-1]
	*q = old[:n-1]
	return v
}
