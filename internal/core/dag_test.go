package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDAGAddVertex(t *testing.T) {
	d := NewDAG[string]()
	require.NoError(t, d.AddVertex("A", 0))
	assert.Error(t, d.AddVertex("A", 1))
	assert.Len(t, d.Vertices, 1)
}

func TestDAGAddDependencies(t *testing.T) {
	d := NewDAG[string]()
	require.NoError(t, d.AddVertex("A", 0))
	require.NoError(t, d.AddVertex("B", 1))

	assert.NoError(t, d.AddDependencies("A", []string{"B"}))
	assert.Error(t, d.AddDependencies("A", []string{"C"}))
	assert.Error(t, d.AddDependencies("C", []string{"A"}))
	assert.NoError(t, d.AddDependencies("A", []string{"A"}), "self references surface at sort time")
}

func TestDAGTopologicalSort(t *testing.T) {
	grid := []struct {
		Nodes string
		Edges string
		Want  string
	}{
		{Nodes: "A,B", Want: "A,B"},
		{Nodes: "A,B", Edges: "A->B", Want: "A,B"},
		{Nodes: "A,B", Edges: "B->A", Want: "B,A"},
		{Nodes: "A,B,C,D,E,F", Want: "A,B,C,D,E,F"},
		{Nodes: "A,B,C,D,E,F", Edges: "C->D", Want: "A,B,C,D,E,F"},
		{Nodes: "A,B,C,D,E,F", Edges: "D->C", Want: "A,B,D,C,E,F"},
		{Nodes: "A,B,C,D,E,F", Edges: "F->A,F->B,B->A", Want: "C,D,E,F,B,A"},
		{Nodes: "A,B,C,D,E,F", Edges: "B->A,C->A,D->B,D->C,F->E,A->E", Want: "D,B,C,A,F,E"},
	}

	for i, g := range grid {
		t.Run(fmt.Sprintf("[%d] nodes=%s,edges=%s", i, g.Nodes, g.Edges), func(t *testing.T) {
			d := NewDAG[string]()
			for i, node := range strings.Split(g.Nodes, ",") {
				require.NoError(t, d.AddVertex(node, i))
			}
			if g.Edges != "" {
				// "X->Y" reads "X before Y"
				for _, edge := range strings.Split(g.Edges, ",") {
					tokens := strings.SplitN(edge, "->", 2)
					require.NoError(t, d.AddDependencies(tokens[1], []string{tokens[0]}))
				}
			}

			order, err := d.TopologicalSort()
			require.NoError(t, err)
			assert.Equal(t, g.Want, strings.Join(order, ","))
		})
	}
}

func TestDAGCycle(t *testing.T) {
	tests := []struct {
		name  string
		edges map[string][]string
		want  []string
	}{
		{
			name:  "self",
			edges: map[string][]string{"B": {"B"}},
			want:  []string{"B"},
		},
		{
			name:  "pair",
			edges: map[string][]string{"A": {"B"}, "B": {"A"}},
			want:  []string{"A", "B"},
		},
		{
			name:  "triangle behind a free vertex",
			edges: map[string][]string{"B": {"C"}, "C": {"D"}, "D": {"B"}},
			want:  []string{"B", "C", "D"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDAG[string]()
			for i, v := range []string{"A", "B", "C", "D"} {
				require.NoError(t, d.AddVertex(v, i))
			}
			for _, from := range []string{"A", "B", "C", "D"} {
				require.NoError(t, d.AddDependencies(from, tt.edges[from]))
			}

			order, err := d.TopologicalSort()
			assert.Nil(t, order)
			var cycle *CycleError[string]
			require.True(t, errors.As(err, &cycle))
			assert.Equal(t, tt.want, cycle.Cycle)
		})
	}
}
