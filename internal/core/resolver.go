package core

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

// CyclicDependencyError is returned when the graph's relationships and
// attachments form a cycle
type CyclicDependencyError struct {
	Cycle []model.NodeID
}

// Error implements the error interface
func (e *CyclicDependencyError) Error() string {
	ids := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		ids[i] = string(id)
	}
	return fmt.Sprintf("cyclic dependency between %s", strings.Join(ids, ", "))
}

// Order is the resolved emission order of a graph's nodes
type Order struct {
	ids      []model.NodeID
	position map[model.NodeID]int
}

// NewOrder wraps an explicit node order
func NewOrder(ids []model.NodeID) *Order {
	order := &Order{
		ids:      append([]model.NodeID(nil), ids...),
		position: make(map[model.NodeID]int, len(ids)),
	}
	for i, id := range ids {
		order.position[id] = i
	}
	return order
}

// IDs returns the node ids in emission order
func (o *Order) IDs() []model.NodeID {
	return append([]model.NodeID(nil), o.ids...)
}

// Position returns the index of id in the order, or -1
func (o *Order) Position(id model.NodeID) int {
	if p, ok := o.position[id]; ok {
		return p
	}
	return -1
}

// Len returns the number of ordered nodes
func (o *Order) Len() int {
	return len(o.ids)
}

// Resolve orders the nodes of g so that every relationship or attachment
// target precedes the node that declares it
func Resolve(g *model.Graph) (*Order, error) {
	dag := NewDAG[model.NodeID]()
	nodes := g.Nodes()
	for i, n := range nodes {
		if err := dag.AddVertex(n.ID, i); err != nil {
			return nil, err
		}
	}

	for _, n := range nodes {
		var deps []model.NodeID
		for _, ref := range n.Attachments {
			if _, ok := g.Lookup(ref); !ok {
				return nil, &model.UnknownNodeError{ID: ref.ID(), Referrer: n.ID}
			}
			deps = append(deps, ref.ID())
		}
		for _, rel := range n.Relationships {
			deps = append(deps, rel.To)
		}
		if err := dag.AddDependencies(n.ID, deps); err != nil {
			return nil, err
		}
	}

	ids, err := dag.TopologicalSort()
	if err != nil {
		var cycle *CycleError[model.NodeID]
		if errors.As(err, &cycle) {
			return nil, &CyclicDependencyError{Cycle: cycle.Cycle}
		}
		return nil, err
	}

	order := NewOrder(ids)

	logger.Debug("Resolved node order",
		zap.String("graph", g.Name),
		zap.Int("nodes", len(ids)))

	return order, nil
}
