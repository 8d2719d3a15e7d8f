package model

import (
	"fmt"
	"strings"
)

// DefaultNamespace is used when a node is added without a namespace
const DefaultNamespace = "default"

// Attaches is the relation type reported for duplicate attachments. It is not
// accepted by AddRelationship.
const Attaches RelationType = "attaches"

// NodeID identifies a node within a graph
type NodeID string

// NewNodeID derives the id of a node from its identity triple
func NewNodeID(kind Kind, namespace, name string) NodeID {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return NodeID(fmt.Sprintf("%s/%s/%s", namespace, strings.ToLower(string(kind)), name))
}

// NodeRef points at a node by identity. The node may be added later.
type NodeRef struct {
	Kind      Kind
	Namespace string
	Name      string
}

// ID returns the node id the reference resolves to
func (r NodeRef) ID() NodeID {
	return NewNodeID(r.Kind, r.Namespace, r.Name)
}

// Relationship is a typed edge from one node to another
type Relationship struct {
	From NodeID
	To   NodeID
	Type RelationType
}

// ComponentNode is a typed, named unit of the application graph
type ComponentNode struct {
	ID            NodeID
	Kind          Kind
	Name          string
	Namespace     string
	Properties    Properties
	Attachments   []NodeRef
	Relationships []Relationship
}

func (n *ComponentNode) clone() ComponentNode {
	return ComponentNode{
		ID:            n.ID,
		Kind:          n.Kind,
		Name:          n.Name,
		Namespace:     n.Namespace,
		Properties:    n.Properties.Clone(),
		Attachments:   append([]NodeRef(nil), n.Attachments...),
		Relationships: append([]Relationship(nil), n.Relationships...),
	}
}

// Graph is an append-only set of component nodes kept in insertion order
type Graph struct {
	Name  string
	nodes []*ComponentNode
	index map[NodeID]int
}

// New creates an empty graph
func New(name string) *Graph {
	return &Graph{
		Name:  name,
		index: make(map[NodeID]int),
	}
}

// AddNode adds a node and returns its id
func (g *Graph) AddNode(kind Kind, name, namespace string) (NodeID, error) {
	kind, err := ParseKind(string(kind))
	if err != nil {
		return "", err
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if err := ValidateName(namespace); err != nil {
		return "", fmt.Errorf("namespace: %w", err)
	}

	id := NewNodeID(kind, namespace, name)
	if _, exists := g.index[id]; exists {
		return "", &DuplicateNodeError{ID: id}
	}

	g.index[id] = len(g.nodes)
	g.nodes = append(g.nodes, &ComponentNode{
		ID:        id,
		Kind:      kind,
		Name:      name,
		Namespace: namespace,
	})
	return id, nil
}

func (g *Graph) node(id NodeID) (*ComponentNode, error) {
	i, ok := g.index[id]
	if !ok {
		return nil, &UnknownNodeError{ID: id}
	}
	return g.nodes[i], nil
}

// SetProperty validates value against the node kind's schema and stores it
func (g *Graph) SetProperty(id NodeID, key string, value any) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	spec, ok := LookupSpec(n.Kind, key)
	if !ok {
		return &InvalidPropertyError{NodeID: id, Key: key, Value: value, Reason: fmt.Sprintf("unknown property for %s", n.Kind)}
	}
	canonical, err := Coerce(spec, value)
	if err != nil {
		return &InvalidPropertyError{NodeID: id, Key: key, Value: value, Reason: err.Error()}
	}
	n.Properties.Set(key, canonical)
	return nil
}

// Attach records that id consumes the Secret or ConfigMap referenced by ref
func (g *Graph) Attach(id NodeID, ref NodeRef) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	if ref.Namespace == "" {
		ref.Namespace = n.Namespace
	}
	if ref.Kind != KindSecret && ref.Kind != KindConfigMap {
		return &InvalidRelationshipError{From: id, To: ref.ID(), Type: Attaches, Reason: "only Secret and ConfigMap nodes can be attached"}
	}
	for _, existing := range n.Attachments {
		if existing == ref {
			return &DuplicateRelationshipError{From: id, To: ref.ID(), Type: Attaches}
		}
	}
	n.Attachments = append(n.Attachments, ref)
	return nil
}

// AddRelationship adds a typed edge from -> to
func (g *Graph) AddRelationship(from, to NodeID, relType RelationType) error {
	src, err := g.node(from)
	if err != nil {
		return err
	}
	dst, err := g.node(to)
	if err != nil {
		return &UnknownNodeError{ID: to, Referrer: from}
	}
	parsed, err := ParseRelationType(string(relType))
	if err != nil {
		return &InvalidRelationshipError{From: from, To: to, Type: relType, Reason: err.Error()}
	}
	relType = parsed
	for _, r := range src.Relationships {
		if r.To == to && r.Type == relType {
			return &DuplicateRelationshipError{From: from, To: to, Type: relType}
		}
	}
	if err := checkRelationship(relType, src.Kind, dst.Kind); err != nil {
		return &InvalidRelationshipError{From: from, To: to, Type: relType, Reason: err.Error()}
	}
	src.Relationships = append(src.Relationships, Relationship{From: from, To: to, Type: relType})
	return nil
}

// Node returns a copy of the node with the given id
func (g *Graph) Node(id NodeID) (ComponentNode, bool) {
	n, err := g.node(id)
	if err != nil {
		return ComponentNode{}, false
	}
	return n.clone(), true
}

// Lookup resolves a reference to a node copy
func (g *Graph) Lookup(ref NodeRef) (ComponentNode, bool) {
	return g.Node(ref.ID())
}

// Nodes returns copies of all nodes in insertion order
func (g *Graph) Nodes() []ComponentNode {
	out := make([]ComponentNode, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.clone()
	}
	return out
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Position returns the insertion index of a node, or -1
func (g *Graph) Position(id NodeID) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	return -1
}
