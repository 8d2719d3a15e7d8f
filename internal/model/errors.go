package model

import "fmt"

// InvalidPropertyError is returned when a property value does not match the
// schema of the node's kind
type InvalidPropertyError struct {
	NodeID NodeID
	Key    string
	Value  any
	Reason string
}

// Error implements the error interface
func (e *InvalidPropertyError) Error() string {
	return fmt.Sprintf("invalid property %q on %s: %s", e.Key, e.NodeID, e.Reason)
}

// UnknownNodeError is returned when an operation references a node that is
// not in the graph
type UnknownNodeError struct {
	ID NodeID
	// Referrer is the node holding the dangling reference, when known
	Referrer NodeID
}

// Error implements the error interface
func (e *UnknownNodeError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("unknown node %s referenced by %s", e.ID, e.Referrer)
	}
	return fmt.Sprintf("unknown node %s", e.ID)
}

// DuplicateNodeError is returned when (kind, namespace, name) is already taken
type DuplicateNodeError struct {
	ID NodeID
}

// Error implements the error interface
func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node %s already exists", e.ID)
}

// DuplicateRelationshipError is returned when the identical edge or
// attachment already exists
type DuplicateRelationshipError struct {
	From NodeID
	To   NodeID
	Type RelationType
}

// Error implements the error interface
func (e *DuplicateRelationshipError) Error() string {
	return fmt.Sprintf("relationship %s -[%s]-> %s already exists", e.From, e.Type, e.To)
}

// InvalidRelationshipError is returned when an edge type is unknown or not
// allowed between the two kinds
type InvalidRelationshipError struct {
	From   NodeID
	To     NodeID
	Type   RelationType
	Reason string
}

// Error implements the error interface
func (e *InvalidRelationshipError) Error() string {
	return fmt.Sprintf("invalid relationship %s -[%s]-> %s: %s", e.From, e.Type, e.To, e.Reason)
}
