// Package ir holds the format-neutral resource records every generator
// consumes. Field values are always unit-normalized.
package ir

import (
	"fmt"
	"sort"

	"github.com/withobsrvr/stackctl/internal/model"
)

// ResourceKind is the target-neutral kind of a record
type ResourceKind string

const (
	Workload          ResourceKind = "Workload"
	NetworkService    ResourceKind = "NetworkService"
	ExternalRoute     ResourceKind = "ExternalRoute"
	SecretStore       ResourceKind = "SecretStore"
	ConfigStore       ResourceKind = "ConfigStore"
	ScheduledTask     ResourceKind = "ScheduledTask"
	OneShotTask       ResourceKind = "OneShotTask"
	Identity          ResourceKind = "Identity"
	Permission        ResourceKind = "Permission"
	PermissionBinding ResourceKind = "PermissionBinding"
	TrafficPolicy     ResourceKind = "TrafficPolicy"
	CustomObject      ResourceKind = "CustomObject"
)

// ResourceKinds lists every record kind
var ResourceKinds = []ResourceKind{
	Workload, NetworkService, ExternalRoute, SecretStore, ConfigStore,
	ScheduledTask, OneShotTask, Identity, Permission, PermissionBinding,
	TrafficPolicy, CustomObject,
}

// Target names the node a record points at. Generators derive selectors
// and object names from it.
type Target struct {
	Name      string
	Namespace string
	Kind      model.Kind
}

// Attachment is a SecretStore or ConfigStore consumed by a workload
type Attachment struct {
	RecordID string
	Kind     ResourceKind
	Name     string
}

// Connection is a connects_to edge resolved to a reachable endpoint
type Connection struct {
	// Name is the target node name, used for environment variable names
	Name string
	// Service is the network service name of the target
	Service string
	// Workload is the workload backing the target
	Workload string
	// Port is the service port, TargetPort the container port behind it
	Port       int64
	TargetPort int64
}

// Record is one deployable unit derived from a component node
type Record struct {
	ID           string
	SourceNodeID model.NodeID
	SourceKind   model.Kind
	Name         string
	Namespace    string
	Kind         ResourceKind
	Fields       map[string]any
	// Configurable lists the fields sourced from configurable properties
	Configurable []string
	DependsOn    []string
}

// RecordID builds the id of a record. n < 0 means the node expands to a
// single record of this kind.
func RecordID(node model.NodeID, kind ResourceKind, n int) string {
	if n < 0 {
		return fmt.Sprintf("%s#%s", node, kind)
	}
	return fmt.Sprintf("%s#%s/%d", node, kind, n)
}

// Has reports whether field is set
func (r Record) Has(field string) bool {
	_, ok := r.Fields[field]
	return ok
}

// String returns a string field or the empty string
func (r Record) String(field string) string {
	s, _ := r.Fields[field].(string)
	return s
}

// Int returns an integer field
func (r Record) Int(field string) (int64, bool) {
	i, ok := r.Fields[field].(int64)
	return i, ok
}

// Bool returns a boolean field or false
func (r Record) Bool(field string) bool {
	b, _ := r.Fields[field].(bool)
	return b
}

// StringList returns a string list field
func (r Record) StringList(field string) []string {
	l, _ := r.Fields[field].([]string)
	return l
}

// StringMap returns a string map field
func (r Record) StringMap(field string) map[string]string {
	m, _ := r.Fields[field].(map[string]string)
	return m
}

// IsConfigurable reports whether field came from a configurable property
func (r Record) IsConfigurable(field string) bool {
	for _, f := range r.Configurable {
		if f == field {
			return true
		}
	}
	return false
}

// FieldNames returns the set fields in lexical order
func (r Record) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy
func (r Record) Clone() Record {
	out := r
	out.Fields = make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = cloneField(v)
	}
	out.Configurable = append([]string(nil), r.Configurable...)
	out.DependsOn = append([]string(nil), r.DependsOn...)
	return out
}

func cloneField(v any) any {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []int64:
		return append([]int64(nil), t...)
	case []Target:
		return append([]Target(nil), t...)
	case []Attachment:
		return append([]Attachment(nil), t...)
	case []Connection:
		return append([]Connection(nil), t...)
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, m := range t {
			out[i] = cloneField(m).(map[string]any)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneField(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneField(val)
		}
		return out
	}
	return v
}

// IR is the immutable, ordered record set built from a graph
type IR struct {
	records []Record
	index   map[string]int
}

// Records returns a copy of the records in emission order
func (r *IR) Records() []Record {
	out := make([]Record, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Clone()
	}
	return out
}

// Record returns a copy of the record with the given id
func (r *IR) Record(id string) (Record, bool) {
	i, ok := r.index[id]
	if !ok {
		return Record{}, false
	}
	return r.records[i].Clone(), true
}

// Len returns the number of records
func (r *IR) Len() int {
	return len(r.records)
}

// Exclusions maps record ids to the fields a format must not render. The
// field "*" excludes the whole record.
type Exclusions map[string]map[string]struct{}

// AllFields is the exclusion entry that drops a whole record
const AllFields = "*"

// Add excludes field of record id
func (e Exclusions) Add(id, field string) {
	if e[id] == nil {
		e[id] = make(map[string]struct{})
	}
	e[id][field] = struct{}{}
}

// Excluded reports whether field of record id must be dropped
func (e Exclusions) Excluded(id, field string) bool {
	fields, ok := e[id]
	if !ok {
		return false
	}
	if _, all := fields[AllFields]; all {
		return true
	}
	_, ok = fields[field]
	return ok
}

// RecordExcluded reports whether the whole record is dropped
func (e Exclusions) RecordExcluded(id string) bool {
	_, all := e[id][AllFields]
	return all
}

// Apply returns a copy of rec without its excluded fields
func (e Exclusions) Apply(rec Record) Record {
	out := rec.Clone()
	for field := range e[rec.ID] {
		delete(out.Fields, field)
	}
	return out
}
