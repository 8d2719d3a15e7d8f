package model

import (
	"fmt"
	"strings"
)

// Kind is the closed set of component kinds a graph may contain
type Kind string

const (
	KindApp            Kind = "App"
	KindStatefulApp    Kind = "StatefulApp"
	KindSecret         Kind = "Secret"
	KindConfigMap      Kind = "ConfigMap"
	KindService        Kind = "Service"
	KindIngress        Kind = "Ingress"
	KindJob            Kind = "Job"
	KindCronJob        Kind = "CronJob"
	KindServiceAccount Kind = "ServiceAccount"
	KindRole           Kind = "Role"
	KindClusterRole    Kind = "ClusterRole"
	KindRoleBinding    Kind = "RoleBinding"
	KindNetworkPolicy  Kind = "NetworkPolicy"
	KindAppGroup       Kind = "AppGroup"
	KindCustomResource Kind = "CustomResource"
)

// Kinds lists all kinds in declaration order
var Kinds = []Kind{
	KindApp, KindStatefulApp, KindSecret, KindConfigMap, KindService, KindIngress,
	KindJob, KindCronJob, KindServiceAccount, KindRole, KindClusterRole,
	KindRoleBinding, KindNetworkPolicy, KindAppGroup, KindCustomResource,
}

// ParseKind resolves a kind name case-insensitively
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown component kind: %q", s)
}

// IsWorkload reports whether nodes of this kind run containers
func (k Kind) IsWorkload() bool {
	switch k {
	case KindApp, KindStatefulApp, KindJob, KindCronJob:
		return true
	}
	return false
}

// RelationType names a typed edge between two nodes
type RelationType string

const (
	ConnectsTo RelationType = "connects_to"
	DependsOn  RelationType = "depends_on"
	Exposes    RelationType = "exposes"
	Binds      RelationType = "binds"
)

// ParseRelationType validates a relationship type name
func ParseRelationType(s string) (RelationType, error) {
	switch RelationType(strings.ToLower(s)) {
	case ConnectsTo:
		return ConnectsTo, nil
	case DependsOn:
		return DependsOn, nil
	case Exposes:
		return Exposes, nil
	case Binds:
		return Binds, nil
	}
	return "", fmt.Errorf("unknown relationship type: %q", s)
}

var serviceTargets = []Kind{KindApp, KindStatefulApp, KindService}

// allowedTargets constrains which kinds a relationship may point at, keyed by
// relation type and source kind. A missing entry means any kind is allowed.
var allowedTargets = map[RelationType]map[Kind][]Kind{
	Exposes: {
		KindService: {KindApp, KindStatefulApp},
		KindIngress: serviceTargets,
	},
	Binds: {
		KindRoleBinding:   {KindRole, KindClusterRole, KindServiceAccount},
		KindApp:           {KindServiceAccount},
		KindStatefulApp:   {KindServiceAccount},
		KindJob:           {KindServiceAccount},
		KindCronJob:       {KindServiceAccount},
		KindNetworkPolicy: {KindApp, KindStatefulApp},
		KindAppGroup:      {KindApp, KindStatefulApp, KindJob, KindCronJob, KindService},
	},
	ConnectsTo: {
		KindApp:         serviceTargets,
		KindStatefulApp: serviceTargets,
		KindJob:         serviceTargets,
		KindCronJob:     serviceTargets,
	},
}

// checkRelationship reports why an edge from -> to of the given type is not allowed
func checkRelationship(rel RelationType, from, to Kind) error {
	bySource, ok := allowedTargets[rel]
	if !ok {
		return nil
	}
	targets, ok := bySource[from]
	if !ok {
		if rel == DependsOn {
			return nil
		}
		return fmt.Errorf("%s cannot have a %s relationship", from, rel)
	}
	for _, k := range targets {
		if k == to {
			return nil
		}
	}
	return fmt.Errorf("%s %s %s is not allowed", from, rel, to)
}
