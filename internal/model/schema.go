package model

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/robfig/cron/v3"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/withobsrvr/stackctl/internal/registry"
)

// PropertyType describes the accepted shape of a property value
type PropertyType int

const (
	TypeString PropertyType = iota
	TypeInt
	TypeBool
	TypePort
	TypeCPU
	TypeMemory
	TypeStorage
	TypeDuration
	TypeStringList
	TypeStringMap
	TypePortMappings
	TypePortList
	TypeCron
	TypeImage
	TypeEnum
	TypeMapList
	TypeMap
)

var typeNames = map[PropertyType]string{
	TypeString:       "string",
	TypeInt:          "integer",
	TypeBool:         "boolean",
	TypePort:         "port",
	TypeCPU:          "cpu quantity",
	TypeMemory:       "memory quantity",
	TypeStorage:      "storage quantity",
	TypeDuration:     "duration",
	TypeStringList:   "string list",
	TypeStringMap:    "string map",
	TypePortMappings: "port mapping list",
	TypePortList:     "port list",
	TypeCron:         "cron schedule",
	TypeImage:        "image reference",
	TypeEnum:         "enum",
	TypeMapList:      "list of maps",
	TypeMap:          "map",
}

// String returns the human readable type name
func (t PropertyType) String() string {
	return typeNames[t]
}

// storagePattern is the strict quantity grammar accepted for storage sizes
var storagePattern = regexp.MustCompile(`^\d+(\.\d+)?(Ki|Mi|Gi|Ti)$`)

// PropertySpec declares one property a kind accepts
type PropertySpec struct {
	Key  string
	Type PropertyType
	// Enum lists the accepted values for TypeEnum
	Enum []string
	// Min is the inclusive lower bound for TypeInt
	Min int64
	// Item declares the keys of each element for TypeMapList
	Item []PropertySpec
	// Configurable marks values that Helm lifts into values.yaml
	Configurable bool
	// Description is shown by `stackctl capabilities`
	Description string
}

var workloadContainerProps = []PropertySpec{
	{Key: "image", Type: TypeImage, Configurable: true, Description: "container image reference"},
	{Key: "command", Type: TypeStringList, Description: "container entrypoint"},
	{Key: "args", Type: TypeStringList, Description: "container arguments"},
	{Key: "env", Type: TypeStringMap, Description: "environment variables"},
	{Key: "cpu", Type: TypeCPU, Configurable: true, Description: "requested CPU"},
	{Key: "memory", Type: TypeMemory, Configurable: true, Description: "requested memory"},
	{Key: "cpu_limit", Type: TypeCPU, Configurable: true, Description: "CPU limit"},
	{Key: "memory_limit", Type: TypeMemory, Configurable: true, Description: "memory limit"},
	{Key: "image_pull_policy", Type: TypeEnum, Enum: []string{"Always", "IfNotPresent", "Never"}, Description: "Kubernetes image pull policy"},
	{Key: "labels", Type: TypeStringMap, Description: "extra labels"},
	{Key: "annotations", Type: TypeStringMap, Description: "extra annotations"},
}

var longRunningProps = []PropertySpec{
	{Key: "replicas", Type: TypeInt, Min: 0, Configurable: true, Description: "desired replica count"},
	{Key: "port", Type: TypePort, Description: "container port"},
	{Key: "expose", Type: TypeBool, Description: "create a network service for the port"},
	{Key: "service_port", Type: TypePort, Description: "port published by the network service"},
	{Key: "service_type", Type: TypeEnum, Enum: []string{"ClusterIP", "NodePort", "LoadBalancer"}, Description: "network service type"},
	{Key: "port_mapping", Type: TypePortMappings, Description: "host:container port publishing (Docker Compose only)"},
	{Key: "health_path", Type: TypeString, Description: "HTTP health check path"},
	{Key: "health_interval", Type: TypeDuration, Description: "health check period"},
	{Key: "restart_policy", Type: TypeEnum, Enum: []string{"always", "on-failure", "unless-stopped", "no"}, Description: "container restart policy (Docker Compose only)"},
	{Key: "container_name", Type: TypeString, Description: "fixed container name (Docker Compose only)"},
	{Key: "networks", Type: TypeStringList, Description: "Compose networks to join (Docker Compose only)"},
	{Key: "node_selector", Type: TypeStringMap, Description: "node selector (Kubernetes only)"},
}

var jobProps = []PropertySpec{
	{Key: "backoff_limit", Type: TypeInt, Min: 0, Description: "retries before the job is failed"},
	{Key: "active_deadline", Type: TypeDuration, Description: "maximum job run time"},
	{Key: "completions", Type: TypeInt, Min: 1, Description: "successful completions required"},
	{Key: "parallelism", Type: TypeInt, Min: 1, Description: "pods running in parallel"},
	{Key: "restart_policy", Type: TypeEnum, Enum: []string{"OnFailure", "Never"}, Description: "pod restart policy"},
}

var schemas = map[Kind][]PropertySpec{
	KindApp: concatSpecs(workloadContainerProps, longRunningProps),
	KindStatefulApp: concatSpecs(workloadContainerProps, longRunningProps, []PropertySpec{
		{Key: "storage", Type: TypeStorage, Configurable: true, Description: "persistent volume size"},
		{Key: "storage_class", Type: TypeString, Description: "storage class name"},
		{Key: "mount_path", Type: TypeString, Description: "mount path of the persistent volume"},
		{Key: "cluster_mode", Type: TypeBool, Description: "run as a replicated cluster"},
	}),
	KindSecret: {
		{Key: "data", Type: TypeStringMap, Description: "secret key/value pairs"},
		{Key: "secret_type", Type: TypeString, Description: "Kubernetes secret type"},
	},
	KindConfigMap: {
		{Key: "data", Type: TypeStringMap, Description: "configuration key/value pairs"},
	},
	KindService: {
		{Key: "port", Type: TypePort, Description: "published port"},
		{Key: "target_port", Type: TypePort, Description: "port on the selected workload"},
		{Key: "service_type", Type: TypeEnum, Enum: []string{"ClusterIP", "NodePort", "LoadBalancer"}, Description: "service type"},
	},
	KindIngress: {
		{Key: "host", Type: TypeString, Description: "host name"},
		{Key: "paths", Type: TypeStringList, Description: "paths routed for host"},
		{Key: "rules", Type: TypeMapList, Item: []PropertySpec{
			{Key: "host", Type: TypeString},
			{Key: "path", Type: TypeString},
		}, Description: "explicit host/path pairs"},
		{Key: "port", Type: TypePort, Description: "backend service port"},
		{Key: "tls_secret", Type: TypeString, Description: "TLS secret name"},
		{Key: "class_name", Type: TypeString, Description: "ingress class"},
	},
	KindJob: concatSpecs(workloadContainerProps, jobProps),
	KindCronJob: concatSpecs(workloadContainerProps, jobProps, []PropertySpec{
		{Key: "schedule", Type: TypeCron, Configurable: true, Description: "cron schedule"},
		{Key: "concurrency_policy", Type: TypeEnum, Enum: []string{"Allow", "Forbid", "Replace"}, Description: "concurrent run policy"},
		{Key: "suspend", Type: TypeBool, Description: "suspend scheduling"},
	}),
	KindServiceAccount: {
		{Key: "automount", Type: TypeBool, Description: "automount the API token"},
		{Key: "annotations", Type: TypeStringMap, Description: "extra annotations"},
	},
	KindRole:        rbacRuleProps,
	KindClusterRole: rbacRuleProps,
	KindRoleBinding: {
		{Key: "cluster_wide", Type: TypeBool, Description: "bind cluster-wide"},
	},
	KindNetworkPolicy: {
		{Key: "ports", Type: TypePortList, Description: "allowed ingress ports"},
		{Key: "allow_namespaces", Type: TypeStringList, Description: "namespaces allowed to connect"},
		{Key: "policy_types", Type: TypeStringList, Description: "Ingress and/or Egress"},
	},
	KindAppGroup: {
		{Key: "labels", Type: TypeStringMap, Description: "labels applied to members"},
	},
	KindCustomResource: {
		{Key: "api_version", Type: TypeString, Description: "apiVersion of the object"},
		{Key: "resource_kind", Type: TypeString, Description: "kind of the object"},
		{Key: "spec", Type: TypeMap, Description: "object spec"},
	},
}

var rbacRuleProps = []PropertySpec{
	{Key: "rules", Type: TypeMapList, Item: []PropertySpec{
		{Key: "api_groups", Type: TypeStringList},
		{Key: "resources", Type: TypeStringList},
		{Key: "verbs", Type: TypeStringList},
		{Key: "resource_names", Type: TypeStringList},
	}, Description: "policy rules"},
}

func concatSpecs(groups ...[]PropertySpec) []PropertySpec {
	var out []PropertySpec
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Schema returns the property specs for a kind
func Schema(kind Kind) []PropertySpec {
	return append([]PropertySpec(nil), schemas[kind]...)
}

// LookupSpec finds the spec for key on kind
func LookupSpec(kind Kind, key string) (PropertySpec, bool) {
	// specs appended later override earlier ones (restart_policy on jobs)
	var found PropertySpec
	ok := false
	for _, s := range schemas[kind] {
		if s.Key == key {
			found, ok = s, true
		}
	}
	return found, ok
}

// Coerce validates value against spec and returns its canonical form
func Coerce(spec PropertySpec, value any) (any, error) {
	switch spec.Type {
	case TypeString:
		return toString(value)
	case TypeInt:
		i, err := toInt(value)
		if err != nil {
			return nil, err
		}
		if i < spec.Min {
			return nil, fmt.Errorf("must be >= %d", spec.Min)
		}
		return i, nil
	case TypeBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", value)
		}
		return b, nil
	case TypePort:
		return toPort(value)
	case TypeCPU, TypeMemory:
		s, err := quantityString(value)
		if err != nil {
			return nil, err
		}
		if _, err := resource.ParseQuantity(s); err != nil {
			return nil, fmt.Errorf("invalid quantity %q", s)
		}
		return s, nil
	case TypeStorage:
		s, ok := value.(string)
		if !ok || !storagePattern.MatchString(s) {
			return nil, fmt.Errorf("storage %v does not match %s", value, storagePattern)
		}
		return s, nil
	case TypeDuration:
		return toDuration(value)
	case TypeStringList:
		return toStringList(value)
	case TypeStringMap:
		return toStringMap(value)
	case TypePortMappings:
		list, err := toStringList(value)
		if err != nil {
			return nil, err
		}
		for _, m := range list {
			if _, err := nat.ParsePortSpec(m); err != nil {
				return nil, fmt.Errorf("invalid port mapping %q: %v", m, err)
			}
		}
		return list, nil
	case TypePortList:
		items, ok := toAnySlice(value)
		if !ok {
			return nil, fmt.Errorf("expected list of ports, got %T", value)
		}
		out := make([]int64, 0, len(items))
		for _, item := range items {
			p, err := toPort(item)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	case TypeCron:
		s, err := toString(value)
		if err != nil {
			return nil, err
		}
		if _, err := cron.ParseStandard(s); err != nil {
			return nil, fmt.Errorf("invalid cron schedule %q: %v", s, err)
		}
		return s, nil
	case TypeImage:
		s, err := toString(value)
		if err != nil {
			return nil, err
		}
		if _, err := registry.ParseImageReference(s); err != nil {
			return nil, err
		}
		return s, nil
	case TypeEnum:
		s, err := toString(value)
		if err != nil {
			return nil, err
		}
		for _, allowed := range spec.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("must be one of %s", strings.Join(spec.Enum, ", "))
	case TypeMapList:
		return coerceMapList(spec, value)
	case TypeMap:
		m, ok := normalizeFree(value).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected map, got %T", value)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported property type %d", spec.Type)
}

func coerceMapList(spec PropertySpec, value any) (any, error) {
	items, ok := toAnySlice(value)
	if !ok {
		return nil, fmt.Errorf("expected list of maps, got %T", value)
	}
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		m, ok := normalizeFree(item).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d: expected map, got %T", i, item)
		}
		coerced := make(map[string]any, len(m))
		for _, k := range SortedKeys(m) {
			var itemSpec *PropertySpec
			for j := range spec.Item {
				if spec.Item[j].Key == k {
					itemSpec = &spec.Item[j]
				}
			}
			if itemSpec == nil {
				return nil, fmt.Errorf("item %d: unknown key %q", i, k)
			}
			v, err := Coerce(*itemSpec, m[k])
			if err != nil {
				return nil, fmt.Errorf("item %d: %s: %v", i, k, err)
			}
			coerced[k] = v
		}
		out = append(out, coerced)
	}
	return out, nil
}

func toString(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", value)
	}
	return s, nil
}

func toInt(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d out of range", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	}
	return 0, fmt.Errorf("expected integer, got %T", value)
}

func toPort(value any) (int64, error) {
	p, err := toInt(value)
	if err != nil {
		return 0, err
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("port %d not in 1-65535", p)
	}
	return p, nil
}

// quantityString accepts "500m", "1Gi" or a bare number of cores/bytes
func quantityString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	}
	if i, err := toInt(value); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return "", fmt.Errorf("expected quantity, got %T", value)
}

func toDuration(value any) (any, error) {
	if s, ok := value.(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", s)
		}
		if d < 0 {
			return nil, fmt.Errorf("duration must not be negative")
		}
		if d%time.Second != 0 {
			return nil, fmt.Errorf("duration %q is not a whole number of seconds", s)
		}
		return s, nil
	}
	i, err := toInt(value)
	if err != nil {
		return nil, fmt.Errorf("expected duration, got %T", value)
	}
	if i < 0 {
		return nil, fmt.Errorf("duration must not be negative")
	}
	return i, nil
}

func toAnySlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

func toStringList(value any) ([]string, error) {
	items, ok := toAnySlice(value)
	if !ok {
		return nil, fmt.Errorf("expected list of strings, got %T", value)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected list of strings, found %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

func toStringMap(value any) (map[string]string, error) {
	switch v := value.(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out, nil
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, val := range v {
			switch s := val.(type) {
			case string:
				out[k] = s
			case bool, int, int64, float64, json.Number:
				out[k] = fmt.Sprint(s)
			default:
				return nil, fmt.Errorf("value of %q must be a scalar, got %T", k, val)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected map of strings, got %T", value)
}

// normalizeFree converts decoded YAML/JSON into canonical value types
func normalizeFree(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = normalizeFree(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = normalizeFree(val)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = normalizeFree(val)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = val
		}
		return out
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	}
	return value
}

// ValidateName checks a node or namespace name against the DNS-1123 label rules
func ValidateName(name string) error {
	if errs := validation.IsDNS1123Label(name); len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("invalid name %q: %s", name, strings.Join(errs, "; "))
	}
	return nil
}
