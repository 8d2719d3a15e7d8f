package capability

import (
	"sort"
	"strings"
	"sync"

	"github.com/withobsrvr/stackctl/internal/ir"
	"github.com/withobsrvr/stackctl/internal/model"
)

// Descriptor records which formats can render a record kind or field
type Descriptor struct {
	// FieldPath is "<ResourceKind>" for a whole record or
	// "<ResourceKind>.<field>" for a single field
	FieldPath      string
	Formats        []model.Format
	Recommendation string
}

// Supports reports whether format can render the described path
func (d Descriptor) Supports(format model.Format) bool {
	for _, f := range d.Formats {
		if f == format {
			return true
		}
	}
	return false
}

var (
	all = model.AllFormats
	// kube renders every record as a Kubernetes object
	kube        = []model.Format{model.Kubernetes, model.Helm, model.Kustomize, model.Terraform}
	composeOnly = []model.Format{model.DockerCompose}
)

const (
	recNotCompose = "Docker Compose has no equivalent; deploy this component with a Kubernetes-based format"
	recKubeField  = "only Kubernetes-based formats render this field; it is omitted from Docker Compose output"
	recComposeOpt = "this is a Docker Compose option; use a NetworkService or Ingress for Kubernetes-based formats"
)

type entry struct {
	formats        []model.Format
	recommendation string
}

// table is the static capability matrix. Record-level entries come first.
var table = map[string]entry{
	string(ir.Workload):          {all, ""},
	string(ir.NetworkService):    {kube, "Docker Compose services are reachable by name; publish host ports with port_mapping instead"},
	string(ir.ExternalRoute):     {kube, "Docker Compose has no ingress; put a reverse proxy service in front of the app explicitly"},
	string(ir.SecretStore):       {all, ""},
	string(ir.ConfigStore):       {all, ""},
	string(ir.ScheduledTask):     {kube, "Docker Compose cannot schedule runs; trigger the job from the host scheduler"},
	string(ir.OneShotTask):       {all, ""},
	string(ir.Identity):          {kube, recNotCompose},
	string(ir.Permission):        {kube, recNotCompose},
	string(ir.PermissionBinding): {kube, recNotCompose},
	string(ir.TrafficPolicy):     {kube, "Docker Compose isolates traffic with networks; declare networks on the apps instead"},
	string(ir.CustomObject):      {kube, recNotCompose},
}

// workloadFields are shared by long-running workloads and tasks
var workloadFields = map[string]entry{
	"image":             {all, ""},
	"command":           {all, ""},
	"args":              {all, ""},
	"env":               {all, ""},
	"cpu":               {all, ""},
	"memory":            {all, ""},
	"cpu_limit":         {all, ""},
	"memory_limit":      {all, ""},
	"labels":            {all, ""},
	"attachments":       {all, ""},
	"connections":       {all, ""},
	"annotations":       {kube, recKubeField},
	"image_pull_policy": {kube, recKubeField},
	"service_account":   {kube, "Docker Compose has no service identities; the binding is ignored"},
}

var fieldTable = map[ir.ResourceKind]map[string]entry{
	ir.Workload: merge(workloadFields, map[string]entry{
		"replicas":        {all, ""},
		"port":            {all, ""},
		"health_path":     {all, ""},
		"health_interval": {all, ""},
		"storage":         {all, ""},
		"mount_path":      {all, ""},
		"node_selector":   {kube, recKubeField},
		"storage_class":   {kube, recKubeField},
		"cluster_mode":    {kube, recKubeField},
		"port_mapping":    {composeOnly, recComposeOpt},
		"restart_policy":  {composeOnly, "Kubernetes controllers always restart long-running pods; remove restart_policy or target Docker Compose"},
		"container_name":  {composeOnly, "Kubernetes names pods itself; container_name only applies to Docker Compose"},
		"networks":        {composeOnly, "use a NetworkPolicy to restrict traffic in Kubernetes-based formats"},
	}),
	ir.OneShotTask: merge(workloadFields, taskFields),
	ir.ScheduledTask: merge(workloadFields, taskFields, map[string]entry{
		"schedule":           {kube, ""},
		"concurrency_policy": {kube, ""},
		"suspend":            {kube, ""},
	}),
	ir.NetworkService: kubeFields("port", "target_port", "service_type", "selector", "headless"),
	ir.ExternalRoute:  kubeFields("host", "path", "backend", "backend_port", "tls_secret", "class_name"),
	ir.SecretStore: {
		"data":        {all, ""},
		"secret_type": {kube, recKubeField},
	},
	ir.ConfigStore: {
		"data": {all, ""},
	},
	ir.Identity:          kubeFields("automount", "annotations"),
	ir.Permission:        kubeFields("rules", "scope"),
	ir.PermissionBinding: kubeFields("role", "subjects", "scope"),
	ir.TrafficPolicy:     kubeFields("selector", "ports", "allow_namespaces", "policy_types"),
	ir.CustomObject:      kubeFields("api_version", "resource_kind", "spec"),
}

var taskFields = map[string]entry{
	"backoff_limit":   {kube, recKubeField},
	"active_deadline": {kube, recKubeField},
	"completions":     {kube, recKubeField},
	"parallelism":     {kube, recKubeField},
	"restart_policy":  {kube, recKubeField},
}

func merge(groups ...map[string]entry) map[string]entry {
	out := make(map[string]entry)
	for _, g := range groups {
		for k, v := range g {
			out[k] = v
		}
	}
	return out
}

func kubeFields(names ...string) map[string]entry {
	out := make(map[string]entry, len(names))
	for _, n := range names {
		out[n] = entry{kube, ""}
	}
	return out
}

var (
	loadOnce    sync.Once
	descriptors map[string]Descriptor
)

func load() map[string]Descriptor {
	loadOnce.Do(func() {
		descriptors = make(map[string]Descriptor)
		for path, e := range table {
			descriptors[path] = Descriptor{FieldPath: path, Formats: e.formats, Recommendation: e.recommendation}
		}
		for kind, fields := range fieldTable {
			for field, e := range fields {
				path := FieldPath(kind, field)
				descriptors[path] = Descriptor{FieldPath: path, Formats: e.formats, Recommendation: e.recommendation}
			}
		}
	})
	return descriptors
}

// FieldPath joins a record kind and field into a descriptor key
func FieldPath(kind ir.ResourceKind, field string) string {
	if field == "" || field == ir.AllFields {
		return string(kind)
	}
	return string(kind) + "." + field
}

// Lookup returns the descriptor for a path
func Lookup(path string) (Descriptor, bool) {
	d, ok := load()[path]
	return d, ok
}

// Descriptors returns every descriptor sorted by path, optionally only the
// ones format cannot render
func Descriptors(unsupportedBy model.Format) []Descriptor {
	var out []Descriptor
	for _, d := range load() {
		if unsupportedBy != "" && d.Supports(unsupportedBy) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FieldPath < out[j].FieldPath
	})
	return out
}

// FormatNames renders the supported formats of d as a comma separated list
func (d Descriptor) FormatNames() string {
	names := make([]string, len(d.Formats))
	for i, f := range d.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ",")
}
