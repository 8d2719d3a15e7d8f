package generator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/withobsrvr/stackctl/internal/ir"
	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/registry"
)

const (
	labelName      = "app.kubernetes.io/name"
	labelComponent = "app.kubernetes.io/component"
	labelPartOf    = "app.kubernetes.io/part-of"
	labelManagedBy = "app.kubernetes.io/managed-by"

	managedBy = "stackctl"

	defaultHealthInterval = int64(30)
	defaultMountPath      = "/data"
	dataVolume            = "data"
)

// paramFunc may replace a rendered field value. Helm uses it to lift
// configurable fields into values.yaml.
type paramFunc func(rec ir.Record, field string, value interface{}) interface{}

func literal(_ ir.Record, _ string, value interface{}) interface{} {
	return value
}

// object is one rendered Kubernetes object
type object struct {
	// RecordID is empty for objects not backed by a record (namespaces)
	RecordID  string
	Kind      string
	Name      string
	Namespace string
	Content   map[string]interface{}
	DependsOn []string
}

// objectBuilder turns records into Kubernetes objects
type objectBuilder struct {
	opts  model.TranslationOptions
	param paramFunc
}

func newObjectBuilder(opts model.TranslationOptions, param paramFunc) *objectBuilder {
	if param == nil {
		param = literal
	}
	return &objectBuilder{opts: opts, param: param}
}

// build renders records in order, preceded by Namespace objects when
// namespace creation is enabled
func (b *objectBuilder) build(records []ir.Record) ([]object, error) {
	var objects []object
	if b.opts.CreateNamespaces {
		for _, ns := range extraNamespaces(records) {
			objects = append(objects, b.namespace(ns))
		}
	}
	for _, rec := range records {
		obj, err := b.record(rec)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// extraNamespaces lists the non-default namespaces in first-use order
func extraNamespaces(records []ir.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range records {
		ns := namespaceOf(rec)
		if ns == model.DefaultNamespace || seen[ns] {
			continue
		}
		seen[ns] = true
		out = append(out, ns)
	}
	return out
}

func (b *objectBuilder) namespace(ns string) object {
	u := &unstructured.Unstructured{Object: map[string]interface{}{}}
	u.SetAPIVersion("v1")
	u.SetKind("Namespace")
	u.SetName(ns)
	u.SetLabels(map[string]string{labelManagedBy: managedBy})
	return object{Kind: "Namespace", Name: ns, Namespace: ns, Content: u.Object}
}

func (b *objectBuilder) record(rec ir.Record) (object, error) {
	var (
		u   *unstructured.Unstructured
		err error
	)
	switch rec.Kind {
	case ir.Workload:
		if rec.SourceKind == model.KindStatefulApp {
			u = b.statefulSet(rec)
		} else {
			u = b.deployment(rec)
		}
	case ir.NetworkService:
		u = b.service(rec)
	case ir.ExternalRoute:
		u, err = b.ingress(rec)
	case ir.SecretStore:
		u = b.secret(rec)
	case ir.ConfigStore:
		u = b.configMap(rec)
	case ir.OneShotTask:
		u = b.job(rec)
	case ir.ScheduledTask:
		u = b.cronJob(rec)
	case ir.Identity:
		u = b.serviceAccount(rec)
	case ir.Permission:
		u = b.role(rec)
	case ir.PermissionBinding:
		u, err = b.roleBinding(rec)
	case ir.TrafficPolicy:
		u = b.networkPolicy(rec)
	case ir.CustomObject:
		u = b.custom(rec)
	default:
		err = fmt.Errorf("no Kubernetes object for record kind %s", rec.Kind)
	}
	if err != nil {
		return object{}, err
	}
	return object{
		RecordID:  rec.ID,
		Kind:      u.GetKind(),
		Name:      u.GetName(),
		Namespace: namespaceOf(rec),
		Content:   u.Object,
		DependsOn: append([]string(nil), rec.DependsOn...),
	}, nil
}

func (b *objectBuilder) name(n string) string {
	return resourceName(b.opts, n)
}

// newObject fills apiVersion, kind and metadata
func (b *objectBuilder) newObject(rec ir.Record, apiVersion, kind string, namespaced bool) *unstructured.Unstructured {
	u := &unstructured.Unstructured{Object: map[string]interface{}{}}
	u.SetAPIVersion(apiVersion)
	u.SetKind(kind)
	u.SetName(b.name(rec.Name))
	if namespaced {
		u.SetNamespace(namespaceOf(rec))
	}
	u.SetLabels(b.labels(rec))
	if ann := rec.StringMap("annotations"); len(ann) > 0 {
		u.SetAnnotations(ann)
	}
	return u
}

// selectorLabels identify the pods of a node. They never carry IR ids.
func selectorLabels(name string, kind model.Kind) map[string]string {
	return map[string]string{
		labelName:      name,
		labelComponent: strings.ToLower(string(kind)),
	}
}

func (b *objectBuilder) labels(rec ir.Record) map[string]string {
	labels := make(map[string]string)
	for k, v := range b.opts.Labels {
		labels[k] = v
	}
	for k, v := range rec.StringMap("labels") {
		labels[k] = v
	}
	for k, v := range selectorLabels(nodeName(rec), rec.SourceKind) {
		labels[k] = v
	}
	labels[labelPartOf] = b.opts.ProjectName
	labels[labelManagedBy] = managedBy
	return labels
}

func (b *objectBuilder) podLabels(rec ir.Record) map[string]interface{} {
	labels := make(map[string]interface{})
	for k, v := range rec.StringMap("labels") {
		labels[k] = v
	}
	for k, v := range selectorLabels(nodeName(rec), rec.SourceKind) {
		labels[k] = v
	}
	return labels
}

func (b *objectBuilder) selector(rec ir.Record) map[string]interface{} {
	return map[string]interface{}{
		"matchLabels": stringMap(selectorLabels(nodeName(rec), rec.SourceKind)),
	}
}

func (b *objectBuilder) replicas(rec ir.Record) interface{} {
	n, ok := rec.Int("replicas")
	if !ok {
		n = 1
	}
	return b.param(rec, "replicas", n)
}

func (b *objectBuilder) deployment(rec ir.Record) *unstructured.Unstructured {
	u := b.newObject(rec, "apps/v1", "Deployment", true)
	u.Object["spec"] = map[string]interface{}{
		"replicas": b.replicas(rec),
		"selector": b.selector(rec),
		"template": b.podTemplate(rec, ""),
	}
	return u
}

func (b *objectBuilder) statefulSet(rec ir.Record) *unstructured.Unstructured {
	u := b.newObject(rec, "apps/v1", "StatefulSet", true)
	spec := map[string]interface{}{
		"serviceName": b.name(rec.Name),
		"replicas":    b.replicas(rec),
		"selector":    b.selector(rec),
		"template":    b.podTemplate(rec, ""),
	}
	if rec.Bool("cluster_mode") {
		spec["podManagementPolicy"] = "Parallel"
	}
	if size, ok := rec.Int("storage"); ok {
		claim := map[string]interface{}{
			"accessModes": []interface{}{"ReadWriteOnce"},
			"resources": map[string]interface{}{
				"requests": map[string]interface{}{
					"storage": b.param(rec, "storage", ir.FormatBytes(size)),
				},
			},
		}
		if class := rec.String("storage_class"); class != "" {
			claim["storageClassName"] = class
		}
		spec["volumeClaimTemplates"] = []interface{}{
			map[string]interface{}{
				"metadata": map[string]interface{}{"name": dataVolume},
				"spec":     claim,
			},
		}
	}
	u.Object["spec"] = spec
	return u
}

func (b *objectBuilder) podTemplate(rec ir.Record, restartPolicy string) map[string]interface{} {
	spec := map[string]interface{}{
		"containers": []interface{}{b.container(rec)},
	}
	if sa := rec.String("service_account"); sa != "" {
		spec["serviceAccountName"] = b.name(sa)
	}
	if sel := rec.StringMap("node_selector"); len(sel) > 0 {
		spec["nodeSelector"] = stringMap(sel)
	}
	if restartPolicy != "" {
		spec["restartPolicy"] = restartPolicy
	}
	return map[string]interface{}{
		"metadata": map[string]interface{}{"labels": b.podLabels(rec)},
		"spec":     spec,
	}
}

func (b *objectBuilder) container(rec ir.Record) map[string]interface{} {
	image := registry.WithRegistryPrefix(rec.String("image"), b.opts.RegistryPrefix)
	c := map[string]interface{}{
		"name":  sanitizeResourceName(nodeName(rec)),
		"image": b.param(rec, "image", image),
	}
	if policy := rec.String("image_pull_policy"); policy != "" {
		c["imagePullPolicy"] = policy
	}
	if cmd := rec.StringList("command"); len(cmd) > 0 {
		c["command"] = stringsToAny(cmd)
	}
	if args := rec.StringList("args"); len(args) > 0 {
		c["args"] = stringsToAny(args)
	}
	if env := b.env(rec); len(env) > 0 {
		c["env"] = env
	}
	if from := b.envFrom(rec); len(from) > 0 {
		c["envFrom"] = from
	}
	port, hasPort := rec.Int("port")
	if hasPort {
		c["ports"] = []interface{}{
			map[string]interface{}{"containerPort": port, "protocol": "TCP"},
		}
	}
	if res := b.resources(rec); len(res) > 0 {
		c["resources"] = res
	}
	if path := rec.String("health_path"); path != "" && hasPort {
		interval, ok := rec.Int("health_interval")
		if !ok {
			interval = defaultHealthInterval
		}
		c["livenessProbe"] = httpProbe(path, port, 10, interval)
		c["readinessProbe"] = httpProbe(path, port, 5, interval)
	}
	if rec.Has("storage") {
		mount := rec.String("mount_path")
		if mount == "" {
			mount = defaultMountPath
		}
		c["volumeMounts"] = []interface{}{
			map[string]interface{}{"name": dataVolume, "mountPath": mount},
		}
	}
	return c
}

func httpProbe(path string, port, initialDelay, period int64) map[string]interface{} {
	return map[string]interface{}{
		"httpGet": map[string]interface{}{
			"path": path,
			"port": port,
		},
		"initialDelaySeconds": initialDelay,
		"periodSeconds":       period,
		"timeoutSeconds":      int64(5),
		"failureThreshold":    int64(3),
	}
}

// env renders declared variables sorted by name, then connection endpoints
func (b *objectBuilder) env(rec ir.Record) []interface{} {
	vars := rec.StringMap("env")
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, map[string]interface{}{"name": k, "value": vars[k]})
	}
	conns, _ := rec.Fields["connections"].([]ir.Connection)
	for _, conn := range conns {
		prefix := envName(conn.Name)
		out = append(out, map[string]interface{}{"name": prefix + "_HOST", "value": b.name(conn.Service)})
		if conn.Port != 0 {
			out = append(out, map[string]interface{}{"name": prefix + "_PORT", "value": strconv.FormatInt(conn.Port, 10)})
		}
	}
	return out
}

func (b *objectBuilder) envFrom(rec ir.Record) []interface{} {
	atts, _ := rec.Fields["attachments"].([]ir.Attachment)
	out := make([]interface{}, 0, len(atts))
	for _, att := range atts {
		ref := map[string]interface{}{"name": b.name(att.Name)}
		switch att.Kind {
		case ir.SecretStore:
			out = append(out, map[string]interface{}{"secretRef": ref})
		case ir.ConfigStore:
			out = append(out, map[string]interface{}{"configMapRef": ref})
		}
	}
	return out
}

func (b *objectBuilder) resources(rec ir.Record) map[string]interface{} {
	requests := make(map[string]interface{})
	limits := make(map[string]interface{})
	if m, ok := rec.Int("cpu"); ok {
		requests["cpu"] = b.param(rec, "cpu", ir.FormatMillicores(m))
	}
	if m, ok := rec.Int("memory"); ok {
		requests["memory"] = b.param(rec, "memory", ir.FormatBytes(m))
	}
	if m, ok := rec.Int("cpu_limit"); ok {
		limits["cpu"] = b.param(rec, "cpu_limit", ir.FormatMillicores(m))
	}
	if m, ok := rec.Int("memory_limit"); ok {
		limits["memory"] = b.param(rec, "memory_limit", ir.FormatBytes(m))
	}
	out := make(map[string]interface{})
	if len(requests) > 0 {
		out["requests"] = requests
	}
	if len(limits) > 0 {
		out["limits"] = limits
	}
	return out
}

func (b *objectBuilder) jobSpec(rec ir.Record) map[string]interface{} {
	restart := rec.String("restart_policy")
	if restart == "" {
		restart = "OnFailure"
	}
	spec := map[string]interface{}{
		"template": b.podTemplate(rec, restart),
	}
	if n, ok := rec.Int("backoff_limit"); ok {
		spec["backoffLimit"] = n
	}
	if n, ok := rec.Int("active_deadline"); ok {
		spec["activeDeadlineSeconds"] = n
	}
	if n, ok := rec.Int("completions"); ok {
		spec["completions"] = n
	}
	if n, ok := rec.Int("parallelism"); ok {
		spec["parallelism"] = n
	}
	return spec
}

func (b *objectBuilder) job(rec ir.Record) *unstructured.Unstructured {
	u := b.newObject(rec, "batch/v1", "Job", true)
	u.Object["spec"] = b.jobSpec(rec)
	return u
}

func (b *objectBuilder) cronJob(rec ir.Record) *unstructured.Unstructured {
	u := b.newObject(rec, "batch/v1", "CronJob", true)
	spec := map[string]interface{}{
		"schedule": b.param(rec, "schedule", rec.String("schedule")),
		"jobTemplate": map[string]interface{}{
			"spec": b.jobSpec(rec),
		},
	}
	if policy := rec.String("concurrency_policy"); policy != "" {
		spec["concurrencyPolicy"] = policy
	}
	if rec.Has("suspend") {
		spec["suspend"] = rec.Bool("suspend")
	}
	u.Object["spec"] = spec
	return u
}

func (b *objectBuilder) service(rec ir.Record) *unstructured.Unstructured {
	u := b.newObject(rec, "v1", "Service", true)
	spec := make(map[string]interface{})
	if t, ok := rec.Fields["selector"].(ir.Target); ok {
		spec["selector"] = stringMap(selectorLabels(t.Name, t.Kind))
	}
	if port, ok := rec.Int("port"); ok {
		target, ok := rec.Int("target_port")
		if !ok {
			target = port
		}
		spec["ports"] = []interface{}{
			map[string]interface{}{"port": port, "targetPort": target, "protocol": "TCP"},
		}
	}
	if rec.Bool("headless") {
		spec["clusterIP"] = "None"
	} else if typ := rec.String("service_type"); typ != "" {
		spec["type"] = typ
	}
	u.Object["spec"] = spec
	return u
}

func (b *objectBuilder) ingress(rec ir.Record) (*unstructured.Unstructured, error) {
	backend, ok := rec.Fields["backend"].(ir.Target)
	if !ok {
		return nil, fmt.Errorf("route has no backend")
	}
	u := b.newObject(rec, "networking.k8s.io/v1", "Ingress", true)

	svc := map[string]interface{}{"name": b.name(backend.Name)}
	if port, ok := rec.Int("backend_port"); ok {
		svc["port"] = map[string]interface{}{"number": port}
	}
	path := rec.String("path")
	if path == "" {
		path = "/"
	}
	rule := map[string]interface{}{
		"http": map[string]interface{}{
			"paths": []interface{}{
				map[string]interface{}{
					"path":     path,
					"pathType": "Prefix",
					"backend":  map[string]interface{}{"service": svc},
				},
			},
		},
	}
	host := rec.String("host")
	if host != "" {
		rule["host"] = host
	}
	spec := map[string]interface{}{"rules": []interface{}{rule}}
	if class := rec.String("class_name"); class != "" {
		spec["ingressClassName"] = class
	}
	if secret := rec.String("tls_secret"); secret != "" {
		tls := map[string]interface{}{"secretName": secret}
		if host != "" {
			tls["hosts"] = []interface{}{host}
		}
		spec["tls"] = []interface{}{tls}
	}
	u.Object["spec"] = spec
	return u, nil
}

func (b *objectBuilder) secret(rec ir.Record) *unstructured.Unstructured {
	u := b.newObject(rec, "v1", "Secret", true)
	typ := rec.String("secret_type")
	if typ == "" {
		typ = "Opaque"
	}
	u.Object["type"] = typ
	u.Object["stringData"] = stringMap(rec.StringMap("data"))
	return u
}

func (b *objectBuilder) configMap(rec ir.Record) *unstructured.Unstructured {
	u := b.newObject(rec, "v1", "ConfigMap", true)
	u.Object["data"] = stringMap(rec.StringMap("data"))
	return u
}

func (b *objectBuilder) serviceAccount(rec ir.Record) *unstructured.Unstructured {
	u := b.newObject(rec, "v1", "ServiceAccount", true)
	if rec.Has("automount") {
		u.Object["automountServiceAccountToken"] = rec.Bool("automount")
	}
	return u
}

func (b *objectBuilder) role(rec ir.Record) *unstructured.Unstructured {
	cluster := rec.String("scope") == "cluster"
	kind := "Role"
	if cluster {
		kind = "ClusterRole"
	}
	u := b.newObject(rec, "rbac.authorization.k8s.io/v1", kind, !cluster)

	rules, _ := rec.Fields["rules"].([]map[string]any)
	out := make([]interface{}, 0, len(rules))
	for _, r := range rules {
		groups, _ := r["api_groups"].([]string)
		if len(groups) == 0 {
			groups = []string{""}
		}
		rule := map[string]interface{}{"apiGroups": stringsToAny(groups)}
		for key, name := range map[string]string{
			"resources":      "resources",
			"verbs":          "verbs",
			"resource_names": "resourceNames",
		} {
			if l, _ := r[key].([]string); len(l) > 0 {
				rule[name] = stringsToAny(l)
			}
		}
		out = append(out, rule)
	}
	u.Object["rules"] = out
	return u
}

func (b *objectBuilder) roleBinding(rec ir.Record) (*unstructured.Unstructured, error) {
	role, ok := rec.Fields["role"].(ir.Target)
	if !ok {
		return nil, fmt.Errorf("binding has no role")
	}
	cluster := rec.String("scope") == "cluster"
	kind := "RoleBinding"
	if cluster {
		kind = "ClusterRoleBinding"
	}
	u := b.newObject(rec, "rbac.authorization.k8s.io/v1", kind, !cluster)
	u.Object["roleRef"] = map[string]interface{}{
		"apiGroup": "rbac.authorization.k8s.io",
		"kind":     string(role.Kind),
		"name":     b.name(role.Name),
	}
	subjects, _ := rec.Fields["subjects"].([]ir.Target)
	out := make([]interface{}, 0, len(subjects))
	for _, s := range subjects {
		ns := s.Namespace
		if ns == "" {
			ns = model.DefaultNamespace
		}
		out = append(out, map[string]interface{}{
			"kind":      "ServiceAccount",
			"name":      b.name(s.Name),
			"namespace": ns,
		})
	}
	u.Object["subjects"] = out
	return u, nil
}

func (b *objectBuilder) networkPolicy(rec ir.Record) *unstructured.Unstructured {
	u := b.newObject(rec, "networking.k8s.io/v1", "NetworkPolicy", true)

	targets, _ := rec.Fields["selector"].([]ir.Target)
	podSelector := map[string]interface{}{}
	switch len(targets) {
	case 0:
	case 1:
		podSelector["matchLabels"] = stringMap(selectorLabels(targets[0].Name, targets[0].Kind))
	default:
		names := make([]string, len(targets))
		for i, t := range targets {
			names[i] = t.Name
		}
		podSelector["matchExpressions"] = []interface{}{
			map[string]interface{}{
				"key":      labelName,
				"operator": "In",
				"values":   stringsToAny(names),
			},
		}
	}

	types := rec.StringList("policy_types")
	if len(types) == 0 {
		types = []string{"Ingress"}
	}
	spec := map[string]interface{}{
		"podSelector": podSelector,
		"policyTypes": stringsToAny(types),
	}

	rule := make(map[string]interface{})
	if nss := rec.StringList("allow_namespaces"); len(nss) > 0 {
		from := make([]interface{}, len(nss))
		for i, ns := range nss {
			from[i] = map[string]interface{}{
				"namespaceSelector": map[string]interface{}{
					"matchLabels": map[string]interface{}{"kubernetes.io/metadata.name": ns},
				},
			}
		}
		rule["from"] = from
	}
	if ports, _ := rec.Fields["ports"].([]int64); len(ports) > 0 {
		out := make([]interface{}, len(ports))
		for i, p := range ports {
			out[i] = map[string]interface{}{"port": p, "protocol": "TCP"}
		}
		rule["ports"] = out
	}
	if len(rule) > 0 {
		spec["ingress"] = []interface{}{rule}
	}
	u.Object["spec"] = spec
	return u
}

func (b *objectBuilder) custom(rec ir.Record) *unstructured.Unstructured {
	u := b.newObject(rec, rec.String("api_version"), rec.String("resource_kind"), true)
	if spec, ok := rec.Fields["spec"].(map[string]any); ok {
		u.Object["spec"] = spec
	}
	return u
}
