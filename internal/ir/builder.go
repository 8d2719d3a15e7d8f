package ir

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/core"
	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

// UnresolvedAttachmentError is returned when an attached node produced no
// SecretStore or ConfigStore record
type UnresolvedAttachmentError struct {
	NodeID     model.NodeID
	Attachment model.NodeID
}

// Error implements the error interface
func (e *UnresolvedAttachmentError) Error() string {
	return fmt.Sprintf("attachment %s of %s did not produce a secret or config record", e.Attachment, e.NodeID)
}

// serviceProps shape the secondary network service record of an App, not
// its workload
var serviceProps = map[string]bool{
	"expose":       true,
	"service_port": true,
	"service_type": true,
}

type builder struct {
	g           *model.Graph
	records     []Record
	index       map[string]int
	byNode      map[model.NodeID][]string
	groupLabels map[model.NodeID]map[string]string
	routed      map[model.NodeID]bool
}

// Build lowers the graph into records, visiting nodes in resolved order
func Build(g *model.Graph, order *core.Order) (*IR, error) {
	b := &builder{
		g:           g,
		index:       make(map[string]int),
		byNode:      make(map[model.NodeID][]string),
		groupLabels: collectGroupLabels(g),
		routed:      collectRouted(g),
	}

	for _, id := range order.IDs() {
		node, ok := g.Node(id)
		if !ok {
			return nil, &model.UnknownNodeError{ID: id}
		}
		if err := b.lower(node); err != nil {
			return nil, err
		}
	}

	logger.Debug("Built IR",
		zap.String("graph", g.Name),
		zap.Int("records", len(b.records)))

	return &IR{records: b.records, index: b.index}, nil
}

// collectGroupLabels gathers AppGroup labels for each bound member. Later
// groups win on key conflicts.
func collectGroupLabels(g *model.Graph) map[model.NodeID]map[string]string {
	out := make(map[model.NodeID]map[string]string)
	for _, n := range g.Nodes() {
		if n.Kind != model.KindAppGroup {
			continue
		}
		labels := n.Properties.StringMap("labels")
		if len(labels) == 0 {
			continue
		}
		for _, rel := range n.Relationships {
			if rel.Type != model.Binds {
				continue
			}
			if out[rel.To] == nil {
				out[rel.To] = make(map[string]string)
			}
			for k, v := range labels {
				out[rel.To][k] = v
			}
		}
	}
	return out
}

// collectRouted marks the nodes an Ingress exposes directly. Each needs its
// own reachable service to act as the route backend.
func collectRouted(g *model.Graph) map[model.NodeID]bool {
	out := make(map[model.NodeID]bool)
	for _, n := range g.Nodes() {
		if n.Kind != model.KindIngress {
			continue
		}
		for _, rel := range n.Relationships {
			if rel.Type == model.Exposes {
				out[rel.To] = true
				break
			}
		}
	}
	return out
}

func (b *builder) add(rec Record) {
	b.index[rec.ID] = len(b.records)
	b.records = append(b.records, rec)
	b.byNode[rec.SourceNodeID] = append(b.byNode[rec.SourceNodeID], rec.ID)
}

func (b *builder) primary(id model.NodeID) (string, bool) {
	ids := b.byNode[id]
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

func newRecord(node model.ComponentNode, kind ResourceKind, n int) Record {
	return Record{
		ID:           RecordID(node.ID, kind, n),
		SourceNodeID: node.ID,
		SourceKind:   node.Kind,
		Name:         node.Name,
		Namespace:    node.Namespace,
		Kind:         kind,
		Fields:       make(map[string]any),
	}
}

func targetOf(n model.ComponentNode) Target {
	return Target{Name: n.Name, Namespace: n.Namespace, Kind: n.Kind}
}

// lowerProperties copies node properties into record fields, converting
// quantities and durations to canonical units
func lowerProperties(node model.ComponentNode, rec *Record, skip map[string]bool) error {
	for _, key := range node.Properties.Keys() {
		if skip[key] {
			continue
		}
		spec, ok := model.LookupSpec(node.Kind, key)
		if !ok {
			continue
		}
		value, _ := node.Properties.Get(key)
		converted, err := canonical(spec, value)
		if err != nil {
			return &model.InvalidPropertyError{NodeID: node.ID, Key: key, Value: value, Reason: err.Error()}
		}
		rec.Fields[key] = converted
		if spec.Configurable {
			rec.Configurable = append(rec.Configurable, key)
		}
	}
	return nil
}

func canonical(spec model.PropertySpec, value any) (any, error) {
	switch spec.Type {
	case model.TypeCPU:
		return Millicores(value.(string))
	case model.TypeMemory, model.TypeStorage:
		return Bytes(value.(string))
	case model.TypeDuration:
		return Seconds(value)
	}
	return cloneField(value), nil
}

func (b *builder) lower(node model.ComponentNode) error {
	logger.Debug("Lowering node",
		zap.String("node", string(node.ID)),
		zap.String("kind", string(node.Kind)))

	switch node.Kind {
	case model.KindApp, model.KindStatefulApp:
		return b.lowerLongRunning(node)
	case model.KindJob:
		return b.lowerTask(node, OneShotTask)
	case model.KindCronJob:
		return b.lowerTask(node, ScheduledTask)
	case model.KindSecret:
		return b.lowerSimple(node, SecretStore)
	case model.KindConfigMap:
		return b.lowerSimple(node, ConfigStore)
	case model.KindServiceAccount:
		return b.lowerSimple(node, Identity)
	case model.KindCustomResource:
		return b.lowerSimple(node, CustomObject)
	case model.KindService:
		return b.lowerService(node)
	case model.KindIngress:
		return b.lowerIngress(node)
	case model.KindRole, model.KindClusterRole:
		return b.lowerPermission(node)
	case model.KindRoleBinding:
		return b.lowerBinding(node)
	case model.KindNetworkPolicy:
		return b.lowerTrafficPolicy(node)
	case model.KindAppGroup:
		// groups only contribute labels to their members
		return nil
	}
	return fmt.Errorf("no lowering rule for kind %s", node.Kind)
}

// link adds dependsOn edges for every relationship and attachment of node
// to rec, and fills the workload-only fields when withRefs is set
func (b *builder) link(node model.ComponentNode, rec *Record, withRefs bool) error {
	var attachments []Attachment
	for _, ref := range node.Attachments {
		target, ok := b.g.Lookup(ref)
		if !ok {
			return &model.UnknownNodeError{ID: ref.ID(), Referrer: node.ID}
		}
		found := false
		for _, id := range b.byNode[target.ID] {
			dep := b.records[b.index[id]]
			if dep.Kind != SecretStore && dep.Kind != ConfigStore {
				continue
			}
			found = true
			rec.DependsOn = appendUnique(rec.DependsOn, id)
			attachments = append(attachments, Attachment{RecordID: id, Kind: dep.Kind, Name: dep.Name})
		}
		if !found {
			return &UnresolvedAttachmentError{NodeID: node.ID, Attachment: target.ID}
		}
	}

	var connections []Connection
	for _, rel := range node.Relationships {
		if dep, ok := b.primary(rel.To); ok {
			rec.DependsOn = appendUnique(rec.DependsOn, dep)
		}
		if !withRefs {
			continue
		}
		target, ok := b.g.Node(rel.To)
		if !ok {
			return &model.UnknownNodeError{ID: rel.To, Referrer: node.ID}
		}
		switch {
		case rel.Type == model.Binds && target.Kind == model.KindServiceAccount:
			rec.Fields["service_account"] = target.Name
		case rel.Type == model.ConnectsTo:
			connections = append(connections, b.connection(target))
		}
	}

	if withRefs && len(attachments) > 0 {
		rec.Fields["attachments"] = attachments
	}
	if withRefs && len(connections) > 0 {
		rec.Fields["connections"] = connections
	}
	if labels, ok := b.groupLabels[node.ID]; ok {
		merged := make(map[string]string, len(labels))
		for k, v := range labels {
			merged[k] = v
		}
		for k, v := range rec.StringMap("labels") {
			merged[k] = v
		}
		rec.Fields["labels"] = merged
	}
	return nil
}

// connection resolves the endpoint of a connects_to target
func (b *builder) connection(target model.ComponentNode) Connection {
	conn := Connection{Name: target.Name, Service: target.Name, Workload: target.Name}
	conn.Port = servicePort(target)
	conn.TargetPort, _ = target.Properties.Int("port")
	if target.Kind != model.KindService {
		return conn
	}
	if backing, ok := b.exposedTarget(target); ok {
		conn.Workload = backing.Name
		if conn.Port == 0 {
			conn.Port = servicePort(backing)
		}
		if p, ok := target.Properties.Int("target_port"); ok {
			conn.TargetPort = p
		} else if p, ok := backing.Properties.Int("port"); ok {
			conn.TargetPort = p
		}
	}
	return conn
}

// servicePort is the port clients use to reach a node
func servicePort(n model.ComponentNode) int64 {
	if p, ok := n.Properties.Int("service_port"); ok {
		return p
	}
	p, _ := n.Properties.Int("port")
	return p
}

func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}

func (b *builder) lowerLongRunning(node model.ComponentNode) error {
	rec := newRecord(node, Workload, -1)
	if err := lowerProperties(node, &rec, serviceProps); err != nil {
		return err
	}
	if err := b.link(node, &rec, true); err != nil {
		return err
	}
	b.add(rec)

	exposed := node.Properties.Bool("expose") || node.Properties.Has("service_port") || b.routed[node.ID]
	if !exposed && node.Kind != model.KindStatefulApp {
		return nil
	}

	svc := newRecord(node, NetworkService, -1)
	if p := servicePort(node); p != 0 {
		svc.Fields["port"] = p
	}
	if p, ok := node.Properties.Int("port"); ok {
		svc.Fields["target_port"] = p
	}
	if st := node.Properties.String("service_type"); st != "" {
		svc.Fields["service_type"] = st
	}
	svc.Fields["selector"] = targetOf(node)
	svc.Fields["headless"] = !exposed
	svc.DependsOn = []string{rec.ID}
	b.add(svc)
	return nil
}

func (b *builder) lowerTask(node model.ComponentNode, kind ResourceKind) error {
	rec := newRecord(node, kind, -1)
	if err := lowerProperties(node, &rec, nil); err != nil {
		return err
	}
	if err := b.link(node, &rec, true); err != nil {
		return err
	}
	b.add(rec)
	return nil
}

func (b *builder) lowerSimple(node model.ComponentNode, kind ResourceKind) error {
	rec := newRecord(node, kind, -1)
	if err := lowerProperties(node, &rec, nil); err != nil {
		return err
	}
	if err := b.link(node, &rec, false); err != nil {
		return err
	}
	b.add(rec)
	return nil
}

// exposedTarget returns the first exposes target of node
func (b *builder) exposedTarget(node model.ComponentNode) (model.ComponentNode, bool) {
	for _, rel := range node.Relationships {
		if rel.Type == model.Exposes {
			return b.g.Node(rel.To)
		}
	}
	return model.ComponentNode{}, false
}

func (b *builder) lowerService(node model.ComponentNode) error {
	rec := newRecord(node, NetworkService, -1)
	if err := lowerProperties(node, &rec, nil); err != nil {
		return err
	}
	target, ok := b.exposedTarget(node)
	if ok {
		rec.Fields["selector"] = targetOf(target)
		if !rec.Has("port") {
			if p := servicePort(target); p != 0 {
				rec.Fields["port"] = p
			}
		}
		if !rec.Has("target_port") {
			if p, ok := target.Properties.Int("port"); ok {
				rec.Fields["target_port"] = p
			}
		}
	} else {
		rec.Fields["selector"] = targetOf(node)
	}
	if !rec.Has("target_port") {
		if p, ok := rec.Int("port"); ok {
			rec.Fields["target_port"] = p
		}
	}
	rec.Fields["headless"] = false
	if err := b.link(node, &rec, false); err != nil {
		return err
	}
	b.add(rec)
	return nil
}

type routePair struct {
	host string
	path string
}

func routePairs(node model.ComponentNode) []routePair {
	if rules := node.Properties.MapList("rules"); len(rules) > 0 {
		pairs := make([]routePair, 0, len(rules))
		for _, r := range rules {
			host, _ := r["host"].(string)
			path, _ := r["path"].(string)
			if path == "" {
				path = "/"
			}
			pairs = append(pairs, routePair{host: host, path: path})
		}
		return pairs
	}
	host := node.Properties.String("host")
	paths := node.Properties.StringList("paths")
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	pairs := make([]routePair, 0, len(paths))
	for _, p := range paths {
		pairs = append(pairs, routePair{host: host, path: p})
	}
	return pairs
}

func (b *builder) lowerIngress(node model.ComponentNode) error {
	pairs := routePairs(node)
	target, hasBackend := b.exposedTarget(node)

	for i, pair := range pairs {
		n := i
		if len(pairs) == 1 {
			n = -1
		}
		rec := newRecord(node, ExternalRoute, n)
		if n >= 0 {
			rec.Name = fmt.Sprintf("%s-%d", node.Name, i)
		}
		if pair.host != "" {
			rec.Fields["host"] = pair.host
		}
		rec.Fields["path"] = pair.path
		for _, key := range []string{"tls_secret", "class_name"} {
			if v := node.Properties.String(key); v != "" {
				rec.Fields[key] = v
			}
		}
		if hasBackend {
			rec.Fields["backend"] = Target{Name: target.Name, Namespace: target.Namespace, Kind: target.Kind}
			port, ok := node.Properties.Int("port")
			if !ok {
				port = servicePort(target)
			}
			if port != 0 {
				rec.Fields["backend_port"] = port
			}
		}
		if err := b.link(node, &rec, false); err != nil {
			return err
		}
		b.add(rec)
	}
	return nil
}

func (b *builder) lowerPermission(node model.ComponentNode) error {
	rec := newRecord(node, Permission, -1)
	if err := lowerProperties(node, &rec, nil); err != nil {
		return err
	}
	rec.Fields["scope"] = "namespace"
	if node.Kind == model.KindClusterRole {
		rec.Fields["scope"] = "cluster"
	}
	if err := b.link(node, &rec, false); err != nil {
		return err
	}
	b.add(rec)
	return nil
}

func (b *builder) lowerBinding(node model.ComponentNode) error {
	rec := newRecord(node, PermissionBinding, -1)
	scope := "namespace"
	if node.Properties.Bool("cluster_wide") {
		scope = "cluster"
	}
	rec.Fields["scope"] = scope

	var subjects []Target
	for _, rel := range node.Relationships {
		if rel.Type != model.Binds {
			continue
		}
		target, ok := b.g.Node(rel.To)
		if !ok {
			return &model.UnknownNodeError{ID: rel.To, Referrer: node.ID}
		}
		switch target.Kind {
		case model.KindRole, model.KindClusterRole:
			if !rec.Has("role") {
				rec.Fields["role"] = targetOf(target)
			}
		case model.KindServiceAccount:
			subjects = append(subjects, targetOf(target))
		}
	}
	if len(subjects) > 0 {
		rec.Fields["subjects"] = subjects
	}
	if err := b.link(node, &rec, false); err != nil {
		return err
	}
	b.add(rec)
	return nil
}

func (b *builder) lowerTrafficPolicy(node model.ComponentNode) error {
	rec := newRecord(node, TrafficPolicy, -1)
	if err := lowerProperties(node, &rec, nil); err != nil {
		return err
	}
	var selector []Target
	for _, rel := range node.Relationships {
		if rel.Type != model.Binds {
			continue
		}
		if target, ok := b.g.Node(rel.To); ok {
			selector = append(selector, targetOf(target))
		}
	}
	if len(selector) > 0 {
		rec.Fields["selector"] = selector
	}
	if err := b.link(node, &rec, false); err != nil {
		return err
	}
	b.add(rec)
	return nil
}
