package generator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/document"
	"github.com/withobsrvr/stackctl/internal/ir"
	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/registry"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

// DockerComposeGenerator generates Docker Compose configuration
type DockerComposeGenerator struct{}

// DockerComposeConfig represents the structure of a Docker Compose file
type DockerComposeConfig struct {
	Name     string                          `yaml:"name,omitempty"`
	Version  string                          `yaml:"version"`
	Services map[string]DockerComposeService `yaml:"services"`
	Volumes  map[string]DockerComposeVolume  `yaml:"volumes"`
	Networks map[string]DockerComposeNetwork `yaml:"networks"`
	Secrets  map[string]DockerComposeFileRef `yaml:"secrets"`
	Configs  map[string]DockerComposeFileRef `yaml:"configs"`
}

// DockerComposeService represents a service in Docker Compose
type DockerComposeService struct {
	Image         string               `yaml:"image"`
	ContainerName string               `yaml:"container_name,omitempty"`
	Entrypoint    []string             `yaml:"entrypoint,omitempty"`
	Command       []string             `yaml:"command,omitempty"`
	Environment   map[string]string    `yaml:"environment,omitempty"`
	EnvFile       []string             `yaml:"env_file,omitempty"`
	Ports         []string             `yaml:"ports,omitempty"`
	Expose        []string             `yaml:"expose,omitempty"`
	Volumes       []string             `yaml:"volumes,omitempty"`
	DependsOn     []string             `yaml:"depends_on,omitempty"`
	Networks      []string             `yaml:"networks,omitempty"`
	Secrets       []string             `yaml:"secrets,omitempty"`
	Configs       []string             `yaml:"configs,omitempty"`
	HealthCheck   *DockerHealthCheck   `yaml:"healthcheck,omitempty"`
	Deploy        *DockerComposeDeploy `yaml:"deploy,omitempty"`
	Restart       string               `yaml:"restart,omitempty"`
	Labels        map[string]string    `yaml:"labels,omitempty"`
}

// DockerHealthCheck represents a Docker health check configuration
type DockerHealthCheck struct {
	Test        []string `yaml:"test"`
	Interval    string   `yaml:"interval,omitempty"`
	Timeout     string   `yaml:"timeout,omitempty"`
	Retries     int      `yaml:"retries,omitempty"`
	StartPeriod string   `yaml:"start_period,omitempty"`
}

// DockerComposeDeploy holds replica and resource settings
type DockerComposeDeploy struct {
	Replicas  *int64                  `yaml:"replicas,omitempty"`
	Resources *DockerComposeResources `yaml:"resources,omitempty"`
}

// DockerComposeResources holds limits and reservations
type DockerComposeResources struct {
	Limits       *DockerComposeResourceSpec `yaml:"limits,omitempty"`
	Reservations *DockerComposeResourceSpec `yaml:"reservations,omitempty"`
}

// DockerComposeResourceSpec is a cpu/memory pair
type DockerComposeResourceSpec struct {
	CPUs   string `yaml:"cpus,omitempty"`
	Memory string `yaml:"memory,omitempty"`
}

// DockerComposeNetwork represents a network in Docker Compose
type DockerComposeNetwork struct {
	Driver string `yaml:"driver,omitempty"`
}

// DockerComposeVolume represents a named volume
type DockerComposeVolume struct {
	Labels map[string]string `yaml:"labels,omitempty"`
}

// DockerComposeFileRef is a file-backed secret or config
type DockerComposeFileRef struct {
	File string `yaml:"file"`
}

const (
	composeFile       = "docker-compose.yml"
	labelComposeKind  = "com.stackctl.kind"
	labelComposeStack = "com.stackctl.stack"
	labelVolumeSize   = "com.stackctl.size"
)

// NewDockerComposeGenerator creates a new Docker Compose generator
func NewDockerComposeGenerator() *DockerComposeGenerator {
	return &DockerComposeGenerator{}
}

// Format implements Generator
func (g *DockerComposeGenerator) Format() model.Format {
	return model.DockerCompose
}

// Generate produces docker-compose.yml plus one .env file per secret and
// config store
func (g *DockerComposeGenerator) Generate(records []ir.Record, exclusions ir.Exclusions, opts model.TranslationOptions) (*document.Tree, error) {
	opts = opts.WithDefaults()
	logger.Debug("Generating Docker Compose configuration", zap.Int("records", len(records)))

	recs := applicable(model.DockerCompose, records, exclusions)
	services, err := serviceNames(recs)
	if err != nil {
		return nil, err
	}

	config := DockerComposeConfig{
		Name:     sanitizeResourceName(opts.ProjectName),
		Version:  opts.ComposeVersion,
		Services: make(map[string]DockerComposeService),
		Volumes:  make(map[string]DockerComposeVolume),
		Networks: make(map[string]DockerComposeNetwork),
		Secrets:  make(map[string]DockerComposeFileRef),
		Configs:  make(map[string]DockerComposeFileRef),
	}
	tree := &document.Tree{Format: model.DockerCompose, Root: "docker-compose"}
	var envFiles []document.File

	stores := make(map[string]string)
	owners := map[ir.ResourceKind]map[string]string{ir.SecretStore: {}, ir.ConfigStore: {}}
	for _, rec := range recs {
		if byName, ok := owners[rec.Kind]; ok {
			if owner, taken := byName[rec.Name]; taken {
				return nil, fmt.Errorf("docker compose: %s name %q is used by both %s and %s",
					storeNoun(rec.Kind), rec.Name, owner, rec.SourceNodeID)
			}
			byName[rec.Name] = string(rec.SourceNodeID)
		}
		switch rec.Kind {
		case ir.SecretStore:
			p := "secrets/" + rec.Name + ".env"
			config.Secrets[rec.Name] = DockerComposeFileRef{File: "./" + p}
			stores[rec.ID] = "./" + p
			envFiles = append(envFiles, document.File{Path: p, Encoding: document.Text, Body: envFile(rec.StringMap("data"))})
		case ir.ConfigStore:
			p := "configs/" + rec.Name + ".env"
			config.Configs[rec.Name] = DockerComposeFileRef{File: "./" + p}
			stores[rec.ID] = "./" + p
			envFiles = append(envFiles, document.File{Path: p, Encoding: document.Text, Body: envFile(rec.StringMap("data"))})
		}
	}

	for _, rec := range recs {
		switch rec.Kind {
		case ir.Workload, ir.OneShotTask:
		case ir.SecretStore, ir.ConfigStore:
			continue
		default:
			logger.Warn("Record has no Docker Compose equivalent",
				zap.String("record", rec.ID),
				zap.String("kind", string(rec.Kind)))
			continue
		}

		name := services[rec.ID]
		service := g.service(rec, opts, services, stores)
		if size, ok := rec.Int("storage"); ok {
			volume := name + "-data"
			mount := rec.String("mount_path")
			if mount == "" {
				mount = defaultMountPath
			}
			service.Volumes = append(service.Volumes, volume+":"+mount)
			config.Volumes[volume] = DockerComposeVolume{Labels: map[string]string{labelVolumeSize: ir.FormatBytes(size)}}
		}
		for _, n := range service.Networks {
			config.Networks[n] = DockerComposeNetwork{Driver: "bridge"}
		}
		config.Services[name] = service
	}

	tree.Add(document.File{Path: composeFile, Encoding: document.YAML, Documents: []any{config}})
	for _, f := range envFiles {
		tree.Add(f)
	}
	return tree, nil
}

func (g *DockerComposeGenerator) service(rec ir.Record, opts model.TranslationOptions, services, stores map[string]string) DockerComposeService {
	service := DockerComposeService{
		Image:         registry.WithRegistryPrefix(rec.String("image"), opts.RegistryPrefix),
		ContainerName: rec.String("container_name"),
		Entrypoint:    rec.StringList("command"),
		Command:       rec.StringList("args"),
		Ports:         rec.StringList("port_mapping"),
		Networks:      rec.StringList("networks"),
		Restart:       getRestartPolicy(rec),
		Labels: map[string]string{
			labelComposeKind:  strings.ToLower(string(rec.SourceKind)),
			labelComposeStack: opts.ProjectName,
		},
	}
	for k, v := range opts.Labels {
		service.Labels[k] = v
	}
	for k, v := range rec.StringMap("labels") {
		service.Labels[k] = v
	}

	env := make(map[string]string)
	for k, v := range rec.StringMap("env") {
		env[k] = v
	}
	conns, _ := rec.Fields["connections"].([]ir.Connection)
	for _, conn := range conns {
		prefix := envName(conn.Name)
		env[prefix+"_HOST"] = sanitizeServiceName(conn.Workload)
		port := conn.TargetPort
		if port == 0 {
			port = conn.Port
		}
		if port != 0 {
			env[prefix+"_PORT"] = strconv.FormatInt(port, 10)
		}
	}
	if len(env) > 0 {
		service.Environment = env
	}

	atts, _ := rec.Fields["attachments"].([]ir.Attachment)
	for _, att := range atts {
		file, ok := stores[att.RecordID]
		if !ok {
			continue
		}
		service.EnvFile = append(service.EnvFile, file)
		if att.Kind == ir.SecretStore {
			service.Secrets = append(service.Secrets, att.Name)
		} else {
			service.Configs = append(service.Configs, att.Name)
		}
	}

	for _, dep := range rec.DependsOn {
		if name, ok := services[dep]; ok {
			service.DependsOn = append(service.DependsOn, name)
		}
	}

	port, hasPort := rec.Int("port")
	if hasPort {
		service.Expose = []string{strconv.FormatInt(port, 10)}
	}
	if path := rec.String("health_path"); path != "" && hasPort {
		interval, ok := rec.Int("health_interval")
		if !ok {
			interval = defaultHealthInterval
		}
		service.HealthCheck = &DockerHealthCheck{
			Test:        []string{"CMD", "wget", "--quiet", "--tries=1", "--spider", fmt.Sprintf("http://localhost:%d%s", port, path)},
			Interval:    fmt.Sprintf("%ds", interval),
			Timeout:     "5s",
			Retries:     3,
			StartPeriod: "5s",
		}
	}
	service.Deploy = deploySpec(rec)
	return service
}

func deploySpec(rec ir.Record) *DockerComposeDeploy {
	deploy := &DockerComposeDeploy{}
	if n, ok := rec.Int("replicas"); ok {
		deploy.Replicas = &n
	}
	reservations := resourceSpec(rec, "cpu", "memory")
	limits := resourceSpec(rec, "cpu_limit", "memory_limit")
	if reservations != nil || limits != nil {
		deploy.Resources = &DockerComposeResources{Limits: limits, Reservations: reservations}
	}
	if deploy.Replicas == nil && deploy.Resources == nil {
		return nil
	}
	return deploy
}

func resourceSpec(rec ir.Record, cpuField, memoryField string) *DockerComposeResourceSpec {
	spec := DockerComposeResourceSpec{}
	if m, ok := rec.Int(cpuField); ok {
		spec.CPUs = strconv.FormatFloat(float64(m)/1000, 'f', -1, 64)
	}
	if b, ok := rec.Int(memoryField); ok {
		spec.Memory = composeBytes(b)
	}
	if spec == (DockerComposeResourceSpec{}) {
		return nil
	}
	return &spec
}

// composeBytes renders a byte count in the unit suffixes Compose parses
func composeBytes(b int64) string {
	switch {
	case b >= units.GiB && b%units.GiB == 0:
		return fmt.Sprintf("%dg", b/units.GiB)
	case b >= units.MiB && b%units.MiB == 0:
		return fmt.Sprintf("%dm", b/units.MiB)
	case b >= units.KiB && b%units.KiB == 0:
		return fmt.Sprintf("%dk", b/units.KiB)
	}
	return strconv.FormatInt(b, 10)
}

// serviceNames maps workload and task record ids to Compose service names.
// Compose has no namespaces, so equal names in two namespaces are an error.
func serviceNames(recs []ir.Record) (map[string]string, error) {
	names := make(map[string]string)
	owners := make(map[string]string)
	for _, rec := range recs {
		if rec.Kind != ir.Workload && rec.Kind != ir.OneShotTask {
			continue
		}
		name := sanitizeServiceName(rec.Name)
		if owner, ok := owners[name]; ok {
			return nil, fmt.Errorf("docker compose: service name %q is used by both %s and %s", name, owner, rec.SourceNodeID)
		}
		owners[name] = string(rec.SourceNodeID)
		names[rec.ID] = name
	}
	return names, nil
}

func storeNoun(kind ir.ResourceKind) string {
	if kind == ir.SecretStore {
		return "secret"
	}
	return "config"
}

// envFile renders KEY=value lines sorted by key. Values with spaces,
// quotes or newlines are double-quoted.
func envFile(data map[string]string) []byte {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := data[k]
		if strings.ContainsAny(v, " \t\n\"'#$\\") {
			v = strconv.Quote(v)
		}
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}
	return []byte(b.String())
}

// sanitizeServiceName sanitizes a name to be used as a Docker Compose service name
func sanitizeServiceName(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return '-'
	}, name)
}

// getRestartPolicy returns the restart policy for a service
func getRestartPolicy(rec ir.Record) string {
	if rec.Kind == ir.OneShotTask {
		return "no"
	}
	if policy := rec.String("restart_policy"); policy != "" {
		return policy
	}
	return "unless-stopped"
}
