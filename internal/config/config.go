package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/withobsrvr/stackctl/internal/model"
)

const (
	// EnvPrefix prefixes environment variables that override config keys,
	// e.g. STACKCTL_KUBERNETES_SPLIT_FILES
	EnvPrefix = "STACKCTL"

	// DefaultOutputDir is where generated trees go when no directory is given
	DefaultOutputDir = "out"
)

// Config is the stackctl configuration assembled from the config file,
// environment and flags
type Config struct {
	LogLevel       string            `mapstructure:"log_level"`
	Strict         bool              `mapstructure:"strict"`
	OutputDir      string            `mapstructure:"output_dir"`
	Formats        []string          `mapstructure:"formats"`
	ResourcePrefix string            `mapstructure:"resource_prefix"`
	RegistryPrefix string            `mapstructure:"registry_prefix"`
	Labels         map[string]string `mapstructure:"labels"`

	Kubernetes KubernetesConfig `mapstructure:"kubernetes"`
	Compose    ComposeConfig    `mapstructure:"compose"`
	Helm       HelmConfig       `mapstructure:"helm"`
	Kustomize  KustomizeConfig  `mapstructure:"kustomize"`
	Terraform  TerraformConfig  `mapstructure:"terraform"`
	History    HistoryConfig    `mapstructure:"history"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// KubernetesConfig controls Kubernetes manifest layout
type KubernetesConfig struct {
	SplitFiles       bool `mapstructure:"split_files"`
	CreateNamespaces bool `mapstructure:"create_namespaces"`
}

// ComposeConfig controls the Docker Compose file
type ComposeConfig struct {
	Version string `mapstructure:"version"`
}

// HelmConfig controls Chart.yaml
type HelmConfig struct {
	ChartVersion string `mapstructure:"chart_version"`
	AppVersion   string `mapstructure:"app_version"`
}

// KustomizeConfig lists overlays generated on top of the base
type KustomizeConfig struct {
	Overlays []string `mapstructure:"overlays"`
}

// TerraformConfig controls the Terraform module
type TerraformConfig struct {
	ProviderSource string `mapstructure:"provider_source"`
}

// HistoryConfig controls the emission ledger
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig controls the metrics textfile
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Dir returns the stackctl config directory
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stackctl"
	}
	return filepath.Join(home, ".config", "stackctl")
}

// Configure registers defaults and environment overrides on v
func Configure(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("strict", false)
	v.SetDefault("output_dir", DefaultOutputDir)
	v.SetDefault("formats", []string{string(model.Kubernetes), string(model.DockerCompose)})
	v.SetDefault("resource_prefix", "")
	v.SetDefault("registry_prefix", "")
	v.SetDefault("labels", map[string]string{})
	v.SetDefault("kubernetes.split_files", false)
	v.SetDefault("kubernetes.create_namespaces", false)
	v.SetDefault("compose.version", "3.8")
	v.SetDefault("helm.chart_version", "0.1.0")
	v.SetDefault("helm.app_version", "1.0.0")
	v.SetDefault("kustomize.overlays", []string{})
	v.SetDefault("terraform.provider_source", "hashicorp/kubernetes")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(Dir(), "history.db"))
	v.SetDefault("metrics.textfile", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load unmarshals and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and reports every problem found
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}

	if _, err := model.ParseFormats(c.Formats); err != nil {
		errs = append(errs, fmt.Errorf("formats: %w", err))
	}

	if c.ResourcePrefix != "" {
		if msgs := validation.IsDNS1123Label(strings.TrimSuffix(c.ResourcePrefix, "-")); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("resource_prefix: %s", strings.Join(msgs, "; ")))
		}
	}

	for _, key := range model.SortedKeys(c.Labels) {
		if msgs := validation.IsQualifiedName(key); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("labels: key %q: %s", key, strings.Join(msgs, "; ")))
		}
		if msgs := validation.IsValidLabelValue(c.Labels[key]); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("labels: value of %q: %s", key, strings.Join(msgs, "; ")))
		}
	}

	for _, overlay := range c.Kustomize.Overlays {
		if msgs := validation.IsDNS1123Label(overlay); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("kustomize.overlays: %q: %s", overlay, strings.Join(msgs, "; ")))
		}
	}

	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		errs = append(errs, errors.New("history.path: must be set when history is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// OutputFormats parses the configured formats
func (c *Config) OutputFormats() ([]model.Format, error) {
	return model.ParseFormats(c.Formats)
}

// TranslationOptions builds generator options for a stack. Declaration
// labels are added on top of configured ones.
func (c *Config) TranslationOptions(projectName string, labels map[string]string) model.TranslationOptions {
	merged := make(map[string]string, len(c.Labels)+len(labels))
	for k, v := range c.Labels {
		merged[k] = v
	}
	for k, v := range labels {
		merged[k] = v
	}

	return model.TranslationOptions{
		ProjectName:      projectName,
		ResourcePrefix:   c.ResourcePrefix,
		Labels:           merged,
		RegistryPrefix:   c.RegistryPrefix,
		SplitFiles:       c.Kubernetes.SplitFiles,
		CreateNamespaces: c.Kubernetes.CreateNamespaces,
		ComposeVersion:   c.Compose.Version,
		ChartVersion:     c.Helm.ChartVersion,
		AppVersion:       c.Helm.AppVersion,
		Overlays:         append([]string(nil), c.Kustomize.Overlays...),
		ProviderSource:   c.Terraform.ProviderSource,
	}.WithDefaults()
}
