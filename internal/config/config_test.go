package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withobsrvr/stackctl/internal/model"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	Configure(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Strict)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, "3.8", cfg.Compose.Version)
	assert.Equal(t, "hashicorp/kubernetes", cfg.Terraform.ProviderSource)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "history.db", filepath.Base(cfg.History.Path))

	formats, err := cfg.OutputFormats()
	require.NoError(t, err)
	assert.Equal(t, []model.Format{model.Kubernetes, model.DockerCompose}, formats)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stackctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
strict: true
formats: [helm, tf]
resource_prefix: prod-
labels:
  team: payments
kubernetes:
  split_files: true
kustomize:
  overlays: [dev, prod]
helm:
  chart_version: 2.0.0
`), 0644))

	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.True(t, cfg.Strict)
	assert.True(t, cfg.Kubernetes.SplitFiles)
	assert.Equal(t, []string{"dev", "prod"}, cfg.Kustomize.Overlays)

	formats, err := cfg.OutputFormats()
	require.NoError(t, err)
	assert.Equal(t, []model.Format{model.Helm, model.Terraform}, formats)

	opts := cfg.TranslationOptions("shop", map[string]string{"tier": "web"})
	assert.Equal(t, "shop", opts.ProjectName)
	assert.Equal(t, "prod-", opts.ResourcePrefix)
	assert.Equal(t, map[string]string{"team": "payments", "tier": "web"}, opts.Labels)
	assert.Equal(t, "2.0.0", opts.ChartVersion)
	assert.Equal(t, "1.0.0", opts.AppVersion)
	assert.True(t, opts.SplitFiles)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("STACKCTL_STRICT", "true")
	t.Setenv("STACKCTL_KUBERNETES_CREATE_NAMESPACES", "true")
	t.Setenv("STACKCTL_COMPOSE_VERSION", "3.9")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)
	assert.True(t, cfg.Strict)
	assert.True(t, cfg.Kubernetes.CreateNamespaces)
	assert.Equal(t, "3.9", cfg.Compose.Version)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LogLevel: "info",
			Formats:  []string{"kubernetes"},
			History:  HistoryConfig{Enabled: true, Path: "/tmp/h.db"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"format", func(c *Config) { c.Formats = []string{"nomad"} }, "unsupported output format"},
		{"prefix", func(c *Config) { c.ResourcePrefix = "Prod_" }, "resource_prefix"},
		{"label key", func(c *Config) { c.Labels = map[string]string{"bad key": "x"} }, "labels: key"},
		{"label value", func(c *Config) { c.Labels = map[string]string{"team": "not valid!"} }, "labels: value"},
		{"overlay", func(c *Config) { c.Kustomize.Overlays = []string{"../up"} }, "kustomize.overlays"},
		{"history", func(c *Config) { c.History.Path = " " }, "history.path"},
		{"history disabled", func(c *Config) { c.History = HistoryConfig{} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := &Config{LogLevel: "loud", Formats: []string{"nomad"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "formats")
}
