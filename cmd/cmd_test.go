package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testdata = "../internal/translator/parsers/testdata"

// executeCommand runs the root command with a config file of its own so
// tests never read the user's configuration or history
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true

	dir := t.TempDir()
	cfg := filepath.Join(dir, "stackctl.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("history:\n  path: "+filepath.Join(dir, "history.db")+"\n"), 0644))

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--config", cfg, "--log-level", "error"}, args...))

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestGenerateCommand(t *testing.T) {
	out := t.TempDir()
	textfile := filepath.Join(t.TempDir(), "stackctl.prom")

	stdout, stderr, err := executeCommand(t, "generate",
		"-f", filepath.Join(testdata, "shop.yaml"),
		"-t", "helm,compose",
		"-o", out,
		"--strict=false",
		"--dry-run=false",
		"--watch=false",
		"--metrics-textfile", textfile)
	require.NoError(t, err)

	assert.Contains(t, stdout, "✓ helm:")
	assert.Contains(t, stdout, "✓ docker-compose:")
	assert.Contains(t, stderr, "warning: [docker-compose]")
	assert.FileExists(t, filepath.Join(out, "helm", "Chart.yaml"))
	assert.FileExists(t, filepath.Join(out, "docker-compose", "docker-compose.yml"))

	metrics, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `stackctl_generations_total{format="helm",status="success"} 1`)
}

func TestGenerateCommandStrictFails(t *testing.T) {
	out := t.TempDir()

	_, stderr, err := executeCommand(t, "generate",
		"-f", filepath.Join(testdata, "shop.yaml"),
		"-t", "compose",
		"-o", out,
		"--strict=true",
		"--dry-run=false",
		"--watch=false",
		"--metrics-textfile", "")
	require.Error(t, err)
	assert.Contains(t, stderr, "✗ docker-compose:")
	assert.NoFileExists(t, filepath.Join(out, "docker-compose", "docker-compose.yml"))
}

func TestGenerateCommandDryRun(t *testing.T) {
	out := t.TempDir()

	stdout, _, err := executeCommand(t, "generate",
		"-f", filepath.Join(testdata, "shop.json"),
		"-t", "terraform",
		"-o", out,
		"--strict=false",
		"--dry-run=true",
		"--watch=false",
		"--metrics-textfile", "")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ terraform:")
	assert.Contains(t, stdout, "files")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateCommandRequiresFile(t *testing.T) {
	generateOpts.file = ""
	_, _, err := executeCommand(t, "generate", "-t", "helm", "--strict=false", "--watch=false")
	assert.ErrorContains(t, err, "stack file is required")
}

func TestValidateCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "validate", "-f", filepath.Join(testdata, "shop.cue"), "-t", "kubernetes", "--strict=false")
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 components")
	assert.Contains(t, stdout, "✓ kubernetes:")
	assert.Contains(t, stdout, "Stack lint passed")
}

func TestValidateCommandRejectsCycle(t *testing.T) {
	_, _, err := executeCommand(t, "validate", filepath.Join(testdata, "cycle.yaml"), "-t", "kubernetes", "--strict=false")
	assert.ErrorContains(t, err, "cycl")
}

func TestCapabilitiesCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "capabilities", "--format", "compose")
	require.NoError(t, err)
	assert.Contains(t, stdout, "RECOMMENDATION")
	assert.Contains(t, stdout, "kubernetes")

	_, _, err = executeCommand(t, "capabilities", "--format", "nomad")
	assert.ErrorContains(t, err, "unsupported output format")
	capabilitiesOpts.format = ""
}

func TestFormatsCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "formats")
	require.NoError(t, err)
	for _, f := range []string{"kubernetes", "docker-compose", "helm", "kustomize", "terraform"} {
		assert.Contains(t, stdout, f)
	}
}

func TestHistoryCommandEmpty(t *testing.T) {
	stdout, _, err := executeCommand(t, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No emissions recorded")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "stackctl version dev")
}
