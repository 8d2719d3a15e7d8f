package model

import (
	"fmt"
	"strings"
)

// Format represents a target output format
type Format string

const (
	// Kubernetes format generates plain Kubernetes manifests
	Kubernetes Format = "kubernetes"
	// DockerCompose format generates a Docker Compose file
	DockerCompose Format = "docker-compose"
	// Helm format generates a Helm chart
	Helm Format = "helm"
	// Kustomize format generates a Kustomize base and optional overlays
	Kustomize Format = "kustomize"
	// Terraform format generates a Terraform module
	Terraform Format = "terraform"
)

// AllFormats lists every supported format in canonical order
var AllFormats = []Format{Kubernetes, DockerCompose, Helm, Kustomize, Terraform}

// ParseFormat converts user input into a Format. A few common aliases are accepted.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kubernetes", "k8s":
		return Kubernetes, nil
	case "docker-compose", "compose":
		return DockerCompose, nil
	case "helm":
		return Helm, nil
	case "kustomize":
		return Kustomize, nil
	case "terraform", "tf":
		return Terraform, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// ParseFormats parses a list of formats, dropping duplicates while keeping the
// first occurrence's position.
func ParseFormats(values []string) ([]Format, error) {
	seen := make(map[Format]bool, len(values))
	formats := make([]Format, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			f, err := ParseFormat(part)
			if err != nil {
				return nil, err
			}
			if !seen[f] {
				seen[f] = true
				formats = append(formats, f)
			}
		}
	}
	return formats, nil
}

// TranslationOptions holds configuration for the generation process
type TranslationOptions struct {
	// ProjectName names the stack; used for the Helm chart, Compose project and labels
	ProjectName string
	// ResourcePrefix is a prefix for generated resource names
	ResourcePrefix string
	// Labels are additional labels added to every generated resource
	Labels map[string]string
	// RegistryPrefix is prepended to image references without a registry
	RegistryPrefix string

	// SplitFiles writes one Kubernetes object per file instead of a single manifest
	SplitFiles bool
	// CreateNamespaces emits Namespace objects for non-default namespaces
	CreateNamespaces bool

	// ComposeVersion is the top-level version of the Compose file
	ComposeVersion string

	// ChartVersion and AppVersion land in Chart.yaml
	ChartVersion string
	AppVersion   string

	// Overlays lists thin Kustomize overlays to generate on top of the base
	Overlays []string

	// ProviderSource is the Terraform kubernetes provider source address
	ProviderSource string
}

// WithDefaults returns a copy with unset options filled in
func (o TranslationOptions) WithDefaults() TranslationOptions {
	if o.ProjectName == "" {
		o.ProjectName = "stack"
	}
	if o.ComposeVersion == "" {
		o.ComposeVersion = "3.8"
	}
	if o.ChartVersion == "" {
		o.ChartVersion = "0.1.0"
	}
	if o.AppVersion == "" {
		o.AppVersion = "1.0.0"
	}
	if o.ProviderSource == "" {
		o.ProviderSource = "hashicorp/kubernetes"
	}
	return o
}
