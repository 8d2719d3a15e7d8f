package registry

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// dockerHub is the registry name reported for references without an explicit registry
const dockerHub = "docker.io"

// ImageReference represents a parsed OCI image reference
type ImageReference struct {
	Registry   string // Registry hostname (e.g., ghcr.io, docker.io)
	Repository string // Repository path (e.g., library/nginx)
	Tag        string // Image tag (e.g., 1.21, latest)
	Digest     string // Optional digest (e.g., sha256:abc...)
	Raw        string // Original unparsed reference
}

// ParseImageReference parses an OCI image reference string into components.
//
// Supported formats:
// - nginx                                  → docker.io/library/nginx:latest
// - nginx:1.21                             → docker.io/library/nginx:1.21
// - myorg/myapp:v1.0.0                     → docker.io/myorg/myapp:v1.0.0
// - ghcr.io/myorg/myapp@sha256:abc...      → ghcr.io/myorg/myapp@sha256:abc...
// - localhost:5000/myapp:v1.0.0            → localhost:5000/myapp:v1.0.0
func ParseImageReference(ref string) (*ImageReference, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("image reference cannot be empty")
	}

	parsed, err := name.ParseReference(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid image reference %q: %w", ref, err)
	}

	result := &ImageReference{
		Registry:   parsed.Context().RegistryStr(),
		Repository: parsed.Context().RepositoryStr(),
		Raw:        ref,
	}
	if result.Registry == name.DefaultRegistry {
		result.Registry = dockerHub
	}

	switch r := parsed.(type) {
	case name.Tag:
		result.Tag = r.TagStr()
	case name.Digest:
		result.Digest = r.DigestStr()
	}

	return result, nil
}

// String returns the canonical string representation of the image reference
func (r *ImageReference) String() string {
	ref := r.Registry + "/" + r.Repository
	if r.Digest != "" {
		ref += "@" + r.Digest
	} else if r.Tag != "" {
		ref += ":" + r.Tag
	}
	return ref
}

// HasExplicitRegistry reports whether the raw reference named a registry host
func (r *ImageReference) HasExplicitRegistry() bool {
	first, _, found := strings.Cut(r.Raw, "/")
	if !found {
		return false
	}
	return strings.ContainsAny(first, ".:") || first == "localhost"
}

// WithRegistryPrefix prepends prefix to image references that do not name a
// registry. The raw reference is returned untouched otherwise.
func WithRegistryPrefix(image, prefix string) string {
	if prefix == "" || image == "" {
		return image
	}
	ref, err := ParseImageReference(image)
	if err != nil || ref.HasExplicitRegistry() {
		return image
	}
	return strings.TrimSuffix(prefix, "/") + "/" + image
}
