// Package generator renders IR records into format-specific document trees.
// Generators are pure: the same records, exclusions and options always
// produce the same tree.
package generator

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/document"
	"github.com/withobsrvr/stackctl/internal/ir"
	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

// Generator renders records for one output format
type Generator interface {
	// Format returns the format the generator produces
	Format() model.Format
	// Generate builds the document tree. Excluded records and fields are
	// left out of the output.
	Generate(records []ir.Record, exclusions ir.Exclusions, opts model.TranslationOptions) (*document.Tree, error)
}

// ForFormat returns the generator for a format
func ForFormat(format model.Format) (Generator, error) {
	switch format {
	case model.Kubernetes:
		return NewKubernetesGenerator(), nil
	case model.DockerCompose:
		return NewDockerComposeGenerator(), nil
	case model.Helm:
		return NewHelmGenerator(), nil
	case model.Kustomize:
		return NewKustomizeGenerator(), nil
	case model.Terraform:
		return NewTerraformGenerator(), nil
	}
	return nil, fmt.Errorf("unsupported output format: %s", format)
}

// applicable drops excluded records and strips excluded fields
func applicable(format model.Format, records []ir.Record, exclusions ir.Exclusions) []ir.Record {
	out := make([]ir.Record, 0, len(records))
	for _, rec := range records {
		if exclusions.RecordExcluded(rec.ID) {
			logger.Debug("Skipping record",
				zap.String("format", string(format)),
				zap.String("record", rec.ID))
			continue
		}
		out = append(out, exclusions.Apply(rec))
	}
	return out
}

// nodeName returns the name of the node a record was lowered from. Ingress
// expansions carry a suffixed record name but share the node name.
func nodeName(rec ir.Record) string {
	return path.Base(string(rec.SourceNodeID))
}

// namespaceOf returns the record namespace, defaulting it
func namespaceOf(rec ir.Record) string {
	if rec.Namespace == "" {
		return model.DefaultNamespace
	}
	return rec.Namespace
}

// sanitizeResourceName sanitizes a name to be used as a resource name
func sanitizeResourceName(name string) string {
	// Replace any non-alphanumeric character with a dash
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, name)

	// Ensure name starts with a letter or number
	if len(sanitized) > 0 && !((sanitized[0] >= 'a' && sanitized[0] <= 'z') || (sanitized[0] >= 'A' && sanitized[0] <= 'Z') ||
		(sanitized[0] >= '0' && sanitized[0] <= '9')) {
		sanitized = "rs-" + sanitized
	}

	return strings.ToLower(sanitized)
}

// resourceName applies the configured prefix to a node name
func resourceName(opts model.TranslationOptions, name string) string {
	if opts.ResourcePrefix == "" {
		return sanitizeResourceName(name)
	}
	return sanitizeResourceName(opts.ResourcePrefix + "-" + name)
}

// envName turns a node name into an environment variable prefix
func envName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, name)
}

// camelCase joins dash and underscore separated words: db-primary -> dbPrimary
func camelCase(s string) string {
	var b strings.Builder
	upper := false
	for _, r := range s {
		if r == '-' || r == '_' || r == '.' {
			upper = b.Len() > 0
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	out := b.String()
	if out != "" && unicode.IsDigit(rune(out[0])) {
		out = "v" + out
	}
	return out
}

func stringsToAny(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func stringMap(in map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
