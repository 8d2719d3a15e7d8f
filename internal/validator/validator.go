// Package validator lints resolved stacks for problems that every output
// format would carry into deployment.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docker/go-connections/nat"

	"github.com/withobsrvr/stackctl/internal/ir"
	"github.com/withobsrvr/stackctl/internal/registry"
)

// ValidationResult represents the result of linting a stack
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationWarning
	Hints    []string
	records  int
}

// ValidationError represents a problem that will fail at deploy time
type ValidationError struct {
	Field   string
	Message string
	Fix     string
}

// ValidationWarning represents a likely mistake
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// Validator lints IR records
type Validator struct {
	records []ir.Record
}

// NewValidator creates a new validator
func NewValidator(records []ir.Record) *Validator {
	return &Validator{
		records: records,
	}
}

// Validate performs all checks
func (v *Validator) Validate() *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
		Hints:    []string{},
		records:  len(v.records),
	}

	v.validateHostPorts(result)
	v.validateImages(result)
	v.validateSecrets(result)
	v.validateHealthChecks(result)

	result.Valid = len(result.Errors) == 0
	return result
}

func hasImage(kind ir.ResourceKind) bool {
	return kind == ir.Workload || kind == ir.ScheduledTask || kind == ir.OneShotTask
}

// validateHostPorts checks that no two workloads publish the same host port
func (v *Validator) validateHostPorts(result *ValidationResult) {
	ports := make(map[string][]string) // host binding -> node ids

	for _, rec := range v.records {
		for _, spec := range rec.StringList("port_mapping") {
			mappings, err := nat.ParsePortSpec(spec)
			if err != nil {
				// rejected during property validation
				continue
			}
			for _, m := range mappings {
				if m.Binding.HostPort == "" {
					continue
				}
				key := fmt.Sprintf("%s:%s/%s", m.Binding.HostIP, m.Binding.HostPort, m.Port.Proto())
				ports[key] = appendUnique(ports[key], string(rec.SourceNodeID))
			}
		}
	}

	for _, key := range sortedKeys(ports) {
		nodes := ports[key]
		if len(nodes) < 2 {
			continue
		}
		result.Errors = append(result.Errors, ValidationError{
			Field:   "port_mapping",
			Message: fmt.Sprintf("Host port conflict: %s published by multiple components: %s", strings.TrimPrefix(key, ":"), strings.Join(nodes, ", ")),
			Fix:     "Publish each host port from a single component",
		})
	}
}

// validateImages warns about images that float on the latest tag
func (v *Validator) validateImages(result *ValidationResult) {
	for _, rec := range v.records {
		if !hasImage(rec.Kind) {
			continue
		}
		image := rec.String("image")
		if image == "" {
			continue
		}
		ref, err := registry.ParseImageReference(image)
		if err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("%s.image", rec.SourceNodeID),
				Message: err.Error(),
				Fix:     "Use a reference like registry/repository:tag",
			})
			continue
		}
		if ref.Digest == "" && ref.Tag == "latest" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   fmt.Sprintf("%s.image", rec.SourceNodeID),
				Message: fmt.Sprintf("Image %s is not pinned", image),
				Hint:    "Pin a tag or digest so every format deploys the same image",
			})
		}
	}
}

// validateSecrets warns about secrets no workload attaches
func (v *Validator) validateSecrets(result *ValidationResult) {
	attached := make(map[string]bool)
	for _, rec := range v.records {
		attachments, _ := rec.Fields["attachments"].([]ir.Attachment)
		for _, a := range attachments {
			attached[a.RecordID] = true
		}
	}

	for _, rec := range v.records {
		if rec.Kind != ir.SecretStore || attached[rec.ID] {
			continue
		}
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   string(rec.SourceNodeID),
			Message: fmt.Sprintf("Secret %s is not attached to any workload", rec.Name),
			Hint:    "Attach it to the components that read it or remove it",
		})
	}
}

// validateHealthChecks hints at exposed workloads without a health check
func (v *Validator) validateHealthChecks(result *ValidationResult) {
	exposed := make(map[string]bool)
	for _, rec := range v.records {
		if rec.Kind == ir.NetworkService && !rec.Bool("headless") {
			exposed[string(rec.SourceNodeID)] = true
		}
	}

	for _, rec := range v.records {
		if rec.Kind != ir.Workload || !exposed[string(rec.SourceNodeID)] || rec.Has("health_path") {
			continue
		}
		result.Hints = append(result.Hints, fmt.Sprintf("%s is exposed without health_path: traffic is routed before it is ready", rec.SourceNodeID))
	}
}

// Format returns a human-readable string representation of the validation result
func (r *ValidationResult) Format() string {
	var sb strings.Builder

	if r.Valid {
		sb.WriteString("✓ Stack lint passed\n")
		sb.WriteString(fmt.Sprintf("  %d resources checked\n", r.records))
	} else {
		sb.WriteString(fmt.Sprintf("✗ Stack lint failed with %d error(s)\n", len(r.Errors)))
	}

	for _, err := range r.Errors {
		sb.WriteString(fmt.Sprintf("\nERROR: %s\n", err.Message))
		if err.Field != "" {
			sb.WriteString(fmt.Sprintf("  Field: %s\n", err.Field))
		}
		if err.Fix != "" {
			sb.WriteString(fmt.Sprintf("  Fix: %s\n", err.Fix))
		}
	}

	for _, warn := range r.Warnings {
		sb.WriteString(fmt.Sprintf("\nWARNING: %s\n", warn.Message))
		if warn.Field != "" {
			sb.WriteString(fmt.Sprintf("  Field: %s\n", warn.Field))
		}
		if warn.Hint != "" {
			sb.WriteString(fmt.Sprintf("  Hint: %s\n", warn.Hint))
		}
	}

	if len(r.Hints) > 0 {
		sb.WriteString("\n")
		for _, hint := range r.Hints {
			sb.WriteString(fmt.Sprintf("hint: %s\n", hint))
		}
	}

	return sb.String()
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
