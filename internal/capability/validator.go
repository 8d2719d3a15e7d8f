package capability

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/ir"
	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

// Warning reports a field or record a format cannot render. The field is
// kept in the IR and only dropped from that format's output.
type Warning struct {
	RecordID       string
	SourceNodeID   model.NodeID
	Field          string
	Format         model.Format
	Recommendation string
}

// String renders the warning for terminal output
func (w Warning) String() string {
	target := fmt.Sprintf("field %q", w.Field)
	if w.Field == ir.AllFields {
		target = "record"
	}
	msg := fmt.Sprintf("[%s] %s: %s of %s is not supported", w.Format, w.SourceNodeID, target, w.RecordID)
	if w.Recommendation != "" {
		msg += ": " + w.Recommendation
	}
	return msg
}

// StructuralError reports a record missing what a format needs to produce
// a minimal viable resource
type StructuralError struct {
	RecordID     string
	SourceNodeID model.NodeID
	Format       model.Format
	Field        string
	Reason       string
}

// Error implements the error interface
func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s (%s) %s: %s", e.Format, e.SourceNodeID, e.RecordID, e.Field, e.Reason)
}

// ConflictingFieldsError reports properties that ask for mutually exclusive
// output shapes
type ConflictingFieldsError struct {
	RecordID     string
	SourceNodeID model.NodeID
	Fields       []string
	Reason       string
}

// Error implements the error interface
func (e *ConflictingFieldsError) Error() string {
	return fmt.Sprintf("%s: conflicting fields %s: %s", e.SourceNodeID, strings.Join(e.Fields, ", "), e.Reason)
}

// CapabilityError is returned in strict mode when a format has warnings
type CapabilityError struct {
	Format   model.Format
	Warnings []Warning
}

// Error implements the error interface
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %d unsupported field(s) in strict mode", e.Format, len(e.Warnings))
}

// Options controls validation
type Options struct {
	// Strict turns capability warnings into a CapabilityError
	Strict bool
}

// Report is the outcome of validating records against a set of formats
type Report struct {
	Formats    []model.Format
	Warnings   []Warning
	Exclusions map[model.Format]ir.Exclusions
	Errors     map[model.Format]error
}

// Err returns the fatal error of format, if any
func (r *Report) Err(format model.Format) error {
	return r.Errors[format]
}

// WarningsFor returns the warnings of one format
func (r *Report) WarningsFor(format model.Format) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Format == format {
			out = append(out, w)
		}
	}
	return out
}

// Validate checks every record against each format. Structural checks run
// first; a format with structural failures gets no capability checks.
func Validate(records []ir.Record, formats []model.Format, opts Options) (*Report, error) {
	if len(formats) == 0 {
		return nil, fmt.Errorf("no output formats requested")
	}

	report := &Report{
		Formats:    append([]model.Format(nil), formats...),
		Exclusions: make(map[model.Format]ir.Exclusions, len(formats)),
		Errors:     make(map[model.Format]error),
	}

	for _, format := range formats {
		if _, err := model.ParseFormat(string(format)); err != nil {
			return nil, err
		}

		if err := structural(records, format); err != nil {
			report.Errors[format] = err
			logger.Debug("Structural validation failed",
				zap.String("format", string(format)),
				zap.Error(err))
			continue
		}

		exclusions, warnings := capabilities(records, format)
		report.Exclusions[format] = exclusions
		report.Warnings = append(report.Warnings, warnings...)

		if opts.Strict && len(warnings) > 0 {
			report.Errors[format] = &CapabilityError{Format: format, Warnings: warnings}
		}
	}

	sortWarnings(report.Warnings, formats, records)
	return report, nil
}

func capabilities(records []ir.Record, format model.Format) (ir.Exclusions, []Warning) {
	exclusions := ir.Exclusions{}
	var warnings []Warning
	for _, rec := range records {
		if d, ok := Lookup(FieldPath(rec.Kind, "")); !ok || !d.Supports(format) {
			exclusions.Add(rec.ID, ir.AllFields)
			warnings = append(warnings, Warning{
				RecordID:       rec.ID,
				SourceNodeID:   rec.SourceNodeID,
				Field:          ir.AllFields,
				Format:         format,
				Recommendation: d.Recommendation,
			})
			continue
		}

		for _, field := range rec.FieldNames() {
			d, ok := Lookup(FieldPath(rec.Kind, field))
			if ok && d.Supports(format) {
				continue
			}
			recommendation := d.Recommendation
			if !ok {
				recommendation = "no format is known to render this field"
			}
			exclusions.Add(rec.ID, field)
			warnings = append(warnings, Warning{
				RecordID:       rec.ID,
				SourceNodeID:   rec.SourceNodeID,
				Field:          field,
				Format:         format,
				Recommendation: recommendation,
			})
		}
	}
	return exclusions, warnings
}

// sortWarnings orders by requested format, then record emission order,
// then field
func sortWarnings(warnings []Warning, formats []model.Format, records []ir.Record) {
	formatPos := make(map[model.Format]int, len(formats))
	for i, f := range formats {
		formatPos[f] = i
	}
	recordPos := make(map[string]int, len(records))
	for i, r := range records {
		recordPos[r.ID] = i
	}
	sort.SliceStable(warnings, func(i, j int) bool {
		a, b := warnings[i], warnings[j]
		if a.Format != b.Format {
			return formatPos[a.Format] < formatPos[b.Format]
		}
		if a.RecordID != b.RecordID {
			return recordPos[a.RecordID] < recordPos[b.RecordID]
		}
		return a.Field < b.Field
	})
}

// structural returns the joined fatal errors of records format renders
func structural(records []ir.Record, format model.Format) error {
	var errs []error
	for _, rec := range records {
		if err := conflicts(rec); err != nil {
			errs = append(errs, err)
			continue
		}
		if d, ok := Lookup(FieldPath(rec.Kind, "")); !ok || !d.Supports(format) {
			continue
		}
		for _, missing := range required(rec) {
			errs = append(errs, &StructuralError{
				RecordID:     rec.ID,
				SourceNodeID: rec.SourceNodeID,
				Format:       format,
				Field:        missing,
				Reason:       fmt.Sprintf("%s requires %s", rec.Kind, missing),
			})
		}
	}
	return errors.Join(errs...)
}

func conflicts(rec ir.Record) error {
	if rec.Kind != ir.Workload || !rec.Bool("cluster_mode") {
		return nil
	}
	replicas, ok := rec.Int("replicas")
	if !ok {
		replicas = 1
	}
	if replicas >= 2 {
		return nil
	}
	return &ConflictingFieldsError{
		RecordID:     rec.ID,
		SourceNodeID: rec.SourceNodeID,
		Fields:       []string{"cluster_mode", "replicas"},
		Reason:       fmt.Sprintf("cluster mode needs at least 2 replicas, got %d", replicas),
	}
}

// required lists the missing fields a record needs in every format
func required(rec ir.Record) []string {
	var need []string
	switch rec.Kind {
	case ir.Workload, ir.OneShotTask:
		need = []string{"image"}
	case ir.ScheduledTask:
		need = []string{"schedule", "image"}
	case ir.ExternalRoute:
		need = []string{"backend"}
	case ir.Permission:
		need = []string{"rules"}
	case ir.PermissionBinding:
		need = []string{"role", "subjects"}
	case ir.SecretStore:
		need = []string{"data"}
	case ir.CustomObject:
		need = []string{"api_version", "resource_kind"}
	case ir.NetworkService:
		if !rec.Bool("headless") {
			need = []string{"port"}
		}
	}

	var missing []string
	for _, field := range need {
		if !present(rec.Fields[field]) {
			missing = append(missing, field)
		}
	}
	return missing
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case map[string]string:
		return len(t) > 0
	case []map[string]any:
		return len(t) > 0
	case []ir.Target:
		return len(t) > 0
	}
	return true
}
