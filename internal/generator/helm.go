package generator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/document"
	"github.com/withobsrvr/stackctl/internal/ir"
	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

// HelmGenerator generates a Helm chart from the same objects as the
// Kubernetes generator
type HelmGenerator struct{}

// NewHelmGenerator creates a new Helm generator
func NewHelmGenerator() *HelmGenerator {
	return &HelmGenerator{}
}

// Format implements Generator
func (g *HelmGenerator) Format() model.Format {
	return model.Helm
}

// Generate produces Chart.yaml, values.yaml and one template per object.
// Configurable fields are replaced by references into values.yaml.
func (g *HelmGenerator) Generate(records []ir.Record, exclusions ir.Exclusions, opts model.TranslationOptions) (*document.Tree, error) {
	opts = opts.WithDefaults()
	recs := applicable(model.Helm, records, exclusions)

	values := newValuesTable(recs)
	objects, err := newObjectBuilder(opts, values.param).build(recs)
	if err != nil {
		return nil, fmt.Errorf("helm: %w", err)
	}
	logger.Debug("Generating Helm chart",
		zap.String("chart", sanitizeResourceName(opts.ProjectName)),
		zap.Int("objects", len(objects)),
		zap.Int("values", len(values.values)))

	tree := &document.Tree{Format: model.Helm, Root: "helm"}
	tree.Add(document.File{
		Path:     "Chart.yaml",
		Encoding: document.YAML,
		Documents: []any{map[string]interface{}{
			"apiVersion":  "v2",
			"name":        sanitizeResourceName(opts.ProjectName),
			"description": fmt.Sprintf("Helm chart for the %s stack", opts.ProjectName),
			"type":        "application",
			"version":     opts.ChartVersion,
			"appVersion":  opts.AppVersion,
		}},
	})
	tree.Add(document.File{Path: "values.yaml", Encoding: document.YAML, Documents: []any{values.values}})

	for i, name := range objectFileNames(objects) {
		tree.Add(document.File{
			Path:      "templates/" + name,
			Encoding:  document.HelmTemplate,
			Documents: []any{objects[i].Content},
		})
	}
	return tree, nil
}

// valuesTable assigns each record with configurable fields a section in
// values.yaml and collects the default values
type valuesTable struct {
	keys   map[string]string
	values map[string]interface{}
}

func newValuesTable(records []ir.Record) *valuesTable {
	t := &valuesTable{
		keys:   make(map[string]string),
		values: make(map[string]interface{}),
	}
	used := make(map[string]bool)
	for _, rec := range records {
		if len(rec.Configurable) == 0 {
			continue
		}
		key := uniqueKey(used,
			camelCase(rec.Name),
			camelCase(rec.Name)+string(rec.SourceKind),
			camelCase(rec.Name+"-"+string(rec.SourceKind)+"-"+namespaceOf(rec)))
		used[key] = true
		t.keys[rec.ID] = key
	}
	return t
}

// uniqueKey returns the first unused candidate, numbering the last one if
// every candidate is taken
func uniqueKey(used map[string]bool, candidates ...string) string {
	for _, c := range candidates {
		if !used[c] {
			return c
		}
	}
	last := candidates[len(candidates)-1]
	for n := 2; ; n++ {
		c := fmt.Sprintf("%s%d", last, n)
		if !used[c] {
			return c
		}
	}
}

func (t *valuesTable) param(rec ir.Record, field string, value interface{}) interface{} {
	key, ok := t.keys[rec.ID]
	if !ok || !rec.IsConfigurable(field) {
		return value
	}
	section, _ := t.values[key].(map[string]interface{})
	if section == nil {
		section = make(map[string]interface{})
		t.values[key] = section
	}
	name := camelCase(field)
	section[name] = value
	_, quote := value.(string)
	return document.TemplateRef{Path: key + "." + name, Quote: quote}
}
