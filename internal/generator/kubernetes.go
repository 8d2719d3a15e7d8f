package generator

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/document"
	"github.com/withobsrvr/stackctl/internal/ir"
	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

// KubernetesGenerator generates plain Kubernetes manifests
type KubernetesGenerator struct{}

// NewKubernetesGenerator creates a new Kubernetes generator
func NewKubernetesGenerator() *KubernetesGenerator {
	return &KubernetesGenerator{}
}

// Format implements Generator
func (g *KubernetesGenerator) Format() model.Format {
	return model.Kubernetes
}

// Generate produces manifests.yaml, or one file per object when split
// files are requested
func (g *KubernetesGenerator) Generate(records []ir.Record, exclusions ir.Exclusions, opts model.TranslationOptions) (*document.Tree, error) {
	opts = opts.WithDefaults()
	logger.Debug("Generating Kubernetes manifests",
		zap.Int("records", len(records)),
		zap.Bool("split_files", opts.SplitFiles))

	objects, err := newObjectBuilder(opts, literal).build(applicable(model.Kubernetes, records, exclusions))
	if err != nil {
		return nil, fmt.Errorf("kubernetes: %w", err)
	}

	tree := &document.Tree{Format: model.Kubernetes, Root: "kubernetes"}
	if !opts.SplitFiles {
		docs := make([]any, len(objects))
		for i, obj := range objects {
			docs[i] = obj.Content
		}
		tree.Add(document.File{Path: "manifests.yaml", Encoding: document.YAML, Documents: docs})
		return tree, nil
	}

	for i, obj := range objects {
		tree.Add(document.File{
			Path:      fmt.Sprintf("%03d-%s-%s.yaml", i+1, strings.ToLower(obj.Kind), obj.Name),
			Encoding:  document.YAML,
			Documents: []any{obj.Content},
		})
	}
	return tree, nil
}

// objectFileNames names one file per object as <kind>-<name>.yaml, adding
// the namespace when two objects would share a name
func objectFileNames(objects []object) []string {
	base := make([]string, len(objects))
	counts := make(map[string]int, len(objects))
	for i, obj := range objects {
		base[i] = strings.ToLower(obj.Kind) + "-" + obj.Name
		counts[base[i]]++
	}
	out := make([]string, len(objects))
	for i, obj := range objects {
		name := base[i]
		if counts[name] > 1 {
			name = fmt.Sprintf("%s-%s-%s", strings.ToLower(obj.Kind), obj.Namespace, obj.Name)
		}
		out[i] = name + ".yaml"
	}
	return out
}
