package generator

import (
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/validation"
	"sigs.k8s.io/yaml"

	"github.com/withobsrvr/stackctl/internal/document"
	"github.com/withobsrvr/stackctl/internal/ir"
	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

const (
	kustomizeAPIVersion = "kustomize.config.k8s.io/v1beta1"
	labelOverlay        = "stackctl.io/overlay"
)

// kustomization is the subset of the Kustomization file stackctl writes
type kustomization struct {
	APIVersion string           `json:"apiVersion"`
	Kind       string           `json:"kind"`
	Resources  []string         `json:"resources"`
	Labels     []kustomizeLabel `json:"labels,omitempty"`
}

type kustomizeLabel struct {
	Pairs            map[string]string `json:"pairs"`
	IncludeSelectors bool              `json:"includeSelectors,omitempty"`
}

// KustomizeGenerator generates a Kustomize base and thin overlays
type KustomizeGenerator struct{}

// NewKustomizeGenerator creates a new Kustomize generator
func NewKustomizeGenerator() *KustomizeGenerator {
	return &KustomizeGenerator{}
}

// Format implements Generator
func (g *KustomizeGenerator) Format() model.Format {
	return model.Kustomize
}

// Generate produces base/ with one file per object and its
// kustomization.yaml, then overlays/<name>/kustomization.yaml
func (g *KustomizeGenerator) Generate(records []ir.Record, exclusions ir.Exclusions, opts model.TranslationOptions) (*document.Tree, error) {
	opts = opts.WithDefaults()
	objects, err := newObjectBuilder(opts, literal).build(applicable(model.Kustomize, records, exclusions))
	if err != nil {
		return nil, fmt.Errorf("kustomize: %w", err)
	}
	logger.Debug("Generating Kustomize base",
		zap.Int("objects", len(objects)),
		zap.Strings("overlays", opts.Overlays))

	tree := &document.Tree{Format: model.Kustomize, Root: "kustomize"}
	names := objectFileNames(objects)
	for i, name := range names {
		tree.Add(document.File{
			Path:      path.Join("base", name),
			Encoding:  document.YAML,
			Documents: []any{objects[i].Content},
		})
	}

	base, err := yaml.Marshal(kustomization{
		APIVersion: kustomizeAPIVersion,
		Kind:       "Kustomization",
		Resources:  names,
	})
	if err != nil {
		return nil, fmt.Errorf("kustomize: failed to marshal base: %w", err)
	}
	tree.Add(document.File{Path: "base/kustomization.yaml", Encoding: document.Text, Body: base})

	seen := make(map[string]bool, len(opts.Overlays))
	for _, overlay := range opts.Overlays {
		if errs := validation.IsDNS1123Label(overlay); len(errs) > 0 {
			return nil, fmt.Errorf("kustomize: invalid overlay name %q: %s", overlay, strings.Join(errs, "; "))
		}
		if seen[overlay] {
			continue
		}
		seen[overlay] = true
		data, err := yaml.Marshal(kustomization{
			APIVersion: kustomizeAPIVersion,
			Kind:       "Kustomization",
			Resources:  []string{"../../base"},
			Labels:     []kustomizeLabel{{Pairs: map[string]string{labelOverlay: overlay}}},
		})
		if err != nil {
			return nil, fmt.Errorf("kustomize: failed to marshal overlay %s: %w", overlay, err)
		}
		tree.Add(document.File{
			Path:     path.Join("overlays", overlay, "kustomization.yaml"),
			Encoding: document.Text,
			Body:     data,
		})
	}
	return tree, nil
}
