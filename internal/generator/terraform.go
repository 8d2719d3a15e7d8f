package generator

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/document"
	"github.com/withobsrvr/stackctl/internal/ir"
	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

const manifestResource = "kubernetes_manifest"

// TerraformGenerator generates a Terraform module applying every object
// through kubernetes_manifest resources
type TerraformGenerator struct{}

// NewTerraformGenerator creates a new Terraform generator
func NewTerraformGenerator() *TerraformGenerator {
	return &TerraformGenerator{}
}

// Format implements Generator
func (g *TerraformGenerator) Format() model.Format {
	return model.Terraform
}

// Generate produces main.tf and variables.tf
func (g *TerraformGenerator) Generate(records []ir.Record, exclusions ir.Exclusions, opts model.TranslationOptions) (*document.Tree, error) {
	opts = opts.WithDefaults()
	objects, err := newObjectBuilder(opts, literal).build(applicable(model.Terraform, records, exclusions))
	if err != nil {
		return nil, fmt.Errorf("terraform: %w", err)
	}
	logger.Debug("Generating Terraform module", zap.Int("objects", len(objects)))

	labels := make(map[string]string, len(objects))
	namespaces := make(map[string]string)
	alloc := newLabelAllocator()
	for _, obj := range objects {
		if obj.RecordID == "" {
			namespaces[obj.Name] = alloc.label("namespace_" + obj.Name)
			continue
		}
		labels[obj.RecordID] = alloc.label(obj.RecordID)
	}

	blocks := []any{
		document.HCLBlock{
			Type: "terraform",
			Blocks: []document.HCLBlock{{
				Type: "required_providers",
				Attributes: []document.Attribute{{
					Name:  "kubernetes",
					Value: map[string]any{"source": opts.ProviderSource},
				}},
			}},
		},
		document.HCLBlock{
			Type:       "provider",
			Labels:     []string{"kubernetes"},
			Attributes: []document.Attribute{{Name: "config_path", Value: document.Reference("var.kubeconfig")}},
		},
	}

	for _, obj := range objects {
		label := labels[obj.RecordID]
		var deps []string
		if obj.RecordID == "" {
			label = namespaces[obj.Name]
		} else if ns, ok := namespaces[obj.Namespace]; ok {
			deps = append(deps, manifestResource+"."+ns)
		}
		for _, dep := range obj.DependsOn {
			if l, ok := labels[dep]; ok {
				deps = append(deps, manifestResource+"."+l)
			}
		}
		blocks = append(blocks, document.HCLBlock{
			Type:       "resource",
			Labels:     []string{manifestResource, label},
			Attributes: []document.Attribute{{Name: "manifest", Value: obj.Content}},
			DependsOn:  deps,
		})
	}

	tree := &document.Tree{Format: model.Terraform, Root: "terraform"}
	tree.Add(document.File{Path: "main.tf", Encoding: document.HCL, Documents: blocks})
	tree.Add(document.File{
		Path:     "variables.tf",
		Encoding: document.HCL,
		Documents: []any{document.HCLBlock{
			Type:   "variable",
			Labels: []string{"kubeconfig"},
			Attributes: []document.Attribute{
				{Name: "description", Value: "Path to the kubeconfig used by the kubernetes provider"},
				{Name: "default", Value: "~/.kube/config"},
			},
		}},
	})
	return tree, nil
}

// terraformName derives a resource label from a record id:
// default/app/web#Workload -> default_app_web_workload
func terraformName(id string) string {
	name := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToLower(r)
		}
		return '_'
	}, id)
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "r_" + name
	}
	return name
}

// labelAllocator hands out unique resource labels. terraformName is lossy, so
// a label already taken gets a short hash of the raw id appended, and a
// counter if even that is taken.
type labelAllocator struct {
	taken map[string]bool
}

func newLabelAllocator() *labelAllocator {
	return &labelAllocator{taken: make(map[string]bool)}
}

func (a *labelAllocator) label(id string) string {
	name := terraformName(id)
	if a.taken[name] {
		h := fnv.New32a()
		h.Write([]byte(id))
		base := fmt.Sprintf("%s_%08x", name, h.Sum32())
		name = base
		for i := 2; a.taken[name]; i++ {
			name = fmt.Sprintf("%s_%d", base, i)
		}
	}
	a.taken[name] = true
	return name
}
