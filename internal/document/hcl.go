package document

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Attribute is an ordered HCL attribute
type Attribute struct {
	Name  string
	Value any
}

// Reference is an attribute value written as a bare traversal such as
// var.kubeconfig
type Reference string

// HCLBlock is a Terraform block. Attributes keep their order; map values
// render with sorted keys.
type HCLBlock struct {
	Type       string
	Labels     []string
	Attributes []Attribute
	Blocks     []HCLBlock
	// DependsOn holds references such as "kubernetes_manifest.web"
	DependsOn []string
}

func encodeHCL(docs []any) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	for i, doc := range docs {
		block, ok := doc.(HCLBlock)
		if !ok {
			return nil, fmt.Errorf("hcl document %d: expected HCLBlock, got %T", i, doc)
		}
		if i > 0 {
			body.AppendNewline()
		}
		if err := writeBlock(body, block); err != nil {
			return nil, err
		}
	}
	return hclwrite.Format(f.Bytes()), nil
}

func writeBlock(parent *hclwrite.Body, b HCLBlock) error {
	block := parent.AppendNewBlock(b.Type, b.Labels)
	body := block.Body()
	for _, attr := range b.Attributes {
		if ref, ok := attr.Value.(Reference); ok {
			traversal, err := parseReference(string(ref))
			if err != nil {
				return fmt.Errorf("%s.%s: %w", b.Type, attr.Name, err)
			}
			body.SetAttributeTraversal(attr.Name, traversal)
			continue
		}
		v, err := ToCty(attr.Value)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", b.Type, attr.Name, err)
		}
		body.SetAttributeValue(attr.Name, v)
	}
	for _, nested := range b.Blocks {
		if err := writeBlock(body, nested); err != nil {
			return err
		}
	}
	if len(b.DependsOn) > 0 {
		refs := make([]hclwrite.Tokens, 0, len(b.DependsOn))
		for _, ref := range b.DependsOn {
			traversal, err := parseReference(ref)
			if err != nil {
				return err
			}
			refs = append(refs, hclwrite.TokensForTraversal(traversal))
		}
		body.SetAttributeRaw("depends_on", hclwrite.TokensForTuple(refs))
	}
	return nil
}

func parseReference(ref string) (hcl.Traversal, error) {
	parts := strings.Split(ref, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid reference %q", ref)
	}
	traversal := hcl.Traversal{hcl.TraverseRoot{Name: parts[0]}}
	for _, p := range parts[1:] {
		if p == "" {
			return nil, fmt.Errorf("invalid reference %q", ref)
		}
		traversal = append(traversal, hcl.TraverseAttr{Name: p})
	}
	return traversal, nil
}

// ToCty converts a plain Go value into a cty value. Maps become objects and
// slices become tuples so mixed element types are allowed.
func ToCty(v any) (cty.Value, error) {
	switch t := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return t, nil
	case string:
		return cty.StringVal(t), nil
	case bool:
		return cty.BoolVal(t), nil
	case int:
		return cty.NumberIntVal(int64(t)), nil
	case int32:
		return cty.NumberIntVal(int64(t)), nil
	case int64:
		return cty.NumberIntVal(t), nil
	case float64:
		return cty.NumberFloatVal(t), nil
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return ToCty(items)
	case []any:
		if len(t) == 0 {
			return cty.EmptyTupleVal, nil
		}
		vals := make([]cty.Value, len(t))
		for i, item := range t {
			cv, err := ToCty(item)
			if err != nil {
				return cty.NilVal, err
			}
			vals[i] = cv
		}
		return cty.TupleVal(vals), nil
	case []map[string]any:
		items := make([]any, len(t))
		for i, m := range t {
			items[i] = m
		}
		return ToCty(items)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return ToCty(m)
	case map[string]any:
		if len(t) == 0 {
			return cty.EmptyObjectVal, nil
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make(map[string]cty.Value, len(t))
		for _, k := range keys {
			cv, err := ToCty(t[k])
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = cv
		}
		return cty.ObjectVal(attrs), nil
	}
	return cty.NilVal, fmt.Errorf("unsupported value type %T", v)
}
