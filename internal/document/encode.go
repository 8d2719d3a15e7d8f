package document

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// TemplateRef is a placeholder for a value lifted into values.yaml
type TemplateRef struct {
	// Path is the dotted key under .Values
	Path string
	// Quote pipes the value through the quote function
	Quote bool
}

// MarshalYAML renders the placeholder sentinel rewritten by Encode
func (r TemplateRef) MarshalYAML() (interface{}, error) {
	if r.Quote {
		return "__VALUESQ." + r.Path + "__", nil
	}
	return "__VALUES." + r.Path + "__", nil
}

// String renders the Helm action the placeholder becomes
func (r TemplateRef) String() string {
	if r.Quote {
		return fmt.Sprintf("{{ .Values.%s | quote }}", r.Path)
	}
	return fmt.Sprintf("{{ .Values.%s }}", r.Path)
}

var placeholder = regexp.MustCompile(`["']?__VALUES(Q?)\.([A-Za-z0-9_.]+)__["']?`)

// delimiters renders literal template delimiters in user values as actions
// printing them, so Helm outputs them verbatim instead of evaluating them
var delimiters = strings.NewReplacer(
	"{{", `{{ "{{" }}`,
	"}}", `{{ "}}" }}`,
)

// Encode serializes a file deterministically
func Encode(f File) ([]byte, error) {
	switch f.Encoding {
	case YAML:
		return encodeYAML(f.Documents)
	case HelmTemplate:
		data, err := encodeYAML(f.Documents)
		if err != nil {
			return nil, err
		}
		data = []byte(delimiters.Replace(string(data)))
		return placeholder.ReplaceAllFunc(data, func(m []byte) []byte {
			sub := placeholder.FindSubmatch(m)
			return []byte(TemplateRef{Path: string(sub[2]), Quote: len(sub[1]) > 0}.String())
		}), nil
	case HCL:
		return encodeHCL(f.Documents)
	case Text:
		return append([]byte(nil), f.Body...), nil
	}
	return nil, fmt.Errorf("unknown encoding %s", f.Encoding)
}

func encodeYAML(docs []any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
