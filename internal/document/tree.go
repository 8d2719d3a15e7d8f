// Package document holds the format-specific document trees generators
// produce and their deterministic encoding to bytes.
package document

import (
	"fmt"
	"path"
	"sort"

	"github.com/withobsrvr/stackctl/internal/model"
)

// Encoding selects how a file's documents are serialized
type Encoding int

const (
	// YAML encodes each document as YAML, separated by ---
	YAML Encoding = iota
	// HelmTemplate is YAML with TemplateRef values rewritten to Helm actions
	HelmTemplate
	// HCL encodes HCLBlock documents as Terraform configuration
	HCL
	// Text writes Body verbatim
	Text
)

// String returns the encoding name
func (e Encoding) String() string {
	switch e {
	case YAML:
		return "yaml"
	case HelmTemplate:
		return "helm-template"
	case HCL:
		return "hcl"
	case Text:
		return "text"
	}
	return fmt.Sprintf("encoding(%d)", int(e))
}

// File is one output file relative to the tree root
type File struct {
	Path      string
	Encoding  Encoding
	Documents []any
	Body      []byte
}

// Tree is the complete output of one format
type Tree struct {
	Format model.Format
	// Root is the directory under the output directory the files go to
	Root  string
	Files []File
}

// Add appends a file
func (t *Tree) Add(f File) {
	t.Files = append(t.Files, f)
}

// Paths returns the file paths joined with Root, in tree order
func (t *Tree) Paths() []string {
	out := make([]string, len(t.Files))
	for i, f := range t.Files {
		out[i] = path.Join(t.Root, f.Path)
	}
	return out
}

// File returns the file with the given path relative to Root
func (t *Tree) File(p string) (File, bool) {
	for _, f := range t.Files {
		if f.Path == p {
			return f, true
		}
	}
	return File{}, false
}

// Validate checks the tree for duplicate or escaping paths
func (t *Tree) Validate() error {
	seen := make(map[string]bool, len(t.Files))
	for _, f := range t.Files {
		clean := path.Clean(f.Path)
		if clean != f.Path || path.IsAbs(clean) || clean == "." || clean == ".." || (len(clean) > 3 && clean[:3] == "../") {
			return fmt.Errorf("invalid file path %q in %s tree", f.Path, t.Format)
		}
		if seen[clean] {
			return fmt.Errorf("duplicate file path %q in %s tree", f.Path, t.Format)
		}
		seen[clean] = true
	}
	return nil
}

// EncodeAll encodes every file of the tree. Keys are paths joined with Root.
// Nothing is returned if any file fails to encode.
func EncodeAll(t *Tree) (map[string][]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(t.Files))
	for _, f := range t.Files {
		data, err := Encode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", f.Path, err)
		}
		out[path.Join(t.Root, f.Path)] = data
	}
	return out, nil
}

// SortedPaths returns the keys of an encoded tree in lexical order
func SortedPaths(files map[string][]byte) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
