package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

// Parser decodes a declaration file
type Parser interface {
	// Parse parses a byte slice into a validated Declaration
	Parse(data []byte) (*Declaration, error)
}

// ForFile returns the parser for a file, chosen by extension
func ForFile(path string) (Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return NewYAMLParser(), nil
	case ".json":
		return NewJSONParser(), nil
	case ".cue":
		return NewCUEParser(), nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// ParseReader reads everything from r and parses it with p
func ParseReader(p Parser, r io.Reader) (*Declaration, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return p.Parse(data)
}

// YAMLParser parses YAML declarations
type YAMLParser struct{}

// NewYAMLParser creates a new YAML parser
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// Parse parses YAML data into a Declaration
func (p *YAMLParser) Parse(data []byte) (*Declaration, error) {
	var decl Declaration

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&decl); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("failed to parse declaration YAML: empty document")
		}
		logger.Debug("Failed to parse YAML", zap.Error(err))
		return nil, fmt.Errorf("failed to parse declaration YAML: %w", err)
	}
	return finish(&decl)
}

// JSONParser parses JSON declarations
type JSONParser struct{}

// NewJSONParser creates a new JSON parser
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Parse parses JSON data into a Declaration. Numbers are kept exact.
func (p *JSONParser) Parse(data []byte) (*Declaration, error) {
	var decl Declaration

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&decl); err != nil {
		logger.Debug("Failed to parse JSON", zap.Error(err))
		return nil, fmt.Errorf("failed to parse declaration JSON: %w", err)
	}
	return finish(&decl)
}

func finish(decl *Declaration) (*Declaration, error) {
	if err := decl.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Successfully parsed declaration",
		zap.String("name", decl.Metadata.Name),
		zap.Int("components", len(decl.Components)))
	return decl, nil
}
