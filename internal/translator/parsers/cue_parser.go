package parsers

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// CUEParser parses declarations written in CUE. The file must evaluate to
// concrete values; definitions and constraints are allowed.
type CUEParser struct {
	filename string
}

// NewCUEParser creates a new CUE parser
func NewCUEParser() *CUEParser {
	return &CUEParser{filename: "stack.cue"}
}

// Parse evaluates CUE data and decodes it into a Declaration
func (p *CUEParser) Parse(data []byte) (*Declaration, error) {
	ctx := cuecontext.New()

	value := ctx.CompileBytes(data, cue.Filename(p.filename))
	if value.Err() != nil {
		return nil, fmt.Errorf("failed to compile declaration CUE: %s", errors.Details(value.Err(), nil))
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("declaration CUE is not concrete: %s", errors.Details(err, nil))
	}

	var decl Declaration
	if err := value.Decode(&decl); err != nil {
		return nil, fmt.Errorf("failed to decode declaration CUE: %w", err)
	}
	return finish(&decl)
}
