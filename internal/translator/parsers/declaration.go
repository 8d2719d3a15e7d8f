package parsers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/withobsrvr/stackctl/internal/model"
)

const (
	// APIVersion is the declaration schema version
	APIVersion = "stackctl.io/v1"
	// DeclarationKind is the kind of a declaration document
	DeclarationKind = "Stack"
)

// Declaration describes an application as typed components
type Declaration struct {
	APIVersion string      `yaml:"apiVersion" json:"apiVersion" validate:"omitempty,eq=stackctl.io/v1"`
	Kind       string      `yaml:"kind" json:"kind" validate:"omitempty,eq=Stack"`
	Metadata   Metadata    `yaml:"metadata" json:"metadata"`
	Components []Component `yaml:"components" json:"components" validate:"required,min=1,dive"`
}

// Metadata names the stack
type Metadata struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	// Namespace is the default namespace of components that set none
	Namespace   string            `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Component is one node of the graph
type Component struct {
	Kind          string         `yaml:"kind" json:"kind" validate:"required,kind"`
	Name          string         `yaml:"name" json:"name" validate:"required"`
	Namespace     string         `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Properties    map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
	Attachments   []Reference    `yaml:"attachments,omitempty" json:"attachments,omitempty" validate:"dive"`
	Relationships []Relationship `yaml:"relationships,omitempty" json:"relationships,omitempty" validate:"dive"`
}

// Reference names another component. Namespace defaults to the
// referencing component's namespace.
type Reference struct {
	Kind      string `yaml:"kind" json:"kind" validate:"required,kind"`
	Name      string `yaml:"name" json:"name" validate:"required"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// Relationship is a typed edge to another component
type Relationship struct {
	Type      string `yaml:"type" json:"type" validate:"required,relation"`
	Kind      string `yaml:"kind" json:"kind" validate:"required,kind"`
	Name      string `yaml:"name" json:"name" validate:"required"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// validate is a singleton validator instance
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("kind", func(fl validator.FieldLevel) bool {
		_, err := model.ParseKind(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("relation", func(fl validator.FieldLevel) bool {
		_, err := model.ParseRelationType(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks the declaration's shape. Graph-level rules are checked
// when the graph is built.
func (d *Declaration) Validate() error {
	if d == nil {
		return errors.New("declaration cannot be nil")
	}
	if err := validate.Struct(d); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	errs := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := strings.TrimPrefix(e.Namespace(), "Declaration.")
		switch e.Tag() {
		case "required":
			errs = append(errs, fmt.Errorf("%s: field is required", field))
		case "min":
			errs = append(errs, fmt.Errorf("%s: must have at least %s entries", field, e.Param()))
		case "eq":
			errs = append(errs, fmt.Errorf("%s: must be %q, got %q", field, e.Param(), e.Value()))
		case "kind":
			errs = append(errs, fmt.Errorf("%s: unknown component kind %q", field, e.Value()))
		case "relation":
			errs = append(errs, fmt.Errorf("%s: unknown relationship type %q", field, e.Value()))
		default:
			errs = append(errs, fmt.Errorf("%s: validation failed (%s)", field, e.Tag()))
		}
	}
	return fmt.Errorf("invalid declaration: %w", errors.Join(errs...))
}
