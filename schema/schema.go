// Package schema parses layer property schemas declared as GraphQL SDL and
// validates property mappings against them.
package schema

import (
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// Schema describes the expected shape of a record property mapping.
type Schema struct {
	source string
	def    *ast.Definition
}

// Parse loads a schema from GraphQL SDL source. The source must declare
// exactly one object type, whose fields describe the properties.
func Parse(source string) (*Schema, error) {
	as, err := gqlparser.LoadSchema(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	var def *ast.Definition
	for _, d := range as.Types {
		if d.BuiltIn || d.Kind != ast.Object {
			continue
		}
		if def != nil {
			return nil, fmt.Errorf("schema must declare exactly one object type")
		}
		def = d
	}
	if def == nil {
		return nil, fmt.Errorf("schema must declare exactly one object type")
	}
	return &Schema{source: source, def: def}, nil
}

// Source returns the SDL source the schema was parsed from.
func (s *Schema) Source() string {
	return s.source
}

// Name returns the declared object type name.
func (s *Schema) Name() string {
	return s.def.Name
}

// Validate checks the given properties against the schema. Declared
// non-null fields must be present, and present declared fields must match
// their scalar type. Properties the schema does not declare are allowed.
func (s *Schema) Validate(properties map[string]any) error {
	for _, field := range s.def.Fields {
		value, ok := properties[field.Name]
		if !ok || value == nil {
			if field.Type.NonNull {
				return fmt.Errorf("missing required property %q", field.Name)
			}
			continue
		}
		if err := validateValue(field.Type, value); err != nil {
			return fmt.Errorf("property %q: %w", field.Name, err)
		}
	}
	return nil
}

func validateValue(typ *ast.Type, value any) error {
	if typ.Elem != nil {
		list, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected list, got %T", value)
		}
		for _, v := range list {
			if err := validateValue(typ.Elem, v); err != nil {
				return err
			}
		}
		return nil
	}
	switch typ.NamedType {
	case "String", "ID":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "Int":
		switch t := value.(type) {
		case int64:
		case float64:
			if t != float64(int64(t)) {
				return fmt.Errorf("expected integer, got %v", t)
			}
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case "Float":
		switch value.(type) {
		case float64, int64:
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case "Boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	default:
		return fmt.Errorf("unsupported schema type %q", typ.NamedType)
	}
	return nil
}
