package queue

import (
	"fmt"
	"maps"
	"strconv"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/rillworks/dataswale/config"
	"github.com/rillworks/dataswale/delta"
)

// transformer applies a layer's declarative transform rules to drained
// records. Set expressions are compiled once at queue open.
type transformer struct {
	rules    []config.TransformRule
	programs []map[string]*exprvm.Program
}

func newTransformer(rules []config.TransformRule) (*transformer, error) {
	t := &transformer{rules: rules}
	for _, rule := range rules {
		programs := make(map[string]*exprvm.Program, len(rule.Set))
		for name, expression := range rule.Set {
			program, err := exprlang.Compile(expression)
			if err != nil {
				return nil, fmt.Errorf("invalid transform expression for %q: %w", name, err)
			}
			programs[name] = program
		}
		t.programs = append(t.programs, programs)
	}
	return t, nil
}

func (t *transformer) apply(record delta.Record) (delta.Record, error) {
	if len(t.rules) == 0 {
		return record, nil
	}
	properties := maps.Clone(record.Properties)
	if properties == nil {
		properties = make(map[string]any)
	}
	for i, rule := range t.rules {
		for from, to := range rule.Rename {
			value, ok := properties[from]
			if !ok {
				continue
			}
			delete(properties, from)
			properties[to] = value
		}
		for name, target := range rule.Coerce {
			value, ok := properties[name]
			if !ok {
				continue
			}
			coerced, err := coerce(value, target)
			if err != nil {
				return record, fmt.Errorf("coerce %q: %w", name, err)
			}
			properties[name] = coerced
		}
		for name, program := range t.programs[i] {
			value, err := exprlang.Run(program, properties)
			if err != nil {
				return record, fmt.Errorf("set %q: %w", name, err)
			}
			properties[name] = value
		}
	}
	record.Properties = properties
	return record, nil
}

func coerce(value any, target string) (any, error) {
	switch target {
	case "string":
		switch v := value.(type) {
		case string:
			return v, nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case bool:
			return strconv.FormatBool(v), nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	case "int":
		switch v := value.(type) {
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		case string:
			return strconv.ParseInt(v, 10, 64)
		default:
			return nil, fmt.Errorf("cannot coerce %T to int", value)
		}
	case "float":
		switch v := value.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case string:
			return strconv.ParseFloat(v, 64)
		default:
			return nil, fmt.Errorf("cannot coerce %T to float", value)
		}
	case "bool":
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		default:
			return nil, fmt.Errorf("cannot coerce %T to bool", value)
		}
	default:
		return nil, fmt.Errorf("unknown coercion target %q", target)
	}
}
