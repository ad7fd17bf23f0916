// Package quantity evaluates the "quantity" marker a field's metadata may
// carry, which decides how the order quantity derives from the field's
// value. Expression markers run in a narrow sandbox: a fixed two-variable
// environment, no side effects, no host access.
package quantity

import (
	"fmt"
	"strconv"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Marker is a compiled quantity rule.
type Marker struct {
	// factor applies when the marker is a plain multiplier.
	factor float64

	// program applies when the marker carries an expression.
	program *vm.Program
}

// CompileMarker compiles the raw "quantity" entry of a field's metadata
// bag. Accepted shapes: true (identity), a numeric multiplier, or a
// mapping with an "expr" string evaluated against {value, selected}.
func CompileMarker(raw interface{}) (*Marker, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("quantity marker is empty")
	case bool:
		if !v {
			return nil, fmt.Errorf("quantity marker is disabled")
		}
		return &Marker{factor: 1}, nil
	case int:
		return &Marker{factor: float64(v)}, nil
	case int64:
		return &Marker{factor: float64(v)}, nil
	case float64:
		return &Marker{factor: v}, nil
	case map[string]interface{}:
		expression, _ := v["expr"].(string)
		if expression == "" {
			return nil, fmt.Errorf("quantity marker mapping has no expr")
		}
		program, err := expr.Compile(expression,
			expr.Env(map[string]interface{}{
				"value":    interface{}(nil),
				"selected": false,
			}),
			expr.AsFloat64(),
		)
		if err != nil {
			return nil, fmt.Errorf("compiling quantity expression: %w", err)
		}
		return &Marker{program: program}, nil
	default:
		return nil, fmt.Errorf("unsupported quantity marker type %T", raw)
	}
}

// Evaluate computes the order quantity for a field value.
func (m *Marker) Evaluate(value interface{}, selected bool) (float64, error) {
	if m.program != nil {
		result, err := expr.Run(m.program, map[string]interface{}{
			"value":    value,
			"selected": selected,
		})
		if err != nil {
			return 0, fmt.Errorf("evaluating quantity expression: %w", err)
		}
		quantity, ok := result.(float64)
		if !ok {
			return 0, fmt.Errorf("quantity expression returned %T, want number", result)
		}
		return quantity, nil
	}

	numeric, err := toNumber(value)
	if err != nil {
		return 0, err
	}
	return numeric * m.factor, nil
}

func toNumber(value interface{}) (float64, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("field value %q is not numeric", v)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("field value of type %T is not numeric", value)
	}
}
