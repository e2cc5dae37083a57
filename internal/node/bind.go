package node

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Bind resolves raw host values against params: defaults fill absent
// values, scalar tags are coerced and bounds are enforced. Widget params
// without a default receive absent or null values as nil. Unknown keys are
// ignored.
func Bind(params []Param, raw map[string]any) (Inputs, error) {
	in := make(Inputs, len(params))
	for _, p := range params {
		value, ok := raw[p.Name]
		if !ok || value == nil {
			switch {
			case p.Default != nil:
				value = p.Default
			case isWidget(p.Type):
				in[p.Name] = nil
				continue
			default:
				return nil, fmt.Errorf("%w: %s", ErrMissingInput, p.Name)
			}
		}

		bound, err := bindParam(p, value)
		if err != nil {
			return nil, err
		}
		in[p.Name] = bound
	}
	return in, nil
}

func isWidget(typ string) bool {
	switch typ {
	case TypeFloat, TypeInt, TypeBoolean, TypeCombo:
		return false
	}
	return true
}

func bindParam(p Param, value any) (any, error) {
	if p.Passthrough {
		return value, nil
	}

	switch p.Type {
	case TypeFloat:
		f, ok := asFloat(value)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a number, got %T", ErrInvalidInput, p.Name, value)
		}
		if p.Round > 0 {
			f = math.Round(f/p.Round) * p.Round
		}
		if err := checkBounds(p, f); err != nil {
			return nil, err
		}
		return f, nil
	case TypeInt:
		f, ok := asFloat(value)
		if !ok || f != math.Trunc(f) {
			return nil, fmt.Errorf("%w: %s expects an integer, got %v", ErrInvalidInput, p.Name, value)
		}
		if err := checkBounds(p, f); err != nil {
			return nil, err
		}
		return int(f), nil
	case TypeBoolean:
		b, ok := asBool(value)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a boolean, got %T", ErrInvalidInput, p.Name, value)
		}
		return b, nil
	case TypeCombo:
		s, ok := value.(string)
		if !ok || !slices.Contains(p.Options, s) {
			return nil, fmt.Errorf("%w: %s must be one of %s, got %v", ErrInvalidInput, p.Name, strings.Join(p.Options, ", "), value)
		}
		return s, nil
	default:
		return value, nil
	}
}

func checkBounds(p Param, f float64) error {
	var tags []string
	if p.Min != nil {
		tags = append(tags, "gte="+strconv.FormatFloat(*p.Min, 'f', -1, 64))
	}
	if p.Max != nil {
		tags = append(tags, "lte="+strconv.FormatFloat(*p.Max, 'f', -1, 64))
	}
	if len(tags) == 0 {
		return nil
	}
	if err := validate.Var(f, strings.Join(tags, ",")); err != nil {
		return fmt.Errorf("%w: %s=%v is out of range [%s]", ErrInvalidInput, p.Name, f, boundsLabel(p))
	}
	return nil
}

func boundsLabel(p Param) string {
	lo, hi := "-inf", "+inf"
	if p.Min != nil {
		lo = strconv.FormatFloat(*p.Min, 'f', -1, 64)
	}
	if p.Max != nil {
		hi = strconv.FormatFloat(*p.Max, 'f', -1, 64)
	}
	return lo + ", " + hi
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	default:
		return false, false
	}
}
