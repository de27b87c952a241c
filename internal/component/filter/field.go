package filter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/grafana/regexp"
	"github.com/mitchellh/mapstructure"

	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/record"
)

// Op is the tagged-variant operator set for the field filter.
type Op string

const (
	OpCmp       Op = "cmp"
	OpContains  Op = "contains"
	OpInRange   Op = "in_range"
	OpMatches   Op = "matches"
	OpTypeCheck Op = "type_check"
)

// FieldConfig is the typed configuration for the field filter, decoded
// from the flat option map via mapstructure (weakly typed, since every
// INI value arrives as a string).
type FieldConfig struct {
	Field  string `mapstructure:"field"`
	Op     Op     `mapstructure:"op"`
	Value  string `mapstructure:"value"`
	Min    string `mapstructure:"min"`
	Max    string `mapstructure:"max"`
	Negate bool   `mapstructure:"negate"`
}

// Field is the single parameterised filter component: one Field, one Op,
// and the operator-specific options it needs.
type Field struct {
	conf    FieldConfig
	matcher *regexp.Regexp
}

func newFieldFromOptions(opts map[string]string) (Filter, error) {
	var conf FieldConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &conf,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(opts); err != nil {
		return nil, fmt.Errorf("field filter: decode options: %w", err)
	}
	if conf.Field == "" {
		return nil, fmt.Errorf("field filter: %q option is required", "field")
	}
	if conf.Op == "" {
		conf.Op = OpCmp
	}
	f := &Field{conf: conf}
	if conf.Op == OpMatches {
		re, err := regexp.Compile(conf.Value)
		if err != nil {
			return nil, fmt.Errorf("field filter: compile matches pattern: %w", err)
		}
		f.matcher = re
	}
	return f, nil
}

func init() {
	Registry.Register("field", component.TypeSpec[Filter]{
		Constructor: newFieldFromOptions,
		Summary:     "A single field compared against a value using one of cmp, contains, in_range, matches, type_check.",
		Default:     FieldConfig{Op: OpCmp},
	})
}

// Start is a no-op; the field filter holds no external resources.
func (f *Field) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (f *Field) Stop(ctx context.Context) error { return nil }

// Allow evaluates the configured operator against the record's field.
func (f *Field) Allow(rec *record.Record) (bool, error) {
	result, err := f.evaluate(rec)
	if err != nil {
		return false, err
	}
	if f.conf.Negate {
		result = !result
	}
	return result, nil
}

func (f *Field) evaluate(rec *record.Record) (bool, error) {
	switch f.conf.Op {
	case OpCmp:
		v, ok := rec.GetString(f.conf.Field)
		return ok && v == f.conf.Value, nil

	case OpContains:
		v, ok := rec.GetString(f.conf.Field)
		return ok && strings.Contains(v, f.conf.Value), nil

	case OpInRange:
		v, ok := rec.Get(f.conf.Field)
		if !ok {
			return false, nil
		}
		n, err := toFloat(v)
		if err != nil {
			return false, nil
		}
		min, err := strconv.ParseFloat(f.conf.Min, 64)
		if err != nil {
			return false, fmt.Errorf("field filter: parse min: %w", err)
		}
		max, err := strconv.ParseFloat(f.conf.Max, 64)
		if err != nil {
			return false, fmt.Errorf("field filter: parse max: %w", err)
		}
		return n >= min && n <= max, nil

	case OpMatches:
		v, ok := rec.GetString(f.conf.Field)
		return ok && f.matcher.MatchString(v), nil

	case OpTypeCheck:
		v, ok := rec.Get(f.conf.Field)
		if !ok {
			return false, nil
		}
		return matchesType(v, f.conf.Value), nil

	default:
		return false, fmt.Errorf("field filter: unknown op %q", f.conf.Op)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("field filter: %v is not numeric", v)
	}
}

func matchesType(v any, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case float64, int:
			return true
		}
		return false
	case "bool":
		_, ok := v.(bool)
		return ok
	case "null":
		return v == nil
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return false
	}
}
