package records

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/payerops/paflow/internal/llm"
)

// NotProvided is the fallback value for string fields the extraction could
// not populate.
const NotProvided = "Not provided"

// Validate checks raw extraction output against a record schema, repairing
// individual fields instead of failing the record. For each declared field
// the raw value is looked up by name (or alias) and checked against the
// declared kind; on failure the field is replaced, in priority order, by the
// schema default, the default factory, or a type-appropriate fallback.
// Extraction upstream is probabilistic, so partial or malformed fields are
// expected and must not abort the case.
//
// Only a whole-record failure after repair returns an error; that indicates
// a schema/programming defect, not bad input.
func Validate(raw map[string]any, schema *Schema, logger *slog.Logger) (map[string]any, error) {
	if logger == nil {
		logger = slog.Default()
	}

	validated := repairFields(raw, schema, logger)

	doc, err := json.Marshal(validated)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble %s record: %w", schema.Name, err)
	}
	jsonSchema, err := JSONSchema(schema.Name)
	if err == nil {
		if verr := llm.ValidateJSON(jsonSchema, doc); verr != nil {
			return nil, fmt.Errorf("%s record invalid after repair: %w", schema.Name, verr)
		}
	}

	return validated, nil
}

func repairFields(raw map[string]any, schema *Schema, logger *slog.Logger) map[string]any {
	validated := make(map[string]any, len(schema.Fields))

	for _, field := range schema.Fields {
		value, ok := raw[field.Name]
		if !ok && field.Alias != "" {
			value, ok = raw[field.Alias]
		}

		if field.Kind == KindObject {
			sub, _ := value.(map[string]any)
			if sub == nil {
				if ok {
					logger.Warn("field is not an object, repairing",
						"schema", schema.Name, "field", field.Name)
				}
				sub = map[string]any{}
			}
			validated[field.Name] = repairFields(sub, field.Object, logger)
			continue
		}

		checked, err := checkField(value, field.Kind)
		if err != nil {
			logger.Warn("field validation failed, substituting default",
				"schema", schema.Name, "field", field.Name, "error", err)
			validated[field.Name] = defaultFor(field)
			continue
		}
		validated[field.Name] = checked
	}

	return validated
}

// checkField validates a single raw value against the declared kind.
func checkField(value any, kind Kind) (any, error) {
	if value == nil {
		return nil, fmt.Errorf("missing value")
	}

	switch kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		if s == "" {
			return nil, fmt.Errorf("empty string")
		}
		return s, nil
	case KindInt:
		switch v := value.(type) {
		case int:
			return v, nil
		case float64:
			return int(v), nil
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return nil, fmt.Errorf("not an integer: %w", err)
			}
			return int(n), nil
		}
		return nil, fmt.Errorf("expected integer, got %T", value)
	case KindFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("not a number: %w", err)
			}
			return f, nil
		}
		return nil, fmt.Errorf("expected number, got %T", value)
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}
		return b, nil
	case KindList:
		l, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected list, got %T", value)
		}
		return l, nil
	case KindMap:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected map, got %T", value)
		}
		return m, nil
	}

	return nil, fmt.Errorf("unknown kind %q", kind)
}

// defaultFor returns the repair value for a failed field: declared default,
// then default factory, then the type-appropriate fallback.
func defaultFor(field Field) any {
	if field.Default != nil {
		return field.Default
	}
	if field.DefaultFunc != nil {
		return field.DefaultFunc()
	}

	switch field.Kind {
	case KindString:
		return NotProvided
	case KindInt:
		return 0
	case KindFloat:
		return 0.0
	case KindBool:
		return false
	case KindList:
		return []any{}
	case KindMap:
		return map[string]any{}
	default:
		return nil
	}
}
