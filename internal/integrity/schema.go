package integrity

import "strings"

// Kind names the runtime shape a schema path must have.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// FieldRule constrains a single dotted path within a save payload.
type FieldRule struct {
	Path     string
	Kind     Kind
	Required bool

	// Numeric bounds, applied when Kind is number.
	Min *float64
	Max *float64

	// Length bounds, applied to strings and arrays.
	MinLength *int
	MaxLength *int

	// ElemKind constrains array elements; checked only in deep mode.
	ElemKind Kind

	// Default is substituted during recovery when the path is corrupted.
	// A nil Default makes the path unrecoverable.
	Default any
}

// Schema declares the expected structure of a save payload.
type Schema struct {
	Name       string
	Fields     []FieldRule
	Deprecated []string
}

// Rule returns the rule covering path, if any.
func (s *Schema) Rule(path string) (FieldRule, bool) {
	if s == nil {
		return FieldRule{}, false
	}
	for _, rule := range s.Fields {
		if rule.Path == path {
			return rule, true
		}
	}
	return FieldRule{}, false
}

// lookupPath walks a dotted path through nested maps. The boolean reports
// whether the full path exists.
func lookupPath(data any, path string) (any, bool) {
	current := data
	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// setPath writes value at a dotted path, creating intermediate objects as
// needed. It reports false when an intermediate node exists but is not an
// object.
func setPath(data map[string]any, path string, value any) bool {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok {
			child := make(map[string]any)
			current[part] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return false
		}
		current = child
	}
	current[parts[len(parts)-1]] = value
	return true
}

// kindOf classifies a JSON-normalized value.
func kindOf(value any) Kind {
	switch value.(type) {
	case string:
		return KindString
	case float64:
		return KindNumber
	case bool:
		return KindBoolean
	case map[string]any:
		return KindObject
	case []any:
		return KindArray
	default:
		return ""
	}
}
