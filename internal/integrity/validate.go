package integrity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Options controls structural validation depth.
type Options struct {
	// Deep additionally validates array element kinds and rejects
	// unprintable keys in open-ended object fields.
	Deep bool
}

// Report carries the outcome of a structural validation pass.
type Report struct {
	Errors          []string
	Warnings        []string
	CorruptedFields []string
}

// Result is the immutable outcome of a full integrity check. Callers that
// want recovery must invoke AttemptRecovery explicitly with this result.
type Result struct {
	IsValid         bool
	Checksum        string
	Errors          []string
	Warnings        []string
	CorruptedFields []string
	Timestamp       time.Time
}

// ValidateStructure checks data against schema, reporting every missing
// required field, every kind mismatch, and every constraint violation.
// Deprecated fields that are present produce warnings, never errors.
func ValidateStructure(data any, schema *Schema, opts Options) Report {
	var report Report
	if schema == nil {
		return report
	}

	normalized, err := normalize(data)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("data is not serializable: %v", err))
		return report
	}

	for _, rule := range schema.Fields {
		value, present := lookupPath(normalized, rule.Path)
		if !present {
			if rule.Required {
				report.Errors = append(report.Errors, fmt.Sprintf("missing required field %q", rule.Path))
				report.CorruptedFields = append(report.CorruptedFields, rule.Path)
			}
			continue
		}

		if rule.Kind != "" {
			if actual := kindOf(value); actual != rule.Kind {
				report.Errors = append(report.Errors, fmt.Sprintf("field %q: expected %s, found %s", rule.Path, rule.Kind, kindLabel(actual)))
				report.CorruptedFields = append(report.CorruptedFields, rule.Path)
				continue
			}
		}

		if violation := checkConstraints(rule, value, opts); violation != "" {
			report.Errors = append(report.Errors, fmt.Sprintf("field %q: %s", rule.Path, violation))
			report.CorruptedFields = append(report.CorruptedFields, rule.Path)
		}
	}

	for _, path := range schema.Deprecated {
		if _, present := lookupPath(normalized, path); present {
			report.Warnings = append(report.Warnings, fmt.Sprintf("field %q is deprecated and will be ignored", path))
		}
	}

	return report
}

// Validate runs the full integrity check: checksum comparison when an
// expected digest is supplied, then structural validation when a schema is
// supplied. Integrity violations are data on the result, not errors; only a
// failure to serialize the payload itself is returned as an error.
func Validate(data any, expectedChecksum string, schema *Schema, opts Options) (Result, error) {
	digest, err := Checksum(data)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		IsValid:   true,
		Checksum:  digest,
		Timestamp: time.Now().UTC(),
	}

	if expectedChecksum != "" && digest != expectedChecksum {
		result.IsValid = false
		result.Errors = append(result.Errors, fmt.Sprintf("checksum mismatch: expected %s, computed %s", expectedChecksum, digest))
	}

	if schema != nil {
		report := ValidateStructure(data, schema, opts)
		result.Errors = append(result.Errors, report.Errors...)
		result.Warnings = append(result.Warnings, report.Warnings...)
		result.CorruptedFields = append(result.CorruptedFields, report.CorruptedFields...)
		if len(report.Errors) > 0 {
			result.IsValid = false
		}
	}

	return result, nil
}

func checkConstraints(rule FieldRule, value any, opts Options) string {
	switch typed := value.(type) {
	case float64:
		if rule.Min != nil && typed < *rule.Min {
			return fmt.Sprintf("value %v below minimum %v", typed, *rule.Min)
		}
		if rule.Max != nil && typed > *rule.Max {
			return fmt.Sprintf("value %v above maximum %v", typed, *rule.Max)
		}
	case string:
		if rule.MinLength != nil && len(typed) < *rule.MinLength {
			return fmt.Sprintf("length %d below minimum %d", len(typed), *rule.MinLength)
		}
		if rule.MaxLength != nil && len(typed) > *rule.MaxLength {
			return fmt.Sprintf("length %d above maximum %d", len(typed), *rule.MaxLength)
		}
	case []any:
		if rule.MinLength != nil && len(typed) < *rule.MinLength {
			return fmt.Sprintf("length %d below minimum %d", len(typed), *rule.MinLength)
		}
		if rule.MaxLength != nil && len(typed) > *rule.MaxLength {
			return fmt.Sprintf("length %d above maximum %d", len(typed), *rule.MaxLength)
		}
		if opts.Deep && rule.ElemKind != "" {
			for i, elem := range typed {
				if actual := kindOf(elem); actual != rule.ElemKind {
					return fmt.Sprintf("element %d: expected %s, found %s", i, rule.ElemKind, kindLabel(actual))
				}
			}
		}
	case map[string]any:
		if opts.Deep {
			for key := range typed {
				if strings.TrimSpace(key) == "" {
					return "object contains a blank key"
				}
			}
		}
	}
	return ""
}

func kindLabel(kind Kind) string {
	if kind == "" {
		return "null"
	}
	return string(kind)
}

// normalize round-trips data through JSON so lookups see maps and float64s
// regardless of the caller's Go types.
func normalize(data any) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}
