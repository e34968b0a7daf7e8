package integrity

import (
	"encoding/json"
	"fmt"
)

// RecoveryOutcome reports what AttemptRecovery managed to restore.
type RecoveryOutcome struct {
	Recovered bool
	Data      map[string]any
	Warnings  []string
}

// AttemptRecovery substitutes schema defaults for every corrupted path in
// prior. Paths without a declared default are left untouched and reported.
// Recovery always carries a warning that defaults were substituted; it never
// produces a fully valid result by itself.
func AttemptRecovery(data any, prior Result, schema *Schema) (RecoveryOutcome, error) {
	outcome := RecoveryOutcome{}
	if schema == nil {
		return outcome, fmt.Errorf("attempt recovery: schema required")
	}
	if len(prior.CorruptedFields) == 0 {
		return outcome, nil
	}

	normalized, err := normalize(data)
	if err != nil {
		return outcome, fmt.Errorf("attempt recovery: %w", err)
	}
	root, ok := normalized.(map[string]any)
	if !ok {
		root = make(map[string]any)
	}
	clone, err := cloneObject(root)
	if err != nil {
		return outcome, fmt.Errorf("attempt recovery: %w", err)
	}

	restored := 0
	for _, path := range prior.CorruptedFields {
		rule, found := schema.Rule(path)
		if !found || rule.Default == nil {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("field %q has no default; left unrecovered", path))
			continue
		}
		if !setPath(clone, path, rule.Default) {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("field %q could not be written; left unrecovered", path))
			continue
		}
		restored++
	}

	if restored > 0 {
		outcome.Recovered = true
		outcome.Data = clone
		outcome.Warnings = append(outcome.Warnings,
			fmt.Sprintf("%d field(s) restored from schema defaults; review before trusting this data", restored))
	}
	return outcome, nil
}

func cloneObject(src map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = make(map[string]any)
	}
	return out, nil
}
