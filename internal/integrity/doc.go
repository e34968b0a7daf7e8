// Package integrity detects and, where possible, repairs corrupted save
// data. It produces deterministic checksums over canonical JSON, validates
// payloads against a declarative schema, and substitutes schema defaults for
// corrupted fields on request. Recovery never upgrades a result to fully
// valid; callers decide whether degraded data is acceptable.
package integrity
