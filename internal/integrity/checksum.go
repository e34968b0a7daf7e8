package integrity

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Checksum computes a deterministic digest of data. Structurally identical
// inputs yield identical digests regardless of Go type or map iteration
// order; changing any field value changes the digest.
func Checksum(data any) (string, error) {
	canonical, err := canonicalJSON(data)
	if err != nil {
		return "", fmt.Errorf("compute checksum: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(canonical)), nil
}

// VerifyChecksum reports whether data hashes to expected. A digest
// computation failure reports false.
func VerifyChecksum(data any, expected string) bool {
	if expected == "" {
		return false
	}
	digest, err := Checksum(data)
	if err != nil {
		return false
	}
	return digest == expected
}

// canonicalJSON serializes data into a byte-stable JSON form. The round-trip
// through any normalizes struct values into maps, whose keys encoding/json
// emits in sorted order.
func canonicalJSON(data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}
