package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// Type routes an operation to its executor.
type Type string

const (
	TypeSave   Type = "save"
	TypeLoad   Type = "load"
	TypeDelete Type = "delete"
	TypeSync   Type = "sync"
	TypeCustom Type = "custom"
)

var allTypes = []Type{TypeSave, TypeLoad, TypeDelete, TypeSync, TypeCustom}

// ParseType converts a string into a known Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range allTypes {
		if normalized == t {
			return t, true
		}
	}
	return "", false
}

// Metadata identifies whose data an operation touches.
type Metadata struct {
	OwnerID     string `json:"owner_id"`
	SlotNumber  *int   `json:"slot_number,omitempty"`
	Description string `json:"description,omitempty"`
}

// Operation is the durable record of one queued unit of remote work. It
// contains everything needed to execute after a process restart; callbacks
// are deliberately not part of it (see Callbacks).
type Operation struct {
	ID            string
	Type          Type
	CreatedAt     time.Time
	RetryCount    int
	MaxRetries    int
	Priority      int
	Payload       json.RawMessage
	Metadata      Metadata
	NextAttemptAt *time.Time
}

// Failed reports whether the operation has failed at least once and is
// awaiting a retry slot.
func (op *Operation) Failed() bool {
	return op.RetryCount > 0
}

// Exhausted reports whether the operation has consumed its retry budget.
func (op *Operation) Exhausted() bool {
	return op.RetryCount >= op.MaxRetries
}

// eligibleAt reports whether the operation may be dispatched at now.
func (op *Operation) eligibleAt(now time.Time) bool {
	if op.Exhausted() {
		return false
	}
	if op.NextAttemptAt != nil && now.Before(*op.NextAttemptAt) {
		return false
	}
	return true
}

// Callbacks is the in-memory handle joined to an Operation by ID. Handles
// are never serialized; operations reloaded after a restart execute without
// them, purely from type, payload, and metadata.
type Callbacks struct {
	OnSuccess  func(result json.RawMessage)
	OnError    func(err error)
	OnProgress func(stage string, percent float64)
}

// Record is the JSON-compatible persisted form of an Operation. Timestamps
// are RFC 3339 strings; callback fields do not exist here by construction.
type Record struct {
	ID            string          `json:"id"`
	Type          Type            `json:"type"`
	CreatedAt     string          `json:"created_at"`
	RetryCount    int             `json:"retry_count"`
	MaxRetries    int             `json:"max_retries"`
	Priority      int             `json:"priority"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Metadata      Metadata        `json:"metadata"`
	NextAttemptAt string          `json:"next_attempt_at,omitempty"`
}

// ToRecord converts the operation into its persisted form.
func (op *Operation) ToRecord() Record {
	rec := Record{
		ID:         op.ID,
		Type:       op.Type,
		CreatedAt:  op.CreatedAt.UTC().Format(time.RFC3339Nano),
		RetryCount: op.RetryCount,
		MaxRetries: op.MaxRetries,
		Priority:   op.Priority,
		Payload:    op.Payload,
		Metadata:   op.Metadata,
	}
	if op.NextAttemptAt != nil {
		rec.NextAttemptAt = op.NextAttemptAt.UTC().Format(time.RFC3339Nano)
	}
	return rec
}

// Status is a derived snapshot of queue health, recomputed on demand.
type Status struct {
	Total        int
	Pending      int
	Processing   int
	Failed       int
	IsProcessing bool
}
