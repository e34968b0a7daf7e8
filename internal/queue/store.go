package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"savesync/internal/config"
)

// Store manages queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// OpenStore initializes or connects to the queue database.
func OpenStore(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenStoreAt(cfg.QueueDatabasePath())
}

// OpenStoreAt opens a queue database at an explicit path.
func OpenStoreAt(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const operationColumns = `id, op_type, created_at, retry_count, max_retries, priority,
    payload, owner_id, slot_number, description, next_attempt_at`

// Insert persists a new operation.
func (s *Store) Insert(ctx context.Context, op *Operation) error {
	if op == nil {
		return errors.New("operation is nil")
	}
	return s.execWithRetry(
		ctx,
		`INSERT INTO operations (`+operationColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID,
		string(op.Type),
		op.CreatedAt.UTC().Format(time.RFC3339Nano),
		op.RetryCount,
		op.MaxRetries,
		op.Priority,
		nullableString(string(op.Payload)),
		op.Metadata.OwnerID,
		nullableInt(op.Metadata.SlotNumber),
		nullableString(op.Metadata.Description),
		nullableTime(op.NextAttemptAt),
	)
}

// Update persists retry bookkeeping for an existing operation.
func (s *Store) Update(ctx context.Context, op *Operation) error {
	if op == nil {
		return errors.New("operation is nil")
	}
	return s.execWithRetry(
		ctx,
		`UPDATE operations SET retry_count = ?, next_attempt_at = ? WHERE id = ?`,
		op.RetryCount,
		nullableTime(op.NextAttemptAt),
		op.ID,
	)
}

// Delete removes an operation by identifier.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.execWithRetry(ctx, `DELETE FROM operations WHERE id = ?`, id)
}

// DeleteAll removes every persisted operation.
func (s *Store) DeleteAll(ctx context.Context) error {
	return s.execWithRetry(ctx, `DELETE FROM operations`)
}

// DeleteFailed removes operations that have failed at least once.
func (s *Store) DeleteFailed(ctx context.Context) error {
	return s.execWithRetry(ctx, `DELETE FROM operations WHERE retry_count > 0`)
}

// LoadAll returns every persisted operation in dispatch order.
func (s *Store) LoadAll(ctx context.Context) ([]*Operation, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+operationColumns+` FROM operations ORDER BY priority DESC, created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("load operations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ops []*Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}

func scanOperation(rows *sql.Rows) (*Operation, error) {
	var (
		op          Operation
		opType      string
		createdAt   string
		payload     sql.NullString
		slotNumber  sql.NullInt64
		description sql.NullString
		nextAttempt sql.NullString
	)
	if err := rows.Scan(
		&op.ID,
		&opType,
		&createdAt,
		&op.RetryCount,
		&op.MaxRetries,
		&op.Priority,
		&payload,
		&op.Metadata.OwnerID,
		&slotNumber,
		&description,
		&nextAttempt,
	); err != nil {
		return nil, fmt.Errorf("scan operation: %w", err)
	}

	op.Type = Type(opType)
	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", op.ID, err)
	}
	op.CreatedAt = parsed

	if payload.Valid {
		op.Payload = []byte(payload.String)
	}
	if slotNumber.Valid {
		slot := int(slotNumber.Int64)
		op.Metadata.SlotNumber = &slot
	}
	if description.Valid {
		op.Metadata.Description = description.String
	}
	if nextAttempt.Valid && nextAttempt.String != "" {
		at, err := time.Parse(time.RFC3339Nano, nextAttempt.String)
		if err != nil {
			return nil, fmt.Errorf("parse next_attempt_at for %s: %w", op.ID, err)
		}
		op.NextAttemptAt = &at
	}
	return &op, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
