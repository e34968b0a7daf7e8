// Package queue implements the durable offline operation queue and its
// processor. Operations are persisted to SQLite on every mutation and
// reloaded on construction; callbacks live only in process memory and are
// intentionally absent after a restart. Draining respects priority order,
// bounds concurrency, and retries failures with capped exponential backoff.
package queue
