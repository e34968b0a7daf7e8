package testsupport

import (
	"testing"

	"savesync/internal/config"
	"savesync/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.OpenStore(cfg)
	if err != nil {
		t.Fatalf("queue.OpenStore: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
