package firebase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"savesync/internal/provider"
	"savesync/internal/provider/firebase"
)

// fakeRTDB implements just enough of the Realtime Database REST surface:
// PUT/GET/DELETE on a path, returning the JSON literal null for absent data.
type fakeRTDB struct {
	mu      sync.Mutex
	data    map[string]json.RawMessage
	authKey string
}

func (f *fakeRTDB) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.authKey != "" && r.URL.Query().Get("auth") != f.authKey {
			http.Error(w, `{"error":"Permission denied"}`, http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			body := json.RawMessage{}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}
			f.data[r.URL.Path] = body
			_, _ = w.Write(body)
		case http.MethodGet:
			if body, ok := f.data[r.URL.Path]; ok {
				_, _ = w.Write(body)
				return
			}
			_, _ = w.Write([]byte("null"))
		case http.MethodDelete:
			delete(f.data, r.URL.Path)
			_, _ = w.Write([]byte("null"))
		default:
			http.Error(w, "unsupported", http.StatusMethodNotAllowed)
		}
	})
}

func newTestClient(t *testing.T, authKey string) (*firebase.Client, *fakeRTDB) {
	t.Helper()
	rtdb := &fakeRTDB{data: make(map[string]json.RawMessage), authKey: authKey}
	server := httptest.NewServer(rtdb.handler())
	t.Cleanup(server.Close)

	client, err := firebase.New(firebase.Options{
		DatabaseURL: server.URL,
		APIKey:      authKey,
		HTTPClient:  server.Client(),
	})
	if err != nil {
		t.Fatalf("firebase.New: %v", err)
	}
	return client, rtdb
}

func TestNewRequiresDatabaseURL(t *testing.T) {
	_, err := firebase.New(firebase.Options{})
	if !errors.Is(err, provider.ErrAuth) {
		t.Fatalf("expected ErrAuth for missing URL, got %v", err)
	}
}

func TestSaveLoadDeleteRoundTrip(t *testing.T) {
	client, _ := newTestClient(t, "test-key")
	ctx := context.Background()

	payload := []byte(`{"player":"hero","level":3}`)
	if err := client.Save(ctx, "player-1", 1, payload); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := client.Load(ctx, "player-1", 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("round trip mismatch: %s", data)
	}

	if err := client.Delete(ctx, "player-1", 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = client.Load(ctx, "player-1", 1)
	if !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestLoadMissingSlotIsNotFound(t *testing.T) {
	client, _ := newTestClient(t, "")
	_, err := client.Load(context.Background(), "player-1", 7)
	if !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectedCredentialsAreAuthErrors(t *testing.T) {
	rtdb := &fakeRTDB{data: make(map[string]json.RawMessage), authKey: "right-key"}
	server := httptest.NewServer(rtdb.handler())
	t.Cleanup(server.Close)

	client, err := firebase.New(firebase.Options{
		DatabaseURL: server.URL,
		APIKey:      "wrong-key",
		HTTPClient:  server.Client(),
	})
	if err != nil {
		t.Fatalf("firebase.New: %v", err)
	}

	saveErr := client.Save(context.Background(), "player-1", 1, []byte(`{}`))
	if !errors.Is(saveErr, provider.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", saveErr)
	}
	if provider.Retryable(saveErr) {
		t.Fatal("auth failures must not be retryable")
	}
}

func TestTestConnection(t *testing.T) {
	client, _ := newTestClient(t, "test-key")
	if err := client.TestConnection(context.Background()); err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
}
