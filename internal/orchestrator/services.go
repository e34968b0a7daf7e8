package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"savesync/internal/compress"
	"savesync/internal/config"
	"savesync/internal/integrity"
	"savesync/internal/netmon"
	"savesync/internal/provider"
	"savesync/internal/provider/firebase"
	"savesync/internal/provider/s3"
	"savesync/internal/provider/supabase"
	"savesync/internal/queue"
)

// Services holds the live subsystem instances built during initialization.
// Disabled features leave their field nil.
type Services struct {
	Config   *config.Config
	Provider provider.Client
	Monitor  *netmon.Monitor
	Store    *queue.Store
	Queue    *queue.Queue
	Codec    *compress.Codec
}

func buildProvider(ctx context.Context, cfg *config.Config) (provider.Client, error) {
	if !cfg.Provider.Enabled || cfg.Provider.Name == "none" {
		return provider.NewMemoryClient(), nil
	}
	switch cfg.Provider.Name {
	case "firebase":
		return firebase.New(firebase.Options{
			DatabaseURL: cfg.Provider.Firebase.DatabaseURL,
			APIKey:      cfg.Provider.Firebase.APIKey,
		})
	case "supabase":
		return supabase.New(supabase.Options{
			URL:    cfg.Provider.Supabase.URL,
			APIKey: cfg.Provider.Supabase.APIKey,
			Table:  cfg.Provider.Supabase.Table,
		})
	case "s3":
		return s3.New(ctx, s3.Options{
			Bucket:          cfg.Provider.S3.Bucket,
			Region:          cfg.Provider.S3.Region,
			Endpoint:        cfg.Provider.S3.Endpoint,
			AccessKeyID:     cfg.Provider.S3.AccessKeyID,
			SecretAccessKey: cfg.Provider.S3.SecretAccessKey,
			KeyPrefix:       cfg.Provider.S3.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}

// savePayload is the wire shape of save and load operations. Data is the
// save content; the checksum travels alongside so the loading side can
// detect corruption.
type savePayload struct {
	Data     json.RawMessage `json:"data"`
	Checksum string          `json:"checksum,omitempty"`
}

// loadResult is what a load executor hands back through OnSuccess.
type loadResult struct {
	Data          json.RawMessage `json:"data"`
	Checksum      string          `json:"checksum,omitempty"`
	ChecksumValid bool            `json:"checksum_valid"`
	LoadedAt      string          `json:"loaded_at"`
}

// syncResult summarizes the remote slots after a sync operation.
type syncResult struct {
	Slots    []provider.SlotInfo `json:"slots"`
	SyncedAt string              `json:"synced_at"`
}

// buildExecutors wires the save pipeline: integrity checksum, optional
// compression, then the provider call. Custom operations have no default
// executor; callers register their own before draining.
func buildExecutors(client provider.Client, codec *compress.Codec) map[queue.Type]queue.Executor {
	slotOf := func(op *queue.Operation) int {
		if op.Metadata.SlotNumber != nil {
			return *op.Metadata.SlotNumber
		}
		return 0
	}

	classify := func(err error) error {
		if err == nil {
			return nil
		}
		if !provider.Retryable(err) {
			return queue.Permanent(err)
		}
		return err
	}

	executors := map[queue.Type]queue.Executor{
		queue.TypeSave: func(ctx context.Context, op *queue.Operation, progress func(string, float64)) (json.RawMessage, error) {
			var payload savePayload
			if err := json.Unmarshal(op.Payload, &payload); err != nil {
				return nil, queue.Permanent(fmt.Errorf("decode save payload: %w", err))
			}

			progress("checksum", 10)
			var document any
			if err := json.Unmarshal(payload.Data, &document); err != nil {
				return nil, queue.Permanent(fmt.Errorf("decode save data: %w", err))
			}
			checksum, err := integrity.Checksum(document)
			if err != nil {
				return nil, queue.Permanent(fmt.Errorf("checksum save data: %w", err))
			}
			payload.Checksum = checksum

			body, err := json.Marshal(payload)
			if err != nil {
				return nil, queue.Permanent(fmt.Errorf("encode save envelope: %w", err))
			}
			if codec != nil {
				progress("compress", 40)
				body = codec.Compress(body)
			}

			progress("upload", 60)
			if err := client.Save(ctx, op.Metadata.OwnerID, slotOf(op), body); err != nil {
				return nil, classify(err)
			}
			progress("done", 100)
			return json.RawMessage(fmt.Sprintf(`{"checksum":%q}`, checksum)), nil
		},

		queue.TypeLoad: func(ctx context.Context, op *queue.Operation, progress func(string, float64)) (json.RawMessage, error) {
			progress("download", 20)
			body, err := client.Load(ctx, op.Metadata.OwnerID, slotOf(op))
			if err != nil {
				return nil, classify(err)
			}
			if codec != nil {
				progress("decompress", 60)
				body, err = codec.Decompress(body)
				if err != nil {
					return nil, queue.Permanent(err)
				}
			}

			var payload savePayload
			if err := json.Unmarshal(body, &payload); err != nil {
				return nil, queue.Permanent(fmt.Errorf("decode stored payload: %w", err))
			}

			progress("verify", 80)
			result := loadResult{
				Data:     payload.Data,
				Checksum: payload.Checksum,
				LoadedAt: time.Now().UTC().Format(time.RFC3339),
			}
			if payload.Checksum != "" {
				var document any
				if err := json.Unmarshal(payload.Data, &document); err == nil {
					result.ChecksumValid = integrity.VerifyChecksum(document, payload.Checksum)
				}
			}
			out, err := json.Marshal(result)
			if err != nil {
				return nil, queue.Permanent(fmt.Errorf("encode load result: %w", err))
			}
			progress("done", 100)
			return out, nil
		},

		queue.TypeDelete: func(ctx context.Context, op *queue.Operation, progress func(string, float64)) (json.RawMessage, error) {
			progress("delete", 50)
			if err := client.Delete(ctx, op.Metadata.OwnerID, slotOf(op)); err != nil {
				return nil, classify(err)
			}
			progress("done", 100)
			return json.RawMessage(`{"deleted":true}`), nil
		},

		queue.TypeSync: func(ctx context.Context, op *queue.Operation, progress func(string, float64)) (json.RawMessage, error) {
			progress("list", 30)
			slots, err := client.List(ctx, op.Metadata.OwnerID)
			if err != nil {
				return nil, classify(err)
			}
			out, err := json.Marshal(syncResult{
				Slots:    slots,
				SyncedAt: time.Now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				return nil, queue.Permanent(fmt.Errorf("encode sync result: %w", err))
			}
			progress("done", 100)
			return out, nil
		},
	}
	return executors
}
