package orchestrator

import (
	"time"

	"savesync/internal/config"
)

// InitializationStatus is the outcome of one startup attempt. Connectivity
// test failures land in Warnings, not Errors; the system still comes up in
// queue-only mode.
type InitializationStatus struct {
	IsInitialized bool
	IsConfigured  bool
	IsConnected   bool
	Provider      string
	Features      config.Features
	Errors        []string
	Warnings      []string
	Timestamp     time.Time
}

// ConfigurationSummary is a credential-free view of the active
// configuration, safe to print or log.
type ConfigurationSummary struct {
	Provider        string
	ProviderEnabled bool
	Features        config.Features
	MaxQueueSize    int
	MaxRetries      int
	PingURL         string
	DataDir         string
	HasCredentials  bool
}
