package config

import (
	"errors"
	"fmt"
	"strings"
)

// KnownProviders lists the accepted provider.name values.
var KnownProviders = []string{"firebase", "supabase", "s3", "none"}

// Validate ensures the configuration is usable. A provider that is enabled
// must carry its full credential block; validation failures abort
// initialization.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProvider() error {
	name := c.Provider.Name
	known := false
	for _, candidate := range KnownProviders {
		if name == candidate {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("provider.name: unknown value %q (expected one of %s)", name, strings.Join(KnownProviders, ", "))
	}

	if !c.Provider.Enabled {
		return nil
	}
	switch name {
	case "none":
		return errors.New("provider.enabled is true but provider.name is \"none\"")
	case "firebase":
		if c.Provider.Firebase.DatabaseURL == "" {
			return errors.New("provider.firebase.database_url must be set when the firebase provider is enabled")
		}
		if c.Provider.Firebase.APIKey == "" {
			return errors.New("provider.firebase.api_key must be set when the firebase provider is enabled")
		}
	case "supabase":
		if c.Provider.Supabase.URL == "" {
			return errors.New("provider.supabase.url must be set when the supabase provider is enabled")
		}
		if c.Provider.Supabase.APIKey == "" {
			return errors.New("provider.supabase.api_key must be set when the supabase provider is enabled")
		}
	case "s3":
		if c.Provider.S3.Bucket == "" {
			return errors.New("provider.s3.bucket must be set when the s3 provider is enabled")
		}
		if c.Provider.S3.Region == "" && c.Provider.S3.Endpoint == "" {
			return errors.New("provider.s3 requires region or endpoint when the s3 provider is enabled")
		}
	}
	return nil
}

func (c *Config) validateQueue() error {
	if err := ensurePositiveMap(map[string]int{
		"queue.max_queue_size":         c.Queue.MaxQueueSize,
		"queue.retry_delay_ms":         c.Queue.RetryDelayMS,
		"queue.max_retry_delay_ms":     c.Queue.MaxRetryDelayMS,
		"queue.max_retries":            c.Queue.MaxRetries,
		"queue.processing_concurrency": c.Queue.ProcessingConcurrency,
	}); err != nil {
		return err
	}
	if c.Queue.MaxRetryDelayMS < c.Queue.RetryDelayMS {
		return errors.New("queue.max_retry_delay_ms must be >= queue.retry_delay_ms")
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if !c.Features.NetworkMonitoring {
		return nil
	}
	if c.Network.PingURL == "" {
		return errors.New("network.ping_url must be set when features.network_monitoring is true")
	}
	if err := ensurePositiveMap(map[string]int{
		"network.ping_interval_ms": c.Network.PingIntervalMS,
		"network.ping_timeout_ms":  c.Network.PingTimeoutMS,
		"network.retry_attempts":   c.Network.RetryAttempts,
	}); err != nil {
		return err
	}
	if c.Network.PingTimeoutMS >= c.Network.PingIntervalMS {
		return errors.New("network.ping_timeout_ms must be less than network.ping_interval_ms")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
