package config

import "strings"

// normalize expands paths and canonicalizes string fields in place.
func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return err
	}

	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	if c.Provider.Name == "" {
		c.Provider.Name = defaultProvider
	}
	c.Provider.Firebase.DatabaseURL = strings.TrimRight(strings.TrimSpace(c.Provider.Firebase.DatabaseURL), "/")
	c.Provider.Firebase.APIKey = strings.TrimSpace(c.Provider.Firebase.APIKey)
	c.Provider.Supabase.URL = strings.TrimRight(strings.TrimSpace(c.Provider.Supabase.URL), "/")
	c.Provider.Supabase.APIKey = strings.TrimSpace(c.Provider.Supabase.APIKey)
	c.Provider.Supabase.Table = strings.TrimSpace(c.Provider.Supabase.Table)
	if c.Provider.Supabase.Table == "" {
		c.Provider.Supabase.Table = defaultSupabaseTable
	}
	c.Provider.S3.Bucket = strings.TrimSpace(c.Provider.S3.Bucket)
	c.Provider.S3.Region = strings.TrimSpace(c.Provider.S3.Region)
	c.Provider.S3.Endpoint = strings.TrimRight(strings.TrimSpace(c.Provider.S3.Endpoint), "/")
	c.Provider.S3.KeyPrefix = strings.Trim(strings.TrimSpace(c.Provider.S3.KeyPrefix), "/")
	if c.Provider.S3.KeyPrefix == "" {
		c.Provider.S3.KeyPrefix = defaultS3KeyPrefix
	}

	c.Network.PingURL = strings.TrimSpace(c.Network.PingURL)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
