// Package config centralizes how newsmigrate reads environment variables and
// exposes them as strongly typed values.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type (
	// Config is the runtime configuration for one migration run.
	Config struct {
		Liferay
		Processing
		History
		Report
	}

	// Liferay holds connection and content-structure settings for the
	// destination platform.
	Liferay struct {
		BaseURL  string
		SiteID   int64
		Username string
		Password string
		Timeout  time.Duration

		// DocumentParentFolderID is the root for per-record document folders
		// and doubles as the degraded fallback when folder creation fails.
		DocumentParentFolderID int64
		// ContentParentFolderID is the root for structured-content folders.
		ContentParentFolderID int64
		// ContentStructureID identifies the destination content type.
		ContentStructureID int64
	}

	Processing struct {
		BatchSize      int
		BatchDelay     time.Duration
		MaxConcurrency int
		MaxRetries     int
		// LimitItems caps the number of records for trial runs; zero means all.
		LimitItems int
	}

	// History enables the optional Postgres run-history store when DSN is set.
	History struct {
		DSN string
	}

	// Report controls where the per-item result report lands. The S3 settings
	// are optional; when Endpoint is empty the report stays local only.
	Report struct {
		Path        string
		S3Endpoint  string
		S3AccessKey string
		S3SecretKey string
		S3Bucket    string
		S3UseSSL    bool
		S3Region    string
	}
)

// Load reads configuration from environment variables falling back to
// defaults, then validates the values the engine cannot run without.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("liferay_timeout", "30s")
	v.SetDefault("batch_size", 3)
	v.SetDefault("batch_delay", "2s")
	v.SetDefault("max_concurrency", 3)
	v.SetDefault("max_retries", 3)
	v.SetDefault("limit_items", 0)
	v.SetDefault("report_path", "migration_report.json")
	v.SetDefault("report_s3_bucket", "migration-reports")
	v.SetDefault("report_s3_use_ssl", true)
	v.SetDefault("report_s3_region", "")

	cfg := &Config{
		Liferay: Liferay{
			BaseURL:                v.GetString("LIFERAY_BASE_URL"),
			SiteID:                 v.GetInt64("LIFERAY_SITE_ID"),
			Username:               v.GetString("LIFERAY_USERNAME"),
			Password:               v.GetString("LIFERAY_PASSWORD"),
			Timeout:                v.GetDuration("LIFERAY_TIMEOUT"),
			DocumentParentFolderID: v.GetInt64("LIFERAY_PARENT_FOLDER_ID"),
			ContentParentFolderID:  v.GetInt64("STRUCTURED_CONTENT_PARENT_FOLDER_ID"),
			ContentStructureID:     v.GetInt64("STRUCTURED_CONTENT_STRUCTURE_ID"),
		},
		Processing: Processing{
			BatchSize:      v.GetInt("BATCH_SIZE"),
			BatchDelay:     v.GetDuration("BATCH_DELAY"),
			MaxConcurrency: v.GetInt("MAX_CONCURRENCY"),
			MaxRetries:     v.GetInt("MAX_RETRIES"),
			LimitItems:     v.GetInt("LIMIT_ITEMS"),
		},
		History: History{
			DSN: v.GetString("DATABASE_URL"),
		},
		Report: Report{
			Path:        v.GetString("REPORT_PATH"),
			S3Endpoint:  v.GetString("REPORT_S3_ENDPOINT"),
			S3AccessKey: v.GetString("REPORT_S3_ACCESS_KEY"),
			S3SecretKey: v.GetString("REPORT_S3_SECRET_KEY"),
			S3Bucket:    v.GetString("REPORT_S3_BUCKET"),
			S3UseSSL:    v.GetBool("REPORT_S3_USE_SSL"),
			S3Region:    v.GetString("REPORT_S3_REGION"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Liferay.BaseURL == "" {
		return fmt.Errorf("LIFERAY_BASE_URL is required")
	}
	if c.Liferay.SiteID == 0 {
		return fmt.Errorf("LIFERAY_SITE_ID is required")
	}
	if c.Liferay.Username == "" || c.Liferay.Password == "" {
		return fmt.Errorf("LIFERAY_USERNAME and LIFERAY_PASSWORD are required")
	}
	if c.Liferay.ContentStructureID == 0 {
		return fmt.Errorf("STRUCTURED_CONTENT_STRUCTURE_ID is required")
	}
	if c.Processing.BatchSize <= 0 {
		c.Processing.BatchSize = 1
	}
	if c.Processing.MaxConcurrency <= 0 {
		c.Processing.MaxConcurrency = c.Processing.BatchSize
	}
	if c.Processing.MaxRetries < 0 {
		c.Processing.MaxRetries = 0
	}
	if c.Liferay.Timeout <= 0 {
		c.Liferay.Timeout = 30 * time.Second
	}
	return nil
}
