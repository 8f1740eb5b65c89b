// Package report renders the final run report: a local JSON file for the
// operator, optionally archived to S3-compatible storage.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/contentforge/newsmigrate/internal/config"
	"github.com/contentforge/newsmigrate/internal/model"
)

// Report is the serialized outcome of one run.
type Report struct {
	RunID      string                  `json:"runId,omitempty"`
	InputPath  string                  `json:"inputPath"`
	Statistics model.RunStatistics     `json:"statistics"`
	Results    []model.MigrationResult `json:"results"`
}

// WriteLocal renders the report as indented JSON at path.
func WriteLocal(path string, rep Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Archiver uploads run reports into an S3-compatible bucket.
type Archiver struct {
	client *minio.Client
	bucket string
	region string
}

// NewArchiver creates a MinIO client from the report configuration.
func NewArchiver(cfg config.Report) (*Archiver, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Archiver{client: client, bucket: cfg.S3Bucket, region: cfg.S3Region}, nil
}

// EnsureBucket makes sure the report bucket exists before use.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// Archive uploads the report and returns the object key it was stored under.
func (a *Archiver) Archive(ctx context.Context, rep Report) (string, error) {
	data, err := json.Marshal(rep)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	key := objectKey(rep)
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	if _, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return "", fmt.Errorf("upload report: %w", err)
	}
	return key, nil
}

func objectKey(rep Report) string {
	stamp := rep.Statistics.StartTime
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}
	if rep.RunID != "" {
		return fmt.Sprintf("runs/%s/%s.json", stamp.Format("2006-01-02"), rep.RunID)
	}
	return fmt.Sprintf("runs/%s/%s.json", stamp.Format("2006-01-02"), stamp.Format("150405"))
}
