// Package backup periodically snapshots the relay history store and uploads
// the snapshots to S3-compatible storage when configured. S3 is optional: with
// no endpoint configured the manager keeps local snapshots only.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dapperlabs/dapper-relay/pkg/logger"
	"github.com/dapperlabs/dapper-relay/pkg/store"
)

// S3Config configures S3-compatible snapshot storage.
type S3Config struct {
	Endpoint  string // e.g. "s3.amazonaws.com" or "minio.example.com"
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Prefix    string // object key prefix, e.g. "relay/mainnet/"
}

// S3ConfigFromEnv builds an S3Config from S3_* environment variables, or
// returns nil when S3 is not configured.
func S3ConfigFromEnv() *S3Config {
	endpoint := os.Getenv("S3_ENDPOINT")
	if endpoint == "" {
		return nil
	}

	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		bucket = "dapper-relay-backups"
	}
	prefix := os.Getenv("S3_PREFIX")
	if prefix == "" {
		prefix = "relay/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &S3Config{
		Endpoint:  endpoint,
		Bucket:    bucket,
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
		Region:    os.Getenv("S3_REGION"),
		UseSSL:    os.Getenv("S3_USE_SSL") != "false",
		Prefix:    prefix,
	}
}

// Manager runs the periodic snapshot loop.
type Manager struct {
	store     *store.Store
	backupDir string
	s3Config  *S3Config
	s3Client  *minio.Client
	period    time.Duration
	done      chan struct{}
}

// NewManager creates a backup manager. s3Cfg may be nil for local-only
// snapshots.
func NewManager(st *store.Store, backupDir string, period time.Duration, s3Cfg *S3Config) (*Manager, error) {
	m := &Manager{
		store:     st,
		backupDir: backupDir,
		s3Config:  s3Cfg,
		period:    period,
		done:      make(chan struct{}),
	}

	if s3Cfg != nil && s3Cfg.Endpoint != "" {
		client, err := minio.New(s3Cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(s3Cfg.AccessKey, s3Cfg.SecretKey, ""),
			Secure: s3Cfg.UseSSL,
			Region: s3Cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("backup: create S3 client: %w", err)
		}
		m.s3Client = client

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		exists, err := client.BucketExists(ctx, s3Cfg.Bucket)
		if err != nil {
			logger.Warn("Failed to check S3 bucket", "bucket", s3Cfg.Bucket, "err", err)
		} else if !exists {
			if err := client.MakeBucket(ctx, s3Cfg.Bucket, minio.MakeBucketOptions{Region: s3Cfg.Region}); err != nil {
				logger.Warn("Failed to create S3 bucket", "bucket", s3Cfg.Bucket, "err", err)
			} else {
				logger.Info("Created S3 bucket", "bucket", s3Cfg.Bucket)
			}
		}

		logger.Info("S3 snapshot upload enabled",
			"endpoint", s3Cfg.Endpoint,
			"bucket", s3Cfg.Bucket,
			"prefix", s3Cfg.Prefix,
		)
	}

	return m, nil
}

// Start begins the periodic snapshot loop.
func (m *Manager) Start() {
	go m.loop()
}

// Stop terminates the loop. A snapshot in flight completes.
func (m *Manager) Stop() {
	close(m.done)
}

func (m *Manager) loop() {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if err := m.RunBackup(); err != nil {
				logger.Error("Relay history backup failed", err)
			}
		}
	}
}

// RunBackup writes one snapshot and uploads it when S3 is configured. An
// upload failure is logged but does not fail the run: the local snapshot
// already succeeded.
func (m *Manager) RunBackup() error {
	name, err := m.store.BackupTo(m.backupDir)
	if err != nil {
		return err
	}
	if m.s3Client != nil {
		if err := m.uploadToS3(name); err != nil {
			logger.Error("S3 upload failed", err, "file", name)
		}
	}
	return nil
}

func (m *Manager) uploadToS3(localPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	filename := filepath.Base(localPath)
	objectName := m.s3Config.Prefix + filename

	info, err := m.s3Client.FPutObject(ctx, m.s3Config.Bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("backup: S3 upload: %w", err)
	}

	logger.Info("Snapshot uploaded to S3",
		"file", filename,
		"bucket", m.s3Config.Bucket,
		"object", objectName,
		"size", info.Size,
	)
	return nil
}
