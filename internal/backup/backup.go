// Package backup ships encrypted snapshots of the SQLite database to
// S3-compatible storage on a fixed interval.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
)

// s3API is the subset of the S3 client the manager uses, split out for
// testability.
type s3API interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds snapshot settings. The manager is disabled unless Bucket,
// AccessKey, SecretKey and Passphrase are all set.
type Config struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Passphrase string

	DBPath        string
	Interval      time.Duration
	RetentionDays int
}

const keyPrefix = "snapshots/"

// Manager takes periodic encrypted snapshots of the database file.
type Manager struct {
	cfg    Config
	db     *sql.DB
	client s3API
	logger *slog.Logger

	mu           sync.Mutex
	lastSnapshot time.Time
}

func New(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}

	m := &Manager{cfg: cfg, db: db, logger: logger}
	if cfg.Bucket != "" && cfg.AccessKey != "" && cfg.SecretKey != "" && cfg.Passphrase != "" {
		m.client = newS3Client(cfg)
	}
	return m
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether snapshots are configured.
func (m *Manager) Enabled() bool {
	return m.client != nil
}

// LastSnapshot returns the time of the most recent successful snapshot.
func (m *Manager) LastSnapshot() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSnapshot
}

// Run takes snapshots on the configured interval until the context is
// cancelled. It is a no-op when the manager is disabled.
func (m *Manager) Run(ctx context.Context) {
	if !m.Enabled() {
		return
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			key, err := m.Snapshot(ctx)
			if err != nil {
				m.logger.Error("snapshot failed", "error", err)
				continue
			}
			m.logger.Info("snapshot uploaded", "key", key)
			if err := m.prune(ctx); err != nil {
				m.logger.Error("prune failed", "error", err)
			}
		}
	}
}

// Snapshot checkpoints the WAL, encrypts a copy of the database file and
// uploads it. Returns the object key.
func (m *Manager) Snapshot(ctx context.Context) (string, error) {
	if !m.Enabled() {
		return "", fmt.Errorf("snapshots not configured")
	}

	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return "", fmt.Errorf("wal checkpoint: %w", err)
	}

	plain, err := os.ReadFile(m.cfg.DBPath)
	if err != nil {
		return "", fmt.Errorf("read database: %w", err)
	}

	sealed, err := Encrypt(plain, m.cfg.Passphrase)
	if err != nil {
		return "", err
	}

	key := keyPrefix + time.Now().UTC().Format("2006-01-02T150405Z") + ".db.enc"

	backoff := retry.WithMaxRetries(3, retry.NewExponential(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(m.cfg.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(sealed),
			ContentLength: aws.Int64(int64(len(sealed))),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	m.mu.Lock()
	m.lastSnapshot = time.Now().UTC()
	m.mu.Unlock()

	return key, nil
}

// prune deletes snapshots older than the retention period.
func (m *Manager) prune(ctx context.Context) error {
	out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.cfg.Bucket),
		Prefix: aws.String(keyPrefix),
	})
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -m.cfg.RetentionDays)

	var errs error
	for _, obj := range out.Contents {
		if obj.Key == nil || obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
			continue
		}
		_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    obj.Key,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", *obj.Key, err))
		}
	}
	return errs
}

// Fetch downloads and decrypts a snapshot, for restores.
func (m *Manager) Fetch(ctx context.Context, key string) ([]byte, error) {
	if !m.Enabled() {
		return nil, fmt.Errorf("snapshots not configured")
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download snapshot: %w", err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decrypt(buf.Bytes(), m.cfg.Passphrase)
}
