// Package storage persists original card photos to S3-compatible
// storage. Photos are encrypted at rest with a server-side passphrase
// since they carry handwritten contact details and prayer requests.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// PhotoStore uploads and deletes encrypted card photos. With no S3
// credentials configured it degrades to a no-op: cards are still
// created, just without archived originals.
type PhotoStore struct {
	client     s3Client
	bucket     string
	passphrase string
	logger     *slog.Logger
}

func NewPhotoStore(cfg S3Config, passphrase string, logger *slog.Logger) *PhotoStore {
	ps := &PhotoStore{
		bucket:     cfg.Bucket,
		passphrase: passphrase,
		logger:     logger.With("component", "storage"),
	}
	if cfg.configured() {
		ps.client = newS3Client(cfg)
	}
	return ps
}

func newS3Client(cfg S3Config) *s3.Client {
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

// Enabled reports whether photo archival is configured.
func (ps *PhotoStore) Enabled() bool {
	return ps.client != nil
}

// Put encrypts and uploads a card photo, returning the object key.
func (ps *PhotoStore) Put(ctx context.Context, orgID int64, photo []byte) (string, error) {
	if ps.client == nil {
		return "", fmt.Errorf("photo storage not configured")
	}

	sealed, err := Encrypt(photo, ps.passphrase)
	if err != nil {
		return "", fmt.Errorf("encrypt photo: %w", err)
	}

	key := fmt.Sprintf("cards/%d/%s", orgID, uuid.NewString())
	_, err = ps.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(ps.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return key, nil
}

// Get downloads and decrypts a stored photo.
func (ps *PhotoStore) Get(ctx context.Context, key string) ([]byte, error) {
	if ps.client == nil {
		return nil, fmt.Errorf("photo storage not configured")
	}

	result, err := ps.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ps.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download photo: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	return Decrypt(sealed, ps.passphrase)
}

// Delete removes the given photo objects, best effort. Failures are
// aggregated and returned for logging; rows referencing the keys are
// already gone, so there is nothing to roll back.
func (ps *PhotoStore) Delete(ctx context.Context, keys []string) error {
	if ps.client == nil || len(keys) == 0 {
		return nil
	}

	var errs error
	for _, key := range keys {
		if _, err := ps.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(ps.bucket),
			Key:    aws.String(key),
		}); err != nil {
			ps.logger.Warn("failed to delete photo object", "key", key, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errs
}
