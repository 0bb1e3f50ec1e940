// Package storage uploads publication archives to S3-compatible object
// storage and returns their public URL.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/leonkenneth/RNB-coeur/internal/logging"
)

// DefaultMaxParts is the part-count ceiling of the storage provider.
const DefaultMaxParts = 1000

// DefaultWaitTimeout matches the usual object-exists waiter budget.
const DefaultWaitTimeout = 100 * time.Second

// Config holds what the uploader needs to reach the bucket.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string

	// Directory is the key prefix ("files" gives files/RNB_75.csv.zip).
	Directory string

	// PublicBaseURL overrides the public URL prefix. Empty means
	// https://{bucket}.s3.{region}.scw.cloud.
	PublicBaseURL string

	MaxParts     int
	WaitTimeout  time.Duration
	UsePathStyle bool
}

// S3Uploader pushes files with a multipart upload sized to the provider's
// part ceiling, then waits until the object is readable.
type S3Uploader struct {
	client *s3.Client
	cfg    Config
}

// New creates an S3Uploader using static credentials from cfg.
func New(ctx context.Context, cfg Config) (*S3Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, ClientOptions(cfg))
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *s3.Client, cfg Config) *S3Uploader {
	if cfg.MaxParts <= 0 {
		cfg.MaxParts = DefaultMaxParts
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	return &S3Uploader{client: client, cfg: cfg}
}

// ClientOptions applies the endpoint settings of cfg to an s3 client.
// Checksums are only computed when the operation requires them: several
// S3-compatible providers reject the SDK's default trailing checksums.
func ClientOptions(cfg Config) func(*s3.Options) {
	return func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	}
}

// PartSize returns the multipart chunk size for an object of size bytes:
// max(1, size*1.2/maxParts). The 20% margin keeps the part count under
// maxParts.
func PartSize(size int64, maxParts int) int64 {
	if maxParts <= 0 {
		maxParts = DefaultMaxParts
	}
	ps := int64(float64(size) * 1.2 / float64(maxParts))
	if ps < 1 {
		return 1
	}
	return ps
}

// EffectivePartSize is PartSize raised to the smallest part S3 accepts.
func EffectivePartSize(size int64, maxParts int) int64 {
	return max(PartSize(size, maxParts), manager.MinUploadPartSize)
}

// Key returns the object key for a file name.
func (u *S3Uploader) Key(name string) string {
	if u.cfg.Directory == "" {
		return name
	}
	return path.Join(strings.Trim(u.cfg.Directory, "/"), name)
}

// PublicURL returns the anonymous download URL of key.
func (u *S3Uploader) PublicURL(key string) string {
	if u.cfg.PublicBaseURL != "" {
		return strings.TrimRight(u.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.scw.cloud/%s", u.cfg.Bucket, u.cfg.Region, key)
}

// Upload sends the file at filePath with public-read access under
// {Directory}/{basename} and returns its public URL once the object exists.
// Errors from the SDK are returned as is; there is no retry here.
func (u *S3Uploader) Upload(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat archive: %w", err)
	}

	key := u.Key(filepath.Base(filePath))
	partSize := EffectivePartSize(fi.Size(), u.cfg.MaxParts)
	logger := logging.WithFields(ctx, "stage", "upload", "bucket", u.cfg.Bucket, "key", key)
	logger.Info("uploading archive", "bytes", fi.Size(), "part_size", partSize)

	start := time.Now()
	uploader := manager.NewUploader(u.client, func(m *manager.Uploader) {
		m.PartSize = partSize
		m.MaxUploadParts = int32(u.cfg.MaxParts)
	})
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ACL:         types.ObjectCannedACLPublicRead,
		ContentType: aws.String("application/zip"),
	}); err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", key, err)
	}

	waiter := s3.NewObjectExistsWaiter(u.client)
	if err := waiter.Wait(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
	}, u.cfg.WaitTimeout); err != nil {
		return "", fmt.Errorf("wait for %s: %w", key, err)
	}

	url := u.PublicURL(key)
	logger.Info("archive uploaded", "url", url, "duration_ms", time.Since(start).Milliseconds())
	return url, nil
}
