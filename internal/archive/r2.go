package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ehrlich-b/logkeep/internal/logstore"
)

const digestMetaKey = "sha3"

// R2Config contains configuration for R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Validate reports missing fields.
func (c R2Config) Validate() error {
	switch {
	case c.AccountID == "":
		return errors.New("r2 account id is required")
	case c.AccessKeyID == "" || c.SecretAccessKey == "":
		return errors.New("r2 credentials are required")
	case c.Bucket == "":
		return errors.New("r2 bucket is required")
	}
	return nil
}

// Endpoint returns the account's R2 endpoint URL.
func (c R2Config) Endpoint() string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// objectClient is the part of *s3.Client the exporter uses.
type objectClient interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// R2Exporter writes exports to Cloudflare R2 under exports/{name}.ndjson.gz.
type R2Exporter struct {
	client objectClient
	bucket string
	log    *slog.Logger
}

// NewR2Exporter creates a new R2-backed exporter.
func NewR2Exporter(cfg R2Config, log *slog.Logger) (*R2Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Create AWS config with R2 endpoint
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint())
	})

	return newR2Exporter(client, cfg.Bucket, log), nil
}

func newR2Exporter(client objectClient, bucket string, log *slog.Logger) *R2Exporter {
	if log == nil {
		log = slog.Default()
	}
	return &R2Exporter{client: client, bucket: bucket, log: log}
}

func objectKey(name string) string {
	return "exports/" + name + exportExt
}

// Export uploads entries with Content-Encoding gzip and the SHA3 digest in
// the object metadata.
func (x *R2Exporter) Export(ctx context.Context, name string, entries []logstore.Entry) (*Result, error) {
	compressed, rawSize, err := encode(entries)
	if err != nil {
		return nil, err
	}
	digest := Digest(compressed)

	key := objectKey(name)
	_, err = x.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(x.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(compressed),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
		Metadata:        map[string]string{digestMetaKey: digest},
	})
	if err != nil {
		x.log.Error("failed to upload export", "name", name, "error", err)
		return nil, fmt.Errorf("upload export: %w", err)
	}

	x.log.Debug("exported log entries", "name", name, "entries", len(entries),
		"raw_size", rawSize, "compressed_size", len(compressed))

	return &Result{
		Name:            name,
		Location:        fmt.Sprintf("r2://%s/%s", x.bucket, key),
		Entries:         len(entries),
		RawBytes:        rawSize,
		CompressedBytes: int64(len(compressed)),
		Digest:          digest,
	}, nil
}

// Load downloads an export and verifies its digest.
func (x *R2Exporter) Load(ctx context.Context, name string) ([]logstore.Entry, error) {
	resp, err := x.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(x.bucket),
		Key:    aws.String(objectKey(name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("download export: %w", err)
	}
	defer resp.Body.Close()

	compressed, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}

	if want := resp.Metadata[digestMetaKey]; want != "" && Digest(compressed) != want {
		return nil, fmt.Errorf("%w: %s", ErrDigestMismatch, name)
	}

	return decode(compressed)
}
