package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// s3API is the subset of *s3.Client used by the archive.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// s3Archive implements Archive on an S3 bucket under a key prefix.
type s3Archive struct {
	client s3API
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Archive creates an S3-backed archive using the default AWS credential chain.
func NewS3Archive(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (Archive, error) {
	logger = logger.With().Str("component", "export-s3-archive").Logger()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Str("prefix", prefix).
		Msg("S3 export archive initialised")

	return newS3Archive(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func newS3Archive(client s3API, bucket, prefix string, logger zerolog.Logger) *s3Archive {
	return &s3Archive{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

func (a *s3Archive) Put(ctx context.Context, key string, body []byte) error {
	if !ValidKey(key) {
		return ErrInvalidKey
	}

	objectKey := a.prefix + key
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(objectKey),
		Body:            bytes.NewReader(body),
		ContentLength:   aws.Int64(int64(len(body))),
		ContentType:     aws.String("text/csv"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		a.logger.Error().
			Err(err).
			Str("bucket", a.bucket).
			Str("key", objectKey).
			Msg("failed to put object to S3")
		return fmt.Errorf("failed to put object to S3 (bucket=%s, key=%s): %w", a.bucket, objectKey, err)
	}

	a.logger.Info().Str("bucket", a.bucket).Str("key", objectKey).Msg("export stored in S3")
	return nil
}

func (a *s3Archive) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if !ValidKey(key) {
		return nil, ErrInvalidKey
	}

	objectKey := a.prefix + key
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrArchiveNotFound
		}
		a.logger.Error().
			Err(err).
			Str("bucket", a.bucket).
			Str("key", objectKey).
			Msg("failed to get object from S3")
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", a.bucket, objectKey, err)
	}
	return result.Body, nil
}

// fallbackArchive writes to and reads from S3 first, then the local archive.
type fallbackArchive struct {
	primary  Archive
	fallback Archive
	logger   zerolog.Logger
}

// NewFallbackArchive creates an archive that prefers primary and falls back
// to fallback. A nil primary means only fallback is used.
func NewFallbackArchive(primary, fallback Archive, logger zerolog.Logger) Archive {
	return &fallbackArchive{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "export-fallback-archive").Logger(),
	}
}

func (a *fallbackArchive) Put(ctx context.Context, key string, body []byte) error {
	if a.primary != nil {
		err := a.primary.Put(ctx, key, body)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrInvalidKey) {
			return err
		}
		a.logger.Warn().Err(err).Str("key", key).Msg("failed to store export in S3, falling back to local file system")
	}
	return a.fallback.Put(ctx, key, body)
}

func (a *fallbackArchive) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if a.primary != nil {
		body, err := a.primary.Get(ctx, key)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrInvalidKey) {
			return nil, err
		}
		a.logger.Debug().Err(err).Str("key", key).Msg("export not readable from S3, trying local file system")
	}
	return a.fallback.Get(ctx, key)
}
