package pool

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config configures the s3:// source. Empty credentials fall back to the default AWS chain.
type S3Config struct {
	Region          string `env:"REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"ENDPOINT"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	ForcePathStyle  bool   `env:"FORCE_PATH_STYLE" envDefault:"false"`
}

// S3Client is the subset of the S3 API the source needs.
type S3Client interface {
	GetObject(ctx context.Context, params *s3aws.GetObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.GetObjectOutput, error)
}

// S3Source reads the document from s3://bucket/key.
type S3Source struct {
	client S3Client
	bucket string
	key    string
}

// NewS3SourceWithClient builds a source over a caller-supplied client.
func NewS3SourceWithClient(client S3Client, bucket, key string) (*S3Source, error) {
	if client == nil {
		return nil, errors.New("pool: nil s3 client")
	}
	if bucket == "" || key == "" {
		return nil, errors.New("pool: s3 url needs bucket and key")
	}
	return &S3Source{client: client, bucket: bucket, key: key}, nil
}

// NewS3Source loads the AWS config and builds a client for u (s3://bucket/key).
func NewS3Source(ctx context.Context, u *url.URL, cfg S3Config) (*S3Source, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, errors.New("pool: s3 url needs bucket and key")
	}

	awsOpts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		awsOpts = append(awsOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsOpts = append(awsOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("pool: load aws config: %w", err)
	}

	client := s3aws.NewFromConfig(awsCfg, func(o *s3aws.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return NewS3SourceWithClient(client, bucket, key)
}

func (s *S3Source) String() string { return "s3://" + s.bucket + "/" + s.key }

func (s *S3Source) Fetch(ctx context.Context, maxBytes int64) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3aws.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, classifyS3Error(err)
	}
	defer func() { _ = out.Body.Close() }()

	if out.ContentLength != nil && maxBytes > 0 && *out.ContentLength > maxBytes {
		return nil, ErrTooLarge
	}
	return readCapped(out.Body, maxBytes)
}

func classifyS3Error(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		default:
			return fmt.Errorf("pool: s3 get object (code: %s): %w", apiErr.ErrorCode(), err)
		}
	}
	return fmt.Errorf("pool: s3 get object: %w", err)
}
