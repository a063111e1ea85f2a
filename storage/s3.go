package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	almalead "github.com/phbpx/almalead"
)

// S3Config is the required properties to use an S3 compatible store such as
// MinIO.
type S3Config struct {
	Endpoint   string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	PublicBase string
}

// s3API is the subset of the S3 client used by S3Storage.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

type S3Storage struct {
	client     s3API
	bucket     string
	publicBase string
	policy     Policy
	now        func() time.Time
}

// NewS3Storage builds a client with static credentials against the
// configured endpoint. Path-style addressing keeps MinIO happy.
func NewS3Storage(ctx context.Context, cfg S3Config, policy Policy) (*S3Storage, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	publicBase := cfg.PublicBase
	if publicBase == "" {
		publicBase = cfg.Endpoint
	}

	return newS3Storage(client, cfg.Bucket, publicBase, policy), nil
}

func newS3Storage(client s3API, bucket, publicBase string, policy Policy) *S3Storage {
	return &S3Storage{
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		policy:     policy,
		now:        time.Now,
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var nf *types.NotFound
	if !errors.As(err, &nf) {
		return fmt.Errorf("%w: head bucket %s: %v", almalead.ErrStorage, s.bucket, err)
	}

	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("%w: create bucket %s: %v", almalead.ErrStorage, s.bucket, err)
	}
	return nil
}

func (s *S3Storage) Store(ctx context.Context, upload almalead.Upload) (string, error) {
	if err := s.policy.Check(upload.Filename, upload.ContentType, upload.Size); err != nil {
		return "", err
	}

	key := NewKey(upload.Filename, s.now().UTC())

	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          upload.Body,
		ContentLength: aws.Int64(upload.Size),
	}
	if upload.ContentType != "" {
		in.ContentType = aws.String(upload.ContentType)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("%w: put object %s: %v", almalead.ErrStorage, key, err)
	}
	return key, nil
}

func (s *S3Storage) URL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBase, s.bucket, key)
}

func (s *S3Storage) Remove(ctx context.Context, key string) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return almalead.ErrResumeNotFound
		}
		return fmt.Errorf("%w: head object %s: %v", almalead.ErrStorage, key, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("%w: delete object %s: %v", almalead.ErrStorage, key, err)
	}
	return nil
}
