// Package objectstore adapts the external object store that holds uploaded
// scan images. The rest of the system only needs two things from it: a
// public URL for a stored key, and a presigned PUT so the mobile client can
// upload straight to the bucket.
package objectstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const presignExpiry = 15 * time.Minute

// Resolver turns stored object keys into public URLs.
type Resolver interface {
	PublicURL(key string) string
}

// Uploader hands out presigned PUT targets for new scan images.
type Uploader interface {
	PresignPut(ctx context.Context, docType string) (key string, url string, err error)
}

type Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	PublicBaseURL string
	AccessKey     string
	SecretKey     string
}

// S3Store implements Resolver and Uploader against an S3-compatible bucket
// (AWS or MinIO).
type S3Store struct {
	cfg     Config
	presign *s3.PresignClient
}

func New(ctx context.Context, cfg Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "")))
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Store{cfg: cfg, presign: s3.NewPresignClient(client)}, nil
}

// PublicURL builds the public URL for a stored key. The bucket is expected
// to be readable through PublicBaseURL (CDN or public bucket endpoint).
func (s *S3Store) PublicURL(key string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + strings.TrimLeft(key, "/")
}

// PresignPut returns a fresh storage key under the docType prefix and a
// presigned PUT URL for it.
func (s *S3Store) PresignPut(ctx context.Context, docType string) (string, string, error) {
	now := time.Now()
	key := fmt.Sprintf("%s/%d/%02d/%s.jpg", docType, now.Year(), int(now.Month()), uuid.NewString())

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", "", fmt.Errorf("presign put: %w", err)
	}
	return key, req.URL, nil
}
