package certstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options carries the bucket deployment configuration. Endpoint is set for
// S3-compatible stores (MinIO); PublicBaseURL overrides locator construction
// when objects are served through a CDN or custom domain.
type S3Options struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// S3 stores artifacts as public-read objects under certificates/<id>.<ext>.
type S3 struct {
	client *s3.Client
	opts   S3Options
}

func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("certstore: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("certstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3{client: client, opts: opts}, nil
}

func (s *S3) key(id, mediaType string) string {
	return fmt.Sprintf("certificates/%s.%s", id, extFor(mediaType))
}

func (s *S3) Put(ctx context.Context, id string, data []byte, mediaType string) (string, error) {
	key := s.key(id, mediaType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mediaType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("certstore: put %s: %w", key, err)
	}
	return s.publicURL(key), nil
}

func (s *S3) Get(ctx context.Context, id string) (Artifact, error) {
	// the media type is not known up front, probe both object keys
	for _, mediaType := range []string{"image/png", "image/svg+xml"} {
		key := s.key(id, mediaType)
		head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.opts.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var nf *types.NotFound
			if errors.As(err, &nf) {
				continue
			}
			return Artifact{}, fmt.Errorf("certstore: head %s: %w", key, err)
		}
		mt := mediaType
		if head.ContentType != nil && *head.ContentType != "" {
			mt = *head.ContentType
		}
		return Artifact{ID: id, MediaType: mt, Locator: s.publicURL(key)}, nil
	}
	return Artifact{}, ErrNotFound
}

func (s *S3) publicURL(key string) string {
	if s.opts.PublicBaseURL != "" {
		return strings.TrimSuffix(s.opts.PublicBaseURL, "/") + "/" + key
	}
	if s.opts.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.opts.Endpoint, "/"), s.opts.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, key)
}
