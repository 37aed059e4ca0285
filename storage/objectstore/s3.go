package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store stores objects in an S3 (or S3 compatible) bucket.
type S3Store struct {
	client  s3API
	bucket  string
	baseURL string
}

var _ Store = (*S3Store)(nil)

// NewS3Store loads the default AWS credential chain. A custom endpoint switches to path-style addressing.
func NewS3Store(ctx context.Context, conf *core.Config) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(conf.Storage.Region))
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if conf.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, conf), nil
}

func newS3Store(client s3API, conf *core.Config) *S3Store {
	baseURL := conf.Storage.PublicBaseURL
	if baseURL == "" {
		if conf.Storage.Endpoint != "" {
			baseURL = ObjectURL(conf.Storage.Endpoint, conf.Storage.Bucket)
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", conf.Storage.Bucket, conf.Storage.Region)
		}
	}
	return &S3Store{client: client, bucket: conf.Storage.Bucket, baseURL: baseURL}
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", errors.Wrapf(err, "putting object %s", key)
	}
	return ObjectURL(s.baseURL, key), nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return errors.Wrapf(err, "deleting object %s", key)
}
