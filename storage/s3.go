package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 publishes into a bucket, for use with static website hosting.
type S3 struct {
	s3     objectPutter
	bucket string
}

// NewS3 uses the default AWS configuration chain, so AWS_ENDPOINT_URL and
// friends can point it at any S3 compatible store.
func NewS3(ctx context.Context, bucket string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &S3{s3: client, bucket: bucket}, nil
}

func (s *S3) Put(ctx context.Context, key string, content []byte) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
	}
	if contentType := mime.TypeByExtension(path.Ext(key)); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	_, err := s.s3.PutObject(ctx, input)
	return err
}

func (s *S3) Finish(ctx context.Context, prefix string) (string, error) {
	return fmt.Sprintf("s3://%s/%s/", s.bucket, prefix), nil
}
