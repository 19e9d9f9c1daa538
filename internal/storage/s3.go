package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const minMultipartSize = 12 << 20

// S3 stores content as objects in a single bucket
type S3 struct {
	c      *s3.Client
	bucket *string
}

func NewS3() (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			viper.GetString("aws.access_key"),
			viper.GetString("aws.secret_access_key"),
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	bucket := aws.String(viper.GetString("aws.bucket"))

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.Region = viper.GetString("aws.region")
	})

	_, err = client.HeadBucket(context.TODO(), &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", *bucket)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &S3{
		c:      client,
		bucket: bucket,
	}, nil
}

func (s *S3) Write(ctx context.Context, data []byte) (string, error) {
	key := uuid.NewString()

	if err := s.put(ctx, key, data); err != nil {
		return "", fmt.Errorf("failed to upload content to S3, %w", err)
	}

	return key, nil
}

func (s *S3) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.c.GetObject(ctx, &s3.GetObjectInput{
		Bucket: s.bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to fetch content from S3, %w", err)
	}

	return out.Body, nil
}

func (s *S3) Derive(ctx context.Context, key string, width int) (string, error) {
	body, err := s.Read(ctx, key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	src, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read source content, %w", err)
	}

	thumb, err := makeThumbnail(src, width)
	if err != nil {
		return "", err
	}

	derived := DeriveKey(key, width)

	if err := s.put(ctx, derived, thumb); err != nil {
		return "", fmt.Errorf("failed to upload thumbnail to S3, %w", err)
	}

	return derived, nil
}

func (s *S3) put(ctx context.Context, key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:        s.bucket,
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}

	if len(data) > minMultipartSize {
		u := manager.NewUploader(s.c, func(u *manager.Uploader) {
			u.Concurrency = 5
			u.PartSize = 6 << 20
		})

		_, err := u.Upload(ctx, input)
		return err
	}

	_, err := s.c.PutObject(ctx, input)
	return err
}
