package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/RalphPichler23/twi-react-backend/internal/config"
)

// S3Store talks to any S3-compatible endpoint (AWS, MinIO, Supabase storage)
type S3Store struct {
	client        *s3.S3
	publicBaseURL string
}

// NewS3Store creates a store from configuration
func NewS3Store(cfg config.S3Config) (*S3Store, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 session: %w", err)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = cfg.Endpoint
	}

	return &S3Store{
		client:        s3.New(sess),
		publicBaseURL: base,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return s.PublicURL(bucket, path), nil
}

func (s *S3Store) Delete(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	objects := make([]*s3.ObjectIdentifier, 0, len(paths))
	for _, p := range paths {
		objects = append(objects, &s3.ObjectIdentifier{Key: aws.String(p)})
	}

	out, err := s.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &s3.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return err
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("failed to delete %d objects, first %s: %s",
			len(out.Errors), aws.StringValue(first.Key), aws.StringValue(first.Message))
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var objects []Object
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Path:      aws.StringValue(obj.Key),
				Size:      aws.Int64Value(obj.Size),
				UpdatedAt: aws.TimeValue(obj.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

func (s *S3Store) Open(ctx context.Context, bucket, path string) (io.ReadCloser, Object, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, Object{}, ErrObjectNotFound
		}
		log.Printf("[storage] op=open driver=s3 bucket=%s path=%s err=%v", bucket, path, err)
		return nil, Object{}, err
	}
	return out.Body, Object{
		Path:        path,
		Size:        aws.Int64Value(out.ContentLength),
		ContentType: aws.StringValue(out.ContentType),
		UpdatedAt:   aws.TimeValue(out.LastModified),
	}, nil
}

func (s *S3Store) PublicURL(bucket, path string) string {
	return joinURL(s.publicBaseURL, bucket, path)
}

func (s *S3Store) PathFromURL(bucket, url string) (string, bool) {
	return splitURL(bucket, url)
}
