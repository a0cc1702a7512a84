// Package objectstores3 backs pkg/objectstore.Store with an S3-compatible
// bucket, following the same aws-sdk-go-v2 wiring the teacher uses for its
// fsxs3 file system adapter: config.LoadDefaultConfig for credentials,
// s3.NewFromConfig for the client, manager.NewUploader for large bodies,
// and s3.NewPresignClient for time-boxed download URLs.
package objectstores3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/screencraft/api/pkg/objectstore"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Store is an S3-compatible objectstore.Store. A non-empty Endpoint
// switches the client to path-style addressing, the convention required
// by MinIO and other self-hosted S3-compatible targets.
type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   string
}

type Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

func New(client *s3.Client, cfg Config) *Store {
	return &Store{
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.Bucket,
	}
}

func ClientOptions(endpoint string) func(*s3.Options) {
	return func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}
}

func (s *Store) Initialize(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	_, createErr := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if createErr != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(createErr, &owned) {
			return nil
		}
		return objectstore.ErrUploadFailed(createErr.Error())
	}
	return nil
}

func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (string, error) {
	if !objectstore.IsContentTypeAllowed(contentType) {
		return "", objectstore.ErrContentTypeDenied(contentType)
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	})
	if err != nil {
		return "", objectstore.ErrUploadFailed(err.Error())
	}
	return key, nil
}

func (s *Store) Download(ctx context.Context, key string) (objectstore.Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return objectstore.Object{}, objectstore.ErrNotFound(key)
		}
		return objectstore.Object{}, objectstore.ErrDownloadFailed(err.Error())
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return objectstore.Object{}, objectstore.ErrDownloadFailed(err.Error())
	}

	obj := objectstore.Object{Key: key, Data: data, Metadata: out.Metadata}
	if out.ContentType != nil {
		obj.ContentType = *out.ContentType
	}
	if out.ContentLength != nil {
		obj.Size = *out.ContentLength
	}
	return obj, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return objectstore.ErrUploadFailed(err.Error())
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, objectstore.ErrDownloadFailed(err.Error())
	}
	return true, nil
}

func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", objectstore.ErrDownloadFailed(err.Error())
	}
	return req.URL, nil
}
