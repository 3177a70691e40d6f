package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures an S3-compatible store.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioStore keeps objects in one S3 bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	region string
	logger *slog.Logger

	bucketOnce sync.Once
	bucketErr  error
}

// NewMinioStore creates an S3 store. No request is made until first use.
func NewMinioStore(opts MinioOptions, logger *slog.Logger) (*MinioStore, error) {
	creds := credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, "")
	if opts.AccessKey == "" {
		creds = credentials.NewEnvAWS()
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &MinioStore{
		client: client,
		bucket: opts.Bucket,
		region: opts.Region,
		logger: logger,
	}, nil
}

func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap(err, "get", key)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		return nil, s.wrap(err, "stat", key)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.wrap(err, "read", key)
	}
	return data, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return s.wrap(err, "put", key)
	}
	s.logger.Debug("object written", "bucket", s.bucket, "key", key, "bytes", len(data))
	return nil
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, s.wrap(obj.Err, "list", prefix)
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MinioStore) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

func (s *MinioStore) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

// ensureBucket creates the bucket on first write when it is missing.
func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.bucketOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.bucketErr = fmt.Errorf("check bucket %s: %w", s.bucket, err)
			return
		}
		if exists {
			return
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			s.bucketErr = fmt.Errorf("create bucket %s: %w", s.bucket, err)
			return
		}
		s.logger.Info("created bucket", "bucket", s.bucket)
	})
	return s.bucketErr
}

func (s *MinioStore) wrap(err error, op, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
	}
	return fmt.Errorf("s3 %s %s: %w", op, key, err)
}
