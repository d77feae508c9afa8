// Package miniostore provides a BlobStore on S3-compatible object storage.
package miniostore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/i5heu/ouroboros-fileshare/internal/types"
	"github.com/i5heu/ouroboros-fileshare/storage"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/i5heu/ouroboros-fileshare/storage/miniostore")

const objectPrefix = "chunks/"

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Logger    logrus.FieldLogger
}

// Store keeps every blob as one object named after its address.
type Store struct {
	client *minio.Client
	bucket string
	log    logrus.FieldLogger
}

var _ storage.BlobStore = (*Store)(nil)

// New connects to the endpoint and creates the bucket if it does not exist.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		opts.Logger.WithField("bucket", opts.Bucket).Info("Creating bucket")
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Store{client: client, bucket: opts.Bucket, log: opts.Logger}, nil
}

// ObjectKey is the object name of addr.
func ObjectKey(addr types.Address) string {
	return objectPrefix + addr.String()
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func (s *Store) PutBlob(ctx context.Context, payload []byte) (types.Address, error) {
	if len(payload) == 0 {
		return types.Address{}, types.ErrEmptyChunk
	}
	addr := types.AddressOf(payload)

	ctx, span := tracer.Start(ctx, "minio.put_blob",
		trace.WithAttributes(
			attribute.String("address", addr.Short()),
			attribute.Int("size_bytes", len(payload)),
		),
	)
	defer span.End()

	exists, err := s.HasBlob(ctx, addr)
	if err != nil {
		span.RecordError(err)
		return types.Address{}, err
	}
	if exists {
		span.SetAttributes(attribute.Bool("deduplicated", true))
		return addr, nil
	}

	_, err = s.client.PutObject(ctx, s.bucket, ObjectKey(addr), bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		span.RecordError(err)
		return types.Address{}, fmt.Errorf("failed to upload blob: %w", err)
	}

	s.log.WithFields(logrus.Fields{"address": addr.Short(), "size": len(payload)}).Debug("Successfully uploaded blob")
	return addr, nil
}

func (s *Store) GetBlob(ctx context.Context, addr types.Address) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "minio.get_blob",
		trace.WithAttributes(attribute.String("address", addr.Short())),
	)
	defer span.End()

	object, err := s.client.GetObject(ctx, s.bucket, ObjectKey(addr), minio.GetObjectOptions{})
	if err != nil {
		span.RecordError(err)
		if isNotFound(err) {
			return nil, fmt.Errorf("blob %s: %w", addr.Short(), storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer object.Close()

	// GetObject is lazy; a missing key only surfaces on the first read.
	data, err := io.ReadAll(object)
	if err != nil {
		span.RecordError(err)
		if isNotFound(err) {
			return nil, fmt.Errorf("blob %s: %w", addr.Short(), storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}

	span.SetAttributes(attribute.Int("size_bytes", len(data)))
	return data, nil
}

func (s *Store) HasBlob(ctx context.Context, addr types.Address) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, ObjectKey(addr), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

func (s *Store) DeleteBlob(ctx context.Context, addr types.Address) error {
	ctx, span := tracer.Start(ctx, "minio.delete_blob",
		trace.WithAttributes(attribute.String("address", addr.Short())),
	)
	defer span.End()

	if err := s.client.RemoveObject(ctx, s.bucket, ObjectKey(addr), minio.RemoveObjectOptions{}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}
