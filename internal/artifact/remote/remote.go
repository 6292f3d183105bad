// Package remote mirrors index artifacts to S3-compatible object storage.
package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kailas-cloud/billsearch/internal/artifact"
	"github.com/kailas-cloud/billsearch/internal/domain"
)

// ErrNotFound is returned by Fetch when the bucket holds no artifact.
var ErrNotFound = errors.New("remote artifact not found")

// objectAPI is the subset of *minio.Client used here.
type objectAPI interface {
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	FGetObject(ctx context.Context, bucket, object, filePath string, opts minio.GetObjectOptions) error
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// Config holds connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// Store publishes and fetches artifacts under <prefix>/.
type Store struct {
	client objectAPI
	bucket string
	prefix string
}

// NewStore creates a minio-backed store.
func NewStore(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return newStore(client, cfg.Bucket, cfg.Prefix), nil
}

func newStore(client objectAPI, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Publish uploads the artifact stored in dir. The manifest goes last so a
// reader never sees a manifest without its vectors.
func (s *Store) Publish(ctx context.Context, dir string) error {
	for _, name := range []string{artifact.VectorsFile, artifact.ManifestFile} {
		opts := minio.PutObjectOptions{ContentType: contentType(name)}
		if _, err := s.client.FPutObject(ctx, s.bucket, s.key(name), filepath.Join(dir, name), opts); err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
	}
	return nil
}

// Fetch downloads the artifact, verifies it, and installs it at dir.
func (s *Store) Fetch(ctx context.Context, dir string) (*artifact.Artifact, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, s.key(artifact.ManifestFile), minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, s.bucket, s.key(artifact.ManifestFile))
		}
		return nil, fmt.Errorf("stat manifest: %w", err)
	}

	tmp, err := os.MkdirTemp("", "billsearch-artifact-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	for _, name := range []string{artifact.ManifestFile, artifact.VectorsFile} {
		if err := s.client.FGetObject(ctx, s.bucket, s.key(name), filepath.Join(tmp, name), minio.GetObjectOptions{}); err != nil {
			return nil, fmt.Errorf("%w: download %s: %w", domain.ErrLoad, name, err)
		}
	}

	a, err := artifact.Load(tmp)
	if err != nil {
		return nil, err
	}
	if err := a.Write(dir); err != nil {
		return nil, fmt.Errorf("install artifact: %w", err)
	}
	return a, nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func contentType(name string) string {
	if path.Ext(name) == ".json" {
		return "application/json"
	}
	return "application/octet-stream"
}
