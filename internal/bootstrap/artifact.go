package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/billsearch/internal/artifact"
	"github.com/kailas-cloud/billsearch/internal/artifact/remote"
	"github.com/kailas-cloud/billsearch/internal/config"
	"github.com/kailas-cloud/billsearch/internal/domain"
)

// LoadArtifact reads the artifact from dir. When dir holds none and an object store
// is configured, the published artifact is fetched and installed at dir first.
func LoadArtifact(ctx context.Context, dir string, objects config.ObjectStoreConfig, logger *zap.Logger) (*artifact.Artifact, error) {
	if artifact.Exists(dir) || !objects.Enabled() {
		return artifact.Load(dir) //nolint:wrapcheck // already wrapped with ErrLoad
	}

	store, err := remote.NewStore(remoteConfig(objects))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLoad, err)
	}

	logger.Info("Fetching artifact from object storage",
		zap.String("bucket", objects.Bucket),
		zap.String("prefix", objects.Prefix),
	)
	a, err := store.Fetch(ctx, dir)
	if errors.Is(err, remote.ErrNotFound) {
		return nil, fmt.Errorf("%w: no artifact in %s or object storage: %w", domain.ErrLoad, dir, err)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch artifact: %w", err)
	}
	return a, nil
}

// PublishArtifact uploads the artifact in dir when an object store is configured.
// It reports whether anything was uploaded.
func PublishArtifact(ctx context.Context, dir string, objects config.ObjectStoreConfig) (bool, error) {
	if !objects.Enabled() {
		return false, nil
	}
	store, err := remote.NewStore(remoteConfig(objects))
	if err != nil {
		return false, err //nolint:wrapcheck // already descriptive
	}
	if err := store.Publish(ctx, dir); err != nil {
		return false, fmt.Errorf("publish artifact: %w", err)
	}
	return true, nil
}

func remoteConfig(o config.ObjectStoreConfig) remote.Config {
	return remote.Config{
		Endpoint:  o.Endpoint,
		Bucket:    o.Bucket,
		Prefix:    o.Prefix,
		AccessKey: o.AccessKey,
		SecretKey: o.SecretKey,
		Secure:    o.Secure,
	}
}
