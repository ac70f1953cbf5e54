package app

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"uiagent/internal/archive"
	"uiagent/internal/artifact"
	"uiagent/internal/gateway/config"
	"uiagent/internal/lock"
)

type gatewayStores struct {
	archive  archive.Archive
	artifact artifact.Store
	locker   lock.Locker
	redis    *backend.Client
}

func (s *gatewayStores) Close() error {
	var firstErr error
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			firstErr = err
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func initStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*gatewayStores, error) {
	stores := &gatewayStores{}

	if cfg.Archive.Driver != "" {
		a, err := archive.Open(cfg.Archive.Driver, cfg.Archive.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open archive: %w", err)
		}
		log.Info("turn archive enabled", zap.String("driver", cfg.Archive.Driver))
		stores.archive = a
	}

	var fallback artifact.Store = artifact.NewMemoryStore()
	fallbackLabel := "in-memory"
	if cfg.Artifact.Dir != "" {
		disk, err := artifact.NewDiskStore(cfg.Artifact.Dir)
		if err != nil {
			_ = stores.Close()
			return nil, fmt.Errorf("failed to open artifact dir: %w", err)
		}
		fallback, fallbackLabel = disk, "disk:"+cfg.Artifact.Dir
	}
	artifactStore, err := chooseArtifactStore(cfg, fallback, fallbackLabel, newArtifactS3StoreFactory(cfg, log), log)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	stores.artifact = artifactStore

	if cfg.Redis.Addr != "" {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			_ = stores.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Info("cross-replica session locking enabled", zap.String("redis", cfg.Redis.Addr))
		stores.redis = client
		stores.locker = lock.NewRedis(client, "uiagent:")
	}
	return stores, nil
}

func newArtifactS3StoreFactory(cfg *config.Config, log *zap.Logger) func() (artifact.Store, error) {
	return func() (artifact.Store, error) {
		s3Cfg := cfg.Artifact.S3()
		s3Store, err := artifact.NewS3Store(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact s3 store: %w", err)
		}
		log.Info("artifact store: s3", zap.String("bucket", s3Cfg.Bucket), zap.String("endpoint", s3Cfg.Endpoint))
		return s3Store, nil
	}
}

// chooseArtifactStore prefers S3 when fully configured, fronted by a cache.
func chooseArtifactStore(
	cfg *config.Config,
	fallback artifact.Store,
	fallbackLabel string,
	s3Factory func() (artifact.Store, error),
	log *zap.Logger,
) (artifact.Store, error) {
	if !cfg.Artifact.CanUseS3() {
		if cfg.Artifact.Enabled {
			log.Warn("artifact store: s3 config incomplete, using fallback", zap.String("fallback", fallbackLabel))
		}
		if fallback == nil {
			return nil, fmt.Errorf("artifact fallback store is nil")
		}
		return fallback, nil
	}
	s3Store, err := s3Factory()
	if err != nil {
		return nil, err
	}
	return artifact.NewCachedStore(s3Store, artifact.DefaultCacheConfig()), nil
}
