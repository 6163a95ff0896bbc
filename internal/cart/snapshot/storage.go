package snapshot

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/NaveenV-27/MangaKart-ui/internal/platform/config"
)

// NewStorage builds the storage selected by cfg. The "none" backend returns nil.
func NewStorage(cfg config.SnapshotConfig) (Storage, error) {
	switch cfg.Backend {
	case config.SnapshotNone:
		return nil, nil
	case config.SnapshotMemory, "":
		return NewMemoryStorage(), nil
	case config.SnapshotSQLite:
		return NewSQLiteStorage(cfg.Path)
	case config.SnapshotRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		return NewRedisStorage(client, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("snapshot: unknown backend %q", cfg.Backend)
	}
}
