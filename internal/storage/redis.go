// Package storage provides the production Store backed by Redis for
// session saves and the filesystem for story templates.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	pkgstorage "github.com/storyweave/gamemaster/pkg/storage"
	"github.com/storyweave/gamemaster/pkg/story"
)

const saveKeyPrefix = "save:"

// RedisStore keeps session saves in Redis without expiry and reads
// story templates from <dataDir>/stories/*.txt.
type RedisStore struct {
	client  *redis.Client
	logger  *slog.Logger
	dataDir string
}

var _ pkgstorage.Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisURL string, dataDir string, logger *slog.Logger) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	if dataDir == "" {
		dataDir = "./data"
	}

	return &RedisStore{
		client:  rdb,
		logger:  logger,
		dataDir: dataDir,
	}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available during startup.
func (r *RedisStore) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Save operations (Redis-backed, no TTL: saves live until deleted)

func (r *RedisStore) SaveExists(ctx context.Context, name string) (bool, error) {
	n, err := r.client.Exists(ctx, saveKeyPrefix+name).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check save %q: %w", name, err)
	}
	return n > 0, nil
}

func (r *RedisStore) WriteSave(ctx context.Context, name string, data []byte) error {
	if err := r.client.Set(ctx, saveKeyPrefix+name, data, 0).Err(); err != nil {
		r.logger.Error("Failed to write save", "name", name, "error", err)
		return fmt.Errorf("failed to write save %q: %w", name, err)
	}
	return nil
}

func (r *RedisStore) ReadSave(ctx context.Context, name string) ([]byte, error) {
	data, err := r.client.Get(ctx, saveKeyPrefix+name).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: %q", pkgstorage.ErrSaveNotFound, name)
		}
		r.logger.Error("Failed to read save", "name", name, "error", err)
		return nil, fmt.Errorf("failed to read save %q: %w", name, err)
	}
	return data, nil
}

func (r *RedisStore) ListSaves(ctx context.Context) ([]string, error) {
	var names []string
	iter := r.client.Scan(ctx, 0, saveKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), saveKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list saves: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (r *RedisStore) DeleteSave(ctx context.Context, name string) error {
	if err := r.client.Del(ctx, saveKeyPrefix+name).Err(); err != nil {
		return fmt.Errorf("failed to delete save %q: %w", name, err)
	}
	return nil
}

// Story operations (filesystem-backed)

func (r *RedisStore) ListStories(ctx context.Context) ([]string, error) {
	storiesDir := filepath.Join(r.dataDir, "stories")

	entries, err := os.ReadDir(storiesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read stories directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".txt" {
			names = append(names, strings.TrimSuffix(entry.Name(), ".txt"))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *RedisStore) LoadStory(ctx context.Context, name string) (*story.Template, error) {
	path := filepath.Join(r.dataDir, "stories", name+".txt")

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", pkgstorage.ErrStoryNotFound, name)
		}
		return nil, fmt.Errorf("failed to open story file %s: %w", path, err)
	}
	defer f.Close()

	return story.Parse(name, f)
}
