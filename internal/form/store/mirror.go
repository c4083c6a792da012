package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSnapshotNotFound is returned by Mirror.Load when no snapshot exists under the key.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Mirror is the durable key-value copy of a store's snapshot.
type Mirror interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, snapshot []byte) error
	Delete(ctx context.Context, key string) error
	Name() string
}

type MemoryMirror struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{items: make(map[string][]byte)}
}

func (m *MemoryMirror) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryMirror) Save(_ context.Context, key string, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]byte(nil), snapshot...)
	return nil
}

func (m *MemoryMirror) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *MemoryMirror) Name() string { return "memory" }

// FileMirror keeps one JSON file per key under dir.
type FileMirror struct {
	dir string
}

func NewFileMirror(dir string) (*FileMirror, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileMirror{dir: dir}, nil
}

var unsafeKeyChars = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")

func (f *FileMirror) path(key string) string {
	return filepath.Join(f.dir, unsafeKeyChars.Replace(key)+".json")
}

func (f *FileMirror) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	}
	return data, err
}

// Save writes through a temp file and rename so readers never see a torn snapshot.
func (f *FileMirror) Save(_ context.Context, key string, snapshot []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(snapshot); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}

func (f *FileMirror) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (f *FileMirror) Name() string { return "file" }

// RedisMirror stores snapshots as plain string values with a sliding TTL.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMirror(client *redis.Client, ttl time.Duration) *RedisMirror {
	return &RedisMirror{client: client, ttl: ttl}
}

func (r *RedisMirror) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (r *RedisMirror) Save(ctx context.Context, key string, snapshot []byte) error {
	if err := r.client.Set(ctx, key, snapshot, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisMirror) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r *RedisMirror) Name() string { return "redis" }
