// Package store implements the object-store external collaborator,
// adapted in place from a content-addressed storage
// client (common/clients/cas.go, common/clients/redis_cas.go): same
// "hash the bytes, store under sha256:<hash>, no caching, always query
// the backing store fresh" contract, generalized from a flat
// Get/Put/Store trio to the fuller Get/Put/Delete/List/Sign surface a
// board's side-effect nodes need, and backed by the same Redis client
// rather than a hand-rolled substitute.
package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the object-store capability a board's side-effect nodes (and
// flow/board's persistence layer) address by name.
type Store interface {
	Name() string
	Put(ctx context.Context, data []byte, mediaType string) (ref string, err error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
	List(ctx context.Context, prefix string) ([]string, error)
	// Sign returns a time-limited reference a caller outside this
	// process can use to fetch the blob (e.g. a presigned URL in a real
	// object-store backend). The Redis-backed implementation has no
	// separate signing step, so it returns the ref itself with the
	// requested TTL re-applied to the underlying key.
	Sign(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

// RedisStore is the direct generalization of
// RedisCASClient: content-addressed blobs whose refs are
// "sha256:<hex>", stored under "cas:sha256:<hex>" keys,
// no local caching layer, every read goes to Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore builds a Store backed by an existing Redis client
// (internal/db and internal/cache hold the same kind of handle for their
// own concerns; Store gets its own so it can be swapped independently).
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

func (s *RedisStore) Name() string { return "store.redis" }

func (s *RedisStore) Put(ctx context.Context, data []byte, mediaType string) (string, error) {
	ref := fmt.Sprintf("sha256:%x", sha256.Sum256(data))
	if err := s.redis.Set(ctx, casKey(ref), data, 0).Err(); err != nil {
		return "", fmt.Errorf("store: put %s: %w", ref, err)
	}
	if mediaType != "" {
		s.redis.Set(ctx, casKey(ref)+":content-type", mediaType, 0)
	}
	return ref, nil
}

func (s *RedisStore) Get(ctx context.Context, ref string) ([]byte, error) {
	data, err := s.redis.Get(ctx, casKey(ref)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("store: not found: %s", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", ref, err)
	}
	return data, nil
}

func (s *RedisStore) Delete(ctx context.Context, ref string) error {
	if err := s.redis.Del(ctx, casKey(ref), casKey(ref)+":content-type").Err(); err != nil {
		return fmt.Errorf("store: delete %s: %w", ref, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	iter := s.redis.Scan(ctx, 0, "cas:"+prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, ":content-type") {
			continue
		}
		out = append(out, strings.TrimPrefix(key, "cas:"))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store: list %q: %w", prefix, err)
	}
	sort.Strings(out)
	return out, nil
}

func (s *RedisStore) Sign(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	if err := s.redis.Expire(ctx, casKey(ref), ttl).Err(); err != nil {
		return "", fmt.Errorf("store: sign %s: %w", ref, err)
	}
	return ref, nil
}

func casKey(ref string) string { return "cas:" + ref }

// MemoryStore is an in-process Store used by tests and by single-process
// deployments that skip Redis entirely (internal/db still indexes board
// versions; this just holds the blobs).
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Name() string { return "store.memory" }

func (s *MemoryStore) Put(_ context.Context, data []byte, _ string) (string, error) {
	ref := fmt.Sprintf("sha256:%x", sha256.Sum256(data))
	s.mu.Lock()
	s.data[ref] = data
	s.mu.Unlock()
	return ref, nil
}

func (s *MemoryStore) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[ref]
	if !ok {
		return nil, fmt.Errorf("store: not found: %s", ref)
	}
	return data, nil
}

func (s *MemoryStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, ref)
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for ref := range s.data {
		if strings.HasPrefix(ref, prefix) {
			out = append(out, ref)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Sign(_ context.Context, ref string, _ time.Duration) (string, error) {
	return ref, nil
}
