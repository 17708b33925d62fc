package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Registry remembers which request ids have been submitted.
type Registry interface {
	// Claim marks id as submitted. It returns false when id was already claimed.
	Claim(ctx context.Context, id string) (bool, error)
	// Record stores the outcome of a claimed id.
	Record(ctx context.Context, id string, result models.TransferResult) error
}

// MemoryRegistry is a process-local Registry.
type MemoryRegistry struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	expires time.Time
	result  *models.TransferResult
}

// NewMemoryRegistry keeps ids for ttl.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	return &MemoryRegistry{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

// Claim implements Registry.
func (r *MemoryRegistry) Claim(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if e, ok := r.entries[id]; ok && now.Before(e.expires) {
		return false, nil
	}
	r.entries[id] = memoryEntry{expires: now.Add(r.ttl)}
	return true, nil
}

// Record implements Registry.
func (r *MemoryRegistry) Record(_ context.Context, id string, result models.TransferResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		e.expires = r.now().Add(r.ttl)
	}
	e.result = &result
	r.entries[id] = e
	return nil
}

// Lookup returns the recorded outcome of id.
func (r *MemoryRegistry) Lookup(id string) (models.TransferResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.result == nil {
		return models.TransferResult{}, false
	}
	return *e.result, true
}

// RedisRegistry shares submitted ids across instances with SETNX.
type RedisRegistry struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisRegistry stores ids under prefix for ttl.
func NewRedisRegistry(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisRegistry {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "nigertransfert:submission"
	}
	return &RedisRegistry{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisRegistry) key(id string) string {
	return r.prefix + ":" + id
}

// Claim implements Registry.
func (r *RedisRegistry) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(id), "claimed", r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim request id: %w", err)
	}
	return ok, nil
}

// Record implements Registry.
func (r *RedisRegistry) Record(ctx context.Context, id string, result models.TransferResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := r.client.Set(ctx, r.key(id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	return nil
}

// Lookup returns the recorded outcome of id.
func (r *RedisRegistry) Lookup(ctx context.Context, id string) (models.TransferResult, bool, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.TransferResult{}, false, nil
	}
	if err != nil {
		return models.TransferResult{}, false, fmt.Errorf("failed to read result: %w", err)
	}
	var result models.TransferResult
	if err := json.Unmarshal(data, &result); err != nil {
		// Claimed but not yet recorded.
		return models.TransferResult{}, false, nil
	}
	return result, true, nil
}
