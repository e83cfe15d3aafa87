package alerting

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	goredis "github.com/go-redis/redis/v8"
)

// Registry holds the chat IDs that receive signal notifications.
type Registry interface {
	// Add registers id and reports whether it was new.
	Add(ctx context.Context, id int64) (bool, error)
	// Remove unregisters id and reports whether it was present.
	Remove(ctx context.Context, id int64) (bool, error)
	// List returns every registered id in ascending order.
	List(ctx context.Context) ([]int64, error)
}

// MemoryRegistry is a process-local Registry.
type MemoryRegistry struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

// NewMemoryRegistry creates a registry seeded with ids.
func NewMemoryRegistry(ids ...int64) *MemoryRegistry {
	r := &MemoryRegistry{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}
	return r
}

// Add registers id.
func (r *MemoryRegistry) Add(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return false, nil
	}
	r.ids[id] = struct{}{}
	return true, nil
}

// Remove unregisters id.
func (r *MemoryRegistry) Remove(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; !ok {
		return false, nil
	}
	delete(r.ids, id)
	return true, nil
}

// List returns the registered ids.
func (r *MemoryRegistry) List(_ context.Context) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

// DefaultRedisKey is the set that stores recipients.
const DefaultRedisKey = "signalbot:recipients"

// RedisConfig holds Redis registry settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisRegistry stores recipients in a Redis set so registrations
// survive restarts and can be shared between processes.
type RedisRegistry struct {
	client *goredis.Client
	key    string
}

// NewRedisRegistry connects to Redis and verifies the connection.
func NewRedisRegistry(ctx context.Context, cfg RedisConfig) (*RedisRegistry, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	key := cfg.Key
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRegistry{client: client, key: key}, nil
}

// Add registers id.
func (r *RedisRegistry) Add(ctx context.Context, id int64) (bool, error) {
	n, err := r.client.SAdd(ctx, r.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("add recipient %d: %w", id, err)
	}
	return n > 0, nil
}

// Remove unregisters id.
func (r *RedisRegistry) Remove(ctx context.Context, id int64) (bool, error) {
	n, err := r.client.SRem(ctx, r.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("remove recipient %d: %w", id, err)
	}
	return n > 0, nil
}

// List returns the registered ids. Members that are not integers are skipped.
func (r *RedisRegistry) List(ctx context.Context) ([]int64, error) {
	members, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

// Close releases the Redis connection pool.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
