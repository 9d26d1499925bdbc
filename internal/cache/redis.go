package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pictoria:"

func versionedKey(namespace string, generation uint64, key string) string {
	return keyPrefix + namespace + ":v" + strconv.FormatUint(generation, 10) + ":" + key
}

func generationKey(namespace string) string {
	return keyPrefix + namespace + ":generation"
}

// RedisCache is a PageCache shared by every API instance.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects and pings before returning.
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (r *RedisCache) generation(ctx context.Context, namespace string) (uint64, error) {
	v, err := r.client.Get(ctx, generationKey(namespace)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *RedisCache) Get(ctx context.Context, namespace, key string, dst any) (Generation, bool, error) {
	gen, err := r.generation(ctx, namespace)
	if err != nil {
		return 0, false, err
	}
	data, err := r.client.Get(ctx, versionedKey(namespace, gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Generation(gen), false, nil
	}
	if err != nil {
		return Generation(gen), false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return Generation(gen), false, err
	}
	return Generation(gen), true, nil
}

// setIfCurrent writes KEYS[2] only while the generation counter in KEYS[1]
// still equals ARGV[1]; a missing counter is generation 0.
var setIfCurrent = redis.NewScript(`
local current = redis.call("GET", KEYS[1]) or "0"
if current ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
else
  redis.call("SET", KEYS[2], ARGV[2])
end
return 1
`)

func (r *RedisCache) Set(ctx context.Context, namespace, key string, gen Generation, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	keys := []string{generationKey(namespace), versionedKey(namespace, uint64(gen), key)}
	return setIfCurrent.Run(ctx, r.client, keys,
		strconv.FormatUint(uint64(gen), 10), data, r.ttl.Milliseconds()).Err()
}

// Invalidate bumps the namespace generation; stale pages expire on their own.
func (r *RedisCache) Invalidate(ctx context.Context, namespace string) error {
	return r.client.Incr(ctx, generationKey(namespace)).Err()
}

// Health checks if Redis is healthy
func (r *RedisCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}
