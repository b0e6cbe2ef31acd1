package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// DefaultRedisKeyPrefix namespaces order records in redis.
const DefaultRedisKeyPrefix = "orderfsm:order:"

// RedisClient captures the minimal commands needed from a redis client.
// Get returns "" and no error for missing keys.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// RedisStore persists records as JSON values. Compare-and-set is serialized
// within the process only; run one writer per key prefix.
type RedisStore struct {
	client    RedisClient
	ttl       time.Duration
	keyPrefix string
	mu        sync.Mutex
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides DefaultRedisKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// NewRedisStore builds a store using client; a zero ttl keeps records forever.
func NewRedisStore(client RedisClient, ttl time.Duration, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, ttl: ttl, keyPrefix: DefaultRedisKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load reads the record for orderID.
func (s *RedisStore) Load(ctx context.Context, orderID string) (*Record, error) {
	if s == nil || s.client == nil {
		return nil, notConfigured("redis")
	}
	key := s.redisKey(orderID)
	if key == "" {
		return nil, nil
	}
	return s.loadByKey(ctx, key)
}

// SaveIfVersion performs a read, compare and write under the store mutex.
func (s *RedisStore) SaveIfVersion(ctx context.Context, rec *Record, expectedVersion int) (int, error) {
	if s == nil || s.client == nil {
		return 0, notConfigured("redis")
	}
	next, err := normalizeRecord(rec)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.redisKey(next.OrderID)
	current, err := s.loadByKey(ctx, key)
	if err != nil {
		return 0, err
	}
	version, err := applyVersionedUpdate(next, current, expectedVersion)
	if err != nil {
		return 0, err
	}
	payload, err := json.Marshal(next)
	if err != nil {
		return 0, err
	}
	if err := s.client.Set(ctx, key, string(payload), s.ttl); err != nil {
		return 0, err
	}
	return version, nil
}

// List scans every key under the prefix.
func (s *RedisStore) List(ctx context.Context) ([]*Record, error) {
	if s == nil || s.client == nil {
		return nil, notConfigured("redis")
	}
	keys, err := s.client.Keys(ctx, s.keyPrefix+"*")
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(keys))
	for _, key := range keys {
		rec, err := s.loadByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *RedisStore) loadByKey(ctx context.Context, key string) (*Record, error) {
	value, err := s.client.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStore) redisKey(orderID string) string {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return ""
	}
	return s.keyPrefix + orderID
}
