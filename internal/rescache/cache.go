// Package rescache implements the ResultCache contract from spec §4.C: a
// fingerprint-keyed, TTL'd store for serialized AnalysisResult JSON, with a
// remote (Redis) backend that falls back transparently to an in-process
// map when construction fails. Grounded on the host's
// internal/skills/redis_cache.go + internal/skills/cache.go pairing.
package rescache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "nlp:analysis:"

// Store is the ResultCache contract. Every operation is total: transport
// failures are swallowed and treated as a miss/no-op, never propagated.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Fingerprint computes the stable cache key for a (user, normalized text)
// pair: a hex SHA-256 digest of "user_id:normalized_text", prefixed.
func Fingerprint(userID int64, normalizedText string) string {
	combined := fmt.Sprintf("%d:%s", userID, normalizedText)
	sum := sha256.Sum256([]byte(combined))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// redisStore is a Redis-backed Store using SETEX semantics.
type redisStore struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisStore builds a Redis-backed Store. If the client cannot ping the
// server, it falls back to an in-process map (spec §4.C: "a construction
// failure of the remote client falls back transparently").
func NewRedisStore(redisURL string, log zerolog.Logger) Store {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("rescache: invalid redis url, falling back to in-memory cache")
		return NewMemoryStore()
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("rescache: redis ping failed, falling back to in-memory cache")
		return NewMemoryStore()
	}

	return &redisStore{client: client, log: log}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.Debug().Err(err).Str("key", key).Msg("rescache: get failed")
		}
		return "", false
	}
	return val, true
}

func (s *redisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("rescache: set failed")
	}
}

func (s *redisStore) Delete(ctx context.Context, key string) {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("rescache: delete failed")
	}
}

// memoryStore is the in-process fallback. It ignores TTL, as spec §4.C
// explicitly permits.
type memoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore builds an in-process Store.
func NewMemoryStore() Store {
	return &memoryStore{data: make(map[string]string)}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *memoryStore) Set(_ context.Context, key string, value string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *memoryStore) Delete(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}
