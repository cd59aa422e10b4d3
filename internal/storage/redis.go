package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/gsession/internal/crypto"
	"github.com/redis/go-redis/v9"
)

// Ensure RedisStorage implements Store
var _ Store = (*RedisStorage)(nil)

// RedisStorage keeps each session as a JSON value under keyPrefix+state.
// Expiry is delegated to Redis key TTLs, so cleanup is a no-op.
type RedisStorage struct {
	client    *redis.Client
	keyPrefix string
	encryptor crypto.Encryptor
	now       func() time.Time
}

// NewRedisStorage connects to the Redis URL and verifies the connection
func NewRedisStorage(ctx context.Context, redisURL, keyPrefix string, encryptor crypto.Encryptor) (*RedisStorage, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if redisURL == "" {
		return nil, fmt.Errorf("redisURL is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStorageWithClient(client, keyPrefix, encryptor), nil
}

// NewRedisStorageWithClient wraps an existing client; Close closes it
func NewRedisStorageWithClient(client *redis.Client, keyPrefix string, encryptor crypto.Encryptor) *RedisStorage {
	return &RedisStorage{
		client:    client,
		keyPrefix: keyPrefix,
		encryptor: encryptor,
		now:       time.Now,
	}
}

func (s *RedisStorage) key(state string) string {
	return s.keyPrefix + state
}

// Get loads and decrypts the session stored under state
func (s *RedisStorage) Get(ctx context.Context, state string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if session.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}
	if err := openTokens(&session, s.encryptor); err != nil {
		return nil, err
	}
	return &session, nil
}

// Put stores the session with a TTL matching its ExpiresAt.
// A record that is already expired is deleted instead.
func (s *RedisStorage) Put(ctx context.Context, session *Session) error {
	if session == nil || session.State == "" {
		return fmt.Errorf("session state cannot be empty")
	}

	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return s.Delete(ctx, session.State)
		}
	}

	sealed, err := sealTokens(session, s.encryptor)
	if err != nil {
		return err
	}
	data, err := json.Marshal(sealed)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(session.State), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the key for state
func (s *RedisStorage) Delete(ctx context.Context, state string) error {
	if err := s.client.Del(ctx, s.key(state)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// CleanupExpiredSessions is a no-op; Redis evicts expired keys itself
func (s *RedisStorage) CleanupExpiredSessions(context.Context) (int, error) {
	return 0, nil
}

// Close closes the Redis connection
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
