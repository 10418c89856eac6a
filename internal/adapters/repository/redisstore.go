package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/session"
	"github.com/SBCM-Alliance/G-Cart/pkg/metrics"
)

const (
	defaultKeyPrefix  = "gcart:session:"
	defaultMaxRetries = 5
)

// RedisStore keeps sessions as JSON values with a sliding key TTL. Updates
// use WATCH/MULTI so concurrent writers to the same session retry instead of
// overwriting each other.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	maxRetries int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	return NewRedisStoreWithClient(client, opts...), nil
}

// NewRedisStoreWithClient wraps an existing client. The store closes it on
// Close.
func NewRedisStoreWithClient(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:     client,
		prefix:     defaultKeyPrefix,
		ttl:        defaultTTL,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Create implements SessionStore.
func (s *RedisStore) Create(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	ok, err := s.client.SetNX(ctx, s.key(sess.ID), data, s.ttl).Result()
	if err != nil {
		metrics.RecordErrorByComponent("repository", "redis")
		return fmt.Errorf("create session %s: %w", sess.ID, err)
	}
	if !ok {
		return fmt.Errorf("create session %s: %w", sess.ID, ErrExists)
	}
	return nil
}

// Get implements SessionStore.
func (s *RedisStore) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		metrics.RecordErrorByComponent("repository", "redis")
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return decode(id, data)
}

// Update implements SessionStore.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*session.Session) error) (*session.Session, error) {
	key := s.key(id)
	var out *session.Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("update session %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}

		sess, err := decode(id, data)
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}

		encoded, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encode session %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		out = sess
		return nil
	}

	for range s.maxRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				metrics.RecordErrorByComponent("repository", "not_found")
			}
			return nil, err
		}
		return out, nil
	}

	metrics.RecordErrorByComponent("repository", "conflict")
	return nil, fmt.Errorf("update session %s: %w", id, ErrConflict)
}

// Delete implements SessionStore.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		metrics.RecordErrorByComponent("repository", "redis")
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete session %s: %w", id, ErrNotFound)
	}
	return nil
}

// Count implements SessionStore by scanning the key prefix. Errors count as
// zero.
func (s *RedisStore) Count(ctx context.Context) int {
	n := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if iter.Err() != nil {
		metrics.RecordErrorByComponent("repository", "redis")
		return 0
	}
	return n
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decode(id string, data []byte) (*session.Session, error) {
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		metrics.RecordErrorByComponent("repository", "decode")
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}
