// Package cache keeps the results of label queries against remote knowledge
// bases in Redis. Local knowledge bases are never cached.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/logger"
	"github.com/gryn010/inception/pkg/store"
)

const (
	DefaultTTL = 10 * time.Minute
	keyPrefix  = "linking:handles:"
)

// Client is the subset of redis.Cmdable the cache needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Store wraps a knowledge base store. Redis failures are logged and the
// query goes to the wrapped store.
type Store struct {
	inner  store.KnowledgeBaseStore
	client Client
	ttl    time.Duration
}

func New(inner store.KnowledgeBaseStore, client Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{inner: inner, client: client, ttl: ttl}
}

func (s *Store) Open(ctx context.Context, kb common.KnowledgeBase) (store.Connection, error) {
	conn, err := s.inner.Open(ctx, kb)
	if err != nil {
		return nil, err
	}
	if kb.IsLocal() {
		return conn, nil
	}
	return &connection{Connection: conn, kbID: kb.ID, store: s}, nil
}

// Key returns the Redis key of a label query against a knowledge base.
func Key(kbID string, q store.LabelQuery) string {
	b, _ := json.Marshal(q)
	sum := sha256.Sum256(b)
	return keyPrefix + kbID + ":" + hex.EncodeToString(sum[:])
}

type connection struct {
	store.Connection
	kbID  string
	store *Store
}

func (c *connection) Query(ctx context.Context, q store.LabelQuery) ([]common.KBHandle, error) {
	key := Key(c.kbID, q)

	cached, err := c.store.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var handles []common.KBHandle
		if err := json.Unmarshal(cached, &handles); err == nil {
			logger.Debug("[Cache][Handles] Hit", "kb", c.kbID, "count", len(handles))
			return handles, nil
		}
		logger.Warn("[Cache][Handles] Dropping unreadable entry", "kb", c.kbID, "key", key)
	case errors.Is(err, redis.Nil):
	default:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("[Cache][Handles] Redis read failed", "kb", c.kbID, "err", err)
	}

	handles, err := c.Connection.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(handles)
	if err != nil {
		return handles, nil
	}
	if err := c.store.client.Set(ctx, key, payload, c.store.ttl).Err(); err != nil {
		logger.Warn("[Cache][Handles] Redis write failed", "kb", c.kbID, "err", err)
	}
	return handles, nil
}
