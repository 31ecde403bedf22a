package pgx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/logger"
	"github.com/gryn010/inception/pkg/store"
)

type pgxIConn interface {
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

// PoolFactory opens the pool of a remote knowledge base.
type PoolFactory func(ctx context.Context, connectionURL string) (*pgxpool.Pool, error)

// KnowledgeBaseStore serves label queries, the knowledge base registry and
// entity statistics from PostgreSQL. Local knowledge bases live in the
// primary database; remote ones in their own database with the same layout,
// reached through a pool that is created on first use.
type KnowledgeBaseStore struct {
	pool *pgxpool.Pool

	newPool PoolFactory
	group   singleflight.Group
	mu      sync.RWMutex
	remote  map[string]*pgxpool.Pool
}

type Option func(*KnowledgeBaseStore)

func WithPoolFactory(f PoolFactory) Option {
	return func(s *KnowledgeBaseStore) {
		s.newPool = f
	}
}

func NewKnowledgeBaseStore(pool *pgxpool.Pool, opts ...Option) *KnowledgeBaseStore {
	s := &KnowledgeBaseStore{
		pool:    pool,
		newPool: pgxpool.New,
		remote:  make(map[string]*pgxpool.Pool),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Open acquires a pooled connection for kb. Close returns it to the pool.
func (s *KnowledgeBaseStore) Open(ctx context.Context, kb common.KnowledgeBase) (store.Connection, error) {
	pool, err := s.poolFor(ctx, kb)
	if err != nil {
		return nil, err
	}
	c, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &connection{db: c, kbID: kb.ID, release: c.Release}, nil
}

func (s *KnowledgeBaseStore) poolFor(ctx context.Context, kb common.KnowledgeBase) (*pgxpool.Pool, error) {
	if kb.IsLocal() || kb.ConnectionURL == "" {
		return s.pool, nil
	}

	s.mu.RLock()
	pool, ok := s.remote[kb.ID]
	s.mu.RUnlock()
	if ok {
		return pool, nil
	}

	v, err, _ := s.group.Do(kb.ID, func() (any, error) {
		s.mu.RLock()
		pool, ok := s.remote[kb.ID]
		s.mu.RUnlock()
		if ok {
			return pool, nil
		}

		logger.Debug("[Store][Remote] Opening pool", "kb", kb.ID)
		pool, err := s.newPool(ctx, kb.ConnectionURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to remote knowledge base %s: %w", kb.ID, err)
		}

		s.mu.Lock()
		s.remote[kb.ID] = pool
		s.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pgxpool.Pool), nil
}

// Close closes the remote pools. The primary pool belongs to the caller.
func (s *KnowledgeBaseStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, pool := range s.remote {
		pool.Close()
		delete(s.remote, id)
	}
}

type connection struct {
	db      pgxIConn
	kbID    string
	release func()
	closed  bool
}

var errConnectionClosed = errors.New("connection closed")

func (c *connection) Query(ctx context.Context, q store.LabelQuery) ([]common.KBHandle, error) {
	if c.closed {
		return nil, errConnectionClosed
	}
	if len(q.Labels) == 0 {
		return nil, nil
	}

	sql, args, err := buildLabelQuery(c.kbID, q)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("label query failed: %w", err)
	}
	defer rows.Close()

	handles := make([]common.KBHandle, 0)
	for rows.Next() {
		h := common.KBHandle{KB: c.kbID}
		if err := rows.Scan(&h.Identifier, &h.Label, &h.Description, &h.Language); err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return handles, nil
}

func (c *connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.release != nil {
		c.release()
	}
	return nil
}
