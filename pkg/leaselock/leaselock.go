// Package leaselock guards async linking jobs with expiring leases stored in
// the job_leases table, so a redelivered job is processed by one worker at a
// time.
package leaselock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/gryn010/inception/pkg/logger"
)

const (
	DefaultTTL   = 2 * time.Minute
	renewTimeout = 10 * time.Second
)

var (
	ErrBusy = errors.New("job lease held by another worker")
	ErrLost = errors.New("job lease lost")
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Guard hands out job leases for one worker process.
type Guard struct {
	db     dbConn
	holder string
}

type Options struct {
	TTL time.Duration
	// RenewEvery defaults to half the TTL.
	RenewEvery time.Duration
}

type lease struct {
	key    string
	holder string

	guard  *Guard
	ctx    context.Context
	cancel context.CancelCauseFunc

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewGuard creates a guard whose leases are owned by name plus a random
// suffix.
func NewGuard(pool *pgxpool.Pool, name string) (*Guard, error) {
	return newGuard(pool, name)
}

func newGuard(db dbConn, name string) (*Guard, error) {
	id, err := gonanoid.New(12)
	if err != nil {
		return nil, err
	}
	return &Guard{db: db, holder: name + "-" + id}, nil
}

func (g *Guard) Holder() string {
	return g.holder
}

// JobKey returns the lease key for an async linking request.
func JobKey(requestID string) string {
	return "link-job:" + requestID
}

func (o Options) normalize() Options {
	if o.TTL < time.Second {
		o.TTL = DefaultTTL
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = max(o.TTL/2, 500*time.Millisecond)
	}
	return o
}

// Run executes fn while holding the lease for key. It returns ErrBusy without
// calling fn when another holder owns an unexpired lease. The context passed
// to fn is cancelled with ErrLost when renewal fails.
func (g *Guard) Run(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	if key == "" {
		return errors.New("job lease key is empty")
	}
	opts = opts.normalize()
	ttlMs := opts.TTL.Milliseconds()

	var returned string
	err := g.db.QueryRow(ctx, acquireSQL, key, g.holder, ttlMs).Scan(&returned)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrBusy
	}
	if err != nil {
		return err
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &lease{
		key:    key,
		holder: g.holder,
		guard:  g,
		ctx:    leaseCtx,
		cancel: cancel,
		stopCh: make(chan struct{}),
	}
	go l.renewLoop(opts.RenewEvery, ttlMs)

	defer func() {
		if err := l.release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("[Lease] Failed to release job lease", "key", key, "err", err)
		}
	}()

	if err := fn(leaseCtx); err != nil {
		if cause := context.Cause(leaseCtx); errors.Is(cause, ErrLost) {
			return errors.Join(err, ErrLost)
		}
		return err
	}
	return nil
}

func (l *lease) release(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.cancel(context.Canceled)
	})

	_, err := l.guard.db.Exec(ctx, releaseSQL, l.key, l.holder)
	return err
}

func (l *lease) renewLoop(every time.Duration, ttlMs int64) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-l.ctx.Done():
			return
		case <-t.C:
			renewCtx, cancel := context.WithTimeout(l.ctx, renewTimeout)
			var returned string
			err := l.guard.db.QueryRow(renewCtx, renewSQL, l.key, l.holder, ttlMs).Scan(&returned)
			cancel()
			if errors.Is(err, pgx.ErrNoRows) {
				l.cancel(ErrLost)
				return
			}
			if err != nil {
				logger.Warn("[Lease] Renewal failed", "key", l.key, "err", err)
				l.cancel(errors.Join(ErrLost, err))
				return
			}
		}
	}
}

const acquireSQL = `
INSERT INTO job_leases (lease_key, holder, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lease_key) DO UPDATE
SET holder     = EXCLUDED.holder,
    expires_at = EXCLUDED.expires_at
WHERE job_leases.expires_at < now()
   OR job_leases.holder = EXCLUDED.holder
RETURNING lease_key;
`

const renewSQL = `
UPDATE job_leases
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lease_key = $1 AND holder = $2
RETURNING lease_key;
`

const releaseSQL = `
DELETE FROM job_leases
WHERE lease_key = $1 AND holder = $2;
`
