package leaselock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	key string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.key
	return nil
}

// fakeLeases keeps holders per key and ignores expiry.
type fakeLeases struct {
	mu       sync.Mutex
	holders  map[string]string
	released []string
}

func newFakeLeases() *fakeLeases {
	return &fakeLeases{holders: make(map[string]string)}
}

func (f *fakeLeases) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, holder := args[0].(string), args[1].(string)
	current, held := f.holders[key]
	switch {
	case strings.Contains(sql, "INSERT"):
		if held && current != holder {
			return fakeRow{err: pgx.ErrNoRows}
		}
		f.holders[key] = holder
		return fakeRow{key: key}
	default:
		if !held || current != holder {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{key: key}
	}
}

func (f *fakeLeases) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, holder := args[0].(string), args[1].(string)
	if f.holders[key] == holder {
		delete(f.holders, key)
		f.released = append(f.released, key)
	}
	return pgconn.CommandTag{}, nil
}

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name      string
		in        Options
		wantTTL   time.Duration
		wantRenew time.Duration
	}{
		{"defaults", Options{}, DefaultTTL, DefaultTTL / 2},
		{"renew at ttl", Options{TTL: 4 * time.Second, RenewEvery: 4 * time.Second}, 4 * time.Second, 2 * time.Second},
		{"explicit", Options{TTL: time.Minute, RenewEvery: 10 * time.Second}, time.Minute, 10 * time.Second},
		{"short ttl floor", Options{TTL: time.Second}, time.Second, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.normalize()
			if got.TTL != tt.wantTTL || got.RenewEvery != tt.wantRenew {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestRun_ReleasesAfterSuccess(t *testing.T) {
	db := newFakeLeases()
	g, err := newGuard(db, "worker")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(g.Holder(), "worker-") {
		t.Fatalf("unexpected holder %s", g.Holder())
	}

	key := JobKey("abc")
	called := false
	err = g.Run(context.Background(), key, Options{}, func(ctx context.Context) error {
		called = true
		if db.holders[key] != g.Holder() {
			t.Fatalf("lease not held during fn")
		}
		return nil
	})
	if err != nil || !called {
		t.Fatalf("err=%v called=%v", err, called)
	}
	if len(db.released) != 1 || db.released[0] != "link-job:abc" {
		t.Fatalf("expected release, got %v", db.released)
	}
}

func TestRun_BusyWhenHeldElsewhere(t *testing.T) {
	db := newFakeLeases()
	db.holders[JobKey("abc")] = "other-worker"
	g, _ := newGuard(db, "worker")

	err := g.Run(context.Background(), JobKey("abc"), Options{}, func(context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestRun_PropagatesError(t *testing.T) {
	db := newFakeLeases()
	g, _ := newGuard(db, "worker")
	boom := errors.New("boom")

	err := g.Run(context.Background(), JobKey("x"), Options{}, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(db.holders) != 0 {
		t.Fatalf("lease not released: %v", db.holders)
	}
}

func TestRun_EmptyKey(t *testing.T) {
	g, _ := newGuard(newFakeLeases(), "worker")
	if err := g.Run(context.Background(), "", Options{}, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for empty key")
	}
}
