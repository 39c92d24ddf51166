package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avstrong/staycheckout/internal/booking"
	"github.com/avstrong/staycheckout/internal/checkout"
	"github.com/avstrong/staycheckout/internal/logger"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newTestDB(ttl time.Duration) (*DB, *clock) {
	c := &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	return New(Config{L: logger.NewNop(), TTL: ttl, Now: c.Now}), c
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(time.Hour)

	s := checkout.NewSession("s1", booking.Stay{UnitID: "u1"})

	if err := db.SaveSession(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := db.SaveSession(ctx, s); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}

	if err := db.SaveSession(ctx, nil); !errors.Is(err, ErrNilSession) {
		t.Errorf("expected ErrNilSession, got %v", err)
	}

	got, err := db.GetSession(ctx, "s1")
	if err != nil || got != s {
		t.Fatalf("get: %v %v", got, err)
	}

	if _, err := db.GetSession(ctx, "missing"); !errors.Is(err, booking.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}

	if err := db.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := db.DeleteSession(ctx, "s1"); !errors.Is(err, booking.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	db, c := newTestDB(time.Hour)

	_ = db.SaveSession(ctx, checkout.NewSession("old", booking.Stay{}))
	_ = db.SaveSession(ctx, checkout.NewSession("used", booking.Stay{}))

	c.advance(40 * time.Minute)

	if _, err := db.GetSession(ctx, "used"); err != nil {
		t.Fatalf("get: %v", err)
	}

	c.advance(30 * time.Minute)

	if _, err := db.GetSession(ctx, "old"); !errors.Is(err, booking.ErrRecordNotFound) {
		t.Errorf("expired session must not be served, got %v", err)
	}

	if removed := db.Sweep(ctx); removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	if db.Len() != 1 {
		t.Errorf("expected 1 session left, got %d", db.Len())
	}
}

func TestNoTTLKeepsSessions(t *testing.T) {
	ctx := context.Background()
	db, c := newTestDB(0)

	_ = db.SaveSession(ctx, checkout.NewSession("s1", booking.Stay{}))

	c.advance(1000 * time.Hour)

	if removed := db.Sweep(ctx); removed != 0 {
		t.Errorf("expected nothing removed, got %d", removed)
	}
}
