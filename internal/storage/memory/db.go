package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avstrong/staycheckout/internal/booking"
	"github.com/avstrong/staycheckout/internal/checkout"
	"github.com/avstrong/staycheckout/internal/logger"
)

type Config struct {
	L *logger.Logger
	// TTL is how long an untouched session survives. Zero keeps sessions forever.
	TTL time.Duration
	Now func() time.Time
}

type entry struct {
	session *checkout.Session
	touched time.Time
}

// DB keeps checkout sessions in process memory.
type DB struct {
	mu       sync.Mutex
	l        *logger.Logger
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*entry
}

func New(conf Config) *DB {
	now := conf.Now
	if now == nil {
		now = time.Now
	}

	//nolint:exhaustruct
	return &DB{
		l:        conf.L,
		ttl:      conf.TTL,
		now:      now,
		sessions: make(map[string]*entry),
	}
}

func (db *DB) SaveSession(_ context.Context, s *checkout.Session) error {
	if s == nil {
		return ErrNilSession
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.sessions[s.ID()]; exists {
		return fmt.Errorf("session %s: %w", s.ID(), ErrDuplicateID)
	}

	db.sessions[s.ID()] = &entry{session: s, touched: db.now()}

	return nil
}

// GetSession refreshes the session's expiry.
func (db *DB) GetSession(_ context.Context, id string) (*checkout.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	e, ok := db.sessions[id]
	if !ok || db.expired(e) {
		return nil, fmt.Errorf("session %s: %w", id, booking.ErrRecordNotFound)
	}

	e.touched = db.now()

	return e.session, nil
}

func (db *DB) DeleteSession(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, booking.ErrRecordNotFound)
	}

	delete(db.sessions, id)

	return nil
}

func (db *DB) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()

	return len(db.sessions)
}

// A session mid-checkout never expires; its run ends on its own timeouts.
func (db *DB) expired(e *entry) bool {
	return db.ttl > 0 && db.now().Sub(e.touched) > db.ttl && !e.session.Submitting()
}

// Sweep drops expired sessions and reports how many were removed.
func (db *DB) Sweep(_ context.Context) int {
	db.mu.Lock()
	defer db.mu.Unlock()

	removed := 0

	for id, e := range db.sessions {
		if db.expired(e) {
			delete(db.sessions, id)
			removed++
		}
	}

	return removed
}

// RunSweeper sweeps every interval until ctx is done.
func (db *DB) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := db.Sweep(ctx); removed > 0 {
				db.l.LogInfo("Swept %d expired checkout sessions", removed)
			}
		}
	}
}
