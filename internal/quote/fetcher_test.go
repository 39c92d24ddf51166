package quote

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avstrong/staycheckout/internal/backend"
	"github.com/avstrong/staycheckout/internal/booking"
	"github.com/avstrong/staycheckout/internal/logger"
)

type fakeTarget struct {
	mu      sync.Mutex
	seq     uint64
	fetched map[string]bool
	quote   *booking.Quote
	errMsg  string
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{fetched: make(map[string]bool)}
}

func (t *fakeTarget) BeginQuote(stay booking.Stay, force bool) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fetched[stay.String()] && !force {
		return 0, false
	}

	t.fetched[stay.String()] = true
	t.seq++

	return t.seq, true
}

func (t *fakeTarget) CompleteQuote(seq uint64, q *booking.Quote) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seq != t.seq {
		return false
	}

	t.quote, t.errMsg = q, ""

	return true
}

func (t *fakeTarget) FailQuote(seq uint64, msg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seq != t.seq {
		return false
	}

	t.quote, t.errMsg = nil, msg

	return true
}

func (t *fakeTarget) state() (*booking.Quote, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.quote, t.errMsg
}

type fakeQuoter struct {
	calls atomic.Int32
	fn    func(ctx context.Context, stay booking.Stay) (*booking.Quote, error)
}

func (f *fakeQuoter) GetQuote(ctx context.Context, stay booking.Stay) (*booking.Quote, error) {
	f.calls.Add(1)

	return f.fn(ctx, stay)
}

func priced(ppn int64) func(context.Context, booking.Stay) (*booking.Quote, error) {
	return func(_ context.Context, stay booking.Stay) (*booking.Quote, error) {
		nights := stay.Nights()

		return &booking.Quote{
			PricePerNight: decimal.NewFromInt(ppn),
			Nights:        nights,
			TotalPrice:    decimal.NewFromInt(ppn * int64(nights)),
			Currency:      "USD",
			Available:     true,
		}, nil
	}
}

func stay(checkIn, checkOut string, guests int) booking.Stay {
	in, _ := booking.ParseDate(checkIn)
	out, _ := booking.ParseDate(checkOut)

	return booking.Stay{UnitID: "u1", CheckIn: in, CheckOut: out, Guests: booking.GuestCounts{Adults: guests}}
}

func newFetcher(q quoter, timeout time.Duration) *Fetcher {
	return New(Conf{L: logger.NewNop(), Quoter: q, Timeout: timeout})
}

func TestFetch_SkipsIncompleteStay(t *testing.T) {
	q := &fakeQuoter{fn: priced(3500)}
	f := newFetcher(q, 0)
	target := newFakeTarget()

	tests := map[string]booking.Stay{
		"no unit":      {CheckIn: time.Now(), CheckOut: time.Now().Add(48 * time.Hour)},
		"no check-in":  {UnitID: "u1", CheckOut: time.Now()},
		"no check-out": {UnitID: "u1", CheckIn: time.Now()},
	}

	for name, s := range tests {
		if got := f.Fetch(context.Background(), target, s); got != StatusSkipped {
			t.Errorf("%s: expected skipped, got %s", name, got)
		}
	}

	if q.calls.Load() != 0 || target.seq != 0 {
		t.Errorf("guard must not touch quoter or target, calls=%d seq=%d", q.calls.Load(), target.seq)
	}
}

func TestFetch_AppliesQuote(t *testing.T) {
	q := &fakeQuoter{fn: priced(3500)}
	f := newFetcher(q, time.Second)
	target := newFakeTarget()

	if got := f.Fetch(context.Background(), target, stay("2025-06-01", "2025-06-03", 2)); got != StatusApplied {
		t.Fatalf("expected applied, got %s", got)
	}

	got, errMsg := target.state()
	if got == nil || errMsg != "" {
		t.Fatalf("expected a quote and no error, got %+v %q", got, errMsg)
	}

	if got.Nights != 2 || !got.TotalPrice.Equal(decimal.NewFromInt(7000)) {
		t.Errorf("unexpected quote %+v", got)
	}
}

func TestFetch_DeduplicatesAndRefreshes(t *testing.T) {
	q := &fakeQuoter{fn: priced(3500)}
	f := newFetcher(q, 0)
	target := newFakeTarget()
	s := stay("2025-06-01", "2025-06-03", 2)

	f.Fetch(context.Background(), target, s)

	if got := f.Fetch(context.Background(), target, s); got != StatusDuplicate {
		t.Errorf("expected duplicate, got %s", got)
	}

	if q.calls.Load() != 1 {
		t.Errorf("expected 1 remote call, got %d", q.calls.Load())
	}

	if got := f.Refresh(context.Background(), target, s); got != StatusApplied {
		t.Errorf("expected applied on refresh, got %s", got)
	}

	if q.calls.Load() != 2 {
		t.Errorf("expected 2 remote calls, got %d", q.calls.Load())
	}
}

func TestFetch_FailureClearsQuote(t *testing.T) {
	fail := false
	q := &fakeQuoter{fn: func(ctx context.Context, s booking.Stay) (*booking.Quote, error) {
		if fail {
			return nil, &backend.RemoteError{Op: "get quote", Status: http.StatusNotFound, Message: "Unit not found"}
		}

		return priced(3500)(ctx, s)
	}}
	f := newFetcher(q, 0)
	target := newFakeTarget()

	f.Fetch(context.Background(), target, stay("2025-06-01", "2025-06-03", 2))

	fail = true

	if got := f.Fetch(context.Background(), target, stay("2025-06-01", "2025-06-04", 2)); got != StatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}

	got, errMsg := target.state()
	if got != nil {
		t.Errorf("quote must be discarded on failure, got %+v", got)
	}

	if errMsg != "Unit not found" {
		t.Errorf("unexpected message %q", errMsg)
	}
}

func TestFetch_RejectsInvalidStayLocally(t *testing.T) {
	q := &fakeQuoter{fn: priced(3500)}
	f := newFetcher(q, 0)

	tests := []struct {
		name string
		stay booking.Stay
		msg  string
	}{
		{"reversed dates", stay("2025-06-03", "2025-06-01", 2), msgDateOrder},
		{"same day", stay("2025-06-03", "2025-06-03", 2), msgDateOrder},
		{"no guests", stay("2025-06-01", "2025-06-03", 0), msgNoGuests},
	}

	for _, tt := range tests {
		target := newFakeTarget()

		if got := f.Fetch(context.Background(), target, tt.stay); got != StatusFailed {
			t.Errorf("%s: expected failed, got %s", tt.name, got)
		}

		if _, errMsg := target.state(); errMsg != tt.msg {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.msg, errMsg)
		}
	}

	if q.calls.Load() != 0 {
		t.Errorf("expected no remote calls, got %d", q.calls.Load())
	}
}

func TestFetch_DiscardsStaleResponse(t *testing.T) {
	slow := stay("2025-06-01", "2025-06-03", 2)
	fast := stay("2025-06-01", "2025-06-05", 2)

	started := make(chan struct{})
	release := make(chan struct{})

	q := &fakeQuoter{fn: func(ctx context.Context, s booking.Stay) (*booking.Quote, error) {
		if s.Equal(slow) {
			close(started)
			<-release

			return priced(1000)(ctx, s)
		}

		return priced(2000)(ctx, s)
	}}
	f := newFetcher(q, 0)
	target := newFakeTarget()

	done := make(chan Status, 1)

	go func() { done <- f.Fetch(context.Background(), target, slow) }()

	<-started

	if got := f.Fetch(context.Background(), target, fast); got != StatusApplied {
		t.Fatalf("expected later fetch applied, got %s", got)
	}

	close(release)

	if got := <-done; got != StatusStale {
		t.Errorf("expected earlier fetch stale, got %s", got)
	}

	got, _ := target.state()
	if got == nil || got.Nights != 4 || !got.PricePerNight.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("latest issued fetch must win, got %+v", got)
	}
}

func TestFetch_Timeout(t *testing.T) {
	q := &fakeQuoter{fn: func(ctx context.Context, _ booking.Stay) (*booking.Quote, error) {
		<-ctx.Done()

		return nil, ctx.Err()
	}}
	f := newFetcher(q, 20*time.Millisecond)
	target := newFakeTarget()

	if got := f.Fetch(context.Background(), target, stay("2025-06-01", "2025-06-03", 2)); got != StatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}

	if _, errMsg := target.state(); errMsg != "The booking service took too long to respond. Please try again." {
		t.Errorf("unexpected message %q", errMsg)
	}
}
