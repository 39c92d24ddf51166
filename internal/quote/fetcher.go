package quote

import (
	"context"
	"time"

	"github.com/avstrong/staycheckout/internal/backend"
	"github.com/avstrong/staycheckout/internal/booking"
	"github.com/avstrong/staycheckout/internal/logger"
)

const (
	msgDateOrder = "Check-out date must be after check-in date."
	msgNoGuests  = "Please select at least one guest."
)

type quoter interface {
	GetQuote(ctx context.Context, stay booking.Stay) (*booking.Quote, error)
}

// Target is the state a fetch reports into. BeginQuote issues the sequence
// number of a new fetch, or refuses when stay is no longer the current one or
// was already fetched (unless force is set). Complete and Fail report false
// when seq is no longer the latest issued.
type Target interface {
	BeginQuote(stay booking.Stay, force bool) (uint64, bool)
	CompleteQuote(seq uint64, q *booking.Quote) bool
	FailQuote(seq uint64, msg string) bool
}

type Status string

const (
	StatusSkipped    Status = "skipped"
	StatusDuplicate  Status = "duplicate"
	StatusApplied    Status = "applied"
	StatusFailed     Status = "failed"
	StatusStale      Status = "stale"
	StatusSuperseded Status = "superseded"
)

type Conf struct {
	L       *logger.Logger
	Quoter  quoter
	Timeout time.Duration
}

type Fetcher struct {
	l       *logger.Logger
	quoter  quoter
	timeout time.Duration
}

func New(conf Conf) *Fetcher {
	return &Fetcher{
		l:       conf.L,
		quoter:  conf.Quoter,
		timeout: conf.Timeout,
	}
}

// Fetch prices stay once per distinct tuple. A stay without unit or dates is
// skipped without touching t.
func (f *Fetcher) Fetch(ctx context.Context, t Target, stay booking.Stay) Status {
	return f.fetch(ctx, t, stay, false)
}

// Refresh re-fetches stay even when it was already priced.
func (f *Fetcher) Refresh(ctx context.Context, t Target, stay booking.Stay) Status {
	return f.fetch(ctx, t, stay, true)
}

func (f *Fetcher) fetch(ctx context.Context, t Target, stay booking.Stay, force bool) Status {
	if !stay.Complete() {
		return StatusSkipped
	}

	seq, ok := t.BeginQuote(stay, force)
	if !ok {
		if force {
			return StatusSuperseded
		}

		return StatusDuplicate
	}

	if msg := checkStay(stay); msg != "" {
		return f.fail(t, seq, stay, msg)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	q, err := f.quoter.GetQuote(ctx, stay)
	if err != nil {
		f.l.LogErrorf("Could not get quote #%d for %s: %v", seq, stay, err.Error())

		return f.fail(t, seq, stay, backend.Describe(err))
	}

	if !t.CompleteQuote(seq, q) {
		f.l.LogDebug("Discarded stale quote #%d for %s", seq, stay)

		return StatusStale
	}

	return StatusApplied
}

func (f *Fetcher) fail(t Target, seq uint64, stay booking.Stay, msg string) Status {
	if !t.FailQuote(seq, msg) {
		f.l.LogDebug("Discarded stale quote failure #%d for %s", seq, stay)

		return StatusStale
	}

	return StatusFailed
}

func checkStay(stay booking.Stay) string {
	if !stay.CheckOut.After(stay.CheckIn) {
		return msgDateOrder
	}

	if stay.Guests.Total() <= 0 {
		return msgNoGuests
	}

	return ""
}
