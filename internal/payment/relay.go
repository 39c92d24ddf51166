package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDuplicateOrder = errors.New("order is already awaiting payment")
	ErrOrderMismatch  = errors.New("payment proof belongs to another order")
)

// Relay is a Widget for a browser-hosted payment modal: Pay parks the caller
// until the browser reports the modal outcome through Resolve. An outcome
// that arrives before Pay is held for it.
type Relay struct {
	mu      sync.Mutex
	pending map[string]chan Result
	early   map[string]Result
}

func NewRelay() *Relay {
	return &Relay{
		pending: make(map[string]chan Result),
		early:   make(map[string]Result),
	}
}

func (r *Relay) Pay(ctx context.Context, req Request) (Result, error) {
	ch := make(chan Result, 1)

	r.mu.Lock()
	if res, ok := r.early[req.OrderID]; ok {
		delete(r.early, req.OrderID)
		r.mu.Unlock()

		return res, nil
	}

	if _, exists := r.pending[req.OrderID]; exists {
		r.mu.Unlock()

		return Result{}, fmt.Errorf("order %s: %w", req.OrderID, ErrDuplicateOrder)
	}

	r.pending[req.OrderID] = ch
	r.mu.Unlock()

	defer r.forget(req.OrderID, ch)

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (r *Relay) forget(orderID string, ch chan Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending[orderID] == ch {
		delete(r.pending, orderID)
	}
}

// Resolve delivers the outcome for orderID. Callers resolve each order once.
func (r *Relay) Resolve(orderID string, res Result) error {
	if res.Outcome == Succeeded {
		if res.Proof.OrderID == "" {
			res.Proof.OrderID = orderID
		}

		if res.Proof.OrderID != orderID {
			return fmt.Errorf("order %s: %w", orderID, ErrOrderMismatch)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.pending[orderID]
	if !ok {
		r.early[orderID] = res

		return nil
	}

	delete(r.pending, orderID)
	ch <- res

	return nil
}

// Waiting reports whether Pay is currently parked on orderID.
func (r *Relay) Waiting(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.pending[orderID]

	return ok
}

// Discard drops an undelivered outcome, e.g. for an order whose Pay gave up.
func (r *Relay) Discard(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.early, orderID)
}
