package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/avstrong/staycheckout/internal/booking"
)

type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Cancelled Outcome = "cancelled"
	Failed    Outcome = "failed"
)

// Result is the single tagged outcome of one widget invocation.
type Result struct {
	Outcome Outcome
	Proof   booking.PaymentProof
	// Reason is the provider's failure description, when it sent one.
	Reason string
}

func Success(proof booking.PaymentProof) Result {
	return Result{Outcome: Succeeded, Proof: proof}
}

func Dismissed() Result {
	return Result{Outcome: Cancelled}
}

func Failure(reason string) Result {
	return Result{Outcome: Failed, Reason: reason}
}

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// Request is everything the hosted widget needs to open.
type Request struct {
	Key      string          `json:"key"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	OrderID  string          `json:"orderId"`
	// AmountMinor is Amount in currency subunits, the unit the widget charges in.
	AmountMinor int64             `json:"amountMinor"`
	Prefill     Prefill           `json:"prefill"`
	Notes       map[string]string `json:"notes,omitempty"`
	ThemeColor  string            `json:"themeColor,omitempty"`
}

func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart() //nolint:gomnd
}

// Widget suspends until the user completes or abandons payment. A non-nil
// error means the wait itself ended (context done), not a payment outcome.
type Widget interface {
	Pay(ctx context.Context, req Request) (Result, error)
}

type WidgetFunc func(ctx context.Context, req Request) (Result, error)

func (f WidgetFunc) Pay(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
