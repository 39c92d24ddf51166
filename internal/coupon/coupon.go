package coupon

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/avstrong/staycheckout/internal/booking"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// Percentage multiplies the pre-discount subtotal by a fraction in [0,1].
	Percentage Kind = "percentage"
	// Fixed subtracts a flat currency amount.
	Fixed Kind = "fixed"
)

var (
	// ErrUnknownCode is returned when the normalized code matches no definition.
	ErrUnknownCode = errors.New("unknown code")
	// ErrNoActiveQuote is returned when there is no quote to discount.
	ErrNoActiveQuote = errors.New("no active quote")
	// ErrInvalidDefinition is returned for malformed coupon definitions.
	ErrInvalidDefinition = errors.New("invalid coupon definition")
)

// Definition is one entry of the coupon table.
type Definition struct {
	Code   string          `json:"code"`
	Kind   Kind            `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
	Label  string          `json:"label"`
}

func (d Definition) validate() error {
	if Normalize(d.Code) == "" {
		return errors.Wrap(ErrInvalidDefinition, "empty code")
	}

	switch d.Kind {
	case Percentage:
		if d.Amount.IsNegative() || d.Amount.GreaterThan(decimal.NewFromInt(1)) {
			return errors.Wrapf(ErrInvalidDefinition, "%s: percentage must be a fraction in [0,1]", d.Code)
		}
	case Fixed:
		if d.Amount.IsNegative() {
			return errors.Wrapf(ErrInvalidDefinition, "%s: fixed amount cannot be negative", d.Code)
		}
	default:
		return errors.Wrapf(ErrInvalidDefinition, "%s: unknown kind %q", d.Code, d.Kind)
	}

	return nil
}

// Applied is the coupon currently active in a checkout session.
type Applied struct {
	Code   string          `json:"code"`
	Kind   Kind            `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
	Label  string          `json:"label"`
}

// Discount is not clamped: a fixed discount may exceed the subtotal, the
// pricing breakdown floors the total instead.
func (a *Applied) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if a == nil {
		return decimal.Zero
	}

	switch a.Kind {
	case Percentage:
		return subtotal.Mul(a.Amount)
	case Fixed:
		return a.Amount
	default:
		return decimal.Zero
	}
}

// Normalize trims and upper-cases user input before lookup.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Table is a static, read-only mapping of normalized code to definition.
type Table struct {
	defs map[string]Definition
}

func NewTable(defs ...Definition) (*Table, error) {
	t := &Table{defs: make(map[string]Definition, len(defs))}

	for _, d := range defs {
		if err := d.validate(); err != nil {
			return nil, err
		}

		d.Code = Normalize(d.Code)
		t.defs[d.Code] = d
	}

	return t, nil
}

// DefaultTable holds the built-in coupons.
func DefaultTable() *Table {
	t, err := NewTable(
		Definition{Code: "SAVE10", Kind: Percentage, Amount: decimal.RequireFromString("0.10"), Label: "10% off your stay"},
		Definition{Code: "SUMMER20", Kind: Percentage, Amount: decimal.RequireFromString("0.20"), Label: "Summer special: 20% off"},
		Definition{Code: "WELCOME500", Kind: Fixed, Amount: decimal.NewFromInt(500), Label: "500 off your first booking"}, //nolint:gomnd
	)
	if err != nil {
		panic(err)
	}

	return t
}

// LoadFile reads a JSON array of definitions.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read coupons file")
	}

	var defs []Definition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, errors.Wrap(err, "decode coupons file")
	}

	return NewTable(defs...)
}

func (t *Table) Lookup(raw string) (Definition, bool) {
	d, ok := t.defs[Normalize(raw)]

	return d, ok
}

func (t *Table) Len() int {
	return len(t.defs)
}

// Apply evaluates rawCode against the table for the given quote.
func (t *Table) Apply(rawCode string, q *booking.Quote) (*Applied, error) {
	if q == nil {
		return nil, ErrNoActiveQuote
	}

	d, ok := t.Lookup(rawCode)
	if !ok {
		return nil, ErrUnknownCode
	}

	return &Applied{
		Code:   d.Code,
		Kind:   d.Kind,
		Amount: d.Amount,
		Label:  d.Label,
	}, nil
}
