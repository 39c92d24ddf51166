package booking

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestStayNights(t *testing.T) {
	in, _ := ParseDate("2025-06-01")
	out, _ := ParseDate("2025-06-03")

	s := Stay{UnitID: "u1", CheckIn: in, CheckOut: out}
	if got := s.Nights(); got != 2 {
		t.Errorf("expected 2 nights, got %d", got)
	}

	if !s.Complete() {
		t.Error("expected stay to be complete")
	}

	if (Stay{UnitID: "u1", CheckIn: in}).Complete() {
		t.Error("expected stay without check-out to be incomplete")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("")
	if err != nil || !d.IsZero() {
		t.Errorf("expected zero date for empty input, got %v %v", d, err)
	}

	if _, err := ParseDate("06/01/2025"); err == nil {
		t.Error("expected error for malformed date")
	}

	d, err = ParseDate("2025-06-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !d.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", d)
	}
}

func TestQuoteSubtotal(t *testing.T) {
	q := &Quote{PricePerNight: decimal.NewFromInt(3500), Nights: 2}
	if !q.Subtotal().Equal(decimal.NewFromInt(7000)) {
		t.Errorf("expected derived subtotal 7000, got %s", q.Subtotal())
	}

	q.TotalPrice = decimal.NewFromInt(6900)
	if !q.Subtotal().Equal(decimal.NewFromInt(6900)) {
		t.Errorf("expected backend total 6900, got %s", q.Subtotal())
	}
}

func TestNewPricingBreakdown(t *testing.T) {
	q := &Quote{
		PricePerNight: decimal.NewFromInt(3500),
		Nights:        2,
		TotalPrice:    decimal.NewFromInt(7000),
		Currency:      "USD",
	}

	tests := []struct {
		name     string
		discount decimal.Decimal
		total    decimal.Decimal
	}{
		{"no discount", decimal.Zero, decimal.NewFromInt(7000)},
		{"partial", decimal.NewFromInt(700), decimal.NewFromInt(6300)},
		{"exact", decimal.NewFromInt(7000), decimal.Zero},
		{"exceeds subtotal", decimal.NewFromInt(9000), decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewPricingBreakdown(q, tt.discount)
			if !b.Total.Equal(tt.total) {
				t.Errorf("expected total %s, got %s", tt.total, b.Total)
			}

			if !b.CouponDiscount.Equal(tt.discount) {
				t.Errorf("expected discount kept as %s, got %s", tt.discount, b.CouponDiscount)
			}

			if b.Total.IsNegative() {
				t.Error("total must never be negative")
			}
		})
	}

	if b := NewPricingBreakdown(nil, decimal.NewFromInt(10)); !b.Total.IsZero() {
		t.Errorf("expected zero breakdown without quote, got %+v", b)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := map[string]struct {
		amount   decimal.Decimal
		currency string
	}{
		"USD 7,000.00":     {decimal.NewFromInt(7000), "USD"},
		"INR 1,234,567.50": {decimal.RequireFromString("1234567.5"), "INR"},
		"12.30":            {decimal.RequireFromString("12.3"), ""},
		"EUR -5.00":        {decimal.NewFromInt(-5), "EUR"},
	}

	for want, in := range tests {
		if got := FormatAmount(in.amount, in.currency); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

func TestGuestInfoValidate(t *testing.T) {
	g := GuestInfo{FirstName: "Ada", LastName: "Lovelace", Email: "  ", Phone: "123"}

	inputErr := IsInputError(g.Validate())
	if inputErr == nil {
		t.Fatal("expected input error for blank email")
	}

	field, msg := inputErr.First()
	if field != "email" {
		t.Errorf("expected email field, got %q", field)
	}

	if msg != "Please enter your email address." {
		t.Errorf("unexpected message %q", msg)
	}

	g.Email = "ada@example.com"
	if err := g.Validate(); err != nil {
		t.Errorf("expected valid guest info, got %v", err)
	}
}

func TestGuestInfoValidateOrder(t *testing.T) {
	inputErr := IsInputError(GuestInfo{}.Validate())
	if inputErr == nil {
		t.Fatal("expected input error")
	}

	if inputErr.FieldsCount() != 4 {
		t.Errorf("expected 4 missing fields, got %d", inputErr.FieldsCount())
	}

	if field, _ := inputErr.First(); field != "firstName" {
		t.Errorf("expected firstName first, got %q", field)
	}
}
