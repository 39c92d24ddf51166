package coupon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/avstrong/staycheckout/internal/booking"
)

func quote(total int64) *booking.Quote {
	return &booking.Quote{
		PricePerNight: decimal.NewFromInt(total / 2),
		Nights:        2,
		TotalPrice:    decimal.NewFromInt(total),
		Currency:      "USD",
		Available:     true,
	}
}

func TestNormalize(t *testing.T) {
	for _, raw := range []string{"save10", " SAVE10 ", "\tSave10\n"} {
		if got := Normalize(raw); got != "SAVE10" {
			t.Errorf("Normalize(%q) = %q", raw, got)
		}
	}
}

func TestApply_Percentage(t *testing.T) {
	applied, err := DefaultTable().Apply(" save10", quote(7000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if applied.Code != "SAVE10" || applied.Kind != Percentage {
		t.Errorf("unexpected coupon %+v", applied)
	}

	if got := applied.Discount(decimal.NewFromInt(7000)); !got.Equal(decimal.NewFromInt(700)) {
		t.Errorf("expected discount 700, got %s", got)
	}
}

func TestApply_Fixed(t *testing.T) {
	applied, err := DefaultTable().Apply("WELCOME500", quote(300))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Fixed discounts are not capped at the subtotal.
	if got := applied.Discount(decimal.NewFromInt(300)); !got.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected discount 500, got %s", got)
	}
}

func TestApply_Rejections(t *testing.T) {
	table := DefaultTable()

	if _, err := table.Apply("BADCODE", quote(7000)); !errors.Is(err, ErrUnknownCode) {
		t.Errorf("expected ErrUnknownCode, got %v", err)
	}

	if _, err := table.Apply("SAVE10", nil); !errors.Is(err, ErrNoActiveQuote) {
		t.Errorf("expected ErrNoActiveQuote, got %v", err)
	}

	if ErrUnknownCode.Error() == ErrNoActiveQuote.Error() {
		t.Error("rejection reasons must be distinguishable")
	}
}

func TestDiscount_NilCoupon(t *testing.T) {
	var applied *Applied
	if got := applied.Discount(decimal.NewFromInt(100)); !got.IsZero() {
		t.Errorf("expected zero discount, got %s", got)
	}
}

func TestNewTable_InvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
	}{
		{"empty code", Definition{Code: " ", Kind: Fixed, Amount: decimal.NewFromInt(1)}},
		{"percentage above one", Definition{Code: "X", Kind: Percentage, Amount: decimal.NewFromInt(10)}},
		{"negative fixed", Definition{Code: "X", Kind: Fixed, Amount: decimal.NewFromInt(-1)}},
		{"unknown kind", Definition{Code: "X", Kind: "bogo", Amount: decimal.NewFromInt(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTable(tt.def); !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("expected ErrInvalidDefinition, got %v", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coupons.json")
	body := `[{"code":"stay5","kind":"fixed","amount":5,"label":"5 off"},{"code":"half","kind":"percentage","amount":"0.5","label":"half price"}]`

	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if table.Len() != 2 {
		t.Errorf("expected 2 coupons, got %d", table.Len())
	}

	d, ok := table.Lookup("Half")
	if !ok || !d.Amount.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("unexpected lookup result %+v %v", d, ok)
	}

	if _, ok := table.Lookup("SAVE10"); ok {
		t.Error("file table must replace the built-in coupons")
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
