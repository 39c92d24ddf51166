package booking

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by the backend API.
const DateLayout = "2006-01-02"

type GuestCounts struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
}

func (g GuestCounts) Total() int {
	return g.Adults + g.Children
}

// Stay is the (unit, check-in, check-out, guests) tuple a quote is priced for.
type Stay struct {
	UnitID   string
	CheckIn  time.Time
	CheckOut time.Time
	Guests   GuestCounts
}

// Complete reports whether the stay carries enough input to be priced.
func (s Stay) Complete() bool {
	return s.UnitID != "" && !s.CheckIn.IsZero() && !s.CheckOut.IsZero()
}

func (s Stay) Nights() int {
	if s.CheckIn.IsZero() || s.CheckOut.IsZero() {
		return 0
	}

	return int(s.CheckOut.Sub(s.CheckIn).Hours() / 24) //nolint:gomnd
}

func (s Stay) Equal(o Stay) bool {
	return s.UnitID == o.UnitID &&
		s.CheckIn.Equal(o.CheckIn) &&
		s.CheckOut.Equal(o.CheckOut) &&
		s.Guests == o.Guests
}

func (s Stay) String() string {
	return fmt.Sprintf("%s %s..%s guests=%d", s.UnitID, FormatDate(s.CheckIn), FormatDate(s.CheckOut), s.Guests.Total())
}

func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	d, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}

	return d.UTC(), nil
}

func FormatDate(d time.Time) string {
	if d.IsZero() {
		return ""
	}

	return d.UTC().Format(DateLayout)
}

type Quote struct {
	PricePerNight decimal.Decimal `json:"pricePerNight"`
	Nights        int             `json:"nights"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	Currency      string          `json:"currency"`
	Available     bool            `json:"available"`
}

// Subtotal is the backend total when present, pricePerNight × nights otherwise.
func (q *Quote) Subtotal() decimal.Decimal {
	if !q.TotalPrice.IsZero() {
		return q.TotalPrice
	}

	return q.PricePerNight.Mul(decimal.NewFromInt(int64(q.Nights)))
}

type Unit struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Images       []string `json:"images"`
	CheckInTime  string   `json:"checkInTime"`
	CheckOutTime string   `json:"checkOutTime"`
	PropertyID   string   `json:"propertyId"`
}

// BookingRequest is the normalized payload sent with order creation and verification.
type BookingRequest struct {
	UnitID        string           `json:"unitId"`
	CheckIn       string           `json:"checkIn"`
	CheckOut      string           `json:"checkOut"`
	Guests        GuestCounts      `json:"guests"`
	GuestInfo     GuestInfo        `json:"guestInfo"`
	Pricing       PricingBreakdown `json:"pricing"`
	PaymentMethod string           `json:"paymentMethod"`
	Amenities     []string         `json:"additionalAmenities"`
	CouponCode    string           `json:"couponCode,omitempty"`
}

type Order struct {
	OrderID  string          `json:"orderId"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// PaymentProof is the provider-signed transaction proof returned by the widget.
type PaymentProof struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type Booking struct {
	Reference  string          `json:"bookingReference"`
	Status     string          `json:"status,omitempty"`
	UnitID     string          `json:"unitId,omitempty"`
	CheckIn    string          `json:"checkIn,omitempty"`
	CheckOut   string          `json:"checkOut,omitempty"`
	Guests     *GuestCounts    `json:"guests,omitempty"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Currency   string          `json:"currency,omitempty"`
	GuestEmail string          `json:"guestEmail,omitempty"`
	CreatedAt  *time.Time      `json:"createdAt,omitempty"`
}
