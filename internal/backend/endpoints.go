package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/avstrong/staycheckout/internal/booking"
)

type quoteData struct {
	Quote *struct {
		Pricing *struct {
			TotalPrice    decimal.Decimal `json:"totalPrice"`
			PricePerNight decimal.Decimal `json:"pricePerNight"`
			Currency      string          `json:"currency"`
		} `json:"pricing"`
		Nights    int  `json:"nights"`
		Available bool `json:"available"`
	} `json:"quote"`
}

type createOrderBody struct {
	Amount      decimal.Decimal        `json:"amount"`
	Currency    string                 `json:"currency"`
	BookingData booking.BookingRequest `json:"bookingData"`
}

type verifyBody struct {
	booking.PaymentProof
	BookingData booking.BookingRequest `json:"bookingData"`
}

type bookingData struct {
	Booking *booking.Booking `json:"booking"`
}

type bookingsData struct {
	Bookings []booking.Booking `json:"bookings"`
}

func (c *Client) GetUnit(ctx context.Context, unitID string) (*booking.Unit, error) {
	var unit booking.Unit

	if err := c.do(ctx, "get unit", http.MethodGet, "/units/"+url.PathEscape(unitID), nil, nil, &unit); err != nil {
		return nil, err
	}

	if unit.ID == "" {
		unit.ID = unitID
	}

	return &unit, nil
}

// GetQuote fills in nights and total from the stay when the backend leaves
// them out.
func (c *Client) GetQuote(ctx context.Context, stay booking.Stay) (*booking.Quote, error) {
	query := url.Values{}
	query.Set("checkIn", booking.FormatDate(stay.CheckIn))
	query.Set("checkOut", booking.FormatDate(stay.CheckOut))
	query.Set("guests", strconv.Itoa(stay.Guests.Total()))

	var data quoteData

	path := "/pricing/units/" + url.PathEscape(stay.UnitID) + "/quote"
	if err := c.do(ctx, "get quote", http.MethodGet, path, query, nil, &data); err != nil {
		return nil, err
	}

	if data.Quote == nil || data.Quote.Pricing == nil {
		return nil, fmt.Errorf("get quote: missing quote pricing: %w", ErrMalformedResponse)
	}

	q := &booking.Quote{
		PricePerNight: data.Quote.Pricing.PricePerNight,
		Nights:        data.Quote.Nights,
		TotalPrice:    data.Quote.Pricing.TotalPrice,
		Currency:      data.Quote.Pricing.Currency,
		Available:     data.Quote.Available,
	}

	if q.Nights <= 0 {
		q.Nights = stay.Nights()
	}

	if q.TotalPrice.IsZero() {
		q.TotalPrice = q.PricePerNight.Mul(decimal.NewFromInt(int64(q.Nights)))
	}

	return q, nil
}

func (c *Client) CreateOrder(ctx context.Context, req booking.BookingRequest) (*booking.Order, error) {
	body := createOrderBody{
		Amount:      req.Pricing.Total,
		Currency:    req.Pricing.Currency,
		BookingData: req,
	}

	var order booking.Order

	if err := c.do(ctx, "create order", http.MethodPost, "/payments/create-order", nil, body, &order); err != nil {
		return nil, err
	}

	if order.OrderID == "" {
		return nil, fmt.Errorf("create order: missing order id: %w", ErrMalformedResponse)
	}

	if order.Currency == "" {
		order.Currency = req.Pricing.Currency
	}

	return &order, nil
}

func (c *Client) VerifyPayment(ctx context.Context, proof booking.PaymentProof, req booking.BookingRequest) (*booking.Booking, error) {
	var data bookingData

	body := verifyBody{PaymentProof: proof, BookingData: req}
	if err := c.do(ctx, "verify payment", http.MethodPost, "/payments/verify", nil, body, &data); err != nil {
		return nil, err
	}

	if data.Booking == nil || data.Booking.Reference == "" {
		return nil, fmt.Errorf("verify payment: missing booking reference: %w", ErrMalformedResponse)
	}

	return data.Booking, nil
}

func (c *Client) BookingByReference(ctx context.Context, ref string) (*booking.Booking, error) {
	var data bookingData

	path := "/bookings/reference/" + url.PathEscape(ref)
	if err := c.do(ctx, "get booking", http.MethodGet, path, nil, nil, &data); err != nil {
		return nil, err
	}

	if data.Booking == nil {
		return nil, fmt.Errorf("get booking: missing booking: %w", ErrMalformedResponse)
	}

	return data.Booking, nil
}

func (c *Client) BookingsByEmail(ctx context.Context, email string) ([]booking.Booking, error) {
	var data bookingsData

	query := url.Values{}
	query.Set("email", email)

	if err := c.do(ctx, "list bookings", http.MethodGet, "/bookings/email", query, nil, &data); err != nil {
		return nil, err
	}

	return data.Bookings, nil
}

func (c *Client) CancelBooking(ctx context.Context, ref string) (*booking.Booking, error) {
	var data bookingData

	path := "/bookings/" + url.PathEscape(ref) + "/cancel"
	if err := c.do(ctx, "cancel booking", http.MethodPost, path, nil, struct{}{}, &data); err != nil {
		return nil, err
	}

	if data.Booking == nil {
		return nil, fmt.Errorf("cancel booking: missing booking: %w", ErrMalformedResponse)
	}

	return data.Booking, nil
}
