package checkout

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/avstrong/staycheckout/internal/booking"
	"github.com/avstrong/staycheckout/internal/coupon"
	"github.com/avstrong/staycheckout/internal/payment"
)

const DefaultPaymentMethod = "razorpay"

type couponTable interface {
	Apply(rawCode string, q *booking.Quote) (*coupon.Applied, error)
}

// GuestForm is everything the guest types into the checkout page.
type GuestForm struct {
	Guest         booking.GuestInfo `json:"guestInfo"`
	TermsAccepted bool              `json:"termsAccepted"`
	PaymentMethod string            `json:"paymentMethod"`
	Amenities     []string          `json:"additionalAmenities"`
}

// Session is the transient state of one checkout page. All mutators keep the
// invariants: an applied coupon needs a quote, and only the latest issued
// quote fetch may change the quote.
type Session struct {
	mu sync.Mutex

	id   string
	stay booking.Stay
	form GuestForm

	quote        *booking.Quote
	quoteStay    booking.Stay
	quoteSeq     uint64
	quoteIssued  bool
	quoteLoading bool
	quoteErr     string

	coupon      *coupon.Applied
	couponInput string

	state      State
	submitting bool
	failure    *Failure
	pending    *payment.Request
	claimed    bool
	bookingRef string
}

func NewSession(id string, stay booking.Stay) *Session {
	//nolint:exhaustruct
	return &Session{
		id:    id,
		stay:  stay,
		state: StateIdle,
		form:  GuestForm{PaymentMethod: DefaultPaymentMethod},
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Stay() booking.Stay {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stay
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.submitting
}

func (s *Session) editable() error {
	if s.submitting {
		return ErrSubmitInProgress
	}

	if s.state == StateConfirmed {
		return ErrAlreadyConfirmed
	}

	return nil
}

// SetStay replaces the selected unit, dates and guests. The current quote
// stays until a fetch for the new stay resolves.
func (s *Session) SetStay(stay booking.Stay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}

	s.stay = stay

	return nil
}

func (s *Session) SetGuestForm(form GuestForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}

	if form.PaymentMethod == "" {
		form.PaymentMethod = DefaultPaymentMethod
	}

	form.Amenities = append([]string(nil), form.Amenities...)
	s.form = form

	return nil
}

func (s *Session) BeginQuote(stay booking.Stay, force bool) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !stay.Equal(s.stay) {
		return 0, false
	}

	if !force && s.quoteIssued && s.quoteStay.Equal(stay) {
		return 0, false
	}

	s.quoteSeq++
	s.quoteStay = stay
	s.quoteIssued = true
	s.quoteLoading = true

	return s.quoteSeq, true
}

func (s *Session) CompleteQuote(seq uint64, q *booking.Quote) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.quoteSeq {
		return false
	}

	s.quote = q
	s.quoteErr = ""
	s.quoteLoading = false

	return true
}

func (s *Session) FailQuote(seq uint64, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.quoteSeq {
		return false
	}

	s.quote = nil
	s.coupon = nil
	s.quoteErr = msg
	s.quoteLoading = false

	return true
}

// ApplyCoupon leaves the active coupon untouched when the code is rejected.
func (s *Session) ApplyCoupon(raw string, table couponTable) (*coupon.Applied, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.couponInput = raw

	applied, err := table.Apply(raw, s.quote)
	if err != nil {
		return nil, err
	}

	s.coupon = applied

	return applied, nil
}

func (s *Session) RemoveCoupon() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.coupon = nil
	s.couponInput = ""
}

func (s *Session) Breakdown() booking.PricingBreakdown {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.breakdown()
}

func (s *Session) breakdown() booking.PricingBreakdown {
	if s.quote == nil {
		return booking.NewPricingBreakdown(nil, decimal.Zero)
	}

	return booking.NewPricingBreakdown(s.quote, s.coupon.Discount(s.quote.Subtotal()))
}

// PendingPayment returns the widget request the browser has to open.
func (s *Session) PendingPayment() (payment.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingPayment || s.pending == nil {
		return payment.Request{}, false
	}

	return *s.pending, true
}

// ClaimPayment lets exactly one widget outcome through per order.
func (s *Session) ClaimPayment(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingPayment || s.pending == nil || s.pending.OrderID != orderID || s.claimed {
		return false
	}

	s.claimed = true

	return true
}

func (s *Session) startSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitting {
		return ErrSubmitInProgress
	}

	if s.state == StateConfirmed {
		return ErrAlreadyConfirmed
	}

	// Every submit re-enters at Idle and forgets the previous failure.
	s.state = StateIdle
	s.failure = nil
	s.pending = nil
	s.claimed = false
	s.submitting = true

	return nil
}

func (s *Session) moveTo(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.moveToLocked(to)
}

func (s *Session) moveToLocked(to State) error {
	if err := s.state.canMoveTo(to); err != nil {
		return err
	}

	s.state = to

	return nil
}

func (s *Session) fail(kind FailureKind, msg string) *Failure {
	s.mu.Lock()
	defer s.mu.Unlock()

	failure := &Failure{Kind: kind, Message: msg}

	if err := s.moveToLocked(StateFailed); err != nil {
		return failure
	}

	s.failure = failure
	s.submitting = false
	s.pending = nil

	return failure
}

func (s *Session) awaitPayment(req payment.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.moveToLocked(StateAwaitingPayment); err != nil {
		return err
	}

	s.pending = &req
	s.claimed = false

	return nil
}

func (s *Session) verifying() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.moveToLocked(StateVerifying); err != nil {
		return err
	}

	s.pending = nil

	return nil
}

func (s *Session) confirm(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.moveToLocked(StateConfirmed); err != nil {
		return err
	}

	s.bookingRef = ref
	s.submitting = false

	return nil
}

// bookingRequest validates the session and freezes it into the payload of
// one checkout run. A non-empty message is the validation failure.
func (s *Session) bookingRequest() (*booking.BookingRequest, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg := s.validateLocked(); msg != "" {
		return nil, msg
	}

	req := &booking.BookingRequest{
		UnitID:        s.stay.UnitID,
		CheckIn:       booking.FormatDate(s.stay.CheckIn),
		CheckOut:      booking.FormatDate(s.stay.CheckOut),
		Guests:        s.stay.Guests,
		GuestInfo:     s.form.Guest.Normalize(),
		Pricing:       s.breakdown(),
		PaymentMethod: s.form.PaymentMethod,
		Amenities:     append([]string{}, s.form.Amenities...),
	}

	if s.coupon != nil {
		req.CouponCode = s.coupon.Code
	}

	return req, ""
}

func (s *Session) validateLocked() string {
	switch {
	case s.stay.CheckIn.IsZero() || s.stay.CheckOut.IsZero():
		return msgDatesMissing
	case !s.stay.CheckOut.After(s.stay.CheckIn):
		return msgDateOrder
	case s.stay.Guests.Total() <= 0:
		return msgNoGuests
	}

	if inputErr := booking.IsInputError(s.form.Guest.Validate()); inputErr != nil {
		_, msg := inputErr.First()

		return msg
	}

	if !s.form.TermsAccepted {
		return msgTerms
	}

	if s.quoteLoading || (s.quote != nil && !s.quoteStay.Equal(s.stay)) {
		return msgQuotePending
	}

	if s.quote != nil && !s.quote.Available {
		return msgUnavailable
	}

	if !s.breakdown().Total.IsPositive() {
		return msgZeroTotal
	}

	return ""
}

// View is the JSON shape of a session handed to the browser.
type View struct {
	ID               string                   `json:"id"`
	UnitID           string                   `json:"unitId"`
	CheckIn          string                   `json:"checkIn"`
	CheckOut         string                   `json:"checkOut"`
	Guests           booking.GuestCounts      `json:"guests"`
	Quote            *booking.Quote           `json:"quote"`
	QuoteLoading     bool                     `json:"quoteLoading"`
	QuoteError       string                   `json:"quoteError,omitempty"`
	Coupon           *coupon.Applied          `json:"coupon,omitempty"`
	CouponInput      string                   `json:"couponInput,omitempty"`
	Pricing          booking.PricingBreakdown `json:"pricing"`
	DisplaySubtotal  string                   `json:"displaySubtotal"`
	DisplayDiscount  string                   `json:"displayDiscount"`
	DisplayTotal     string                   `json:"displayTotal"`
	Form             GuestForm                `json:"form"`
	State            State                    `json:"state"`
	Submitting       bool                     `json:"submitting"`
	BookingError     string                   `json:"bookingError,omitempty"`
	FailureKind      FailureKind              `json:"failureKind,omitempty"`
	Payment          *payment.Request         `json:"payment,omitempty"`
	BookingReference string                   `json:"bookingReference,omitempty"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	pricing := s.breakdown()

	v := View{
		ID:               s.id,
		UnitID:           s.stay.UnitID,
		CheckIn:          booking.FormatDate(s.stay.CheckIn),
		CheckOut:         booking.FormatDate(s.stay.CheckOut),
		Guests:           s.stay.Guests,
		QuoteLoading:     s.quoteLoading,
		QuoteError:       s.quoteErr,
		CouponInput:      s.couponInput,
		Pricing:          pricing,
		DisplaySubtotal:  booking.FormatAmount(pricing.Subtotal, pricing.Currency),
		DisplayDiscount:  booking.FormatAmount(pricing.CouponDiscount, pricing.Currency),
		DisplayTotal:     booking.FormatAmount(pricing.Total, pricing.Currency),
		Form:             s.form,
		State:            s.state,
		Submitting:       s.submitting,
		BookingReference: s.bookingRef,
	}

	if s.quote != nil {
		q := *s.quote
		v.Quote = &q
	}

	if s.coupon != nil {
		c := *s.coupon
		v.Coupon = &c
	}

	if s.failure != nil {
		v.BookingError = s.failure.Message
		v.FailureKind = s.failure.Kind
	}

	if s.pending != nil && s.state == StateAwaitingPayment {
		p := *s.pending
		v.Payment = &p
	}

	return v
}
