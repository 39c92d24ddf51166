package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/avstrong/staycheckout/internal/backend"
	"github.com/avstrong/staycheckout/internal/booking"
	"github.com/avstrong/staycheckout/internal/logger"
	"github.com/avstrong/staycheckout/internal/payment"
)

const (
	msgDatesMissing = "Please select check-in and check-out dates."
	msgDateOrder    = "Check-out date must be after check-in date."
	msgNoGuests     = "Please select at least one guest."
	msgTerms        = "Please accept the terms and conditions to continue."
	msgQuotePending = "We are still calculating your price. Please wait a moment."
	msgUnavailable  = "This unit is not available for the selected dates."
	msgZeroTotal    = "Unable to calculate a total for this stay. Please review your dates."

	msgOrderPrefix     = "Unable to create payment order: "
	msgOrderTimeout    = "Creating the payment order took too long. Please try again."
	msgCancelled       = "Payment was cancelled. You can try again."
	msgPaymentPrefix   = "Payment failed: "
	msgPaymentDeclined = "the payment provider declined the payment."
	msgPaymentTimeout  = "Payment was not completed in time. You can try again."
	msgPaymentStart    = "Payment could not be started. Please try again."
	msgVerification    = "Payment received but booking confirmation failed. Please contact support."
	msgVerifyTimeout   = "Payment received but booking confirmation timed out. Please contact support."
)

var ErrConfig = errors.New("checkout is not configured")

type orderCreator interface {
	CreateOrder(ctx context.Context, req booking.BookingRequest) (*booking.Order, error)
}

type paymentVerifier interface {
	VerifyPayment(ctx context.Context, proof booking.PaymentProof, req booking.BookingRequest) (*booking.Booking, error)
}

type keyGenerator interface {
	GetID(ctx context.Context) (string, error)
}

type discarder interface {
	Discard(orderID string)
}

type Conf struct {
	L        *logger.Logger
	Orders   orderCreator
	Verifier paymentVerifier
	Widget   payment.Widget
	// Keys issues one idempotency key per checkout run.
	Keys           keyGenerator
	PaymentKey     string
	ThemeColor     string
	BrandName      string
	StepTimeout    time.Duration
	PaymentTimeout time.Duration
}

// Orchestrator drives a session from submit to a confirmed booking or a
// single failure. It never retries.
type Orchestrator struct {
	l        *logger.Logger
	orders   orderCreator
	verifier paymentVerifier
	widget   payment.Widget
	keys     keyGenerator
	conf     Conf
	tracer   trace.Tracer
}

func New(conf Conf) (*Orchestrator, error) {
	if conf.PaymentKey == "" {
		return nil, fmt.Errorf("payment key: %w", ErrConfig)
	}

	if conf.Orders == nil || conf.Verifier == nil || conf.Widget == nil || conf.Keys == nil {
		return nil, fmt.Errorf("backend, widget and key generator are required: %w", ErrConfig)
	}

	return &Orchestrator{
		l:        conf.L,
		orders:   conf.Orders,
		verifier: conf.Verifier,
		widget:   conf.Widget,
		keys:     conf.Keys,
		conf:     conf,
		tracer:   otel.Tracer("github.com/avstrong/staycheckout/internal/checkout"),
	}, nil
}

// Submit runs Prepare and Complete in one go.
func (o *Orchestrator) Submit(ctx context.Context, s *Session) error {
	req, err := o.Prepare(s)
	if err != nil {
		return err
	}

	return o.Complete(ctx, s, req)
}

// Prepare is the local part of a checkout: it moves the session through
// Validating and returns the frozen booking request. No remote call is made.
// The returned error is ErrSubmitInProgress, ErrAlreadyConfirmed or a
// validation *Failure.
func (o *Orchestrator) Prepare(s *Session) (*booking.BookingRequest, error) {
	if err := s.startSubmit(); err != nil {
		return nil, err
	}

	if err := s.moveTo(StateValidating); err != nil {
		return nil, s.fail(FailureValidation, err.Error())
	}

	req, msg := s.bookingRequest()
	if msg != "" {
		return nil, s.fail(FailureValidation, msg)
	}

	return req, nil
}

// Complete runs the remote steps for a prepared request strictly in order:
// create order, payment widget, verification. It returns nil once the session
// is confirmed, a *Failure otherwise.
//
//nolint:funlen,cyclop // linear state machine
func (o *Orchestrator) Complete(ctx context.Context, s *Session, req *booking.BookingRequest) error {
	ctx, span := o.tracer.Start(ctx, "checkout.complete", trace.WithAttributes(
		attribute.String("checkout.session", s.ID()),
		attribute.String("checkout.unit", req.UnitID),
	))
	defer span.End()

	failed := func(kind FailureKind, msg string, cause error) error {
		span.SetStatus(codes.Error, string(kind))

		if cause != nil {
			span.RecordError(cause)
		}

		return s.fail(kind, msg)
	}

	key, err := o.keys.GetID(ctx)
	if err != nil {
		o.l.LogErrorf("Could not issue idempotency key for session %s: %v", s.ID(), err.Error())

		return failed(FailureOrder, msgOrderPrefix+"please try again.", fmt.Errorf("%w: %w", booking.ErrNextID, err))
	}

	ctx = booking.NewContextWithIdempotencyKey(ctx, key)

	if err := s.moveTo(StateCreatingOrder); err != nil {
		return failed(FailureOrder, msgOrderPrefix+"please try again.", err)
	}

	order, err := o.createOrder(ctx, req)
	if err != nil {
		o.l.LogErrorf("Could not create payment order for session %s: %v", s.ID(), err.Error())

		if errors.Is(err, context.DeadlineExceeded) {
			return failed(FailureTimeout, msgOrderTimeout, err)
		}

		return failed(FailureOrder, msgOrderPrefix+backend.Describe(err), err)
	}

	widgetReq := o.widgetRequest(order, req)

	if err := s.awaitPayment(widgetReq); err != nil {
		return failed(FailureOrder, msgOrderPrefix+"please try again.", err)
	}

	res, err := o.pay(ctx, widgetReq)
	if err != nil {
		o.l.LogInfo("Payment widget for order %s ended without outcome: %v", order.OrderID, err.Error())

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return failed(FailureTimeout, msgPaymentTimeout, err)
		case errors.Is(err, context.Canceled):
			return failed(FailureCancelled, msgCancelled, err)
		default:
			return failed(FailurePaymentRejected, msgPaymentStart, err)
		}
	}

	switch res.Outcome {
	case payment.Succeeded:
	case payment.Cancelled:
		o.l.LogInfo("Payment for order %s was dismissed", order.OrderID)

		return failed(FailureCancelled, msgCancelled, nil)
	default:
		reason := res.Reason
		if reason == "" {
			reason = msgPaymentDeclined
		}

		o.l.LogInfo("Payment for order %s failed: %s", order.OrderID, reason)

		return failed(FailurePaymentRejected, msgPaymentPrefix+reason, nil)
	}

	if err := s.verifying(); err != nil {
		return failed(FailureVerification, msgVerification, err)
	}

	created, err := o.verify(ctx, res.Proof, req)
	if err != nil {
		// Money may have moved without a booking; the ids are for reconciliation.
		o.l.LogErrorf(
			"Could not verify payment %s of order %s for session %s: %v",
			res.Proof.PaymentID, res.Proof.OrderID, s.ID(), err.Error(),
		)

		if errors.Is(err, context.DeadlineExceeded) {
			return failed(FailureTimeout, msgVerifyTimeout, err)
		}

		return failed(FailureVerification, msgVerification, err)
	}

	if err := s.confirm(created.Reference); err != nil {
		return failed(FailureVerification, msgVerification, err)
	}

	span.SetAttributes(attribute.String("checkout.booking", created.Reference))
	o.l.LogInfo("Session %s confirmed booking %s", s.ID(), created.Reference)

	return nil
}

func (o *Orchestrator) step(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

func (o *Orchestrator) createOrder(ctx context.Context, req *booking.BookingRequest) (*booking.Order, error) {
	ctx, cancel := o.step(ctx, o.conf.StepTimeout)
	defer cancel()

	return o.orders.CreateOrder(ctx, *req)
}

func (o *Orchestrator) pay(ctx context.Context, req payment.Request) (payment.Result, error) {
	ctx, span := o.tracer.Start(ctx, "checkout.payment", trace.WithAttributes(attribute.String("payment.order", req.OrderID)))
	defer span.End()

	ctx, cancel := o.step(ctx, o.conf.PaymentTimeout)
	defer cancel()

	res, err := o.widget.Pay(ctx, req)
	if err != nil {
		// An outcome posted while the wait was giving up must not linger.
		if d, ok := o.widget.(discarder); ok {
			d.Discard(req.OrderID)
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return payment.Result{}, err
	}

	span.SetAttributes(attribute.String("payment.outcome", string(res.Outcome)))

	return res, nil
}

func (o *Orchestrator) verify(
	ctx context.Context,
	proof booking.PaymentProof,
	req *booking.BookingRequest,
) (*booking.Booking, error) {
	ctx, cancel := o.step(ctx, o.conf.StepTimeout)
	defer cancel()

	return o.verifier.VerifyPayment(ctx, proof, *req)
}

func (o *Orchestrator) widgetRequest(order *booking.Order, req *booking.BookingRequest) payment.Request {
	amount := order.Amount
	if amount.IsZero() {
		amount = req.Pricing.Total
	}

	currency := order.Currency
	if currency == "" {
		currency = req.Pricing.Currency
	}

	notes := map[string]string{
		"unitId":   req.UnitID,
		"checkIn":  req.CheckIn,
		"checkOut": req.CheckOut,
	}

	if o.conf.BrandName != "" {
		notes["merchant"] = o.conf.BrandName
	}

	if req.CouponCode != "" {
		notes["couponCode"] = req.CouponCode
	}

	return payment.Request{
		Key:         o.conf.PaymentKey,
		Amount:      amount,
		Currency:    currency,
		OrderID:     order.OrderID,
		AmountMinor: payment.MinorUnits(amount),
		Prefill: payment.Prefill{
			Name:    req.GuestInfo.FullName(),
			Email:   req.GuestInfo.Email,
			Contact: req.GuestInfo.Phone,
		},
		Notes:      notes,
		ThemeColor: o.conf.ThemeColor,
	}
}
