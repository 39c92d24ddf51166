package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/avstrong/staycheckout/internal/backend"
	"github.com/avstrong/staycheckout/internal/booking"
	"github.com/avstrong/staycheckout/internal/checkout"
	"github.com/avstrong/staycheckout/internal/coupon"
	"github.com/avstrong/staycheckout/internal/payment"
)

const maxRequestBytes = 64 << 10

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type stayInput struct {
	UnitID   string `json:"unitId"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
	Adults   int    `json:"adults"`
	Children int    `json:"children"`
}

type couponInput struct {
	Code string `json:"code"`
}

// paymentInput is what the browser reports after the widget closes: the
// provider proof, a dismissal, or a provider error.
type paymentInput struct {
	booking.PaymentProof
	Dismissed bool `json:"dismissed"`
	Error     *struct {
		Description string `json:"description"`
	} `json:"error"`
}

func (in stayInput) stay() (booking.Stay, error) {
	checkIn, err := booking.ParseDate(in.CheckIn)
	if err != nil {
		return booking.Stay{}, err
	}

	checkOut, err := booking.ParseDate(in.CheckOut)
	if err != nil {
		return booking.Stay{}, err
	}

	return booking.Stay{
		UnitID:   strings.TrimSpace(in.UnitID),
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Guests:   booking.GuestCounts{Adults: in.Adults, Children: in.Children},
	}, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response{Success: true, Data: data}); err != nil {
		s.l.LogErrorf("Could not encode response: %v", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response{Success: false, Message: msg}); err != nil {
		s.l.LogErrorf("Could not encode error response: %v", err.Error())
	}
}

// writeBackendError keeps the backend's 4xx status and hides everything else
// behind a 502.
func (s *Server) writeBackendError(w http.ResponseWriter, op string, err error) {
	s.l.LogErrorf("Could not %s: %v", op, err.Error())

	status := http.StatusBadGateway
	if remoteErr := backend.IsRemoteError(err); remoteErr != nil && remoteErr.Status >= 400 && remoteErr.Status < 500 {
		status = remoteErr.Status
	}

	s.writeError(w, status, backend.Describe(err))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "Request body is not valid JSON.")

		return false
	}

	return true
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *checkout.Session {
	sess, err := s.deps.Sessions.GetSession(r.Context(), r.PathValue("id"))
	if errors.Is(err, booking.ErrRecordNotFound) {
		s.writeError(w, http.StatusNotFound, "Checkout session not found or expired.")

		return nil
	}

	if err != nil {
		s.l.LogErrorf("Could not load session %s: %v", r.PathValue("id"), err.Error())
		s.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))

		return nil
	}

	return sess
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrSubmitInProgress):
		s.writeError(w, http.StatusConflict, "Your booking is being processed. Please wait.")
	case errors.Is(err, checkout.ErrAlreadyConfirmed):
		s.writeError(w, http.StatusConflict, "This booking is already confirmed.")
	default:
		s.l.LogErrorf("Could not update session: %v", err.Error())
		s.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func (s *Server) fetchQuote(sess *checkout.Session, stay booking.Stay, force bool) {
	s.goBackground("quote", func(ctx context.Context) {
		if force {
			s.deps.Quotes.Refresh(ctx, sess, stay)

			return
		}

		s.deps.Quotes.Fetch(ctx, sess, stay)
	})
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var in stayInput
	if !s.decode(w, r, &in) {
		return
	}

	stay, err := in.stay()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Dates must use the YYYY-MM-DD format.")

		return
	}

	if stay.UnitID == "" {
		s.writeError(w, http.StatusBadRequest, "A unit must be selected.")

		return
	}

	id, err := s.deps.SessionIDs.GetID(r.Context())
	if err != nil {
		s.l.LogErrorf("Could not issue session id: %v", fmt.Errorf("%w: %w", booking.ErrNextID, err))
		s.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))

		return
	}

	sess := checkout.NewSession(id, stay)

	if err := s.deps.Sessions.SaveSession(r.Context(), sess); err != nil {
		s.l.LogErrorf("Could not save session %s: %v", id, err.Error())
		s.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))

		return
	}

	s.fetchQuote(sess, stay, false)
	s.writeJSON(w, http.StatusCreated, sess.View())
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	if sess := s.session(w, r); sess != nil {
		s.writeJSON(w, http.StatusOK, sess.View())
	}
}

func (s *Server) putStayHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var in stayInput
	if !s.decode(w, r, &in) {
		return
	}

	if in.UnitID == "" {
		in.UnitID = sess.Stay().UnitID
	}

	stay, err := in.stay()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Dates must use the YYYY-MM-DD format.")

		return
	}

	if err := sess.SetStay(stay); err != nil {
		s.writeSessionError(w, err)

		return
	}

	s.fetchQuote(sess, stay, false)
	s.writeJSON(w, http.StatusAccepted, sess.View())
}

func (s *Server) refreshQuoteHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	s.fetchQuote(sess, sess.Stay(), true)
	s.writeJSON(w, http.StatusAccepted, sess.View())
}

func (s *Server) applyCouponHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var in couponInput
	if !s.decode(w, r, &in) {
		return
	}

	_, err := sess.ApplyCoupon(in.Code, s.deps.Coupons)
	if errors.Is(err, coupon.ErrUnknownCode) || errors.Is(err, coupon.ErrNoActiveQuote) {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())

		return
	}

	if err != nil {
		s.l.LogErrorf("Could not apply coupon: %v", err.Error())
		s.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))

		return
	}

	s.writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) removeCouponHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	sess.RemoveCoupon()
	s.writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) putGuestHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var form checkout.GuestForm
	if !s.decode(w, r, &form) {
		return
	}

	if err := sess.SetGuestForm(form); err != nil {
		s.writeSessionError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, sess.View())
}

// submitHandler validates synchronously and leaves the remote steps running
// after the response; the browser follows them through the session view.
func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	req, err := s.deps.Checkout.Prepare(sess)
	if failure := checkout.IsFailure(err); failure != nil {
		s.writeError(w, http.StatusUnprocessableEntity, failure.Message)

		return
	}

	if err != nil {
		s.writeSessionError(w, err)

		return
	}

	s.goBackground("checkout", func(ctx context.Context) {
		_ = s.deps.Checkout.Complete(ctx, sess, req)
	})

	s.writeJSON(w, http.StatusAccepted, sess.View())
}

func (s *Server) paymentHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var in paymentInput
	if !s.decode(w, r, &in) {
		return
	}

	pending, ok := sess.PendingPayment()
	if !ok {
		s.writeError(w, http.StatusConflict, "No payment is pending for this checkout.")

		return
	}

	if in.OrderID != "" && in.OrderID != pending.OrderID {
		s.writeError(w, http.StatusBadRequest, "Payment does not belong to this checkout.")

		return
	}

	var res payment.Result

	switch {
	case in.Dismissed:
		res = payment.Dismissed()
	case in.Error != nil:
		res = payment.Failure(in.Error.Description)
	case in.PaymentID != "" && in.Signature != "":
		res = payment.Success(in.PaymentProof)
	default:
		s.writeError(w, http.StatusBadRequest, "Payment result is incomplete.")

		return
	}

	if !sess.ClaimPayment(pending.OrderID) {
		s.writeError(w, http.StatusConflict, "Payment result was already received.")

		return
	}

	if err := s.deps.Payments.Resolve(pending.OrderID, res); err != nil {
		s.l.LogErrorf("Could not resolve payment for order %s: %v", pending.OrderID, err.Error())
		s.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))

		return
	}

	s.writeJSON(w, http.StatusAccepted, sess.View())
}

func (s *Server) getUnitHandler(w http.ResponseWriter, r *http.Request) {
	unit, err := s.deps.Bookings.GetUnit(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeBackendError(w, "get unit", err)

		return
	}

	s.writeJSON(w, http.StatusOK, unit)
}

func (s *Server) getBookingHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Bookings.BookingByReference(r.Context(), r.PathValue("ref"))
	if err != nil {
		s.writeBackendError(w, "get booking", err)

		return
	}

	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) listBookingsHandler(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		s.writeError(w, http.StatusBadRequest, "Please enter your email address.")

		return
	}

	bookings, err := s.deps.Bookings.BookingsByEmail(r.Context(), email)
	if err != nil {
		s.writeBackendError(w, "list bookings", err)

		return
	}

	if bookings == nil {
		bookings = []booking.Booking{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *Server) cancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Bookings.CancelBooking(r.Context(), r.PathValue("ref"))
	if err != nil {
		s.writeBackendError(w, "cancel booking", err)

		return
	}

	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handle(r *http.ServeMux, pattern string, h http.HandlerFunc, limited bool) {
	middlewares := []func(http.Handler) http.Handler{s.recoverMiddleware()}
	if limited {
		middlewares = append(middlewares, s.rateLimitMiddleware())
	}

	middlewares = append(middlewares, s.loggerMiddleware())

	r.Handle(pattern, s.applyMiddlewares(h, middlewares...))
}

func (s *Server) addRoutes(r *http.ServeMux) {
	const sessions = "/api/checkout/v1/sessions"

	s.handle(r, "POST "+sessions, s.createSessionHandler, true)
	s.handle(r, "GET "+sessions+"/{id}", s.getSessionHandler, false)
	s.handle(r, "PUT "+sessions+"/{id}/stay", s.putStayHandler, true)
	s.handle(r, "POST "+sessions+"/{id}/quote", s.refreshQuoteHandler, true)
	s.handle(r, "POST "+sessions+"/{id}/coupon", s.applyCouponHandler, true)
	s.handle(r, "DELETE "+sessions+"/{id}/coupon", s.removeCouponHandler, false)
	s.handle(r, "PUT "+sessions+"/{id}/guest", s.putGuestHandler, true)
	s.handle(r, "POST "+sessions+"/{id}/submit", s.submitHandler, true)
	s.handle(r, "POST "+sessions+"/{id}/payment", s.paymentHandler, false)

	s.handle(r, "GET /api/units/v1/{id}", s.getUnitHandler, true)
	s.handle(r, "GET /api/bookings/v1/{ref}", s.getBookingHandler, true)
	s.handle(r, "GET /api/bookings/v1", s.listBookingsHandler, true)
	s.handle(r, "POST /api/bookings/v1/{ref}/cancel", s.cancelBookingHandler, true)

	s.handle(r, fmt.Sprintf("GET %s", s.conf.LivenessEndpoint), s.livenessHandler, false)
}
