package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	"github.com/avstrong/staycheckout/internal/booking"
	"github.com/avstrong/staycheckout/internal/checkout"
	"github.com/avstrong/staycheckout/internal/coupon"
	"github.com/avstrong/staycheckout/internal/logger"
	"github.com/avstrong/staycheckout/internal/payment"
	"github.com/avstrong/staycheckout/internal/quote"
)

var ErrMissingDependency = errors.New("web server dependency is missing")

type sessionStore interface {
	SaveSession(ctx context.Context, s *checkout.Session) error
	GetSession(ctx context.Context, id string) (*checkout.Session, error)
}

type idGenerator interface {
	GetID(ctx context.Context) (string, error)
}

type quoteFetcher interface {
	Fetch(ctx context.Context, t quote.Target, stay booking.Stay) quote.Status
	Refresh(ctx context.Context, t quote.Target, stay booking.Stay) quote.Status
}

type checkoutRunner interface {
	Prepare(s *checkout.Session) (*booking.BookingRequest, error)
	Complete(ctx context.Context, s *checkout.Session, req *booking.BookingRequest) error
}

type paymentResolver interface {
	Resolve(orderID string, res payment.Result) error
}

type couponTable interface {
	Apply(rawCode string, q *booking.Quote) (*coupon.Applied, error)
}

type bookingsAPI interface {
	GetUnit(ctx context.Context, unitID string) (*booking.Unit, error)
	BookingByReference(ctx context.Context, ref string) (*booking.Booking, error)
	BookingsByEmail(ctx context.Context, email string) ([]booking.Booking, error)
	CancelBooking(ctx context.Context, ref string) (*booking.Booking, error)
}

type Deps struct {
	Sessions   sessionStore
	SessionIDs idGenerator
	Quotes     quoteFetcher
	Checkout   checkoutRunner
	Payments   paymentResolver
	Coupons    couponTable
	Bookings   bookingsAPI
}

type Server struct {
	srv     *http.Server
	router  *http.ServeMux
	l       *logger.Logger
	conf    Conf
	deps    Deps
	limiter *visitorLimiter
	// ctx outlives single requests; quote fetches and checkout runs use it.
	ctx context.Context
	wg  sync.WaitGroup
}

type Conf struct {
	L                 *logger.Logger
	ServerLogger      *log.Logger
	Host              string
	Port              string
	ReadHeaderTimeout time.Duration
	LivenessEndpoint  string
	AllowedOrigins    []string
	RateLimitRPS      float64
	RateLimitBurst    int
}

func New(ctx context.Context, conf Conf, deps Deps) (*Server, error) {
	if deps.Sessions == nil || deps.SessionIDs == nil || deps.Quotes == nil || deps.Checkout == nil ||
		deps.Payments == nil || deps.Coupons == nil || deps.Bookings == nil {
		return nil, ErrMissingDependency
	}

	if conf.LivenessEndpoint == "" {
		conf.LivenessEndpoint = "/liveness"
	}

	mux := http.NewServeMux()

	//nolint:exhaustruct
	handler := cors.New(cors.Options{
		AllowedOrigins: conf.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)

	//nolint:exhaustruct
	srv := &http.Server{
		Addr:              net.JoinHostPort(conf.Host, conf.Port),
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		ErrorLog:          conf.ServerLogger,
		Handler:           handler,
		BaseContext: func(listener net.Listener) context.Context {
			return ctx
		},
	}

	//nolint:exhaustruct
	server := &Server{
		srv:     srv,
		router:  mux,
		l:       conf.L,
		conf:    conf,
		deps:    deps,
		limiter: newVisitorLimiter(conf.RateLimitRPS, conf.RateLimitBurst),
		ctx:     ctx,
	}

	server.addRoutes(mux)

	return server, nil
}

func (s *Server) Srv() *http.Server {
	return s.srv
}

// Handler is the full handler chain, CORS included.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Wait blocks until background quote fetches and checkout runs have ended.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) goBackground(name string, fn func(ctx context.Context)) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer func() {
			if re := recover(); re != nil {
				s.l.LogErrorf("type: panic, task: %s, error: %v", name, fmt.Errorf("%v: %w", re, ErrPanic))
			}
		}()

		fn(s.ctx)
	}()
}
