package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/avstrong/staycheckout/internal/backend"
	"github.com/avstrong/staycheckout/internal/checkout"
	"github.com/avstrong/staycheckout/internal/config"
	"github.com/avstrong/staycheckout/internal/coupon"
	"github.com/avstrong/staycheckout/internal/idgen/random"
	"github.com/avstrong/staycheckout/internal/logger"
	"github.com/avstrong/staycheckout/internal/payment"
	"github.com/avstrong/staycheckout/internal/quote"
	"github.com/avstrong/staycheckout/internal/storage/memory"
	"github.com/avstrong/staycheckout/internal/transport/web"
)

const (
	shutdownTimeout = 4 * time.Second
	breakerTimeout  = 30 * time.Second
	sweepInterval   = time.Minute
)

func loadCoupons(l *logger.Logger, path string) (*coupon.Table, error) {
	if path == "" {
		return coupon.DefaultTable(), nil
	}

	table, err := coupon.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load coupons from %s: %w", path, err)
	}

	l.LogInfo("Loaded %d coupons from %s", table.Len(), path)

	return table, nil
}

//nolint:funlen // wiring
func Run(l *logger.Logger, conf *config.Config) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	coupons, err := loadCoupons(l, conf.CouponsFile)
	if err != nil {
		return err
	}

	client, err := backend.New(backend.Conf{
		L:              l.With("component", "backend"),
		BaseURL:        conf.BackendURL,
		BreakerTimeout: breakerTimeout,
	})
	if err != nil {
		return fmt.Errorf("init backend client: %w", err)
	}

	storage := memory.New(memory.Config{L: l, TTL: conf.SessionTTL})
	go storage.RunSweeper(ctx, sweepInterval)

	relay := payment.NewRelay()
	ids := random.New()

	orchestrator, err := checkout.New(checkout.Conf{
		L:              l.With("component", "checkout"),
		Orders:         client,
		Verifier:       client,
		Widget:         relay,
		Keys:           ids,
		PaymentKey:     conf.PaymentKey,
		ThemeColor:     conf.ThemeColor,
		BrandName:      conf.BrandName,
		StepTimeout:    conf.BackendTimeout,
		PaymentTimeout: conf.PaymentTimeout,
	})
	if err != nil {
		return fmt.Errorf("init checkout: %w", err)
	}

	fetcher := quote.New(quote.Conf{
		L:       l.With("component", "quote"),
		Quoter:  client,
		Timeout: conf.BackendTimeout,
	})

	webConf := web.Conf{
		L:                 l,
		ServerLogger:      l.StdLogger(),
		Host:              conf.Host,
		Port:              conf.Port,
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		LivenessEndpoint:  conf.LivenessEndpoint,
		AllowedOrigins:    conf.AllowedOrigins,
		RateLimitRPS:      conf.RateLimitRPS,
		RateLimitBurst:    conf.RateLimitBurst,
	}

	srv, err := web.New(ctx, webConf, web.Deps{
		Sessions:   storage,
		SessionIDs: ids,
		Quotes:     fetcher,
		Checkout:   orchestrator,
		Payments:   relay,
		Coupons:    coupons,
		Bookings:   client,
	})
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	//nolint:contextcheck
	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Srv().Shutdown(ctx); err != nil {
			l.LogErrorf("Failed to stop http server: %v", err.Error())
		}
	}()

	l.LogInfo("Application is running on %v:%v...", webConf.Host, webConf.Port)

	if err := srv.Srv().ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		l.LogErrorf("Failed to run http server: %v", err.Error())

		cancel()
	}

	// Checkout runs end once ctx is done; let them record their outcome.
	srv.Wait()

	l.LogInfo("Application stopped gracefully")

	return nil
}
