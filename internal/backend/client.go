package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/avstrong/staycheckout/internal/booking"
	"github.com/avstrong/staycheckout/internal/logger"
)

const maxBodyBytes = 1 << 20

type Conf struct {
	L          *logger.Logger
	BaseURL    string
	HTTPClient *http.Client
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
	// BreakerFailures is the consecutive failure count that opens the breaker.
	BreakerFailures uint32
}

// Client talks to the booking backend. Every response is expected in the
// {success, data, message} envelope.
type Client struct {
	l       *logger.Logger
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	tracer  trace.Tracer
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func New(conf Conf) (*Client, error) {
	if conf.BaseURL == "" {
		return nil, fmt.Errorf("backend base url: %w", ErrConfig)
	}

	if _, err := url.Parse(conf.BaseURL); err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}

	httpClient := conf.HTTPClient
	if httpClient == nil {
		//nolint:exhaustruct
		httpClient = &http.Client{}
	}

	failures := conf.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	c := &Client{
		l:       conf.L,
		baseURL: conf.BaseURL,
		http:    httpClient,
		tracer:  otel.Tracer("github.com/avstrong/staycheckout/internal/backend"),
	}

	//nolint:exhaustruct
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "booking-backend",
		Timeout: conf.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.l.LogInfo("Circuit breaker %s changed from %s to %s", name, from, to)
		},
		IsSuccessful: isBreakerSuccess,
	})

	return c, nil
}

// isBreakerSuccess counts only transport errors and 5xx answers as failures.
func isBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrMalformedResponse) {
		return true
	}

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Status < http.StatusInternalServerError
	}

	return false
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "backend."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(attribute.String("http.method", method), attribute.String("backend.path", path))

	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, op, method, path, query, body, out)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if key, ok := booking.IdempotencyKeyFromContext(ctx); ok && method != http.MethodGet {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	var env envelope

	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}

		return &RemoteError{Op: op, Status: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return fmt.Errorf("%s: decode envelope: %w", op, ErrMalformedResponse)
	}

	if !env.Success {
		return &RemoteError{Op: op, Status: resp.StatusCode, Message: env.Message}
	}

	if out == nil {
		return nil
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%s: empty data: %w", op, ErrMalformedResponse)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %v: %w", op, err, ErrMalformedResponse)
	}

	return nil
}
