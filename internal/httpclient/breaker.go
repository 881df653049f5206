package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	diagramerrors "github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/errors"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/logging"
)

type circuitBreakerRoundTripper struct {
	base    http.RoundTripper
	breaker *diagramerrors.CircuitBreaker
}

// NewWithCircuitBreaker builds an HTTP client guarded by a circuit breaker.
func NewWithCircuitBreaker(timeout time.Duration, logger logging.Logger, name string) *http.Client {
	return NewWithCircuitBreakerConfig(timeout, logger, name, diagramerrors.DefaultCircuitBreakerConfig())
}

// NewWithCircuitBreakerConfig builds an HTTP client guarded by a custom circuit breaker config.
func NewWithCircuitBreakerConfig(timeout time.Duration, logger logging.Logger, name string, config diagramerrors.CircuitBreakerConfig) *http.Client {
	client := New(timeout, logger)
	client.Transport = WrapTransportWithCircuitBreaker(client.Transport, name, config)
	return client
}

// WrapTransportWithCircuitBreaker wraps a transport with circuit breaker protection.
func WrapTransportWithCircuitBreaker(base http.RoundTripper, name string, config diagramerrors.CircuitBreakerConfig) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if name == "" {
		name = "http-client"
	}
	return &circuitBreakerRoundTripper{
		base:    base,
		breaker: diagramerrors.NewCircuitBreaker(name, config),
	}
}

// WrapTransportWithBreaker reuses an existing breaker, letting callers share
// one breaker between a client and their health reporting.
func WrapTransportWithBreaker(base http.RoundTripper, breaker *diagramerrors.CircuitBreaker) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &circuitBreakerRoundTripper{base: base, breaker: breaker}
}

func (t *circuitBreakerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if err := t.breaker.Allow(); err != nil {
		return nil, err
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			t.breaker.Mark(nil)
			return nil, err
		}
		t.breaker.Mark(err)
		return nil, err
	}
	if isBreakerFailureStatus(resp.StatusCode) {
		t.breaker.Mark(fmt.Errorf("http status %d", resp.StatusCode))
	} else {
		t.breaker.Mark(nil)
	}
	return resp, nil
}

func isBreakerFailureStatus(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}
