package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCrawlErrorRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *CrawlError
		want bool
	}{
		{name: "network is retryable", err: NewError(ErrKindNetwork, nil), want: true},
		{name: "timeout is retryable", err: NewError(ErrKindTimeout, nil), want: true},
		{name: "proxy is retryable", err: NewError(ErrKindProxy, nil), want: true},
		{name: "dns is retryable", err: NewError(ErrKindDNS, nil), want: true},
		{name: "http 500 is retryable", err: NewHTTPError(500), want: true},
		{name: "http 503 is retryable", err: NewHTTPError(503), want: true},
		{name: "http 404 is not retryable", err: NewHTTPError(404), want: false},
		{name: "http 403 is not retryable", err: NewHTTPError(403), want: false},
		{name: "configuration is not retryable", err: NewError(ErrKindConfiguration, nil), want: false},
		{name: "exhausted retries is not retryable", err: NewRetryExhaustedError(3), want: false},
		{name: "rate limited is retryable", err: NewRateLimitError("example.com", 0), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCrawlErrorMessages(t *testing.T) {
	t.Parallel()

	httpErr := NewHTTPError(502)
	if !strings.Contains(httpErr.Error(), "502") {
		t.Errorf("expected status code in message, got %q", httpErr.Error())
	}

	rateErr := NewRateLimitError("example.com", time.Second)
	if rateErr.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want %v", rateErr.RetryAfter, time.Second)
	}
	if !strings.Contains(rateErr.Error(), "example.com") {
		t.Errorf("expected domain in message, got %q", rateErr.Error())
	}

	deadErr := NewRetryExhaustedError(5)
	if !strings.Contains(deadErr.Error(), "5") {
		t.Errorf("expected attempt count in message, got %q", deadErr.Error())
	}
}

func TestCrawlErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewError(ErrKindNetwork, cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestCrawlErrorProxyAttributable(t *testing.T) {
	t.Parallel()

	if !NewError(ErrKindProxy, nil).ProxyAttributable() {
		t.Error("proxy errors must count against proxy health")
	}
	if NewError(ErrKindNetwork, nil).ProxyAttributable() {
		t.Error("network errors must not count against proxy health")
	}
}
