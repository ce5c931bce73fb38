// Package httpclient builds the HTTP transport used for license service calls.
package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/MacJediWizard/licenseclient/internal/config"
	"golang.org/x/time/rate"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// Options configures the HTTP client.
type Options struct {
	// Timeout bounds every request, including token acquisition (default: 30s).
	Timeout time.Duration
	// Proxy contains optional proxy settings.
	Proxy *config.ProxyConfig
	// RequestsPerSecond limits outbound requests; 0 disables the limiter.
	RequestsPerSecond float64
	// Burst is the limiter burst size (default: 1).
	Burst int
	// Transport overrides the base round tripper, mainly for tests.
	Transport http.RoundTripper
}

// New creates an HTTP client with optional proxy support and rate limiting.
func New(opts Options) (*http.Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	base := opts.Transport
	if base == nil {
		transport := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}

		if opts.Proxy.HasProxy() {
			if err := configureProxy(transport, opts.Proxy); err != nil {
				return nil, fmt.Errorf("configure proxy: %w", err)
			}
		}
		base = transport
	}

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		base = &limitedTransport{
			next:    base,
			limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
		}
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: base,
	}, nil
}

// NewFromConfig creates an HTTP client from the client configuration.
func NewFromConfig(cfg *config.ClientConfig) (*http.Client, error) {
	return New(Options{
		Timeout:           cfg.HTTP.Timeout,
		Proxy:             &cfg.HTTP.Proxy,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.Burst,
	})
}

// limitedTransport waits for a limiter token before each request.
type limitedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return t.next.RoundTrip(req)
}
