// Package licenseapi provides the client for the remote license service.
package licenseapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MacJediWizard/licenseclient/internal/auth"
	"github.com/MacJediWizard/licenseclient/internal/cache"
	"github.com/MacJediWizard/licenseclient/internal/config"
	"github.com/MacJediWizard/licenseclient/internal/httpclient"
	"github.com/MacJediWizard/licenseclient/internal/metrics"
	"github.com/MacJediWizard/licenseclient/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

const (
	licensesEndpoint    = "v1/licenses"
	copyableEndpoint    = "v1/licenses/%s/copyable"
	contentEndpoint     = "v1/site/%s/content"
	contentByIDEndpoint = "v1/site/%s/content-by-id"
	contentItemEndpoint = "v1/site/%s/content/%s"
)

// maxErrorBody bounds how much of a failed response is read for the error message.
const maxErrorBody = 4 << 10

// errServerStatus marks 5xx responses as failures for the circuit breaker.
var errServerStatus = errors.New("server error status")

// Options configures a Client.
type Options struct {
	ServerURL string
	Site      string
	// CacheKey namespaces every cache entry written by this client.
	CacheKey string
	// LicensesTTL and ContentTTL default to the config defaults when zero. A negative
	// value disables caching.
	LicensesTTL time.Duration
	ContentTTL  time.Duration

	HTTPClient *http.Client
	// Tokens supplies bearer tokens. Nil sends requests without credentials.
	Tokens auth.TokenSource
	// Backend stores cached responses. Nil uses a process-local memory backend.
	Backend cache.Backend
	// Breaker configures the circuit breaker. Nil disables it.
	Breaker *config.BreakerConfig

	Logger  zerolog.Logger
	Metrics *metrics.ClientMetrics
}

// Client talks to the license service for a single site. It is safe for concurrent use.
type Client struct {
	baseURL     string
	site        string
	cacheKey    string
	licensesTTL time.Duration
	contentTTL  time.Duration

	httpClient *http.Client
	tokens     auth.TokenSource
	breaker    *gobreaker.CircuitBreaker[*response]

	licenses *cache.Cache[[]models.License]
	content  *cache.Cache[models.Content]

	logger  zerolog.Logger
	metrics *metrics.ClientMetrics
}

// New creates a license service client.
func New(opts Options) (*Client, error) {
	if opts.ServerURL == "" {
		return nil, errors.New("license client: server URL is required")
	}
	if _, err := url.Parse(opts.ServerURL); err != nil {
		return nil, fmt.Errorf("license client: invalid server URL: %w", err)
	}
	if opts.Site == "" {
		return nil, errors.New("license client: site is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = httpclient.New(httpclient.Options{})
		if err != nil {
			return nil, fmt.Errorf("license client: create http client: %w", err)
		}
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = auth.Anonymous{}
	}
	backend := opts.Backend
	if backend == nil {
		backend = cache.NewMemoryBackend()
	}
	cacheKey := opts.CacheKey
	if cacheKey == "" {
		cacheKey = config.DefaultCacheKey
	}
	licensesTTL := opts.LicensesTTL
	if licensesTTL == 0 {
		licensesTTL = config.DefaultLicensesTTL
	}
	contentTTL := opts.ContentTTL
	if contentTTL == 0 {
		contentTTL = config.DefaultContentTTL
	}

	logger := opts.Logger.With().Str("component", "license_client").Str("site", opts.Site).Logger()

	c := &Client{
		baseURL:     strings.TrimRight(opts.ServerURL, "/") + "/",
		site:        opts.Site,
		cacheKey:    cacheKey,
		licensesTTL: licensesTTL,
		contentTTL:  contentTTL,
		httpClient:  httpClient,
		tokens:      tokens,
		licenses:    cache.New[[]models.License]("licenses", backend, logger, opts.Metrics),
		content:     cache.New[models.Content]("content", backend, logger, opts.Metrics),
		logger:      logger,
		metrics:     opts.Metrics,
	}

	if opts.Breaker != nil && !opts.Breaker.Disabled {
		c.breaker = newBreaker("license-service:"+opts.Site, *opts.Breaker, logger)
	}

	return c, nil
}

// NewFromConfig validates cfg and builds a client with its transport and token source.
func NewFromConfig(cfg *config.ClientConfig, backend cache.Backend, logger zerolog.Logger, m *metrics.ClientMetrics) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	httpClient, err := httpclient.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	tokens, err := auth.NewTokenSource(cfg, httpClient, logger, m)
	if err != nil {
		return nil, fmt.Errorf("create token source: %w", err)
	}

	return New(Options{
		ServerURL:   cfg.BaseURL(),
		Site:        cfg.Site,
		CacheKey:    cfg.CacheKey,
		LicensesTTL: cfg.Cache.LicensesTTL,
		ContentTTL:  cfg.Cache.ContentTTL,
		HTTPClient:  httpClient,
		Tokens:      tokens,
		Backend:     backend,
		Breaker:     &cfg.Breaker,
		Logger:      logger,
		Metrics:     m,
	})
}

func newBreaker(name string, cfg config.BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[*response] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = config.DefaultBreakerFailureThreshold
	}
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = config.DefaultBreakerOpenTimeout
	}

	return gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the service.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

type request struct {
	op       string
	method   string
	endpoint string
	form     url.Values
}

type response struct {
	status int
	body   []byte
}

// do sends an authenticated request. A 404 yields ErrNotFound, any other failure a
// *ServiceError or *AuthError that has already been logged.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	start := time.Now()
	requestID := uuid.NewString()

	tok, err := c.tokens.Token(ctx)
	if err != nil {
		c.metrics.RecordRequest(req.op, metrics.OutcomeAuthError, time.Since(start))
		c.logger.Error().
			Err(err).
			Str("op", req.op).
			Str("method", req.method).
			Str("endpoint", req.endpoint).
			Str("request_id", requestID).
			Msg("no token for license service request")
		return nil, &AuthError{Op: req.op, Err: err}
	}

	send := func() (*response, error) {
		return c.send(ctx, req, tok.Value, requestID)
	}

	var resp *response
	if c.breaker != nil {
		resp, err = c.breaker.Execute(send)
	} else {
		resp, err = send()
	}

	switch {
	case resp != nil && resp.status == http.StatusNotFound:
		c.metrics.RecordRequest(req.op, metrics.OutcomeNotFound, time.Since(start))
		c.logger.Debug().
			Str("op", req.op).
			Str("endpoint", req.endpoint).
			Str("request_id", requestID).
			Msg("resource not found")
		return nil, ErrNotFound
	case resp != nil && (resp.status < 200 || resp.status >= 300):
		if resp.status == http.StatusUnauthorized {
			c.invalidateToken()
		}
		return nil, c.fail(req, requestID, resp.status, errorMessage(resp.body), nil, start)
	case err != nil:
		return nil, c.fail(req, requestID, 0, "", err, start)
	}

	c.metrics.RecordRequest(req.op, metrics.OutcomeOK, time.Since(start))
	return resp, nil
}

func (c *Client) send(ctx context.Context, req request, token, requestID string) (*response, error) {
	var body io.Reader
	if len(req.form) > 0 {
		body = strings.NewReader(req.form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var data []byte
	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		data, err = io.ReadAll(httpResp.Body)
	} else {
		data, err = io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
	}
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	resp := &response{status: httpResp.StatusCode, body: data}
	if httpResp.StatusCode >= 500 {
		return resp, errServerStatus
	}
	return resp, nil
}

func (c *Client) fail(req request, requestID string, status int, message string, err error, start time.Time) error {
	c.metrics.RecordRequest(req.op, metrics.OutcomeError, time.Since(start))

	event := c.logger.Error().
		Str("op", req.op).
		Str("method", req.method).
		Str("endpoint", req.endpoint).
		Int("status", status).
		Str("request_id", requestID)
	if err != nil {
		event = event.Err(err)
	}
	if len(req.form) > 0 {
		event = event.Str("params", req.form.Encode())
	}
	event.Msg("license service request failed")

	return &ServiceError{
		Op:       req.op,
		Method:   req.method,
		Endpoint: req.endpoint,
		Status:   status,
		Message:  message,
		Err:      err,
	}
}

func (c *Client) invalidateToken() {
	if inv, ok := c.tokens.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
}

// decode unmarshals a successful response body into v.
func (c *Client) decode(req request, resp *response, v any) error {
	if err := json.Unmarshal(resp.body, v); err != nil {
		c.logger.Error().
			Err(err).
			Str("op", req.op).
			Str("endpoint", req.endpoint).
			Msg("undecodable license service response")
		return &ServiceError{
			Op:       req.op,
			Method:   req.method,
			Endpoint: req.endpoint,
			Status:   resp.status,
			Err:      fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

func errorMessage(body []byte) string {
	var apiErr models.APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Text() != "" {
		return apiErr.Text()
	}
	return strings.TrimSpace(string(body))
}

func escape(s string) string {
	return url.PathEscape(s)
}
