// Package auth acquires bearer tokens for license service requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MacJediWizard/licenseclient/internal/config"
	"github.com/MacJediWizard/licenseclient/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrNoToken is returned when no bearer token could be obtained.
var ErrNoToken = errors.New("no token available")

// Token is a bearer token and the window in which it is reused.
type Token struct {
	Value      string
	AcquiredAt time.Time
	// TTL is how long the token is reused; zero means it never expires locally.
	TTL time.Duration
}

// Expired reports whether the token must be refreshed at now.
func (t Token) Expired(now time.Time) bool {
	if t.TTL <= 0 {
		return false
	}
	return !now.Before(t.AcquiredAt.Add(t.TTL))
}

// TokenSource supplies the bearer token for outgoing requests. An empty Value means
// the request is sent without an Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// Anonymous sends requests without credentials.
type Anonymous struct{}

// Token returns an empty token.
func (Anonymous) Token(context.Context) (Token, error) {
	return Token{}, nil
}

// Static returns a preconfigured bearer token.
type Static struct {
	value string
}

// NewStatic creates a static token source.
func NewStatic(value string) *Static {
	return &Static{value: value}
}

// Token returns the configured token, or ErrNoToken if it is empty.
func (s *Static) Token(context.Context) (Token, error) {
	if s.value == "" {
		return Token{}, ErrNoToken
	}
	return Token{Value: s.value}, nil
}

// NewTokenSource selects the token source for the configured auth strategy.
func NewTokenSource(cfg *config.ClientConfig, httpClient *http.Client, logger zerolog.Logger, m *metrics.ClientMetrics) (TokenSource, error) {
	strategy, err := cfg.Auth.Strategy()
	if err != nil {
		return nil, err
	}

	switch strategy {
	case config.AuthNone:
		return Anonymous{}, nil
	case config.AuthStatic:
		return NewStatic(cfg.Auth.Token), nil
	case config.AuthOAuth2:
		return NewGateway(GatewayConfig{
			ServerURL:  cfg.BaseURL(),
			Key:        cfg.Auth.Key,
			Secret:     cfg.Auth.Secret,
			TTL:        cfg.Auth.TokenTTL,
			HTTPClient: httpClient,
			Logger:     logger,
			Metrics:    m,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported auth strategy %q", strategy)
	}
}
