package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MacJediWizard/licenseclient/internal/config"
	"github.com/MacJediWizard/licenseclient/internal/metrics"
	"github.com/MacJediWizard/licenseclient/pkg/models"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	serviceEndpoint = "/v1/oauth2/service"
	tokenPath       = "/oauth/token"
)

// GatewayConfig holds configuration for the OAuth2 gateway.
type GatewayConfig struct {
	// ServerURL is the license service base URL used for auth server discovery.
	ServerURL string
	Key       string
	Secret    string
	// TTL is how long a token is reused. Keep it below the token's real lifetime.
	// Zero uses config.DefaultTokenTTL.
	TTL        time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Metrics    *metrics.ClientMetrics
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Gateway obtains tokens with the client-credentials grant from the auth server
// advertised by the license service, and caches them for TTL. At most one fetch runs at
// a time; concurrent callers wait for its result.
type Gateway struct {
	serverURL  string
	key        string
	secret     string
	ttl        time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *metrics.ClientMetrics
	now        func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	token *Token
}

// NewGateway creates a new OAuth2 gateway.
func NewGateway(cfg GatewayConfig) *Gateway {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = config.DefaultTokenTTL
	}
	return &Gateway{
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		key:        cfg.Key,
		secret:     cfg.Secret,
		ttl:        ttl,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("component", "auth_gateway").Logger(),
		metrics:    cfg.Metrics,
		now:        now,
	}
}

// Token returns the cached token or fetches a new one. Failures are logged and
// reported as ErrNoToken. A caller whose context ends stops waiting, but the shared
// fetch continues for the other waiters.
func (g *Gateway) Token(ctx context.Context) (Token, error) {
	if tok, ok := g.cached(); ok {
		return tok, nil
	}

	ch := g.group.DoChan("token", func() (any, error) {
		if tok, ok := g.cached(); ok {
			return tok, nil
		}

		tok, err := g.fetch(context.WithoutCancel(ctx))
		if err != nil {
			g.metrics.RecordTokenFetch(metrics.OutcomeError)
			return Token{}, err
		}
		g.metrics.RecordTokenFetch(metrics.OutcomeOK)

		g.mu.Lock()
		g.token = &tok
		g.mu.Unlock()
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return Token{}, fmt.Errorf("%w: %w", ErrNoToken, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	}
}

// Invalidate drops the cached token so the next call fetches a new one.
func (g *Gateway) Invalidate() {
	g.mu.Lock()
	g.token = nil
	g.mu.Unlock()
}

func (g *Gateway) cached() (Token, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.token == nil || g.token.Expired(g.now()) {
		return Token{}, false
	}
	return *g.token, true
}

func (g *Gateway) fetch(ctx context.Context) (Token, error) {
	authURL, err := g.discover(ctx)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrNoToken, err)
	}

	tokenURL := strings.TrimRight(authURL, "/") + tokenPath
	cc := clientcredentials.Config{
		ClientID:     g.key,
		ClientSecret: g.secret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	ot, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, g.httpClient))
	if err != nil {
		g.logger.Error().Err(err).Str("url", tokenURL).Msg("failed to obtain access token")
		return Token{}, fmt.Errorf("%w: request token from %s: %w", ErrNoToken, tokenURL, err)
	}

	g.logger.Debug().Str("url", tokenURL).Dur("ttl", g.ttl).Msg("access token acquired")
	return Token{
		Value:      ot.AccessToken,
		AcquiredAt: g.now(),
		TTL:        g.ttl,
	}, nil
}

// discover asks the license service where its auth server lives.
func (g *Gateway) discover(ctx context.Context) (string, error) {
	serviceURL := g.serverURL + serviceEndpoint

	authURL, err := g.getServiceURL(ctx, serviceURL)
	if err != nil {
		g.logger.Error().Err(err).Str("url", serviceURL).Msg("auth server discovery failed")
		return "", err
	}
	return authURL, nil
}

func (g *Gateway) getServiceURL(ctx context.Context, serviceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("discover auth server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("discover auth server: status %d", resp.StatusCode)
	}

	var svc models.OAuthService
	if err := json.NewDecoder(resp.Body).Decode(&svc); err != nil {
		return "", fmt.Errorf("decode auth service response: %w", err)
	}
	if svc.URL == "" {
		return "", errors.New("auth service response has no url")
	}
	return svc.URL, nil
}
