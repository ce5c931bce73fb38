package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MacJediWizard/licenseclient/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthServer struct {
	*httptest.Server
	discoveries atomic.Int32
	tokens      atomic.Int32

	// delay holds the token endpoint open so concurrent callers pile up.
	delay       time.Duration
	failService bool
	failToken   bool
	emptyURL    bool

	mu       sync.Mutex
	lastUser string
	lastPass string
	lastForm string
}

func newFakeAuthServer(t *testing.T) *fakeAuthServer {
	t.Helper()
	f := &fakeAuthServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/service", func(w http.ResponseWriter, r *http.Request) {
		f.discoveries.Add(1)
		if f.failService {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		authURL := f.URL + "/auth/"
		if f.emptyURL {
			authURL = ""
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"url": authURL})
	})
	mux.HandleFunc("/auth/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		n := f.tokens.Add(1)
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		if f.failToken {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}

		user, pass, _ := r.BasicAuth()
		_ = r.ParseForm()
		f.mu.Lock()
		f.lastUser, f.lastPass, f.lastForm = user, pass, r.PostForm.Get("grant_type")
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("token-%d", n),
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestGateway(srv *fakeAuthServer, clock *testClock) *Gateway {
	cfg := GatewayConfig{
		ServerURL:  srv.URL + "/",
		Key:        "client-key",
		Secret:     "client-secret",
		TTL:        5 * time.Minute,
		HTTPClient: srv.Client(),
		Logger:     zerolog.Nop(),
	}
	if clock != nil {
		cfg.Now = clock.Now
	}
	return NewGateway(cfg)
}

func TestGateway_TokenIsReusedWithinTTL(t *testing.T) {
	srv := newFakeAuthServer(t)
	clock := &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	g := newTestGateway(srv, clock)
	ctx := context.Background()

	tok, err := g.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok.Value)
	assert.Equal(t, clock.Now(), tok.AcquiredAt)

	clock.Advance(4 * time.Minute)
	tok, err = g.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok.Value)
	assert.Equal(t, int32(1), srv.tokens.Load())

	clock.Advance(time.Minute)
	tok, err = g.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok.Value)
	assert.Equal(t, int32(2), srv.discoveries.Load())
}

func TestGateway_ZeroTTLUsesDefault(t *testing.T) {
	srv := newFakeAuthServer(t)
	clock := &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	g := NewGateway(GatewayConfig{
		ServerURL:  srv.URL,
		Key:        "client-key",
		Secret:     "client-secret",
		HTTPClient: srv.Client(),
		Logger:     zerolog.Nop(),
		Now:        clock.Now,
	})
	ctx := context.Background()

	tok, err := g.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTokenTTL, tok.TTL)

	clock.Advance(72 * time.Hour)
	tok, err = g.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok.Value)
	assert.Equal(t, int32(2), srv.tokens.Load())
}

func TestGateway_SendsClientCredentials(t *testing.T) {
	srv := newFakeAuthServer(t)
	g := newTestGateway(srv, nil)

	_, err := g.Token(context.Background())
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "client-key", srv.lastUser)
	assert.Equal(t, "client-secret", srv.lastPass)
	assert.Equal(t, "client_credentials", srv.lastForm)
}

func TestGateway_ConcurrentCallersShareOneFetch(t *testing.T) {
	srv := newFakeAuthServer(t)
	srv.delay = 100 * time.Millisecond
	g := newTestGateway(srv, nil)

	const callers = 20
	var wg sync.WaitGroup
	values := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := g.Token(context.Background())
			values[i], errs[i] = tok.Value, err
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), srv.discoveries.Load())
	assert.Equal(t, int32(1), srv.tokens.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "token-1", values[i])
	}
}

func TestGateway_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeAuthServer)
	}{
		{name: "discovery unavailable", setup: func(f *fakeAuthServer) { f.failService = true }},
		{name: "discovery without url", setup: func(f *fakeAuthServer) { f.emptyURL = true }},
		{name: "token rejected", setup: func(f *fakeAuthServer) { f.failToken = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeAuthServer(t)
			tt.setup(srv)
			g := newTestGateway(srv, nil)

			_, err := g.Token(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNoToken)

			// Failures are not cached.
			_, _ = g.Token(context.Background())
			assert.Equal(t, int32(2), srv.discoveries.Load())
		})
	}
}

func TestGateway_Invalidate(t *testing.T) {
	srv := newFakeAuthServer(t)
	g := newTestGateway(srv, nil)
	ctx := context.Background()

	tok, err := g.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok.Value)

	g.Invalidate()
	tok, err = g.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok.Value)
}

func TestGateway_CanceledWaiter(t *testing.T) {
	srv := newFakeAuthServer(t)
	srv.delay = 200 * time.Millisecond
	g := newTestGateway(srv, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Token(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The shared fetch still completes and is cached for later callers.
	require.Eventually(t, func() bool {
		_, ok := g.cached()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestToken_Expired(t *testing.T) {
	acquired := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		tok  Token
		at   time.Time
		want bool
	}{
		{"fresh", Token{AcquiredAt: acquired, TTL: time.Minute}, acquired.Add(30 * time.Second), false},
		{"at ttl", Token{AcquiredAt: acquired, TTL: time.Minute}, acquired.Add(time.Minute), true},
		{"past ttl", Token{AcquiredAt: acquired, TTL: time.Minute}, acquired.Add(time.Hour), true},
		{"no ttl", Token{AcquiredAt: acquired}, acquired.Add(24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tok.Expired(tt.at))
		})
	}
}

func TestStaticAndAnonymous(t *testing.T) {
	ctx := context.Background()

	tok, err := Anonymous{}.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok.Value)

	tok, err = NewStatic("jwt-value").Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jwt-value", tok.Value)

	_, err = NewStatic("").Token(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestNewTokenSource(t *testing.T) {
	tests := []struct {
		name    string
		auth    config.AuthConfig
		want    any
		wantErr bool
	}{
		{name: "none", auth: config.AuthConfig{Client: "none"}, want: Anonymous{}},
		{name: "empty means none", auth: config.AuthConfig{}, want: Anonymous{}},
		{name: "static", auth: config.AuthConfig{Client: "static", Token: "t"}, want: &Static{}},
		{name: "jwt", auth: config.AuthConfig{Client: "jwt", Token: "t"}, want: &Static{}},
		{name: "oauth2", auth: config.AuthConfig{Client: "oauth2", Key: "k", Secret: "s"}, want: &Gateway{}},
		{name: "unknown", auth: config.AuthConfig{Client: "oauth1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Server = "https://licenses.example.com"
			cfg.Site = "site"
			cfg.Auth = tt.auth

			src, err := NewTokenSource(cfg, http.DefaultClient, zerolog.Nop(), nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, src)
		})
	}
}
