package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/everest/authsvc/internal/apperr"
	"github.com/everest/authsvc/internal/metrics"
)

// DefaultTokenSkew is subtracted from the token lifetime before a cached
// token is considered stale. Tokens that live less than twice the skew are
// refreshed at half their lifetime instead.
const DefaultTokenSkew = 60 * time.Second

// Broker acquires and caches the service-account token used for admin calls.
// Concurrent callers that find the cache stale share a single login.
type Broker struct {
	cfg    Config
	client *http.Client
	now    func() time.Time

	mu        sync.RWMutex
	token     string
	refreshAt time.Time

	refreshMu sync.Mutex
}

// BrokerOption customises a Broker.
type BrokerOption func(*Broker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) BrokerOption {
	return func(b *Broker) { b.now = now }
}

// NewBroker creates a Broker. A zero cfg.TokenSkew uses DefaultTokenSkew.
func NewBroker(cfg Config, client *http.Client, opts ...BrokerOption) *Broker {
	if cfg.TokenSkew <= 0 {
		cfg.TokenSkew = DefaultTokenSkew
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	b := &Broker{cfg: cfg, client: client, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// GetServiceToken returns a cached token that is valid for at least the
// configured skew, logging in first when needed. A failed login returns
// apperr.ErrIdentityProviderUnavailable and leaves the cache untouched.
func (b *Broker) GetServiceToken(ctx context.Context) (string, error) {
	if tok, ok := b.cached(); ok {
		return tok, nil
	}

	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	if tok, ok := b.cached(); ok {
		return tok, nil
	}

	tok, expiresIn, err := b.login(ctx)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		slog.Warn("service token refresh failed", "error", err)
		return "", err
	}
	metrics.TokenRefreshes.WithLabelValues("success").Inc()

	b.mu.Lock()
	b.token = tok
	b.refreshAt = b.now().Add(expiresIn - effectiveSkew(b.cfg.TokenSkew, expiresIn))
	b.mu.Unlock()

	slog.Debug("service token refreshed", "expiresIn", expiresIn)
	return tok, nil
}

// Invalidate marks stale as expired if it is still the cached token, so a
// caller that saw a 401 forces exactly one refresh even when several callers
// report the same token.
func (b *Broker) Invalidate(stale string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.token == stale {
		b.refreshAt = time.Time{}
	}
}

func (b *Broker) cached() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.token != "" && b.now().Before(b.refreshAt) {
		return b.token, true
	}
	return "", false
}

func effectiveSkew(skew, lifetime time.Duration) time.Duration {
	if half := lifetime / 2; skew > half {
		return half
	}
	return skew
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
}

func (b *Broker) login(ctx context.Context) (string, time.Duration, error) {
	start := time.Now()
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {b.cfg.AdminClientID},
		"client_secret": {b.cfg.AdminClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("building service login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		metrics.ObserveIdP("service_login", "error", start)
		return "", 0, fmt.Errorf("%w: service login: %v", apperr.ErrIdentityProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveIdP("service_login", "rejected", start)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Debug("service login rejected", "status", resp.StatusCode, "body", string(body))
		return "", 0, fmt.Errorf("%w: service login returned status %d", apperr.ErrIdentityProviderUnavailable, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		metrics.ObserveIdP("service_login", "error", start)
		return "", 0, fmt.Errorf("%w: decoding service token: %v", apperr.ErrIdentityProviderUnavailable, err)
	}
	if tr.AccessToken == "" {
		metrics.ObserveIdP("service_login", "error", start)
		return "", 0, fmt.Errorf("%w: service token missing", apperr.ErrIdentityProviderUnavailable)
	}

	metrics.ObserveIdP("service_login", "success", start)
	return tr.AccessToken, time.Duration(tr.ExpiresIn) * time.Second, nil
}
