package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/everest/authsvc/internal/apperr"
	"github.com/everest/authsvc/internal/metrics"
	"github.com/everest/authsvc/internal/role"
)

// ErrMissingLocation is returned when a created user has no Location header.
var ErrMissingLocation = fmt.Errorf("%w: created user has no location", apperr.ErrIdentityProviderUnavailable)

// UserProfile carries the attributes sent when creating a user.
type UserProfile struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// EndUserToken is an end-user session issued by the identity provider.
type EndUserToken struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresIn        int    `json:"expiresIn"`
	RefreshExpiresIn int    `json:"refreshExpiresIn"`
	TokenType        string `json:"tokenType"`
}

// Claims is the subset of userinfo or introspection claims the service uses.
type Claims struct {
	Subject       string    `json:"sub"`
	Username      string    `json:"preferred_username"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	ExpiresAt     time.Time `json:"-"`
}

// Gateway is the typed client over the identity provider REST API.
type Gateway struct {
	cfg    Config
	client *http.Client
	broker *Broker
	parser *jwt.Parser
}

// NewGateway creates a Gateway that authenticates admin calls through broker.
func NewGateway(cfg Config, broker *Broker, client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gateway{
		cfg:    cfg,
		client: client,
		broker: broker,
		parser: jwt.NewParser(),
	}
}

// --- Admin operations ---

type credentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

type userRepresentation struct {
	Username      string                     `json:"username"`
	Email         string                     `json:"email"`
	FirstName     string                     `json:"firstName,omitempty"`
	LastName      string                     `json:"lastName,omitempty"`
	Enabled       bool                       `json:"enabled"`
	EmailVerified bool                       `json:"emailVerified"`
	Credentials   []credentialRepresentation `json:"credentials,omitempty"`
}

type roleRepresentation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateUser creates an enabled account with a password credential and
// returns the identity provider's id for it.
func (g *Gateway) CreateUser(ctx context.Context, profile UserProfile, password string) (string, error) {
	body := userRepresentation{
		Username:  profile.Username,
		Email:     profile.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Enabled:   true,
	}
	if password != "" {
		body.Credentials = []credentialRepresentation{{Type: "password", Value: password}}
	}

	resp, err := g.doAdmin(ctx, "create_user", http.MethodPost, g.cfg.usersURL(), body)
	if err != nil {
		return "", err
	}
	defer drain(resp)

	if err := adminStatusError("create_user", resp); err != nil {
		return "", err
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", ErrMissingLocation
	}
	id := path.Base(strings.TrimRight(loc, "/"))
	if id == "" || id == "." || id == "/" {
		return "", ErrMissingLocation
	}
	return id, nil
}

// SetEnabled enables or disables an account. Repeating the call is harmless.
func (g *Gateway) SetEnabled(ctx context.Context, externalID string, enabled bool) error {
	resp, err := g.doAdmin(ctx, "set_enabled", http.MethodPut, g.cfg.userURL(externalID), map[string]bool{"enabled": enabled})
	if err != nil {
		return err
	}
	defer drain(resp)
	return adminStatusError("set_enabled", resp)
}

// AssignRealmRole maps the realm role for r onto the account. A role that does
// not exist in the realm is logged and skipped.
func (g *Gateway) AssignRealmRole(ctx context.Context, externalID string, r role.Role) error {
	rep, err := g.lookupRealmRole(ctx, r)
	if err != nil || rep == nil {
		return err
	}

	resp, err := g.doAdmin(ctx, "assign_role", http.MethodPost,
		g.cfg.userURL(externalID)+"/role-mappings/realm", []roleRepresentation{*rep})
	if err != nil {
		return err
	}
	defer drain(resp)
	return adminStatusError("assign_role", resp)
}

// RemoveRealmRole unmaps the realm role for r. A missing role is skipped.
func (g *Gateway) RemoveRealmRole(ctx context.Context, externalID string, r role.Role) error {
	rep, err := g.lookupRealmRole(ctx, r)
	if err != nil || rep == nil {
		return err
	}

	resp, err := g.doAdmin(ctx, "remove_role", http.MethodDelete,
		g.cfg.userURL(externalID)+"/role-mappings/realm", []roleRepresentation{*rep})
	if err != nil {
		return err
	}
	defer drain(resp)
	return adminStatusError("remove_role", resp)
}

// SendVerificationEmail asks the identity provider to email a verification link.
func (g *Gateway) SendVerificationEmail(ctx context.Context, externalID string) error {
	resp, err := g.doAdmin(ctx, "verify_email", http.MethodPut,
		g.cfg.userURL(externalID)+"/execute-actions-email", []string{"VERIFY_EMAIL"})
	if err != nil {
		return err
	}
	defer drain(resp)
	return adminStatusError("verify_email", resp)
}

func (g *Gateway) lookupRealmRole(ctx context.Context, r role.Role) (*roleRepresentation, error) {
	name := r.DisplayName()
	resp, err := g.doAdmin(ctx, "get_role", http.MethodGet, g.cfg.roleURL(name), nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound {
		slog.Warn("realm role not found in identity provider, skipping", "role", name)
		return nil, nil
	}
	if err := adminStatusError("get_role", resp); err != nil {
		return nil, err
	}

	var rep roleRepresentation
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		return nil, fmt.Errorf("%w: decoding role %s: %v", apperr.ErrIdentityProviderUnavailable, name, err)
	}
	if rep.Name == "" {
		rep.Name = name
	}
	return &rep, nil
}

// doAdmin sends an admin request with the service token. A 401 invalidates the
// token and retries once; nothing else is retried.
func (g *Gateway) doAdmin(ctx context.Context, op, method, target string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", op, err)
		}
	}

	for attempt := 0; ; attempt++ {
		token, err := g.broker.GetServiceToken(ctx)
		if err != nil {
			return nil, err
		}

		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rdr)
		if err != nil {
			return nil, fmt.Errorf("building %s request: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := g.client.Do(req)
		if err != nil {
			metrics.ObserveIdP(op, "error", start)
			return nil, unavailable(op, err)
		}
		metrics.ObserveIdP(op, outcome(resp.StatusCode), start)

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			drain(resp)
			slog.Info("service token rejected, refreshing", "operation", op)
			g.broker.Invalidate(token)
			continue
		}
		return resp, nil
	}
}

func adminStatusError(op string, resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	slog.Debug("identity provider admin call failed", "operation", op, "status", code, "body", string(detail))

	switch {
	case code == http.StatusConflict:
		return fmt.Errorf("%w: user already exists in identity provider", apperr.ErrConflict)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: identity provider account not found", apperr.ErrUserNotFound)
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: identity provider rejected %s", apperr.ErrValidation, op)
	default:
		return fmt.Errorf("%w: %s returned status %d", apperr.ErrIdentityProviderUnavailable, op, code)
	}
}

// --- End-user operations ---

// AuthenticateUser exchanges end-user credentials for a session. Any non-2xx
// answer is reported as apperr.ErrAuthenticationFailed.
func (g *Gateway) AuthenticateUser(ctx context.Context, username, password string) (*EndUserToken, error) {
	return g.endUserGrant(ctx, "authenticate", url.Values{
		"grant_type": {"password"},
		"client_id":  {g.cfg.PublicClientID},
		"username":   {username},
		"password":   {password},
		"scope":      {"openid"},
	})
}

// RefreshEndUserToken exchanges a refresh token for a new session.
func (g *Gateway) RefreshEndUserToken(ctx context.Context, refreshToken string) (*EndUserToken, error) {
	return g.endUserGrant(ctx, "refresh", url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {g.cfg.PublicClientID},
		"refresh_token": {refreshToken},
	})
}

// Logout ends the session bound to refreshToken.
func (g *Gateway) Logout(ctx context.Context, refreshToken string) error {
	resp, err := g.postForm(ctx, "logout", g.cfg.logoutURL(), url.Values{
		"client_id":     {g.cfg.PublicClientID},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: logout rejected", apperr.ErrInvalidToken)
	}
	return nil
}

func (g *Gateway) endUserGrant(ctx context.Context, op string, form url.Values) (*EndUserToken, error) {
	resp, err := g.postForm(ctx, op, g.cfg.tokenURL(), form)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.ErrAuthenticationFailed
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil || tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: malformed token response", apperr.ErrIdentityProviderUnavailable)
	}
	return &EndUserToken{
		AccessToken:      tr.AccessToken,
		RefreshToken:     tr.RefreshToken,
		ExpiresIn:        tr.ExpiresIn,
		RefreshExpiresIn: tr.RefreshExpiresIn,
		TokenType:        tr.TokenType,
	}, nil
}

// IntrospectOrUserInfo resolves an access token to claims. JWTs are checked
// locally for shape and expiry, then confirmed through userinfo; opaque tokens
// go to the introspection endpoint.
func (g *Gateway) IntrospectOrUserInfo(ctx context.Context, accessToken string) (*Claims, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, apperr.ErrInvalidToken
	}

	var registered jwt.RegisteredClaims
	if _, _, err := g.parser.ParseUnverified(accessToken, &registered); err != nil {
		if strings.Count(accessToken, ".") == 2 {
			return nil, fmt.Errorf("%w: malformed token", apperr.ErrInvalidToken)
		}
		return g.introspect(ctx, accessToken)
	}

	var exp time.Time
	if registered.ExpiresAt != nil {
		exp = registered.ExpiresAt.Time
		if !time.Now().Before(exp) {
			return nil, fmt.Errorf("%w: token expired", apperr.ErrInvalidToken)
		}
	}

	claims, err := g.userInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	claims.ExpiresAt = exp
	if registered.Subject != "" && claims.Subject != registered.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", apperr.ErrInvalidToken)
	}
	return claims, nil
}

func (g *Gateway) userInfo(ctx context.Context, accessToken string) (*Claims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.userInfoURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("building userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		metrics.ObserveIdP("userinfo", "error", start)
		return nil, unavailable("userinfo", err)
	}
	defer drain(resp)
	metrics.ObserveIdP("userinfo", outcome(resp.StatusCode), start)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperr.ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: userinfo returned status %d", apperr.ErrIdentityProviderUnavailable, resp.StatusCode)
	}

	var c Claims
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil || c.Subject == "" {
		return nil, fmt.Errorf("%w: malformed userinfo", apperr.ErrInvalidToken)
	}
	return &c, nil
}

type introspection struct {
	Active        bool   `json:"active"`
	Subject       string `json:"sub"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Exp           int64  `json:"exp"`
}

func (g *Gateway) introspect(ctx context.Context, accessToken string) (*Claims, error) {
	resp, err := g.postForm(ctx, "introspect", g.cfg.introspectURL(), url.Values{
		"client_id":     {g.cfg.AdminClientID},
		"client_secret": {g.cfg.AdminClientSecret},
		"token":         {accessToken},
	})
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: introspection returned status %d", apperr.ErrIdentityProviderUnavailable, resp.StatusCode)
	}

	var in introspection
	if err := json.NewDecoder(resp.Body).Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: decoding introspection: %v", apperr.ErrIdentityProviderUnavailable, err)
	}
	if !in.Active || in.Subject == "" {
		return nil, apperr.ErrInvalidToken
	}

	c := &Claims{
		Subject:       in.Subject,
		Username:      in.Username,
		Email:         in.Email,
		EmailVerified: in.EmailVerified,
	}
	if in.Exp > 0 {
		c.ExpiresAt = time.Unix(in.Exp, 0)
	}
	return c, nil
}

func (g *Gateway) postForm(ctx context.Context, op, target string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		metrics.ObserveIdP(op, "error", start)
		return nil, unavailable(op, err)
	}
	metrics.ObserveIdP(op, outcome(resp.StatusCode), start)
	return resp, nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", apperr.ErrIdentityProviderUnavailable, op, err)
}

func outcome(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "success"
	case status >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
