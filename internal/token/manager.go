package token

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/lcoppola/dropforward/internal/logging"
)

// Dropbox OAuth2 endpoints.
const (
	dropboxAuthURL  = "https://www.dropbox.com/oauth2/authorize"
	dropboxTokenURL = "https://api.dropboxapi.com/oauth2/token"
)

// DefaultValidity is the fixed validity window recorded on every token write.
// Dropbox access tokens are short-lived; four hours matches the provider's
// advertised lifetime.
const DefaultValidity = 4 * time.Hour

// OAuthConfig returns the oauth2 configuration for the Dropbox authorization
// code flow with offline access (long-living refresh token).
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  dropboxAuthURL,
			TokenURL: dropboxTokenURL,
		},
	}
}

// Manager owns the token store and drives the credential lifecycle:
// authorize, acquire, refresh. All remote operations are gated on the record
// it persists. Refresh and concurrent record access are serialized so a
// reader never observes a mixed-state record.
type Manager struct {
	conf     *oauth2.Config
	store    *Store
	validity time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithValidity overrides the validity window recorded on token writes.
func WithValidity(d time.Duration) Option {
	return func(m *Manager) { m.validity = d }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager returns a Manager using conf for provider exchanges and store
// for persistence.
func NewManager(conf *oauth2.Config, store *Store, opts ...Option) *Manager {
	m := &Manager{
		conf:     conf,
		store:    store,
		validity: DefaultValidity,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.WithComponent(m.logger, "token")
	return m
}

// AuthURL returns the authorization URL the account owner must visit to
// begin the interactive exchange. No persisted state changes.
func (m *Manager) AuthURL() string {
	return m.conf.AuthCodeURL("dropforward",
		oauth2.SetAuthURLParam("token_access_type", "offline"))
}

// Exchange trades a one-time authorization code for a token record, stamps
// the validity window, and persists it. The manager is Authorized afterwards.
func (m *Manager) Exchange(ctx context.Context, code string) (*Record, error) {
	tok, err := m.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthExchange, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &Record{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    m.now().UTC().Add(m.validity),
		TokenType:    tok.TokenType,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		rec.Scope = scope
	}
	if accountID, ok := tok.Extra("account_id").(string); ok {
		rec.AccountID = accountID
	}
	if uid, ok := tok.Extra("uid").(string); ok {
		rec.UID = uid
	}

	if err := m.store.Save(rec); err != nil {
		return nil, fmt.Errorf("failed to persist token record: %w", err)
	}

	m.logger.Info("authorization completed",
		logging.Operation("exchange"),
		slog.String("access_token", logging.SanitizeToken(rec.AccessToken)),
		slog.Time("expires_at", rec.ExpiresAt))
	return rec, nil
}

// Refresh exchanges the refresh token for a fresh access token and updates
// the persisted record in place.
//
// When refreshToken is empty the persisted record supplies it; a missing
// record fails with ErrNoToken, and a record whose expiry has already passed
// fails with ErrTokenExpired without any network call. A provider rejection
// is reported as ErrRefresh; the caller decides whether to Discard the record
// to force re-authorization.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.Load()
	if err != nil && refreshToken == "" {
		return nil, err
	}

	if refreshToken == "" {
		if rec.Expired(m.now().UTC()) {
			return nil, fmt.Errorf("%w: record expired at %s",
				ErrTokenExpired, rec.ExpiresAt.Format(time.RFC3339))
		}
		refreshToken = rec.RefreshToken
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: record has no refresh token", ErrNoToken)
	}

	// Expiry far in the past forces the token source to hit the provider's
	// refresh endpoint instead of reusing a cached access token.
	ts := m.conf.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	})
	tok, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefresh, err)
	}

	if rec == nil {
		rec = &Record{RefreshToken: refreshToken}
	}
	rec.AccessToken = tok.AccessToken
	rec.ExpiresAt = m.now().UTC().Add(m.validity)
	if tok.RefreshToken != "" {
		rec.RefreshToken = tok.RefreshToken
	}

	if err := m.store.Save(rec); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed record: %w", err)
	}

	m.logger.Info("token refreshed",
		logging.Operation("refresh"),
		slog.String("access_token", logging.SanitizeToken(rec.AccessToken)),
		slog.Time("expires_at", rec.ExpiresAt))
	return rec, nil
}

// IsReady reports whether a persisted record exists. It does not validate
// expiry; staleness surfaces at refresh time and when the provider rejects
// the access token on a remote call.
func (m *Manager) IsReady() bool {
	return m.store.Exists()
}

// AccessToken returns the access token from the persisted record.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.Load()
	if err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

// RefreshAccessToken performs a refresh with the persisted refresh token and
// returns the new access token. Used by the storage client when the provider
// rejects the current access token mid-operation.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	rec, err := m.Refresh(ctx, "")
	if err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

// Discard deletes the persisted record, forcing re-authorization.
func (m *Manager) Discard() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Warn("discarding token record", logging.Operation("discard"))
	return m.store.Delete()
}
