package credentials

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/novellium/realtime/pkg/async"
	"github.com/novellium/realtime/pkg/storage"
)

// Config holds the credential manager's tunables. The two validity windows
// are intentionally distinct: the application-facing cache tolerates a token
// up to tens of seconds old, while the hub handshake must never reuse a token
// more than a few seconds old because it may lapse mid-handshake. Keep both
// configurable; unifying them changes observable behavior at session
// boundaries.
type Config struct {
	AppValidity       time.Duration `env:"CREDENTIALS_APP_VALIDITY" envDefault:"30s"`
	HandshakeValidity time.Duration `env:"CREDENTIALS_HANDSHAKE_VALIDITY" envDefault:"3s"`
	PreExpiry         time.Duration `env:"CREDENTIALS_PRE_EXPIRY" envDefault:"10s"`
	RefreshSecretKey  string        `env:"CREDENTIALS_REFRESH_SECRET_KEY" envDefault:"auth:refresh_secret"`
	SessionTokenKey   string        `env:"CREDENTIALS_SESSION_TOKEN_KEY" envDefault:"auth:session_token"`
}

// DefaultConfig returns the manager defaults.
func DefaultConfig() Config {
	return Config{
		AppValidity:       30 * time.Second,
		HandshakeValidity: 3 * time.Second,
		PreExpiry:         10 * time.Second,
		RefreshSecretKey:  "auth:refresh_secret",
		SessionTokenKey:   "auth:session_token",
	}
}

// Manager owns the in-memory session token and the persisted refresh secret.
// It is the only writer of either; construct exactly one per process and
// inject it into dependents.
//
// Renewal failures are swallowed: GetValid, EnsureFresh, ForceRefresh and
// HandshakeToken return an empty string on failure rather than an error, so
// callers distinguish "not logged in" from "transient failure" by testing for
// emptiness.
type Manager struct {
	store   storage.Store
	renewer Renewer
	cfg     Config
	log     *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	token    Token
	inflight *async.Future[string]
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.cfg = cfg }
}

// WithLogger sets the logger used for swallowed renewal failures.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// withNow overrides the clock. Test hook.
func withNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a credential manager backed by the given store and renewer.
func New(store storage.Store, renewer Renewer, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if renewer == nil {
		return nil, ErrRenewerRequired
	}

	m := &Manager{
		store:   store,
		renewer: renewer,
		cfg:     DefaultConfig(),
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// GetValid returns the cached token if it is still usable under the
// application validity window, renewing otherwise. Empty result means the
// renewal failed or no refresh secret is stored.
func (m *Manager) GetValid(ctx context.Context) string {
	return m.tokenWithin(ctx, m.cfg.AppValidity)
}

// HandshakeToken returns a token usable under the much tighter handshake
// validity window. The hub connection manager calls this at handshake time so
// it never reuses a token that is merely acceptable for the rest of the app
// but about to expire mid-handshake.
func (m *Manager) HandshakeToken(ctx context.Context) string {
	return m.tokenWithin(ctx, m.cfg.HandshakeValidity)
}

func (m *Manager) tokenWithin(ctx context.Context, validity time.Duration) string {
	m.mu.Lock()
	if m.token.UsableAt(m.now(), validity, m.cfg.PreExpiry) {
		tok := m.token.Value
		m.mu.Unlock()
		return tok
	}
	m.mu.Unlock()
	return m.renewShared(ctx)
}

// EnsureFresh forces a renewal when the token is expired or will expire
// within threshold; otherwise it behaves like GetValid.
func (m *Manager) EnsureFresh(ctx context.Context, threshold time.Duration) string {
	m.mu.Lock()
	expiringSoon := false
	if exp, ok := m.token.ExpiresAt(); ok && !m.now().Before(exp.Add(-threshold)) {
		expiringSoon = true
	}
	m.mu.Unlock()

	if expiringSoon {
		return m.ForceRefresh(ctx)
	}
	return m.GetValid(ctx)
}

// ForceRefresh unconditionally renews, bypassing the cache check.
func (m *Manager) ForceRefresh(ctx context.Context) string {
	return m.renewShared(ctx)
}

// Invalidate clears the in-memory token. The persisted refresh secret is
// untouched, so the next call renews.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = Token{}
	m.mu.Unlock()
}

// Save persists whichever of the two values are non-empty. When only a
// refresh secret is supplied, one renewal is performed immediately to
// populate a session token; that renewal failing is an error, because the
// caller (a login or credential-import flow) must learn the secret is no
// good right away.
func (m *Manager) Save(ctx context.Context, token, refreshSecret string) error {
	if refreshSecret != "" {
		if err := m.store.Set(ctx, m.cfg.RefreshSecretKey, refreshSecret, 0); err != nil {
			return err
		}
	}

	if token != "" {
		m.mu.Lock()
		m.token = Token{Value: token, AcquiredAt: m.now()}
		m.mu.Unlock()
		return m.store.Set(ctx, m.cfg.SessionTokenKey, token, 0)
	}

	if refreshSecret != "" {
		if got := m.ForceRefresh(ctx); got == "" {
			return ErrRenewalFailed
		}
	}
	return nil
}

// Logout clears the in-memory token and removes both persisted values.
func (m *Manager) Logout(ctx context.Context) error {
	m.Invalidate()
	err1 := m.store.Delete(ctx, m.cfg.SessionTokenKey)
	err2 := m.store.Delete(ctx, m.cfg.RefreshSecretKey)
	return errors.Join(err1, err2)
}

// renewShared performs a single-flight renewal: the first caller installs the
// in-flight future and clears it on completion; concurrent callers await the
// same future, so exactly one network renewal happens per episode and every
// caller observes the same outcome.
func (m *Manager) renewShared(ctx context.Context) string {
	m.mu.Lock()
	if f := m.inflight; f != nil {
		m.mu.Unlock()
		token, _ := f.Await()
		return token
	}

	// Detach from the triggering caller: an abandoned caller must not cancel
	// a renewal other callers are waiting on.
	f := async.Run(context.WithoutCancel(ctx), m.renew)
	m.inflight = f
	m.mu.Unlock()

	token, _ := f.Await()

	m.mu.Lock()
	m.inflight = nil
	m.mu.Unlock()

	return token
}

// renew executes one renewal round trip. The returned error is logged and
// swallowed by renewShared's callers; the empty token is the failure signal.
func (m *Manager) renew(ctx context.Context) (string, error) {
	secret, err := m.store.Get(ctx, m.cfg.RefreshSecretKey)
	if err != nil || secret == "" {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			m.log.ErrorContext(ctx, "failed to read refresh secret", slog.Any("error", err))
			return "", err
		}
		m.log.DebugContext(ctx, "no refresh secret stored, renewal skipped")
		return "", ErrNoRefreshSecret
	}

	token, err := m.renewer.Renew(ctx, secret)
	if err != nil {
		if errors.Is(err, ErrRenewalRejected) {
			// Proven invalid: the secret can never mint another token.
			m.log.WarnContext(ctx, "refresh secret rejected, removing it")
			_ = m.store.Delete(ctx, m.cfg.RefreshSecretKey)
		} else {
			m.log.ErrorContext(ctx, "token renewal failed", slog.Any("error", err))
		}
		return "", err
	}
	if token == "" {
		m.log.ErrorContext(ctx, "renewal reply carried an empty token")
		return "", ErrRenewalFailed
	}

	m.mu.Lock()
	m.token = Token{Value: token, AcquiredAt: m.now()}
	m.mu.Unlock()

	if err := m.store.Set(ctx, m.cfg.SessionTokenKey, token, 0); err != nil {
		m.log.WarnContext(ctx, "failed to persist renewed token", slog.Any("error", err))
	}

	return token, nil
}
