package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/novellium/realtime/pkg/async"
)

// Config holds the connection manager's tunables.
type Config struct {
	// ReconnectDelays is the backoff schedule walked after an unexpected
	// close. Exhausting it without success leaves the connection closed.
	ReconnectDelays []time.Duration

	// EventBuffer is the per-subscription event channel capacity.
	EventBuffer int
}

// DefaultConfig returns the default backoff schedule: an immediate retry
// followed by 5s, 10s, 20s and 30s delays.
func DefaultConfig() Config {
	return Config{
		ReconnectDelays: []time.Duration{0, 5 * time.Second, 10 * time.Second, 20 * time.Second, 30 * time.Second},
		EventBuffer:     8,
	}
}

// Manager owns the persistent hub connection and its lifecycle state.
// Construct exactly one per process and inject it into dependents; the live
// transport and the state flag are process-wide shared state that only the
// Manager writes.
type Manager struct {
	transport Transport
	tokens    TokenSource
	cfg       Config
	log       *slog.Logger
	events    *notifier

	mu       sync.Mutex
	state    State
	conn     Conn
	inflight *async.Future[Conn]
	stopCh   chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		if len(cfg.ReconnectDelays) > 0 {
			m.cfg.ReconnectDelays = cfg.ReconnectDelays
		}
		if cfg.EventBuffer > 0 {
			m.cfg.EventBuffer = cfg.EventBuffer
		}
	}
}

// WithLogger sets the manager's logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// New creates a connection manager. The token source is consulted freshly at
// every handshake; tokens are never cached across attempts because a
// credential obtained even a few seconds earlier may be stale by the time a
// new handshake begins.
func New(transport Transport, tokens TokenSource, opts ...Option) (*Manager, error) {
	if transport == nil {
		return nil, ErrTransportRequired
	}
	if tokens == nil {
		return nil, ErrTokenSourceRequired
	}

	m := &Manager{
		transport: transport,
		tokens:    tokens,
		cfg:       DefaultConfig(),
		log:       slog.Default(),
		events:    newNotifier(),
		state:     Disconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers for lifecycle events. Callers must Close the
// subscription when done with it.
func (m *Manager) Subscribe() *Subscription {
	return m.events.subscribe(m.cfg.EventBuffer)
}

// Unsubscribe detaches a subscription obtained from Subscribe.
func (m *Manager) Unsubscribe(sub *Subscription) {
	m.events.unsubscribe(sub)
}

// setState transitions the lifecycle state and publishes the change.
// Callers must hold m.mu.
func (m *Manager) setState(to State, cause error) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	m.events.publish(StateChange{From: from, To: to, Err: cause})
}

// Init establishes the hub connection. It is idempotent under concurrency:
// when an attempt is already underway, callers await that same attempt
// instead of starting a duplicate. A failure from an explicit Init surfaces
// to every awaiting caller.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	if m.state == Connected && m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	if f := m.inflight; f != nil {
		m.mu.Unlock()
		_, err := f.AwaitContext(ctx)
		return err
	}

	if m.stopCh == nil {
		m.stopCh = make(chan struct{})
	}
	stopCh := m.stopCh
	m.setState(Connecting, nil)

	// Detached context: concurrent initiators share this attempt, so the
	// first caller giving up must not cancel it for the others. The attempt
	// clears its own in-flight slot on completion.
	var f *async.Future[Conn]
	f = async.Run(context.WithoutCancel(ctx), func(ctx context.Context) (Conn, error) {
		conn, err := m.connect(ctx, stopCh)
		m.mu.Lock()
		if m.inflight == f {
			m.inflight = nil
		}
		m.mu.Unlock()
		return conn, err
	})
	m.inflight = f
	m.mu.Unlock()

	_, err := f.AwaitContext(ctx)
	return err
}

// EnsureConnected returns immediately when already connected, awaits an
// in-flight attempt when one exists, and otherwise triggers one.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	return m.Init(ctx)
}

// connect performs one handshake with a freshly computed token and installs
// the resulting connection. stopCh identifies the lifecycle generation the
// attempt belongs to; if Stop ran in the meantime the fresh connection is
// discarded.
func (m *Manager) connect(ctx context.Context, stopCh chan struct{}) (Conn, error) {
	conn, err := m.dial(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.setState(Disconnected, err)
		return nil, err
	}

	if m.stopCh != stopCh {
		// Stop raced the handshake; discard the fresh connection.
		_ = conn.Close()
		return nil, ErrStopped
	}

	m.installLocked(conn, stopCh)
	return conn, nil
}

// installLocked makes conn the current connection, closing any superseded
// one so at most one transport is ever live. Callers must hold m.mu.
func (m *Manager) installLocked(conn Conn, stopCh chan struct{}) {
	if m.conn != nil && m.conn != conn {
		_ = m.conn.Close()
	}
	m.conn = conn
	m.setState(Connected, nil)
	go m.watch(conn, stopCh)
}

// dial obtains a fresh handshake token and dials the transport.
func (m *Manager) dial(ctx context.Context) (Conn, error) {
	token := m.tokens.HandshakeToken(ctx)
	if token == "" {
		return nil, ErrNoToken
	}
	return m.transport.Dial(ctx, token)
}

// Stop tears down any live transport and drives the state to Disconnected
// regardless of the prior state. The manager may be re-initialized afterwards.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.setState(Disconnected, nil)
}

// Invoke sends a named call over the live connection. It does not wait for
// connectivity; callers wanting that behavior poll via State and
// EnsureConnected (see the invoker in the root package).
func (m *Manager) Invoke(ctx context.Context, target string, args []any) (json.RawMessage, error) {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()

	if state != Connected || conn == nil {
		return nil, ErrNotConnected
	}
	return conn.Invoke(ctx, target, args)
}

// watch waits for the connection to die. A close while the manager still
// considers this connection current is unexpected and triggers the reconnect
// schedule; a close initiated by Stop (or superseded by a newer connection)
// just exits.
func (m *Manager) watch(conn Conn, stopCh chan struct{}) {
	select {
	case <-conn.Done():
	case <-stopCh:
		return
	}

	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	cause := conn.Err()
	if cause == nil {
		// Locally initiated close outside Stop; nothing to repair.
		m.setState(Disconnected, nil)
		m.mu.Unlock()
		return
	}

	m.log.Warn("hub connection lost, reconnecting", slog.Any("error", cause))
	m.setState(Reconnecting, cause)

	// The reconnect loop is an attempt like any other: it occupies the
	// in-flight slot so initiators arriving while it runs join it instead of
	// dialing a duplicate connection.
	attempt := async.NewFuture[Conn]()
	m.inflight = attempt
	m.mu.Unlock()

	m.reconnect(stopCh, cause, attempt)
}

// reconnect walks the backoff schedule, obtaining a fresh token before every
// attempt, and stops at the first success. Exhausting the schedule leaves the
// connection closed. The attempt future is resolved with the final outcome
// for any initiators awaiting it.
func (m *Manager) reconnect(stopCh chan struct{}, cause error, attempt *async.Future[Conn]) {
	finish := func(conn Conn, err error) {
		m.mu.Lock()
		if m.inflight == attempt {
			m.inflight = nil
		}
		m.mu.Unlock()
		attempt.Resolve(conn, err)
	}

	for i, delay := range m.cfg.ReconnectDelays {
		if delay > 0 {
			select {
			case <-stopCh:
				finish(nil, ErrStopped)
				return
			case <-time.After(delay):
			}
		}

		select {
		case <-stopCh:
			finish(nil, ErrStopped)
			return
		default:
		}

		ctx := context.Background()
		conn, err := m.dial(ctx)
		if err != nil {
			m.log.Warn("reconnect attempt failed",
				slog.Int("attempt", i+1),
				slog.Int("attempts_total", len(m.cfg.ReconnectDelays)),
				slog.Any("error", err))
			continue
		}

		m.mu.Lock()
		select {
		case <-stopCh:
			m.mu.Unlock()
			_ = conn.Close()
			finish(nil, ErrStopped)
			return
		default:
		}
		m.installLocked(conn, stopCh)
		m.mu.Unlock()

		m.log.Info("hub connection reestablished", slog.Int("attempt", i+1))
		finish(conn, nil)
		return
	}

	m.log.Error("reconnect schedule exhausted, giving up", slog.Any("error", cause))
	m.mu.Lock()
	m.setState(Disconnected, ErrReconnectExhausted)
	m.mu.Unlock()
	finish(nil, ErrReconnectExhausted)
}
