package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/novellium/realtime/pkg/admission"
	"github.com/novellium/realtime/pkg/config"
	"github.com/novellium/realtime/pkg/credentials"
	"github.com/novellium/realtime/pkg/hub"
	"github.com/novellium/realtime/pkg/logger"
	"github.com/novellium/realtime/pkg/storage"
)

// Config holds the client-level settings; component-level tunables live in
// the respective package configs and are overridable via options.
type Config struct {
	// HubURL is the websocket endpoint of the named-procedure RPC surface.
	HubURL string `env:"REALTIME_HUB_URL,required"`

	// RenewalURL is the HTTP endpoint exchanging refresh secrets for tokens.
	RenewalURL string `env:"REALTIME_RENEWAL_URL,required"`

	// ConnectPollInterval and ConnectPollTimeout bound the wait for a
	// connection that is currently being (re)established before an
	// invocation gives up.
	ConnectPollInterval time.Duration `env:"REALTIME_CONNECT_POLL_INTERVAL" envDefault:"500ms"`
	ConnectPollTimeout  time.Duration `env:"REALTIME_CONNECT_POLL_TIMEOUT" envDefault:"15s"`
}

// DefaultConfig returns the client defaults; the endpoint URLs must still be
// supplied.
func DefaultConfig() Config {
	return Config{
		ConnectPollInterval: 500 * time.Millisecond,
		ConnectPollTimeout:  15 * time.Second,
	}
}

// Client composes the credential manager, the connection manager and the
// admission queue into the invocation surface business callers use.
// Construct exactly one per process.
type Client struct {
	cfg   Config
	creds *credentials.Manager
	conn  *hub.Manager
	queue *admission.Queue
	log   *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	log            *slog.Logger
	transport      hub.Transport
	renewer        credentials.Renewer
	credentialsCfg *credentials.Config
	admissionCfg   *admission.Config
	hubCfg         *hub.Config
}

// WithLogger sets the logger shared by all components.
func WithLogger(log *slog.Logger) Option {
	return func(o *clientOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithTransport replaces the default websocket transport.
func WithTransport(t hub.Transport) Option {
	return func(o *clientOptions) { o.transport = t }
}

// WithRenewer replaces the default HTTP renewer.
func WithRenewer(r credentials.Renewer) Option {
	return func(o *clientOptions) { o.renewer = r }
}

// WithCredentialsConfig overrides the credential manager configuration.
func WithCredentialsConfig(cfg credentials.Config) Option {
	return func(o *clientOptions) { o.credentialsCfg = &cfg }
}

// WithAdmissionConfig overrides the admission queue policy.
func WithAdmissionConfig(cfg admission.Config) Option {
	return func(o *clientOptions) { o.admissionCfg = &cfg }
}

// WithHubConfig overrides the connection manager configuration.
func WithHubConfig(cfg hub.Config) Option {
	return func(o *clientOptions) { o.hubCfg = &cfg }
}

// New wires up a client: an HTTP renewer against cfg.RenewalURL, a credential
// manager over the given store, a websocket transport against cfg.HubURL, a
// connection manager drawing handshake tokens from the credential manager,
// and an admission queue in front of it all.
func New(cfg Config, store storage.Store, opts ...Option) (*Client, error) {
	if cfg.ConnectPollInterval <= 0 {
		cfg.ConnectPollInterval = 500 * time.Millisecond
	}
	if cfg.ConnectPollTimeout <= 0 {
		cfg.ConnectPollTimeout = 15 * time.Second
	}

	o := &clientOptions{log: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	renewer := o.renewer
	if renewer == nil {
		renewer = credentials.NewHTTPRenewer(cfg.RenewalURL)
	}

	credOpts := []credentials.Option{credentials.WithLogger(o.log)}
	if o.credentialsCfg != nil {
		credOpts = append(credOpts, credentials.WithConfig(*o.credentialsCfg))
	}
	creds, err := credentials.New(store, renewer, credOpts...)
	if err != nil {
		return nil, err
	}

	transport := o.transport
	if transport == nil {
		wst := hub.NewWebsocketTransport(cfg.HubURL)
		wst.Logger = o.log
		transport = wst
	}

	hubOpts := []hub.Option{hub.WithLogger(o.log)}
	if o.hubCfg != nil {
		hubOpts = append(hubOpts, hub.WithConfig(*o.hubCfg))
	}
	conn, err := hub.New(transport, creds, hubOpts...)
	if err != nil {
		return nil, err
	}

	queueOpts := []admission.Option{admission.WithLogger(o.log)}
	if o.admissionCfg != nil {
		queueOpts = append(queueOpts, admission.WithConfig(*o.admissionCfg))
	}
	queue := admission.New(queueOpts...)

	return &Client{
		cfg:   cfg,
		creds: creds,
		conn:  conn,
		queue: queue,
		log:   o.log,
	}, nil
}

// NewFromEnv builds a client entirely from the environment: endpoint URLs
// and poll bounds from REALTIME_* variables, credential windows from
// CREDENTIALS_*, the admission policy from ADMISSION_*, and a structured
// logger from LOG_LEVEL/LOG_FORMAT. Explicit options still win over the
// parsed values.
func NewFromEnv(store storage.Store, opts ...Option) (*Client, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	var logCfg logger.Config
	if err := config.Load(&logCfg); err != nil {
		return nil, err
	}
	var credCfg credentials.Config
	if err := config.Load(&credCfg); err != nil {
		return nil, err
	}
	var admCfg admission.Config
	if err := config.Load(&admCfg); err != nil {
		return nil, err
	}

	base := []Option{
		WithLogger(logger.NewFromConfig(logCfg)),
		WithCredentialsConfig(credCfg),
		WithAdmissionConfig(admCfg),
	}
	return New(cfg, store, append(base, opts...)...)
}

// Credentials exposes the credential manager for boundary collaborators: the
// login flow calls Save, business callers call EnsureFresh before
// user-facing actions.
func (c *Client) Credentials() *credentials.Manager { return c.creds }

// Connection exposes the connection manager, primarily for lifecycle event
// subscriptions.
func (c *Client) Connection() *hub.Manager { return c.conn }

// Close stops the admission queue and tears down the hub connection.
func (c *Client) Close() {
	c.queue.Close()
	c.conn.Stop()
}

// rawInvoke submits a named call through the admission queue and returns the
// raw reply once the call has been admitted, the connection secured, and the
// reply received.
func (c *Client) rawInvoke(ctx context.Context, target string, args []any, opts ...admission.EnqueueOption) (json.RawMessage, error) {
	return admission.Do(ctx, c.queue, func(ctx context.Context) (json.RawMessage, error) {
		if err := c.awaitConnected(ctx); err != nil {
			return nil, err
		}
		raw, err := c.conn.Invoke(ctx, target, args)
		if err != nil {
			return nil, &NetworkError{Op: target, Err: err}
		}
		return raw, nil
	}, opts...)
}

// awaitConnected secures a live connection for an admitted operation: it
// returns immediately when Connected, polls (bounded) while an attempt is
// underway, and performs exactly one restart when Disconnected. No retries
// beyond that single restart belong to this layer.
func (c *Client) awaitConnected(ctx context.Context) error {
	restarted := false

	deadline := time.Now().Add(c.cfg.ConnectPollTimeout)
	for {
		switch c.conn.State() {
		case hub.Connected:
			return nil

		case hub.Disconnected:
			if restarted {
				return &NetworkError{Op: "connect", Err: hub.ErrNotConnected}
			}
			restarted = true
			if err := c.conn.EnsureConnected(ctx); err != nil {
				return connectError(err)
			}

		case hub.Connecting, hub.Reconnecting:
			if time.Now().After(deadline) {
				return &NetworkError{Op: "connect", Err: context.DeadlineExceeded}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.ConnectPollInterval):
			}
		}
	}
}

// connectError maps connection-establishment failures onto the client's
// error taxonomy.
func connectError(err error) error {
	if errors.Is(err, hub.ErrNoToken) {
		return &AuthError{Reason: "no session token available"}
	}
	return &NetworkError{Op: "connect", Err: err}
}
