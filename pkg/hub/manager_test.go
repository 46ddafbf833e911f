package hub_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/novellium/realtime/pkg/hub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a scriptable hub connection.
type fakeConn struct {
	reply json.RawMessage

	mu        sync.Mutex
	targets   []string
	closeOnce sync.Once
	done      chan struct{}
	err       error
}

func newFakeConn() *fakeConn {
	return &fakeConn{done: make(chan struct{})}
}

func (c *fakeConn) Invoke(ctx context.Context, target string, args []any) (json.RawMessage, error) {
	c.mu.Lock()
	c.targets = append(c.targets, target)
	c.mu.Unlock()
	return c.reply, nil
}

func (c *fakeConn) Close() error {
	c.terminate(nil)
	return nil
}

// terminate simulates a connection death; a non-nil error is an unexpected close.
func (c *fakeConn) terminate(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.done)
	})
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }
func (c *fakeConn) Err() error            { return c.err }

func (c *fakeConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// fakeTransport scripts dial outcomes and records every token presented.
type fakeTransport struct {
	mu       sync.Mutex
	tokens   []string
	conns    []*fakeConn
	dialErrs []error       // consumed one per dial; nil entry means success
	gate     chan struct{} // when non-nil, Dial blocks until closed
}

func (t *fakeTransport) Dial(ctx context.Context, token string) (hub.Conn, error) {
	t.mu.Lock()
	t.tokens = append(t.tokens, token)
	var scripted error
	if len(t.dialErrs) > 0 {
		scripted = t.dialErrs[0]
		t.dialErrs = t.dialErrs[1:]
	}
	gate := t.gate
	t.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if scripted != nil {
		return nil, scripted
	}

	conn := newFakeConn()
	t.mu.Lock()
	t.conns = append(t.conns, conn)
	t.mu.Unlock()
	return conn, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tokens)
}

func (t *fakeTransport) lastConn() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

// fakeTokens issues a distinct token per request so staleness across attempts
// is detectable.
type fakeTokens struct {
	calls atomic.Int64
	empty bool
}

func (f *fakeTokens) HandshakeToken(ctx context.Context) string {
	n := f.calls.Add(1)
	if f.empty {
		return ""
	}
	return fmt.Sprintf("token-%d", n)
}

func fastConfig() hub.Config {
	return hub.Config{
		ReconnectDelays: []time.Duration{0, 10 * time.Millisecond, 20 * time.Millisecond},
		EventBuffer:     16,
	}
}

func newTestManager(t *testing.T, transport hub.Transport, tokens hub.TokenSource) *hub.Manager {
	t.Helper()

	m, err := hub.New(transport, tokens, hub.WithConfig(fastConfig()))
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m
}

func TestInit_Connects(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	tokens := &fakeTokens{}
	m := newTestManager(t, transport, tokens)

	require.Equal(t, hub.Disconnected, m.State())
	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, hub.Connected, m.State())
	assert.Equal(t, 1, transport.dialCount())
}

func TestInit_FailureSurfacesToInitiator(t *testing.T) {
	t.Parallel()

	dialErr := errors.New("refused")
	transport := &fakeTransport{dialErrs: []error{dialErr}}
	m := newTestManager(t, transport, &fakeTokens{})

	err := m.Init(context.Background())
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, hub.Disconnected, m.State())
}

func TestInit_NoTokenIsNoHandshake(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	m := newTestManager(t, transport, &fakeTokens{empty: true})

	err := m.Init(context.Background())
	assert.ErrorIs(t, err, hub.ErrNoToken)
	assert.Zero(t, transport.dialCount(), "dial must not be attempted without a token")
}

func TestInit_IdempotentUnderConcurrency(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	transport := &fakeTransport{gate: gate}
	m := newTestManager(t, transport, &fakeTokens{})

	const initiators = 8
	var wg sync.WaitGroup
	errs := make(chan error, initiators)
	for range initiators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Init(context.Background())
		}()
	}

	// Let the initiators pile onto the single in-flight attempt.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for range initiators {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, 1, transport.dialCount(), "concurrent initiators must share one attempt")
}

func TestEnsureConnected_NoopWhenConnected(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	m := newTestManager(t, transport, &fakeTokens{})

	require.NoError(t, m.Init(context.Background()))
	require.NoError(t, m.EnsureConnected(context.Background()))
	assert.Equal(t, 1, transport.dialCount())
}

func TestStop_AlwaysDisconnects(t *testing.T) {
	t.Parallel()

	t.Run("from connected", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{}
		m := newTestManager(t, transport, &fakeTokens{})

		require.NoError(t, m.Init(context.Background()))
		conn := transport.lastConn()

		m.Stop()
		assert.Equal(t, hub.Disconnected, m.State())
		assert.True(t, conn.closed(), "stop must release the live transport")
	})

	t.Run("from disconnected", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(t, &fakeTransport{}, &fakeTokens{})
		m.Stop()
		assert.Equal(t, hub.Disconnected, m.State())
	})

	t.Run("reinit after stop", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{}
		m := newTestManager(t, transport, &fakeTokens{})

		require.NoError(t, m.Init(context.Background()))
		m.Stop()
		require.NoError(t, m.Init(context.Background()))
		assert.Equal(t, hub.Connected, m.State())
	})
}

func TestReconnect_AfterUnexpectedClose(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	tokens := &fakeTokens{}
	m := newTestManager(t, transport, tokens)

	require.NoError(t, m.Init(context.Background()))
	first := transport.lastConn()

	// Script one failed attempt so the second schedule slot succeeds.
	transport.mu.Lock()
	transport.dialErrs = []error{errors.New("still down")}
	transport.mu.Unlock()

	first.terminate(errors.New("connection reset"))

	require.Eventually(t, func() bool {
		return m.State() == hub.Connected && transport.dialCount() == 3
	}, 2*time.Second, 5*time.Millisecond, "manager must walk the schedule until success")

	// Every handshake used a freshly computed token: initial + 2 attempts.
	assert.EqualValues(t, 3, tokens.calls.Load())

	transport.mu.Lock()
	seen := make(map[string]struct{}, len(transport.tokens))
	for _, tok := range transport.tokens {
		seen[tok] = struct{}{}
	}
	transport.mu.Unlock()
	assert.Len(t, seen, 3, "no token may be reused across attempts")
}

func TestEnsureConnected_JoinsReconnectAttempt(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	tokens := &fakeTokens{}
	m := newTestManager(t, transport, tokens)

	require.NoError(t, m.Init(context.Background()))
	first := transport.lastConn()

	// Park the reconnect loop's dial so the manager stays in Reconnecting.
	gate := make(chan struct{})
	transport.mu.Lock()
	transport.gate = gate
	transport.mu.Unlock()

	first.terminate(errors.New("connection reset"))

	require.Eventually(t, func() bool {
		return m.State() == hub.Reconnecting
	}, time.Second, time.Millisecond)

	// An initiator arriving mid-reconnect must join the in-flight attempt,
	// never dial a duplicate connection alongside the backoff loop.
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.EnsureConnected(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)
	close(gate)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("initiator did not observe the reconnect outcome")
	}

	assert.Equal(t, hub.Connected, m.State())
	assert.Equal(t, 2, transport.dialCount(), "initial dial plus one reconnect dial")

	transport.mu.Lock()
	conns := append([]*fakeConn(nil), transport.conns...)
	transport.mu.Unlock()
	live := 0
	for _, conn := range conns {
		if !conn.closed() {
			live++
		}
	}
	assert.Equal(t, 1, live, "exactly one connection may be live at a time")
}

func TestReconnect_ScheduleExhausted(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	m := newTestManager(t, transport, &fakeTokens{})

	require.NoError(t, m.Init(context.Background()))
	conn := transport.lastConn()

	sub := m.Subscribe()
	defer m.Unsubscribe(sub)

	// All three schedule slots fail.
	transport.mu.Lock()
	transport.dialErrs = []error{assert.AnError, assert.AnError, assert.AnError}
	transport.mu.Unlock()

	conn.terminate(errors.New("gone"))

	require.Eventually(t, func() bool {
		return m.State() == hub.Disconnected
	}, 2*time.Second, 5*time.Millisecond)

	// 1 initial dial + 3 failed reconnect attempts.
	assert.Equal(t, 4, transport.dialCount())

	var sawExhausted bool
drain:
	for {
		select {
		case ev := <-sub.Events():
			if ev.To == hub.Disconnected && errors.Is(ev.Err, hub.ErrReconnectExhausted) {
				sawExhausted = true
			}
		default:
			break drain
		}
	}
	assert.True(t, sawExhausted, "exhaustion must be reported to subscribers")
}

func TestStateChangeEvents(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	m := newTestManager(t, transport, &fakeTokens{})

	sub := m.Subscribe()
	defer m.Unsubscribe(sub)

	require.NoError(t, m.Init(context.Background()))

	var transitions []hub.State
	timeout := time.After(time.Second)
	for len(transitions) < 2 {
		select {
		case ev := <-sub.Events():
			transitions = append(transitions, ev.To)
		case <-timeout:
			t.Fatal("lifecycle events were not delivered")
		}
	}

	assert.Equal(t, []hub.State{hub.Connecting, hub.Connected}, transitions)
}

func TestInvoke_RequiresLiveConnection(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	m := newTestManager(t, transport, &fakeTokens{})

	_, err := m.Invoke(context.Background(), "GetShelf", nil)
	assert.ErrorIs(t, err, hub.ErrNotConnected)

	require.NoError(t, m.Init(context.Background()))
	transport.lastConn().reply = json.RawMessage(`{"Success": true}`)

	raw, err := m.Invoke(context.Background(), "GetShelf", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Success": true}`, string(raw))
}
