package hub

import "sync"

// Subscription receives lifecycle events from a Manager. Slow consumers have
// events dropped rather than blocking the connection machinery.
type Subscription struct {
	ch     chan StateChange
	closed bool
	mu     sync.Mutex
}

// Events returns the channel on which state changes are delivered.
func (s *Subscription) Events() <-chan StateChange {
	return s.ch
}

// Close detaches the subscription. Idempotent.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

func (s *Subscription) send(ev StateChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
	}
}

// notifier fans lifecycle events out to registered subscriptions.
type notifier struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[*Subscription]struct{})}
}

func (n *notifier) subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 8
	}
	sub := &Subscription{ch: make(chan StateChange, buffer)}
	n.mu.Lock()
	n.subs[sub] = struct{}{}
	n.mu.Unlock()
	return sub
}

func (n *notifier) unsubscribe(sub *Subscription) {
	n.mu.Lock()
	delete(n.subs, sub)
	n.mu.Unlock()
	sub.Close()
}

func (n *notifier) publish(ev StateChange) {
	n.mu.Lock()
	subs := make([]*Subscription, 0, len(n.subs))
	for sub := range n.subs {
		subs = append(subs, sub)
	}
	n.mu.Unlock()

	for _, sub := range subs {
		sub.send(ev)
	}
}
