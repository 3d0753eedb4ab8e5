package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Provider is the injected wallet (a browser extension in the web app).
// RequestAccounts prompts the user and returns the exposed addresses.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) ([]string, error)

func (f ProviderFunc) RequestAccounts(ctx context.Context) ([]string, error) { return f(ctx) }

// AddressProvider is a Provider for an address the client already resolved.
// An empty address means the user declined.
func AddressProvider(address string) Provider {
	return ProviderFunc(func(context.Context) ([]string, error) {
		if address == "" {
			return nil, ErrUserRejected
		}
		return []string{address}, nil
	})
}

type Event struct {
	Account   Account
	Connected bool
	At        time.Time
}

// hub fans connect/disconnect events out to subscribers.
type hub struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]func(Event)
}

func (h *hub) subscribe(fn func(Event)) (unsubscribe func()) {
	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[uint64]func(Event))
	}
	h.next++
	id := h.next
	h.subs[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

func (h *hub) publish(ev Event) {
	h.mu.RLock()
	fns := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Binding holds the connected/disconnected state of one wallet session.
type Binding struct {
	provider Provider
	now      func() time.Time

	mu      sync.Mutex // serialises Connect/Disconnect
	current atomic.Pointer[Account]
	events  hub
}

// NewBinding accepts a nil provider; Connect then fails with ErrNoProvider.
func NewBinding(p Provider) *Binding {
	return &Binding{provider: p, now: func() time.Time { return time.Now().UTC() }}
}

// Connect asks the provider for an account. While connected it returns the
// existing account without prompting again.
func (b *Binding) Connect(ctx context.Context) (Account, error) {
	if a := b.current.Load(); a != nil {
		return *a, nil
	}
	b.mu.Lock()
	if a := b.current.Load(); a != nil {
		b.mu.Unlock()
		return *a, nil
	}
	acct, err := requestAccount(ctx, b.provider)
	if err != nil {
		b.mu.Unlock()
		return "", err
	}
	b.current.Store(&acct)
	b.mu.Unlock()

	b.events.publish(Event{Account: acct, Connected: true, At: b.now()})
	return acct, nil
}

// Current never blocks.
func (b *Binding) Current() (Account, bool) {
	a := b.current.Load()
	if a == nil {
		return "", false
	}
	return *a, true
}

func (b *Binding) Disconnect() {
	b.mu.Lock()
	prev := b.current.Swap(nil)
	b.mu.Unlock()
	if prev != nil {
		b.events.publish(Event{Account: *prev, Connected: false, At: b.now()})
	}
}

// Subscribe registers fn for connect/disconnect transitions.
func (b *Binding) Subscribe(fn func(Event)) (unsubscribe func()) {
	return b.events.subscribe(fn)
}

func requestAccount(ctx context.Context, p Provider) (Account, error) {
	if p == nil {
		return "", ErrNoProvider
	}
	accounts, err := p.RequestAccounts(ctx)
	switch {
	case errors.Is(err, ErrNoProvider), errors.Is(err, ErrUserRejected):
		return "", err
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrUserRejected, err)
	case len(accounts) == 0:
		return "", fmt.Errorf("%w: no accounts exposed", ErrUserRejected)
	}
	return ParseAccount(accounts[0])
}
