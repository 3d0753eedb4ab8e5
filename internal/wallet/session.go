package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Session struct {
	ID        string    `json:"id"`
	Account   Account   `json:"account"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore keeps live sessions; Get returns ErrNotConnected for unknown
// or expired ids.
type SessionStore interface {
	Put(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// Sessions binds many concurrent browser sessions to accounts. A session is
// an HS256 token naming a server-side session, so Close takes effect
// immediately even though the token itself has not expired. Each live
// session owns a Binding; its connect/disconnect events are relayed to
// Subscribe.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	store  SessionStore
	now    func() time.Time
	events hub

	mu       sync.Mutex
	bindings map[string]*liveBinding // by session id
}

type liveBinding struct {
	*Binding
	expires time.Time
	relay   func() // unsubscribes the relay to Sessions.events
}

func NewSessions(secret []byte, ttl time.Duration, store SessionStore) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{
		secret:   secret,
		ttl:      ttl,
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		bindings: make(map[string]*liveBinding),
	}
}

// Open connects through p and issues a session token for the account. A
// caller presenting a live token is already connected: its session comes
// back unchanged and p is not consulted.
func (s *Sessions) Open(ctx context.Context, token string, p Provider) (string, Session, error) {
	if token != "" {
		sess, err := s.Resolve(ctx, token)
		switch {
		case err == nil:
			if _, err := s.binding(sess).Connect(ctx); err != nil {
				return "", Session{}, err
			}
			return token, sess, nil
		case !errors.Is(err, ErrNotConnected):
			return "", Session{}, err
		}
	}

	b := NewBinding(p)
	b.now = s.now
	relay := b.Subscribe(s.events.publish)
	acct, err := b.Connect(ctx)
	if err != nil {
		relay()
		return "", Session{}, err
	}
	token, sess, err := s.issue(ctx, acct)
	if err != nil {
		b.Disconnect()
		relay()
		return "", Session{}, err
	}

	s.mu.Lock()
	s.sweep()
	s.bindings[sess.ID] = &liveBinding{Binding: b, expires: sess.ExpiresAt, relay: relay}
	s.mu.Unlock()
	return token, sess, nil
}

func (s *Sessions) issue(ctx context.Context, acct Account) (string, Session, error) {
	now := s.now().Truncate(time.Second)
	sess := Session{
		ID:        uuid.NewString(),
		Account:   acct,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   string(acct),
		IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}).SignedString(s.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign session: %w", err)
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return "", Session{}, fmt.Errorf("store session: %w", err)
	}
	return token, sess, nil
}

// binding returns the Binding of a live session. Sessions issued before a
// restart (kept in Redis) are re-bound to their stored account.
func (s *Sessions) binding(sess Session) *Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lb, ok := s.bindings[sess.ID]; ok {
		return lb.Binding
	}
	b := NewBinding(AddressProvider(string(sess.Account)))
	b.now = s.now
	_, _ = b.Connect(context.Background())
	s.bindings[sess.ID] = &liveBinding{Binding: b, expires: sess.ExpiresAt, relay: b.Subscribe(s.events.publish)}
	return b
}

// sweep drops bindings of sessions that expired without Close. s.mu is held.
func (s *Sessions) sweep() {
	now := s.now()
	for id, lb := range s.bindings {
		if !now.Before(lb.expires) {
			lb.relay()
			delete(s.bindings, id)
		}
	}
}

// Resolve maps a token to its live session.
func (s *Sessions) Resolve(ctx context.Context, token string) (Session, error) {
	claims, err := s.parse(token)
	if err != nil {
		return Session{}, err
	}
	sess, err := s.store.Get(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if string(sess.Account) != claims.Subject {
		return Session{}, fmt.Errorf("%w: session subject mismatch", ErrNotConnected)
	}
	return sess, nil
}

// Close disconnects the session behind token. Closing twice is not an error.
func (s *Sessions) Close(ctx context.Context, token string) error {
	sess, err := s.Resolve(ctx, token)
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	b := s.binding(sess)
	b.Disconnect()

	s.mu.Lock()
	if lb, ok := s.bindings[sess.ID]; ok {
		lb.relay()
		delete(s.bindings, sess.ID)
	}
	s.mu.Unlock()
	return nil
}

func (s *Sessions) Subscribe(fn func(Event)) (unsubscribe func()) {
	return s.events.subscribe(fn)
}

func (s *Sessions) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: token has no session id", ErrNotConnected)
	}
	return claims, nil
}

// ---- stores ----

type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemorySessionStore) Put(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || !m.now().Before(s.ExpiresAt) {
		return Session{}, ErrNotConnected
	}
	return s, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// RedisSessionStore keeps sessions as JSON under wallet:session:<id>, expiring with the token.
type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore { return &RedisSessionStore{rdb: rdb} }

func sessionKey(id string) string { return "wallet:session:" + id }

func (r *RedisSessionStore) Put(ctx context.Context, s Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("%w: session already expired", ErrNotConnected)
	}
	payload, _ := json.Marshal(s)
	return r.rdb.Set(ctx, sessionKey(s.ID), payload, ttl).Err()
}

func (r *RedisSessionStore) Get(ctx context.Context, id string) (Session, error) {
	v, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotConnected
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(v, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, sessionKey(id)).Err()
}
