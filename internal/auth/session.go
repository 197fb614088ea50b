package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"servehours.org/internal/obs"
)

const (
	defaultEmailDomain    = "@wws.k12.in.us"
	defaultResolveTimeout = 10 * time.Second
)

// ManagerOption configures Manager behavior.
type ManagerOption func(*Manager)

// WithEmailDomain overrides the required sign-up email domain suffix.
func WithEmailDomain(domain string) ManagerOption {
	return func(m *Manager) {
		if strings.TrimSpace(domain) != "" {
			m.domain = domain
		}
	}
}

// WithResolveTimeout bounds the deferred profile lookup per session change.
func WithResolveTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

type sessionChange struct {
	event   Event
	session *Session
}

// Manager owns one client's session state. It subscribes to the provider's
// session-changed events and resolves a fresh principal per event on its own
// worker goroutine; the synchronous callback only enqueues. The provider's
// event-delivery path must never wait on a call back into the provider, so
// profile resolution is always deferred.
type Manager struct {
	provider Provider
	resolver *Resolver
	domain   string
	timeout  time.Duration

	changes   chan sessionChange
	done      chan struct{}
	sub       Subscription
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu        sync.RWMutex
	principal *Principal
	loading   bool
}

// NewManager constructs a Manager. Call Start to subscribe and bootstrap,
// and Close on every exit path.
func NewManager(provider Provider, resolver *Resolver, opts ...ManagerOption) (*Manager, error) {
	if provider == nil {
		return nil, errors.New("auth: provider is required")
	}
	if resolver == nil {
		return nil, errors.New("auth: resolver is required")
	}
	m := &Manager{
		provider: provider,
		resolver: resolver,
		domain:   defaultEmailDomain,
		timeout:  defaultResolveTimeout,
		changes:  make(chan sessionChange, 16),
		done:     make(chan struct{}),
		loading:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start subscribes to session-changed events and checks for an existing
// session. A present session is fed through the same deferred path the
// provider events use; absence clears the loading flag immediately.
func (m *Manager) Start(ctx context.Context) error {
	sub, err := m.provider.OnAuthStateChange(m.enqueue)
	if err != nil {
		return err
	}
	m.sub = sub

	m.wg.Add(1)
	go m.run()

	session, err := m.provider.GetSession(ctx)
	if err != nil {
		m.Close()
		return err
	}
	if session == nil {
		m.setState(nil, false)
		return nil
	}
	// Providers are not required to replay the current session to a new
	// subscriber. A provider that does replay just rebuilds the same
	// principal; the state is replaced wholesale per event.
	m.enqueue(EventInitialSession, session)
	return nil
}

// Close unsubscribes and stops the worker. Safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.sub != nil {
			m.sub.Unsubscribe()
		}
		close(m.done)
		m.wg.Wait()
	})
}

// Current returns the resolved principal, or nil when anonymous.
func (m *Manager) Current() *Principal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.principal == nil {
		return nil
	}
	p := *m.principal
	return &p
}

// Loading reports whether the initial session resolution is still pending.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// SignIn delegates to the provider. The principal is only ever set by the
// session-changed path, keeping a single source of truth.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	_, err := m.provider.SignInWithPassword(ctx, email, password)
	return err
}

// SignUp rejects locally when the email is outside the organization domain;
// no provider call is made in that case.
func (m *Manager) SignUp(ctx context.Context, in SignUpInput) error {
	if err := CheckEmailDomain(in.Email, m.domain); err != nil {
		return err
	}
	return m.provider.SignUp(ctx, in)
}

// SignOut delegates to the provider and clears the principal unconditionally,
// even when the provider call fails.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.provider.SignOut(ctx)
	m.setState(nil, false)
	return err
}

func (m *Manager) enqueue(event Event, session *Session) {
	select {
	case m.changes <- sessionChange{event: event, session: session}:
	case <-m.done:
	}
}

func (m *Manager) run() {
	defer m.wg.Done()
	for {
		select {
		case change := <-m.changes:
			m.apply(change)
		case <-m.done:
			return
		}
	}
}

func (m *Manager) apply(change sessionChange) {
	if change.session == nil {
		m.setState(nil, false)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	principal := m.resolver.Resolve(ctx, change.session)
	m.setState(&principal, false)
	obs.Event("info", "session resolved", map[string]any{
		"event":    string(change.event),
		"user_id":  principal.ID,
		"is_admin": principal.IsAdmin,
	})
}

func (m *Manager) setState(principal *Principal, loading bool) {
	m.mu.Lock()
	m.principal = principal
	m.loading = loading
	m.mu.Unlock()
}

// CheckEmailDomain enforces the organization's email-domain policy.
func CheckEmailDomain(email, domain string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.HasSuffix(email, strings.ToLower(domain)) {
		return fmt.Errorf("%w: email must end with %s", ErrEmailDomain, domain)
	}
	return nil
}
