package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const defaultSessionTTL = 12 * time.Hour

// LocalProvider is an in-process credential provider with bcrypt password
// verification and session-changed fan-out. It stands in for the hosted
// identity service in development and tests; accounts are verified
// immediately instead of waiting for an email round trip.
// NOTE: Replace with the hosted identity provider adapter in production.
type LocalProvider struct {
	mu       sync.Mutex
	accounts map[string]*localAccount
	session  *Session
	subs     map[int]func(Event, *Session)
	nextSub  int
	tokenTTL time.Duration
	profiles ProfileWriter
}

type localAccount struct {
	id           string
	email        string
	passwordHash []byte
	metadata     map[string]string
}

// LocalProviderOption configures LocalProvider.
type LocalProviderOption func(*LocalProvider)

// WithProfileWriter provisions a profile row for every successful sign-up,
// so the resolver and the hours store see the new user.
func WithProfileWriter(w ProfileWriter) LocalProviderOption {
	return func(p *LocalProvider) {
		p.profiles = w
	}
}

// NewLocalProvider creates an empty provider.
func NewLocalProvider(opts ...LocalProviderOption) *LocalProvider {
	p := &LocalProvider{
		accounts: make(map[string]*localAccount),
		subs:     make(map[int]func(Event, *Session)),
		tokenTTL: defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ Provider = (*LocalProvider)(nil)

// SignUp registers an account and provisions its profile row. The profile
// metadata is also kept on the account so sessions can carry it as claims.
func (p *LocalProvider) SignUp(ctx context.Context, in SignUpInput) error {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	account := &localAccount{
		id:           uuid.NewString(),
		email:        email,
		passwordHash: hash,
		metadata: map[string]string{
			"full_name": in.FullName,
			"grade":     in.Grade,
		},
	}

	p.mu.Lock()
	if _, ok := p.accounts[email]; ok {
		p.mu.Unlock()
		return ErrAlreadyExists
	}
	p.accounts[email] = account
	p.mu.Unlock()

	if p.profiles != nil {
		grade, _ := strconv.Atoi(strings.TrimSpace(in.Grade))
		profile := Profile{
			ID:       account.id,
			Email:    email,
			FullName: strings.TrimSpace(in.FullName),
			Grade:    grade,
		}
		if err := p.profiles.Save(ctx, profile); err != nil {
			p.mu.Lock()
			delete(p.accounts, email)
			p.mu.Unlock()
			return fmt.Errorf("provision profile: %w", err)
		}
	}
	return nil
}

// SignInWithPassword verifies credentials, mints a session token and emits
// SIGNED_IN to all subscribers.
func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)

	p.mu.Lock()
	account, ok := p.accounts[email]
	p.mu.Unlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(account.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := MintSessionToken(account.id, account.email, account.metadata, p.tokenTTL)
	if err != nil {
		return nil, err
	}
	session := &Session{
		UserID:      account.id,
		Email:       account.email,
		AccessToken: token,
		ExpiresAt:   expiresAt,
		Metadata:    account.metadata,
	}

	p.mu.Lock()
	p.session = session
	p.mu.Unlock()

	p.emit(EventSignedIn, session)
	return session, nil
}

// SignOut drops the current session and emits SIGNED_OUT.
func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
	p.emit(EventSignedOut, nil)
	return nil
}

// GetSession returns the current session, or nil.
func (p *LocalProvider) GetSession(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, nil
}

// OnAuthStateChange registers a session-changed listener.
func (p *LocalProvider) OnAuthStateChange(fn func(Event, *Session)) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	return &localSubscription{provider: p, id: id}, nil
}

// AccountID reports the generated id for a registered email, for wiring
// seeded profiles in development.
func (p *LocalProvider) AccountID(email string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.accounts[normalizeEmail(email)]
	if !ok {
		return "", false
	}
	return account.id, true
}

func (p *LocalProvider) emit(event Event, session *Session) {
	p.mu.Lock()
	listeners := make([]func(Event, *Session), 0, len(p.subs))
	for _, fn := range p.subs {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(event, session)
	}
}

type localSubscription struct {
	provider *LocalProvider
	id       int
	once     sync.Once
}

func (s *localSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.provider.mu.Lock()
		delete(s.provider.subs, s.id)
		s.provider.mu.Unlock()
	})
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// MemoryProfiles is a map-backed ProfileStore for development and tests.
type MemoryProfiles struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryProfiles creates an empty profile store.
func NewMemoryProfiles() *MemoryProfiles {
	return &MemoryProfiles{profiles: make(map[string]Profile)}
}

var (
	_ ProfileStore  = (*MemoryProfiles)(nil)
	_ ProfileWriter = (*MemoryProfiles)(nil)
)

// Put inserts or replaces a profile.
func (m *MemoryProfiles) Put(profile Profile) {
	m.mu.Lock()
	m.profiles[profile.ID] = profile
	m.mu.Unlock()
}

// Save implements ProfileWriter.
func (m *MemoryProfiles) Save(ctx context.Context, profile Profile) error {
	m.Put(profile)
	return nil
}

// Find returns the profile for id, or ErrNotFound.
func (m *MemoryProfiles) Find(ctx context.Context, id string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &profile, nil
}
