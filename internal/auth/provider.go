package auth

import (
	"context"
	"time"
)

// Event names the session lifecycle notifications delivered by the
// credential provider.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Session is the verified credential state issued by the provider. Metadata
// carries the raw sign-up claims (full_name, grade) for the fallback path
// when the profile row cannot be read.
type Session struct {
	UserID      string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
	Metadata    map[string]string
}

// SignUpInput is the registration payload forwarded to the provider. The
// profile fields travel as metadata and are provisioned into the users table
// after email verification.
type SignUpInput struct {
	Email    string
	Password string
	FullName string
	Grade    string
}

// Subscription is a handle on a session-changed listener. Unsubscribe must be
// called on every teardown path; leaked subscriptions cause ghost principal
// updates after the owner is gone.
type Subscription interface {
	Unsubscribe()
}

// Provider abstracts the external identity service. Credential verification
// and token cryptography live behind this interface; the session manager only
// consumes its events and session snapshots.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, in SignUpInput) error
	SignOut(ctx context.Context) error
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(fn func(Event, *Session)) (Subscription, error)
}
