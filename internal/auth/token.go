package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer            = "servehours"
	secretEnvVariable = "SERVEHOURS_AUTH_SECRET"
)

var (
	errMissingSecret = errors.New("auth secret is not configured")

	secretMu sync.Mutex
	secret   cachedSecret
)

type cachedSecret struct {
	value []byte
	err   error
	ready bool
}

// SessionClaims are the JWT claims carried by a session token. The profile
// metadata rides along so the fallback principal can be built without a
// profile lookup.
type SessionClaims struct {
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Grade    string `json:"grade,omitempty"`
	jwt.RegisteredClaims
}

// MintSessionToken signs an HS256 session token for the given identity.
func MintSessionToken(userID, email string, metadata map[string]string, ttl time.Duration) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("userID is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("ttl must be greater than zero")
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return "", time.Time{}, err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := SessionClaims{
		Email:    email,
		FullName: metadata["full_name"],
		Grade:    metadata["grade"],
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secretBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseSessionToken verifies a session token and reconstructs the session it
// represents.
func ParseSessionToken(token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secretBytes, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}

	metadata := map[string]string{}
	if claims.FullName != "" {
		metadata["full_name"] = claims.FullName
	}
	if claims.Grade != "" {
		metadata["grade"] = claims.Grade
	}
	return &Session{
		UserID:      claims.Subject,
		Email:       claims.Email,
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
		Metadata:    metadata,
	}, nil
}

func validateClaims(claims *SessionClaims) error {
	if claims.Issuer != issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	if time.Now().UTC().After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	return nil
}

func loadSecret() ([]byte, error) {
	secretMu.Lock()
	defer secretMu.Unlock()
	if secret.ready {
		return secret.value, secret.err
	}
	raw := strings.TrimSpace(os.Getenv(secretEnvVariable))
	if raw == "" {
		secret = cachedSecret{err: errMissingSecret, ready: true}
	} else {
		secret = cachedSecret{value: []byte(raw), ready: true}
	}
	return secret.value, secret.err
}

// ResetSecretForTests clears the cached signing secret.
func ResetSecretForTests() {
	secretMu.Lock()
	defer secretMu.Unlock()
	secret = cachedSecret{}
}
