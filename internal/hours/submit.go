package hours

import (
	"context"
	"strings"
	"time"

	"servehours.org/internal/auth"
	"servehours.org/internal/ids"
	"servehours.org/internal/obs"
)

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// Service validates and records new claims and answers a member's own views.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs a Service over the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates the input and inserts a single pending entry owned by the
// principal. Either the whole entry is written or nothing is.
func (s *Service) Submit(ctx context.Context, principal *auth.Principal, in SubmitInput) (Entry, error) {
	if principal == nil {
		return Entry{}, ErrUnauthorized
	}
	if in.Hours <= 0 {
		return Entry{}, invalidField("hours", "must be greater than zero")
	}
	if in.Date.IsZero() {
		return Entry{}, invalidField("date", "is required")
	}

	entry := Entry{
		ID:            ids.New(),
		UserID:        principal.ID,
		Date:          in.Date,
		Hours:         in.Hours,
		CustomTitle:   strings.TrimSpace(in.CustomTitle),
		Description:   strings.TrimSpace(in.Description),
		ProofURL:      strings.TrimSpace(in.ProofURL),
		OpportunityID: strings.TrimSpace(in.OpportunityID),
		Status:        StatusPending,
		SubmittedAt:   s.now().UTC(),
	}
	if err := s.store.Insert(ctx, &entry); err != nil {
		return Entry{}, err
	}
	obs.ObserveSubmission()
	return entry, nil
}

// ListMine returns the principal's active entries.
func (s *Service) ListMine(ctx context.Context, principal *auth.Principal) ([]Entry, error) {
	if principal == nil {
		return nil, ErrUnauthorized
	}
	return s.store.ListByUser(ctx, principal.ID)
}

// History returns the principal's archived entries.
func (s *Service) History(ctx context.Context, principal *auth.Principal) ([]Archived, error) {
	if principal == nil {
		return nil, ErrUnauthorized
	}
	return s.store.ListArchivedByUser(ctx, principal.ID)
}

// ApprovedTotal sums a user's archived approved hours. Active entries never
// contribute: an entry is either pending or archived, never both.
func (s *Service) ApprovedTotal(ctx context.Context, userID string) (float64, error) {
	return s.store.ApprovedTotal(ctx, userID)
}
