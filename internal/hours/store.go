package hours

import "context"

// PendingFilter restricts the pending listing. An empty OpportunityID means
// no restriction (unscoped admin).
type PendingFilter struct {
	OpportunityID string
}

// Store describes the persistence operations the claims core requires.
// Archive is the critical contract: it must move the active entry into the
// archive as one logical unit and report ErrNotPending when the active row is
// already gone, so two racing reviewers cannot both succeed.
type Store interface {
	Insert(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	ListPending(ctx context.Context, filter PendingFilter) ([]Entry, error)
	ListByUser(ctx context.Context, userID string) ([]Entry, error)

	Archive(ctx context.Context, rec Archived) error
	ListArchivedByUser(ctx context.Context, userID string) ([]Archived, error)
	ApprovedTotal(ctx context.Context, userID string) (float64, error)

	// ReconcileArchived removes active entries whose id already has an
	// archive counterpart (the detectable half-finished archive state) and
	// returns how many it completed.
	ReconcileArchived(ctx context.Context) (int, error)
}
