package hours

import (
	"context"
	"errors"
	"strings"
	"time"

	"servehours.org/internal/auth"
	"servehours.org/internal/ids"
	"servehours.org/internal/obs"
)

// WorkflowOption configures Workflow behavior.
type WorkflowOption func(*Workflow)

// WithWorkflowClock overrides the time source (useful for tests).
func WithWorkflowClock(fn func() time.Time) WorkflowOption {
	return func(w *Workflow) {
		if fn != nil {
			w.now = fn
		}
	}
}

// Workflow is the review state machine: pending entries transition exactly
// once to an archived approved/rejected record, signed by the reviewer.
type Workflow struct {
	store Store
	now   func() time.Time
}

// NewWorkflow constructs a Workflow over the given store.
func NewWorkflow(store Store, opts ...WorkflowOption) *Workflow {
	w := &Workflow{store: store, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Review transitions one pending entry to the archive.
//
// The reviewer must be an admin whose opportunity assignment covers the
// entry, the signature must be non-empty, and the entry must still be in the
// active set. When two reviewers race, the store's archive step guarantees
// only one succeeds; the loser observes ErrNotPending and must not treat it
// as fatal.
func (w *Workflow) Review(ctx context.Context, reviewer *auth.Principal, entryID string, decision Decision, comment, signature string) (Archived, error) {
	if !decision.valid() {
		return Archived{}, invalidField("decision", "must be approved or rejected")
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return Archived{}, invalidField("signature", "reviewer signature is required")
	}

	entry, err := w.store.Get(ctx, entryID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Archived{}, ErrNotPending
		}
		return Archived{}, err
	}

	if !auth.CanAccess(reviewer, auth.AdminForOpportunity(entry.OpportunityID)) {
		return Archived{}, ErrUnauthorized
	}

	now := w.now().UTC()
	rec := Archived{
		ID:              ids.New(),
		OriginalHoursID: entry.ID,
		UserID:          entry.UserID,
		Date:            entry.Date,
		Hours:           entry.Hours,
		CustomTitle:     entry.CustomTitle,
		Description:     entry.Description,
		ProofURL:        entry.ProofURL,
		Status:          Status(decision),
		ReviewComment:   strings.TrimSpace(comment),
		AdminSignature:  signature,
		SubmittedAt:     entry.SubmittedAt,
		ApprovedBy:      reviewer.ID,
		ProcessedAt:     now,
	}
	if decision == DecisionApproved {
		approvedAt := now
		rec.ApprovedAt = &approvedAt
	}

	if err := w.store.Archive(ctx, rec); err != nil {
		return Archived{}, err
	}

	obs.ObserveReview(string(decision))
	obs.Event("info", "hours reviewed", map[string]any{
		"entry_id":    entry.ID,
		"decision":    string(decision),
		"reviewer_id": reviewer.ID,
	})
	return rec, nil
}

// ListPending returns pending entries visible to the reviewer, scoped to the
// reviewer's opportunity assignment, most recent submission first. The
// ordering is part of the contract, not incidental.
func (w *Workflow) ListPending(ctx context.Context, reviewer *auth.Principal) ([]Entry, error) {
	if !auth.CanAccess(reviewer, auth.AdminOnly()) {
		return nil, ErrUnauthorized
	}
	return w.store.ListPending(ctx, PendingFilter{OpportunityID: reviewer.OpportunityID})
}

// Reconcile completes half-finished archives: an active entry whose id
// already has an archive row is a known inconsistency from a failed delete,
// and the only safe continuation is to finish the removal.
func (w *Workflow) Reconcile(ctx context.Context) (int, error) {
	n, err := w.store.ReconcileArchived(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		obs.Event("warn", "reconciled orphaned entries", map[string]any{"count": n})
	}
	return n, nil
}
