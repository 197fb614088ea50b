package auth

import (
	"context"
	"strconv"
)

// Profile is the users-table row backing a principal.
type Profile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	Grade         int    `json:"grade"`
	IsAdmin       bool   `json:"is_admin"`
	OpportunityID string `json:"opportunity_id,omitempty"`
}

// ProfileStore reads user profiles from the record store.
type ProfileStore interface {
	Find(ctx context.Context, id string) (*Profile, error)
}

// ProfileWriter provisions user profiles in the record store. Sign-up writes
// the row the resolver later reads; without it an account exists only inside
// the credential provider.
type ProfileWriter interface {
	Save(ctx context.Context, p Profile) error
}

// Principal is the role-bearing identity every gated operation receives. It
// is rebuilt wholesale from each session-changed event, never patched.
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Grade    string `json:"grade,omitempty"`
	IsAdmin  bool   `json:"is_admin"`

	// OpportunityID scopes an admin reviewer to a single opportunity.
	// Empty means unrestricted.
	OpportunityID string `json:"opportunity_id,omitempty"`
}

// Resolver turns a verified session into a principal via a profile lookup.
type Resolver struct {
	profiles ProfileStore
}

// NewResolver constructs a Resolver over the given profile store.
func NewResolver(profiles ProfileStore) *Resolver {
	return &Resolver{profiles: profiles}
}

// Resolve loads the profile for the session's user. When the lookup fails the
// principal is built from the session's own claims instead, with admin rights
// and opportunity scope withheld.
func (r *Resolver) Resolve(ctx context.Context, session *Session) Principal {
	if r.profiles != nil {
		if profile, err := r.profiles.Find(ctx, session.UserID); err == nil {
			return Principal{
				ID:            session.UserID,
				Email:         session.Email,
				FullName:      profile.FullName,
				Grade:         strconv.Itoa(profile.Grade),
				IsAdmin:       profile.IsAdmin,
				OpportunityID: profile.OpportunityID,
			}
		}
	}
	return PrincipalFromSession(session)
}

// PrincipalFromSession is the typed fallback constructor: it maps only the
// known metadata fields and never grants admin rights.
func PrincipalFromSession(session *Session) Principal {
	return Principal{
		ID:       session.UserID,
		Email:    session.Email,
		FullName: session.Metadata["full_name"],
		Grade:    session.Metadata["grade"],
		IsAdmin:  false,
	}
}
