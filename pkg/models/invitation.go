package models

import (
	"strings"
	"time"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
	InvitationExpired  InvitationStatus = "expired"
)

// ViewerScopeType narrows a viewer invitation to a subset of the workspace.
type ViewerScopeType string

const (
	// ViewerScopeWorkspace: plain workspace-wide viewer, no reference id.
	ViewerScopeWorkspace ViewerScopeType = "workspace"
	// ViewerScopeProject: viewer limited to one project; requires a ref id.
	ViewerScopeProject ViewerScopeType = "project"
	// ViewerScopeProjectSpace: viewer limited to one space; requires a ref id.
	ViewerScopeProjectSpace ViewerScopeType = "project_space"
)

// RequiresRef reports whether the scope kind must carry a reference id.
func (t ViewerScopeType) RequiresRef() bool {
	return t == ViewerScopeProject || t == ViewerScopeProjectSpace
}

// Valid reports whether t is a known scope kind.
func (t ViewerScopeType) Valid() bool {
	switch t {
	case ViewerScopeWorkspace, ViewerScopeProject, ViewerScopeProjectSpace:
		return true
	}
	return false
}

// Invitation is a token-bearing offer to join a workspace at a given role,
// optionally tied to an org position and/or narrowed by a viewer scope.
//
// The token is the sole redemption credential. It is returned to the issuer
// exactly once at creation and is excluded from JSON on every read path.
type Invitation struct {
	ID               string           `json:"id" db:"id"`
	WorkspaceID      string           `json:"workspace_id" db:"workspace_id"`
	PositionID       *string          `json:"position_id,omitempty" db:"position_id"`
	Email            string           `json:"email" db:"email"`
	Role             Role             `json:"role" db:"role"`
	ViewerScopeType  *ViewerScopeType `json:"viewer_scope_type,omitempty" db:"viewer_scope_type"`
	ViewerScopeRefID *string          `json:"viewer_scope_ref_id,omitempty" db:"viewer_scope_ref_id"`
	Token            string           `json:"-" db:"token"`
	IssuerID         string           `json:"issuer_id" db:"issuer_id"`
	IssuerRole       Role             `json:"issuer_role" db:"issuer_role"`
	Status           InvitationStatus `json:"status" db:"status"`
	ExpiresAt        time.Time        `json:"expires_at" db:"expires_at"`
	AcceptedAt       *time.Time       `json:"accepted_at,omitempty" db:"accepted_at"`
	AcceptedBy       *string          `json:"accepted_by,omitempty" db:"accepted_by"`
	RevokedAt        *time.Time       `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// Active reports whether the invitation can still be redeemed at `now`.
func (inv *Invitation) Active(now time.Time) bool {
	return inv.Status == InvitationPending && now.Before(inv.ExpiresAt)
}

// NormalizeEmail lowercases and trims an email address so uniqueness checks
// see one canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RedactEmail keeps only the domain part for log lines.
func RedactEmail(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return "***" + email[i:]
	}
	return "***"
}
