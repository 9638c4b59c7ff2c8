// Package invite implements the invitation lifecycle: issuing scoped,
// time-boxed, single-use tokens, redeeming them for memberships, and the
// expiry sweep. All invitation and membership writes in the system flow
// through this package.
package invite

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"workhub-backend/pkg/access"
	"workhub-backend/pkg/audit"
	"workhub-backend/pkg/database"
	"workhub-backend/pkg/models"
	"workhub-backend/pkg/utils"
)

// DefaultTTL is the invitation expiry horizon when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

// tokenBytes of raw randomness per token (base64url encoded on the wire).
const tokenBytes = 32

// IssueRequest carries everything needed to create an invitation.
type IssueRequest struct {
	IssuerID         string
	WorkspaceID      string
	Email            string
	Role             models.Role
	PositionID       *string
	ViewerScopeType  *models.ViewerScopeType
	ViewerScopeRefID *string
}

// Lifecycle issues, redeems and expires invitations. It owns no state of its
// own; all invariants are enforced through the store's constraints so the
// guarantees hold across service instances.
type Lifecycle struct {
	db       database.Store
	engine   *access.Engine
	recorder *audit.Recorder
	ttl      time.Duration
}

func NewLifecycle(db database.Store, engine *access.Engine, recorder *audit.Recorder, ttl time.Duration) *Lifecycle {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Lifecycle{db: db, engine: engine, recorder: recorder, ttl: ttl}
}

// hardConstraints are structural rules checked before any privilege
// evaluation. They are independent validators on purpose: no future
// privilege-escalation path can route around them, because the issuer's role
// is not an input.
var hardConstraints = []func(*IssueRequest) *Error{
	func(req *IssueRequest) *Error {
		if req.PositionID != nil && req.Role == models.RoleOwner {
			return newError(CodeStructuralForbidden, "owner role cannot be granted through a position invitation")
		}
		return nil
	},
	func(req *IssueRequest) *Error {
		if !req.Role.Valid() {
			return newError(CodeValidation, "unknown role")
		}
		return nil
	},
	func(req *IssueRequest) *Error {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return newError(CodeValidation, "invalid email address")
		}
		return nil
	},
	func(req *IssueRequest) *Error {
		if req.ViewerScopeType == nil {
			return nil
		}
		if req.Role != models.RoleViewer {
			return newError(CodeValidation, "viewer scope is only valid for viewer invitations")
		}
		if !req.ViewerScopeType.Valid() {
			return newError(CodeValidation, "unknown viewer scope type")
		}
		if req.ViewerScopeType.RequiresRef() && (req.ViewerScopeRefID == nil || *req.ViewerScopeRefID == "") {
			return newError(CodeScopeRefRequired, "viewer scope requires a reference id")
		}
		return nil
	},
}

// Issue creates a new invitation, atomically revoking any still-active one
// for the same (workspace, email). The returned invitation carries the token;
// this is the only time it is ever exposed.
func (l *Lifecycle) Issue(ctx context.Context, req IssueRequest) (*models.Invitation, error) {
	req.Email = models.NormalizeEmail(req.Email)

	for _, constraint := range hardConstraints {
		if cerr := constraint(&req); cerr != nil {
			return nil, cerr
		}
	}

	decision, err := l.engine.Check(ctx, access.CheckRequest{
		ActorID:               req.IssuerID,
		WorkspaceID:           req.WorkspaceID,
		RequiredWorkspaceRole: models.RoleAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("issue: %w", err)
	}
	if !decision.Allowed {
		if decision.Reason == access.ReasonNotFound {
			return nil, newError(CodeNotFound, "workspace not found")
		}
		return nil, newError(CodeForbidden, "admin role required to invite members")
	}

	if req.PositionID != nil {
		pos, err := l.db.GetPosition(ctx, *req.PositionID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, newError(CodePositionNotFound, "position not found")
			}
			return nil, fmt.Errorf("issue: get position: %w", err)
		}
		if pos.WorkspaceID != req.WorkspaceID {
			return nil, newError(CodePositionNotFound, "position not found in workspace")
		}
		if pos.Occupied() {
			return nil, newError(CodePositionOccupied, "position is already occupied")
		}
	}

	if err := l.rejectExistingMember(ctx, req.WorkspaceID, req.Email); err != nil {
		return nil, err
	}

	token, err := utils.GenerateURLToken(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("issue: generate token: %w", err)
	}

	inv := &models.Invitation{
		WorkspaceID:      req.WorkspaceID,
		PositionID:       req.PositionID,
		Email:            req.Email,
		Role:             req.Role,
		ViewerScopeType:  req.ViewerScopeType,
		ViewerScopeRefID: req.ViewerScopeRefID,
		Token:            token,
		IssuerID:         req.IssuerID,
		IssuerRole:       decision.EffectiveWorkspaceRole,
		ExpiresAt:        time.Now().Add(l.ttl),
	}

	superseded, err := l.db.IssueInvitation(ctx, inv)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, newError(CodeConflict, "concurrent invitation for this email, retry")
		}
		return nil, fmt.Errorf("issue: %w", err)
	}

	if superseded != nil {
		audit.Warn("invitation.revoked", l.recorder.Record(ctx, req.WorkspaceID, req.IssuerID,
			models.AuditInvitationRevoked, "invitation", superseded.ID,
			map[string]interface{}{"status": models.InvitationPending},
			map[string]interface{}{"status": superseded.Status, "revoked_at": superseded.RevokedAt},
			map[string]interface{}{"superseded_by": inv.ID}))
	}
	audit.Warn("invitation.issued", l.recorder.Record(ctx, req.WorkspaceID, req.IssuerID,
		models.AuditInvitationIssued, "invitation", inv.ID,
		nil, inv,
		map[string]interface{}{"email": models.RedactEmail(inv.Email), "role": inv.Role, "position_id": inv.PositionID}))

	return inv, nil
}

// rejectExistingMember fails issuance when the email already belongs to an
// active member (or the owner) of the workspace.
func (l *Lifecycle) rejectExistingMember(ctx context.Context, workspaceID, email string) error {
	user, err := l.db.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("issue: lookup user: %w", err)
	}

	ws, err := l.db.GetWorkspace(ctx, workspaceID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("issue: lookup workspace: %w", err)
	}
	if err == nil && ws.OwnerID == user.ID {
		return newError(CodeAlreadyMember, "user is already a member of this workspace")
	}

	if _, err := l.db.GetWorkspaceMembership(ctx, workspaceID, user.ID); err == nil {
		return newError(CodeAlreadyMember, "user is already a member of this workspace")
	} else if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("issue: lookup membership: %w", err)
	}
	return nil
}

// Redeem exchanges a token for a workspace membership (and position occupancy
// when position-scoped). All writes happen in one store transaction; under
// concurrent redemption exactly one caller wins and the rest observe
// ALREADY_ACCEPTED.
func (l *Lifecycle) Redeem(ctx context.Context, token, actorID string) (*models.WorkspaceMembership, error) {
	now := time.Now()
	inv, membership, err := l.db.RedeemInvitation(ctx, token, actorID, now)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			return nil, newError(CodeInvalidToken, "invitation not found")
		case errors.Is(err, database.ErrPositionOccupied):
			return nil, newError(CodePositionOccupied, "position was filled before redemption")
		case errors.Is(err, database.ErrPositionGone):
			return nil, newError(CodePositionNotFound, "position no longer exists")
		case errors.Is(err, database.ErrNotPending):
			return nil, l.classifyTerminal(ctx, token, now)
		default:
			return nil, fmt.Errorf("redeem: %w", err)
		}
	}

	audit.Warn("invitation.accepted", l.recorder.Record(ctx, inv.WorkspaceID, actorID,
		models.AuditInvitationAccepted, "invitation", inv.ID,
		map[string]interface{}{"status": models.InvitationPending}, inv, nil))
	audit.Warn("member.joined", l.recorder.Record(ctx, inv.WorkspaceID, actorID,
		models.AuditMemberJoined, "workspace_membership", membership.ID,
		nil, membership, map[string]interface{}{"invitation_id": inv.ID}))
	if inv.PositionID != nil {
		audit.Warn("position.filled", l.recorder.Record(ctx, inv.WorkspaceID, actorID,
			models.AuditPositionFilled, "org_position", *inv.PositionID,
			nil, map[string]interface{}{"user_id": actorID}, map[string]interface{}{"invitation_id": inv.ID}))
	}

	return membership, nil
}

// classifyTerminal turns a lost conditional update into the precise error:
// a second redemption reports ALREADY_ACCEPTED, a superseded token REVOKED,
// a stale one EXPIRED.
func (l *Lifecycle) classifyTerminal(ctx context.Context, token string, now time.Time) error {
	inv, err := l.db.GetInvitationByToken(ctx, token)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return newError(CodeInvalidToken, "invitation not found")
		}
		return fmt.Errorf("redeem: reload invitation: %w", err)
	}
	switch inv.Status {
	case models.InvitationAccepted:
		return newError(CodeAlreadyAccepted, "invitation was already accepted")
	case models.InvitationRevoked:
		return newError(CodeRevoked, "invitation was revoked")
	case models.InvitationExpired:
		return newError(CodeExpired, "invitation has expired")
	case models.InvitationPending:
		// Pending but the conditional update refused it: past expiry.
		if !now.Before(inv.ExpiresAt) {
			return newError(CodeExpired, "invitation has expired")
		}
	}
	return newError(CodeInvalidToken, "invitation is not redeemable")
}

// Expire marks every pending invitation past its horizon as expired. Purely
// bookkeeping for listing views: Redeem checks expiry on its own, so the
// sweep is safe to skip, repeat, or run concurrently with Issue/Redeem.
func (l *Lifecycle) Expire(ctx context.Context, now time.Time) (int, error) {
	n, err := l.db.ExpireInvitations(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("expire: %w", err)
	}
	return n, nil
}

// ListActive returns the workspace's redeemable invitations. Tokens are never
// included (the model strips them from JSON, and callers must not read
// inv.Token here).
func (l *Lifecycle) ListActive(ctx context.Context, workspaceID string) ([]models.Invitation, error) {
	return l.db.ListActiveInvitations(ctx, workspaceID)
}
