// Package access holds the decision engine that reconciles workspace roles,
// project-space visibility and project roles into a single allow/deny answer.
// Every permission question in the backend goes through Engine.Check; handlers
// never compare roles themselves.
package access

import (
	"context"
	"errors"
	"fmt"

	"workhub-backend/pkg/database"
	"workhub-backend/pkg/models"
)

// ReasonCode explains a decision. Codes are stable: clients and tests match
// on them, never on message text.
type ReasonCode string

const (
	ReasonOK ReasonCode = "OK"
	// ReasonNotFound: the workspace or project does not exist, or the project
	// belongs to a different workspace than the one being checked.
	ReasonNotFound                  ReasonCode = "NOT_FOUND"
	ReasonNotAMember                ReasonCode = "NOT_A_MEMBER"
	ReasonInsufficientWorkspaceRole ReasonCode = "INSUFFICIENT_WORKSPACE_ROLE"
	ReasonOutsideTargetedSpace      ReasonCode = "OUTSIDE_TARGETED_SPACE"
	ReasonInsufficientProjectRole   ReasonCode = "INSUFFICIENT_PROJECT_ROLE"
)

// RoleSource tags where an effective project role came from, which keeps the
// fallback chain debuggable and auditable.
type RoleSource string

const (
	// SourceExplicit: an explicit ProjectMembership row.
	SourceExplicit RoleSource = "explicit"
	// SourceVisibilityFallback: no row; access granted through workspace
	// membership and the space's visibility, synthesized as viewer.
	SourceVisibilityFallback RoleSource = "visibility-fallback"
	// SourceCreatorFallback: no row; the actor is the project's creator or
	// owner. The only path by which an absent row yields more than viewer;
	// it exists for records created before membership rows were guaranteed.
	SourceCreatorFallback RoleSource = "creator-fallback"
)

// Decision is the result of a Check. A denial is a value, not an error:
// errors are reserved for infrastructure faults (store unreachable), which
// callers must treat as "unknown", never as "denied" and never as "allowed".
type Decision struct {
	Allowed                bool        `json:"allowed"`
	Reason                 ReasonCode  `json:"reason"`
	EffectiveWorkspaceRole models.Role `json:"effective_workspace_role,omitempty"`
	EffectiveProjectRole   models.Role `json:"effective_project_role,omitempty"`
	ProjectRoleSource      RoleSource  `json:"project_role_source,omitempty"`
}

// CheckRequest names the scope being tested. ProjectID is optional; when set,
// RequiredProjectRole is compared against the resolved effective role.
type CheckRequest struct {
	ActorID               string
	WorkspaceID           string
	RequiredWorkspaceRole models.Role
	ProjectID             string
	RequiredProjectRole   models.Role
}

// Engine answers access questions. It is read-only and safe to call
// speculatively; it takes no locks and performs no writes.
type Engine struct {
	db database.Store
}

func NewEngine(db database.Store) *Engine {
	return &Engine{db: db}
}

func deny(reason ReasonCode) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Check runs the workspace-scope gate and, when a project is named, the
// project-scope gates:
//
//  1. workspace membership (the workspace owner holds an implicit owner
//     membership even without a row),
//  2. the space visibility gate (targeted spaces admit only space members and
//     the project's creator/owner, regardless of workspace role),
//  3. role resolution (explicit row > creator/owner fallback > synthesized
//     viewer), compared against the required project role.
func (e *Engine) Check(ctx context.Context, req CheckRequest) (Decision, error) {
	ws, err := e.db.GetWorkspace(ctx, req.WorkspaceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return deny(ReasonNotFound), nil
		}
		return Decision{}, fmt.Errorf("check workspace: %w", err)
	}

	wsRole, ok, err := e.workspaceRole(ctx, ws, req.ActorID)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return deny(ReasonNotAMember), nil
	}
	if !wsRole.AtLeast(req.RequiredWorkspaceRole) {
		return deny(ReasonInsufficientWorkspaceRole), nil
	}

	decision := Decision{Allowed: true, Reason: ReasonOK, EffectiveWorkspaceRole: wsRole}
	if req.ProjectID == "" {
		return decision, nil
	}

	project, err := e.db.GetProject(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return deny(ReasonNotFound), nil
		}
		return Decision{}, fmt.Errorf("check project: %w", err)
	}
	// A project can only be checked through its own workspace; a reference
	// from another tenant is indistinguishable from the project not existing.
	if project.WorkspaceID != req.WorkspaceID {
		return deny(ReasonNotFound), nil
	}

	passed, err := e.visibilityGate(ctx, project, req.ActorID)
	if err != nil {
		return Decision{}, err
	}
	if !passed {
		return deny(ReasonOutsideTargetedSpace), nil
	}

	role, source, err := e.resolveProjectRole(ctx, project, req.ActorID)
	if err != nil {
		return Decision{}, err
	}
	if !role.AtLeast(req.RequiredProjectRole) {
		return deny(ReasonInsufficientProjectRole), nil
	}

	decision.EffectiveProjectRole = role
	decision.ProjectRoleSource = source
	return decision, nil
}

// workspaceRole resolves the actor's workspace role, covering the bootstrap
// case where the owner has no membership row yet.
func (e *Engine) workspaceRole(ctx context.Context, ws *models.Workspace, actorID string) (models.Role, bool, error) {
	m, err := e.db.GetWorkspaceMembership(ctx, ws.ID, actorID)
	if err == nil {
		return m.Role, true, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return "", false, fmt.Errorf("check membership: %w", err)
	}
	if ws.OwnerID == actorID {
		return models.RoleOwner, true, nil
	}
	return "", false, nil
}

// visibilityGate applies the space policy. A project with no space (or a
// dangling space reference on a legacy row) is treated as public.
func (e *Engine) visibilityGate(ctx context.Context, project *models.Project, actorID string) (bool, error) {
	if project.SpaceID == nil {
		return true, nil
	}
	space, err := e.db.GetProjectSpace(ctx, *project.SpaceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("check space: %w", err)
	}
	if space.Visibility != models.VisibilityTargeted {
		return true, nil
	}

	if isCreatorOrOwner(project, actorID) {
		return true, nil
	}
	_, err = e.db.GetProjectSpaceMembership(ctx, space.ID, actorID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("check space membership: %w", err)
}

// resolveProjectRole always produces a concrete role: an explicit membership
// row is authoritative; without one the creator/owner resolves to owner and
// everyone else who passed the visibility gate resolves to viewer. Never
// escalates silently.
func (e *Engine) resolveProjectRole(ctx context.Context, project *models.Project, actorID string) (models.Role, RoleSource, error) {
	m, err := e.db.GetProjectMembership(ctx, project.ID, actorID)
	if err == nil {
		return m.Role, SourceExplicit, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return "", "", fmt.Errorf("check project membership: %w", err)
	}
	if isCreatorOrOwner(project, actorID) {
		return models.RoleOwner, SourceCreatorFallback, nil
	}
	return models.RoleViewer, SourceVisibilityFallback, nil
}

func isCreatorOrOwner(project *models.Project, actorID string) bool {
	if project.CreatedByID == actorID {
		return true
	}
	return project.OwnerID != nil && *project.OwnerID == actorID
}
