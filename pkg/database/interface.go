package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workhub-backend/pkg/models"
)

// Sentinel errors returned by Store implementations. Callers map these onto
// the public error taxonomy; the store layer stays ignorant of HTTP.
var (
	// ErrNotFound: the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a uniqueness constraint rejected the write. Retryable once.
	ErrConflict = errors.New("conflict")
	// ErrNotPending: a conditional invitation update found the row already in
	// a terminal state (accepted, revoked or expired).
	ErrNotPending = errors.New("invitation not pending")
	// ErrPositionOccupied: conditional position occupancy found a holder.
	ErrPositionOccupied = errors.New("position occupied")
	// ErrPositionGone: a position-scoped redemption found the position row
	// deleted since issuance.
	ErrPositionGone = errors.New("position no longer exists")
)

// AuditFilter narrows an audit query. WorkspaceID is required; the rest are
// optional ("" means no filter). Limit is clamped by the caller.
type AuditFilter struct {
	WorkspaceID string
	EntityType  string
	ActorID     string
	Action      string
	Limit       int
}

// Store is the persistence boundary of the core. Membership and invitation
// rows are written only through the lifecycle operations that call it; no
// other code path mutates them.
//
// All methods take a context so callers can apply timeouts/cancellation.
// Implementations guarantee that a cancelled write lands entirely or not at
// all (single statement or transaction).
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Workspaces & memberships
	CreateWorkspace(ctx context.Context, ws *models.Workspace) error
	GetWorkspace(ctx context.Context, id string) (*models.Workspace, error)
	ListUserWorkspaces(ctx context.Context, userID string) ([]models.Workspace, error)
	PutWorkspaceMembership(ctx context.Context, m *models.WorkspaceMembership) error
	GetWorkspaceMembership(ctx context.Context, workspaceID, userID string) (*models.WorkspaceMembership, error)
	ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]models.WorkspaceMembership, error)

	// Projects, spaces & their memberships
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	CreateProjectSpace(ctx context.Context, s *models.ProjectSpace) error
	GetProjectSpace(ctx context.Context, id string) (*models.ProjectSpace, error)
	PutProjectSpaceMembership(ctx context.Context, m *models.ProjectSpaceMembership) error
	GetProjectSpaceMembership(ctx context.Context, spaceID, userID string) (*models.ProjectSpaceMembership, error)
	PutProjectMembership(ctx context.Context, m *models.ProjectMembership) error
	GetProjectMembership(ctx context.Context, projectID, userID string) (*models.ProjectMembership, error)

	// Org positions
	CreatePosition(ctx context.Context, p *models.OrgPosition) error
	GetPosition(ctx context.Context, id string) (*models.OrgPosition, error)

	// Invitations. IssueInvitation atomically revokes any active invitation
	// for the same (workspace, normalized email) and inserts inv; it returns
	// the superseded invitation, if there was one. RedeemInvitation performs
	// the conditional pending→accepted transition together with the
	// membership insert (and position occupancy when position-scoped) in a
	// single transaction; exactly one concurrent caller wins, the rest get
	// ErrNotPending.
	IssueInvitation(ctx context.Context, inv *models.Invitation) (superseded *models.Invitation, err error)
	GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error)
	ListActiveInvitations(ctx context.Context, workspaceID string) ([]models.Invitation, error)
	RedeemInvitation(ctx context.Context, token, userID string, now time.Time) (*models.Invitation, *models.WorkspaceMembership, error)
	ExpireInvitations(ctx context.Context, now time.Time) (int, error)

	// Audit (append-only; no update or delete exists)
	InsertAuditEntry(ctx context.Context, e *models.AuditLogEntry) error
	QueryAuditEntries(ctx context.Context, f AuditFilter) ([]models.AuditLogEntry, error)

	HealthCheck() error
	Close() error
}

// StoreConfig selects and parameterizes the Store implementation.
type StoreConfig struct {
	UseMemoryDB bool
	PostgresDSN string
	Debug       bool
}

// NewStore picks the Store implementation for the given configuration:
// Postgres when a DSN is configured, otherwise the in-memory store (dev and
// tests only).
func NewStore(config StoreConfig) (Store, error) {
	if config.PostgresDSN != "" && !config.UseMemoryDB {
		fmt.Printf("[info] using PostgreSQL store\n")
		return NewPostgresStore(config.PostgresDSN)
	}
	if config.UseMemoryDB {
		fmt.Printf("[info] using in-memory store (non-durable)\n")
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("no store configured: set POSTGRES_DSN or USE_MEMORY_DB")
}
