package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"workhub-backend/pkg/models"

	"github.com/lib/pq"
)

// PostgresStore implements Store on top of PostgreSQL. The cross-instance
// invariants (one membership per (workspace, user), one active invitation per
// (workspace, email), single-winner redemption) are enforced by the schema's
// unique indexes and conditional updates, not by in-process locking.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a PostgreSQL connection.
func NewPostgresStore(dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	// Pool sizing suited to serverless invocations
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// isUniqueViolation reports whether err is a unique-constraint rejection.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullStr(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// ==== Users ====

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (email, name, avatar, created_at, updated_at)
        VALUES ($1, $2, $3, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := s.db.QueryRowContext(ctx, query, models.NormalizeEmail(user.Email), user.Name, user.Avatar).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
        SELECT id, email, COALESCE(name,''), COALESCE(avatar,''), created_at, updated_at
        FROM users WHERE id = $1
    `, id).Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
        SELECT id, email, COALESCE(name,''), COALESCE(avatar,''), created_at, updated_at
        FROM users WHERE email = $1
    `, models.NormalizeEmail(email)).Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// ==== Workspaces & memberships ====

func (s *PostgresStore) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	query := `
        INSERT INTO workspaces (name, owner_id, description, avatar, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := s.db.QueryRowContext(ctx, query, ws.Name, ws.OwnerID, ws.Description, ws.Avatar).
		Scan(&ws.ID, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	var ws models.Workspace
	err := s.db.QueryRowContext(ctx, `
        SELECT id, name, owner_id, COALESCE(description,''), COALESCE(avatar,''), created_at, updated_at
        FROM workspaces WHERE id = $1
    `, id).Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.Description, &ws.Avatar, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return &ws, nil
}

func (s *PostgresStore) ListUserWorkspaces(ctx context.Context, userID string) ([]models.Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT DISTINCT w.id, w.name, w.owner_id, COALESCE(w.description,''), COALESCE(w.avatar,''), w.created_at, w.updated_at
        FROM workspaces w
        LEFT JOIN workspace_memberships m ON m.workspace_id = w.id
        WHERE w.owner_id = $1 OR m.user_id = $1
        ORDER BY w.created_at ASC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()
	var result []models.Workspace
	for rows.Next() {
		var ws models.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.Description, &ws.Avatar, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, ws)
	}
	return result, rows.Err()
}

func (s *PostgresStore) PutWorkspaceMembership(ctx context.Context, m *models.WorkspaceMembership) error {
	query := `
        INSERT INTO workspace_memberships (workspace_id, user_id, role, created_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (workspace_id, user_id) DO UPDATE SET role = EXCLUDED.role
        RETURNING id, created_at
    `
	return s.db.QueryRowContext(ctx, query, m.WorkspaceID, m.UserID, string(m.Role)).
		Scan(&m.ID, &m.CreatedAt)
}

func (s *PostgresStore) GetWorkspaceMembership(ctx context.Context, workspaceID, userID string) (*models.WorkspaceMembership, error) {
	var m models.WorkspaceMembership
	var role string
	err := s.db.QueryRowContext(ctx, `
        SELECT id, workspace_id, user_id, role, created_at
        FROM workspace_memberships WHERE workspace_id = $1 AND user_id = $2
    `, workspaceID, userID).Scan(&m.ID, &m.WorkspaceID, &m.UserID, &role, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	m.Role = models.Role(role)
	return &m, nil
}

func (s *PostgresStore) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]models.WorkspaceMembership, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, workspace_id, user_id, role, created_at
        FROM workspace_memberships WHERE workspace_id = $1
        ORDER BY created_at ASC
    `, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()
	var result []models.WorkspaceMembership
	for rows.Next() {
		var m models.WorkspaceMembership
		var role string
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &role, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = models.Role(role)
		result = append(result, m)
	}
	return result, rows.Err()
}

// ==== Projects & spaces ====

func (s *PostgresStore) CreateProject(ctx context.Context, p *models.Project) error {
	query := `
        INSERT INTO projects (workspace_id, space_id, name, description, created_by_id, owner_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := s.db.QueryRowContext(ctx, query, p.WorkspaceID, nullStr(p.SpaceID), p.Name, p.Description, p.CreatedByID, nullStr(p.OwnerID)).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	var spaceID, ownerID sql.NullString
	err := s.db.QueryRowContext(ctx, `
        SELECT id, workspace_id, space_id, name, COALESCE(description,''), created_by_id, owner_id, created_at, updated_at
        FROM projects WHERE id = $1
    `, id).Scan(&p.ID, &p.WorkspaceID, &spaceID, &p.Name, &p.Description, &p.CreatedByID, &ownerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	p.SpaceID = strPtr(spaceID)
	p.OwnerID = strPtr(ownerID)
	return &p, nil
}

func (s *PostgresStore) CreateProjectSpace(ctx context.Context, sp *models.ProjectSpace) error {
	query := `
        INSERT INTO project_spaces (workspace_id, name, visibility, created_at, updated_at)
        VALUES ($1, $2, $3, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := s.db.QueryRowContext(ctx, query, sp.WorkspaceID, sp.Name, string(sp.Visibility)).
		Scan(&sp.ID, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project space: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProjectSpace(ctx context.Context, id string) (*models.ProjectSpace, error) {
	var sp models.ProjectSpace
	var visibility string
	err := s.db.QueryRowContext(ctx, `
        SELECT id, workspace_id, name, visibility, created_at, updated_at
        FROM project_spaces WHERE id = $1
    `, id).Scan(&sp.ID, &sp.WorkspaceID, &sp.Name, &visibility, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project space: %w", err)
	}
	sp.Visibility = models.SpaceVisibility(visibility)
	return &sp, nil
}

func (s *PostgresStore) PutProjectSpaceMembership(ctx context.Context, m *models.ProjectSpaceMembership) error {
	query := `
        INSERT INTO project_space_memberships (space_id, user_id, created_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (space_id, user_id) DO NOTHING
    `
	if _, err := s.db.ExecContext(ctx, query, m.SpaceID, m.UserID); err != nil {
		return fmt.Errorf("failed to put space membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProjectSpaceMembership(ctx context.Context, spaceID, userID string) (*models.ProjectSpaceMembership, error) {
	var m models.ProjectSpaceMembership
	err := s.db.QueryRowContext(ctx, `
        SELECT id, space_id, user_id, created_at
        FROM project_space_memberships WHERE space_id = $1 AND user_id = $2
    `, spaceID, userID).Scan(&m.ID, &m.SpaceID, &m.UserID, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get space membership: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) PutProjectMembership(ctx context.Context, m *models.ProjectMembership) error {
	query := `
        INSERT INTO project_memberships (project_id, user_id, role, created_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role
        RETURNING id, created_at
    `
	return s.db.QueryRowContext(ctx, query, m.ProjectID, m.UserID, string(m.Role)).
		Scan(&m.ID, &m.CreatedAt)
}

func (s *PostgresStore) GetProjectMembership(ctx context.Context, projectID, userID string) (*models.ProjectMembership, error) {
	var m models.ProjectMembership
	var role string
	err := s.db.QueryRowContext(ctx, `
        SELECT id, project_id, user_id, role, created_at
        FROM project_memberships WHERE project_id = $1 AND user_id = $2
    `, projectID, userID).Scan(&m.ID, &m.ProjectID, &m.UserID, &role, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project membership: %w", err)
	}
	m.Role = models.Role(role)
	return &m, nil
}

// ==== Org positions ====

func (s *PostgresStore) CreatePosition(ctx context.Context, p *models.OrgPosition) error {
	query := `
        INSERT INTO org_positions (workspace_id, title, user_id, created_at, updated_at)
        VALUES ($1, $2, $3, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := s.db.QueryRowContext(ctx, query, p.WorkspaceID, p.Title, nullStr(p.UserID)).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create position: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, id string) (*models.OrgPosition, error) {
	var p models.OrgPosition
	var userID sql.NullString
	err := s.db.QueryRowContext(ctx, `
        SELECT id, workspace_id, title, user_id, created_at, updated_at
        FROM org_positions WHERE id = $1
    `, id).Scan(&p.ID, &p.WorkspaceID, &p.Title, &userID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	p.UserID = strPtr(userID)
	return &p, nil
}

// ==== Invitations ====

const invitationColumns = `id, workspace_id, position_id, email, role, viewer_scope_type, viewer_scope_ref_id,
       token, issuer_id, issuer_role, status, expires_at, accepted_at, accepted_by, revoked_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvitation(row rowScanner) (*models.Invitation, error) {
	var inv models.Invitation
	var positionID, scopeType, scopeRef, acceptedBy sql.NullString
	var role, issuerRole, status string
	var acceptedAt, revokedAt sql.NullTime
	err := row.Scan(&inv.ID, &inv.WorkspaceID, &positionID, &inv.Email, &role, &scopeType, &scopeRef,
		&inv.Token, &inv.IssuerID, &issuerRole, &status, &inv.ExpiresAt, &acceptedAt, &acceptedBy, &revokedAt,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inv.PositionID = strPtr(positionID)
	inv.Role = models.Role(role)
	inv.IssuerRole = models.Role(issuerRole)
	inv.Status = models.InvitationStatus(status)
	inv.AcceptedAt = timePtr(acceptedAt)
	inv.AcceptedBy = strPtr(acceptedBy)
	inv.RevokedAt = timePtr(revokedAt)
	if scopeType.Valid {
		st := models.ViewerScopeType(scopeType.String)
		inv.ViewerScopeType = &st
	}
	inv.ViewerScopeRefID = strPtr(scopeRef)
	return &inv, nil
}

// IssueInvitation revokes any still-pending invitation for the same
// (workspace, email) and inserts the new one in a single transaction. The
// partial unique index on (workspace_id, email) WHERE status='pending'
// serializes concurrent issuers: the loser's insert fails with ErrConflict.
func (s *PostgresStore) IssueInvitation(ctx context.Context, inv *models.Invitation) (*models.Invitation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var superseded *models.Invitation
	row := tx.QueryRowContext(ctx, `
        UPDATE invitations
        SET status = 'revoked', revoked_at = NOW(), updated_at = NOW()
        WHERE workspace_id = $1 AND email = $2 AND status = 'pending'
        RETURNING `+invitationColumns, inv.WorkspaceID, inv.Email)
	prior, err := scanInvitation(row)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to revoke prior invitation: %w", err)
	}
	if err == nil {
		superseded = prior
	}

	var scopeType interface{}
	if inv.ViewerScopeType != nil {
		scopeType = string(*inv.ViewerScopeType)
	}
	err = tx.QueryRowContext(ctx, `
        INSERT INTO invitations (workspace_id, position_id, email, role, viewer_scope_type, viewer_scope_ref_id,
                                 token, issuer_id, issuer_role, status, expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `, inv.WorkspaceID, nullStr(inv.PositionID), inv.Email, string(inv.Role), scopeType, nullStr(inv.ViewerScopeRefID),
		inv.Token, inv.IssuerID, string(inv.IssuerRole), inv.ExpiresAt).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}
	inv.Status = models.InvitationPending

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit invitation: %w", err)
	}
	return superseded, nil
}

func (s *PostgresStore) GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE token = $1`, token)
	inv, err := scanInvitation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

func (s *PostgresStore) ListActiveInvitations(ctx context.Context, workspaceID string) ([]models.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+invitationColumns+`
        FROM invitations
        WHERE workspace_id = $1 AND status = 'pending' AND expires_at > NOW()
        ORDER BY created_at DESC
    `, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()
	var result []models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *inv)
	}
	return result, rows.Err()
}

// RedeemInvitation flips the invitation pending→accepted, inserts the
// workspace membership and occupies the position (when position-scoped) as
// one transaction. The conditional UPDATE keyed on status guarantees exactly
// one winner under concurrent redemption; everyone else gets ErrNotPending.
func (s *PostgresStore) RedeemInvitation(ctx context.Context, token, userID string, now time.Time) (*models.Invitation, *models.WorkspaceMembership, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
        UPDATE invitations
        SET status = 'accepted', accepted_at = $1, accepted_by = $2, updated_at = NOW()
        WHERE token = $3 AND status = 'pending' AND expires_at > $1
        RETURNING `+invitationColumns, now, userID, token)
	inv, err := scanInvitation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrNotPending
		}
		return nil, nil, fmt.Errorf("failed to accept invitation: %w", err)
	}

	m := &models.WorkspaceMembership{
		WorkspaceID: inv.WorkspaceID,
		UserID:      userID,
		Role:        inv.Role,
	}
	err = tx.QueryRowContext(ctx, `
        INSERT INTO workspace_memberships (workspace_id, user_id, role, created_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (workspace_id, user_id) DO UPDATE SET role = EXCLUDED.role
        RETURNING id, created_at
    `, m.WorkspaceID, m.UserID, string(m.Role)).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create membership: %w", err)
	}

	if inv.PositionID != nil {
		res, err := tx.ExecContext(ctx, `
            UPDATE org_positions SET user_id = $1, updated_at = NOW()
            WHERE id = $2 AND user_id IS NULL
        `, userID, *inv.PositionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to occupy position: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Zero rows means either a holder or a deleted position row;
			// tell them apart before reporting.
			var exists bool
			if err := tx.QueryRowContext(ctx, `
                SELECT EXISTS (SELECT 1 FROM org_positions WHERE id = $1)
            `, *inv.PositionID).Scan(&exists); err != nil {
				return nil, nil, fmt.Errorf("failed to check position: %w", err)
			}
			if !exists {
				return nil, nil, ErrPositionGone
			}
			return nil, nil, ErrPositionOccupied
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit redemption: %w", err)
	}
	return inv, m, nil
}

func (s *PostgresStore) ExpireInvitations(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
        UPDATE invitations SET status = 'expired', updated_at = NOW()
        WHERE status = 'pending' AND expires_at <= $1
    `, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ==== Audit ====

func (s *PostgresStore) InsertAuditEntry(ctx context.Context, e *models.AuditLogEntry) error {
	query := `
        INSERT INTO audit_log (workspace_id, action, entity_type, entity_id, actor_id, before_snapshot, after_snapshot, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
        RETURNING id, created_at
    `
	err := s.db.QueryRowContext(ctx, query, e.WorkspaceID, string(e.Action), e.EntityType, e.EntityID, e.ActorID,
		nullJSON(e.Before), nullJSON(e.After), nullJSON(e.Metadata)).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func (s *PostgresStore) QueryAuditEntries(ctx context.Context, f AuditFilter) ([]models.AuditLogEntry, error) {
	query := `
        SELECT id, workspace_id, action, entity_type, entity_id, actor_id,
               COALESCE(before_snapshot, 'null'), COALESCE(after_snapshot, 'null'), COALESCE(metadata, 'null'), created_at
        FROM audit_log
        WHERE workspace_id = $1
          AND ($2 = '' OR entity_type = $2)
          AND ($3 = '' OR actor_id::text = $3)
          AND ($4 = '' OR action = $4)
        ORDER BY created_at DESC
        LIMIT $5
    `
	rows, err := s.db.QueryContext(ctx, query, f.WorkspaceID, f.EntityType, f.ActorID, f.Action, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()
	var result []models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		var action string
		var before, after, metadata []byte
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &action, &e.EntityType, &e.EntityID, &e.ActorID,
			&before, &after, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = models.AuditAction(action)
		e.Before = before
		e.After = after
		e.Metadata = metadata
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *PostgresStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
