package database

import (
	"context"
	"sync"
	"time"

	"workhub-backend/pkg/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for development and tests. It enforces
// the same invariants as the PostgreSQL schema (membership uniqueness, one
// active invitation per workspace+email, single-winner redemption) under a
// single mutex, which stands in for the database's constraints within one
// process. Not durable; never used in production.
type MemoryStore struct {
	mu sync.Mutex

	users            map[string]*models.User
	workspaces       map[string]*models.Workspace
	wsMemberships    map[string]*models.WorkspaceMembership // key ws|user
	projects         map[string]*models.Project
	spaces           map[string]*models.ProjectSpace
	spaceMemberships map[string]*models.ProjectSpaceMembership // key space|user
	projMemberships  map[string]*models.ProjectMembership      // key project|user
	positions        map[string]*models.OrgPosition
	invitations      map[string]*models.Invitation // key token
	audit            []*models.AuditLogEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:            make(map[string]*models.User),
		workspaces:       make(map[string]*models.Workspace),
		wsMemberships:    make(map[string]*models.WorkspaceMembership),
		projects:         make(map[string]*models.Project),
		spaces:           make(map[string]*models.ProjectSpace),
		spaceMemberships: make(map[string]*models.ProjectSpaceMembership),
		projMemberships:  make(map[string]*models.ProjectMembership),
		positions:        make(map[string]*models.OrgPosition),
		invitations:      make(map[string]*models.Invitation),
	}
}

func pairKey(a, b string) string { return a + "|" + b }

// ==== Users ====

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.Email = models.NormalizeEmail(user.Email)
	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = models.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ==== Workspaces & memberships ====

func (s *MemoryStore) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws.ID == "" {
		ws.ID = uuid.New().String()
	}
	ws.CreatedAt = time.Now()
	ws.UpdatedAt = ws.CreatedAt
	cp := *ws
	s.workspaces[ws.ID] = &cp
	return nil
}

func (s *MemoryStore) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ws
	return &cp, nil
}

func (s *MemoryStore) ListUserWorkspaces(ctx context.Context, userID string) ([]models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Workspace
	for _, ws := range s.workspaces {
		if ws.OwnerID == userID {
			result = append(result, *ws)
			continue
		}
		if _, ok := s.wsMemberships[pairKey(ws.ID, userID)]; ok {
			result = append(result, *ws)
		}
	}
	return result, nil
}

func (s *MemoryStore) PutWorkspaceMembership(ctx context.Context, m *models.WorkspaceMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putWorkspaceMembershipLocked(m)
	return nil
}

func (s *MemoryStore) putWorkspaceMembershipLocked(m *models.WorkspaceMembership) {
	key := pairKey(m.WorkspaceID, m.UserID)
	if existing, ok := s.wsMemberships[key]; ok {
		existing.Role = m.Role
		*m = *existing
		return
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now()
	cp := *m
	s.wsMemberships[key] = &cp
}

func (s *MemoryStore) GetWorkspaceMembership(ctx context.Context, workspaceID, userID string) (*models.WorkspaceMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.wsMemberships[pairKey(workspaceID, userID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]models.WorkspaceMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.WorkspaceMembership
	for _, m := range s.wsMemberships {
		if m.WorkspaceID == workspaceID {
			result = append(result, *m)
		}
	}
	return result, nil
}

// ==== Projects & spaces ====

func (s *MemoryStore) CreateProject(ctx context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) CreateProjectSpace(ctx context.Context, sp *models.ProjectSpace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sp.ID == "" {
		sp.ID = uuid.New().String()
	}
	sp.CreatedAt = time.Now()
	sp.UpdatedAt = sp.CreatedAt
	cp := *sp
	s.spaces[sp.ID] = &cp
	return nil
}

func (s *MemoryStore) GetProjectSpace(ctx context.Context, id string) (*models.ProjectSpace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sp
	return &cp, nil
}

func (s *MemoryStore) PutProjectSpaceMembership(ctx context.Context, m *models.ProjectSpaceMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(m.SpaceID, m.UserID)
	if existing, ok := s.spaceMemberships[key]; ok {
		*m = *existing
		return nil
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now()
	cp := *m
	s.spaceMemberships[key] = &cp
	return nil
}

func (s *MemoryStore) GetProjectSpaceMembership(ctx context.Context, spaceID, userID string) (*models.ProjectSpaceMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.spaceMemberships[pairKey(spaceID, userID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) PutProjectMembership(ctx context.Context, m *models.ProjectMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(m.ProjectID, m.UserID)
	if existing, ok := s.projMemberships[key]; ok {
		existing.Role = m.Role
		*m = *existing
		return nil
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now()
	cp := *m
	s.projMemberships[key] = &cp
	return nil
}

func (s *MemoryStore) GetProjectMembership(ctx context.Context, projectID, userID string) (*models.ProjectMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.projMemberships[pairKey(projectID, userID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// ==== Org positions ====

func (s *MemoryStore) CreatePosition(ctx context.Context, p *models.OrgPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPosition(ctx context.Context, id string) (*models.OrgPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ==== Invitations ====

func (s *MemoryStore) IssueInvitation(ctx context.Context, inv *models.Invitation) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()

	if _, ok := s.invitations[inv.Token]; ok {
		return nil, ErrConflict
	}

	var superseded *models.Invitation
	for _, existing := range s.invitations {
		if existing.WorkspaceID == inv.WorkspaceID && existing.Email == inv.Email && existing.Status == models.InvitationPending {
			existing.Status = models.InvitationRevoked
			revokedAt := now
			existing.RevokedAt = &revokedAt
			existing.UpdatedAt = now
			cp := *existing
			superseded = &cp
			break
		}
	}

	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	inv.Status = models.InvitationPending
	inv.CreatedAt = now
	inv.UpdatedAt = now
	cp := *inv
	s.invitations[inv.Token] = &cp
	return superseded, nil
}

func (s *MemoryStore) GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *MemoryStore) ListActiveInvitations(ctx context.Context, workspaceID string) ([]models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var result []models.Invitation
	for _, inv := range s.invitations {
		if inv.WorkspaceID == workspaceID && inv.Active(now) {
			result = append(result, *inv)
		}
	}
	return result, nil
}

func (s *MemoryStore) RedeemInvitation(ctx context.Context, token, userID string, now time.Time) (*models.Invitation, *models.WorkspaceMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[token]
	if !ok {
		return nil, nil, ErrNotFound
	}
	// Conditional update: only a pending, unexpired invitation transitions.
	if inv.Status != models.InvitationPending || !now.Before(inv.ExpiresAt) {
		return nil, nil, ErrNotPending
	}

	if inv.PositionID != nil {
		pos, ok := s.positions[*inv.PositionID]
		if !ok {
			return nil, nil, ErrPositionGone
		}
		if pos.Occupied() {
			return nil, nil, ErrPositionOccupied
		}
		uid := userID
		pos.UserID = &uid
		pos.UpdatedAt = now
	}

	inv.Status = models.InvitationAccepted
	acceptedAt := now
	inv.AcceptedAt = &acceptedAt
	uid := userID
	inv.AcceptedBy = &uid
	inv.UpdatedAt = now

	m := &models.WorkspaceMembership{
		WorkspaceID: inv.WorkspaceID,
		UserID:      userID,
		Role:        inv.Role,
	}
	s.putWorkspaceMembershipLocked(m)

	cp := *inv
	return &cp, m, nil
}

func (s *MemoryStore) ExpireInvitations(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, inv := range s.invitations {
		if inv.Status == models.InvitationPending && !now.Before(inv.ExpiresAt) {
			inv.Status = models.InvitationExpired
			inv.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

// ==== Audit ====

func (s *MemoryStore) InsertAuditEntry(ctx context.Context, e *models.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now()
	cp := *e
	s.audit = append(s.audit, &cp)
	return nil
}

func (s *MemoryStore) QueryAuditEntries(ctx context.Context, f AuditFilter) ([]models.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.AuditLogEntry
	// newest first: the slice is append-ordered, walk it backwards
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if e.WorkspaceID != f.WorkspaceID {
			continue
		}
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.Action != "" && string(e.Action) != f.Action {
			continue
		}
		result = append(result, *e)
		if f.Limit > 0 && len(result) >= f.Limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) HealthCheck() error { return nil }
func (s *MemoryStore) Close() error       { return nil }
