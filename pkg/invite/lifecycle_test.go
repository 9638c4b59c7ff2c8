package invite

import (
	"context"
	"errors"
	"testing"
	"time"

	"workhub-backend/pkg/access"
	"workhub-backend/pkg/audit"
	"workhub-backend/pkg/database"
	"workhub-backend/pkg/models"
)

type env struct {
	t         *testing.T
	ctx       context.Context
	db        *database.MemoryStore
	lifecycle *Lifecycle

	workspaceID string
	ownerID     string
	adminID     string
	memberID    string
}

func newEnv(t *testing.T, ttl time.Duration) *env {
	t.Helper()
	ctx := context.Background()
	db := database.NewMemoryStore()
	engine := access.NewEngine(db)
	recorder := audit.NewRecorder(db, 50, 200)

	e := &env{
		t:         t,
		ctx:       ctx,
		db:        db,
		lifecycle: NewLifecycle(db, engine, recorder, ttl),
	}

	owner := &models.User{Email: "owner@acme.test"}
	admin := &models.User{Email: "admin@acme.test"}
	member := &models.User{Email: "member@acme.test"}
	for _, u := range []*models.User{owner, admin, member} {
		if err := db.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	e.ownerID, e.adminID, e.memberID = owner.ID, admin.ID, member.ID

	ws := &models.Workspace{Name: "acme", OwnerID: owner.ID}
	if err := db.CreateWorkspace(ctx, ws); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	e.workspaceID = ws.ID

	for _, m := range []*models.WorkspaceMembership{
		{WorkspaceID: ws.ID, UserID: owner.ID, Role: models.RoleOwner},
		{WorkspaceID: ws.ID, UserID: admin.ID, Role: models.RoleAdmin},
		{WorkspaceID: ws.ID, UserID: member.ID, Role: models.RoleMember},
	} {
		if err := db.PutWorkspaceMembership(ctx, m); err != nil {
			t.Fatalf("put membership: %v", err)
		}
	}
	return e
}

func (e *env) newUser(email string) string {
	e.t.Helper()
	u := &models.User{Email: email}
	if err := e.db.CreateUser(e.ctx, u); err != nil {
		e.t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func (e *env) position(title string) *models.OrgPosition {
	e.t.Helper()
	p := &models.OrgPosition{WorkspaceID: e.workspaceID, Title: title}
	if err := e.db.CreatePosition(e.ctx, p); err != nil {
		e.t.Fatalf("create position: %v", err)
	}
	return p
}

func (e *env) issue(req IssueRequest) *models.Invitation {
	e.t.Helper()
	inv, err := e.lifecycle.Issue(e.ctx, req)
	if err != nil {
		e.t.Fatalf("issue: %v", err)
	}
	return inv
}

func wantCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("want error %s, got nil", code)
	}
	got, ok := CodeOf(err)
	if !ok {
		t.Fatalf("want error %s, got uncoded error %v", code, err)
	}
	if got != code {
		t.Fatalf("want error %s, got %s (%v)", code, got, err)
	}
}

func TestIssueAndRedeemRoundTrip(t *testing.T) {
	e := newEnv(t, 0)

	inv := e.issue(IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "new@acme.test",
		Role:        models.RoleMember,
	})
	if inv.Token == "" {
		t.Fatal("issued invitation carries no token")
	}
	if inv.Status != models.InvitationPending {
		t.Fatalf("status = %s, want pending", inv.Status)
	}
	if inv.IssuerRole != models.RoleAdmin {
		t.Errorf("issuer role = %s, want admin", inv.IssuerRole)
	}

	newUserID := e.newUser("new@acme.test")
	m, err := e.lifecycle.Redeem(e.ctx, inv.Token, newUserID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if m.WorkspaceID != e.workspaceID || m.UserID != newUserID || m.Role != models.RoleMember {
		t.Errorf("membership = %+v", m)
	}

	got, err := e.db.GetInvitationByToken(e.ctx, inv.Token)
	if err != nil {
		t.Fatalf("reload invitation: %v", err)
	}
	if got.Status != models.InvitationAccepted || got.AcceptedBy == nil || *got.AcceptedBy != newUserID {
		t.Errorf("invitation after redeem = %+v", got)
	}
}

func TestIssueNormalizesEmail(t *testing.T) {
	e := newEnv(t, 0)
	inv := e.issue(IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "  New.Hire@Acme.TEST ",
		Role:        models.RoleViewer,
	})
	if inv.Email != "new.hire@acme.test" {
		t.Errorf("email = %q, want normalized", inv.Email)
	}
}

func TestIssueRequiresAdmin(t *testing.T) {
	e := newEnv(t, 0)
	_, err := e.lifecycle.Issue(e.ctx, IssueRequest{
		IssuerID:    e.memberID,
		WorkspaceID: e.workspaceID,
		Email:       "new@acme.test",
		Role:        models.RoleMember,
	})
	wantCode(t, err, CodeForbidden)
}

func TestIssueWorkspaceNotFound(t *testing.T) {
	e := newEnv(t, 0)
	_, err := e.lifecycle.Issue(e.ctx, IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: "missing",
		Email:       "new@acme.test",
		Role:        models.RoleMember,
	})
	wantCode(t, err, CodeNotFound)
}

func TestIssueRejectsInvalidEmail(t *testing.T) {
	e := newEnv(t, 0)
	_, err := e.lifecycle.Issue(e.ctx, IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "not an email",
		Role:        models.RoleMember,
	})
	wantCode(t, err, CodeValidation)
}

func TestIssueRejectsExistingMember(t *testing.T) {
	e := newEnv(t, 0)
	_, err := e.lifecycle.Issue(e.ctx, IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "member@acme.test",
		Role:        models.RoleViewer,
	})
	wantCode(t, err, CodeAlreadyMember)
}

func TestIssueOwnerViaPositionStructurallyForbidden(t *testing.T) {
	// Checked before privilege: even the workspace owner cannot do this, and
	// the error is STRUCTURAL_FORBIDDEN, not FORBIDDEN.
	e := newEnv(t, 0)
	pos := e.position("cto")
	_, err := e.lifecycle.Issue(e.ctx, IssueRequest{
		IssuerID:    e.ownerID,
		WorkspaceID: e.workspaceID,
		Email:       "new@acme.test",
		Role:        models.RoleOwner,
		PositionID:  &pos.ID,
	})
	wantCode(t, err, CodeStructuralForbidden)
}

func TestIssueStructuralCheckPrecedesPrivilege(t *testing.T) {
	// A non-admin issuing owner-via-position gets the structural error, not
	// the privilege one.
	e := newEnv(t, 0)
	pos := e.position("cto")
	_, err := e.lifecycle.Issue(e.ctx, IssueRequest{
		IssuerID:    e.memberID,
		WorkspaceID: e.workspaceID,
		Email:       "new@acme.test",
		Role:        models.RoleOwner,
		PositionID:  &pos.ID,
	})
	wantCode(t, err, CodeStructuralForbidden)
}

func TestIssueViewerScopeValidation(t *testing.T) {
	e := newEnv(t, 0)

	scopeProject := models.ViewerScopeProject
	_, err := e.lifecycle.Issue(e.ctx, IssueRequest{
		IssuerID:        e.adminID,
		WorkspaceID:     e.workspaceID,
		Email:           "new@acme.test",
		Role:            models.RoleViewer,
		ViewerScopeType: &scopeProject,
	})
	wantCode(t, err, CodeScopeRefRequired)

	scopeWorkspace := models.ViewerScopeWorkspace
	_, err = e.lifecycle.Issue(e.ctx, IssueRequest{
		IssuerID:        e.adminID,
		WorkspaceID:     e.workspaceID,
		Email:           "new@acme.test",
		Role:            models.RoleMember,
		ViewerScopeType: &scopeWorkspace,
	})
	wantCode(t, err, CodeValidation)
}

func TestIssueOccupiedPosition(t *testing.T) {
	e := newEnv(t, 0)
	pos := e.position("cto")
	holder := e.memberID
	pos.UserID = &holder
	if err := e.db.CreatePosition(e.ctx, pos); err != nil {
		t.Fatalf("reseed position: %v", err)
	}
	_, err := e.lifecycle.Issue(e.ctx, IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "new@acme.test",
		Role:        models.RoleMember,
		PositionID:  &pos.ID,
	})
	wantCode(t, err, CodePositionOccupied)
}

func TestIssuePositionNotFound(t *testing.T) {
	e := newEnv(t, 0)
	missing := "missing-position"
	_, err := e.lifecycle.Issue(e.ctx, IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "new@acme.test",
		Role:        models.RoleMember,
		PositionID:  &missing,
	})
	wantCode(t, err, CodePositionNotFound)
}

func TestIssueSupersedesPendingInvitation(t *testing.T) {
	e := newEnv(t, 0)
	first := e.issue(IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "new@acme.test",
		Role:        models.RoleMember,
	})
	second := e.issue(IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "new@acme.test",
		Role:        models.RoleAdmin,
	})
	if first.Token == second.Token {
		t.Fatal("second invitation reused the first token")
	}

	active, err := e.lifecycle.ListActive(e.ctx, e.workspaceID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != second.ID {
		t.Fatalf("active = %+v, want only the second invitation", active)
	}

	// The first token is now revoked.
	newUserID := e.newUser("new@acme.test")
	_, err = e.lifecycle.Redeem(e.ctx, first.Token, newUserID)
	wantCode(t, err, CodeRevoked)

	// The second still works and carries its own role.
	m, err := e.lifecycle.Redeem(e.ctx, second.Token, newUserID)
	if err != nil {
		t.Fatalf("redeem second: %v", err)
	}
	if m.Role != models.RoleAdmin {
		t.Errorf("role = %s, want admin", m.Role)
	}
}

func TestRedeemInvalidToken(t *testing.T) {
	e := newEnv(t, 0)
	_, err := e.lifecycle.Redeem(e.ctx, "no-such-token", e.memberID)
	wantCode(t, err, CodeInvalidToken)
}

func TestRedeemTwiceReportsAlreadyAccepted(t *testing.T) {
	e := newEnv(t, 0)
	inv := e.issue(IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "new@acme.test",
		Role:        models.RoleMember,
	})
	u1 := e.newUser("new@acme.test")
	u2 := e.newUser("other@acme.test")

	if _, err := e.lifecycle.Redeem(e.ctx, inv.Token, u1); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	_, err := e.lifecycle.Redeem(e.ctx, inv.Token, u2)
	wantCode(t, err, CodeAlreadyAccepted)

	// The loser gained no membership.
	if _, err := e.db.GetWorkspaceMembership(e.ctx, e.workspaceID, u2); err == nil {
		t.Error("second redeemer unexpectedly has a membership")
	}
}

func TestRedeemExpired(t *testing.T) {
	e := newEnv(t, -time.Hour) // every invitation is born expired
	inv := e.issue(IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "new@acme.test",
		Role:        models.RoleMember,
	})
	u := e.newUser("new@acme.test")
	_, err := e.lifecycle.Redeem(e.ctx, inv.Token, u)
	wantCode(t, err, CodeExpired)

	if _, err := e.db.GetWorkspaceMembership(e.ctx, e.workspaceID, u); err == nil {
		t.Error("expired redemption created a membership")
	}
}

// flakyWorkspaceStore serves the first GetWorkspace (the privilege check) and
// fails every one after it.
type flakyWorkspaceStore struct {
	database.Store
	calls int
}

func (s *flakyWorkspaceStore) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	s.calls++
	if s.calls > 1 {
		return nil, errStoreDown
	}
	return s.Store.GetWorkspace(ctx, id)
}

var errStoreDown = errors.New("connection reset")

func TestIssueSurfacesWorkspaceLookupError(t *testing.T) {
	e := newEnv(t, 0)
	e.newUser("outsider@acme.test")

	flaky := &flakyWorkspaceStore{Store: e.db}
	lc := NewLifecycle(flaky, access.NewEngine(flaky), audit.NewRecorder(e.db, 50, 200), 0)

	_, err := lc.Issue(e.ctx, IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "outsider@acme.test",
		Role:        models.RoleMember,
	})
	if err == nil {
		t.Fatal("want error, got nil")
	}
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("err = %v, want wrapped store failure", err)
	}
	if _, ok := CodeOf(err); ok {
		t.Errorf("infrastructure failure reported with a public code: %v", err)
	}
}

// goneStore simulates a position row deleted between issuance and redemption.
type goneStore struct{ database.Store }

func (goneStore) RedeemInvitation(ctx context.Context, token, userID string, now time.Time) (*models.Invitation, *models.WorkspaceMembership, error) {
	return nil, nil, database.ErrPositionGone
}

func TestRedeemDeletedPositionReportsPositionNotFound(t *testing.T) {
	e := newEnv(t, 0)
	lc := NewLifecycle(goneStore{e.db}, access.NewEngine(e.db), audit.NewRecorder(e.db, 50, 200), 0)
	_, err := lc.Redeem(e.ctx, "sometoken", e.memberID)
	wantCode(t, err, CodePositionNotFound)
}

func TestRedeemFillsPosition(t *testing.T) {
	e := newEnv(t, 0)
	pos := e.position("cto")
	inv := e.issue(IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "new@acme.test",
		Role:        models.RoleAdmin,
		PositionID:  &pos.ID,
	})
	u := e.newUser("new@acme.test")
	if _, err := e.lifecycle.Redeem(e.ctx, inv.Token, u); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	got, err := e.db.GetPosition(e.ctx, pos.ID)
	if err != nil {
		t.Fatalf("reload position: %v", err)
	}
	if !got.Occupied() || *got.UserID != u {
		t.Errorf("position after redeem = %+v, want held by %s", got, u)
	}
}

func TestExpireSweep(t *testing.T) {
	e := newEnv(t, time.Hour)
	inv := e.issue(IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "new@acme.test",
		Role:        models.RoleMember,
	})

	n, err := e.lifecycle.Expire(e.ctx, time.Now())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 0 {
		t.Errorf("swept %d before the horizon, want 0", n)
	}

	n, err = e.lifecycle.Expire(e.ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d, want 1", n)
	}

	got, err := e.db.GetInvitationByToken(e.ctx, inv.Token)
	if err != nil {
		t.Fatalf("reload invitation: %v", err)
	}
	if got.Status != models.InvitationExpired {
		t.Errorf("status = %s, want expired", got.Status)
	}
}

func TestListActiveOmitsTerminalInvitations(t *testing.T) {
	e := newEnv(t, time.Hour)
	live := e.issue(IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "live@acme.test",
		Role:        models.RoleMember,
	})
	done := e.issue(IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "done@acme.test",
		Role:        models.RoleMember,
	})
	u := e.newUser("done@acme.test")
	if _, err := e.lifecycle.Redeem(e.ctx, done.Token, u); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	active, err := e.lifecycle.ListActive(e.ctx, e.workspaceID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].ID != live.ID {
		t.Errorf("active = %+v, want only the pending invitation", active)
	}
}

func TestIssueRecordsAuditTrail(t *testing.T) {
	e := newEnv(t, 0)
	e.issue(IssueRequest{
		IssuerID:    e.adminID,
		WorkspaceID: e.workspaceID,
		Email:       "new@acme.test",
		Role:        models.RoleMember,
	})
	entries, err := e.db.QueryAuditEntries(e.ctx, database.AuditFilter{
		WorkspaceID: e.workspaceID,
		Action:      string(models.AuditInvitationIssued),
	})
	if err != nil {
		t.Fatalf("query audit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d issued entries, want 1", len(entries))
	}
	if entries[0].ActorID != e.adminID {
		t.Errorf("actor = %s, want issuer", entries[0].ActorID)
	}
}
