package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"workhub-backend/pkg/models"
)

func pendingInvitation(workspaceID, email, token string) *models.Invitation {
	return &models.Invitation{
		WorkspaceID: workspaceID,
		Email:       models.NormalizeEmail(email),
		Role:        models.RoleMember,
		Token:       token,
		IssuerID:    "issuer",
		IssuerRole:  models.RoleAdmin,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func TestIssueInvitationSupersedes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := pendingInvitation("ws1", "a@b.test", "tok1")
	superseded, err := s.IssueInvitation(ctx, first)
	if err != nil {
		t.Fatalf("issue first: %v", err)
	}
	if superseded != nil {
		t.Fatalf("first issue superseded %+v, want nil", superseded)
	}

	second := pendingInvitation("ws1", "a@b.test", "tok2")
	superseded, err = s.IssueInvitation(ctx, second)
	if err != nil {
		t.Fatalf("issue second: %v", err)
	}
	if superseded == nil || superseded.ID != first.ID {
		t.Fatalf("superseded = %+v, want the first invitation", superseded)
	}
	if superseded.Status != models.InvitationRevoked || superseded.RevokedAt == nil {
		t.Errorf("superseded = %+v, want revoked with timestamp", superseded)
	}

	// Same email in another workspace is untouched.
	other := pendingInvitation("ws2", "a@b.test", "tok3")
	if superseded, err = s.IssueInvitation(ctx, other); err != nil || superseded != nil {
		t.Fatalf("cross-workspace issue = (%+v, %v), want clean insert", superseded, err)
	}
}

func TestIssueInvitationTokenCollision(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.IssueInvitation(ctx, pendingInvitation("ws1", "a@b.test", "tok1")); err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err := s.IssueInvitation(ctx, pendingInvitation("ws1", "c@d.test", "tok1"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	// The losing write left the other email's state untouched.
	if _, err := s.GetInvitationByToken(ctx, "tok1"); err != nil {
		t.Fatalf("original invitation gone: %v", err)
	}
}

func TestRedeemInvitationSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	if _, err := s.IssueInvitation(ctx, pendingInvitation("ws1", "a@b.test", "tok1")); err != nil {
		t.Fatalf("issue: %v", err)
	}

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan string, racers)
	for i := 0; i < racers; i++ {
		userID := "user" + string(rune('a'+i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.RedeemInvitation(ctx, "tok1", userID, now); err == nil {
				wins <- userID
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("got %d winners, want exactly 1", len(winners))
	}
	members, err := s.ListWorkspaceMembers(ctx, "ws1")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0].UserID != winners[0] {
		t.Errorf("members = %+v, want only the winner", members)
	}
}

func TestRedeemInvitationOccupiedPositionAborts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	holder := "holder"
	pos := &models.OrgPosition{WorkspaceID: "ws1", Title: "cto", UserID: &holder}
	if err := s.CreatePosition(ctx, pos); err != nil {
		t.Fatalf("create position: %v", err)
	}

	inv := pendingInvitation("ws1", "a@b.test", "tok1")
	inv.PositionID = &pos.ID
	if _, err := s.IssueInvitation(ctx, inv); err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, _, err := s.RedeemInvitation(ctx, "tok1", "u1", now)
	if !errors.Is(err, ErrPositionOccupied) {
		t.Fatalf("err = %v, want ErrPositionOccupied", err)
	}

	// The failed redemption committed nothing: the invitation is still
	// pending and no membership was written.
	got, err := s.GetInvitationByToken(ctx, "tok1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != models.InvitationPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if _, err := s.GetWorkspaceMembership(ctx, "ws1", "u1"); err == nil {
		t.Error("membership written despite aborted redemption")
	}
}

func TestRedeemInvitationDeletedPosition(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	pos := &models.OrgPosition{WorkspaceID: "ws1", Title: "cto"}
	if err := s.CreatePosition(ctx, pos); err != nil {
		t.Fatalf("create position: %v", err)
	}

	inv := pendingInvitation("ws1", "a@b.test", "tok1")
	inv.PositionID = &pos.ID
	if _, err := s.IssueInvitation(ctx, inv); err != nil {
		t.Fatalf("issue: %v", err)
	}

	s.mu.Lock()
	delete(s.positions, pos.ID)
	s.mu.Unlock()

	_, _, err := s.RedeemInvitation(ctx, "tok1", "u1", now)
	if !errors.Is(err, ErrPositionGone) {
		t.Fatalf("err = %v, want ErrPositionGone", err)
	}

	got, err := s.GetInvitationByToken(ctx, "tok1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != models.InvitationPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if _, err := s.GetWorkspaceMembership(ctx, "ws1", "u1"); err == nil {
		t.Error("membership written despite aborted redemption")
	}
}

func TestExpireInvitationsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	inv := pendingInvitation("ws1", "a@b.test", "tok1")
	inv.ExpiresAt = time.Now().Add(-time.Minute)
	if _, err := s.IssueInvitation(ctx, inv); err != nil {
		t.Fatalf("issue: %v", err)
	}

	n, err := s.ExpireInvitations(ctx, time.Now())
	if err != nil || n != 1 {
		t.Fatalf("first sweep = (%d, %v), want (1, nil)", n, err)
	}
	n, err = s.ExpireInvitations(ctx, time.Now())
	if err != nil || n != 0 {
		t.Fatalf("second sweep = (%d, %v), want (0, nil)", n, err)
	}
}
