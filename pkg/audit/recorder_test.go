package audit

import (
	"context"
	"encoding/json"
	"testing"

	"workhub-backend/pkg/database"
	"workhub-backend/pkg/models"
)

func seedEntries(t *testing.T, r *Recorder, workspaceID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		actor := "actor-a"
		action := models.AuditMemberJoined
		if i%2 == 0 {
			actor = "actor-b"
			action = models.AuditInvitationIssued
		}
		err := r.Record(ctx, workspaceID, actor, action, "invitation", "ent", nil, map[string]int{"seq": i}, nil)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}
}

func TestQueryNewestFirst(t *testing.T) {
	db := database.NewMemoryStore()
	r := NewRecorder(db, 50, 200)
	seedEntries(t, r, "ws1", 5)

	entries, err := r.Query(context.Background(), database.AuditFilter{WorkspaceID: "ws1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}
	var after struct {
		Seq int `json:"seq"`
	}
	if err := json.Unmarshal(entries[0].After, &after); err != nil {
		t.Fatalf("unmarshal after: %v", err)
	}
	if after.Seq != 4 {
		t.Errorf("first entry seq = %d, want the newest (4)", after.Seq)
	}
}

func TestQueryFilters(t *testing.T) {
	db := database.NewMemoryStore()
	r := NewRecorder(db, 50, 200)
	seedEntries(t, r, "ws1", 6)
	seedEntries(t, r, "ws2", 3)

	ctx := context.Background()

	entries, err := r.Query(ctx, database.AuditFilter{WorkspaceID: "ws1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 6 {
		t.Errorf("workspace filter: got %d, want 6", len(entries))
	}

	entries, err = r.Query(ctx, database.AuditFilter{WorkspaceID: "ws1", ActorID: "actor-b"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("actor filter: got %d, want 3", len(entries))
	}

	entries, err = r.Query(ctx, database.AuditFilter{WorkspaceID: "ws1", Action: string(models.AuditMemberJoined)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("action filter: got %d, want 3", len(entries))
	}
}

func TestQueryLimitClamping(t *testing.T) {
	db := database.NewMemoryStore()
	r := NewRecorder(db, 2, 4)
	seedEntries(t, r, "ws1", 10)

	ctx := context.Background()

	// Zero limit falls back to the default page size.
	entries, err := r.Query(ctx, database.AuditFilter{WorkspaceID: "ws1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("default limit: got %d, want 2", len(entries))
	}

	// Oversized limits are clamped to the maximum.
	entries, err = r.Query(ctx, database.AuditFilter{WorkspaceID: "ws1", Limit: 100})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("clamped limit: got %d, want 4", len(entries))
	}
}

func TestWarn(t *testing.T) {
	if Warn("op", nil) {
		t.Error("Warn(nil) reported degraded")
	}
	if !Warn("op", context.DeadlineExceeded) {
		t.Error("Warn(err) did not report degraded")
	}
}
