// Package audit provides the append-only trail of authorization-relevant
// state changes. Entries are immutable: no update or delete path exists.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"workhub-backend/pkg/database"
	"workhub-backend/pkg/models"
)

// Recorder writes and reads audit entries. An audit write failing must never
// undo the primary action it accompanies; callers log the gap as a
// degraded-mode warning instead (see Warn).
type Recorder struct {
	db           database.Store
	defaultLimit int
	maxLimit     int
}

func NewRecorder(db database.Store, defaultLimit, maxLimit int) *Recorder {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &Recorder{db: db, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// Record appends one entry. Snapshots and metadata are marshaled to JSON; nil
// values are stored as absent. Snapshot values must already be safe to
// persist: invitation tokens are excluded from JSON by the model itself.
func (r *Recorder) Record(ctx context.Context, workspaceID string, actorID string, action models.AuditAction, entityType, entityID string, before, after, metadata interface{}) error {
	entry := &models.AuditLogEntry{
		WorkspaceID: workspaceID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		ActorID:     actorID,
	}
	var err error
	if entry.Before, err = marshalSnapshot(before); err != nil {
		return fmt.Errorf("audit: marshal before: %w", err)
	}
	if entry.After, err = marshalSnapshot(after); err != nil {
		return fmt.Errorf("audit: marshal after: %w", err)
	}
	if entry.Metadata, err = marshalSnapshot(metadata); err != nil {
		return fmt.Errorf("audit: marshal metadata: %w", err)
	}
	if err := r.db.InsertAuditEntry(ctx, entry); err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// Warn reports a failed audit write without failing the primary operation.
// It returns true when err was non-nil so handlers can flag the response as
// degraded.
func Warn(op string, err error) bool {
	if err == nil {
		return false
	}
	fmt.Printf("[warn] audit: %s: %v\n", op, err)
	return true
}

// Query returns entries newest-first. A non-positive limit falls back to the
// default page size; anything above the maximum is clamped.
func (r *Recorder) Query(ctx context.Context, f database.AuditFilter) ([]models.AuditLogEntry, error) {
	if f.Limit <= 0 {
		f.Limit = r.defaultLimit
	}
	if f.Limit > r.maxLimit {
		f.Limit = r.maxLimit
	}
	return r.db.QueryAuditEntries(ctx, f)
}

func marshalSnapshot(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
