package models

import (
	"encoding/json"
	"time"
)

// AuditAction is the kind of state change recorded.
type AuditAction string

const (
	AuditWorkspaceCreated   AuditAction = "workspace.created"
	AuditMemberRoleChanged  AuditAction = "member.role_changed"
	AuditMemberJoined       AuditAction = "member.joined"
	AuditProjectCreated     AuditAction = "project.created"
	AuditSpaceCreated       AuditAction = "space.created"
	AuditSpaceMemberAdded   AuditAction = "space.member_added"
	AuditPositionCreated    AuditAction = "position.created"
	AuditPositionFilled     AuditAction = "position.filled"
	AuditInvitationIssued   AuditAction = "invitation.issued"
	AuditInvitationRevoked  AuditAction = "invitation.revoked"
	AuditInvitationAccepted AuditAction = "invitation.accepted"
)

// AuditLogEntry is an immutable record of one authorization-relevant state
// change. Entries are append-only: the core never updates or deletes them.
// Snapshots and metadata are stored as raw JSON so the log can outlive schema
// changes in the entities it describes.
type AuditLogEntry struct {
	ID          string          `json:"id" db:"id"`
	WorkspaceID string          `json:"workspace_id" db:"workspace_id"`
	Action      AuditAction     `json:"action" db:"action"`
	EntityType  string          `json:"entity_type" db:"entity_type"`
	EntityID    string          `json:"entity_id" db:"entity_id"`
	ActorID     string          `json:"actor_id" db:"actor_id"`
	Before      json.RawMessage `json:"before,omitempty" db:"before_snapshot"`
	After       json.RawMessage `json:"after,omitempty" db:"after_snapshot"`
	Metadata    json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
