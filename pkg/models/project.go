package models

import "time"

// SpaceVisibility controls who may access projects grouped under a space.
type SpaceVisibility string

const (
	// VisibilityPublic: any confirmed workspace member may access.
	VisibilityPublic SpaceVisibility = "public"
	// VisibilityTargeted: only explicit space members plus the project's
	// creator/owner may access.
	VisibilityTargeted SpaceVisibility = "targeted"
)

// Project belongs to exactly one workspace. The workspace id is immutable
// once set. SpaceID is nullable: projects created before spaces existed have
// none and are treated as public for compatibility.
type Project struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	SpaceID     *string   `json:"space_id,omitempty" db:"space_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedByID string    `json:"created_by_id" db:"created_by_id"`
	OwnerID     *string   `json:"owner_id,omitempty" db:"owner_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectSpace groups projects under a single visibility policy.
type ProjectSpace struct {
	ID          string          `json:"id" db:"id"`
	WorkspaceID string          `json:"workspace_id" db:"workspace_id"`
	Name        string          `json:"name" db:"name"`
	Visibility  SpaceVisibility `json:"visibility" db:"visibility"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// ProjectSpaceMembership grants a user access to a targeted space.
type ProjectSpaceMembership struct {
	ID        string    `json:"id" db:"id"`
	SpaceID   string    `json:"space_id" db:"space_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProjectMembership assigns a user an explicit role on a project. Access can
// be granted without a row (see the engine's fallback chain), but when a row
// exists its role is authoritative.
type ProjectMembership struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
