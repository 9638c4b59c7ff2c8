package models

import "time"

// Workspace is the top-level tenant boundary (owner + members)
type Workspace struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	Description string    `json:"description,omitempty" db:"description"`
	Avatar      string    `json:"avatar,omitempty" db:"avatar"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// WorkspaceMembership relates users to workspaces with a role.
// At most one row exists per (workspace, user); the workspace owner holds an
// implicit owner membership even before the row is written (bootstrap case).
type WorkspaceMembership struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Role        Role      `json:"role" db:"role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
