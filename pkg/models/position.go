package models

import "time"

// OrgPosition is a named seat in a workspace's structure. UserID is nil while
// the seat is unoccupied; unoccupied positions are invite targets.
type OrgPosition struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	Title       string    `json:"title" db:"title"`
	UserID      *string   `json:"user_id,omitempty" db:"user_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Occupied reports whether the seat currently has a holder.
func (p *OrgPosition) Occupied() bool {
	return p.UserID != nil && *p.UserID != ""
}
