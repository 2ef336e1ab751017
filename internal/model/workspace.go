package model

import "time"

// Workspace types.  Personal workspaces are created automatically at
// registration; team workspaces restrict joining to the workspace's email
// domain.
const (
	WorkspacePersonal   = "personal"
	WorkspaceTeam       = "team"
	WorkspaceEnterprise = "enterprise"
)

// DefaultMaxMembers caps membership when a workspace does not configure its
// own limit.
const DefaultMaxMembers = 50

// Workspace represents a row in the `workspaces` table.
type Workspace struct {
	ID          uint64    // workspaces.id
	Name        string    // workspaces.name
	Description string    // workspaces.description
	Domain      string    // workspaces.domain (corporate email domain, lowercase)
	Type        string    // workspaces.type (personal | team | enterprise)
	MaxMembers  int       // workspaces.max_members
	CreatedBy   uint64    // workspaces.created_by (user id)
	IsActive    bool      // workspaces.is_active
	CreatedAt   time.Time // workspaces.created_at
	UpdatedAt   time.Time // workspaces.updated_at
}
