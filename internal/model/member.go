package model

import (
	"time"

	"github.com/samuraidojo/dojo/internal/rbac"
)

// Membership statuses.  Pending memberships come from invites and activate
// when the invite is accepted; removal deactivates, it never deletes.
const (
	MemberPending = "pending"
	MemberActive  = "active"
)

// Member binds one user to one workspace with exactly one role.  The
// (workspace, user) pair is unique.  Permissions mirror the role in
// rbac.PermissionsFor and are rewritten whenever the role is set or
// changed; they are stored (as JSON) only so route guards can answer
// capability queries without recomputing.
type Member struct {
	ID              uint64             // workspace_members.id
	WorkspaceID     uint64             // workspace_members.workspace_id
	UserID          uint64             // workspace_members.user_id
	Role            rbac.Role          // workspace_members.role
	Permissions     rbac.PermissionSet // workspace_members.permissions (JSON column)
	Status          string             // workspace_members.status (pending | active)
	IsActive        bool               // workspace_members.is_active
	InvitedBy       *uint64            // workspace_members.invited_by (null when self-joined)
	InviteHash      string             // workspace_members.invite_token_hash ("" once accepted)
	InviteExpiresAt *time.Time         // workspace_members.invite_expires_at
	JoinedAt        time.Time          // workspace_members.joined_at
	CreatedAt       time.Time          // workspace_members.created_at
	UpdatedAt       time.Time          // workspace_members.updated_at
}
