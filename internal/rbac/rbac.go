// Package rbac maps workspace roles to their capability sets.  The mapping
// is fixed: a member's permissions are always derived from its role and are
// never editable on their own.  Anything that stores a permission set must
// write the value returned by PermissionsFor, overwriting whatever a client
// may have tried to set directly.
package rbac

// Role is a workspace membership role.  The five roles form a fixed set;
// the creator role is assigned exactly once, at workspace creation.
type Role string

const (
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
	RoleViewer  Role = "viewer"
)

// Valid reports whether r is one of the five defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCreator, RoleAdmin, RoleManager, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Capability names.  These are the JSON keys persisted on membership records
// and the strings route guards are configured with.
const (
	// Workspace management
	PermManageWorkspace       = "manageWorkspace"
	PermDeleteWorkspace       = "deleteWorkspace"
	PermEditWorkspaceSettings = "editWorkspaceSettings"

	// Member management
	PermInviteMembers   = "inviteMembers"
	PermRemoveMembers   = "removeMembers"
	PermEditMemberRoles = "editMemberRoles"

	// Project management
	PermCreateProjects      = "createProjects"
	PermEditProjects        = "editProjects"
	PermDeleteProjects      = "deleteProjects"
	PermManageProjectAccess = "manageProjectAccess"

	// Content and collaboration
	PermViewAllProjects = "viewAllProjects"
	PermEditAllProjects = "editAllProjects"
	PermCollaborate     = "collaborate"
	PermProductSearch   = "productSearch"

	// Advanced features
	PermLabsAccess        = "labsAccess"
	PermAdvancedAnalytics = "advancedAnalytics"
	PermExportData        = "exportData"

	// AI and recommendations
	PermAIRecommendations = "aiRecommendations"
	PermTrainAI           = "trainAI"
)

// Capabilities lists every known capability name, in table order.
var Capabilities = []string{
	PermManageWorkspace,
	PermDeleteWorkspace,
	PermEditWorkspaceSettings,
	PermInviteMembers,
	PermRemoveMembers,
	PermEditMemberRoles,
	PermCreateProjects,
	PermEditProjects,
	PermDeleteProjects,
	PermManageProjectAccess,
	PermViewAllProjects,
	PermEditAllProjects,
	PermCollaborate,
	PermProductSearch,
	PermLabsAccess,
	PermAdvancedAnalytics,
	PermExportData,
	PermAIRecommendations,
	PermTrainAI,
}

// PermissionSet maps capability names to booleans.  Absent keys read as
// false, so Has never panics on unknown capability names.
type PermissionSet map[string]bool

// Has reports whether the named capability is granted.
func (p PermissionSet) Has(capability string) bool {
	return p[capability]
}

// grants holds, per role, the capabilities that are true.  Everything not
// listed is false for that role.
var grants = map[Role][]string{
	RoleCreator: {
		PermManageWorkspace, PermDeleteWorkspace, PermEditWorkspaceSettings,
		PermInviteMembers, PermRemoveMembers, PermEditMemberRoles,
		PermCreateProjects, PermEditProjects, PermDeleteProjects, PermManageProjectAccess,
		PermViewAllProjects, PermEditAllProjects, PermCollaborate, PermProductSearch,
		PermLabsAccess, PermAdvancedAnalytics, PermExportData,
		PermAIRecommendations, PermTrainAI,
	},
	RoleAdmin: {
		PermEditWorkspaceSettings,
		PermInviteMembers, PermRemoveMembers, PermEditMemberRoles,
		PermCreateProjects, PermEditProjects, PermDeleteProjects, PermManageProjectAccess,
		PermViewAllProjects, PermEditAllProjects, PermCollaborate, PermProductSearch,
		PermLabsAccess, PermAdvancedAnalytics, PermExportData,
		PermAIRecommendations,
	},
	RoleManager: {
		PermInviteMembers,
		PermCreateProjects, PermEditProjects, PermManageProjectAccess,
		PermViewAllProjects, PermCollaborate, PermProductSearch,
		PermLabsAccess,
		PermAIRecommendations,
	},
	RoleMember: {
		PermCreateProjects, PermEditProjects,
		PermViewAllProjects, PermCollaborate, PermProductSearch,
		PermLabsAccess,
		PermAIRecommendations,
	},
	RoleViewer: {
		PermViewAllProjects, PermProductSearch,
		PermAIRecommendations,
	},
}

// PermissionsFor returns the full permission set for a role.  Every known
// capability is present in the result with an explicit boolean, and a fresh
// map is built on every call so callers can never alias or partially update
// a shared value.  Unknown roles get a set with every capability false.
func PermissionsFor(role Role) PermissionSet {
	set := make(PermissionSet, len(Capabilities))
	for _, c := range Capabilities {
		set[c] = false
	}
	for _, c := range grants[role] {
		set[c] = true
	}
	return set
}
