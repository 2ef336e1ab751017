package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionsForCoversEveryCapability(t *testing.T) {
	for _, role := range []Role{RoleCreator, RoleAdmin, RoleManager, RoleMember, RoleViewer} {
		set := PermissionsFor(role)
		assert.Len(t, set, len(Capabilities), "role %s", role)
		for _, cap := range Capabilities {
			_, ok := set[cap]
			assert.True(t, ok, "role %s missing key %s", role, cap)
		}
	}
}

func TestCreatorHasEverything(t *testing.T) {
	set := PermissionsFor(RoleCreator)
	for _, cap := range Capabilities {
		assert.True(t, set.Has(cap), "creator should hold %s", cap)
	}
}

func TestAdminLacksOnlyOwnerCapabilities(t *testing.T) {
	set := PermissionsFor(RoleAdmin)
	denied := map[string]bool{
		PermManageWorkspace: true,
		PermDeleteWorkspace: true,
		PermTrainAI:         true,
	}
	for _, cap := range Capabilities {
		assert.Equal(t, !denied[cap], set.Has(cap), "admin %s", cap)
	}
}

func TestManagerGrants(t *testing.T) {
	set := PermissionsFor(RoleManager)
	granted := map[string]bool{
		PermInviteMembers:       true,
		PermCreateProjects:      true,
		PermEditProjects:        true,
		PermManageProjectAccess: true,
		PermViewAllProjects:     true,
		PermCollaborate:         true,
		PermProductSearch:       true,
		PermLabsAccess:          true,
		PermAIRecommendations:   true,
	}
	for _, cap := range Capabilities {
		assert.Equal(t, granted[cap], set.Has(cap), "manager %s", cap)
	}
}

func TestMemberGrants(t *testing.T) {
	set := PermissionsFor(RoleMember)
	granted := map[string]bool{
		PermCreateProjects:    true,
		PermEditProjects:      true,
		PermViewAllProjects:   true,
		PermCollaborate:       true,
		PermProductSearch:     true,
		PermLabsAccess:        true,
		PermAIRecommendations: true,
	}
	for _, cap := range Capabilities {
		assert.Equal(t, granted[cap], set.Has(cap), "member %s", cap)
	}
}

func TestViewerGrants(t *testing.T) {
	set := PermissionsFor(RoleViewer)
	granted := map[string]bool{
		PermViewAllProjects:   true,
		PermProductSearch:     true,
		PermAIRecommendations: true,
	}
	for _, cap := range Capabilities {
		assert.Equal(t, granted[cap], set.Has(cap), "viewer %s", cap)
	}
	assert.False(t, set.Has(PermCreateProjects))
	assert.False(t, set.Has(PermInviteMembers))
	assert.False(t, set.Has(PermCollaborate))
}

func TestPermissionsForReturnsFreshMaps(t *testing.T) {
	a := PermissionsFor(RoleViewer)
	a[PermDeleteWorkspace] = true
	b := PermissionsFor(RoleViewer)
	assert.False(t, b.Has(PermDeleteWorkspace), "mutating one result must not leak into the next")
}

func TestUnknownRoleGrantsNothing(t *testing.T) {
	set := PermissionsFor(Role("superuser"))
	require.Len(t, set, len(Capabilities))
	for _, cap := range Capabilities {
		assert.False(t, set.Has(cap))
	}
}

func TestHasUnknownCapability(t *testing.T) {
	set := PermissionsFor(RoleCreator)
	assert.False(t, set.Has("launchMissiles"))
}

func TestValid(t *testing.T) {
	for _, role := range []Role{RoleCreator, RoleAdmin, RoleManager, RoleMember, RoleViewer} {
		assert.True(t, role.Valid())
	}
	assert.False(t, Role("owner").Valid())
	assert.False(t, Role("").Valid())
	assert.False(t, Role("Creator").Valid(), "role names are case sensitive")
}
