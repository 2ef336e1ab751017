package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func eligible() JoinRequest {
	return JoinRequest{
		UserFound:       true,
		WorkspaceFound:  true,
		UserDomain:      "acme.io",
		WorkspaceType:   WorkspaceTypeTeam,
		WorkspaceDomain: "acme.io",
		ActiveMembers:   3,
		MemberLimit:     50,
	}
}

func TestCanJoin(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*JoinRequest)
		reason string
	}{
		{"eligible", func(r *JoinRequest) {}, ""},
		{"user missing", func(r *JoinRequest) { r.UserFound = false }, ReasonNotFound},
		{"workspace missing", func(r *JoinRequest) { r.WorkspaceFound = false }, ReasonNotFound},
		{"already member", func(r *JoinRequest) { r.AlreadyMember = true }, ReasonAlreadyMember},
		{"domain mismatch", func(r *JoinRequest) { r.UserDomain = "rival.io" }, ReasonDomainMismatch},
		{"at member limit", func(r *JoinRequest) { r.ActiveMembers = 50 }, ReasonMemberLimit},
		{"over member limit", func(r *JoinRequest) { r.ActiveMembers = 51 }, ReasonMemberLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := eligible()
			tc.mutate(&req)
			got := CanJoin(req)
			assert.Equal(t, tc.reason == "", got.OK)
			assert.Equal(t, tc.reason, got.Reason)
		})
	}
}

func TestCanJoinReasonOrder(t *testing.T) {
	// A request breaking several rules at once reports the first one.
	req := eligible()
	req.WorkspaceFound = false
	req.AlreadyMember = true
	req.UserDomain = "rival.io"
	req.ActiveMembers = 99
	assert.Equal(t, ReasonNotFound, CanJoin(req).Reason)

	req.WorkspaceFound = true
	assert.Equal(t, ReasonAlreadyMember, CanJoin(req).Reason)

	req.AlreadyMember = false
	assert.Equal(t, ReasonDomainMismatch, CanJoin(req).Reason)

	req.UserDomain = "acme.io"
	assert.Equal(t, ReasonMemberLimit, CanJoin(req).Reason)
}

func TestPersonalWorkspaceIgnoresDomain(t *testing.T) {
	req := eligible()
	req.WorkspaceType = "personal"
	req.WorkspaceDomain = ""
	req.UserDomain = "anything.example"
	assert.True(t, CanJoin(req).OK)
}
