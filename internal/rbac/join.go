package rbac

// Join-eligibility rules for workspaces.  The checks run in a fixed order
// and the first failing one names the rejection reason, so callers can give
// a stable message regardless of how many rules a request breaks.

// Workspace join rejection reasons.
const (
	ReasonNotFound       = "user or workspace not found"
	ReasonAlreadyMember  = "already a member"
	ReasonDomainMismatch = "domain mismatch"
	ReasonMemberLimit    = "member limit reached"
)

// WorkspaceTypeTeam marks workspaces whose membership is restricted to a
// single corporate email domain.
const WorkspaceTypeTeam = "team"

// JoinRequest carries the facts needed to decide whether an identity may
// join a workspace.  The caller resolves the stores; the decision itself is
// pure.
type JoinRequest struct {
	UserFound       bool
	WorkspaceFound  bool
	UserDomain      string // email domain of the joining identity
	WorkspaceType   string // "personal", "team" or "enterprise"
	WorkspaceDomain string
	AlreadyMember   bool // any prior membership, active or not
	ActiveMembers   int
	MemberLimit     int
}

// JoinDecision is the outcome of CanJoin.  Reason is empty when OK is true.
type JoinDecision struct {
	OK     bool
	Reason string
}

// CanJoin evaluates the four join rules in order: existence, no prior
// membership, domain match for team workspaces, member cap.
func CanJoin(req JoinRequest) JoinDecision {
	if !req.UserFound || !req.WorkspaceFound {
		return JoinDecision{Reason: ReasonNotFound}
	}
	if req.AlreadyMember {
		return JoinDecision{Reason: ReasonAlreadyMember}
	}
	if req.WorkspaceType == WorkspaceTypeTeam && req.UserDomain != req.WorkspaceDomain {
		return JoinDecision{Reason: ReasonDomainMismatch}
	}
	if req.ActiveMembers >= req.MemberLimit {
		return JoinDecision{Reason: ReasonMemberLimit}
	}
	return JoinDecision{OK: true}
}
