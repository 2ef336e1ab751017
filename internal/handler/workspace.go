package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/samuraidojo/dojo/internal/middleware"
	"github.com/samuraidojo/dojo/internal/model"
	"github.com/samuraidojo/dojo/internal/queue"
	"github.com/samuraidojo/dojo/internal/rbac"
	"github.com/samuraidojo/dojo/internal/repository"
	"github.com/samuraidojo/dojo/internal/utils"
)

// WorkspaceStore is the workspace table as the handlers see it.
type WorkspaceStore interface {
	Create(ctx context.Context, w model.Workspace) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.Workspace, error)
}

// MemberStore is the membership store as the handlers see it.  Implemented
// by repository.MemberRepo.
type MemberStore interface {
	Create(ctx context.Context, workspaceID, userID uint64, role rbac.Role) (uint64, error)
	CreateInvite(ctx context.Context, workspaceID, userID, invitedBy uint64, role rbac.Role, inviteHash string, expires time.Time) (uint64, error)
	GetActive(ctx context.Context, workspaceID, userID uint64) (model.Member, error)
	Exists(ctx context.Context, workspaceID, userID uint64) (bool, error)
	CountActive(ctx context.Context, workspaceID uint64) (int, error)
	ListForUser(ctx context.Context, userID uint64) ([]model.Member, error)
	ListForWorkspace(ctx context.Context, workspaceID uint64) ([]model.Member, error)
	UpdateRole(ctx context.Context, workspaceID, userID uint64, role rbac.Role) error
	Deactivate(ctx context.Context, workspaceID, userID uint64) error
	GetByInviteHash(ctx context.Context, inviteHash string) (model.Member, error)
	ActivateInvite(ctx context.Context, id uint64) error
}

// WorkspaceHandler bundles dependencies for the workspace endpoints.
type WorkspaceHandler struct {
	Users        UserStore
	Workspaces   WorkspaceStore
	Members      MemberStore
	PublishEmail EmailPublisher
}

func NewWorkspaceHandler(u UserStore, w WorkspaceStore, m MemberStore, pub EmailPublisher) *WorkspaceHandler {
	return &WorkspaceHandler{Users: u, Workspaces: w, Members: m, PublishEmail: pub}
}

// ----- DTOs -----

type createWorkspaceReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	MaxMembers  int    `json:"max_members"`
}
type inviteReq struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}
type roleReq struct {
	Role string `json:"role"`
}

// Create makes a workspace owned by the signed-in user.  The workspace
// domain is always the creator's email domain; the creator membership is
// written in the same transaction as the workspace itself.
func (h *WorkspaceHandler) Create(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you are not logged in"})
	}
	var req createWorkspaceReq
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	switch req.Type {
	case model.WorkspacePersonal, model.WorkspaceTeam, model.WorkspaceEnterprise:
	case "":
		req.Type = model.WorkspacePersonal
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type must be personal, team or enterprise"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	id, err := h.Workspaces.Create(ctx, model.Workspace{
		Name:        req.Name,
		Description: req.Description,
		Domain:      u.EmailDomain,
		Type:        req.Type,
		MaxMembers:  req.MaxMembers,
		CreatedBy:   u.ID,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create workspace failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "name": req.Name, "type": req.Type, "domain": u.EmailDomain})
}

// List returns the signed-in user's active memberships.
func (h *WorkspaceHandler) List(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you are not logged in"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	memberships, err := h.Members.ListForUser(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load workspaces"})
	}
	return c.JSON(http.StatusOK, echo.Map{"workspaces": memberships})
}

// Get returns one workspace.  Membership middleware has already proven the
// caller belongs to it.
func (h *WorkspaceHandler) Get(c echo.Context) error {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	w, err := h.Workspaces.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "workspace not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load workspace"})
	}
	return c.JSON(http.StatusOK, w)
}

// ListMembers lists a workspace's active members.
func (h *WorkspaceHandler) ListMembers(c echo.Context) error {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	members, err := h.Members.ListForWorkspace(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load members"})
	}
	return c.JSON(http.StatusOK, echo.Map{"members": members})
}

// Join adds the signed-in user to a workspace as a regular member.  The
// four eligibility rules run in order and the first failure names the
// rejection: existence, no prior membership, domain match for team
// workspaces, member cap.
func (h *WorkspaceHandler) Join(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you are not logged in"})
	}
	workspaceID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || workspaceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid workspace id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	decision, err := h.joinDecision(ctx, u, workspaceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "join failed"})
	}
	if !decision.OK {
		status := http.StatusForbidden
		switch decision.Reason {
		case rbac.ReasonNotFound:
			status = http.StatusNotFound
		case rbac.ReasonAlreadyMember:
			status = http.StatusConflict
		}
		return c.JSON(status, echo.Map{"error": decision.Reason})
	}

	id, err := h.Members.Create(ctx, workspaceID, u.ID, rbac.RoleMember)
	if err != nil {
		if err == repository.ErrAlreadyMember {
			return c.JSON(http.StatusConflict, echo.Map{"error": rbac.ReasonAlreadyMember})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "join failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"membership_id": id, "role": rbac.RoleMember})
}

func (h *WorkspaceHandler) joinDecision(ctx context.Context, u model.User, workspaceID uint64) (rbac.JoinDecision, error) {
	req := rbac.JoinRequest{UserFound: true, UserDomain: u.EmailDomain}
	w, err := h.Workspaces.GetByID(ctx, workspaceID)
	switch err {
	case nil:
		req.WorkspaceFound = w.IsActive
		req.WorkspaceType = w.Type
		req.WorkspaceDomain = w.Domain
		req.MemberLimit = w.MaxMembers
	case sql.ErrNoRows:
		// leave WorkspaceFound false
	default:
		return rbac.JoinDecision{}, err
	}
	if req.WorkspaceFound {
		exists, err := h.Members.Exists(ctx, workspaceID, u.ID)
		if err != nil {
			return rbac.JoinDecision{}, err
		}
		req.AlreadyMember = exists
		count, err := h.Members.CountActive(ctx, workspaceID)
		if err != nil {
			return rbac.JoinDecision{}, err
		}
		req.ActiveMembers = count
	}
	return rbac.CanJoin(req), nil
}

// Invite creates a pending membership for another user and queues the
// invite email.  Requires the inviteMembers capability (enforced by route
// middleware).  The invited role is capped below admin unless the inviter
// may edit member roles.
func (h *WorkspaceHandler) Invite(c echo.Context) error {
	u, _ := middleware.CurrentUser(c)
	m, ok := middleware.CurrentMember(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no workspace membership found"})
	}
	var req inviteReq
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	role := rbac.Role(req.Role)
	if req.Role == "" {
		role = rbac.RoleMember
	}
	if !role.Valid() || role == rbac.RoleCreator {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be admin, manager, member or viewer"})
	}
	if (role == rbac.RoleAdmin || role == rbac.RoleManager) && !m.Permissions.Has(rbac.PermEditMemberRoles) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you do not have permission to " + rbac.PermEditMemberRoles})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	invitee, err := h.Users.GetByEmail(ctx, utils.NormalizeEmail(req.Email))
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no account with that email"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "invite failed"})
	}

	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "invite failed"})
	}
	expires := time.Now().UTC().Add(7 * 24 * time.Hour)
	id, err := h.Members.CreateInvite(ctx, m.WorkspaceID, invitee.ID, u.ID, role, utils.HashTokenRaw(raw), expires)
	if err != nil {
		if err == repository.ErrAlreadyMember {
			return c.JSON(http.StatusConflict, echo.Map{"error": rbac.ReasonAlreadyMember})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "invite failed"})
	}
	_ = h.PublishEmail(ctx, queue.EmailEvent{
		Kind:    queue.EmailInvite,
		To:      invitee.Email,
		Subject: "Workspace invitation",
		Message: "Accept your invitation: /v1/workspaces/invites/" + raw + "/accept",
	})
	return c.JSON(http.StatusCreated, echo.Map{"membership_id": id, "role": role, "expires": expires})
}

// AcceptInvite redeems an invite token for the signed-in user.  The
// eligibility rules (minus the prior-membership rule, which the pending row
// itself satisfies) are re-checked at acceptance time, not trusted from
// invite time.
func (h *WorkspaceHandler) AcceptInvite(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you are not logged in"})
	}
	raw := c.Param("token")
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	m, err := h.Members.GetByInviteHash(ctx, utils.HashTokenRaw(raw))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invite is invalid or has expired"})
	}
	if m.UserID != u.ID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "this invite belongs to another account"})
	}
	if m.InviteExpiresAt == nil || m.InviteExpiresAt.Before(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invite is invalid or has expired"})
	}

	w, err := h.Workspaces.GetByID(ctx, m.WorkspaceID)
	if err != nil || !w.IsActive {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invite is invalid or has expired"})
	}
	if w.Type == model.WorkspaceTeam && u.EmailDomain != w.Domain {
		return c.JSON(http.StatusForbidden, echo.Map{"error": rbac.ReasonDomainMismatch})
	}
	count, err := h.Members.CountActive(ctx, m.WorkspaceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "accept failed"})
	}
	if count >= w.MaxMembers {
		return c.JSON(http.StatusForbidden, echo.Map{"error": rbac.ReasonMemberLimit})
	}

	if err := h.Members.ActivateInvite(ctx, m.ID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invite is invalid or has expired"})
	}
	return c.JSON(http.StatusOK, echo.Map{"workspace_id": m.WorkspaceID, "role": m.Role})
}

// UpdateMemberRole changes another member's role; the stored permission set
// is rewritten from the role table.  The creator role can be neither
// granted nor taken away.
func (h *WorkspaceHandler) UpdateMemberRole(c echo.Context) error {
	m, ok := middleware.CurrentMember(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no workspace membership found"})
	}
	targetID, err := strconv.ParseUint(c.Param("userID"), 10, 64)
	if err != nil || targetID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	role := rbac.Role(req.Role)
	if !role.Valid() || role == rbac.RoleCreator {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be admin, manager, member or viewer"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	target, err := h.Members.GetActive(ctx, m.WorkspaceID, targetID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "member not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role update failed"})
	}
	if target.Role == rbac.RoleCreator {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "the creator's role cannot be changed"})
	}

	if err := h.Members.UpdateRole(ctx, m.WorkspaceID, targetID, role); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": targetID, "role": role, "permissions": rbac.PermissionsFor(role)})
}

// RemoveMember deactivates a membership.  The creator cannot be removed.
func (h *WorkspaceHandler) RemoveMember(c echo.Context) error {
	m, ok := middleware.CurrentMember(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no workspace membership found"})
	}
	targetID, err := strconv.ParseUint(c.Param("userID"), 10, 64)
	if err != nil || targetID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	target, err := h.Members.GetActive(ctx, m.WorkspaceID, targetID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "member not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "remove failed"})
	}
	if target.Role == rbac.RoleCreator {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "the creator cannot be removed"})
	}

	if err := h.Members.Deactivate(ctx, m.WorkspaceID, targetID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "remove failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
