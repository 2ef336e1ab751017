package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/samuraidojo/dojo/internal/model"
	"github.com/samuraidojo/dojo/internal/rbac"
)

// MemberRepo reads and writes the `workspace_members` table.  Permissions
// are stored as a JSON column but are never taken from the caller: every
// write derives them from the role, so the stored set cannot diverge from
// the role table.
type MemberRepo struct{ DB *sql.DB }

func NewMemberRepo(db *sql.DB) *MemberRepo { return &MemberRepo{DB: db} }

const memberColumns = "id,workspace_id,user_id,role,permissions,status,is_active,invited_by,invite_token_hash,invite_expires_at,joined_at,created_at,updated_at"

func derivedPermissions(role rbac.Role) ([]byte, error) {
	return json.Marshal(rbac.PermissionsFor(role))
}

func scanMember(sc interface{ Scan(...any) error }) (model.Member, error) {
	var (
		m          model.Member
		role       string
		permsJSON  []byte
		invitedBy  sql.NullInt64
		inviteHash sql.NullString
		inviteExp  sql.NullTime
	)
	err := sc.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &role, &permsJSON, &m.Status,
		&m.IsActive, &invitedBy, &inviteHash, &inviteExp, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return model.Member{}, err
	}
	m.Role = rbac.Role(role)
	if len(permsJSON) > 0 {
		if err := json.Unmarshal(permsJSON, &m.Permissions); err != nil {
			return model.Member{}, err
		}
	}
	m.InviteHash = inviteHash.String
	if invitedBy.Valid {
		v := uint64(invitedBy.Int64)
		m.InvitedBy = &v
	}
	if inviteExp.Valid {
		t := inviteExp.Time
		m.InviteExpiresAt = &t
	}
	return m, nil
}

// Create inserts an active membership for a user who joined on their own.
func (r *MemberRepo) Create(ctx context.Context, workspaceID, userID uint64, role rbac.Role) (uint64, error) {
	perms, err := derivedPermissions(role)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO workspace_members (workspace_id, user_id, role, permissions, status, is_active, joined_at) VALUES (?,?,?,?,?,1,NOW())",
		workspaceID, userID, string(role), perms, model.MemberActive)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrAlreadyMember
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// CreateInvite inserts a pending membership holding an invite token digest.
func (r *MemberRepo) CreateInvite(ctx context.Context, workspaceID, userID, invitedBy uint64, role rbac.Role, inviteHash string, expires time.Time) (uint64, error) {
	perms, err := derivedPermissions(role)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO workspace_members (workspace_id, user_id, role, permissions, status, is_active, invited_by, invite_token_hash, invite_expires_at, joined_at) VALUES (?,?,?,?,?,0,?,?,?,NOW())",
		workspaceID, userID, string(role), perms, model.MemberPending, invitedBy, inviteHash, expires)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrAlreadyMember
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetActive returns the active membership binding a user to a workspace.
func (r *MemberRepo) GetActive(ctx context.Context, workspaceID, userID uint64) (model.Member, error) {
	return scanMember(r.DB.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM workspace_members WHERE workspace_id=? AND user_id=? AND is_active=1 AND status=? LIMIT 1",
		workspaceID, userID, model.MemberActive))
}

// Exists reports whether any membership row, in any state, binds the pair.
// Join eligibility treats a deactivated membership as still occupying the
// unique (workspace, user) slot.
func (r *MemberRepo) Exists(ctx context.Context, workspaceID, userID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM workspace_members WHERE workspace_id=? AND user_id=? LIMIT 1",
		workspaceID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountActive counts a workspace's active members for the member cap check.
func (r *MemberRepo) CountActive(ctx context.Context, workspaceID uint64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM workspace_members WHERE workspace_id=? AND is_active=1",
		workspaceID).Scan(&n)
	return n, err
}

// ListForUser returns a user's active memberships, newest first.
func (r *MemberRepo) ListForUser(ctx context.Context, userID uint64) ([]model.Member, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+memberColumns+" FROM workspace_members WHERE user_id=? AND is_active=1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMembers(rows)
}

// ListForWorkspace returns a workspace's active members ordered by role.
func (r *MemberRepo) ListForWorkspace(ctx context.Context, workspaceID uint64) ([]model.Member, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+memberColumns+" FROM workspace_members WHERE workspace_id=? AND is_active=1 ORDER BY role, created_at",
		workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMembers(rows)
}

func collectMembers(rows *sql.Rows) ([]model.Member, error) {
	var out []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateRole changes a member's role and rewrites the stored permission set
// from the role table in the same statement.
func (r *MemberRepo) UpdateRole(ctx context.Context, workspaceID, userID uint64, role rbac.Role) error {
	perms, err := derivedPermissions(role)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE workspace_members SET role=?, permissions=? WHERE workspace_id=? AND user_id=?",
		string(role), perms, workspaceID, userID)
	return err
}

// Deactivate removes a member without deleting the row.
func (r *MemberRepo) Deactivate(ctx context.Context, workspaceID, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE workspace_members SET is_active=0 WHERE workspace_id=? AND user_id=?",
		workspaceID, userID)
	return err
}

// GetByInviteHash resolves a pending invite by its token digest.
func (r *MemberRepo) GetByInviteHash(ctx context.Context, inviteHash string) (model.Member, error) {
	return scanMember(r.DB.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM workspace_members WHERE invite_token_hash=? AND status=? LIMIT 1",
		inviteHash, model.MemberPending))
}

// ActivateInvite flips a pending membership to active and clears the invite
// token.  The guard on status makes acceptance single-use.
func (r *MemberRepo) ActivateInvite(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE workspace_members SET status=?, is_active=1, invite_token_hash=NULL, invite_expires_at=NULL, joined_at=NOW() WHERE id=? AND status=?",
		model.MemberActive, id, model.MemberPending)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return ErrTokenSpent
	}
	return nil
}
