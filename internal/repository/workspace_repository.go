package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/samuraidojo/dojo/internal/model"
	"github.com/samuraidojo/dojo/internal/rbac"
)

// WorkspaceRepo reads and writes the `workspaces` table.
type WorkspaceRepo struct{ DB *sql.DB }

func NewWorkspaceRepo(db *sql.DB) *WorkspaceRepo { return &WorkspaceRepo{DB: db} }

const workspaceColumns = "id,name,description,domain,type,max_members,created_by,is_active,created_at,updated_at"

func scanWorkspace(row *sql.Row) (model.Workspace, error) {
	var w model.Workspace
	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.Domain, &w.Type, &w.MaxMembers,
		&w.CreatedBy, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

// Create inserts a workspace and its creator membership in one transaction,
// so a workspace can never exist without a creator.  The creator's
// permission set is derived from the creator role at insert time.
func (r *WorkspaceRepo) Create(ctx context.Context, w model.Workspace) (uint64, error) {
	perms, err := json.Marshal(rbac.PermissionsFor(rbac.RoleCreator))
	if err != nil {
		return 0, err
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if w.MaxMembers <= 0 {
		w.MaxMembers = model.DefaultMaxMembers
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO workspaces (name, description, domain, type, max_members, created_by) VALUES (?,?,?,?,?,?)",
		w.Name, w.Description, strings.ToLower(w.Domain), w.Type, w.MaxMembers, w.CreatedBy)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO workspace_members (workspace_id, user_id, role, permissions, status, is_active, joined_at) VALUES (?,?,?,?,?,1,NOW())",
		uint64(id), w.CreatedBy, string(rbac.RoleCreator), perms, model.MemberActive); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a workspace by id.
func (r *WorkspaceRepo) GetByID(ctx context.Context, id uint64) (model.Workspace, error) {
	return scanWorkspace(r.DB.QueryRowContext(ctx,
		"SELECT "+workspaceColumns+" FROM workspaces WHERE id=? LIMIT 1", id))
}
