package handler

// stubs_test.go holds the in-memory store implementations the handler
// tests run against.  They mirror the repository semantics (normalized
// emails, single-use tokens, derived permissions, lockout counters) without
// a database, so the tests exercise full request flows through real routes.

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/samuraidojo/dojo/internal/config"
	"github.com/samuraidojo/dojo/internal/lockout"
	"github.com/samuraidojo/dojo/internal/middleware"
	"github.com/samuraidojo/dojo/internal/model"
	"github.com/samuraidojo/dojo/internal/queue"
	"github.com/samuraidojo/dojo/internal/rbac"
	"github.com/samuraidojo/dojo/internal/repository"
	"github.com/samuraidojo/dojo/internal/utils"
)

func testConfig() config.Config {
	return config.Config{
		Env:              "dev",
		AccessSecret:     "test-access-secret",
		RefreshSecret:    "test-refresh-secret",
		AccessTTL:        time.Hour,
		RefreshTTL:       24 * time.Hour,
		BcryptCost:       bcrypt.MinCost,
		LoginMaxAttempts: 5,
		LockoutDuration:  2 * time.Hour,
	}
}

type opaqueRow struct {
	userID  uint64
	expires time.Time
}

type memUsers struct {
	mu          sync.Mutex
	nextID      uint64
	users       map[uint64]*model.User
	byEmail     map[string]uint64
	verif       map[string]opaqueRow
	reset       map[string]opaqueRow
	maxAttempts int
	lockFor     time.Duration
}

func newMemUsers(maxAttempts int, lockFor time.Duration) *memUsers {
	return &memUsers{
		users:       map[uint64]*model.User{},
		byEmail:     map[string]uint64{},
		verif:       map[string]opaqueRow{},
		reset:       map[string]opaqueRow{},
		maxAttempts: maxAttempts,
		lockFor:     lockFor,
	}
}

func (s *memUsers) Create(_ context.Context, email, passwordHash, firstName, lastName string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = utils.NormalizeEmail(email)
	if _, taken := s.byEmail[email]; taken {
		return 0, repository.ErrEmailExists
	}
	s.nextID++
	now := time.Now().UTC()
	s.users[s.nextID] = &model.User{
		ID: s.nextID, Email: email, PasswordHash: passwordHash,
		FirstName: firstName, LastName: lastName,
		EmailDomain: utils.EmailDomain(email),
		IsActive:    true, CreatedAt: now, UpdatedAt: now,
	}
	s.byEmail[email] = s.nextID
	return s.nextID, nil
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[utils.NormalizeEmail(email)]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return *s.users[id], nil
}

func (s *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return *u, nil
}

func (s *memUsers) RecordLoginFailure(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	st := lockout.Fail(lockout.State{Attempts: u.FailedAttempts, LockUntil: u.LockUntil},
		time.Now().UTC(), s.maxAttempts, s.lockFor)
	u.FailedAttempts, u.LockUntil = st.Attempts, st.LockUntil
	return nil
}

func (s *memUsers) RecordLoginSuccess(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.FailedAttempts, u.LockUntil = 0, nil
	now := time.Now().UTC()
	u.LastLogin = &now
	return nil
}

func (s *memUsers) SetVerificationToken(_ context.Context, id uint64, tokenHash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verif[tokenHash] = opaqueRow{userID: id, expires: expires}
	return nil
}

func (s *memUsers) ConsumeVerificationToken(_ context.Context, tokenHash string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.verif[tokenHash]
	if !ok || row.expires.Before(time.Now().UTC()) {
		return 0, repository.ErrTokenSpent
	}
	delete(s.verif, tokenHash)
	s.users[row.userID].EmailVerified = true
	return row.userID, nil
}

func (s *memUsers) SetResetToken(_ context.Context, id uint64, tokenHash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset[tokenHash] = opaqueRow{userID: id, expires: expires}
	return nil
}

func (s *memUsers) ConsumeResetToken(_ context.Context, tokenHash, newPasswordHash string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.reset[tokenHash]
	if !ok || row.expires.Before(time.Now().UTC()) {
		return 0, repository.ErrTokenSpent
	}
	delete(s.reset, tokenHash)
	u := s.users[row.userID]
	u.PasswordHash = newPasswordHash
	u.FailedAttempts, u.LockUntil = 0, nil
	return row.userID, nil
}

func (s *memUsers) UpdatePassword(_ context.Context, id uint64, newPasswordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id].PasswordHash = newPasswordHash
	return nil
}

type memTokens struct {
	mu   sync.Mutex
	rows map[string]*model.RefreshToken
}

func newMemTokens() *memTokens { return &memTokens{rows: map[string]*model.RefreshToken{}} }

func (s *memTokens) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[tokenHash] = &model.RefreshToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: exp}
	return nil
}

func (s *memTokens) ConsumeRefresh(_ context.Context, tokenHash string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[tokenHash]
	if !ok || row.RevokedAt != nil || !row.ExpiresAt.After(time.Now().UTC()) {
		return 0, repository.ErrTokenSpent
	}
	now := time.Now().UTC()
	row.RevokedAt = &now
	return row.UserID, nil
}

func (s *memTokens) RevokeByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[tokenHash]; ok && row.RevokedAt == nil {
		now := time.Now().UTC()
		row.RevokedAt = &now
	}
	return nil
}

func (s *memTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, row := range s.rows {
		if row.UserID == userID && row.RevokedAt == nil {
			row.RevokedAt = &now
		}
	}
	return nil
}

func (s *memTokens) live(userID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.UserID == userID && row.RevokedAt == nil {
			n++
		}
	}
	return n
}

type memWorkspaces struct {
	mu      sync.Mutex
	nextID  uint64
	rows    map[uint64]*model.Workspace
	members *memMembers
}

func newMemWorkspaces(members *memMembers) *memWorkspaces {
	return &memWorkspaces{rows: map[uint64]*model.Workspace{}, members: members}
}

func (s *memWorkspaces) Create(ctx context.Context, w model.Workspace) (uint64, error) {
	s.mu.Lock()
	s.nextID++
	w.ID = s.nextID
	if w.MaxMembers <= 0 {
		w.MaxMembers = model.DefaultMaxMembers
	}
	w.IsActive = true
	cp := w
	s.rows[w.ID] = &cp
	s.mu.Unlock()

	// Creator membership rides along, as it does in the real store.
	_, err := s.members.Create(ctx, w.ID, w.CreatedBy, rbac.RoleCreator)
	return w.ID, err
}

func (s *memWorkspaces) GetByID(_ context.Context, id uint64) (model.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.rows[id]
	if !ok {
		return model.Workspace{}, sql.ErrNoRows
	}
	return *w, nil
}

type memMembers struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]*model.Member
	byPair map[[2]uint64]uint64
}

func newMemMembers() *memMembers {
	return &memMembers{rows: map[uint64]*model.Member{}, byPair: map[[2]uint64]uint64{}}
}

func (s *memMembers) insert(m model.Member) (uint64, error) {
	key := [2]uint64{m.WorkspaceID, m.UserID}
	if _, taken := s.byPair[key]; taken {
		return 0, repository.ErrAlreadyMember
	}
	s.nextID++
	m.ID = s.nextID
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	s.rows[m.ID] = &m
	s.byPair[key] = m.ID
	return m.ID, nil
}

func (s *memMembers) Create(_ context.Context, workspaceID, userID uint64, role rbac.Role) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(model.Member{
		WorkspaceID: workspaceID, UserID: userID, Role: role,
		Permissions: rbac.PermissionsFor(role),
		Status:      model.MemberActive, IsActive: true,
		JoinedAt: time.Now().UTC(),
	})
}

func (s *memMembers) CreateInvite(_ context.Context, workspaceID, userID, invitedBy uint64, role rbac.Role, inviteHash string, expires time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(model.Member{
		WorkspaceID: workspaceID, UserID: userID, Role: role,
		Permissions: rbac.PermissionsFor(role),
		Status:      model.MemberPending,
		InvitedBy:   &invitedBy, InviteHash: inviteHash, InviteExpiresAt: &expires,
	})
}

func (s *memMembers) GetActive(_ context.Context, workspaceID, userID uint64) (model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPair[[2]uint64{workspaceID, userID}]
	if !ok {
		return model.Member{}, sql.ErrNoRows
	}
	m := s.rows[id]
	if !m.IsActive || m.Status != model.MemberActive {
		return model.Member{}, sql.ErrNoRows
	}
	return *m, nil
}

func (s *memMembers) Exists(_ context.Context, workspaceID, userID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byPair[[2]uint64{workspaceID, userID}]
	return ok, nil
}

func (s *memMembers) CountActive(_ context.Context, workspaceID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.rows {
		if m.WorkspaceID == workspaceID && m.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *memMembers) ListForUser(_ context.Context, userID uint64) ([]model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Member
	for _, m := range s.rows {
		if m.UserID == userID && m.IsActive {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memMembers) ListForWorkspace(_ context.Context, workspaceID uint64) ([]model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Member
	for _, m := range s.rows {
		if m.WorkspaceID == workspaceID && m.IsActive {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memMembers) UpdateRole(_ context.Context, workspaceID, userID uint64, role rbac.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPair[[2]uint64{workspaceID, userID}]; ok {
		s.rows[id].Role = role
		s.rows[id].Permissions = rbac.PermissionsFor(role)
	}
	return nil
}

func (s *memMembers) Deactivate(_ context.Context, workspaceID, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPair[[2]uint64{workspaceID, userID}]; ok {
		s.rows[id].IsActive = false
	}
	return nil
}

func (s *memMembers) GetByInviteHash(_ context.Context, inviteHash string) (model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.rows {
		if m.InviteHash == inviteHash && m.Status == model.MemberPending {
			return *m, nil
		}
	}
	return model.Member{}, sql.ErrNoRows
}

func (s *memMembers) ActivateInvite(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok || m.Status != model.MemberPending {
		return repository.ErrTokenSpent
	}
	m.Status = model.MemberActive
	m.IsActive = true
	m.InviteHash = ""
	m.InviteExpiresAt = nil
	m.JoinedAt = time.Now().UTC()
	return nil
}

// testApp is one fully wired application instance over in-memory stores.
type testApp struct {
	e       *echo.Echo
	cfg     config.Config
	users   *memUsers
	tokens  *memTokens
	spaces  *memWorkspaces
	members *memMembers
	sent    []queue.EmailEvent
	sentMu  sync.Mutex
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := testConfig()
	app := &testApp{
		cfg:     cfg,
		users:   newMemUsers(cfg.LoginMaxAttempts, cfg.LockoutDuration),
		tokens:  newMemTokens(),
		members: newMemMembers(),
	}
	app.spaces = newMemWorkspaces(app.members)

	pub := func(_ context.Context, ev queue.EmailEvent) error {
		app.sentMu.Lock()
		defer app.sentMu.Unlock()
		app.sent = append(app.sent, ev)
		return nil
	}
	auth := NewAuthHandler(cfg, app.users, app.tokens, app.spaces, app.members, pub)
	ws := NewWorkspaceHandler(app.users, app.spaces, app.members, pub)

	e := echo.New()
	protect := middleware.Protect(cfg.AccessSecret, app.users)

	g := e.Group("/v1/auth")
	g.POST("/validate-email", auth.ValidateEmail)
	g.POST("/register", auth.Register)
	g.POST("/login", auth.Login)
	g.POST("/refresh", auth.Refresh)
	g.POST("/logout", auth.Logout)
	g.GET("/verify-email/:token", auth.VerifyEmail)
	g.POST("/resend-verification", auth.ResendVerification, protect)
	g.POST("/forgot-password", auth.ForgotPassword)
	g.PATCH("/reset-password/:token", auth.ResetPassword)
	g.PATCH("/update-password", auth.UpdatePassword, protect)
	e.GET("/v1/me", auth.Me, protect)

	w := e.Group("/v1/workspaces", protect)
	w.POST("", ws.Create)
	w.GET("", ws.List)
	w.POST("/invites/:token/accept", ws.AcceptInvite)
	w.POST("/:id/join", ws.Join)
	one := w.Group("/:id", middleware.Membership(app.members))
	one.GET("", ws.Get)
	one.GET("/members", ws.ListMembers)
	one.POST("/invites", ws.Invite, middleware.RequirePermission(rbac.PermInviteMembers))
	one.PATCH("/members/:userID", ws.UpdateMemberRole, middleware.RequirePermission(rbac.PermEditMemberRoles))
	one.DELETE("/members/:userID", ws.RemoveMember, middleware.RequirePermission(rbac.PermRemoveMembers))

	app.e = e
	return app
}

func (a *testApp) req(t *testing.T, method, target, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// register creates a verified account and returns its id, skipping the
// email round-trip tests that exercise the verification flow explicitly.
func (a *testApp) register(t *testing.T, email, password string) uint64 {
	t.Helper()
	rec := a.req(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": email, "password": password, "first_name": "Test", "last_name": "User",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	u, err := a.users.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	a.users.mu.Lock()
	a.users.users[u.ID].EmailVerified = true
	a.users.mu.Unlock()
	return u.ID
}

// login returns the access and refresh tokens for an account.
func (a *testApp) login(t *testing.T, email, password string) (string, string) {
	t.Helper()
	rec := a.req(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	access := body["access"].(map[string]any)["token"].(string)
	refresh := body["refresh"].(map[string]any)["token"].(string)
	return access, refresh
}

func (a *testApp) lastEmail(t *testing.T, kind string) queue.EmailEvent {
	t.Helper()
	a.sentMu.Lock()
	defer a.sentMu.Unlock()
	for i := len(a.sent) - 1; i >= 0; i-- {
		if a.sent[i].Kind == kind {
			return a.sent[i]
		}
	}
	t.Fatalf("no %s email was queued", kind)
	return queue.EmailEvent{}
}
