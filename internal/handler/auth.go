package handler

import (
	"context"      // context with timeouts for store calls
	"database/sql" // sentinel row errors from the repositories
	"net/http"     // HTTP status codes
	"time"         // token expiries and cookie lifetimes

	"github.com/labstack/echo/v4"

	"github.com/samuraidojo/dojo/internal/config"
	"github.com/samuraidojo/dojo/internal/lockout"
	"github.com/samuraidojo/dojo/internal/middleware"
	"github.com/samuraidojo/dojo/internal/model"
	"github.com/samuraidojo/dojo/internal/queue"
	"github.com/samuraidojo/dojo/internal/repository"
	"github.com/samuraidojo/dojo/internal/utils"
)

// UserStore is the credential store as the auth flows see it.  Implemented
// by repository.UserRepo; handler tests substitute an in-memory version.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, firstName, lastName string) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	RecordLoginFailure(ctx context.Context, id uint64) error
	RecordLoginSuccess(ctx context.Context, id uint64) error
	SetVerificationToken(ctx context.Context, id uint64, tokenHash string, expires time.Time) error
	ConsumeVerificationToken(ctx context.Context, tokenHash string) (uint64, error)
	SetResetToken(ctx context.Context, id uint64, tokenHash string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string) (uint64, error)
	UpdatePassword(ctx context.Context, id uint64, newPasswordHash string) error
}

// TokenStore persists refresh-token digests for rotation.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ConsumeRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// EmailPublisher queues one outbound email event.  Failures are logged by
// the publisher and deliberately not surfaced to clients.
type EmailPublisher func(ctx context.Context, event queue.EmailEvent) error

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg          config.Config
	Users        UserStore
	Tokens       TokenStore
	Workspaces   WorkspaceStore
	Members      MemberStore
	PublishEmail EmailPublisher
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, w WorkspaceStore, m MemberStore, pub EmailPublisher) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Workspaces: w, Members: m, PublishEmail: pub}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type emailReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID            uint64 `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	EmailVerified bool   `json:"email_verified"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, EmailVerified: u.EmailVerified}
}

// issuePair mints an access+refresh pair for the user, persists the refresh
// digest, and sets both auth cookies.  Every call mints a fresh refresh
// token; the old one (if any) must already be consumed by the caller.
func (h *AuthHandler) issuePair(ctx context.Context, c echo.Context, u model.User) (authResp, error) {
	access, err := utils.NewAuthToken(h.Cfg.AccessSecret, u.ID, h.Cfg.AccessTTL)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewAuthToken(h.Cfg.RefreshSecret, u.ID, h.Cfg.RefreshTTL)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashTokenRaw(refresh.Token), refresh.Exp); err != nil {
		return authResp{}, err
	}
	h.setAuthCookies(c, access, refresh)
	return authResp{
		User:    toUserPart(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Token, Expires: refresh.Exp},
	}, nil
}

func (h *AuthHandler) setAuthCookies(c echo.Context, access, refresh utils.SignedToken) {
	c.SetCookie(h.authCookie(middleware.AccessCookie, access.Token, access.Exp))
	c.SetCookie(h.authCookie(middleware.RefreshCookie, refresh.Token, refresh.Exp))
}

func (h *AuthHandler) authCookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteStrictMode,
	}
}

// clearAuthCookies overwrites both auth cookies with short-lived blanks.
func (h *AuthHandler) clearAuthCookies(c echo.Context) {
	exp := time.Now().Add(10 * time.Second)
	c.SetCookie(h.authCookie(middleware.AccessCookie, "loggedout", exp))
	c.SetCookie(h.authCookie(middleware.RefreshCookie, "loggedout", exp))
}

// ValidateEmail is the public pre-registration check the signup form calls
// while the user types: format, corporate domain, and availability.
func (h *AuthHandler) ValidateEmail(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	email := utils.NormalizeEmail(req.Email)
	if !utils.ValidEmail(email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email format"})
	}
	if !utils.IsCorporateEmail(email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "please use a corporate email address"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if _, err := h.Users.GetByEmail(ctx, email); err == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	} else if err != sql.ErrNoRows {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "email validation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "domain": utils.EmailDomain(email)})
}

// Register creates an account gated on a corporate email and a compliant
// password, provisions the user's personal workspace with a creator
// membership, and queues the verification email.  No tokens are issued
// until the user logs in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := utils.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, password, first_name and last_name are required"})
	}
	if !utils.ValidEmail(email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email format"})
	}
	if !utils.IsCorporateEmail(email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "please use a corporate email address"})
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, email, hash, req.FirstName, req.LastName)
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	// Personal workspace, with the new user as its creator.
	wsID, err := h.Workspaces.Create(ctx, model.Workspace{
		Name:        req.FirstName + "'s Personal Workspace",
		Description: "Personal workspace for individual projects",
		Domain:      utils.EmailDomain(email),
		Type:        model.WorkspacePersonal,
		MaxMembers:  model.DefaultMaxMembers,
		CreatedBy:   uid,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	if err := h.sendVerification(ctx, uid, email); err != nil {
		// Registration stands even when the email could not be queued; the
		// user can request a resend.
		c.Logger().Warnf("register: queue verification email failed: %v", err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"user":      userPart{ID: uid, Email: email, FirstName: req.FirstName, LastName: req.LastName},
		"workspace": echo.Map{"id": wsID, "type": model.WorkspacePersonal},
		"message":   "registered successfully, please check your email for verification",
	})
}

func (h *AuthHandler) sendVerification(ctx context.Context, uid uint64, email string) error {
	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return err
	}
	if err := h.Users.SetVerificationToken(ctx, uid, utils.HashTokenRaw(raw), time.Now().UTC().Add(24*time.Hour)); err != nil {
		return err
	}
	return h.PublishEmail(ctx, queue.EmailEvent{
		Kind:    queue.EmailVerification,
		To:      email,
		Subject: "Verify your email",
		Message: "Verify your email: /v1/auth/verify-email/" + raw,
	})
}

// Login verifies credentials and returns a fresh token pair.  The lock
// check runs before password verification so a locked account is rejected
// without leaking whether the password was right, and the response for an
// unknown email is identical to the one for a wrong password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := utils.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	state := lockout.State{Attempts: u.FailedAttempts, LockUntil: u.LockUntil}
	if lockout.Locked(state, time.Now().UTC()) {
		return c.JSON(http.StatusLocked, echo.Map{"error": "account is temporarily locked due to too many failed login attempts, please try again later"})
	}

	if u.PasswordHash == "" || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		if err := h.Users.RecordLoginFailure(ctx, u.ID); err != nil {
			c.Logger().Errorf("login: record failure: %v", err)
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
	}

	if err := h.Users.RecordLoginSuccess(ctx, u.ID); err != nil {
		c.Logger().Errorf("login: record success: %v", err)
	}

	resp, err := h.issuePair(ctx, c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh exchanges a live refresh token for a new access+refresh pair.
// The presented token is consumed first, so every refresh rotates and a
// replayed or superseded token fails.  All failure modes collapse to one
// 401 so callers cannot probe which stage rejected them.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := h.extractRefreshToken(c)
	if raw == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	uid, err := utils.VerifyAuthToken(h.Cfg.RefreshSecret, raw)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	owner, err := h.Tokens.ConsumeRefresh(ctx, utils.HashTokenRaw(raw))
	if err != nil || owner != uid {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil || !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}

	resp, err := h.issuePair(ctx, c, u)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) extractRefreshToken(c echo.Context) string {
	if v := c.Request().Header.Get("X-Refresh-Token"); v != "" {
		return v
	}
	if ck, err := c.Cookie(middleware.RefreshCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	var req refreshReq
	if err := c.Bind(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

// Logout revokes the presented refresh token (best effort) and clears both
// auth cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	if raw := h.extractRefreshToken(c); raw != "" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		_ = h.Tokens.RevokeByHash(ctx, utils.HashTokenRaw(raw))
	}
	h.clearAuthCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out successfully"})
}

// VerifyEmail redeems an email-verification link.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	raw := c.Param("token")
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if _, err := h.Users.ConsumeVerificationToken(ctx, utils.HashTokenRaw(raw)); err != nil {
		if err == repository.ErrTokenSpent {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is invalid or has expired"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "email verification failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email verified successfully"})
}

// ResendVerification issues a new verification token for the signed-in,
// still-unverified user.  This route sits on the verification allow-list
// in the Protect middleware.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you are not logged in"})
	}
	if u.EmailVerified {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is already verified"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.sendVerification(ctx, u.ID, u.Email); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send verification email"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "verification email sent"})
}

// ForgotPassword queues a reset email.  The response is identical whether
// or not the account exists, so this endpoint cannot be used to enumerate
// accounts.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	const reply = "if an account with that email exists, a password reset link has been sent"
	var req emailReq
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, utils.NormalizeEmail(req.Email))
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"message": reply})
	}
	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"message": reply})
	}
	if err := h.Users.SetResetToken(ctx, u.ID, utils.HashTokenRaw(raw), time.Now().UTC().Add(10*time.Minute)); err != nil {
		c.Logger().Errorf("forgot-password: set token: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"message": reply})
	}
	_ = h.PublishEmail(ctx, queue.EmailEvent{
		Kind:    queue.EmailPasswordReset,
		To:      u.Email,
		Subject: "Password reset",
		Message: "Reset your password (valid for 10 minutes): /v1/auth/reset-password/" + raw,
	})
	return c.JSON(http.StatusOK, echo.Map{"message": reply})
}

// ResetPassword redeems a reset link: replaces the password, clears any
// lockout, revokes every outstanding refresh token, and logs the user in.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	raw := c.Param("token")
	var req resetReq
	if err := c.Bind(&req); err != nil || req.Password == "" || req.ConfirmPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password and confirm_password are required"})
	}
	if req.Password != req.ConfirmPassword {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passwords do not match"})
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password reset failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	uid, err := h.Users.ConsumeResetToken(ctx, utils.HashTokenRaw(raw), hash)
	if err != nil {
		if err == repository.ErrTokenSpent {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is invalid or has expired"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password reset failed"})
	}
	// Sessions minted against the old password die here.
	_ = h.Tokens.RevokeAllForUser(ctx, uid)

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password reset failed"})
	}
	resp, err := h.issuePair(ctx, c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password reset failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdatePassword changes the password of the signed-in user after checking
// the current one, then rotates all refresh tokens.
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you are not logged in"})
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current_password, new_password and confirm_password are required"})
	}
	if req.NewPassword != req.ConfirmPassword {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new passwords do not match"})
	}
	if err := utils.ValidatePassword(req.NewPassword); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if u.PasswordHash == "" || !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "current password is incorrect"})
	}
	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password update failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password update failed"})
	}
	_ = h.Tokens.RevokeAllForUser(ctx, u.ID)

	resp, err := h.issuePair(ctx, c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password update failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Me returns the signed-in user together with their workspace memberships.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you are not logged in"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	memberships, err := h.Members.ListForUser(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load memberships"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":       toUserPart(u),
		"workspaces": memberships,
	})
}
