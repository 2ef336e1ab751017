package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/samuraidojo/dojo/internal/config"
	"github.com/samuraidojo/dojo/internal/handler"    // import the handlers that implement business logic
	"github.com/samuraidojo/dojo/internal/middleware" // import middleware for authentication and permission enforcement
	"github.com/samuraidojo/dojo/internal/rbac"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth and
// sit behind the Redis rate limiter; protected endpoints run the Protect
// pipeline.  The verification routes are the two paths an unverified user
// may still reach.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, rdb *redis.Client, limits config.AuthLimitConfig, users middleware.UserLoader) {
	var client *redis.Client
	if limits.Enabled {
		client = rdb
	}
	authLimit := middleware.RateLimit(client, limits.Prefix, limits.LoginMax, limits.Window)
	resetLimit := middleware.RateLimit(client, limits.Prefix+":reset", limits.ResetMax, limits.ResetWindow)

	// Operations that do not require an existing session.
	g := e.Group("/v1/auth")
	g.POST("/validate-email", a.ValidateEmail, authLimit)
	g.POST("/register", a.Register, authLimit)
	g.POST("/login", a.Login, authLimit)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.GET("/verify-email/:token", a.VerifyEmail)
	g.POST("/forgot-password", a.ForgotPassword, resetLimit)
	g.PATCH("/reset-password/:token", a.ResetPassword, resetLimit)

	// Operations on the current session.  Protect resolves and vets the
	// identity; resend-verification is on its allow-list so an unverified
	// user can still request a fresh link.
	protect := middleware.Protect(a.Cfg.AccessSecret, users)
	g.POST("/resend-verification", a.ResendVerification, protect)
	g.PATCH("/update-password", a.UpdatePassword, protect)

	e.GET("/v1/me", a.Me, protect)
}

// RegisterWorkspaces registers the workspace and membership routes.  All of
// them require a verified session; the member-management operations are
// additionally gated on the caller's role-derived capabilities.
func RegisterWorkspaces(e *echo.Echo, w *handler.WorkspaceHandler, accessSecret string, users middleware.UserLoader, members middleware.MemberLoader) {
	protect := middleware.Protect(accessSecret, users)

	g := e.Group("/v1/workspaces", protect)
	g.POST("", w.Create)
	g.GET("", w.List)
	g.POST("/invites/:token/accept", w.AcceptInvite)
	g.POST("/:id/join", w.Join)

	// Routes below resolve the caller's membership in the :id workspace.
	ws := g.Group("/:id", middleware.Membership(members))
	ws.GET("", w.Get)
	ws.GET("/members", w.ListMembers)
	ws.POST("/invites", w.Invite, middleware.RequirePermission(rbac.PermInviteMembers))
	ws.PATCH("/members/:userID", w.UpdateMemberRole, middleware.RequirePermission(rbac.PermEditMemberRoles))
	ws.DELETE("/members/:userID", w.RemoveMember, middleware.RequirePermission(rbac.PermRemoveMembers))
}
