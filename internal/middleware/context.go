package middleware

// context.go defines the typed accessors for values the auth middleware
// resolves per request.  Handlers go through these helpers instead of
// pulling untyped values out of the Echo context themselves.

import (
	"github.com/labstack/echo/v4"

	"github.com/samuraidojo/dojo/internal/model"
)

const (
	ctxUserKey   = "auth.user"
	ctxMemberKey = "auth.membership"
)

// CurrentUser returns the identity resolved by Protect (or OptionalAuth).
// ok is false on unauthenticated requests.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ctxUserKey).(model.User)
	return u, ok
}

// CurrentMember returns the workspace membership resolved by Membership.
func CurrentMember(c echo.Context) (model.Member, bool) {
	m, ok := c.Get(ctxMemberKey).(model.Member)
	return m, ok
}

func setCurrentUser(c echo.Context, u model.User)     { c.Set(ctxUserKey, u) }
func setCurrentMember(c echo.Context, m model.Member) { c.Set(ctxMemberKey, m) }
