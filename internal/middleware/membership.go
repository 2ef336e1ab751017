package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/samuraidojo/dojo/internal/model"
)

// MemberLoader is the slice of the membership store the workspace
// middleware needs.
type MemberLoader interface {
	GetActive(ctx context.Context, workspaceID, userID uint64) (model.Member, error)
}

// Membership resolves the authenticated user's active membership in the
// workspace named by the :id route parameter and attaches it to the request
// context.  Must run after Protect.
func Membership(members MemberLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you are not logged in"})
			}
			workspaceID, err := strconv.ParseUint(c.Param("id"), 10, 64)
			if err != nil || workspaceID == 0 {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid workspace id"})
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			m, err := members.GetActive(ctx, workspaceID, user.ID)
			if err == sql.ErrNoRows {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "no workspace membership found"})
			}
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "membership lookup failed"})
			}
			setCurrentMember(c, m)
			return next(c)
		}
	}
}

// RequirePermission gates a route on one capability of the resolved
// membership.  Unknown capability names simply read as false, so a
// misconfigured guard fails closed.  Must run after Membership.
func RequirePermission(capability string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m, ok := CurrentMember(c)
			if !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "no workspace membership found"})
			}
			if !m.Permissions.Has(capability) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "you do not have permission to " + capability})
			}
			return next(c)
		}
	}
}
