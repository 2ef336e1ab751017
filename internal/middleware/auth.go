package middleware // middleware provides reusable HTTP middleware for the API

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/samuraidojo/dojo/internal/lockout"
	"github.com/samuraidojo/dojo/internal/model"
	"github.com/samuraidojo/dojo/internal/utils"
)

// AccessCookie is the cookie carrying the access token; RefreshCookie the
// one carrying the refresh token.  Both are HTTP-only, SameSite strict and
// secure outside dev.
const (
	AccessCookie  = "jwt"
	RefreshCookie = "refreshToken"
)

// UserLoader is the slice of the credential store the auth middleware
// needs: resolving a token subject to a live user record.
type UserLoader interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// verifyExemptPaths are the two registered routes a signed-in but
// unverified user may still call, so completing verification is never
// blocked by the verification requirement itself.  Matched exactly against
// the request's registered path.
var verifyExemptPaths = map[string]bool{
	"/v1/auth/verify-email/:token": true,
	"/v1/auth/resend-verification": true,
}

// rejection is a structured auth failure.  Kind feeds the logs; Status and
// Message are what the client sees.  Internal detail never crosses into the
// response body.
type rejection struct {
	Kind    string
	Status  int
	Message string
}

func (r *rejection) send(c echo.Context) error {
	c.Logger().Debugf("auth rejected: kind=%s path=%s", r.Kind, c.Path())
	return c.JSON(r.Status, echo.Map{"error": r.Message})
}

// session accumulates what the guard pipeline resolves for one request.
type session struct {
	raw    string
	userID uint64
	user   model.User
}

// guard is one step of the authentication pipeline.  A nil result means the
// step passed and the next one runs; the first non-nil rejection wins.
type guard func(c echo.Context, s *session) *rejection

// Protect returns the authentication middleware for protected routes.  It
// runs an ordered pipeline: extract the bearer token (header or access
// cookie), verify it as an access token, load the user, then check lock,
// active and verified state.  The resolved user is attached to the request
// context on success.
func Protect(accessSecret string, users UserLoader) echo.MiddlewareFunc {
	guards := []guard{
		extractAccessToken,
		verifyAccessToken(accessSecret),
		loadUser(users),
		checkLocked,
		checkActive,
		checkVerified,
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := &session{}
			for _, g := range guards {
				if rej := g(c, s); rej != nil {
					return rej.send(c)
				}
			}
			setCurrentUser(c, s.user)
			return next(c)
		}
	}
}

// OptionalAuth resolves an identity when a valid token is present and
// otherwise lets the request through unauthenticated.  Only extraction,
// verification and user load run; the stricter state checks are skipped
// except that an inactive account never attaches.
func OptionalAuth(accessSecret string, users UserLoader) echo.MiddlewareFunc {
	guards := []guard{
		extractAccessToken,
		verifyAccessToken(accessSecret),
		loadUser(users),
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := &session{}
			for _, g := range guards {
				if rej := g(c, s); rej != nil {
					return next(c) // proceed without identity
				}
			}
			if s.user.IsActive {
				setCurrentUser(c, s.user)
			}
			return next(c)
		}
	}
}

func extractAccessToken(c echo.Context, s *session) *rejection {
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		s.raw = strings.TrimPrefix(auth, "Bearer ")
		return nil
	}
	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		s.raw = ck.Value
		return nil
	}
	return &rejection{Kind: "missing_token", Status: http.StatusUnauthorized, Message: "you are not logged in"}
}

func verifyAccessToken(secret string) guard {
	return func(c echo.Context, s *session) *rejection {
		id, err := utils.VerifyAuthToken(secret, s.raw)
		if err == utils.ErrTokenExpired {
			return &rejection{Kind: "expired_token", Status: http.StatusUnauthorized, Message: "your token has expired, please log in again"}
		}
		if err != nil {
			return &rejection{Kind: "invalid_token", Status: http.StatusUnauthorized, Message: "invalid token, please log in again"}
		}
		s.userID = id
		return nil
	}
}

func loadUser(users UserLoader) guard {
	return func(c echo.Context, s *session) *rejection {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		u, err := users.GetByID(ctx, s.userID)
		if err == sql.ErrNoRows {
			return &rejection{Kind: "stale_token", Status: http.StatusUnauthorized, Message: "the user belonging to this token no longer exists"}
		}
		if err != nil {
			return &rejection{Kind: "internal", Status: http.StatusInternalServerError, Message: "authentication failed"}
		}
		s.user = u
		return nil
	}
}

func checkLocked(c echo.Context, s *session) *rejection {
	state := lockout.State{Attempts: s.user.FailedAttempts, LockUntil: s.user.LockUntil}
	if lockout.Locked(state, time.Now().UTC()) {
		return &rejection{Kind: "locked", Status: http.StatusLocked, Message: "account is temporarily locked due to too many failed login attempts"}
	}
	return nil
}

func checkActive(c echo.Context, s *session) *rejection {
	if !s.user.IsActive {
		return &rejection{Kind: "deactivated", Status: http.StatusUnauthorized, Message: "your account has been deactivated"}
	}
	return nil
}

func checkVerified(c echo.Context, s *session) *rejection {
	if s.user.EmailVerified || verifyExemptPaths[c.Path()] {
		return nil
	}
	return &rejection{Kind: "unverified_email", Status: http.StatusForbidden, Message: "please verify your email address to access this feature"}
}
