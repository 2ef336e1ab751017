package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Token verification failures.  ErrTokenExpired means the token was well
// formed and correctly signed but is past its expiry; every other problem
// (bad signature, wrong structure, wrong signing method) is ErrTokenInvalid.
// Access and refresh tokens are signed with distinct secrets, so presenting
// one kind where the other is expected fails signature verification and
// surfaces as ErrTokenInvalid.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// SignedToken is a serialized JWT together with its expiry.  Access tokens
// are short-lived and travel in the Authorization header or the access
// cookie; refresh tokens are long-lived and are exchanged only at the
// refresh endpoint.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAuthToken builds and signs an HS256 JWT asserting a user identity.
// The same shape is used for both token kinds; the caller picks the secret
// and TTL for the kind being minted.  Claims are the registered sub
// (user ID), exp and iat.
func NewAuthToken(secret string, userID uint64, ttl time.Duration) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// VerifyAuthToken parses and validates a token against the given secret and
// returns the user ID from its subject claim.  The signing method is pinned
// to HMAC so a crafted token cannot downgrade verification.
func VerifyAuthToken(secret, raw string) (uint64, error) {
	claims := jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenInvalid
	}
	if !tok.Valid {
		return 0, ErrTokenInvalid
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrTokenInvalid
	}
	return id, nil
}
