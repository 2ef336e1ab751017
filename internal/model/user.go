package model

import "time"

// User represents an account record as stored in the `users` table.  The
// json tags are omitted because these structs are used by the repository
// layer; handlers define separate response types.
//
// PasswordHash is empty for federated accounts (OAuthProvider set); every
// other account must carry a hash.  FailedAttempts and LockUntil are the
// login-guard counters and are only ever written by the login flow;
// EmailVerified is only flipped by the verification flow.
type User struct {
	ID             uint64     // users.id
	Email          string     // users.email (unique, stored lowercase)
	PasswordHash   string     // users.password_hash (empty for OAuth accounts)
	FirstName      string     // users.first_name
	LastName       string     // users.last_name
	EmailDomain    string     // users.email_domain (part after '@')
	OAuthProvider  string     // users.oauth_provider ("" unless federated)
	IsActive       bool       // users.is_active
	EmailVerified  bool       // users.email_verified
	FailedAttempts int        // users.failed_attempts
	LockUntil      *time.Time // users.lock_until (null when not locked)
	LastLogin      *time.Time // users.last_login
	CreatedAt      time.Time  // users.created_at
	UpdatedAt      time.Time  // users.updated_at
}

// RefreshToken models a row in the `refresh_tokens` table.  The plain token
// is never stored; only its SHA-256 hash.  A revoked row stays around with
// RevokedAt set so a replayed token can be told apart from an unknown one in
// the logs.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (null while live)
	CreatedAt time.Time  // refresh_tokens.created_at
}
