package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/samuraidojo/dojo/internal/model"
	"github.com/samuraidojo/dojo/internal/utils"
)

// UserRepo reads and writes the `users` table.  It also owns the
// login-guard counters: failure and success updates run as single SQL
// statements so two concurrent wrong-password attempts can never
// under-count the tally.
type UserRepo struct {
	DB           *sql.DB
	MaxAttempts  int           // failures before a lock is placed
	LockDuration time.Duration // how long a lock lasts
}

func NewUserRepo(db *sql.DB, maxAttempts int, lockDuration time.Duration) *UserRepo {
	return &UserRepo{DB: db, MaxAttempts: maxAttempts, LockDuration: lockDuration}
}

const userColumns = "id,email,password_hash,first_name,last_name,email_domain,oauth_provider,is_active,email_verified,failed_attempts,lock_until,last_login,created_at,updated_at"

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u         model.User
		hash      sql.NullString
		provider  sql.NullString
		lockUntil sql.NullTime
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &hash, &u.FirstName, &u.LastName, &u.EmailDomain,
		&provider, &u.IsActive, &u.EmailVerified, &u.FailedAttempts, &lockUntil, &lastLogin,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.PasswordHash = hash.String
	u.OAuthProvider = provider.String
	if lockUntil.Valid {
		t := lockUntil.Time
		u.LockUntil = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

// Create inserts a user and returns its ID.  The email is normalized and
// its domain denormalized into email_domain for workspace-join checks.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, firstName, lastName string) (uint64, error) {
	email = utils.NormalizeEmail(email)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, first_name, last_name, email_domain) VALUES (?,?,?,?,?)",
		email, passwordHash, firstName, lastName, utils.EmailDomain(email))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1",
		utils.NormalizeEmail(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// RecordLoginFailure applies one failed attempt atomically.  The semantics
// mirror the lockout package: an expired lock starts a fresh window at one
// attempt; otherwise the counter increments and reaching the threshold on an
// unlocked account places a lock.  Two statements, each atomic on its own:
// the first consumes the expired-lock case, the second handles the rest with
// MySQL's left-to-right SET evaluation exposing the post-increment counter
// to the lock_until expression.
func (r *UserRepo) RecordLoginFailure(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET failed_attempts=1, lock_until=NULL WHERE id=? AND lock_until IS NOT NULL AND lock_until <= NOW()",
		id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE users SET failed_attempts = failed_attempts + 1, lock_until = IF(failed_attempts >= ? AND lock_until IS NULL, DATE_ADD(NOW(), INTERVAL ? MINUTE), lock_until) WHERE id=?",
		r.MaxAttempts, int(r.LockDuration.Minutes()), id)
	return err
}

// RecordLoginSuccess clears the counters and stamps last_login.
func (r *UserRepo) RecordLoginSuccess(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET failed_attempts=0, lock_until=NULL, last_login=NOW() WHERE id=?", id)
	return err
}

// SetVerificationToken stores the digest of a new email-verification token.
func (r *UserRepo) SetVerificationToken(ctx context.Context, id uint64, tokenHash string, expires time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET verification_token_hash=?, verification_expires_at=? WHERE id=?",
		tokenHash, expires, id)
	return err
}

// ConsumeVerificationToken marks the owning account verified and clears the
// token.  The guarded UPDATE makes redemption single-use even under
// concurrent clicks on the same link.
func (r *UserRepo) ConsumeVerificationToken(ctx context.Context, tokenHash string) (uint64, error) {
	var id uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM users WHERE verification_token_hash=? AND verification_expires_at > NOW() LIMIT 1",
		tokenHash).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrTokenSpent
		}
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verified=1, verification_token_hash=NULL, verification_expires_at=NULL WHERE id=? AND verification_token_hash=?",
		id, tokenHash)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return 0, ErrTokenSpent
	}
	return id, nil
}

// SetResetToken stores the digest and expiry of a password-reset token.
func (r *UserRepo) SetResetToken(ctx context.Context, id uint64, tokenHash string, expires time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token_hash=?, reset_expires_at=? WHERE id=?",
		tokenHash, expires, id)
	return err
}

// ConsumeResetToken redeems a reset token: the password is replaced, the
// token cleared, and any lockout state wiped so the owner is not left locked
// out of an account they just proved control of.  Returns the user id.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string) (uint64, error) {
	var id uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM users WHERE reset_token_hash=? AND reset_expires_at > NOW() LIMIT 1",
		tokenHash).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrTokenSpent
		}
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, reset_token_hash=NULL, reset_expires_at=NULL, failed_attempts=0, lock_until=NULL WHERE id=? AND reset_token_hash=?",
		newPasswordHash, id, tokenHash)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return 0, ErrTokenSpent
	}
	return id, nil
}

// UpdatePassword replaces the password hash for an authenticated change.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, newPasswordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", newPasswordHash, id)
	return err
}
