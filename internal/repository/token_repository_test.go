package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRefresh(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	exp := time.Now().UTC().Add(720 * time.Hour)
	mock.ExpectExec("INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)").
		WithArgs(uint64(3), "cafe", exp).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.StoreRefresh(context.Background(), 3, "cafe", exp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeRefreshWinner(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL AND expires_at > NOW()").
		WithArgs("cafe").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT user_id FROM refresh_tokens WHERE token_hash=? LIMIT 1").
		WithArgs("cafe").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(3))

	uid, err := repo.ConsumeRefresh(context.Background(), "cafe")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), uid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeRefreshSpent(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	// Already revoked, expired or never stored: the guarded UPDATE touches
	// nothing and the owner lookup never runs.
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL AND expires_at > NOW()").
		WithArgs("cafe").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.ConsumeRefresh(context.Background(), "cafe")
	assert.ErrorIs(t, err, ErrTokenSpent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeAllForUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL").
		WithArgs(uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, repo.RevokeAllForUser(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}
