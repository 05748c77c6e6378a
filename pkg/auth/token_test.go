package auth

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE magic_links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMP NOT NULL,
			used_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	require.NoError(t, err)
	return db
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, "atl_"))
	assert.True(t, ValidTokenFormat(token))

	other, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestValidTokenFormat(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, ValidTokenFormat(token))
	assert.False(t, ValidTokenFormat("atl_short"))
	assert.False(t, ValidTokenFormat(strings.Repeat("a", 68)))
	assert.False(t, ValidTokenFormat("atl_"+strings.Repeat("z", 64)))
	assert.False(t, ValidTokenFormat(""))
}

func TestHashTokenStable(t *testing.T) {
	token := "atl_" + strings.Repeat("ab", 32)
	assert.Equal(t, HashToken(token), HashToken(token))
	assert.Len(t, HashToken(token), 64)
	assert.NotContains(t, HashToken(token), "atl_")
}

func TestMagicLinkLifecycle(t *testing.T) {
	db := setupAuthDB(t)
	store := NewStore(db)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "maya@studio.test", "Maya")
	require.NoError(t, err)
	require.NotZero(t, user.ID)

	token, err := store.CreateMagicLink(ctx, user.ID, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "atl_"))

	got, err := store.ConsumeMagicLink(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "maya@studio.test", got.Email)

	// second use rejected
	_, err = store.ConsumeMagicLink(ctx, token)
	assert.ErrorIs(t, err, ErrTokenUsed)
}

func TestConsumeMagicLinkExpired(t *testing.T) {
	db := setupAuthDB(t)
	store := NewStore(db)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "expired@studio.test", "")
	require.NoError(t, err)

	token, err := store.CreateMagicLink(ctx, user.ID, -time.Minute)
	require.NoError(t, err)

	_, err = store.ConsumeMagicLink(ctx, token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestConsumeMagicLinkUnknown(t *testing.T) {
	db := setupAuthDB(t)
	store := NewStore(db)

	token, err := GenerateToken()
	require.NoError(t, err)

	_, err = store.ConsumeMagicLink(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = store.ConsumeMagicLink(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestGetUserByEmailNotFound(t *testing.T) {
	db := setupAuthDB(t)
	store := NewStore(db)

	_, err := store.GetUserByEmail(context.Background(), "ghost@studio.test")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteExpiredMagicLinks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM magic_links").
		WillReturnResult(sqlmock.NewResult(0, 3))

	store := NewStore(db)
	n, err := store.DeleteExpiredMagicLinks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
