package identity

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMembershipDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);
		CREATE TABLE studio_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			studio_id INTEGER NOT NULL,
			role_id INTEGER NOT NULL REFERENCES roles(id),
			UNIQUE(user_id, studio_id)
		);
		CREATE TABLE client_users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			client_id INTEGER NOT NULL,
			role_id INTEGER NOT NULL REFERENCES roles(id),
			is_primary BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE(user_id, client_id)
		);
		INSERT INTO roles (name) VALUES
			('studio_admin'), ('studio_member'), ('client_admin'), ('client_member');
	`)
	require.NoError(t, err)
	return db
}

func TestStoreStudioMembership(t *testing.T) {
	db := setupMembershipDB(t)
	_, err := db.Exec(`
		INSERT INTO studio_members (user_id, studio_id, role_id)
		SELECT 1, 7, id FROM roles WHERE name = 'studio_admin'`)
	require.NoError(t, err)

	store := NewStore(db)
	m, err := store.StudioMembership(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), m.UserID)
	assert.Equal(t, int64(7), m.StudioID)
	assert.Equal(t, RoleStudioAdmin, m.Role)
}

func TestStoreStudioMembershipNone(t *testing.T) {
	store := NewStore(setupMembershipDB(t))

	_, err := store.StudioMembership(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNoMembership)
}

func TestStoreClientMembership(t *testing.T) {
	db := setupMembershipDB(t)
	_, err := db.Exec(`
		INSERT INTO client_users (user_id, client_id, role_id, is_primary)
		SELECT 2, 3, id, TRUE FROM roles WHERE name = 'client_admin'`)
	require.NoError(t, err)

	store := NewStore(db)
	m, err := store.ClientMembership(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, int64(3), m.ClientID)
	assert.Equal(t, RoleClientAdmin, m.Role)
	assert.True(t, m.IsPrimary)
}

func TestStoreClientMembershipNone(t *testing.T) {
	store := NewStore(setupMembershipDB(t))

	_, err := store.ClientMembership(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNoMembership)
}

func TestStoreStudioMembershipQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT sm.user_id, sm.studio_id, r.name").
		WillReturnError(sql.ErrConnDone)

	store := NewStore(db)
	_, err = store.StudioMembership(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoMembership, "backend errors must stay distinct from no-membership")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreClientMembershipQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT cu.user_id, cu.client_id, r.name, cu.is_primary").
		WillReturnError(sql.ErrConnDone)

	store := NewStore(db)
	_, err = store.ClientMembership(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoMembership)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolverWithRealStore(t *testing.T) {
	db := setupMembershipDB(t)
	_, err := db.Exec(`
		INSERT INTO studio_members (user_id, studio_id, role_id)
		SELECT 1, 7, id FROM roles WHERE name = 'studio_member';
	`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO client_users (user_id, client_id, role_id, is_primary)
		SELECT 2, 3, id, FALSE FROM roles WHERE name = 'client_member';
	`)
	require.NoError(t, err)

	r := newTestResolver(NewStore(db))
	ctx := context.Background()

	studioID := r.Resolve(ctx, 1)
	assert.Equal(t, RoleStudioMember, studioID.Role)
	assert.True(t, studioID.IsStudioMember)

	clientID := r.Resolve(ctx, 2)
	assert.Equal(t, RoleClientMember, clientID.Role)
	assert.False(t, clientID.IsStudioMember)

	guest := r.Resolve(ctx, 3)
	assert.Equal(t, RoleGuest, guest.Role)
}
