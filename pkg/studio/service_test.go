package studio

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/pkg/identity"
	"github.com/atelierhq/atelier/pkg/observability"
)

// fakeInvalidator records invalidated user IDs
type fakeInvalidator struct {
	invalidated []int64
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, userID int64) {
	f.invalidated = append(f.invalidated, userID)
}

func setupStudioDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);
		CREATE TABLE studios (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			studio_id INTEGER NOT NULL REFERENCES studios(id),
			name TEXT NOT NULL,
			contact_email TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE studio_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			studio_id INTEGER NOT NULL REFERENCES studios(id),
			role_id INTEGER NOT NULL REFERENCES roles(id),
			joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, studio_id)
		);
		CREATE TABLE client_users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			client_id INTEGER NOT NULL REFERENCES clients(id),
			role_id INTEGER NOT NULL REFERENCES roles(id),
			is_primary BOOLEAN NOT NULL DEFAULT FALSE,
			joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, client_id)
		);
		CREATE TABLE invitations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL,
			studio_id INTEGER REFERENCES studios(id),
			client_id INTEGER REFERENCES clients(id),
			role TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMP NOT NULL,
			accepted_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		INSERT INTO roles (name) VALUES
			('studio_admin'), ('studio_member'), ('client_admin'), ('client_member');
	`)
	require.NoError(t, err)
	return db
}

func testService(t *testing.T) (*Service, *fakeInvalidator, *sql.DB) {
	t.Helper()
	db := setupStudioDB(t)
	inv := &fakeInvalidator{}
	logger := observability.NewLogger(observability.ErrorLevel, nil)
	return NewService(db, inv, logger), inv, db
}

func TestCreateAndGetStudio(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	created, err := svc.CreateStudio(ctx, "Northlight", "northlight")
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := svc.GetStudio(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Northlight", got.Name)
	assert.Equal(t, "northlight", got.Slug)

	_, err = svc.GetStudio(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateAndListClients(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	st, err := svc.CreateStudio(ctx, "Northlight", "northlight")
	require.NoError(t, err)

	_, err = svc.CreateClient(ctx, st.ID, "Acme Corp", "contact@acme.test")
	require.NoError(t, err)
	_, err = svc.CreateClient(ctx, st.ID, "Birch & Co", "")
	require.NoError(t, err)

	clients, err := svc.ListClients(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "Acme Corp", clients[0].Name)
}

func TestAddMemberInvalidatesIdentity(t *testing.T) {
	svc, inv, _ := testService(t)
	ctx := context.Background()

	st, err := svc.CreateStudio(ctx, "Northlight", "northlight")
	require.NoError(t, err)

	require.NoError(t, svc.AddMember(ctx, st.ID, 10, identity.RoleStudioAdmin))
	assert.Equal(t, []int64{10}, inv.invalidated)

	members, err := svc.ListMembers(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, identity.RoleStudioAdmin, members[0].Role)
}

func TestAddMemberRejectsClientRole(t *testing.T) {
	svc, inv, _ := testService(t)
	ctx := context.Background()

	st, err := svc.CreateStudio(ctx, "Northlight", "northlight")
	require.NoError(t, err)

	err = svc.AddMember(ctx, st.ID, 10, identity.RoleClientAdmin)
	assert.ErrorIs(t, err, ErrInvalidRole)
	assert.Empty(t, inv.invalidated)
}

func TestAddMemberDuplicate(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	st, err := svc.CreateStudio(ctx, "Northlight", "northlight")
	require.NoError(t, err)

	require.NoError(t, svc.AddMember(ctx, st.ID, 10, identity.RoleStudioMember))
	err = svc.AddMember(ctx, st.ID, 10, identity.RoleStudioAdmin)
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestUpdateMemberRole(t *testing.T) {
	svc, inv, _ := testService(t)
	ctx := context.Background()

	st, err := svc.CreateStudio(ctx, "Northlight", "northlight")
	require.NoError(t, err)
	require.NoError(t, svc.AddMember(ctx, st.ID, 10, identity.RoleStudioMember))

	require.NoError(t, svc.UpdateMemberRole(ctx, st.ID, 10, identity.RoleStudioAdmin))
	assert.Equal(t, []int64{10, 10}, inv.invalidated)

	members, err := svc.ListMembers(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleStudioAdmin, members[0].Role)

	err = svc.UpdateMemberRole(ctx, st.ID, 99, identity.RoleStudioAdmin)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveMember(t *testing.T) {
	svc, inv, _ := testService(t)
	ctx := context.Background()

	st, err := svc.CreateStudio(ctx, "Northlight", "northlight")
	require.NoError(t, err)
	require.NoError(t, svc.AddMember(ctx, st.ID, 10, identity.RoleStudioMember))

	require.NoError(t, svc.RemoveMember(ctx, st.ID, 10))
	assert.Contains(t, inv.invalidated, int64(10))

	members, err := svc.ListMembers(ctx, st.ID)
	require.NoError(t, err)
	assert.Empty(t, members)

	assert.ErrorIs(t, svc.RemoveMember(ctx, st.ID, 10), ErrNotFound)
}

func TestSetPrimaryContact(t *testing.T) {
	svc, inv, _ := testService(t)
	ctx := context.Background()

	st, err := svc.CreateStudio(ctx, "Northlight", "northlight")
	require.NoError(t, err)
	client, err := svc.CreateClient(ctx, st.ID, "Acme Corp", "")
	require.NoError(t, err)

	require.NoError(t, svc.AddClientUser(ctx, client.ID, 20, identity.RoleClientAdmin, true))
	require.NoError(t, svc.AddClientUser(ctx, client.ID, 21, identity.RoleClientAdmin, false))

	inv.invalidated = nil
	require.NoError(t, svc.SetPrimaryContact(ctx, client.ID, 21))

	// both the new and the previous primary are invalidated
	assert.ElementsMatch(t, []int64{20, 21}, inv.invalidated)

	users, err := svc.ListClientUsers(ctx, client.ID)
	require.NoError(t, err)
	primaries := 0
	for _, u := range users {
		if u.IsPrimary {
			primaries++
			assert.Equal(t, int64(21), u.UserID)
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestSetPrimaryContactUnknownUser(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	st, err := svc.CreateStudio(ctx, "Northlight", "northlight")
	require.NoError(t, err)
	client, err := svc.CreateClient(ctx, st.ID, "Acme Corp", "")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.SetPrimaryContact(ctx, client.ID, 99), ErrNotFound)
}

// recordingMailer captures sent invitations
type recordingMailer struct {
	emails []string
	tokens []string
}

func (m *recordingMailer) SendInvitation(ctx context.Context, email, token string) error {
	m.emails = append(m.emails, email)
	m.tokens = append(m.tokens, token)
	return nil
}

func TestInvitationLifecycle(t *testing.T) {
	svc, inv, db := testService(t)
	ctx := context.Background()

	st, err := svc.CreateStudio(ctx, "Northlight", "northlight")
	require.NoError(t, err)

	mailer := &recordingMailer{}
	invites := NewInvitationService(db, mailer, svc, time.Hour)

	created, err := invites.InviteToStudio(ctx, st.ID, "new@studio.test", identity.RoleStudioMember)
	require.NoError(t, err)
	require.Len(t, mailer.tokens, 1)
	assert.Equal(t, "new@studio.test", mailer.emails[0])

	pending, err := invites.ListPending(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, created.ID, pending[0].ID)

	accepted, err := invites.Accept(ctx, mailer.tokens[0], 42)
	require.NoError(t, err)
	assert.NotNil(t, accepted.AcceptedAt)
	assert.Contains(t, inv.invalidated, int64(42))

	members, err := svc.ListMembers(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, identity.RoleStudioMember, members[0].Role)

	// second acceptance rejected
	_, err = invites.Accept(ctx, mailer.tokens[0], 43)
	assert.ErrorIs(t, err, ErrInvitationAccepted)

	pending, err = invites.ListPending(ctx, st.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestInvitationExpired(t *testing.T) {
	svc, _, db := testService(t)
	ctx := context.Background()

	st, err := svc.CreateStudio(ctx, "Northlight", "northlight")
	require.NoError(t, err)

	mailer := &recordingMailer{}
	invites := NewInvitationService(db, mailer, svc, -time.Minute)

	_, err = invites.InviteToStudio(ctx, st.ID, "late@studio.test", identity.RoleStudioMember)
	require.NoError(t, err)

	_, err = invites.Accept(ctx, mailer.tokens[0], 42)
	assert.ErrorIs(t, err, ErrInvitationExpired)

	n, err := invites.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInvitationDefaultTTL(t *testing.T) {
	svc, _, db := testService(t)
	ctx := context.Background()

	st, err := svc.CreateStudio(ctx, "Northlight", "northlight")
	require.NoError(t, err)

	invites := NewInvitationService(db, &recordingMailer{}, svc, 0)

	inv, err := invites.InviteToStudio(ctx, st.ID, "new@studio.test", identity.RoleStudioMember)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), inv.ExpiresAt, time.Minute)
}

func TestInvitationUnknownToken(t *testing.T) {
	svc, _, db := testService(t)
	ctx := context.Background()

	mailer := &recordingMailer{}
	invites := NewInvitationService(db, mailer, svc, time.Hour)

	_, err := invites.Accept(ctx, "atl_deadbeef", 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInviteToClientRoleValidation(t *testing.T) {
	svc, _, db := testService(t)
	ctx := context.Background()

	st, err := svc.CreateStudio(ctx, "Northlight", "northlight")
	require.NoError(t, err)
	client, err := svc.CreateClient(ctx, st.ID, "Acme Corp", "")
	require.NoError(t, err)

	mailer := &recordingMailer{}
	invites := NewInvitationService(db, mailer, svc, time.Hour)

	_, err = invites.InviteToClient(ctx, client.ID, "x@acme.test", identity.RoleStudioAdmin)
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = invites.InviteToClient(ctx, client.ID, "x@acme.test", identity.RoleClientMember)
	assert.NoError(t, err)
}
