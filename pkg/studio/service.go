package studio

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atelierhq/atelier/pkg/identity"
	"github.com/atelierhq/atelier/pkg/observability"
)

// IdentityInvalidator drops cached identity state for a user. Membership
// writes call it so role changes take effect on the next request.
type IdentityInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// Service manages studios, clients, and memberships
type Service struct {
	db         *sql.DB
	identities IdentityInvalidator
	logger     *observability.Logger
}

// NewService creates a new studio service
func NewService(db *sql.DB, identities IdentityInvalidator, logger *observability.Logger) *Service {
	return &Service{db: db, identities: identities, logger: logger}
}

// CreateStudio creates a new studio tenant
func (s *Service) CreateStudio(ctx context.Context, name, slug string) (*Studio, error) {
	var st Studio
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO studios (name, slug) VALUES ($1, $2)
		 RETURNING id, name, slug, created_at`,
		name, slug,
	).Scan(&st.ID, &st.Name, &st.Slug, &st.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating studio: %w", err)
	}
	return &st, nil
}

// GetStudio fetches a studio by ID
func (s *Service) GetStudio(ctx context.Context, id int64) (*Studio, error) {
	var st Studio
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, created_at FROM studios WHERE id = $1`,
		id,
	).Scan(&st.ID, &st.Name, &st.Slug, &st.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying studio: %w", err)
	}
	return &st, nil
}

// CreateClient creates a client organization under a studio
func (s *Service) CreateClient(ctx context.Context, studioID int64, name, contactEmail string) (*Client, error) {
	var c Client
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO clients (studio_id, name, contact_email) VALUES ($1, $2, $3)
		 RETURNING id, studio_id, name, created_at`,
		studioID, name, contactEmail,
	).Scan(&c.ID, &c.StudioID, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return &c, nil
}

// GetClient fetches a client by ID
func (s *Service) GetClient(ctx context.Context, id int64) (*Client, error) {
	var c Client
	err := s.db.QueryRowContext(ctx,
		`SELECT id, studio_id, name, created_at FROM clients WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.StudioID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying client: %w", err)
	}
	return &c, nil
}

// ListClients lists the active clients of a studio
func (s *Service) ListClients(ctx context.Context, studioID int64) ([]Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, studio_id, name, created_at FROM clients
		 WHERE studio_id = $1 AND is_active ORDER BY name`,
		studioID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.StudioID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// AddMember adds a user to a studio with the given role
func (s *Service) AddMember(ctx context.Context, studioID, userID int64, role identity.Role) error {
	if !validStudioRole(role) {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM studio_members WHERE user_id = $1 AND studio_id = $2)`,
		userID, studioID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking membership: %w", err)
	}
	if exists {
		return ErrAlreadyMember
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO studio_members (user_id, studio_id, role_id)
		 SELECT $1, $2, id FROM roles WHERE name = $3`,
		userID, studioID, string(role),
	)
	if err != nil {
		return fmt.Errorf("adding studio member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	s.identities.Invalidate(ctx, userID)
	return nil
}

// UpdateMemberRole changes a studio member's role
func (s *Service) UpdateMemberRole(ctx context.Context, studioID, userID int64, role identity.Role) error {
	if !validStudioRole(role) {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE studio_members SET role_id = (SELECT id FROM roles WHERE name = $1)
		 WHERE user_id = $2 AND studio_id = $3`,
		string(role), userID, studioID,
	)
	if err != nil {
		return fmt.Errorf("updating member role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	s.identities.Invalidate(ctx, userID)
	return nil
}

// RemoveMember removes a user from a studio
func (s *Service) RemoveMember(ctx context.Context, studioID, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM studio_members WHERE user_id = $1 AND studio_id = $2`,
		userID, studioID,
	)
	if err != nil {
		return fmt.Errorf("removing studio member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	s.identities.Invalidate(ctx, userID)
	return nil
}

// ListMembers lists a studio's members with their role names
func (s *Service) ListMembers(ctx context.Context, studioID int64) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sm.user_id, sm.studio_id, r.name, sm.joined_at
		 FROM studio_members sm
		 JOIN roles r ON r.id = sm.role_id
		 WHERE sm.studio_id = $1
		 ORDER BY sm.joined_at`,
		studioID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing studio members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var role string
		if err := rows.Scan(&m.UserID, &m.StudioID, &role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scanning studio member: %w", err)
		}
		m.Role = identity.Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddClientUser adds a user to a client organization
func (s *Service) AddClientUser(ctx context.Context, clientID, userID int64, role identity.Role, isPrimary bool) error {
	if !validClientRole(role) {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM client_users WHERE user_id = $1 AND client_id = $2)`,
		userID, clientID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking client membership: %w", err)
	}
	if exists {
		return ErrAlreadyMember
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO client_users (user_id, client_id, role_id, is_primary)
		 SELECT $1, $2, id, $3 FROM roles WHERE name = $4`,
		userID, clientID, isPrimary, string(role),
	)
	if err != nil {
		return fmt.Errorf("adding client user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	s.identities.Invalidate(ctx, userID)
	return nil
}

// SetPrimaryContact makes userID the client's single primary contact.
// Any previous primary is demoted, and both users' cached identities are
// invalidated since the primary flag gates financial visibility.
func (s *Service) SetPrimaryContact(ctx context.Context, clientID, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var previousPrimary sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM client_users WHERE client_id = $1 AND is_primary`,
		clientID,
	).Scan(&previousPrimary)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("querying current primary: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE client_users SET is_primary = FALSE WHERE client_id = $1`,
		clientID,
	); err != nil {
		return fmt.Errorf("clearing primary flag: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE client_users SET is_primary = TRUE WHERE client_id = $1 AND user_id = $2`,
		clientID, userID,
	)
	if err != nil {
		return fmt.Errorf("setting primary flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.identities.Invalidate(ctx, userID)
	if previousPrimary.Valid && previousPrimary.Int64 != userID {
		s.identities.Invalidate(ctx, previousPrimary.Int64)
	}
	return nil
}

// RemoveClientUser removes a user from a client organization
func (s *Service) RemoveClientUser(ctx context.Context, clientID, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM client_users WHERE user_id = $1 AND client_id = $2`,
		userID, clientID,
	)
	if err != nil {
		return fmt.Errorf("removing client user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	s.identities.Invalidate(ctx, userID)
	return nil
}

// ListClientUsers lists a client's users with their role names
func (s *Service) ListClientUsers(ctx context.Context, clientID int64) ([]ClientUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cu.user_id, cu.client_id, r.name, cu.is_primary, cu.joined_at
		 FROM client_users cu
		 JOIN roles r ON r.id = cu.role_id
		 WHERE cu.client_id = $1
		 ORDER BY cu.joined_at`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing client users: %w", err)
	}
	defer rows.Close()

	var users []ClientUser
	for rows.Next() {
		var cu ClientUser
		var role string
		if err := rows.Scan(&cu.UserID, &cu.ClientID, &role, &cu.IsPrimary, &cu.AddedAt); err != nil {
			return nil, fmt.Errorf("scanning client user: %w", err)
		}
		cu.Role = identity.Role(role)
		users = append(users, cu)
	}
	return users, rows.Err()
}
