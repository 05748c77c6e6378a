package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoMembership indicates the principal has no row in the queried relation.
// It is a valid terminal outcome, not a failure.
var ErrNoMembership = errors.New("no membership found")

// MembershipSource supplies membership rows for a principal. The production
// implementation is Store; tests substitute fakes.
type MembershipSource interface {
	StudioMembership(ctx context.Context, userID int64) (*StudioMembership, error)
	ClientMembership(ctx context.Context, userID int64) (*ClientMembership, error)
}

// Store reads membership relations from the database. It issues
// single-row lookups only; all writes happen elsewhere.
type Store struct {
	db *sql.DB
}

// NewStore creates a new membership store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// StudioMembership returns the principal's studio membership, or
// ErrNoMembership when no row exists.
func (s *Store) StudioMembership(ctx context.Context, userID int64) (*StudioMembership, error) {
	query := `
		SELECT sm.user_id, sm.studio_id, r.name
		FROM studio_members sm
		JOIN roles r ON r.id = sm.role_id
		WHERE sm.user_id = $1
		LIMIT 1
	`

	var m StudioMembership
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&m.UserID, &m.StudioID, &m.Role)
	if err == sql.ErrNoRows {
		return nil, ErrNoMembership
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query studio membership: %w", err)
	}

	return &m, nil
}

// ClientMembership returns the principal's client membership, or
// ErrNoMembership when no row exists.
func (s *Store) ClientMembership(ctx context.Context, userID int64) (*ClientMembership, error) {
	query := `
		SELECT cu.user_id, cu.client_id, r.name, cu.is_primary
		FROM client_users cu
		JOIN roles r ON r.id = cu.role_id
		WHERE cu.user_id = $1
		LIMIT 1
	`

	var m ClientMembership
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&m.UserID, &m.ClientID, &m.Role, &m.IsPrimary)
	if err == sql.ErrNoRows {
		return nil, ErrNoMembership
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query client membership: %w", err)
	}

	return &m, nil
}
