package studio

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/pkg/auth"
	"github.com/atelierhq/atelier/pkg/identity"
)

// Mailer delivers invitation emails
type Mailer interface {
	SendInvitation(ctx context.Context, email, token string) error
}

// InvitationService manages the invitation lifecycle
type InvitationService struct {
	db      *sql.DB
	mailer  Mailer
	service *Service
	ttl     time.Duration
}

// NewInvitationService creates an invitation service. Memberships created
// on acceptance go through service so cache invalidation applies. A zero ttl
// selects the 7-day default; a negative ttl is honored as-is so callers can
// mint pre-expired invitations.
func NewInvitationService(db *sql.DB, mailer Mailer, service *Service, ttl time.Duration) *InvitationService {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &InvitationService{db: db, mailer: mailer, service: service, ttl: ttl}
}

// InviteToStudio invites an email address into a studio
func (s *InvitationService) InviteToStudio(ctx context.Context, studioID int64, email string, role identity.Role) (*Invitation, error) {
	if !validStudioRole(role) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	return s.create(ctx, email, &studioID, nil, role)
}

// InviteToClient invites an email address into a client organization
func (s *InvitationService) InviteToClient(ctx context.Context, clientID int64, email string, role identity.Role) (*Invitation, error) {
	if !validClientRole(role) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	return s.create(ctx, email, nil, &clientID, role)
}

func (s *InvitationService) create(ctx context.Context, email string, studioID, clientID *int64, role identity.Role) (*Invitation, error) {
	token, err := auth.GenerateToken()
	if err != nil {
		return nil, err
	}

	inv := Invitation{
		Email:     email,
		StudioID:  studioID,
		ClientID:  clientID,
		Role:      role,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO invitations (email, studio_id, client_id, role, token_hash, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		email, studioID, clientID, string(role), auth.HashToken(token), inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating invitation: %w", err)
	}

	if err := s.mailer.SendInvitation(ctx, email, token); err != nil {
		return nil, fmt.Errorf("sending invitation: %w", err)
	}
	return &inv, nil
}

// Accept redeems an invitation token for the given user, creating the
// corresponding membership. An invitation is accepted at most once.
func (s *InvitationService) Accept(ctx context.Context, token string, userID int64) (*Invitation, error) {
	var inv Invitation
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, studio_id, client_id, role, expires_at, accepted_at, created_at
		 FROM invitations WHERE token_hash = $1`,
		auth.HashToken(token),
	).Scan(&inv.ID, &inv.Email, &inv.StudioID, &inv.ClientID, &role, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying invitation: %w", err)
	}
	inv.Role = identity.Role(role)

	if inv.AcceptedAt != nil {
		return nil, ErrInvitationAccepted
	}
	if inv.IsExpired() {
		return nil, ErrInvitationExpired
	}

	switch {
	case inv.StudioID != nil:
		err = s.service.AddMember(ctx, *inv.StudioID, userID, inv.Role)
	case inv.ClientID != nil:
		err = s.service.AddClientUser(ctx, *inv.ClientID, userID, inv.Role, false)
	default:
		return nil, fmt.Errorf("invitation %d has no target", inv.ID)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE invitations SET accepted_at = $1 WHERE id = $2`,
		now, inv.ID,
	); err != nil {
		return nil, fmt.Errorf("marking invitation accepted: %w", err)
	}
	inv.AcceptedAt = &now
	return &inv, nil
}

// ListPending lists open invitations for a studio, including those of its
// clients.
func (s *InvitationService) ListPending(ctx context.Context, studioID int64) ([]Invitation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.email, i.studio_id, i.client_id, i.role, i.expires_at, i.accepted_at, i.created_at
		 FROM invitations i
		 LEFT JOIN clients c ON c.id = i.client_id
		 WHERE (i.studio_id = $1 OR c.studio_id = $1)
		   AND i.accepted_at IS NULL
		 ORDER BY i.created_at DESC`,
		studioID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}
	defer rows.Close()

	var invitations []Invitation
	for rows.Next() {
		var inv Invitation
		var role string
		if err := rows.Scan(&inv.ID, &inv.Email, &inv.StudioID, &inv.ClientID, &role, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning invitation: %w", err)
		}
		inv.Role = identity.Role(role)
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// DeleteExpired removes invitations past their expiry that were never
// accepted. Returns the number of rows removed.
func (s *InvitationService) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM invitations WHERE accepted_at IS NULL AND expires_at < $1`,
		time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired invitations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
