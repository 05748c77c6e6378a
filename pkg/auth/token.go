package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const tokenPrefix = "atl_"

var (
	// ErrTokenNotFound indicates the token does not exist
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExpired indicates the token has passed its expiry
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenUsed indicates the token was already consumed
	ErrTokenUsed = errors.New("token already used")
	// ErrUserNotFound indicates no account exists for the email
	ErrUserNotFound = errors.New("user not found")
)

// GenerateToken creates a new random sign-in token. The raw token is
// returned to the caller once; only its hash is persisted.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return tokenPrefix + hex.EncodeToString(b), nil
}

// HashToken returns the hex-encoded SHA-256 hash of a raw token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidTokenFormat reports whether a raw token has the expected shape
func ValidTokenFormat(token string) bool {
	if !strings.HasPrefix(token, tokenPrefix) {
		return false
	}
	hexPart := strings.TrimPrefix(token, tokenPrefix)
	if len(hexPart) != 64 {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil
}

// Store persists users and magic-link tokens
type Store struct {
	db *sql.DB
}

// NewStore creates a new auth store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetUserByEmail looks up a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

// GetUserByID looks up a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new user
func (s *Store) CreateUser(ctx context.Context, email, name string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (email, name, created_at) VALUES ($1, $2, CURRENT_TIMESTAMP)
		 RETURNING id, email, name, created_at`,
		email, name,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &u, nil
}

// CreateMagicLink persists a new magic-link token hash for the user.
// It returns the raw token, which is sent to the user and never stored.
func (s *Store) CreateMagicLink(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO magic_links (user_id, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, CURRENT_TIMESTAMP)`,
		userID, HashToken(token), time.Now().Add(ttl),
	)
	if err != nil {
		return "", fmt.Errorf("storing magic link: %w", err)
	}
	return token, nil
}

// ConsumeMagicLink verifies a raw token and marks it used. A token can be
// consumed exactly once.
func (s *Store) ConsumeMagicLink(ctx context.Context, token string) (*User, error) {
	if !ValidTokenFormat(token) {
		return nil, ErrTokenNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var link MagicLink
	err = tx.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, used_at FROM magic_links
		 WHERE token_hash = $1`,
		HashToken(token),
	).Scan(&link.ID, &link.UserID, &link.ExpiresAt, &link.UsedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying magic link: %w", err)
	}

	if link.IsUsed() {
		return nil, ErrTokenUsed
	}
	if link.IsExpired() {
		return nil, ErrTokenExpired
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE magic_links SET used_at = CURRENT_TIMESTAMP WHERE id = $1`, link.ID,
	); err != nil {
		return nil, fmt.Errorf("marking magic link used: %w", err)
	}

	var u User
	err = tx.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM users WHERE id = $1`,
		link.UserID,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return &u, nil
}

// DeleteExpiredMagicLinks removes expired and used links. Returns the
// number of rows removed.
func (s *Store) DeleteExpiredMagicLinks(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM magic_links WHERE expires_at < CURRENT_TIMESTAMP OR used_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("deleting expired magic links: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
