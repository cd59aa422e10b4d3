package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dgellow/gsession/internal/idp"
)

// ErrSessionNotFound is returned when a session doesn't exist or has expired
var ErrSessionNotFound = errors.New("session not found")

// Session is the record created for each authorization request, keyed by its
// OAuth state. Token fields are filled in once the callback completes.
type Session struct {
	State        string      `json:"state"`
	AuthURL      string      `json:"auth_url"`
	AccessToken  string      `json:"access_token,omitempty"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	IDToken      string      `json:"id_token,omitempty"`
	IDInfo       *idp.Claims `json:"id_info,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	CompletedAt  time.Time   `json:"completed_at"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

// Completed reports whether the callback already attached tokens
func (s *Session) Completed() bool {
	return !s.CompletedAt.IsZero()
}

// Expired reports whether the record is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store is a keyed session store with expiry. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns ErrSessionNotFound for unknown and expired states
	Get(ctx context.Context, state string) (*Session, error)
	// Put creates or replaces the record stored under session.State
	Put(ctx context.Context, session *Session) error
	// Delete removes a record; deleting an unknown state is not an error
	Delete(ctx context.Context, state string) error
	// CleanupExpiredSessions removes expired records and returns how many
	CleanupExpiredSessions(ctx context.Context) (int, error)
	Close() error
}
