// Package repository stores team building sessions by ID.
package repository

import (
	"context"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/session"
)

// SessionStore provides read/write access to sessions.
//
// Returned sessions are copies. Changing one has no effect until it goes
// through Update.
type SessionStore interface {
	// Create stores a new session. Returns ErrExists if the ID is taken.
	Create(ctx context.Context, s *session.Session) error

	// Get returns the session with the given ID.
	// Returns ErrNotFound if it is unknown or expired.
	Get(ctx context.Context, id string) (*session.Session, error)

	// Update runs fn on a copy of the session and stores the copy only when fn
	// returns nil. Updates to one session are serialised. The session's TTL is
	// extended on every successful update.
	Update(ctx context.Context, id string, fn func(*session.Session) error) (*session.Session, error)

	// Delete removes the session. Deleting an unknown ID returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Count returns the number of live sessions.
	Count(ctx context.Context) int

	// Close releases background resources.
	Close() error
}
