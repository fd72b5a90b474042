package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/realminvite/internal/invites/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Sub-repositories are reached through methods so that a Tx
// hands out repositories bound to the transaction and nothing else.
type Store interface {
	Invites() Invites

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
// Nested transactions are not supported.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Invites persists invites. "Active" in the query names means not revoked,
// expires_at after now and uses below max_uses.
type Invites interface {
	// CreateInvite inserts a new invite. Returns ErrAlreadyExists if another
	// non-revoked invite exists for the same realm and email.
	CreateInvite(ctx context.Context, inv domain.Invite) error

	// GetInviteByID returns an invite regardless of its state.
	GetInviteByID(ctx context.Context, id string) (domain.Invite, error)

	// ListInvites returns every invite, newest first.
	ListInvites(ctx context.Context) ([]domain.Invite, error)

	// HasActiveInvite reports whether an active invite exists for realm+email.
	HasActiveInvite(ctx context.Context, realm, email string, now time.Time) (bool, error)

	// GetActiveInviteByTokenHash looks up an active invite in realm by its token hash.
	GetActiveInviteByTokenHash(ctx context.Context, realm, hash string, now time.Time) (domain.Invite, error)

	// GetActiveInviteByIDForUpdate returns the invite if it is active and locks
	// the row until the surrounding transaction ends. Only meaningful inside a Tx.
	GetActiveInviteByIDForUpdate(ctx context.Context, id string, now time.Time) (domain.Invite, error)

	// IncrementInviteUses adds one use, guarded by uses < max_uses. Returns
	// ErrNotFound when the guard fails or the invite does not exist.
	IncrementInviteUses(ctx context.Context, id string) error

	// RevokeInvite flips revoked on. Revoking twice is not an error.
	RevokeInvite(ctx context.Context, id string) error

	// RevokeExpiredInvites revokes non-revoked invites for realm+email whose
	// expires_at is at or before now.
	RevokeExpiredInvites(ctx context.Context, realm, email string, now time.Time) (int64, error)

	// RevokeOverusedInvites revokes non-revoked invites for realm+email that
	// have no uses left.
	RevokeOverusedInvites(ctx context.Context, realm, email string) (int64, error)

	// DeleteInvite removes an invite permanently.
	DeleteInvite(ctx context.Context, id string) error

	// DeleteInvitesExpiredBefore is housekeeping: it removes every invite whose
	// expires_at is before cutoff and returns how many went.
	DeleteInvitesExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
