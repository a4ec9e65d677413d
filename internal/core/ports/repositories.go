package ports

import (
	"context"

	"secure-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for accounts.
// E-mails are passed already normalized.
type AccountRepository interface {
	// FindOrCreate returns the account for email, inserting it if absent.
	// Safe under concurrent first logins for the same e-mail.
	FindOrCreate(ctx context.Context, email, displayName string) (*domain.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) error
}

// EscrowRepository defines persistence operations for escrows.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type EscrowRepository interface {
	// Create inserts a new escrow. Returns ErrDuplicateIdempotencyKey when the
	// creator already used the escrow's idempotency key.
	Create(ctx context.Context, escrow *domain.Escrow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Escrow, error)
	GetByIdempotencyKey(ctx context.Context, creatorID uuid.UUID, key string) (*domain.Escrow, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Escrow, error)
	// Update writes the mutable columns and bumps Version on the passed escrow.
	Update(ctx context.Context, tx pgx.Tx, escrow *domain.Escrow) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Escrow, error)
	ListUnlinkedByRecipientEmail(ctx context.Context, email string) ([]uuid.UUID, error)
	// SetSettlementRef stores ref only if none is stored yet. Returns false
	// when a reference was already present.
	SetSettlementRef(ctx context.Context, id uuid.UUID, ref string) (bool, error)
	GetStats(ctx context.Context, accountID uuid.UUID) (*domain.EscrowStats, error)
}

// MessageRepository defines append-only persistence for escrow messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// ListByEscrow returns messages oldest first.
	ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]domain.Message, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
