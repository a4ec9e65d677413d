package postgres

import (
	"context"
	"errors"
	"fmt"

	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const escrowColumns = `id, creator_account_id, recipient_email, recipient_account_id, asset_id, asset_symbol,
		amount, description, terms, creator_wallet, recipient_wallet, creator_confirmed, recipient_confirmed,
		disputed, disputed_by, dispute_reason, status, settlement_ref, idempotency_key, version,
		created_at, updated_at, completed_at, disputed_at`

// EscrowRepo implements ports.EscrowRepository.
type EscrowRepo struct {
	pool Pool
}

// NewEscrowRepo creates a new EscrowRepo.
func NewEscrowRepo(pool Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

// Create inserts a new escrow. A reused (creator, idempotency key) pair
// surfaces as ports.ErrDuplicateIdempotencyKey.
func (r *EscrowRepo) Create(ctx context.Context, e *domain.Escrow) error {
	query := `INSERT INTO escrows (` + escrowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.CreatorAccountID, e.RecipientEmail, e.RecipientAccountID, e.AssetID, e.AssetSymbol,
		e.Amount, e.Description, e.Terms, e.CreatorWallet, e.RecipientWallet, e.CreatorConfirmed, e.RecipientConfirmed,
		e.Disputed, e.DisputedBy, e.DisputeReason, string(e.Status), e.SettlementRef, e.IdempotencyKey, e.Version,
		e.CreatedAt, e.UpdatedAt, e.CompletedAt, e.DisputedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && e.IdempotencyKey != nil {
			return ports.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert escrow: %w", err)
	}
	return nil
}

// GetByID fetches an escrow without locking.
func (r *EscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE id = $1`
	return scanEscrow(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey fetches the escrow a creator made with the given key.
func (r *EscrowRepo) GetByIdempotencyKey(ctx context.Context, creatorID uuid.UUID, key string) (*domain.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE creator_account_id = $1 AND idempotency_key = $2`
	return scanEscrow(r.pool.QueryRow(ctx, query, creatorID, key))
}

// GetByIDForUpdate fetches an escrow with pessimistic locking.
// This MUST be called within a transaction.
func (r *EscrowRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE id = $1 FOR UPDATE`
	return scanEscrow(tx.QueryRow(ctx, query, id))
}

// Update writes the lifecycle columns and bumps the version.
// settlement_ref is left alone; see SetSettlementRef.
func (r *EscrowRepo) Update(ctx context.Context, tx pgx.Tx, e *domain.Escrow) error {
	query := `UPDATE escrows SET
		recipient_account_id = $2, creator_wallet = $3, recipient_wallet = $4,
		creator_confirmed = $5, recipient_confirmed = $6, disputed = $7, disputed_by = $8,
		dispute_reason = $9, status = $10, updated_at = $11, completed_at = $12, disputed_at = $13,
		version = version + 1
		WHERE id = $1
		RETURNING version`

	err := tx.QueryRow(ctx, query,
		e.ID, e.RecipientAccountID, e.CreatorWallet, e.RecipientWallet,
		e.CreatorConfirmed, e.RecipientConfirmed, e.Disputed, e.DisputedBy,
		e.DisputeReason, string(e.Status), e.UpdatedAt, e.CompletedAt, e.DisputedAt,
	).Scan(&e.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("escrow not found: %s", e.ID)
		}
		return fmt.Errorf("update escrow: %w", err)
	}
	return nil
}

// ListByAccount returns every escrow the account created or is linked to, newest first.
func (r *EscrowRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows
		WHERE creator_account_id = $1 OR recipient_account_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list escrows: %w", err)
	}
	defer rows.Close()

	var escrows []domain.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan escrow row: %w", err)
		}
		escrows = append(escrows, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escrow rows: %w", err)
	}
	return escrows, nil
}

// ListUnlinkedByRecipientEmail returns ids of escrows still waiting for email.
func (r *EscrowRepo) ListUnlinkedByRecipientEmail(ctx context.Context, email string) ([]uuid.UUID, error) {
	query := `SELECT id FROM escrows
		WHERE recipient_account_id IS NULL AND recipient_email = $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("list unlinked escrows: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan escrow id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escrow ids: %w", err)
	}
	return ids, nil
}

// SetSettlementRef stores ref unless one is already present.
func (r *EscrowRepo) SetSettlementRef(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	query := `UPDATE escrows SET settlement_ref = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND settlement_ref IS NULL`

	tag, err := r.pool.Exec(ctx, query, id, ref)
	if err != nil {
		return false, fmt.Errorf("set settlement ref: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetStats aggregates the escrows an account is party to.
func (r *EscrowRepo) GetStats(ctx context.Context, accountID uuid.UUID) (*domain.EscrowStats, error) {
	query := `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'PENDING' AND recipient_account_id IS NULL) AS open,
		COUNT(*) FILTER (WHERE status = 'PENDING' AND recipient_account_id IS NOT NULL) AS active,
		COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed,
		COUNT(*) FILTER (WHERE status = 'DISPUTED') AS disputed,
		COALESCE(SUM(amount), 0) AS total_amount
		FROM escrows WHERE creator_account_id = $1 OR recipient_account_id = $1`

	stats := &domain.EscrowStats{}
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&stats.Total, &stats.Open, &stats.Active, &stats.Completed, &stats.Disputed, &stats.TotalAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("get escrow stats: %w", err)
	}
	return stats, nil
}

func scanEscrow(row pgx.Row) (*domain.Escrow, error) {
	e := &domain.Escrow{}
	err := row.Scan(
		&e.ID, &e.CreatorAccountID, &e.RecipientEmail, &e.RecipientAccountID, &e.AssetID, &e.AssetSymbol,
		&e.Amount, &e.Description, &e.Terms, &e.CreatorWallet, &e.RecipientWallet, &e.CreatorConfirmed, &e.RecipientConfirmed,
		&e.Disputed, &e.DisputedBy, &e.DisputeReason, &e.Status, &e.SettlementRef, &e.IdempotencyKey, &e.Version,
		&e.CreatedAt, &e.UpdatedAt, &e.CompletedAt, &e.DisputedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan escrow: %w", err)
	}
	return e, nil
}
