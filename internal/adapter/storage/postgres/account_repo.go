package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"secure-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, email, display_name, settlement_address, created_at, updated_at`

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// FindOrCreate upserts on the unique e-mail. The no-op DO UPDATE makes
// RETURNING yield the existing row when another login got there first.
func (r *AccountRepo) FindOrCreate(ctx context.Context, email, displayName string) (*domain.Account, error) {
	now := time.Now().UTC()
	query := `INSERT INTO accounts (id, email, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING ` + accountColumns

	a, err := scanAccount(r.pool.QueryRow(ctx, query, uuid.New(), email, displayName, now))
	if err != nil {
		return nil, fmt.Errorf("find or create account: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("find or create account: no row returned for %s", email)
	}
	return a, nil
}

// GetByID fetches an account by UUID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail fetches an account by its normalized e-mail.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, email))
}

// Update writes the mutable profile fields.
func (r *AccountRepo) Update(ctx context.Context, a *domain.Account) error {
	query := `UPDATE accounts SET display_name = $1, settlement_address = $2, updated_at = $3 WHERE id = $4`

	tag, err := r.pool.Exec(ctx, query, a.DisplayName, a.SettlementAddress, a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", a.ID)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.SettlementAddress, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}
