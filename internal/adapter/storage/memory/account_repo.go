package memory

import (
	"context"
	"time"

	"secure-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	store *Store
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(store *Store) *AccountRepo {
	return &AccountRepo{store: store}
}

func (r *AccountRepo) FindOrCreate(_ context.Context, email, displayName string) (*domain.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if id, ok := r.store.accountByEmail[email]; ok {
		return cloneAccount(r.store.accounts[id]), nil
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.store.accounts[account.ID] = account
	r.store.accountByEmail[email] = account.ID
	return cloneAccount(account), nil
}

func (r *AccountRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.accounts[id]
	if !ok {
		return nil, nil
	}
	return cloneAccount(a), nil
}

func (r *AccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.accountByEmail[email]
	if !ok {
		return nil, nil
	}
	return cloneAccount(r.store.accounts[id]), nil
}

// Update writes the mutable profile fields. E-mail is immutable.
func (r *AccountRepo) Update(_ context.Context, account *domain.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.accounts[account.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	updated := cloneAccount(current)
	updated.DisplayName = account.DisplayName
	updated.SettlementAddress = clonePtr(account.SettlementAddress)
	updated.UpdatedAt = account.UpdatedAt
	r.store.accounts[account.ID] = updated
	return nil
}
