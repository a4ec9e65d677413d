package memory

import (
	"context"
	"sort"

	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// EscrowRepo implements ports.EscrowRepository.
type EscrowRepo struct {
	store *Store
}

// NewEscrowRepo creates a new EscrowRepo.
func NewEscrowRepo(store *Store) *EscrowRepo {
	return &EscrowRepo{store: store}
}

func (r *EscrowRepo) Create(_ context.Context, escrow *domain.Escrow) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if escrow.IdempotencyKey != nil {
		k := idempotencyKey{creatorID: escrow.CreatorAccountID, key: *escrow.IdempotencyKey}
		if _, exists := r.store.idempotency[k]; exists {
			return ports.ErrDuplicateIdempotencyKey
		}
		r.store.idempotency[k] = escrow.ID
	}

	r.store.escrows[escrow.ID] = cloneEscrow(escrow)
	r.store.escrowOrder = append(r.store.escrowOrder, escrow.ID)
	return nil
}

func (r *EscrowRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Escrow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, ok := r.store.escrows[id]
	if !ok {
		return nil, nil
	}
	return cloneEscrow(e), nil
}

func (r *EscrowRepo) GetByIdempotencyKey(_ context.Context, creatorID uuid.UUID, key string) (*domain.Escrow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.idempotency[idempotencyKey{creatorID: creatorID, key: key}]
	if !ok {
		return nil, nil
	}
	return cloneEscrow(r.store.escrows[id]), nil
}

// GetByIDForUpdate locks the escrow for the lifetime of tx.
func (r *EscrowRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Escrow, error) {
	mtx, err := asTx(r.store, tx)
	if err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	_, exists := r.store.escrows[id]
	r.store.mu.RUnlock()
	if !exists {
		return nil, nil
	}

	unlock, err := r.store.lockRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mtx.hold(unlock); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Update stages the escrow's new state and bumps its version.
func (r *EscrowRepo) Update(_ context.Context, tx pgx.Tx, escrow *domain.Escrow) error {
	mtx, err := asTx(r.store, tx)
	if err != nil {
		return err
	}

	r.store.mu.RLock()
	current, ok := r.store.escrows[escrow.ID]
	var ref *string
	if ok {
		ref = clonePtr(current.SettlementRef)
	}
	r.store.mu.RUnlock()
	if !ok {
		return pgx.ErrNoRows
	}

	escrow.Version++
	staged := cloneEscrow(escrow)
	// settlement_ref is only written by SetSettlementRef.
	staged.SettlementRef = ref
	return mtx.stage(staged)
}

// ListByAccount returns escrows the account created or is linked to, newest first.
func (r *EscrowRepo) ListByAccount(_ context.Context, accountID uuid.UUID) ([]domain.Escrow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.Escrow
	for i := len(r.store.escrowOrder) - 1; i >= 0; i-- {
		e := r.store.escrows[r.store.escrowOrder[i]]
		if e.PartyOf(accountID) != domain.PartyNone {
			out = append(out, *cloneEscrow(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *EscrowRepo) ListUnlinkedByRecipientEmail(_ context.Context, email string) ([]uuid.UUID, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var ids []uuid.UUID
	for _, id := range r.store.escrowOrder {
		if r.store.escrows[id].AwaitsLinkBy(email) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *EscrowRepo) SetSettlementRef(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	unlock, err := r.store.lockRow(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.escrows[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if e.SettlementRef != nil {
		return false, nil
	}
	updated := cloneEscrow(e)
	updated.SettlementRef = &ref
	updated.Version++
	r.store.escrows[id] = updated
	return true, nil
}

func (r *EscrowRepo) GetStats(_ context.Context, accountID uuid.UUID) (*domain.EscrowStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stats := &domain.EscrowStats{TotalAmount: decimal.Zero}
	for _, e := range r.store.escrows {
		if e.PartyOf(accountID) == domain.PartyNone {
			continue
		}
		stats.Total++
		stats.TotalAmount = stats.TotalAmount.Add(e.Amount)
		switch e.DisplayStatus() {
		case domain.EscrowStatusPending:
			stats.Open++
		case domain.EscrowStatusActive:
			stats.Active++
		case domain.EscrowStatusCompleted:
			stats.Completed++
		case domain.EscrowStatusDisputed:
			stats.Disputed++
		}
	}
	return stats, nil
}
