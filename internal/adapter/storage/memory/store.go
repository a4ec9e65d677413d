// Package memory implements the storage ports in process memory. It backs
// local runs (storage.driver: memory) and lifecycle tests.
package memory

import (
	"context"
	"sync"

	"secure-escrow/internal/core/domain"

	"github.com/google/uuid"
)

// Store holds every table. Repositories created from the same Store share state.
type Store struct {
	mu sync.RWMutex

	accounts       map[uuid.UUID]*domain.Account
	accountByEmail map[string]uuid.UUID

	escrows     map[uuid.UUID]*domain.Escrow
	escrowOrder []uuid.UUID
	idempotency map[idempotencyKey]uuid.UUID
	rowLocks    map[uuid.UUID]chan struct{}

	messages map[uuid.UUID][]domain.Message
	audit    []domain.AuditLog
}

type idempotencyKey struct {
	creatorID uuid.UUID
	key       string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:       make(map[uuid.UUID]*domain.Account),
		accountByEmail: make(map[string]uuid.UUID),
		escrows:        make(map[uuid.UUID]*domain.Escrow),
		idempotency:    make(map[idempotencyKey]uuid.UUID),
		rowLocks:       make(map[uuid.UUID]chan struct{}),
		messages:       make(map[uuid.UUID][]domain.Message),
	}
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

// Ping implements ports.HealthChecker.
func (s *Store) Ping(_ context.Context) error { return nil }

// lockRow blocks until the escrow row lock is held or ctx is done.
func (s *Store) lockRow(ctx context.Context, id uuid.UUID) (func(), error) {
	s.mu.Lock()
	ch, ok := s.rowLocks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[id] = ch
	}
	s.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func cloneEscrow(e *domain.Escrow) *domain.Escrow {
	c := *e
	c.RecipientAccountID = clonePtr(e.RecipientAccountID)
	c.Terms = clonePtr(e.Terms)
	c.CreatorWallet = clonePtr(e.CreatorWallet)
	c.RecipientWallet = clonePtr(e.RecipientWallet)
	c.DisputedBy = clonePtr(e.DisputedBy)
	c.DisputeReason = clonePtr(e.DisputeReason)
	c.SettlementRef = clonePtr(e.SettlementRef)
	c.IdempotencyKey = clonePtr(e.IdempotencyKey)
	c.CompletedAt = clonePtr(e.CompletedAt)
	c.DisputedAt = clonePtr(e.DisputedAt)
	return &c
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	c.SettlementAddress = clonePtr(a.SettlementAddress)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
