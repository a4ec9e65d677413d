package memory

import (
	"context"
	"errors"
	"sync"

	"secure-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction does not belong to this store")

// Tx is a unit of work over a Store. Rows read with GetByIDForUpdate stay
// locked until Commit or Rollback; writes become visible on Commit.
// Only Commit and Rollback are implemented; other pgx.Tx methods panic.
type Tx struct {
	pgx.Tx

	store   *Store
	mu      sync.Mutex
	unlocks []func()
	staged  map[uuid.UUID]*domain.Escrow
	closed  bool
}

// Transactor implements ports.DBTransactor.
type Transactor struct {
	store *Store
}

// NewTransactor creates a new Transactor.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin starts a new unit of work.
func (t *Transactor) Begin(_ context.Context) (pgx.Tx, error) {
	return &Tx{store: t.store, staged: make(map[uuid.UUID]*domain.Escrow)}, nil
}

// Commit publishes staged writes and releases row locks.
func (tx *Tx) Commit(_ context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return pgx.ErrTxClosed
	}

	tx.store.mu.Lock()
	for id, e := range tx.staged {
		tx.store.escrows[id] = e
	}
	tx.store.mu.Unlock()

	tx.release()
	return nil
}

// Rollback discards staged writes and releases row locks.
func (tx *Tx) Rollback(_ context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.release()
	return nil
}

func (tx *Tx) release() {
	for i := len(tx.unlocks) - 1; i >= 0; i-- {
		tx.unlocks[i]()
	}
	tx.unlocks = nil
	tx.staged = nil
	tx.closed = true
}

func (tx *Tx) hold(unlock func()) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		unlock()
		return pgx.ErrTxClosed
	}
	tx.unlocks = append(tx.unlocks, unlock)
	return nil
}

func (tx *Tx) stage(e *domain.Escrow) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.staged[e.ID] = e
	return nil
}

func asTx(store *Store, tx pgx.Tx) (*Tx, error) {
	mtx, ok := tx.(*Tx)
	if !ok || mtx.store != store {
		return nil, errForeignTx
	}
	return mtx, nil
}
