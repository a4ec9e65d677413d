package memory

import (
	"context"

	"secure-escrow/internal/core/domain"

	"github.com/google/uuid"
)

// MessageRepo implements ports.MessageRepository.
type MessageRepo struct {
	store *Store
}

// NewMessageRepo creates a new MessageRepo.
func NewMessageRepo(store *Store) *MessageRepo {
	return &MessageRepo{store: store}
}

func (r *MessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.messages[msg.EscrowID] = append(r.store.messages[msg.EscrowID], *msg)
	return nil
}

func (r *MessageRepo) ListByEscrow(_ context.Context, escrowID uuid.UUID) ([]domain.Message, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	thread := r.store.messages[escrowID]
	out := make([]domain.Message, len(thread))
	copy(out, thread)
	return out, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	store *Store
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{store: store}
}

func (r *AuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.audit = append(r.store.audit, *entry)
	return nil
}

// Entries returns a snapshot of the audit log, oldest first.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]domain.AuditLog, len(r.store.audit))
	copy(out, r.store.audit)
	return out
}
