package postgres

import (
	"context"
	"fmt"

	"secure-escrow/internal/core/domain"

	"github.com/google/uuid"
)

// MessageRepo implements ports.MessageRepository.
type MessageRepo struct {
	pool Pool
}

// NewMessageRepo creates a new MessageRepo.
func NewMessageRepo(pool Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	query := `INSERT INTO escrow_messages (id, escrow_id, sender_account_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.pool.Exec(ctx, query, m.ID, m.EscrowID, m.SenderAccountID, m.Content, m.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListByEscrow returns the thread oldest first. Ties on created_at keep
// insertion order through the serial seq column.
func (r *MessageRepo) ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]domain.Message, error) {
	query := `SELECT id, escrow_id, sender_account_id, content, created_at
		FROM escrow_messages WHERE escrow_id = $1 ORDER BY created_at, seq`

	rows, err := r.pool.Query(ctx, query, escrowID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.EscrowID, &m.SenderAccountID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return msgs, nil
}
