package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength bounds message content, in characters.
const MaxMessageLength = 4000

// Message is an append-only entry in an escrow's conversation.
type Message struct {
	ID              uuid.UUID `json:"id"`
	EscrowID        uuid.UUID `json:"escrow_id"`
	SenderAccountID uuid.UUID `json:"sender_account_id"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
}
