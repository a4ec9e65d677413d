package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a change on an escrow.
type EventType string

const (
	EventEscrowCreated   EventType = "ESCROW_CREATED"
	EventRecipientLinked EventType = "RECIPIENT_LINKED"
	EventWalletSet       EventType = "WALLET_SET"
	EventConfirmed       EventType = "CONFIRMED"
	EventCompleted       EventType = "COMPLETED"
	EventDisputed        EventType = "DISPUTED"
	EventMessagePosted   EventType = "MESSAGE_POSTED"
)

// EscrowEvent is published after a committed change so watchers can
// re-fetch instead of polling.
type EscrowEvent struct {
	Type       EventType    `json:"type"`
	EscrowID   uuid.UUID    `json:"escrow_id"`
	Status     EscrowStatus `json:"status"`
	Version    int64        `json:"version"`
	ActorID    *uuid.UUID   `json:"actor_id,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// NewEscrowEvent snapshots the escrow's display status and version.
func NewEscrowEvent(t EventType, e *Escrow, actor *uuid.UUID) EscrowEvent {
	return EscrowEvent{
		Type:       t,
		EscrowID:   e.ID,
		Status:     e.DisplayStatus(),
		Version:    e.Version,
		ActorID:    actor,
		OccurredAt: time.Now().UTC(),
	}
}
