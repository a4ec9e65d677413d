package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionLogin         AuditAction = "LOGIN"
	AuditActionCreateEscrow  AuditAction = "CREATE_ESCROW"
	AuditActionSetWallet     AuditAction = "SET_WALLET"
	AuditActionConfirm       AuditAction = "CONFIRM"
	AuditActionDispute       AuditAction = "DISPUTE"
	AuditActionPostMessage   AuditAction = "POST_MESSAGE"
	AuditActionUpdateProfile AuditAction = "UPDATE_PROFILE"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	AccountID    *uuid.UUID  `json:"account_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
