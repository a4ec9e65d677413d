package ports

import (
	"context"
	"time"

	"secure-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Caller is the identity asserted by the auth collaborator for a request.
type Caller struct {
	AccountID uuid.UUID
	Email     string
}

// --- Infrastructure Ports ---

// SignatureService handles HMAC-SHA256 signing and verification of relay deliveries.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(timestamp int64, deliveryID string, body string) string
}

// HashService handles one-time passcode hashing (Argon2id).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(accountID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID uuid.UUID
	Email     string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// PasscodeStore keeps hashed one-time passcodes with an attempt budget.
type PasscodeStore interface {
	// Save stores the hash for email, replacing any previous code and
	// resetting the attempt counter.
	Save(ctx context.Context, email string, hash string, ttl time.Duration) error
	// Get returns the stored hash, or "" if none is live.
	Get(ctx context.Context, email string) (string, error)
	// IncrAttempts counts a verification attempt and returns the new total.
	IncrAttempts(ctx context.Context, email string) (int64, error)
	Delete(ctx context.Context, email string) error
}

// EventPublisher fans escrow change events out to watchers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.EscrowEvent) error
}

// EventSubscriber streams change events for one escrow. The returned cancel
// func releases the subscription and closes the channel.
type EventSubscriber interface {
	Subscribe(ctx context.Context, escrowID uuid.UUID) (<-chan domain.EscrowEvent, func(), error)
}

// --- External Collaborators ---

// BalanceGate reports a holder's balance of an asset. Advisory only.
type BalanceGate interface {
	CheckBalance(ctx context.Context, holder string, assetID string, amount decimal.Decimal) (*BalanceReport, error)
}

// BalanceReport is the answer of a BalanceGate lookup.
type BalanceReport struct {
	Holder     string          `json:"holder"`
	AssetID    string          `json:"asset_id"`
	Required   decimal.Decimal `json:"required"`
	Balance    decimal.Decimal `json:"balance"`
	Shortfall  decimal.Decimal `json:"shortfall"`
	Sufficient bool            `json:"sufficient"`
}

// SettlementTrigger starts downstream settlement of a completed escrow and
// returns its reference. Invoked at most once per escrow.
type SettlementTrigger interface {
	Settle(ctx context.Context, escrow *domain.Escrow) (string, error)
}

// NotificationKind names an outbound notification.
type NotificationKind string

const (
	NotifyPasscode        NotificationKind = "PASSCODE"
	NotifyEscrowInvite    NotificationKind = "ESCROW_INVITE"
	NotifyEscrowCompleted NotificationKind = "ESCROW_COMPLETED"
	NotifyEscrowDisputed  NotificationKind = "ESCROW_DISPUTED"
)

// Notification is a message for the outbound relay.
type Notification struct {
	Kind     NotificationKind  `json:"kind"`
	To       string            `json:"to"`
	EscrowID *uuid.UUID        `json:"escrow_id,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// Notifier delivers notifications. Delivery is asynchronous; an error only
// means the notification could not be queued.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// --- Service Ports (Business Logic) ---

// EscrowService owns the escrow state machine.
type EscrowService interface {
	Create(ctx context.Context, req CreateEscrowRequest) (*domain.Escrow, error)
	Get(ctx context.Context, id uuid.UUID, caller Caller) (*domain.Escrow, error)
	ListForAccount(ctx context.Context, caller Caller) ([]domain.Escrow, error)
	LinkRecipient(ctx context.Context, id uuid.UUID, caller Caller) (*domain.Escrow, error)
	LinkPending(ctx context.Context, caller Caller) (int, error)
	SetSettlementAddress(ctx context.Context, id uuid.UUID, caller Caller, address string) (*domain.Escrow, error)
	Confirm(ctx context.Context, id uuid.UUID, caller Caller) (*domain.Escrow, error)
	Dispute(ctx context.Context, id uuid.UUID, caller Caller, reason *string) (*domain.Escrow, error)
}

// CreateEscrowRequest holds input for escrow creation.
type CreateEscrowRequest struct {
	Creator        Caller
	RecipientEmail string
	AssetID        string
	AssetSymbol    string
	Amount         decimal.Decimal
	Description    string
	Terms          *string
	CreatorWallet  *string
	IdempotencyKey string
}

// IdentityService resolves e-mails to durable accounts.
type IdentityService interface {
	FindOrCreateByEmail(ctx context.Context, email string, displayName *string) (*domain.Account, error)
	ByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

// ConversationService manages the per-escrow message thread.
type ConversationService interface {
	PostMessage(ctx context.Context, escrowID uuid.UUID, caller Caller, content string) (*domain.Message, error)
	ListMessages(ctx context.Context, escrowID uuid.UUID, caller Caller) ([]domain.Message, error)
}

// SummaryService computes per-account escrow counters.
type SummaryService interface {
	Summarize(ctx context.Context, accountID uuid.UUID) (*domain.EscrowStats, error)
}

// BalanceService validates and forwards advisory balance checks.
type BalanceService interface {
	Check(ctx context.Context, holder string, assetID string, amount decimal.Decimal) (*BalanceReport, error)
}

// AuthService defines passcode login business logic.
type AuthService interface {
	RequestPasscode(ctx context.Context, email string) error
	VerifyPasscode(ctx context.Context, email string, code string) (*AuthResult, error)
}

// AuthResult is returned after a successful passcode verification.
type AuthResult struct {
	Token        string
	ExpiresAt    time.Time
	Account      *domain.Account
	LinkedEscrows int
}

// AccountService manages the caller's own account.
type AccountService interface {
	GetProfile(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	UpdateDisplayName(ctx context.Context, accountID uuid.UUID, displayName string) (*domain.Account, error)
	SetSettlementAddress(ctx context.Context, accountID uuid.UUID, address string) (*domain.Account, error)
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
