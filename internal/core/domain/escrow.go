package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EscrowStatus is the stored lifecycle state of an escrow.
// ACTIVE is never stored; see Escrow.DisplayStatus.
type EscrowStatus string

const (
	EscrowStatusPending   EscrowStatus = "PENDING"
	EscrowStatusActive    EscrowStatus = "ACTIVE"
	EscrowStatusCompleted EscrowStatus = "COMPLETED"
	EscrowStatusDisputed  EscrowStatus = "DISPUTED"
)

// Party identifies which side of an escrow an account is on.
type Party string

const (
	PartyNone      Party = ""
	PartyCreator   Party = "CREATOR"
	PartyRecipient Party = "RECIPIENT"
)

// MaxTermsLength bounds the free-text terms of an escrow.
const MaxTermsLength = 10000

// Escrow holds a claim on an amount of one asset until both parties confirm.
type Escrow struct {
	ID                 uuid.UUID       `json:"id"`
	CreatorAccountID   uuid.UUID       `json:"creator_account_id"`
	RecipientEmail     string          `json:"recipient_email"`
	RecipientAccountID *uuid.UUID      `json:"recipient_account_id"`
	AssetID            string          `json:"asset_id"`
	AssetSymbol        string          `json:"asset_symbol"`
	Amount             decimal.Decimal `json:"amount"`
	Description        string          `json:"description"`
	Terms              *string         `json:"terms,omitempty"`
	CreatorWallet      *string         `json:"creator_wallet"`
	RecipientWallet    *string         `json:"recipient_wallet"`
	CreatorConfirmed   bool            `json:"creator_confirmed"`
	RecipientConfirmed bool            `json:"recipient_confirmed"`
	Disputed           bool            `json:"disputed"`
	DisputedBy         *uuid.UUID      `json:"disputed_by,omitempty"`
	DisputeReason      *string         `json:"dispute_reason,omitempty"`
	Status             EscrowStatus    `json:"status"`
	SettlementRef      *string         `json:"settlement_ref,omitempty"`
	IdempotencyKey     *string         `json:"-"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	DisputedAt         *time.Time      `json:"disputed_at,omitempty"`
}

// IsLinked returns true once a recipient account is bound.
func (e *Escrow) IsLinked() bool {
	return e.RecipientAccountID != nil
}

// PartyOf returns the side accountID is bound to, or PartyNone.
func (e *Escrow) PartyOf(accountID uuid.UUID) Party {
	switch {
	case accountID == uuid.Nil:
		return PartyNone
	case e.CreatorAccountID == accountID:
		return PartyCreator
	case e.RecipientAccountID != nil && *e.RecipientAccountID == accountID:
		return PartyRecipient
	default:
		return PartyNone
	}
}

// WalletOf returns the settlement address of the given party.
func (e *Escrow) WalletOf(p Party) *string {
	switch p {
	case PartyCreator:
		return e.CreatorWallet
	case PartyRecipient:
		return e.RecipientWallet
	}
	return nil
}

// SetWalletOf stores the settlement address of the given party.
func (e *Escrow) SetWalletOf(p Party, addr string) {
	switch p {
	case PartyCreator:
		e.CreatorWallet = &addr
	case PartyRecipient:
		e.RecipientWallet = &addr
	}
}

// ConfirmedBy returns the confirmation flag of the given party.
func (e *Escrow) ConfirmedBy(p Party) bool {
	switch p {
	case PartyCreator:
		return e.CreatorConfirmed
	case PartyRecipient:
		return e.RecipientConfirmed
	}
	return false
}

// MarkConfirmed sets the confirmation flag of the given party.
func (e *Escrow) MarkConfirmed(p Party) {
	switch p {
	case PartyCreator:
		e.CreatorConfirmed = true
	case PartyRecipient:
		e.RecipientConfirmed = true
	}
}

// BothConfirmed returns true when both parties have confirmed.
func (e *Escrow) BothConfirmed() bool {
	return e.CreatorConfirmed && e.RecipientConfirmed
}

// IsTerminal returns true if the escrow is COMPLETED or DISPUTED.
func (e *Escrow) IsTerminal() bool {
	return e.Status == EscrowStatusCompleted || e.Status == EscrowStatusDisputed
}

// DisplayStatus derives the presentation label: a PENDING escrow with a
// linked recipient is shown as ACTIVE.
func (e *Escrow) DisplayStatus() EscrowStatus {
	if e.Status == EscrowStatusPending && e.IsLinked() {
		return EscrowStatusActive
	}
	return e.Status
}

// AwaitsLinkBy reports whether the escrow is unlinked and addressed to email.
func (e *Escrow) AwaitsLinkBy(email string) bool {
	return !e.IsLinked() && EmailsMatch(e.RecipientEmail, email)
}

// CanBeViewedBy reports whether the caller may read the escrow: a bound
// party, or the holder of the unlinked recipient e-mail.
func (e *Escrow) CanBeViewedBy(accountID uuid.UUID, email string) bool {
	return e.PartyOf(accountID) != PartyNone || e.AwaitsLinkBy(email)
}

// CounterpartyOf returns the account on the other side, if bound.
func (e *Escrow) CounterpartyOf(p Party) *uuid.UUID {
	switch p {
	case PartyCreator:
		return e.RecipientAccountID
	case PartyRecipient:
		id := e.CreatorAccountID
		return &id
	}
	return nil
}
