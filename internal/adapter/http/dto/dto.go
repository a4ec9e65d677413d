package dto

import (
	"time"

	"secure-escrow/internal/core/domain"

	"github.com/shopspring/decimal"
)

// RequestPasscodeRequest is the request body for POST /auth/passcode.
type RequestPasscodeRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
}

// VerifyPasscodeRequest is the request body for POST /auth/verify.
type VerifyPasscodeRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
	Code  string `json:"code" binding:"required,numeric,min=4,max=10"`
}

// SessionResponse is returned after a successful passcode verification.
type SessionResponse struct {
	Token         string          `json:"token"`
	Expiry        int64           `json:"expiry"` // Unix timestamp
	Account       AccountResponse `json:"account"`
	LinkedEscrows int             `json:"linked_escrows"`
}

// UpdateProfileRequest is the request body for PUT /accounts/me.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=1,max=100"`
}

// SettlementAddressRequest sets an account default or per-escrow address.
type SettlementAddressRequest struct {
	Address string `json:"address" binding:"required,evm_address"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID                string  `json:"id"`
	Email             string  `json:"email"`
	DisplayName       string  `json:"display_name"`
	SettlementAddress *string `json:"settlement_address,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

// CreateEscrowRequest is the request body for POST /escrows.
// Field rules are enforced by the escrow service so every violation is
// reported together. Amount accepts a JSON string or number.
type CreateEscrowRequest struct {
	RecipientEmail string          `json:"recipient_email"`
	AssetID        string          `json:"asset_id"`
	AssetSymbol    string          `json:"asset_symbol"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	Terms          *string         `json:"terms,omitempty"`
	CreatorWallet  *string         `json:"creator_wallet,omitempty"`
}

// DisputeRequest is the optional body of POST /escrows/:id/dispute.
type DisputeRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// EscrowResponse is the public view of an escrow. Status is the display
// status, so a linked PENDING escrow reads ACTIVE.
type EscrowResponse struct {
	ID                 string  `json:"id"`
	CreatorAccountID   string  `json:"creator_account_id"`
	RecipientEmail     string  `json:"recipient_email"`
	RecipientAccountID *string `json:"recipient_account_id"`
	AssetID            string  `json:"asset_id"`
	AssetSymbol        string  `json:"asset_symbol"`
	Amount             string  `json:"amount"`
	Description        string  `json:"description"`
	Terms              *string `json:"terms,omitempty"`
	CreatorWallet      *string `json:"creator_wallet"`
	RecipientWallet    *string `json:"recipient_wallet"`
	CreatorConfirmed   bool    `json:"creator_confirmed"`
	RecipientConfirmed bool    `json:"recipient_confirmed"`
	Disputed           bool    `json:"disputed"`
	DisputedBy         *string `json:"disputed_by,omitempty"`
	DisputeReason      *string `json:"dispute_reason,omitempty"`
	Status             string  `json:"status"`
	SettlementRef      *string `json:"settlement_ref,omitempty"`
	Version            int64   `json:"version"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
	CompletedAt        *string `json:"completed_at,omitempty"`
	DisputedAt         *string `json:"disputed_at,omitempty"`
}

// PostMessageRequest is the request body for POST /escrows/:id/messages.
type PostMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// MessageResponse is one entry of an escrow thread.
type MessageResponse struct {
	ID              string `json:"id"`
	EscrowID        string `json:"escrow_id"`
	SenderAccountID string `json:"sender_account_id"`
	Content         string `json:"content"`
	CreatedAt       string `json:"created_at"`
}

// BalanceCheckRequest is the request body for POST /balance/check.
type BalanceCheckRequest struct {
	Holder  string          `json:"holder" binding:"required"`
	AssetID string          `json:"asset_id" binding:"required"`
	Amount  decimal.Decimal `json:"amount"`
}

// SummaryResponse is the response for GET /accounts/me/summary.
type SummaryResponse struct {
	Total       int64  `json:"total"`
	Open        int64  `json:"open"`
	Active      int64  `json:"active"`
	Completed   int64  `json:"completed"`
	Disputed    int64  `json:"disputed"`
	TotalAmount string `json:"total_amount"`
}

// NewAccountResponse maps a domain account to its public view.
func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:                a.ID.String(),
		Email:             a.Email,
		DisplayName:       a.DisplayName,
		SettlementAddress: a.SettlementAddress,
		CreatedAt:         formatTime(a.CreatedAt),
	}
}

// NewEscrowResponse maps a domain escrow to its public view.
func NewEscrowResponse(e *domain.Escrow) EscrowResponse {
	resp := EscrowResponse{
		ID:                 e.ID.String(),
		CreatorAccountID:   e.CreatorAccountID.String(),
		RecipientEmail:     e.RecipientEmail,
		AssetID:            e.AssetID,
		AssetSymbol:        e.AssetSymbol,
		Amount:             e.Amount.String(),
		Description:        e.Description,
		Terms:              e.Terms,
		CreatorWallet:      e.CreatorWallet,
		RecipientWallet:    e.RecipientWallet,
		CreatorConfirmed:   e.CreatorConfirmed,
		RecipientConfirmed: e.RecipientConfirmed,
		Disputed:           e.Disputed,
		DisputeReason:      e.DisputeReason,
		Status:             string(e.DisplayStatus()),
		SettlementRef:      e.SettlementRef,
		Version:            e.Version,
		CreatedAt:          formatTime(e.CreatedAt),
		UpdatedAt:          formatTime(e.UpdatedAt),
		CompletedAt:        formatTimePtr(e.CompletedAt),
		DisputedAt:         formatTimePtr(e.DisputedAt),
	}
	if e.RecipientAccountID != nil {
		s := e.RecipientAccountID.String()
		resp.RecipientAccountID = &s
	}
	if e.DisputedBy != nil {
		s := e.DisputedBy.String()
		resp.DisputedBy = &s
	}
	return resp
}

// NewEscrowListResponse maps a list; an empty list stays an empty JSON array.
func NewEscrowListResponse(escrows []domain.Escrow) []EscrowResponse {
	out := make([]EscrowResponse, 0, len(escrows))
	for i := range escrows {
		out = append(out, NewEscrowResponse(&escrows[i]))
	}
	return out
}

// NewMessageListResponse maps an escrow thread in order.
func NewMessageListResponse(msgs []domain.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, NewMessageResponse(&msgs[i]))
	}
	return out
}

// NewMessageResponse maps one message.
func NewMessageResponse(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:              m.ID.String(),
		EscrowID:        m.EscrowID.String(),
		SenderAccountID: m.SenderAccountID.String(),
		Content:         m.Content,
		CreatedAt:       formatTime(m.CreatedAt),
	}
}

// NewSummaryResponse maps escrow stats.
func NewSummaryResponse(s *domain.EscrowStats) SummaryResponse {
	return SummaryResponse{
		Total:       s.Total,
		Open:        s.Open,
		Active:      s.Active,
		Completed:   s.Completed,
		Disputed:    s.Disputed,
		TotalAmount: s.TotalAmount.String(),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
