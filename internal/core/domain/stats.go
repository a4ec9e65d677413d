package domain

import "github.com/shopspring/decimal"

// EscrowStats summarizes the escrows an account is party to.
// TotalAmount is a plain sum across assets; no conversion is applied.
type EscrowStats struct {
	Total       int64           `json:"total"`
	Open        int64           `json:"open"`   // PENDING, recipient unlinked
	Active      int64           `json:"active"` // PENDING, recipient linked
	Completed   int64           `json:"completed"`
	Disputed    int64           `json:"disputed"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}
