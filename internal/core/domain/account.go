package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account is a durable identity created on first successful authentication.
type Account struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"` // Stored lower-cased
	DisplayName       string    `json:"display_name"`
	SettlementAddress *string   `json:"settlement_address,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NormalizeEmail trims and lower-cases an e-mail address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailsMatch compares two e-mail addresses case-insensitively.
func EmailsMatch(a, b string) bool {
	na, nb := NormalizeEmail(a), NormalizeEmail(b)
	return na != "" && na == nb
}

// DefaultDisplayName derives a display name from the local part of an e-mail.
func DefaultDisplayName(email string) string {
	local, _, _ := strings.Cut(NormalizeEmail(email), "@")
	return local
}
