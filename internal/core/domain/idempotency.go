package domain

import "github.com/google/uuid"

// BuildIdempotencyKey scopes a client-supplied key to the creating account.
// Format: "escrow:<account_id>:<key>"
func BuildIdempotencyKey(accountID uuid.UUID, clientKey string) string {
	return "escrow:" + accountID.String() + ":" + clientKey
}
