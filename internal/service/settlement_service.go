package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxSettlementResponse bounds how much of the relay's answer is read.
const maxSettlementResponse = 64 << 10

// SettlementRequest is the JSON body POSTed to the settlement relay when an
// escrow completes.
type SettlementRequest struct {
	DeliveryID      string    `json:"delivery_id"`
	EscrowID        uuid.UUID `json:"escrow_id"`
	AssetID         string    `json:"asset_id"`
	AssetSymbol     string    `json:"asset_symbol"`
	Amount          string    `json:"amount"`
	CreatorWallet   string    `json:"creator_wallet"`
	RecipientWallet string    `json:"recipient_wallet"`
	CompletedAt     time.Time `json:"completed_at"`
	Timestamp       int64     `json:"timestamp"`
}

type settlementAnswer struct {
	Reference string `json:"reference"`
}

// SettlementRelay implements ports.SettlementTrigger by handing completed
// escrows to an external settlement service over signed HTTP.
type SettlementRelay struct {
	url        string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewSettlementRelay creates a new SettlementRelay.
func NewSettlementRelay(
	url string,
	secret string,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	log zerolog.Logger,
) *SettlementRelay {
	return &SettlementRelay{
		url:        url,
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		log:        log,
	}
}

// Settle posts the escrow and returns the reference the relay assigned.
func (s *SettlementRelay) Settle(ctx context.Context, escrow *domain.Escrow) (string, error) {
	if escrow.CreatorWallet == nil || escrow.RecipientWallet == nil {
		return "", fmt.Errorf("settle escrow %s: settlement addresses missing", escrow.ID)
	}

	payload := SettlementRequest{
		DeliveryID:      uuid.NewString(),
		EscrowID:        escrow.ID,
		AssetID:         escrow.AssetID,
		AssetSymbol:     escrow.AssetSymbol,
		Amount:          escrow.Amount.String(),
		CreatorWallet:   *escrow.CreatorWallet,
		RecipientWallet: *escrow.RecipientWallet,
		Timestamp:       time.Now().Unix(),
	}
	if escrow.CompletedAt != nil {
		payload.CompletedAt = *escrow.CompletedAt
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal settlement request: %w", err)
	}
	signature := s.sigSvc.Sign(s.secret, s.sigSvc.BuildCanonicalString(payload.Timestamp, payload.DeliveryID, string(body)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create settlement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(payload.Timestamp, 10))
	req.Header.Set(HeaderDeliveryID, payload.DeliveryID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post settlement request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("settlement relay answered %d", resp.StatusCode)
	}

	var answer settlementAnswer
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSettlementResponse)).Decode(&answer); err != nil {
		return "", fmt.Errorf("decode settlement answer: %w", err)
	}
	if answer.Reference == "" {
		return "", fmt.Errorf("settlement relay returned no reference")
	}

	s.log.Info().
		Str("escrow_id", escrow.ID.String()).
		Str("delivery_id", payload.DeliveryID).
		Str("settlement_ref", answer.Reference).
		Msg("settlement: accepted")
	return answer.Reference, nil
}
