package service

import (
	"context"
	"errors"
	"strings"

	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/core/ports"
	"secure-escrow/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// NativeAsset selects the chain's native coin instead of an ERC-20 contract.
const NativeAsset = "native"

var errGateDisabled = errors.New("no rpc endpoint configured")

type balanceService struct {
	gate ports.BalanceGate
	log  zerolog.Logger
}

// NewBalanceService creates the advisory balance check service.
// A nil gate makes every check fail with COL_001.
func NewBalanceService(gate ports.BalanceGate, log zerolog.Logger) ports.BalanceService {
	return &balanceService{gate: gate, log: log}
}

// Check validates the inputs and asks the gate. Gate failures surface as
// COL_001, never as an insufficient balance.
func (s *balanceService) Check(ctx context.Context, holder string, assetID string, amount decimal.Decimal) (*ports.BalanceReport, error) {
	holder = strings.TrimSpace(holder)
	assetID = strings.TrimSpace(assetID)

	var fields []apperror.FieldError
	if !domain.IsValidAddress(holder) {
		fields = append(fields, apperror.FieldError{Field: "holder", Message: "must be a 0x-prefixed 40 hex digit address"})
	}
	if !strings.EqualFold(assetID, NativeAsset) && !domain.IsValidAddress(assetID) {
		fields = append(fields, apperror.FieldError{Field: "asset_id", Message: "must be a token contract address or \"native\""})
	}
	if !amount.IsPositive() {
		fields = append(fields, apperror.FieldError{Field: "amount", Message: "must be greater than zero"})
	}
	if len(fields) > 0 {
		return nil, apperror.ValidationFields(fields...)
	}

	if s.gate == nil {
		return nil, apperror.ErrCollaboratorUnavailable("balance gate", errGateDisabled)
	}

	report, err := s.gate.CheckBalance(ctx, holder, assetID, amount)
	if err != nil {
		s.log.Warn().Err(err).Str("holder", holder).Str("asset_id", assetID).Msg("balance gate lookup failed")
		return nil, apperror.ErrCollaboratorUnavailable("balance gate", err)
	}
	return report, nil
}
