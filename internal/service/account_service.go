package service

import (
	"context"
	"strings"
	"time"

	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/core/ports"
	"secure-escrow/pkg/apperror"

	"github.com/google/uuid"
)

type accountService struct {
	accountRepo ports.AccountRepository
}

// NewAccountService creates a new account management service.
func NewAccountService(accountRepo ports.AccountRepository) ports.AccountService {
	return &accountService{accountRepo: accountRepo}
}

func (s *accountService) GetProfile(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return account, nil
}

func (s *accountService) UpdateDisplayName(ctx context.Context, accountID uuid.UUID, displayName string) (*domain.Account, error) {
	name, appErr := normalizeDisplayName(displayName)
	if appErr != nil {
		return nil, appErr
	}

	account, err := s.GetProfile(ctx, accountID)
	if err != nil {
		return nil, err
	}

	account.DisplayName = name
	account.UpdatedAt = time.Now().UTC()
	if err := s.accountRepo.Update(ctx, account); err != nil {
		return nil, apperror.InternalError(err)
	}
	return account, nil
}

// SetSettlementAddress sets the account's default address. Unlike escrow
// addresses it may be changed by its owner; it only pre-fills new escrows.
func (s *accountService) SetSettlementAddress(ctx context.Context, accountID uuid.UUID, address string) (*domain.Account, error) {
	address = strings.TrimSpace(address)
	if !domain.IsValidAddress(address) {
		return nil, apperror.ValidationFields(apperror.FieldError{
			Field:   "address",
			Message: "must be a 0x-prefixed 40 hex digit address",
		})
	}
	address = domain.NormalizeAddress(address)

	account, err := s.GetProfile(ctx, accountID)
	if err != nil {
		return nil, err
	}

	account.SettlementAddress = &address
	account.UpdatedAt = time.Now().UTC()
	if err := s.accountRepo.Update(ctx, account); err != nil {
		return nil, apperror.InternalError(err)
	}
	return account, nil
}
