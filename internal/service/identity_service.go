package service

import (
	"context"
	"fmt"
	"strings"

	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/core/ports"
	"secure-escrow/pkg/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxDisplayNameLen = 100

var emailValidator = validator.New()

// isValidEmail checks RFC 5322 syntax via the validator's email rule.
func isValidEmail(email string) bool {
	return email != "" && emailValidator.Var(email, "email") == nil
}

type identityService struct {
	accountRepo ports.AccountRepository
	log         zerolog.Logger
}

// NewIdentityService creates a new identity resolver.
func NewIdentityService(accountRepo ports.AccountRepository, log zerolog.Logger) ports.IdentityService {
	return &identityService{accountRepo: accountRepo, log: log}
}

// FindOrCreateByEmail returns the account for email, creating it on first contact.
func (s *identityService) FindOrCreateByEmail(ctx context.Context, email string, displayName *string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if !isValidEmail(email) {
		return nil, apperror.ValidationFields(apperror.FieldError{Field: "email", Message: "must be a valid e-mail address"})
	}

	name := domain.DefaultDisplayName(email)
	if dn := trimmedOrNil(displayName); dn != nil {
		normalized, appErr := normalizeDisplayName(*dn)
		if appErr != nil {
			return nil, appErr
		}
		name = normalized
	}

	account, err := s.accountRepo.FindOrCreate(ctx, email, name)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find or create account: %w", err))
	}
	s.log.Debug().Str("account_id", account.ID.String()).Msg("account resolved")
	return account, nil
}

// ByID returns the account or ESC_005.
func (s *identityService) ByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return account, nil
}

// normalizeDisplayName trims and bounds a display name.
func normalizeDisplayName(name string) (string, *apperror.AppError) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", apperror.ValidationFields(apperror.FieldError{Field: "display_name", Message: "is required"})
	case len([]rune(name)) > maxDisplayNameLen:
		return "", apperror.ValidationFields(apperror.FieldError{
			Field:   "display_name",
			Message: fmt.Sprintf("must be at most %d characters", maxDisplayNameLen),
		})
	}
	return name, nil
}
