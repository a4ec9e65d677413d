package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/core/ports"
	"secure-escrow/pkg/apperror"

	"github.com/rs/zerolog"
)

// PasscodeSettings tunes passcode issuance and verification.
type PasscodeSettings struct {
	TTL         time.Duration
	MaxAttempts int64
	Length      int
}

// AuthServiceImpl implements ports.AuthService with e-mailed one-time passcodes.
type AuthServiceImpl struct {
	identity  ports.IdentityService
	escrows   ports.EscrowService
	passcodes ports.PasscodeStore
	hashSvc   ports.HashService
	tokenSvc  ports.TokenService
	notifier  ports.Notifier
	settings  PasscodeSettings
	log       zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	identity ports.IdentityService,
	escrows ports.EscrowService,
	passcodes ports.PasscodeStore,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	notifier ports.Notifier,
	settings PasscodeSettings,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		identity:  identity,
		escrows:   escrows,
		passcodes: passcodes,
		hashSvc:   hashSvc,
		tokenSvc:  tokenSvc,
		notifier:  notifier,
		settings:  settings,
		log:       log,
	}
}

// RequestPasscode issues a fresh code for email, replacing any earlier one,
// and hands it to the notifier.
func (s *AuthServiceImpl) RequestPasscode(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if !isValidEmail(email) {
		return apperror.ValidationFields(apperror.FieldError{Field: "email", Message: "must be a valid e-mail address"})
	}

	code, err := generatePasscode(s.settings.Length)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("generate passcode: %w", err))
	}

	hash, err := s.hashSvc.Hash(code)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("hash passcode: %w", err))
	}

	if err := s.passcodes.Save(ctx, email, hash, s.settings.TTL); err != nil {
		return apperror.InternalError(fmt.Errorf("store passcode: %w", err))
	}

	if err := s.notifier.Notify(ctx, ports.Notification{
		Kind: ports.NotifyPasscode,
		To:   email,
		Data: map[string]string{
			"code":       code,
			"expires_in": s.settings.TTL.String(),
		},
	}); err != nil {
		return apperror.ErrCollaboratorUnavailable("notification relay", err)
	}

	return nil
}

// VerifyPasscode consumes a valid code, resolves the account, links escrows
// waiting on this e-mail and issues a session token.
func (s *AuthServiceImpl) VerifyPasscode(ctx context.Context, email string, code string) (*ports.AuthResult, error) {
	email = domain.NormalizeEmail(email)

	hash, err := s.passcodes.Get(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load passcode: %w", err))
	}
	if hash == "" {
		return nil, apperror.ErrInvalidPasscode()
	}

	attempts, err := s.passcodes.IncrAttempts(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count attempt: %w", err))
	}
	if attempts > s.settings.MaxAttempts {
		if err := s.passcodes.Delete(ctx, email); err != nil {
			s.log.Warn().Err(err).Msg("failed to drop exhausted passcode")
		}
		return nil, apperror.ErrPasscodeAttemptsExceeded()
	}

	valid, err := s.hashSvc.Verify(code, hash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify passcode: %w", err))
	}
	if !valid {
		return nil, apperror.ErrInvalidPasscode()
	}

	// Single use.
	if err := s.passcodes.Delete(ctx, email); err != nil {
		s.log.Warn().Err(err).Msg("failed to consume passcode")
	}

	account, err := s.identity.FindOrCreateByEmail(ctx, email, nil)
	if err != nil {
		return nil, err
	}

	linked, err := s.escrows.LinkPending(ctx, ports.Caller{AccountID: account.ID, Email: account.Email})
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", account.ID.String()).Msg("linking pending escrows incomplete")
	}

	token, expiresAt, err := s.tokenSvc.Generate(account.ID, account.Email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.log.Info().
		Str("account_id", account.ID.String()).
		Int("linked_escrows", linked).
		Msg("passcode login succeeded")

	return &ports.AuthResult{
		Token:         token,
		ExpiresAt:     expiresAt,
		Account:       account,
		LinkedEscrows: linked,
	}, nil
}

// generatePasscode returns n uniformly random decimal digits.
func generatePasscode(n int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}
