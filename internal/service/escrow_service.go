package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/core/ports"
	"secure-escrow/internal/metrics"
	"secure-escrow/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	idempotencyTTL       = 24 * time.Hour
	maxIdempotencyKeyLen = 128
	maxDisputeReasonLen  = 2000
	maxAmountDecimals    = 18
	maxAmountDigits      = 60
)

// maxAmount is the first amount with more whole digits than the amount
// column holds.
var maxAmount = decimal.New(1, maxAmountDigits)

// EscrowServiceImpl implements ports.EscrowService.
// idempCache, events, notifier and settlement are optional and may be nil.
type EscrowServiceImpl struct {
	escrowRepo  ports.EscrowRepository
	accountRepo ports.AccountRepository
	transactor  ports.DBTransactor
	idempCache  ports.IdempotencyCache
	events      ports.EventPublisher
	notifier    ports.Notifier
	settlement  ports.SettlementTrigger
	log         zerolog.Logger
}

// NewEscrowService creates a new EscrowServiceImpl.
func NewEscrowService(
	escrowRepo ports.EscrowRepository,
	accountRepo ports.AccountRepository,
	transactor ports.DBTransactor,
	idempCache ports.IdempotencyCache,
	events ports.EventPublisher,
	notifier ports.Notifier,
	settlement ports.SettlementTrigger,
	log zerolog.Logger,
) *EscrowServiceImpl {
	return &EscrowServiceImpl{
		escrowRepo:  escrowRepo,
		accountRepo: accountRepo,
		transactor:  transactor,
		idempCache:  idempCache,
		events:      events,
		notifier:    notifier,
		settlement:  settlement,
		log:         log,
	}
}

// Create validates the request, reporting every violated field, and persists
// a PENDING escrow. The recipient is never linked here.
func (s *EscrowServiceImpl) Create(ctx context.Context, req ports.CreateEscrowRequest) (*domain.Escrow, error) {
	if fields := validateCreate(req); len(fields) > 0 {
		return nil, apperror.ValidationFields(fields...)
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.Creator.AccountID, req.IdempotencyKey)
		existing, err := s.findIdempotent(ctx, req.Creator.AccountID, req.IdempotencyKey, idempKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	now := time.Now().UTC()
	escrow := &domain.Escrow{
		ID:               uuid.New(),
		CreatorAccountID: req.Creator.AccountID,
		RecipientEmail:   domain.NormalizeEmail(req.RecipientEmail),
		AssetID:          strings.TrimSpace(req.AssetID),
		AssetSymbol:      strings.TrimSpace(req.AssetSymbol),
		Amount:           req.Amount.Truncate(maxAmountDecimals),
		Description:      strings.TrimSpace(req.Description),
		Terms:            trimmedOrNil(req.Terms),
		Status:           domain.EscrowStatusPending,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if w := trimmedOrNil(req.CreatorWallet); w != nil {
		addr := domain.NormalizeAddress(*w)
		escrow.CreatorWallet = &addr
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		escrow.IdempotencyKey = &key
	}

	if err := s.escrowRepo.Create(ctx, escrow); err != nil {
		if errors.Is(err, ports.ErrDuplicateIdempotencyKey) {
			// Lost a race with a concurrent create using the same key.
			existing, gerr := s.escrowRepo.GetByIdempotencyKey(ctx, req.Creator.AccountID, req.IdempotencyKey)
			if gerr != nil || existing == nil {
				return nil, apperror.InternalError(fmt.Errorf("reload idempotent escrow: %w", errors.Join(err, gerr)))
			}
			return existing, nil
		}
		return nil, apperror.InternalError(fmt.Errorf("create escrow: %w", err))
	}

	if idempKey != "" && s.idempCache != nil {
		if err := s.idempCache.Set(ctx, idempKey, []byte(escrow.ID.String()), idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.publish(ctx, domain.EventEscrowCreated, escrow, req.Creator.AccountID)
	s.notify(ctx, ports.Notification{
		Kind:     ports.NotifyEscrowInvite,
		To:       escrow.RecipientEmail,
		EscrowID: &escrow.ID,
		Data: map[string]string{
			"amount":       escrow.Amount.String(),
			"asset_symbol": escrow.AssetSymbol,
			"description":  escrow.Description,
		},
	})

	s.log.Info().
		Str("escrow_id", escrow.ID.String()).
		Str("creator_id", escrow.CreatorAccountID.String()).
		Str("amount", escrow.Amount.String()).
		Str("asset", escrow.AssetSymbol).
		Msg("escrow created")

	return escrow, nil
}

// findIdempotent checks Redis first, then the store. Redis only maps the key
// to an escrow id; the escrow itself is always read from the store so a
// retry sees its current state.
func (s *EscrowServiceImpl) findIdempotent(ctx context.Context, creatorID uuid.UUID, clientKey, cacheKey string) (*domain.Escrow, error) {
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, cacheKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", cacheKey).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			if id, perr := uuid.ParseBytes(cached); perr == nil {
				escrow, err := s.escrowRepo.GetByID(ctx, id)
				if err != nil {
					return nil, apperror.InternalError(fmt.Errorf("load idempotent escrow: %w", err))
				}
				if escrow != nil {
					return escrow, nil
				}
			} else {
				s.log.Warn().Err(perr).Str("key", cacheKey).Msg("unreadable idempotency entry, falling through to DB")
			}
		}
	}

	existing, err := s.escrowRepo.GetByIdempotencyKey(ctx, creatorID, clientKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	return existing, nil
}

func validateCreate(req ports.CreateEscrowRequest) []apperror.FieldError {
	var fields []apperror.FieldError
	add := func(field, msg string) {
		fields = append(fields, apperror.FieldError{Field: field, Message: msg})
	}

	switch {
	case !req.Amount.IsPositive():
		add("amount", "must be greater than zero")
	case req.Amount.GreaterThanOrEqual(maxAmount):
		add("amount", fmt.Sprintf("must have at most %d whole digits", maxAmountDigits))
	case !req.Amount.Equal(req.Amount.Truncate(maxAmountDecimals)):
		add("amount", fmt.Sprintf("must have at most %d decimal places", maxAmountDecimals))
	}

	if strings.TrimSpace(req.Description) == "" {
		add("description", "is required")
	}

	recipient := domain.NormalizeEmail(req.RecipientEmail)
	switch {
	case recipient == "":
		add("recipient_email", "is required")
	case !isValidEmail(recipient):
		add("recipient_email", "must be a valid e-mail address")
	case domain.EmailsMatch(recipient, req.Creator.Email):
		add("recipient_email", "must differ from your own e-mail")
	}

	if strings.TrimSpace(req.AssetID) == "" {
		add("asset_id", "is required")
	}
	if strings.TrimSpace(req.AssetSymbol) == "" {
		add("asset_symbol", "is required")
	}

	if w := trimmedOrNil(req.CreatorWallet); w != nil && !domain.IsValidAddress(*w) {
		add("creator_wallet", "must be a 0x-prefixed 40 hex digit address")
	}
	if req.Terms != nil && utf8.RuneCountInString(*req.Terms) > domain.MaxTermsLength {
		add("terms", fmt.Sprintf("must be at most %d characters", domain.MaxTermsLength))
	}
	if len(req.IdempotencyKey) > maxIdempotencyKeyLen {
		add("idempotency_key", fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLen))
	}

	return fields
}

// Get returns the escrow if the caller may see it. A caller whose e-mail
// matches an unlinked recipient is linked on read.
func (s *EscrowServiceImpl) Get(ctx context.Context, id uuid.UUID, caller ports.Caller) (*domain.Escrow, error) {
	escrow, err := s.escrowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get escrow: %w", err))
	}
	if escrow == nil {
		return nil, apperror.ErrNotFound("escrow")
	}

	if escrow.PartyOf(caller.AccountID) != domain.PartyNone {
		return escrow, nil
	}
	if escrow.AwaitsLinkBy(caller.Email) && escrow.CreatorAccountID != caller.AccountID {
		linked, err := s.LinkRecipient(ctx, id, caller)
		// Another account was linked between the read and the lock.
		if errors.Is(err, apperror.ErrAlreadyLinked()) {
			return nil, apperror.ErrNotAuthorized()
		}
		return linked, err
	}
	return nil, apperror.ErrNotAuthorized()
}

// ListForAccount returns the caller's escrows, newest first.
func (s *EscrowServiceImpl) ListForAccount(ctx context.Context, caller ports.Caller) ([]domain.Escrow, error) {
	escrows, err := s.escrowRepo.ListByAccount(ctx, caller.AccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list escrows: %w", err))
	}
	return escrows, nil
}

// LinkRecipient binds the caller as recipient when their e-mail matches.
func (s *EscrowServiceImpl) LinkRecipient(ctx context.Context, id uuid.UUID, caller ports.Caller) (*domain.Escrow, error) {
	escrow, changed, err := s.update(ctx, id, func(e *domain.Escrow) (bool, error) {
		if e.RecipientAccountID != nil && *e.RecipientAccountID == caller.AccountID {
			return false, nil
		}
		if e.CreatorAccountID == caller.AccountID || !domain.EmailsMatch(e.RecipientEmail, caller.Email) {
			return false, apperror.ErrNotAuthorized()
		}
		if e.RecipientAccountID != nil {
			return false, apperror.ErrAlreadyLinked()
		}
		accountID := caller.AccountID
		e.RecipientAccountID = &accountID
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publish(ctx, domain.EventRecipientLinked, escrow, caller.AccountID)
		s.log.Info().
			Str("escrow_id", escrow.ID.String()).
			Str("recipient_id", caller.AccountID.String()).
			Msg("recipient linked")
	}
	return escrow, nil
}

// LinkPending links every unlinked escrow addressed to the caller's e-mail.
// Returns the number of escrows now bound to the caller and the last
// unexpected error, if any; escrows claimed concurrently are skipped.
func (s *EscrowServiceImpl) LinkPending(ctx context.Context, caller ports.Caller) (int, error) {
	ids, err := s.escrowRepo.ListUnlinkedByRecipientEmail(ctx, domain.NormalizeEmail(caller.Email))
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list unlinked escrows: %w", err))
	}

	var (
		linked  int
		lastErr error
	)
	for _, id := range ids {
		if _, err := s.LinkRecipient(ctx, id, caller); err != nil {
			if errors.Is(err, apperror.ErrAlreadyLinked()) || errors.Is(err, apperror.ErrNotAuthorized()) {
				continue
			}
			s.log.Warn().Err(err).Str("escrow_id", id.String()).Msg("failed to link pending escrow")
			lastErr = err
			continue
		}
		linked++
	}
	return linked, lastErr
}

// SetSettlementAddress stores the caller's settlement address once.
func (s *EscrowServiceImpl) SetSettlementAddress(ctx context.Context, id uuid.UUID, caller ports.Caller, address string) (*domain.Escrow, error) {
	address = strings.TrimSpace(address)
	if !domain.IsValidAddress(address) {
		return nil, apperror.ValidationFields(apperror.FieldError{
			Field:   "address",
			Message: "must be a 0x-prefixed 40 hex digit address",
		})
	}
	address = domain.NormalizeAddress(address)

	escrow, _, err := s.update(ctx, id, func(e *domain.Escrow) (bool, error) {
		party := e.PartyOf(caller.AccountID)
		if party == domain.PartyNone {
			return false, apperror.ErrNotAParty()
		}
		if e.WalletOf(party) != nil {
			return false, apperror.ErrAlreadySet()
		}
		e.SetWalletOf(party, address)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventWalletSet, escrow, caller.AccountID)
	return escrow, nil
}

// Confirm records the caller's confirmation. The transaction that sets the
// second flag moves the escrow to COMPLETED and alone runs the completion
// side effect.
func (s *EscrowServiceImpl) Confirm(ctx context.Context, id uuid.UUID, caller ports.Caller) (*domain.Escrow, error) {
	var completed bool
	escrow, changed, err := s.update(ctx, id, func(e *domain.Escrow) (bool, error) {
		party := e.PartyOf(caller.AccountID)
		if party == domain.PartyNone {
			return false, apperror.ErrNotAParty()
		}
		switch e.Status {
		case domain.EscrowStatusCompleted:
			return false, nil
		case domain.EscrowStatusDisputed:
			return false, apperror.ErrEscrowDisputed()
		}
		if e.WalletOf(party) == nil {
			return false, apperror.ErrSettlementAddressRequired()
		}
		if e.ConfirmedBy(party) {
			return false, nil
		}

		e.MarkConfirmed(party)
		if e.BothConfirmed() {
			now := time.Now().UTC()
			e.Status = domain.EscrowStatusCompleted
			e.CompletedAt = &now
			completed = true
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return escrow, nil
	}

	s.publish(ctx, domain.EventConfirmed, escrow, caller.AccountID)
	if completed {
		s.onCompleted(ctx, escrow, caller.AccountID)
	}

	s.log.Info().
		Str("escrow_id", escrow.ID.String()).
		Str("account_id", caller.AccountID.String()).
		Str("status", string(escrow.Status)).
		Msg("escrow confirmed")

	return escrow, nil
}

// onCompleted runs once per escrow, after the commit that completed it.
func (s *EscrowServiceImpl) onCompleted(ctx context.Context, escrow *domain.Escrow, actor uuid.UUID) {
	ctx = context.WithoutCancel(ctx)

	if s.settlement != nil {
		ref, err := s.settlement.Settle(ctx, escrow)
		if err != nil {
			metrics.SettlementTriggersTotal.WithLabelValues("error").Inc()
			s.log.Error().Err(err).Str("escrow_id", escrow.ID.String()).Msg("settlement trigger failed")
		} else if ref != "" {
			stored, err := s.escrowRepo.SetSettlementRef(ctx, escrow.ID, ref)
			switch {
			case err != nil:
				s.log.Error().Err(err).Str("escrow_id", escrow.ID.String()).Str("ref", ref).Msg("failed to store settlement reference")
			case stored:
				metrics.SettlementTriggersTotal.WithLabelValues("ok").Inc()
				escrow.SettlementRef = &ref
				escrow.Version++
			default:
				s.log.Warn().Str("escrow_id", escrow.ID.String()).Msg("settlement reference already set, keeping the first")
			}
		}
	}

	s.publish(ctx, domain.EventCompleted, escrow, actor)
	for _, to := range s.partyEmails(ctx, escrow) {
		s.notify(ctx, ports.Notification{
			Kind:     ports.NotifyEscrowCompleted,
			To:       to,
			EscrowID: &escrow.ID,
			Data:     map[string]string{"amount": escrow.Amount.String(), "asset_symbol": escrow.AssetSymbol},
		})
	}
}

// Dispute flags the escrow as disputed, freezing further confirmation.
func (s *EscrowServiceImpl) Dispute(ctx context.Context, id uuid.UUID, caller ports.Caller, reason *string) (*domain.Escrow, error) {
	reason = trimmedOrNil(reason)
	if reason != nil && utf8.RuneCountInString(*reason) > maxDisputeReasonLen {
		return nil, apperror.ValidationFields(apperror.FieldError{
			Field:   "reason",
			Message: fmt.Sprintf("must be at most %d characters", maxDisputeReasonLen),
		})
	}

	escrow, changed, err := s.update(ctx, id, func(e *domain.Escrow) (bool, error) {
		if e.PartyOf(caller.AccountID) == domain.PartyNone {
			return false, apperror.ErrNotAParty()
		}
		if e.Status == domain.EscrowStatusCompleted {
			return false, apperror.ErrEscrowCompleted()
		}
		if e.Disputed {
			return false, nil
		}
		now := time.Now().UTC()
		by := caller.AccountID
		e.Disputed = true
		e.Status = domain.EscrowStatusDisputed
		e.DisputedBy = &by
		e.DisputedAt = &now
		e.DisputeReason = reason
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return escrow, nil
	}

	s.publish(ctx, domain.EventDisputed, escrow, caller.AccountID)
	for _, to := range s.partyEmails(ctx, escrow) {
		s.notify(ctx, ports.Notification{
			Kind:     ports.NotifyEscrowDisputed,
			To:       to,
			EscrowID: &escrow.ID,
		})
	}

	s.log.Info().
		Str("escrow_id", escrow.ID.String()).
		Str("disputed_by", caller.AccountID.String()).
		Msg("escrow disputed")

	return escrow, nil
}

// update runs apply against the locked escrow and persists it when apply
// reports a change. Errors from apply roll the transaction back untouched.
func (s *EscrowServiceImpl) update(ctx context.Context, id uuid.UUID, apply func(*domain.Escrow) (bool, error)) (*domain.Escrow, bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	escrow, err := s.escrowRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("lock escrow: %w", err))
	}
	if escrow == nil {
		return nil, false, apperror.ErrNotFound("escrow")
	}

	changed, err := apply(escrow)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return escrow, false, nil
	}

	escrow.UpdatedAt = time.Now().UTC()
	if err := s.escrowRepo.Update(ctx, dbTx, escrow); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("update escrow: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return escrow, true, nil
}

// partyEmails returns the e-mails of both sides; the creator's is looked up.
func (s *EscrowServiceImpl) partyEmails(ctx context.Context, escrow *domain.Escrow) []string {
	emails := []string{escrow.RecipientEmail}
	creator, err := s.accountRepo.GetByID(ctx, escrow.CreatorAccountID)
	if err != nil || creator == nil {
		s.log.Warn().Err(err).Str("escrow_id", escrow.ID.String()).Msg("creator account lookup failed, notifying recipient only")
		return emails
	}
	return append(emails, creator.Email)
}

func (s *EscrowServiceImpl) publish(ctx context.Context, t domain.EventType, escrow *domain.Escrow, actor uuid.UUID) {
	metrics.EscrowEventsTotal.WithLabelValues(string(t)).Inc()
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, domain.NewEscrowEvent(t, escrow, &actor)); err != nil {
		s.log.Warn().Err(err).Str("escrow_id", escrow.ID.String()).Str("event", string(t)).Msg("failed to publish escrow event")
	}
}

func (s *EscrowServiceImpl) notify(ctx context.Context, n ports.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("kind", string(n.Kind)).Msg("failed to queue notification")
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
