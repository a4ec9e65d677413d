package service

import (
	"context"
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
)

type conversationService struct {
	escrowRepo  ports.EscrowRepository
	messageRepo ports.MessageRepository
	events      ports.EventPublisher
	log         zerolog.Logger
}

// NewConversationService creates a new conversation log service.
// events may be nil.
func NewConversationService(
	escrowRepo ports.EscrowRepository,
	messageRepo ports.MessageRepository,
	events ports.EventPublisher,
	log zerolog.Logger,
) ports.ConversationService {
	return &conversationService{
		escrowRepo:  escrowRepo,
		messageRepo: messageRepo,
		events:      events,
		log:         log,
	}
}

// PostMessage appends a message from a bound party. Allowed in any status.
func (s *conversationService) PostMessage(ctx context.Context, escrowID uuid.UUID, caller ports.Caller, content string) (*domain.Message, error) {
	escrow, err := s.authorize(ctx, escrowID, caller)
	if err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return nil, apperror.ValidationFields(apperror.FieldError{Field: "content", Message: "is required"})
	case utf8.RuneCountInString(content) > domain.MaxMessageLength:
		return nil, apperror.ValidationFields(apperror.FieldError{
			Field:   "content",
			Message: fmt.Sprintf("must be at most %d characters", domain.MaxMessageLength),
		})
	}

	msg := &domain.Message{
		ID:              uuid.New(),
		EscrowID:        escrow.ID,
		SenderAccountID: caller.AccountID,
		Content:         content,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create message: %w", err))
	}

	metrics.EscrowEventsTotal.WithLabelValues(string(domain.EventMessagePosted)).Inc()
	if s.events != nil {
		actor := caller.AccountID
		if err := s.events.Publish(ctx, domain.NewEscrowEvent(domain.EventMessagePosted, escrow, &actor)); err != nil {
			s.log.Warn().Err(err).Str("escrow_id", escrow.ID.String()).Msg("failed to publish message event")
		}
	}

	return msg, nil
}

// ListMessages returns the thread oldest first.
func (s *conversationService) ListMessages(ctx context.Context, escrowID uuid.UUID, caller ports.Caller) ([]domain.Message, error) {
	if _, err := s.authorize(ctx, escrowID, caller); err != nil {
		return nil, err
	}

	msgs, err := s.messageRepo.ListByEscrow(ctx, escrowID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list messages: %w", err))
	}
	return msgs, nil
}

// authorize loads the escrow and requires the caller to be a bound party.
func (s *conversationService) authorize(ctx context.Context, escrowID uuid.UUID, caller ports.Caller) (*domain.Escrow, error) {
	escrow, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get escrow: %w", err))
	}
	if escrow == nil {
		return nil, apperror.ErrNotFound("escrow")
	}
	if escrow.PartyOf(caller.AccountID) == domain.PartyNone {
		return nil, apperror.ErrNotAParty()
	}
	return escrow, nil
}
