package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/core/ports"
	"secure-escrow/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupConversationService(t *testing.T) (
	ports.ConversationService,
	*mocks.MockEscrowRepository,
	*mocks.MockMessageRepository,
	*mocks.MockEventPublisher,
	*gomock.Controller,
) {
	ctrl := gomock.NewController(t)
	escrowRepo := mocks.NewMockEscrowRepository(ctrl)
	messageRepo := mocks.NewMockMessageRepository(ctrl)
	events := mocks.NewMockEventPublisher(ctrl)

	svc := NewConversationService(escrowRepo, messageRepo, events, zerolog.Nop())
	return svc, escrowRepo, messageRepo, events, ctrl
}

func TestConversationService_PostMessage_Success(t *testing.T) {
	svc, escrowRepo, messageRepo, events, ctrl := setupConversationService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	creator := uuid.New()
	escrow := pendingEscrow(creator, nil)
	escrow.Status = domain.EscrowStatusDisputed

	escrowRepo.EXPECT().GetByID(ctx, escrow.ID).Return(escrow, nil)
	messageRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	events.EXPECT().Publish(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, ev domain.EscrowEvent) error {
		assert.Equal(t, domain.EventMessagePosted, ev.Type)
		return nil
	})

	msg, err := svc.PostMessage(ctx, escrow.ID, ports.Caller{AccountID: creator}, "  shipped today  ")
	require.NoError(t, err)
	assert.Equal(t, "shipped today", msg.Content)
	assert.Equal(t, creator, msg.SenderAccountID)
	assert.Equal(t, escrow.ID, msg.EscrowID)
}

func TestConversationService_PostMessage_Rejections(t *testing.T) {
	creator := uuid.New()

	tests := []struct {
		name     string
		caller   uuid.UUID
		content  string
		wantCode string
	}{
		{"stranger", uuid.New(), "hi", "ESC_001"},
		{"blank", creator, "   ", "VAL_001"},
		{"too long", creator, strings.Repeat("x", domain.MaxMessageLength+1), "VAL_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, escrowRepo, _, _, ctrl := setupConversationService(t)
			defer ctrl.Finish()

			escrow := pendingEscrow(creator, nil)
			escrowRepo.EXPECT().GetByID(gomock.Any(), escrow.ID).Return(escrow, nil)

			_, err := svc.PostMessage(context.Background(), escrow.ID, ports.Caller{AccountID: tt.caller}, tt.content)
			assertAppError(t, err, tt.wantCode)
		})
	}
}

func TestConversationService_PostMessage_UnlinkedRecipientIsNotAParty(t *testing.T) {
	svc, escrowRepo, _, _, ctrl := setupConversationService(t)
	defer ctrl.Finish()

	escrow := pendingEscrow(uuid.New(), nil)
	escrowRepo.EXPECT().GetByID(gomock.Any(), escrow.ID).Return(escrow, nil)

	_, err := svc.PostMessage(context.Background(), escrow.ID, ports.Caller{AccountID: uuid.New(), Email: "r@x.com"}, "hello")
	assertAppError(t, err, "ESC_001")
}

func TestConversationService_ListMessages(t *testing.T) {
	svc, escrowRepo, messageRepo, _, ctrl := setupConversationService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	creator, recipient := uuid.New(), uuid.New()
	escrow := pendingEscrow(creator, &recipient)
	thread := []domain.Message{
		{ID: uuid.New(), EscrowID: escrow.ID, SenderAccountID: creator, Content: "first"},
		{ID: uuid.New(), EscrowID: escrow.ID, SenderAccountID: recipient, Content: "second"},
	}

	escrowRepo.EXPECT().GetByID(ctx, escrow.ID).Return(escrow, nil)
	messageRepo.EXPECT().ListByEscrow(ctx, escrow.ID).Return(thread, nil)

	got, err := svc.ListMessages(ctx, escrow.ID, ports.Caller{AccountID: recipient})
	require.NoError(t, err)
	assert.Equal(t, thread, got)
}

func TestConversationService_ListMessages_EscrowMissing(t *testing.T) {
	svc, escrowRepo, _, _, ctrl := setupConversationService(t)
	defer ctrl.Finish()

	id := uuid.New()
	escrowRepo.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)

	_, err := svc.ListMessages(context.Background(), id, ports.Caller{AccountID: uuid.New()})
	assertAppError(t, err, "ESC_005")
}

func TestConversationService_ListMessages_StoreError(t *testing.T) {
	svc, escrowRepo, _, _, ctrl := setupConversationService(t)
	defer ctrl.Finish()

	id := uuid.New()
	escrowRepo.EXPECT().GetByID(gomock.Any(), id).Return(nil, errors.New("db down"))

	_, err := svc.ListMessages(context.Background(), id, ports.Caller{AccountID: uuid.New()})
	assertAppError(t, err, "SYS_001")
}
