package service

import (
	"context"
	"errors"
	"testing"

	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/core/ports"
	"secure-escrow/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const usdcContract = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

func TestBalanceService_Check(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gate := mocks.NewMockBalanceGate(ctrl)
	svc := NewBalanceService(gate, zerolog.Nop())
	ctx := context.Background()
	amount := decimal.RequireFromString("5")

	report := &ports.BalanceReport{
		Holder:     creatorWallet,
		AssetID:    usdcContract,
		Required:   amount,
		Balance:    decimal.RequireFromString("3"),
		Shortfall:  decimal.RequireFromString("2"),
		Sufficient: false,
	}
	gate.EXPECT().CheckBalance(ctx, creatorWallet, usdcContract, amount).Return(report, nil)

	got, err := svc.Check(ctx, " "+creatorWallet+" ", usdcContract, amount)
	require.NoError(t, err)
	assert.False(t, got.Sufficient)
	assert.True(t, decimal.RequireFromString("2").Equal(got.Shortfall))
}

func TestBalanceService_Check_NativeAsset(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gate := mocks.NewMockBalanceGate(ctrl)
	svc := NewBalanceService(gate, zerolog.Nop())
	amount := decimal.RequireFromString("0.5")

	gate.EXPECT().CheckBalance(gomock.Any(), creatorWallet, "NATIVE", amount).
		Return(&ports.BalanceReport{Sufficient: true}, nil)

	got, err := svc.Check(context.Background(), creatorWallet, "NATIVE", amount)
	require.NoError(t, err)
	assert.True(t, got.Sufficient)
}

func TestBalanceService_Check_ValidationListsEveryField(t *testing.T) {
	svc := NewBalanceService(nil, zerolog.Nop())

	_, err := svc.Check(context.Background(), "0xnothex", "usdc", decimal.Zero)
	assertAppError(t, err, "VAL_001")
	appErr := asAppError(t, err)
	assert.True(t, appErr.HasField("holder"))
	assert.True(t, appErr.HasField("asset_id"))
	assert.True(t, appErr.HasField("amount"))
}

func TestBalanceService_Check_GateUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gate := mocks.NewMockBalanceGate(ctrl)
	gate.EXPECT().CheckBalance(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("rpc timeout"))

	_, err := NewBalanceService(gate, zerolog.Nop()).Check(context.Background(), creatorWallet, usdcContract, decimal.NewFromInt(1))
	assertAppError(t, err, "COL_001")

	_, err = NewBalanceService(nil, zerolog.Nop()).Check(context.Background(), creatorWallet, usdcContract, decimal.NewFromInt(1))
	assertAppError(t, err, "COL_001")
}

func TestSummaryService_Summarize(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockEscrowRepository(ctrl)
	svc := NewSummaryService(repo)
	ctx := context.Background()
	accountID := uuid.New()

	stats := &domain.EscrowStats{Total: 4, Open: 1, Active: 1, Completed: 1, Disputed: 1, TotalAmount: decimal.RequireFromString("42.5")}
	repo.EXPECT().GetStats(ctx, accountID).Return(stats, nil)

	got, err := svc.Summarize(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, stats, got)

	repo.EXPECT().GetStats(ctx, accountID).Return(nil, errors.New("db down"))
	_, err = svc.Summarize(ctx, accountID)
	assertAppError(t, err, "SYS_001")
}
