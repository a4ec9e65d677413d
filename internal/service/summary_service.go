package service

import (
	"context"
	"fmt"

	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/core/ports"
	"secure-escrow/pkg/apperror"

	"github.com/google/uuid"
)

// summaryService implements ports.SummaryService.
type summaryService struct {
	escrowRepo ports.EscrowRepository
}

// NewSummaryService creates a new aggregation service.
func NewSummaryService(escrowRepo ports.EscrowRepository) ports.SummaryService {
	return &summaryService{escrowRepo: escrowRepo}
}

// Summarize returns counters over every escrow the account is party to.
func (s *summaryService) Summarize(ctx context.Context, accountID uuid.UUID) (*domain.EscrowStats, error) {
	stats, err := s.escrowRepo.GetStats(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("escrow stats: %w", err))
	}
	return stats, nil
}
