package application

import (
	"context"
	"fmt"

	"github.com/cristianortiz/auctionEngine/internal/auction/domain"
	"go.uber.org/zap"
)

// GetLotUseCase retrieves the current state of an auction lot.
type GetLotUseCase struct {
	lotRepo domain.LotRepository
}

// NewGetLotUseCase creates a new instance of GetLotUseCase.
func NewGetLotUseCase(lotRepo domain.LotRepository) *GetLotUseCase {
	return &GetLotUseCase{lotRepo: lotRepo}
}

// Execute returns nil without error when the lot does not exist.
func (uc *GetLotUseCase) Execute(ctx context.Context, lotID int64) (*domain.Lot, error) {
	if lotID <= 0 {
		return nil, domain.ErrInvalidLotID
	}

	lot, err := uc.lotRepo.FindByID(ctx, lotID)
	if err != nil {
		log.Error("GetLotUseCase: Failed to get lot", zap.Int64("lotID", lotID), zap.Error(err))
		return nil, fmt.Errorf("get lot use case: %w", err)
	}
	return lot, nil
}

// ListLotsUseCase returns every lot, newest first.
type ListLotsUseCase struct {
	lotRepo domain.LotRepository
}

func NewListLotsUseCase(lotRepo domain.LotRepository) *ListLotsUseCase {
	return &ListLotsUseCase{lotRepo: lotRepo}
}

func (uc *ListLotsUseCase) Execute(ctx context.Context) ([]*domain.Lot, error) {
	lots, err := uc.lotRepo.List(ctx)
	if err != nil {
		log.Error("ListLotsUseCase: Failed to list lots", zap.Error(err))
		return nil, fmt.Errorf("list lots use case: %w", err)
	}
	return lots, nil
}
