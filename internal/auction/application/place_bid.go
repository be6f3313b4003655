package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/auction/domain"
	"github.com/cristianortiz/auctionEngine/internal/shared/logger"
	"github.com/cristianortiz/auctionEngine/internal/shared/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// PlaceBidDTO is DTO input for PlaceBid useCase, contains the necesary data to make a bid
type PlaceBidDTO struct {
	LotID  int64
	Amount decimal.Decimal
}

// PlaceBidUseCase is useCase to make a bid in an auction lot, orchestrate bussines logic and persistence
type PlaceBidUseCase struct {
	lotRepo  domain.LotRepository
	notifier domain.LotUpdateNotifier
	now      func() time.Time
}

// NewPlaceBidUseCase creates a new instace of PlaceBidUseCase struct, it receives dependency through injection.
// notifier may be nil.
func NewPlaceBidUseCase(lotRepo domain.LotRepository, notifier domain.LotUpdateNotifier, now func() time.Time) *PlaceBidUseCase {
	if now == nil {
		now = time.Now
	}
	return &PlaceBidUseCase{
		lotRepo:  lotRepo,
		notifier: notifier,
		now:      now,
	}
}

// Execute validates the bid against the stored lot, then records it with a
// conditional update. The returned lot is the row as stored after the bid.
func (uc *PlaceBidUseCase) Execute(ctx context.Context, cmd PlaceBidDTO) (lot *domain.Lot, err error) {
	defer func() {
		metrics.Bids.WithLabelValues(bidOutcome(err)).Inc()
	}()

	log.Info("Executing PlaceBidUseCase",
		zap.Int64("lotID", cmd.LotID),
		zap.String("amount", cmd.Amount.String()),
	)

	// 1. input validation, before touching storage
	if cmd.LotID <= 0 {
		return nil, domain.ErrInvalidLotID
	}
	if !cmd.Amount.IsPositive() || !domain.IsStorablePrice(cmd.Amount) {
		log.Warn("PlaceBidUseCase: Invalid bid amount",
			zap.Int64("lotID", cmd.LotID),
			zap.String("amount", cmd.Amount.String()),
		)
		return nil, domain.ErrInvalidAmount
	}

	// 2. load the lot
	current, err := uc.lotRepo.FindByID(ctx, cmd.LotID)
	if err != nil {
		log.Error("PlaceBidUseCase: Failed to get lot",
			zap.Int64("lotID", cmd.LotID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("place bid use case: failed to get lot %d: %w", cmd.LotID, err)
	}
	if current == nil {
		return nil, fmt.Errorf("place bid use case: lot %d: %w", cmd.LotID, domain.ErrLotNotFound)
	}

	// 3-4. price floor and deadline
	if err := current.ValidateBid(cmd.Amount, uc.now()); err != nil {
		return nil, fmt.Errorf("place bid use case: bid failed for lot %d: %w", cmd.LotID, err)
	}

	// 5. the conditional update re-checks floor and deadline in the same statement
	updated, err := uc.lotRepo.UpdateCurrentPrice(ctx, cmd.LotID, cmd.Amount)
	if err != nil {
		log.Error("PlaceBidUseCase: Failed to update current price",
			zap.Int64("lotID", cmd.LotID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("place bid use case: failed to save bid for lot %d: %w", cmd.LotID, err)
	}
	if updated == nil {
		return nil, uc.lostRace(ctx, cmd)
	}

	log.Info("PlaceBidUseCase: Bid accepted",
		zap.Int64("lotID", updated.ID),
		zap.String("currentPrice", cmd.Amount.String()),
	)
	if uc.notifier != nil {
		uc.notifier.NotifyLotUpdated(updated)
	}

	// 6. the stored row, not a local copy
	return updated, nil
}

// lostRace explains why the conditional update matched no row: the lot was
// deleted, another bid got there first, or the deadline passed in between.
func (uc *PlaceBidUseCase) lostRace(ctx context.Context, cmd PlaceBidDTO) error {
	log.Warn("PlaceBidUseCase: Conditional update matched no row",
		zap.Int64("lotID", cmd.LotID),
		zap.String("amount", cmd.Amount.String()),
	)

	latest, err := uc.lotRepo.FindByID(ctx, cmd.LotID)
	if err != nil {
		return fmt.Errorf("place bid use case: failed to reload lot %d: %w", cmd.LotID, err)
	}
	if latest != nil {
		if err := latest.ValidateBid(cmd.Amount, uc.now()); err != nil {
			return fmt.Errorf("place bid use case: bid failed for lot %d: %w", cmd.LotID, err)
		}
	}
	return fmt.Errorf("place bid use case: lot %d: %w", cmd.LotID, domain.ErrConcurrentModification)
}

func bidOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.BidAccepted
	case errors.Is(err, domain.ErrValidation):
		return metrics.BidInvalid
	case errors.Is(err, domain.ErrLotNotFound):
		return metrics.BidNotFound
	case errors.Is(err, domain.ErrBidAmountTooLow):
		return metrics.BidTooLow
	case errors.Is(err, domain.ErrAuctionEnded):
		return metrics.BidEnded
	case errors.Is(err, domain.ErrConcurrentModification):
		return metrics.BidConflict
	default:
		return metrics.BidError
	}
}
