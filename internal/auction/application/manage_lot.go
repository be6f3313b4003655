package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/auction/domain"
	"go.uber.org/zap"
)

// CreateLotUseCase validates and stores a new lot.
type CreateLotUseCase struct {
	lotRepo domain.LotRepository
}

func NewCreateLotUseCase(lotRepo domain.LotRepository) *CreateLotUseCase {
	return &CreateLotUseCase{lotRepo: lotRepo}
}

// Execute returns the lot as persisted, with id and created_at assigned by storage.
func (uc *CreateLotUseCase) Execute(ctx context.Context, in domain.LotInput) (*domain.Lot, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, domain.ErrNameRequired
	}
	if !in.StartPrice.IsPositive() {
		return nil, domain.ErrInvalidStartPrice
	}
	if err := checkPriceScale(in); err != nil {
		return nil, err
	}
	deadline, err := parseDeadline(in.AuctionEndDate)
	if err != nil {
		return nil, err
	}

	lot := &domain.Lot{}
	lot.Apply(in, deadline)

	created, err := uc.lotRepo.Create(ctx, lot)
	if err != nil {
		log.Error("CreateLotUseCase: Failed to create lot", zap.String("name", in.Name), zap.Error(err))
		return nil, fmt.Errorf("create lot use case: %w", err)
	}
	log.Info("Lot created", zap.Int64("lotID", created.ID), zap.String("name", created.Name))
	return created, nil
}

// UpdateLotUseCase replaces every mutable field of a stored lot.
type UpdateLotUseCase struct {
	lotRepo  domain.LotRepository
	notifier domain.LotUpdateNotifier
}

func NewUpdateLotUseCase(lotRepo domain.LotRepository, notifier domain.LotUpdateNotifier) *UpdateLotUseCase {
	return &UpdateLotUseCase{lotRepo: lotRepo, notifier: notifier}
}

// Execute returns nil without error when the lot does not exist.
// TODO: decide whether start_price may change once a bid has been accepted.
func (uc *UpdateLotUseCase) Execute(ctx context.Context, lotID int64, in domain.LotInput) (*domain.Lot, error) {
	if lotID <= 0 {
		return nil, domain.ErrInvalidLotID
	}
	if err := checkPriceScale(in); err != nil {
		return nil, err
	}
	deadline, err := parseDeadline(in.AuctionEndDate)
	if err != nil {
		return nil, err
	}

	lot := &domain.Lot{ID: lotID}
	lot.Apply(in, deadline)

	updated, err := uc.lotRepo.Update(ctx, lotID, lot)
	if err != nil {
		log.Error("UpdateLotUseCase: Failed to update lot", zap.Int64("lotID", lotID), zap.Error(err))
		return nil, fmt.Errorf("update lot use case: %w", err)
	}
	if updated != nil && uc.notifier != nil {
		uc.notifier.NotifyLotUpdated(updated)
	}
	return updated, nil
}

// DeleteLotUseCase removes a lot.
type DeleteLotUseCase struct {
	lotRepo domain.LotRepository
}

func NewDeleteLotUseCase(lotRepo domain.LotRepository) *DeleteLotUseCase {
	return &DeleteLotUseCase{lotRepo: lotRepo}
}

// Execute reports whether a lot was removed.
func (uc *DeleteLotUseCase) Execute(ctx context.Context, lotID int64) (bool, error) {
	if lotID <= 0 {
		return false, domain.ErrInvalidLotID
	}
	removed, err := uc.lotRepo.Remove(ctx, lotID)
	if err != nil {
		log.Error("DeleteLotUseCase: Failed to delete lot", zap.Int64("lotID", lotID), zap.Error(err))
		return false, fmt.Errorf("delete lot use case: %w", err)
	}
	if removed {
		log.Info("Lot deleted", zap.Int64("lotID", lotID))
	}
	return removed, nil
}

// parseDeadline maps a blank value to no deadline and rejects one that does not parse.
func parseDeadline(raw string) (*time.Time, error) {
	t, status := domain.ParseTimestamp(raw)
	switch status {
	case domain.TimestampParsed:
		return &t, nil
	case domain.TimestampUnparsed:
		log.Warn("Rejecting auction end date", zap.String("auctionEndDate", raw), zap.Stringer("status", status))
		return nil, domain.ErrInvalidAuctionEnd
	default:
		return nil, nil
	}
}

// checkPriceScale rejects prices the lots columns would round.
func checkPriceScale(in domain.LotInput) error {
	if !domain.IsStorablePrice(in.StartPrice) {
		return domain.ErrInvalidStartPrice
	}
	if in.CurrentPrice != nil && !domain.IsStorablePrice(*in.CurrentPrice) {
		return domain.ErrInvalidCurrentPrice
	}
	return nil
}
