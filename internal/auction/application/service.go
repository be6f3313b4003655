package application

import (
	"context"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/auction/domain"
)

// LotService defines application interface layer of auction module
// exposes uses cases to external layer, aka infra
type LotService interface {
	ListLots(ctx context.Context) ([]*domain.Lot, error)
	// GetLot returns nil without error when the lot does not exist.
	GetLot(ctx context.Context, lotID int64) (*domain.Lot, error)
	CreateLot(ctx context.Context, in domain.LotInput) (*domain.Lot, error)
	// UpdateLot is a full replace; nil without error when the lot does not exist.
	UpdateLot(ctx context.Context, lotID int64, in domain.LotInput) (*domain.Lot, error)
	DeleteLot(ctx context.Context, lotID int64) (bool, error)
	// PlaceBid handles logic when a user makes a bid in a lot
	// and returns the lot as stored after the bid.
	PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*domain.Lot, error)
}

type serviceOptions struct {
	notifier domain.LotUpdateNotifier
	now      func() time.Time
}

type Option func(*serviceOptions)

// WithNotifier publishes every accepted bid and every update.
func WithNotifier(n domain.LotUpdateNotifier) Option {
	return func(o *serviceOptions) { o.notifier = n }
}

// WithClock replaces time.Now for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// concret implementation of LotService (struct)
type lotService struct {
	listLotsUC  *ListLotsUseCase
	getLotUC    *GetLotUseCase
	createLotUC *CreateLotUseCase
	updateLotUC *UpdateLotUseCase
	deleteLotUC *DeleteLotUseCase
	placeBidUC  *PlaceBidUseCase
}

func NewLotService(lotRepo domain.LotRepository, opts ...Option) LotService {
	o := serviceOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &lotService{
		listLotsUC:  NewListLotsUseCase(lotRepo),
		getLotUC:    NewGetLotUseCase(lotRepo),
		createLotUC: NewCreateLotUseCase(lotRepo),
		updateLotUC: NewUpdateLotUseCase(lotRepo, o.notifier),
		deleteLotUC: NewDeleteLotUseCase(lotRepo),
		placeBidUC:  NewPlaceBidUseCase(lotRepo, o.notifier, o.now),
	}
}

func (s *lotService) ListLots(ctx context.Context) ([]*domain.Lot, error) {
	return s.listLotsUC.Execute(ctx)
}

func (s *lotService) GetLot(ctx context.Context, lotID int64) (*domain.Lot, error) {
	return s.getLotUC.Execute(ctx, lotID)
}

func (s *lotService) CreateLot(ctx context.Context, in domain.LotInput) (*domain.Lot, error) {
	return s.createLotUC.Execute(ctx, in)
}

func (s *lotService) UpdateLot(ctx context.Context, lotID int64, in domain.LotInput) (*domain.Lot, error) {
	return s.updateLotUC.Execute(ctx, lotID, in)
}

func (s *lotService) DeleteLot(ctx context.Context, lotID int64) (bool, error) {
	return s.deleteLotUC.Execute(ctx, lotID)
}

// PlaceBid implements LotService.
func (s *lotService) PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*domain.Lot, error) {
	return s.placeBidUC.Execute(ctx, cmd)
}
