package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// LotRepository persists lots. A missing lot is reported as (nil, nil), never as an error.
type LotRepository interface {
	EnsureSchema(ctx context.Context) error
	List(ctx context.Context) ([]*Lot, error)
	FindByID(ctx context.Context, id int64) (*Lot, error)
	Create(ctx context.Context, lot *Lot) (*Lot, error)
	Update(ctx context.Context, id int64, lot *Lot) (*Lot, error)
	Remove(ctx context.Context, id int64) (bool, error)
	// UpdateCurrentPrice stores amount only if it still beats the leading price and
	// the deadline has not passed; (nil, nil) when no row qualified.
	UpdateCurrentPrice(ctx context.Context, id int64, amount decimal.Decimal) (*Lot, error)
}

// LotUpdateNotifier is told about every lot state change that subscribers should see.
type LotUpdateNotifier interface {
	NotifyLotUpdated(lot *Lot)
}
