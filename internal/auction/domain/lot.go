package domain

import (
	"time"

	"github.com/cristianortiz/auctionEngine/internal/shared/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Lot is the only persisted entity. Nil pointer fields mean the value is absent.
type Lot struct {
	ID             int64
	Name           string
	Description    *string
	StartPrice     decimal.Decimal
	CurrentPrice   *decimal.Decimal // nil until the first accepted bid
	OwnerID        *string
	CreatedAt      time.Time
	AuctionEndDate *time.Time // nil means no deadline
}

// LotInput carries the caller-supplied mutable fields of a lot.
// AuctionEndDate is kept raw and parsed with ParseTimestamp.
type LotInput struct {
	Name           string
	Description    *string
	StartPrice     decimal.Decimal
	CurrentPrice   *decimal.Decimal
	OwnerID        *string
	AuctionEndDate string
}

// PriceScale is the number of decimal places the lots table keeps for prices.
const PriceScale = 2

// IsStorablePrice reports whether d survives the NUMERIC(12,2) columns without
// rounding. 10.000 is storable, 10.004 is not.
func IsStorablePrice(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(PriceScale))
}

// LeadingPrice is the price a new bid has to beat.
func (l *Lot) LeadingPrice() decimal.Decimal {
	if l.CurrentPrice != nil && l.CurrentPrice.GreaterThan(l.StartPrice) {
		return *l.CurrentPrice
	}
	return l.StartPrice
}

// HasEnded reports whether bidding is closed at now.
func (l *Lot) HasEnded(now time.Time) bool {
	return l.AuctionEndDate != nil && !now.Before(*l.AuctionEndDate)
}

// ValidateBid applies the bidding rules without mutating the lot.
func (l *Lot) ValidateBid(amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() || !IsStorablePrice(amount) {
		return ErrInvalidAmount
	}

	floor := l.LeadingPrice()
	if amount.LessThanOrEqual(floor) {
		log.Warn("Bid rejected: Amount too low",
			zap.Int64("lotID", l.ID),
			zap.String("bidAmount", amount.String()),
			zap.String("leadingPrice", floor.String()),
		)
		return ErrBidAmountTooLow
	}

	if l.HasEnded(now) {
		log.Warn("Bid rejected: Auction ended",
			zap.Int64("lotID", l.ID),
			zap.Time("auctionEndDate", *l.AuctionEndDate),
			zap.String("bidAmount", amount.String()),
		)
		return ErrAuctionEnded
	}
	return nil
}

// Apply overwrites every mutable field of l with in, the deadline already parsed.
func (l *Lot) Apply(in LotInput, deadline *time.Time) {
	l.Name = in.Name
	l.Description = in.Description
	l.StartPrice = in.StartPrice
	l.CurrentPrice = in.CurrentPrice
	l.OwnerID = in.OwnerID
	l.AuctionEndDate = deadline
}
