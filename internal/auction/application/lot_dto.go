package application

import (
	"encoding/json"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/auction/domain"
	"github.com/shopspring/decimal"
)

// LotDTO is the output DTO for exposing lot state to HTTP and WS clients.
// Prices are JSON numbers; absent optional fields are null.
type LotDTO struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Description    *string      `json:"description"`
	StartPrice     json.Number  `json:"start_price"`
	CurrentPrice   *json.Number `json:"current_price"`
	OwnerID        *string      `json:"owner_id"`
	CreatedAt      time.Time    `json:"created_at"`
	AuctionEndDate *time.Time   `json:"auction_end_date"`
}

func NewLotDTO(lot *domain.Lot) LotDTO {
	dto := LotDTO{
		ID:          lot.ID,
		Name:        lot.Name,
		Description: lot.Description,
		StartPrice:  priceNumber(lot.StartPrice),
		OwnerID:     lot.OwnerID,
		CreatedAt:   lot.CreatedAt.UTC(),
	}
	if lot.CurrentPrice != nil {
		n := priceNumber(*lot.CurrentPrice)
		dto.CurrentPrice = &n
	}
	if lot.AuctionEndDate != nil {
		end := lot.AuctionEndDate.UTC()
		dto.AuctionEndDate = &end
	}
	return dto
}

func NewLotDTOs(lots []*domain.Lot) []LotDTO {
	out := make([]LotDTO, 0, len(lots))
	for _, lot := range lots {
		out = append(out, NewLotDTO(lot))
	}
	return out
}

func priceNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
