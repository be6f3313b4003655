package http

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/auction/domain"
	"github.com/shopspring/decimal"
)

var errInvalidPayload = errors.New("invalid JSON payload")

// lotFields holds the raw members of a lot body so presence can be told apart from null.
type lotFields map[string]json.RawMessage

func decodeLotFields(body []byte) (lotFields, error) {
	var fields lotFields
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, errInvalidPayload
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

// applyTo overlays the present members onto in. name and start_price ignore
// null; the optional members are cleared by it.
func (f lotFields) applyTo(in *domain.LotInput) error {
	if raw, ok := f["name"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &in.Name); err != nil {
			return errInvalidPayload
		}
	}
	if raw, ok := f["description"]; ok {
		v, err := optionalString(raw)
		if err != nil {
			return err
		}
		in.Description = v
	}
	if raw, ok := f["owner_id"]; ok {
		v, err := optionalString(raw)
		if err != nil {
			return err
		}
		in.OwnerID = v
	}
	if raw, ok := f["auction_end_date"]; ok {
		v, err := optionalString(raw)
		if err != nil {
			return err
		}
		in.AuctionEndDate = ""
		if v != nil {
			in.AuctionEndDate = *v
		}
	}
	if raw, ok := f["start_price"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &in.StartPrice); err != nil {
			return errInvalidPayload
		}
	}
	if raw, ok := f["current_price"]; ok {
		v, err := optionalPrice(raw)
		if err != nil {
			return err
		}
		in.CurrentPrice = v
	}
	return nil
}

func optionalString(raw json.RawMessage) (*string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errInvalidPayload
	}
	return &s, nil
}

func optionalPrice(raw json.RawMessage) (*decimal.Decimal, error) {
	if isNull(raw) {
		return nil, nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errInvalidPayload
	}
	return &d, nil
}

// inputFromLot is the starting point of a partial update.
func inputFromLot(lot *domain.Lot) domain.LotInput {
	in := domain.LotInput{
		Name:         lot.Name,
		Description:  lot.Description,
		StartPrice:   lot.StartPrice,
		CurrentPrice: lot.CurrentPrice,
		OwnerID:      lot.OwnerID,
	}
	if lot.AuctionEndDate != nil {
		in.AuctionEndDate = lot.AuctionEndDate.UTC().Format(time.RFC3339Nano)
	}
	return in
}

type bidRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}
