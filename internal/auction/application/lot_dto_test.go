package application

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/auction/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLotDTO_JSON(t *testing.T) {
	end := time.Date(2030, 1, 1, 10, 0, 0, 0, time.FixedZone("", 2*3600))
	desc := "Ming"
	lot := &domain.Lot{
		ID:             7,
		Name:           "Vase",
		Description:    &desc,
		StartPrice:     amount("10.00"),
		CurrentPrice:   decPtr("15.50"),
		CreatedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		AuctionEndDate: &end,
	}

	raw, err := json.Marshal(NewLotDTO(lot))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 7,
		"name": "Vase",
		"description": "Ming",
		"start_price": 10,
		"current_price": 15.5,
		"owner_id": null,
		"created_at": "2025-01-01T00:00:00Z",
		"auction_end_date": "2030-01-01T08:00:00Z"
	}`, string(raw))
}

func TestLotDTO_AbsentFieldsAreNull(t *testing.T) {
	raw, err := json.Marshal(NewLotDTO(&domain.Lot{ID: 1, Name: "Vase", StartPrice: amount("3")}))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, key := range []string{"description", "current_price", "owner_id", "auction_end_date"} {
		v, ok := m[key]
		assert.True(t, ok, key)
		assert.Nil(t, v, key)
	}
}

func TestNewLotDTOs_Empty(t *testing.T) {
	raw, err := json.Marshal(NewLotDTOs(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}
