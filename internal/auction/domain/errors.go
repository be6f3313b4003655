package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrLotNotFound            = errors.New("lot not found")
	ErrBidAmountTooLow        = errors.New("bid must be greater than current and starting price")
	ErrAuctionEnded           = errors.New("auction already ended")
	ErrConcurrentModification = errors.New("lot was modified concurrently")
)

// Validation failures, all matching ErrValidation.
var (
	ErrInvalidLotID        = fmt.Errorf("%w: invalid lot id", ErrValidation)
	ErrNameRequired        = fmt.Errorf("%w: lot name is required", ErrValidation)
	ErrInvalidStartPrice   = fmt.Errorf("%w: start_price must be positive with at most 2 decimal places", ErrValidation)
	ErrInvalidAmount       = fmt.Errorf("%w: bid amount must be positive with at most 2 decimal places", ErrValidation)
	ErrInvalidCurrentPrice = fmt.Errorf("%w: current_price must have at most 2 decimal places", ErrValidation)
	ErrInvalidAuctionEnd   = fmt.Errorf("%w: auction_end_date is not a valid timestamp", ErrValidation)
)
