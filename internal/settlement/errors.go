package settlement

import "errors"

var (
	ErrPriceUnavailable   = errors.New("PriceUnavailable")
	ErrBroadcastFailed    = errors.New("BroadcastFailed")
	ErrConfirmationFailed = errors.New("ConfirmationFailed")
	ErrSettlementFailed   = errors.New("SettlementFailed")
	ErrInvalidAmount      = errors.New("invalid amount")
)
