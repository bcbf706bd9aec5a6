package domain

import "errors"

// Error taxonomy for command validation and execution. All of these are
// reported to the caller without any state change.
var (
	// ErrInvalidAmount covers non-positive or non-numeric amounts and prices.
	ErrInvalidAmount = errors.New("amount must be a positive number")

	// ErrInsufficientFunds means the USD balance cannot cover the operation
	// (including funds reserved by open buy orders at placement time).
	ErrInsufficientFunds = errors.New("insufficient USD")

	// ErrInsufficientHoldings is the BTC-side counterpart.
	ErrInsufficientHoldings = errors.New("insufficient BTC")

	// ErrBelowMinTrade rejects trades under the configured minimum USD value.
	ErrBelowMinTrade = errors.New("trade below minimum size")

	// ErrPriceUnavailable: no network response and no cached quote. Any
	// operation depending on a quote aborts without mutation.
	ErrPriceUnavailable = errors.New("price service unavailable")

	// ErrOrderNotFound covers both a missing order id and an order owned by
	// somebody else; cancellation never discloses which.
	ErrOrderNotFound = errors.New("order not found")

	ErrNotRegistered    = errors.New("account not registered")
	ErrAlreadyRegistered = errors.New("account already registered")
	ErrNicknameTaken    = errors.New("nickname already taken")

	// ErrAlreadyClaimed: the winner latch is set and never resets.
	ErrAlreadyClaimed = errors.New("prize already claimed")

	// ErrPnLBelowThreshold: claim attempted before reaching the prize PnL.
	ErrPnLBelowThreshold = errors.New("PnL below prize threshold")
)
