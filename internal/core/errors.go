package core

import "errors"

// Settlement-level failures. Ledger, registry, and escrow failures carry
// their own sentinels (pricing.ErrInvalidPrice, game.ErrNotFound,
// escrow.ErrInsufficientFunds, store.ErrAllocationFailed, ...) and propagate
// through the engine unchanged. All are local, non-retriable business-rule
// failures: a failed transition mutates nothing.
var (
	ErrAdminOnly              = errors.New("only admin can perform this action")
	ErrPriceMovedTooMuch      = errors.New("price moved too much since game creation")
	ErrGameNotFinished        = errors.New("game is not finished yet: win threshold not reached")
	ErrSignerNotWinner        = errors.New("only winner can claim rewards")
	ErrUnauthorizedWithdrawal = errors.New("only the host can withdraw")
	ErrArithmeticOverflow     = errors.New("arithmetic overflow")
	ErrInvalidConfig          = errors.New("invalid config")
)
