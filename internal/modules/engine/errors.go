package engine

import (
	"errors"
	"fmt"
)

// Domain errors. Callers match with errors.Is; the wrapped message carries
// the client, instrument and quantity the failure is attributable to.
var (
	// ErrInvalidQuantity rejects non-positive quantities on buys and sells.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInvalidAmount rejects non-positive deposit/withdrawal amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientHoldings rejects a sell larger than the open quantity.
	// The operation is atomic: nothing is mutated on rejection.
	ErrInsufficientHoldings = errors.New("sell exceeds open holdings")

	// ErrInsufficientCash rejects a withdrawal past the as-of balance when
	// the overdraft policy forbids it.
	ErrInsufficientCash = errors.New("withdrawal exceeds cash balance")
)

func invalidQuantity(clientID, symbol, quantity string) error {
	return fmt.Errorf("client %s, %s, quantity %s: %w", clientID, symbol, quantity, ErrInvalidQuantity)
}

func insufficientHoldings(clientID, symbol, requested, available string) error {
	return fmt.Errorf("client %s, %s: requested %s, open %s: %w",
		clientID, symbol, requested, available, ErrInsufficientHoldings)
}

func insufficientCash(clientID, requested, balance string) error {
	return fmt.Errorf("client %s: requested %s, balance %s: %w",
		clientID, requested, balance, ErrInsufficientCash)
}
