package pricing

import (
	"errors"
	"fmt"

	"HeadToHead/internal/store"
)

// priceSlotBytes is the storage footprint of one price point.
const priceSlotBytes = 8

var (
	ErrInvalidPrice    = errors.New("invalid price: must be positive")
	ErrInvalidDecimals = errors.New("invalid decimals: must be non-negative")
)

// Ledger is the append-only price history for the tracked series. Prices are
// fixed-point unsigned integers scaled by a decimal count that is immutable
// after initialization. Insertion order is chronological order, and an index
// is permanent once assigned: entries are never updated or removed.
//
// The ledger itself does no locking: the settlement engine serializes the
// append path (a single trusted writer) and append-only growth makes
// committed indices safe to read concurrently.
type Ledger struct {
	prices   []uint64
	decimals int32
	alloc    store.Allocator
}

// NewLedger seeds the ledger with its first price point. The first point is
// required: a game created against an empty series would have no reference
// price to settle from.
func NewLedger(initialPrice uint64, decimals int32, alloc store.Allocator) (*Ledger, error) {
	if decimals < 0 {
		return nil, ErrInvalidDecimals
	}

	l := &Ledger{decimals: decimals, alloc: alloc}
	if err := l.Append(initialPrice); err != nil {
		return nil, fmt.Errorf("seed price ledger: %w", err)
	}

	return l, nil
}

// Append adds a price point to the end of the series, extending the index
// space by one. Storage is reserved before the write, so a failed reservation
// leaves the ledger untouched.
func (l *Ledger) Append(value uint64) error {
	if value == 0 {
		return ErrInvalidPrice
	}

	if err := l.alloc.GrowBy(priceSlotBytes); err != nil {
		return fmt.Errorf("grow price ledger: %w", err)
	}

	l.prices = append(l.prices, value)
	return nil
}

// Prices returns the full series. The slice is append-only: callers must not
// mutate it, and committed indices never change value.
func (l *Ledger) Prices() []uint64 {
	return l.prices
}

// At returns the price at index i.
func (l *Ledger) At(i int) (uint64, bool) {
	if i < 0 || i >= len(l.prices) {
		return 0, false
	}
	return l.prices[i], true
}

// LastIndex returns the index of the most recent price point.
func (l *Ledger) LastIndex() int {
	return len(l.prices) - 1
}

func (l *Ledger) Len() int {
	return len(l.prices)
}

func (l *Ledger) Decimals() int32 {
	return l.decimals
}
