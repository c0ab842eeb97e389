package feed

import (
	"encoding/json"
	"fmt"
)

// Tick is one price point from the upstream feed. FeedSequence is the
// producer's monotonic counter; the subscriber uses it to drop stale and
// duplicate deliveries. Price is fixed-point scaled to the ledger's decimals.
type Tick struct {
	Price        uint64 `json:"price"`
	FeedSequence int64  `json:"feed_sequence"`
	TimestampUs  int64  `json:"timestamp_us"`
}

// ParseTick decodes and validates a raw feed message.
func ParseTick(data []byte) (Tick, error) {
	var t Tick
	if err := json.Unmarshal(data, &t); err != nil {
		return Tick{}, fmt.Errorf("parse tick: %w", err)
	}

	if t.Price == 0 {
		return Tick{}, fmt.Errorf("invalid tick: zero price")
	}
	if t.FeedSequence <= 0 {
		return Tick{}, fmt.Errorf("invalid tick: non-positive feed_sequence %d", t.FeedSequence)
	}

	return t, nil
}
