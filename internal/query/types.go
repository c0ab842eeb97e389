package query

import "github.com/google/uuid"

// GameResponse is one game record for API queries.
type GameResponse struct {
	Index          int        `json:"index"`
	Host           uuid.UUID  `json:"host"`
	Opponent       *uuid.UUID `json:"opponent,omitempty"`
	HostPrediction bool       `json:"host_prediction"`
	Amount         int64      `json:"amount"`
	PriceIndex     int        `json:"price_index"`
	Result         *bool      `json:"result,omitempty"`
	Status         string     `json:"status"`
	AsOfSequence   int64      `json:"as_of_sequence"`
}

// PriceSeriesResponse is the full price ledger.
type PriceSeriesResponse struct {
	Prices       []uint64 `json:"prices"`
	Decimals     int32    `json:"decimals"`
	AsOfSequence int64    `json:"as_of_sequence"`
}

// EscrowResponse summarizes the vault accounting.
type EscrowResponse struct {
	Asset        string `json:"asset"`
	Vaulted      int64  `json:"vaulted"`
	External     int64  `json:"external"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// BalanceResponse is one player's available balance.
type BalanceResponse struct {
	Player       uuid.UUID `json:"player"`
	Asset        string    `json:"asset"`
	Available    int64     `json:"available"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// EventHistoryEntry is one event-log row for API queries.
type EventHistoryEntry struct {
	Sequence       int64  `json:"sequence"`
	EventType      string `json:"event_type"`
	IdempotencyKey string `json:"idempotency_key"`
	Payload        []byte `json:"payload"`
	Timestamp      int64  `json:"timestamp_us"`
}

// JournalHistoryEntry is one escrow journal row for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Asset         string `json:"asset"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// IntegrityReport is the result of an event-log integrity check.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
}
