package event

import "github.com/google/uuid"

// PriceAppended records a new point on the price ledger.
type PriceAppended struct {
	Index int    `json:"index"`
	Price uint64 `json:"price"`
}

// PlayerDeposited records external funds entering a player's balance.
type PlayerDeposited struct {
	Player uuid.UUID `json:"player"`
	Amount int64     `json:"amount"`
}

// GameCreated records a new open game and its reference price point.
type GameCreated struct {
	GameIndex      int       `json:"game_index"`
	Host           uuid.UUID `json:"host"`
	HostPrediction bool      `json:"host_prediction"`
	Amount         int64     `json:"amount"`
	PriceIndex     int       `json:"price_index"`
}

// GameJoined records an opponent matching a game.
type GameJoined struct {
	GameIndex int       `json:"game_index"`
	Opponent  uuid.UUID `json:"opponent"`
	Amount    int64     `json:"amount"`
}

// GameResolved records a settled game: the crossing direction, the winner,
// and the payout of both stakes.
type GameResolved struct {
	GameIndex int       `json:"game_index"`
	Result    bool      `json:"result"` // true: price crossed up
	Winner    uuid.UUID `json:"winner"`
	Payout    int64     `json:"payout"`
}

// GameWithdrawn records an unmatched game closed by its host.
type GameWithdrawn struct {
	GameIndex int       `json:"game_index"`
	Host      uuid.UUID `json:"host"`
	Refund    int64     `json:"refund"`
}
