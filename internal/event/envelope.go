package event

import "time"

// Type discriminates settlement event payloads.
type Type int32

const (
	TypeUnknown Type = iota
	TypePriceAppended
	TypePlayerDeposited
	TypeGameCreated
	TypeGameJoined
	TypeGameResolved
	TypeGameWithdrawn
)

func (t Type) String() string {
	switch t {
	case TypePriceAppended:
		return "PriceAppended"
	case TypePlayerDeposited:
		return "PlayerDeposited"
	case TypeGameCreated:
		return "GameCreated"
	case TypeGameJoined:
		return "GameJoined"
	case TypeGameResolved:
		return "GameResolved"
	case TypeGameWithdrawn:
		return "GameWithdrawn"
	default:
		return "Unknown"
	}
}

// Envelope wraps every committed settlement transition in the event log.
type Envelope struct {
	// Global monotonic sequence assigned by the settlement engine
	Sequence int64

	// Stable key naming the transition (e.g. "game:3:join")
	IdempotencyKey string

	EventType Type

	Timestamp time.Time

	// Event-specific payload, JSON-encoded at persistence time
	Payload any

	// SHA-256 of escrow/game state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}
