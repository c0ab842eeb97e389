package game

import (
	"errors"

	"github.com/google/uuid"

	"HeadToHead/internal/pricing"
)

var (
	ErrNotFound         = errors.New("game not found")
	ErrAlreadyClosed    = errors.New("game is already closed")
	ErrAlreadyJoined    = errors.New("game already has an opponent")
	ErrSelfJoin         = errors.New("cannot join your own game")
	ErrNotStarted       = errors.New("game not started yet")
	ErrWithdrawalLocked = errors.New("cannot withdraw after opponent has joined")
)

// Status is the lifecycle state of a game.
//
//	Open ──► Matched ──► Resolved
//	  └────────────────► Withdrawn
//
// Resolved and Withdrawn are terminal; only Resolved carries a result. The
// tagged state makes a result without an opponent unrepresentable.
type Status int32

const (
	StatusOpen Status = iota
	StatusMatched
	StatusResolved
	StatusWithdrawn
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusMatched:
		return "Matched"
	case StatusResolved:
		return "Resolved"
	case StatusWithdrawn:
		return "Withdrawn"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates state transitions.
func (s Status) CanTransitionTo(next Status) bool {
	validTransitions := map[Status][]Status{
		StatusOpen:    {StatusMatched, StatusWithdrawn},
		StatusMatched: {StatusResolved},
	}

	for _, allowed := range validTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusWithdrawn
}

// Game is one head-to-head wager. The host stakes Amount on HostPrediction
// (true: the price will rise) against the reference price at PriceIndex. An
// opponent joins with a matching stake; whoever called the first threshold
// crossing correctly takes both.
//
// Opponent is set at most once and never cleared. Result is set exactly once,
// only on resolution. A closed game stays in the registry permanently as a
// historical record.
type Game struct {
	Host           uuid.UUID
	Opponent       *uuid.UUID
	HostPrediction bool
	Amount         int64
	PriceIndex     int
	Result         *bool
	Status         Status
}

func New(host uuid.UUID, hostPrediction bool, amount int64, priceIndex int) *Game {
	return &Game{
		Host:           host,
		HostPrediction: hostPrediction,
		Amount:         amount,
		PriceIndex:     priceIndex,
		Status:         StatusOpen,
	}
}

// IsClosed reports whether the game has reached a terminal state.
func (g *Game) IsClosed() bool {
	return g.Status.Terminal()
}

// Join sets the opponent and moves the game to Matched.
func (g *Game) Join(opponent uuid.UUID) error {
	if g.IsClosed() {
		return ErrAlreadyClosed
	}
	if opponent == g.Host {
		return ErrSelfJoin
	}
	if g.Opponent != nil {
		return ErrAlreadyJoined
	}

	g.Opponent = &opponent
	g.Status = StatusMatched
	return nil
}

// Resolve records the outcome and closes the game. Only a matched game can
// resolve, which guarantees Result is never set without an opponent.
func (g *Game) Resolve(result bool) error {
	if g.IsClosed() {
		return ErrAlreadyClosed
	}
	if g.Opponent == nil {
		return ErrNotStarted
	}

	r := result
	g.Result = &r
	g.Status = StatusResolved
	return nil
}

// Withdraw closes an unmatched game with no result.
func (g *Game) Withdraw() error {
	if g.IsClosed() {
		return ErrAlreadyClosed
	}
	if g.Opponent != nil {
		return ErrWithdrawalLocked
	}

	g.Status = StatusWithdrawn
	return nil
}

// WinnerFor maps a crossing direction to the winning party of a matched game.
// The host wins when the prediction matches the direction; otherwise the
// opponent does.
func (g *Game) WinnerFor(dir pricing.Direction) (uuid.UUID, bool) {
	if g.Opponent == nil {
		return uuid.Nil, false
	}

	if g.HostPrediction == (dir == pricing.DirectionUp) {
		return g.Host, true
	}
	return *g.Opponent, true
}
