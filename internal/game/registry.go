package game

import (
	"fmt"

	"HeadToHead/internal/store"
)

// gameSlotBytes is the storage footprint reserved per game record.
const gameSlotBytes = 96

// Registry is the append-only collection of games. A game's identity is its
// positional index, permanent once assigned; closed games are never removed.
// Like the price ledger, the registry relies on the settlement engine to
// serialize writes.
type Registry struct {
	games []*Game
	alloc store.Allocator
}

func NewRegistry(alloc store.Allocator) *Registry {
	return &Registry{alloc: alloc}
}

// Append adds a game to the registry and returns its index. Storage is
// reserved before the write.
func (r *Registry) Append(g *Game) (int, error) {
	if err := r.alloc.GrowBy(gameSlotBytes); err != nil {
		return 0, fmt.Errorf("grow game registry: %w", err)
	}

	r.games = append(r.games, g)
	return len(r.games) - 1, nil
}

// Get returns the game at the given index.
func (r *Registry) Get(index int) (*Game, error) {
	if index < 0 || index >= len(r.games) {
		return nil, ErrNotFound
	}
	return r.games[index], nil
}

func (r *Registry) Len() int {
	return len(r.games)
}

// All returns the backing slice for read-only iteration (invariant checks,
// query snapshots). Callers must not mutate it.
func (r *Registry) All() []*Game {
	return r.games
}
