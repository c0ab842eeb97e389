package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"HeadToHead/internal/core"
	"HeadToHead/internal/game"
)

// Service answers read-only queries. Live state (games, prices, balances)
// comes from engine snapshots; history (events, journals) from the Postgres
// event log. Responses carry as_of_sequence for freshness semantics.
type Service struct {
	engine *core.Engine
	db     *sql.DB
}

// NewService creates a query service. db may be nil, in which case the
// history endpoints return an error and live-state queries still work.
func NewService(engine *core.Engine, db *sql.DB) *Service {
	return &Service{engine: engine, db: db}
}

// GetGame returns the game at index.
func (s *Service) GetGame(index int) (*GameResponse, error) {
	g, err := s.engine.GameView(index)
	if err != nil {
		return nil, err
	}

	resp := toGameResponse(index, g, s.engine.Sequence())
	return &resp, nil
}

// ListGames returns all games, optionally filtered by status.
func (s *Service) ListGames(status *game.Status) []GameResponse {
	games := s.engine.SnapshotGames()
	seq := s.engine.Sequence()

	out := make([]GameResponse, 0, len(games))
	for i, g := range games {
		if status != nil && g.Status != *status {
			continue
		}
		out = append(out, toGameResponse(i, g, seq))
	}
	return out
}

// GetPrices returns the full price series.
func (s *Service) GetPrices() PriceSeriesResponse {
	return PriceSeriesResponse{
		Prices:       s.engine.SnapshotPrices(),
		Decimals:     s.engine.PriceDecimals(),
		AsOfSequence: s.engine.Sequence(),
	}
}

// GetEscrow returns the vault accounting summary.
func (s *Service) GetEscrow() EscrowResponse {
	vaulted, external := s.engine.EscrowTotals()
	return EscrowResponse{
		Asset:        s.engine.Config().Currency,
		Vaulted:      vaulted,
		External:     external,
		AsOfSequence: s.engine.Sequence(),
	}
}

// GetBalance returns a player's available balance.
func (s *Service) GetBalance(player uuid.UUID) BalanceResponse {
	return BalanceResponse{
		Player:       player,
		Asset:        s.engine.Config().Currency,
		Available:    s.engine.PlayerBalance(player),
		AsOfSequence: s.engine.Sequence(),
	}
}

// GetEventHistory returns event-log rows, newest first, with cursor-based
// pagination on sequence.
func (s *Service) GetEventHistory(ctx context.Context, limit int, beforeSequence *int64) ([]EventHistoryEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("event history unavailable: no database")
	}

	query := `
		SELECT sequence, event_type, idempotency_key, payload, timestamp
		FROM settlement.events
	`
	args := []any{}
	argIdx := 1

	if beforeSequence != nil {
		query += fmt.Sprintf(" WHERE sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []EventHistoryEntry
	for rows.Next() {
		var e EventHistoryEntry
		var ts time.Time
		if err := rows.Scan(&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.Payload, &ts); err != nil {
			return nil, err
		}
		e.Timestamp = ts.UnixMicro()
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetJournalHistory returns escrow journal rows touching a player's account,
// newest first, with cursor-based pagination on sequence.
func (s *Service) GetJournalHistory(ctx context.Context, player uuid.UUID, limit int, beforeSequence *int64) ([]JournalHistoryEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("journal history unavailable: no database")
	}

	accountPrefix := fmt.Sprintf("player:%s:%%", player)

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, asset, amount, journal_type, timestamp
		FROM settlement.journal
		WHERE (debit_account LIKE $1 OR credit_account LIKE $1)
	`
	args := []any{accountPrefix}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.Asset, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// VerifyIntegrity checks hash-chain continuity of the persisted event log.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	if s.db == nil {
		return nil, fmt.Errorf("integrity check unavailable: no database")
	}

	report := &IntegrityReport{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM settlement.events e1
		JOIN settlement.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash != e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0
	return report, nil
}

func toGameResponse(index int, g game.Game, seq int64) GameResponse {
	return GameResponse{
		Index:          index,
		Host:           g.Host,
		Opponent:       g.Opponent,
		HostPrediction: g.HostPrediction,
		Amount:         g.Amount,
		PriceIndex:     g.PriceIndex,
		Result:         g.Result,
		Status:         g.Status.String(),
		AsOfSequence:   seq,
	}
}
