package core

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"HeadToHead/internal/escrow"
	"HeadToHead/internal/event"
	"HeadToHead/internal/game"
	"HeadToHead/internal/observability"
	"HeadToHead/internal/pricing"
	"HeadToHead/internal/store"
)

// Engine is the settlement core. Every transition follows the same shape:
// gate first, mutate second, so a rejected operation leaves no trace. Writes
// are serialized under a single lock; reads take snapshots under the read
// lock. Each committed transition is wrapped in an envelope, folded into the
// state-hash chain, and emitted to the persistence and publish channels.
type Engine struct {
	mu sync.RWMutex

	cfg       Config
	prices    *pricing.Ledger
	games     *game.Registry
	vault     *escrow.Vault
	validator *escrow.InvariantValidator
	hasher    *StateHasher
	sequence  int64

	now func() time.Time

	logger  zerolog.Logger
	metrics *observability.Metrics

	persistChan chan<- Output
	publishChan chan<- Output
}

// Output is one committed transition: the envelope plus the journal batch it
// produced (nil for transitions that move no money, like price appends).
type Output struct {
	Envelope *event.Envelope
	Batch    *escrow.Batch
}

func NewEngine(
	cfg Config,
	initialPrice uint64,
	priceDecimals int32,
	alloc store.Allocator,
	persistChan, publishChan chan<- Output,
	metrics *observability.Metrics,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prices, err := pricing.NewLedger(initialPrice, priceDecimals, alloc)
	if err != nil {
		return nil, err
	}

	vault := escrow.NewVault(cfg.Currency)

	return &Engine{
		cfg:         cfg,
		prices:      prices,
		games:       game.NewRegistry(alloc),
		vault:       vault,
		validator:   escrow.NewInvariantValidator(vault),
		hasher:      NewStateHasher(),
		now:         time.Now,
		logger:      observability.NewLogger("engine"),
		metrics:     metrics,
		persistChan: persistChan,
		publishChan: publishChan,
	}, nil
}

// AppendPrice adds a price point to the ledger. Admin only: the feed is the
// single trusted writer of the series.
func (e *Engine) AppendPrice(caller uuid.UUID, value uint64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.now()

	if caller != e.cfg.Admin {
		return 0, e.reject("append_price", "admin_only", ErrAdminOnly)
	}

	if err := e.prices.Append(value); err != nil {
		return 0, e.reject("append_price", "append_failed", err)
	}
	index := e.prices.LastIndex()

	e.commit("append_price", start, event.TypePriceAppended,
		fmt.Sprintf("price:%d", index),
		event.PriceAppended{Index: index, Price: value},
		nil,
	)

	if e.metrics != nil {
		e.metrics.PricesAppended.Inc()
		e.metrics.PriceLedgerSize.Set(float64(e.prices.Len()))
	}

	return index, nil
}

// Deposit credits a player from the external boundary.
func (e *Engine) Deposit(player uuid.UUID, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.now()

	key := fmt.Sprintf("deposit:%s:%d", player, e.sequence)

	batch, err := e.vault.Deposit(player, amount, key, start.UnixMicro())
	if err != nil {
		return e.reject("deposit", "transfer_failed", err)
	}

	e.commit("deposit", start, event.TypePlayerDeposited, key,
		event.PlayerDeposited{Player: player, Amount: amount},
		batch,
	)
	return nil
}

// CreateGame opens a new game. The host's stake (the configured bet size)
// moves into the vault immediately and the game's reference price is pinned
// to the latest point on the ledger. Returns the new game's index.
func (e *Engine) CreateGame(host uuid.UUID, prediction bool) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.now()

	amount := e.cfg.BetSize
	if amount > math.MaxInt64/2 {
		return 0, e.reject("create_game", "overflow", ErrArithmeticOverflow)
	}

	// Single writer, so the next index is known before the append.
	index := e.games.Len()
	key := fmt.Sprintf("game:%d:create", index)
	priceIndex := e.prices.LastIndex()

	batch, err := e.vault.Escrow(host, amount, key, start.UnixMicro())
	if err != nil {
		return 0, e.reject("create_game", "insufficient_funds", err)
	}

	g := game.New(host, prediction, amount, priceIndex)
	if _, err := e.games.Append(g); err != nil {
		// Compensate: the stake already moved, return it before failing.
		if _, refundErr := e.vault.Refund(host, amount, key, start.UnixMicro()); refundErr != nil {
			panic(fmt.Sprintf("FATAL: compensating refund failed: %v", refundErr))
		}
		return 0, e.reject("create_game", "registry_full", err)
	}

	e.commit("create_game", start, event.TypeGameCreated, key,
		event.GameCreated{
			GameIndex:      index,
			Host:           host,
			HostPrediction: prediction,
			Amount:         amount,
			PriceIndex:     priceIndex,
		},
		batch,
	)

	if e.metrics != nil {
		e.metrics.GamesByStatus.WithLabelValues(game.StatusOpen.String()).Inc()
	}

	return index, nil
}

// JoinGame matches an opponent against an open game with an equal stake. The
// join is refused if the price has already crossed the join threshold since
// the game was created: the outcome would no longer be a fair coin flip.
func (e *Engine) JoinGame(opponent uuid.UUID, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.now()

	g, err := e.games.Get(index)
	if err != nil {
		return e.reject("join_game", "not_found", err)
	}

	if g.IsClosed() {
		return e.reject("join_game", "closed", game.ErrAlreadyClosed)
	}
	if opponent == g.Host {
		return e.reject("join_game", "self_join", game.ErrSelfJoin)
	}
	if g.Opponent != nil {
		return e.reject("join_game", "already_joined", game.ErrAlreadyJoined)
	}

	if _, crossed := pricing.DetectCrossing(
		e.prices.Prices(), g.PriceIndex,
		e.cfg.JoinThresholdPercent, e.prices.Decimals(), e.cfg.ThresholdDecimals,
	); crossed {
		return e.reject("join_game", "price_moved", ErrPriceMovedTooMuch)
	}

	key := fmt.Sprintf("game:%d:join", index)

	batch, err := e.vault.Escrow(opponent, g.Amount, key, start.UnixMicro())
	if err != nil {
		return e.reject("join_game", "insufficient_funds", err)
	}

	// All gates passed above, so this cannot fail.
	if err := g.Join(opponent); err != nil {
		panic(fmt.Sprintf("FATAL: join after gates: %v", err))
	}

	e.commit("join_game", start, event.TypeGameJoined, key,
		event.GameJoined{GameIndex: index, Opponent: opponent, Amount: g.Amount},
		batch,
	)

	if e.metrics != nil {
		e.metrics.GamesByStatus.WithLabelValues(game.StatusOpen.String()).Dec()
		e.metrics.GamesByStatus.WithLabelValues(game.StatusMatched.String()).Inc()
	}

	return nil
}

// ClaimWinnings settles a matched game. The game is finished once the price
// has crossed the win threshold in either direction since the reference
// point; the first crossing fixes the result permanently. Only the winner may
// claim, and the payout is both stakes.
func (e *Engine) ClaimWinnings(claimant uuid.UUID, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.now()

	g, err := e.games.Get(index)
	if err != nil {
		return e.reject("claim", "not_found", err)
	}

	if g.IsClosed() {
		return e.reject("claim", "closed", game.ErrAlreadyClosed)
	}
	if g.Opponent == nil {
		return e.reject("claim", "not_started", game.ErrNotStarted)
	}

	dir, crossed := pricing.DetectCrossing(
		e.prices.Prices(), g.PriceIndex,
		e.cfg.WinThresholdPercent, e.prices.Decimals(), e.cfg.ThresholdDecimals,
	)
	if !crossed {
		return e.reject("claim", "not_finished", ErrGameNotFinished)
	}

	winner, _ := g.WinnerFor(dir)
	if claimant != winner {
		return e.reject("claim", "not_winner", ErrSignerNotWinner)
	}

	if g.Amount > math.MaxInt64/2 {
		return e.reject("claim", "overflow", ErrArithmeticOverflow)
	}
	payout := 2 * g.Amount

	key := fmt.Sprintf("game:%d:claim", index)

	batch, err := e.vault.Payout(winner, payout, key, start.UnixMicro())
	if err != nil {
		return e.reject("claim", "transfer_failed", err)
	}

	result := dir == pricing.DirectionUp
	if err := g.Resolve(result); err != nil {
		panic(fmt.Sprintf("FATAL: resolve after gates: %v", err))
	}

	e.commit("claim", start, event.TypeGameResolved, key,
		event.GameResolved{GameIndex: index, Result: result, Winner: winner, Payout: payout},
		batch,
	)

	if e.metrics != nil {
		e.metrics.GamesByStatus.WithLabelValues(game.StatusMatched.String()).Dec()
		e.metrics.GamesByStatus.WithLabelValues(game.StatusResolved.String()).Inc()
		e.metrics.PayoutsTotal.Inc()
	}

	return nil
}

// WithdrawFromGame closes an unmatched game and refunds the host's stake.
// Once an opponent has joined, the stake is committed and only settlement
// releases it.
func (e *Engine) WithdrawFromGame(caller uuid.UUID, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.now()

	g, err := e.games.Get(index)
	if err != nil {
		return e.reject("withdraw", "not_found", err)
	}

	if caller != g.Host {
		return e.reject("withdraw", "not_host", ErrUnauthorizedWithdrawal)
	}
	if g.IsClosed() {
		return e.reject("withdraw", "closed", game.ErrAlreadyClosed)
	}
	if g.Opponent != nil {
		return e.reject("withdraw", "locked", game.ErrWithdrawalLocked)
	}

	key := fmt.Sprintf("game:%d:withdraw", index)

	batch, err := e.vault.Refund(g.Host, g.Amount, key, start.UnixMicro())
	if err != nil {
		return e.reject("withdraw", "transfer_failed", err)
	}

	if err := g.Withdraw(); err != nil {
		panic(fmt.Sprintf("FATAL: withdraw after gates: %v", err))
	}

	e.commit("withdraw", start, event.TypeGameWithdrawn, key,
		event.GameWithdrawn{GameIndex: index, Host: g.Host, Refund: g.Amount},
		batch,
	)

	if e.metrics != nil {
		e.metrics.GamesByStatus.WithLabelValues(game.StatusOpen.String()).Dec()
		e.metrics.GamesByStatus.WithLabelValues(game.StatusWithdrawn.String()).Inc()
		e.metrics.RefundsTotal.Inc()
	}

	return nil
}

// commit seals a mutated transition: digest, state hash, envelope, invariant
// post-checks, then emission. Called with the write lock held, after all
// gates have passed and all mutations are applied.
func (e *Engine) commit(op string, start time.Time, evtType event.Type, key string, payload any, batch *escrow.Batch) {
	hashStart := e.now()
	prevHash := e.hasher.GetPrevHash()
	stateDigest := e.computeStateDigest(batch)
	stateHash := e.hasher.ComputeHash(e.sequence, stateDigest)
	if e.metrics != nil {
		e.metrics.StateHashDuration.Observe(e.now().Sub(hashStart).Seconds())
	}

	envelope := &event.Envelope{
		Sequence:       e.sequence,
		IdempotencyKey: key,
		EventType:      evtType,
		Timestamp:      start,
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	e.sequence++

	if err := e.postCheckInvariants(); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated after %s: %v", op, err))
	}

	output := Output{Envelope: envelope, Batch: batch}

	// Persistence: blocking send. The engine stalls until the persistence
	// worker drains, so no committed event is ever lost.
	if e.persistChan != nil {
		e.persistChan <- output
	}

	// Publishing: non-blocking send with drop. Downstream consumers rebuild
	// from the event log if they fall behind.
	if e.publishChan != nil {
		select {
		case e.publishChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.TransitionsApplied.WithLabelValues(op).Inc()
		e.metrics.TransitionDuration.WithLabelValues(op).Observe(e.now().Sub(start).Seconds())
		e.metrics.EngineSequence.Set(float64(e.sequence))
		e.metrics.EscrowedBalance.Set(float64(e.vault.VaultBalance()))
	}

	e.logger.Info().
		Str("op", op).
		Int64("sequence", envelope.Sequence).
		Str("key", key).
		Msg("transition committed")
}

// reject records a gated rejection. Nothing was mutated.
func (e *Engine) reject(op, reason string, err error) error {
	if e.metrics != nil {
		e.metrics.TransitionsRejected.WithLabelValues(op, reason).Inc()
	}
	e.logger.Debug().Str("op", op).Str("reason", reason).Err(err).Msg("transition rejected")
	return err
}

// computeStateDigest builds canonical bytes over the accounts the batch
// touched: sorted account paths, each followed by its post-transition balance.
func (e *Engine) computeStateDigest(batch *escrow.Batch) []byte {
	affected := make(map[escrow.AccountKey]bool)
	if batch != nil {
		for _, j := range batch.Journals {
			affected[j.DebitAccount] = true
			affected[j.CreditAccount] = true
		}
	}

	accounts := make([]escrow.AccountKey, 0, len(affected))
	for key := range affected {
		accounts = append(accounts, key)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64)
	for _, key := range accounts {
		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)
		digest = appendInt64LE(digest, e.vault.Balance(key))
	}

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

func (e *Engine) postCheckInvariants() error {
	if err := e.validator.ValidateGlobalZeroSum(); err != nil {
		return err
	}
	if err := e.validator.ValidateVaultMatchesStakes(e.games.All()); err != nil {
		return err
	}
	return e.validator.ValidatePlayerNonNegative()
}

// --- Read accessors (snapshots under the read lock) ---

// GameView returns a copy of the game at index.
func (e *Engine) GameView(index int) (game.Game, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	g, err := e.games.Get(index)
	if err != nil {
		return game.Game{}, err
	}
	return *g, nil
}

// SnapshotGames returns value copies of every game, in index order.
func (e *Engine) SnapshotGames() []game.Game {
	e.mu.RLock()
	defer e.mu.RUnlock()

	all := e.games.All()
	out := make([]game.Game, len(all))
	for i, g := range all {
		out[i] = *g
	}
	return out
}

// SnapshotPrices returns a copy of the price series.
func (e *Engine) SnapshotPrices() []uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]uint64, e.prices.Len())
	copy(out, e.prices.Prices())
	return out
}

func (e *Engine) PriceDecimals() int32 {
	return e.prices.Decimals()
}

// EscrowTotals returns the total vaulted value and the zero-sum check basis
// (the external boundary balance, which mirrors total deposits minus payouts).
func (e *Engine) EscrowTotals() (vaulted int64, external int64) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.vault.VaultBalance(), e.vault.Balance(escrow.NewExternalAccountKey(e.vault.Asset()))
}

func (e *Engine) PlayerBalance(player uuid.UUID) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.vault.PlayerBalance(player)
}

func (e *Engine) Sequence() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.sequence
}

// StateHash returns the current tip of the state-hash chain.
func (e *Engine) StateHash() [32]byte {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.hasher.GetPrevHash()
}

func (e *Engine) Config() Config {
	return e.cfg
}
