package escrow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTransferFailed    = errors.New("transfer failed")
)

// Vault custodies stakes for the settlement engine. Every movement is a
// balanced double-entry journal against three account families: player
// available balances, the system vault (live stakes), and the external
// deposit boundary. The vault mutates nothing when an operation fails, so the
// engine's gate-then-mutate contract extends through the money path.
//
// All methods are called with the settlement engine's write lock held.
type Vault struct {
	asset    string
	balances map[AccountKey]int64
}

func NewVault(asset string) *Vault {
	return &Vault{
		asset:    asset,
		balances: make(map[AccountKey]int64),
	}
}

// Deposit funds a player from the external boundary. This stands in for the
// token-transfer plumbing of the hosting ledger.
func (v *Vault) Deposit(player uuid.UUID, amount int64, eventRef string, ts int64) (*Batch, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: non-positive deposit %d", ErrTransferFailed, amount)
	}

	return v.transfer(
		NewPlayerAccountKey(player, v.asset),
		NewExternalAccountKey(v.asset),
		amount, JournalTypeDeposit, eventRef, ts,
	)
}

// Escrow moves a stake from the payer's available balance into the vault.
func (v *Vault) Escrow(payer uuid.UUID, amount int64, eventRef string, ts int64) (*Batch, error) {
	available := v.balances[NewPlayerAccountKey(payer, v.asset)]
	if available < amount {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, available, amount)
	}

	return v.transfer(
		NewVaultAccountKey(v.asset),
		NewPlayerAccountKey(payer, v.asset),
		amount, JournalTypeEscrow, eventRef, ts,
	)
}

// Payout releases winnings from the vault to the recipient.
func (v *Vault) Payout(recipient uuid.UUID, amount int64, eventRef string, ts int64) (*Batch, error) {
	return v.release(recipient, amount, JournalTypePayout, eventRef, ts)
}

// Refund returns a stake from the vault to the recipient.
func (v *Vault) Refund(recipient uuid.UUID, amount int64, eventRef string, ts int64) (*Batch, error) {
	return v.release(recipient, amount, JournalTypeRefund, eventRef, ts)
}

func (v *Vault) release(recipient uuid.UUID, amount int64, jt JournalType, eventRef string, ts int64) (*Batch, error) {
	held := v.balances[NewVaultAccountKey(v.asset)]
	if held < amount {
		return nil, fmt.Errorf("%w: vault holds %d, need %d", ErrTransferFailed, held, amount)
	}

	return v.transfer(
		NewPlayerAccountKey(recipient, v.asset),
		NewVaultAccountKey(v.asset),
		amount, jt, eventRef, ts,
	)
}

// transfer builds, validates, and applies a single-journal batch.
func (v *Vault) transfer(debit, credit AccountKey, amount int64, jt JournalType, eventRef string, ts int64) (*Batch, error) {
	batchID := uuid.New()
	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Timestamp: ts,
		Journals: []Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      eventRef,
			DebitAccount:  debit,
			CreditAccount: credit,
			Asset:         v.asset,
			Amount:        amount,
			JournalType:   jt,
			Timestamp:     ts,
		}},
	}

	if err := batch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	for _, j := range batch.Journals {
		v.balances[j.DebitAccount] += j.Amount
		v.balances[j.CreditAccount] -= j.Amount
	}

	return batch, nil
}

// Balance returns the current balance for an account.
func (v *Vault) Balance(key AccountKey) int64 {
	return v.balances[key]
}

// PlayerBalance returns a player's available balance.
func (v *Vault) PlayerBalance(player uuid.UUID) int64 {
	return v.balances[NewPlayerAccountKey(player, v.asset)]
}

// VaultBalance returns the total escrowed value.
func (v *Vault) VaultBalance() int64 {
	return v.balances[NewVaultAccountKey(v.asset)]
}

func (v *Vault) Asset() string {
	return v.asset
}

// Snapshot returns a copy of all balances.
func (v *Vault) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(v.balances))
	for k, bal := range v.balances {
		snapshot[k] = bal
	}
	return snapshot
}
