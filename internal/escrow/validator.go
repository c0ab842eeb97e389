package escrow

import (
	"fmt"

	"HeadToHead/internal/game"
)

// InvariantValidator checks the escrow accounting invariants after each
// settlement transition.
type InvariantValidator struct {
	vault *Vault
}

func NewInvariantValidator(vault *Vault) *InvariantValidator {
	return &InvariantValidator{vault: vault}
}

// ValidateGlobalZeroSum verifies the ledger is zero-sum: every unit in a
// player or vault account is balanced by the external boundary.
func (v *InvariantValidator) ValidateGlobalZeroSum() error {
	var total int64
	for _, bal := range v.vault.balances {
		total += bal
	}

	if total != 0 {
		return fmt.Errorf("global balance for %s is non-zero: %d", v.vault.asset, total)
	}
	return nil
}

// ValidateVaultMatchesStakes verifies the vault holds exactly the committed
// stakes of all live games: the host stake for every non-closed game, doubled
// once an opponent has matched.
func (v *InvariantValidator) ValidateVaultMatchesStakes(games []*game.Game) error {
	var expected int64
	for _, g := range games {
		if g.IsClosed() {
			continue
		}
		expected += g.Amount
		if g.Opponent != nil {
			expected += g.Amount
		}
	}

	held := v.vault.VaultBalance()
	if held != expected {
		return fmt.Errorf("vault balance %d does not match live stakes %d", held, expected)
	}
	return nil
}

// ValidatePlayerNonNegative checks that no player account went negative.
func (v *InvariantValidator) ValidatePlayerNonNegative() error {
	for key, bal := range v.vault.balances {
		if key.Scope == AccountScopePlayer && bal < 0 {
			return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), bal)
		}
	}
	return nil
}
