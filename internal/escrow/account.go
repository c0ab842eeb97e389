package escrow

import (
	"fmt"

	"github.com/google/uuid"
)

// AccountScope is the top-level account namespace.
type AccountScope uint8

const (
	AccountScopePlayer AccountScope = iota
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType is the account purpose within a scope.
type AccountSubType uint8

const (
	// Player sub-types
	SubTypeAvailable AccountSubType = iota

	// System sub-types
	SubTypeVault

	// External sub-types
	SubTypeDeposits
)

// AccountKey is the in-memory key for balance tracking.
type AccountKey struct {
	Scope    AccountScope
	EntityID uuid.UUID // player identity; zero for system/external accounts
	SubType  AccountSubType
	Asset    string
}

// NewPlayerAccountKey creates a key for a player's spendable balance.
func NewPlayerAccountKey(player uuid.UUID, asset string) AccountKey {
	return AccountKey{
		Scope:    AccountScopePlayer,
		EntityID: player,
		SubType:  SubTypeAvailable,
		Asset:    asset,
	}
}

// NewVaultAccountKey creates the key for the escrow vault holding all live
// stakes.
func NewVaultAccountKey(asset string) AccountKey {
	return AccountKey{
		Scope:   AccountScopeSystem,
		SubType: SubTypeVault,
		Asset:   asset,
	}
}

// NewExternalAccountKey creates the key for the external deposit boundary.
func NewExternalAccountKey(asset string) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: SubTypeDeposits,
		Asset:   asset,
	}
}

// AccountPath returns the string representation for storage and logging.
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopePlayer:
		return fmt.Sprintf("player:%s:%s:%s", k.EntityID, k.subTypeName(), k.Asset)
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), k.Asset)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), k.Asset)
	}
	return "unknown"
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeAvailable:
		return "available"
	case SubTypeVault:
		return "vault"
	case SubTypeDeposits:
		return "deposits"
	default:
		return "unknown"
	}
}
