package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeWallet AccountScope = iota
	AccountScopeVault
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// Wallet sub-types
	SubTypeCash AccountSubType = iota

	// Vault sub-types
	SubTypePool

	// External sub-types (boundary accounts, balances run negative)
	SubTypeExternalDeposits
	SubTypeExternalPayouts
	SubTypeExternalProceeds
)

// AccountKey is the in-memory key for balance tracking. EntityID holds
// the participant UUID string for wallets and the vault ID for vault
// pools; external accounts carry no entity.
type AccountKey struct {
	Scope    AccountScope   `json:"scope"`
	EntityID string         `json:"entity_id"`
	SubType  AccountSubType `json:"sub_type"`
}

// NewWalletAccountKey creates a key for a participant's spending wallet
func NewWalletAccountKey(participant uuid.UUID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeWallet,
		EntityID: participant.String(),
		SubType:  SubTypeCash,
	}
}

// NewVaultAccountKey creates a key for a vault's pooled contributions
func NewVaultAccountKey(vaultID string) AccountKey {
	return AccountKey{
		Scope:    AccountScopeVault,
		EntityID: vaultID,
		SubType:  SubTypePool,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
	}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopeWallet:
		return fmt.Sprintf("wallet:%s:%s", k.EntityID, k.subTypeName())
	case AccountScopeVault:
		return fmt.Sprintf("vault:%s:%s", k.EntityID, k.subTypeName())
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s", k.subTypeName())
	}
	return "unknown"
}

// ParseAccountPath is the inverse of AccountPath, used when restoring
// balances from a snapshot. The sub-type is taken from the last colon so
// vault IDs containing colons round-trip.
func ParseAccountPath(path string) (AccountKey, error) {
	scope, rest, ok := strings.Cut(path, ":")
	if !ok {
		return AccountKey{}, fmt.Errorf("malformed account path: %q", path)
	}

	if scope == "external" {
		subType, err := subTypeFromName(rest)
		if err != nil {
			return AccountKey{}, fmt.Errorf("account path %q: %w", path, err)
		}
		return AccountKey{Scope: AccountScopeExternal, SubType: subType}, nil
	}

	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return AccountKey{}, fmt.Errorf("malformed account path: %q", path)
	}
	entityID, subName := rest[:idx], rest[idx+1:]

	subType, err := subTypeFromName(subName)
	if err != nil {
		return AccountKey{}, fmt.Errorf("account path %q: %w", path, err)
	}

	switch scope {
	case "wallet":
		return AccountKey{Scope: AccountScopeWallet, EntityID: entityID, SubType: subType}, nil
	case "vault":
		return AccountKey{Scope: AccountScopeVault, EntityID: entityID, SubType: subType}, nil
	default:
		return AccountKey{}, fmt.Errorf("unknown account scope in path: %q", path)
	}
}

func subTypeFromName(name string) (AccountSubType, error) {
	switch name {
	case "cash":
		return SubTypeCash, nil
	case "pool":
		return SubTypePool, nil
	case "deposits":
		return SubTypeExternalDeposits, nil
	case "payouts":
		return SubTypeExternalPayouts, nil
	case "proceeds":
		return SubTypeExternalProceeds, nil
	default:
		return 0, fmt.Errorf("unknown account sub-type: %q", name)
	}
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeCash:
		return "cash"
	case SubTypePool:
		return "pool"
	case SubTypeExternalDeposits:
		return "deposits"
	case SubTypeExternalPayouts:
		return "payouts"
	case SubTypeExternalProceeds:
		return "proceeds"
	default:
		return "unknown"
	}
}
