package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// BalanceTracker maintains in-memory account balances
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += j.Amount
	bt.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// GetWalletBalance returns a participant's spending wallet balance
func (bt *BalanceTracker) GetWalletBalance(participant uuid.UUID) int64 {
	return bt.GetBalance(NewWalletAccountKey(participant))
}

// GetVaultPool returns a vault's pooled contribution balance
func (bt *BalanceTracker) GetVaultPool(vaultID string) int64 {
	return bt.GetBalance(NewVaultAccountKey(vaultID))
}

// ValidateSufficientWallet checks a participant can cover required from
// their spending wallet
func (bt *BalanceTracker) ValidateSufficientWallet(participant uuid.UUID, required int64) error {
	balance := bt.GetWalletBalance(participant)
	if balance < required {
		return fmt.Errorf("wallet %s: have=%d, need=%d: %w",
			participant.String(), balance, required, ErrInsufficientSpendingWalletBalance)
	}
	return nil
}

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	balance := bt.GetBalance(key)
	if balance < 0 {
		return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), balance)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances (0 for a zero-sum ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() int64 {
	var total int64
	for _, balance := range bt.balances {
		total += balance
	}
	return total
}

// ComputeHeldValue sums wallet and vault balances. This is the value the
// system holds on behalf of participants; it always equals the negated
// sum of the external boundary accounts.
func (bt *BalanceTracker) ComputeHeldValue() int64 {
	var total int64
	for key, balance := range bt.balances {
		if key.Scope == AccountScopeWallet || key.Scope == AccountScopeVault {
			total += balance
		}
	}
	return total
}

// SetBalance overwrites one account balance (snapshot restore only)
func (bt *BalanceTracker) SetBalance(key AccountKey, balance int64) {
	bt.balances[key] = balance
}

// Snapshot returns a copy of all balances (for state hashing)
func (bt *BalanceTracker) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = v
	}
	return snapshot
}
