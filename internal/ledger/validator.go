package ledger

import "fmt"

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies the batch is well-formed and balanced
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateGlobalBalance verifies the ledger is zero-sum
func (v *InvariantValidator) ValidateGlobalBalance() error {
	if total := v.tracker.ComputeGlobalBalance(); total != 0 {
		return fmt.Errorf("global balance is non-zero: %d", total)
	}
	return nil
}

// ValidateVaultPoolNonNegative checks a vault pool never goes negative
func (v *InvariantValidator) ValidateVaultPoolNonNegative(vaultID string) error {
	return v.tracker.ValidateNonNegative(NewVaultAccountKey(vaultID))
}

// ValidateHeldValue verifies system-held value equals expected. Expected
// is the sum of wallet balances and vault totals tracked by the domain
// state; any divergence means the ledger and the vault books disagree.
func (v *InvariantValidator) ValidateHeldValue(expected int64) error {
	held := v.tracker.ComputeHeldValue()
	if held != expected {
		return fmt.Errorf("held value mismatch: ledger=%d, books=%d", held, expected)
	}
	return nil
}
