package ledger

import (
	fpmath "CoVault/internal/math"

	"github.com/google/uuid"
)

// JournalGenerator creates balanced journal batches from commands
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker // Reference for pre-checks
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
	}
}

// SetSequence resets the generator sequence (snapshot restore only)
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}

func (jg *JournalGenerator) newBatch(eventRef string, timestamp int64, capacity int) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, capacity),
	}
}

func (jg *JournalGenerator) appendJournal(b *Batch, debit, credit AccountKey, amount int64, jt JournalType) {
	b.Journals = append(b.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       b.BatchID,
		EventRef:      b.EventRef,
		Sequence:      jg.sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		Amount:        amount,
		JournalType:   jt,
		Timestamp:     b.Timestamp,
	})
}

// GenerateWalletDeposit credits a participant's spending wallet with
// directly attached value.
// Moves funds: external:deposits → wallet:cash
func (jg *JournalGenerator) GenerateWalletDeposit(
	eventRef string,
	participant uuid.UUID,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	if amount == 0 {
		return nil, ErrInvalidMoneyTransfer
	}

	batch := jg.newBatch(eventRef, timestamp, 1)
	jg.appendJournal(batch,
		NewWalletAccountKey(participant),
		NewExternalAccountKey(SubTypeExternalDeposits),
		amount, JournalTypeWalletDeposit)

	jg.sequence++
	return batch, nil
}

// GenerateWalletWithdrawal debits a participant's spending wallet for an
// outbound transfer. The TransferGuard issues the outbound leg only after
// this batch is applied.
// Moves funds: wallet:cash → external:payouts
func (jg *JournalGenerator) GenerateWalletWithdrawal(
	eventRef string,
	participant uuid.UUID,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	if amount == 0 {
		return nil, ErrInvalidMoneyTransfer
	}

	// PRE-CHECK: wallet must cover the full amount
	if err := jg.balanceTracker.ValidateSufficientWallet(participant, amount); err != nil {
		return nil, err
	}

	batch := jg.newBatch(eventRef, timestamp, 1)
	jg.appendJournal(batch,
		NewExternalAccountKey(SubTypeExternalPayouts),
		NewWalletAccountKey(participant),
		amount, JournalTypeWalletWithdrawal)

	jg.sequence++
	return batch, nil
}

// GenerateVaultDeposit moves value into a vault pool. directAmount is
// attached value, walletAmount is pulled from the participant's spending
// wallet; either may be zero but not both.
func (jg *JournalGenerator) GenerateVaultDeposit(
	eventRef string,
	vaultID string,
	participant uuid.UUID,
	directAmount, walletAmount int64,
	timestamp int64,
) (*Batch, error) {
	if directAmount+walletAmount == 0 {
		return nil, ErrInvalidMoneyTransfer
	}

	// PRE-CHECK: wallet-sourced portion must be covered
	if walletAmount > 0 {
		if err := jg.balanceTracker.ValidateSufficientWallet(participant, walletAmount); err != nil {
			return nil, err
		}
	}

	batch := jg.newBatch(eventRef, timestamp, 2)
	pool := NewVaultAccountKey(vaultID)

	if directAmount > 0 {
		jg.appendJournal(batch, pool,
			NewExternalAccountKey(SubTypeExternalDeposits),
			directAmount, JournalTypeVaultDeposit)
	}
	if walletAmount > 0 {
		jg.appendJournal(batch, pool,
			NewWalletAccountKey(participant),
			walletAmount, JournalTypeVaultDeposit)
	}

	jg.sequence++
	return batch, nil
}

// GenerateVaultWithdrawal moves value out of a vault pool. toWalletAmount
// is credited to the participant's spending wallet; directAmount leaves
// the system through the TransferGuard.
func (jg *JournalGenerator) GenerateVaultWithdrawal(
	eventRef string,
	vaultID string,
	participant uuid.UUID,
	toWalletAmount, directAmount int64,
	timestamp int64,
) (*Batch, error) {
	if toWalletAmount+directAmount == 0 {
		return nil, ErrInvalidMoneyTransfer
	}

	batch := jg.newBatch(eventRef, timestamp, 2)
	pool := NewVaultAccountKey(vaultID)

	if toWalletAmount > 0 {
		jg.appendJournal(batch,
			NewWalletAccountKey(participant),
			pool, toWalletAmount, JournalTypeVaultWithdrawal)
	}
	if directAmount > 0 {
		jg.appendJournal(batch,
			NewExternalAccountKey(SubTypeExternalPayouts),
			pool, directAmount, JournalTypeVaultWithdrawal)
	}

	jg.sequence++
	return batch, nil
}

// GenerateSettlement creates the settlement batch for a finished vault.
// The proceeds delta (sellingPrice − boughtPrice) is journaled against
// the external proceeds account first so the pool holds exactly the
// reward pool, then each reward is paid into the participant's spending
// wallet. Flooring dust stays on the pool account.
func (jg *JournalGenerator) GenerateSettlement(
	eventRef string,
	vaultID string,
	proceedsDelta int64,
	rewards []fpmath.Reward,
	timestamp int64,
) (*Batch, error) {
	batch := jg.newBatch(eventRef, timestamp, len(rewards)+1)
	pool := NewVaultAccountKey(vaultID)
	proceeds := NewExternalAccountKey(SubTypeExternalProceeds)

	if proceedsDelta > 0 {
		jg.appendJournal(batch, pool, proceeds, proceedsDelta, JournalTypeSettlementProceeds)
	} else if proceedsDelta < 0 {
		jg.appendJournal(batch, proceeds, pool, -proceedsDelta, JournalTypeSettlementProceeds)
	}

	for _, r := range rewards {
		if r.Amount <= 0 {
			continue
		}
		jg.appendJournal(batch,
			NewWalletAccountKey(r.Participant),
			pool, r.Amount, JournalTypeSettlementReward)
	}

	jg.sequence++
	return batch, nil
}
