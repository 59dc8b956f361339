package core

import (
	"CoVault/internal/command"
	"CoVault/internal/event"
	"CoVault/internal/ledger"
	fpmath "CoVault/internal/math"
	"CoVault/internal/observability"
	"CoVault/internal/vault"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrUnauthorized is returned when a non-administrator issues an
// administrator-only command
var ErrUnauthorized = errors.New("unauthorized")

// DeterministicCore is the single-threaded command processor. Execution
// is globally serialized: each command is atomic and indivisible
// relative to every other command, and the core never reads the wall
// clock — every timestamp is a versioned command input.
type DeterministicCore struct {
	sequence          int64
	hasher            *StateHasher
	registry          *vault.Registry
	balanceTracker    *ledger.BalanceTracker
	journalGen        *ledger.JournalGenerator
	validator         *ledger.InvariantValidator
	guard             *ledger.TransferGuard
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	adminID           uuid.UUID
	metrics           *observability.Metrics

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

type CoreOutput struct {
	Envelope   *event.EventEnvelope
	Batch      *ledger.Batch
	StateDelta []byte
}

// pendingPayout is an outbound transfer owed after the batch commits
type pendingPayout struct {
	participant uuid.UUID
	amount      int64
}

// commandResult is what a dispatch handler hands back to the pipeline
type commandResult struct {
	batch     *ledger.Batch
	eventType event.EventType
	payload   interface{}
	payouts   []pendingPayout
}

func NewDeterministicCore(
	startSequence int64,
	adminID uuid.UUID,
	sink ledger.PayoutSink,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) *DeterministicCore {
	balanceTracker := ledger.NewBalanceTracker()
	validator := ledger.NewInvariantValidator(balanceTracker)
	journalGen := ledger.NewJournalGenerator(startSequence, balanceTracker)

	// Initialize with capacity of 1M entries (configurable)
	idempotencyChecker := NewIdempotencyChecker(1_000_000, dbChecker)

	return &DeterministicCore{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		registry:          vault.NewRegistry(),
		balanceTracker:    balanceTracker,
		journalGen:        journalGen,
		validator:         validator,
		guard:             ledger.NewTransferGuard(sink),
		idempotency:       idempotencyChecker,
		sequenceValidator: NewSequenceValidator(),
		adminID:           adminID,
		metrics:           metrics,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
}

// ProcessCommand is the main processing pipeline
func (c *DeterministicCore) ProcessCommand(cmd command.Command) error {
	// Step 0: Reentrancy guard. Held for the full call so externally
	// supplied code reached through an outbound transfer cannot
	// re-enter and observe a not-yet-debited balance.
	if err := c.guard.Enter(); err != nil {
		if c.metrics != nil {
			c.metrics.CoreCommandsRejected.WithLabelValues(cmd.CommandType().String(), "reentrant").Inc()
		}
		return err
	}
	defer c.guard.Exit()

	start := time.Now()
	commandType := cmd.CommandType().String()
	idempotencyKey := cmd.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := c.idempotency.IsDuplicate(commandType, idempotencyKey)

	// Step 2: Sequence validation
	partition := c.getPartition(cmd)
	sourceSequence := cmd.SourceSequence()

	if err := c.sequenceValidator.ValidateSequence(partition, sourceSequence, isDuplicate); err != nil {
		if c.metrics != nil {
			c.metrics.CommandOutOfOrder.WithLabelValues(partition).Inc()
		}
		return fmt.Errorf("sequence validation failed: %w", err)
	}

	// If duplicate, skip processing
	if isDuplicate {
		if c.metrics != nil {
			c.metrics.CoreCommandsRejected.WithLabelValues(commandType, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Dispatch. Handlers validate every precondition before the
	// first mutation, so a failure here leaves no partial state.
	result, err := c.dispatchCommand(cmd)
	if err != nil {
		if c.metrics != nil {
			c.metrics.CoreCommandsRejected.WithLabelValues(commandType, "precondition").Inc()
		}
		return err
	}

	// Step 4: Validate and apply the batch (state-only commands carry an
	// empty batch but still get an envelope in the event log)
	if len(result.batch.Journals) > 0 {
		if err := c.validator.ValidateBatchBalance(result.batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}

		if err := c.balanceTracker.ApplyBatch(result.batch); err != nil {
			return fmt.Errorf("apply batch failed: %w", err)
		}
	}

	// Step 5: Post-checks
	if err := c.postCheckInvariants(cmd); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// The command is now certain to produce an event; only here does the
	// partition sequence advance. Rejections above leave the validator
	// untouched, so their burned sequences show up as gaps.
	if c.metrics != nil && sourceSequence > c.sequenceValidator.GetExpectedSequence(partition) {
		c.metrics.CommandSequenceGap.WithLabelValues(partition).Inc()
	}
	c.sequenceValidator.Commit(partition, sourceSequence)

	// Step 6: Outbound transfers. Debits are committed above; only now
	// may value leave the system. A sink failure after commit cannot be
	// reconciled in-process — recovery is replay from the event log.
	for _, p := range result.payouts {
		if err := c.guard.Payout(p.participant, p.amount); err != nil {
			panic(fmt.Sprintf("FATAL: outbound transfer failed after debit commit: %v", err))
		}
	}

	// Step 7: State digest and hash chain. The chain tip must be read
	// BEFORE ComputeHash advances it, or every envelope would carry its
	// own hash as prev_hash and the chain would never link.
	stateDigest := c.computeStateDigest(result.batch, cmd.VaultID())
	prevHash := c.hasher.GetPrevHash()
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)

	payloadBytes, err := json.Marshal(result.payload)
	if err != nil {
		panic(fmt.Sprintf("FATAL: payload marshal: %v", err))
	}

	envelope := &event.EventEnvelope{
		Sequence:       c.sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      result.eventType,
		VaultID:        cmd.VaultID(),
		Timestamp:      c.getCommandTimestamp(cmd),
		SourceSequence: sourceSequence,
		Payload:        payloadBytes,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	output := CoreOutput{
		Envelope:   envelope,
		Batch:      result.batch,
		StateDelta: stateDigest,
	}
	c.sequence++

	// Step 8: Emit outputs. Persistence uses a BLOCKING send so no event
	// is ever lost (backpressure stalls the core); projections use a
	// NON-BLOCKING send and catch up via rebuild when they fall behind.
	c.persistChan <- output

	select {
	case c.projectionChan <- output:
	default:
		// Silently dropped — projection will catch up via rebuild
	}

	// Step 9: Mark as processed (add to LRU)
	c.idempotency.MarkProcessed(commandType, idempotencyKey)

	// Record metrics
	if c.metrics != nil {
		c.metrics.CoreCommandsApplied.WithLabelValues(commandType).Inc()
		c.metrics.CoreCommandDuration.WithLabelValues(commandType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
	}

	return nil
}

// getPartition determines partition key for sequence validation
func (c *DeterministicCore) getPartition(cmd command.Command) string {
	if vaultID := cmd.VaultID(); vaultID != nil {
		return fmt.Sprintf("vault:%s", *vaultID)
	}
	return "global"
}

// getCommandTimestamp extracts the versioned timestamp from a command.
// The core MUST NOT call time.Now(); funding-window checks and journal
// timestamps all derive from these inputs.
func (c *DeterministicCore) getCommandTimestamp(cmd command.Command) time.Time {
	switch cc := cmd.(type) {
	case *command.CreateVault:
		return cc.Timestamp
	case *command.SetVaultState:
		return cc.Timestamp
	case *command.CloseFunding:
		return cc.Timestamp
	case *command.FinishVault:
		return cc.Timestamp
	case *command.DepositToWallet:
		return cc.Timestamp
	case *command.WithdrawFromWallet:
		return cc.Timestamp
	case *command.DepositToVault:
		return cc.Timestamp
	case *command.WithdrawFromVault:
		return cc.Timestamp
	case *command.SetSellingPrice:
		return cc.Timestamp
	default:
		panic(fmt.Sprintf("FATAL: getCommandTimestamp called with unhandled command type %T", cmd))
	}
}

// emptyBatch wraps state-only commands so they still flow the pipeline
func (c *DeterministicCore) emptyBatch(eventRef string, timestamp int64) *ledger.Batch {
	return &ledger.Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  c.sequence,
		Timestamp: timestamp,
		Journals:  []ledger.Journal{},
	}
}

func (c *DeterministicCore) requireAdmin(actor uuid.UUID) error {
	if actor != c.adminID {
		return fmt.Errorf("actor %s: %w", actor, ErrUnauthorized)
	}
	return nil
}

// recomputeConsensus refreshes the stored selling price. Every operation
// that changes the total amount or a vote runs this so the stored value
// is always current when funding closes.
func (c *DeterministicCore) recomputeConsensus(v *vault.Vault, book *vault.Book) {
	v.SellingPrice = fpmath.ComputeConsensusPrice(
		v.InitialPrice,
		v.DefaultExpectedPrice,
		v.TotalAmount,
		book.Votes(),
	)
	if c.metrics != nil {
		c.metrics.ConsensusRecomputes.Inc()
	}
}

func (c *DeterministicCore) handleCreateVault(cmd *command.CreateVault) (*commandResult, error) {
	if err := c.requireAdmin(cmd.Actor); err != nil {
		return nil, err
	}

	now := cmd.Timestamp.UnixMicro()
	v, err := c.registry.Create(cmd.Vault, cmd.Asset, cmd.WindowStart, cmd.WindowEnd,
		cmd.InitialPrice, cmd.DefaultExpectedPrice, now)
	if err != nil {
		return nil, err
	}

	return &commandResult{
		batch:     c.emptyBatch(cmd.IdempotencyKey(), now),
		eventType: event.EventTypeVaultCreated,
		payload: &event.VaultCreated{
			VaultID:              v.ID,
			Collection:           v.Asset.Collection,
			TokenID:              v.Asset.TokenID,
			WindowStart:          v.WindowStart,
			WindowEnd:            v.WindowEnd,
			InitialPrice:         v.InitialPrice,
			DefaultExpectedPrice: v.DefaultExpectedPrice,
		},
	}, nil
}

func (c *DeterministicCore) handleSetVaultState(cmd *command.SetVaultState) (*commandResult, error) {
	if err := c.requireAdmin(cmd.Actor); err != nil {
		return nil, err
	}

	v, err := c.registry.Get(cmd.Vault)
	if err != nil {
		return nil, err
	}

	oldState := v.State
	if _, err := c.registry.SetState(cmd.Vault, cmd.NewState); err != nil {
		return nil, err
	}

	return &commandResult{
		batch:     c.emptyBatch(cmd.IdempotencyKey(), cmd.Timestamp.UnixMicro()),
		eventType: event.EventTypeVaultStateChanged,
		payload: &event.VaultStateChanged{
			VaultID:  v.ID,
			OldState: oldState.String(),
			NewState: cmd.NewState.String(),
		},
	}, nil
}

func (c *DeterministicCore) handleCloseFunding(cmd *command.CloseFunding) (*commandResult, error) {
	if err := c.requireAdmin(cmd.Actor); err != nil {
		return nil, err
	}

	v, _, err := c.registry.RequireFunding(cmd.Vault)
	if err != nil {
		return nil, err
	}

	oldState := v.State
	v.BoughtPrice = cmd.BoughtPrice
	v.State = vault.StateFunded
	v.Version++

	return &commandResult{
		batch:     c.emptyBatch(cmd.IdempotencyKey(), cmd.Timestamp.UnixMicro()),
		eventType: event.EventTypeVaultStateChanged,
		payload: &event.VaultStateChanged{
			VaultID:     v.ID,
			OldState:    oldState.String(),
			NewState:    vault.StateFunded.String(),
			BoughtPrice: cmd.BoughtPrice,
		},
	}, nil
}

func (c *DeterministicCore) handleFinishVault(cmd *command.FinishVault) (*commandResult, error) {
	if err := c.requireAdmin(cmd.Actor); err != nil {
		return nil, err
	}

	v, err := c.registry.Get(cmd.Vault)
	if err != nil {
		return nil, err
	}
	if v.State != vault.StateFunded {
		return nil, vault.ErrVaultCannotBeFinished
	}

	// Explicit guard, no implicit default payout
	if v.TotalAmount == 0 {
		return nil, vault.ErrDivisionByZero
	}

	rewardPool := fpmath.ComputeRewardPool(v.TotalAmount, v.SellingPrice, v.BoughtPrice)
	if rewardPool < 0 {
		return nil, fmt.Errorf("vault %s: reward pool is negative (%d): %w",
			v.ID, rewardPool, vault.ErrVaultCannotBeFinished)
	}

	book, err := c.registry.Book(cmd.Vault)
	if err != nil {
		return nil, err
	}

	participants := book.Participants()
	stakes := book.Stakes()
	rewards := fpmath.ComputeRewards(rewardPool, v.TotalAmount, participants, stakes)

	batch, err := c.journalGen.GenerateSettlement(
		cmd.IdempotencyKey(),
		v.ID,
		v.SellingPrice-v.BoughtPrice,
		rewards,
		cmd.Timestamp.UnixMicro(),
	)
	if err != nil {
		return nil, err
	}

	v.State = vault.StateEnded
	v.Version++

	settled := make([]event.SettledReward, 0, len(rewards))
	for _, r := range rewards {
		settled = append(settled, event.SettledReward{
			Participant: r.Participant,
			Stake:       stakes[r.Participant],
			Reward:      r.Amount,
		})
	}

	return &commandResult{
		batch:     batch,
		eventType: event.EventTypeVaultSettled,
		payload: &event.VaultSettled{
			VaultID:      v.ID,
			TotalAmount:  v.TotalAmount,
			BoughtPrice:  v.BoughtPrice,
			SellingPrice: v.SellingPrice,
			RewardPool:   rewardPool,
			Rewards:      settled,
		},
	}, nil
}

func (c *DeterministicCore) handleDepositToWallet(cmd *command.DepositToWallet) (*commandResult, error) {
	batch, err := c.journalGen.GenerateWalletDeposit(
		cmd.IdempotencyKey(), cmd.Participant, cmd.Amount, cmd.Timestamp.UnixMicro())
	if err != nil {
		return nil, err
	}

	return &commandResult{
		batch:     batch,
		eventType: event.EventTypeWalletDeposited,
		payload: &event.WalletDeposited{
			Participant: cmd.Participant,
			Amount:      cmd.Amount,
			Balance:     c.balanceTracker.GetWalletBalance(cmd.Participant) + cmd.Amount,
		},
	}, nil
}

func (c *DeterministicCore) handleWithdrawFromWallet(cmd *command.WithdrawFromWallet) (*commandResult, error) {
	batch, err := c.journalGen.GenerateWalletWithdrawal(
		cmd.IdempotencyKey(), cmd.Participant, cmd.Amount, cmd.Timestamp.UnixMicro())
	if err != nil {
		return nil, err
	}

	return &commandResult{
		batch:     batch,
		eventType: event.EventTypeWalletWithdrawn,
		payload: &event.WalletWithdrawn{
			Participant: cmd.Participant,
			Amount:      cmd.Amount,
			Balance:     c.balanceTracker.GetWalletBalance(cmd.Participant) - cmd.Amount,
		},
		payouts: []pendingPayout{{participant: cmd.Participant, amount: cmd.Amount}},
	}, nil
}

func (c *DeterministicCore) handleDepositToVault(cmd *command.DepositToVault) (*commandResult, error) {
	v, book, err := c.registry.RequireFunding(cmd.Vault)
	if err != nil {
		return nil, err
	}

	total := cmd.DirectAmount + cmd.WalletAmount

	// The generator rejects zero-value transfers and checks the
	// wallet-sourced portion before any mutation happens
	batch, err := c.journalGen.GenerateVaultDeposit(
		cmd.IdempotencyKey(), cmd.Vault, cmd.Participant,
		cmd.DirectAmount, cmd.WalletAmount, cmd.Timestamp.UnixMicro())
	if err != nil {
		return nil, err
	}

	book.Record(cmd.Participant, total)
	v.TotalAmount += total

	if cmd.ExpectedSellingPrice != 0 {
		// Stake is nonzero at this point, the vote cannot fail
		if err := book.SetVote(cmd.Participant, cmd.ExpectedSellingPrice); err != nil {
			panic(fmt.Sprintf("FATAL: vote after deposit: %v", err))
		}
	}

	c.recomputeConsensus(v, book)
	v.Version++

	return &commandResult{
		batch:     batch,
		eventType: event.EventTypeContributionRecorded,
		payload: &event.ContributionRecorded{
			VaultID:      v.ID,
			Participant:  cmd.Participant,
			DirectAmount: cmd.DirectAmount,
			WalletAmount: cmd.WalletAmount,
			Vote:         cmd.ExpectedSellingPrice,
			Stake:        book.Amount(cmd.Participant),
			TotalAmount:  v.TotalAmount,
			Consensus:    v.SellingPrice,
		},
	}, nil
}

func (c *DeterministicCore) handleWithdrawFromVault(cmd *command.WithdrawFromVault) (*commandResult, error) {
	v, book, err := c.registry.RequireFunding(cmd.Vault)
	if err != nil {
		return nil, err
	}

	total := cmd.ToWalletAmount + cmd.DirectAmount
	if total == 0 {
		return nil, ledger.ErrInvalidMoneyTransfer
	}

	// Validate stake before generating journals so no partial mutation
	// survives a failure
	stake := book.Amount(cmd.Participant)
	if stake == 0 {
		return nil, vault.ErrNoContributionRecorded
	}
	if total > stake {
		return nil, vault.ErrInsufficientContributionInVault
	}

	batch, err := c.journalGen.GenerateVaultWithdrawal(
		cmd.IdempotencyKey(), cmd.Vault, cmd.Participant,
		cmd.ToWalletAmount, cmd.DirectAmount, cmd.Timestamp.UnixMicro())
	if err != nil {
		return nil, err
	}

	if err := book.Remove(cmd.Participant, total); err != nil {
		panic(fmt.Sprintf("FATAL: remove after validation: %v", err))
	}
	v.TotalAmount -= total

	c.recomputeConsensus(v, book)
	v.Version++

	var payouts []pendingPayout
	if cmd.DirectAmount > 0 {
		payouts = []pendingPayout{{participant: cmd.Participant, amount: cmd.DirectAmount}}
	}

	return &commandResult{
		batch:     batch,
		eventType: event.EventTypeContributionWithdrawn,
		payload: &event.ContributionWithdrawn{
			VaultID:        v.ID,
			Participant:    cmd.Participant,
			ToWalletAmount: cmd.ToWalletAmount,
			DirectAmount:   cmd.DirectAmount,
			Stake:          stake - total,
			TotalAmount:    v.TotalAmount,
			Consensus:      v.SellingPrice,
			Evicted:        stake == total,
		},
		payouts: payouts,
	}, nil
}

func (c *DeterministicCore) handleSetSellingPrice(cmd *command.SetSellingPrice) (*commandResult, error) {
	v, book, err := c.registry.RequireFunding(cmd.Vault)
	if err != nil {
		return nil, err
	}

	if err := book.SetVote(cmd.Participant, cmd.Price); err != nil {
		return nil, err
	}

	c.recomputeConsensus(v, book)
	v.Version++

	return &commandResult{
		batch:     c.emptyBatch(cmd.IdempotencyKey(), cmd.Timestamp.UnixMicro()),
		eventType: event.EventTypePriceVoted,
		payload: &event.PriceVoted{
			VaultID:     v.ID,
			Participant: cmd.Participant,
			Vote:        cmd.Price,
			Consensus:   v.SellingPrice,
		},
	}, nil
}

func (c *DeterministicCore) dispatchCommand(cmd command.Command) (*commandResult, error) {
	switch cc := cmd.(type) {
	case *command.CreateVault:
		return c.handleCreateVault(cc)
	case *command.SetVaultState:
		return c.handleSetVaultState(cc)
	case *command.CloseFunding:
		return c.handleCloseFunding(cc)
	case *command.FinishVault:
		return c.handleFinishVault(cc)
	case *command.DepositToWallet:
		return c.handleDepositToWallet(cc)
	case *command.WithdrawFromWallet:
		return c.handleWithdrawFromWallet(cc)
	case *command.DepositToVault:
		return c.handleDepositToVault(cc)
	case *command.WithdrawFromVault:
		return c.handleWithdrawFromVault(cc)
	case *command.SetSellingPrice:
		return c.handleSetSellingPrice(cc)
	default:
		return nil, fmt.Errorf("unknown command type: %T", cmd)
	}
}

// computeStateDigest creates canonical bytes for the state hash: the
// affected account balances plus the affected vault's aggregates
func (c *DeterministicCore) computeStateDigest(batch *ledger.Batch, vaultID *string) []byte {
	// Collect all affected accounts
	affectedAccounts := make(map[ledger.AccountKey]bool)

	if batch != nil {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	// Sort accounts deterministically
	accounts := make([]ledger.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64)

	for _, key := range accounts {
		balance := c.balanceTracker.GetBalance(key)

		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)
		digest = appendInt64LE(digest, balance)
	}

	// Append vault aggregates for vault-scoped commands
	if vaultID != nil {
		if v, err := c.registry.Get(*vaultID); err == nil {
			digest = append(digest, byte(len(v.ID)))
			digest = append(digest, []byte(v.ID)...)
			digest = appendInt64LE(digest, int64(v.State))
			digest = appendInt64LE(digest, v.TotalAmount)
			digest = appendInt64LE(digest, v.SellingPrice)
			digest = appendInt64LE(digest, v.BoughtPrice)
		}
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

// postCheckInvariants validates invariants after batch application
func (c *DeterministicCore) postCheckInvariants(cmd command.Command) error {
	// Affected vault pool never goes negative
	if vaultID := cmd.VaultID(); vaultID != nil {
		if _, err := c.registry.Get(*vaultID); err == nil {
			if err := c.validator.ValidateVaultPoolNonNegative(*vaultID); err != nil {
				return err
			}
		}
	}

	// Vault book totals always match the ledger pool for the affected vault
	if vaultID := cmd.VaultID(); vaultID != nil {
		if v, err := c.registry.Get(*vaultID); err == nil && v.State == vault.StateFunding {
			book, _ := c.registry.Book(*vaultID)
			if book != nil && book.TotalAmount() != v.TotalAmount {
				return fmt.Errorf("vault %s: book total %d != aggregate %d",
					v.ID, book.TotalAmount(), v.TotalAmount)
			}
		}
	}

	// Periodic global zero-sum check
	if c.sequence > 0 && c.sequence%1000 == 0 {
		if err := c.validator.ValidateGlobalBalance(); err != nil {
			return err
		}
	}

	return nil
}

// --- Snapshot Restore & Startup Methods ---

// SnapshotState holds the serializable in-memory state for restore.
// This mirrors persistence.SnapshotData but uses typed fields.
type SnapshotState struct {
	Sequence        int64
	StateHash       [32]byte
	Balances        map[ledger.AccountKey]int64
	Vaults          []vault.Snapshot
	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// RestoreFromSnapshot restores the core's in-memory state from a
// snapshot. On warm restart, load the latest snapshot then replay the
// event log above it.
func (c *DeterministicCore) RestoreFromSnapshot(snap *SnapshotState) {
	c.sequence = snap.Sequence + 1 // Next sequence to assign

	c.hasher.SetPrevHash(snap.StateHash)

	for key, balance := range snap.Balances {
		c.balanceTracker.SetBalance(key, balance)
	}

	for _, vs := range snap.Vaults {
		c.registry.Restore(vs)
	}

	for partition, nextSeq := range snap.SequenceState {
		c.sequenceValidator.RestorePartition(partition, nextSeq)
	}

	c.journalGen.SetSequence(snap.Sequence)
}

// WarmLRU loads recent idempotency keys into the LRU cache
func (c *DeterministicCore) WarmLRU(keys []string) {
	c.idempotency.lru.WarmFromKeys(keys)
}

// GetSequence returns the current global sequence number
func (c *DeterministicCore) GetSequence() int64 {
	return c.sequence
}

// GetSequenceState returns the per-partition expected source sequences,
// used to seed self-generated command sequencing after recovery
func (c *DeterministicCore) GetSequenceState() map[string]int64 {
	return c.sequenceValidator.GetAllPartitions()
}

// GetStateHash returns the current state hash (chain tip)
func (c *DeterministicCore) GetStateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// GetWalletBalance reads a wallet balance from the live tracker
func (c *DeterministicCore) GetWalletBalance(participant uuid.UUID) int64 {
	return c.balanceTracker.GetWalletBalance(participant)
}

// GetVault reads a vault from the live registry
func (c *DeterministicCore) GetVault(id string) (*vault.Vault, error) {
	return c.registry.Get(id)
}

// GetParticipants reads a vault's participant set in iteration order
func (c *DeterministicCore) GetParticipants(id string) ([]uuid.UUID, error) {
	book, err := c.registry.Book(id)
	if err != nil {
		return nil, err
	}
	return book.Participants(), nil
}

// GetContribution reads a participant's stake and vote
func (c *DeterministicCore) GetContribution(id string, participant uuid.UUID) (amount, vote int64, err error) {
	book, err := c.registry.Book(id)
	if err != nil {
		return 0, 0, err
	}
	return book.Amount(participant), book.Vote(participant), nil
}

// CreateSnapshotState captures the current in-memory state for persistence
func (c *DeterministicCore) CreateSnapshotState() *SnapshotState {
	return &SnapshotState{
		Sequence:        c.sequence - 1, // Last processed sequence
		StateHash:       c.hasher.GetPrevHash(),
		Balances:        c.balanceTracker.Snapshot(),
		Vaults:          c.registry.SnapshotAll(),
		SequenceState:   c.sequenceValidator.GetAllPartitions(),
		IdempotencyKeys: c.idempotency.lru.GetAllKeys(),
	}
}
