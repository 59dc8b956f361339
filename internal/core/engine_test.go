package core_test

import (
	"CoVault/internal/command"
	"CoVault/internal/core"
	"CoVault/internal/event"
	"CoVault/internal/ingestion"
	"CoVault/internal/ledger"
	"CoVault/internal/observability"
	"CoVault/internal/vault"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

// --- Test helpers ---

var testAdmin = uuid.MustParse("00000000-0000-0000-0000-00000000ad31")

const (
	testNow         = int64(1_000_000) // epoch micros
	testWindowStart = int64(1_000_000)
	testWindowEnd   = int64(9_000_000)
)

// captureSink records outbound transfers instead of moving real value
type captureSink struct {
	transfers []struct {
		participant uuid.UUID
		amount      int64
	}
}

func (s *captureSink) Transfer(participant uuid.UUID, amount int64) error {
	s.transfers = append(s.transfers, struct {
		participant uuid.UUID
		amount      int64
	}{participant, amount})
	return nil
}

// newTestCore creates a DeterministicCore with buffered channels and no DB checker.
func newTestCore() (*core.DeterministicCore, *captureSink, chan core.CoreOutput, chan core.CoreOutput) {
	persistChan := make(chan core.CoreOutput, 1024)
	projChan := make(chan core.CoreOutput, 1024)
	sink := &captureSink{}
	c := core.NewDeterministicCore(0, testAdmin, sink, persistChan, projChan, nil, nil)
	return c, sink, persistChan, projChan
}

func mustCreateVault(actor uuid.UUID, vaultID string, initialPrice, defaultPrice, seq int64) *command.CreateVault {
	return &command.CreateVault{
		CommandID:            uuid.New(),
		Actor:                actor,
		Vault:                vaultID,
		Asset:                vault.AssetRef{Collection: "gallery", TokenID: 7},
		WindowStart:          testWindowStart,
		WindowEnd:            testWindowEnd,
		InitialPrice:         initialPrice,
		DefaultExpectedPrice: defaultPrice,
		Sequence:             seq,
		Timestamp:            time.UnixMicro(testNow),
	}
}

func mustWalletDeposit(participant uuid.UUID, amount, seq int64) *command.DepositToWallet {
	return &command.DepositToWallet{
		CommandID:   uuid.New(),
		Participant: participant,
		Amount:      amount,
		Sequence:    seq,
		Timestamp:   time.UnixMicro(testNow + seq*1000),
	}
}

func mustWalletWithdraw(participant uuid.UUID, amount, seq int64) *command.WithdrawFromWallet {
	return &command.WithdrawFromWallet{
		CommandID:   uuid.New(),
		Participant: participant,
		Amount:      amount,
		Sequence:    seq,
		Timestamp:   time.UnixMicro(testNow + seq*1000),
	}
}

func mustVaultDeposit(participant uuid.UUID, vaultID string, direct, fromWallet, vote, seq int64) *command.DepositToVault {
	return &command.DepositToVault{
		CommandID:            uuid.New(),
		Participant:          participant,
		Vault:                vaultID,
		DirectAmount:         direct,
		WalletAmount:         fromWallet,
		ExpectedSellingPrice: vote,
		Sequence:             seq,
		Timestamp:            time.UnixMicro(testNow + seq*1000),
	}
}

func mustVaultWithdraw(participant uuid.UUID, vaultID string, toWallet, direct, seq int64) *command.WithdrawFromVault {
	return &command.WithdrawFromVault{
		CommandID:      uuid.New(),
		Participant:    participant,
		Vault:          vaultID,
		ToWalletAmount: toWallet,
		DirectAmount:   direct,
		Sequence:       seq,
		Timestamp:      time.UnixMicro(testNow + seq*1000),
	}
}

func mustVote(participant uuid.UUID, vaultID string, price, seq int64) *command.SetSellingPrice {
	return &command.SetSellingPrice{
		CommandID:   uuid.New(),
		Participant: participant,
		Vault:       vaultID,
		Price:       price,
		Sequence:    seq,
		Timestamp:   time.UnixMicro(testNow + seq*1000),
	}
}

func mustCloseFunding(vaultID string, boughtPrice, seq int64) *command.CloseFunding {
	return &command.CloseFunding{
		CommandID:   uuid.New(),
		Actor:       testAdmin,
		Vault:       vaultID,
		BoughtPrice: boughtPrice,
		Sequence:    seq,
		Timestamp:   time.UnixMicro(testNow + seq*1000),
	}
}

func mustFinishVault(vaultID string, seq int64) *command.FinishVault {
	return &command.FinishVault{
		CommandID: uuid.New(),
		Actor:     testAdmin,
		Vault:     vaultID,
		Sequence:  seq,
		Timestamp: time.UnixMicro(testNow + seq*1000),
	}
}

func drainOutputs(ch chan core.CoreOutput) []core.CoreOutput {
	var outputs []core.CoreOutput
	for {
		select {
		case o := <-ch:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}

// ============================================================================
// Test: Vault Creation
// ============================================================================

func TestCreateVault_AdminOnly(t *testing.T) {
	c, _, persistCh, _ := newTestCore()

	err := c.ProcessCommand(mustCreateVault(uuid.New(), "v1", 2000, 2500, 0))
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if outputs := drainOutputs(persistCh); len(outputs) != 0 {
		t.Fatalf("expected 0 outputs for rejected command, got %d", len(outputs))
	}
}

func TestCreateVault_StartsInFunding(t *testing.T) {
	c, _, persistCh, _ := newTestCore()

	// The rejected attempt above consumed nothing here; this core is fresh
	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	v, err := c.GetVault("v1")
	if err != nil {
		t.Fatalf("GetVault failed: %v", err)
	}
	if v.State != vault.StateFunding {
		t.Errorf("expected Funding, got %v", v.State)
	}
	if v.TotalAmount != 0 {
		t.Errorf("expected zero total, got %d", v.TotalAmount)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	if outputs[0].Envelope.EventType != event.EventTypeVaultCreated {
		t.Errorf("expected VaultCreated, got %v", outputs[0].Envelope.EventType)
	}
	if len(outputs[0].Batch.Journals) != 0 {
		t.Errorf("expected empty batch for state-only command, got %d journals", len(outputs[0].Batch.Journals))
	}
}

func TestCreateVault_Duplicate_Fails(t *testing.T) {
	c, _, _, _ := newTestCore()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 1))
	if !errors.Is(err, vault.ErrVaultAlreadyExists) {
		t.Fatalf("expected ErrVaultAlreadyExists, got %v", err)
	}
}

// ============================================================================
// Test: Spending Wallet Flow
// ============================================================================

func TestWallet_DepositThenWithdraw(t *testing.T) {
	c, sink, persistCh, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustWalletDeposit(participant, 1000, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if got := c.GetWalletBalance(participant); got != 1000 {
		t.Errorf("balance after deposit: got %d, want 1000", got)
	}
	drainOutputs(persistCh)

	if err := c.ProcessCommand(mustWalletWithdraw(participant, 400, 1)); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if got := c.GetWalletBalance(participant); got != 600 {
		t.Errorf("balance after withdraw: got %d, want 600", got)
	}

	// The withdrawn amount left the system through the sink
	if len(sink.transfers) != 1 {
		t.Fatalf("expected 1 outbound transfer, got %d", len(sink.transfers))
	}
	if sink.transfers[0].participant != participant || sink.transfers[0].amount != 400 {
		t.Errorf("unexpected transfer: %+v", sink.transfers[0])
	}
}

func TestWallet_Overdraw_Fails(t *testing.T) {
	c, sink, _, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustWalletDeposit(participant, 100, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	err := c.ProcessCommand(mustWalletWithdraw(participant, 101, 1))
	if !errors.Is(err, ledger.ErrInsufficientSpendingWalletBalance) {
		t.Fatalf("expected ErrInsufficientSpendingWalletBalance, got %v", err)
	}

	if got := c.GetWalletBalance(participant); got != 100 {
		t.Errorf("failed withdraw must not change balance: got %d, want 100", got)
	}
	if len(sink.transfers) != 0 {
		t.Errorf("no transfer may happen on failure, got %d", len(sink.transfers))
	}
}

// ============================================================================
// Test: Contributions & Consensus
// ============================================================================

func TestVaultDeposit_RecomputesConsensus(t *testing.T) {
	c, _, persistCh, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	drainOutputs(persistCh)

	// Single contributor: 1000 staked voting 3000 against an initial price
	// of 2000 with default expectation 2500. The remaining 1000 of raise
	// capacity is priced at the default:
	// (3000*1000 + 1000*2500) / 2000 = 2750
	if err := c.ProcessCommand(mustVaultDeposit(participant, "v1", 1000, 0, 3000, 1)); err != nil {
		t.Fatalf("vault deposit failed: %v", err)
	}

	v, _ := c.GetVault("v1")
	if v.TotalAmount != 1000 {
		t.Errorf("total: got %d, want 1000", v.TotalAmount)
	}
	if v.SellingPrice != 2750 {
		t.Errorf("consensus: got %d, want 2750", v.SellingPrice)
	}

	amount, vote, err := c.GetContribution("v1", participant)
	if err != nil {
		t.Fatalf("GetContribution failed: %v", err)
	}
	if amount != 1000 || vote != 3000 {
		t.Errorf("contribution: got (%d, %d), want (1000, 3000)", amount, vote)
	}
}

func TestVaultDeposit_CombinedSources(t *testing.T) {
	c, _, _, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustWalletDeposit(participant, 300, 0)); err != nil {
		t.Fatalf("wallet deposit failed: %v", err)
	}
	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// 500 attached directly plus 300 pulled from the wallet
	if err := c.ProcessCommand(mustVaultDeposit(participant, "v1", 500, 300, 0, 1)); err != nil {
		t.Fatalf("vault deposit failed: %v", err)
	}

	if got := c.GetWalletBalance(participant); got != 0 {
		t.Errorf("wallet after combined deposit: got %d, want 0", got)
	}
	amount, _, _ := c.GetContribution("v1", participant)
	if amount != 800 {
		t.Errorf("stake: got %d, want 800", amount)
	}
}

func TestVaultDeposit_NotFunding_Fails(t *testing.T) {
	c, _, _, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := c.ProcessCommand(mustVaultDeposit(participant, "v1", 100, 0, 0, 1)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := c.ProcessCommand(mustCloseFunding("v1", 900, 2)); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	err := c.ProcessCommand(mustVaultDeposit(participant, "v1", 100, 0, 0, 3))
	if !errors.Is(err, vault.ErrVaultNotInFundingProcess) {
		t.Fatalf("expected ErrVaultNotInFundingProcess, got %v", err)
	}
}

func TestVaultDeposit_AtomicFailure_NoPartialState(t *testing.T) {
	c, _, persistCh, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	drainOutputs(persistCh)

	// Wallet is empty; the wallet-sourced half must fail the whole command
	err := c.ProcessCommand(mustVaultDeposit(participant, "v1", 500, 500, 3000, 1))
	if !errors.Is(err, ledger.ErrInsufficientSpendingWalletBalance) {
		t.Fatalf("expected ErrInsufficientSpendingWalletBalance, got %v", err)
	}

	v, _ := c.GetVault("v1")
	if v.TotalAmount != 0 {
		t.Errorf("total after failed deposit: got %d, want 0", v.TotalAmount)
	}
	participants, _ := c.GetParticipants("v1")
	if len(participants) != 0 {
		t.Errorf("participant set must stay empty, got %d entries", len(participants))
	}
	if outputs := drainOutputs(persistCh); len(outputs) != 0 {
		t.Errorf("expected 0 outputs for failed command, got %d", len(outputs))
	}
}

func TestVote_RequiresStake(t *testing.T) {
	c, _, _, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err := c.ProcessCommand(mustVote(participant, "v1", 3000, 1))
	if !errors.Is(err, vault.ErrNoContributionRecorded) {
		t.Fatalf("expected ErrNoContributionRecorded, got %v", err)
	}
}

func TestVote_UpdatesConsensus(t *testing.T) {
	c, _, _, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := c.ProcessCommand(mustVaultDeposit(participant, "v1", 1000, 0, 0, 1)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	if err := c.ProcessCommand(mustVote(participant, "v1", 3000, 2)); err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	v, _ := c.GetVault("v1")
	if v.SellingPrice != 2750 {
		t.Errorf("consensus after vote: got %d, want 2750", v.SellingPrice)
	}
}

// ============================================================================
// Test: Vault Withdrawal
// ============================================================================

func TestVaultWithdraw_FullStake_Evicts(t *testing.T) {
	c, sink, _, _ := newTestCore()
	a, b := uuid.New(), uuid.New()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := c.ProcessCommand(mustVaultDeposit(a, "v1", 600, 0, 0, 1)); err != nil {
		t.Fatalf("deposit a failed: %v", err)
	}
	if err := c.ProcessCommand(mustVaultDeposit(b, "v1", 400, 0, 0, 2)); err != nil {
		t.Fatalf("deposit b failed: %v", err)
	}

	if err := c.ProcessCommand(mustVaultWithdraw(a, "v1", 0, 600, 3)); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	participants, _ := c.GetParticipants("v1")
	if len(participants) != 1 || participants[0] != b {
		t.Errorf("expected participant set [b], got %v", participants)
	}
	v, _ := c.GetVault("v1")
	if v.TotalAmount != 400 {
		t.Errorf("total: got %d, want 400", v.TotalAmount)
	}
	if len(sink.transfers) != 1 || sink.transfers[0].amount != 600 {
		t.Errorf("expected direct payout of 600, got %+v", sink.transfers)
	}
}

func TestVaultWithdraw_ToWallet(t *testing.T) {
	c, sink, _, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := c.ProcessCommand(mustVaultDeposit(participant, "v1", 500, 0, 0, 1)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	if err := c.ProcessCommand(mustVaultWithdraw(participant, "v1", 200, 0, 2)); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	if got := c.GetWalletBalance(participant); got != 200 {
		t.Errorf("wallet: got %d, want 200", got)
	}
	amount, _, _ := c.GetContribution("v1", participant)
	if amount != 300 {
		t.Errorf("remaining stake: got %d, want 300", amount)
	}
	// Wallet-directed withdrawal stays inside the system
	if len(sink.transfers) != 0 {
		t.Errorf("expected no outbound transfer, got %d", len(sink.transfers))
	}
}

func TestVaultWithdraw_Failures(t *testing.T) {
	c, _, _, _ := newTestCore()
	participant, stranger := uuid.New(), uuid.New()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := c.ProcessCommand(mustVaultDeposit(participant, "v1", 500, 0, 0, 1)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	err := c.ProcessCommand(mustVaultWithdraw(stranger, "v1", 0, 100, 2))
	if !errors.Is(err, vault.ErrNoContributionRecorded) {
		t.Fatalf("expected ErrNoContributionRecorded, got %v", err)
	}

	// The rejected command burned source sequence 2 upstream; the
	// resulting gap is tolerated and 3 is accepted
	err = c.ProcessCommand(mustVaultWithdraw(participant, "v1", 0, 501, 3))
	if !errors.Is(err, vault.ErrInsufficientContributionInVault) {
		t.Fatalf("expected ErrInsufficientContributionInVault, got %v", err)
	}

	amount, _, _ := c.GetContribution("v1", participant)
	if amount != 500 {
		t.Errorf("stake must be untouched: got %d, want 500", amount)
	}
}

// ============================================================================
// Test: Settlement Lifecycle
// ============================================================================

func TestLifecycle_CreateFundCloseFinish(t *testing.T) {
	c, _, persistCh, _ := newTestCore()
	a, b := uuid.New(), uuid.New()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := c.ProcessCommand(mustVaultDeposit(a, "v1", 700, 0, 0, 1)); err != nil {
		t.Fatalf("deposit a failed: %v", err)
	}
	if err := c.ProcessCommand(mustVaultDeposit(b, "v1", 300, 0, 0, 2)); err != nil {
		t.Fatalf("deposit b failed: %v", err)
	}

	// No votes, T=1000 against P=2000: consensus = (2000-1000)*2500/2000 = 1250
	v, _ := c.GetVault("v1")
	if v.SellingPrice != 1250 {
		t.Fatalf("consensus before close: got %d, want 1250", v.SellingPrice)
	}

	if err := c.ProcessCommand(mustCloseFunding("v1", 900, 3)); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	v, _ = c.GetVault("v1")
	if v.State != vault.StateFunded || v.BoughtPrice != 900 {
		t.Fatalf("after close: state=%v bought=%d", v.State, v.BoughtPrice)
	}
	drainOutputs(persistCh)

	// Reward pool = 1000 + 1250 - 900 = 1350; a gets 945, b gets 405
	if err := c.ProcessCommand(mustFinishVault("v1", 4)); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	v, _ = c.GetVault("v1")
	if v.State != vault.StateEnded {
		t.Errorf("after finish: got %v, want Ended", v.State)
	}
	if got := c.GetWalletBalance(a); got != 945 {
		t.Errorf("reward a: got %d, want 945", got)
	}
	if got := c.GetWalletBalance(b); got != 405 {
		t.Errorf("reward b: got %d, want 405", got)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 settlement output, got %d", len(outputs))
	}
	if outputs[0].Envelope.EventType != event.EventTypeVaultSettled {
		t.Errorf("expected VaultSettled, got %v", outputs[0].Envelope.EventType)
	}
	// Proceeds delta plus one reward journal per participant
	if got := len(outputs[0].Batch.Journals); got != 3 {
		t.Errorf("settlement journals: got %d, want 3", got)
	}
}

func TestFinish_RequiresFunded(t *testing.T) {
	c, _, _, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := c.ProcessCommand(mustVaultDeposit(participant, "v1", 500, 0, 0, 1)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	err := c.ProcessCommand(mustFinishVault("v1", 2))
	if !errors.Is(err, vault.ErrVaultCannotBeFinished) {
		t.Fatalf("expected ErrVaultCannotBeFinished, got %v", err)
	}
}

func TestFinish_EmptyVault_DivisionByZero(t *testing.T) {
	c, _, _, _ := newTestCore()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := c.ProcessCommand(mustCloseFunding("v1", 0, 1)); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	err := c.ProcessCommand(mustFinishVault("v1", 2))
	if !errors.Is(err, vault.ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

// ============================================================================
// Test: Reentrancy
// ============================================================================

// reenteringSink attempts a nested withdrawal from inside the outbound
// transfer callback, imitating hostile externally supplied code
type reenteringSink struct {
	core      *core.DeterministicCore
	target    uuid.UUID
	nestedErr error
	calls     int
}

func (s *reenteringSink) Transfer(participant uuid.UUID, amount int64) error {
	s.calls++
	if s.calls == 1 {
		s.nestedErr = s.core.ProcessCommand(mustWalletWithdraw(s.target, 1, 99))
	}
	return nil
}

func TestReentrancy_NestedCallRejected(t *testing.T) {
	persistChan := make(chan core.CoreOutput, 1024)
	projChan := make(chan core.CoreOutput, 1024)
	sink := &reenteringSink{}
	c := core.NewDeterministicCore(0, testAdmin, sink, persistChan, projChan, nil, nil)
	sink.core = c

	participant := uuid.New()
	sink.target = participant

	if err := c.ProcessCommand(mustWalletDeposit(participant, 1000, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	if err := c.ProcessCommand(mustWalletWithdraw(participant, 400, 1)); err != nil {
		t.Fatalf("outer withdraw failed: %v", err)
	}

	if !errors.Is(sink.nestedErr, ledger.ErrReentrantCall) {
		t.Fatalf("expected nested call to fail with ErrReentrantCall, got %v", sink.nestedErr)
	}
	// The outer withdrawal committed exactly once
	if got := c.GetWalletBalance(participant); got != 600 {
		t.Errorf("balance: got %d, want 600", got)
	}

	// The guard releases after the outer call returns
	if err := c.ProcessCommand(mustWalletWithdraw(participant, 100, 2)); err != nil {
		t.Fatalf("withdraw after reentrancy attempt failed: %v", err)
	}
}

// ============================================================================
// Test: Idempotency & Ordering
// ============================================================================

func TestIdempotency_DuplicateCommand_Ignored(t *testing.T) {
	c, _, persistCh, _ := newTestCore()
	participant := uuid.New()

	deposit := mustWalletDeposit(participant, 1000, 0)

	if err := c.ProcessCommand(deposit); err != nil {
		t.Fatalf("first deposit failed: %v", err)
	}
	if got := drainOutputs(persistCh); len(got) != 1 {
		t.Fatalf("expected 1 output on first process, got %d", len(got))
	}

	if err := c.ProcessCommand(deposit); err != nil {
		t.Fatalf("duplicate deposit should not error: %v", err)
	}
	if got := drainOutputs(persistCh); len(got) != 0 {
		t.Errorf("expected 0 outputs for duplicate, got %d", len(got))
	}
	if got := c.GetWalletBalance(participant); got != 1000 {
		t.Errorf("duplicate must not double-apply: got %d, want 1000", got)
	}
}

func TestSequenceValidation_OutOfOrderRejected(t *testing.T) {
	c, _, persistCh, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustWalletDeposit(participant, 100, 0)); err != nil {
		t.Fatalf("seq 0 failed: %v", err)
	}

	// Sequence 1 was burned by a rejected attempt upstream; the gap is
	// tolerated and 2 applies
	if err := c.ProcessCommand(mustWalletDeposit(participant, 100, 2)); err != nil {
		t.Fatalf("burned-sequence gap must be tolerated: %v", err)
	}
	drainOutputs(persistCh)

	// A new command with a stale sequence is rejected
	if err := c.ProcessCommand(mustWalletDeposit(participant, 100, 1)); err == nil {
		t.Fatal("expected out-of-order rejection, got nil")
	}
	if got := drainOutputs(persistCh); len(got) != 0 {
		t.Errorf("expected 0 outputs for out-of-order command, got %d", len(got))
	}
}

func TestSequenceValidation_RejectionDoesNotAdvance(t *testing.T) {
	c, _, _, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustWalletDeposit(participant, 100, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	// Rejected on a precondition: must leave the partition sequence alone
	err := c.ProcessCommand(mustWalletWithdraw(participant, 500, 1))
	if !errors.Is(err, ledger.ErrInsufficientSpendingWalletBalance) {
		t.Fatalf("expected ErrInsufficientSpendingWalletBalance, got %v", err)
	}

	// A corrected retry may reuse the rejected sequence
	if err := c.ProcessCommand(mustWalletWithdraw(participant, 50, 1)); err != nil {
		t.Fatalf("retry on rejected sequence failed: %v", err)
	}
	if got := c.GetWalletBalance(participant); got != 50 {
		t.Errorf("balance: got %d, want 50", got)
	}
}

// Rejected commands write no event, so a recorded log has source-sequence
// gaps around them. Replaying such a log into a fresh core must succeed
// and converge on the same chain tip.
func TestReplay_ToleratesRejectedCommandGap(t *testing.T) {
	c, _, persistCh, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// The wallet-sourced half fails on an empty wallet, burning sequence 1
	err := c.ProcessCommand(mustVaultDeposit(participant, "v1", 0, 500, 0, 1))
	if !errors.Is(err, ledger.ErrInsufficientSpendingWalletBalance) {
		t.Fatalf("expected ErrInsufficientSpendingWalletBalance, got %v", err)
	}

	if err := c.ProcessCommand(mustVaultDeposit(participant, "v1", 300, 0, 0, 2)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 2 {
		t.Fatalf("expected 2 stored events, got %d", len(outputs))
	}

	persistChan2 := make(chan core.CoreOutput, 1024)
	projChan2 := make(chan core.CoreOutput, 1024)
	c2 := core.NewDeterministicCore(0, testAdmin, &captureSink{}, persistChan2, projChan2, nil, nil)

	for i, o := range outputs {
		env := o.Envelope
		cmd, err := ingestion.CommandFromStoredEvent(
			env.EventType.String(), env.IdempotencyKey, env.SourceSequence,
			env.Timestamp, env.Payload, testAdmin)
		if err != nil {
			t.Fatalf("reconstruct command %d: %v", i, err)
		}
		if err := c2.ProcessCommand(cmd); err != nil {
			t.Fatalf("replay command %d: %v", i, err)
		}
	}

	if c2.GetStateHash() != c.GetStateHash() {
		t.Error("state hash diverged after replaying around the rejection")
	}
	v, err := c2.GetVault("v1")
	if err != nil {
		t.Fatalf("replayed vault missing: %v", err)
	}
	if v.TotalAmount != 300 {
		t.Errorf("replayed total: got %d, want 300", v.TotalAmount)
	}
}

// ============================================================================
// Test: State Hash Chain
// ============================================================================

func TestStateHashChain_Deterministic(t *testing.T) {
	participant := uuid.New()
	createID := uuid.New()
	depositID := uuid.New()

	run := func() [][32]byte {
		c, _, persistCh, _ := newTestCore()

		create := mustCreateVault(testAdmin, "v1", 2000, 2500, 0)
		create.CommandID = createID
		if err := c.ProcessCommand(create); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		deposit := mustVaultDeposit(participant, "v1", 1000, 0, 3000, 1)
		deposit.CommandID = depositID
		if err := c.ProcessCommand(deposit); err != nil {
			t.Fatalf("deposit failed: %v", err)
		}

		outputs := drainOutputs(persistCh)
		hashes := make([][32]byte, len(outputs))
		for i, o := range outputs {
			hashes[i] = o.Envelope.StateHash
		}
		return hashes
	}

	hashes1 := run()
	hashes2 := run()

	if len(hashes1) != len(hashes2) {
		t.Fatalf("different number of outputs: %d vs %d", len(hashes1), len(hashes2))
	}
	for i := range hashes1 {
		if hashes1[i] != hashes2[i] {
			t.Errorf("hash %d differs: %x vs %x", i, hashes1[i], hashes2[i])
		}
	}
}

func TestStateHashChain_Linked(t *testing.T) {
	c, _, persistCh, _ := newTestCore()
	participant := uuid.New()

	for i := int64(0); i < 3; i++ {
		if err := c.ProcessCommand(mustWalletDeposit(participant, 100, i)); err != nil {
			t.Fatalf("deposit %d failed: %v", i, err)
		}
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 3 {
		t.Fatalf("expected 3 outputs, got %d", len(outputs))
	}
	for i := 1; i < len(outputs); i++ {
		if outputs[i].Envelope.PrevHash != outputs[i-1].Envelope.StateHash {
			t.Errorf("envelope %d prev_hash does not chain to envelope %d state_hash", i, i-1)
		}
	}
}

// ============================================================================
// Test: Snapshot & Restore
// ============================================================================

func TestSnapshotRestore_ResumesProcessing(t *testing.T) {
	c, _, persistCh, _ := newTestCore()
	participant := uuid.New()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	deposit := mustVaultDeposit(participant, "v1", 1000, 0, 3000, 1)
	if err := c.ProcessCommand(deposit); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	drainOutputs(persistCh)

	snap := c.CreateSnapshotState()

	// Bring up a fresh core from the snapshot
	persistChan2 := make(chan core.CoreOutput, 1024)
	projChan2 := make(chan core.CoreOutput, 1024)
	c2 := core.NewDeterministicCore(0, testAdmin, &captureSink{}, persistChan2, projChan2, nil, nil)
	c2.RestoreFromSnapshot(snap)
	c2.WarmLRU(snap.IdempotencyKeys)

	if c2.GetSequence() != c.GetSequence() {
		t.Errorf("sequence: got %d, want %d", c2.GetSequence(), c.GetSequence())
	}
	if c2.GetStateHash() != c.GetStateHash() {
		t.Error("state hash mismatch after restore")
	}
	v, err := c2.GetVault("v1")
	if err != nil {
		t.Fatalf("restored vault missing: %v", err)
	}
	if v.TotalAmount != 1000 || v.SellingPrice != 2750 {
		t.Errorf("restored vault: total=%d consensus=%d", v.TotalAmount, v.SellingPrice)
	}

	// A replayed command from before the snapshot is a no-op
	if err := c2.ProcessCommand(deposit); err != nil {
		t.Fatalf("replayed duplicate should not error: %v", err)
	}
	if got := drainOutputs(persistChan2); len(got) != 0 {
		t.Errorf("expected 0 outputs for replayed duplicate, got %d", len(got))
	}

	// New commands continue on the restored partition sequence
	if err := c2.ProcessCommand(mustVaultDeposit(participant, "v1", 500, 0, 0, 2)); err != nil {
		t.Fatalf("post-restore deposit failed: %v", err)
	}
	v, _ = c2.GetVault("v1")
	if v.TotalAmount != 1500 {
		t.Errorf("total after post-restore deposit: got %d, want 1500", v.TotalAmount)
	}
}

// ============================================================================
// Test: Projection Channel (non-blocking drop)
// ============================================================================

func TestProjectionChannel_DropsOnFull(t *testing.T) {
	persistChan := make(chan core.CoreOutput, 1024)
	projChan := make(chan core.CoreOutput, 1) // Tiny buffer — will fill up
	c := core.NewDeterministicCore(0, testAdmin, &captureSink{}, persistChan, projChan, nil, nil)

	participant := uuid.New()
	for i := int64(0); i < 5; i++ {
		if err := c.ProcessCommand(mustWalletDeposit(participant, 100, i)); err != nil {
			t.Fatalf("deposit %d failed: %v", i, err)
		}
	}

	// All 5 commands applied (projection drops are silent)
	if got := drainOutputs(persistChan); len(got) != 5 {
		t.Errorf("expected 5 persist outputs, got %d", len(got))
	}
}

// ============================================================================
// Test: Metrics
// ============================================================================

// NewMetrics registers into the default prometheus registry, so exactly
// one test constructs it per test binary.
func TestConsensusRecomputes_Counted(t *testing.T) {
	metrics := observability.NewMetrics()
	persistChan := make(chan core.CoreOutput, 1024)
	projChan := make(chan core.CoreOutput, 1024)
	c := core.NewDeterministicCore(0, testAdmin, &captureSink{}, persistChan, projChan, nil, metrics)
	participant := uuid.New()

	if err := c.ProcessCommand(mustCreateVault(testAdmin, "v1", 2000, 2500, 0)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	before := promtest.ToFloat64(metrics.ConsensusRecomputes)

	// One recompute for the deposit (vote included), one for the re-vote
	if err := c.ProcessCommand(mustVaultDeposit(participant, "v1", 1000, 0, 3000, 1)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := c.ProcessCommand(mustVote(participant, "v1", 2800, 2)); err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	if got := promtest.ToFloat64(metrics.ConsensusRecomputes) - before; got != 2 {
		t.Errorf("consensus recomputes: got %v, want 2", got)
	}
}
