package ledger

import "github.com/google/uuid"

// PayoutSink receives outbound value transfers. Implementations hand
// control to externally-supplied code (custody bridge, on-chain
// transfer) and may attempt to call back into the engine before
// returning.
type PayoutSink interface {
	Transfer(participant uuid.UUID, amount int64) error
}

// TransferGuard enforces the value-transfer discipline: every guarded
// entry point sets the reentrancy flag for its full duration, and
// outbound transfers are issued only after all ledger debits have been
// applied. A nested call into a guarded entry point fails immediately
// with ErrReentrantCall.
type TransferGuard struct {
	entered bool
	sink    PayoutSink
}

func NewTransferGuard(sink PayoutSink) *TransferGuard {
	return &TransferGuard{sink: sink}
}

// Enter acquires the reentrancy flag. Execution is globally serialized,
// so check-then-set is atomic here; the flag only trips when an outbound
// transfer re-enters mid-call.
func (g *TransferGuard) Enter() error {
	if g.entered {
		return ErrReentrantCall
	}
	g.entered = true
	return nil
}

// Exit releases the reentrancy flag
func (g *TransferGuard) Exit() {
	g.entered = false
}

// Payout issues the outbound transfer for an already-debited amount.
// Callers must hold the guard and must have applied the debit journals
// first.
func (g *TransferGuard) Payout(participant uuid.UUID, amount int64) error {
	if g.sink == nil || amount == 0 {
		return nil
	}
	return g.sink.Transfer(participant, amount)
}
