package command

import (
	"time"

	"github.com/google/uuid"
)

// DepositToWallet credits a participant's spending wallet with directly
// attached value
type DepositToWallet struct {
	CommandID   uuid.UUID
	Participant uuid.UUID
	Amount      int64
	Sequence    int64
	Timestamp   time.Time
}

func (c *DepositToWallet) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *DepositToWallet) CommandType() CommandType {
	return CommandTypeDepositToWallet
}

func (c *DepositToWallet) VaultID() *string {
	return nil // Wallet-only command
}

func (c *DepositToWallet) SourceSequence() int64 {
	return c.Sequence
}

// WithdrawFromWallet debits a participant's spending wallet and
// transfers the amount out of the system
type WithdrawFromWallet struct {
	CommandID   uuid.UUID
	Participant uuid.UUID
	Amount      int64
	Sequence    int64
	Timestamp   time.Time
}

func (c *WithdrawFromWallet) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *WithdrawFromWallet) CommandType() CommandType {
	return CommandTypeWithdrawFromWallet
}

func (c *WithdrawFromWallet) VaultID() *string {
	return nil
}

func (c *WithdrawFromWallet) SourceSequence() int64 {
	return c.Sequence
}
