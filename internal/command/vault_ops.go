package command

import (
	"time"

	"github.com/google/uuid"
)

// DepositToVault records a contribution. DirectAmount is attached value,
// WalletAmount is pulled from the spending wallet; any mix is allowed as
// long as the total is nonzero. ExpectedSellingPrice 0 means no vote is
// cast with this deposit.
type DepositToVault struct {
	CommandID            uuid.UUID
	Participant          uuid.UUID
	Vault                string
	DirectAmount         int64
	WalletAmount         int64
	ExpectedSellingPrice int64
	Sequence             int64
	Timestamp            time.Time
}

func (c *DepositToVault) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *DepositToVault) CommandType() CommandType {
	return CommandTypeDepositToVault
}

func (c *DepositToVault) VaultID() *string {
	s := c.Vault
	return &s
}

func (c *DepositToVault) SourceSequence() int64 {
	return c.Sequence
}

// WithdrawFromVault removes part or all of a participant's stake.
// ToWalletAmount is credited to the spending wallet, DirectAmount leaves
// the system.
type WithdrawFromVault struct {
	CommandID      uuid.UUID
	Participant    uuid.UUID
	Vault          string
	ToWalletAmount int64
	DirectAmount   int64
	Sequence       int64
	Timestamp      time.Time
}

func (c *WithdrawFromVault) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *WithdrawFromVault) CommandType() CommandType {
	return CommandTypeWithdrawFromVault
}

func (c *WithdrawFromVault) VaultID() *string {
	s := c.Vault
	return &s
}

func (c *WithdrawFromVault) SourceSequence() int64 {
	return c.Sequence
}

// SetSellingPrice overwrites a participant's expected selling price vote
type SetSellingPrice struct {
	CommandID   uuid.UUID
	Participant uuid.UUID
	Vault       string
	Price       int64
	Sequence    int64
	Timestamp   time.Time
}

func (c *SetSellingPrice) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *SetSellingPrice) CommandType() CommandType {
	return CommandTypeSetSellingPrice
}

func (c *SetSellingPrice) VaultID() *string {
	s := c.Vault
	return &s
}

func (c *SetSellingPrice) SourceSequence() int64 {
	return c.Sequence
}
