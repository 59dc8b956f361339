package command

import (
	"time"

	"CoVault/internal/vault"

	"github.com/google/uuid"
)

// CreateVault inserts a new vault. Administrator-only; Actor is checked
// against the configured admin identity before dispatch.
type CreateVault struct {
	CommandID            uuid.UUID
	Actor                uuid.UUID
	Vault                string
	Asset                vault.AssetRef
	WindowStart          int64 // epoch microseconds
	WindowEnd            int64
	InitialPrice         int64
	DefaultExpectedPrice int64
	Sequence             int64
	Timestamp            time.Time
}

func (c *CreateVault) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *CreateVault) CommandType() CommandType {
	return CommandTypeCreateVault
}

func (c *CreateVault) VaultID() *string {
	s := c.Vault
	return &s
}

func (c *CreateVault) SourceSequence() int64 {
	return c.Sequence
}

// SetVaultState forces a vault into an arbitrary state. No transition
// table is applied.
type SetVaultState struct {
	CommandID uuid.UUID
	Actor     uuid.UUID
	Vault     string
	NewState  vault.State
	Sequence  int64
	Timestamp time.Time
}

func (c *SetVaultState) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *SetVaultState) CommandType() CommandType {
	return CommandTypeSetVaultState
}

func (c *SetVaultState) VaultID() *string {
	s := c.Vault
	return &s
}

func (c *SetVaultState) SourceSequence() int64 {
	return c.Sequence
}

// CloseFunding stamps the purchase price reported by the marketplace
// collaborator and advances the vault to Funded
type CloseFunding struct {
	CommandID   uuid.UUID
	Actor       uuid.UUID
	Vault       string
	BoughtPrice int64
	Sequence    int64
	Timestamp   time.Time
}

func (c *CloseFunding) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *CloseFunding) CommandType() CommandType {
	return CommandTypeCloseFunding
}

func (c *CloseFunding) VaultID() *string {
	s := c.Vault
	return &s
}

func (c *CloseFunding) SourceSequence() int64 {
	return c.Sequence
}

// FinishVault settles a funded vault: computes proportional rewards from
// the stored consensus price and pays every participant
type FinishVault struct {
	CommandID uuid.UUID
	Actor     uuid.UUID
	Vault     string
	Sequence  int64
	Timestamp time.Time
}

func (c *FinishVault) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *FinishVault) CommandType() CommandType {
	return CommandTypeFinishVault
}

func (c *FinishVault) VaultID() *string {
	s := c.Vault
	return &s
}

func (c *FinishVault) SourceSequence() int64 {
	return c.Sequence
}
