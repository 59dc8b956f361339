package command

// CommandType discriminator for command payloads
type CommandType int32

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeCreateVault
	CommandTypeSetVaultState
	CommandTypeCloseFunding
	CommandTypeFinishVault
	CommandTypeDepositToWallet
	CommandTypeWithdrawFromWallet
	CommandTypeDepositToVault
	CommandTypeWithdrawFromVault
	CommandTypeSetSellingPrice
)

// Command is the interface all inbound commands implement
type Command interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// CommandType returns the discriminator
	CommandType() CommandType

	// VaultID returns the vault context (nil for wallet-only commands)
	VaultID() *string

	// SourceSequence returns the upstream ordering key
	SourceSequence() int64
}

func (ct CommandType) String() string {
	switch ct {
	case CommandTypeCreateVault:
		return "CreateVault"
	case CommandTypeSetVaultState:
		return "SetVaultState"
	case CommandTypeCloseFunding:
		return "CloseFunding"
	case CommandTypeFinishVault:
		return "FinishVault"
	case CommandTypeDepositToWallet:
		return "DepositToWallet"
	case CommandTypeWithdrawFromWallet:
		return "WithdrawFromWallet"
	case CommandTypeDepositToVault:
		return "DepositToVault"
	case CommandTypeWithdrawFromVault:
		return "WithdrawFromVault"
	case CommandTypeSetSellingPrice:
		return "SetSellingPrice"
	default:
		return "Unknown"
	}
}
