package ingestion

import (
	"CoVault/internal/command"
	"CoVault/internal/vault"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ParseRawCommand converts a RawCommand (JSON bytes + command type string)
// into a typed command.Command. The ingestion shell validates, parses, and
// converts raw messages before sending to the deterministic core.
func ParseRawCommand(raw RawCommand, commandType string) (command.Command, error) {
	switch commandType {
	case "CreateVault":
		return parseCreateVault(raw.Data)
	case "SetVaultState":
		return parseSetVaultState(raw.Data)
	case "CloseFunding":
		return parseCloseFunding(raw.Data)
	case "FinishVault":
		return parseFinishVault(raw.Data)
	case "DepositToWallet":
		return parseDepositToWallet(raw.Data)
	case "WithdrawFromWallet":
		return parseWithdrawFromWallet(raw.Data)
	case "DepositToVault":
		return parseDepositToVault(raw.Data)
	case "WithdrawFromVault":
		return parseWithdrawFromVault(raw.Data)
	case "SetSellingPrice":
		return parseSetSellingPrice(raw.Data)
	default:
		return nil, fmt.Errorf("unknown command type: %s", commandType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers.

type createVaultJSON struct {
	CommandID            string `json:"command_id"`
	Actor                string `json:"actor"`
	VaultID              string `json:"vault_id"`
	Collection           string `json:"collection"`
	TokenID              int64  `json:"token_id"`
	WindowStartUs        int64  `json:"window_start_us"`
	WindowEndUs          int64  `json:"window_end_us"`
	InitialPrice         int64  `json:"initial_price"`
	DefaultExpectedPrice int64  `json:"default_expected_price"`
	Sequence             int64  `json:"sequence"`
	TimestampUs          int64  `json:"timestamp_us"`
}

func parseCreateVault(data []byte) (*command.CreateVault, error) {
	var j createVaultJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CreateVault: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return nil, fmt.Errorf("parse actor: %w", err)
	}
	if j.VaultID == "" {
		return nil, fmt.Errorf("parse CreateVault: empty vault_id")
	}
	return &command.CreateVault{
		CommandID:            commandID,
		Actor:                actor,
		Vault:                j.VaultID,
		Asset:                vault.AssetRef{Collection: j.Collection, TokenID: j.TokenID},
		WindowStart:          j.WindowStartUs,
		WindowEnd:            j.WindowEndUs,
		InitialPrice:         j.InitialPrice,
		DefaultExpectedPrice: j.DefaultExpectedPrice,
		Sequence:             j.Sequence,
		Timestamp:            time.UnixMicro(j.TimestampUs),
	}, nil
}

type setVaultStateJSON struct {
	CommandID   string `json:"command_id"`
	Actor       string `json:"actor"`
	VaultID     string `json:"vault_id"`
	NewState    string `json:"new_state"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseSetVaultState(data []byte) (*command.SetVaultState, error) {
	var j setVaultStateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetVaultState: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return nil, fmt.Errorf("parse actor: %w", err)
	}
	state, err := parseState(j.NewState)
	if err != nil {
		return nil, fmt.Errorf("parse new_state: %w", err)
	}
	return &command.SetVaultState{
		CommandID: commandID,
		Actor:     actor,
		Vault:     j.VaultID,
		NewState:  state,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type closeFundingJSON struct {
	CommandID   string `json:"command_id"`
	Actor       string `json:"actor"`
	VaultID     string `json:"vault_id"`
	BoughtPrice int64  `json:"bought_price"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseCloseFunding(data []byte) (*command.CloseFunding, error) {
	var j closeFundingJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CloseFunding: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return nil, fmt.Errorf("parse actor: %w", err)
	}
	return &command.CloseFunding{
		CommandID:   commandID,
		Actor:       actor,
		Vault:       j.VaultID,
		BoughtPrice: j.BoughtPrice,
		Sequence:    j.Sequence,
		Timestamp:   time.UnixMicro(j.TimestampUs),
	}, nil
}

type finishVaultJSON struct {
	CommandID   string `json:"command_id"`
	Actor       string `json:"actor"`
	VaultID     string `json:"vault_id"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseFinishVault(data []byte) (*command.FinishVault, error) {
	var j finishVaultJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse FinishVault: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return nil, fmt.Errorf("parse actor: %w", err)
	}
	return &command.FinishVault{
		CommandID: commandID,
		Actor:     actor,
		Vault:     j.VaultID,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type walletJSON struct {
	CommandID   string `json:"command_id"`
	Participant string `json:"participant"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseDepositToWallet(data []byte) (*command.DepositToWallet, error) {
	var j walletJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DepositToWallet: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	participant, err := uuid.Parse(j.Participant)
	if err != nil {
		return nil, fmt.Errorf("parse participant: %w", err)
	}
	return &command.DepositToWallet{
		CommandID:   commandID,
		Participant: participant,
		Amount:      j.Amount,
		Sequence:    j.Sequence,
		Timestamp:   time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseWithdrawFromWallet(data []byte) (*command.WithdrawFromWallet, error) {
	var j walletJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WithdrawFromWallet: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	participant, err := uuid.Parse(j.Participant)
	if err != nil {
		return nil, fmt.Errorf("parse participant: %w", err)
	}
	return &command.WithdrawFromWallet{
		CommandID:   commandID,
		Participant: participant,
		Amount:      j.Amount,
		Sequence:    j.Sequence,
		Timestamp:   time.UnixMicro(j.TimestampUs),
	}, nil
}

type depositToVaultJSON struct {
	CommandID            string `json:"command_id"`
	Participant          string `json:"participant"`
	VaultID              string `json:"vault_id"`
	DirectAmount         int64  `json:"direct_amount"`
	WalletAmount         int64  `json:"wallet_amount"`
	ExpectedSellingPrice int64  `json:"expected_selling_price"`
	Sequence             int64  `json:"sequence"`
	TimestampUs          int64  `json:"timestamp_us"`
}

func parseDepositToVault(data []byte) (*command.DepositToVault, error) {
	var j depositToVaultJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DepositToVault: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	participant, err := uuid.Parse(j.Participant)
	if err != nil {
		return nil, fmt.Errorf("parse participant: %w", err)
	}
	return &command.DepositToVault{
		CommandID:            commandID,
		Participant:          participant,
		Vault:                j.VaultID,
		DirectAmount:         j.DirectAmount,
		WalletAmount:         j.WalletAmount,
		ExpectedSellingPrice: j.ExpectedSellingPrice,
		Sequence:             j.Sequence,
		Timestamp:            time.UnixMicro(j.TimestampUs),
	}, nil
}

type withdrawFromVaultJSON struct {
	CommandID      string `json:"command_id"`
	Participant    string `json:"participant"`
	VaultID        string `json:"vault_id"`
	ToWalletAmount int64  `json:"to_wallet_amount"`
	DirectAmount   int64  `json:"direct_amount"`
	Sequence       int64  `json:"sequence"`
	TimestampUs    int64  `json:"timestamp_us"`
}

func parseWithdrawFromVault(data []byte) (*command.WithdrawFromVault, error) {
	var j withdrawFromVaultJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WithdrawFromVault: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	participant, err := uuid.Parse(j.Participant)
	if err != nil {
		return nil, fmt.Errorf("parse participant: %w", err)
	}
	return &command.WithdrawFromVault{
		CommandID:      commandID,
		Participant:    participant,
		Vault:          j.VaultID,
		ToWalletAmount: j.ToWalletAmount,
		DirectAmount:   j.DirectAmount,
		Sequence:       j.Sequence,
		Timestamp:      time.UnixMicro(j.TimestampUs),
	}, nil
}

type setSellingPriceJSON struct {
	CommandID   string `json:"command_id"`
	Participant string `json:"participant"`
	VaultID     string `json:"vault_id"`
	Price       int64  `json:"price"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseSetSellingPrice(data []byte) (*command.SetSellingPrice, error) {
	var j setSellingPriceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetSellingPrice: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	participant, err := uuid.Parse(j.Participant)
	if err != nil {
		return nil, fmt.Errorf("parse participant: %w", err)
	}
	return &command.SetSellingPrice{
		CommandID:   commandID,
		Participant: participant,
		Vault:       j.VaultID,
		Price:       j.Price,
		Sequence:    j.Sequence,
		Timestamp:   time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseState(s string) (vault.State, error) {
	switch s {
	case "Funding":
		return vault.StateFunding, nil
	case "Funded":
		return vault.StateFunded, nil
	case "Ended":
		return vault.StateEnded, nil
	case "Disabled":
		return vault.StateDisabled, nil
	default:
		return 0, fmt.Errorf("unknown vault state: %q", s)
	}
}
