package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"CoVault/internal/command"
	"CoVault/internal/event"
)

// CommandFromStoredEvent reconstructs the originating command from a
// stored event-log row. Events carry the command ID as idempotency key
// and the upstream sequence, so replaying the reconstructed commands in
// log order reproduces the exact in-memory state and hash chain.
// Administrator commands are re-stamped with the configured admin ID.
func CommandFromStoredEvent(
	eventType string,
	idempotencyKey string,
	sourceSequence int64,
	timestamp time.Time,
	payload []byte,
	adminID uuid.UUID,
) (command.Command, error) {
	commandID, err := uuid.Parse(idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency key is not a command ID: %w", err)
	}

	switch eventType {
	case "VaultCreated":
		var p event.VaultCreated
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		cmd := &command.CreateVault{
			CommandID:            commandID,
			Actor:                adminID,
			Vault:                p.VaultID,
			WindowStart:          p.WindowStart,
			WindowEnd:            p.WindowEnd,
			InitialPrice:         p.InitialPrice,
			DefaultExpectedPrice: p.DefaultExpectedPrice,
			Sequence:             sourceSequence,
			Timestamp:            timestamp,
		}
		cmd.Asset.Collection = p.Collection
		cmd.Asset.TokenID = p.TokenID
		return cmd, nil

	case "VaultStateChanged":
		var p event.VaultStateChanged
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		// The funding-close transition is the only one that carries a
		// purchase price
		if p.BoughtPrice > 0 {
			return &command.CloseFunding{
				CommandID:   commandID,
				Actor:       adminID,
				Vault:       p.VaultID,
				BoughtPrice: p.BoughtPrice,
				Sequence:    sourceSequence,
				Timestamp:   timestamp,
			}, nil
		}
		newState, err := parseState(p.NewState)
		if err != nil {
			return nil, err
		}
		return &command.SetVaultState{
			CommandID: commandID,
			Actor:     adminID,
			Vault:     p.VaultID,
			NewState:  newState,
			Sequence:  sourceSequence,
			Timestamp: timestamp,
		}, nil

	case "VaultSettled":
		var p event.VaultSettled
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return &command.FinishVault{
			CommandID: commandID,
			Actor:     adminID,
			Vault:     p.VaultID,
			Sequence:  sourceSequence,
			Timestamp: timestamp,
		}, nil

	case "WalletDeposited":
		var p event.WalletDeposited
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return &command.DepositToWallet{
			CommandID:   commandID,
			Participant: p.Participant,
			Amount:      p.Amount,
			Sequence:    sourceSequence,
			Timestamp:   timestamp,
		}, nil

	case "WalletWithdrawn":
		var p event.WalletWithdrawn
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return &command.WithdrawFromWallet{
			CommandID:   commandID,
			Participant: p.Participant,
			Amount:      p.Amount,
			Sequence:    sourceSequence,
			Timestamp:   timestamp,
		}, nil

	case "ContributionRecorded":
		var p event.ContributionRecorded
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return &command.DepositToVault{
			CommandID:            commandID,
			Participant:          p.Participant,
			Vault:                p.VaultID,
			DirectAmount:         p.DirectAmount,
			WalletAmount:         p.WalletAmount,
			ExpectedSellingPrice: p.Vote,
			Sequence:             sourceSequence,
			Timestamp:            timestamp,
		}, nil

	case "ContributionWithdrawn":
		var p event.ContributionWithdrawn
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return &command.WithdrawFromVault{
			CommandID:      commandID,
			Participant:    p.Participant,
			Vault:          p.VaultID,
			ToWalletAmount: p.ToWalletAmount,
			DirectAmount:   p.DirectAmount,
			Sequence:       sourceSequence,
			Timestamp:      timestamp,
		}, nil

	case "PriceVoted":
		var p event.PriceVoted
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return &command.SetSellingPrice{
			CommandID:   commandID,
			Participant: p.Participant,
			Vault:       p.VaultID,
			Price:       p.Vote,
			Sequence:    sourceSequence,
			Timestamp:   timestamp,
		}, nil

	default:
		return nil, fmt.Errorf("unknown stored event type: %s", eventType)
	}
}
