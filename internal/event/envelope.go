package event

import (
	"time"
)

// EventType discriminator for outbound notification payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeVaultCreated
	EventTypeWalletDeposited
	EventTypeWalletWithdrawn
	EventTypeContributionRecorded
	EventTypeContributionWithdrawn
	EventTypePriceVoted
	EventTypeVaultStateChanged
	EventTypeVaultSettled
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from the source command
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Vault context (nullable for wallet-only events)
	VaultID *string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded notification payload
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

func (et EventType) String() string {
	switch et {
	case EventTypeVaultCreated:
		return "VaultCreated"
	case EventTypeWalletDeposited:
		return "WalletDeposited"
	case EventTypeWalletWithdrawn:
		return "WalletWithdrawn"
	case EventTypeContributionRecorded:
		return "ContributionRecorded"
	case EventTypeContributionWithdrawn:
		return "ContributionWithdrawn"
	case EventTypePriceVoted:
		return "PriceVoted"
	case EventTypeVaultStateChanged:
		return "VaultStateChanged"
	case EventTypeVaultSettled:
		return "VaultSettled"
	default:
		return "Unknown"
	}
}
