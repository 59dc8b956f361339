package event

import "github.com/google/uuid"

// Notification payloads emitted to external observers. These are the
// JSON bodies carried in EventEnvelope.Payload and published outbound.

// VaultCreated announces a new vault in Funding state
type VaultCreated struct {
	VaultID              string `json:"vault_id"`
	Collection           string `json:"collection"`
	TokenID              int64  `json:"token_id"`
	WindowStart          int64  `json:"window_start"`
	WindowEnd            int64  `json:"window_end"`
	InitialPrice         int64  `json:"initial_price"`
	DefaultExpectedPrice int64  `json:"default_expected_price"`
}

// WalletDeposited announces a spending wallet credit
type WalletDeposited struct {
	Participant uuid.UUID `json:"participant"`
	Amount      int64     `json:"amount"`
	Balance     int64     `json:"balance"`
}

// WalletWithdrawn announces a spending wallet debit and outbound transfer
type WalletWithdrawn struct {
	Participant uuid.UUID `json:"participant"`
	Amount      int64     `json:"amount"`
	Balance     int64     `json:"balance"`
}

// ContributionRecorded announces stake added to a vault. Consensus is
// the vault's recomputed expected selling price after the deposit.
type ContributionRecorded struct {
	VaultID      string    `json:"vault_id"`
	Participant  uuid.UUID `json:"participant"`
	DirectAmount int64     `json:"direct_amount"`
	WalletAmount int64     `json:"wallet_amount"`
	Vote         int64     `json:"vote,omitempty"`
	Stake        int64     `json:"stake"`
	TotalAmount  int64     `json:"total_amount"`
	Consensus    int64     `json:"consensus"`
}

// ContributionWithdrawn announces stake removed from a vault. Evicted is
// true when the participant's stake returned to zero and they left the
// participant set.
type ContributionWithdrawn struct {
	VaultID        string    `json:"vault_id"`
	Participant    uuid.UUID `json:"participant"`
	ToWalletAmount int64     `json:"to_wallet_amount"`
	DirectAmount   int64     `json:"direct_amount"`
	Stake          int64     `json:"stake"`
	TotalAmount    int64     `json:"total_amount"`
	Consensus      int64     `json:"consensus"`
	Evicted        bool      `json:"evicted"`
}

// PriceVoted announces a vote and the resulting consensus price
type PriceVoted struct {
	VaultID     string    `json:"vault_id"`
	Participant uuid.UUID `json:"participant"`
	Vote        int64     `json:"vote"`
	Consensus   int64     `json:"consensus"`
}

// VaultStateChanged announces a lifecycle transition. BoughtPrice is
// nonzero only for the funding-close transition.
type VaultStateChanged struct {
	VaultID     string `json:"vault_id"`
	OldState    string `json:"old_state"`
	NewState    string `json:"new_state"`
	BoughtPrice int64  `json:"bought_price,omitempty"`
}

// SettledReward is one participant's payout inside VaultSettled
type SettledReward struct {
	Participant uuid.UUID `json:"participant"`
	Stake       int64     `json:"stake"`
	Reward      int64     `json:"reward"`
}

// VaultSettled announces the final proportional distribution
type VaultSettled struct {
	VaultID      string          `json:"vault_id"`
	TotalAmount  int64           `json:"total_amount"`
	BoughtPrice  int64           `json:"bought_price"`
	SellingPrice int64           `json:"selling_price"`
	RewardPool   int64           `json:"reward_pool"`
	Rewards      []SettledReward `json:"rewards"`
}
