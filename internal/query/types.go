package query

import "github.com/google/uuid"

// VaultResponse represents a vault for API queries.
type VaultResponse struct {
	VaultID              string `json:"vault_id"`
	Collection           string `json:"collection"`
	TokenID              int64  `json:"token_id"`
	WindowStart          int64  `json:"window_start"`
	WindowEnd            int64  `json:"window_end"`
	InitialPrice         int64  `json:"initial_price"`
	DefaultExpectedPrice int64  `json:"default_expected_price"`
	BoughtPrice          int64  `json:"bought_price"`
	SellingPrice         int64  `json:"selling_price"`
	TotalAmount          int64  `json:"total_amount"`
	State                string `json:"state"`
	AsOfSequence         int64  `json:"as_of_sequence"`
}

// ContributionResponse represents one participant's stake in a vault.
type ContributionResponse struct {
	VaultID              string    `json:"vault_id"`
	Participant          uuid.UUID `json:"participant"`
	Amount               int64     `json:"amount"`
	ExpectedSellingPrice int64     `json:"expected_selling_price"`
	AsOfSequence         int64     `json:"as_of_sequence"`
}

// WalletBalanceResponse represents a spending wallet balance.
type WalletBalanceResponse struct {
	Participant  uuid.UUID `json:"participant"`
	Balance      int64     `json:"balance"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// SettlementResponse represents one participant's settlement payout.
type SettlementResponse struct {
	VaultID      string    `json:"vault_id"`
	Participant  uuid.UUID `json:"participant"`
	Stake        int64     `json:"stake"`
	Reward       int64     `json:"reward"`
	RewardPool   int64     `json:"reward_pool"`
	TotalAmount  int64     `json:"total_amount"`
	SellingPrice int64     `json:"selling_price"`
	BoughtPrice  int64     `json:"bought_price"`
	SettledAt    int64     `json:"settled_at"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// JournalHistoryEntry represents a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
	GlobalImbalance int64   `json:"global_imbalance"`
}
