package vault

import "sort"

// State is a vault's lifecycle state
type State int32

const (
	StateFunding State = iota
	StateFunded
	StateEnded
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateFunding:
		return "Funding"
	case StateFunded:
		return "Funded"
	case StateEnded:
		return "Ended"
	case StateDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// AssetRef identifies the indivisible asset a vault is raising for
type AssetRef struct {
	Collection string `json:"collection"`
	TokenID    int64  `json:"token_id"`
}

// Vault holds the static and aggregate fields of one funding pool.
// TotalAmount always equals the sum of contribution amounts over the
// vault's participant set.
type Vault struct {
	ID                   string   `json:"id"`
	Asset                AssetRef `json:"asset"`
	WindowStart          int64    `json:"window_start"` // epoch microseconds
	WindowEnd            int64    `json:"window_end"`
	InitialPrice         int64    `json:"initial_price"`
	DefaultExpectedPrice int64    `json:"default_expected_price"`
	BoughtPrice          int64    `json:"bought_price"`  // stamped once at funding close
	SellingPrice         int64    `json:"selling_price"` // consensus, recomputed continuously
	TotalAmount          int64    `json:"total_amount"`
	State                State    `json:"state"`
	Version              int64    `json:"version"`
}

// Registry creates and stores vaults and their contribution books
type Registry struct {
	vaults map[string]*Vault
	books  map[string]*Book
}

func NewRegistry() *Registry {
	return &Registry{
		vaults: make(map[string]*Vault),
		books:  make(map[string]*Book),
	}
}

// Create inserts a new vault in Funding state with all aggregates zero.
// now is the versioned call timestamp in epoch microseconds, never the
// wall clock.
func (r *Registry) Create(id string, asset AssetRef, windowStart, windowEnd, initialPrice, defaultPrice, now int64) (*Vault, error) {
	if _, exists := r.vaults[id]; exists {
		return nil, ErrVaultAlreadyExists
	}

	if windowStart < now || windowEnd <= windowStart {
		return nil, ErrInvalidScheduleRange
	}

	v := &Vault{
		ID:                   id,
		Asset:                asset,
		WindowStart:          windowStart,
		WindowEnd:            windowEnd,
		InitialPrice:         initialPrice,
		DefaultExpectedPrice: defaultPrice,
		State:                StateFunding,
	}

	r.vaults[id] = v
	r.books[id] = NewBook()

	return v, nil
}

// Get returns the vault or ErrVaultNotFound
func (r *Registry) Get(id string) (*Vault, error) {
	v, ok := r.vaults[id]
	if !ok {
		return nil, ErrVaultNotFound
	}
	return v, nil
}

// Book returns the contribution book for a vault
func (r *Registry) Book(id string) (*Book, error) {
	b, ok := r.books[id]
	if !ok {
		return nil, ErrVaultNotFound
	}
	return b, nil
}

// RequireFunding resolves a vault that must accept mutations. Any state
// other than Funding yields ErrVaultNotInFundingProcess.
func (r *Registry) RequireFunding(id string) (*Vault, *Book, error) {
	v, ok := r.vaults[id]
	if !ok {
		return nil, nil, ErrVaultNotFound
	}
	if v.State != StateFunding {
		return nil, nil, ErrVaultNotInFundingProcess
	}
	return v, r.books[id], nil
}

// SetState forces a vault into newState. There is deliberately no
// transition table: the administrator may jump to any state at any time,
// including directly to Disabled.
func (r *Registry) SetState(id string, newState State) (*Vault, error) {
	v, ok := r.vaults[id]
	if !ok {
		return nil, ErrVaultNotFound
	}

	v.State = newState
	v.Version++

	return v, nil
}

// All returns every vault sorted by ID for deterministic iteration
func (r *Registry) All() []*Vault {
	out := make([]*Vault, 0, len(r.vaults))
	for _, v := range r.vaults {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of vaults
func (r *Registry) Len() int {
	return len(r.vaults)
}
