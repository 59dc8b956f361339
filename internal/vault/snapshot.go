package vault

import "github.com/google/uuid"

// ContributionSnapshot is one participant's serialized stake, in
// participant-set order so restore reproduces the exact eviction order.
type ContributionSnapshot struct {
	Participant          uuid.UUID `json:"participant"`
	Amount               int64     `json:"amount"`
	ExpectedSellingPrice int64     `json:"expected_selling_price"`
}

// Snapshot is one vault's full serialized state
type Snapshot struct {
	Vault         Vault                  `json:"vault"`
	Contributions []ContributionSnapshot `json:"contributions"`
}

// SnapshotAll serializes every vault and its book, sorted by vault ID
func (r *Registry) SnapshotAll() []Snapshot {
	vaults := r.All()
	out := make([]Snapshot, 0, len(vaults))

	for _, v := range vaults {
		book := r.books[v.ID]
		contribs := make([]ContributionSnapshot, 0, len(book.participants))
		for _, p := range book.participants {
			c := book.contributions[p]
			contribs = append(contribs, ContributionSnapshot{
				Participant:          p,
				Amount:               c.Amount,
				ExpectedSellingPrice: c.ExpectedSellingPrice,
			})
		}

		out = append(out, Snapshot{Vault: *v, Contributions: contribs})
	}

	return out
}

// Restore reinstates a vault and its book from a snapshot, overwriting
// any existing entry
func (r *Registry) Restore(snap Snapshot) {
	v := snap.Vault
	r.vaults[v.ID] = &v

	book := NewBook()
	for _, cs := range snap.Contributions {
		book.participants = append(book.participants, cs.Participant)
		book.contributions[cs.Participant] = &Contribution{
			Amount:               cs.Amount,
			ExpectedSellingPrice: cs.ExpectedSellingPrice,
		}
	}
	r.books[v.ID] = book
}
