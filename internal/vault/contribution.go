package vault

import (
	fpmath "CoVault/internal/math"

	"github.com/google/uuid"
)

// Contribution is one participant's stake inside one vault.
// ExpectedSellingPrice 0 is the sentinel for "has not voted"; a genuine
// vote can never be 0 under this model.
type Contribution struct {
	Amount               int64
	ExpectedSellingPrice int64
}

// Book is the per-vault contribution ledger and participant set.
// The participant slice is append-only; removal swaps the evicted entry
// with the last element and truncates, an O(1) operation that does not
// preserve iteration order.
type Book struct {
	contributions map[uuid.UUID]*Contribution
	participants  []uuid.UUID
}

func NewBook() *Book {
	return &Book{
		contributions: make(map[uuid.UUID]*Contribution),
	}
}

// Amount returns the participant's current stake (0 if absent)
func (b *Book) Amount(p uuid.UUID) int64 {
	if c, ok := b.contributions[p]; ok {
		return c.Amount
	}
	return 0
}

// Vote returns the participant's current vote (0 if absent or unvoted)
func (b *Book) Vote(p uuid.UUID) int64 {
	if c, ok := b.contributions[p]; ok {
		return c.ExpectedSellingPrice
	}
	return 0
}

// Record adds amount to the participant's stake, appending them to the
// participant set on their first nonzero contribution.
func (b *Book) Record(p uuid.UUID, amount int64) {
	c, ok := b.contributions[p]
	if !ok {
		c = &Contribution{}
		b.contributions[p] = c
	}

	if c.Amount == 0 {
		b.participants = append(b.participants, p)
	}

	c.Amount += amount
}

// Remove subtracts amount from the participant's stake. A stake that
// returns to zero is deleted and the participant evicted via
// swap-with-last.
func (b *Book) Remove(p uuid.UUID, amount int64) error {
	c, ok := b.contributions[p]
	if !ok || c.Amount == 0 {
		return ErrNoContributionRecorded
	}
	if amount > c.Amount {
		return ErrInsufficientContributionInVault
	}

	c.Amount -= amount

	if c.Amount == 0 {
		delete(b.contributions, p)
		b.evict(p)
	}

	return nil
}

// evict removes p from the participant slice by swapping with the last
// element and truncating
func (b *Book) evict(p uuid.UUID) {
	for i, existing := range b.participants {
		if existing == p {
			last := len(b.participants) - 1
			b.participants[i] = b.participants[last]
			b.participants = b.participants[:last]
			return
		}
	}
}

// SetVote overwrites the participant's expected selling price. Voting
// requires an existing nonzero stake.
func (b *Book) SetVote(p uuid.UUID, price int64) error {
	c, ok := b.contributions[p]
	if !ok || c.Amount == 0 {
		return ErrNoContributionRecorded
	}

	c.ExpectedSellingPrice = price
	return nil
}

// Participants returns a copy of the participant set in its current
// iteration order
func (b *Book) Participants() []uuid.UUID {
	out := make([]uuid.UUID, len(b.participants))
	copy(out, b.participants)
	return out
}

// Len returns the number of participants with nonzero stake
func (b *Book) Len() int {
	return len(b.participants)
}

// TotalAmount sums all stakes in the book
func (b *Book) TotalAmount() int64 {
	var total int64
	for _, c := range b.contributions {
		total += c.Amount
	}
	return total
}

// Votes collects the voting participants' (vote, stake) pairs in
// participant-set order for consensus recomputation
func (b *Book) Votes() []fpmath.VoteStake {
	votes := make([]fpmath.VoteStake, 0, len(b.participants))
	for _, p := range b.participants {
		c := b.contributions[p]
		if c.ExpectedSellingPrice != 0 {
			votes = append(votes, fpmath.VoteStake{
				Vote:  c.ExpectedSellingPrice,
				Stake: c.Amount,
			})
		}
	}
	return votes
}

// Stakes returns a participant → stake map for settlement math
func (b *Book) Stakes() map[uuid.UUID]int64 {
	stakes := make(map[uuid.UUID]int64, len(b.contributions))
	for p, c := range b.contributions {
		stakes[p] = c.Amount
	}
	return stakes
}
