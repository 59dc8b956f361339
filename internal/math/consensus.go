package math

import (
	"math/big"

	"github.com/google/uuid"
)

// VoteStake pairs a participant's expected selling price vote with their stake.
// A vote of 0 means the participant has not voted and must not appear here.
type VoteStake struct {
	Vote  int64
	Stake int64
}

// ComputeConsensusPrice recomputes a vault's expected selling price from the
// current votes, weighted by contribution.
//
// Underfunded (total <= initialPrice): the unfilled raise capacity is priced
// at the default expectation:
//
//	(Σ vote_i·stake_i + (initialPrice − total)·defaultPrice) / initialPrice
//
// Overfunded (total > initialPrice): stake held by non-voters is priced at
// the default expectation:
//
//	(Σ vote_i·stake_i + defaultPrice·nonVoterStake) / total
//
// Division truncates. The truncation is part of the observable contract and
// must not be rounded.
func ComputeConsensusPrice(initialPrice, defaultPrice, total int64, votes []VoteStake) int64 {
	numerator := getInt128()
	numerator.SetInt64(0)

	var voterStake int64
	for _, vs := range votes {
		term := MultiplyInt128(vs.Vote, vs.Stake)
		numerator.Add(numerator, term)
		putInt128(term)
		voterStake += vs.Stake
	}

	var denominator int64
	if total <= initialPrice {
		// Underfunded: remaining capacity votes the default price
		term := MultiplyInt128(initialPrice-total, defaultPrice)
		numerator.Add(numerator, term)
		putInt128(term)
		denominator = initialPrice
	} else {
		// Overfunded: non-voter stake votes the default price
		term := MultiplyInt128(defaultPrice, total-voterStake)
		numerator.Add(numerator, term)
		putInt128(term)
		denominator = total
	}

	if denominator == 0 {
		putInt128(numerator)
		return 0
	}

	result := DivideInt128(numerator, denominator, RoundDown)
	putInt128(numerator)

	return result
}

// Reward is one participant's computed settlement payout.
type Reward struct {
	Participant uuid.UUID
	Amount      int64
}

// ComputeRewardPool returns total + sellingPrice − boughtPrice using int128
// intermediates so the sum cannot overflow silently.
func ComputeRewardPool(total, sellingPrice, boughtPrice int64) int64 {
	pool := getInt128()
	pool.SetInt64(total)
	pool.Add(pool, big.NewInt(sellingPrice))
	pool.Sub(pool, big.NewInt(boughtPrice))

	result := pool.Int64()
	putInt128(pool)

	return result
}

// ComputeRewards calculates floor(pool·stake_i/total) for each participant,
// preserving the supplied iteration order. total must be > 0; the caller
// guards the zero case. Flooring dust stays in the pool.
func ComputeRewards(pool, total int64, participants []uuid.UUID, stakes map[uuid.UUID]int64) []Reward {
	rewards := make([]Reward, 0, len(participants))

	for _, p := range participants {
		stake := stakes[p]
		if stake == 0 {
			continue
		}

		numerator := MultiplyInt128(pool, stake)
		amount := DivideInt128(numerator, total, RoundDown)
		putInt128(numerator)

		rewards = append(rewards, Reward{Participant: p, Amount: amount})
	}

	return rewards
}
