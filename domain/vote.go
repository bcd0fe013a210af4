package domain

import (
	"math"

	"github.com/samber/lo"
)

// VoteValue is a card of the Fibonacci deck.
type VoteValue int

var FibonacciValues = []VoteValue{0, 1, 2, 3, 5, 8, 13, 21, 34, 55}

func (v VoteValue) Valid() bool {
	return lo.Contains(FibonacciValues, v)
}

type ParticipantVote struct {
	Participant Participant `json:"participant"`
	Value       VoteValue   `json:"value"`
}

// VotingResults are computed from player votes in participant order.
type VotingResults struct {
	Votes     []ParticipantVote `json:"votes"`
	Average   float64           `json:"average"`
	Consensus bool              `json:"consensus"`
}

// CalculateResults averages player votes to one decimal (half away from zero).
// Consensus needs at least one vote and all values equal.
func CalculateResults(room Room) VotingResults {
	votes := make([]ParticipantVote, 0, len(room.Votes))
	for _, p := range room.Participants {
		if p.Role != RolePlayer {
			continue
		}
		if value, ok := room.Votes[p.UserID]; ok {
			votes = append(votes, ParticipantVote{Participant: p, Value: value})
		}
	}
	if len(votes) == 0 {
		return VotingResults{Votes: votes}
	}

	sum := lo.SumBy(votes, func(v ParticipantVote) int { return int(v.Value) })
	average := math.Round(float64(sum)/float64(len(votes))*10) / 10
	consensus := lo.EveryBy(votes, func(v ParticipantVote) bool { return v.Value == votes[0].Value })

	return VotingResults{Votes: votes, Average: average, Consensus: consensus}
}
