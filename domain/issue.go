package domain

// Issue is a backlog item. Votes holds the archived round for this issue;
// nil means the issue has never been voted on.
type Issue struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Description   string               `json:"description,omitempty"`
	FinalEstimate *VoteValue           `json:"finalEstimate,omitempty"`
	Votes         map[string]VoteValue `json:"votes"`
	IsRevealed    bool                 `json:"isRevealed"`
}

func (i Issue) Clone() Issue {
	c := i
	c.Votes = copyVotes(i.Votes)
	if i.FinalEstimate != nil {
		v := *i.FinalEstimate
		c.FinalEstimate = &v
	}
	return c
}

// Archive stores the round being left on this issue.
func (i *Issue) Archive(votes map[string]VoteValue, revealed bool) {
	i.Votes = copyVotes(votes)
	if i.Votes == nil {
		i.Votes = map[string]VoteValue{}
	}
	i.IsRevealed = revealed
}

func (i *Issue) ClearSnapshot() {
	i.Votes = nil
	i.IsRevealed = false
}
