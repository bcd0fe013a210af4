// Package domain contains core concepts of the planning poker system.
// Rooms are plain values: every mutation works on a Clone and the caller
// decides whether the new document replaces the stored one.
package domain

import (
	"time"

	"github.com/samber/lo"
)

type RoomID string

func (id RoomID) String() string { return string(id) }

// Room is the shared document of one estimation session.
type Room struct {
	ID             RoomID               `json:"id"`
	Name           string               `json:"name"`
	AdminID        string               `json:"adminId"`
	CurrentIssueID string               `json:"currentIssueId,omitempty"`
	Participants   []Participant        `json:"participants"`
	Issues         []Issue              `json:"issues"`
	Votes          map[string]VoteValue `json:"votes"`
	IsVotingOpen   bool                 `json:"isVotingOpen"`
	IsRevealed     bool                 `json:"isRevealed"`
	TimerEndTime   *int64               `json:"timerEndTime,omitempty"` // epoch milliseconds
	CreatedAt      time.Time            `json:"createdAt"`
}

// Profile is the display identity copied into a room at join time.
type Profile struct {
	UserID    string
	Name      string
	AvatarURL string
}

// NewRoom creates an open room whose only participant is its admin.
// The admin stays disconnected until its first join.
func NewRoom(id RoomID, name string, admin Profile, now time.Time) Room {
	return Room{
		ID:      id,
		Name:    name,
		AdminID: admin.UserID,
		Participants: []Participant{{
			UserID:    admin.UserID,
			Name:      admin.Name,
			AvatarURL: admin.AvatarURL,
			Role:      RoleAdmin,
		}},
		Issues:       []Issue{},
		Votes:        map[string]VoteValue{},
		IsVotingOpen: true,
		CreatedAt:    now.UTC(),
	}
}

// Clone returns a deep copy so that transitions never alias the input.
func (r Room) Clone() Room {
	c := r
	c.Participants = append([]Participant(nil), r.Participants...)
	c.Issues = lo.Map(r.Issues, func(i Issue, _ int) Issue { return i.Clone() })
	c.Votes = copyVotes(r.Votes)
	if c.Votes == nil {
		c.Votes = map[string]VoteValue{}
	}
	if r.TimerEndTime != nil {
		end := *r.TimerEndTime
		c.TimerEndTime = &end
	}
	return c
}

func (r Room) IsAdmin(userID string) bool {
	return userID != "" && r.AdminID == userID
}

// Participant returns a pointer into r.Participants, or nil.
func (r *Room) Participant(userID string) *Participant {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return &r.Participants[i]
		}
	}
	return nil
}

// Issue returns a pointer into r.Issues, or nil.
func (r *Room) Issue(issueID string) *Issue {
	for i := range r.Issues {
		if r.Issues[i].ID == issueID {
			return &r.Issues[i]
		}
	}
	return nil
}

// CurrentIssue returns the backlog entry currently being estimated, or nil.
func (r *Room) CurrentIssue() *Issue {
	if r.CurrentIssueID == "" {
		return nil
	}
	return r.Issue(r.CurrentIssueID)
}

func (r Room) ConnectedCount() int {
	return lo.CountBy(r.Participants, func(p Participant) bool { return p.IsConnected })
}

// AllPlayersVoted reports whether every connected player has a vote.
func (r Room) AllPlayersVoted() bool {
	players := lo.Filter(r.Participants, func(p Participant, _ int) bool {
		return p.Role == RolePlayer && p.IsConnected
	})
	return len(players) > 0 && lo.EveryBy(players, func(p Participant) bool {
		_, ok := r.Votes[p.UserID]
		return ok
	})
}

// TimerRemaining is derived on read; the server never ticks.
func (r Room) TimerRemaining(now time.Time) time.Duration {
	if r.TimerEndTime == nil {
		return 0
	}
	remaining := time.UnixMilli(*r.TimerEndTime).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetRound opens a fresh round with no votes.
func (r *Room) ResetRound() {
	r.Votes = map[string]VoteValue{}
	r.IsRevealed = false
	r.IsVotingOpen = true
	r.syncHasVoted()
}

// RestoreRound loads an archived snapshot, dropping votes of users
// who are no longer players.
func (r *Room) RestoreRound(votes map[string]VoteValue, revealed bool) {
	r.Votes = map[string]VoteValue{}
	for userID, value := range votes {
		if p := r.Participant(userID); p != nil && p.Role == RolePlayer {
			r.Votes[userID] = value
		}
	}
	r.IsRevealed = revealed
	r.IsVotingOpen = !revealed
	r.syncHasVoted()
}

// PurgeVote removes userID's live vote and its copy on the current issue.
func (r *Room) PurgeVote(userID string) {
	delete(r.Votes, userID)
	if issue := r.CurrentIssue(); issue != nil && issue.Votes != nil {
		delete(issue.Votes, userID)
	}
	if p := r.Participant(userID); p != nil {
		p.HasVoted = false
	}
}

func (r *Room) syncHasVoted() {
	for i := range r.Participants {
		_, ok := r.Votes[r.Participants[i].UserID]
		r.Participants[i].HasVoted = ok
	}
}

func copyVotes(votes map[string]VoteValue) map[string]VoteValue {
	if votes == nil {
		return nil
	}
	c := make(map[string]VoteValue, len(votes))
	for k, v := range votes {
		c[k] = v
	}
	return c
}
