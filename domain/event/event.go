package event

import (
	"planning-poker/domain"
)

// DomainEvent is a server to client notification scoped to a room.
type DomainEvent interface {
	RoomID() domain.RoomID
	Type() string
}

const (
	TypeRoomState         = "room_state"
	TypeUserJoined        = "user_joined"
	TypeUserLeft          = "user_left"
	TypeVoteSubmitted     = "vote_submitted"
	TypeVotesRevealed     = "votes_revealed"
	TypeVotingReset       = "voting_reset"
	TypeIssueChanged      = "issue_changed"
	TypeIssueAdded        = "issue_added"
	TypeIssueRemoved      = "issue_removed"
	TypeRoleUpdated       = "role_updated"
	TypeTimerStarted      = "timer_started"
	TypeTimerStopped      = "timer_stopped"
	TypeParticipantKicked = "participant_kicked"
	TypeEstimateSet       = "estimate_set"
	TypeError             = "error"
)

// Audience selects which connections of a room receive an event.
type Audience int

const (
	Everyone Audience = iota
	Others
	ActorOnly
)

func (a Audience) String() string {
	switch a {
	case Everyone:
		return "everyone"
	case Others:
		return "others"
	case ActorOnly:
		return "actor"
	}
	return "unknown"
}

type Emission struct {
	Audience Audience
	Event    DomainEvent
}

func ToEveryone(e DomainEvent) Emission { return Emission{Audience: Everyone, Event: e} }
func ToOthers(e DomainEvent) Emission   { return Emission{Audience: Others, Event: e} }
func ToActor(e DomainEvent) Emission    { return Emission{Audience: ActorOnly, Event: e} }

type RoomState struct {
	Room domain.Room
}

func (e RoomState) RoomID() domain.RoomID { return e.Room.ID }
func (e RoomState) Type() string          { return TypeRoomState }

type UserJoined struct {
	Room        domain.RoomID
	Participant domain.Participant
}

func (e UserJoined) RoomID() domain.RoomID { return e.Room }
func (e UserJoined) Type() string          { return TypeUserJoined }

type UserLeft struct {
	Room   domain.RoomID
	UserID string
}

func (e UserLeft) RoomID() domain.RoomID { return e.Room }
func (e UserLeft) Type() string          { return TypeUserLeft }

// VoteSubmitted deliberately carries no value.
type VoteSubmitted struct {
	Room   domain.RoomID
	UserID string
}

func (e VoteSubmitted) RoomID() domain.RoomID { return e.Room }
func (e VoteSubmitted) Type() string          { return TypeVoteSubmitted }

type VotesRevealed struct {
	Room    domain.RoomID
	Results domain.VotingResults
}

func (e VotesRevealed) RoomID() domain.RoomID { return e.Room }
func (e VotesRevealed) Type() string          { return TypeVotesRevealed }

type VotingReset struct {
	Room domain.RoomID
}

func (e VotingReset) RoomID() domain.RoomID { return e.Room }
func (e VotingReset) Type() string          { return TypeVotingReset }

// IssueChanged with a nil Issue means no current issue.
type IssueChanged struct {
	Room  domain.RoomID
	Issue *domain.Issue
}

func (e IssueChanged) RoomID() domain.RoomID { return e.Room }
func (e IssueChanged) Type() string          { return TypeIssueChanged }

type IssueAdded struct {
	Room  domain.RoomID
	Issue domain.Issue
}

func (e IssueAdded) RoomID() domain.RoomID { return e.Room }
func (e IssueAdded) Type() string          { return TypeIssueAdded }

type IssueRemoved struct {
	Room    domain.RoomID
	IssueID string
}

func (e IssueRemoved) RoomID() domain.RoomID { return e.Room }
func (e IssueRemoved) Type() string          { return TypeIssueRemoved }

type RoleUpdated struct {
	Room   domain.RoomID
	UserID string
	Role   domain.Role
}

func (e RoleUpdated) RoomID() domain.RoomID { return e.Room }
func (e RoleUpdated) Type() string          { return TypeRoleUpdated }

type TimerStarted struct {
	Room           domain.RoomID
	EndTimeEpochMs int64
}

func (e TimerStarted) RoomID() domain.RoomID { return e.Room }
func (e TimerStarted) Type() string          { return TypeTimerStarted }

type TimerStopped struct {
	Room domain.RoomID
}

func (e TimerStopped) RoomID() domain.RoomID { return e.Room }
func (e TimerStopped) Type() string          { return TypeTimerStopped }

type ParticipantKicked struct {
	Room   domain.RoomID
	UserID string
}

func (e ParticipantKicked) RoomID() domain.RoomID { return e.Room }
func (e ParticipantKicked) Type() string          { return TypeParticipantKicked }

type EstimateSet struct {
	Room    domain.RoomID
	IssueID string
	Value   domain.VoteValue
}

func (e EstimateSet) RoomID() domain.RoomID { return e.Room }
func (e EstimateSet) Type() string          { return TypeEstimateSet }

// Error is only ever unicast to the connection that sent the command.
type Error struct {
	Room      domain.RoomID
	Message   string
	Code      string
	Retryable bool
}

func (e Error) RoomID() domain.RoomID { return e.Room }
func (e Error) Type() string          { return TypeError }
