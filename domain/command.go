package domain

// Command is a client intent against one room.
// The acting user never travels in the payload: the gateway supplies it.
type Command interface {
	RoomID() RoomID
	Name() string
}

const (
	CmdJoinRoom        = "join_room"
	CmdLeaveRoom       = "leave_room"
	CmdSubmitVote      = "submit_vote"
	CmdRevealVotes     = "reveal_votes"
	CmdResetVoting     = "reset_voting"
	CmdChangeIssue     = "change_issue"
	CmdAddIssue        = "add_issue"
	CmdRemoveIssue     = "remove_issue"
	CmdUpdateRole      = "update_role"
	CmdStartTimer      = "start_timer"
	CmdStopTimer       = "stop_timer"
	CmdKickParticipant = "kick_participant"
	CmdSetEstimate     = "set_estimate"
)

type JoinRoom struct {
	Room RoomID `json:"roomId" validate:"required"`
}

func (c JoinRoom) RoomID() RoomID { return c.Room }
func (c JoinRoom) Name() string   { return CmdJoinRoom }

type LeaveRoom struct {
	Room RoomID `json:"roomId" validate:"required"`
}

func (c LeaveRoom) RoomID() RoomID { return c.Room }
func (c LeaveRoom) Name() string   { return CmdLeaveRoom }

type SubmitVote struct {
	Room  RoomID     `json:"roomId" validate:"required"`
	Value *VoteValue `json:"value" validate:"required"`
}

func (c SubmitVote) RoomID() RoomID { return c.Room }
func (c SubmitVote) Name() string   { return CmdSubmitVote }

type RevealVotes struct {
	Room RoomID `json:"roomId" validate:"required"`
}

func (c RevealVotes) RoomID() RoomID { return c.Room }
func (c RevealVotes) Name() string   { return CmdRevealVotes }

type ResetVoting struct {
	Room RoomID `json:"roomId" validate:"required"`
}

func (c ResetVoting) RoomID() RoomID { return c.Room }
func (c ResetVoting) Name() string   { return CmdResetVoting }

// IssueRef points at a backlog entry; only the ID is trusted.
type IssueRef struct {
	ID string `json:"id" validate:"required"`
}

// ChangeIssue with a nil Issue clears the current issue.
type ChangeIssue struct {
	Room  RoomID    `json:"roomId" validate:"required"`
	Issue *IssueRef `json:"issue"`
}

func (c ChangeIssue) RoomID() RoomID { return c.Room }
func (c ChangeIssue) Name() string   { return CmdChangeIssue }

type AddIssue struct {
	Room        RoomID `json:"roomId" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

func (c AddIssue) RoomID() RoomID { return c.Room }
func (c AddIssue) Name() string   { return CmdAddIssue }

type RemoveIssue struct {
	Room    RoomID `json:"roomId" validate:"required"`
	IssueID string `json:"issueId" validate:"required"`
}

func (c RemoveIssue) RoomID() RoomID { return c.Room }
func (c RemoveIssue) Name() string   { return CmdRemoveIssue }

type UpdateRole struct {
	Room   RoomID `json:"roomId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
	Role   Role   `json:"role" validate:"required"`
}

func (c UpdateRole) RoomID() RoomID { return c.Room }
func (c UpdateRole) Name() string   { return CmdUpdateRole }

type StartTimer struct {
	Room            RoomID `json:"roomId" validate:"required"`
	DurationSeconds int    `json:"durationSeconds"`
}

func (c StartTimer) RoomID() RoomID { return c.Room }
func (c StartTimer) Name() string   { return CmdStartTimer }

type StopTimer struct {
	Room RoomID `json:"roomId" validate:"required"`
}

func (c StopTimer) RoomID() RoomID { return c.Room }
func (c StopTimer) Name() string   { return CmdStopTimer }

type KickParticipant struct {
	Room   RoomID `json:"roomId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

func (c KickParticipant) RoomID() RoomID { return c.Room }
func (c KickParticipant) Name() string   { return CmdKickParticipant }

type SetEstimate struct {
	Room    RoomID     `json:"roomId" validate:"required"`
	IssueID string     `json:"issueId" validate:"required"`
	Value   *VoteValue `json:"value" validate:"required"`
}

func (c SetEstimate) RoomID() RoomID { return c.Room }
func (c SetEstimate) Name() string   { return CmdSetEstimate }
