package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"planning-poker/domain"
	"planning-poker/domain/event"
	"planning-poker/errors"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type commandDecoder func(payload json.RawMessage) (domain.Command, error)

var decoders = map[string]commandDecoder{
	domain.CmdJoinRoom:        decodeAs[domain.JoinRoom],
	domain.CmdLeaveRoom:       decodeAs[domain.LeaveRoom],
	domain.CmdSubmitVote:      decodeAs[domain.SubmitVote],
	domain.CmdRevealVotes:     decodeAs[domain.RevealVotes],
	domain.CmdResetVoting:     decodeAs[domain.ResetVoting],
	domain.CmdChangeIssue:     decodeAs[domain.ChangeIssue],
	domain.CmdAddIssue:        decodeAs[domain.AddIssue],
	domain.CmdRemoveIssue:     decodeAs[domain.RemoveIssue],
	domain.CmdUpdateRole:      decodeAs[domain.UpdateRole],
	domain.CmdStartTimer:      decodeAs[domain.StartTimer],
	domain.CmdStopTimer:       decodeAs[domain.StopTimer],
	domain.CmdKickParticipant: decodeAs[domain.KickParticipant],
	domain.CmdSetEstimate:     decodeAs[domain.SetEstimate],
}

func decodeAs[T domain.Command](payload json.RawMessage) (domain.Command, error) {
	var cmd T
	if len(payload) == 0 {
		return cmd, nil
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidCommand, err)
	}
	return cmd, nil
}

// DecodeCommand parses one client frame.
func DecodeCommand(data []byte) (domain.Command, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed envelope", errors.ErrInvalidCommand)
	}
	decode, ok := decoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownCommand, env.Type)
	}
	return decode(env.Payload)
}

// EncodeEvent renders an event as an envelope. Vote values stay hidden
// until the round holding them is revealed.
func EncodeEvent(e event.DomainEvent, now time.Time) ([]byte, error) {
	var payload any
	switch evt := e.(type) {
	case event.RoomState:
		payload = NewRoomView(evt.Room, now)
	case event.UserJoined:
		payload = evt.Participant
	case event.UserLeft:
		payload = userRef{UserID: evt.UserID}
	case event.VoteSubmitted:
		payload = userRef{UserID: evt.UserID}
	case event.VotesRevealed:
		payload = evt.Results
	case event.VotingReset, event.TimerStopped:
		payload = struct{}{}
	case event.IssueChanged:
		if evt.Issue != nil {
			payload = newIssueView(*evt.Issue)
		}
	case event.IssueAdded:
		payload = newIssueView(evt.Issue)
	case event.IssueRemoved:
		payload = issueRef{IssueID: evt.IssueID}
	case event.RoleUpdated:
		payload = roleView{UserID: evt.UserID, Role: evt.Role}
	case event.TimerStarted:
		payload = timerView{EndTimeEpochMs: evt.EndTimeEpochMs}
	case event.ParticipantKicked:
		payload = userRef{UserID: evt.UserID}
	case event.EstimateSet:
		payload = estimateView{IssueID: evt.IssueID, Value: evt.Value}
	case event.Error:
		payload = errorView{Message: evt.Message, Code: evt.Code, Retryable: evt.Retryable}
	default:
		return nil, fmt.Errorf("no wire format for event %T", e)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: e.Type(), Payload: raw})
}

type userRef struct {
	UserID string `json:"userId"`
}

type issueRef struct {
	IssueID string `json:"issueId"`
}

type roleView struct {
	UserID string      `json:"userId"`
	Role   domain.Role `json:"role"`
}

type timerView struct {
	EndTimeEpochMs int64 `json:"endTimeEpochMs"`
}

type estimateView struct {
	IssueID string           `json:"issueId"`
	Value   domain.VoteValue `json:"value"`
}

type errorView struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable"`
}

type issueView struct {
	ID            string                      `json:"id"`
	Title         string                      `json:"title"`
	Description   string                      `json:"description,omitempty"`
	FinalEstimate *domain.VoteValue           `json:"finalEstimate"`
	Votes         map[string]domain.VoteValue `json:"votes,omitempty"`
	IsRevealed    bool                        `json:"isRevealed"`
}

func newIssueView(issue domain.Issue) issueView {
	view := issueView{
		ID:            issue.ID,
		Title:         issue.Title,
		Description:   issue.Description,
		FinalEstimate: issue.FinalEstimate,
		IsRevealed:    issue.IsRevealed,
	}
	if issue.IsRevealed {
		view.Votes = issue.Votes
	}
	return view
}

type RoomView struct {
	ID                    string                      `json:"id"`
	Name                  string                      `json:"name"`
	AdminID               string                      `json:"adminId"`
	Participants          []domain.Participant        `json:"participants"`
	CurrentIssueID        string                      `json:"currentIssueId,omitempty"`
	CurrentIssue          *issueView                  `json:"currentIssue"`
	Issues                []issueView                 `json:"issues"`
	Votes                 map[string]domain.VoteValue `json:"votes"`
	IsVotingOpen          bool                        `json:"isVotingOpen"`
	IsRevealed            bool                        `json:"isRevealed"`
	AllVoted              bool                        `json:"allVoted"`
	TimerEndTime          *int64                      `json:"timerEndTime"`
	TimerRemainingSeconds int64                       `json:"timerRemainingSeconds"`
	CreatedAt             int64                       `json:"createdAt"`
}

// NewRoomView is the client view of a room. Votes are masked until revealed.
func NewRoomView(room domain.Room, now time.Time) RoomView {
	view := RoomView{
		ID:                    room.ID.String(),
		Name:                  room.Name,
		AdminID:               room.AdminID,
		Participants:          room.Participants,
		CurrentIssueID:        room.CurrentIssueID,
		Issues:                make([]issueView, 0, len(room.Issues)),
		Votes:                 map[string]domain.VoteValue{},
		IsVotingOpen:          room.IsVotingOpen,
		IsRevealed:            room.IsRevealed,
		AllVoted:              room.AllPlayersVoted(),
		TimerEndTime:          room.TimerEndTime,
		TimerRemainingSeconds: int64(room.TimerRemaining(now).Round(time.Second) / time.Second),
		CreatedAt:             room.CreatedAt.UnixMilli(),
	}
	if room.Participants == nil {
		view.Participants = []domain.Participant{}
	}
	if room.IsRevealed {
		view.Votes = room.Votes
	}
	for _, issue := range room.Issues {
		view.Issues = append(view.Issues, newIssueView(issue))
	}
	if current := room.CurrentIssue(); current != nil {
		v := newIssueView(*current)
		view.CurrentIssue = &v
	}
	return view
}
