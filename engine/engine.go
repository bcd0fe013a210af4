// Package engine is the room state machine.
// Apply is pure: it never touches storage, clocks or connections, and it
// returns either a complete new Room with the events to emit, or an error
// with nothing to persist.
package engine

import (
	"fmt"
	"strings"
	"time"

	"planning-poker/domain"
	"planning-poker/domain/event"
	"planning-poker/errors"

	"github.com/google/uuid"
)

const maxTimerSeconds = 24 * 60 * 60

// Actor is the resolved identity behind a command.
// Name and AvatarURL are only needed to join.
type Actor = domain.Profile

// TextFilter rewrites user supplied text before it is stored.
type TextFilter interface {
	Censor(text string) (string, []string)
}

type Outcome struct {
	Room      domain.Room
	Emissions []event.Emission
}

type Engine struct {
	defaultJoinRole domain.Role
	filter          TextFilter
	newID           func() string
}

// New builds an engine. defaultJoinRole is the role granted to first-time
// joiners other than the admin; filter may be nil.
func New(defaultJoinRole domain.Role, filter TextFilter) Engine {
	if defaultJoinRole != domain.RoleSpectator {
		defaultJoinRole = domain.RolePlayer
	}
	return Engine{defaultJoinRole: defaultJoinRole, filter: filter, newID: uuid.NewString}
}

// Apply executes one transition against a copy of room.
func (e Engine) Apply(room domain.Room, actor Actor, cmd domain.Command, now time.Time) (Outcome, error) {
	r := room.Clone()
	var (
		emissions []event.Emission
		err       error
	)

	switch c := cmd.(type) {
	case domain.JoinRoom:
		emissions = e.join(&r, actor)
	case domain.LeaveRoom:
		emissions, err = leave(&r, actor.UserID)
	case domain.SubmitVote:
		emissions, err = submitVote(&r, actor.UserID, c)
	case domain.RevealVotes:
		emissions, err = reveal(&r, actor.UserID)
	case domain.ResetVoting:
		emissions, err = reset(&r, actor.UserID)
	case domain.ChangeIssue:
		emissions, err = changeIssue(&r, actor.UserID, c)
	case domain.AddIssue:
		emissions, err = e.addIssue(&r, actor.UserID, c)
	case domain.RemoveIssue:
		emissions, err = removeIssue(&r, actor.UserID, c)
	case domain.UpdateRole:
		emissions, err = updateRole(&r, actor.UserID, c)
	case domain.StartTimer:
		emissions, err = startTimer(&r, actor.UserID, c, now)
	case domain.StopTimer:
		emissions, err = stopTimer(&r, actor.UserID)
	case domain.KickParticipant:
		emissions, err = kick(&r, actor.UserID, c)
	case domain.SetEstimate:
		emissions, err = setEstimate(&r, actor.UserID, c)
	default:
		return Outcome{}, fmt.Errorf("%w: %T", errors.ErrUnknownCommand, cmd)
	}
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Room: r, Emissions: emissions}, nil
}

func requireAdmin(r *domain.Room, actorID string) error {
	if !r.IsAdmin(actorID) {
		return errors.ErrNotAdmin
	}
	return nil
}

// join is idempotent: a returning user keeps role and identity.
func (e Engine) join(r *domain.Room, actor Actor) []event.Emission {
	p := r.Participant(actor.UserID)
	if p != nil {
		p.IsConnected = true
	} else {
		role := e.defaultJoinRole
		if r.IsAdmin(actor.UserID) {
			role = domain.RoleAdmin
		}
		r.Participants = append(r.Participants, domain.Participant{
			UserID:      actor.UserID,
			Name:        actor.Name,
			AvatarURL:   actor.AvatarURL,
			Role:        role,
			IsConnected: true,
		})
		p = r.Participant(actor.UserID)
	}
	return []event.Emission{
		event.ToActor(event.RoomState{Room: *r}),
		event.ToOthers(event.UserJoined{Room: r.ID, Participant: *p}),
	}
}

func leave(r *domain.Room, userID string) ([]event.Emission, error) {
	p := r.Participant(userID)
	if p == nil {
		return nil, errors.ErrParticipantNotFound
	}
	p.IsConnected = false
	r.PurgeVote(userID)
	return []event.Emission{event.ToOthers(event.UserLeft{Room: r.ID, UserID: userID})}, nil
}

func submitVote(r *domain.Room, actorID string, c domain.SubmitVote) ([]event.Emission, error) {
	if c.Value == nil || !c.Value.Valid() {
		return nil, errors.ErrInvalidVote
	}
	p := r.Participant(actorID)
	if p == nil {
		return nil, errors.ErrNotParticipant
	}
	if p.Role != domain.RolePlayer {
		return nil, errors.ErrNotPlayer
	}
	if r.IsRevealed {
		return nil, errors.ErrVotingClosed
	}

	r.Votes[actorID] = *c.Value
	p.HasVoted = true
	if issue := r.CurrentIssue(); issue != nil {
		if issue.Votes == nil {
			issue.Votes = map[string]domain.VoteValue{}
		}
		issue.Votes[actorID] = *c.Value
	}
	return []event.Emission{event.ToEveryone(event.VoteSubmitted{Room: r.ID, UserID: actorID})}, nil
}

func reveal(r *domain.Room, actorID string) ([]event.Emission, error) {
	if err := requireAdmin(r, actorID); err != nil {
		return nil, err
	}
	r.IsRevealed = true
	r.IsVotingOpen = false
	if issue := r.CurrentIssue(); issue != nil {
		issue.Archive(r.Votes, true)
	}
	results := domain.CalculateResults(*r)
	return []event.Emission{event.ToEveryone(event.VotesRevealed{Room: r.ID, Results: results})}, nil
}

func reset(r *domain.Room, actorID string) ([]event.Emission, error) {
	if err := requireAdmin(r, actorID); err != nil {
		return nil, err
	}
	r.ResetRound()
	if issue := r.CurrentIssue(); issue != nil {
		issue.ClearSnapshot()
	}
	return []event.Emission{
		event.ToEveryone(event.VotingReset{Room: r.ID}),
		event.ToEveryone(event.RoomState{Room: *r}),
	}, nil
}

// changeIssue archives the outgoing round first, then restores the
// incoming issue's snapshot or opens a fresh round.
func changeIssue(r *domain.Room, actorID string, c domain.ChangeIssue) ([]event.Emission, error) {
	if err := requireAdmin(r, actorID); err != nil {
		return nil, err
	}
	var incoming *domain.Issue
	if c.Issue != nil {
		if incoming = r.Issue(c.Issue.ID); incoming == nil {
			return nil, errors.ErrIssueNotFound
		}
	}

	if outgoing := r.CurrentIssue(); outgoing != nil {
		outgoing.Archive(r.Votes, r.IsRevealed)
	}

	var changed *domain.Issue
	switch {
	case incoming == nil:
		r.CurrentIssueID = ""
		r.ResetRound()
	case incoming.Votes != nil:
		r.CurrentIssueID = incoming.ID
		r.RestoreRound(incoming.Votes, incoming.IsRevealed)
	default:
		r.CurrentIssueID = incoming.ID
		r.ResetRound()
	}
	if current := r.CurrentIssue(); current != nil {
		copied := current.Clone()
		changed = &copied
	}
	return []event.Emission{
		event.ToEveryone(event.IssueChanged{Room: r.ID, Issue: changed}),
		event.ToEveryone(event.RoomState{Room: *r}),
	}, nil
}

func (e Engine) addIssue(r *domain.Room, actorID string, c domain.AddIssue) ([]event.Emission, error) {
	if err := requireAdmin(r, actorID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", errors.ErrInvalidCommand)
	}
	issue := domain.Issue{
		ID:          e.newID(),
		Title:       e.censor(title),
		Description: e.censor(strings.TrimSpace(c.Description)),
	}
	r.Issues = append(r.Issues, issue)
	return []event.Emission{event.ToEveryone(event.IssueAdded{Room: r.ID, Issue: issue})}, nil
}

// removeIssue drops a backlog entry; removing the current one closes its round.
func removeIssue(r *domain.Room, actorID string, c domain.RemoveIssue) ([]event.Emission, error) {
	if err := requireAdmin(r, actorID); err != nil {
		return nil, err
	}
	if r.Issue(c.IssueID) == nil {
		return nil, errors.ErrIssueNotFound
	}
	wasCurrent := r.CurrentIssueID == c.IssueID

	issues := make([]domain.Issue, 0, len(r.Issues)-1)
	for _, issue := range r.Issues {
		if issue.ID != c.IssueID {
			issues = append(issues, issue)
		}
	}
	r.Issues = issues

	emissions := []event.Emission{event.ToEveryone(event.IssueRemoved{Room: r.ID, IssueID: c.IssueID})}
	if wasCurrent {
		r.CurrentIssueID = ""
		r.ResetRound()
		emissions = append(emissions,
			event.ToEveryone(event.IssueChanged{Room: r.ID}),
			event.ToEveryone(event.RoomState{Room: *r}),
		)
	}
	return emissions, nil
}

// updateRole sets a participant's role. Granting admin to someone else
// hands the room over: the previous admin becomes a player.
func updateRole(r *domain.Room, actorID string, c domain.UpdateRole) ([]event.Emission, error) {
	if err := requireAdmin(r, actorID); err != nil {
		return nil, err
	}
	if !c.Role.Valid() {
		return nil, errors.ErrInvalidRole
	}
	target := r.Participant(c.UserID)
	if target == nil {
		return nil, errors.ErrParticipantNotFound
	}
	if c.UserID == actorID {
		if c.Role != domain.RoleAdmin {
			return nil, errors.ErrSelfDemotion
		}
		return []event.Emission{event.ToEveryone(event.RoomState{Room: *r})}, nil
	}

	var emissions []event.Emission
	if c.Role == domain.RoleAdmin {
		previous := r.Participant(actorID)
		previous.Role = domain.RolePlayer
		r.AdminID = c.UserID
		emissions = append(emissions, event.ToEveryone(event.RoleUpdated{Room: r.ID, UserID: actorID, Role: domain.RolePlayer}))
	}
	target.Role = c.Role
	if c.Role != domain.RolePlayer {
		r.PurgeVote(c.UserID)
	}
	emissions = append(emissions,
		event.ToEveryone(event.RoleUpdated{Room: r.ID, UserID: c.UserID, Role: c.Role}),
		event.ToEveryone(event.RoomState{Room: *r}),
	)
	return emissions, nil
}

func startTimer(r *domain.Room, actorID string, c domain.StartTimer, now time.Time) ([]event.Emission, error) {
	if err := requireAdmin(r, actorID); err != nil {
		return nil, err
	}
	if c.DurationSeconds <= 0 || c.DurationSeconds > maxTimerSeconds {
		return nil, errors.ErrInvalidDuration
	}
	end := now.Add(time.Duration(c.DurationSeconds) * time.Second).UnixMilli()
	r.TimerEndTime = &end
	return []event.Emission{event.ToEveryone(event.TimerStarted{Room: r.ID, EndTimeEpochMs: end})}, nil
}

func stopTimer(r *domain.Room, actorID string) ([]event.Emission, error) {
	if err := requireAdmin(r, actorID); err != nil {
		return nil, err
	}
	r.TimerEndTime = nil
	return []event.Emission{event.ToEveryone(event.TimerStopped{Room: r.ID})}, nil
}

// kick is a forced leave for someone else.
func kick(r *domain.Room, actorID string, c domain.KickParticipant) ([]event.Emission, error) {
	if err := requireAdmin(r, actorID); err != nil {
		return nil, err
	}
	if c.UserID == actorID {
		return nil, errors.ErrSelfKick
	}
	target := r.Participant(c.UserID)
	if target == nil {
		return nil, errors.ErrParticipantNotFound
	}
	target.IsConnected = false
	r.PurgeVote(c.UserID)
	return []event.Emission{
		event.ToEveryone(event.ParticipantKicked{Room: r.ID, UserID: c.UserID}),
		event.ToEveryone(event.RoomState{Room: *r}),
	}, nil
}

func setEstimate(r *domain.Room, actorID string, c domain.SetEstimate) ([]event.Emission, error) {
	if err := requireAdmin(r, actorID); err != nil {
		return nil, err
	}
	if c.Value == nil || !c.Value.Valid() {
		return nil, errors.ErrInvalidVote
	}
	issue := r.Issue(c.IssueID)
	if issue == nil {
		return nil, errors.ErrIssueNotFound
	}
	value := *c.Value
	issue.FinalEstimate = &value
	return []event.Emission{
		event.ToEveryone(event.EstimateSet{Room: r.ID, IssueID: issue.ID, Value: value}),
		event.ToEveryone(event.RoomState{Room: *r}),
	}, nil
}

func (e Engine) censor(text string) string {
	if e.filter == nil || text == "" {
		return text
	}
	censored, _ := e.filter.Censor(text)
	return censored
}
