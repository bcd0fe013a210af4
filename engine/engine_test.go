package engine

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"planning-poker/domain"
	"planning-poker/domain/event"
	"planning-poker/errors"

	"github.com/stretchr/testify/require"
)

const roomID = domain.RoomID("room-1")

var (
	now   = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	alice = Actor{UserID: "alice", Name: "Alice"}
	bob   = Actor{UserID: "bob", Name: "Bob"}
	carol = Actor{UserID: "carol", Name: "Carol"}
)

func vote(v int) *domain.VoteValue {
	value := domain.VoteValue(v)
	return &value
}

func newTestEngine() Engine {
	e := New(domain.RolePlayer, nil)
	seq := 0
	e.newID = func() string {
		seq++
		return fmt.Sprintf("issue-%d", seq)
	}
	return e
}

// apply fails the test on error and returns the new room.
func apply(t *testing.T, e Engine, room domain.Room, actor Actor, cmd domain.Command) (domain.Room, []event.Emission) {
	t.Helper()
	out, err := e.Apply(room, actor, cmd, now)
	require.NoError(t, err)
	return out.Room, out.Emissions
}

// roomWithPlayers returns a room administered by alice where bob and carol joined as players.
func roomWithPlayers(t *testing.T, e Engine) domain.Room {
	room := domain.NewRoom(roomID, "Sprint", domain.Profile{UserID: alice.UserID, Name: alice.Name}, now)
	room, _ = apply(t, e, room, alice, domain.JoinRoom{Room: roomID})
	room, _ = apply(t, e, room, bob, domain.JoinRoom{Room: roomID})
	room, _ = apply(t, e, room, carol, domain.JoinRoom{Room: roomID})
	return room
}

func assertRoleVoteInvariant(t *testing.T, room domain.Room) {
	t.Helper()
	req := require.New(t)
	admins := 0
	for _, p := range room.Participants {
		_, voted := room.Votes[p.UserID]
		req.Equal(voted, p.HasVoted, "hasVoted out of sync for %s", p.UserID)
		if voted {
			req.Equal(domain.RolePlayer, p.Role, "%s voted without being a player", p.UserID)
		}
		if p.Role == domain.RoleAdmin {
			admins++
			req.Equal(room.AdminID, p.UserID)
		}
	}
	req.Equal(1, admins)
	if room.IsRevealed {
		req.False(room.IsVotingOpen)
	}
}

func TestEngine_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	e := newTestEngine()
	room := domain.NewRoom(roomID, "Sprint", domain.Profile{UserID: alice.UserID}, now)

	// Given bob joined once
	room, emissions := apply(t, e, room, bob, domain.JoinRoom{Room: roomID})
	req.Len(emissions, 2)
	req.Equal(event.ActorOnly, emissions[0].Audience)
	req.IsType(event.RoomState{}, emissions[0].Event)
	req.Equal(event.Others, emissions[1].Audience)
	req.IsType(event.UserJoined{}, emissions[1].Event)

	// When bob joins again after being promoted to spectator
	room, _ = apply(t, e, room, alice, domain.JoinRoom{Room: roomID})
	room, _ = apply(t, e, room, alice, domain.UpdateRole{Room: roomID, UserID: bob.UserID, Role: domain.RoleSpectator})
	room, _ = apply(t, e, room, bob, domain.JoinRoom{Room: roomID})
	room, _ = apply(t, e, room, bob, domain.JoinRoom{Room: roomID})

	// Then a single record is kept with its role
	req.Len(room.Participants, 2)
	p := room.Participant(bob.UserID)
	req.Equal(domain.RoleSpectator, p.Role)
	req.True(p.IsConnected)
}

func TestEngine_Join_Admin_Gets_Admin_Role(t *testing.T) {
	req := require.New(t)
	e := New(domain.RoleSpectator, nil)
	room := domain.NewRoom(roomID, "Sprint", domain.Profile{UserID: alice.UserID}, now)

	room, _ = apply(t, e, room, alice, domain.JoinRoom{Room: roomID})
	room, _ = apply(t, e, room, bob, domain.JoinRoom{Room: roomID})

	req.Equal(domain.RoleAdmin, room.Participant(alice.UserID).Role)
	req.True(room.Participant(alice.UserID).IsConnected)
	req.Equal(domain.RoleSpectator, room.Participant(bob.UserID).Role)
}

func TestEngine_SubmitVote(t *testing.T) {
	e := newTestEngine()
	room := roomWithPlayers(t, e)

	t.Run("player vote is recorded and broadcast without its value", func(t *testing.T) {
		req := require.New(t)
		next, emissions := apply(t, e, room, bob, domain.SubmitVote{Room: roomID, Value: vote(5)})

		req.Equal(domain.VoteValue(5), next.Votes[bob.UserID])
		req.True(next.Participant(bob.UserID).HasVoted)
		req.Equal([]event.Emission{event.ToEveryone(event.VoteSubmitted{Room: roomID, UserID: bob.UserID})}, emissions)
		// input untouched
		req.Empty(room.Votes)
		assertRoleVoteInvariant(t, next)
	})

	t.Run("admin cannot vote", func(t *testing.T) {
		_, err := e.Apply(room, alice, domain.SubmitVote{Room: roomID, Value: vote(5)}, now)
		require.ErrorIs(t, err, errors.ErrNotPlayer)
	})

	t.Run("value outside the deck is rejected", func(t *testing.T) {
		_, err := e.Apply(room, bob, domain.SubmitVote{Room: roomID, Value: vote(4)}, now)
		require.ErrorIs(t, err, errors.ErrInvalidVote)
	})

	t.Run("stranger cannot vote", func(t *testing.T) {
		_, err := e.Apply(room, Actor{UserID: "mallory"}, domain.SubmitVote{Room: roomID, Value: vote(3)}, now)
		require.ErrorIs(t, err, errors.ErrNotParticipant)
	})

	t.Run("changing a vote before reveal overwrites it", func(t *testing.T) {
		req := require.New(t)
		next, _ := apply(t, e, room, bob, domain.SubmitVote{Room: roomID, Value: vote(5)})
		next, _ = apply(t, e, next, bob, domain.SubmitVote{Room: roomID, Value: vote(8)})
		req.Equal(domain.VoteValue(8), next.Votes[bob.UserID])
		req.Len(next.Votes, 1)
	})
}

func TestEngine_Reveal_Is_Monotonic_Until_Reset(t *testing.T) {
	req := require.New(t)
	e := newTestEngine()
	room := roomWithPlayers(t, e)
	room, _ = apply(t, e, room, bob, domain.SubmitVote{Room: roomID, Value: vote(3)})

	// When the admin reveals
	room, _ = apply(t, e, room, alice, domain.RevealVotes{Room: roomID})
	req.True(room.IsRevealed)
	req.False(room.IsVotingOpen)

	// Then further votes are rejected and the document is unchanged
	before := room.Clone()
	_, err := e.Apply(room, bob, domain.SubmitVote{Room: roomID, Value: vote(8)}, now)
	req.ErrorIs(err, errors.ErrVotingClosed)
	_, err = e.Apply(room, carol, domain.SubmitVote{Room: roomID, Value: vote(8)}, now)
	req.ErrorIs(err, errors.ErrVotingClosed)
	req.Equal(before, room)

	// And only a reset reopens voting
	room, emissions := apply(t, e, room, alice, domain.ResetVoting{Room: roomID})
	req.False(room.IsRevealed)
	req.True(room.IsVotingOpen)
	req.Empty(room.Votes)
	req.IsType(event.VotingReset{}, emissions[0].Event)
	req.IsType(event.RoomState{}, emissions[1].Event)
	assertRoleVoteInvariant(t, room)
}

func TestEngine_Admin_Exclusivity(t *testing.T) {
	e := newTestEngine()
	room := roomWithPlayers(t, e)
	room, _ = apply(t, e, room, alice, domain.AddIssue{Room: roomID, Title: "Login page"})
	issueID := room.Issues[0].ID

	commands := []domain.Command{
		domain.RevealVotes{Room: roomID},
		domain.ResetVoting{Room: roomID},
		domain.ChangeIssue{Room: roomID, Issue: &domain.IssueRef{ID: issueID}},
		domain.AddIssue{Room: roomID, Title: "Another"},
		domain.RemoveIssue{Room: roomID, IssueID: issueID},
		domain.UpdateRole{Room: roomID, UserID: carol.UserID, Role: domain.RoleSpectator},
		domain.StartTimer{Room: roomID, DurationSeconds: 60},
		domain.StopTimer{Room: roomID},
		domain.KickParticipant{Room: roomID, UserID: carol.UserID},
		domain.SetEstimate{Room: roomID, IssueID: issueID, Value: vote(5)},
	}

	for _, cmd := range commands {
		t.Run(cmd.Name(), func(t *testing.T) {
			req := require.New(t)
			before := room.Clone()

			// When a player sends an admin command
			out, err := e.Apply(room, bob, cmd, now)

			// Then it is forbidden and nothing changes
			req.ErrorIs(err, errors.ErrNotAdmin)
			req.Equal(errors.KindForbidden, errors.KindOf(err))
			req.Empty(out.Emissions)
			req.Equal(before, room)

			// And the admin succeeds
			_, err = e.Apply(room, alice, cmd, now)
			req.NoError(err)
		})
	}
}

func TestEngine_UpdateRole(t *testing.T) {
	e := newTestEngine()

	t.Run("leaving player purges the live and archived vote", func(t *testing.T) {
		req := require.New(t)
		room := roomWithPlayers(t, e)
		room, _ = apply(t, e, room, alice, domain.AddIssue{Room: roomID, Title: "API"})
		room, _ = apply(t, e, room, alice, domain.ChangeIssue{Room: roomID, Issue: &domain.IssueRef{ID: room.Issues[0].ID}})
		room, _ = apply(t, e, room, bob, domain.SubmitVote{Room: roomID, Value: vote(8)})
		req.Contains(room.CurrentIssue().Votes, bob.UserID)

		room, emissions := apply(t, e, room, alice, domain.UpdateRole{Room: roomID, UserID: bob.UserID, Role: domain.RoleSpectator})

		req.NotContains(room.Votes, bob.UserID)
		req.NotContains(room.CurrentIssue().Votes, bob.UserID)
		req.False(room.Participant(bob.UserID).HasVoted)
		req.Equal(event.RoleUpdated{Room: roomID, UserID: bob.UserID, Role: domain.RoleSpectator}, emissions[0].Event)
		assertRoleVoteInvariant(t, room)
	})

	t.Run("admin cannot demote itself", func(t *testing.T) {
		room := roomWithPlayers(t, e)
		_, err := e.Apply(room, alice, domain.UpdateRole{Room: roomID, UserID: alice.UserID, Role: domain.RolePlayer}, now)
		require.ErrorIs(t, err, errors.ErrSelfDemotion)
	})

	t.Run("granting admin transfers the room", func(t *testing.T) {
		req := require.New(t)
		room := roomWithPlayers(t, e)
		room, _ = apply(t, e, room, alice, domain.UpdateRole{Room: roomID, UserID: bob.UserID, Role: domain.RoleAdmin})

		req.Equal(bob.UserID, room.AdminID)
		req.Equal(domain.RolePlayer, room.Participant(alice.UserID).Role)
		assertRoleVoteInvariant(t, room)

		_, err := e.Apply(room, alice, domain.RevealVotes{Room: roomID}, now)
		req.ErrorIs(err, errors.ErrNotAdmin)
	})

	t.Run("unknown role and unknown target", func(t *testing.T) {
		room := roomWithPlayers(t, e)
		_, err := e.Apply(room, alice, domain.UpdateRole{Room: roomID, UserID: bob.UserID, Role: "owner"}, now)
		require.ErrorIs(t, err, errors.ErrInvalidRole)
		_, err = e.Apply(room, alice, domain.UpdateRole{Room: roomID, UserID: "ghost", Role: domain.RolePlayer}, now)
		require.ErrorIs(t, err, errors.ErrParticipantNotFound)
	})
}

func TestEngine_Leave_Cleans_Up(t *testing.T) {
	req := require.New(t)
	e := newTestEngine()
	room := roomWithPlayers(t, e)
	room, _ = apply(t, e, room, bob, domain.SubmitVote{Room: roomID, Value: vote(5)})

	// When bob disconnects
	room, emissions := apply(t, e, room, bob, domain.LeaveRoom{Room: roomID})

	// Then his record is kept, disconnected, without vote
	p := room.Participant(bob.UserID)
	req.NotNil(p)
	req.False(p.IsConnected)
	req.False(p.HasVoted)
	req.NotContains(room.Votes, bob.UserID)
	req.Equal([]event.Emission{event.ToOthers(event.UserLeft{Room: roomID, UserID: bob.UserID})}, emissions)

	// And leaving a room one never joined fails
	_, err := e.Apply(room, Actor{UserID: "ghost"}, domain.LeaveRoom{Room: roomID}, now)
	req.ErrorIs(err, errors.ErrParticipantNotFound)
}

func TestEngine_Kick(t *testing.T) {
	req := require.New(t)
	e := newTestEngine()
	room := roomWithPlayers(t, e)
	room, _ = apply(t, e, room, carol, domain.SubmitVote{Room: roomID, Value: vote(2)})

	_, err := e.Apply(room, alice, domain.KickParticipant{Room: roomID, UserID: alice.UserID}, now)
	req.ErrorIs(err, errors.ErrSelfKick)

	room, emissions := apply(t, e, room, alice, domain.KickParticipant{Room: roomID, UserID: carol.UserID})
	req.False(room.Participant(carol.UserID).IsConnected)
	req.NotContains(room.Votes, carol.UserID)
	req.Equal(event.ParticipantKicked{Room: roomID, UserID: carol.UserID}, emissions[0].Event)
	req.Equal(event.Everyone, emissions[0].Audience)
}

func TestEngine_Issues_Keep_Their_Rounds(t *testing.T) {
	req := require.New(t)
	e := newTestEngine()
	room := roomWithPlayers(t, e)
	room, _ = apply(t, e, room, alice, domain.AddIssue{Room: roomID, Title: "  Checkout  ", Description: "cart"})
	room, _ = apply(t, e, room, alice, domain.AddIssue{Room: roomID, Title: "Search"})
	first, second := room.Issues[0].ID, room.Issues[1].ID
	req.Equal("Checkout", room.Issues[0].Title)

	// Given a revealed round on the first issue
	room, _ = apply(t, e, room, alice, domain.ChangeIssue{Room: roomID, Issue: &domain.IssueRef{ID: first}})
	room, _ = apply(t, e, room, bob, domain.SubmitVote{Room: roomID, Value: vote(5)})
	room, _ = apply(t, e, room, alice, domain.RevealVotes{Room: roomID})

	// When switching to a fresh issue
	room, emissions := apply(t, e, room, alice, domain.ChangeIssue{Room: roomID, Issue: &domain.IssueRef{ID: second}})

	// Then the round is fresh and the first issue is archived
	req.Equal(second, room.CurrentIssueID)
	req.True(room.IsVotingOpen)
	req.False(room.IsRevealed)
	req.Empty(room.Votes)
	req.Equal(map[string]domain.VoteValue{bob.UserID: 5}, room.Issue(first).Votes)
	req.True(room.Issue(first).IsRevealed)
	req.Equal(second, emissions[0].Event.(event.IssueChanged).Issue.ID)

	// When switching back
	room, _ = apply(t, e, room, alice, domain.ChangeIssue{Room: roomID, Issue: &domain.IssueRef{ID: first}})

	// Then the archived round is restored
	req.Equal(domain.VoteValue(5), room.Votes[bob.UserID])
	req.True(room.IsRevealed)
	req.False(room.IsVotingOpen)
	req.True(room.Participant(bob.UserID).HasVoted)
	assertRoleVoteInvariant(t, room)

	// And clearing the issue always opens a fresh round
	room, emissions = apply(t, e, room, alice, domain.ChangeIssue{Room: roomID})
	req.Empty(room.CurrentIssueID)
	req.Empty(room.Votes)
	req.True(room.IsVotingOpen)
	req.Nil(emissions[0].Event.(event.IssueChanged).Issue)

	// And an unknown issue is rejected
	_, err := e.Apply(room, alice, domain.ChangeIssue{Room: roomID, Issue: &domain.IssueRef{ID: "nope"}}, now)
	req.ErrorIs(err, errors.ErrIssueNotFound)
}

func TestEngine_AddIssue_Rejects_Blank_Title(t *testing.T) {
	e := newTestEngine()
	room := roomWithPlayers(t, e)
	_, err := e.Apply(room, alice, domain.AddIssue{Room: roomID, Title: "   "}, now)
	require.ErrorIs(t, err, errors.ErrInvalidCommand)
}

type upperFilter struct{}

func (upperFilter) Censor(text string) (string, []string) { return strings.ToUpper(text), nil }

func TestEngine_AddIssue_Filters_Text(t *testing.T) {
	req := require.New(t)
	e := New(domain.RolePlayer, upperFilter{})
	room := domain.NewRoom(roomID, "Sprint", domain.Profile{UserID: alice.UserID}, now)

	room, _ = apply(t, e, room, alice, domain.AddIssue{Room: roomID, Title: "bad", Description: "worse"})

	req.Equal("BAD", room.Issues[0].Title)
	req.Equal("WORSE", room.Issues[0].Description)
}

func TestEngine_RemoveIssue(t *testing.T) {
	req := require.New(t)
	e := newTestEngine()
	room := roomWithPlayers(t, e)
	room, _ = apply(t, e, room, alice, domain.AddIssue{Room: roomID, Title: "A"})
	room, _ = apply(t, e, room, alice, domain.AddIssue{Room: roomID, Title: "B"})
	a, b := room.Issues[0].ID, room.Issues[1].ID
	room, _ = apply(t, e, room, alice, domain.ChangeIssue{Room: roomID, Issue: &domain.IssueRef{ID: a}})
	room, _ = apply(t, e, room, bob, domain.SubmitVote{Room: roomID, Value: vote(1)})

	// Removing a backlog entry that is not current only removes it
	next, emissions := apply(t, e, room, alice, domain.RemoveIssue{Room: roomID, IssueID: b})
	req.Len(emissions, 1)
	req.Equal(a, next.CurrentIssueID)
	req.Len(next.Votes, 1)

	// Removing the current issue clears the round
	next, emissions = apply(t, e, next, alice, domain.RemoveIssue{Room: roomID, IssueID: a})
	req.Len(emissions, 3)
	req.Empty(next.CurrentIssueID)
	req.Empty(next.Votes)
	req.Empty(next.Issues)

	_, err := e.Apply(next, alice, domain.RemoveIssue{Room: roomID, IssueID: a}, now)
	req.ErrorIs(err, errors.ErrIssueNotFound)
}

func TestEngine_Timer(t *testing.T) {
	req := require.New(t)
	e := newTestEngine()
	room := roomWithPlayers(t, e)

	room, emissions := apply(t, e, room, alice, domain.StartTimer{Room: roomID, DurationSeconds: 90})
	end := now.Add(90 * time.Second).UnixMilli()
	req.Equal(end, *room.TimerEndTime)
	req.Equal(event.TimerStarted{Room: roomID, EndTimeEpochMs: end}, emissions[0].Event)
	req.Equal(30*time.Second, room.TimerRemaining(now.Add(time.Minute)))
	req.Zero(room.TimerRemaining(now.Add(time.Hour)))

	for _, d := range []int{0, -5, 86401} {
		_, err := e.Apply(room, alice, domain.StartTimer{Room: roomID, DurationSeconds: d}, now)
		req.ErrorIs(err, errors.ErrInvalidDuration)
	}

	room, _ = apply(t, e, room, alice, domain.StopTimer{Room: roomID})
	req.Nil(room.TimerEndTime)
}

func TestEngine_SetEstimate(t *testing.T) {
	req := require.New(t)
	e := newTestEngine()
	room := roomWithPlayers(t, e)
	room, _ = apply(t, e, room, alice, domain.AddIssue{Room: roomID, Title: "A"})

	room, _ = apply(t, e, room, alice, domain.SetEstimate{Room: roomID, IssueID: room.Issues[0].ID, Value: vote(13)})
	req.Equal(domain.VoteValue(13), *room.Issues[0].FinalEstimate)

	_, err := e.Apply(room, alice, domain.SetEstimate{Room: roomID, IssueID: room.Issues[0].ID, Value: vote(7)}, now)
	req.ErrorIs(err, errors.ErrInvalidVote)
}

type unknownCommand struct{}

func (unknownCommand) RoomID() domain.RoomID { return roomID }
func (unknownCommand) Name() string          { return "dance" }

func TestEngine_Unknown_Command(t *testing.T) {
	e := newTestEngine()
	_, err := e.Apply(domain.Room{}, alice, unknownCommand{}, now)
	require.ErrorIs(t, err, errors.ErrUnknownCommand)
}

func TestEngine_Sprint_Scenario(t *testing.T) {
	req := require.New(t)
	e := newTestEngine()

	// Given alice created "Sprint 1" and everyone joined
	room := domain.NewRoom(roomID, "Sprint 1", domain.Profile{UserID: alice.UserID, Name: alice.Name}, now)
	room, _ = apply(t, e, room, alice, domain.JoinRoom{Room: roomID})
	room, _ = apply(t, e, room, bob, domain.JoinRoom{Room: roomID})
	room, _ = apply(t, e, room, carol, domain.JoinRoom{Room: roomID})

	// And alice picked an issue
	room, _ = apply(t, e, room, alice, domain.AddIssue{Room: roomID, Title: "Login"})
	room, _ = apply(t, e, room, alice, domain.ChangeIssue{Room: roomID, Issue: &domain.IssueRef{ID: room.Issues[0].ID}})

	// When bob and carol vote 3 and 5 and alice reveals
	room, _ = apply(t, e, room, bob, domain.SubmitVote{Room: roomID, Value: vote(3)})
	room, _ = apply(t, e, room, carol, domain.SubmitVote{Room: roomID, Value: vote(5)})
	req.True(room.AllPlayersVoted())
	room, emissions := apply(t, e, room, alice, domain.RevealVotes{Room: roomID})

	// Then the average is 4.0 without consensus
	revealed := emissions[0].Event.(event.VotesRevealed)
	req.Equal(4.0, revealed.Results.Average)
	req.False(revealed.Results.Consensus)
	req.Len(revealed.Results.Votes, 2)
	req.Equal(bob.UserID, revealed.Results.Votes[0].Participant.UserID)

	// And bob cannot change his vote any more
	_, err := e.Apply(room, bob, domain.SubmitVote{Room: roomID, Value: vote(8)}, now)
	req.ErrorIs(err, errors.ErrVotingClosed)
	assertRoleVoteInvariant(t, room)
}
