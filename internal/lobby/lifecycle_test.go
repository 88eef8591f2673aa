package lobby

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func player() models.Actor { return models.Actor{UserID: uuid.New()} }
func admin() models.Actor  { return models.Actor{UserID: uuid.New(), IsAdmin: true} }

func newSnapshot(t *testing.T, maxPlayers int) (Snapshot, models.Actor) {
	t.Helper()
	creator := player()
	l, p, err := NewLobby(CreateRequest{Game: "Chess", Region: "NA", Price: decimal.NewFromInt(5), MaxPlayers: maxPlayers}, creator.UserID, t0)
	require.NoError(t, err)
	return Snapshot{Lobby: l, Participants: []models.Participant{p}}, creator
}

// step applies ev and folds the mutation back into the snapshot.
func step(t *testing.T, s Snapshot, actor models.Actor, ev Event) Snapshot {
	t.Helper()
	m, err := Transition(s, actor, ev, t0.Add(time.Minute))
	require.NoError(t, err)
	s.Lobby = m.Lobby
	if m.AddParticipant != nil {
		s.Participants = append(append([]models.Participant{}, s.Participants...), *m.AddParticipant)
	}
	if m.RemoveParticipant != nil {
		var kept []models.Participant
		for _, p := range s.Participants {
			if p.UserID != *m.RemoveParticipant {
				kept = append(kept, p)
			}
		}
		s.Participants = kept
	}
	return s
}

func TestNewLobby(t *testing.T) {
	creator := uuid.New()
	l, p, err := NewLobby(CreateRequest{Game: " Chess ", Region: "EU", Price: decimal.RequireFromString("25")}, creator, t0)
	require.NoError(t, err)

	assert.Equal(t, models.LobbyWaiting, l.Status)
	assert.Equal(t, 1, l.CurrentPlayers)
	assert.Equal(t, DefaultMaxPlayers, l.MaxPlayers)
	assert.Equal(t, "Chess", l.Game)
	assert.Equal(t, "45.00", l.WinnerAmount.StringFixed(2))
	assert.Equal(t, creator, p.UserID)
	assert.Equal(t, l.ID, p.LobbyID)
	assert.Equal(t, models.ParticipantActive, p.Status)
}

func TestNewLobbyValidation(t *testing.T) {
	creator := uuid.New()
	cases := map[string]CreateRequest{
		"missing game":   {Region: "NA", MaxPlayers: 2},
		"missing region": {Game: "Chess", MaxPlayers: 2},
		"one player":     {Game: "Chess", Region: "NA", MaxPlayers: 1},
		"negative price": {Game: "Chess", Region: "NA", MaxPlayers: 2, Price: decimal.NewFromInt(-1)},
		"sub-cent price": {Game: "Chess", Region: "NA", MaxPlayers: 3, Price: decimal.RequireFromString("3.333")},
	}
	for name, req := range cases {
		_, _, err := NewLobby(req, creator, t0)
		assert.ErrorIs(t, err, backend.ErrValidation, name)
	}

	_, _, err := NewLobby(CreateRequest{Game: "Chess", Region: "NA"}, uuid.Nil, t0)
	assert.ErrorIs(t, err, backend.ErrAuthRequired)
}

func TestJoinFillsLastSeat(t *testing.T) {
	s, _ := newSnapshot(t, 2)
	joiner := player()

	m, err := Transition(s, joiner, Join{}, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Lobby.CurrentPlayers)
	assert.Equal(t, models.LobbyInProgress, m.Lobby.Status)
	require.NotNil(t, m.AddParticipant)
	assert.Equal(t, joiner.UserID, m.AddParticipant.UserID)
	assert.Equal(t, t0.Add(time.Minute), m.Lobby.UpdatedAt)
}

func TestJoinWithSpareCapacityStaysWaiting(t *testing.T) {
	s, _ := newSnapshot(t, 4)
	s = step(t, s, player(), Join{})
	assert.Equal(t, 2, s.Lobby.CurrentPlayers)
	assert.Equal(t, models.LobbyWaiting, s.Lobby.Status)
}

func TestJoinGuards(t *testing.T) {
	s, creator := newSnapshot(t, 2)

	_, err := Transition(s, creator, Join{}, t0)
	assert.ErrorIs(t, err, backend.ErrAlreadyJoined)

	full := step(t, s, player(), Join{})
	_, err = Transition(full, player(), Join{}, t0)
	assert.ErrorIs(t, err, backend.ErrLobbyFull)

	cancelled := s
	cancelled.Lobby.Status = models.LobbyCancelled
	_, err = Transition(cancelled, player(), Join{}, t0)
	assert.ErrorIs(t, err, backend.ErrInvalidState)

	_, err = Transition(s, models.Actor{}, Join{}, t0)
	assert.ErrorIs(t, err, backend.ErrAuthRequired)
}

func TestNewPrivateLobby(t *testing.T) {
	creator := uuid.New()
	l, _, err := NewLobby(CreateRequest{Game: "Chess", Region: "NA", Private: true}, creator, t0)
	require.NoError(t, err)
	assert.True(t, l.IsPrivate)
	assert.Len(t, l.InviteCode, 8)

	l, _, err = NewLobby(CreateRequest{Game: "Chess", Region: "NA", Private: true, InviteCode: " team7 "}, creator, t0)
	require.NoError(t, err)
	assert.Equal(t, "TEAM7", l.InviteCode)
	assert.Empty(t, l.VisibleTo(uuid.New()).InviteCode)
	assert.Equal(t, "TEAM7", l.VisibleTo(creator).InviteCode)

	for name, req := range map[string]CreateRequest{
		"code on public lobby": {Game: "Chess", Region: "NA", InviteCode: "TEAM7"},
		"short code":           {Game: "Chess", Region: "NA", Private: true, InviteCode: "ab"},
		"punctuation":          {Game: "Chess", Region: "NA", Private: true, InviteCode: "team-7"},
	} {
		_, _, err := NewLobby(req, creator, t0)
		assert.ErrorIs(t, err, backend.ErrValidation, name)
	}
}

func TestJoinPrivateLobby(t *testing.T) {
	creator := player()
	l, p, err := NewLobby(CreateRequest{Game: "Chess", Region: "NA", MaxPlayers: 4, Private: true, InviteCode: "TEAM7"}, creator.UserID, t0)
	require.NoError(t, err)
	s := Snapshot{Lobby: l, Participants: []models.Participant{p}}

	_, err = Transition(s, player(), Join{}, t0)
	assert.ErrorIs(t, err, backend.ErrPermissionDenied)
	_, err = Transition(s, player(), Join{InviteCode: "WRONG"}, t0)
	assert.ErrorIs(t, err, backend.ErrPermissionDenied)

	s = step(t, s, player(), Join{InviteCode: " team7"})
	s = step(t, s, player(), Join{Invited: true})
	assert.Equal(t, 3, s.Lobby.CurrentPlayers)

	_, err = Transition(s, creator, Join{}, t0)
	assert.ErrorIs(t, err, backend.ErrAlreadyJoined)
}

func TestLeave(t *testing.T) {
	s, creator := newSnapshot(t, 2)
	joiner := player()
	s = step(t, s, joiner, Join{})
	require.Equal(t, models.LobbyInProgress, s.Lobby.Status)

	s = step(t, s, joiner, Leave{})
	assert.Equal(t, 1, s.Lobby.CurrentPlayers)
	assert.Equal(t, models.LobbyInProgress, s.Lobby.Status, "leaving keeps the status until the lobby empties")

	s = step(t, s, creator, Leave{})
	assert.Equal(t, 0, s.Lobby.CurrentPlayers)
	assert.Equal(t, models.LobbyWaiting, s.Lobby.Status)

	_, err := Transition(s, player(), Leave{}, t0)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestLeaveRejectedAfterSubmission(t *testing.T) {
	s, creator := newSnapshot(t, 2)
	s = step(t, s, player(), Join{})
	s = step(t, s, creator, SubmitCompletion{MatchID: "match-1"})

	_, err := Transition(s, creator, Leave{}, t0)
	assert.ErrorIs(t, err, backend.ErrInvalidState)
}

func TestSubmitCompletion(t *testing.T) {
	s, creator := newSnapshot(t, 2)

	_, err := Transition(s, creator, SubmitCompletion{MatchID: "m"}, t0)
	assert.ErrorIs(t, err, backend.ErrInvalidState, "waiting lobbies cannot be submitted")

	s = step(t, s, player(), Join{})
	_, err = Transition(s, player(), SubmitCompletion{MatchID: "m"}, t0)
	assert.ErrorIs(t, err, backend.ErrPermissionDenied)

	_, err = Transition(s, creator, SubmitCompletion{MatchID: "  "}, t0)
	assert.ErrorIs(t, err, backend.ErrValidation)

	s = step(t, s, creator, SubmitCompletion{MatchID: " match-42 "})
	assert.Equal(t, models.LobbyPendingReview, s.Lobby.Status)
	assert.Equal(t, "match-42", s.Lobby.GameID)
	assert.Nil(t, s.Lobby.WinnerID)
}

func reviewed(t *testing.T) (Snapshot, models.Actor, models.Actor) {
	t.Helper()
	s, creator := newSnapshot(t, 2)
	joiner := player()
	s = step(t, s, joiner, Join{})
	s = step(t, s, creator, SubmitCompletion{MatchID: "m"})
	return s, creator, joiner
}

func TestComplete(t *testing.T) {
	s, creator, joiner := reviewed(t)
	adm := admin()

	_, err := Transition(s, creator, Complete{WinnerID: creator.UserID}, t0)
	assert.ErrorIs(t, err, backend.ErrPermissionDenied)

	_, err = Transition(s, adm, Complete{}, t0)
	assert.ErrorIs(t, err, backend.ErrValidation)

	_, err = Transition(s, adm, Complete{WinnerID: uuid.New()}, t0)
	assert.ErrorIs(t, err, backend.ErrValidation)

	s = step(t, s, adm, Complete{WinnerID: joiner.UserID})
	assert.Equal(t, models.LobbyCompleted, s.Lobby.Status)
	require.NotNil(t, s.Lobby.WinnerID)
	assert.Equal(t, joiner.UserID, *s.Lobby.WinnerID)

	_, err = Transition(s, adm, Complete{WinnerID: creator.UserID}, t0)
	assert.ErrorIs(t, err, backend.ErrInvalidState)
}

func TestChangeWinnerRequiresConfirmation(t *testing.T) {
	s, creator, joiner := reviewed(t)
	adm := admin()
	s = step(t, s, adm, Complete{WinnerID: joiner.UserID})

	_, err := Transition(s, adm, ChangeWinner{WinnerID: creator.UserID}, t0)
	assert.ErrorIs(t, err, backend.ErrConfirmationRequired)
	assert.Equal(t, joiner.UserID, *s.Lobby.WinnerID)

	_, err = Transition(s, adm, ChangeWinner{WinnerID: joiner.UserID, Confirmed: true}, t0)
	assert.ErrorIs(t, err, backend.ErrValidation)

	s = step(t, s, adm, ChangeWinner{WinnerID: creator.UserID, Confirmed: true})
	assert.Equal(t, models.LobbyCompleted, s.Lobby.Status)
	assert.Equal(t, creator.UserID, *s.Lobby.WinnerID)
}

func TestChangeWinnerOnlyOnCompleted(t *testing.T) {
	s, creator, _ := reviewed(t)
	_, err := Transition(s, admin(), ChangeWinner{WinnerID: creator.UserID, Confirmed: true}, t0)
	assert.ErrorIs(t, err, backend.ErrInvalidState)
}

func TestCancelAndDelete(t *testing.T) {
	s, creator := newSnapshot(t, 2)
	adm := admin()

	_, err := Transition(s, creator, Cancel{Confirmed: true}, t0)
	assert.ErrorIs(t, err, backend.ErrPermissionDenied)
	_, err = Transition(s, adm, Cancel{}, t0)
	assert.ErrorIs(t, err, backend.ErrConfirmationRequired)

	cancelled := step(t, s, adm, Cancel{Confirmed: true})
	assert.Equal(t, models.LobbyCancelled, cancelled.Lobby.Status)

	_, err = Transition(s, adm, Delete{}, t0)
	assert.ErrorIs(t, err, backend.ErrConfirmationRequired)

	m, err := Transition(cancelled, adm, Delete{Confirmed: true}, t0)
	require.NoError(t, err)
	assert.True(t, m.Delete)

	review, _, _ := reviewed(t)
	_, err = Transition(review, adm, Delete{Confirmed: true}, t0)
	assert.ErrorIs(t, err, backend.ErrInvalidState)
	_, err = Transition(review, adm, Cancel{Confirmed: true}, t0)
	assert.ErrorIs(t, err, backend.ErrInvalidState)
}

// Every event applied to every status either fails or yields a lobby that
// keeps the player count within bounds and a known status.
func TestTransitionInvariants(t *testing.T) {
	base, creator := newSnapshot(t, 3)
	member := player()
	base = step(t, base, member, Join{})
	adm := admin()

	statuses := []models.LobbyStatus{models.LobbyWaiting, models.LobbyInProgress, models.LobbyPendingReview, models.LobbyCompleted, models.LobbyCancelled}
	events := []Event{
		Join{}, Leave{}, SubmitCompletion{MatchID: "x"},
		Complete{WinnerID: member.UserID},
		ChangeWinner{WinnerID: creator.UserID, Confirmed: true},
		Cancel{Confirmed: true}, Delete{Confirmed: true},
	}
	actors := []models.Actor{creator, member, player(), adm}

	for _, st := range statuses {
		for _, ev := range events {
			for _, a := range actors {
				s := base
				s.Lobby.Status = st
				m, err := Transition(s, a, ev, t0)
				if err != nil {
					continue
				}
				assert.True(t, m.Lobby.Status.Valid())
				assert.GreaterOrEqual(t, m.Lobby.CurrentPlayers, 0)
				assert.LessOrEqual(t, m.Lobby.CurrentPlayers, m.Lobby.MaxPlayers)
				if _, ok := ev.(SubmitCompletion); ok {
					assert.Equal(t, models.LobbyPendingReview, m.Lobby.Status)
				}
				if st == models.LobbyCompleted && !m.Delete {
					assert.Equal(t, models.LobbyCompleted, m.Lobby.Status, "completed is terminal")
				}
			}
		}
	}
}
