// internal/lobby/lifecycle.go
package lobby

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/fees"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultMaxPlayers is used when a create request leaves max players unset.
const DefaultMaxPlayers = 2

// CreateRequest is the payload of a new lobby.
type CreateRequest struct {
	Game        string          `json:"game"`
	CustomTitle string          `json:"custom_title"`
	Description string          `json:"description"`
	Region      string          `json:"region"`
	Platform    string          `json:"platform"`
	Price       decimal.Decimal `json:"price"`
	MaxPlayers  int             `json:"max_players"`

	// Private lobbies are hidden from the public list and joined by invite
	// or InviteCode. A blank code on a private lobby is generated.
	Private    bool   `json:"private"`
	InviteCode string `json:"invite_code"`
}

const (
	minInviteCode = 4
	maxInviteCode = 16
)

// NewInviteCode returns an 8 character uppercase code.
func NewInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func normalizeInviteCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) < minInviteCode || len(code) > maxInviteCode {
		return "", fmt.Errorf("invite code must be %d to %d characters: %w", minInviteCode, maxInviteCode, backend.ErrValidation)
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("invite code must be letters and digits: %w", backend.ErrValidation)
		}
	}
	return code, nil
}

// NewLobby builds a waiting lobby with the creator enrolled as its first
// active participant. It is the only way a lobby comes into existence.
func NewLobby(req CreateRequest, creator uuid.UUID, now time.Time) (models.Lobby, models.Participant, error) {
	if creator == uuid.Nil {
		return models.Lobby{}, models.Participant{}, backend.ErrAuthRequired
	}
	if strings.TrimSpace(req.Game) == "" {
		return models.Lobby{}, models.Participant{}, fmt.Errorf("game is required: %w", backend.ErrValidation)
	}
	if strings.TrimSpace(req.Region) == "" {
		return models.Lobby{}, models.Participant{}, fmt.Errorf("region is required: %w", backend.ErrValidation)
	}
	if req.MaxPlayers == 0 {
		req.MaxPlayers = DefaultMaxPlayers
	}
	if req.MaxPlayers < 2 {
		return models.Lobby{}, models.Participant{}, fmt.Errorf("max players must be at least 2: %w", backend.ErrValidation)
	}

	var code string
	switch {
	case !req.Private && strings.TrimSpace(req.InviteCode) != "":
		return models.Lobby{}, models.Participant{}, fmt.Errorf("only private lobbies take an invite code: %w", backend.ErrValidation)
	case req.Private && strings.TrimSpace(req.InviteCode) == "":
		code = NewInviteCode()
	case req.Private:
		var err error
		if code, err = normalizeInviteCode(req.InviteCode); err != nil {
			return models.Lobby{}, models.Participant{}, err
		}
	}

	l := models.Lobby{
		ID:             uuid.New(),
		Game:           strings.TrimSpace(req.Game),
		CustomTitle:    strings.TrimSpace(req.CustomTitle),
		Description:    strings.TrimSpace(req.Description),
		Region:         strings.TrimSpace(req.Region),
		Platform:       strings.TrimSpace(req.Platform),
		Price:          req.Price,
		MaxPlayers:     req.MaxPlayers,
		CurrentPlayers: 1,
		Status:         models.LobbyWaiting,
		CreatedBy:      creator,
		IsPrivate:      req.Private,
		InviteCode:     code,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := fees.Apply(&l); err != nil {
		return models.Lobby{}, models.Participant{}, err
	}

	p := models.Participant{
		ID:       uuid.New(),
		LobbyID:  l.ID,
		UserID:   creator,
		JoinedAt: now,
		Status:   models.ParticipantActive,
	}
	return l, p, nil
}

// Event is a requested lifecycle transition.
type Event interface{ isEvent() }

type (
	// Join enrols the actor. A private lobby also needs a matching InviteCode
	// or Invited, which the caller sets after checking for an open invite.
	Join struct {
		InviteCode string
		Invited    bool
	}
	Leave struct{}
	// SubmitCompletion reports the external match identifier of a finished game.
	SubmitCompletion struct{ MatchID string }
	// Complete settles a lobby under review in favour of WinnerID.
	Complete     struct{ WinnerID uuid.UUID }
	ChangeWinner struct {
		WinnerID  uuid.UUID
		Confirmed bool
	}
	Cancel struct{ Confirmed bool }
	Delete struct{ Confirmed bool }
)

func (Join) isEvent()             {}
func (Leave) isEvent()            {}
func (SubmitCompletion) isEvent() {}
func (Complete) isEvent()         {}
func (ChangeWinner) isEvent()     {}
func (Cancel) isEvent()           {}
func (Delete) isEvent()           {}

// Snapshot is a lobby together with its active participants, read atomically.
type Snapshot struct {
	Lobby        models.Lobby
	Participants []models.Participant
}

func (s Snapshot) isActive(userID uuid.UUID) bool {
	for _, p := range s.Participants {
		if p.UserID == userID && p.Status == models.ParticipantActive {
			return true
		}
	}
	return false
}

// Transition applies ev on behalf of actor and returns the write to persist.
// It is the only function that changes a lobby's status. Guard failures are
// returned as errors wrapping the backend sentinels and leave s untouched.
func Transition(s Snapshot, actor models.Actor, ev Event, now time.Time) (backend.LobbyMutation, error) {
	if !actor.Authenticated() {
		return backend.LobbyMutation{}, backend.ErrAuthRequired
	}
	l := s.Lobby

	switch e := ev.(type) {
	case Join:
		if s.isActive(actor.UserID) {
			return backend.LobbyMutation{}, backend.ErrAlreadyJoined
		}
		if l.IsPrivate && actor.UserID != l.CreatedBy && !e.Invited &&
			(l.InviteCode == "" || !strings.EqualFold(strings.TrimSpace(e.InviteCode), l.InviteCode)) {
			return backend.LobbyMutation{}, fmt.Errorf("private lobby requires an invite: %w", backend.ErrPermissionDenied)
		}
		if l.CurrentPlayers >= l.MaxPlayers {
			return backend.LobbyMutation{}, backend.ErrLobbyFull
		}
		if l.Status != models.LobbyWaiting {
			return backend.LobbyMutation{}, wrongStatus("join", l.Status)
		}
		l.CurrentPlayers++
		if l.CurrentPlayers == l.MaxPlayers {
			l.Status = models.LobbyInProgress
		}
		l.UpdatedAt = now
		return backend.LobbyMutation{
			Lobby: l,
			AddParticipant: &models.Participant{
				ID:       uuid.New(),
				LobbyID:  l.ID,
				UserID:   actor.UserID,
				JoinedAt: now,
				Status:   models.ParticipantActive,
			},
		}, nil

	case Leave:
		if !s.isActive(actor.UserID) {
			return backend.LobbyMutation{}, fmt.Errorf("not a participant of lobby %s: %w", l.ID, backend.ErrNotFound)
		}
		if l.Status != models.LobbyWaiting && l.Status != models.LobbyInProgress {
			return backend.LobbyMutation{}, wrongStatus("leave", l.Status)
		}
		if l.CurrentPlayers > 0 {
			l.CurrentPlayers--
		}
		if l.CurrentPlayers == 0 {
			l.Status = models.LobbyWaiting
		}
		l.UpdatedAt = now
		uid := actor.UserID
		return backend.LobbyMutation{Lobby: l, RemoveParticipant: &uid}, nil

	case SubmitCompletion:
		if !s.isActive(actor.UserID) {
			return backend.LobbyMutation{}, fmt.Errorf("only participants can submit a result: %w", backend.ErrPermissionDenied)
		}
		if l.Status != models.LobbyInProgress {
			return backend.LobbyMutation{}, wrongStatus("submit completion", l.Status)
		}
		matchID := strings.TrimSpace(e.MatchID)
		if matchID == "" {
			return backend.LobbyMutation{}, fmt.Errorf("match id is required: %w", backend.ErrValidation)
		}
		l.GameID = matchID
		l.Status = models.LobbyPendingReview
		l.UpdatedAt = now
		return backend.LobbyMutation{Lobby: l}, nil

	case Complete:
		if !actor.IsAdmin {
			return backend.LobbyMutation{}, backend.ErrPermissionDenied
		}
		if l.Status != models.LobbyPendingReview {
			return backend.LobbyMutation{}, wrongStatus("complete", l.Status)
		}
		if err := s.checkWinner(e.WinnerID); err != nil {
			return backend.LobbyMutation{}, err
		}
		winner := e.WinnerID
		l.WinnerID = &winner
		l.Status = models.LobbyCompleted
		l.UpdatedAt = now
		return backend.LobbyMutation{Lobby: l}, nil

	case ChangeWinner:
		if !actor.IsAdmin {
			return backend.LobbyMutation{}, backend.ErrPermissionDenied
		}
		if l.Status != models.LobbyCompleted {
			return backend.LobbyMutation{}, wrongStatus("change winner", l.Status)
		}
		if !e.Confirmed {
			return backend.LobbyMutation{}, backend.ErrConfirmationRequired
		}
		if err := s.checkWinner(e.WinnerID); err != nil {
			return backend.LobbyMutation{}, err
		}
		if l.WinnerID != nil && *l.WinnerID == e.WinnerID {
			return backend.LobbyMutation{}, fmt.Errorf("winner is unchanged: %w", backend.ErrValidation)
		}
		winner := e.WinnerID
		l.WinnerID = &winner
		l.UpdatedAt = now
		return backend.LobbyMutation{Lobby: l}, nil

	case Cancel:
		if !actor.IsAdmin {
			return backend.LobbyMutation{}, backend.ErrPermissionDenied
		}
		if l.Status != models.LobbyWaiting && l.Status != models.LobbyInProgress {
			return backend.LobbyMutation{}, wrongStatus("cancel", l.Status)
		}
		if !e.Confirmed {
			return backend.LobbyMutation{}, backend.ErrConfirmationRequired
		}
		l.Status = models.LobbyCancelled
		l.UpdatedAt = now
		return backend.LobbyMutation{Lobby: l}, nil

	case Delete:
		if !actor.IsAdmin {
			return backend.LobbyMutation{}, backend.ErrPermissionDenied
		}
		switch l.Status {
		case models.LobbyWaiting, models.LobbyInProgress, models.LobbyCancelled:
		default:
			return backend.LobbyMutation{}, wrongStatus("delete", l.Status)
		}
		if !e.Confirmed {
			return backend.LobbyMutation{}, backend.ErrConfirmationRequired
		}
		return backend.LobbyMutation{Lobby: l, Delete: true}, nil
	}

	return backend.LobbyMutation{}, fmt.Errorf("unknown lobby event %T: %w", ev, backend.ErrValidation)
}

func (s Snapshot) checkWinner(winner uuid.UUID) error {
	if winner == uuid.Nil {
		return fmt.Errorf("a winner must be selected: %w", backend.ErrValidation)
	}
	if !s.isActive(winner) {
		return fmt.Errorf("winner %s is not an active participant: %w", winner, backend.ErrValidation)
	}
	return nil
}

func wrongStatus(action string, status models.LobbyStatus) error {
	return fmt.Errorf("cannot %s a %s lobby: %w", action, status, backend.ErrInvalidState)
}
