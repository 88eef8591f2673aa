// internal/lobby/service.go
package lobby

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/fees"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/sirupsen/logrus"
)

// Admin action types written to the audit log.
const (
	ActionCompleteLobby = "complete_lobby"
	ActionChangeWinner  = "change_winner"
	ActionCancelLobby   = "cancel_lobby"
	ActionDeleteLobby   = "delete_lobby"
)

// MatchRecorder receives the outcome of a settled lobby.
type MatchRecorder interface {
	RecordLobbyOutcome(ctx context.Context, l models.Lobby, participants []models.Participant) error
}

// Notifier delivers invite notifications.
type Notifier interface {
	InsertNotification(ctx context.Context, n models.Notification) (models.Notification, error)
}

// InviteTTL is how long a lobby invite stays usable.
const InviteTTL = 24 * time.Hour

// Service runs lifecycle operations against a LobbyStore.
type Service struct {
	store    backend.LobbyStore
	auditor  backend.Auditor
	recorder MatchRecorder
	notifier Notifier
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewService wires a lobby service. auditor and recorder may be nil.
func NewService(store backend.LobbyStore, auditor backend.Auditor, recorder MatchRecorder, logger logrus.FieldLogger) *Service {
	return &Service{
		store:    store,
		auditor:  auditor,
		recorder: recorder,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithNotifier sets where invite notifications go.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Detail is a lobby and its active participants read together.
type Detail struct {
	Lobby        models.Lobby         `json:"lobby"`
	Participants []models.Participant `json:"participants"`
	Fees         fees.Display         `json:"fees"`
}

// VisibleTo redacts the lobby for viewer.
func (d Detail) VisibleTo(viewer uuid.UUID) Detail {
	d.Lobby = d.Lobby.VisibleTo(viewer)
	return d
}

// Overview groups lobbies for the admin dashboard.
type Overview struct {
	Active        []models.Lobby `json:"active"`
	PendingReview []models.Lobby `json:"pending_review"`
	Completed     []models.Lobby `json:"completed"`
}

func (s *Service) Create(ctx context.Context, actor models.Actor, req CreateRequest) (models.Lobby, error) {
	if !actor.Authenticated() {
		return models.Lobby{}, backend.ErrAuthRequired
	}
	l, creator, err := NewLobby(req, actor.UserID, s.now())
	if err != nil {
		return models.Lobby{}, err
	}
	if err := s.store.InsertLobby(ctx, l, creator); err != nil {
		return models.Lobby{}, fmt.Errorf("create lobby: %w", err)
	}
	s.log.WithFields(logrus.Fields{"lobby": l.ID, "user": actor.UserID}).Info("lobby created")
	return l, nil
}

func (s *Service) Join(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Lobby, error) {
	return s.JoinWithCode(ctx, actor, id, "")
}

// JoinWithCode joins a lobby; a private lobby needs code to match or an
// open invite for the actor.
func (s *Service) JoinWithCode(ctx context.Context, actor models.Actor, id uuid.UUID, code string) (models.Lobby, error) {
	ev := Join{InviteCode: code}
	if actor.Authenticated() && code == "" {
		invited, err := s.store.HasOpenInvite(ctx, id, actor.UserID, s.now())
		if err != nil {
			return models.Lobby{}, fmt.Errorf("join lobby %s: %w", id, err)
		}
		ev.Invited = invited
	}
	l, _, err := s.apply(ctx, actor, id, ev)
	return l, err
}

func (s *Service) Leave(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Lobby, error) {
	l, _, err := s.apply(ctx, actor, id, Leave{})
	return l, err
}

func (s *Service) SubmitCompletion(ctx context.Context, actor models.Actor, id uuid.UUID, matchID string) (models.Lobby, error) {
	l, _, err := s.apply(ctx, actor, id, SubmitCompletion{MatchID: matchID})
	return l, err
}

// AdminComplete settles a lobby under review and reports the result to the
// match recorder.
func (s *Service) AdminComplete(ctx context.Context, actor models.Actor, id, winner uuid.UUID, reason string) (models.Lobby, error) {
	l, participants, err := s.apply(ctx, actor, id, Complete{WinnerID: winner})
	if err != nil {
		return models.Lobby{}, err
	}
	s.audit(ctx, actor, ActionCompleteLobby, id, reasonOr(reason, "Winner selected: "+winner.String()))

	if s.recorder != nil {
		if err := s.recorder.RecordLobbyOutcome(ctx, l, participants); err != nil {
			s.log.WithError(err).WithField("lobby", id).Warn("failed to record match results")
		}
	}
	return l, nil
}

func (s *Service) AdminChangeWinner(ctx context.Context, actor models.Actor, id, winner uuid.UUID, confirmed bool, reason string) (models.Lobby, error) {
	l, _, err := s.apply(ctx, actor, id, ChangeWinner{WinnerID: winner, Confirmed: confirmed})
	if err != nil {
		return models.Lobby{}, err
	}
	s.audit(ctx, actor, ActionChangeWinner, id, reasonOr(reason, "Winner changed to: "+winner.String()))
	return l, nil
}

func (s *Service) AdminCancel(ctx context.Context, actor models.Actor, id uuid.UUID, confirmed bool, reason string) (models.Lobby, error) {
	l, _, err := s.apply(ctx, actor, id, Cancel{Confirmed: confirmed})
	if err != nil {
		return models.Lobby{}, err
	}
	s.audit(ctx, actor, ActionCancelLobby, id, reasonOr(reason, "Lobby cancelled"))
	return l, nil
}

func (s *Service) AdminDelete(ctx context.Context, actor models.Actor, id uuid.UUID, confirmed bool, reason string) error {
	if _, _, err := s.apply(ctx, actor, id, Delete{Confirmed: confirmed}); err != nil {
		return err
	}
	s.audit(ctx, actor, ActionDeleteLobby, id, reasonOr(reason, "Lobby deleted"))
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.Lobby, error) {
	return s.store.GetLobby(ctx, id)
}

// Detail reads the lobby and its participants from one store snapshot.
func (s *Service) Detail(ctx context.Context, id uuid.UUID) (Detail, error) {
	l, ps, err := s.store.LobbySnapshot(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if ps == nil {
		ps = []models.Participant{}
	}
	return Detail{Lobby: l, Participants: ps, Fees: fees.Of(l).Display()}, nil
}

// Invite asks userID to join a private waiting lobby. The creator and active
// participants may invite.
func (s *Service) Invite(ctx context.Context, actor models.Actor, lobbyID, userID uuid.UUID) (models.LobbyInvite, error) {
	if !actor.Authenticated() {
		return models.LobbyInvite{}, backend.ErrAuthRequired
	}
	if userID == uuid.Nil || userID == actor.UserID {
		return models.LobbyInvite{}, fmt.Errorf("invalid invitee: %w", backend.ErrValidation)
	}
	l, ps, err := s.store.LobbySnapshot(ctx, lobbyID)
	if err != nil {
		return models.LobbyInvite{}, err
	}
	if !l.IsPrivate {
		return models.LobbyInvite{}, fmt.Errorf("lobby %s is public: %w", lobbyID, backend.ErrInvalidState)
	}
	if l.Status != models.LobbyWaiting {
		return models.LobbyInvite{}, wrongStatus("invite to", l.Status)
	}
	snap := Snapshot{Lobby: l, Participants: ps}
	if actor.UserID != l.CreatedBy && !snap.isActive(actor.UserID) {
		return models.LobbyInvite{}, fmt.Errorf("only members can invite: %w", backend.ErrPermissionDenied)
	}
	if snap.isActive(userID) {
		return models.LobbyInvite{}, backend.ErrAlreadyJoined
	}

	now := s.now()
	inv, err := s.store.InsertInvite(ctx, models.LobbyInvite{
		ID:            uuid.New(),
		LobbyID:       lobbyID,
		InvitedUserID: userID,
		InvitedBy:     actor.UserID,
		Status:        models.InvitePending,
		ExpiresAt:     now.Add(InviteTTL),
		CreatedAt:     now,
	})
	if err != nil {
		return models.LobbyInvite{}, fmt.Errorf("invite to lobby %s: %w", lobbyID, err)
	}

	if s.notifier != nil {
		_, err := s.notifier.InsertNotification(ctx, models.Notification{
			UserID:  userID,
			Type:    models.NotifyLobbyInvite,
			Title:   "Lobby invite",
			Message: "You have been invited to " + lobbyTitle(l),
			Data:    map[string]string{"lobby_id": lobbyID.String(), "invite_id": inv.ID.String()},
		})
		if err != nil {
			s.log.WithError(err).WithField("invite", inv.ID).Warn("failed to notify invitee")
		}
	}
	s.log.WithFields(logrus.Fields{"lobby": lobbyID, "user": userID, "by": actor.UserID}).Info("lobby invite sent")
	return inv, nil
}

// Invites lists the actor's pending invites.
func (s *Service) Invites(ctx context.Context, actor models.Actor) ([]models.LobbyInvite, error) {
	if !actor.Authenticated() {
		return nil, backend.ErrAuthRequired
	}
	invs, err := s.store.PendingInvites(ctx, actor.UserID, s.now())
	if err != nil {
		return nil, err
	}
	for i := range invs {
		if invs[i].Lobby != nil {
			l := invs[i].Lobby.VisibleTo(actor.UserID)
			invs[i].Lobby = &l
		}
	}
	return invs, nil
}

// LobbyInvites lists every invite of a lobby for its creator or an admin.
func (s *Service) LobbyInvites(ctx context.Context, actor models.Actor, lobbyID uuid.UUID) ([]models.LobbyInvite, error) {
	if !actor.Authenticated() {
		return nil, backend.ErrAuthRequired
	}
	l, err := s.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != l.CreatedBy && !actor.IsAdmin {
		return nil, backend.ErrPermissionDenied
	}
	return s.store.LobbyInvites(ctx, lobbyID)
}

// AcceptInvite joins the invite's lobby and marks the invite accepted.
func (s *Service) AcceptInvite(ctx context.Context, actor models.Actor, inviteID uuid.UUID) (models.Lobby, error) {
	if !actor.Authenticated() {
		return models.Lobby{}, backend.ErrAuthRequired
	}
	inv, err := s.store.GetInvite(ctx, inviteID)
	if err != nil {
		return models.Lobby{}, err
	}
	if inv.InvitedUserID != actor.UserID {
		return models.Lobby{}, fmt.Errorf("invite %s: %w", inviteID, backend.ErrNotFound)
	}
	if inv.Status != models.InvitePending {
		return models.Lobby{}, fmt.Errorf("invite %s is %s: %w", inviteID, inv.Status, backend.ErrInvalidState)
	}
	if !s.now().Before(inv.ExpiresAt) {
		return models.Lobby{}, fmt.Errorf("invite %s has expired: %w", inviteID, backend.ErrInvalidState)
	}

	l, _, err := s.apply(ctx, actor, inv.LobbyID, Join{Invited: true})
	if err != nil {
		return models.Lobby{}, err
	}
	if _, err := s.store.RespondInvite(ctx, inviteID, actor.UserID, models.InviteAccepted); err != nil {
		s.log.WithError(err).WithField("invite", inviteID).Warn("failed to mark invite accepted")
	}
	return l, nil
}

func (s *Service) DeclineInvite(ctx context.Context, actor models.Actor, inviteID uuid.UUID) (models.LobbyInvite, error) {
	if !actor.Authenticated() {
		return models.LobbyInvite{}, backend.ErrAuthRequired
	}
	return s.store.RespondInvite(ctx, inviteID, actor.UserID, models.InviteDeclined)
}

func lobbyTitle(l models.Lobby) string {
	if l.CustomTitle != "" {
		return l.CustomTitle
	}
	return l.Game + " lobby"
}

func (s *Service) AdminOverview(ctx context.Context, actor models.Actor) (Overview, error) {
	if !actor.Authenticated() {
		return Overview{}, backend.ErrAuthRequired
	}
	if !actor.IsAdmin {
		return Overview{}, backend.ErrPermissionDenied
	}
	all, err := s.store.ListLobbies(ctx)
	if err != nil {
		return Overview{}, err
	}

	o := Overview{Active: []models.Lobby{}, PendingReview: []models.Lobby{}, Completed: []models.Lobby{}}
	for _, l := range all {
		switch l.Status {
		case models.LobbyCompleted:
			o.Completed = append(o.Completed, l)
		case models.LobbyPendingReview:
			o.PendingReview = append(o.PendingReview, l)
		default:
			o.Active = append(o.Active, l)
		}
	}
	return o, nil
}

// apply runs ev through Transition inside a store mutation and returns the
// stored lobby and the participant snapshot the transition saw.
func (s *Service) apply(ctx context.Context, actor models.Actor, id uuid.UUID, ev Event) (models.Lobby, []models.Participant, error) {
	if !actor.Authenticated() {
		return models.Lobby{}, nil, backend.ErrAuthRequired
	}

	var seen []models.Participant
	l, err := s.store.MutateLobby(ctx, id, func(cur models.Lobby, participants []models.Participant) (backend.LobbyMutation, error) {
		seen = participants
		return Transition(Snapshot{Lobby: cur, Participants: participants}, actor, ev, s.now())
	})
	if err != nil {
		return models.Lobby{}, nil, fmt.Errorf("%s lobby %s: %w", eventName(ev), id, err)
	}

	s.log.WithFields(logrus.Fields{
		"lobby":  id,
		"user":   actor.UserID,
		"event":  eventName(ev),
		"status": l.Status,
	}).Debug("lobby transition")
	return l, seen, nil
}

func (s *Service) audit(ctx context.Context, actor models.Actor, actionType string, target uuid.UUID, reason string) {
	if s.auditor == nil {
		return
	}
	action := models.AdminAction{
		ID:         uuid.New(),
		AdminID:    actor.UserID,
		ActionType: actionType,
		TargetID:   target,
		TargetType: "lobby",
		Reason:     reason,
		CreatedAt:  s.now(),
	}
	if err := s.auditor.LogAdminAction(ctx, action); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"action": actionType, "lobby": target}).Warn("failed to log admin action")
	}
}

func eventName(ev Event) string {
	switch ev.(type) {
	case Join:
		return "join"
	case Leave:
		return "leave"
	case SubmitCompletion:
		return "submit completion for"
	case Complete:
		return "complete"
	case ChangeWinner:
		return "change winner of"
	case Cancel:
		return "cancel"
	case Delete:
		return "delete"
	}
	return "update"
}

func reasonOr(reason, def string) string {
	if reason != "" {
		return reason
	}
	return def
}
