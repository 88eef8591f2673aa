package handlers

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/chat"
	"github.com/jason-s-yu/skillstake/internal/middleware"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/jason-s-yu/skillstake/internal/syncer"
	"golang.org/x/sync/errgroup"
)

// chatInbound is a client frame. The only type is "send".
type chatInbound struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

// chatWS streams a lobby's chat room. The first frame is the recent history;
// after that each message new to this connection is pushed once. Signed-in
// clients send with {"type":"send","client_id":...,"message":...} and get an
// ack carrying the stored message, or an error frame with the same client_id.
func (s *Server) chatWS(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "lobbyID")
	if err != nil {
		http.Error(w, "invalid lobby_id", http.StatusBadRequest)
		return
	}
	actor := actorFrom(r.Context())

	room, err := s.Chat.Room(r.Context(), id)
	if err != nil && !isNotFound(err) {
		s.writeError(w, r, err)
		return
	}

	c := s.accept(w, r)
	if c == nil {
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")
	if err != nil {
		c.Close(InvalidLobbyIDError, "lobby does not exist")
		return
	}

	log := s.Log.WithField("lobby", id)
	conv := s.Chat.Conversation(actor, id)
	stream := syncer.New(s.Feed, func(ctx context.Context) ([]models.ChatMessage, error) {
		_, msgs, err := s.Chat.History(ctx, id)
		return msgs, err
	}, log, chat.Topic(room))

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		first := true
		err := stream.Run(ctx, func(msgs []models.ChatMessage) error {
			if first {
				first = false
				conv.Load(msgs)
				return writeFrame(ctx, c, frame{Type: "history", Payload: conv.Messages()})
			}
			for _, m := range msgs {
				if conv.Receive(m) {
					if err := writeFrame(ctx, c, frame{Type: "message", Payload: m}); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if isNotFound(err) {
			c.Close(LobbyDeletedError, "lobby was deleted")
		}
		return err
	})
	g.Go(func() error {
		for {
			var in chatInbound
			if err := wsjson.Read(ctx, c, &in); err != nil {
				return err
			}
			if in.Type != "send" {
				if err := writeFrame(ctx, c, frame{Type: "error", ClientID: in.ClientID, Error: "unknown frame type " + in.Type}); err != nil {
					return err
				}
				continue
			}
			msg, err := s.Chat.Send(ctx, actor, id, in.ClientID, in.Message)
			if err != nil {
				if backend.HTTPStatus(err) == http.StatusInternalServerError {
					log.WithError(err).Error("chat send failed")
					err = errInternal
				}
				if err := writeFrame(ctx, c, frame{Type: "error", ClientID: in.ClientID, Error: err.Error()}); err != nil {
					return err
				}
				continue
			}
			conv.Receive(msg)
			if err := writeFrame(ctx, c, frame{Type: "ack", ClientID: in.ClientID, Payload: msg}); err != nil {
				return err
			}
		}
	})

	err = g.Wait()
	if isNotFound(err) {
		middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, nil)
		return
	}
	err = closeStatus(err)
	middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, err)
	if err == nil {
		c.Close(websocket.StatusNormalClosure, "")
	}
}
