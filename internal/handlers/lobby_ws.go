// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/lobby"
	"github.com/jason-s-yu/skillstake/internal/middleware"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/jason-s-yu/skillstake/internal/syncer"
)

const writeTimeout = 3 * time.Second

// frame is the envelope of every server-to-client message.
type frame struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id,omitempty"`
	Error    string `json:"error,omitempty"`
	Payload  any    `json:"payload,omitempty"`
}

// originPatterns turns the CORS origins into host patterns for the
// WebSocket origin check.
func (s *Server) originPatterns() []string {
	out := make([]string, 0, len(s.AllowedOrigins))
	for _, o := range s.AllowedOrigins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		out = append(out, o)
	}
	return out
}

// accept upgrades the request and checks the subprotocol. On failure the
// connection is already closed and nil is returned.
func (s *Server) accept(w http.ResponseWriter, r *http.Request) *websocket.Conn {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.Log.Warnf("websocket accept error: %v", err)
		return nil
	}
	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the "+Subprotocol+" subprotocol")
		return nil
	}
	middleware.LogWebSocketConnect(s.Log, r.RemoteAddr, r.URL.Path)
	return c
}

func writeFrame(ctx context.Context, c *websocket.Conn, f frame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, f)
}

// closeStatus is nil for the ways a stream normally ends.
func closeStatus(err error) error {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return nil
	}
	return err
}

// lobbyListWS streams the filtered lobby list, re-sent whole after every
// change to lobbies or participants. The filter comes from the query string
// as in GET /lobbies.
func (s *Server) lobbyListWS(w http.ResponseWriter, r *http.Request) {
	f, err := lobby.ParseFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	actor := actorFrom(r.Context())

	c := s.accept(w, r)
	if c == nil {
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if f.Mine && !actor.Authenticated() {
		c.Close(InvalidAuthTokenError, "mine=true requires a session")
		return
	}

	// The stream is write-only; CloseRead handles control frames and cancels
	// ctx when the peer goes away.
	ctx := c.CloseRead(r.Context())
	stream := syncer.New(s.Feed, func(ctx context.Context) ([]models.Lobby, error) {
		return s.Browser.Load(ctx, actor.UserID, f)
	}, s.Log.WithField("stream", "lobbies"), lobby.ListTopics()...)

	err = stream.Run(ctx, func(lobbies []models.Lobby) error {
		if lobbies == nil {
			lobbies = []models.Lobby{}
		}
		return writeFrame(ctx, c, frame{Type: "lobbies", Payload: lobbies})
	})
	err = closeStatus(err)
	middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, err)
	if err == nil {
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// lobbyDetailWS streams one lobby with its participants and fee display.
// Deleting the lobby ends the stream with a lobby_deleted frame.
func (s *Server) lobbyDetailWS(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "lobbyID"))
	if err != nil {
		http.Error(w, "invalid lobby_id", http.StatusBadRequest)
		return
	}

	c := s.accept(w, r)
	if c == nil {
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	ctx := c.CloseRead(r.Context())
	viewer := actorFrom(r.Context()).UserID
	stream := syncer.New(s.Feed, func(ctx context.Context) (lobby.Detail, error) {
		d, err := s.Lobbies.Detail(ctx, id)
		return d.VisibleTo(viewer), err
	}, s.Log.WithField("lobby", id), lobby.DetailTopics(id)...)

	sent := false
	err = stream.Run(ctx, func(d lobby.Detail) error {
		sent = true
		return writeFrame(ctx, c, frame{Type: "lobby", Payload: d})
	})
	switch {
	case isNotFound(err) && !sent:
		c.Close(InvalidLobbyIDError, "lobby does not exist")
		return
	case isNotFound(err):
		_ = writeFrame(r.Context(), c, frame{Type: "lobby_deleted", Payload: map[string]string{"lobby_id": id.String()}})
		c.Close(LobbyDeletedError, "lobby was deleted")
		middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, nil)
		return
	}
	err = closeStatus(err)
	middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, err)
	if err == nil {
		c.Close(websocket.StatusNormalClosure, "")
	}
}
