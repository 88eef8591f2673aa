package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/skillstake/internal/achievements"
	"github.com/jason-s-yu/skillstake/internal/auth"
	"github.com/jason-s-yu/skillstake/internal/backend/memory"
	"github.com/jason-s-yu/skillstake/internal/chat"
	"github.com/jason-s-yu/skillstake/internal/lobby"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/jason-s-yu/skillstake/internal/social"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = auth.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type testEnv struct {
	srv   *httptest.Server
	store *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store := memory.New(nil, logger)
	store.SeedAchievements(achievements.Catalog())
	sessions, err := auth.NewSessions(time.Hour)
	require.NoError(t, err)

	ach := achievements.NewService(store, store, logger)
	s := &Server{
		Auth:           auth.NewService(store, sessions, testParams, logger),
		Lobbies:        lobby.NewService(store, store, ach, logger).WithNotifier(store),
		Browser:        lobby.NewBrowser(store),
		Chat:           chat.NewService(store, logger),
		Achievements:   ach,
		Social:         social.NewService(store, store, logger),
		Feed:           store.Backend().Feed,
		Log:            logger,
		AllowedOrigins: []string{"http://*", "https://*"},
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store}
}

// do sends a JSON request with an optional bearer token and decodes the
// response into out when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (e *testEnv) signUp(t *testing.T, username string) (models.User, string) {
	t.Helper()
	var out sessionResponse
	resp := e.do(t, http.MethodPost, "/auth/signup", "", auth.SignUpRequest{
		Email:    username + "@example.com",
		Username: username,
		Password: "hunter22",
	}, &out)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return out.User, out.Token
}

// admin creates an administrator directly in the store and signs in.
func (e *testEnv) admin(t *testing.T) string {
	t.Helper()
	hash, err := auth.HashPassword("hunter22", testParams)
	require.NoError(t, err)
	require.NoError(t, e.store.CreateUser(context.Background(), &models.User{
		Email: "root@example.com", Username: "root", Password: hash, IsAdmin: true,
	}))
	var out sessionResponse
	resp := e.do(t, http.MethodPost, "/auth/signin", "", map[string]string{"username": "root", "password": "hunter22"}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return out.Token
}

func (e *testEnv) createLobby(t *testing.T, token string) models.Lobby {
	t.Helper()
	var l models.Lobby
	resp := e.do(t, http.MethodPost, "/lobbies", token, map[string]any{
		"game": "Chess", "region": "NA", "platform": "PC", "price": "10", "max_players": 2,
	}, &l)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return l
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t)

	u, token := e.signUp(t, "Alice")
	assert.Equal(t, "alice", u.Username)
	assert.Empty(t, u.Password)
	assert.NotEmpty(t, token)

	var me models.User
	resp := e.do(t, http.MethodGet, "/auth/me", token, nil, &me)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, u.ID, me.ID)

	resp = e.do(t, http.MethodGet, "/auth/me", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/auth/me", "not-a-token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/auth/signin", "", map[string]string{"username": "alice", "password": "wrong!"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var avail map[string]bool
	e.do(t, http.MethodGet, "/auth/username-available?username=ALICE", "", nil, &avail)
	assert.False(t, avail["available"])
	e.do(t, http.MethodGet, "/auth/username-available?username=bob", "", nil, &avail)
	assert.True(t, avail["available"])

	resp = e.do(t, http.MethodPost, "/auth/signup", "", auth.SignUpRequest{
		Email: "other@example.com", Username: "alice", Password: "hunter22",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSignInSetsCookie(t *testing.T) {
	e := newTestEnv(t)
	e.signUp(t, "alice")

	resp := e.do(t, http.MethodPost, "/auth/signin", "", map[string]string{"username": "alice", "password": "hunter22"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == authCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	me, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	me.Body.Close()
	assert.Equal(t, http.StatusOK, me.StatusCode)
}

func TestFeePreview(t *testing.T) {
	e := newTestEnv(t)

	var d map[string]string
	resp := e.do(t, http.MethodGet, "/fees/preview?price=10&max_players=2", "", nil, &d)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{
		"pot": "20.00", "platform_fee": "2.00", "bond_per_player": "0.50", "winner_amount": "18.00",
	}, d)

	resp = e.do(t, http.MethodGet, "/fees/preview?price=-1", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = e.do(t, http.MethodGet, "/fees/preview?price=abc", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLobbyFlow(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp(t, "alice")
	_, bob := e.signUp(t, "bob")

	resp := e.do(t, http.MethodPost, "/lobbies", "", map[string]any{"game": "Chess", "region": "NA"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	l := e.createLobby(t, alice)
	assert.Equal(t, models.LobbyWaiting, l.Status)
	assert.Equal(t, 1, l.CurrentPlayers)

	var list []models.Lobby
	resp = e.do(t, http.MethodGet, "/lobbies?region=NA&sort=price-low", "", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, l.ID, list[0].ID)

	resp = e.do(t, http.MethodGet, "/lobbies?mine=true", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = e.do(t, http.MethodGet, "/lobbies?sort=cheapest", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var joined models.Lobby
	resp = e.do(t, http.MethodPost, "/lobbies/"+l.ID.String()+"/join", bob, nil, &joined)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.LobbyInProgress, joined.Status)

	resp = e.do(t, http.MethodPost, "/lobbies/"+l.ID.String()+"/join", bob, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var detail lobby.Detail
	resp = e.do(t, http.MethodGet, "/lobbies/"+l.ID.String(), "", nil, &detail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, detail.Participants, 2)
	assert.Equal(t, "18.00", detail.Fees.WinnerAmount)

	var pending models.Lobby
	resp = e.do(t, http.MethodPost, "/lobbies/"+l.ID.String()+"/complete", alice, map[string]string{"match_id": "m-1"}, &pending)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.LobbyPendingReview, pending.Status)

	resp = e.do(t, http.MethodGet, "/lobbies/not-a-uuid", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = e.do(t, http.MethodGet, "/lobbies/"+models.Lobby{}.ID.String(), "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminRoutes(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp(t, "alice")
	root := e.admin(t)
	l := e.createLobby(t, alice)

	resp := e.do(t, http.MethodGet, "/admin/lobbies", alice, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = e.do(t, http.MethodGet, "/admin/lobbies", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var overview lobby.Overview
	resp = e.do(t, http.MethodGet, "/admin/lobbies", root, nil, &overview)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, overview.Active, 1)

	resp = e.do(t, http.MethodPost, "/admin/lobbies/"+l.ID.String()+"/cancel", root, map[string]any{"reason": "spam"}, nil)
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)

	resp = e.do(t, http.MethodDelete, "/admin/lobbies/"+l.ID.String(), root, nil, nil)
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)

	resp = e.do(t, http.MethodDelete, "/admin/lobbies/"+l.ID.String()+"?confirmed=true&reason=spam", root, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/lobbies/"+l.ID.String(), "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	actions := e.store.AdminActions()
	require.Len(t, actions, 1)
	assert.Equal(t, lobby.ActionDeleteLobby, actions[0].ActionType)
}

func TestSocialRoutes(t *testing.T) {
	e := newTestEnv(t)
	alice, aliceToken := e.signUp(t, "alice")
	bob, bobToken := e.signUp(t, "bob")

	resp := e.do(t, http.MethodPost, "/friends/requests", aliceToken, map[string]any{"friend_id": bob.ID}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = e.do(t, http.MethodPost, "/friends/requests", bobToken, map[string]any{"friend_id": alice.ID}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var reqs models.FriendRequests
	e.do(t, http.MethodGet, "/friends/requests", bobToken, nil, &reqs)
	require.Len(t, reqs.Received, 1)

	var count map[string]int
	e.do(t, http.MethodGet, "/notifications/unread-count", bobToken, nil, &count)
	assert.Equal(t, 1, count["count"])

	resp = e.do(t, http.MethodPost, "/friends/requests/"+alice.ID.String()+"/accept", bobToken, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodPut, "/presence", bobToken, map[string]any{"status": "online"}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(t, http.MethodPut, "/presence", bobToken, map[string]any{"status": "asleep"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var online []models.UserProfile
	e.do(t, http.MethodGet, "/friends/online", aliceToken, nil, &online)
	require.Len(t, online, 1)
	assert.Equal(t, bob.ID, online[0].ID)

	var found []models.UserProfile
	e.do(t, http.MethodGet, "/users/search?q=bo", aliceToken, nil, &found)
	require.Len(t, found, 1)

	resp = e.do(t, http.MethodPost, "/notifications/read-all", bobToken, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	e.do(t, http.MethodGet, "/notifications/unread-count", bobToken, nil, &count)
	assert.Equal(t, 0, count["count"])

	var stats models.SocialStats
	e.do(t, http.MethodGet, "/social/stats", aliceToken, nil, &stats)
	assert.Equal(t, 1, stats.TotalFriends)
	assert.Equal(t, 1, stats.OnlineFriends)

	resp = e.do(t, http.MethodDelete, "/friends/"+bob.ID.String(), aliceToken, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(t, http.MethodDelete, "/friends/"+bob.ID.String(), aliceToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/friends", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFriendGroupRoutes(t *testing.T) {
	e := newTestEnv(t)
	alice, aliceToken := e.signUp(t, "alice")
	bob, bobToken := e.signUp(t, "bob")
	carol, _ := e.signUp(t, "carol")

	e.do(t, http.MethodPost, "/friends/requests", aliceToken, map[string]any{"friend_id": bob.ID}, nil)
	resp := e.do(t, http.MethodPost, "/friends/requests/"+alice.ID.String()+"/accept", bobToken, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var g models.FriendGroup
	resp = e.do(t, http.MethodPost, "/friends/groups", aliceToken, map[string]string{"name": "Squad"}, &g)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.DefaultGroupColor, g.Color)

	resp = e.do(t, http.MethodPost, "/friends/groups", aliceToken, map[string]string{"name": "squad"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = e.do(t, http.MethodPost, "/friends/groups", aliceToken, map[string]string{"name": "Red", "color": "red"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	members := "/friends/groups/" + g.ID.String() + "/members"
	resp = e.do(t, http.MethodPost, members, aliceToken, map[string]any{"friend_id": bob.ID}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(t, http.MethodPost, members, aliceToken, map[string]any{"friend_id": carol.ID}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = e.do(t, http.MethodPost, members, bobToken, map[string]any{"friend_id": alice.ID}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var groups []models.FriendGroup
	resp = e.do(t, http.MethodGet, "/friends/groups", aliceToken, nil, &groups)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Members, 1)
	assert.Equal(t, bob.ID, groups[0].Members[0].ID)
}

func TestPrivateLobbyRoutes(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp(t, "alice")
	bob, bobToken := e.signUp(t, "bob")
	_, carol := e.signUp(t, "carol")
	_, dave := e.signUp(t, "dave")

	var l models.Lobby
	resp := e.do(t, http.MethodPost, "/lobbies", alice, map[string]any{
		"game": "Chess", "region": "NA", "price": "5", "max_players": 4, "private": true, "invite_code": "chess42",
	}, &l)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, l.IsPrivate)
	assert.Equal(t, "CHESS42", l.InviteCode)

	var list []models.Lobby
	e.do(t, http.MethodGet, "/lobbies", "", nil, &list)
	assert.Empty(t, list)
	e.do(t, http.MethodGet, "/lobbies?mine=true", alice, nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "CHESS42", list[0].InviteCode)

	var detail lobby.Detail
	e.do(t, http.MethodGet, "/lobbies/"+l.ID.String(), carol, nil, &detail)
	assert.Empty(t, detail.Lobby.InviteCode)

	join := "/lobbies/" + l.ID.String() + "/join"
	resp = e.do(t, http.MethodPost, join, carol, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = e.do(t, http.MethodPost, join, carol, map[string]string{"invite_code": "nope"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var joined models.Lobby
	resp = e.do(t, http.MethodPost, join, carol, map[string]string{"invite_code": "chess42"}, &joined)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, joined.CurrentPlayers)
	assert.Empty(t, joined.InviteCode)

	var inv models.LobbyInvite
	resp = e.do(t, http.MethodPost, "/lobbies/"+l.ID.String()+"/invites", alice, map[string]any{"user_id": bob.ID}, &inv)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = e.do(t, http.MethodPost, "/lobbies/"+l.ID.String()+"/invites", alice, map[string]any{"user_id": bob.ID}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = e.do(t, http.MethodPost, "/lobbies/"+l.ID.String()+"/invites", dave, map[string]any{"user_id": bob.ID}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/lobbies/"+l.ID.String()+"/invites", carol, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var sent []models.LobbyInvite
	resp = e.do(t, http.MethodGet, "/lobbies/"+l.ID.String()+"/invites", alice, nil, &sent)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, sent, 1)
	assert.Equal(t, bob.ID, sent[0].InvitedUser.ID)

	var mine []models.LobbyInvite
	resp = e.do(t, http.MethodGet, "/invites", bobToken, nil, &mine)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, mine, 1)
	assert.Equal(t, l.ID, mine[0].Lobby.ID)
	assert.Empty(t, mine[0].Lobby.InviteCode)

	var notes []models.Notification
	e.do(t, http.MethodGet, "/notifications", bobToken, nil, &notes)
	require.NotEmpty(t, notes)
	assert.Equal(t, models.NotifyLobbyInvite, notes[0].Type)
	assert.Equal(t, inv.ID.String(), notes[0].Data["invite_id"])

	resp = e.do(t, http.MethodPost, "/invites/"+inv.ID.String()+"/accept", bobToken, nil, &joined)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, joined.CurrentPlayers)
	resp = e.do(t, http.MethodPost, "/invites/"+inv.ID.String()+"/decline", bobToken, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = e.do(t, http.MethodPost, "/invites/"+inv.ID.String()+"/accept", dave, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAchievementRoutes(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.signUp(t, "alice")

	var cats []achievements.Category
	resp := e.do(t, http.MethodGet, "/achievements/categories", token, nil, &cats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, cats)

	var stats models.UserStats
	resp = e.do(t, http.MethodGet, "/achievements/stats", token, nil, &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, stats.TotalMatches)

	resp = e.do(t, http.MethodGet, "/achievements/leaderboard?limit=0", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = e.do(t, http.MethodGet, "/achievements/leaderboard", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, path, token string, subprotocols ...string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(e.srv.URL, "http")+path, &websocket.DialOptions{
		Subprotocols: subprotocols,
		HTTPHeader:   header,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

type testFrame struct {
	Type     string          `json:"type"`
	ClientID string          `json:"client_id"`
	Error    string          `json:"error"`
	Payload  json.RawMessage `json:"payload"`
}

func TestWebSocketRejectsMissingSubprotocol(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := e.dial(t, ctx, "/ws/lobbies", "")
	_, _, err := c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}

func TestLobbyDetailWebSocket(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp(t, "alice")
	_, bob := e.signUp(t, "bob")
	root := e.admin(t)
	l := e.createLobby(t, alice)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := e.dial(t, ctx, "/ws/lobbies/"+l.ID.String(), "", Subprotocol)

	var f testFrame
	require.NoError(t, wsjson.Read(ctx, c, &f))
	require.Equal(t, "lobby", f.Type)
	var d lobby.Detail
	require.NoError(t, json.Unmarshal(f.Payload, &d))
	assert.Len(t, d.Participants, 1)

	resp := e.do(t, http.MethodPost, "/lobbies/"+l.ID.String()+"/join", bob, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Several notifications may fold into one re-read; wait for the roster.
	for len(d.Participants) < 2 {
		require.NoError(t, wsjson.Read(ctx, c, &f))
		require.Equal(t, "lobby", f.Type)
		require.NoError(t, json.Unmarshal(f.Payload, &d))
	}
	assert.Equal(t, models.LobbyInProgress, d.Lobby.Status)

	resp = e.do(t, http.MethodDelete, "/admin/lobbies/"+l.ID.String()+"?confirmed=true", root, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	for f.Type == "lobby" {
		require.NoError(t, wsjson.Read(ctx, c, &f))
	}
	assert.Equal(t, "lobby_deleted", f.Type)
	_, _, err := c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(LobbyDeletedError), websocket.CloseStatus(err))
}

func TestLobbyDetailWebSocketUnknownLobby(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := e.dial(t, ctx, "/ws/lobbies/"+models.Lobby{}.ID.String(), "", Subprotocol)
	_, _, err := c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(InvalidLobbyIDError), websocket.CloseStatus(err))
}

func TestChatWebSocket(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp(t, "alice")
	_, bob := e.signUp(t, "bob")
	l := e.createLobby(t, alice)
	chatPath := "/lobbies/" + l.ID.String() + "/chat"

	resp := e.do(t, http.MethodPost, chatPath, bob, chatSendRequest{ClientID: "b-1", Message: "hi all"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := e.dial(t, ctx, "/ws"+chatPath, alice, Subprotocol)

	var f testFrame
	require.NoError(t, wsjson.Read(ctx, c, &f))
	require.Equal(t, "history", f.Type)
	var history []chat.Entry
	require.NoError(t, json.Unmarshal(f.Payload, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "hi all", history[0].Message.Message)

	require.NoError(t, wsjson.Write(ctx, c, chatInbound{Type: "send", ClientID: "a-1", Message: "  "}))
	require.NoError(t, wsjson.Read(ctx, c, &f))
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "a-1", f.ClientID)

	require.NoError(t, wsjson.Write(ctx, c, chatInbound{Type: "send", ClientID: "a-2", Message: "hello bob"}))
	f = readSkippingOwn(t, ctx, c, "a-2")
	require.Equal(t, "ack", f.Type)
	assert.Equal(t, "a-2", f.ClientID)

	resp = e.do(t, http.MethodPost, chatPath, bob, chatSendRequest{ClientID: "b-2", Message: "hey alice"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	f = readSkippingOwn(t, ctx, c, "a-2")
	require.Equal(t, "message", f.Type)
	var msg models.ChatMessage
	require.NoError(t, json.Unmarshal(f.Payload, &msg))
	assert.Equal(t, "hey alice", msg.Message)
	assert.Equal(t, "bob", msg.Username)

	require.NoError(t, c.Close(websocket.StatusNormalClosure, ""))
}

// readSkippingOwn returns the next frame that is not the feed's push of the
// caller's own message. That push races the ack and may come either side.
func readSkippingOwn(t *testing.T, ctx context.Context, c *websocket.Conn, clientID string) testFrame {
	t.Helper()
	for {
		var f testFrame
		require.NoError(t, wsjson.Read(ctx, c, &f))
		if f.Type != "message" {
			return f
		}
		var msg models.ChatMessage
		require.NoError(t, json.Unmarshal(f.Payload, &msg))
		if msg.ClientID != clientID {
			return f
		}
	}
}
