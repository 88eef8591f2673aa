// Package handlers exposes the services over HTTP and WebSocket.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/skillstake/internal/achievements"
	"github.com/jason-s-yu/skillstake/internal/auth"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/chat"
	"github.com/jason-s-yu/skillstake/internal/lobby"
	"github.com/jason-s-yu/skillstake/internal/middleware"
	"github.com/jason-s-yu/skillstake/internal/social"
	"github.com/sirupsen/logrus"
)

// Server holds everything the routes call into.
type Server struct {
	Auth         *auth.Service
	Lobbies      *lobby.Service
	Browser      *lobby.Browser
	Chat         *chat.Service
	Achievements *achievements.Service
	Social       *social.Service
	Feed         backend.Feed
	Log          logrus.FieldLogger

	// AllowedOrigins feeds both CORS and the WebSocket origin check.
	AllowedOrigins []string
	// SecureCookies marks the session cookie Secure; set in production.
	SecureCookies bool
	// TokenTTL bounds the session cookie's lifetime; zero means a session cookie.
	TokenTTL time.Duration
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(middleware.LogMiddleware(s.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.identify)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.signUp)
		r.Post("/signin", s.signIn)
		r.Post("/signout", s.signOut)
		r.Get("/username-available", s.usernameAvailable)
		r.With(s.requireActor).Get("/me", s.me)
	})

	r.Get("/fees/preview", s.feePreview)

	r.Route("/lobbies", func(r chi.Router) {
		r.Get("/", s.listLobbies)
		r.With(s.requireActor).Post("/", s.createLobby)
		r.Route("/{lobbyID}", func(r chi.Router) {
			r.Get("/", s.getLobby)
			r.Get("/chat", s.chatHistory)
			r.Group(func(r chi.Router) {
				r.Use(s.requireActor)
				r.Post("/join", s.joinLobby)
				r.Post("/leave", s.leaveLobby)
				r.Post("/complete", s.submitCompletion)
				r.Post("/chat", s.sendChat)
				r.Get("/invites", s.lobbyInvites)
				r.Post("/invites", s.inviteToLobby)
			})
		})
	})

	r.Route("/admin/lobbies", func(r chi.Router) {
		r.Use(s.requireActor, requireAdmin)
		r.Get("/", s.adminOverview)
		r.Post("/{lobbyID}/complete", s.adminComplete)
		r.Post("/{lobbyID}/winner", s.adminChangeWinner)
		r.Post("/{lobbyID}/cancel", s.adminCancel)
		r.Delete("/{lobbyID}", s.adminDelete)
	})

	r.Route("/achievements", func(r chi.Router) {
		r.Get("/leaderboard", s.leaderboard)
		r.Group(func(r chi.Router) {
			r.Use(s.requireActor)
			r.Get("/", s.achievementProgress)
			r.Get("/categories", s.achievementCategories)
			r.Get("/recent", s.recentAchievements)
			r.Get("/stats", s.userStats)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireActor)
		r.Get("/friends", s.listFriends)
		r.Get("/friends/online", s.onlineFriends)
		r.Get("/friends/requests", s.friendRequests)
		r.Post("/friends/requests", s.sendFriendRequest)
		r.Post("/friends/requests/{userID}/accept", s.acceptFriendRequest)
		r.Delete("/friends/{userID}", s.removeFriend)
		r.Get("/friends/groups", s.friendGroups)
		r.Post("/friends/groups", s.createFriendGroup)
		r.Post("/friends/groups/{groupID}/members", s.addFriendGroupMember)
		r.Get("/invites", s.myInvites)
		r.Post("/invites/{inviteID}/accept", s.acceptInvite)
		r.Post("/invites/{inviteID}/decline", s.declineInvite)
		r.Put("/presence", s.updatePresence)
		r.Get("/notifications", s.listNotifications)
		r.Get("/notifications/unread-count", s.unreadCount)
		r.Post("/notifications/read-all", s.markAllRead)
		r.Post("/notifications/{notificationID}/read", s.markRead)
		r.Get("/users/search", s.searchUsers)
		r.Get("/social/stats", s.socialStats)
	})

	r.Route("/ws", func(r chi.Router) {
		r.Get("/lobbies", s.lobbyListWS)
		r.Get("/lobbies/{lobbyID}", s.lobbyDetailWS)
		r.Get("/lobbies/{lobbyID}/chat", s.chatWS)
	})

	return r
}

// identify attaches the caller to the request context when a valid session
// token is present. Requests without one continue anonymously.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := s.Auth.Session(r.Context(), token)
		if err != nil {
			if backend.HTTPStatus(err) == http.StatusInternalServerError {
				s.writeError(w, r, err)
				return
			}
			s.Log.WithError(err).Debug("ignoring invalid session token")
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}

func (s *Server) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := actorFrom(r.Context())
		if !actor.Authenticated() {
			s.writeError(w, r, backend.ErrAuthRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r.Context()).IsAdmin {
			writeJSON(w, http.StatusForbidden, errorBody{Error: errNotAdmin.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}
