package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
)

const authCookie = "auth_token"

// tokenFromRequest reads the session token from the auth_token cookie, or
// from an "Authorization: Bearer" header for non-browser clients.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(authCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

type actorKey struct{}

func withActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// actorFrom returns the authenticated caller, or the zero Actor for an
// anonymous request.
func actorFrom(ctx context.Context) models.Actor {
	a, _ := ctx.Value(actorKey{}).(models.Actor)
	return a
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its status code. Unclassified errors are logged
// and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := backend.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.Log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// decodeJSON reads a request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, backend.ErrValidation)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, backend.ErrValidation)
	}
	return id, nil
}

// limitParam reads a positive ?limit=, returning 0 when absent.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid limit %q: %w", raw, backend.ErrValidation)
	}
	return n, nil
}

var errInternal = errors.New(http.StatusText(http.StatusInternalServerError))

var errNotAdmin = fmt.Errorf("admin role required: %w", backend.ErrPermissionDenied)

func isNotFound(err error) bool {
	return errors.Is(err, backend.ErrNotFound)
}
