package handlers

import "net/http"

func (s *Server) achievementProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.Achievements.Progress(r.Context(), actorFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) achievementCategories(w http.ResponseWriter, r *http.Request) {
	c, err := s.Achievements.Categories(r.Context(), actorFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) recentAchievements(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ua, err := s.Achievements.Recent(r.Context(), actorFrom(r.Context()).UserID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ua)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.Achievements.Leaderboard(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) userStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Achievements.Stats(r.Context(), actorFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
