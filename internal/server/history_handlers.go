package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"quickpoll/internal/analytics"
)

const defaultHistoryLimit = 20

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "History requires a database connection")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	polls, err := analytics.NewQueries(s.DB).RecentPolls(limit)
	if err != nil {
		log.Printf("[History] recent polls error: %v\n", err)
		writeError(w, http.StatusInternalServerError, "Error loading history")
		return
	}
	writeJSON(w, http.StatusOK, polls)
}

func (s *Server) handleHistoryPoll(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "History requires a database connection")
		return
	}

	detail, err := analytics.NewQueries(s.DB).PollSummary(roomCode(r))
	if errors.Is(err, analytics.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		log.Printf("[History] poll summary error: %v\n", err)
		writeError(w, http.StatusInternalServerError, "Error loading poll")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
