package rest

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/intake/logger"
	"go.uber.org/zap"
)

// HandleGetAudit lists the user's actions, newest first.
func (s *Server) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	userId := mux.Vars(r)["user"]
	var limit int64
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = l
	}
	events, err := s.recorder.Actions(r.Context(), userId, limit)
	if err != nil {
		logger.Error("error listing audit events", zap.String("user", userId), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, map[string]any{"user": userId, "events": events})
}

func (s *Server) HandleGetProfiles(w http.ResponseWriter, r *http.Request) {
	userId := mux.Vars(r)["user"]
	profiles, err := s.recorder.Profiles(r.Context(), userId)
	if err != nil {
		logger.Error("error listing profiles", zap.String("user", userId), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, map[string]any{"user": userId, "profiles": profiles})
}
