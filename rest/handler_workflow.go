package rest

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/intake/flow"
	"github.com/mohitkumar/intake/logger"
	"go.uber.org/zap"
)

func (s *Server) HandleListFlows(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]any{"workflows": s.flows.Names()})
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	wfName := vars["workflow"]
	f, ok := s.flows.Get(wfName)
	if !ok {
		respondWithDomainError(w, flow.ErrUnknownWorkflow)
		return
	}
	respondOK(w, f.Definition())
}

func (s *Server) HandleGallery(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	wfName := vars["workflow"]
	index := 0
	if v := r.URL.Query().Get("index"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "index must be an integer")
			return
		}
		index = i
	}
	page, err := s.gallery.Page(r.Context(), wfName, index, r.URL.Query().Get("viewer"))
	if err != nil {
		logger.Error("error rendering gallery", zap.String("workflow", wfName), zap.Int("index", index), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, page)
}
