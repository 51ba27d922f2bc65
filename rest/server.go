package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/intake/cache"
	"github.com/mohitkumar/intake/dispatch"
	"github.com/mohitkumar/intake/engine"
	"github.com/mohitkumar/intake/flow"
	"github.com/mohitkumar/intake/gallery"
	"github.com/mohitkumar/intake/logger"
	"github.com/mohitkumar/intake/persistence"
	"github.com/mohitkumar/intake/recorder"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port     int
	service  *engine.Service
	flows    *flow.Registry
	recorder *recorder.Recorder
	handles  *cache.HandleCache
	gallery  *gallery.Gallery
}

func NewServer(httpPort int, service *engine.Service, flows *flow.Registry, rec *recorder.Recorder,
	handles *cache.HandleCache, gal *gallery.Gallery) (*Server, error) {

	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		service:  service,
		flows:    flows,
		recorder: rec,
		handles:  handles,
		gallery:  gal,
		Port:     httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/workflows", s.HandleListFlows).Methods(http.MethodGet)
	router.HandleFunc("/workflows/{workflow}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/workflows/{workflow}/gallery", s.HandleGallery).Methods(http.MethodGet)

	router.HandleFunc("/workflows/{workflow}/sessions/{user}", s.HandleGetSession).Methods(http.MethodGet)
	router.HandleFunc("/workflows/{workflow}/sessions/{user}/start", s.HandleStart).Methods(http.MethodPost)
	router.HandleFunc("/workflows/{workflow}/sessions/{user}/submit", s.HandleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/workflows/{workflow}/sessions/{user}/back", s.HandleBack).Methods(http.MethodPost)
	router.HandleFunc("/workflows/{workflow}/sessions/{user}/next", s.HandleNext).Methods(http.MethodPost)
	router.HandleFunc("/workflows/{workflow}/sessions/{user}/recover", s.HandleRecover).Methods(http.MethodPost)
	router.HandleFunc("/workflows/{workflow}/sessions/{user}/answers/{step}", s.HandleEdit).Methods(http.MethodPut)

	router.HandleFunc("/users/{user}/audit", s.HandleGetAudit).Methods(http.MethodGet)
	router.HandleFunc("/users/{user}/profiles", s.HandleGetProfiles).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI, zap.String("method", r.Method))
		next.ServeHTTP(w, r)
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var storageErr persistence.StorageLayerError
	switch {
	case errors.Is(err, flow.ErrUnknownWorkflow),
		errors.Is(err, flow.ErrStepNotFound),
		errors.Is(err, persistence.ErrSessionNotFound),
		errors.Is(err, gallery.ErrEmpty):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrWorkflowComplete),
		errors.Is(err, engine.ErrNoBackTarget),
		errors.Is(err, engine.ErrNextUnavailable),
		errors.Is(err, engine.ErrStepNotVisited):
		return http.StatusConflict
	case errors.Is(err, engine.ErrStoreUnavailable),
		errors.Is(err, dispatch.ErrStopped),
		errors.As(err, &storageErr):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, payload interface{}) {
	respondWithJSON(w, http.StatusOK, payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithDomainError(w http.ResponseWriter, err error) {
	respondWithError(w, statusFor(err), err.Error())
}
