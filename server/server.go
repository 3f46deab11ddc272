package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"furnace/engine"
	"furnace/material"
	"furnace/model"
)

// Server exposes the four run operations over HTTP plus a websocket
// progress stream per run.
type Server struct {
	addr     string
	registry *engine.Registry
	library  *material.Library
	upgrader websocket.Upgrader
	router   *mux.Router
}

func NewServer(addr string, registry *engine.Registry, library *material.Library) *Server {
	s := &Server{
		addr:     addr,
		registry: registry,
		library:  library,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/runs", s.handleSubmit).Methods(http.MethodPost)
	api.HandleFunc("/runs/{id}/progress", s.handleProgress).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/runs/{id}/results", s.handleResults).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/materials", s.handleMaterials).Methods(http.MethodGet)
	r.HandleFunc("/ws/runs/{id}", s.serveWs)
	s.router = r
	return s
}

// Router exposes the handler for tests and custom listeners.
func (s *Server) Router() http.Handler { return s.router }

// Serve blocks on ListenAndServe.
func (s *Server) Serve() error {
	log.WithField("addr", s.addr).Info("server listening")
	return http.ListenAndServe(s.addr, s.router)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var cfg model.SimulationConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.registry.Submit(cfg)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	progress, state, err := s.registry.PollProgress(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":    state,
		"progress": progress,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.registry.Cancel(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	result, err := s.registry.FetchResults(id)
	if errors.Is(err, model.ErrResultPending) {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.registry.Delete(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleMaterials(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"materials": s.library.Names()})
}

// serveWs upgrades the connection and streams progress frames for one run
// until it terminates or the peer goes away.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	eng, err := s.registry.Engine(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	hub := NewHub(conn, eng)
	hub.Run()
}

func statusFor(err error) int {
	var cfgErr *model.ConfigError
	var resErr *model.ResourceLimitError
	switch {
	case errors.Is(err, model.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrRunActive):
		return http.StatusConflict
	case errors.As(err, &cfgErr), errors.As(err, &resErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
