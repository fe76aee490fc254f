package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/array-controller/db"
	"github.com/thatsimonsguy/array-controller/internal/array"
	"github.com/thatsimonsguy/array-controller/internal/controller"
	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/topology"
)

// Requester queues case changes; the controller loop applies them.
type Requester interface {
	RequestCase(id model.CaseID) error
}

type CaseReader interface {
	Current() model.CaseID
}

type Server struct {
	db        *sql.DB
	state     *array.State
	topo      *topology.Topology
	cases     CaseReader
	requester Requester
}

type CaseResponse struct {
	Case  string   `json:"case"`
	Cases []string `json:"cases"`
}

type CaseRequest struct {
	Case string `json:"case"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(database *sql.DB, state *array.State, topo *topology.Topology, cases CaseReader, requester Requester) *Server {
	return &Server{
		db:        database,
		state:     state,
		topo:      topo,
		cases:     cases,
		requester: requester,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/batteries", s.handleBatteries)
	mux.HandleFunc("/api/case", s.handleCase)
	mux.HandleFunc("/api/readings", s.handleReadings)
	mux.HandleFunc("/api/switches", s.handleSwitches)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		mux.ServeHTTP(w, r)
	})
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info().Str("address", addr).Msg("Starting REST API server")

	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleBatteries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	snap := s.state.Snapshot()
	s.writeJSON(w, http.StatusOK, snap[:])
}

func (s *Server) handleCase(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getCase(w, r)
	case http.MethodPost:
		s.requestCase(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) getCase(w http.ResponseWriter, r *http.Request) {
	resp := CaseResponse{Case: string(s.cases.Current())}
	for _, id := range s.topo.CaseIDs() {
		resp.Cases = append(resp.Cases, string(id))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) requestCase(w http.ResponseWriter, r *http.Request) {
	var req CaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	id := model.CaseID(req.Case)
	if _, ok := s.topo.Case(id); !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown case %q", req.Case))
		return
	}

	if err := s.requester.RequestCase(id); err != nil {
		if errors.Is(err, controller.ErrQueueFull) {
			s.writeError(w, http.StatusServiceUnavailable, "Case request queue is full, try again")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("case", req.Case).Msg("Case change requested via API")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	kind := model.MeasurementKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = model.KindUnloaded
	}
	if !kind.Valid() {
		s.writeError(w, http.StatusBadRequest, "Invalid kind. Valid kinds: loaded, unloaded")
		return
	}

	readings, err := db.GetLatestReadings(s.db, kind)
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("Failed to get readings")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if readings == nil {
		readings = []model.Reading{}
	}
	s.writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleSwitches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := db.GetSwitchEvents(s.db, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get switch events")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []model.SwitchEvent{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
