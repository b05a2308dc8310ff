// Package api serves stored runs, summary records and feature vectors as
// read-only JSON.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/grasp.report/internal/grasp/l4kinematics"
	"github.com/banshee-data/grasp.report/internal/grasp/l5summary"
	"github.com/banshee-data/grasp.report/internal/grasp/storage/sqlite"
	"github.com/banshee-data/grasp.report/internal/monitoring"
)

// Store is the read side of sqlite.SummaryStore.
type Store interface {
	LatestRun() (*sqlite.Run, error)
	GetRun(runID string) (*sqlite.Run, error)
	Movements(runID string) ([]string, error)
	Skips(runID string) ([]sqlite.Skip, error)
	ListRecords(runID, movementID string) ([]l5summary.Record, error)
	CheckpointRecords(runID string, checkpoint float64) (map[string]l5summary.Record, error)
}

type Server struct {
	store Store
}

func NewServer(store Store) *Server {
	return &Server{store: store}
}

// RunView is the response of GET /runs/{run}.
type RunView struct {
	Run       *sqlite.Run   `json:"run"`
	Movements []string      `json:"movements"`
	Skips     []sqlite.Skip `json:"skips"`
}

// VectorsView is the response of GET /runs/{run}/vectors. Every vector is
// aligned with Names.
type VectorsView struct {
	RunID      string               `json:"run_id"`
	Checkpoint float64              `json:"checkpoint"`
	Names      []string             `json:"names"`
	Vectors    map[string][]float64 `json:"vectors"`
}

// ServeMux returns the API routes. The run path segment may be "latest".
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /runs/{run}", s.showRun)
	mux.HandleFunc("GET /runs/{run}/movements/{movement}", s.showMovement)
	mux.HandleFunc("GET /runs/{run}/vectors", s.listVectors)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and duration to the diag stream.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Diagf("[%d] %s %s %vms", lrw.statusCode, r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode json response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps lookup failures to 404 and everything else to 500.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, sqlite.ErrNoRuns) || errors.Is(err, sqlite.ErrRunNotFound) {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) resolveRun(id string) (*sqlite.Run, error) {
	if id == "latest" {
		return s.store.LatestRun()
	}
	return s.store.GetRun(id)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.resolveRun(r.PathValue("run"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	movements, err := s.store.Movements(run.RunID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	skips, err := s.store.Skips(run.RunID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if movements == nil {
		movements = []string{}
	}
	if skips == nil {
		skips = []sqlite.Skip{}
	}
	writeJSON(w, http.StatusOK, RunView{Run: run, Movements: movements, Skips: skips})
}

func (s *Server) showMovement(w http.ResponseWriter, r *http.Request) {
	run, err := s.resolveRun(r.PathValue("run"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	movement := r.PathValue("movement")
	records, err := s.store.ListRecords(run.RunID, movement)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(records) == 0 {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no records for movement %s in run %s", movement, run.RunID))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// vectorQuery parses the checkpoint and feature_set query parameters.
func vectorQuery(r *http.Request) (float64, []l4kinematics.Feature, error) {
	checkpoint := 100.0
	if c := r.URL.Query().Get("checkpoint"); c != "" {
		v, err := strconv.ParseFloat(c, 64)
		if err != nil || v <= 0 || v > 100 {
			return 0, nil, fmt.Errorf("invalid 'checkpoint' parameter %q", c)
		}
		checkpoint = v
	}
	features := l4kinematics.AllFeatures
	if fs := r.URL.Query().Get("feature_set"); fs != "" {
		id, err := strconv.Atoi(fs)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid 'feature_set' parameter %q", fs)
		}
		if features, err = l4kinematics.FeatureSet(id); err != nil {
			return 0, nil, err
		}
	}
	return checkpoint, features, nil
}

func (s *Server) listVectors(w http.ResponseWriter, r *http.Request) {
	checkpoint, features, err := vectorQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := s.resolveRun(r.PathValue("run"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	records, err := s.store.CheckpointRecords(run.RunID, checkpoint)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	for id, rec := range records {
		if missing := rec.Missing(features...); len(missing) > 0 {
			writeJSONError(w, http.StatusBadRequest,
				fmt.Sprintf("run %s did not compute %v for movement %s", run.RunID, missing, id))
			return
		}
	}

	view := VectorsView{
		RunID:      run.RunID,
		Checkpoint: checkpoint,
		Names:      l5summary.SubsetNames(features),
		Vectors:    make(map[string][]float64, len(records)),
	}
	for id, rec := range records {
		view.Vectors[id] = rec.Subset(features...)
	}
	writeJSON(w, http.StatusOK, view)
}
