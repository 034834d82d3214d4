package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/adhit-r/fairmind-sub003/internal/model"
	"github.com/adhit-r/fairmind-sub003/internal/remote"
	"github.com/adhit-r/fairmind-sub003/internal/synth"
)

const apiPrefix = "/api/v1"

// stubService imitates the remote evaluation service: it stores nothing but
// file names and returns canned metrics after a fixed delay.
type stubService struct {
	delay  time.Duration
	logger *slog.Logger

	mu   sync.Mutex
	runs []model.RunHistoryEntry
}

func newStubService(delay time.Duration, logger *slog.Logger) *stubService {
	return &stubService{delay: delay, logger: logger}
}

func (s *stubService) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route(apiPrefix, func(r chi.Router) {
		r.Post(remote.PathModelUpload, s.handleUpload("models"))
		r.Post(remote.PathDatasetUpload, s.handleUpload("datasets"))
		r.Post(remote.PathDatasetGen, s.handleGenerate)
		r.Post(remote.PathSimulationRun, s.handleRun)
		r.Get(remote.PathRecentRuns, s.handleRecent)
	})
	return r
}

func (s *stubService) handleUpload(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "file is required")
			return
		}
		defer f.Close()
		n, _ := io.Copy(io.Discard, f)
		if n == 0 {
			writeDetail(w, http.StatusBadRequest, "uploaded file is empty")
			return
		}
		writeStubJSON(w, http.StatusOK, map[string]string{"path": path.Join("uploads", dir, hdr.Filename)})
	}
}

func (s *stubService) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid generation request")
		return
	}
	eng, err := synth.NewDefaultRegistry().Resolve(req.Engine)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	src := synth.Source{HasSample: req.SamplePath != "", HasSchema: req.Schema != nil && len(req.Schema.Columns) > 0}
	if err := eng.Check(src); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	time.Sleep(s.delay)
	name := fmt.Sprintf("%s-%d-%s.csv", eng.Name, req.RowCount, model.NewID())
	writeStubJSON(w, http.StatusOK, map[string]string{"path": path.Join("generated", name)})
}

func (s *stubService) handleRun(w http.ResponseWriter, r *http.Request) {
	var req model.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ModelPath == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "path is required")
		return
	}
	time.Sleep(s.delay)

	metrics := map[string]any{
		"demographic_parity": 0.08,
		"equalized_odds":     0.11,
		"protected":          req.ProtectedAttributes,
	}
	summary, _ := json.Marshal(metrics)

	s.mu.Lock()
	s.runs = append([]model.RunHistoryEntry{{
		ID:          model.NewID(),
		ModelPath:   req.ModelPath,
		DatasetPath: req.DatasetPath,
		Target:      req.Target,
		Status:      "completed",
		OrgID:       req.OrgID,
		Summary:     summary,
		CreatedAt:   time.Now().UTC(),
	}}, s.runs...)
	s.mu.Unlock()

	s.logger.Info("stub run complete", "model", req.ModelPath, "dataset", req.DatasetPath)
	writeStubJSON(w, http.StatusOK, metrics)
}

func (s *stubService) handleRecent(w http.ResponseWriter, r *http.Request) {
	org := r.URL.Query().Get("org_id")

	s.mu.Lock()
	out := []model.RunHistoryEntry{}
	for _, e := range s.runs {
		if org == "" || e.OrgID == org {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	writeStubJSON(w, http.StatusOK, out)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeStubJSON(w, status, map[string]string{"detail": detail})
}

func writeStubJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
