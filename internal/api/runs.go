package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adhit-r/fairmind-sub003/internal/engine"
	"github.com/adhit-r/fairmind-sub003/internal/model"
	"github.com/adhit-r/fairmind-sub003/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxUploadSize    = 256 << 20 // 256 MB
	maxFormMemory    = 32 << 20
)

// Multipart field names accepted by POST /v1/runs.
const (
	fieldModel     = "model"
	fieldDataset   = "dataset"
	fieldSample    = "sample"
	fieldTarget    = "target"
	fieldFeatures  = "features"
	fieldProtected = "protected_attributes"
	fieldEngine    = "engine"
	fieldRowCount  = "row_count"
	fieldOrgID     = "org_id"
)

// startRunResponse is the JSON response for POST /v1/runs.
type startRunResponse struct {
	RunID  string        `json:"run_id"`
	Status string        `json:"status"`
	Stages []model.Stage `json:"stages"`
}

// currentRunResponse is the JSON response for GET /v1/runs/current.
type currentRunResponse struct {
	RunID   string           `json:"run_id,omitempty"`
	Running bool             `json:"running"`
	Stages  []model.Stage    `json:"stages"`
	Log     []model.LogEntry `json:"log"`
	Result  *model.RunResult `json:"result,omitempty"`
}

// listRunsResponse wraps the paginated list response.
type listRunsResponse struct {
	Runs   []*model.RunSummary `json:"runs"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	in, err := s.parseRunInput(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID, done, err := s.orch.Start(s.runCtx, in)
	if errors.Is(err, engine.ErrRunInProgress) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("start run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	summary := &model.RunSummary{
		ID:        runID,
		Status:    model.RunStatusRunning,
		OrgID:     in.OrgID,
		CreatedAt: time.Now().UTC(),
	}
	if in.ModelFile != nil {
		summary.ModelName = in.ModelFile.Name
	}
	if err := s.store.CreateRunSummary(r.Context(), summary); err != nil {
		s.logger.Error("create run summary", "run_id", runID, "error", err)
	}

	s.runs.Add(1)
	go s.recordOutcome(summary, done)

	w.Header().Set("Location", "/v1/runs/"+runID)
	s.writeJSON(w, http.StatusAccepted, startRunResponse{
		RunID:  runID,
		Status: model.RunStatusRunning,
		Stages: s.orch.Stages(),
	})
}

// recordOutcome waits for a run to finish and stores its terminal summary.
func (s *Server) recordOutcome(summary *model.RunSummary, done <-chan engine.RunOutcome) {
	defer s.runs.Done()

	out, ok := <-done
	if !ok {
		return
	}

	summary.Status = model.RunStatusSucceeded
	if out.Result.Error != "" {
		summary.Status = model.RunStatusFailed
		summary.Error = out.Result.Error
	}
	summary.DatasetKind = out.DatasetKind
	summary.FailedStage = out.FailedStage
	d := int(out.FinishedAt.Sub(out.StartedAt).Milliseconds())
	finished := out.FinishedAt
	summary.DurationMS = &d
	summary.FinishedAt = &finished

	if err := s.store.FinishRunSummary(context.Background(), summary); err != nil {
		s.logger.Error("finish run summary", "run_id", summary.ID, "error", err)
	}
}

// parseRunInput reads the run inputs from a parsed multipart form. Semantic
// validation is left to the orchestrator so it is reported as a run failure.
func (s *Server) parseRunInput(r *http.Request) (engine.RunInput, error) {
	in := engine.RunInput{
		Engine:              strings.TrimSpace(r.FormValue(fieldEngine)),
		Target:              strings.TrimSpace(r.FormValue(fieldTarget)),
		Features:            formList(r, fieldFeatures),
		ProtectedAttributes: formList(r, fieldProtected),
		OrgID:               strings.TrimSpace(r.FormValue(fieldOrgID)),
	}
	if in.OrgID == "" {
		in.OrgID = s.defaultOrg
	}

	if v := strings.TrimSpace(r.FormValue(fieldRowCount)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return engine.RunInput{}, fmt.Errorf("%s must be an integer", fieldRowCount)
		}
		in.RowCount = n
	}

	var err error
	if in.ModelFile, err = formArtifact(r, fieldModel); err != nil {
		return engine.RunInput{}, err
	}
	if in.DatasetFile, err = formArtifact(r, fieldDataset); err != nil {
		return engine.RunInput{}, err
	}
	if in.SampleFile, err = formArtifact(r, fieldSample); err != nil {
		return engine.RunInput{}, err
	}
	return in, nil
}

// formList accepts both repeated fields and comma-separated values.
func formList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.MultipartForm.Value[key] {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// formArtifact reads an optional file field. A missing field yields nil.
func formArtifact(r *http.Request, key string) (*model.Artifact, error) {
	f, hdr, err := r.FormFile(key)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s file: %w", key, err)
	}
	defer f.Close()
	return readArtifact(hdr, f)
}

func readArtifact(hdr *multipart.FileHeader, f io.Reader) (*model.Artifact, error) {
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", hdr.Filename, err)
	}
	return &model.Artifact{Name: hdr.Filename, Content: b}, nil
}

func (s *Server) handleCurrentRun(w http.ResponseWriter, _ *http.Request) {
	resp := currentRunResponse{
		RunID:   s.orch.CurrentRunID(),
		Running: s.orch.Running(),
		Stages:  s.orch.Stages(),
		Log:     s.orch.Log(),
	}
	if out, ok := s.orch.LastOutcome(); ok && out.RunID == resp.RunID {
		resp.Result = &out.Result
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rs, err := s.store.GetRunSummary(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run summary", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	s.writeJSON(w, http.StatusOK, rs)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, total, err := s.store.ListRunSummaries(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list run summaries", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	s.writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}
