package engine_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/adhit-r/fairmind-sub003/internal/engine"
	"github.com/adhit-r/fairmind-sub003/internal/model"
	"github.com/adhit-r/fairmind-sub003/internal/remote"
)

// failure is a canned non-2xx response for one endpoint.
type failure struct {
	status int
	body   string
}

// fakeRemote is an httptest evaluation service that records every call.
type fakeRemote struct {
	mu       sync.Mutex
	calls    []string
	genReq   model.GenerationRequest
	runReq   model.RunRequest
	uploads  map[string]string
	failures map[string]failure
	metrics  string

	// gate, when set, blocks the model upload until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeRemote(t *testing.T) (*fakeRemote, *httptest.Server) {
	t.Helper()
	f := &fakeRemote{
		uploads:  make(map[string]string),
		failures: make(map[string]failure),
		metrics:  `{"demographic_parity":0.08,"equalized_odds":0.11}`,
	}
	ts := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(ts.Close)
	return f, ts
}

func (f *fakeRemote) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.URL.Path)
	fail, failing := f.failures[r.URL.Path]
	gate := f.gate
	entered := f.entered
	f.mu.Unlock()

	if r.URL.Path == remote.PathModelUpload && gate != nil {
		if entered != nil {
			close(entered)
		}
		<-gate
	}

	if failing {
		w.WriteHeader(fail.status)
		io.WriteString(w, fail.body)
		return
	}

	switch r.URL.Path {
	case remote.PathModelUpload, remote.PathDatasetUpload:
		file, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file.Close()
		path := "uploads/" + hdr.Filename
		f.mu.Lock()
		f.uploads[r.URL.Path] = path
		f.mu.Unlock()
		writeJSON(w, map[string]string{"path": path})
	case remote.PathDatasetGen:
		var req model.GenerationRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.genReq = req
		f.mu.Unlock()
		writeJSON(w, map[string]string{"path": "generated/synthetic.csv"})
	case remote.PathSimulationRun:
		var req model.RunRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.runReq = req
		metrics := f.metrics
		f.mu.Unlock()
		io.WriteString(w, metrics)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeRemote) fail(path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = failure{status: status, body: body}
}

func (f *fakeRemote) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeRemote) generation() model.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.genReq
}

func (f *fakeRemote) run() model.RunRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runReq
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestOrchestrator(t *testing.T, opts ...engine.Option) (*engine.Orchestrator, *fakeRemote) {
	t.Helper()
	f, ts := newFakeRemote(t)
	o := engine.NewOrchestrator(remote.NewClient(ts.URL), nil, discardLogger(), opts...)
	return o, f
}

func artifact(name, content string) *model.Artifact {
	return &model.Artifact{Name: name, Content: []byte(content)}
}

func stageStatuses(stages []model.Stage) map[string]model.StageStatus {
	out := make(map[string]model.StageStatus, len(stages))
	for _, s := range stages {
		out[s.ID] = s.Status
	}
	return out
}

func assertExclusive(t *testing.T, r model.RunResult) {
	t.Helper()
	hasMetrics := len(r.Metrics) > 0
	hasError := r.Error != ""
	if hasMetrics == hasError {
		t.Errorf("result must carry exactly one of metrics/error: %+v", r)
	}
}

func assertCalls(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}
