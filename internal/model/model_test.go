package model

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestStageStatusConstants(t *testing.T) {
	statuses := []struct {
		constant StageStatus
		expected string
	}{
		{StagePending, "pending"},
		{StageRunning, "running"},
		{StageDone, "done"},
		{StageFailed, "failed"},
	}
	for _, s := range statuses {
		if string(s.constant) != s.expected {
			t.Errorf("status constant = %q, want %q", s.constant, s.expected)
		}
	}
}

func TestValidStageTransition(t *testing.T) {
	tests := []struct {
		from, to StageStatus
		want     bool
	}{
		{StagePending, StageRunning, true},
		{StagePending, StageDone, false},
		{StagePending, StageFailed, false},
		{StageRunning, StageDone, true},
		{StageRunning, StageFailed, true},
		{StageRunning, StagePending, false},
		{StageDone, StageRunning, false},
		{StageDone, StagePending, false},
		{StageFailed, StageRunning, false},
		{StageFailed, StageDone, false},
	}
	for _, tt := range tests {
		if got := ValidStageTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidStageTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPipelineStagesOrder(t *testing.T) {
	want := []string{StageInit, StageLoadModel, StageGenerateData, StageFairness}
	if len(PipelineStages) != len(want) {
		t.Fatalf("got %d stages, want %d", len(PipelineStages), len(want))
	}
	for i, def := range PipelineStages {
		if def.ID != want[i] {
			t.Errorf("stage[%d] = %q, want %q", i, def.ID, want[i])
		}
	}
}

func TestNewRunRequestCopiesSlices(t *testing.T) {
	features := []string{"age", "income"}
	req, err := NewRunRequest(RunRequest{ModelPath: "models/m.pkl", Target: "approved", Features: features})
	if err != nil {
		t.Fatalf("NewRunRequest: %v", err)
	}
	features[0] = "mutated"
	if req.Features[0] != "age" {
		t.Errorf("Features[0] = %q, request must not alias caller slice", req.Features[0])
	}
	if req.ProtectedAttributes == nil {
		t.Error("ProtectedAttributes should be an empty slice, not nil")
	}
}

func TestNewRunRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		req  RunRequest
	}{
		{"missing model path", RunRequest{Target: "y"}},
		{"empty feature", RunRequest{ModelPath: "m", Features: []string{"a", ""}}},
		{"empty protected attribute", RunRequest{ModelPath: "m", ProtectedAttributes: []string{""}}},
		{"target listed as feature", RunRequest{ModelPath: "m", Target: "y", Features: []string{"y"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunRequest(tt.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
		})
	}
}

func TestRunResultExclusivity(t *testing.T) {
	ok := Succeeded(json.RawMessage(`{"demographic_parity":0.1}`))
	if !ok.OK() || ok.Error != "" {
		t.Errorf("Succeeded result = %+v, want metrics only", ok)
	}

	failed := Failed("boom")
	if failed.OK() || failed.Metrics != nil || failed.Error != "boom" {
		t.Errorf("Failed result = %+v, want error only", failed)
	}

	if Failed("").Error == "" {
		t.Error("Failed(\"\") must still carry an error message")
	}
}

func TestRunResultJSONOmitsEmptySide(t *testing.T) {
	b, err := json.Marshal(Failed("nope"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"error":"nope"}` {
		t.Errorf("json = %s", b)
	}
}

func TestErrorMessagesAreVerbatim(t *testing.T) {
	cause := errors.New("connection refused")
	errs := []struct {
		err  error
		want string
	}{
		{NewValidationError(MsgSelectModelFile), "Select a model file"},
		{&UploadError{Kind: ArtifactModel, Msg: MsgModelUploadFailed, Err: cause}, "Model upload failed"},
		{&GenerationError{Engine: "sdv", Msg: "bad sample", Err: cause}, "bad sample"},
		{&RunError{Msg: "missing column", Err: cause}, "missing column"},
	}
	for _, e := range errs {
		if e.err.Error() != e.want {
			t.Errorf("Error() = %q, want %q", e.err.Error(), e.want)
		}
	}
	if !errors.Is(&RunError{Msg: "x", Err: cause}, cause) {
		t.Error("RunError should unwrap to its cause")
	}
}

func TestLoadArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.pkl")
	if err := os.WriteFile(path, []byte("weights"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	a, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}
	if a.Name != "model.pkl" || a.Size() != 7 || a.Empty() {
		t.Errorf("artifact = %+v", a)
	}

	none, err := LoadArtifact("")
	if err != nil || none != nil {
		t.Errorf("LoadArtifact(\"\") = %v, %v; want nil, nil", none, err)
	}
	if !none.Empty() {
		t.Error("nil artifact should be empty")
	}

	if _, err := LoadArtifact(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
