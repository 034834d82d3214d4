package model

import (
	"encoding/json"
	"slices"
	"time"
)

// StageStatus is the lifecycle status of a single pipeline stage.
type StageStatus string

// Stage status constants.
const (
	StagePending StageStatus = "pending"
	StageRunning StageStatus = "running"
	StageDone    StageStatus = "done"
	StageFailed  StageStatus = "failed"
)

// Stage identifiers for the simulation pipeline.
const (
	StageInit         = "init"
	StageLoadModel    = "load_model"
	StageGenerateData = "generate_data"
	StageFairness     = "fairness"
)

// Run status constants for persisted run summaries.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// validStageTransitions maps each stage status to the set of statuses it may transition to.
var validStageTransitions = map[StageStatus]map[StageStatus]bool{
	StagePending: {
		StageRunning: true,
	},
	StageRunning: {
		StageDone:   true,
		StageFailed: true,
	},
}

// ValidStageTransition reports whether a stage may move from one status to another.
// Done and failed are terminal.
func ValidStageTransition(from, to StageStatus) bool {
	targets, ok := validStageTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// StageDef declares a stage before a run starts.
type StageDef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Stage is one named step of the evaluation pipeline with its current status.
type Stage struct {
	ID     string      `json:"id"`
	Label  string      `json:"label"`
	Status StageStatus `json:"status"`
}

// PipelineStages is the stage list driven by the orchestrator, in execution order.
var PipelineStages = []StageDef{
	{ID: StageInit, Label: "Initialize"},
	{ID: StageLoadModel, Label: "Load model"},
	{ID: StageGenerateData, Label: "Prepare dataset"},
	{ID: StageFairness, Label: "Fairness analysis"},
}

// LogEntry is a single timestamped event in a run's live log.
type LogEntry struct {
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// RunRequest is the fully resolved set of inputs submitted to the remote
// evaluation endpoint. Construct it with NewRunRequest.
type RunRequest struct {
	ModelPath           string   `json:"path"`
	DatasetPath         string   `json:"dataset_path,omitempty"`
	Target              string   `json:"target"`
	Features            []string `json:"features"`
	ProtectedAttributes []string `json:"protected_attributes"`
	Engine              string   `json:"engine,omitempty"`
	OrgID               string   `json:"org_id,omitempty"`
}

// NewRunRequest validates the given fields and returns a request that owns
// copies of its slices.
func NewRunRequest(r RunRequest) (RunRequest, error) {
	if r.ModelPath == "" {
		return RunRequest{}, NewValidationError("model path is required")
	}
	if err := ValidateColumns(r.Target, r.Features, r.ProtectedAttributes); err != nil {
		return RunRequest{}, err
	}
	r.Features = nonNil(slices.Clone(r.Features))
	r.ProtectedAttributes = nonNil(slices.Clone(r.ProtectedAttributes))
	return r, nil
}

// ValidateColumns checks the column names a run refers to.
func ValidateColumns(target string, features, protected []string) error {
	if slices.Contains(features, "") || slices.Contains(protected, "") {
		return NewValidationError("column names must not be empty")
	}
	if target != "" && slices.Contains(features, target) {
		return NewValidationError("target must not be listed as a feature")
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Column dtypes understood by the builtin generator.
const (
	DTypeFloat = "float"
	DTypeInt   = "int"
)

// SchemaColumn describes one column of a synthetic dataset.
type SchemaColumn struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
}

// DatasetSchema is the column layout sent to the builtin generator.
type DatasetSchema struct {
	Columns []SchemaColumn `json:"columns"`
}

// GenerationRequest asks the remote service for a synthetic dataset. Exactly one
// of Schema or SamplePath is set.
type GenerationRequest struct {
	RowCount   int            `json:"row_count"`
	Schema     *DatasetSchema `json:"schema,omitempty"`
	SamplePath string         `json:"sample_path,omitempty"`
	Engine     string         `json:"engine"`
}

// RunResult is the terminal outcome of a run: metrics or an error, never both.
type RunResult struct {
	Metrics json.RawMessage `json:"metrics,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Succeeded returns a result carrying the remote metrics verbatim.
func Succeeded(metrics json.RawMessage) RunResult {
	return RunResult{Metrics: slices.Clone(metrics)}
}

// Failed returns a result carrying only an error message.
func Failed(msg string) RunResult {
	if msg == "" {
		msg = "run failed"
	}
	return RunResult{Error: msg}
}

// OK reports whether the result carries metrics.
func (r RunResult) OK() bool {
	return r.Error == "" && len(r.Metrics) > 0
}

// RunHistoryEntry is a read-only summary of a past run, supplied by the remote service.
type RunHistoryEntry struct {
	ID          string          `json:"id"`
	ModelPath   string          `json:"model_path,omitempty"`
	DatasetPath string          `json:"dataset_path,omitempty"`
	Target      string          `json:"target,omitempty"`
	Status      string          `json:"status,omitempty"`
	OrgID       string          `json:"org_id,omitempty"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RunSummary is the local record of an orchestrator invocation.
type RunSummary struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	OrgID       string     `json:"org_id,omitempty"`
	ModelName   string     `json:"model_name"`
	DatasetKind string     `json:"dataset_kind,omitempty"`
	FailedStage string     `json:"failed_stage,omitempty"`
	Error       string     `json:"error,omitempty"`
	DurationMS  *int       `json:"duration_ms,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}
