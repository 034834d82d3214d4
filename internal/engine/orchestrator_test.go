package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/adhit-r/fairmind-sub003/internal/engine"
	"github.com/adhit-r/fairmind-sub003/internal/model"
	"github.com/adhit-r/fairmind-sub003/internal/remote"
	"github.com/adhit-r/fairmind-sub003/internal/synth"
)

func TestRunWithoutModelFileShortCircuits(t *testing.T) {
	o, f := newTestOrchestrator(t)

	res, err := o.Run(context.Background(), engine.RunInput{
		DatasetFile: artifact("d.csv", "a,y\n1,0"),
		Target:      "y",
		Features:    []string{"a"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Error != "Select a model file" {
		t.Errorf("Error = %q, want %q", res.Error, "Select a model file")
	}
	assertExclusive(t, res)
	assertCalls(t, f.callLog())

	st := stageStatuses(o.Stages())
	if st[model.StageInit] != model.StageFailed {
		t.Errorf("init = %s, want failed", st[model.StageInit])
	}
	for _, id := range []string{model.StageLoadModel, model.StageGenerateData, model.StageFairness} {
		if st[id] != model.StagePending {
			t.Errorf("%s = %s, want pending", id, st[id])
		}
	}
}

func TestRunEmptyModelFileShortCircuits(t *testing.T) {
	o, f := newTestOrchestrator(t)

	res, _ := o.Run(context.Background(), engine.RunInput{ModelFile: &model.Artifact{Name: "m.pkl"}})
	if res.Error != "Select a model file" {
		t.Errorf("Error = %q", res.Error)
	}
	assertCalls(t, f.callLog())
}

func TestRunExplicitDatasetCallOrder(t *testing.T) {
	o, f := newTestOrchestrator(t)

	res, err := o.Run(context.Background(), engine.RunInput{
		ModelFile:           artifact("model.pkl", "weights"),
		DatasetFile:         artifact("loans.csv", "age,income,approved\n30,5,1"),
		Target:              "approved",
		Features:            []string{"age", "income"},
		ProtectedAttributes: []string{"sex"},
		OrgID:               "acme",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Error != "" {
		t.Fatalf("Error = %q", res.Error)
	}
	assertExclusive(t, res)
	assertCalls(t, f.callLog(), remote.PathModelUpload, remote.PathDatasetUpload, remote.PathSimulationRun)

	run := f.run()
	if run.ModelPath != "uploads/model.pkl" || run.DatasetPath != "uploads/loans.csv" {
		t.Errorf("run paths = %q %q", run.ModelPath, run.DatasetPath)
	}
	if run.Target != "approved" || !reflect.DeepEqual(run.Features, []string{"age", "income"}) {
		t.Errorf("run target/features = %q %v", run.Target, run.Features)
	}
	if !reflect.DeepEqual(run.ProtectedAttributes, []string{"sex"}) || run.OrgID != "acme" {
		t.Errorf("run protected/org = %v %q", run.ProtectedAttributes, run.OrgID)
	}

	var metrics map[string]float64
	if err := json.Unmarshal(res.Metrics, &metrics); err != nil {
		t.Fatalf("metrics not passed through verbatim: %v", err)
	}
	if metrics["demographic_parity"] != 0.08 {
		t.Errorf("metrics = %v", metrics)
	}

	for _, s := range o.Stages() {
		if s.Status != model.StageDone {
			t.Errorf("stage %s = %s, want done", s.ID, s.Status)
		}
	}
}

func TestRunSchemaGeneration(t *testing.T) {
	o, f := newTestOrchestrator(t)

	res, _ := o.Run(context.Background(), engine.RunInput{
		ModelFile: artifact("model.pkl", "weights"),
		Target:    "approved",
		Features:  []string{"age", "income"},
	})
	if res.Error != "" {
		t.Fatalf("Error = %q", res.Error)
	}
	assertCalls(t, f.callLog(), remote.PathModelUpload, remote.PathDatasetGen, remote.PathSimulationRun)

	gen := f.generation()
	want := []model.SchemaColumn{
		{Name: "age", DType: "float"},
		{Name: "income", DType: "float"},
		{Name: "approved", DType: "int"},
	}
	if gen.Schema == nil || !reflect.DeepEqual(gen.Schema.Columns, want) {
		t.Errorf("schema = %+v, want %+v", gen.Schema, want)
	}
	if gen.SamplePath != "" {
		t.Errorf("sample_path = %q, want empty", gen.SamplePath)
	}
	if gen.RowCount != engine.DefaultRowCount || gen.Engine != synth.EngineBuiltin {
		t.Errorf("row_count/engine = %d %q", gen.RowCount, gen.Engine)
	}
	if got := f.run().DatasetPath; got != "generated/synthetic.csv" {
		t.Errorf("run dataset_path = %q", got)
	}
}

func TestRunDefaultRowCountOption(t *testing.T) {
	o, f := newTestOrchestrator(t, engine.WithDefaultRowCount(250))

	o.Run(context.Background(), engine.RunInput{
		ModelFile: artifact("model.pkl", "weights"),
		Target:    "y",
		Features:  []string{"x"},
	})
	if got := f.generation().RowCount; got != 250 {
		t.Errorf("row_count = %d, want 250", got)
	}
}

func TestRunSDVWithoutSampleIsValidationError(t *testing.T) {
	o, f := newTestOrchestrator(t)

	res, _ := o.Run(context.Background(), engine.RunInput{
		ModelFile: artifact("model.pkl", "weights"),
		Engine:    synth.EngineSDV,
		Target:    "y",
		Features:  []string{"x"},
	})
	if res.Error != "sdv requires a sample dataset" {
		t.Errorf("Error = %q", res.Error)
	}
	assertExclusive(t, res)
	assertCalls(t, f.callLog())
}

func TestRunSDVWithSample(t *testing.T) {
	o, f := newTestOrchestrator(t)

	res, _ := o.Run(context.Background(), engine.RunInput{
		ModelFile:  artifact("model.pkl", "weights"),
		SampleFile: artifact("sample.csv", "x,y\n1,0"),
		Engine:     synth.EngineSDV,
		RowCount:   5000,
	})
	if res.Error != "" {
		t.Fatalf("Error = %q", res.Error)
	}
	assertCalls(t, f.callLog(), remote.PathModelUpload, remote.PathDatasetUpload, remote.PathDatasetGen, remote.PathSimulationRun)

	gen := f.generation()
	if gen.SamplePath != "uploads/sample.csv" || gen.Schema != nil {
		t.Errorf("generation = %+v, want sample only", gen)
	}
	if gen.RowCount != 5000 || gen.Engine != synth.EngineSDV {
		t.Errorf("row_count/engine = %d %q", gen.RowCount, gen.Engine)
	}
	if f.run().Engine != synth.EngineSDV {
		t.Errorf("run engine = %q", f.run().Engine)
	}
}

func TestRunExplicitDatasetRequiresTargetAndFeatures(t *testing.T) {
	o, f := newTestOrchestrator(t)

	res, _ := o.Run(context.Background(), engine.RunInput{
		ModelFile:   artifact("model.pkl", "weights"),
		DatasetFile: artifact("d.csv", "a"),
		Target:      "y",
	})
	if res.Error != model.MsgTargetFeaturesRequired {
		t.Errorf("Error = %q", res.Error)
	}
	assertCalls(t, f.callLog())
}

func TestRunWithoutDatasetSkipsGenerateStage(t *testing.T) {
	o, f := newTestOrchestrator(t)

	res, _ := o.Run(context.Background(), engine.RunInput{ModelFile: artifact("model.pkl", "weights")})
	if res.Error != "" {
		t.Fatalf("Error = %q", res.Error)
	}
	assertCalls(t, f.callLog(), remote.PathModelUpload, remote.PathSimulationRun)

	st := stageStatuses(o.Stages())
	if st[model.StageGenerateData] != model.StagePending {
		t.Errorf("generate_data = %s, want pending (skipped)", st[model.StageGenerateData])
	}
	if st[model.StageFairness] != model.StageDone {
		t.Errorf("fairness = %s, want done", st[model.StageFairness])
	}
	if f.run().DatasetPath != "" {
		t.Errorf("dataset_path = %q, want empty", f.run().DatasetPath)
	}
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		status      int
		body        string
		input       engine.RunInput
		wantError   string
		failedStage string
		pending     []string
	}{
		{
			name:        "model upload with detail",
			path:        remote.PathModelUpload,
			status:      http.StatusBadRequest,
			body:        `{"detail":"Unsupported model format"}`,
			input:       engine.RunInput{ModelFile: artifact("m.bin", "x"), Target: "y", Features: []string{"a"}},
			wantError:   "Unsupported model format",
			failedStage: model.StageLoadModel,
			pending:     []string{model.StageGenerateData, model.StageFairness},
		},
		{
			name:        "model upload without detail",
			path:        remote.PathModelUpload,
			status:      http.StatusBadGateway,
			body:        `bad gateway`,
			input:       engine.RunInput{ModelFile: artifact("m.bin", "x")},
			wantError:   model.MsgModelUploadFailed,
			failedStage: model.StageLoadModel,
			pending:     []string{model.StageGenerateData, model.StageFairness},
		},
		{
			name:        "dataset upload",
			path:        remote.PathDatasetUpload,
			status:      http.StatusInternalServerError,
			body:        `{}`,
			input:       engine.RunInput{ModelFile: artifact("m.bin", "x"), DatasetFile: artifact("d.csv", "a"), Target: "y", Features: []string{"a"}},
			wantError:   model.MsgDatasetUploadFailed,
			failedStage: model.StageGenerateData,
			pending:     []string{model.StageFairness},
		},
		{
			name:        "generation",
			path:        remote.PathDatasetGen,
			status:      http.StatusUnprocessableEntity,
			body:        `{"detail":"row_count too large"}`,
			input:       engine.RunInput{ModelFile: artifact("m.bin", "x"), Target: "y", Features: []string{"a"}},
			wantError:   "row_count too large",
			failedStage: model.StageGenerateData,
			pending:     []string{model.StageFairness},
		},
		{
			name:        "simulation run",
			path:        remote.PathSimulationRun,
			status:      http.StatusInternalServerError,
			body:        `{"detail":"Target column not found"}`,
			input:       engine.RunInput{ModelFile: artifact("m.bin", "x"), Target: "y", Features: []string{"a"}},
			wantError:   "Target column not found",
			failedStage: model.StageFairness,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, f := newTestOrchestrator(t)
			f.fail(tt.path, tt.status, tt.body)

			res, err := o.Run(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", res.Error, tt.wantError)
			}
			assertExclusive(t, res)

			calls := f.callLog()
			if calls[len(calls)-1] != tt.path {
				t.Errorf("pipeline continued after failure: %v", calls)
			}

			st := stageStatuses(o.Stages())
			if st[tt.failedStage] != model.StageFailed {
				t.Errorf("%s = %s, want failed", tt.failedStage, st[tt.failedStage])
			}
			for _, id := range tt.pending {
				if st[id] != model.StagePending {
					t.Errorf("%s = %s, want pending", id, st[id])
				}
			}

			out, ok := o.LastOutcome()
			if !ok || out.FailedStage != tt.failedStage {
				t.Errorf("LastOutcome = %+v, %v", out, ok)
			}
		})
	}
}

func TestRunNullMetricsIsFailure(t *testing.T) {
	o, f := newTestOrchestrator(t)
	f.metrics = "null"

	res, _ := o.Run(context.Background(), engine.RunInput{ModelFile: artifact("m.pkl", "x")})
	if res.Error != model.MsgRunFailed {
		t.Errorf("Error = %q, want %q", res.Error, model.MsgRunFailed)
	}
	assertExclusive(t, res)
}

func TestRunReentrancyGuard(t *testing.T) {
	o, f := newTestOrchestrator(t)
	f.gate = make(chan struct{})
	f.entered = make(chan struct{})

	runID, done, err := o.Start(context.Background(), engine.RunInput{ModelFile: artifact("m.pkl", "x")})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-f.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached model upload")
	}

	if !o.Running() {
		t.Error("Running() = false during a run")
	}
	stagesBefore := o.Stages()
	logBefore := o.Log()

	_, err = o.Run(context.Background(), engine.RunInput{ModelFile: artifact("other.pkl", "y")})
	if !errors.Is(err, engine.ErrRunInProgress) {
		t.Errorf("second Run error = %v, want ErrRunInProgress", err)
	}
	if _, _, err := o.Start(context.Background(), engine.RunInput{}); !errors.Is(err, engine.ErrRunInProgress) {
		t.Errorf("second Start error = %v, want ErrRunInProgress", err)
	}
	if !reflect.DeepEqual(o.Stages(), stagesBefore) || len(o.Log()) != len(logBefore) {
		t.Error("rejected run changed stages or log")
	}
	if o.CurrentRunID() != runID {
		t.Errorf("CurrentRunID = %q, want %q", o.CurrentRunID(), runID)
	}

	close(f.gate)
	select {
	case out := <-done:
		if out.RunID != runID || out.Result.Error != "" {
			t.Errorf("outcome = %+v", out)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not finish")
	}

	if o.Running() {
		t.Error("running flag not cleared after run")
	}
	assertCalls(t, f.callLog(), remote.PathModelUpload, remote.PathSimulationRun)
}

func TestRunLogResetsBetweenRuns(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	o.Run(context.Background(), engine.RunInput{ModelFile: artifact("m.pkl", "x")})
	first := o.Log()
	firstID := o.CurrentRunID()

	o.Run(context.Background(), engine.RunInput{})
	second := o.Log()

	if len(first) == 0 || len(second) == 0 {
		t.Fatalf("empty logs: %d %d", len(first), len(second))
	}
	if second[0].Seq != 0 || !strings.Contains(second[0].Message, o.CurrentRunID()) {
		t.Errorf("second log starts with %+v", second[0])
	}
	if o.CurrentRunID() == firstID {
		t.Error("run id was reused")
	}
	for i := 1; i < len(second); i++ {
		if second[i].Timestamp.Before(second[i-1].Timestamp) {
			t.Errorf("log timestamps decrease at %d", i)
		}
	}
	last := second[len(second)-1].Message
	if last != "Error: Select a model file" {
		t.Errorf("last log entry = %q", last)
	}
}

func TestRunCancelledContextFailsStage(t *testing.T) {
	o, f := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.Run(ctx, engine.RunInput{ModelFile: artifact("m.pkl", "x")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Error != model.MsgModelUploadFailed {
		t.Errorf("Error = %q", res.Error)
	}
	if len(f.callLog()) != 0 {
		t.Errorf("calls = %v, want none", f.callLog())
	}
}

// panicService panics inside the fairness call.
type panicService struct{}

func (panicService) UploadModel(context.Context, *model.Artifact) (string, error) {
	return "uploads/m.pkl", nil
}

func (panicService) UploadDataset(context.Context, *model.Artifact) (string, error) {
	return "uploads/d.csv", nil
}

func (panicService) GenerateDataset(context.Context, model.GenerationRequest) (string, error) {
	return "generated/g.csv", nil
}

func (panicService) RunSimulation(context.Context, model.RunRequest) (json.RawMessage, error) {
	panic("nil metrics map")
}

func TestRunRecoversPanic(t *testing.T) {
	o := engine.NewOrchestrator(panicService{}, nil, discardLogger())

	res, err := o.Run(context.Background(), engine.RunInput{ModelFile: artifact("m.pkl", "x")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(res.Error, "internal error") {
		t.Errorf("Error = %q", res.Error)
	}
	assertExclusive(t, res)
	if st := stageStatuses(o.Stages()); st[model.StageFairness] != model.StageFailed {
		t.Errorf("fairness = %s, want failed", st[model.StageFairness])
	}
	if o.Running() {
		t.Error("running flag not cleared after panic")
	}
}

func TestWithStagesKeepsUndrivenStagesPending(t *testing.T) {
	defs := append([]model.StageDef{}, model.PipelineStages...)
	defs = append(defs, model.StageDef{ID: "report", Label: "Report"})
	o := engine.NewOrchestrator(panicService{}, nil, discardLogger(), engine.WithStages(defs))

	o.Run(context.Background(), engine.RunInput{})
	st := stageStatuses(o.Stages())
	if len(st) != 5 || st["report"] != model.StagePending {
		t.Errorf("stages = %v", st)
	}
}

func TestEnginesListsRegistry(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if got := len(o.Engines()); got != 2 {
		t.Errorf("Engines() = %d, want 2", got)
	}
}

func TestSubscribeLogIdleAndLive(t *testing.T) {
	o, f := newTestOrchestrator(t)

	backlog, ch, unsub := o.SubscribeLog()
	if len(backlog) != 0 {
		t.Errorf("idle backlog = %v", backlog)
	}
	if _, ok := <-ch; ok {
		t.Error("idle subscription should be closed")
	}
	unsub()

	f.mu.Lock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{})
	f.mu.Unlock()

	_, done, err := o.Start(context.Background(), engine.RunInput{ModelFile: artifact("m.pkl", "x")})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-f.entered

	backlog, ch, unsub = o.SubscribeLog()
	defer unsub()
	if len(backlog) == 0 || !strings.HasPrefix(backlog[0].Message, "Starting simulation run") {
		t.Errorf("backlog = %+v", backlog)
	}
	close(f.gate)

	var live []string
	for e := range ch {
		live = append(live, e.Message)
	}
	<-done

	if len(backlog)+len(live) != len(o.Log()) {
		t.Errorf("backlog %d + live %d != log %d", len(backlog), len(live), len(o.Log()))
	}
	if len(live) == 0 || live[len(live)-1] != "Fairness analysis complete" {
		t.Errorf("live = %v", live)
	}
}
