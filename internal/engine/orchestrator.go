package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adhit-r/fairmind-sub003/internal/model"
	"github.com/adhit-r/fairmind-sub003/internal/synth"
)

// ErrRunInProgress is returned when a run is requested while another is active.
// The rejected call has no effect on stages, log or result.
var ErrRunInProgress = errors.New("simulation run already in progress")

// RunInput is everything the user selected for one run.
type RunInput struct {
	ModelFile           *model.Artifact
	DatasetFile         *model.Artifact
	SampleFile          *model.Artifact
	Engine              string
	Target              string
	Features            []string
	ProtectedAttributes []string
	RowCount            int
	OrgID               string
}

func (in RunInput) datasetInput() DatasetInput {
	return DatasetInput{
		Dataset:  in.DatasetFile,
		Sample:   in.SampleFile,
		Engine:   in.Engine,
		Target:   in.Target,
		Features: in.Features,
		RowCount: in.RowCount,
	}
}

// RunOutcome is the terminal record of one orchestrator invocation.
type RunOutcome struct {
	RunID       string          `json:"run_id"`
	Result      model.RunResult `json:"result"`
	FailedStage string          `json:"failed_stage,omitempty"`
	DatasetKind string          `json:"dataset_kind"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDefaultRowCount sets the synthetic row count used when a run gives none.
func WithDefaultRowCount(n int) Option {
	return func(o *Orchestrator) {
		o.defaultRows = n
	}
}

// WithStages overrides the displayed stage list. Stages the pipeline does not
// drive stay pending.
func WithStages(defs []model.StageDef) Option {
	return func(o *Orchestrator) {
		o.stageDefs = defs
	}
}

// Orchestrator drives simulation runs through init, load_model, generate_data
// and fairness. At most one run is active at a time.
type Orchestrator struct {
	uploader    *ArtifactUploader
	provisioner *DatasetProvisioner
	invoker     *RunInvoker
	tracker     *StepTracker
	log         *LogStream
	logger      *slog.Logger
	stageDefs   []model.StageDef
	defaultRows int

	running atomic.Bool

	mu    sync.RWMutex
	runID string
	last  *RunOutcome
}

// NewOrchestrator creates an orchestrator that talks to svc and selects
// generation engines from engines (the default registry when nil).
func NewOrchestrator(svc Service, engines *synth.Registry, logger *slog.Logger, opts ...Option) *Orchestrator {
	if engines == nil {
		engines = synth.NewDefaultRegistry()
	}
	o := &Orchestrator{
		tracker:   NewStepTracker(),
		log:       NewLogStream(),
		logger:    logger,
		stageDefs: model.PipelineStages,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.uploader = NewArtifactUploader(svc)
	o.provisioner = NewDatasetProvisioner(o.uploader, svc, engines, o.defaultRows)
	o.invoker = NewRunInvoker(svc)
	o.tracker.Reset(o.stageDefs)
	// No run yet: log subscribers see a finished, empty stream.
	o.log.Close()
	return o
}

// Run executes a run and blocks until it finishes. The only error is
// ErrRunInProgress; every pipeline failure is reported in the RunResult.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (model.RunResult, error) {
	runID, err := o.acquire()
	if err != nil {
		return model.RunResult{}, err
	}
	out := o.execute(ctx, runID, in)
	return out.Result, nil
}

// Start launches a run in the background and returns its id and a channel that
// receives the outcome once. It fails with ErrRunInProgress without side effects
// when a run is already active.
func (o *Orchestrator) Start(ctx context.Context, in RunInput) (string, <-chan RunOutcome, error) {
	runID, err := o.acquire()
	if err != nil {
		return "", nil, err
	}
	done := make(chan RunOutcome, 1)
	go func() {
		done <- o.execute(ctx, runID, in)
		close(done)
	}()
	return runID, done, nil
}

// acquire claims the running flag and resets per-run state.
func (o *Orchestrator) acquire() (string, error) {
	if !o.running.CompareAndSwap(false, true) {
		runsRejected.Inc()
		o.logger.Warn("run rejected: another run is in progress", "run_id", o.CurrentRunID())
		return "", ErrRunInProgress
	}
	runInProgress.Set(1)

	runID := model.NewID()
	o.mu.Lock()
	o.runID = runID
	o.last = nil
	o.mu.Unlock()

	o.tracker.Reset(o.stageDefs)
	o.log.Reset()
	return runID, nil
}

// execute runs the pipeline and never panics; the running flag is cleared on
// every exit path.
func (o *Orchestrator) execute(ctx context.Context, runID string, in RunInput) (out RunOutcome) {
	out = RunOutcome{RunID: runID, StartedAt: time.Now().UTC(), DatasetKind: PlanNone.String()}
	logger := o.logger.With("run_id", runID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("run panicked", "panic", r, "stack", string(debug.Stack()))
			if id := o.tracker.Running(); id != "" {
				o.markStage(logger, o.tracker.MarkFailed, id)
				out.FailedStage = id
			}
			out.Result = model.Failed(fmt.Sprintf("internal error: %v", r))
			o.log.Appendf("Error: %s", out.Result.Error)
		}
		out.FinishedAt = time.Now().UTC()
		o.finish(logger, out)
	}()

	logger.Info("run started", "org_id", in.OrgID)
	o.log.Appendf("Starting simulation run %s", runID)

	failedStage, err := o.pipeline(ctx, logger, in, &out)
	if err != nil {
		out.FailedStage = failedStage
		out.Result = model.Failed(err.Error())
		o.log.Appendf("Error: %s", err.Error())
		logger.Warn("run failed", "stage", failedStage, "error", err)
	}
	return out
}

func (o *Orchestrator) pipeline(ctx context.Context, logger *slog.Logger, in RunInput, out *RunOutcome) (string, error) {
	var plan DatasetPlan
	err := o.stage(logger, model.StageInit, func() error {
		if in.ModelFile.Empty() {
			return model.NewValidationError(model.MsgSelectModelFile)
		}
		if err := model.ValidateColumns(in.Target, in.Features, in.ProtectedAttributes); err != nil {
			return err
		}
		p, err := o.provisioner.Plan(in.datasetInput())
		if err != nil {
			return err
		}
		plan = p
		out.DatasetKind = plan.Kind.String()
		o.log.Appendf("Model selected: %s (%d bytes)", in.ModelFile.Name, in.ModelFile.Size())
		return nil
	})
	if err != nil {
		return model.StageInit, err
	}

	var modelPath string
	err = o.stage(logger, model.StageLoadModel, func() error {
		path, err := o.uploader.Upload(ctx, model.ArtifactModel, in.ModelFile)
		if err != nil {
			return err
		}
		modelPath = path
		o.log.Appendf("Model uploaded: %s", path)
		return nil
	})
	if err != nil {
		return model.StageLoadModel, err
	}

	var dataset DatasetResolution
	if plan.Kind == PlanNone {
		o.log.Append("No dataset supplied; skipping dataset preparation")
	} else {
		err = o.stage(logger, model.StageGenerateData, func() error {
			res, err := o.provisioner.Resolve(ctx, plan)
			if err != nil {
				return err
			}
			dataset = res
			o.logResolution(res)
			return nil
		})
		if err != nil {
			return model.StageGenerateData, err
		}
	}

	err = o.stage(logger, model.StageFairness, func() error {
		req, err := o.buildRequest(in, modelPath, dataset)
		if err != nil {
			return err
		}
		o.log.Append("Running fairness analysis")
		result, err := o.invoker.Run(ctx, req)
		if err != nil {
			return err
		}
		out.Result = result
		o.log.Append("Fairness analysis complete")
		return nil
	})
	if err != nil {
		return model.StageFairness, err
	}
	return "", nil
}

func (o *Orchestrator) buildRequest(in RunInput, modelPath string, dataset DatasetResolution) (model.RunRequest, error) {
	req := model.RunRequest{
		ModelPath:           modelPath,
		Target:              in.Target,
		Features:            in.Features,
		ProtectedAttributes: in.ProtectedAttributes,
		OrgID:               in.OrgID,
	}
	switch d := dataset.(type) {
	case Uploaded:
		req.DatasetPath = d.Path
	case Generated:
		req.DatasetPath = d.Path
		req.Engine = d.Engine
	}
	return model.NewRunRequest(req)
}

func (o *Orchestrator) logResolution(res DatasetResolution) {
	switch d := res.(type) {
	case Uploaded:
		o.log.Appendf("Dataset uploaded: %s", d.Path)
	case Generated:
		if d.SamplePath != "" {
			o.log.Appendf("Sample uploaded: %s", d.SamplePath)
		}
		o.log.Appendf("Generated %d rows with %s engine: %s", d.RowCount, d.Engine, d.Path)
	}
}

// stage runs fn as stage id, recording running, done or failed.
func (o *Orchestrator) stage(logger *slog.Logger, id string, fn func() error) error {
	if err := o.tracker.MarkRunning(id); err != nil {
		logger.Error("rejected stage transition", "stage", id, "error", err)
		return fmt.Errorf("internal error: %w", err)
	}
	start := time.Now()
	logger.Debug("stage running", "stage", id)

	if err := fn(); err != nil {
		o.markStage(logger, o.tracker.MarkFailed, id)
		observeStage(id, model.StageFailed, start)
		return err
	}

	o.markStage(logger, o.tracker.MarkDone, id)
	observeStage(id, model.StageDone, start)
	logger.Debug("stage done", "stage", id, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (o *Orchestrator) markStage(logger *slog.Logger, mark func(string) error, id string) {
	if err := mark(id); err != nil {
		logger.Error("rejected stage transition", "stage", id, "error", err)
	}
}

func (o *Orchestrator) finish(logger *slog.Logger, out RunOutcome) {
	o.log.Close()

	o.mu.Lock()
	o.last = &out
	o.mu.Unlock()

	outcome := model.RunStatusSucceeded
	if out.Result.Error != "" {
		outcome = model.RunStatusFailed
	}
	runsTotal.WithLabelValues(outcome).Inc()
	runInProgress.Set(0)
	logger.Info("run finished",
		"outcome", outcome,
		"failed_stage", out.FailedStage,
		"duration_ms", out.FinishedAt.Sub(out.StartedAt).Milliseconds(),
	)

	o.running.Store(false)
}

// Running reports whether a run is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// CurrentRunID returns the id of the active or most recent run.
func (o *Orchestrator) CurrentRunID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.runID
}

// LastOutcome returns the outcome of the most recent finished run, if the
// current run has finished.
func (o *Orchestrator) LastOutcome() (RunOutcome, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return RunOutcome{}, false
	}
	return *o.last, true
}

// Stages returns a snapshot of the stage list.
func (o *Orchestrator) Stages() []model.Stage {
	return o.tracker.Snapshot()
}

// Log returns a snapshot of the current run's log.
func (o *Orchestrator) Log() []model.LogEntry {
	return o.log.Entries()
}

// SubscribeLog returns the log so far and a channel of live entries.
func (o *Orchestrator) SubscribeLog() ([]model.LogEntry, <-chan model.LogEntry, func()) {
	return o.log.Subscribe()
}

// Engines returns the registered generation engines.
func (o *Orchestrator) Engines() []synth.Engine {
	return o.provisioner.engines.List()
}
