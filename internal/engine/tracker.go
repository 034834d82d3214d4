package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/adhit-r/fairmind-sub003/internal/model"
)

var (
	// ErrIllegalTransition is returned when a stage status change would break
	// the pending→running→done|failed order.
	ErrIllegalTransition = errors.New("illegal stage transition")

	// ErrUnknownStage is returned for a stage id that was not declared in Reset.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrStageBusy is returned when a stage is marked running while another
	// stage is still running.
	ErrStageBusy = errors.New("another stage is running")
)

// StepTracker holds the ordered stage list of the current run. It is safe for
// concurrent use: the orchestrator writes while API handlers take snapshots.
type StepTracker struct {
	mu      sync.RWMutex
	stages  []model.Stage
	index   map[string]int
	running string
}

// NewStepTracker creates a tracker with no stages.
func NewStepTracker() *StepTracker {
	return &StepTracker{index: make(map[string]int)}
}

// Reset replaces the stage list with defs, all pending. Duplicate ids keep
// their first position.
func (t *StepTracker) Reset(defs []model.StageDef) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stages = make([]model.Stage, 0, len(defs))
	t.index = make(map[string]int, len(defs))
	t.running = ""
	for _, d := range defs {
		if _, dup := t.index[d.ID]; dup {
			continue
		}
		t.index[d.ID] = len(t.stages)
		t.stages = append(t.stages, model.Stage{ID: d.ID, Label: d.Label, Status: model.StagePending})
	}
}

// MarkRunning moves a pending stage to running.
func (t *StepTracker) MarkRunning(id string) error {
	return t.transition(id, model.StageRunning)
}

// MarkDone moves a running stage to done.
func (t *StepTracker) MarkDone(id string) error {
	return t.transition(id, model.StageDone)
}

// MarkFailed moves a running stage to failed.
func (t *StepTracker) MarkFailed(id string) error {
	return t.transition(id, model.StageFailed)
}

func (t *StepTracker) transition(id string, to model.StageStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStage, id)
	}
	from := t.stages[i].Status
	if !model.ValidStageTransition(from, to) {
		return fmt.Errorf("%w: stage %q %s -> %s", ErrIllegalTransition, id, from, to)
	}
	if to == model.StageRunning && t.running != "" {
		return fmt.Errorf("%w: %q", ErrStageBusy, t.running)
	}

	t.stages[i].Status = to
	if to == model.StageRunning {
		t.running = id
	} else {
		t.running = ""
	}
	return nil
}

// Status returns the current status of a stage.
func (t *StepTracker) Status(id string) (model.StageStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i, ok := t.index[id]
	if !ok {
		return "", false
	}
	return t.stages[i].Status, true
}

// Running returns the id of the running stage, or "".
func (t *StepTracker) Running() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// Snapshot returns a copy of the stage list.
func (t *StepTracker) Snapshot() []model.Stage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]model.Stage, len(t.stages))
	copy(out, t.stages)
	return out
}
