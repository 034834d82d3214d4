package engine

import (
	"bytes"
	"context"
	"errors"

	"github.com/adhit-r/fairmind-sub003/internal/model"
)

var errEmptyMetrics = errors.New("empty metrics document")

// RunInvoker submits a RunRequest to the evaluation endpoint.
type RunInvoker struct {
	runner SimulationRunner
}

// NewRunInvoker creates an invoker backed by runner.
func NewRunInvoker(runner SimulationRunner) *RunInvoker {
	return &RunInvoker{runner: runner}
}

// Run posts the request and waits for the result. The returned RunResult always
// carries exactly one of metrics or error; err is the *model.RunError behind a
// failed result and nil otherwise.
func (i *RunInvoker) Run(ctx context.Context, req model.RunRequest) (model.RunResult, error) {
	raw, err := i.runner.RunSimulation(ctx, req)
	if err == nil && isEmptyJSON(raw) {
		err = errEmptyMetrics
	}
	if err != nil {
		rerr := &model.RunError{Msg: detailOr(err, model.MsgRunFailed), Err: err}
		return model.Failed(rerr.Error()), rerr
	}
	return model.Succeeded(raw), nil
}

func isEmptyJSON(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
