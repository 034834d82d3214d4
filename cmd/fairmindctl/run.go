package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adhit-r/fairmind-sub003/internal/engine"
	"github.com/adhit-r/fairmind-sub003/internal/model"
	"github.com/adhit-r/fairmind-sub003/internal/synth"
)

// errRunFailed makes the process exit non-zero after a failed run has been printed.
var errRunFailed = errors.New("simulation run failed")

type runFlags struct {
	model, dataset, sample string
	target                 string
	features, protected    []string
	engine                 string
	rows                   int
	org                    string
}

// runReport is what `fairmindctl run` prints.
type runReport struct {
	Stages []model.Stage    `json:"stages"`
	Log    []model.LogEntry `json:"log"`
	Result model.RunResult  `json:"result"`
}

func newRunCmd(g *globals) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Upload a model, prepare a dataset and run a fairness simulation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulation(cmd, g, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.model, "model", "", "serialized model file")
	fl.StringVar(&f.dataset, "dataset", "", "dataset file to evaluate against")
	fl.StringVar(&f.sample, "sample", "", "sample dataset for synthetic generation")
	fl.StringVar(&f.target, "target", "", "target column")
	fl.StringSliceVar(&f.features, "features", nil, "feature columns")
	fl.StringSliceVar(&f.protected, "protected", nil, "protected attribute columns")
	fl.StringVar(&f.engine, "engine", "", "generation engine (builtin, sdv)")
	fl.IntVar(&f.rows, "rows", 0, "synthetic row count")
	fl.StringVar(&f.org, "org", g.cfg.OrgID, "organization id")
	return cmd
}

func runSimulation(cmd *cobra.Command, g *globals, f *runFlags) error {
	in := engine.RunInput{
		Engine:              f.engine,
		Target:              f.target,
		Features:            f.features,
		ProtectedAttributes: f.protected,
		RowCount:            f.rows,
		OrgID:               f.org,
	}

	var err error
	if in.ModelFile, err = model.LoadArtifact(f.model); err != nil {
		return err
	}
	if in.DatasetFile, err = model.LoadArtifact(f.dataset); err != nil {
		return err
	}
	if in.SampleFile, err = model.LoadArtifact(f.sample); err != nil {
		return err
	}

	orch := engine.NewOrchestrator(g.client(), synth.NewDefaultRegistry(), g.logger(cmd),
		engine.WithDefaultRowCount(g.cfg.DefaultRows),
	)
	result, err := orch.Run(cmd.Context(), in)
	if err != nil {
		return err
	}

	if err := printJSON(cmd.OutOrStdout(), runReport{
		Stages: orch.Stages(),
		Log:    orch.Log(),
		Result: result,
	}); err != nil {
		return err
	}
	if !result.OK() {
		return fmt.Errorf("%w: %s", errRunFailed, result.Error)
	}
	return nil
}
