package engine

import (
	"context"
	"fmt"

	"github.com/adhit-r/fairmind-sub003/internal/model"
	"github.com/adhit-r/fairmind-sub003/internal/synth"
)

// DefaultRowCount is the number of synthetic rows requested when none is given.
const DefaultRowCount = 1000

// maxRowCount bounds synthetic generation requests.
const maxRowCount = 1_000_000

// DatasetInput is what the caller offers for dataset resolution.
type DatasetInput struct {
	Dataset  *model.Artifact
	Sample   *model.Artifact
	Engine   string
	Target   string
	Features []string
	RowCount int
}

func (in DatasetInput) hasSchema() bool {
	return in.Target != "" && len(in.Features) > 0
}

// wantsGeneration reports whether the caller expressed any intent to obtain a
// dataset without uploading one.
func (in DatasetInput) wantsGeneration() bool {
	return in.Engine != "" || in.Sample != nil || in.Target != "" || len(in.Features) > 0
}

// PlanKind selects how the dataset stage runs.
type PlanKind int

const (
	// PlanNone skips the dataset stage; the run carries no dataset path.
	PlanNone PlanKind = iota
	// PlanUpload uploads the caller's dataset as-is.
	PlanUpload
	// PlanGenerate requests a synthetic dataset.
	PlanGenerate
)

func (k PlanKind) String() string {
	switch k {
	case PlanUpload:
		return "uploaded"
	case PlanGenerate:
		return "generated"
	default:
		return "none"
	}
}

// DatasetPlan is a validated decision about dataset resolution. Building one
// performs no I/O.
type DatasetPlan struct {
	Kind     PlanKind
	Dataset  *model.Artifact
	Sample   *model.Artifact
	Engine   synth.Engine
	Schema   *model.DatasetSchema
	RowCount int
}

// DatasetResolution is the resolved dataset of a run: Uploaded or Generated.
type DatasetResolution interface {
	DatasetPath() string
	isDatasetResolution()
}

// Uploaded is a dataset the caller supplied.
type Uploaded struct {
	Path string
}

// Generated is a synthetic dataset. Exactly one of Schema or SamplePath is set.
type Generated struct {
	Engine     string
	Path       string
	RowCount   int
	Schema     *model.DatasetSchema
	SamplePath string
}

func (u Uploaded) DatasetPath() string  { return u.Path }
func (g Generated) DatasetPath() string { return g.Path }

func (Uploaded) isDatasetResolution()  {}
func (Generated) isDatasetResolution() {}

// DatasetProvisioner decides and resolves the dataset of a run.
type DatasetProvisioner struct {
	uploader    *ArtifactUploader
	generator   DatasetGenerator
	engines     *synth.Registry
	defaultRows int
}

// NewDatasetProvisioner creates a provisioner. defaultRows <= 0 selects DefaultRowCount.
func NewDatasetProvisioner(uploader *ArtifactUploader, gen DatasetGenerator, engines *synth.Registry, defaultRows int) *DatasetProvisioner {
	if defaultRows <= 0 {
		defaultRows = DefaultRowCount
	}
	return &DatasetProvisioner{
		uploader:    uploader,
		generator:   gen,
		engines:     engines,
		defaultRows: defaultRows,
	}
}

// Plan validates in and picks a resolution path. All precondition failures are
// returned here as *model.ValidationError so that no network call is made for
// an input that cannot succeed. An uploaded dataset wins over generation.
func (p *DatasetProvisioner) Plan(in DatasetInput) (DatasetPlan, error) {
	if in.Dataset != nil {
		if in.Dataset.Empty() {
			return DatasetPlan{}, model.NewValidationError("Dataset file is empty")
		}
		if !in.hasSchema() {
			return DatasetPlan{}, model.NewValidationError(model.MsgTargetFeaturesRequired)
		}
		return DatasetPlan{Kind: PlanUpload, Dataset: in.Dataset}, nil
	}

	if !in.wantsGeneration() {
		return DatasetPlan{Kind: PlanNone}, nil
	}

	eng, err := p.engines.Resolve(in.Engine)
	if err != nil {
		return DatasetPlan{}, model.NewValidationError(err.Error())
	}
	if in.Sample != nil && in.Sample.Empty() {
		return DatasetPlan{}, model.NewValidationError("Sample file is empty")
	}

	src := synth.Source{HasSample: in.Sample != nil, HasSchema: in.hasSchema()}
	if err := eng.Check(src); err != nil {
		return DatasetPlan{}, model.NewValidationError(err.Error())
	}

	rows := in.RowCount
	if rows == 0 {
		rows = p.defaultRows
	}
	if rows < 0 || rows > maxRowCount {
		return DatasetPlan{}, model.NewValidationError(fmt.Sprintf("row count must be between 1 and %d", maxRowCount))
	}

	plan := DatasetPlan{Kind: PlanGenerate, Engine: eng, RowCount: rows}
	if eng.UseSample(src) {
		plan.Sample = in.Sample
	} else {
		plan.Schema = BuildSchema(in.Target, in.Features)
	}
	return plan, nil
}

// Resolve executes a plan. PlanNone resolves to nil.
func (p *DatasetProvisioner) Resolve(ctx context.Context, plan DatasetPlan) (DatasetResolution, error) {
	switch plan.Kind {
	case PlanNone:
		return nil, nil
	case PlanUpload:
		path, err := p.uploader.Upload(ctx, model.ArtifactDataset, plan.Dataset)
		if err != nil {
			return nil, err
		}
		return Uploaded{Path: path}, nil
	case PlanGenerate:
		return p.generate(ctx, plan)
	default:
		return nil, fmt.Errorf("unknown dataset plan %d", plan.Kind)
	}
}

func (p *DatasetProvisioner) generate(ctx context.Context, plan DatasetPlan) (DatasetResolution, error) {
	req := model.GenerationRequest{
		RowCount: plan.RowCount,
		Engine:   plan.Engine.Name,
	}
	if plan.Sample != nil {
		samplePath, err := p.uploader.Upload(ctx, model.ArtifactDataset, plan.Sample)
		if err != nil {
			return nil, err
		}
		req.SamplePath = samplePath
	} else {
		req.Schema = plan.Schema
	}

	path, err := p.generator.GenerateDataset(ctx, req)
	if err != nil {
		return nil, &model.GenerationError{
			Engine: plan.Engine.Name,
			Msg:    detailOr(err, model.MsgGenerationFailed),
			Err:    err,
		}
	}
	return Generated{
		Engine:     plan.Engine.Name,
		Path:       path,
		RowCount:   plan.RowCount,
		Schema:     req.Schema,
		SamplePath: req.SamplePath,
	}, nil
}

// BuildSchema lays out one float column per feature followed by an int target column.
func BuildSchema(target string, features []string) *model.DatasetSchema {
	cols := make([]model.SchemaColumn, 0, len(features)+1)
	for _, f := range features {
		cols = append(cols, model.SchemaColumn{Name: f, DType: model.DTypeFloat})
	}
	cols = append(cols, model.SchemaColumn{Name: target, DType: model.DTypeInt})
	return &model.DatasetSchema{Columns: cols}
}
