package engine

import (
	"context"
	"encoding/json"

	"github.com/adhit-r/fairmind-sub003/internal/model"
)

// ArtifactStore uploads artifacts to the remote service.
type ArtifactStore interface {
	UploadModel(ctx context.Context, a *model.Artifact) (string, error)
	UploadDataset(ctx context.Context, a *model.Artifact) (string, error)
}

// DatasetGenerator requests synthetic datasets from the remote service.
type DatasetGenerator interface {
	GenerateDataset(ctx context.Context, req model.GenerationRequest) (string, error)
}

// SimulationRunner submits fairness runs to the remote service.
type SimulationRunner interface {
	RunSimulation(ctx context.Context, req model.RunRequest) (json.RawMessage, error)
}

// Service is everything the orchestrator needs from the remote evaluation
// service. *remote.Client implements it.
type Service interface {
	ArtifactStore
	DatasetGenerator
	SimulationRunner
}
