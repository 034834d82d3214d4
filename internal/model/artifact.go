package model

import (
	"fmt"
	"os"
	"path/filepath"
)

// Artifact kinds accepted by the remote upload endpoints.
const (
	ArtifactModel   = "model"
	ArtifactDataset = "dataset"
)

// Artifact is a user-selected file: a serialized model, a dataset or a sample.
type Artifact struct {
	Name    string
	Content []byte
}

// Empty reports whether the artifact is missing or has no content.
func (a *Artifact) Empty() bool {
	return a == nil || len(a.Content) == 0
}

// Size returns the content length in bytes.
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Content)
}

// LoadArtifact reads a file from disk. An empty path yields a nil artifact.
func LoadArtifact(path string) (*Artifact, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return &Artifact{Name: filepath.Base(path), Content: b}, nil
}
