package engine

import (
	"context"
	"fmt"

	"github.com/adhit-r/fairmind-sub003/internal/model"
	"github.com/adhit-r/fairmind-sub003/internal/remote"
)

// ArtifactUploader validates and uploads model and dataset files.
type ArtifactUploader struct {
	store ArtifactStore
}

// NewArtifactUploader creates an uploader backed by store.
func NewArtifactUploader(store ArtifactStore) *ArtifactUploader {
	return &ArtifactUploader{store: store}
}

// Upload sends the artifact and returns its remote path. A missing or empty
// artifact fails with *model.ValidationError before any network call; remote
// failures return *model.UploadError.
func (u *ArtifactUploader) Upload(ctx context.Context, kind string, a *model.Artifact) (string, error) {
	if err := validateArtifact(kind, a); err != nil {
		return "", err
	}

	var (
		path    string
		err     error
		generic string
	)
	switch kind {
	case model.ArtifactModel:
		generic = model.MsgModelUploadFailed
		path, err = u.store.UploadModel(ctx, a)
	case model.ArtifactDataset:
		generic = model.MsgDatasetUploadFailed
		path, err = u.store.UploadDataset(ctx, a)
	default:
		return "", model.NewValidationError(fmt.Sprintf("unknown artifact kind %q", kind))
	}
	if err != nil {
		return "", &model.UploadError{Kind: kind, Msg: detailOr(err, generic), Err: err}
	}
	return path, nil
}

func validateArtifact(kind string, a *model.Artifact) error {
	if a == nil {
		if kind == model.ArtifactModel {
			return model.NewValidationError(model.MsgSelectModelFile)
		}
		return model.NewValidationError("Select a dataset file")
	}
	if a.Empty() {
		name := a.Name
		if name == "" {
			name = kind + " file"
		}
		return model.NewValidationError(fmt.Sprintf("%s is empty", name))
	}
	return nil
}

// detailOr returns the server detail carried by err, or generic.
func detailOr(err error, generic string) string {
	if d := remote.DetailOf(err); d != "" {
		return d
	}
	return generic
}
