package model

// User-facing validation messages.
const (
	MsgSelectModelFile        = "Select a model file"
	MsgTargetFeaturesRequired = "Target and features are required for an uploaded dataset"
)

// Generic messages used when the remote service gives no detail.
const (
	MsgModelUploadFailed   = "Model upload failed"
	MsgDatasetUploadFailed = "Dataset upload failed"
	MsgGenerationFailed    = "Dataset generation failed"
	MsgRunFailed           = "Simulation run failed"
)

// ValidationError reports missing or invalid input detected before any network call.
type ValidationError struct {
	Msg string
}

// NewValidationError returns a ValidationError with the given message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

func (e *ValidationError) Error() string { return e.Msg }

// UploadError reports a failed artifact upload. Msg is the server detail when
// one was supplied, otherwise a generic message.
type UploadError struct {
	Kind string
	Msg  string
	Err  error
}

func (e *UploadError) Error() string { return e.Msg }
func (e *UploadError) Unwrap() error { return e.Err }

// GenerationError reports a failed synthetic dataset request.
type GenerationError struct {
	Engine string
	Msg    string
	Err    error
}

func (e *GenerationError) Error() string { return e.Msg }
func (e *GenerationError) Unwrap() error { return e.Err }

// RunError reports a failed evaluation invocation.
type RunError struct {
	Msg string
	Err error
}

func (e *RunError) Error() string { return e.Msg }
func (e *RunError) Unwrap() error { return e.Err }
