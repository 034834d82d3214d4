package synth

import "fmt"

// Engine names understood by the remote generation endpoint.
const (
	EngineBuiltin = "builtin"
	EngineSDV     = "sdv"
)

// DefaultEngine is used when the caller asks for generation without naming an engine.
const DefaultEngine = EngineBuiltin

// Engine describes one generation strategy and its input requirements.
type Engine struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// RequiresSample means the engine learns from a sample dataset and cannot
	// work from a column schema alone.
	RequiresSample bool `json:"requires_sample"`

	// AcceptsSchema means the engine can generate from target and feature names.
	AcceptsSchema bool `json:"accepts_schema"`
}

// Source is what the caller can offer a generation engine.
type Source struct {
	HasSample bool
	HasSchema bool
}

// Check reports whether the engine can run with the given source. The error
// text is shown to the user as-is.
func (e Engine) Check(src Source) error {
	if src.HasSample {
		return nil
	}
	if e.RequiresSample || !e.AcceptsSchema {
		return fmt.Errorf("%s requires a sample dataset", e.Name)
	}
	if !src.HasSchema {
		return fmt.Errorf("%s requires a target and features or a sample dataset", e.Name)
	}
	return nil
}

// UseSample reports whether a generation request should carry the sample path
// instead of a schema. A sample wins when both are available.
func (e Engine) UseSample(src Source) bool {
	return src.HasSample
}

// Builtin is the statistical engine that works from a schema or a sample.
var Builtin = Engine{
	Name:           EngineBuiltin,
	Description:    "Statistical generator driven by a column schema or an inferred sample schema",
	RequiresSample: false,
	AcceptsSchema:  true,
}

// SDV is the sample-driven engine backed by the Synthetic Data Vault.
var SDV = Engine{
	Name:           EngineSDV,
	Description:    "Synthetic Data Vault model fitted on a sample dataset",
	RequiresSample: true,
	AcceptsSchema:  false,
}
