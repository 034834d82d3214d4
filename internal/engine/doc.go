// Package engine runs simulation evaluations against the remote fairness
// service. The Orchestrator sequences model upload, dataset provisioning and the
// fairness run as a strict stage pipeline, recording each stage transition in a
// StepTracker and each event in a LogStream. Every failure is folded into the
// run's terminal RunResult; at most one run is active per Orchestrator.
package engine
