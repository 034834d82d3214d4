// Package remote is the HTTP client for the fairness evaluation service: artifact
// uploads, synthetic dataset generation, simulation runs and recent-run history.
// Every non-2xx response is returned as a *StatusError carrying the server's
// detail message when one was supplied.
package remote
