// Package synth describes the synthetic dataset engines offered by the remote
// service (builtin schema-driven generation, SDV sample-driven generation) and
// the local preconditions each engine imposes before a generation request is sent.
package synth
