// Package errors provides the structured error type shared by every chanflow
// package. An AppError carries a machine-readable code, the name of the
// stage that raised it and the underlying cause, so a single terminal
// failure observed at a sink still says where in the topology it started.
package errors
