package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrCycleInProgress is returned when a sync cycle is triggered while another one runs
	ErrCycleInProgress = errors.New("order sync cycle already in progress")

	// ErrCycleLockNotObtained is returned when another instance holds the cycle lock
	ErrCycleLockNotObtained = errors.New("order sync cycle lock held by another instance")

	// ErrStopTimeout is returned when Stop gives up waiting for an in-flight cycle
	ErrStopTimeout = errors.New("timed out waiting for order sync cycle to finish")
)
