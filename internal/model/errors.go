package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")

	// ErrOperationInProgress is returned when an operation type already has a task in flight.
	ErrOperationInProgress = errors.New("operation already in progress")
	// ErrLaunchFailed is returned when a launch request did not produce a task.
	ErrLaunchFailed = errors.New("launch failed")
	// ErrPollTransport is returned when a status poll fails at the transport or HTTP level.
	ErrPollTransport = errors.New("poll transport failure")
	// ErrTaskNotFound is returned when the server does not know the task (unknown or expired).
	ErrTaskNotFound = errors.New("task not found")
	// ErrEmptyResponse is returned when a successful status response has no usable body.
	ErrEmptyResponse = errors.New("empty status response")
	// ErrTaskReportedFailure is returned when the server finished the task unsuccessfully.
	ErrTaskReportedFailure = errors.New("task reported failure")
)
