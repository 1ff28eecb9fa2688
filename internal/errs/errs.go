package errs

import "errors"

var (
	ErrProblemNotFound         = errors.New("problem not found")
	ErrInvalidTransition       = errors.New("invalid portal transition")
	ErrEmptySolution           = errors.New("solution body is empty")
	ErrInvalidFilter           = errors.New("invalid filter")
	ErrInvalidID               = errors.New("invalid record id")
	ErrNotAccepted             = errors.New("collaborator did not accept the request")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)
