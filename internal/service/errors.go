package service

import "errors"

var (
	ErrVideoNotFound = errors.New("video not found")
	// ErrBusy means the retry budget for a contended update ran out. The
	// caller may safely retry the whole request.
	ErrBusy = errors.New("video is busy, try again")
	// ErrValidation wraps every input problem detected before any I/O.
	ErrValidation = errors.New("invalid input")
)
