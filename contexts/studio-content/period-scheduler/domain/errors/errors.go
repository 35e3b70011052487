package errors

import "errors"

var (
	ErrInvalidInput       = errors.New("period scheduler input is invalid")
	ErrPeriodNotFound     = errors.New("voting period not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrInvalidTransition  = errors.New("submission status transition is not allowed")
	ErrAlreadyProcessed   = errors.New("voting period is already processed")
	ErrConflict           = errors.New("voting period conflicts with an existing row")
)
