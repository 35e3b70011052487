package errors

import "errors"

var (
	ErrInvalidInput   = errors.New("production pipeline input is invalid")
	ErrUnknownKind    = errors.New("unknown production work kind")
	ErrWorkNotFound   = errors.New("produced work not found")
	ErrSeriesNotFound = errors.New("series not found")
	ErrConflict       = errors.New("produced work conflicts with an existing row")
)
