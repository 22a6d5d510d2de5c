package domain

import "errors"

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	ErrUploadFailed        = errors.New("upload failed")
	ErrPollFailed          = errors.New("batch status polling failed")
	ErrConsolidationFailed = errors.New("consolidation failed")
	ErrSuperseded          = errors.New("batch superseded")

	ErrSessionExpired  = errors.New("session expired")
	ErrMissingToken    = errors.New("invalid token")
	ErrHandshakeFailed = errors.New("access validation failed")
)
