package services

import "errors"

var (
	ErrValidation   = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrPersistence  = errors.New("persistence failed")
)
