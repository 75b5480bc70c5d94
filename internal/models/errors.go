package models

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidService  = errors.New("invalid service")
	ErrInvalidFeedback = errors.New("invalid feedback")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrNoKeys          = errors.New("no API keys provided")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidEntry    = errors.New("entry is not a model answer")
)
