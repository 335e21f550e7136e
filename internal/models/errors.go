package models

import "errors"

// ErrInvalidArgument is returned when input violates a stated precondition.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrNotFound is returned when an article does not exist.
var ErrNotFound = errors.New("article not found")
