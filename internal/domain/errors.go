package domain

import "github.com/pkg/errors"

// ErrInvalidArgument marks synchronous validation failures. Callers check it
// with errors.Is; no state is mutated when it is returned.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrNotFound is returned by repositories when no record exists for an id.
var ErrNotFound = errors.New("not found")
