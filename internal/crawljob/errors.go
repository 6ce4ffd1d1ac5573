package crawljob

import "errors"

var (
	// ErrEmptyQuery is returned when a job is submitted without a query.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrJobNotFound is returned for unknown or deleted job ids.
	ErrJobNotFound = errors.New("job not found")
)
