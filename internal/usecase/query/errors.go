package query

import "errors"

var (
	// ErrInvalidTopK is returned when a retrieval is asked for fewer than one node.
	ErrInvalidTopK = errors.New("top-k must be greater than zero")
	// ErrEmptyQuery is returned when the query text is blank.
	ErrEmptyQuery = errors.New("query must not be empty")
)
