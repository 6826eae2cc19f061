package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates the request carries no logged-in user.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbiddenRole indicates the user's role may not use the endpoint.
	ErrForbiddenRole = errors.New("role not permitted")
)
