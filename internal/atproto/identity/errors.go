package identity

import "fmt"

// ErrNotFound is returned when a handle or DID does not resolve to an
// existing identity. The query service maps it to a 404.
type ErrNotFound struct {
	Identifier string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("identity not found: %s", e.Identifier)
}

// ErrInvalidIdentifier is returned for input that is neither a valid
// handle nor a valid DID.
type ErrInvalidIdentifier struct {
	Identifier string
	Reason     string
}

func (e *ErrInvalidIdentifier) Error() string {
	return fmt.Sprintf("invalid identifier %q: %s", e.Identifier, e.Reason)
}
