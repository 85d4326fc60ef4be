// Package catalog implements the coffee catalog service: CRUD over the
// Coffee aggregate, find-or-create reconciliation of flavour names and
// the transactional recommend mutation.  Persistence is abstracted
// behind the Store interface so that the SQL repository and the
// in-memory store satisfy the same contract.
package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel matched by errors.Is for any missing
// coffee.  Concrete errors are *NotFoundError values carrying the id;
// handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("coffee not found")

// ErrFlavourNotFound is returned by Store.FindFlavourByName when no
// flavour row matches the given name.  Inside the service this is a
// normal outcome: the flavour is constructed fresh and persisted with
// the owning coffee.
var ErrFlavourNotFound = errors.New("flavour not found")

// NotFoundError reports that no coffee exists for the requested id.
// The message format is part of the service contract and is exposed
// verbatim to API clients.
type NotFoundError struct {
	ID uint64 // the id that was looked up
}

// Error renders the canonical not-found message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Coffee %d not found", e.ID)
}

// Is makes errors.Is(err, ErrNotFound) match *NotFoundError values.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
