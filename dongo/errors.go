package dongo

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect reports an unusable connection configuration, such as
	// a replica host list without a replica set name.
	ErrConnect = errors.New("dongo: invalid connection configuration")

	// ErrCollection reports a collection declared without a name, or
	// without a database when the client has no default.
	ErrCollection = errors.New("dongo: collection misconfigured")

	// ErrResult reports a result-shape violation: zero or duplicate
	// documents where exactly one was required, or an identity-
	// dependent operation on an entity that was never persisted.
	ErrResult = errors.New("dongo: result error")

	// ErrNotFound is the ErrResult raised by the *_or_die lookups.
	ErrNotFound = fmt.Errorf("%w: no matching document", ErrResult)

	// ErrNoIdentity is the ErrResult raised when an entity has neither
	// a primary nor a secondary identifier.
	ErrNoIdentity = fmt.Errorf("%w: entity was never inserted and has no identifier", ErrResult)

	// ErrDeref reports a malformed, empty, cross-collection or
	// unregistered reference.
	ErrDeref = errors.New("dongo: bad reference")
)
