package backend

import "github.com/pkg/errors"

var (
	// ErrAuthorization is returned when a backend rejects the connection string or credentials.
	ErrAuthorization = errors.New("backend authorization failed")

	// ErrConfiguration is returned for unusable backend settings such as an invalid database name.
	ErrConfiguration = errors.New("invalid backend configuration")

	// ErrInvalidArgument is returned for missing identifiers and other caller mistakes.
	ErrInvalidArgument = errors.New("invalid argument")

	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("collection already exists")
)
