package storage

import (
	"errors"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// Common storage errors.
var (
	// ErrNotFound is returned when a project or record does not exist.
	ErrNotFound = errors.New("specification not found")

	// ErrInvalidProject is returned for empty project names or names that
	// would escape the storage root.
	ErrInvalidProject = errors.New("invalid project name")
)

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, jetstream.ErrKeyNotFound) || strings.Contains(err.Error(), "key not found")
}
