// Package sentinel holds the storage-level facts stores report. Services
// translate them into domain errors; validation failures never use them.
package sentinel

import "errors"

var (
	// ErrNotFound means the row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness constraint rejected the write.
	ErrConflict = errors.New("conflict")
	// ErrInvariant means persisted data breaks a structural rule, such as two
	// active snapshots for one city.
	ErrInvariant = errors.New("invariant violated")
)
