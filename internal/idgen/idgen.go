// Package idgen generates opaque identifiers for values that must be
// unique without coordination, such as a runtime instance's id (process
// symbolic names are "mpi-process-<pid>" and PIDs are dense and
// allocated by the process registry, not by this package).
package idgen

import "github.com/google/uuid"

// New returns a fresh random identifier, suitable for disambiguating
// node instances in tests that spin up more than one runtime in the
// same process.
func New() string {
	return uuid.NewString()
}
