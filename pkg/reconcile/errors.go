// pkg/reconcile/errors.go
package reconcile

import (
	"errors"
	"fmt"

	"github.com/infinilabs/springboot-operator/pkg/compose"
	"github.com/infinilabs/springboot-operator/pkg/config"
)

// AdapterError reports a failed call into the workload or ingress adapter.
// Adapter failures are retried with bounded backoff before surfacing as the
// Error phase.
type AdapterError struct {
	// Op is the adapter operation that failed, e.g. "setEnv".
	Op string
	// Err is the underlying adapter failure.
	Err error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter operation %s failed: %v", e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// PreemptedError marks an in-flight apply batch that was superseded by a
// strictly newer revision. It is not a failure: the stale batch result is
// discarded and the newer desired state is applied next.
type PreemptedError struct {
	// Revision is the revision whose apply was abandoned.
	Revision string
}

func (e *PreemptedError) Error() string {
	return fmt.Sprintf("apply of revision %s superseded by a newer desired state", e.Revision)
}

// IsBlockingError reports whether an error maps to the Blocked phase:
// malformed configuration or missing relation data. Blocking errors are not
// retried; they resolve only when the input changes.
func IsBlockingError(err error) bool {
	var invalidJSON *config.InvalidJSONError
	var invalidPrefix *config.InvalidPrefixError
	var unavailable *compose.RelationUnavailableError
	return errors.As(err, &invalidJSON) || errors.As(err, &invalidPrefix) || errors.As(err, &unavailable)
}
