// pkg/reconcile/status.go
package reconcile

// Phase represents the current state of the reconciliation loop.
type Phase string

const (
	// PhaseWaiting indicates no valid desired state has been computed yet.
	PhaseWaiting Phase = "Waiting"
	// PhaseApplying indicates apply actions are in flight.
	PhaseApplying Phase = "Applying"
	// PhaseActive indicates the observed state matches the desired state.
	PhaseActive Phase = "Active"
	// PhaseBlocked indicates a precondition (malformed configuration, missing
	// relation data) prevents composing a desired state. Cleared by a trigger
	// with corrected input.
	PhaseBlocked Phase = "Blocked"
	// PhaseError indicates an apply action failed after exhausting retries.
	// Cleared by the next trigger.
	PhaseError Phase = "Error"
)

// Status is the durable record of the last reconciliation outcome. It is
// owned exclusively by the Reconciler and mutated only inside the serialized
// loop; everything else reads copies.
type Status struct {
	// Phase is the current reconciliation phase.
	Phase Phase
	// Message is a human-readable explanation of the phase.
	Message string
	// LastAppliedRevision is the revision of the last desired state whose
	// apply batch completed in full. It only advances when every action in a
	// batch succeeded.
	LastAppliedRevision string
}
