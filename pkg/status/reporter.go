// pkg/status/reporter.go
package status

import (
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/infinilabs/springboot-operator/pkg/reconcile"
)

// HealthPath is the Spring Boot actuator endpoint probed for liveness and
// readiness.
const HealthPath = "/actuator/health"

// Condition types published on the SpringBootApplication status.
const (
	ConditionReady      = "Ready"
	ConditionReconciled = "Reconciled"
)

// Reasons attached to the Ready condition, one per reconciliation phase.
const (
	ReasonAwaitingReconcile = "AwaitingFirstReconcile"
	ReasonApplyInProgress   = "ApplyInProgress"
	ReasonActive            = "ReconcileSucceeded"
	ReasonBlocked           = "ConfigurationBlocked"
	ReasonError             = "ReconcileFailed"
)

// ReadyCondition maps a reconciliation status onto the Ready condition. Only
// the Active phase makes the workload Ready; Blocked and Error are False with
// the blocking or failing message, Waiting and Applying are Unknown.
func ReadyCondition(s reconcile.Status, observedGeneration int64) metav1.Condition {
	cond := metav1.Condition{
		Type:               ConditionReady,
		ObservedGeneration: observedGeneration,
		Message:            s.Message,
	}
	switch s.Phase {
	case reconcile.PhaseActive:
		cond.Status = metav1.ConditionTrue
		cond.Reason = ReasonActive
	case reconcile.PhaseBlocked:
		cond.Status = metav1.ConditionFalse
		cond.Reason = ReasonBlocked
	case reconcile.PhaseError:
		cond.Status = metav1.ConditionFalse
		cond.Reason = ReasonError
	case reconcile.PhaseApplying:
		cond.Status = metav1.ConditionUnknown
		cond.Reason = ReasonApplyInProgress
	default:
		cond.Status = metav1.ConditionUnknown
		cond.Reason = ReasonAwaitingReconcile
	}
	return cond
}

// ReconciledCondition reports whether the recorded revision matches a fully
// applied batch. It is True as soon as any revision has been applied, even
// while a newer one is still in flight.
func ReconciledCondition(s reconcile.Status, observedGeneration int64) metav1.Condition {
	cond := metav1.Condition{
		Type:               ConditionReconciled,
		ObservedGeneration: observedGeneration,
	}
	if s.LastAppliedRevision != "" {
		cond.Status = metav1.ConditionTrue
		cond.Reason = ReasonActive
		cond.Message = fmt.Sprintf("Revision %s applied", s.LastAppliedRevision)
	} else {
		cond.Status = metav1.ConditionFalse
		cond.Reason = ReasonAwaitingReconcile
		cond.Message = "No revision applied yet"
	}
	return cond
}

// ConditionsEqual compares two condition sets ignoring order and
// LastTransitionTime, so a status update can be skipped when nothing the user
// sees has changed.
func ConditionsEqual(c1, c2 []metav1.Condition) bool {
	if len(c1) != len(c2) {
		return false
	}
	byType := make(map[string]metav1.Condition, len(c1))
	for _, c := range c1 {
		byType[c.Type] = c
	}
	for _, c := range c2 {
		existing, ok := byType[c.Type]
		if !ok ||
			existing.Status != c.Status ||
			existing.Reason != c.Reason ||
			existing.Message != c.Message ||
			existing.ObservedGeneration != c.ObservedGeneration {
			return false
		}
	}
	return true
}
