package status

import (
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/infinilabs/springboot-operator/pkg/reconcile"
)

func TestReadyCondition(t *testing.T) {
	tests := []struct {
		name       string
		status     reconcile.Status
		wantStatus metav1.ConditionStatus
		wantReason string
	}{
		{
			name:       "active",
			status:     reconcile.Status{Phase: reconcile.PhaseActive, Message: "ok"},
			wantStatus: metav1.ConditionTrue,
			wantReason: ReasonActive,
		},
		{
			name:       "blocked",
			status:     reconcile.Status{Phase: reconcile.PhaseBlocked, Message: "invalid applicationConfig"},
			wantStatus: metav1.ConditionFalse,
			wantReason: ReasonBlocked,
		},
		{
			name:       "error",
			status:     reconcile.Status{Phase: reconcile.PhaseError, Message: "apply failed"},
			wantStatus: metav1.ConditionFalse,
			wantReason: ReasonError,
		},
		{
			name:       "applying",
			status:     reconcile.Status{Phase: reconcile.PhaseApplying},
			wantStatus: metav1.ConditionUnknown,
			wantReason: ReasonApplyInProgress,
		},
		{
			name:       "waiting",
			status:     reconcile.Status{Phase: reconcile.PhaseWaiting},
			wantStatus: metav1.ConditionUnknown,
			wantReason: ReasonAwaitingReconcile,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := ReadyCondition(tt.status, 3)
			if cond.Type != ConditionReady {
				t.Errorf("Type = %s, want %s", cond.Type, ConditionReady)
			}
			if cond.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", cond.Status, tt.wantStatus)
			}
			if cond.Reason != tt.wantReason {
				t.Errorf("Reason = %s, want %s", cond.Reason, tt.wantReason)
			}
			if cond.Message != tt.status.Message {
				t.Errorf("Message = %q, want %q", cond.Message, tt.status.Message)
			}
			if cond.ObservedGeneration != 3 {
				t.Errorf("ObservedGeneration = %d, want 3", cond.ObservedGeneration)
			}
		})
	}
}

func TestReconciledCondition(t *testing.T) {
	applied := ReconciledCondition(reconcile.Status{LastAppliedRevision: "abc123"}, 1)
	if applied.Status != metav1.ConditionTrue {
		t.Errorf("Status = %s, want True when a revision is recorded", applied.Status)
	}
	pending := ReconciledCondition(reconcile.Status{}, 1)
	if pending.Status != metav1.ConditionFalse {
		t.Errorf("Status = %s, want False before first apply", pending.Status)
	}
}

func TestConditionsEqual(t *testing.T) {
	ready := metav1.Condition{Type: ConditionReady, Status: metav1.ConditionTrue, Reason: ReasonActive, Message: "ok"}
	reconciled := metav1.Condition{Type: ConditionReconciled, Status: metav1.ConditionTrue, Reason: ReasonActive}

	tests := []struct {
		name string
		a, b []metav1.Condition
		want bool
	}{
		{
			name: "order ignored",
			a:    []metav1.Condition{ready, reconciled},
			b:    []metav1.Condition{reconciled, ready},
			want: true,
		},
		{
			name: "transition time ignored",
			a:    []metav1.Condition{ready},
			b: []metav1.Condition{func() metav1.Condition {
				c := ready
				c.LastTransitionTime = metav1.Now()
				return c
			}()},
			want: true,
		},
		{
			name: "message change detected",
			a:    []metav1.Condition{ready},
			b: []metav1.Condition{func() metav1.Condition {
				c := ready
				c.Message = "different"
				return c
			}()},
			want: false,
		},
		{
			name: "length mismatch",
			a:    []metav1.Condition{ready, reconciled},
			b:    []metav1.Condition{ready},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConditionsEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("ConditionsEqual() = %t, want %t", got, tt.want)
			}
		})
	}
}
