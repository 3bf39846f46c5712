// pkg/reconcile/reconciler.go
// Package reconcile implements the reconciliation core: it observes
// configuration and relation inputs, computes the desired target state, and
// idempotently drives the live workload and ingress configuration toward it
// through narrow adapter interfaces.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/infinilabs/springboot-operator/pkg/compose"
	"github.com/infinilabs/springboot-operator/pkg/config"
)

// TriggerKind identifies what caused a reconciliation trigger.
type TriggerKind string

const (
	// TriggerConfigChanged fires when operator configuration changed.
	TriggerConfigChanged TriggerKind = "config-changed"
	// TriggerRelationChanged fires when relation-derived facts changed.
	TriggerRelationChanged TriggerKind = "relation-changed"
	// TriggerPeriodic fires on the periodic re-check schedule and on retry.
	TriggerPeriodic TriggerKind = "periodic"
)

// Trigger is one reconciliation request. RawConfig and RelationFacts are
// supplied fresh on every trigger; nothing is cached across triggers beyond
// the revision counter in Status.
type Trigger struct {
	Kind  TriggerKind
	Raw   config.RawConfig
	Facts compose.RelationFacts
}

// Options configures a Reconciler.
type Options struct {
	// Backoff overrides the adapter retry strategy.
	Backoff *BackoffStrategy
	// CallTimeout bounds each individual adapter call. A timed-out call is
	// treated as failed, never as success.
	CallTimeout time.Duration
	// Logger receives reconciliation logs.
	Logger logr.Logger
	// Superseded reports whether a strictly newer desired state than the given
	// revision is pending. Consulted between apply actions; when it returns
	// true the in-flight batch is abandoned with a PreemptedError.
	Superseded func(revision string) bool
	// LastAppliedRevision seeds the recorded revision, so a restarted process
	// can resume without re-applying an unchanged desired state.
	LastAppliedRevision string
}

// Reconciler executes reconciliation passes against a pair of adapters.
// Passes are serialized: no two run concurrently.
type Reconciler struct {
	workload    WorkloadAdapter
	ingress     IngressAdapter
	backoff     BackoffStrategy
	callTimeout time.Duration
	logger      logr.Logger
	superseded  func(revision string) bool

	passMu sync.Mutex // serializes passes

	mu          sync.Mutex // protects status and lastDesired
	status      Status
	lastDesired *compose.DesiredState
}

// New creates a Reconciler over the given adapters.
func New(workload WorkloadAdapter, ingressAdapter IngressAdapter, opts Options) *Reconciler {
	backoff := DefaultBackoff()
	if opts.Backoff != nil {
		backoff = *opts.Backoff
	}
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Reconciler{
		workload:    workload,
		ingress:     ingressAdapter,
		backoff:     backoff,
		callTimeout: callTimeout,
		logger:      opts.Logger,
		superseded:  opts.Superseded,
		status: Status{
			Phase:               PhaseWaiting,
			Message:             "Waiting for first reconciliation",
			LastAppliedRevision: opts.LastAppliedRevision,
		},
	}
}

// Status returns a copy of the current reconciliation status.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// LastDesired returns the most recently composed desired state, or nil. The
// previous snapshot is retained across fetch failures.
func (r *Reconciler) LastDesired() *compose.DesiredState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastDesired == nil {
		return nil
	}
	snapshot := *r.lastDesired
	return &snapshot
}

// Reconcile executes one full fetch-compose-diff-apply pass for the trigger.
// The returned error is non-nil only when the pass should be retried: adapter
// failures (phase Error) and preemption (*PreemptedError, discarded by the
// loop). Blocking conditions return a nil error with phase Blocked.
func (r *Reconciler) Reconcile(ctx context.Context, trigger Trigger) (Status, error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	logger := r.logger.WithValues("trigger", trigger.Kind)
	logger.V(1).Info("Starting reconciliation pass")

	// 1. Observe the live state. A fetch failure keeps the previous desired
	// state and surfaces as Error so the caller schedules a retry.
	actual, err := r.fetchActualState(ctx)
	if err != nil {
		logger.Error(err, "Failed to fetch actual state")
		r.setStatus(PhaseError, fmt.Sprintf("Failed to observe live state: %v", err))
		return r.Status(), err
	}

	// 2. Compute the desired state. Malformed configuration and missing
	// relation facts block without touching the live state.
	normalized, err := config.Normalize(trigger.Raw)
	if err != nil {
		logger.Info("Configuration rejected", "reason", err.Error())
		r.setStatus(PhaseBlocked, err.Error())
		return r.Status(), nil
	}
	desired, err := compose.Compose(normalized, trigger.Facts)
	if err != nil {
		if IsBlockingError(err) {
			logger.Info("Cannot compose desired state", "reason", err.Error())
			r.setStatus(PhaseBlocked, err.Error())
			return r.Status(), nil
		}
		r.setStatus(PhaseError, fmt.Sprintf("Failed to compose desired state: %v", err))
		return r.Status(), err
	}
	r.setLastDesired(desired)

	// 3. Idempotent short-circuit: nothing to do when the recorded revision
	// matches and the live state agrees.
	if r.Status().LastAppliedRevision == desired.Revision && actualMatches(actual, desired) {
		logger.V(1).Info("Desired state already applied", "revision", desired.Revision)
		r.setStatus(PhaseActive, activeMessage(desired.Revision))
		return r.Status(), nil
	}

	// 4. Apply the minimal action diff, one resource at a time.
	actions := r.diff(actual, desired)
	r.setStatus(PhaseApplying, fmt.Sprintf("Applying %d change(s) for revision %s", len(actions), shortRevision(desired.Revision)))

	for _, action := range actions {
		if r.isSuperseded(desired.Revision) {
			logger.V(1).Info("Apply superseded by newer desired state", "revision", desired.Revision)
			return r.Status(), &PreemptedError{Revision: desired.Revision}
		}
		if err := r.applyWithRetry(ctx, action, desired.Revision); err != nil {
			logger.Error(err, "Apply action failed", "action", action.name)
			r.setStatus(PhaseError, err.Error())
			return r.Status(), err
		}
		logger.V(1).Info("Apply action succeeded", "action", action.name)
	}

	// The batch is atomic from the perspective of recorded state: the
	// revision advances only after every action succeeded, and never to a
	// revision that has been superseded mid-flight.
	if r.isSuperseded(desired.Revision) {
		return r.Status(), &PreemptedError{Revision: desired.Revision}
	}
	r.recordApplied(desired.Revision)
	logger.Info("Reconciliation pass complete", "revision", desired.Revision, "actions", len(actions))
	return r.Status(), nil
}

type applyAction struct {
	name string
	run  func(ctx context.Context) error
}

// diff computes the minimal set of apply actions for this pass.
func (r *Reconciler) diff(actual ActualState, desired compose.DesiredState) []applyAction {
	var actions []applyAction
	if !actual.WorkloadPresent || !cmp.Equal(actual.Env, desired.Env, cmpopts.EquateEmpty()) {
		actions = append(actions, applyAction{
			name: "setEnv",
			run: func(ctx context.Context) error {
				return r.workload.SetEnv(ctx, desired.Env)
			},
		})
	}
	if !actual.RulePresent || !cmp.Equal(actual.RoutingRule, desired.RoutingRule) {
		actions = append(actions, applyAction{
			name: "setRoutingRule",
			run: func(ctx context.Context) error {
				return r.ingress.SetRoutingRule(ctx, desired.RoutingRule)
			},
		})
	}
	return actions
}

func (r *Reconciler) fetchActualState(ctx context.Context) (ActualState, error) {
	var actual ActualState

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	env, present, err := r.workload.FetchEnv(callCtx)
	if err != nil {
		return ActualState{}, &AdapterError{Op: "fetchEnv", Err: err}
	}
	actual.Env = env
	actual.WorkloadPresent = present

	ruleCtx, cancelRule := context.WithTimeout(ctx, r.callTimeout)
	defer cancelRule()
	rule, rulePresent, err := r.ingress.FetchRoutingRule(ruleCtx)
	if err != nil {
		return ActualState{}, &AdapterError{Op: "fetchRoutingRule", Err: err}
	}
	actual.RoutingRule = rule
	actual.RulePresent = rulePresent

	return actual, nil
}

func (r *Reconciler) applyWithRetry(ctx context.Context, action applyAction, revision string) error {
	_, err := r.backoff.Retry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
		return action.run(callCtx)
	}, func(error) bool {
		// Retry any adapter failure until the attempt ceiling, unless the
		// pass itself has been cancelled or superseded.
		return ctx.Err() == nil && !r.isSuperseded(revision)
	})
	if err != nil {
		return &AdapterError{Op: action.name, Err: err}
	}
	return nil
}

func (r *Reconciler) isSuperseded(revision string) bool {
	if r.superseded == nil {
		return false
	}
	return r.superseded(revision)
}

func (r *Reconciler) setStatus(phase Phase, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Phase = phase
	r.status.Message = message
}

func (r *Reconciler) recordApplied(revision string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Phase = PhaseActive
	r.status.Message = activeMessage(revision)
	r.status.LastAppliedRevision = revision
}

func (r *Reconciler) setLastDesired(desired compose.DesiredState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastDesired = &desired
}

func actualMatches(actual ActualState, desired compose.DesiredState) bool {
	return actual.WorkloadPresent && actual.RulePresent &&
		cmp.Equal(actual.Env, desired.Env, cmpopts.EquateEmpty()) &&
		cmp.Equal(actual.RoutingRule, desired.RoutingRule)
}

func activeMessage(revision string) string {
	return fmt.Sprintf("Workload and ingress match desired state (revision %s)", shortRevision(revision))
}

func shortRevision(revision string) string {
	if len(revision) > 12 {
		return revision[:12]
	}
	return revision
}
