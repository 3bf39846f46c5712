// pkg/reconcile/loop.go
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/infinilabs/springboot-operator/pkg/compose"
	"github.com/infinilabs/springboot-operator/pkg/config"
)

// Loop serializes external triggers into a single consumer feeding the
// Reconciler. Triggers are coalesced latest-wins: a burst of triggers
// collapses into one pass over the newest input, and a trigger arriving while
// an apply batch is in flight preempts the batch when it composes to a
// strictly newer revision.
type Loop struct {
	reconciler *Reconciler
	mailbox    mailbox
	retryDelay time.Duration
	logger     logr.Logger
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	// Reconciler options are forwarded; the Superseded hook is owned by the
	// loop and must be left unset.
	Reconciler Options
	// RetryDelay is the delay before a failed pass is re-triggered.
	RetryDelay time.Duration
}

// NewLoop creates the reconciliation loop over the given adapters.
func NewLoop(workload WorkloadAdapter, ingressAdapter IngressAdapter, opts LoopOptions) *Loop {
	loop := &Loop{
		retryDelay: opts.RetryDelay,
		logger:     opts.Reconciler.Logger,
	}
	if loop.retryDelay <= 0 {
		loop.retryDelay = 10 * time.Second
	}
	reconcilerOpts := opts.Reconciler
	reconcilerOpts.Superseded = loop.newerPending
	loop.reconciler = New(workload, ingressAdapter, reconcilerOpts)
	return loop
}

// Enqueue submits a trigger. The newest trigger always wins: an unconsumed
// older trigger is replaced, never queued behind.
func (l *Loop) Enqueue(trigger Trigger) {
	l.mailbox.put(trigger)
}

// Status returns a copy of the current reconciliation status.
func (l *Loop) Status() Status {
	return l.reconciler.Status()
}

// Run consumes triggers until the context is cancelled. It never returns an
// error other than the context's: every reconciliation failure is converted
// into status and a scheduled retry.
func (l *Loop) Run(ctx context.Context) error {
	for {
		trigger, ok := l.mailbox.take(ctx)
		if !ok {
			return ctx.Err()
		}
		status, err := l.reconciler.Reconcile(ctx, trigger)

		var preempted *PreemptedError
		if errors.As(err, &preempted) {
			// Not a failure: the newer trigger is already in the mailbox.
			l.logger.V(1).Info("Pass preempted", "revision", preempted.Revision)
			continue
		}
		if err != nil {
			l.logger.V(1).Info("Pass failed, scheduling retry",
				"phase", status.Phase, "retryAfter", l.retryDelay.String())
			l.scheduleRetry(trigger)
		}
	}
}

// scheduleRetry re-submits the failed trigger after the retry delay, unless a
// newer trigger has arrived in the meantime.
func (l *Loop) scheduleRetry(trigger Trigger) {
	retry := trigger
	retry.Kind = TriggerPeriodic
	time.AfterFunc(l.retryDelay, func() {
		l.mailbox.putIfEmpty(retry)
	})
}

// newerPending reports whether the pending trigger, if any, composes to a
// revision different from the one currently being applied. Triggers that fail
// to normalize or compose cannot preempt: they will surface as Blocked on
// their own pass.
func (l *Loop) newerPending(revision string) bool {
	pending, ok := l.mailbox.peek()
	if !ok {
		return false
	}
	normalized, err := config.Normalize(pending.Raw)
	if err != nil {
		return false
	}
	desired, err := compose.Compose(normalized, pending.Facts)
	if err != nil {
		return false
	}
	return desired.Revision != revision
}

// mailbox is a single-slot, latest-wins trigger holder.
type mailbox struct {
	mu      sync.Mutex
	trigger *Trigger
	notify  chan struct{}
	once    sync.Once
}

func (m *mailbox) init() {
	m.once.Do(func() {
		m.notify = make(chan struct{}, 1)
	})
}

func (m *mailbox) put(trigger Trigger) {
	m.init()
	m.mu.Lock()
	m.trigger = &trigger
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// putIfEmpty stores the trigger only when no newer one is waiting. Used for
// retries so a stale trigger never clobbers fresher input.
func (m *mailbox) putIfEmpty(trigger Trigger) {
	m.init()
	m.mu.Lock()
	if m.trigger != nil {
		m.mu.Unlock()
		return
	}
	m.trigger = &trigger
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) take(ctx context.Context) (Trigger, bool) {
	m.init()
	for {
		m.mu.Lock()
		if m.trigger != nil {
			trigger := *m.trigger
			m.trigger = nil
			m.mu.Unlock()
			return trigger, true
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return Trigger{}, false
		case <-m.notify:
		}
	}
}

func (m *mailbox) peek() (Trigger, bool) {
	m.init()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trigger == nil {
		return Trigger{}, false
	}
	return *m.trigger, true
}
