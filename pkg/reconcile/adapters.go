// pkg/reconcile/adapters.go
package reconcile

import (
	"context"

	"github.com/infinilabs/springboot-operator/pkg/ingress"
)

// ActualState is the observed state of the live workload and ingress rule,
// fetched at the start of each pass and discarded after.
type ActualState struct {
	// Env is the workload's current process environment. Nil when the
	// workload has not been created yet.
	Env map[string]string
	// WorkloadPresent reports whether the workload exists at all.
	WorkloadPresent bool
	// RoutingRule is the currently submitted ingress rule. Zero when absent.
	RoutingRule ingress.RoutingRule
	// RulePresent reports whether any routing rule has been submitted.
	RulePresent bool
}

// WorkloadAdapter is the narrow capability interface over the container
// runtime. Implementations may block; every call receives a context with a
// bounded timeout and must honor cancellation where the runtime supports it.
type WorkloadAdapter interface {
	// FetchEnv returns the workload's current environment and whether the
	// workload exists.
	FetchEnv(ctx context.Context) (env map[string]string, present bool, err error)
	// SetEnv drives the workload's environment to exactly the given mapping.
	SetEnv(ctx context.Context, env map[string]string) error
}

// IngressAdapter is the narrow capability interface over the ingress
// controller.
type IngressAdapter interface {
	// FetchRoutingRule returns the currently submitted rule and whether one
	// exists.
	FetchRoutingRule(ctx context.Context) (rule ingress.RoutingRule, present bool, err error)
	// SetRoutingRule submits the routing rule to the ingress controller.
	SetRoutingRule(ctx context.Context, rule ingress.RoutingRule) error
}
