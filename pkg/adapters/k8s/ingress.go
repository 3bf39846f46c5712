// pkg/adapters/k8s/ingress.go
package k8s

import (
	"context"
	"fmt"
	"strings"

	"github.com/cisco-open/operator-tools/pkg/reconciler"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	builders "github.com/infinilabs/springboot-operator/pkg/builders/k8s"
	"github.com/infinilabs/springboot-operator/pkg/ingress"
)

const rewriteTargetAnnotation = "nginx.ingress.kubernetes.io/rewrite-target"

// DefaultIngressClass is used when no ingress class is configured.
const DefaultIngressClass = "nginx"

// IngressAdapter implements reconcile.IngressAdapter on top of a
// networkingv1.Ingress managed through the resource reconciler.
type IngressAdapter struct {
	client     client.Client
	scheme     *runtime.Scheme
	reconciler reconciler.ResourceReconciler
	name       string
	namespace  string
	className  string
	owner      client.Object
}

// NewIngressAdapter creates an ingress adapter writing to the named Ingress
// object. An empty className falls back to DefaultIngressClass.
func NewIngressAdapter(c client.Client, scheme *runtime.Scheme, name, namespace, className string, owner client.Object) *IngressAdapter {
	if className == "" {
		className = DefaultIngressClass
	}
	return &IngressAdapter{
		client:     c,
		scheme:     scheme,
		reconciler: reconciler.NewReconcilerWith(c),
		name:       builders.DeriveResourceName(name),
		namespace:  namespace,
		className:  className,
		owner:      owner,
	}
}

// FetchRoutingRule reads the live Ingress back into a RoutingRule.
func (a *IngressAdapter) FetchRoutingRule(ctx context.Context) (ingress.RoutingRule, bool, error) {
	var obj networkingv1.Ingress
	key := client.ObjectKey{Namespace: a.namespace, Name: a.name}
	if err := a.client.Get(ctx, key, &obj); err != nil {
		if apierrors.IsNotFound(err) {
			return ingress.RoutingRule{}, false, nil
		}
		return ingress.RoutingRule{}, false, fmt.Errorf("failed to get ingress %s: %w", key.String(), err)
	}
	rule, ok := ruleFromIngress(&obj)
	return rule, ok, nil
}

// SetRoutingRule applies the routing rule as an Ingress object.
func (a *IngressAdapter) SetRoutingRule(ctx context.Context, rule ingress.RoutingRule) error {
	labels := builders.BuildCommonLabels(rule.ServiceName)
	obj := builders.BuildIngress(
		builders.BuildObjectMeta(a.name, a.namespace, labels, nil),
		rule, a.className,
	)
	if a.owner != nil {
		if err := setControllerRef(a.owner, obj, a.scheme); err != nil {
			return err
		}
	}
	if _, err := a.reconciler.ReconcileResource(obj, reconciler.StatePresent); err != nil {
		return fmt.Errorf("failed to reconcile ingress %s/%s: %w", a.namespace, a.name, err)
	}
	return nil
}

// ruleFromIngress inverts the ingress builder. An object whose shape this
// operator would never produce reports not-ok, which makes the reconciler
// re-apply the desired rule.
func ruleFromIngress(obj *networkingv1.Ingress) (ingress.RoutingRule, bool) {
	if len(obj.Spec.Rules) != 1 {
		return ingress.RoutingRule{}, false
	}
	k8sRule := obj.Spec.Rules[0]
	if k8sRule.HTTP == nil || len(k8sRule.HTTP.Paths) != 1 {
		return ingress.RoutingRule{}, false
	}
	path := k8sRule.HTTP.Paths[0]
	if path.Backend.Service == nil {
		return ingress.RoutingRule{}, false
	}

	rule := ingress.RoutingRule{
		Host:        k8sRule.Host,
		PathPattern: path.Path,
		PathPrefix:  path.Path,
		ServiceName: path.Backend.Service.Name,
		ServicePort: path.Backend.Service.Port.Number,
	}
	if target, ok := obj.Annotations[rewriteTargetAnnotation]; ok {
		rule.RewriteEnabled = true
		rule.RewriteTarget = target
		rule.PathPrefix = strings.TrimSuffix(path.Path, "(/|$)(.*)")
	}
	return rule, true
}
