// pkg/adapters/k8s/workload.go
// Package k8s backs the reconciliation adapters with a Kubernetes cluster.
// The workload is a Deployment plus ClusterIP Service, the routing rule an
// nginx Ingress. All writes go through Server-Side Apply or the resource
// reconciler so repeated applies of the same desired state are no-ops on the
// API server.
package k8s

import (
	"context"
	"fmt"

	"github.com/cisco-open/operator-tools/pkg/reconciler"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/infinilabs/springboot-operator/internal/controller/common/kubeutil"
	"github.com/infinilabs/springboot-operator/pkg/apis/common"
	builders "github.com/infinilabs/springboot-operator/pkg/builders/k8s"
)

// WorkloadSpec carries everything about the workload that is not part of the
// environment map: identity, image, launch command, server port and the
// suspend flag. The env map is owned by the reconciliation core and arrives
// through SetEnv.
type WorkloadSpec struct {
	Name       string
	Namespace  string
	Image      string
	Command    []string
	ServerPort int32
	Suspended  bool
}

// DeploymentAdapter implements reconcile.WorkloadAdapter on top of a
// Deployment and its fronting Service.
type DeploymentAdapter struct {
	client     client.Client
	scheme     *runtime.Scheme
	reconciler reconciler.ResourceReconciler
	spec       WorkloadSpec
	owner      client.Object
}

// NewDeploymentAdapter creates a workload adapter. owner, when non-nil,
// becomes the controller owner reference of every applied object so that
// garbage collection removes them with the owning resource.
func NewDeploymentAdapter(c client.Client, scheme *runtime.Scheme, spec WorkloadSpec, owner client.Object) *DeploymentAdapter {
	return &DeploymentAdapter{
		client:     c,
		scheme:     scheme,
		reconciler: reconciler.NewReconcilerWith(c),
		spec:       spec,
		owner:      owner,
	}
}

func (a *DeploymentAdapter) resourceName() string {
	return builders.DeriveResourceName(a.spec.Name)
}

// FetchEnv reads the literal environment of the application container from
// the live Deployment.
func (a *DeploymentAdapter) FetchEnv(ctx context.Context) (map[string]string, bool, error) {
	var deployment appsv1.Deployment
	key := client.ObjectKey{Namespace: a.spec.Namespace, Name: a.resourceName()}
	if err := a.client.Get(ctx, key, &deployment); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get deployment %s: %w", key.String(), err)
	}
	for _, container := range deployment.Spec.Template.Spec.Containers {
		if container.Name == builders.WorkloadContainerName {
			return builders.EnvVarsToMap(container.Env), true, nil
		}
	}
	// Deployment exists but the application container is missing: treat as
	// absent so the next apply rebuilds it.
	return nil, false, nil
}

// SetEnv applies the full desired workload: the Deployment carrying the env
// and the Service fronting it.
func (a *DeploymentAdapter) SetEnv(ctx context.Context, env map[string]string) error {
	name := a.resourceName()
	labels := builders.BuildCommonLabels(a.spec.Name)
	selector := builders.BuildSelectorLabels(a.spec.Name)

	container := builders.BuildAppContainer(a.spec.Image, a.spec.Command, env, a.spec.ServerPort)
	// Pods carry the full label set; the selector stays minimal because it is
	// immutable on the Deployment.
	pod := builders.BuildPodTemplateSpec(container, builders.MergeMaps(labels, selector))
	deployment := builders.BuildDeployment(
		builders.BuildObjectMeta(name, a.spec.Namespace, labels, nil),
		selector, pod, a.spec.Suspended,
	)
	if err := a.setOwner(deployment); err != nil {
		return err
	}
	if err := kubeutil.ApplyObject(ctx, a.client, deployment, common.OperatorName); err != nil {
		return err
	}

	service := builders.BuildService(
		builders.BuildObjectMeta(name, a.spec.Namespace, labels, nil),
		selector, a.spec.ServerPort,
	)
	if err := a.setOwner(service); err != nil {
		return err
	}
	if _, err := a.reconciler.ReconcileResource(service, reconciler.StatePresent); err != nil {
		return fmt.Errorf("failed to reconcile service %s/%s: %w", a.spec.Namespace, name, err)
	}
	return nil
}

func (a *DeploymentAdapter) setOwner(obj client.Object) error {
	if a.owner == nil {
		return nil
	}
	return setControllerRef(a.owner, obj, a.scheme)
}

func setControllerRef(owner, obj client.Object, scheme *runtime.Scheme) error {
	if err := ctrl.SetControllerReference(owner, obj, scheme); err != nil {
		return fmt.Errorf("failed to set owner reference on %s: %w", obj.GetName(), err)
	}
	return nil
}
