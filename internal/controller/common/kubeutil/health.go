// internal/controller/common/kubeutil/health.go
package kubeutil

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"

	"k8s.io/apimachinery/pkg/api/errors"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// CheckDeploymentHealth reports whether the Deployment has rolled out
// completely: the controller has observed the latest generation and every
// desired replica is updated, available and ready.
func CheckDeploymentHealth(deployment *appsv1.Deployment) (bool, string) {
	if deployment.Status.ObservedGeneration < deployment.Generation {
		return false, "Waiting for rollout to be observed by Deployment controller"
	}

	desiredReplicas := int32(1)
	if deployment.Spec.Replicas != nil {
		desiredReplicas = *deployment.Spec.Replicas
	}

	available := false
	for _, cond := range deployment.Status.Conditions {
		if cond.Type == appsv1.DeploymentAvailable && cond.Status == corev1.ConditionTrue {
			available = true
		}
	}

	// A suspended workload with zero replicas is healthy as soon as the
	// rollout of the scale-down has been observed.
	if desiredReplicas == 0 {
		if deployment.Status.Replicas == 0 {
			return true, "Deployment is suspended (0 replicas)"
		}
		return false, fmt.Sprintf("Scaling down: %d replicas remaining", deployment.Status.Replicas)
	}

	switch {
	case !available:
		return false, fmt.Sprintf("Deployment not available: %d/%d available replicas", deployment.Status.AvailableReplicas, desiredReplicas)
	case deployment.Status.UpdatedReplicas < desiredReplicas:
		return false, fmt.Sprintf("Waiting for rollout: %d/%d updated replicas", deployment.Status.UpdatedReplicas, desiredReplicas)
	case deployment.Status.ReadyReplicas < desiredReplicas:
		return false, fmt.Sprintf("Waiting for readiness: %d/%d ready replicas", deployment.Status.ReadyReplicas, desiredReplicas)
	}
	return true, fmt.Sprintf("Deployment is ready (%d/%d replicas ready)", deployment.Status.ReadyReplicas, desiredReplicas)
}

// CheckServiceHealth reports whether the Service has at least one ready
// endpoint behind it.
func CheckServiceHealth(ctx context.Context, k8sClient client.Client, svc *corev1.Service) (bool, string, error) {
	logger := log.FromContext(ctx).WithValues("service", svc.Name, "namespace", svc.Namespace)

	endpoints := &corev1.Endpoints{}
	key := client.ObjectKey{Namespace: svc.Namespace, Name: svc.Name}
	if err := k8sClient.Get(ctx, key, endpoints); err != nil {
		if errors.IsNotFound(err) {
			return false, "Service endpoints not found", nil
		}
		logger.Error(err, "Failed to get Endpoints for Service health check")
		return false, fmt.Sprintf("Failed to get Endpoints: %v", err), err
	}

	readyCount := 0
	totalCount := 0
	for _, subset := range endpoints.Subsets {
		readyCount += len(subset.Addresses)
		totalCount += len(subset.Addresses) + len(subset.NotReadyAddresses)
	}
	if readyCount == 0 {
		return false, fmt.Sprintf("No ready endpoints found for Service (%d/%d ready/total)", readyCount, totalCount), nil
	}
	return true, fmt.Sprintf("Service has ready endpoints (%d/%d ready/total)", readyCount, totalCount), nil
}

// CheckIngressHealth reports whether the ingress controller has admitted the
// Ingress and assigned a load balancer address or hostname.
func CheckIngressHealth(ing *networkingv1.Ingress) (bool, string) {
	if len(ing.Status.LoadBalancer.Ingress) == 0 {
		return false, "Ingress LoadBalancer status is empty"
	}
	return true, "Ingress LoadBalancer status assigned"
}
