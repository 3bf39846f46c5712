// Copyright (C) INFINI Labs & INFINI LIMITED.
//
// The INFINI Spring Boot Operator is offered under the GNU Affero General Public License v3.0
// and as commercial software.
//
// For commercial licensing, contact us at:
//   - Website: infinilabs.com
//   - Email: hello@infini.ltd
//
// Open Source licensed under AGPL V3:
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// internal/controller/web/springbootapplication_controller.go
package web

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	webv1 "github.com/infinilabs/springboot-operator/api/web/v1"
	"github.com/infinilabs/springboot-operator/internal/controller/common/kubeutil"
	adapters "github.com/infinilabs/springboot-operator/pkg/adapters/k8s"
	"github.com/infinilabs/springboot-operator/pkg/apis/common"
	builders "github.com/infinilabs/springboot-operator/pkg/builders/k8s"
	"github.com/infinilabs/springboot-operator/pkg/compose"
	"github.com/infinilabs/springboot-operator/pkg/config"
	"github.com/infinilabs/springboot-operator/pkg/javaapp"
	"github.com/infinilabs/springboot-operator/pkg/reconcile"
	"github.com/infinilabs/springboot-operator/pkg/status"
	"github.com/infinilabs/springboot-operator/pkg/statushook"
)

const (
	// notReadyRequeueInterval drives re-checks while the workload rolls out.
	notReadyRequeueInterval = 15 * time.Second
	// conflictRequeueInterval retries status update conflicts quickly.
	conflictRequeueInterval = 5 * time.Second
)

// SpringBootApplicationReconciler reconciles SpringBootApplication objects.
type SpringBootApplicationReconciler struct {
	client.Client
	Scheme   *runtime.Scheme
	Recorder record.EventRecorder

	// Inspector, when set, detects the Java application flavour inside the
	// image so the launch command can be derived. When nil and no explicit
	// launchCommand is configured, the image entrypoint is kept.
	Inspector javaapp.ImageInspector

	// Backoff overrides the adapter retry strategy of the reconciliation
	// core. Nil uses the default.
	Backoff *reconcile.BackoffStrategy
}

//+kubebuilder:rbac:groups=web.infini.cloud,resources=springbootapplications,verbs=get;list;watch;create;update;patch;delete
//+kubebuilder:rbac:groups=web.infini.cloud,resources=springbootapplications/status,verbs=get;update;patch
//+kubebuilder:rbac:groups=web.infini.cloud,resources=springbootapplications/finalizers,verbs=update
//+kubebuilder:rbac:groups=apps,resources=deployments,verbs=get;list;watch;create;update;patch;delete
//+kubebuilder:rbac:groups="",resources=services,verbs=get;list;watch;create;update;patch;delete
//+kubebuilder:rbac:groups=networking.k8s.io,resources=ingresses,verbs=get;list;watch;create;update;patch;delete
//+kubebuilder:rbac:groups="",resources=events,verbs=create;patch
//+kubebuilder:rbac:groups="",resources=endpoints,verbs=get;list;watch

func (r *SpringBootApplicationReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx).WithValues("springbootapplication", req.NamespacedName)
	startTime := time.Now()

	app := &webv1.SpringBootApplication{}
	if err := r.Get(ctx, req.NamespacedName, app); err != nil {
		if client.IgnoreNotFound(err) != nil {
			logger.Error(err, "Failed to get SpringBootApplication")
			return ctrl.Result{}, err
		}
		logger.V(1).Info("SpringBootApplication resource not found, assuming deleted")
		return ctrl.Result{}, nil
	}
	if !app.DeletionTimestamp.IsZero() {
		// Managed objects carry owner references; garbage collection removes
		// them with the owning resource.
		logger.V(1).Info("SpringBootApplication is being deleted, nothing to do")
		return ctrl.Result{}, nil
	}
	originalStatus := app.Status.DeepCopy()

	command, detectErr := r.launchCommand(app)
	if detectErr != nil {
		return r.handleBlocked(ctx, app, originalStatus, detectErr.Error())
	}

	raw := config.RawConfig{
		ApplicationConfigJSON: app.Spec.ApplicationConfig,
		JVMConfig:             app.Spec.JVMConfig,
		IngressHostname:       app.Spec.IngressHostname,
		IngressStripURLPrefix: app.Spec.IngressStripURLPrefix,
	}

	// The core pass normalizes again; this pre-pass only extracts the server
	// port the adapters need. An invalid config falls back to the default
	// port and surfaces as Blocked from the core pass.
	serverPort := int32(common.DefaultServerPort)
	if normalized, err := config.Normalize(raw); err == nil {
		serverPort = normalized.ServerPort()
	}

	workload := adapters.NewDeploymentAdapter(r.Client, r.Scheme, adapters.WorkloadSpec{
		Name:       app.Name,
		Namespace:  app.Namespace,
		Image:      app.Spec.Image,
		Command:    command,
		ServerPort: serverPort,
		Suspended:  app.Spec.Suspend,
	}, app)
	ingressAdapter := adapters.NewIngressAdapter(r.Client, r.Scheme, app.Name, app.Namespace, app.Spec.IngressClassName, app)

	engine := reconcile.New(workload, ingressAdapter, reconcile.Options{
		Backoff:             r.Backoff,
		Logger:              logger,
		LastAppliedRevision: app.Status.LastAppliedRevision,
	})
	result, passErr := engine.Reconcile(ctx, reconcile.Trigger{
		Kind: reconcile.TriggerConfigChanged,
		Raw:  raw,
		Facts: compose.RelationFacts{
			DefaultHostname: fmt.Sprintf("%s.%s", app.Name, app.Namespace),
			ServiceName:     builders.DeriveResourceName(app.Name),
		},
	})
	if passErr != nil {
		logger.Error(passErr, "Reconciliation pass failed", "phase", result.Phase)
	}

	// A suspend toggle alone does not change the desired revision; reconcile
	// the replica count separately so the workload scales without an env
	// apply.
	if passErr == nil && result.Phase == reconcile.PhaseActive {
		if err := r.reconcileSuspend(ctx, app); err != nil {
			logger.Error(err, "Failed to reconcile suspend state")
			passErr = err
		}
	}

	workloadReady, healthMessage := r.workloadHealth(ctx, app, result)

	// Events report the revision the pass was driving toward, which differs
	// from the applied one while a pass is failing.
	targetRevision := result.LastAppliedRevision
	if desired := engine.LastDesired(); desired != nil {
		targetRevision = desired.Revision
	}

	r.updateAppStatus(app, result, workloadReady, healthMessage)
	r.emitPhaseEvent(app, originalStatus.Phase, result, targetRevision)

	updated, statusErr := r.updateStatusIfNeeded(ctx, app, originalStatus)
	if statusErr != nil {
		if apierrors.IsConflict(statusErr) {
			logger.V(1).Info("Status update conflict, requeuing")
			return ctrl.Result{RequeueAfter: conflictRequeueInterval}, nil
		}
		return ctrl.Result{}, statusErr
	}

	logger.V(1).Info("Reconciliation finished",
		"duration", time.Since(startTime).String(),
		"phase", app.Status.Phase,
		"statusUpdated", updated,
	)

	if passErr != nil {
		// Controller-runtime applies backoff to the returned error.
		return ctrl.Result{}, passErr
	}
	if result.Phase == reconcile.PhaseActive && !workloadReady {
		return ctrl.Result{RequeueAfter: notReadyRequeueInterval}, nil
	}
	// Blocked waits for a spec change; Active with a ready workload waits
	// for watches to fire.
	return ctrl.Result{}, nil
}

// launchCommand resolves the container launch command. An explicit
// spec.launchCommand wins; otherwise the image is inspected when an
// inspector is available. A detection failure is a blocking condition, not a
// retryable error.
func (r *SpringBootApplicationReconciler) launchCommand(app *webv1.SpringBootApplication) ([]string, *javaapp.DetectionError) {
	if len(app.Spec.LaunchCommand) > 0 {
		return app.Spec.LaunchCommand, nil
	}
	if r.Inspector == nil {
		return nil, nil
	}
	application, err := javaapp.Detect(r.Inspector)
	if err != nil {
		if detectErr, ok := err.(*javaapp.DetectionError); ok {
			return nil, detectErr
		}
		return nil, &javaapp.DetectionError{Reason: err.Error()}
	}
	return application.Command(), nil
}

// reconcileSuspend aligns the Deployment replica count with spec.suspend.
func (r *SpringBootApplicationReconciler) reconcileSuspend(ctx context.Context, app *webv1.SpringBootApplication) error {
	logger := log.FromContext(ctx)

	deployment := &appsv1.Deployment{}
	key := client.ObjectKey{Namespace: app.Namespace, Name: builders.DeriveResourceName(app.Name)}
	if err := r.Get(ctx, key, deployment); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to get deployment for suspend check: %w", err)
	}

	desired := int32(1)
	if app.Spec.Suspend {
		desired = 0
	}
	if deployment.Spec.Replicas != nil && *deployment.Spec.Replicas == desired {
		return nil
	}

	deployment.Spec.Replicas = &desired
	if err := r.Update(ctx, deployment); err != nil {
		return fmt.Errorf("failed to scale deployment to %d replicas: %w", desired, err)
	}
	if app.Spec.Suspend {
		logger.Info("Suspended workload", "deployment", key.Name)
	} else {
		logger.Info("Resumed workload", "deployment", key.Name, "replicas", desired)
	}
	return nil
}

// workloadHealth checks the managed objects once the desired state has been
// applied: Deployment rollout, Service endpoints and ingress admission. A
// suspended workload is healthy as soon as the scale-down completed, without
// endpoints.
func (r *SpringBootApplicationReconciler) workloadHealth(ctx context.Context, app *webv1.SpringBootApplication, result reconcile.Status) (bool, string) {
	if result.Phase != reconcile.PhaseActive {
		return false, result.Message
	}
	key := client.ObjectKey{Namespace: app.Namespace, Name: builders.DeriveResourceName(app.Name)}

	deployment := &appsv1.Deployment{}
	if err := r.Get(ctx, key, deployment); err != nil {
		return false, fmt.Sprintf("Failed to get deployment: %v", err)
	}
	healthy, message := kubeutil.CheckDeploymentHealth(deployment)
	if !healthy || app.Spec.Suspend {
		return healthy, message
	}

	service := &corev1.Service{}
	if err := r.Get(ctx, key, service); err != nil {
		return false, fmt.Sprintf("Failed to get service: %v", err)
	}
	if healthy, message, err := kubeutil.CheckServiceHealth(ctx, r.Client, service); err != nil || !healthy {
		return false, message
	}

	ing := &networkingv1.Ingress{}
	if err := r.Get(ctx, key, ing); err != nil {
		return false, fmt.Sprintf("Failed to get ingress: %v", err)
	}
	if healthy, message := kubeutil.CheckIngressHealth(ing); !healthy {
		return false, message
	}
	return true, message
}

// updateAppStatus projects the core reconciliation status onto the CRD
// status.
func (r *SpringBootApplicationReconciler) updateAppStatus(app *webv1.SpringBootApplication, result reconcile.Status, workloadReady bool, healthMessage string) {
	app.Status.Phase = string(result.Phase)
	app.Status.Message = result.Message
	app.Status.LastAppliedRevision = result.LastAppliedRevision

	readyCondition := status.ReadyCondition(result, app.Generation)
	if result.Phase == reconcile.PhaseActive && !workloadReady {
		readyCondition.Status = metav1.ConditionFalse
		readyCondition.Reason = "WorkloadNotReady"
		readyCondition.Message = healthMessage
		app.Status.Message = healthMessage
	}
	meta.SetStatusCondition(&app.Status.Conditions, readyCondition)
	meta.SetStatusCondition(&app.Status.Conditions, status.ReconciledCondition(result, app.Generation))
}

// emitPhaseEvent records an event when the phase transitions, with the
// annotations the status hook forwards.
func (r *SpringBootApplicationReconciler) emitPhaseEvent(app *webv1.SpringBootApplication, previousPhase string, result reconcile.Status, targetRevision string) {
	if r.Recorder == nil || previousPhase == app.Status.Phase {
		return
	}

	eventtype := corev1.EventTypeNormal
	hookStatus := statushook.StatusInProgress
	reason := "PhaseChanged"
	switch result.Phase {
	case reconcile.PhaseActive:
		hookStatus = statushook.StatusSuccess
		reason = string(status.ReasonActive)
	case reconcile.PhaseBlocked:
		eventtype = corev1.EventTypeWarning
		hookStatus = statushook.StatusFailure
		reason = string(status.ReasonBlocked)
	case reconcile.PhaseError:
		eventtype = corev1.EventTypeWarning
		hookStatus = statushook.StatusFailure
		reason = string(status.ReasonError)
	}

	annotations := map[string]string{
		statushook.PhaseKey:    app.Status.Phase,
		statushook.RevisionKey: targetRevision,
		statushook.StatusKey:   hookStatus,
	}
	r.Recorder.AnnotatedEventf(app, annotations, eventtype, reason, "%s", app.Status.Message)
}

// handleBlocked short-circuits the pass for a blocking condition detected
// before the core was invoked.
func (r *SpringBootApplicationReconciler) handleBlocked(ctx context.Context, app *webv1.SpringBootApplication, originalStatus *webv1.SpringBootApplicationStatus, message string) (ctrl.Result, error) {
	result := reconcile.Status{
		Phase:               reconcile.PhaseBlocked,
		Message:             message,
		LastAppliedRevision: app.Status.LastAppliedRevision,
	}
	r.updateAppStatus(app, result, false, message)
	r.emitPhaseEvent(app, originalStatus.Phase, result, result.LastAppliedRevision)
	if _, err := r.updateStatusIfNeeded(ctx, app, originalStatus); err != nil {
		if apierrors.IsConflict(err) {
			return ctrl.Result{RequeueAfter: conflictRequeueInterval}, nil
		}
		return ctrl.Result{}, err
	}
	return ctrl.Result{}, nil
}

// updateStatusIfNeeded compares current and original status and updates if
// necessary.
func (r *SpringBootApplicationReconciler) updateStatusIfNeeded(ctx context.Context, app *webv1.SpringBootApplication, originalStatus *webv1.SpringBootApplicationStatus) (bool, error) {
	logger := log.FromContext(ctx)
	app.Status.ObservedGeneration = app.Generation

	if app.Status.Phase == originalStatus.Phase &&
		app.Status.Message == originalStatus.Message &&
		app.Status.LastAppliedRevision == originalStatus.LastAppliedRevision &&
		app.Status.ObservedGeneration == originalStatus.ObservedGeneration &&
		status.ConditionsEqual(app.Status.Conditions, originalStatus.Conditions) {
		logger.V(1).Info("Status unchanged, skipping update")
		return false, nil
	}

	if err := r.Status().Update(ctx, app); err != nil {
		if apierrors.IsConflict(err) {
			return false, err
		}
		logger.Error(err, "Failed to update SpringBootApplication status")
		return false, err
	}
	return true, nil
}

// SetupWithManager sets up the controller with the Manager.
func (r *SpringBootApplicationReconciler) SetupWithManager(mgr ctrl.Manager) error {
	if r.Recorder == nil {
		r.Recorder = mgr.GetEventRecorderFor("springbootapplication-controller")
	}
	return ctrl.NewControllerManagedBy(mgr).
		For(&webv1.SpringBootApplication{}).
		Owns(&appsv1.Deployment{}).
		Owns(&corev1.Service{}).
		Owns(&networkingv1.Ingress{}).
		Complete(r)
}
