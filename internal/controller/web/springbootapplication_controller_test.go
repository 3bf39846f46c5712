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

package web

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	webv1 "github.com/infinilabs/springboot-operator/api/web/v1"
	builders "github.com/infinilabs/springboot-operator/pkg/builders/k8s"
	"github.com/infinilabs/springboot-operator/pkg/status"
)

// memoryInspector fakes an image filesystem for launch command detection.
type memoryInspector struct {
	files map[string]bool
	dirs  map[string][]string
}

func (m memoryInspector) Exists(path string) bool {
	if m.files[path] {
		return true
	}
	_, ok := m.dirs[path]
	return ok
}

func (m memoryInspector) IsDir(path string) bool {
	_, ok := m.dirs[path]
	return ok
}

func (m memoryInspector) ListFiles(dir string) []string {
	return m.dirs[dir]
}

var _ = Describe("SpringBootApplication Controller", func() {
	const (
		appName   = "shop"
		namespace = "default"
	)

	ctx := context.Background()
	appKey := types.NamespacedName{Name: appName, Namespace: namespace}
	objectKey := types.NamespacedName{Name: builders.DeriveResourceName(appName), Namespace: namespace}

	var (
		k8sClient  client.Client
		reconciler *SpringBootApplicationReconciler
	)

	newApp := func(mutate func(*webv1.SpringBootApplication)) *webv1.SpringBootApplication {
		app := &webv1.SpringBootApplication{
			ObjectMeta: metav1.ObjectMeta{
				Name:      appName,
				Namespace: namespace,
			},
			Spec: webv1.SpringBootApplicationSpec{
				Image:         "ghcr.io/acme/shop:1.2.0",
				LaunchCommand: []string{"java", "-jar", "/app/shop.jar"},
			},
		}
		if mutate != nil {
			mutate(app)
		}
		return app
	}

	setup := func(app *webv1.SpringBootApplication) {
		k8sClient = newFakeClient(app)
		reconciler = &SpringBootApplicationReconciler{
			Client:   k8sClient,
			Scheme:   scheme,
			Recorder: record.NewFakeRecorder(20),
		}
	}

	reconcileOnce := func() ctrl.Result {
		GinkgoHelper()
		result, err := reconciler.Reconcile(ctx, ctrl.Request{NamespacedName: appKey})
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	getApp := func() *webv1.SpringBootApplication {
		GinkgoHelper()
		app := &webv1.SpringBootApplication{}
		Expect(k8sClient.Get(ctx, appKey, app)).To(Succeed())
		return app
	}

	getDeployment := func() *appsv1.Deployment {
		GinkgoHelper()
		deployment := &appsv1.Deployment{}
		Expect(k8sClient.Get(ctx, objectKey, deployment)).To(Succeed())
		return deployment
	}

	markDeploymentAvailable := func() {
		GinkgoHelper()
		deployment := getDeployment()
		replicas := int32(1)
		if deployment.Spec.Replicas != nil {
			replicas = *deployment.Spec.Replicas
		}
		deployment.Status = appsv1.DeploymentStatus{
			ObservedGeneration: deployment.Generation,
			Replicas:           replicas,
			UpdatedReplicas:    replicas,
			ReadyReplicas:      replicas,
			AvailableReplicas:  replicas,
			Conditions: []appsv1.DeploymentCondition{
				{Type: appsv1.DeploymentAvailable, Status: corev1.ConditionTrue},
			},
		}
		Expect(k8sClient.Status().Update(ctx, deployment)).To(Succeed())
	}

	markNetworkReady := func() {
		GinkgoHelper()
		endpoints := &corev1.Endpoints{
			ObjectMeta: metav1.ObjectMeta{Name: objectKey.Name, Namespace: objectKey.Namespace},
			Subsets: []corev1.EndpointSubset{
				{Addresses: []corev1.EndpointAddress{{IP: "10.0.0.5"}}},
			},
		}
		Expect(k8sClient.Create(ctx, endpoints)).To(Succeed())

		ing := &networkingv1.Ingress{}
		Expect(k8sClient.Get(ctx, objectKey, ing)).To(Succeed())
		ing.Status.LoadBalancer.Ingress = []networkingv1.IngressLoadBalancerIngress{{IP: "192.0.2.10"}}
		Expect(k8sClient.Update(ctx, ing)).To(Succeed())
	}

	Context("when reconciling a new application", func() {
		It("creates the workload, service and ingress", func() {
			setup(newApp(func(app *webv1.SpringBootApplication) {
				app.Spec.ApplicationConfig = `{"server": {"port": 9090}}`
				app.Spec.JVMConfig = "-Xmx512m"
			}))

			result := reconcileOnce()
			Expect(result.RequeueAfter).To(Equal(notReadyRequeueInterval))

			By("creating the deployment with the configured command and environment")
			deployment := getDeployment()
			Expect(deployment.OwnerReferences).NotTo(BeEmpty())
			Expect(*deployment.Spec.Replicas).To(Equal(int32(1)))
			container := deployment.Spec.Template.Spec.Containers[0]
			Expect(container.Image).To(Equal("ghcr.io/acme/shop:1.2.0"))
			Expect(container.Command).To(Equal([]string{"java", "-jar", "/app/shop.jar"}))
			Expect(container.Env).To(ContainElement(corev1.EnvVar{
				Name:  "SPRING_APPLICATION_JSON",
				Value: `{"server":{"port":9090}}`,
			}))
			Expect(container.Env).To(ContainElement(corev1.EnvVar{
				Name:  "JAVA_TOOL_OPTIONS",
				Value: "-Xmx512m",
			}))
			Expect(container.Ports[0].ContainerPort).To(Equal(int32(9090)))

			By("creating the service on the configured port")
			service := &corev1.Service{}
			Expect(k8sClient.Get(ctx, objectKey, service)).To(Succeed())
			Expect(service.Spec.Ports[0].Port).To(Equal(int32(9090)))

			By("creating the ingress with the derived default hostname")
			ingress := &networkingv1.Ingress{}
			Expect(k8sClient.Get(ctx, objectKey, ingress)).To(Succeed())
			Expect(ingress.Spec.Rules[0].Host).To(Equal("shop.default"))

			By("reporting an applied revision while the rollout is in progress")
			app := getApp()
			Expect(app.Status.Phase).To(Equal("Active"))
			Expect(app.Status.LastAppliedRevision).NotTo(BeEmpty())
			Expect(app.Status.ObservedGeneration).To(Equal(app.Generation))
			ready := meta.FindStatusCondition(app.Status.Conditions, status.ConditionReady)
			Expect(ready).NotTo(BeNil())
			Expect(ready.Status).To(Equal(metav1.ConditionFalse))
			Expect(ready.Reason).To(Equal("WorkloadNotReady"))
			reconciled := meta.FindStatusCondition(app.Status.Conditions, status.ConditionReconciled)
			Expect(reconciled).NotTo(BeNil())
			Expect(reconciled.Status).To(Equal(metav1.ConditionTrue))
		})

		It("stays unready until the service has endpoints", func() {
			setup(newApp(nil))
			reconcileOnce()
			markDeploymentAvailable()

			result := reconcileOnce()
			Expect(result.RequeueAfter).To(Equal(notReadyRequeueInterval))

			app := getApp()
			ready := meta.FindStatusCondition(app.Status.Conditions, status.ConditionReady)
			Expect(ready).NotTo(BeNil())
			Expect(ready.Status).To(Equal(metav1.ConditionFalse))
			Expect(ready.Message).To(ContainSubstring("endpoints"))
		})

		It("becomes ready once the deployment, endpoints and ingress are up", func() {
			setup(newApp(nil))
			reconcileOnce()
			markDeploymentAvailable()
			markNetworkReady()

			result := reconcileOnce()
			Expect(result.RequeueAfter).To(BeZero())

			app := getApp()
			ready := meta.FindStatusCondition(app.Status.Conditions, status.ConditionReady)
			Expect(ready).NotTo(BeNil())
			Expect(ready.Status).To(Equal(metav1.ConditionTrue))
			Expect(ready.Reason).To(Equal(status.ReasonActive))
		})

		It("uses the configured ingress hostname override", func() {
			setup(newApp(func(app *webv1.SpringBootApplication) {
				app.Spec.IngressHostname = "shop.example.com"
			}))
			reconcileOnce()

			ingress := &networkingv1.Ingress{}
			Expect(k8sClient.Get(ctx, objectKey, ingress)).To(Succeed())
			Expect(ingress.Spec.Rules[0].Host).To(Equal("shop.example.com"))
		})
	})

	Context("when the configuration is invalid", func() {
		It("blocks without creating managed objects", func() {
			setup(newApp(func(app *webv1.SpringBootApplication) {
				app.Spec.ApplicationConfig = `{"server": `
			}))

			result := reconcileOnce()
			Expect(result.RequeueAfter).To(BeZero())

			app := getApp()
			Expect(app.Status.Phase).To(Equal("Blocked"))
			Expect(app.Status.Message).To(ContainSubstring("invalid applicationConfig"))
			Expect(app.Status.LastAppliedRevision).To(BeEmpty())
			ready := meta.FindStatusCondition(app.Status.Conditions, status.ConditionReady)
			Expect(ready).NotTo(BeNil())
			Expect(ready.Reason).To(Equal(status.ReasonBlocked))

			err := k8sClient.Get(ctx, objectKey, &appsv1.Deployment{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
		})

		It("recovers after the configuration is fixed", func() {
			setup(newApp(func(app *webv1.SpringBootApplication) {
				app.Spec.ApplicationConfig = `{"server": `
			}))
			reconcileOnce()

			app := getApp()
			app.Spec.ApplicationConfig = `{"server": {"port": 8081}}`
			Expect(k8sClient.Update(ctx, app)).To(Succeed())
			reconcileOnce()

			app = getApp()
			Expect(app.Status.Phase).To(Equal("Active"))
			Expect(app.Status.LastAppliedRevision).NotTo(BeEmpty())
		})
	})

	Context("when the application is suspended", func() {
		It("scales the deployment to zero and back", func() {
			setup(newApp(nil))
			reconcileOnce()
			markDeploymentAvailable()
			reconcileOnce()

			By("scaling down on suspend")
			app := getApp()
			appliedRevision := app.Status.LastAppliedRevision
			app.Spec.Suspend = true
			Expect(k8sClient.Update(ctx, app)).To(Succeed())
			reconcileOnce()

			Expect(*getDeployment().Spec.Replicas).To(Equal(int32(0)))
			app = getApp()
			Expect(app.Status.Phase).To(Equal("Active"))
			Expect(app.Status.LastAppliedRevision).To(Equal(appliedRevision))

			By("scaling back up on resume")
			app.Spec.Suspend = false
			Expect(k8sClient.Update(ctx, app)).To(Succeed())
			reconcileOnce()

			Expect(*getDeployment().Spec.Replicas).To(Equal(int32(1)))
		})
	})

	Context("when the launch command is detected from the image", func() {
		It("runs the detected executable jar", func() {
			setup(newApp(func(app *webv1.SpringBootApplication) {
				app.Spec.LaunchCommand = nil
			}))
			reconciler.Inspector = memoryInspector{
				dirs: map[string][]string{"/app": {"shop-1.2.0.jar", "README.md"}},
			}
			reconcileOnce()

			container := getDeployment().Spec.Template.Spec.Containers[0]
			Expect(container.Command).To(Equal([]string{"java", "-jar", "/app/shop-1.2.0.jar"}))
		})

		It("blocks when the image layout is not recognized", func() {
			setup(newApp(func(app *webv1.SpringBootApplication) {
				app.Spec.LaunchCommand = nil
			}))
			reconciler.Inspector = memoryInspector{}
			reconcileOnce()

			app := getApp()
			Expect(app.Status.Phase).To(Equal("Blocked"))
			Expect(app.Status.Message).To(ContainSubstring("cannot determine Java application type"))

			err := k8sClient.Get(ctx, objectKey, &appsv1.Deployment{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
		})
	})

	Context("when the resource is gone", func() {
		It("ignores the request", func() {
			k8sClient = newFakeClient()
			reconciler = &SpringBootApplicationReconciler{Client: k8sClient, Scheme: scheme}

			result, err := reconciler.Reconcile(ctx, ctrl.Request{NamespacedName: appKey})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(ctrl.Result{}))
		})
	})
})
