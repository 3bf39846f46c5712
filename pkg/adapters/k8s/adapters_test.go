package k8s

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	builders "github.com/infinilabs/springboot-operator/pkg/builders/k8s"
	"github.com/infinilabs/springboot-operator/pkg/ingress"
)

var _ = Describe("DeploymentAdapter", func() {
	var (
		ctx       context.Context
		k8sClient client.Client
		adapter   *DeploymentAdapter
	)

	BeforeEach(func() {
		ctx = context.Background()
		k8sClient = newFakeClient()
		adapter = NewDeploymentAdapter(k8sClient, scheme, WorkloadSpec{
			Name:       "demo-app",
			Namespace:  "default",
			Image:      "registry.example.com/demo:1.0",
			Command:    []string{"java", "-jar", "/app.jar"},
			ServerPort: 8080,
		}, nil)
	})

	It("reports absence before the first apply", func() {
		env, present, err := adapter.FetchEnv(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(present).To(BeFalse())
		Expect(env).To(BeNil())
	})

	It("applies the deployment and service, and reads the env back", func() {
		desiredEnv := map[string]string{
			"SPRING_APPLICATION_JSON": `{"server.port":8080}`,
			"JAVA_TOOL_OPTIONS":       "-Xmx512m",
		}
		Expect(adapter.SetEnv(ctx, desiredEnv)).To(Succeed())

		env, present, err := adapter.FetchEnv(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(present).To(BeTrue())
		Expect(env).To(Equal(desiredEnv))

		deployment := &appsv1.Deployment{}
		key := client.ObjectKey{Namespace: "default", Name: "demo-app"}
		Expect(k8sClient.Get(ctx, key, deployment)).To(Succeed())
		Expect(*deployment.Spec.Replicas).To(Equal(int32(1)))
		container := deployment.Spec.Template.Spec.Containers[0]
		Expect(container.Name).To(Equal(builders.WorkloadContainerName))
		Expect(container.Image).To(Equal("registry.example.com/demo:1.0"))
		Expect(container.Command).To(Equal([]string{"java", "-jar", "/app.jar"}))
		Expect(container.ReadinessProbe.HTTPGet.Path).To(Equal("/actuator/health"))
		podLabels := deployment.Spec.Template.Labels
		Expect(podLabels).To(HaveKeyWithValue("app.kubernetes.io/managed-by", "springboot-operator"))
		Expect(podLabels).To(HaveKeyWithValue("app.kubernetes.io/instance", "demo-app"))

		service := &corev1.Service{}
		Expect(k8sClient.Get(ctx, key, service)).To(Succeed())
		Expect(service.Spec.Ports).To(HaveLen(1))
		Expect(service.Spec.Ports[0].Port).To(Equal(int32(8080)))
	})

	It("overwrites drifted env on re-apply", func() {
		Expect(adapter.SetEnv(ctx, map[string]string{"SPRING_APPLICATION_JSON": "{}"})).To(Succeed())
		Expect(adapter.SetEnv(ctx, map[string]string{"SPRING_APPLICATION_JSON": `{"a":1}`})).To(Succeed())

		env, present, err := adapter.FetchEnv(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(present).To(BeTrue())
		Expect(env).To(HaveKeyWithValue("SPRING_APPLICATION_JSON", `{"a":1}`))
		Expect(env).NotTo(HaveKey("JAVA_TOOL_OPTIONS"))
	})

	It("scales a suspended workload to zero replicas", func() {
		adapter = NewDeploymentAdapter(k8sClient, scheme, WorkloadSpec{
			Name:       "demo-app",
			Namespace:  "default",
			Image:      "registry.example.com/demo:1.0",
			ServerPort: 8080,
			Suspended:  true,
		}, nil)
		Expect(adapter.SetEnv(ctx, map[string]string{"SPRING_APPLICATION_JSON": "{}"})).To(Succeed())

		deployment := &appsv1.Deployment{}
		key := client.ObjectKey{Namespace: "default", Name: "demo-app"}
		Expect(k8sClient.Get(ctx, key, deployment)).To(Succeed())
		Expect(*deployment.Spec.Replicas).To(Equal(int32(0)))
	})
})

var _ = Describe("IngressAdapter", func() {
	var (
		ctx       context.Context
		k8sClient client.Client
		adapter   *IngressAdapter
	)

	BeforeEach(func() {
		ctx = context.Background()
		k8sClient = newFakeClient()
		adapter = NewIngressAdapter(k8sClient, scheme, "demo-app", "default", "", nil)
	})

	It("reports absence before the first apply", func() {
		_, present, err := adapter.FetchRoutingRule(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(present).To(BeFalse())
	})

	It("round-trips a rewriting rule", func() {
		rule := ingress.Synthesize("demo.example.com", "/shop", "demo-app", 8080)
		Expect(adapter.SetRoutingRule(ctx, rule)).To(Succeed())

		got, present, err := adapter.FetchRoutingRule(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(present).To(BeTrue())
		Expect(got).To(Equal(rule))

		obj := &networkingv1.Ingress{}
		key := client.ObjectKey{Namespace: "default", Name: "demo-app"}
		Expect(k8sClient.Get(ctx, key, obj)).To(Succeed())
		Expect(obj.Annotations).To(HaveKeyWithValue("nginx.ingress.kubernetes.io/rewrite-target", "/$2"))
		Expect(*obj.Spec.IngressClassName).To(Equal(DefaultIngressClass))
	})

	It("round-trips a pass-through rule", func() {
		rule := ingress.Synthesize("demo.example.com", "", "demo-app", 8080)
		Expect(adapter.SetRoutingRule(ctx, rule)).To(Succeed())

		got, present, err := adapter.FetchRoutingRule(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(present).To(BeTrue())
		Expect(got).To(Equal(rule))

		obj := &networkingv1.Ingress{}
		key := client.ObjectKey{Namespace: "default", Name: "demo-app"}
		Expect(k8sClient.Get(ctx, key, obj)).To(Succeed())
		Expect(obj.Annotations).NotTo(HaveKey("nginx.ingress.kubernetes.io/rewrite-target"))
	})

	It("replaces a rule when the host changes", func() {
		Expect(adapter.SetRoutingRule(ctx, ingress.Synthesize("old.example.com", "", "demo-app", 8080))).To(Succeed())
		newRule := ingress.Synthesize("new.example.com", "/v2", "demo-app", 8080)
		Expect(adapter.SetRoutingRule(ctx, newRule)).To(Succeed())

		got, present, err := adapter.FetchRoutingRule(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(present).To(BeTrue())
		Expect(got).To(Equal(newRule))
	})

	It("reports a foreign ingress shape as absent", func() {
		foreign := &networkingv1.Ingress{}
		foreign.Name = "demo-app"
		foreign.Namespace = "default"
		Expect(k8sClient.Create(ctx, foreign)).To(Succeed())

		_, present, err := adapter.FetchRoutingRule(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(present).To(BeFalse())
	})
})
