// pkg/builders/k8s/deployment.go
package k8s

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/infinilabs/springboot-operator/pkg/status"
)

// WorkloadContainerName is the name of the application container inside the
// managed Deployment.
const WorkloadContainerName = "spring-boot"

// BuildAppContainer builds the application container spec. The env map is
// rendered as a sorted EnvVar list, and both health probes target the Spring
// Boot actuator endpoint on the server port.
func BuildAppContainer(image string, command []string, env map[string]string, serverPort int32) corev1.Container {
	actuator := &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			HTTPGet: &corev1.HTTPGetAction{
				Path: status.HealthPath,
				Port: intstr.FromInt32(serverPort),
			},
		},
	}
	liveness := BuildProbe(actuator)
	readiness := BuildProbe(actuator)
	// Give a slow-starting JVM up to 5 minutes before liveness kicks in.
	startup := BuildProbe(actuator)
	startup.FailureThreshold = 30

	return corev1.Container{
		Name:    WorkloadContainerName,
		Image:   image,
		Command: command,
		Ports: []corev1.ContainerPort{
			{Name: "http", ContainerPort: serverPort, Protocol: corev1.ProtocolTCP},
		},
		Env:            BuildEnvVars(env),
		LivenessProbe:  liveness,
		ReadinessProbe: readiness,
		StartupProbe:   startup,
	}
}

// BuildPodTemplateSpec assembles the pod template around the application
// container.
func BuildPodTemplateSpec(container corev1.Container, podLabels map[string]string) corev1.PodTemplateSpec {
	return corev1.PodTemplateSpec{
		ObjectMeta: metav1.ObjectMeta{
			Labels: podLabels,
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{container},
		},
	}
}

// BuildDeployment builds the appsv1.Deployment for the managed workload. A
// suspended workload keeps its Deployment but is scaled to zero replicas.
func BuildDeployment(
	deployMeta metav1.ObjectMeta,
	selectorLabels map[string]string,
	podTemplateSpec corev1.PodTemplateSpec,
	suspended bool,
) *appsv1.Deployment {
	replicas := int32(1)
	if suspended {
		replicas = 0
	}
	return &appsv1.Deployment{
		TypeMeta:   metav1.TypeMeta{APIVersion: appsv1.SchemeGroupVersion.String(), Kind: "Deployment"},
		ObjectMeta: deployMeta,
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: selectorLabels},
			Template: podTemplateSpec,
		},
	}
}
