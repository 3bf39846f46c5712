// pkg/builders/k8s/service.go
package k8s

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// BuildService builds the ClusterIP service fronting the workload. The
// service port and the container port are the same: the Spring Boot server
// port.
func BuildService(
	serviceMeta metav1.ObjectMeta,
	selectorLabels map[string]string,
	serverPort int32,
) *corev1.Service {
	return &corev1.Service{
		TypeMeta:   metav1.TypeMeta{APIVersion: corev1.SchemeGroupVersion.String(), Kind: "Service"},
		ObjectMeta: serviceMeta,
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: selectorLabels,
			Ports: []corev1.ServicePort{
				{
					Name:       "http",
					Port:       serverPort,
					TargetPort: intstr.FromInt32(serverPort),
					Protocol:   corev1.ProtocolTCP,
				},
			},
		},
	}
}
