// pkg/builders/k8s/ingress.go
package k8s

import (
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/infinilabs/springboot-operator/pkg/ingress"
)

// Annotations understood by the nginx ingress controller.
const (
	nginxRewriteTargetAnnotation = "nginx.ingress.kubernetes.io/rewrite-target"
	nginxUseRegexAnnotation      = "nginx.ingress.kubernetes.io/use-regex"
)

// BuildIngress renders a RoutingRule as a networkingv1.Ingress. A rule with
// rewriting enabled uses a regex path plus nginx rewrite annotations so that
// prefix stripping happens at the ingress controller; paths outside the
// prefix are not matched and fall through to the controller's default
// backend.
func BuildIngress(
	ingressMeta metav1.ObjectMeta,
	rule ingress.RoutingRule,
	ingressClassName string,
) *networkingv1.Ingress {
	pathType := networkingv1.PathTypePrefix
	if rule.RewriteEnabled {
		pathType = networkingv1.PathTypeImplementationSpecific
		if ingressMeta.Annotations == nil {
			ingressMeta.Annotations = make(map[string]string)
		}
		ingressMeta.Annotations[nginxRewriteTargetAnnotation] = rule.RewriteTarget
		ingressMeta.Annotations[nginxUseRegexAnnotation] = "true"
	}

	obj := &networkingv1.Ingress{
		TypeMeta:   metav1.TypeMeta{APIVersion: networkingv1.SchemeGroupVersion.String(), Kind: "Ingress"},
		ObjectMeta: ingressMeta,
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{
				{
					Host: rule.Host,
					IngressRuleValue: networkingv1.IngressRuleValue{
						HTTP: &networkingv1.HTTPIngressRuleValue{
							Paths: []networkingv1.HTTPIngressPath{
								{
									Path:     rule.PathPattern,
									PathType: &pathType,
									Backend: networkingv1.IngressBackend{
										Service: &networkingv1.IngressServiceBackend{
											Name: rule.ServiceName,
											Port: networkingv1.ServiceBackendPort{
												Number: rule.ServicePort,
											},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
	if ingressClassName != "" {
		obj.Spec.IngressClassName = &ingressClassName
	}
	return obj
}
