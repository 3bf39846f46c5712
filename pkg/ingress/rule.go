// pkg/ingress/rule.go
// Package ingress synthesizes the routing-rule descriptor handed to the
// ingress layer. The rewrite semantics are expressed declaratively, in the
// form the nginx ingress controller understands, so the workload never has to
// rewrite paths at runtime.
package ingress

import (
	"fmt"
	"strings"
)

// RoutingRule describes a single ingress routing rule for the workload.
type RoutingRule struct {
	// Host is the hostname the rule matches.
	Host string
	// PathPrefix is the URL prefix this rule routes, "/" when no stripping is
	// configured.
	PathPrefix string
	// PathPattern is the declarative path expression submitted to the ingress
	// controller. With stripping enabled it captures the remainder of the path
	// after the prefix: "<prefix>(/|$)(.*)".
	PathPattern string
	// RewriteTarget is the rewrite expression applied by the ingress
	// controller, "/$2" when stripping is enabled, empty otherwise.
	RewriteTarget string
	// RewriteEnabled indicates whether the ingress controller should rewrite
	// matched paths at all.
	RewriteEnabled bool
	// ServiceName is the backend service the rule forwards to.
	ServiceName string
	// ServicePort is the backend service port.
	ServicePort int32
}

// Synthesize translates (host, stripPrefix) into a RoutingRule.
//
// With stripPrefix empty the rule routes "/" and passes requests through
// unmodified. With stripPrefix = S, the rule routes exactly the paths S and
// S + "/" + rest; S and S + "/" are rewritten to "/", S + "/" + rest is
// rewritten to "/" + rest. Paths outside the prefix are not routed by this
// rule at all.
func Synthesize(host, stripPrefix, serviceName string, servicePort int32) RoutingRule {
	rule := RoutingRule{
		Host:        host,
		PathPrefix:  "/",
		ServiceName: serviceName,
		ServicePort: servicePort,
	}
	if stripPrefix == "" {
		rule.PathPattern = "/"
		return rule
	}
	rule.PathPrefix = stripPrefix
	rule.PathPattern = fmt.Sprintf("%s(/|$)(.*)", stripPrefix)
	rule.RewriteTarget = "/$2"
	rule.RewriteEnabled = true
	return rule
}

// Rewrite applies the rule's rewrite law to a request path. It returns the
// rewritten path and whether the path is matched by the rule. This helper
// states the law the declarative rule encodes; it is not on the serving path.
func Rewrite(rule RoutingRule, path string) (string, bool) {
	if !rule.RewriteEnabled {
		return path, strings.HasPrefix(path, rule.PathPrefix)
	}
	prefix := rule.PathPrefix
	switch {
	case path == prefix, path == prefix+"/":
		return "/", true
	case strings.HasPrefix(path, prefix+"/"):
		rest := strings.TrimPrefix(path, prefix+"/")
		return "/" + rest, true
	default:
		return "", false
	}
}
