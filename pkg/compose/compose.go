// pkg/compose/compose.go
// Package compose computes the immutable desired-state snapshot from
// normalized configuration and relation-derived facts.
package compose

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/infinilabs/springboot-operator/pkg/apis/common"
	"github.com/infinilabs/springboot-operator/pkg/config"
	"github.com/infinilabs/springboot-operator/pkg/ingress"
)

// RelationFacts carries discovery data supplied by relations rather than by
// configuration. All fields are recomputed fresh on every trigger.
type RelationFacts struct {
	// DefaultHostname is the hostname derived from the workload's own
	// identity, used when no hostname override is configured.
	DefaultHostname string
	// ServiceName is the backend service the ingress rule forwards to.
	ServiceName string
	// IngressEndpoint is the address of the ingress controller endpoint, when
	// discovered. Informational; the routing rule does not embed it.
	IngressEndpoint string
}

// DesiredState is the target the reconciler drives the workload and ingress
// toward. It is immutable once computed: a new trigger produces a new
// snapshot, never a mutation of an old one.
type DesiredState struct {
	// Env holds the workload process environment variables.
	Env map[string]string
	// RoutingRule is the ingress routing descriptor.
	RoutingRule ingress.RoutingRule
	// Revision is a deterministic fingerprint of (Env, RoutingRule). Identical
	// inputs always produce identical revisions.
	Revision string
}

// RelationUnavailableError reports that a required discovery fact is missing.
// The reconciler maps it to the Blocked phase; it resolves itself when the
// relation data updates.
type RelationUnavailableError struct {
	Fact string
}

func (e *RelationUnavailableError) Error() string {
	return fmt.Sprintf("required relation fact %q is not available yet", e.Fact)
}

// Compose computes a DesiredState from normalized configuration and relation
// facts. The hostname override is authoritative; the discovered default is
// purely a fallback.
func Compose(normalized config.NormalizedConfig, facts RelationFacts) (DesiredState, error) {
	host := normalized.HostnameOverride
	if host == "" {
		host = facts.DefaultHostname
	}
	if host == "" {
		return DesiredState{}, &RelationUnavailableError{Fact: "default hostname"}
	}
	if facts.ServiceName == "" {
		return DesiredState{}, &RelationUnavailableError{Fact: "service name"}
	}

	appJSON, err := normalized.SerializeAppProperties()
	if err != nil {
		return DesiredState{}, err
	}

	env := map[string]string{
		common.SpringApplicationJSONEnv: appJSON,
	}
	if len(normalized.JVMOptions) > 0 {
		env[common.JavaToolOptionsEnv] = strings.Join(normalized.JVMOptions, " ")
	}

	rule := ingress.Synthesize(host, normalized.StripPrefix, facts.ServiceName, normalized.ServerPort())

	return DesiredState{
		Env:         env,
		RoutingRule: rule,
		Revision:    fingerprint(env, rule),
	}, nil
}

// fingerprint hashes the env mapping and routing rule into a stable hex
// revision. Keys are sorted and joined as key\x00value pairs to avoid map
// iteration nondeterminism.
func fingerprint(env map[string]string, rule ingress.RoutingRule) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := strings.Builder{}
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(0)
		b.WriteString(env[k])
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%s\x00%s\x00%s\x00%s\x00%t\x00%s\x00%d",
		rule.Host, rule.PathPrefix, rule.PathPattern, rule.RewriteTarget,
		rule.RewriteEnabled, rule.ServiceName, rule.ServicePort)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
