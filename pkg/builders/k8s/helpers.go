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

// pkg/builders/k8s/helpers.go
package k8s

import (
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/infinilabs/springboot-operator/pkg/apis/common"
)

// --- Naming and Labeling Helpers ---

// BuildCommonLabels creates a map of standard labels for Kubernetes resources.
func BuildCommonLabels(appName string) map[string]string {
	return map[string]string{
		common.ManagedByLabel:        common.OperatorName,
		"app.kubernetes.io/name":     "spring-boot",
		"app.kubernetes.io/instance": appName,
		common.AppNameLabel:          appName,
	}
}

// BuildSelectorLabels creates labels used for workload and service selectors.
// Selector labels are immutable on a Deployment, so this set must stay stable
// across operator versions.
func BuildSelectorLabels(appName string) map[string]string {
	return map[string]string{
		"app.kubernetes.io/name":     "spring-boot",
		"app.kubernetes.io/instance": appName,
	}
}

// DeriveResourceName generates a DNS-safe name for Kubernetes resources.
func DeriveResourceName(appName string) string {
	name := strings.ToLower(appName)
	name = strings.ReplaceAll(name, "_", "-")
	if len(name) > 63 {
		name = name[:63]
	}
	name = strings.TrimRight(name, "-")
	return name
}

// BuildObjectMeta builds standard Kubernetes ObjectMeta for a resource.
func BuildObjectMeta(name, namespace string, labels, annotations map[string]string) metav1.ObjectMeta {
	if labels == nil {
		labels = make(map[string]string)
	}
	return metav1.ObjectMeta{
		Name:        name,
		Namespace:   namespace,
		Labels:      labels,
		Annotations: annotations, // Can be nil
	}
}

// --- K8s Spec Field Helpers ---

// BuildEnvVars converts an environment map into a sorted []corev1.EnvVar so
// the container spec is deterministic for a given input.
func BuildEnvVars(env map[string]string) []corev1.EnvVar {
	if len(env) == 0 {
		return nil
	}
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)
	vars := make([]corev1.EnvVar, 0, len(names))
	for _, name := range names {
		vars = append(vars, corev1.EnvVar{Name: name, Value: env[name]})
	}
	return vars
}

// EnvVarsToMap is the inverse of BuildEnvVars. Entries using ValueFrom are
// skipped: they are not literal values this operator manages.
func EnvVarsToMap(vars []corev1.EnvVar) map[string]string {
	env := make(map[string]string, len(vars))
	for _, v := range vars {
		if v.ValueFrom != nil {
			continue
		}
		env[v.Name] = v.Value
	}
	return env
}

// BuildProbe builds a K8s corev1.Probe struct pointer, applying defaults.
func BuildProbe(probeSpec *corev1.Probe) *corev1.Probe {
	if probeSpec == nil {
		return nil
	}
	probeCopy := probeSpec.DeepCopy()
	if probeCopy.PeriodSeconds == 0 {
		probeCopy.PeriodSeconds = 10
	}
	if probeCopy.TimeoutSeconds == 0 {
		probeCopy.TimeoutSeconds = 1
	}
	if probeCopy.SuccessThreshold == 0 {
		probeCopy.SuccessThreshold = 1
	}
	if probeCopy.FailureThreshold == 0 {
		probeCopy.FailureThreshold = 3
	}
	if probeCopy.HTTPGet != nil && probeCopy.HTTPGet.Scheme == "" {
		probeCopy.HTTPGet.Scheme = corev1.URISchemeHTTP
	}
	return probeCopy
}

// --- Other helpers ---

// MergeMaps merges maps, preferring keys from the 'override' map. Returns a new map.
func MergeMaps(base, override map[string]string) map[string]string {
	if base == nil && override == nil {
		return nil
	}
	merged := make(map[string]string)
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
