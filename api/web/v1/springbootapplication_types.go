/*
Copyright 2025 infinilabs.com.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// api/web/v1/springbootapplication_types.go
package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// SpringBootApplicationSpec defines the desired state of a single managed
// Spring Boot workload and its ingress integration.
type SpringBootApplicationSpec struct {
	// Image is the container image holding the application, either an
	// executable jar image or a buildpack-style layout.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	Image string `json:"image"`

	// ApplicationConfig holds Spring application properties as a JSON object
	// string. The content is injected verbatim into the workload via
	// SPRING_APPLICATION_JSON. An empty string means no properties.
	// +optional
	ApplicationConfig string `json:"applicationConfig,omitempty"`

	// JVMConfig holds whitespace-separated JVM options injected via
	// JAVA_TOOL_OPTIONS. An empty string means no options.
	// +optional
	JVMConfig string `json:"jvmConfig,omitempty"`

	// IngressHostname overrides the hostname published on the ingress. When
	// empty, the default hostname derived from name and namespace is used.
	// +optional
	IngressHostname string `json:"ingressHostname,omitempty"`

	// IngressStripURLPrefix routes only paths under the prefix and strips it
	// before forwarding. Must start with "/", must not end with "/", must not
	// be "/" itself.
	// +optional
	IngressStripURLPrefix string `json:"ingressStripUrlPrefix,omitempty"`

	// IngressClassName selects the ingress controller. Defaults to nginx.
	// +optional
	IngressClassName string `json:"ingressClassName,omitempty"`

	// LaunchCommand overrides the container launch command. When empty the
	// command is taken from the image's default entrypoint.
	// +optional
	LaunchCommand []string `json:"launchCommand,omitempty"`

	// Suspend scales the workload to zero replicas without removing any
	// managed object. Resuming restores the single replica.
	// +optional
	Suspend bool `json:"suspend,omitempty"`
}

// SpringBootApplicationStatus defines the observed state reported by the
// operator.
type SpringBootApplicationStatus struct {
	// ObservedGeneration is the most recent generation observed by the
	// controller.
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// Phase is the coarse reconciliation state: Waiting, Applying, Active,
	// Blocked or Error.
	// +kubebuilder:validation:Enum=Waiting;Applying;Active;Blocked;Error
	// +optional
	Phase string `json:"phase,omitempty"`

	// Message is a human-readable explanation of the current phase,
	// actionable when the phase is Blocked.
	// +optional
	Message string `json:"message,omitempty"`

	// LastAppliedRevision is the fingerprint of the most recent desired
	// state that was applied completely.
	// +optional
	LastAppliedRevision string `json:"lastAppliedRevision,omitempty"`

	// Conditions provide detailed status. Standard types are Ready and
	// Reconciled.
	// +optional
	// +patchStrategy=merge
	// +patchMergeKey=type
	// +listType=map
	// +listMapKey=type
	Conditions []metav1.Condition `json:"conditions,omitempty" patchStrategy:"merge" patchMergeKey:"type" listType:"map" listMapKey:"type"`
}

//+kubebuilder:object:root=true
//+kubebuilder:subresource:status
//+kubebuilder:resource:scope=Namespaced,path=springbootapplications,shortName=sba,categories={infini,web}
//+kubebuilder:printcolumn:name="Phase",type=string,JSONPath=".status.phase",description="The current reconciliation phase."
//+kubebuilder:printcolumn:name="Ready",type="string",JSONPath=".status.conditions[?(@.type=='Ready')].status",description="Indicates if the application is ready."
//+kubebuilder:printcolumn:name="Hostname",type="string",JSONPath=".spec.ingressHostname",description="Configured ingress hostname override."
//+kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"
//+kubebuilder:storageversion

// SpringBootApplication is the Schema for the springbootapplications API.
// One resource manages exactly one containerized Spring Boot workload plus
// the ingress rule that exposes it.
type SpringBootApplication struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   SpringBootApplicationSpec   `json:"spec,omitempty"`
	Status SpringBootApplicationStatus `json:"status,omitempty"`
}

//+kubebuilder:object:root=true

// SpringBootApplicationList contains a list of SpringBootApplication.
type SpringBootApplicationList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []SpringBootApplication `json:"items"`
}

func init() {
	SchemeBuilder.Register(&SpringBootApplication{}, &SpringBootApplicationList{})
}
