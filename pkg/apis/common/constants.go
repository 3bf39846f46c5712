// pkg/apis/common/constants.go
package common

// Constants for standard labels and operator identification.
const (
	AppNameLabel   = "web.infini.cloud/application-name" // Label for SpringBootApplication name
	ManagedByLabel = "app.kubernetes.io/managed-by"      // Standard Kubernetes label
	OperatorName   = "springboot-operator"               // Name of this operator, also the SSA field manager
)

// Environment variable names injected into the workload process.
const (
	// SpringApplicationJSONEnv carries the application properties as a compact
	// JSON object. It is always set, even when the properties are empty.
	SpringApplicationJSONEnv = "SPRING_APPLICATION_JSON"
	// JavaToolOptionsEnv carries the JVM options. It is only set when at least
	// one option is configured.
	JavaToolOptionsEnv = "JAVA_TOOL_OPTIONS"
)

// DefaultServerPort is the Spring Boot server port used when the application
// properties do not override server.port.
const DefaultServerPort = 8080
