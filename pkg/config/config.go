// pkg/config/config.go
// Package config normalizes the raw operator configuration surface into a
// validated, strongly typed form. All functions here are pure: no I/O, no
// cluster access, no clock.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/infinilabs/springboot-operator/pkg/apis/common"
)

// RawConfig is the untyped configuration surface as supplied by the
// environment on every reconciliation trigger. All fields default to the
// empty string when the corresponding option is absent.
type RawConfig struct {
	// ApplicationConfigJSON is the raw value of the applicationConfig option,
	// expected to be a JSON object when non-empty.
	ApplicationConfigJSON string
	// JVMConfig is the raw value of the jvmConfig option, a whitespace
	// separated list of JVM flags.
	JVMConfig string
	// IngressHostname overrides the discovered default hostname when non-empty.
	IngressHostname string
	// IngressStripURLPrefix is the URL prefix the ingress strips before
	// forwarding to the workload.
	IngressStripURLPrefix string
}

// NormalizedConfig is the validated form of RawConfig.
type NormalizedConfig struct {
	// AppProperties maps property names to their raw JSON values. Empty map
	// when no application configuration was supplied.
	AppProperties map[string]json.RawMessage
	// JVMOptions holds the discrete JVM option tokens in their original order.
	JVMOptions []string
	// HostnameOverride is the configured ingress hostname, empty when the
	// discovered default should be used.
	HostnameOverride string
	// StripPrefix is the validated URL prefix, empty when no stripping is
	// requested. When set it starts with "/" and has no trailing "/".
	StripPrefix string
}

// InvalidJSONError reports that the applicationConfig option did not parse as
// a JSON object. Offset is the byte offset of the parse failure, or -1 when
// the input parsed but was not an object.
type InvalidJSONError struct {
	Offset int64
	Reason string
}

func (e *InvalidJSONError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("invalid applicationConfig value, expecting JSON: %s (offset %d)", e.Reason, e.Offset)
	}
	return fmt.Sprintf("invalid applicationConfig value, expecting an object in JSON: %s", e.Reason)
}

// InvalidPrefixError reports a malformed ingressStripUrlPrefix value.
type InvalidPrefixError struct {
	Value string
}

func (e *InvalidPrefixError) Error() string {
	return fmt.Sprintf("invalid ingressStripUrlPrefix value %q: must start with \"/\", must not end with \"/\", and must not be \"/\"", e.Value)
}

// stripPrefixPattern accepts a single absolute path segment prefix: leading
// slash, no trailing slash, not bare "/".
var stripPrefixPattern = regexp.MustCompile(`^/[^/].*[^/]$|^/[^/]$`)

// Normalize validates raw configuration and produces a NormalizedConfig.
// It fails with *InvalidJSONError or *InvalidPrefixError on malformed input.
func Normalize(raw RawConfig) (NormalizedConfig, error) {
	normalized := NormalizedConfig{
		AppProperties:    map[string]json.RawMessage{},
		JVMOptions:       []string{},
		HostnameOverride: raw.IngressHostname,
	}

	if raw.ApplicationConfigJSON != "" {
		props, err := parseAppProperties(raw.ApplicationConfigJSON)
		if err != nil {
			return NormalizedConfig{}, err
		}
		normalized.AppProperties = props
	}

	// strings.Fields collapses runs of whitespace, so an all-blank jvmConfig
	// still yields an empty sequence.
	normalized.JVMOptions = strings.Fields(raw.JVMConfig)

	if raw.IngressStripURLPrefix != "" {
		if !stripPrefixPattern.MatchString(raw.IngressStripURLPrefix) {
			return NormalizedConfig{}, &InvalidPrefixError{Value: raw.IngressStripURLPrefix}
		}
		normalized.StripPrefix = raw.IngressStripURLPrefix
	}

	return normalized, nil
}

func parseAppProperties(configJSON string) (map[string]json.RawMessage, error) {
	decoder := json.NewDecoder(strings.NewReader(configJSON))
	var props map[string]json.RawMessage
	if err := decoder.Decode(&props); err != nil {
		offset := int64(-1)
		if syntaxErr, ok := err.(*json.SyntaxError); ok {
			offset = syntaxErr.Offset
		}
		if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
			// Parsed fine but the top-level value is not an object.
			_ = typeErr
			offset = -1
		}
		return nil, &InvalidJSONError{Offset: offset, Reason: err.Error()}
	}
	if props == nil {
		// "null" decodes without error; treat it like a missing object.
		return nil, &InvalidJSONError{Offset: -1, Reason: "top-level value is null, expecting an object"}
	}
	// Decode stops after the first value; anything left over means the input
	// was not a single JSON document.
	if decoder.More() {
		return nil, &InvalidJSONError{Offset: decoder.InputOffset(), Reason: "unexpected content after JSON object"}
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, &InvalidJSONError{Offset: decoder.InputOffset(), Reason: "unexpected content after JSON object"}
	}
	return props, nil
}

// ServerPort returns the Spring Boot server port configured via the
// server.port application property, or the default 8080. Only a JSON number
// under {"server": {"port": N}} is honored, mirroring how the workload itself
// resolves the property.
func (c NormalizedConfig) ServerPort() int32 {
	raw, ok := c.AppProperties["server"]
	if !ok {
		return common.DefaultServerPort
	}
	var server struct {
		Port *int32 `json:"port"`
	}
	if err := json.Unmarshal(raw, &server); err != nil || server.Port == nil || *server.Port <= 0 {
		return common.DefaultServerPort
	}
	return *server.Port
}

// SerializeAppProperties renders the application properties as compact JSON
// with deterministic key order. An empty property map serializes as "{}",
// never as the empty string: the workload expects the variable to be present.
func (c NormalizedConfig) SerializeAppProperties() (string, error) {
	if len(c.AppProperties) == 0 {
		return "{}", nil
	}
	// encoding/json marshals map keys in sorted order, which is exactly the
	// determinism the revision fingerprint relies on.
	data, err := json.Marshal(c.AppProperties)
	if err != nil {
		return "", fmt.Errorf("failed to re-serialize application properties: %w", err)
	}
	return string(data), nil
}
