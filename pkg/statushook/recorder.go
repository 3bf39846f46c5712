// Package statushook decorates a Kubernetes event recorder so that phase
// transitions of managed applications are also forwarded to an external HTTP
// endpoint as structured JSON. Downstream systems can index the stream
// without scraping Kubernetes events.
package statushook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Keys used in event annotations to carry reconciliation context.
const (
	// PhaseKey carries the reconciliation phase (Waiting, Applying, Active,
	// Blocked, Error).
	PhaseKey = "web.infini.cloud/phase"
	// RevisionKey carries the desired-state revision the event refers to.
	RevisionKey = "web.infini.cloud/revision"
	// StatusKey carries the machine-readable event status.
	StatusKey = "web.infini.cloud/status"
)

// Event status values.
const (
	StatusSuccess    = "success"
	StatusFailure    = "failure"
	StatusInProgress = "in_progress"
)

// Hook sender configuration.
const (
	// HookRetryMaxAttempts is the maximum number of times to retry sending a
	// hook event upon failure.
	HookRetryMaxAttempts = 3
	// HookRetryInitialInterval is the base duration to wait before the first
	// retry. Subsequent retries use exponential backoff.
	HookRetryInitialInterval = 10 * time.Second
)

// HookEvent is the structured payload posted to the external endpoint.
type HookEvent struct {
	// SourceID identifies the operator instance emitting the event.
	SourceID string `json:"source_id"`
	// ClusterID identifies the cluster the event originated from.
	ClusterID string `json:"cluster_id"`
	// Application is the namespace/name of the SpringBootApplication.
	Application string `json:"application"`
	// Phase is the reconciliation phase the event reports.
	Phase string `json:"phase"`
	// Revision is the desired-state fingerprint the event refers to, if any.
	Revision string `json:"revision,omitempty"`
	// Level corresponds to the Kubernetes event type ("Normal", "Warning").
	Level string `json:"level"`
	// Message is the human-readable description of the event.
	Message string `json:"message"`
	// Timestamp is the UTC event time in RFC3339 format.
	Timestamp string `json:"timestamp"`
	// Payload holds additional key-value context.
	Payload map[string]string `json:"payload,omitempty"`
	// Status is the machine-readable event status.
	Status string `json:"status"`
}

// Recorder implements record.EventRecorder. It wraps an underlying recorder
// (typically the manager's) and additionally posts annotated events to the
// configured hook URL.
type Recorder struct {
	recorder   record.EventRecorder
	httpClient *http.Client
	hookURL    string
	sourceID   string
	clusterID  string
	logger     logr.Logger
}

// NewRecorder creates a hook-forwarding recorder. With an empty hookURL it
// degrades to a plain pass-through around the wrapped recorder.
func NewRecorder(hookURL, sourceID, clusterID string, wrapped record.EventRecorder) *Recorder {
	return &Recorder{
		recorder:  wrapped,
		hookURL:   hookURL,
		sourceID:  sourceID,
		clusterID: clusterID,
		logger:    log.Log.WithName("status-hook"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Event passes a simple event through to the underlying recorder. It does
// not trigger a hook.
func (r *Recorder) Event(object runtime.Object, eventtype, reason, message string) {
	if r == nil {
		return
	}
	if r.recorder != nil {
		r.recorder.Event(object, eventtype, reason, message)
	}
}

// Eventf passes a formatted event through to the underlying recorder. It
// does not trigger a hook.
func (r *Recorder) Eventf(object runtime.Object, eventtype, reason, messageFmt string, args ...interface{}) {
	if r == nil {
		return
	}
	if r.recorder != nil {
		r.recorder.Eventf(object, eventtype, reason, messageFmt, args...)
	}
}

// AnnotatedEventf records the event and asynchronously posts a structured
// version to the hook endpoint. The annotations carry phase, revision and
// status under the web.infini.cloud keys.
func (r *Recorder) AnnotatedEventf(object runtime.Object, annotations map[string]string, eventtype, reason, messageFmt string, args ...interface{}) {
	if r == nil {
		return
	}

	if r.recorder != nil {
		r.recorder.Eventf(object, eventtype, reason, messageFmt, args...)
	}

	if r.hookURL == "" {
		return
	}

	event := &HookEvent{
		SourceID:    r.sourceID,
		ClusterID:   r.clusterID,
		Application: objectKey(object),
		Phase:       annotations[PhaseKey],
		Revision:    annotations[RevisionKey],
		Level:       eventtype,
		Message:     fmt.Sprintf(messageFmt, args...),
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		Payload:     map[string]string{"reason": reason},
		Status:      annotations[StatusKey],
	}

	// Asynchronous so the reconciler is never blocked on the endpoint.
	go r.sendEvent(event)
}

func objectKey(object runtime.Object) string {
	type named interface {
		GetNamespace() string
		GetName() string
	}
	if obj, ok := object.(named); ok {
		return obj.GetNamespace() + "/" + obj.GetName()
	}
	return ""
}

// sendEvent marshals the event and posts it to the hook URL, retrying
// transient failures with exponential backoff.
func (r *Recorder) sendEvent(event *HookEvent) {
	jsonData, err := json.Marshal(event)
	if err != nil {
		r.logger.Error(err, "Failed to marshal hook event, the event will not be sent")
		return
	}

	for attempt := 0; attempt < HookRetryMaxAttempts; attempt++ {
		if attempt > 0 {
			backoffDuration := HookRetryInitialInterval * time.Duration(math.Pow(2, float64(attempt-1)))
			r.logger.Info("Hook send failed. Retrying...",
				"url", r.hookURL,
				"attempt", fmt.Sprintf("%d/%d", attempt+1, HookRetryMaxAttempts),
				"retry_after", backoffDuration.String())
			time.Sleep(backoffDuration)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, "POST", r.hookURL, bytes.NewBuffer(jsonData))
		if err != nil {
			r.logger.Error(err, "Failed to create hook request, the event will not be sent")
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.httpClient.Do(req)
		if err != nil {
			r.logger.Error(err, "Failed to send hook event", "url", r.hookURL)
			if isNetworkError(err) {
				r.logger.Info("Network error detected, skipping remaining retries", "error", err.Error())
				return
			}
			continue
		}
		defer resp.Body.Close()

		bodyBytes, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			r.logger.V(1).Info("Successfully sent event to hook", "url", r.hookURL, "status", resp.Status)
			return
		}

		r.logger.Error(nil, "Hook endpoint returned error status",
			"url", r.hookURL,
			"status_code", resp.StatusCode,
			"response_body", string(bodyBytes))
	}

	r.logger.Error(nil, "Failed to send hook event after all retries, dropping the event.",
		"url", r.hookURL,
		"max_retries", HookRetryMaxAttempts)
}

// isNetworkError checks if the error is a network-level error that a retry
// cannot fix.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable")
}
