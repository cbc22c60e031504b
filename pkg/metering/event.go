// Package metering accumulates per-invocation outcome events and delivers
// them to a remote collector in batches. Delivery never blocks tool callers
// and never propagates failures to them; a failed flush re-queues its events
// ahead of newer traffic and retries on the next trigger.
package metering

import (
	"time"

	"github.com/tollgate/tollgate-go/internal/version"
)

// Event is one completed tool invocation. Error carries the operation-level
// message only, never payload contents.
type Event struct {
	Tool       string `json:"tool"`
	DurationMs int64  `json:"durationMs"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// ServerInfo identifies the server the events originated from.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Metadata describes the SDK and runtime environment of a batch.
type Metadata struct {
	SDKVersion     string `json:"sdkVersion"`
	RuntimeVersion string `json:"runtimeVersion"`
	Platform       string `json:"platform"`
}

// Batch is the wire body of one delivery attempt. Constructed fresh at each
// flush and never persisted.
type Batch struct {
	BatchID  string     `json:"batchId"`
	Events   []Event    `json:"events"`
	Server   ServerInfo `json:"server"`
	Metadata Metadata   `json:"metadata"`
}

func newEvent(tool string, duration time.Duration, success bool, errMsg string) Event {
	ms := duration.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return Event{
		Tool:       tool,
		DurationMs: ms,
		Success:    success,
		Error:      errMsg,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

func environmentMetadata() Metadata {
	return Metadata{
		SDKVersion:     version.Version,
		RuntimeVersion: version.RuntimeVersion(),
		Platform:       version.Platform(),
	}
}
