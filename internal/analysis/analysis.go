// Package analysis implements the telemetry evaluation core: rule-based
// inspection of network, process, and file-access telemetry, composite risk
// scoring, confidence estimation, and outcome signatures.
//
// Evaluation is a pure function of (Telemetry, Policy). It performs no I/O,
// holds no mutable state, and never fails on malformed input: absent fields
// are zero values and simply reduce indicator coverage.
package analysis

import (
	"time"

	"github.com/sentrylab/aegis/internal/policy"
)

// Severity is the impact label attached to an indicator.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Indicator type identifiers emitted by the rule evaluators.
const (
	IndicatorAdminAccess     = "internal_admin_access"
	IndicatorHighVolume      = "high_volume_transfer"
	IndicatorSuspiciousDomain = "suspicious_domain"
	IndicatorScriptExecution = "suspicious_script_execution"
	IndicatorHighNetActivity = "high_network_activity"
	IndicatorMassFileAccess  = "mass_file_access"
	IndicatorSensitiveFile   = "sensitive_file_access"
)

// Connection is a single observed network connection.
type Connection struct {
	SourceIP          string `json:"source_ip,omitempty"`
	DestinationIP     string `json:"destination_ip,omitempty"`
	DestinationPort   int    `json:"destination_port,omitempty"`
	Protocol          string `json:"protocol,omitempty"`
	BytesTransferred  int64  `json:"bytes_transferred,omitempty"`
	DestinationDomain string `json:"destination_domain,omitempty"`
}

// Process is a single running process record.
type Process struct {
	Name               string `json:"name,omitempty"`
	PID                int    `json:"pid,omitempty"`
	CommandLine        string `json:"command_line,omitempty"`
	NetworkConnections int    `json:"network_connections,omitempty"`
}

// FileEvent is a single file access record. ProcessID zero means the
// collector could not attribute the event; zero is a valid grouping key.
type FileEvent struct {
	ProcessID int    `json:"process_id,omitempty"`
	FilePath  string `json:"file_path,omitempty"`
	Operation string `json:"operation,omitempty"`
}

// Telemetry is one submission from a device (or a simulated scenario run).
// It is immutable for the duration of an evaluation.
type Telemetry struct {
	DeviceID           string           `json:"device_id"`
	Timestamp          time.Time        `json:"timestamp"`
	NetworkConnections []Connection     `json:"network_connections"`
	ProcessList        []Process        `json:"process_list"`
	FileAccessLogs     []FileEvent      `json:"file_access_logs"`
	SystemMetrics      map[string]any   `json:"system_metrics,omitempty"`
	SecurityEvents     []map[string]any `json:"security_events,omitempty"`
}

// Indicator is a single rule-trigger record describing one suspicious
// observation. Indicators are append-only; they are never mutated after
// evaluation.
type Indicator struct {
	Type        string         `json:"type"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	// Meta always carries "rule_id" and "explanation" for audit, plus
	// rule-specific fields such as the matched port or domain.
	Meta map[string]any `json:"meta,omitempty"`
}

// TimelineEntry is a time-stamped event paired 1:1 with an indicator, in the
// same order as the indicator sequence.
type TimelineEntry struct {
	Timestamp time.Time      `json:"ts"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// BlockedAction is a simulated (non-enforced) response action.
type BlockedAction struct {
	Action string `json:"action"`
	PID    int    `json:"pid,omitempty"`
	Reason string `json:"reason"`
}

// Evaluation is the output of a single evaluation run, before the dedup and
// alert decision is applied.
type Evaluation struct {
	RiskScore       float64         `json:"risk_score"`
	Indicators      []Indicator     `json:"indicators"`
	Timeline        []TimelineEntry `json:"timeline"`
	BlockedActions  []BlockedAction `json:"blocked_actions"`
	Confidence      float64         `json:"confidence"`
	Recommendations []string        `json:"recommendations"`
}

// Evaluator analyses one telemetry submission under a given policy.
type Evaluator interface {
	Evaluate(t *Telemetry, pol *policy.Policy) *Evaluation
}
