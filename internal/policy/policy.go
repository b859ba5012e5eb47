// Package policy holds the deployment-wide evaluation policy: allow-lists
// and thresholds consulted by every analysis run. Exactly one policy value
// is active per deployment; it is stored as a singleton row and defaulted
// on first access.
package policy

import "time"

// Default threshold values, used when no policy row exists yet.
const (
	DefaultHighVolumeThreshold  = 100_000_000
	DefaultProcessConnThreshold = 10
	DefaultDedupeWindowMinutes  = 15
	DefaultAlertRiskThreshold   = 6.0
)

// Policy is the shared configuration input to every evaluation. Within the
// analysis core it is immutable; updates go through Service.Update.
// Allow-list matching is case-insensitive. Thresholds are accepted as
// configured, without range validation: callers are trusted operators.
type Policy struct {
	AllowDomains         []string  `json:"allow_domains"`
	AllowProcesses       []string  `json:"allow_processes"`
	AllowPaths           []string  `json:"allow_paths"`
	HighVolumeThreshold  int64     `json:"high_volume_threshold"`
	ProcessConnThreshold int       `json:"process_conn_threshold"`
	DedupeWindowMinutes  int       `json:"dedupe_window_minutes"`
	AlertRiskThreshold   float64   `json:"alert_risk_threshold"`
	UpdatedAt            time.Time `json:"updated_at,omitempty"`
}

// Default returns a policy populated with the documented default thresholds
// and empty allow-lists.
func Default() *Policy {
	return &Policy{
		AllowDomains:         []string{},
		AllowProcesses:       []string{},
		AllowPaths:           []string{},
		HighVolumeThreshold:  DefaultHighVolumeThreshold,
		ProcessConnThreshold: DefaultProcessConnThreshold,
		DedupeWindowMinutes:  DefaultDedupeWindowMinutes,
		AlertRiskThreshold:   DefaultAlertRiskThreshold,
	}
}

// DedupeWindow returns the dedupe window as a duration.
func (p *Policy) DedupeWindow() time.Duration {
	return time.Duration(p.DedupeWindowMinutes) * time.Minute
}
