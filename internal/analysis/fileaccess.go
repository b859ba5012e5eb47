package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/sentrylab/aegis/internal/policy"
)

// sensitivePathMarkers are path fragments covering system configuration,
// audit logs, and user document roots on both Unix and Windows.
var sensitivePathMarkers = []string{"/etc", "/var/log", "c:/windows/system32", "c:/users"}

// massAccessMinRecords and massAccessMinExtensions gate the per-process
// mass-access rule: more than 100 events spanning more than 5 distinct
// file extensions.
const (
	massAccessMinRecords    = 100
	massAccessMinExtensions = 5
)

// pathAllowed reports whether the lowercased path is prefixed by any
// allow_paths entry.
func pathAllowed(lowerPath string, allow []string) bool {
	for _, a := range allow {
		if a != "" && strings.HasPrefix(lowerPath, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// evaluateFileAccess groups events by originating process and runs the
// mass-access rule per group and the sensitive-path rule per record. The two
// rules are independent; a group can trigger both. Groups are visited in
// first-seen order so output ordering is deterministic.
func evaluateFileAccess(events []FileEvent, pol *policy.Policy, now time.Time) ruleHits {
	groups := make(map[int][]FileEvent)
	var order []int
	for _, ev := range events {
		if _, seen := groups[ev.ProcessID]; !seen {
			order = append(order, ev.ProcessID)
		}
		groups[ev.ProcessID] = append(groups[ev.ProcessID], ev)
	}

	var hits ruleHits
	for _, pid := range order {
		logs := groups[pid]

		if len(logs) > massAccessMinRecords {
			exts := distinctExtensions(logs)
			if len(exts) > massAccessMinExtensions {
				hits.add(
					Indicator{
						Type:        IndicatorMassFileAccess,
						Severity:    SeverityCritical,
						Description: "Mass multi-type file access (ransomware-like)",
						Meta: map[string]any{
							"rule_id":     "file_mass",
							"explanation": "one process touched a large number of files across many extensions",
							"pid":         pid,
							"count":       len(logs),
							"types":       exts,
						},
					},
					TimelineEntry{
						Timestamp: now,
						Event:     "file_mass",
						Detail:    map[string]any{"pid": pid},
					},
				)
				hits.blocked = append(hits.blocked, BlockedAction{
					Action: "suspend_io",
					PID:    pid,
					Reason: "mass_file_access",
				})
			}
		}

		for _, ev := range logs {
			lowerPath := strings.ToLower(ev.FilePath)
			if pathAllowed(lowerPath, pol.AllowPaths) {
				continue
			}
			if !containsAny(lowerPath, sensitivePathMarkers) {
				continue
			}
			if ev.Operation != "read" && ev.Operation != "copy" {
				continue
			}
			hits.add(
				Indicator{
					Type:        IndicatorSensitiveFile,
					Severity:    SeverityHigh,
					Description: fmt.Sprintf("Sensitive path access %s", ev.FilePath),
					Meta: map[string]any{
						"rule_id":     "file_sensitive",
						"explanation": "read or copy of a sensitive system or user path",
						"pid":         pid,
						"op":          ev.Operation,
					},
				},
				TimelineEntry{
					Timestamp: now,
					Event:     "file_sensitive",
					Detail:    map[string]any{"pid": pid},
				},
			)
		}
	}
	return hits
}

// distinctExtensions collects the lowercased set of file extensions (the
// substring after the last dot) across a group of events. Paths without a
// dot contribute nothing.
func distinctExtensions(logs []FileEvent) []string {
	seen := make(map[string]bool)
	var exts []string
	for _, ev := range logs {
		idx := strings.LastIndex(ev.FilePath, ".")
		if idx < 0 {
			continue
		}
		ext := strings.ToLower(ev.FilePath[idx+1:])
		if !seen[ext] {
			seen[ext] = true
			exts = append(exts, ext)
		}
	}
	return exts
}
