package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/sentrylab/aegis/internal/policy"
)

// scriptInterpreters are process names of scripting hosts frequently abused
// for living-off-the-land execution.
var scriptInterpreters = []string{"powershell", "cmd", "wscript", "cscript", "mshta", "regsvr32"}

// suspiciousFlags are command-line fragments indicating encoded or remote
// script execution.
var suspiciousFlags = []string{"-enc", "-executionpolicy", "downloadstring", "invoke"}

// processAllowed reports whether the process name exactly matches an
// allow_processes entry, case-insensitively.
func processAllowed(name string, allow []string) bool {
	lower := strings.ToLower(name)
	for _, a := range allow {
		if a != "" && lower == strings.ToLower(a) {
			return true
		}
	}
	return false
}

// evaluateProcesses runs the process rules over every record. An allow-listed
// process name bypasses both rules for that record; otherwise the two rules
// fire independently.
func evaluateProcesses(procs []Process, pol *policy.Policy, now time.Time) ruleHits {
	var hits ruleHits
	for _, p := range procs {
		name := strings.ToLower(p.Name)
		if processAllowed(name, pol.AllowProcesses) {
			continue
		}

		cmd := strings.ToLower(p.CommandLine)
		if containsAny(name, scriptInterpreters) && containsAny(cmd, suspiciousFlags) {
			hits.add(
				Indicator{
					Type:        IndicatorScriptExecution,
					Severity:    SeverityHigh,
					Description: fmt.Sprintf("Suspicious script execution %s", name),
					Meta: map[string]any{
						"rule_id":     "proc_script",
						"explanation": "scripting interpreter launched with encoded or download flags",
						"pid":         p.PID,
						"cmd":         truncate(cmd, 160),
					},
				},
				TimelineEntry{
					Timestamp: now,
					Event:     "proc_script",
					Detail:    map[string]any{"name": name},
				},
			)
			// Simulated response: the process is not actually killed.
			hits.blocked = append(hits.blocked, BlockedAction{
				Action: "kill_process",
				PID:    p.PID,
				Reason: "script_execution",
			})
		}

		if p.NetworkConnections > pol.ProcessConnThreshold {
			hits.add(
				Indicator{
					Type:        IndicatorHighNetActivity,
					Severity:    SeverityMedium,
					Description: fmt.Sprintf("High network activity %s", name),
					Meta: map[string]any{
						"rule_id":     "proc_high_net",
						"explanation": "outbound connection count exceeds the policy threshold",
						"count":       p.NetworkConnections,
					},
				},
				TimelineEntry{
					Timestamp: now,
					Event:     "proc_high_net",
					Detail:    map[string]any{"name": name},
				},
			)
		}
	}
	return hits
}

// truncate bounds s to at most n bytes.
func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
