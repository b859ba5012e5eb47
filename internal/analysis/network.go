package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/sentrylab/aegis/internal/policy"
)

// adminPorts are destination ports commonly used for remote administration.
var adminPorts = map[int]bool{22: true, 3389: true, 445: true, 135: true}

// privateSourcePrefixes identify RFC1918-style internal source addresses.
var privateSourcePrefixes = []string{"10.", "192.168.", "172."}

// suspiciousDomainMarkers are substrings in destination domains associated
// with throwaway or link-shortener infrastructure.
var suspiciousDomainMarkers = []string{"temp", "dyn", "bit.ly", "tinyurl"}

// domainAllowed reports whether domain ends with any allow_domains entry.
// Matching is case-insensitive; an empty domain never matches.
func domainAllowed(domain string, allow []string) bool {
	if domain == "" {
		return false
	}
	lower := strings.ToLower(domain)
	for _, a := range allow {
		if a != "" && strings.HasSuffix(lower, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// evaluateNetwork runs the connection rules over every record. An allow-listed
// destination domain bypasses all rules for that record. The remaining rules
// are independent: one connection may trigger zero, one, two, or all three.
func evaluateNetwork(conns []Connection, pol *policy.Policy, now time.Time) ruleHits {
	var hits ruleHits
	for _, conn := range conns {
		domain := strings.ToLower(conn.DestinationDomain)
		if domainAllowed(domain, pol.AllowDomains) {
			continue
		}

		if adminPorts[conn.DestinationPort] && hasPrivatePrefix(conn.SourceIP) {
			hits.add(
				Indicator{
					Type:        IndicatorAdminAccess,
					Severity:    SeverityMedium,
					Description: fmt.Sprintf("Internal admin port %d to %s", conn.DestinationPort, conn.DestinationIP),
					Meta: map[string]any{
						"rule_id":     "net_admin_port",
						"explanation": "administrative port reached from a private source address",
						"port":        conn.DestinationPort,
					},
				},
				TimelineEntry{
					Timestamp: now,
					Event:     "net_admin_port",
					Detail:    map[string]any{"port": conn.DestinationPort},
				},
			)
		}

		if conn.BytesTransferred > pol.HighVolumeThreshold {
			hits.add(
				Indicator{
					Type:        IndicatorHighVolume,
					Severity:    SeverityHigh,
					Description: fmt.Sprintf("Large transfer %d bytes to %s", conn.BytesTransferred, conn.DestinationIP),
					Meta: map[string]any{
						"rule_id":     "net_large_xfer",
						"explanation": "transferred volume exceeds the policy high-volume threshold",
						"bytes":       conn.BytesTransferred,
					},
				},
				TimelineEntry{
					Timestamp: now,
					Event:     "net_large_xfer",
					Detail:    map[string]any{"bytes": conn.BytesTransferred},
				},
			)
		}

		if domain != "" && containsAny(domain, suspiciousDomainMarkers) {
			hits.add(
				Indicator{
					Type:        IndicatorSuspiciousDomain,
					Severity:    SeverityHigh,
					Description: fmt.Sprintf("Suspicious domain %s", domain),
					Meta: map[string]any{
						"rule_id":     "net_susp_domain",
						"explanation": "destination domain matches a known-suspicious pattern",
						"domain":      domain,
					},
				},
				TimelineEntry{
					Timestamp: now,
					Event:     "net_susp_domain",
					Detail:    map[string]any{"domain": domain},
				},
			)
		}
	}
	return hits
}

// hasPrivatePrefix reports whether ip starts with a private-range prefix.
func hasPrivatePrefix(ip string) bool {
	for _, prefix := range privateSourcePrefixes {
		if strings.HasPrefix(ip, prefix) {
			return true
		}
	}
	return false
}

// containsAny reports whether s contains any of the given substrings.
func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
