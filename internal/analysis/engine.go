package analysis

import (
	"time"

	"github.com/sentrylab/aegis/internal/policy"
)

// Per-category risk weights. The score counts triggered indicators per
// category; indicator severity deliberately does not feed into the score.
const (
	networkWeight = 1.5
	processWeight = 2.0
	fileWeight    = 1.8

	maxRiskScore  = 10.0
	minConfidence = 0.2
	maxConfidence = 1.0
)

// defaultRecommendations are the static hardening suggestions attached to
// every evaluation.
var defaultRecommendations = []string{
	"Segment network and restrict admin ports to jump hosts",
	"Harden script interpreters and enforce signed scripts",
	"Enable EDR rules to kill suspicious processes automatically",
	"Tighten access controls on sensitive directories",
	"Increase telemetry collection for higher confidence",
}

// ruleHits accumulates the output of one evaluator category. Indicators and
// timeline entries are paired 1:1 and appended in generation order.
type ruleHits struct {
	indicators []Indicator
	timeline   []TimelineEntry
	blocked    []BlockedAction
}

func (h *ruleHits) add(ind Indicator, entry TimelineEntry) {
	h.indicators = append(h.indicators, ind)
	h.timeline = append(h.timeline, entry)
}

// RuleEngine is the default Evaluator. It runs the fixed network, process,
// and file-access rule sets and aggregates their hits into a bounded risk
// score and a volume-derived confidence estimate.
type RuleEngine struct {
	// now supplies timeline timestamps; overridable in tests.
	now func() time.Time
}

// NewRuleEngine returns a RuleEngine using the wall clock.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{now: func() time.Time { return time.Now().UTC() }}
}

// Evaluate implements Evaluator. It never fails: malformed or partial
// telemetry degrades indicator coverage rather than aborting.
func (e *RuleEngine) Evaluate(t *Telemetry, pol *policy.Policy) *Evaluation {
	now := e.now()

	net := evaluateNetwork(t.NetworkConnections, pol, now)
	proc := evaluateProcesses(t.ProcessList, pol, now)
	file := evaluateFileAccess(t.FileAccessLogs, pol, now)

	indicators := make([]Indicator, 0, len(net.indicators)+len(proc.indicators)+len(file.indicators))
	indicators = append(indicators, net.indicators...)
	indicators = append(indicators, proc.indicators...)
	indicators = append(indicators, file.indicators...)

	timeline := make([]TimelineEntry, 0, len(indicators))
	timeline = append(timeline, net.timeline...)
	timeline = append(timeline, proc.timeline...)
	timeline = append(timeline, file.timeline...)

	blocked := make([]BlockedAction, 0, len(net.blocked)+len(proc.blocked)+len(file.blocked))
	blocked = append(blocked, net.blocked...)
	blocked = append(blocked, proc.blocked...)
	blocked = append(blocked, file.blocked...)

	return &Evaluation{
		RiskScore:       riskScore(len(net.indicators), len(proc.indicators), len(file.indicators)),
		Indicators:      indicators,
		Timeline:        timeline,
		BlockedActions:  blocked,
		Confidence:      confidence(len(t.NetworkConnections), len(t.ProcessList), len(t.FileAccessLogs)),
		Recommendations: defaultRecommendations,
	}
}

// riskScore combines per-category indicator counts into a score bounded to
// [0, 10].
func riskScore(netCount, procCount, fileCount int) float64 {
	raw := float64(netCount)*networkWeight + float64(procCount)*processWeight + float64(fileCount)*fileWeight
	if raw > maxRiskScore {
		return maxRiskScore
	}
	return raw
}

// confidence estimates evidentiary sufficiency from raw input record counts,
// clamped to [0.2, 1.0]. It is independent of how many rules triggered:
// sparse telemetry yields low confidence even when nothing looks suspicious.
func confidence(netLen, procLen, fileLen int) float64 {
	if fileLen < 1 {
		fileLen = 1
	}
	c := min3(float64(netLen)/10, float64(procLen)/20, float64(fileLen)/50)
	if c < minConfidence {
		return minConfidence
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
