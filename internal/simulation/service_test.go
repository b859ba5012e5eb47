package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentrylab/aegis/internal/analysis"
	"github.com/sentrylab/aegis/internal/policy"
	"github.com/sentrylab/aegis/internal/scenario"
)

type stubScenarios struct {
	known map[uuid.UUID]*scenario.Scenario
}

func (s *stubScenarios) GetByID(_ context.Context, id uuid.UUID) (*scenario.Scenario, error) {
	if sc, ok := s.known[id]; ok {
		return sc, nil
	}
	return nil, scenario.ErrNotFound
}

type stubPolicies struct {
	pol *policy.Policy
	err error
}

func (s *stubPolicies) Resolve(context.Context) (*policy.Policy, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pol, nil
}

type stubHistory struct {
	created     []*Result
	uniqueCalls int
	conflict    bool
	seen        bool
	lookupErr   error
	lookups     int
}

func (s *stubHistory) Create(_ context.Context, res *Result) error {
	s.created = append(s.created, res)
	return nil
}

func (s *stubHistory) CreateUnique(_ context.Context, res *Result) (bool, error) {
	s.uniqueCalls++
	if s.conflict {
		return true, nil
	}
	s.created = append(s.created, res)
	return false, nil
}

func (s *stubHistory) GetByID(_ context.Context, id uuid.UUID) (*Result, error) {
	for _, res := range s.created {
		if res.ID == id {
			return res, nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubHistory) List(_ context.Context, _, _ int) ([]*Result, error) {
	return s.created, nil
}

func (s *stubHistory) HasRecentSignature(_ context.Context, _, _ string, _ time.Time) (bool, error) {
	s.lookups++
	if s.lookupErr != nil {
		return false, s.lookupErr
	}
	return s.seen, nil
}

// fixedEvaluator returns a canned evaluation so tests control the score.
type fixedEvaluator struct {
	eval *analysis.Evaluation
}

func (f *fixedEvaluator) Evaluate(*analysis.Telemetry, *policy.Policy) *analysis.Evaluation {
	return f.eval
}

func riskyEval(score float64) *analysis.Evaluation {
	return &analysis.Evaluation{
		RiskScore: score,
		Indicators: []analysis.Indicator{
			{Type: analysis.IndicatorAdminAccess, Severity: analysis.SeverityHigh},
		},
		Confidence:      0.5,
		Recommendations: []string{"Isolate affected device from network"},
	}
}

func newTestService(history *stubHistory, policies *stubPolicies, eval *analysis.Evaluation, cfg Config) (*Service, *stubScenarios) {
	scenarios := &stubScenarios{known: map[uuid.UUID]*scenario.Scenario{}}
	svc := NewService(&fixedEvaluator{eval: eval}, scenarios, policies, history, cfg, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, scenarios
}

func telemetry() *analysis.Telemetry {
	return &analysis.Telemetry{DeviceID: "dev-001"}
}

func TestRunAlertsAboveThreshold(t *testing.T) {
	history := &stubHistory{}
	svc, _ := newTestService(history, &stubPolicies{pol: policy.Default()}, riskyEval(7.5), DefaultConfig())

	res, err := svc.Run(context.Background(), nil, telemetry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Alert {
		t.Error("expected alert at risk 7.5 against threshold 6.0")
	}
	if res.Suppressed {
		t.Error("novel result should not be suppressed")
	}
	if len(history.created) != 1 {
		t.Fatalf("expected 1 recorded result, got %d", len(history.created))
	}
	if res.Signature == "" {
		t.Error("expected a computed signature")
	}
}

func TestRunBelowThresholdNoAlert(t *testing.T) {
	history := &stubHistory{}
	svc, _ := newTestService(history, &stubPolicies{pol: policy.Default()}, riskyEval(3.0), DefaultConfig())

	res, err := svc.Run(context.Background(), nil, telemetry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Alert {
		t.Error("risk 3.0 must not alert against threshold 6.0")
	}
	if len(history.created) != 1 {
		t.Error("non-alerting results are still recorded")
	}
}

func TestRunSuppressesRepeatWithinWindow(t *testing.T) {
	history := &stubHistory{seen: true}
	svc, _ := newTestService(history, &stubPolicies{pol: policy.Default()}, riskyEval(9.0), DefaultConfig())

	res, err := svc.Run(context.Background(), nil, telemetry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Suppressed {
		t.Error("repeat within the dedup window must be suppressed")
	}
	if res.Alert {
		t.Error("suppressed results must not alert, regardless of risk")
	}
	if len(history.created) != 1 {
		t.Error("suppressed results are still recorded")
	}
}

func TestRunFailsOpenOnLookupError(t *testing.T) {
	history := &stubHistory{lookupErr: errors.New("connection refused")}
	svc, _ := newTestService(history, &stubPolicies{pol: policy.Default()}, riskyEval(9.0), DefaultConfig())

	res, err := svc.Run(context.Background(), nil, telemetry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Suppressed {
		t.Error("lookup failure must treat the result as novel")
	}
	if !res.Alert {
		t.Error("lookup failure must not swallow an alert")
	}
}

func TestRunAtomicModeConflictSuppresses(t *testing.T) {
	history := &stubHistory{conflict: true}
	cfg := DefaultConfig()
	cfg.AtomicInsert = true
	svc, _ := newTestService(history, &stubPolicies{pol: policy.Default()}, riskyEval(9.0), cfg)

	res, err := svc.Run(context.Background(), nil, telemetry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if history.uniqueCalls != 1 {
		t.Fatalf("expected 1 conditional insert, got %d", history.uniqueCalls)
	}
	if !res.Suppressed || res.Alert {
		t.Error("conflict in atomic mode must suppress without alerting")
	}
	if len(history.created) != 1 {
		t.Error("conflicting result must be re-recorded as suppressed")
	}
	if history.lookups != 0 {
		t.Error("atomic mode must not use the read-then-write lookup")
	}
}

func TestRunAtomicModeNovelAlerts(t *testing.T) {
	history := &stubHistory{}
	cfg := DefaultConfig()
	cfg.AtomicInsert = true
	svc, _ := newTestService(history, &stubPolicies{pol: policy.Default()}, riskyEval(9.0), cfg)

	res, err := svc.Run(context.Background(), nil, telemetry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Suppressed || !res.Alert {
		t.Error("novel result in atomic mode should alert")
	}
}

func TestRunZeroDedupeWindowDisablesDedup(t *testing.T) {
	pol := policy.Default()
	pol.DedupeWindowMinutes = 0
	history := &stubHistory{seen: true}
	svc, _ := newTestService(history, &stubPolicies{pol: pol}, riskyEval(9.0), DefaultConfig())

	res, err := svc.Run(context.Background(), nil, telemetry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if history.lookups != 0 {
		t.Error("no dedup lookup should happen with a zero window")
	}
	if res.Suppressed || !res.Alert {
		t.Error("with dedup off every result is novel and alerts on risk")
	}
}

func TestRunNegativeDedupeWindowAtomicMode(t *testing.T) {
	pol := policy.Default()
	pol.DedupeWindowMinutes = -5
	history := &stubHistory{conflict: true}
	cfg := DefaultConfig()
	cfg.AtomicInsert = true
	svc, _ := newTestService(history, &stubPolicies{pol: pol}, riskyEval(9.0), cfg)

	res, err := svc.Run(context.Background(), nil, telemetry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if history.uniqueCalls != 0 {
		t.Error("conditional insert must be bypassed when dedup is off")
	}
	if len(history.created) != 1 {
		t.Fatalf("expected a plain insert, got %d records", len(history.created))
	}
	if res.Suppressed || !res.Alert {
		t.Error("with dedup off the result must alert unsuppressed")
	}
}

// Known limitation of lookup mode: two submissions with the same signature
// can both pass the history lookup before either insert lands, and both
// alert. The stub models that interleaving by never reflecting inserts back
// into the lookup. Atomic mode (TestRunAtomicModeConflictSuppresses) is the
// opt-in guard against this.
func TestRunLookupModeRaceBothAlert(t *testing.T) {
	history := &stubHistory{}
	svc, _ := newTestService(history, &stubPolicies{pol: policy.Default()}, riskyEval(9.0), DefaultConfig())

	first, err := svc.Run(context.Background(), nil, telemetry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := svc.Run(context.Background(), nil, telemetry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if first.Signature != second.Signature {
		t.Fatal("identical telemetry must produce identical signatures")
	}
	if !first.Alert || !second.Alert {
		t.Error("both racing submissions alert when neither lookup sees the other")
	}
	if len(history.created) != 2 {
		t.Fatalf("expected both results recorded, got %d", len(history.created))
	}
}

func TestRunUnknownScenario(t *testing.T) {
	history := &stubHistory{}
	svc, _ := newTestService(history, &stubPolicies{pol: policy.Default()}, riskyEval(9.0), DefaultConfig())

	missing := uuid.New()
	_, err := svc.Run(context.Background(), &missing, telemetry())
	if !errors.Is(err, ErrScenarioNotFound) {
		t.Fatalf("expected ErrScenarioNotFound, got %v", err)
	}
	if len(history.created) != 0 {
		t.Error("nothing should be recorded for an unknown scenario")
	}
}

func TestRunKnownScenarioLinksResult(t *testing.T) {
	history := &stubHistory{}
	svc, scenarios := newTestService(history, &stubPolicies{pol: policy.Default()}, riskyEval(2.0), DefaultConfig())
	id := uuid.New()
	scenarios.known[id] = &scenario.Scenario{ID: id, Name: "lateral movement"}

	res, err := svc.Run(context.Background(), &id, telemetry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ScenarioID == nil || *res.ScenarioID != id {
		t.Error("result must reference the evaluated scenario")
	}
}

func TestRunPolicyUnavailable(t *testing.T) {
	history := &stubHistory{}
	svc, _ := newTestService(history, &stubPolicies{err: errors.New("pool closed")}, riskyEval(9.0), DefaultConfig())

	_, err := svc.Run(context.Background(), nil, telemetry())
	if !errors.Is(err, ErrPolicyUnavailable) {
		t.Fatalf("expected ErrPolicyUnavailable, got %v", err)
	}
	if len(history.created) != 0 {
		t.Error("no result should be recorded without a policy")
	}
}

func TestRunCustomThreshold(t *testing.T) {
	pol := policy.Default()
	pol.AlertRiskThreshold = 2.0
	history := &stubHistory{}
	svc, _ := newTestService(history, &stubPolicies{pol: pol}, riskyEval(3.0), DefaultConfig())

	res, err := svc.Run(context.Background(), nil, telemetry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Alert {
		t.Error("risk 3.0 should alert against a lowered threshold of 2.0")
	}
}

func TestRunRecordsDecisionMetrics(t *testing.T) {
	history := &stubHistory{}
	svc, _ := newTestService(history, &stubPolicies{pol: policy.Default()}, riskyEval(9.0), DefaultConfig())

	var gotAlert, gotSuppressed bool
	calls := 0
	svc.SetDecisionRecorder(func(alert, suppressed bool) {
		calls++
		gotAlert, gotSuppressed = alert, suppressed
	})

	if _, err := svc.Run(context.Background(), nil, telemetry()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 decision callback, got %d", calls)
	}
	if !gotAlert || gotSuppressed {
		t.Error("decision callback should see alert=true suppressed=false")
	}
}
