package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentrylab/aegis/internal/analysis"
	"github.com/sentrylab/aegis/internal/policy"
	"github.com/sentrylab/aegis/internal/scenario"
)

var (
	// ErrScenarioNotFound is returned when the referenced scenario does not exist.
	ErrScenarioNotFound = errors.New("scenario not found")
	// ErrPolicyUnavailable is returned when the effective policy cannot be resolved.
	ErrPolicyUnavailable = errors.New("policy unavailable")
)

// scenarioStore is the subset of the scenario repository the service needs.
type scenarioStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scenario.Scenario, error)
}

// policyResolver yields the current effective policy.
type policyResolver interface {
	Resolve(ctx context.Context) (*policy.Policy, error)
}

// historyStore is the simulation history the service reads and appends to.
type historyStore interface {
	Create(ctx context.Context, res *Result) error
	CreateUnique(ctx context.Context, res *Result) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Result, error)
	List(ctx context.Context, limit, offset int) ([]*Result, error)
	HasRecentSignature(ctx context.Context, signature, deviceID string, since time.Time) (bool, error)
}

// AlertNotifier fans a decision out to subscribed channels.
type AlertNotifier interface {
	Dispatch(ctx context.Context, eventType string, payload map[string]string)
}

// MultiNotifier fans one Dispatch out to several channels.
type MultiNotifier []AlertNotifier

// Dispatch forwards the event to each channel in order.
func (m MultiNotifier) Dispatch(ctx context.Context, eventType string, payload map[string]string) {
	for _, n := range m {
		n.Dispatch(ctx, eventType, payload)
	}
}

// DecisionMetricsFunc records the outcome of one evaluation.
type DecisionMetricsFunc func(alert, suppressed bool)

// Config tunes the evaluation pipeline.
type Config struct {
	// LookupTimeout bounds the dedup history lookup. A lookup that errors
	// or times out fails open: the result is treated as novel.
	LookupTimeout time.Duration
	// AtomicInsert switches novelty detection from the read-then-write
	// lookup to a conditional insert against the per-window unique index.
	AtomicInsert bool
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{LookupTimeout: 3 * time.Second}
}

// Service runs telemetry through the rule engine and records the decision.
type Service struct {
	engine    analysis.Evaluator
	scenarios scenarioStore
	policies  policyResolver
	history   historyStore
	notifier  AlertNotifier
	cfg       Config
	logger    *zap.Logger

	onDecision      DecisionMetricsFunc
	onLookupFailure func()
	now             func() time.Time
}

// NewService creates a simulation Service.
func NewService(engine analysis.Evaluator, scenarios scenarioStore, policies policyResolver, history historyStore, cfg Config, logger *zap.Logger) *Service {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultConfig().LookupTimeout
	}
	return &Service{
		engine:    engine,
		scenarios: scenarios,
		policies:  policies,
		history:   history,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier attaches an alert notifier. Without one, decisions are only persisted.
func (s *Service) SetNotifier(n AlertNotifier) {
	s.notifier = n
}

// SetDecisionRecorder attaches a metrics callback invoked once per evaluation.
func (s *Service) SetDecisionRecorder(fn DecisionMetricsFunc) {
	s.onDecision = fn
}

// SetLookupFailureRecorder attaches a metrics callback for failed dedup lookups.
func (s *Service) SetLookupFailureRecorder(fn func()) {
	s.onLookupFailure = fn
}

// Run evaluates telemetry under the current policy, decides suppression and
// alerting, and appends the result to the history. scenarioID may be nil for
// raw telemetry submissions that are not tied to a stored scenario.
func (s *Service) Run(ctx context.Context, scenarioID *uuid.UUID, t *analysis.Telemetry) (*Result, error) {
	if scenarioID != nil {
		if _, err := s.scenarios.GetByID(ctx, *scenarioID); err != nil {
			if errors.Is(err, scenario.ErrNotFound) {
				return nil, ErrScenarioNotFound
			}
			return nil, fmt.Errorf("load scenario: %w", err)
		}
	}

	pol, err := s.policies.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyUnavailable, err)
	}

	now := s.now()
	eval := s.engine.Evaluate(t, pol)
	sig := analysis.Signature(t.DeviceID, eval.Indicators)
	window := pol.DedupeWindow()

	res := &Result{
		ID:              uuid.New(),
		ScenarioID:      scenarioID,
		DeviceID:        t.DeviceID,
		StartedAt:       now,
		RiskScore:       eval.RiskScore,
		Indicators:      eval.Indicators,
		Recommendations: eval.Recommendations,
		Timeline:        eval.Timeline,
		BlockedActions:  eval.BlockedActions,
		Confidence:      eval.Confidence,
		Signature:       sig,
	}
	if window > 0 {
		res.windowBucket = now.Unix() / int64(window.Seconds())
	}

	if s.cfg.AtomicInsert {
		err = s.persistAtomic(ctx, res, pol, window)
	} else {
		err = s.persistLookup(ctx, res, pol, window)
	}
	if err != nil {
		return nil, err
	}

	if s.onDecision != nil {
		s.onDecision(res.Alert, res.Suppressed)
	}
	if res.Alert {
		s.notifyAlert(res)
	}
	return res, nil
}

// persistLookup is the default path: check the window for an equivalent
// outcome, then write. The check and the write are not atomic, so two
// concurrent evaluations of the same signature can both alert; the atomic
// insert mode closes that gap.
func (s *Service) persistLookup(ctx context.Context, res *Result, pol *policy.Policy, window time.Duration) error {
	seen := false
	// A non-positive window means dedup is off: every result is novel.
	if window > 0 {
		lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
		defer cancel()

		var err error
		seen, err = s.history.HasRecentSignature(lookupCtx, res.Signature, res.DeviceID, res.StartedAt.Add(-window))
		if err != nil {
			// Fail open: an unreachable history must not swallow a live detection.
			s.logger.Warn("dedup lookup failed, treating result as novel",
				zap.String("device_id", res.DeviceID),
				zap.Error(err))
			if s.onLookupFailure != nil {
				s.onLookupFailure()
			}
			seen = false
		}
	}
	res.Suppressed = seen
	res.Alert = res.RiskScore >= pol.AlertRiskThreshold && !res.Suppressed

	if err := s.history.Create(ctx, res); err != nil {
		return fmt.Errorf("record simulation: %w", err)
	}
	return nil
}

// persistAtomic inserts against the partial unique index on
// (device_id, signature, window_bucket). A conflict means an equivalent
// unsuppressed result already landed in this window, so the result is
// re-recorded as suppressed.
func (s *Service) persistAtomic(ctx context.Context, res *Result, pol *policy.Policy, window time.Duration) error {
	res.Alert = res.RiskScore >= pol.AlertRiskThreshold
	if window <= 0 {
		// Dedup off: a shared zero bucket must not pin the unique index.
		if err := s.history.Create(ctx, res); err != nil {
			return fmt.Errorf("record simulation: %w", err)
		}
		return nil
	}
	conflict, err := s.history.CreateUnique(ctx, res)
	if err != nil {
		return fmt.Errorf("record simulation: %w", err)
	}
	if !conflict {
		return nil
	}

	res.Suppressed = true
	res.Alert = false
	if err := s.history.Create(ctx, res); err != nil {
		return fmt.Errorf("record suppressed simulation: %w", err)
	}
	return nil
}

func (s *Service) notifyAlert(res *Result) {
	if s.notifier == nil {
		return
	}
	payload := map[string]string{
		"simulation_id": res.ID.String(),
		"device_id":     res.DeviceID,
		"risk_score":    fmt.Sprintf("%.2f", res.RiskScore),
		"confidence":    fmt.Sprintf("%.2f", res.Confidence),
		"signature":     res.Signature,
		"started_at":    res.StartedAt.Format(time.RFC3339),
	}
	if res.ScenarioID != nil {
		payload["scenario_id"] = res.ScenarioID.String()
	}
	// Delivery runs on its own context so a slow subscriber cannot block
	// or cancel the request that produced the alert.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.notifier.Dispatch(ctx, "simulation.alert", payload)
	}()
}

// GetByID returns a recorded result.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Result, error) {
	res, err := s.history.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

// List returns recorded results newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Result, error) {
	return s.history.List(ctx, limit, offset)
}
