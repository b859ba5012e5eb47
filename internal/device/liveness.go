package device

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// staleMarker flips stale devices offline and reports fleet composition.
// *Repository satisfies this.
type staleMarker interface {
	MarkStaleOffline(ctx context.Context, cutoff time.Time) (int, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// SweepMetricsFunc is an optional callback recording how many devices a
// sweep marked offline.
type SweepMetricsFunc func(marked int)

// StatusGaugeFunc is an optional callback publishing the per-status device
// count after each sweep.
type StatusGaugeFunc func(status string, count float64)

// OfflineNotifier receives an event when a sweep marks devices offline.
type OfflineNotifier interface {
	Dispatch(ctx context.Context, eventType string, payload map[string]string)
}

// SweeperConfig holds liveness sweep configuration.
type SweeperConfig struct {
	// SweepInterval is how often the sweep runs (default 1 minute).
	SweepInterval time.Duration
	// OfflineAfter is how long a device may stay silent before it is
	// marked offline (default 10 minutes).
	OfflineAfter time.Duration
}

// Sweeper periodically marks silent devices offline. Telemetry submissions
// reactivate them via Service.Authenticate.
type Sweeper struct {
	repo      staleMarker
	cfg       SweeperConfig
	onMetrics SweepMetricsFunc
	onGauge   StatusGaugeFunc
	notifier  OfflineNotifier
	logger    *zap.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(repo staleMarker, cfg SweeperConfig, logger *zap.Logger) *Sweeper {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.OfflineAfter == 0 {
		cfg.OfflineAfter = 10 * time.Minute
	}
	return &Sweeper{repo: repo, cfg: cfg, logger: logger}
}

// SetMetricsRecorder configures the metrics callback.
func (s *Sweeper) SetMetricsRecorder(fn SweepMetricsFunc) {
	s.onMetrics = fn
}

// SetStatusGaugeRecorder configures the per-status device count callback.
func (s *Sweeper) SetStatusGaugeRecorder(fn StatusGaugeFunc) {
	s.onGauge = fn
}

// SetNotifier configures the offline event notifier.
func (s *Sweeper) SetNotifier(n OfflineNotifier) {
	s.notifier = n
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// sweep performs one pass.
func (s *Sweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.cfg.OfflineAfter)
	marked, err := s.repo.MarkStaleOffline(sweepCtx, cutoff)
	if err != nil {
		s.logger.Warn("device liveness sweep failed", zap.Error(err))
		return
	}
	if marked > 0 {
		s.logger.Info("devices marked offline", zap.Int("count", marked))
		if s.notifier != nil {
			s.notifier.Dispatch(sweepCtx, "device.offline", map[string]string{
				"count":  strconv.Itoa(marked),
				"cutoff": cutoff.Format(time.RFC3339),
			})
		}
	}
	if s.onMetrics != nil {
		s.onMetrics(marked)
	}
	s.refreshGauge(sweepCtx)
}

// refreshGauge publishes the current fleet composition. Statuses with no
// devices are reported as zero so the gauge does not go stale.
func (s *Sweeper) refreshGauge(ctx context.Context) {
	if s.onGauge == nil {
		return
	}
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Warn("device status count failed", zap.Error(err))
		return
	}
	for _, status := range []Status{StatusActive, StatusOffline, StatusRevoked} {
		s.onGauge(string(status), float64(counts[status]))
	}
}
