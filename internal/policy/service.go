package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// store is the persistence interface for the policy service.
// *Repository satisfies this interface.
type store interface {
	Get(ctx context.Context) (*Policy, error)
	Upsert(ctx context.Context, p *Policy) error
}

// Service resolves and updates the deployment policy. Reads go through a
// short-TTL cache; Update writes through and invalidates it.
type Service struct {
	repo   store
	cache  *cache
	logger *zap.Logger
}

// NewService creates a policy Service. cacheTTL bounds how stale a cached
// read may be; zero disables caching.
func NewService(repo store, cacheTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  newCache(cacheTTL),
		logger: logger,
	}
}

// Resolve returns the active policy. When no policy row exists yet, the
// documented defaults are persisted first and then returned, so every caller
// observes the same stored value. Any other store error is surfaced as-is:
// evaluation must not silently run against stale defaults.
func (s *Service) Resolve(ctx context.Context) (*Policy, error) {
	if p := s.cache.get(); p != nil {
		return p, nil
	}

	p, err := s.repo.Get(ctx)
	if errors.Is(err, ErrNotFound) {
		p = Default()
		if err := s.repo.Upsert(ctx, p); err != nil {
			return nil, fmt.Errorf("persist default policy: %w", err)
		}
		s.logger.Info("created default policy")
	} else if err != nil {
		return nil, fmt.Errorf("resolve policy: %w", err)
	}

	s.cache.set(p)
	return p, nil
}

// Update overwrites the stored policy and invalidates the read cache.
func (s *Service) Update(ctx context.Context, p *Policy) error {
	if err := s.repo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	s.cache.invalidate()
	s.logger.Info("policy updated",
		zap.Int("allow_domains", len(p.AllowDomains)),
		zap.Int("allow_processes", len(p.AllowProcesses)),
		zap.Int("allow_paths", len(p.AllowPaths)),
		zap.Float64("alert_risk_threshold", p.AlertRiskThreshold),
	)
	return nil
}
