// internal/domain/pricing/service.go
package pricing

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/configurator-backend/internal/config"
	"golang.org/x/sync/singleflight"
)

// Service prices configurable items. It prefers the remote pricing service,
// caches its answers, and falls back to the local estimator on any failure.
type Service struct {
	remote Remote
	cache  *resultCache
	sfg    singleflight.Group // one remote call per identical configuration
	logger *logrus.Logger
}

// Options tunes a Service beyond what config provides
type Options struct {
	Now func() time.Time
}

// NewService creates a new pricing facade
func NewService(cfg *config.Config, remote Remote, logger *logrus.Logger, opts Options) *Service {
	return &Service{
		remote: remote,
		cache:  newResultCache(cfg.Pricing.CacheTTL, cfg.Pricing.CacheCapacity, opts.Now),
		logger: logger,
	}
}

// CalculatePriceUniversal returns a price for the configuration. It never
// fails: remote errors degrade to the local estimate.
func (s *Service) CalculatePriceUniversal(ctx context.Context, req Request) Result {
	req = req.Normalize()
	key := req.CacheKey()

	if cached, ok := s.cache.get(key); ok {
		s.logger.WithField("key", key).Debug("Using cached price")
		cached.Source = SourceCache
		return cached
	}

	if s.remote != nil {
		v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
			result, err := s.remote.Calculate(ctx, req)
			if err != nil {
				return Result{}, err
			}
			s.cache.set(key, result)
			return result, nil
		})
		if err == nil {
			return v.(Result)
		}

		s.logger.WithFields(logrus.Fields{
			"key":   key,
			"error": err.Error(),
		}).Warn("Remote pricing failed, using local estimate")
	}

	return Estimate(req)
}

// ClearCache drops every cached remote price
func (s *Service) ClearCache() {
	s.cache.clear()
	s.logger.Info("Price cache cleared")
}

// CacheStats reports the live cache entries
func (s *Service) CacheStats() CacheStats {
	return s.cache.stats()
}
