// Package rounds maintains the current lottery round snapshot.
package rounds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CakeLotto/purchase_layer/internal/app/domain/lottery"
	"github.com/CakeLotto/purchase_layer/internal/app/system"
	"github.com/CakeLotto/purchase_layer/pkg/logger"
)

// ErrNoRound is returned before the first successful round fetch.
var ErrNoRound = errors.New("no round available")

// Source fetches the active round from the lottery contract.
type Source interface {
	ViewCurrentRound(ctx context.Context) (*lottery.RoundPricing, error)
}

var _ system.Service = (*Service)(nil)

// Service caches the latest round pricing snapshot and refreshes it on a
// cron schedule. Pricing parameters are read fresh from the cache on every
// quote; nothing recomputes them locally.
type Service struct {
	source Source
	log    *logger.Logger
	spec   string

	mu      sync.RWMutex
	current *lottery.RoundPricing

	cron    *cron.Cron
	entryID cron.EntryID
	running bool
}

// New creates a round service refreshing on the given cron spec, for example
// "@every 1m".
func New(source Source, spec string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("rounds")
	}
	if spec == "" {
		spec = "@every 1m"
	}
	return &Service{
		source: source,
		log:    log,
		spec:   spec,
	}
}

// Current returns the cached round snapshot.
func (s *Service) Current() (lottery.RoundPricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return lottery.RoundPricing{}, ErrNoRound
	}
	return *s.current, nil
}

// Refresh fetches the round from the source and replaces the cache. A failed
// fetch keeps the previous snapshot.
func (s *Service) Refresh(ctx context.Context) error {
	round, err := s.source.ViewCurrentRound(ctx)
	if err != nil {
		return fmt.Errorf("refresh round: %w", err)
	}
	if round.DiscountDivisor.IsZero() {
		return fmt.Errorf("refresh round: round %s has zero discount divisor", round.RoundID)
	}

	s.mu.Lock()
	s.current = round
	s.mu.Unlock()

	s.log.WithFields(map[string]interface{}{
		"round_id": round.RoundID,
		"status":   string(round.Status),
	}).Debug("round snapshot refreshed")
	return nil
}

func (s *Service) Name() string { return "rounds" }

// Start performs an initial fetch and schedules periodic refreshes. A failed
// initial fetch is logged, not fatal: the scheduler retries.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.cron = cron.New()
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		s.log.WithError(err).Warn("initial round fetch failed")
	}

	entryID, err := s.cron.AddFunc(s.spec, func() {
		tickCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Refresh(tickCtx); err != nil {
			s.log.WithError(err).Warn("scheduled round refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule round refresh: %w", err)
	}

	s.mu.Lock()
	s.entryID = entryID
	s.mu.Unlock()

	s.cron.Start()
	s.log.Infof("round refresher started (%s)", s.spec)
	return nil
}

// Stop halts the refresh schedule and waits for an in-flight refresh.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("round refresher stopped")
	return nil
}
