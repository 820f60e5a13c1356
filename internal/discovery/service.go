// Package discovery matches newly created pools against standing subscriptions.
package discovery

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poolScout/internal/match"
	"poolScout/internal/model"
	"poolScout/internal/registry"
)

// Service composes the pool index, the subscription index and the match engine.
// Compound mutations hold mu for their whole duration so partial results are
// never visible to readers.
type Service struct {
	mu     sync.RWMutex
	pools  *registry.PoolIndex
	subs   *registry.SubscriptionIndex
	engine *match.Engine
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a Service over existing indices.
func NewService(pools *registry.PoolIndex, subs *registry.SubscriptionIndex, engine *match.Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pools:  pools,
		subs:   subs,
		engine: engine,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ProcessCreationEvent extracts the pool from event, finds matching
// subscriptions and, when there is at least one, registers the pool and links
// it. It returns nil without registering anything when nothing matches.
func (s *Service) ProcessCreationEvent(event model.CreationEvent) (*model.MatchResult, error) {
	pool, err := ExtractPool(event)
	if err != nil {
		s.logger.Debug("event rejected", zap.String("pool_id", event.PoolID), zap.Error(err))
		return nil, err
	}
	log := s.logger.With(zap.String("pool_id", pool.ID))
	log.Debug("pool extracted", zap.String("asset0", pool.Pair.Asset0), zap.String("asset1", pool.Pair.Asset1), zap.String("hook", pool.Hook))

	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.engine.Candidates(pool.Pair)
	matched := make([]model.Subscription, 0, len(candidates))
	for _, sub := range candidates {
		if match.MatchesHook(sub, pool.Hook) {
			matched = append(matched, sub)
		}
	}
	log.Debug("candidates matched", zap.Int("candidates", len(candidates)), zap.Int("matched", len(matched)))

	if len(matched) == 0 {
		return nil, nil
	}

	if err := s.pools.Register(pool); err != nil {
		log.Debug("pool registration failed", zap.Error(err))
		return nil, fmt.Errorf("register pool: %w", err)
	}

	linked := make([]string, 0, len(matched))
	for _, sub := range matched {
		if err := s.subs.LinkPool(pool.ID, sub.ID); err != nil {
			s.rollback(pool.ID, linked)
			log.Warn("link failed, registration rolled back", zap.String("subscription_id", sub.ID), zap.Error(err))
			return nil, fmt.Errorf("link pool: %w", err)
		}
		linked = append(linked, sub.ID)
	}

	stored, _ := s.pools.Get(pool.ID)
	sortByCreation(matched)
	log.Info("pool matched", zap.Strings("subscriptions", linked), zap.Uint64("block_number", pool.BlockNumber))

	return &model.MatchResult{Pool: stored, Subscriptions: matched}, nil
}

func (s *Service) rollback(poolID string, linked []string) {
	for _, subID := range linked {
		s.subs.UnlinkPool(poolID, subID)
	}
	s.pools.Remove(poolID)
}

// RegisterSubscription stores a subscription and indexes it for matching. A
// missing id is generated.
func (s *Service) RegisterSubscription(req model.SubscriptionRequest) (model.Subscription, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	sub := model.Subscription{
		ID:           id,
		VariableType: req.VariableType,
		Pair:         model.AssetPair{Asset0: req.Asset0, Asset1: req.Asset1},
		Parameters:   req.Parameters,
		Hooks:        req.Hooks,
		CreatedAt:    s.now(),
		Active:       !req.Inactive,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.subs.Register(sub); err != nil {
		return model.Subscription{}, err
	}
	stored, _ := s.subs.Get(id)
	s.engine.Index(stored)

	s.logger.Info("subscription registered",
		zap.String("subscription_id", id),
		zap.String("variable_type", stored.VariableType),
		zap.String("asset0", stored.Pair.Asset0),
		zap.String("asset1", stored.Pair.Asset1),
		zap.Int("hooks", len(stored.Hooks)),
	)
	return stored, nil
}

// UnregisterSubscription removes a subscription, its links and its match entry.
// It reports whether the subscription existed.
func (s *Service) UnregisterSubscription(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.subs.Get(id)
	s.subs.Unregister(id)
	s.engine.Remove(id)
	if existed {
		s.logger.Info("subscription unregistered", zap.String("subscription_id", id))
	}
	return existed
}

// UpdateSubscription applies patch to the subscription and its match entry.
func (s *Service) UpdateSubscription(id string, patch model.SubscriptionPatch) (model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.subs.Update(id, patch)
	if err != nil {
		return model.Subscription{}, err
	}
	if _, err := s.engine.Update(id, patch); err != nil {
		s.logger.Warn("match index missing subscription, reindexing", zap.String("subscription_id", id))
		s.engine.Index(updated)
	}
	return updated, nil
}

// SetSubscriptionActive toggles whether a subscription takes part in matching.
func (s *Service) SetSubscriptionActive(id string, active bool) (model.Subscription, error) {
	return s.UpdateSubscription(id, model.SubscriptionPatch{Active: &active})
}

// GetSubscription returns a subscription by id.
func (s *Service) GetSubscription(id string) (model.Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subs.Get(id)
}

// ListSubscriptions returns subscriptions passing filter.
func (s *Service) ListSubscriptions(filter model.ActiveFilter) []model.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subs.List(filter)
}

// GetPool returns a registered pool by id.
func (s *Service) GetPool(id string) (model.PoolInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pools.Get(id)
}

// PoolsForSubscription returns the pools linked to a subscription.
func (s *Service) PoolsForSubscription(subID string) ([]model.PoolInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.subs.Get(subID); !ok {
		return nil, model.NewFieldError(model.ErrUnknownSubscription, "subscription", subID, "", "")
	}
	ids := s.subs.PoolsFor(subID)
	out := make([]model.PoolInfo, 0, len(ids))
	for _, id := range ids {
		if pool, ok := s.pools.Get(id); ok {
			out = append(out, pool)
		}
	}
	return out, nil
}

// SubscriptionsForPool returns the subscriptions linked to a pool.
func (s *Service) SubscriptionsForPool(poolID string, filter model.ActiveFilter) ([]model.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.pools.Get(poolID); !ok {
		return nil, model.NewFieldError(model.ErrUnknownPool, "pool", poolID, "", "")
	}
	return s.subs.SubscriptionsFor(poolID, filter), nil
}

// SearchPools filters registered pools.
func (s *Service) SearchPools(criteria model.PoolCriteria) []model.PoolInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pools.Query(criteria)
}

// ServiceStats summarizes pools, subscriptions and the match index.
func (s *Service) ServiceStats() model.ServiceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.ServiceStats{
		Pools:         s.pools.Stats(),
		Subscriptions: s.subs.Counts(),
		MatchIndexed:  s.engine.Len(),
	}
}

// HealthCheck verifies that the match index agrees with the subscription index
// and that every link points at a registered pool.
func (s *Service) HealthCheck() model.HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := s.subs.Counts()
	status := model.HealthStatus{
		PoolCount:               s.pools.Len(),
		SubscriptionCount:       counts.Total,
		ActiveSubscriptionCount: counts.Active,
		Errors:                  []string{},
	}

	if indexed := s.engine.Len(); indexed != counts.Total {
		status.Errors = append(status.Errors, fmt.Sprintf("match index holds %d subscriptions, registry holds %d", indexed, counts.Total))
	}
	expected := match.NewEngine()
	expected.Rebuild(s.subs.List(model.FilterAll))
	if !sameSnapshot(expected.Snapshot(), s.engine.Snapshot()) {
		status.Errors = append(status.Errors, "match index out of sync with subscription registry")
	}
	for _, poolID := range s.subs.LinkedPoolIDs() {
		if _, ok := s.pools.Get(poolID); !ok {
			status.Errors = append(status.Errors, fmt.Sprintf("link references unknown pool %s", poolID))
		}
	}

	status.Healthy = len(status.Errors) == 0
	return status
}

// RebuildMatchIndex reloads the match engine from the subscription index and
// returns the number of indexed subscriptions.
func (s *Service) RebuildMatchIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine.Rebuild(s.subs.List(model.FilterAll))
	n := s.engine.Len()
	s.logger.Info("match index rebuilt", zap.Int("subscriptions", n))
	return n
}

func sameSnapshot(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for key, ids := range a {
		other, ok := b[key]
		if !ok || len(other) != len(ids) {
			return false
		}
		for i := range ids {
			if ids[i] != other[i] {
				return false
			}
		}
	}
	return true
}

func sortByCreation(subs []model.Subscription) {
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].CreatedAt.Before(subs[j].CreatedAt)
		}
		return subs[i].ID < subs[j].ID
	})
}
