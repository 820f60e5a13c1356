package registry

import (
	"sort"
	"strings"
	"sync"

	"poolScout/internal/model"
	"poolScout/internal/pair"
)

// SubscriptionIndex stores subscriptions by id, variable type and pair, and
// owns the pool/subscription link table.
type SubscriptionIndex struct {
	mu         sync.RWMutex
	byID       map[string]model.Subscription
	byType     map[string]idSet
	byPair     map[string]idSet
	poolsBySub map[string]idSet
	subsByPool map[string]idSet
}

func NewSubscriptionIndex() *SubscriptionIndex {
	return &SubscriptionIndex{
		byID:       make(map[string]model.Subscription),
		byType:     make(map[string]idSet),
		byPair:     make(map[string]idSet),
		poolsBySub: make(map[string]idSet),
		subsByPool: make(map[string]idSet),
	}
}

// CanonicalSubscription normalizes the pair and hook filter of sub.
func CanonicalSubscription(sub model.Subscription) model.Subscription {
	sub = sub.Clone()
	sub.ID = strings.TrimSpace(sub.ID)
	sub.Pair = pair.Canonical(sub.Pair)
	for i, hook := range sub.Hooks {
		sub.Hooks[i] = pair.NormalizeAsset(hook)
	}
	return sub
}

// ValidateSubscription checks a canonical subscription.
func ValidateSubscription(sub model.Subscription) error {
	invalid := func(field, reason string) error {
		return model.NewFieldError(model.ErrInvalidSubscription, "subscription", sub.ID, field, reason)
	}
	if sub.ID == "" {
		return invalid("id", "empty")
	}
	if sub.Pair.Asset0 == "" || sub.Pair.Asset1 == "" {
		return invalid("pair", "missing asset")
	}
	if sub.Pair.Asset0 == sub.Pair.Asset1 {
		return invalid("pair", "identical assets")
	}
	if !pair.IsValid(sub.Pair) {
		return invalid("pair", "malformed asset")
	}
	for _, hook := range sub.Hooks {
		if !pair.IsValidAsset(hook) {
			return invalid("hooks", "malformed hook "+hook)
		}
	}
	return nil
}

// Register adds a subscription. It fails with ErrDuplicateSubscription on a
// repeated id and ErrInvalidSubscription on malformed fields.
func (x *SubscriptionIndex) Register(sub model.Subscription) error {
	sub = CanonicalSubscription(sub)
	if err := ValidateSubscription(sub); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.byID[sub.ID]; exists {
		return model.NewFieldError(model.ErrDuplicateSubscription, "subscription", sub.ID, "", "already registered")
	}
	x.insertLocked(sub)
	return nil
}

func (x *SubscriptionIndex) insertLocked(sub model.Subscription) {
	x.byID[sub.ID] = sub
	addTo(x.byType, sub.VariableType, sub.ID)
	addTo(x.byPair, pair.Key(sub.Pair), sub.ID)
}

func (x *SubscriptionIndex) deleteLocked(id string) (model.Subscription, bool) {
	sub, ok := x.byID[id]
	if !ok {
		return model.Subscription{}, false
	}
	delete(x.byID, id)
	removeFrom(x.byType, sub.VariableType, id)
	removeFrom(x.byPair, pair.Key(sub.Pair), id)
	return sub, true
}

// Unregister removes a subscription and every link to it. Unknown ids are a no-op.
func (x *SubscriptionIndex) Unregister(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.deleteLocked(id); !ok {
		return
	}
	for poolID := range x.poolsBySub[id] {
		removeFrom(x.subsByPool, poolID, id)
	}
	delete(x.poolsBySub, id)
}

// Update merges patch into the subscription by removing and re-inserting it so
// every derived index is rebuilt. Links are kept. On validation failure the
// previous subscription is restored.
func (x *SubscriptionIndex) Update(id string, patch model.SubscriptionPatch) (model.Subscription, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	prev, ok := x.deleteLocked(id)
	if !ok {
		return model.Subscription{}, model.NewFieldError(model.ErrUnknownSubscription, "subscription", id, "", "")
	}

	next := CanonicalSubscription(patch.Apply(prev))
	if err := ValidateSubscription(next); err != nil {
		x.insertLocked(prev)
		return model.Subscription{}, err
	}
	x.insertLocked(next)
	return next.Clone(), nil
}

// SetActive toggles the active flag.
func (x *SubscriptionIndex) SetActive(id string, active bool) (model.Subscription, error) {
	return x.Update(id, model.SubscriptionPatch{Active: &active})
}

// LinkPool records that poolID matched subscription subID. Repeated links are a no-op.
func (x *SubscriptionIndex) LinkPool(poolID, subID string) error {
	poolID = NormalizePoolID(poolID)

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.byID[subID]; !ok {
		return model.NewFieldError(model.ErrUnknownSubscription, "subscription", subID, "", "cannot link pool "+poolID)
	}
	addTo(x.poolsBySub, subID, poolID)
	addTo(x.subsByPool, poolID, subID)
	return nil
}

// UnlinkPool removes a single link if present.
func (x *SubscriptionIndex) UnlinkPool(poolID, subID string) {
	poolID = NormalizePoolID(poolID)

	x.mu.Lock()
	defer x.mu.Unlock()

	removeFrom(x.poolsBySub, subID, poolID)
	removeFrom(x.subsByPool, poolID, subID)
}

// PoolsFor returns the ids of pools linked to the subscription, sorted.
func (x *SubscriptionIndex) PoolsFor(subID string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	ids := make([]string, 0, len(x.poolsBySub[subID]))
	for id := range x.poolsBySub[subID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SubscriptionsFor returns the subscriptions linked to the pool.
func (x *SubscriptionIndex) SubscriptionsFor(poolID string, filter model.ActiveFilter) []model.Subscription {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collect(x.subsByPool[NormalizePoolID(poolID)], filter)
}

// Get returns the subscription with the given id.
func (x *SubscriptionIndex) Get(id string) (model.Subscription, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	sub, ok := x.byID[id]
	if !ok {
		return model.Subscription{}, false
	}
	return sub.Clone(), true
}

// List returns every subscription passing filter.
func (x *SubscriptionIndex) List(filter model.ActiveFilter) []model.Subscription {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]model.Subscription, 0, len(x.byID))
	for _, sub := range x.byID {
		if filter.Accepts(sub.Active) {
			out = append(out, sub.Clone())
		}
	}
	sortSubscriptions(out)
	return out
}

// ByType returns subscriptions with the given variable type.
func (x *SubscriptionIndex) ByType(variableType string, filter model.ActiveFilter) []model.Subscription {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collect(x.byType[variableType], filter)
}

// ByPair returns subscriptions interested in the pair.
func (x *SubscriptionIndex) ByPair(p model.AssetPair, filter model.ActiveFilter) []model.Subscription {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collect(x.byPair[pair.Key(p)], filter)
}

// Counts summarizes subscriptions and links.
func (x *SubscriptionIndex) Counts() model.SubscriptionCounts {
	x.mu.RLock()
	defer x.mu.RUnlock()

	counts := model.SubscriptionCounts{
		Total:  len(x.byID),
		ByType: make(map[string]int, len(x.byType)),
	}
	for _, sub := range x.byID {
		if sub.Active {
			counts.Active++
		}
	}
	for variableType, ids := range x.byType {
		counts.ByType[variableType] = len(ids)
	}
	for _, pools := range x.poolsBySub {
		counts.Links += len(pools)
	}
	return counts
}

// LinkedPoolIDs returns every pool id that has at least one link.
func (x *SubscriptionIndex) LinkedPoolIDs() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	ids := make([]string, 0, len(x.subsByPool))
	for id := range x.subsByPool {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (x *SubscriptionIndex) collect(ids idSet, filter model.ActiveFilter) []model.Subscription {
	out := make([]model.Subscription, 0, len(ids))
	for id := range ids {
		sub, ok := x.byID[id]
		if !ok || !filter.Accepts(sub.Active) {
			continue
		}
		out = append(out, sub.Clone())
	}
	sortSubscriptions(out)
	return out
}

func sortSubscriptions(subs []model.Subscription) {
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].CreatedAt.Before(subs[j].CreatedAt)
		}
		return subs[i].ID < subs[j].ID
	})
}
