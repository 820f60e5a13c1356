// Package match keeps a derived pair-key index over subscriptions for candidate lookup.
//
// The engine is a cache. The registry's SubscriptionIndex is the system of
// record and the engine can always be rebuilt from it.
package match

import (
	"sort"
	"sync"

	"poolScout/internal/model"
	"poolScout/internal/pair"
	"poolScout/internal/registry"
)

// Engine maps pair keys to subscriptions.
type Engine struct {
	mu     sync.RWMutex
	byPair map[string][]string
	byID   map[string]model.Subscription
}

func NewEngine() *Engine {
	return &Engine{
		byPair: make(map[string][]string),
		byID:   make(map[string]model.Subscription),
	}
}

// Index adds or replaces a subscription.
func (e *Engine) Index(sub model.Subscription) {
	sub = registry.CanonicalSubscription(sub)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.removeLocked(sub.ID)
	e.addLocked(sub)
}

// Remove drops a subscription. Unknown ids are a no-op.
func (e *Engine) Remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(id)
}

// Update applies patch to the indexed copy, re-bucketing it. It fails with
// ErrUnknownSubscription if the id is not indexed.
func (e *Engine) Update(id string, patch model.SubscriptionPatch) (model.Subscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, ok := e.byID[id]
	if !ok {
		return model.Subscription{}, model.NewFieldError(model.ErrUnknownSubscription, "subscription", id, "", "not indexed")
	}
	next := registry.CanonicalSubscription(patch.Apply(prev))
	e.removeLocked(id)
	e.addLocked(next)
	return next.Clone(), nil
}

func (e *Engine) addLocked(sub model.Subscription) {
	key := pair.Key(sub.Pair)
	e.byID[sub.ID] = sub
	e.byPair[key] = append(e.byPair[key], sub.ID)
}

func (e *Engine) removeLocked(id string) {
	sub, ok := e.byID[id]
	if !ok {
		return
	}
	delete(e.byID, id)

	key := pair.Key(sub.Pair)
	ids := e.byPair[key]
	for i, existing := range ids {
		if existing == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(e.byPair, key)
		return
	}
	e.byPair[key] = ids
}

// Candidates returns every active subscription for the pair, before any hook filtering.
func (e *Engine) Candidates(p model.AssetPair) []model.Subscription {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := e.byPair[pair.Key(p)]
	out := make([]model.Subscription, 0, len(ids))
	for _, id := range ids {
		sub := e.byID[id]
		if sub.Active {
			out = append(out, sub.Clone())
		}
	}
	return out
}

// FindCandidates looks up active subscriptions for the pair. With a hook, only
// subscriptions whose non-empty hook filter contains it are kept; subscriptions
// without a filter only answer hook-less queries. An empty hook returns every
// active candidate.
func (e *Engine) FindCandidates(p model.AssetPair, hook string) []model.Subscription {
	candidates := e.Candidates(p)
	if hook == "" {
		return candidates
	}
	out := candidates[:0]
	for _, sub := range candidates {
		if len(sub.Hooks) > 0 && sub.HasHook(hook) {
			out = append(out, sub)
		}
	}
	return out
}

// MatchesHook is the refinement applied to a concrete pool: an empty hook
// filter accepts any pool hook, a non-empty one only the hooks it lists.
func MatchesHook(sub model.Subscription, hook string) bool {
	if len(sub.Hooks) == 0 {
		return true
	}
	return sub.HasHook(hook)
}

// Rebuild replaces the whole index with subs.
func (e *Engine) Rebuild(subs []model.Subscription) {
	byPair := make(map[string][]string, len(subs))
	byID := make(map[string]model.Subscription, len(subs))
	for _, sub := range subs {
		sub = registry.CanonicalSubscription(sub)
		if _, dup := byID[sub.ID]; dup {
			continue
		}
		key := pair.Key(sub.Pair)
		byID[sub.ID] = sub
		byPair[key] = append(byPair[key], sub.ID)
	}

	e.mu.Lock()
	e.byPair = byPair
	e.byID = byID
	e.mu.Unlock()
}

// Snapshot returns the pair key to sorted subscription ids mapping. Two engines
// holding the same subscriptions produce equal snapshots.
func (e *Engine) Snapshot() map[string][]string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string][]string, len(e.byPair))
	for key, ids := range e.byPair {
		sorted := append([]string(nil), ids...)
		sort.Strings(sorted)
		out[key] = sorted
	}
	return out
}

// Get returns the indexed copy of a subscription.
func (e *Engine) Get(id string) (model.Subscription, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sub, ok := e.byID[id]
	if !ok {
		return model.Subscription{}, false
	}
	return sub.Clone(), true
}

// Len returns the number of indexed subscriptions.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.byID)
}
