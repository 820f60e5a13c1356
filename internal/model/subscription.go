package model

import (
	"strings"
	"time"
)

// Subscription is a standing interest in new pools for one asset pair.
type Subscription struct {
	ID           string         `json:"id"`
	VariableType string         `json:"variable_type"`
	Pair         AssetPair      `json:"pair"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Hooks        []string       `json:"hooks,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Active       bool           `json:"active"`
}

// Clone returns a deep copy so stored subscriptions never alias caller data.
func (s Subscription) Clone() Subscription {
	out := s
	if s.Parameters != nil {
		out.Parameters = make(map[string]any, len(s.Parameters))
		for k, v := range s.Parameters {
			out.Parameters[k] = v
		}
	}
	if s.Hooks != nil {
		out.Hooks = append([]string(nil), s.Hooks...)
	}
	return out
}

// HasHook reports whether hook is in the subscription's hook filter.
func (s Subscription) HasHook(hook string) bool {
	for _, h := range s.Hooks {
		if strings.EqualFold(h, hook) {
			return true
		}
	}
	return false
}

// SubscriptionRequest is the inbound registration shape. ID is optional.
type SubscriptionRequest struct {
	ID           string         `json:"id,omitempty" yaml:"id"`
	VariableType string         `json:"variable_type" yaml:"variable_type"`
	Asset0       string         `json:"asset0" yaml:"asset0"`
	Asset1       string         `json:"asset1" yaml:"asset1"`
	Parameters   map[string]any `json:"parameters,omitempty" yaml:"parameters"`
	Hooks        []string       `json:"hooks,omitempty" yaml:"hooks"`
	Inactive     bool           `json:"inactive,omitempty" yaml:"inactive"`
}

// SubscriptionPatch carries the fields to change on update. Nil fields are kept.
type SubscriptionPatch struct {
	VariableType *string
	Pair         *AssetPair
	Parameters   map[string]any
	Hooks        *[]string
	Active       *bool
}

// Apply returns a copy of sub with the patch applied. ID and CreatedAt never change.
func (p SubscriptionPatch) Apply(sub Subscription) Subscription {
	out := sub.Clone()
	if p.VariableType != nil {
		out.VariableType = *p.VariableType
	}
	if p.Pair != nil {
		out.Pair = *p.Pair
	}
	if p.Parameters != nil {
		out.Parameters = make(map[string]any, len(p.Parameters))
		for k, v := range p.Parameters {
			out.Parameters[k] = v
		}
	}
	if p.Hooks != nil {
		out.Hooks = append([]string(nil), (*p.Hooks)...)
	}
	if p.Active != nil {
		out.Active = *p.Active
	}
	return out
}

// ActiveFilter selects subscriptions by their active flag.
type ActiveFilter int

const (
	FilterAll ActiveFilter = iota
	FilterActive
	FilterInactive
)

// Accepts reports whether a subscription with the given flag passes the filter.
func (f ActiveFilter) Accepts(active bool) bool {
	switch f {
	case FilterActive:
		return active
	case FilterInactive:
		return !active
	default:
		return true
	}
}
