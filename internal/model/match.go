package model

// MatchResult is a newly registered pool and the subscriptions it matched.
type MatchResult struct {
	Pool          PoolInfo       `json:"pool"`
	Subscriptions []Subscription `json:"subscriptions"`
}

// SubscriptionIDs returns the matched subscription ids in result order.
func (m MatchResult) SubscriptionIDs() []string {
	ids := make([]string, 0, len(m.Subscriptions))
	for _, sub := range m.Subscriptions {
		ids = append(ids, sub.ID)
	}
	return ids
}

// SubscriptionCounts summarizes the subscription index.
type SubscriptionCounts struct {
	Total  int            `json:"total"`
	Active int            `json:"active"`
	Links  int            `json:"links"`
	ByType map[string]int `json:"by_type"`
}

// ServiceStats aggregates pool and subscription statistics.
type ServiceStats struct {
	Pools         PoolStats          `json:"pools"`
	Subscriptions SubscriptionCounts `json:"subscriptions"`
	MatchIndexed  int                `json:"match_indexed"`
}

// HealthStatus is the outcome of a service health check.
type HealthStatus struct {
	Healthy                 bool     `json:"healthy"`
	PoolCount               int      `json:"pool_count"`
	SubscriptionCount       int      `json:"subscription_count"`
	ActiveSubscriptionCount int      `json:"active_subscription_count"`
	Errors                  []string `json:"errors"`
}
