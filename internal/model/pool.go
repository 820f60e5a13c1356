package model

// AssetPair is the two assets a pool trades. Canonical pairs are lowercase with
// Asset0 <= Asset1; see package pair.
type AssetPair struct {
	Asset0 string `json:"asset0" yaml:"asset0"`
	Asset1 string `json:"asset1" yaml:"asset1"`
}

// PoolInfo is a discovered pool. It is built once from a creation event and
// never mutated afterwards.
type PoolInfo struct {
	ID           string    `json:"pool_id"`
	Pair         AssetPair `json:"pair"`
	Fee          int32     `json:"fee"`
	TickSpacing  int32     `json:"tick_spacing"`
	Hook         string    `json:"hook"`
	SqrtPriceX96 string    `json:"sqrt_price_x96"`
	Tick         int32     `json:"tick"`
	BlockNumber  uint64    `json:"block_number"`
	TxHash       string    `json:"tx_hash"`
	CreatedAtMs  int64     `json:"created_at_ms"`
}

// PoolCriteria is a conjunctive filter over pools. Zero values are ignored.
type PoolCriteria struct {
	Asset0      string
	Asset1      string
	Asset       string
	Hook        string
	Fee         *int32
	TickSpacing *int32
}

// PoolStats summarizes the pool index.
type PoolStats struct {
	Total         int            `json:"total"`
	DistinctPairs int            `json:"distinct_pairs"`
	ByHook        map[string]int `json:"by_hook"`
	ByAsset       map[string]int `json:"by_asset"`
}
