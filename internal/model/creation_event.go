package model

// CreationEvent is a decoded pool creation log.
type CreationEvent struct {
	PoolID      string `json:"pool_id"`
	Asset0      string `json:"asset0"`
	Asset1      string `json:"asset1"`
	FeeTier     int64  `json:"fee_tier"`
	TickSpacing int64  `json:"tick_spacing"`
	Hook        string `json:"hook"`
	PriceRepr   string `json:"price_repr"`
	Tick        int64  `json:"tick"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	TimestampMs int64  `json:"timestamp_ms"`
}
