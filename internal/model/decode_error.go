package model

// DecodeError records a creation log that could not be decoded or processed.
type DecodeError struct {
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	PoolID      string `json:"pool_id,omitempty"`
	Stage       string `json:"stage"`
	Error       string `json:"error"`
}
