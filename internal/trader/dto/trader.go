package dto

// StreamDataSignalExecution is the payload enqueued onto the signal
// execution stream. Everything else is loaded from storage so a replayed
// message observes current state, not a stale snapshot.
type StreamDataSignalExecution struct {
	SignalID uint `json:"signal_id"`
}

// StreamDataPositionExit is the payload enqueued by the exit monitor for a
// position that should be closed. ExitKey identifies one logical exit:
// redelivery of the same message carries the same key, a new exit request
// for the same position and reason carries a fresh one.
type StreamDataPositionExit struct {
	PositionID uint    `json:"position_id"`
	Qty        float64 `json:"qty"`
	ReasonCode string  `json:"reason_code"`
	ExitKey    string  `json:"exit_key,omitempty"`
}

// GetPositionsParam filters position queries.
type GetPositionsParam struct {
	IDs      []uint
	Ticker   string
	Statuses []string
}
