package telegram

import "fmt"

// Lifecycle messages emitted to the notification side channel. These are
// human-readable observations, not part of the transactional contract.

// FormatOrderFilled formats the entry-fill notification.
func FormatOrderFilled(ticker string, price float64, signalID, positionID, entryEventID uint) string {
	return fmt.Sprintf("ORDER_FILLED:%s@%g (signal_id=%d, position_id=%d, entry_event_id=%d)",
		ticker, price, signalID, positionID, entryEventID)
}

// FormatPositionClosed formats the position-closed notification.
func FormatPositionClosed(positionID uint, reasonCode string) string {
	return fmt.Sprintf("POSITION_CLOSED:%d reason=%s", positionID, reasonCode)
}

// FormatBlocked formats a risk or order block notification.
func FormatBlocked(reasonCode string) string {
	return fmt.Sprintf("BLOCKED:%s", reasonCode)
}

// FormatDuplicateNews is sent when an already-ingested news item is skipped.
func FormatDuplicateNews() string {
	return "DUP_NEWS_SKIPPED"
}
