package utils

import (
	"log"
	"time"
)

const TradeDateLayout = "2006-01-02"

// TimeNowKST returns the current time in the Korea Exchange timezone.
func TimeNowKST() time.Time {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		log.Fatal("Failed to load location", err)
	}
	return time.Now().In(loc)
}

// TradeDate formats a time as a trading-date key.
func TradeDate(t time.Time) string {
	return t.Format(TradeDateLayout)
}

// TradeDateToday returns the trading-date key for the current KST day.
func TradeDateToday() string {
	return TradeDate(TimeNowKST())
}
