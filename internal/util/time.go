package util

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Session close, New York time
const (
	marketCloseHour   = 16
	marketCloseMinute = 30
)

var newYork = loadNewYork()

func loadNewYork() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Errorf("Failed to load location 'America/New_York': %v. Quote expiry falls back to UTC.", err)
		return time.UTC
	}
	return loc
}

// NextMarketClose returns the next weekday session close at or after t, in UTC.
// A quote fetched before it is stale once it passes.
func NextMarketClose(t time.Time) time.Time {
	local := t.In(newYork)
	next := time.Date(local.Year(), local.Month(), local.Day(), marketCloseHour, marketCloseMinute, 0, 0, newYork)
	if local.After(next) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next.UTC()
}

// QuoteDeadline is when a quote cached at now expires: now+ttl, or the next
// session close if that comes first. Every quote cache tier uses it.
func QuoteDeadline(now time.Time, ttl time.Duration) time.Time {
	deadline := now.Add(ttl)
	if sessionEnd := NextMarketClose(now); sessionEnd.After(now) && sessionEnd.Before(deadline) {
		return sessionEnd
	}
	return deadline
}
