// Package datekey computes household-local calendar days. Households live on
// Japan time (UTC+9, no DST), whatever the host clock's zone is.
package datekey

import (
	"sort"
	"time"
)

const Layout = "2006-01-02"

// Zone is the fixed civil zone every date key is computed in.
var Zone = time.FixedZone("JST", 9*60*60)

// Key returns the YYYY-MM-DD calendar day of t in Zone.
func Key(t time.Time) string {
	return t.In(Zone).Format(Layout)
}

// Weekday returns the weekday of t in Zone, 0=Sunday through 6=Saturday.
func Weekday(t time.Time) int {
	return int(t.In(Zone).Weekday())
}

// Parse validates a date key and returns midnight of that day in Zone.
func Parse(key string) (time.Time, error) {
	return time.ParseInLocation(Layout, key, Zone)
}

// NormalizeDays drops out-of-range and repeated weekday numbers and sorts
// the rest ascending.
func NormalizeDays(days []int) []int {
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// NextAt returns the first instant strictly after now whose wall clock in
// Zone reads hour:minute.
func NextAt(now time.Time, hour, minute int) time.Time {
	local := now.In(Zone)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, Zone)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
