//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// TimeSince detects manual duration computation and suggests time.Since.
//
// Old pattern:
//
//	elapsed := time.Now().Sub(start)
//
// New pattern:
//
//	elapsed := time.Since(start)
func TimeSince(m dsl.Matcher) {
	m.Match(
		`time.Now().Sub($t)`,
	).
		Report("use time.Since($t) instead of time.Now().Sub($t)").
		Suggest("time.Since($t)")
}

// TimeTruncateDay detects midnight truncation via Truncate(24h), which is
// wrong across DST transitions for non-UTC times.
//
// Old pattern:
//
//	t.Truncate(24 * time.Hour)
//
// New pattern:
//
//	time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
func TimeTruncateDay(m dsl.Matcher) {
	m.Match(
		`$t.Truncate(24 * time.Hour)`,
		`$t.Truncate(time.Hour * 24)`,
	).
		Report("Truncate(24h) is not midnight in non-UTC locations; construct the date explicitly")
}
