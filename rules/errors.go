//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// ErrorsIsComparison detects direct error equality checks that break with
// wrapped errors.
//
// Old pattern:
//
//	if err == gorm.ErrRecordNotFound { ... }
//
// New pattern:
//
//	if errors.Is(err, gorm.ErrRecordNotFound) { ... }
func ErrorsIsComparison(m dsl.Matcher) {
	m.Match(
		`$err == gorm.ErrRecordNotFound`,
	).
		Report("use errors.Is($err, gorm.ErrRecordNotFound); direct comparison misses wrapped errors").
		Suggest("errors.Is($err, gorm.ErrRecordNotFound)")

	m.Match(
		`$err != gorm.ErrRecordNotFound`,
	).
		Report("use !errors.Is($err, gorm.ErrRecordNotFound); direct comparison misses wrapped errors").
		Suggest("!errors.Is($err, gorm.ErrRecordNotFound)")
}

// SprintfErrorf detects errors built by wrapping fmt.Sprintf output.
//
// Old pattern:
//
//	errors.NewStd(fmt.Sprintf("bad value %d", v))
//
// New pattern:
//
//	errors.Newf("bad value %d", v)
func SprintfErrorf(m dsl.Matcher) {
	m.Match(
		`errors.NewStd(fmt.Sprintf($*args))`,
	).
		Report("use errors.Newf($*args) instead of NewStd(fmt.Sprintf(...))").
		Suggest("errors.Newf($args)")
}
