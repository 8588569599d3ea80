// Package quality runs the warehouse validation battery. Checks only
// observe: a failed check blocks downstream pipeline steps but never
// repairs data.
package quality

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/errors"
	"github.com/tphakala/medtel-go/internal/logging"
)

// CheckResult is the outcome of a single check
type CheckResult struct {
	Name       string
	Table      string
	Violations int64
	// SampleIDs holds up to maxSampleIDs violating row identifiers so a
	// failure report is actionable without rerunning queries by hand.
	SampleIDs []int64
	Err       error
}

// Passed reports whether the check ran cleanly with zero violations
func (r *CheckResult) Passed() bool {
	return r.Err == nil && r.Violations == 0
}

// Check is one entry of the validation battery. Query must select a single
// column of violating row identifiers, ordered deterministically.
type Check struct {
	Name  string
	Table string
	// Query selects the identifiers of violating rows
	Query string
	Args  []any
}

// Report is the outcome of a full battery run
type Report struct {
	Results []CheckResult
	RanAt   time.Time
}

// Passed reports whether every check passed
func (r *Report) Passed() bool {
	for i := range r.Results {
		if !r.Results[i].Passed() {
			return false
		}
	}
	return true
}

// Failed returns the failing results
func (r *Report) Failed() []CheckResult {
	var failed []CheckResult
	for i := range r.Results {
		if !r.Results[i].Passed() {
			failed = append(failed, r.Results[i])
		}
	}
	return failed
}

// Battery builds the standard check list. The battery is data, not code:
// each check is a violation query, so extending coverage means appending a
// row here.
func Battery(opts Options) []Check {
	minDate := opts.MinDate.Format(conf.DateLayout)
	futureCutoff := opts.Now().Add(opts.FutureSlack).Format("2006-01-02 15:04:05")

	return []Check{
		{
			Name:  "staging_no_negative_views",
			Table: "staging",
			Query: "SELECT message_id FROM staging WHERE view_count < 0 OR forward_count < 0 ORDER BY message_id",
		},
		{
			Name:  "staging_unique_message_id",
			Table: "staging",
			Query: "SELECT message_id FROM staging GROUP BY message_id HAVING COUNT(*) > 1 ORDER BY message_id",
		},
		{
			Name:  "staging_date_lower_bound",
			Table: "staging",
			Query: "SELECT message_id FROM staging WHERE message_date IS NOT NULL AND message_date < ? ORDER BY message_id",
			Args:  []any{minDate},
		},
		{
			Name:  "staging_date_upper_bound",
			Table: "staging",
			Query: "SELECT message_id FROM staging WHERE message_date IS NOT NULL AND message_date > ? ORDER BY message_id",
			Args:  []any{futureCutoff},
		},
		{
			Name:  "facts_no_negative_views",
			Table: "fact_messages",
			Query: "SELECT message_id FROM fact_messages WHERE view_count < 0 OR forward_count < 0 ORDER BY message_id",
		},
		{
			Name:  "facts_channel_key_resolves",
			Table: "fact_messages",
			Query: "SELECT f.message_id FROM fact_messages f LEFT JOIN dim_channel c ON f.channel_key = c.channel_key WHERE c.channel_key IS NULL ORDER BY f.message_id",
		},
		{
			Name:  "facts_date_key_resolves",
			Table: "fact_messages",
			Query: "SELECT f.message_id FROM fact_messages f LEFT JOIN dim_calendar d ON f.date_key = d.date_key WHERE d.date_key IS NULL ORDER BY f.message_id",
		},
		{
			Name:  "enrichment_message_id_resolves",
			Table: "fact_enrichment",
			Query: "SELECT e.message_id FROM fact_enrichment e LEFT JOIN fact_messages f ON e.message_id = f.message_id WHERE f.message_id IS NULL ORDER BY e.message_id",
		},
		{
			Name:  "calendar_dim_unique_keys",
			Table: "dim_calendar",
			Query: "SELECT date_key FROM dim_calendar WHERE date_key IS NULL OR date_key <= 0 UNION SELECT date_key FROM dim_calendar GROUP BY date_key HAVING COUNT(*) > 1 ORDER BY date_key",
		},
		{
			Name:  "channel_dim_unique_names",
			Table: "dim_channel",
			Query: "SELECT channel_key FROM dim_channel WHERE channel_name IN (SELECT channel_name FROM dim_channel GROUP BY channel_name HAVING COUNT(*) > 1) ORDER BY channel_key",
		},
		{
			Name:  "channel_dim_positive_keys",
			Table: "dim_channel",
			Query: "SELECT channel_key FROM dim_channel WHERE channel_key IS NULL OR channel_key < 1 ORDER BY channel_key",
		},
	}
}

// ChecksFor returns the battery subset guarding one table. Producing steps
// run their table's subset as a post-condition, so a violated table fails
// its step before any dependent consumes the rows.
func ChecksFor(table string, opts Options) []Check {
	opts = opts.withDefaults()
	var checks []Check
	for _, check := range Battery(opts) {
		if check.Table == table {
			checks = append(checks, check)
		}
	}
	return checks
}

// Options bounds the date sanity checks, mirroring the staging cleanser
type Options struct {
	MinDate     time.Time
	FutureSlack time.Duration
	MaxSamples  int
	Now         func() time.Time
}

// OptionsFromSettings builds validation options from configuration
func OptionsFromSettings(settings *conf.Settings) (Options, error) {
	minDate, err := time.Parse(conf.DateLayout, settings.Pipeline.Staging.MinDate)
	if err != nil {
		return Options{}, errors.New(err).
			Component("quality").
			Category(errors.CategoryConfiguration).
			Context("min_date", settings.Pipeline.Staging.MinDate).
			Build()
	}
	return Options{
		MinDate:     minDate,
		FutureSlack: time.Duration(settings.Pipeline.Staging.FutureSlackHrs) * time.Hour,
		MaxSamples:  settings.Pipeline.Quality.MaxSampleIDs,
		Now:         time.Now,
	}, nil
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.MaxSamples <= 0 {
		o.MaxSamples = 20
	}
	return o
}

// Run evaluates the full battery against the store
func Run(db *gorm.DB, opts Options) *Report {
	opts = opts.withDefaults()
	return RunChecks(db, Battery(opts), opts)
}

// RunChecks evaluates a check list against the store. A check whose query
// errors is reported as failed with that error; the rest of the list still
// runs.
func RunChecks(db *gorm.DB, checks []Check, opts Options) *Report {
	opts = opts.withDefaults()

	log := logging.ForService("quality")
	report := &Report{RanAt: opts.Now()}

	for _, check := range checks {
		result := runCheck(db, check, opts.MaxSamples)
		if !result.Passed() {
			log.Warn("Data quality check failed",
				"check", result.Name,
				"table", result.Table,
				"violations", result.Violations,
				"sample_ids", result.SampleIDs,
				"error", result.Err)
		}
		report.Results = append(report.Results, result)
	}

	if report.Passed() {
		log.Info("Data quality battery passed", "checks", len(report.Results))
	}
	return report
}

func runCheck(db *gorm.DB, check Check, maxSamples int) CheckResult {
	result := CheckResult{Name: check.Name, Table: check.Table}

	var ids []int64
	if err := db.Raw(check.Query, check.Args...).Scan(&ids).Error; err != nil {
		result.Err = errors.New(err).
			Component("quality").
			Category(errors.CategoryDataQuality).
			Table(check.Table).
			Context("check", check.Name).
			Build()
		return result
	}

	result.Violations = int64(len(ids))
	if len(ids) > maxSamples {
		ids = ids[:maxSamples]
	}
	result.SampleIDs = ids
	return result
}

// Err collapses a failed report into a single error for pipeline callers
func (r *Report) Err() error {
	if r.Passed() {
		return nil
	}
	failed := r.Failed()
	names := make([]string, 0, len(failed))
	for i := range failed {
		names = append(names, failed[i].Name)
	}
	return errors.Newf("data quality battery failed: %d of %d checks violated (%v)",
		len(failed), len(r.Results), names).
		Component("quality").
		Category(errors.CategoryDataQuality).
		Build()
}

// String renders a compact human-readable report
func (r *Report) String() string {
	out := fmt.Sprintf("quality battery at %s:\n", r.RanAt.Format(time.RFC3339))
	for i := range r.Results {
		res := &r.Results[i]
		status := "PASS"
		if !res.Passed() {
			status = "FAIL"
		}
		out += fmt.Sprintf("  [%s] %-32s %s violations=%d", status, res.Name, res.Table, res.Violations)
		if len(res.SampleIDs) > 0 {
			out += fmt.Sprintf(" sample=%v", res.SampleIDs)
		}
		if res.Err != nil {
			out += fmt.Sprintf(" error=%v", res.Err)
		}
		out += "\n"
	}
	return out
}
