package pipeline

import (
	"os"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/dimension"
	"github.com/tphakala/medtel-go/internal/enrichment"
	"github.com/tphakala/medtel-go/internal/fact"
	"github.com/tphakala/medtel-go/internal/ingest"
	"github.com/tphakala/medtel-go/internal/logging"
	"github.com/tphakala/medtel-go/internal/quality"
	"github.com/tphakala/medtel-go/internal/staging"
)

// Step names. Dependencies below reference these, and the step subcommand
// accepts them on the command line.
const (
	StepAcquire     = "acquire"
	StepLoad        = "load"
	StepStage       = "stage"
	StepCalendarDim = "build_calendar_dim"
	StepChannelDim  = "build_channel_dim"
	StepFacts       = "build_facts"
	StepValidate    = "validate"
	StepDetect      = "detect"
	StepEnrich      = "enrich"
)

// DefaultGraph builds the standard warehouse graph:
//
//	acquire -> load -> stage -> {build_calendar_dim, build_channel_dim}
//	  -> build_facts -> validate -> enrich
//	load -> detect -> enrich
func DefaultGraph(settings *conf.Settings) (*Graph, error) {
	g := NewGraph()
	steps := []Step{
		&acquireStep{retry: settings.Pipeline.Acquire.Retry},
		&loadStep{},
		&stageStep{},
		&calendarDimStep{},
		&channelDimStep{},
		&factStep{},
		&validateStep{},
		&detectStep{},
		&enrichStep{},
	}
	for _, s := range steps {
		if err := g.Add(s); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// guardTable runs the battery subset for one freshly materialized table.
// A violation fails the calling step, so dependents are skipped and their
// previous materializations stay untouched.
func guardTable(sc *StepContext, table string) error {
	opts, err := quality.OptionsFromSettings(sc.Settings)
	if err != nil {
		return err
	}
	opts.Now = sc.Now
	return quality.RunChecks(sc.Store.Conn(), quality.ChecksFor(table, opts), opts).Err()
}

// acquireStep pulls new messages from the record source into the lake.
// Acquisition is optional: when disabled the pipeline builds from whatever
// the lake already holds.
type acquireStep struct {
	retry conf.RetrySettings
}

func (s *acquireStep) Name() string   { return StepAcquire }
func (s *acquireStep) Deps() []string { return nil }

// Retry implements RetryableStep. Only acquisition retries: it crosses a
// process boundary, everything downstream is deterministic.
func (s *acquireStep) Retry() conf.RetrySettings { return s.retry }

func (s *acquireStep) Run(sc *StepContext) (int64, error) {
	if !sc.Settings.Pipeline.Acquire.Enabled {
		logging.ForService("pipeline").Debug("Acquisition disabled, using existing lake contents")
		return 0, nil
	}
	if sc.Source == nil {
		return 0, nil
	}
	return ingest.Acquire(sc.Ctx, sc.Source, sc.Lake)
}

// loadStep moves the newest lake partition into the raw table
type loadStep struct{}

func (s *loadStep) Name() string   { return StepLoad }
func (s *loadStep) Deps() []string { return []string{StepAcquire} }

func (s *loadStep) Run(sc *StepContext) (int64, error) {
	return sc.Lake.LoadIntoStore(sc.Store, "")
}

// stageStep cleans the raw table into staging
type stageStep struct{}

func (s *stageStep) Name() string   { return StepStage }
func (s *stageStep) Deps() []string { return []string{StepLoad} }

func (s *stageStep) Run(sc *StepContext) (int64, error) {
	opts, err := staging.OptionsFromSettings(sc.Settings)
	if err != nil {
		return 0, err
	}
	opts.Now = sc.Now

	raws, err := sc.Store.GetRawMessages()
	if err != nil {
		return 0, err
	}

	staged, stats := staging.Clean(raws, opts)
	if err := sc.Store.ReplaceStaging(sc.RunID, staged); err != nil {
		return 0, err
	}
	if err := guardTable(sc, "staging"); err != nil {
		return 0, err
	}

	logging.ForService("pipeline").Info("Staging rebuilt",
		"run_id", sc.RunID,
		"input", stats.Input,
		"kept", stats.Kept,
		"dropped_identity", stats.DroppedIdentity,
		"deduplicated", stats.Deduplicated,
		"dates_nulled", stats.DatesNulled,
		"counters_clamped", stats.CountersClamped)
	return int64(stats.Kept), nil
}

// calendarDimStep materializes the calendar dimension
type calendarDimStep struct{}

func (s *calendarDimStep) Name() string   { return StepCalendarDim }
func (s *calendarDimStep) Deps() []string { return []string{StepStage} }

func (s *calendarDimStep) Run(sc *StepContext) (int64, error) {
	from, to, err := dimension.CalendarRange(sc.Settings, sc.Now())
	if err != nil {
		return 0, err
	}
	days := dimension.BuildCalendar(from, to)
	if err := sc.Store.ReplaceCalendarDim(sc.RunID, days); err != nil {
		return 0, err
	}
	if err := guardTable(sc, "dim_calendar"); err != nil {
		return 0, err
	}
	return int64(len(days)), nil
}

// channelDimStep materializes the channel dimension, assigning surrogate
// keys from the persistent registry so a channel keeps its key for life.
type channelDimStep struct{}

func (s *channelDimStep) Name() string   { return StepChannelDim }
func (s *channelDimStep) Deps() []string { return []string{StepStage} }

func (s *channelDimStep) Run(sc *StepContext) (int64, error) {
	staged, err := sc.Store.GetStagedMessages()
	if err != nil {
		return 0, err
	}
	registry, err := sc.Store.GetChannelRegistry()
	if err != nil {
		return 0, err
	}

	channels, newEntries, stats := dimension.BuildChannels(staged, registry, sc.Classifiers.ChannelType, sc.Now())

	if len(newEntries) > 0 {
		if err := sc.Store.AppendChannelRegistry(newEntries); err != nil {
			return 0, err
		}
	}
	if err := sc.Store.ReplaceChannelDim(sc.RunID, channels); err != nil {
		return 0, err
	}
	if err := guardTable(sc, "dim_channel"); err != nil {
		return 0, err
	}

	logging.ForService("pipeline").Info("Channel dimension rebuilt",
		"run_id", sc.RunID,
		"channels", stats.Channels,
		"new_channels", stats.NewChannels)
	return int64(stats.Channels), nil
}

// factStep materializes the message fact table
type factStep struct{}

func (s *factStep) Name() string   { return StepFacts }
func (s *factStep) Deps() []string { return []string{StepCalendarDim, StepChannelDim} }

func (s *factStep) Run(sc *StepContext) (int64, error) {
	staged, err := sc.Store.GetStagedMessages()
	if err != nil {
		return 0, err
	}
	channels, err := sc.Store.GetChannelDim()
	if err != nil {
		return 0, err
	}
	calendar, err := sc.Store.GetCalendarDim()
	if err != nil {
		return 0, err
	}

	facts, stats := fact.Build(staged, fact.ChannelKeyIndex(channels), fact.DateKeyIndex(calendar), sc.Classifiers)
	if err := sc.Store.ReplaceMessageFacts(sc.RunID, facts); err != nil {
		return 0, err
	}
	if err := guardTable(sc, "fact_messages"); err != nil {
		return 0, err
	}

	logging.ForService("pipeline").Info("Message facts rebuilt",
		"run_id", sc.RunID,
		"built", stats.Built,
		"excluded_null_date", stats.ExcludedNullDate,
		"excluded_channel", stats.ExcludedChannel,
		"excluded_date", stats.ExcludedDate)
	return int64(stats.Built), nil
}

// validateStep runs the full data-quality battery across all tables. Each
// producing step already guards its own table, so this is the cross-table
// gate: a violation fails the step, which blocks the enrichment join.
type validateStep struct{}

func (s *validateStep) Name() string   { return StepValidate }
func (s *validateStep) Deps() []string { return []string{StepFacts} }

func (s *validateStep) Run(sc *StepContext) (int64, error) {
	opts, err := quality.OptionsFromSettings(sc.Settings)
	if err != nil {
		return 0, err
	}
	opts.Now = sc.Now

	report := quality.Run(sc.Store.Conn(), opts)
	if err := report.Err(); err != nil {
		return int64(len(report.Results)), err
	}
	return int64(len(report.Results)), nil
}

// detectStep loads the vision collaborator's CSV export. A missing file is
// not an error: detection output arrives on its own schedule and the
// enrichment join copes with partial coverage.
type detectStep struct{}

func (s *detectStep) Name() string   { return StepDetect }
func (s *detectStep) Deps() []string { return []string{StepLoad} }

func (s *detectStep) Run(sc *StepContext) (int64, error) {
	path := ingest.DetectionsPath(sc.Settings)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logging.ForService("pipeline").Info("No detection export present", "path", path)
		return 0, nil
	}
	return ingest.LoadDetectionsIntoStore(sc.Store, path, sc.Now())
}

// enrichStep materializes the enrichment fact table
type enrichStep struct{}

func (s *enrichStep) Name() string   { return StepEnrich }
func (s *enrichStep) Deps() []string { return []string{StepValidate, StepDetect} }

func (s *enrichStep) Run(sc *StepContext) (int64, error) {
	facts, err := sc.Store.GetMessageFacts()
	if err != nil {
		return 0, err
	}
	staged, err := sc.Store.GetStagedMessages()
	if err != nil {
		return 0, err
	}
	detections, err := sc.Store.GetImageDetections()
	if err != nil {
		return 0, err
	}

	rows, stats := enrichment.Join(facts, fact.StagedIndex(staged), enrichment.DetectionIndex(detections))
	if err := sc.Store.ReplaceEnrichmentFacts(sc.RunID, rows); err != nil {
		return 0, err
	}
	if err := guardTable(sc, "fact_enrichment"); err != nil {
		return 0, err
	}

	logging.ForService("pipeline").Info("Enrichment facts rebuilt",
		"run_id", sc.RunID,
		"joined", stats.Joined,
		"facts_with_image", stats.FactsWithImage,
		"missing_detection", stats.MissingDetection)
	return int64(stats.Joined), nil
}
