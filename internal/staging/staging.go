// Package staging cleans raw channel messages into the staging table shape.
// Cleaning is pure: it never touches the store, so the same raw input always
// produces the same staged output.
package staging

import (
	"sort"
	"strings"
	"time"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/datastore"
	"github.com/tphakala/medtel-go/internal/errors"
)

// Options controls date sanity bounds and deduplication
type Options struct {
	// MinDate is the earliest plausible message date. Dates before it are
	// nulled, not dropped.
	MinDate time.Time
	// FutureSlack is how far past "now" a message date may sit before it
	// is considered implausible and nulled. Covers clock skew between the
	// scraper host and this one.
	FutureSlack time.Duration
	// Now is replaceable in tests
	Now func() time.Time
}

// OptionsFromSettings builds cleaning options from configuration
func OptionsFromSettings(settings *conf.Settings) (Options, error) {
	minDate, err := time.Parse(conf.DateLayout, settings.Pipeline.Staging.MinDate)
	if err != nil {
		return Options{}, errors.New(err).
			Component("staging").
			Category(errors.CategoryConfiguration).
			Context("min_date", settings.Pipeline.Staging.MinDate).
			Build()
	}
	return Options{
		MinDate:     minDate,
		FutureSlack: time.Duration(settings.Pipeline.Staging.FutureSlackHrs) * time.Hour,
		Now:         time.Now,
	}, nil
}

// Stats summarises what cleaning did to a batch
type Stats struct {
	Input           int
	Kept            int
	DroppedIdentity int
	Deduplicated    int
	DatesNulled     int
	CountersClamped int
}

// Clean converts raw messages into staged rows. Input order matters for
// deduplication: when several raw rows share a message id the one seen last
// wins, and the store reads raw rows ordered by (message_id, loaded_at, id)
// so the winner is the latest load.
func Clean(raws []datastore.RawMessage, opts Options) ([]datastore.StagedMessage, Stats) {
	stats := Stats{Input: len(raws)}

	if opts.Now == nil {
		opts.Now = time.Now
	}
	futureCutoff := opts.Now().Add(opts.FutureSlack)

	staged := make(map[int64]datastore.StagedMessage, len(raws))
	for i := range raws {
		raw := &raws[i]

		channelName := strings.ToLower(strings.TrimSpace(raw.ChannelName))
		if raw.MessageID == 0 || channelName == "" {
			stats.DroppedIdentity++
			continue
		}

		row := datastore.StagedMessage{
			MessageID:    raw.MessageID,
			ChannelName:  channelName,
			ChannelTitle: strings.TrimSpace(raw.ChannelTitle),
			HasMedia:     raw.HasMedia,
			ImagePath:    strings.TrimSpace(raw.ImagePath),
			LoadedAt:     raw.LoadedAt,
		}

		if raw.MessageDate != nil {
			date := *raw.MessageDate
			if date.Before(opts.MinDate) || date.After(futureCutoff) {
				stats.DatesNulled++
			} else {
				row.MessageDate = &date
			}
		}

		row.ViewCount = raw.ViewCount
		if row.ViewCount < 0 {
			row.ViewCount = 0
			stats.CountersClamped++
		}
		row.ForwardCount = raw.ForwardCount
		if row.ForwardCount < 0 {
			row.ForwardCount = 0
			stats.CountersClamped++
		}

		row.MessageText = strings.TrimSpace(raw.MessageText)
		row.TextLength = len([]rune(row.MessageText))
		row.HasText = row.TextLength > 0
		row.HasImageResolved = row.HasMedia && row.ImagePath != ""

		if _, seen := staged[row.MessageID]; seen {
			stats.Deduplicated++
		}
		staged[row.MessageID] = row
	}

	out := make([]datastore.StagedMessage, 0, len(staged))
	for _, row := range staged {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })

	stats.Kept = len(out)
	return out, stats
}
