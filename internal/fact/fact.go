// Package fact builds the message fact table from staged messages and the
// warehouse dimensions.
package fact

import (
	"sort"

	"github.com/tphakala/medtel-go/internal/classify"
	"github.com/tphakala/medtel-go/internal/datastore"
	"github.com/tphakala/medtel-go/internal/dimension"
)

// Stats summarises a fact build
type Stats struct {
	Input            int
	Built            int
	ExcludedNullDate int
	ExcludedChannel  int
	ExcludedDate     int
}

// Build resolves each staged message against the channel and calendar
// dimensions and classifies its text. Rows that cannot be resolved are
// excluded and counted, not errored: a null message date or an unknown
// channel is expected input, and the exclusion counts surface in the run
// report.
func Build(staged []datastore.StagedMessage, channelKeys map[string]int, dateKeys map[int]struct{}, classifiers *classify.Classifiers) ([]datastore.MessageFact, Stats) {
	stats := Stats{Input: len(staged)}

	facts := make([]datastore.MessageFact, 0, len(staged))
	for i := range staged {
		msg := &staged[i]

		if msg.MessageDate == nil {
			stats.ExcludedNullDate++
			continue
		}
		channelKey, ok := channelKeys[msg.ChannelName]
		if !ok {
			stats.ExcludedChannel++
			continue
		}
		dateKey := dimension.DateKey(*msg.MessageDate)
		if _, ok := dateKeys[dateKey]; !ok {
			stats.ExcludedDate++
			continue
		}

		facts = append(facts, datastore.MessageFact{
			MessageID:     msg.MessageID,
			ChannelKey:    channelKey,
			DateKey:       dateKey,
			MessageText:   msg.MessageText,
			TextLength:    msg.TextLength,
			ViewCount:     msg.ViewCount,
			ForwardCount:  msg.ForwardCount,
			MentionsPrice: classifiers.Price.Matches(msg.MessageText),
			ProductType:   classifiers.ProductType.Classify(msg.MessageText),
		})
	}

	sort.Slice(facts, func(i, j int) bool { return facts[i].MessageID < facts[j].MessageID })

	stats.Built = len(facts)
	return facts, stats
}

// ChannelKeyIndex builds the channel name to surrogate key lookup from the
// channel dimension.
func ChannelKeyIndex(channels []datastore.Channel) map[string]int {
	index := make(map[string]int, len(channels))
	for i := range channels {
		index[channels[i].ChannelName] = channels[i].ChannelKey
	}
	return index
}

// DateKeyIndex builds the set of valid calendar keys
func DateKeyIndex(days []datastore.CalendarDay) map[int]struct{} {
	index := make(map[int]struct{}, len(days))
	for i := range days {
		index[days[i].DateKey] = struct{}{}
	}
	return index
}

// StagedIndex maps message ids to their staged rows, used by the enrichment
// joiner to recover attachment paths.
func StagedIndex(staged []datastore.StagedMessage) map[int64]*datastore.StagedMessage {
	index := make(map[int64]*datastore.StagedMessage, len(staged))
	for i := range staged {
		index[staged[i].MessageID] = &staged[i]
	}
	return index
}
