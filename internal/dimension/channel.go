package dimension

import (
	"sort"
	"time"

	"github.com/tphakala/medtel-go/internal/classify"
	"github.com/tphakala/medtel-go/internal/datastore"
)

// Stats summarises a channel dimension build
type Stats struct {
	Channels    int
	NewChannels int
}

// channelAccumulator collects per-channel aggregates during a single pass
// over the staged messages.
type channelAccumulator struct {
	title      string
	posts      int64
	withImage  int64
	viewSum    int64
	forwardSum int64
	firstPost  *time.Time
	lastPost   *time.Time
}

// BuildChannels groups staged messages by channel, aggregates activity and
// assigns surrogate keys from the persistent registry. Keys already in the
// registry are reused unchanged; channels seen for the first time get the
// next unused key, in name order so a batch of new channels keys
// deterministically. The returned entries are only the NEW registry rows,
// ready to append.
func BuildChannels(staged []datastore.StagedMessage, registry []datastore.ChannelKeyEntry, cascade *classify.Cascade, now time.Time) ([]datastore.Channel, []datastore.ChannelKeyEntry, Stats) {
	accs := make(map[string]*channelAccumulator)
	for i := range staged {
		msg := &staged[i]
		acc, ok := accs[msg.ChannelName]
		if !ok {
			acc = &channelAccumulator{}
			accs[msg.ChannelName] = acc
		}
		if acc.title == "" {
			acc.title = msg.ChannelTitle
		}
		acc.posts++
		if msg.HasImageResolved {
			acc.withImage++
		}
		acc.viewSum += msg.ViewCount
		acc.forwardSum += msg.ForwardCount
		if msg.MessageDate != nil {
			if acc.firstPost == nil || msg.MessageDate.Before(*acc.firstPost) {
				acc.firstPost = msg.MessageDate
			}
			if acc.lastPost == nil || msg.MessageDate.After(*acc.lastPost) {
				acc.lastPost = msg.MessageDate
			}
		}
	}

	keys := make(map[string]int, len(registry))
	nextKey := 1
	for i := range registry {
		keys[registry[i].ChannelName] = registry[i].ChannelKey
		if registry[i].ChannelKey >= nextKey {
			nextKey = registry[i].ChannelKey + 1
		}
	}

	names := make([]string, 0, len(accs))
	for name := range accs {
		names = append(names, name)
	}
	sort.Strings(names)

	var newEntries []datastore.ChannelKeyEntry
	for _, name := range names {
		if _, known := keys[name]; !known {
			keys[name] = nextKey
			newEntries = append(newEntries, datastore.ChannelKeyEntry{
				ChannelKey:  nextKey,
				ChannelName: name,
				AssignedAt:  now,
			})
			nextKey++
		}
	}

	channels := make([]datastore.Channel, 0, len(names))
	for _, name := range names {
		acc := accs[name]
		ch := datastore.Channel{
			ChannelKey:     keys[name],
			ChannelName:    name,
			ChannelTitle:   acc.title,
			ChannelType:    cascade.Classify(name + " " + acc.title),
			TotalPosts:     acc.posts,
			PostsWithImage: acc.withImage,
			AvgViews:       float64(acc.viewSum) / float64(acc.posts),
			AvgForwards:    float64(acc.forwardSum) / float64(acc.posts),
			FirstPostDate:  acc.firstPost,
			LastPostDate:   acc.lastPost,
		}
		if acc.firstPost != nil && acc.lastPost != nil {
			ch.ActiveDaySpan = daySpan(*acc.firstPost, *acc.lastPost)
		}
		channels = append(channels, ch)
	}

	sort.Slice(channels, func(i, j int) bool { return channels[i].ChannelKey < channels[j].ChannelKey })

	return channels, newEntries, Stats{Channels: len(channels), NewChannels: len(newEntries)}
}

// daySpan counts calendar days from first to last post, inclusive
func daySpan(first, last time.Time) int {
	firstDay := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	return int(lastDay.Sub(firstDay).Hours()/24) + 1
}
