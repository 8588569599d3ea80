package dimension

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/medtel-go/internal/classify"
	"github.com/tphakala/medtel-go/internal/datastore"
)

func TestDateKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 20250715, DateKey(time.Date(2025, 7, 15, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, 20200101, DateKey(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestBuildCalendar(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	days := BuildCalendar(from, to)
	require.Len(t, days, 4)

	first := days[0]
	assert.Equal(t, 20241230, first.DateKey)
	assert.Equal(t, "Q4", first.Quarter)
	assert.Equal(t, "December", first.MonthName)
	assert.Equal(t, "Monday", first.DayName)
	assert.False(t, first.IsWeekend)
	assert.Equal(t, 1, first.ISOWeek, "Dec 30 2024 belongs to ISO week 1 of 2025")

	newYear := days[2]
	assert.Equal(t, 20250101, newYear.DateKey)
	assert.Equal(t, "Q1", newYear.Quarter)
	assert.Equal(t, 2025, newYear.Year)
}

func TestBuildCalendarMarksWeekends(t *testing.T) {
	t.Parallel()

	// Sat Jul 12 through Mon Jul 14 2025
	days := BuildCalendar(
		time.Date(2025, 7, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC),
	)
	require.Len(t, days, 3)
	assert.True(t, days[0].IsWeekend)
	assert.True(t, days[1].IsWeekend)
	assert.False(t, days[2].IsWeekend)
}

func stagedMessage(id int64, channel string, date time.Time, mutate func(*datastore.StagedMessage)) datastore.StagedMessage {
	msg := datastore.StagedMessage{
		MessageID:   id,
		ChannelName: channel,
		MessageDate: &date,
		ViewCount:   100,
	}
	if mutate != nil {
		mutate(&msg)
	}
	return msg
}

func TestBuildChannelsAggregates(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	day3 := time.Date(2025, 7, 3, 18, 0, 0, 0, time.UTC)

	staged := []datastore.StagedMessage{
		stagedMessage(1, "tikvahpharma", day1, func(m *datastore.StagedMessage) {
			m.ViewCount = 200
			m.ForwardCount = 10
			m.HasImageResolved = true
		}),
		stagedMessage(2, "tikvahpharma", day3, func(m *datastore.StagedMessage) {
			m.ViewCount = 100
			m.ForwardCount = 0
		}),
		stagedMessage(3, "chemed123", day1, nil),
	}

	cascade := classify.NewCascade(classify.DefaultChannelRules(), "Other")
	now := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	channels, newEntries, stats := BuildChannels(staged, nil, cascade, now)
	require.Len(t, channels, 2)
	assert.Equal(t, 2, stats.Channels)
	assert.Equal(t, 2, stats.NewChannels)

	// keys assigned in name order from an empty registry
	require.Len(t, newEntries, 2)
	assert.Equal(t, "chemed123", newEntries[0].ChannelName)
	assert.Equal(t, 1, newEntries[0].ChannelKey)
	assert.Equal(t, "tikvahpharma", newEntries[1].ChannelName)
	assert.Equal(t, 2, newEntries[1].ChannelKey)

	pharma := channels[1]
	assert.Equal(t, "tikvahpharma", pharma.ChannelName)
	assert.Equal(t, "Pharmaceutical", pharma.ChannelType)
	assert.Equal(t, int64(2), pharma.TotalPosts)
	assert.Equal(t, int64(1), pharma.PostsWithImage)
	assert.InDelta(t, 150.0, pharma.AvgViews, 0.001)
	assert.InDelta(t, 5.0, pharma.AvgForwards, 0.001)
	require.NotNil(t, pharma.FirstPostDate)
	require.NotNil(t, pharma.LastPostDate)
	assert.Equal(t, 3, pharma.ActiveDaySpan)

	other := channels[0]
	assert.Equal(t, "chemed123", other.ChannelName)
	assert.Equal(t, "Other", other.ChannelType, "bare channel name matches no cascade keyword")
}

func TestBuildChannelsReusesRegistryKeys(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	staged := []datastore.StagedMessage{
		stagedMessage(1, "aaa_new_channel", day, nil),
		stagedMessage(2, "tikvahpharma", day, nil),
	}
	registry := []datastore.ChannelKeyEntry{
		{ChannelKey: 1, ChannelName: "tikvahpharma"},
		{ChannelKey: 2, ChannelName: "chemed123"},
	}

	cascade := classify.NewCascade(classify.DefaultChannelRules(), "Other")
	channels, newEntries, stats := BuildChannels(staged, registry, cascade, day)

	require.Len(t, channels, 2)
	assert.Equal(t, 1, stats.NewChannels)

	// existing channel keeps its key even though the new channel sorts first
	byName := map[string]int{}
	for _, ch := range channels {
		byName[ch.ChannelName] = ch.ChannelKey
	}
	assert.Equal(t, 1, byName["tikvahpharma"])
	assert.Equal(t, 3, byName["aaa_new_channel"])

	require.Len(t, newEntries, 1)
	assert.Equal(t, 3, newEntries[0].ChannelKey)
	assert.Equal(t, "aaa_new_channel", newEntries[0].ChannelName)
}

func TestBuildChannelsAllDatesNull(t *testing.T) {
	t.Parallel()

	msg := datastore.StagedMessage{MessageID: 1, ChannelName: "chemed123"}
	cascade := classify.NewCascade(classify.DefaultChannelRules(), "Other")

	channels, _, _ := BuildChannels([]datastore.StagedMessage{msg}, nil, cascade, time.Now())
	require.Len(t, channels, 1)
	assert.Nil(t, channels[0].FirstPostDate)
	assert.Equal(t, 0, channels[0].ActiveDaySpan)
}
