package fact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/medtel-go/internal/classify"
	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/datastore"
	"github.com/tphakala/medtel-go/internal/dimension"
)

func testClassifiers(t *testing.T) *classify.Classifiers {
	t.Helper()
	classifiers, err := classify.FromSettings(&conf.Settings{})
	require.NoError(t, err)
	return classifiers
}

func TestBuildResolvesAndClassifies(t *testing.T) {
	t.Parallel()

	date := time.Date(2025, 7, 1, 14, 30, 0, 0, time.UTC)
	staged := []datastore.StagedMessage{
		{
			MessageID:   10,
			ChannelName: "tikvahpharma",
			MessageDate: &date,
			MessageText: "Paracetamol tablet 500mg, price 200 birr",
			TextLength:  40,
			ViewCount:   500,
		},
	}
	channelKeys := map[string]int{"tikvahpharma": 1}
	dateKeys := map[int]struct{}{20250701: {}}

	facts, stats := Build(staged, channelKeys, dateKeys, testClassifiers(t))
	require.Len(t, facts, 1)

	f := facts[0]
	assert.Equal(t, int64(10), f.MessageID)
	assert.Equal(t, 1, f.ChannelKey)
	assert.Equal(t, 20250701, f.DateKey)
	assert.Equal(t, "pill", f.ProductType)
	assert.True(t, f.MentionsPrice)
	assert.Equal(t, 1, stats.Built)
}

func TestBuildExcludesUnresolvableRows(t *testing.T) {
	t.Parallel()

	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	outsideCalendar := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	staged := []datastore.StagedMessage{
		{MessageID: 1, ChannelName: "tikvahpharma", MessageDate: nil},
		{MessageID: 2, ChannelName: "unknown_channel", MessageDate: &date},
		{MessageID: 3, ChannelName: "tikvahpharma", MessageDate: &outsideCalendar},
		{MessageID: 4, ChannelName: "tikvahpharma", MessageDate: &date},
	}
	channelKeys := map[string]int{"tikvahpharma": 1}
	dateKeys := map[int]struct{}{20250701: {}}

	facts, stats := Build(staged, channelKeys, dateKeys, testClassifiers(t))

	require.Len(t, facts, 1)
	assert.Equal(t, int64(4), facts[0].MessageID)
	assert.Equal(t, 1, stats.ExcludedNullDate)
	assert.Equal(t, 1, stats.ExcludedChannel)
	assert.Equal(t, 1, stats.ExcludedDate)
	assert.Equal(t, 4, stats.Input)
}

func TestBuildEmptyTextClassifiesAsOther(t *testing.T) {
	t.Parallel()

	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	staged := []datastore.StagedMessage{
		{MessageID: 1, ChannelName: "chemed123", MessageDate: &date},
	}

	facts, _ := Build(staged, map[string]int{"chemed123": 2}, map[int]struct{}{20250701: {}}, testClassifiers(t))
	require.Len(t, facts, 1)
	assert.Equal(t, "other", facts[0].ProductType)
	assert.False(t, facts[0].MentionsPrice)
}

func TestIndexHelpers(t *testing.T) {
	t.Parallel()

	channels := []datastore.Channel{
		{ChannelKey: 1, ChannelName: "a"},
		{ChannelKey: 2, ChannelName: "b"},
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, ChannelKeyIndex(channels))

	days := dimension.BuildCalendar(
		time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC),
	)
	dateKeys := DateKeyIndex(days)
	_, ok := dateKeys[20250702]
	assert.True(t, ok)

	staged := []datastore.StagedMessage{{MessageID: 5, ChannelName: "a"}}
	index := StagedIndex(staged)
	require.Contains(t, index, int64(5))
	assert.Equal(t, "a", index[5].ChannelName)
}
