package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/medtel-go/internal/conf"
)

var testNow = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory store with the full schema migrated
func setupTestDB(t *testing.T) *SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = ":memory:"

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func rawMessage(id int64, loadedAt time.Time) RawMessage {
	date := testNow.Add(-72 * time.Hour)
	return RawMessage{
		MessageID:   id,
		ChannelName: "tikvahpharma",
		MessageDate: &date,
		MessageText: "sample",
		LoadedAt:    loadedAt,
	}
}

func TestInsertRawMessagesIgnoresDuplicates(t *testing.T) {
	t.Parallel()

	store := setupTestDB(t)
	loadedAt := testNow.Add(-time.Hour)

	inserted, err := store.InsertRawMessages([]RawMessage{rawMessage(1, loadedAt), rawMessage(2, loadedAt)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	// same (message_id, loaded_at) pair is ignored, a later load is not
	inserted, err = store.InsertRawMessages([]RawMessage{rawMessage(1, loadedAt), rawMessage(1, testNow)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted)

	raws, err := store.GetRawMessages()
	require.NoError(t, err)
	require.Len(t, raws, 3)

	// deterministic read order: message_id, then loaded_at
	assert.Equal(t, int64(1), raws[0].MessageID)
	assert.Equal(t, int64(1), raws[1].MessageID)
	assert.True(t, raws[1].LoadedAt.After(raws[0].LoadedAt))
	assert.Equal(t, int64(2), raws[2].MessageID)
}

func TestReplaceStagingIsAtomicAndVersioned(t *testing.T) {
	t.Parallel()

	store := setupTestDB(t)

	first := []StagedMessage{
		{MessageID: 1, ChannelName: "a", LoadedAt: testNow},
		{MessageID: 2, ChannelName: "a", LoadedAt: testNow},
	}
	require.NoError(t, store.ReplaceStaging("run-1", first))

	second := []StagedMessage{
		{MessageID: 3, ChannelName: "b", LoadedAt: testNow},
	}
	require.NoError(t, store.ReplaceStaging("run-2", second))

	staged, err := store.GetStagedMessages()
	require.NoError(t, err)
	require.Len(t, staged, 1, "replace removes the prior generation entirely")
	assert.Equal(t, int64(3), staged[0].MessageID)

	mat, err := store.GetMaterialization("staging")
	require.NoError(t, err)
	require.NotNil(t, mat)
	assert.Equal(t, 2, mat.Generation)
	assert.Equal(t, "run-2", mat.RunID)
	assert.Equal(t, int64(1), mat.RowCount)
}

func TestReplaceEmptyRows(t *testing.T) {
	t.Parallel()

	store := setupTestDB(t)
	require.NoError(t, store.ReplaceMessageFacts("run-1", nil))

	facts, err := store.GetMessageFacts()
	require.NoError(t, err)
	assert.Empty(t, facts)

	mat, err := store.GetMaterialization("fact_messages")
	require.NoError(t, err)
	require.NotNil(t, mat)
	assert.Equal(t, int64(0), mat.RowCount)
}

func TestGetMaterializationUnknownTable(t *testing.T) {
	t.Parallel()

	store := setupTestDB(t)
	mat, err := store.GetMaterialization("never_built")
	require.NoError(t, err)
	assert.Nil(t, mat)
}

func TestChannelRegistryAppendOnly(t *testing.T) {
	t.Parallel()

	store := setupTestDB(t)

	require.NoError(t, store.AppendChannelRegistry([]ChannelKeyEntry{
		{ChannelKey: 1, ChannelName: "tikvahpharma", AssignedAt: testNow},
		{ChannelKey: 2, ChannelName: "chemed123", AssignedAt: testNow},
	}))
	require.NoError(t, store.AppendChannelRegistry([]ChannelKeyEntry{
		{ChannelKey: 3, ChannelName: "lobelia4cosmetics", AssignedAt: testNow},
	}))

	registry, err := store.GetChannelRegistry()
	require.NoError(t, err)
	require.Len(t, registry, 3)
	assert.Equal(t, 1, registry[0].ChannelKey)
	assert.Equal(t, "tikvahpharma", registry[0].ChannelName)
}

func TestUpsertImageDetectionsRefreshes(t *testing.T) {
	t.Parallel()

	store := setupTestDB(t)

	_, err := store.UpsertImageDetections([]ImageDetection{
		{MessageID: 1, ImagePath: "a.jpg", ImageCategory: "other", ConfidenceScore: 0.3, DetectedAt: testNow},
	})
	require.NoError(t, err)

	_, err = store.UpsertImageDetections([]ImageDetection{
		{MessageID: 1, ImagePath: "a.jpg", ImageCategory: "product_display", ConfidenceScore: 0.9, DetectedAt: testNow},
	})
	require.NoError(t, err)

	detections, err := store.GetImageDetections()
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "product_display", detections[0].ImageCategory)
	assert.InDelta(t, 0.9, detections[0].ConfidenceScore, 0.001)
}

func seedAnalytics(t *testing.T, store *SQLiteStore) {
	t.Helper()

	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.ReplaceChannelDim("run-1", []Channel{
		{
			ChannelKey:     1,
			ChannelName:    "tikvahpharma",
			ChannelType:    "Pharmaceutical",
			TotalPosts:     10,
			PostsWithImage: 4,
			AvgViews:       120.5,
			AvgForwards:    3.2,
			FirstPostDate:  &date,
			LastPostDate:   &last,
			ActiveDaySpan:  5,
		},
	}))
	require.NoError(t, store.ReplaceMessageFacts("run-1", []MessageFact{
		{MessageID: 1, ChannelKey: 1, DateKey: 20250701, MessageText: "Paracetamol tablet, 200 birr", ViewCount: 200, MentionsPrice: true, ProductType: "pill"},
		{MessageID: 2, ChannelKey: 1, DateKey: 20250701, MessageText: "Vitamin C syrup", ViewCount: 100, ProductType: "liquid"},
		{MessageID: 3, ChannelKey: 1, DateKey: 20250702, MessageText: "Another tablet offer", ViewCount: 50, ProductType: "pill"},
	}))
	require.NoError(t, store.ReplaceEnrichmentFacts("run-1", []EnrichmentFact{
		{MessageID: 1, ChannelKey: 1, DateKey: 20250701, ImagePath: "1.jpg", DetectionCount: 2, ImageCategory: "product_display", ConfidenceScore: 0.8, HasProduct: true},
		{MessageID: 3, ChannelKey: 1, DateKey: 20250702, ImagePath: "3.jpg", DetectionCount: 1, ImageCategory: "promotional", ConfidenceScore: 0.6, HasPerson: true},
	}))
}

func TestChannelActivity(t *testing.T) {
	t.Parallel()

	store := setupTestDB(t)
	seedAnalytics(t, store)

	activity, err := store.ChannelActivity("tikvahpharma")
	require.NoError(t, err)
	assert.Equal(t, "Pharmaceutical", activity.ChannelType)
	assert.Equal(t, int64(10), activity.TotalPosts)
	assert.Equal(t, int64(4), activity.PostsWithImage)
	assert.InDelta(t, 120.5, activity.AvgViews, 0.001)
	assert.Equal(t, 5, activity.ActiveDaySpan)

	_, err = store.ChannelActivity("missing_channel")
	assert.Error(t, err)
}

func TestProductTypeSummary(t *testing.T) {
	t.Parallel()

	store := setupTestDB(t)
	seedAnalytics(t, store)

	summaries, err := store.ProductTypeSummary()
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// ordered by message count descending
	assert.Equal(t, "pill", summaries[0].ProductType)
	assert.Equal(t, int64(2), summaries[0].MessageCount)
	assert.InDelta(t, 125.0, summaries[0].AvgViews, 0.001)
	assert.Equal(t, int64(1), summaries[0].PriceMentions)
	assert.Equal(t, "liquid", summaries[1].ProductType)
}

func TestVisualContentStats(t *testing.T) {
	t.Parallel()

	store := setupTestDB(t)
	seedAnalytics(t, store)

	stats, err := store.VisualContentStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalImages)
	assert.InDelta(t, 1.5, stats.AvgDetections, 0.001)
	assert.InDelta(t, 0.7, stats.AvgConfidence, 0.001)
	assert.Equal(t, int64(1), stats.ImagesWithPerson)
	assert.Equal(t, int64(1), stats.ImagesWithProduct)
	require.Len(t, stats.CategoryCounts, 2)
}

func TestVisualContentStatsEmpty(t *testing.T) {
	t.Parallel()

	store := setupTestDB(t)
	stats, err := store.VisualContentStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalImages)
	assert.Equal(t, 0.0, stats.AvgDetections)
}

func TestSearchMessages(t *testing.T) {
	t.Parallel()

	store := setupTestDB(t)
	seedAnalytics(t, store)

	facts, err := store.SearchMessages("TABLET", 10)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	// ordered by views descending
	assert.Equal(t, int64(1), facts[0].MessageID)
	assert.Equal(t, int64(3), facts[1].MessageID)

	facts, err = store.SearchMessages("tablet", 1)
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}
