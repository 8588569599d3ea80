package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/datastore"
	"github.com/tphakala/medtel-go/internal/ingest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = ":memory:"
	settings.Pipeline.Lake.BasePath = t.TempDir()
	settings.Pipeline.Staging.MinDate = "2020-01-01"
	settings.Pipeline.Staging.FutureSlackHrs = 24
	settings.Pipeline.Calendar.StartDate = "2025-06-01"
	settings.Pipeline.Calendar.HorizonDays = 30
	settings.Pipeline.Quality.MaxSampleIDs = 5
	settings.Pipeline.MaxParallel = 2
	return settings
}

func testStore(t *testing.T, settings *conf.Settings) datastore.Interface {
	t.Helper()

	store := datastore.New(settings)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedLake(t *testing.T, settings *conf.Settings) {
	t.Helper()

	date := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	messages := []ingest.Message{
		{
			MessageID:   1,
			ChannelName: "tikvahpharma",
			MessageDate: &date,
			MessageText: "Paracetamol tablet 500mg, price 200 birr",
			HasMedia:    true,
			ImagePath:   "data/raw/images/1.jpg",
			Views:       500,
			Forwards:    12,
		},
		{
			MessageID:   2,
			ChannelName: "lobelia4cosmetics",
			MessageDate: &date,
			MessageText: "New skincare cream in stock",
			Views:       90,
		},
		// negative views get clamped in staging
		{
			MessageID:   3,
			ChannelName: "tikvahpharma",
			MessageDate: &date,
			MessageText: "Eye drops available",
			Views:       -5,
		},
	}

	dir := filepath.Join(settings.Pipeline.Lake.BasePath, "raw", "telegram_messages", "2025-07-10")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	data, err := json.Marshal(messages)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch.json"), data, 0o640))
}

func seedDetections(t *testing.T, settings *conf.Settings) {
	t.Helper()

	dir := filepath.Join(settings.Pipeline.Lake.BasePath, "processed")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	content := `message_id,channel_name,image_path,detection_count,image_category,confidence_score,has_person,has_product,detected_objects
1,tikvahpharma,data/raw/images/1.jpg,2,product_display,0.87,false,true,"bottle,cup"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "yolo_detections.csv"), []byte(content), 0o640))
}

func newTestRunner(t *testing.T, settings *conf.Settings, store datastore.Interface) *Runner {
	t.Helper()

	graph, err := DefaultGraph(settings)
	require.NoError(t, err)
	return NewRunner(graph, settings, store, ingest.NewLake(settings), nil, nil)
}

func TestRunFullPipeline(t *testing.T) {
	settings := testSettings(t)
	seedLake(t, settings)
	seedDetections(t, settings)
	store := testStore(t, settings)

	runner := newTestRunner(t, settings, store)
	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	for name, step := range result.Steps {
		assert.Equal(t, StatusSucceeded, step.Status, "step %s", name)
	}

	facts, err := store.GetMessageFacts()
	require.NoError(t, err)
	require.Len(t, facts, 3)
	assert.Equal(t, "pill", facts[0].ProductType)
	assert.True(t, facts[0].MentionsPrice)
	assert.Equal(t, "drops", facts[2].ProductType)

	channels, err := store.GetChannelDim()
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "lobelia4cosmetics", channels[0].ChannelName)
	assert.Equal(t, "Cosmetics", channels[0].ChannelType)
	assert.Equal(t, "Pharmaceutical", channels[1].ChannelType)

	enriched, err := store.GetEnrichmentFacts()
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.Equal(t, int64(1), enriched[0].MessageID)
	assert.Equal(t, "product_display", enriched[0].ImageCategory)

	// negative view count was clamped before facts
	staged, err := store.GetStagedMessages()
	require.NoError(t, err)
	for _, msg := range staged {
		assert.GreaterOrEqual(t, msg.ViewCount, int64(0))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	settings := testSettings(t)
	seedLake(t, settings)
	seedDetections(t, settings)
	store := testStore(t, settings)
	runner := newTestRunner(t, settings, store)

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	firstFacts, err := store.GetMessageFacts()
	require.NoError(t, err)
	firstChannels, err := store.GetChannelDim()
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	secondFacts, err := store.GetMessageFacts()
	require.NoError(t, err)
	secondChannels, err := store.GetChannelDim()
	require.NoError(t, err)

	assert.Equal(t, firstFacts, secondFacts)
	assert.Equal(t, firstChannels, secondChannels)

	// materialization generation advanced even though content is identical
	mat, err := store.GetMaterialization("fact_messages")
	require.NoError(t, err)
	require.NotNil(t, mat)
	assert.Equal(t, 2, mat.Generation)
}

func TestRunRegistryKeepsKeysStable(t *testing.T) {
	settings := testSettings(t)
	seedLake(t, settings)
	store := testStore(t, settings)
	runner := newTestRunner(t, settings, store)

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	var pharmaKey int
	channels, err := store.GetChannelDim()
	require.NoError(t, err)
	for _, ch := range channels {
		if ch.ChannelName == "tikvahpharma" {
			pharmaKey = ch.ChannelKey
		}
	}
	require.NotZero(t, pharmaKey)

	// a new channel appears in a later partition; existing keys must hold
	date := time.Date(2025, 7, 11, 9, 0, 0, 0, time.UTC)
	messages := []ingest.Message{{
		MessageID:   50,
		ChannelName: "aaa_first_alphabetically",
		MessageDate: &date,
		MessageText: "hello",
	}}
	dir := filepath.Join(settings.Pipeline.Lake.BasePath, "raw", "telegram_messages", "2025-07-11")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	data, err := json.Marshal(messages)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.json"), data, 0o640))

	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	channels, err = store.GetChannelDim()
	require.NoError(t, err)
	byName := map[string]int{}
	for _, ch := range channels {
		byName[ch.ChannelName] = ch.ChannelKey
	}
	assert.Equal(t, pharmaKey, byName["tikvahpharma"])
	assert.Equal(t, 3, byName["aaa_first_alphabetically"], "new channel gets the next key, not a resort")
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	settings := testSettings(t)
	store := testStore(t, settings)

	release := make(chan struct{})
	started := make(chan struct{})
	var startOnce sync.Once
	g := buildGraph(t, &fakeStep{name: "slow", run: func(sc *StepContext) (int64, error) {
		startOnce.Do(func() { close(started) })
		<-release
		return 0, nil
	}})

	runner := NewRunner(g, settings, store, ingest.NewLake(settings), nil, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = runner.Run(context.Background())
	}()

	<-started
	_, err := runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	wg.Wait()

	// once the first run finishes a new run is accepted
	_, err = runner.Run(context.Background())
	assert.NoError(t, err)
}

func TestRunFailureSkipsDependents(t *testing.T) {
	settings := testSettings(t)
	store := testStore(t, settings)

	boom := errTest("stage exploded")
	g := buildGraph(t,
		&fakeStep{name: "ok_root"},
		&fakeStep{name: "bad", run: func(sc *StepContext) (int64, error) { return 0, boom }},
		&fakeStep{name: "sibling", deps: []string{"ok_root"}},
		&fakeStep{name: "child", deps: []string{"bad"}},
		&fakeStep{name: "grandchild", deps: []string{"child"}},
	)

	runner := NewRunner(g, settings, store, ingest.NewLake(settings), nil, nil)
	result, err := runner.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, StatusFailed, result.Steps["bad"].Status)
	assert.Equal(t, StatusSkipped, result.Steps["child"].Status)
	assert.Equal(t, StatusSkipped, result.Steps["grandchild"].Status)
	assert.Equal(t, StatusSucceeded, result.Steps["sibling"].Status, "independent branch still runs")
	assert.Equal(t, StatusSucceeded, result.Steps["ok_root"].Status)
}

func TestRunRetriesOnlyRetryableSteps(t *testing.T) {
	settings := testSettings(t)
	store := testStore(t, settings)

	attempts := 0
	retrying := &retryingStep{
		fakeStep: fakeStep{name: "flaky", run: func(sc *StepContext) (int64, error) {
			attempts++
			if attempts < 3 {
				return 0, errTest("transient")
			}
			return 7, nil
		}},
		retry: conf.RetrySettings{Enabled: true, MaxRetries: 3, RetryDelay: 0, BackoffMult: 1},
	}

	plainAttempts := 0
	plain := &fakeStep{name: "plain", run: func(sc *StepContext) (int64, error) {
		plainAttempts++
		return 0, errTest("always fails")
	}}

	g := buildGraph(t, retrying, plain)
	runner := NewRunner(g, settings, store, ingest.NewLake(settings), nil, nil)

	result, err := runner.Run(context.Background())
	require.Error(t, err, "plain step still fails the run")

	assert.Equal(t, StatusSucceeded, result.Steps["flaky"].Status)
	assert.Equal(t, 3, result.Steps["flaky"].Attempts)
	assert.Equal(t, int64(7), result.Steps["flaky"].Rows)
	assert.Equal(t, 1, plainAttempts, "non-retryable step runs exactly once")
}

func TestGuardTableBlocksViolatedStaging(t *testing.T) {
	settings := testSettings(t)
	store := testStore(t, settings)

	sc := &StepContext{
		Ctx:      context.Background(),
		Settings: settings,
		Store:    store,
		Now:      func() time.Time { return testNow },
	}
	require.NoError(t, guardTable(sc, "staging"))

	// a negative counter only appears when something writes around the
	// cleanser; the guard keeps dependent builds away from it
	require.NoError(t, store.Conn().Create(&datastore.StagedMessage{
		MessageID: 1, ChannelName: "tikvahpharma", ViewCount: -4,
	}).Error)
	assert.Error(t, guardTable(sc, "staging"))
	assert.NoError(t, guardTable(sc, "dim_channel"), "other tables have their own guard")
}

func TestRunSubsetOrdersByDependency(t *testing.T) {
	settings := testSettings(t)
	store := testStore(t, settings)

	var order []string
	record := func(name string) func(*StepContext) (int64, error) {
		return func(*StepContext) (int64, error) {
			order = append(order, name)
			return 0, nil
		}
	}
	g := buildGraph(t,
		&fakeStep{name: "a", run: record("a")},
		&fakeStep{name: "b", deps: []string{"a"}, run: record("b")},
		&fakeStep{name: "c", deps: []string{"b"}, run: record("c")},
	)
	runner := NewRunner(g, settings, store, ingest.NewLake(settings), nil, nil)

	results, err := runner.RunSubset(context.Background(), []string{"c", "a"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"a", "c"}, order, "b is not requested and assumed materialized")
	assert.Equal(t, "a", results[0].Name)
	assert.Equal(t, "c", results[1].Name)
	assert.Equal(t, StatusSucceeded, results[0].Status)
}

func TestRunSubsetSkipsDependentsOfFailedMember(t *testing.T) {
	settings := testSettings(t)
	store := testStore(t, settings)

	g := buildGraph(t,
		&fakeStep{name: "bad", run: func(*StepContext) (int64, error) { return 0, errTest("boom") }},
		&fakeStep{name: "child", deps: []string{"bad"}},
		&fakeStep{name: "grandchild", deps: []string{"child"}},
	)
	runner := NewRunner(g, settings, store, ingest.NewLake(settings), nil, nil)

	results, err := runner.RunSubset(context.Background(), []string{"bad", "child", "grandchild"})
	require.Error(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, StatusSkipped, results[1].Status)
	assert.Equal(t, StatusSkipped, results[2].Status, "skips propagate through the subset")
}

func TestRunSubsetUnknownName(t *testing.T) {
	settings := testSettings(t)
	store := testStore(t, settings)
	runner := newTestRunner(t, settings, store)

	results, err := runner.RunSubset(context.Background(), []string{StepStage, "no_such_step"})
	assert.Error(t, err)
	assert.Empty(t, results, "nothing runs when any name is unknown")
}

func TestRunSubsetValidateGatesEnrichment(t *testing.T) {
	settings := testSettings(t)
	seedLake(t, settings)
	store := testStore(t, settings)
	runner := newTestRunner(t, settings, store)

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	// an orphan fact written around the pipeline
	require.NoError(t, store.Conn().Create(&datastore.MessageFact{
		MessageID: 999, ChannelKey: 42, DateKey: 19990101, ProductType: "other",
	}).Error)

	results, err := runner.RunSubset(context.Background(), []string{StepValidate, StepEnrich})
	require.Error(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, StepValidate, results[0].Name)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, StatusSkipped, results[1].Status, "enrichment keeps its last good join")
}

func TestRunStepUnknownName(t *testing.T) {
	settings := testSettings(t)
	store := testStore(t, settings)
	runner := newTestRunner(t, settings, store)

	_, err := runner.RunStep(context.Background(), "no_such_step")
	assert.Error(t, err)
}

func TestRunHonorsCancellation(t *testing.T) {
	settings := testSettings(t)
	store := testStore(t, settings)

	ctx, cancel := context.WithCancel(context.Background())
	g := buildGraph(t,
		&fakeStep{name: "first", run: func(sc *StepContext) (int64, error) {
			cancel()
			return 0, nil
		}},
		&fakeStep{name: "second", deps: []string{"first"}},
	)

	runner := NewRunner(g, settings, store, ingest.NewLake(settings), nil, nil)
	result, err := runner.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, StatusSkipped, result.Steps["second"].Status)
}

// retryingStep adds a retry policy to fakeStep
type retryingStep struct {
	fakeStep
	retry conf.RetrySettings
}

func (s *retryingStep) Retry() conf.RetrySettings { return s.retry }

// errTest is a trivial error type for runner tests
type errTest string

func (e errTest) Error() string { return string(e) }
