package pipeline

import (
	"path/filepath"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/datastore"
	"github.com/tphakala/medtel-go/internal/errors"
	"github.com/tphakala/medtel-go/internal/ingest"
	"github.com/tphakala/medtel-go/internal/observability"
	"github.com/tphakala/medtel-go/internal/observability/metrics"
)

// Bootstrap wires a runner with the default graph, the configured store,
// the file lake and, when telemetry is enabled, the metrics registry. The
// caller owns the returned store and must Close it.
func Bootstrap(settings *conf.Settings) (*Runner, datastore.Interface, *observability.Metrics, error) {
	store := datastore.New(settings)
	if store == nil {
		return nil, nil, nil, errors.Newf("no output store enabled in settings").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := store.Open(); err != nil {
		return nil, nil, nil, err
	}

	var obs *observability.Metrics
	var pipelineMetrics *metrics.PipelineMetrics
	if settings.Telemetry.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			_ = store.Close()
			return nil, nil, nil, err
		}
		obs = m
		pipelineMetrics = m.Pipeline
		store.SetMetrics(m.Warehouse)
	}

	graph, err := DefaultGraph(settings)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}

	lake := ingest.NewLake(settings)
	source := &ingest.FileSource{
		SpoolDir: filepath.Join(settings.Pipeline.Lake.BasePath, "spool"),
	}

	runner := NewRunner(graph, settings, store, lake, source, pipelineMetrics)
	return runner, store, obs, nil
}
