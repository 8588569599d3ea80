package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/medtel-go/internal/classify"
	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/datastore"
	"github.com/tphakala/medtel-go/internal/errors"
	"github.com/tphakala/medtel-go/internal/ingest"
	"github.com/tphakala/medtel-go/internal/logging"
	"github.com/tphakala/medtel-go/internal/observability/metrics"
)

// ErrRunInProgress is returned when a run is requested while another is
// still active. Concurrent runs would race on the full-replace
// materializations, so the second caller is rejected rather than queued.
var ErrRunInProgress = errors.NewStd("pipeline run already in progress")

// StepStatus is the lifecycle state of one step within a run
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusRunning   StepStatus = "running"
	StatusSucceeded StepStatus = "succeeded"
	StatusFailed    StepStatus = "failed"
	StatusSkipped   StepStatus = "skipped"
)

// StepResult records what one step did during a run
type StepResult struct {
	Name     string
	Status   StepStatus
	Rows     int64
	Attempts int
	Duration time.Duration
	Err      error
}

// RunResult is the outcome of a whole pipeline run
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      map[string]*StepResult
	Err        error
}

// Succeeded reports whether every step completed
func (r *RunResult) Succeeded() bool {
	return r.Err == nil
}

// StepContext is handed to every step. It bundles the run identity with
// the shared collaborators so step implementations stay small.
type StepContext struct {
	Ctx         context.Context
	RunID       string
	Settings    *conf.Settings
	Store       datastore.Interface
	Lake        *ingest.Lake
	Source      ingest.RecordSource
	Classifiers *classify.Classifiers
	Now         func() time.Time
}

// RetryableStep is implemented by steps that may be retried on failure.
// Only acquisition opts in: it talks to an external collaborator and
// transient failures are expected there, while the warehouse-local steps
// are deterministic and retrying them would just repeat the failure.
type RetryableStep interface {
	Step
	Retry() conf.RetrySettings
}

// Runner executes a graph against the warehouse
type Runner struct {
	graph    *Graph
	settings *conf.Settings
	store    datastore.Interface
	lake     *ingest.Lake
	source   ingest.RecordSource
	metrics  *metrics.PipelineMetrics

	active atomic.Bool
}

// NewRunner wires a runner. metrics may be nil when telemetry is disabled.
func NewRunner(graph *Graph, settings *conf.Settings, store datastore.Interface, lake *ingest.Lake, source ingest.RecordSource, pipelineMetrics *metrics.PipelineMetrics) *Runner {
	return &Runner{
		graph:    graph,
		settings: settings,
		store:    store,
		lake:     lake,
		source:   source,
		metrics:  pipelineMetrics,
	}
}

// Run executes the full graph. A second Run while one is active returns
// ErrRunInProgress immediately.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	if !r.active.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.active.Store(false)

	log := logging.ForService("pipeline")

	classifiers, err := classify.FromSettings(r.settings)
	if err != nil {
		return nil, err
	}

	layers, err := r.graph.Layers()
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Steps:     make(map[string]*StepResult, len(r.graph.Names())),
	}
	for _, name := range r.graph.Names() {
		result.Steps[name] = &StepResult{Name: name, Status: StatusPending}
	}

	log.Info("Pipeline run starting", "run_id", result.RunID, "layers", len(layers))
	if r.metrics != nil {
		r.metrics.RecordRunStart()
	}

	stepCtx := &StepContext{
		Ctx:         ctx,
		RunID:       result.RunID,
		Settings:    r.settings,
		Store:       r.store,
		Lake:        r.lake,
		Source:      r.source,
		Classifiers: classifiers,
		Now:         time.Now,
	}

	var mu sync.Mutex
	maxParallel := r.settings.Pipeline.MaxParallel
	if maxParallel < 1 {
		maxParallel = 1
	}

	for _, layer := range layers {
		if ctx.Err() != nil {
			r.skipRemaining(result, ctx.Err())
			break
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(maxParallel)

		for _, name := range layer {
			step, _ := r.graph.Step(name)
			stepResult := result.Steps[name]

			mu.Lock()
			blocked := r.blockedByDependency(result, step)
			mu.Unlock()
			if blocked {
				mu.Lock()
				stepResult.Status = StatusSkipped
				mu.Unlock()
				log.Warn("Step skipped, dependency did not succeed", "run_id", result.RunID, "step", name)
				if r.metrics != nil {
					r.metrics.RecordStep(name, string(StatusSkipped), 0)
				}
				continue
			}

			group.Go(func() error {
				layerCtx := *stepCtx
				layerCtx.Ctx = groupCtx

				res := r.runStep(&layerCtx, step)

				mu.Lock()
				*stepResult = *res
				mu.Unlock()

				// step failures are recorded, not propagated: the rest of
				// the layer finishes and dependents are skipped
				return nil
			})
		}

		_ = group.Wait()
	}

	result.FinishedAt = time.Now()
	result.Err = r.collectFailure(result)

	if r.metrics != nil {
		r.metrics.RecordRunComplete(result.Succeeded(), result.FinishedAt.Sub(result.StartedAt).Seconds())
	}
	if result.Succeeded() {
		log.Info("Pipeline run finished", "run_id", result.RunID, "duration", result.FinishedAt.Sub(result.StartedAt))
	} else {
		log.Error("Pipeline run failed", "run_id", result.RunID, "error", result.Err)
	}

	return result, result.Err
}

// RunStep executes a single step in isolation, used by the step
// subcommand. Dependencies are not run; they must have been materialized
// by an earlier run.
func (r *Runner) RunStep(ctx context.Context, name string) (*StepResult, error) {
	results, err := r.RunSubset(ctx, []string{name})
	if len(results) == 1 {
		return results[0], results[0].Err
	}
	return nil, err
}

// RunSubset executes the named steps in dependency order under one run ID.
// Dependencies outside the subset are not run; like RunStep, they must have
// been materialized by an earlier run. When a subset member fails, members
// depending on it are skipped. Unknown names reject the whole request
// before anything executes.
func (r *Runner) RunSubset(ctx context.Context, names []string) ([]*StepResult, error) {
	if !r.active.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.active.Store(false)

	requested := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.graph.Step(name); !ok {
			return nil, errors.Newf("unknown step %q, have %v", name, r.graph.Names()).
				Component("pipeline").
				Category(errors.CategoryNotFound).
				Build()
		}
		requested[name] = true
	}

	layers, err := r.graph.Layers()
	if err != nil {
		return nil, err
	}

	classifiers, err := classify.FromSettings(r.settings)
	if err != nil {
		return nil, err
	}

	stepCtx := &StepContext{
		Ctx:         ctx,
		RunID:       uuid.New().String(),
		Settings:    r.settings,
		Store:       r.store,
		Lake:        r.lake,
		Source:      r.source,
		Classifiers: classifiers,
		Now:         time.Now,
	}

	log := logging.ForService("pipeline")
	notSucceeded := make(map[string]bool)
	results := make([]*StepResult, 0, len(requested))
	var failed, skipped []string

	for _, layer := range layers {
		for _, name := range layer {
			if !requested[name] {
				continue
			}
			step, _ := r.graph.Step(name)

			blocked := false
			for _, dep := range step.Deps() {
				if notSucceeded[dep] {
					blocked = true
					break
				}
			}
			if blocked {
				log.Warn("Step skipped, dependency did not succeed", "run_id", stepCtx.RunID, "step", name)
				notSucceeded[name] = true
				skipped = append(skipped, name)
				results = append(results, &StepResult{Name: name, Status: StatusSkipped})
				if r.metrics != nil {
					r.metrics.RecordStep(name, string(StatusSkipped), 0)
				}
				continue
			}

			res := r.runStep(stepCtx, step)
			results = append(results, res)
			if res.Status != StatusSucceeded {
				notSucceeded[name] = true
				failed = append(failed, name)
			}
		}
	}

	if len(failed) > 0 || len(skipped) > 0 {
		return results, errors.Newf("step subset incomplete: failed=%v skipped=%v", failed, skipped).
			Component("pipeline").
			Category(errors.CategoryPipeline).
			Context("run_id", stepCtx.RunID).
			Build()
	}
	return results, nil
}

func (r *Runner) runStep(stepCtx *StepContext, step Step) *StepResult {
	log := logging.ForService("pipeline")
	result := &StepResult{Name: step.Name(), Status: StatusRunning}

	retry := conf.RetrySettings{}
	if rs, ok := step.(RetryableStep); ok {
		retry = rs.Retry()
	}
	maxAttempts := 1
	if retry.Enabled && retry.MaxRetries > 0 {
		maxAttempts = retry.MaxRetries + 1
	}

	start := time.Now()
	delay := time.Duration(retry.RetryDelay) * time.Second
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		if err := stepCtx.Ctx.Err(); err != nil {
			result.Err = err
			break
		}

		rows, err := step.Run(stepCtx)
		if err == nil {
			result.Rows = rows
			result.Err = nil
			break
		}
		result.Err = err

		if attempt < maxAttempts {
			log.Warn("Step failed, retrying",
				"run_id", stepCtx.RunID,
				"step", step.Name(),
				"attempt", attempt,
				"delay", delay,
				"error", err)
			select {
			case <-time.After(delay):
			case <-stepCtx.Ctx.Done():
				result.Err = stepCtx.Ctx.Err()
				attempt = maxAttempts
			}
			if retry.BackoffMult > 1 {
				delay = time.Duration(float64(delay) * retry.BackoffMult)
			}
		}
	}
	result.Duration = time.Since(start)

	if result.Err != nil {
		result.Status = StatusFailed
		log.Error("Step failed",
			"run_id", stepCtx.RunID,
			"step", step.Name(),
			"attempts", result.Attempts,
			"duration", result.Duration,
			"error", result.Err)
	} else {
		result.Status = StatusSucceeded
		log.Info("Step finished",
			"run_id", stepCtx.RunID,
			"step", step.Name(),
			"rows", result.Rows,
			"duration", result.Duration)
	}

	if r.metrics != nil {
		r.metrics.RecordStep(step.Name(), string(result.Status), result.Duration.Seconds())
	}
	return result
}

// blockedByDependency reports whether any dependency of the step did not
// succeed. Skipping propagates transitively because a skipped dependency is
// itself not succeeded.
func (r *Runner) blockedByDependency(result *RunResult, step Step) bool {
	for _, dep := range step.Deps() {
		if res, ok := result.Steps[dep]; ok && res.Status != StatusSucceeded {
			return true
		}
	}
	return false
}

func (r *Runner) skipRemaining(result *RunResult, cause error) {
	for _, res := range result.Steps {
		if res.Status == StatusPending {
			res.Status = StatusSkipped
			res.Err = cause
		}
	}
}

func (r *Runner) collectFailure(result *RunResult) error {
	var failed, skipped []string
	for _, name := range r.graph.Names() {
		switch result.Steps[name].Status {
		case StatusFailed:
			failed = append(failed, name)
		case StatusSkipped:
			skipped = append(skipped, name)
		}
	}
	if len(failed) == 0 && len(skipped) == 0 {
		return nil
	}
	return errors.Newf("pipeline run incomplete: failed=%v skipped=%v", failed, skipped).
		Component("pipeline").
		Category(errors.CategoryPipeline).
		Context("run_id", result.RunID).
		Build()
}
