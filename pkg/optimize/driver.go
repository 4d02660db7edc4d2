// Package optimize runs the ask/tell loop around an intensifier. Trials are
// leased from the intensifier, executed on a bounded worker pool and told
// back in whatever order they finish. The run history and the intensifier
// are owned by the single driver goroutine; target functions only ever see
// the trial they execute.
package optimize

import (
	"context"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/XiaoConstantine/smac-go/pkg/core"
	"github.com/XiaoConstantine/smac-go/pkg/errors"
	"github.com/XiaoConstantine/smac-go/pkg/intensify"
	"github.com/XiaoConstantine/smac-go/pkg/logging"
	"github.com/XiaoConstantine/smac-go/pkg/runhistory"
)

// TrialRunner executes one trial and reports its outcome. Implementations
// must treat info as read-only and honor ctx cancellation; the returned
// value is recorded verbatim.
type TrialRunner func(ctx context.Context, info runhistory.TrialInfo) runhistory.TrialValue

type trialResult struct {
	info  runhistory.TrialInfo
	value runhistory.TrialValue
}

// Result summarizes a finished optimization run.
type Result struct {
	RunID     string
	Incumbent *core.Configuration
	Cost      float64
	NumTrials int
	History   *runhistory.RunHistory
}

// Driver wires a scenario, an intensifier and a target function into an
// ask/tell run.
type Driver struct {
	scenario    *core.Scenario
	intensifier intensify.Intensifier
	runner      TrialRunner
	challengers []*core.Configuration
	ask         intensify.AskFunc
	rh          *runhistory.RunHistory
	runID       string
	logger      *logging.Logger
}

// Option configures a driver.
type Option func(*Driver)

// WithChallengers seeds the driver with explicit challenger configurations.
// Each challenger is handed to the intensifier at most once.
func WithChallengers(challengers []*core.Configuration) Option {
	return func(d *Driver) { d.challengers = challengers }
}

// WithAsk installs a callback that supplies challengers once the explicit
// list is used up.
func WithAsk(ask intensify.AskFunc) Option {
	return func(d *Driver) { d.ask = ask }
}

// WithRunHistory resumes the run on top of an existing run history instead
// of an empty one. The incumbent is recovered from it.
func WithRunHistory(rh *runhistory.RunHistory) Option {
	return func(d *Driver) { d.rh = rh }
}

// New creates a driver. The scenario's NTrials bounds how many trials are
// launched, NWorkers bounds how many execute concurrently.
func New(scenario *core.Scenario, intensifier intensify.Intensifier, runner TrialRunner, opts ...Option) (*Driver, error) {
	if scenario == nil {
		return nil, errors.New(errors.InvalidInput, "scenario must not be nil")
	}
	if intensifier == nil {
		return nil, errors.New(errors.InvalidInput, "intensifier must not be nil")
	}
	if runner == nil {
		return nil, errors.New(errors.InvalidInput, "trial runner must not be nil")
	}
	if scenario.NWorkers < 1 {
		return nil, errors.New(errors.InvalidInput, "scenario must allow at least one worker")
	}

	d := &Driver{
		scenario:    scenario,
		intensifier: intensifier,
		runner:      runner,
		runID:       uuid.New().String(),
		logger:      logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.rh == nil {
		d.rh = runhistory.New()
	}
	return d, nil
}

// RunID returns the identifier assigned to this run. Output files are
// grouped under it.
func (d *Driver) RunID() string {
	return d.runID
}

// Run executes the optimization loop until the trial budget is spent, the
// scheduler runs dry or ctx is canceled. In-flight trials are always folded
// back into the run history before Run returns, so the ledger never ends
// with dangling RUNNING entries.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	ctx = logging.WithRunID(ctx, d.runID)

	nWorkers := d.scenario.NWorkers
	nTrials := d.scenario.NTrials
	d.logger.Info(ctx, "Starting run %s: %d trials on %d workers", d.runID, nTrials, nWorkers)

	results := make(chan trialResult, nWorkers)
	p := pool.New().WithMaxGoroutines(nWorkers)

	incumbent := d.rh.GetIncumbent()
	incumbentCost := math.NaN()
	if incumbent != nil {
		incumbentCost = d.rh.GetCost(incumbent)
	}

	challengers := append([]*core.Configuration(nil), d.challengers...)

	var (
		launched  int
		pending   int
		processed int
		runErr    error
	)

loop:
	for {
		if err := errors.CheckContext(ctx, "optimization run"); err != nil {
			runErr = err
			break
		}

		scheduled := false
		if launched < nTrials && pending < nWorkers {
			intent, info, err := d.intensifier.GetNextRun(challengers, d.ask, incumbent, d.rh, nWorkers)
			switch {
			case err != nil:
				if pending == 0 {
					d.logger.Info(ctx, "Ending run %s: %v", d.runID, err)
					break loop
				}
			case intent == runhistory.IntentRun:
				if err := d.launch(ctx, p, results, info); err != nil {
					runErr = err
					break loop
				}
				challengers = withoutConfig(challengers, info.Config)
				launched++
				pending++
				scheduled = true
			}
		}
		if scheduled {
			continue
		}
		if pending == 0 {
			d.logger.Info(ctx, "Ending run %s after %d trials: nothing left to schedule", d.runID, processed)
			break
		}

		select {
		case <-ctx.Done():
			// the next loop iteration turns this into a Canceled error
		case res := <-results:
			pending--
			processed++
			var err error
			incumbent, incumbentCost, err = d.tell(ctx, res, incumbent, incumbentCost)
			if err != nil {
				runErr = err
				break loop
			}
		}
	}

	p.Wait()
	for pending > 0 {
		res := <-results
		pending--
		processed++
		var err error
		incumbent, incumbentCost, err = d.tell(ctx, res, incumbent, incumbentCost)
		if err != nil && runErr == nil {
			runErr = err
		}
	}

	d.saveHistory(ctx)

	if incumbent != nil {
		d.logger.Info(ctx, "Finished run %s after %d trials: incumbent %s with cost %g",
			d.runID, processed, incumbent, incumbentCost)
	} else {
		d.logger.Info(ctx, "Finished run %s after %d trials without an incumbent", d.runID, processed)
	}

	return &Result{
		RunID:     d.runID,
		Incumbent: incumbent,
		Cost:      incumbentCost,
		NumTrials: processed,
		History:   d.rh,
	}, runErr
}

// launch records a RUNNING placeholder for the trial and submits it to the
// pool. The placeholder cost is never read back; RUNNING entries are
// excluded from cost aggregation.
func (d *Driver) launch(ctx context.Context, p *pool.Pool, results chan<- trialResult, info runhistory.TrialInfo) error {
	placeholder := runhistory.TrialValue{
		Cost:   inFlightCosts(len(d.scenario.Objectives)),
		Status: core.StatusRunning,
	}
	if err := d.rh.Add(info, placeholder); err != nil {
		return err
	}

	d.logger.Debug(ctx, "Submitting trial: config=%s instance=%q seed=%d budget=%g worker=%d",
		info.Config, info.Instance, info.Seed, info.Budget, info.Source)

	p.Go(func() {
		results <- trialResult{info: info, value: d.runner(ctx, info)}
	})
	return nil
}

// tell finalizes the trial in the run history and feeds it to the
// intensifier.
func (d *Driver) tell(ctx context.Context, res trialResult, incumbent *core.Configuration, incumbentCost float64) (*core.Configuration, float64, error) {
	if err := d.rh.AddWithOrigin(res.info, res.value, runhistory.OriginInternal, true); err != nil {
		return incumbent, incumbentCost, err
	}

	if id, ok := d.rh.GetConfigID(res.info.Config); ok {
		cost := math.NaN()
		if len(res.value.Cost) > 0 {
			cost = res.value.Cost[0]
		}
		d.logger.TrialFinished(ctx, logging.TrialRef{
			ConfigID: id,
			Instance: res.info.Instance,
			Seed:     res.info.Seed,
			Budget:   res.info.Budget,
		}, res.value.Status.String(), cost, res.value.Time)
	}

	newIncumbent, cost, err := d.intensifier.ProcessResults(res.info, res.value, incumbent, math.Inf(1), d.rh)
	if err != nil {
		return incumbent, incumbentCost, err
	}
	return newIncumbent, cost, nil
}

// saveHistory writes the scenario and the run history under the scenario's
// output directory, grouped by run id. Failures are reported but do not fail
// the run.
func (d *Driver) saveHistory(ctx context.Context) {
	if d.scenario.OutputDir == "" {
		return
	}
	dir := filepath.Join(d.scenario.OutputDir, d.runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		d.logger.Warn(ctx, "Failed to create output directory %s: %v", dir, err)
		return
	}
	if err := d.scenario.Save(filepath.Join(dir, "scenario.yaml")); err != nil {
		d.logger.Warn(ctx, "Failed to save scenario: %v", err)
	}
	if err := d.rh.SaveJSON(filepath.Join(dir, "runhistory.json"), false); err != nil {
		d.logger.Warn(ctx, "Failed to save run history: %v", err)
	}
}

func inFlightCosts(n int) []float64 {
	costs := make([]float64, n)
	for i := range costs {
		costs[i] = math.MaxFloat64
	}
	return costs
}

func withoutConfig(configs []*core.Configuration, config *core.Configuration) []*core.Configuration {
	if config == nil {
		return configs
	}
	out := configs[:0]
	for _, c := range configs {
		if c != nil && c.Equal(config) {
			continue
		}
		out = append(out, c)
	}
	return out
}
