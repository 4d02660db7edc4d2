// Package smac is a Go implementation of the intensification and run
// bookkeeping core of sequential model-based algorithm configuration, the
// racing machinery known from SMAC.
//
// SMAC-Go answers one question well: given a stream of candidate
// configurations, which one actually wins? It races challengers against the
// incumbent across instances, seeds and budgets, spends evaluation budget on
// the promising ones and records every outcome in a replayable ledger. It
// deliberately does not include a surrogate model or an acquisition function;
// any sampler, from random search to a full Bayesian loop, plugs in through
// the ask callback.
//
// Key Components:
//
//   - Core: Run-level abstractions shared by every component. Scenario carries
//     objectives, instances, the budget range and worker counts; Space validates
//     and samples typed parameter configurations; StatusType classifies trial
//     outcomes.
//
//   - RunHistory: The append-only ledger of trials. Keys trials by
//     configuration, instance, seed and budget, maintains per-objective bounds,
//     averages multi-objective costs on a normalized scale and round-trips
//     through JSON for warm starts and merging.
//
//   - Intensify: The racing strategies:
//     * SuccessiveHalvingWorker: Races one ladder of geometrically growing
//       budgets, promoting the top configurations per stage
//     * SuccessiveHalving: Coordinates several ladder workers for parallel
//       evaluation
//     * HyperbandWorker / Hyperband: Sweeps successive halving brackets to
//       hedge the exploration/exploitation trade-off
//
//   - Optimize: The ask/tell driver. Pulls trials from an intensifier, fans
//     them out to a bounded worker pool, feeds results back and persists run
//     artifacts.
//
//   - Store: SQLite archives for run histories, one file per run.
//
//   - Export: Apache Arrow records and Parquet files for offline analysis.
//
// Simple Example:
//
//	import (
//	    "context"
//	    "log"
//	    "math/rand"
//
//	    "github.com/XiaoConstantine/smac-go/pkg/core"
//	    "github.com/XiaoConstantine/smac-go/pkg/intensify"
//	    "github.com/XiaoConstantine/smac-go/pkg/optimize"
//	    "github.com/XiaoConstantine/smac-go/pkg/runhistory"
//	)
//
//	func main() {
//	    scenario, err := core.NewScenario(core.Scenario{
//	        Name:      "quadratic",
//	        Seed:      0,
//	        MinBudget: 1,
//	        MaxBudget: 9,
//	        NTrials:   100,
//	        NWorkers:  2,
//	        Parameters: []core.Parameter{
//	            {Name: "x", Type: core.ParamFloat, Lower: -5, Upper: 5},
//	        },
//	    })
//	    if err != nil {
//	        log.Fatalf("Failed to create scenario: %v", err)
//	    }
//
//	    space, _ := scenario.BuildSpace()
//	    rng := rand.New(rand.NewSource(scenario.Seed))
//	    ask := func() []*core.Configuration {
//	        return []*core.Configuration{space.Sample(rng), space.Sample(rng)}
//	    }
//
//	    runner := func(ctx context.Context, info runhistory.TrialInfo) runhistory.TrialValue {
//	        x, _ := info.Config.Get("x")
//	        v := x.(float64)
//	        return runhistory.TrialValue{Cost: []float64{v * v}, Status: core.StatusSuccess}
//	    }
//
//	    intensifier, err := intensify.NewHyperband(scenario)
//	    if err != nil {
//	        log.Fatalf("Failed to create intensifier: %v", err)
//	    }
//
//	    driver, err := optimize.New(scenario, intensifier, runner, optimize.WithAsk(ask))
//	    if err != nil {
//	        log.Fatalf("Failed to create driver: %v", err)
//	    }
//
//	    result, err := driver.Run(context.Background())
//	    if err != nil {
//	        log.Fatalf("Optimization failed: %v", err)
//	    }
//
//	    log.Printf("Incumbent %s with cost %g", result.Incumbent, result.Cost)
//	}
//
// Advanced Features:
//
//   - Structured Logging: Every run carries a run ID through the context, and
//     trial completions log with per-trial fields for debugging and analysis.
//
//   - Warm Starts: Run histories load from JSON or SQLite and seed a new run,
//     so earlier evidence counts toward intensification decisions.
//
//   - Merging: Histories from separate runs merge with an explicit data origin,
//     keeping externally gathered trials distinguishable from internal ones.
//
//   - Multi-Objective Costs: Objective bounds update as results arrive and
//     per-objective costs aggregate on a normalized scale.
//
//   - Tooling: The runhist command inspects, merges and converts run history
//     files between JSON, SQLite and Parquet.
//
// For more examples and detailed documentation, visit:
// https://github.com/XiaoConstantine/smac-go
//
// SMAC-Go is released under the MIT License.
package smac
