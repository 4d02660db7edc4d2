// Package intensify implements successive halving and hyperband resource
// allocation over a shared run history. An intensifier never executes trials
// itself: GetNextRun hands out the next (configuration, instance, seed,
// budget) slot to evaluate, the caller runs it with whatever parallelism it
// has, and ProcessResults feeds the outcome back in whichever order trials
// finish. Waiting is expressed through the returned intent, never by
// blocking.
package intensify

import (
	"fmt"

	"github.com/XiaoConstantine/smac-go/pkg/core"
	"github.com/XiaoConstantine/smac-go/pkg/errors"
	"github.com/XiaoConstantine/smac-go/pkg/runhistory"
)

// AskFunc supplies challenger candidates on demand, typically backed by a
// model or a sampler. It may return fewer candidates than the intensifier
// ends up needing; it is polled again on the next scheduling call.
type AskFunc func() []*core.Configuration

// Intensifier is the scheduling interface shared by the successive halving
// and hyperband coordinators and their single-line workers. Implementations
// are not safe for concurrent use; one goroutine must own the intensifier
// together with its run history.
type Intensifier interface {
	// GetNextRun decides what to evaluate next. Challengers are tried in
	// order before ask is consulted. nWorkers bounds how many scheduling
	// lines the caller can service in parallel.
	GetNextRun(
		challengers []*core.Configuration,
		ask AskFunc,
		incumbent *core.Configuration,
		rh *runhistory.RunHistory,
		nWorkers int,
	) (runhistory.TrialInfoIntent, runhistory.TrialInfo, error)

	// ProcessResults records one finished trial and returns the (possibly
	// changed) incumbent with its cost. timeBound is advisory spent-time
	// accounting; it is never enforced here.
	ProcessResults(
		info runhistory.TrialInfo,
		value runhistory.TrialValue,
		incumbent *core.Configuration,
		timeBound float64,
		rh *runhistory.RunHistory,
	) (*core.Configuration, float64, error)
}

var _ Intensifier = (*SuccessiveHalvingWorker)(nil)
var _ Intensifier = (*SuccessiveHalving)(nil)
var _ Intensifier = (*HyperbandWorker)(nil)
var _ Intensifier = (*Hyperband)(nil)

// IncumbentSelection picks the rule used to decide whether a challenger
// replaces the incumbent when real-valued budgets are in play.
type IncumbentSelection int

const (
	// HighestExecutedBudget compares on the highest budget either
	// configuration has completed; a config evaluated on a higher budget
	// always beats one evaluated on a lower budget.
	HighestExecutedBudget IncumbentSelection = iota
	// HighestBudget only ever considers challengers that have completed the
	// globally largest budget.
	HighestBudget
	// AnyBudget compares the best cost each configuration achieved on any
	// budget it has completed.
	AnyBudget
)

var incumbentSelectionNames = [...]string{
	"highest_executed_budget",
	"highest_budget",
	"any_budget",
}

func (s IncumbentSelection) String() string {
	if s < 0 || int(s) >= len(incumbentSelectionNames) {
		return fmt.Sprintf("IncumbentSelection(%d)", int(s))
	}
	return incumbentSelectionNames[s]
}

// ParseIncumbentSelection converts the textual policy name used in scenario
// files and on the command line.
func ParseIncumbentSelection(name string) (IncumbentSelection, error) {
	for i, n := range incumbentSelectionNames {
		if n == name {
			return IncumbentSelection(i), nil
		}
	}
	return 0, errors.New(errors.InvalidInput, fmt.Sprintf("Unknown incumbent selection %q.", name))
}

// InstanceOrder controls how the instance-seed pairs are ordered before the
// rung slices are cut out of them.
type InstanceOrder int

const (
	// ShuffleOnce randomizes the pair order a single time at construction.
	ShuffleOnce InstanceOrder = iota
	// KeepOrder evaluates pairs exactly as the scenario lists them.
	KeepOrder
	// ShuffleEachIteration reshuffles at the start of every successive
	// halving iteration.
	ShuffleEachIteration
)

var instanceOrderNames = [...]string{
	"shuffle_once",
	"none",
	"shuffle",
}

func (o InstanceOrder) String() string {
	if o < 0 || int(o) >= len(instanceOrderNames) {
		return fmt.Sprintf("InstanceOrder(%d)", int(o))
	}
	return instanceOrderNames[o]
}

// ParseInstanceOrder converts the textual order name. The empty string maps
// to "none".
func ParseInstanceOrder(name string) (InstanceOrder, error) {
	if name == "" {
		return KeepOrder, nil
	}
	for i, n := range instanceOrderNames {
		if n == name {
			return InstanceOrder(i), nil
		}
	}
	return 0, errors.New(errors.InvalidInput, fmt.Sprintf("Unknown instance order %q.", name))
}

// Option adjusts intensifier construction. The same options are accepted by
// workers and coordinators; a coordinator forwards them to every worker it
// spawns.
type Option func(*workerConfig)

// WithEta sets the halving factor. Defaults to 3.
func WithEta(eta float64) Option {
	return func(c *workerConfig) {
		c.eta = eta
	}
}

// WithBudgets fixes the budget range instead of taking it from the scenario.
func WithBudgets(minBudget, maxBudget float64) Option {
	return func(c *workerConfig) {
		c.minBudget = minBudget
		c.maxBudget = maxBudget
	}
}

// WithNSeeds sets how many seeds each instance is paired with for
// non-deterministic targets. Defaults to 1.
func WithNSeeds(n int) Option {
	return func(c *workerConfig) {
		c.nSeeds = n
	}
}

// WithMinChallenger sets the minimum number of trials a challenger needs
// before it can be rejected in the racing comparison. Defaults to 1.
func WithMinChallenger(n int) Option {
	return func(c *workerConfig) {
		c.minChallenger = n
	}
}

// WithInstanceOrder sets the instance-seed pair ordering policy.
func WithInstanceOrder(order InstanceOrder) Option {
	return func(c *workerConfig) {
		c.instanceOrder = order
	}
}

// WithIncumbentSelection sets the incumbent replacement policy for
// budget-based runs.
func WithIncumbentSelection(selection IncumbentSelection) Option {
	return func(c *workerConfig) {
		c.incumbentSelection = selection
	}
}
