package intensify

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/XiaoConstantine/smac-go/pkg/core"
	"github.com/XiaoConstantine/smac-go/pkg/errors"
	"github.com/XiaoConstantine/smac-go/pkg/logging"
	"github.com/XiaoConstantine/smac-go/pkg/runhistory"
)

// HyperbandWorker runs successive halving brackets with varying
// aggressiveness: the first bracket eliminates hardest starting from the
// cheapest rung, the last one evaluates few challengers directly on the
// full budget. Each bracket is an inner successive halving worker that
// receives its exact rung ladder and challenger counts, so all brackets
// share one pair set and one ladder derivation.
type HyperbandWorker struct {
	scenario *core.Scenario
	logger   *logging.Logger
	rng      *rand.Rand
	cfg      workerConfig

	identifier int

	minBudget        float64
	maxBudget        float64
	instanceAsBudget bool
	instSeedPairs    []runhistory.InstanceSeedKey
	allBudgets       []float64
	sMax             int

	initialized   bool
	s             int
	hbIters       int
	iterationDone bool
	newChallenger bool
	numRun        int

	sh *SuccessiveHalvingWorker
}

// NewHyperbandWorker builds a single hyperband line from the scenario
// budgets. The first bracket is ready as soon as construction returns.
func NewHyperbandWorker(scenario *core.Scenario, opts ...Option) (*HyperbandWorker, error) {
	cfg := defaultWorkerConfig(scenario)
	for _, opt := range opts {
		opt(&cfg)
	}
	return newHyperbandWorker(scenario, rand.New(rand.NewSource(scenario.Seed)), 0, cfg)
}

func newHyperbandWorker(scenario *core.Scenario, rng *rand.Rand, identifier int, cfg workerConfig) (*HyperbandWorker, error) {
	sched, err := buildSchedule(scenario, cfg, rng)
	if err != nil {
		return nil, err
	}

	hb := &HyperbandWorker{
		scenario:   scenario,
		logger:     logging.GetLogger(),
		rng:        rng,
		cfg:        cfg,
		identifier: identifier,

		minBudget:        sched.minBudget,
		maxBudget:        sched.maxBudget,
		instanceAsBudget: sched.instanceAsBudget,
		instSeedPairs:    sched.pairs,
		allBudgets:       sched.budgets,
		sMax:             len(sched.budgets) - 1,
	}
	if err := hb.advanceBracket(); err != nil {
		return nil, err
	}
	return hb, nil
}

// advanceBracket moves to the next bracket, wrapping back to the most
// aggressive one once the cheapest bracket has finished, and builds the
// inner successive halving worker for it. The inner worker inherits this
// worker's identifier so results route back here.
func (hb *HyperbandWorker) advanceBracket() error {
	if !hb.initialized {
		hb.initialized = true
		hb.s = hb.sMax
		hb.hbIters = 0
	} else if hb.s == 0 {
		hb.s = hb.sMax
		hb.hbIters++
		hb.iterationDone = true
		hb.numRun = 0
	} else {
		hb.s--
	}

	// challenger count of the bracket, spread over its rungs the way
	// hpbandster does it
	n0 := int(math.Floor(float64(hb.sMax+1)/float64(hb.s+1)) * math.Pow(hb.cfg.eta, float64(hb.s)))
	counts := make([]int, hb.s+1)
	for i := range counts {
		counts[i] = int(math.RoundToEven(float64(n0) * math.Pow(hb.cfg.eta, -float64(i))))
	}

	cfg := hb.cfg
	cfg.pairs = hb.instSeedPairs
	cfg.budgets = hb.allBudgets[len(hb.allBudgets)-hb.s-1:]
	cfg.counts = counts

	sh, err := newWorker(hb.scenario, hb.rng, hb.identifier, cfg)
	if err != nil {
		return err
	}
	hb.sh = sh

	hb.logger.Info(context.Background(),
		"Hyperband worker %d opens bracket s=%d: %d challengers over budgets %v.",
		hb.identifier, hb.s, n0, cfg.budgets)
	return nil
}

// GetNextRun delegates scheduling to the current bracket.
func (hb *HyperbandWorker) GetNextRun(
	challengers []*core.Configuration,
	ask AskFunc,
	incumbent *core.Configuration,
	rh *runhistory.RunHistory,
	nWorkers int,
) (runhistory.TrialInfoIntent, runhistory.TrialInfo, error) {
	hb.iterationDone = false
	intent, info, err := hb.sh.GetNextRun(challengers, ask, incumbent, rh, nWorkers)
	hb.newChallenger = hb.sh.newChallenger
	return intent, info, err
}

// ProcessResults feeds the result to the current bracket and rolls over to
// the next bracket once the inner worker has finished its iteration.
func (hb *HyperbandWorker) ProcessResults(
	info runhistory.TrialInfo,
	value runhistory.TrialValue,
	incumbent *core.Configuration,
	timeBound float64,
	rh *runhistory.RunHistory,
) (*core.Configuration, float64, error) {
	newIncumbent, cost, err := hb.sh.ProcessResults(info, value, incumbent, timeBound, rh)
	if err != nil {
		return newIncumbent, cost, err
	}
	hb.numRun++

	if hb.sh.iterationDone {
		if err := hb.advanceBracket(); err != nil {
			return newIncumbent, cost, err
		}
	}
	return newIncumbent, cost, nil
}

// Hyperband coordinates multiple hyperband lines the same way
// SuccessiveHalving coordinates its workers: lazy worker creation up to the
// caller's capacity and strict result routing by source index.
type Hyperband struct {
	scenario *core.Scenario
	logger   *logging.Logger
	rng      *rand.Rand
	cfg      workerConfig
	workers  []*HyperbandWorker
}

// NewHyperband validates the intensification parameters and returns a
// coordinator with no workers yet.
func NewHyperband(scenario *core.Scenario, opts ...Option) (*Hyperband, error) {
	cfg := defaultWorkerConfig(scenario)
	for _, opt := range opts {
		opt(&cfg)
	}
	if _, err := buildSchedule(scenario, cfg, rand.New(rand.NewSource(scenario.Seed))); err != nil {
		return nil, err
	}
	return &Hyperband{
		scenario: scenario,
		logger:   logging.GetLogger(),
		rng:      rand.New(rand.NewSource(scenario.Seed)),
		cfg:      cfg,
	}, nil
}

// NumWorkers returns how many hyperband lines are currently active.
func (h *Hyperband) NumWorkers() int {
	return len(h.workers)
}

// AddNewWorker appends one worker as long as the nWorkers quota leaves room,
// and reports whether it did.
func (h *Hyperband) AddNewWorker(nWorkers int) bool {
	if len(h.workers) >= nWorkers {
		return false
	}
	w, err := newHyperbandWorker(h.scenario, h.rng, len(h.workers), h.cfg)
	if err != nil {
		return false
	}
	h.workers = append(h.workers, w)
	return true
}

func (h *Hyperband) sortedWorkers() []*HyperbandWorker {
	ranked := append([]*HyperbandWorker(nil), h.workers...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].sh.stage != ranked[j].sh.stage {
			return ranked[i].sh.stage > ranked[j].sh.stage
		}
		return len(ranked[i].sh.runTracker) > len(ranked[j].sh.runTracker)
	})
	return ranked
}

// GetNextRun asks the most advanced bracket for a trial first, spinning up
// a fresh worker when every active one waits and the quota allows it.
func (h *Hyperband) GetNextRun(
	challengers []*core.Configuration,
	ask AskFunc,
	incumbent *core.Configuration,
	rh *runhistory.RunHistory,
	nWorkers int,
) (runhistory.TrialInfoIntent, runhistory.TrialInfo, error) {
	for _, w := range h.sortedWorkers() {
		intent, info, err := w.GetNextRun(challengers, ask, incumbent, rh, 1)
		if err != nil {
			return intent, info, err
		}
		if intent != runhistory.IntentWait {
			return intent, info, nil
		}
	}

	if h.AddNewWorker(nWorkers) {
		w := h.workers[len(h.workers)-1]
		h.logger.Debug(context.Background(), "Added worker %d to hyperband.", w.identifier)
		return w.GetNextRun(challengers, ask, incumbent, rh, 1)
	}

	return runhistory.IntentWait, runhistory.TrialInfo{}, nil
}

// ProcessResults hands the result to the worker that issued the trial.
func (h *Hyperband) ProcessResults(
	info runhistory.TrialInfo,
	value runhistory.TrialValue,
	incumbent *core.Configuration,
	timeBound float64,
	rh *runhistory.RunHistory,
) (*core.Configuration, float64, error) {
	if info.Source < 0 || info.Source >= len(h.workers) {
		return incumbent, rh.GetCost(incumbent), errors.New(errors.UnknownWorker,
			"The result belongs to a worker this intensifier does not own.")
	}
	return h.workers[info.Source].ProcessResults(info, value, incumbent, timeBound, rh)
}
