package intensify

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/XiaoConstantine/smac-go/pkg/core"
	"github.com/XiaoConstantine/smac-go/pkg/errors"
	"github.com/XiaoConstantine/smac-go/pkg/logging"
	"github.com/XiaoConstantine/smac-go/pkg/runhistory"
)

// workerConfig collects the tunables shared by workers and coordinators.
// Zero budgets fall back to the scenario's budget range. The pairs, budgets
// and counts presets are set only by hyperband, which shares one pair set
// across brackets and hands each bracket its exact rung ladder so repeated
// floating point derivation can not drift.
type workerConfig struct {
	minBudget          float64
	maxBudget          float64
	eta                float64
	nSeeds             int
	minChallenger      int
	instanceOrder      InstanceOrder
	incumbentSelection IncumbentSelection

	pairs   []runhistory.InstanceSeedKey
	budgets []float64
	counts  []int
}

func defaultWorkerConfig(scenario *core.Scenario) workerConfig {
	return workerConfig{
		minBudget:          scenario.MinBudget,
		maxBudget:          scenario.MaxBudget,
		eta:                3,
		nSeeds:             1,
		minChallenger:      1,
		instanceOrder:      ShuffleOnce,
		incumbentSelection: HighestExecutedBudget,
	}
}

// schedule is the precomputed rung plan of one successive halving line.
type schedule struct {
	minBudget        float64
	maxBudget        float64
	instanceAsBudget bool
	repeatConfigs    bool
	pairs            []runhistory.InstanceSeedKey
	budgets          []float64
	counts           []int
}

// buildSchedule validates the intensification parameters and lays out the
// geometric rung ladder. With more than one instance-seed pair the pair
// count acts as the budget; with a single pair the caller must supply a
// real-valued budget range.
func buildSchedule(scenario *core.Scenario, cfg workerConfig, rng *rand.Rand) (schedule, error) {
	if cfg.eta <= 1 {
		return schedule{}, errors.New(errors.InvalidInput, "The parameter `eta` must be greater than 1.")
	}

	pairs := cfg.pairs
	if pairs == nil {
		pairs = buildInstanceSeedPairs(scenario, cfg, rng)
	}

	minBudget, maxBudget := cfg.minBudget, cfg.maxBudget
	instanceAsBudget := false
	if len(pairs) > 1 {
		if minBudget == 0 {
			minBudget = 1
		}
		if maxBudget == 0 {
			maxBudget = float64(len(pairs))
		}
		if maxBudget > float64(len(pairs)) {
			return schedule{}, errors.New(errors.InvalidInput,
				"Max budget can not be greater than the number of instance-seed pairs.")
		}
		if maxBudget < float64(len(pairs)) {
			logging.GetLogger().Warn(context.Background(),
				"Max budget %g does not cover all %d instance-seed pairs; the remaining pairs are never scheduled.",
				maxBudget, len(pairs))
		}
		instanceAsBudget = true
	} else if minBudget == 0 || maxBudget == 0 {
		return schedule{}, errors.New(errors.InvalidInput,
			"Successive halving with real-valued budget (i.e. only 1 instance-seed pair) "+
				"requires parameters `min_budget` and `max_budget` for intensification!")
	}

	var budgets []float64
	var counts []int
	if cfg.budgets != nil && cfg.counts != nil {
		budgets = cfg.budgets
		counts = cfg.counts
	} else {
		sMax := int(math.Floor(math.Log(maxBudget/minBudget) / math.Log(cfg.eta)))
		budgets = make([]float64, sMax+1)
		counts = make([]int, sMax+1)
		for i := 0; i <= sMax; i++ {
			budgets[i] = maxBudget * math.Pow(cfg.eta, float64(i-sMax))
			counts[i] = int(math.Floor(math.Pow(cfg.eta, float64(sMax-i))))
		}
		if budgets[0] != minBudget {
			logging.GetLogger().Debug(context.Background(),
				"Min budget %g is not an eta fraction of max budget %g; the lowest rung runs at %g.",
				minBudget, maxBudget, budgets[0])
		}
	}

	return schedule{
		minBudget:        minBudget,
		maxBudget:        maxBudget,
		instanceAsBudget: instanceAsBudget,
		repeatConfigs:    instanceAsBudget,
		pairs:            pairs,
		budgets:          budgets,
		counts:           counts,
	}, nil
}

// buildInstanceSeedPairs expands the scenario instances across the seed set:
// seed 0 for deterministic targets, nSeeds random seeds otherwise. Pairs are
// ordered seed-major so one full instance sweep completes before the next
// seed begins.
func buildInstanceSeedPairs(scenario *core.Scenario, cfg workerConfig, rng *rand.Rand) []runhistory.InstanceSeedKey {
	instances := scenario.Instances
	if len(instances) == 0 {
		instances = []string{""}
	}

	var seeds []int64
	if scenario.Deterministic {
		if cfg.nSeeds > 1 {
			logging.GetLogger().Warn(context.Background(),
				"The target is deterministic; n_seeds=%d is ignored and every instance runs with seed 0.", cfg.nSeeds)
		}
		seeds = []int64{0}
	} else {
		seeds = make([]int64, cfg.nSeeds)
		for i := range seeds {
			seeds[i] = int64(rng.Int31())
		}
		if cfg.nSeeds == 1 {
			logging.GetLogger().Warn(context.Background(),
				"The target is non-deterministic but only one seed is evaluated per instance. Consider increasing n_seeds.")
		}
	}

	pairs := make([]runhistory.InstanceSeedKey, 0, len(instances)*len(seeds))
	for _, seed := range seeds {
		for _, instance := range instances {
			pairs = append(pairs, runhistory.InstanceSeedKey{Instance: instance, Seed: seed})
		}
	}

	if cfg.instanceOrder == ShuffleOnce {
		rng.Shuffle(len(pairs), func(i, j int) {
			pairs[i], pairs[j] = pairs[j], pairs[i]
		})
	}
	return pairs
}

// trialSlot tracks one launched trial of the current iteration. Configs are
// keyed by canonical value identity, not pointer, so a re-created equal
// configuration lands on the same slot.
type trialSlot struct {
	config   string
	instance string
	seed     int64
	budget   float64
}

// SuccessiveHalvingWorker walks a single rung ladder from the cheapest
// budget to the most expensive, promoting the best challengers at each
// step. It is driven entirely through GetNextRun and ProcessResults and
// keeps no goroutines of its own; the stage state materializes on the first
// scheduling call.
type SuccessiveHalvingWorker struct {
	scenario *core.Scenario
	logger   *logging.Logger
	rng      *rand.Rand
	cfg      workerConfig

	identifier int

	minBudget        float64
	maxBudget        float64
	instanceAsBudget bool
	repeatConfigs    bool
	instSeedPairs    []runhistory.InstanceSeedKey
	allBudgets       []float64
	nConfigsInStage  []int

	initialized   bool
	stage         int
	shIters       int
	iterationDone bool
	firstRun      bool

	runTracker        map[trialSlot]bool
	curInstIdx        map[string]int
	runningChallenger *core.Configuration
	newChallenger     bool
	configsToRun      []*core.Configuration

	successChallengers      map[string]*core.Configuration
	doNotAdvanceChallengers map[string]*core.Configuration
	failChallengers         map[string]*core.Configuration
	failChalOffset          int

	numRun int
	taTime float64
}

// NewSuccessiveHalvingWorker builds a single scheduling line from the
// scenario budgets and instances. Most callers want the SuccessiveHalving
// coordinator instead; a bare worker serves the serial case.
func NewSuccessiveHalvingWorker(scenario *core.Scenario, opts ...Option) (*SuccessiveHalvingWorker, error) {
	cfg := defaultWorkerConfig(scenario)
	for _, opt := range opts {
		opt(&cfg)
	}
	return newWorker(scenario, rand.New(rand.NewSource(scenario.Seed)), 0, cfg)
}

func newWorker(scenario *core.Scenario, rng *rand.Rand, identifier int, cfg workerConfig) (*SuccessiveHalvingWorker, error) {
	sched, err := buildSchedule(scenario, cfg, rng)
	if err != nil {
		return nil, err
	}

	w := &SuccessiveHalvingWorker{
		scenario:   scenario,
		logger:     logging.GetLogger(),
		rng:        rng,
		cfg:        cfg,
		identifier: identifier,

		minBudget:        sched.minBudget,
		maxBudget:        sched.maxBudget,
		instanceAsBudget: sched.instanceAsBudget,
		repeatConfigs:    sched.repeatConfigs,
		instSeedPairs:    sched.pairs,
		allBudgets:       sched.budgets,
		nConfigsInStage:  sched.counts,

		firstRun:   true,
		runTracker: make(map[trialSlot]bool),
		curInstIdx: make(map[string]int),

		successChallengers:      make(map[string]*core.Configuration),
		doNotAdvanceChallengers: make(map[string]*core.Configuration),
		failChallengers:         make(map[string]*core.Configuration),
	}

	budgetType := "real-valued budgets"
	if w.instanceAsBudget {
		budgetType = "instances as budget"
	}
	w.logger.Debug(context.Background(),
		"Successive halving worker %d uses %s: rung budgets %v, challengers per stage %v.",
		identifier, budgetType, w.allBudgets, w.nConfigsInStage)
	return w, nil
}

// stagePairs returns the instance-seed pairs evaluated in the current
// stage: the next slice of the pair list when instances act as the budget,
// otherwise always the single first pair.
func (w *SuccessiveHalvingWorker) stagePairs() []runhistory.InstanceSeedKey {
	if !w.instanceAsBudget {
		return w.instSeedPairs[:1]
	}
	prev := 0
	if w.stage > 0 {
		prev = int(w.allBudgets[w.stage-1])
	}
	return w.instSeedPairs[prev:int(w.allBudgets[w.stage])]
}

// stageBudget is the budget stamped on trials of the current stage.
// Instance-as-budget trials carry no numeric budget.
func (w *SuccessiveHalvingWorker) stageBudget() float64 {
	if w.instanceAsBudget {
		return 0
	}
	return w.allBudgets[w.stage]
}

// allStageSlotsLaunched reports whether every challenger slot of the stage
// already has all its pairs in flight, accounting for slots lost to earlier
// failures.
func (w *SuccessiveHalvingWorker) allStageSlotsLaunched() bool {
	need := w.nConfigsInStage[w.stage] - w.failChalOffset
	nPairs := len(w.stagePairs())
	launched := 0
	for _, idx := range w.curInstIdx {
		if idx >= nPairs {
			launched++
		}
	}
	return launched >= need
}

// GetNextRun picks the next slot of the current stage. The running
// challenger is fed until it has launched every pair of the stage, then the
// next promoted (stage > 0) or fresh (stage 0) challenger takes over. Once
// every stage slot is in flight the worker answers WAIT until results come
// back through ProcessResults.
func (w *SuccessiveHalvingWorker) GetNextRun(
	challengers []*core.Configuration,
	ask AskFunc,
	incumbent *core.Configuration,
	rh *runhistory.RunHistory,
	nWorkers int,
) (runhistory.TrialInfoIntent, runhistory.TrialInfo, error) {
	if nWorkers > 1 {
		w.logger.Warn(context.Background(),
			"A successive halving worker schedules a single line; n_workers=%d is ignored.", nWorkers)
	}
	if !w.initialized {
		if err := w.updateStage(rh); err != nil {
			return runhistory.IntentWait, runhistory.TrialInfo{}, err
		}
	}
	w.iterationDone = false

	if w.allStageSlotsLaunched() {
		return runhistory.IntentWait, runhistory.TrialInfo{}, nil
	}

	pairs := w.stagePairs()

	challenger := w.runningChallenger
	newChallenger := false
	if challenger == nil || w.curInstIdx[challenger.Key()] >= len(pairs) {
		var err error
		challenger, newChallenger, err = w.nextStageChallenger(challengers, ask, rh)
		if err != nil {
			return runhistory.IntentWait, runhistory.TrialInfo{}, err
		}
		if challenger == nil {
			return runhistory.IntentWait, runhistory.TrialInfo{}, nil
		}
		w.curInstIdx[challenger.Key()] = 0
		w.runningChallenger = challenger
	}
	w.newChallenger = newChallenger

	idx := w.curInstIdx[challenger.Key()]
	pair := pairs[idx]
	budget := w.stageBudget()
	w.runTracker[trialSlot{challenger.Key(), pair.Instance, pair.Seed, budget}] = false
	w.curInstIdx[challenger.Key()] = idx + 1

	return runhistory.IntentRun, runhistory.TrialInfo{
		Config:   challenger,
		Instance: pair.Instance,
		Seed:     pair.Seed,
		Budget:   budget,
		Source:   w.identifier,
	}, nil
}

// nextStageChallenger picks the configuration that owns the next stage
// slot. Stage zero draws fresh challengers; later stages consume the pool
// promoted by the previous rung.
func (w *SuccessiveHalvingWorker) nextStageChallenger(
	challengers []*core.Configuration,
	ask AskFunc,
	rh *runhistory.RunHistory,
) (*core.Configuration, bool, error) {
	if w.stage > 0 {
		if len(w.configsToRun) == 0 {
			return nil, false, nil
		}
		next := w.configsToRun[0]
		w.configsToRun = w.configsToRun[1:]
		return next, false, nil
	}

	next, err := w.nextChallenger(challengers, ask, rh)
	if err != nil || next == nil {
		return nil, false, err
	}
	return next, true, nil
}

// nextChallenger walks the candidate sources in order: the explicit list
// first, the ask callback only when the list is empty. When the worker does
// not repeat configurations, candidates already known to the run history
// (including RUNNING placeholders) are skipped.
func (w *SuccessiveHalvingWorker) nextChallenger(
	challengers []*core.Configuration,
	ask AskFunc,
	rh *runhistory.RunHistory,
) (*core.Configuration, error) {
	candidates := challengers
	if len(candidates) == 0 {
		if ask == nil {
			return nil, errors.New(errors.InvalidInput,
				"No challengers and no ask callback provided. Can not generate a new challenger!")
		}
		candidates = ask()
	}

	if w.repeatConfigs {
		if len(candidates) == 0 {
			return nil, nil
		}
		return candidates[0], nil
	}

	used := make(map[string]struct{})
	if rh != nil {
		for _, c := range rh.GetConfigs() {
			used[c.Key()] = struct{}{}
		}
	}
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		if _, ok := used[candidate.Key()]; !ok {
			return candidate, nil
		}
	}
	return nil, nil
}

// ProcessResults folds one finished trial back into the stage bookkeeping
// and returns the current incumbent with its cost. The first result ever
// processed adopts its configuration as incumbent when the caller has none.
// Once the challenger has reported every pair of the stage it is compared
// against the incumbent, and once the whole stage has reported the worker
// advances to the next rung.
func (w *SuccessiveHalvingWorker) ProcessResults(
	info runhistory.TrialInfo,
	value runhistory.TrialValue,
	incumbent *core.Configuration,
	timeBound float64,
	rh *runhistory.RunHistory,
) (*core.Configuration, float64, error) {
	if info.Config == nil {
		return incumbent, rh.GetCost(incumbent),
			errors.New(errors.InvalidInput, "Can not process a result without a configuration.")
	}
	if !w.initialized {
		if err := w.updateStage(rh); err != nil {
			return incumbent, rh.GetCost(incumbent), err
		}
	}

	key := info.Config.Key()
	w.runTracker[trialSlot{key, info.Instance, info.Seed, info.Budget}] = true
	w.numRun++
	w.taTime += value.Time

	if incumbent == nil && w.firstRun {
		w.logger.Info(context.Background(),
			"First run and no incumbent provided; the challenger is assumed to be the incumbent.")
		incumbent = info.Config
		w.firstRun = false
	}
	if timeBound > 0 && !math.IsInf(timeBound, 1) && w.taTime > timeBound {
		w.logger.Debug(context.Background(),
			"Accumulated %.2fs of target time against an advisory bound of %.2fs.", w.taTime, timeBound)
	}

	switch value.Status {
	case core.StatusSuccess:
		w.successChallengers[key] = info.Config
	case core.StatusDoNotAdvance:
		w.doNotAdvanceChallengers[key] = info.Config
	default:
		w.failChallengers[key] = info.Config
	}

	// the challenger faces the incumbent only once all its pairs of this
	// stage have reported
	pairs := w.stagePairs()
	budget := w.stageBudget()
	processed := 0
	for _, p := range pairs {
		if w.runTracker[trialSlot{key, p.Instance, p.Seed, budget}] {
			processed++
		}
	}
	if processed == len(pairs) {
		newIncumbent, err := w.compareConfigs(info.Config, incumbent, rh)
		if err != nil {
			return incumbent, rh.GetCost(incumbent), err
		}
		incumbent = newIncumbent
	}

	if w.stageDone() {
		if err := w.updateStage(rh); err != nil {
			return incumbent, rh.GetCost(incumbent), err
		}
	}
	return incumbent, rh.GetCost(incumbent), nil
}

// stageDone reports whether every challenger slot of the stage has results
// for all its launched trials.
func (w *SuccessiveHalvingWorker) stageDone() bool {
	reported := make(map[string]struct{})
	for k := range w.successChallengers {
		reported[k] = struct{}{}
	}
	for k := range w.doNotAdvanceChallengers {
		reported[k] = struct{}{}
	}
	for k := range w.failChallengers {
		reported[k] = struct{}{}
	}
	if len(reported)+w.failChalOffset < w.nConfigsInStage[w.stage] {
		return false
	}
	for _, done := range w.runTracker {
		if !done {
			return false
		}
	}
	return true
}

// updateStage advances the rung ladder. The first call only materializes
// the tracking state. Later calls promote the stage survivors into the next
// rung or, when the ladder is exhausted or nothing survived, close the
// iteration and start the next one from stage zero.
func (w *SuccessiveHalvingWorker) updateStage(rh *runhistory.RunHistory) error {
	if !w.initialized {
		w.initialized = true
		w.stage = 0
		w.shIters = 0
		w.configsToRun = nil
		w.failChalOffset = 0
	} else {
		w.stage++
		valid := w.validChallengers(rh)

		nextIteration := false
		if w.stage < len(w.allBudgets) && len(valid) > 0 {
			k := w.nConfigsInStage[w.stage]
			if k < 1 {
				k = 1
			}
			top, err := w.topK(valid, rh, k)
			if err != nil {
				return err
			}
			promoted := make([]*core.Configuration, 0, len(top))
			for _, c := range top {
				if _, ok := w.doNotAdvanceChallengers[c.Key()]; !ok {
					promoted = append(promoted, c)
				}
			}
			w.configsToRun = promoted
			if missing := w.nConfigsInStage[w.stage] - len(promoted); missing > 0 {
				w.failChalOffset = missing
			} else {
				w.failChalOffset = 0
			}
			if len(promoted) == 0 {
				w.logger.Info(context.Background(),
					"Stage %d of iteration %d has no challengers left to run; starting the next iteration.",
					w.stage, w.shIters)
				nextIteration = true
			}
		} else {
			nextIteration = true
		}

		if nextIteration {
			w.iterationDone = true
			w.shIters++
			w.stage = 0
			w.configsToRun = nil
			w.failChalOffset = 0
			w.runTracker = make(map[trialSlot]bool)
			if w.cfg.instanceOrder == ShuffleEachIteration {
				w.rng.Shuffle(len(w.instSeedPairs), func(i, j int) {
					w.instSeedPairs[i], w.instSeedPairs[j] = w.instSeedPairs[j], w.instSeedPairs[i]
				})
			}
		}
	}

	w.successChallengers = make(map[string]*core.Configuration)
	w.doNotAdvanceChallengers = make(map[string]*core.Configuration)
	w.failChallengers = make(map[string]*core.Configuration)
	w.curInstIdx = make(map[string]int)
	w.runningChallenger = nil
	return nil
}

// validChallengers are the stage survivors eligible for promotion: success
// or do-not-advance, minus anything that also failed. Ordered by first
// appearance in the run history so promotion stays deterministic.
func (w *SuccessiveHalvingWorker) validChallengers(rh *runhistory.RunHistory) []*core.Configuration {
	byKey := make(map[string]*core.Configuration, len(w.successChallengers)+len(w.doNotAdvanceChallengers))
	for k, c := range w.successChallengers {
		byKey[k] = c
	}
	for k, c := range w.doNotAdvanceChallengers {
		byKey[k] = c
	}
	for k := range w.failChallengers {
		delete(byKey, k)
	}

	valid := make([]*core.Configuration, 0, len(byKey))
	for _, c := range byKey {
		valid = append(valid, c)
	}
	sort.Slice(valid, func(i, j int) bool {
		ri, rj := configRank(rh, valid[i]), configRank(rh, valid[j])
		if ri != rj {
			return ri < rj
		}
		return valid[i].Key() < valid[j].Key()
	})
	return valid
}

func configRank(rh *runhistory.RunHistory, c *core.Configuration) int {
	if rh != nil {
		if id, ok := rh.GetConfigID(c); ok {
			return id
		}
	}
	return math.MaxInt32
}

// topK sorts the candidates by their cached cost and keeps the best k. All
// candidates must have been measured on the same instance-seed-budget
// signature, otherwise their costs are not comparable.
func (w *SuccessiveHalvingWorker) topK(
	configs []*core.Configuration,
	rh *runhistory.RunHistory,
	k int,
) ([]*core.Configuration, error) {
	if len(configs) == 0 {
		return nil, nil
	}
	reference := rh.GetTrials(configs[0], true)
	for _, c := range configs {
		trials := rh.GetTrials(c, true)
		if !sameTrialSignature(trials, reference) {
			return nil, errors.New(errors.IncomparableConfigs, fmt.Sprintf(
				"Can not compare configs that were run on different instances-seeds-budgets: %v and %v",
				reference, trials))
		}
	}

	ranked := append([]*core.Configuration(nil), configs...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return rh.GetCost(ranked[i]) < rh.GetCost(ranked[j])
	})
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked, nil
}

func sameTrialSignature(a, b []runhistory.InstanceSeedBudgetKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// compareConfigs decides whether the challenger replaces the incumbent once
// it has finished the stage. Instance-based runs race on the shared pair
// set; budget-based runs dispatch on the configured incumbent selection.
func (w *SuccessiveHalvingWorker) compareConfigs(
	challenger, incumbent *core.Configuration,
	rh *runhistory.RunHistory,
) (*core.Configuration, error) {
	if incumbent == nil {
		return challenger, nil
	}
	if w.instanceAsBudget {
		return w.raceConfigs(challenger, incumbent, rh), nil
	}
	if w.cfg.incumbentSelection == AnyBudget {
		return w.compareAcrossBudgets(challenger, incumbent, rh), nil
	}

	incTrials := rh.GetTrials(incumbent, true)
	challTrials := rh.GetTrials(challenger, true)
	if len(incTrials) > 1 {
		return nil, errors.New(errors.IncomparableConfigs, fmt.Sprintf(
			"Number of incumbent trials on the highest observed budget must not exceed 1, but is %d.",
			len(incTrials)))
	}
	if len(challTrials) > 1 {
		return nil, errors.New(errors.IncomparableConfigs, fmt.Sprintf(
			"Number of challenger trials on the highest observed budget must not exceed 1, but is %d.",
			len(challTrials)))
	}
	if len(challTrials) == 0 {
		return incumbent, nil
	}
	if len(incTrials) == 0 {
		return challenger, nil
	}

	incBudget := incTrials[0].Budget
	challBudget := challTrials[0].Budget

	if w.cfg.incumbentSelection == HighestBudget && challBudget < w.maxBudget {
		w.logger.Debug(context.Background(),
			"Challenger has only been evaluated up to budget %g; incumbent decisions require the full budget %g.",
			challBudget, w.maxBudget)
		return incumbent, nil
	}

	if incBudget > challBudget {
		w.logger.Debug(context.Background(),
			"Incumbent keeps its place: evaluated on budget %g, the challenger only on %g.",
			incBudget, challBudget)
		return incumbent, nil
	}
	if incBudget < challBudget {
		w.logger.Info(context.Background(),
			"Challenger replaces the incumbent: evaluated on budget %g versus %g.",
			challBudget, incBudget)
		return challenger, nil
	}

	challCost := rh.GetCost(challenger)
	incCost := rh.GetCost(incumbent)
	if challCost < incCost {
		w.logger.Info(context.Background(),
			"Challenger (%.4f) is better than the incumbent (%.4f) on budget %g; changing the incumbent.",
			challCost, incCost, challBudget)
		return challenger, nil
	}
	w.logger.Debug(context.Background(),
		"Incumbent (%.4f) is at least as good as the challenger (%.4f) on budget %g.",
		incCost, challCost, challBudget)
	return incumbent, nil
}

// raceConfigs is the instance-based comparison: both configurations are
// judged on the instance-seed pairs they share at their highest observed
// budgets. An undecided race keeps the incumbent until more pairs land.
func (w *SuccessiveHalvingWorker) raceConfigs(
	challenger, incumbent *core.Configuration,
	rh *runhistory.RunHistory,
) *core.Configuration {
	incTrials := rh.GetTrials(incumbent, true)
	challTrials := rh.GetTrials(challenger, true)

	incSet := make(map[runhistory.InstanceSeedBudgetKey]struct{}, len(incTrials))
	for _, k := range incTrials {
		incSet[k] = struct{}{}
	}
	shared := make([]runhistory.InstanceSeedBudgetKey, 0, len(challTrials))
	for _, k := range challTrials {
		if _, ok := incSet[k]; ok {
			shared = append(shared, k)
		}
	}

	challPerf := rh.NormalizedAverageCost(challenger, shared)
	incPerf := rh.NormalizedAverageCost(incumbent, shared)

	if challPerf > incPerf && len(challTrials) >= w.cfg.minChallenger {
		w.logger.Debug(context.Background(),
			"Incumbent (%.4f) is better than the challenger (%.4f) on %d shared trials.",
			incPerf, challPerf, len(shared))
		return incumbent
	}
	if len(challTrials) >= len(incTrials) && challPerf <= incPerf {
		w.logger.Info(context.Background(),
			"Challenger (%.4f) is at least as good as the incumbent (%.4f) and has caught up on trials; changing the incumbent.",
			challPerf, incPerf)
		return challenger
	}
	// undecided; the challenger needs more trials
	return incumbent
}

// compareAcrossBudgets implements the any_budget policy: the best cost
// reached on any completed budget wins.
func (w *SuccessiveHalvingWorker) compareAcrossBudgets(
	challenger, incumbent *core.Configuration,
	rh *runhistory.RunHistory,
) *core.Configuration {
	challCost := rh.GetMinCost(challenger)
	incCost := rh.GetMinCost(incumbent)
	if challCost < incCost {
		w.logger.Info(context.Background(),
			"Challenger (%.4f) has a better minimal cost than the incumbent (%.4f); changing the incumbent.",
			challCost, incCost)
		return challenger
	}
	return incumbent
}
