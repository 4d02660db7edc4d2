package intensify

import (
	"context"
	"math/rand"
	"sort"

	"github.com/XiaoConstantine/smac-go/pkg/core"
	"github.com/XiaoConstantine/smac-go/pkg/errors"
	"github.com/XiaoConstantine/smac-go/pkg/logging"
	"github.com/XiaoConstantine/smac-go/pkg/runhistory"
)

// SuccessiveHalving fans trials out over a collection of single-line
// workers, one per concurrent rung line. Workers are created lazily as the
// caller reports capacity through nWorkers; every trial carries the index
// of the worker that issued it so results find their way back under
// asynchronous completion order. All workers draw from one shared random
// source, so seeds and shuffles stay reproducible for a fixed scenario
// seed regardless of how many workers end up active.
type SuccessiveHalving struct {
	scenario *core.Scenario
	logger   *logging.Logger
	rng      *rand.Rand
	cfg      workerConfig
	workers  []*SuccessiveHalvingWorker
}

// NewSuccessiveHalving validates the intensification parameters and returns
// a coordinator with no workers yet. The first GetNextRun call creates
// worker 0.
func NewSuccessiveHalving(scenario *core.Scenario, opts ...Option) (*SuccessiveHalving, error) {
	cfg := defaultWorkerConfig(scenario)
	for _, opt := range opts {
		opt(&cfg)
	}
	if _, err := buildSchedule(scenario, cfg, rand.New(rand.NewSource(scenario.Seed))); err != nil {
		return nil, err
	}
	return &SuccessiveHalving{
		scenario: scenario,
		logger:   logging.GetLogger(),
		rng:      rand.New(rand.NewSource(scenario.Seed)),
		cfg:      cfg,
	}, nil
}

// NumWorkers returns how many rung lines are currently active.
func (sh *SuccessiveHalving) NumWorkers() int {
	return len(sh.workers)
}

// AddNewWorker appends one worker as long as the nWorkers quota leaves
// room, and reports whether it did. Construction errors are impossible here
// since the parameters were validated when the coordinator was built.
func (sh *SuccessiveHalving) AddNewWorker(nWorkers int) bool {
	if len(sh.workers) >= nWorkers {
		return false
	}
	w, err := newWorker(sh.scenario, sh.rng, len(sh.workers), sh.cfg)
	if err != nil {
		return false
	}
	sh.workers = append(sh.workers, w)
	return true
}

// sortedWorkers orders the workers by how far along they are: deepest stage
// first, most launched trials first within a stage. Keeping the busiest
// line fed finishes iterations instead of fanning out new ones.
func (sh *SuccessiveHalving) sortedWorkers() []*SuccessiveHalvingWorker {
	ranked := append([]*SuccessiveHalvingWorker(nil), sh.workers...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].stage != ranked[j].stage {
			return ranked[i].stage > ranked[j].stage
		}
		return len(ranked[i].runTracker) > len(ranked[j].runTracker)
	})
	return ranked
}

// GetNextRun asks the most advanced worker for a trial first and falls back
// through the rest. When every active worker waits and the quota allows it,
// a fresh worker is spun up and asked instead. Only when no worker can run
// anything does the coordinator itself answer WAIT.
func (sh *SuccessiveHalving) GetNextRun(
	challengers []*core.Configuration,
	ask AskFunc,
	incumbent *core.Configuration,
	rh *runhistory.RunHistory,
	nWorkers int,
) (runhistory.TrialInfoIntent, runhistory.TrialInfo, error) {
	for _, w := range sh.sortedWorkers() {
		intent, info, err := w.GetNextRun(challengers, ask, incumbent, rh, 1)
		if err != nil {
			return intent, info, err
		}
		if intent != runhistory.IntentWait {
			return intent, info, nil
		}
	}

	if sh.AddNewWorker(nWorkers) {
		w := sh.workers[len(sh.workers)-1]
		sh.logger.Debug(context.Background(), "Added worker %d to successive halving.", w.identifier)
		return w.GetNextRun(challengers, ask, incumbent, rh, 1)
	}

	return runhistory.IntentWait, runhistory.TrialInfo{}, nil
}

// ProcessResults hands the result to the worker that issued the trial.
func (sh *SuccessiveHalving) ProcessResults(
	info runhistory.TrialInfo,
	value runhistory.TrialValue,
	incumbent *core.Configuration,
	timeBound float64,
	rh *runhistory.RunHistory,
) (*core.Configuration, float64, error) {
	if info.Source < 0 || info.Source >= len(sh.workers) {
		return incumbent, rh.GetCost(incumbent), errors.New(errors.UnknownWorker,
			"The result belongs to a worker this intensifier does not own.")
	}
	return sh.workers[info.Source].ProcessResults(info, value, incumbent, timeBound, rh)
}
