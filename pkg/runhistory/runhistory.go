// Package runhistory stores every evaluated trial of an optimization run and
// serves the aggregated cost estimates intensifiers use to compare
// configurations.
package runhistory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/XiaoConstantine/smac-go/pkg/core"
	"github.com/XiaoConstantine/smac-go/pkg/errors"
	"github.com/XiaoConstantine/smac-go/pkg/logging"
)

// RunHistory is the ledger of all trials executed so far. It assigns numeric
// identifiers to configurations, indexes which instance, seed and budget
// combinations each configuration ran on, and keeps per-configuration cost
// caches so incumbent comparisons never rescan the raw data.
//
// Cost caches hold one value per objective. For multi-objective runs the
// scalar read through GetCost is the mean of the costs normalized by the
// objective bounds, which are tracked over successful trials only.
type RunHistory struct {
	overwriteExistingTrials bool

	// -1 until the first trial fixes the number of objectives.
	nObjectives int

	data     map[TrialKey]TrialValue
	order    []TrialKey
	external map[TrialKey]DataOrigin

	configIDs map[string]int
	idsConfig map[int]*core.Configuration
	nID       int

	iskBudgets map[int]map[InstanceSeedKey][]float64
	iskOrder   map[int][]InstanceSeedKey

	costPerConfig      map[int][]float64
	minCostPerConfig   map[int][]float64
	numTrialsPerConfig map[int]int

	objectiveBounds [][2]float64
}

// Option configures a RunHistory.
type Option func(*RunHistory)

// WithOverwriteExistingTrials makes repeated additions of the same trial key
// replace the stored value instead of being ignored. Cost caches are then
// recomputed from scratch on every addition.
func WithOverwriteExistingTrials() Option {
	return func(rh *RunHistory) {
		rh.overwriteExistingTrials = true
	}
}

// New creates an empty run history.
func New(opts ...Option) *RunHistory {
	rh := &RunHistory{}
	for _, opt := range opts {
		opt(rh)
	}
	rh.Reset()
	return rh
}

// Reset clears all trials, configurations and caches.
func (rh *RunHistory) Reset() {
	rh.nObjectives = -1
	rh.data = map[TrialKey]TrialValue{}
	rh.order = nil
	rh.external = map[TrialKey]DataOrigin{}
	rh.configIDs = map[string]int{}
	rh.idsConfig = map[int]*core.Configuration{}
	rh.nID = 0
	rh.iskBudgets = map[int]map[InstanceSeedKey][]float64{}
	rh.iskOrder = map[int][]InstanceSeedKey{}
	rh.costPerConfig = map[int][]float64{}
	rh.minCostPerConfig = map[int][]float64{}
	rh.numTrialsPerConfig = map[int]int{}
	rh.objectiveBounds = nil
}

// Len returns the number of stored trials.
func (rh *RunHistory) Len() int {
	return len(rh.data)
}

// Empty reports whether the history holds no trials.
func (rh *RunHistory) Empty() bool {
	return len(rh.data) == 0
}

// NumObjectives returns the number of objectives observed so far, or -1 if no
// trial has been added yet.
func (rh *RunHistory) NumObjectives() int {
	return rh.nObjectives
}

// ObjectiveBounds returns the per-objective (min, max) cost observed over
// successful trials.
func (rh *RunHistory) ObjectiveBounds() [][2]float64 {
	bounds := make([][2]float64, len(rh.objectiveBounds))
	copy(bounds, rh.objectiveBounds)
	return bounds
}

// Add records the result of an internally executed trial.
func (rh *RunHistory) Add(info TrialInfo, value TrialValue) error {
	return rh.AddWithOrigin(info, value, OriginInternal, false)
}

// AddWithOrigin records a trial result. The configuration is registered and
// gets an identifier on first sight. A key that is already present is ignored
// unless force is set or the history overwrites existing trials.
func (rh *RunHistory) AddWithOrigin(info TrialInfo, value TrialValue, origin DataOrigin, force bool) error {
	if info.Config == nil {
		return errors.New(errors.InvalidInput, "Configuration must not be empty.")
	}
	if len(value.Cost) == 0 {
		return errors.New(errors.InvalidInput, "Cost must hold at least one objective value.")
	}

	if rh.nObjectives == -1 {
		rh.nObjectives = len(value.Cost)
	} else if len(value.Cost) != rh.nObjectives {
		return errors.New(errors.ObjectiveMismatch, fmt.Sprintf(
			"Cost is not of the same length (%d) as the number of objectives (%d).",
			len(value.Cost), rh.nObjectives))
	}

	id, ok := rh.configIDs[info.Config.Key()]
	if !ok {
		rh.nID++
		id = rh.nID
		rh.configIDs[info.Config.Key()] = id
		rh.idsConfig[id] = info.Config
	}

	if err := checkJSONSerializable(info, value); err != nil {
		return err
	}

	k := TrialKey{ConfigID: id, Instance: info.Instance, Seed: info.Seed, Budget: info.Budget}
	v := TrialValue{
		Cost:           append([]float64(nil), value.Cost...),
		Time:           value.Time,
		Status:         value.Status,
		StartTime:      value.StartTime,
		EndTime:        value.EndTime,
		AdditionalInfo: value.AdditionalInfo,
	}

	if _, exists := rh.data[k]; exists && !force && !rh.overwriteExistingTrials {
		logging.GetLogger().Info(context.Background(),
			"Entry was not added to the run history because existing trials will not be overwritten.")
		return nil
	}

	return rh.insert(k, v, origin)
}

// insert stores the trial and refreshes bounds, the instance-seed index and
// the cost caches. Running placeholders and trials from a different instance
// set stay out of the index and the caches.
func (rh *RunHistory) insert(k TrialKey, v TrialValue, origin DataOrigin) error {
	if _, seen := rh.data[k]; !seen {
		rh.order = append(rh.order, k)
	}
	rh.data[k] = v
	rh.external[k] = origin
	rh.updateObjectiveBounds()

	if origin == OriginExternalDifferentInstances || v.Status == core.StatusRunning {
		return nil
	}

	isk := k.InstanceSeedKey()
	budgets, ok := rh.iskBudgets[k.ConfigID][isk]
	if !ok {
		if seen := rh.iskOrder[k.ConfigID]; len(seen) > 0 && (seen[0].Instance == "") != (k.Instance == "") {
			return errors.WithFields(
				errors.New(errors.InconsistentTrials,
					"Can not mix instances of different types for the same configuration."),
				errors.Fields{"existing_instance": seen[0].Instance, "new_instance": k.Instance})
		}
		if rh.iskBudgets[k.ConfigID] == nil {
			rh.iskBudgets[k.ConfigID] = map[InstanceSeedKey][]float64{}
		}
		rh.iskBudgets[k.ConfigID][isk] = []float64{k.Budget}
		rh.iskOrder[k.ConfigID] = append(rh.iskOrder[k.ConfigID], isk)
	} else {
		if (budgets[0] == 0) != (k.Budget == 0) {
			return errors.New(errors.InconsistentTrials,
				"Can not mix budgets of different types for the same instance-seed pair.")
		}
		present := false
		for _, b := range budgets {
			if b == k.Budget {
				present = true
				break
			}
		}
		if !present {
			rh.iskBudgets[k.ConfigID][isk] = append(budgets, k.Budget)
		}
	}

	config := rh.idsConfig[k.ConfigID]
	if !rh.overwriteExistingTrials && k.Budget == 0 {
		rh.incrementalUpdateCost(config, v.Cost)
	} else {
		rh.updateCost(config)
	}
	return nil
}

// updateObjectiveBounds recomputes the per-objective cost bounds over all
// successful trials. With no successful trial the bounds stay at (+inf, -inf).
func (rh *RunHistory) updateObjectiveBounds() {
	bounds := make([][2]float64, rh.nObjectives)
	for i := range bounds {
		bounds[i] = [2]float64{math.Inf(1), math.Inf(-1)}
	}
	for _, k := range rh.order {
		v := rh.data[k]
		if v.Status != core.StatusSuccess {
			continue
		}
		for i, c := range v.Cost {
			if c < bounds[i][0] {
				bounds[i][0] = c
			}
			if c > bounds[i][1] {
				bounds[i][1] = c
			}
		}
	}
	rh.objectiveBounds = bounds
}

// updateCost recomputes the cached cost of a configuration from all its
// trials, using only the highest observed budget per instance-seed pair for
// the average and every budget for the minimum.
func (rh *RunHistory) updateCost(config *core.Configuration) {
	id := rh.configIDs[config.Key()]

	keys := rh.GetTrials(config, true)
	rh.costPerConfig[id] = rh.AverageCost(config, keys)
	rh.numTrialsPerConfig[id] = len(keys)

	all := rh.GetTrials(config, false)
	rh.minCostPerConfig[id] = rh.MinCost(config, all)
}

// incrementalUpdateCost folds one new cost into the cached average without
// rescanning the history. The minimum cost cache is not touched here; it is
// maintained by updateCost and UpdateCosts.
func (rh *RunHistory) incrementalUpdateCost(config *core.Configuration, cost []float64) {
	id := rh.configIDs[config.Key()]
	n := rh.numTrialsPerConfig[id]

	old := rh.costPerConfig[id]
	if old == nil {
		old = make([]float64, rh.nObjectives)
	}
	updated := make([]float64, len(old))
	for i := range old {
		updated[i] = (old[i]*float64(n) + cost[i]) / float64(n+1)
	}
	rh.costPerConfig[id] = updated
	rh.numTrialsPerConfig[id] = n + 1
}

// UpdateCosts recomputes the cost caches of every configuration from scratch.
// If instances is non-nil only trials on those instances count; configurations
// without a matching trial keep no cached cost.
func (rh *RunHistory) UpdateCosts(instances []string) {
	rh.costPerConfig = map[int][]float64{}
	rh.numTrialsPerConfig = map[int]int{}

	for _, config := range rh.GetConfigs() {
		id := rh.configIDs[config.Key()]
		keys := rh.GetTrials(config, true)
		if instances != nil {
			var filtered []InstanceSeedBudgetKey
			for _, key := range keys {
				for _, instance := range instances {
					if key.Instance == instance {
						filtered = append(filtered, key)
						break
					}
				}
			}
			keys = filtered
		}
		if len(keys) > 0 {
			rh.costPerConfig[id] = rh.AverageCost(config, keys)
			rh.minCostPerConfig[id] = rh.MinCost(config, keys)
			rh.numTrialsPerConfig[id] = len(keys)
		}
	}
}

// GetTrials returns the instance-seed-budget combinations a configuration ran
// on, in first-seen order. With highestObservedBudgetOnly each instance-seed
// pair contributes only its highest observed budget.
func (rh *RunHistory) GetTrials(config *core.Configuration, highestObservedBudgetOnly bool) []InstanceSeedBudgetKey {
	if config == nil {
		return nil
	}
	id, ok := rh.configIDs[config.Key()]
	if !ok {
		return nil
	}

	var out []InstanceSeedBudgetKey
	for _, isk := range rh.iskOrder[id] {
		budgets := rh.iskBudgets[id][isk]
		if highestObservedBudgetOnly {
			max := budgets[0]
			for _, b := range budgets[1:] {
				if b > max {
					max = b
				}
			}
			out = append(out, InstanceSeedBudgetKey{Instance: isk.Instance, Seed: isk.Seed, Budget: max})
			continue
		}
		for _, b := range budgets {
			out = append(out, InstanceSeedBudgetKey{Instance: isk.Instance, Seed: isk.Seed, Budget: b})
		}
	}
	return out
}

// GetConfigs returns all registered configurations in the order they were
// first seen.
func (rh *RunHistory) GetConfigs() []*core.Configuration {
	ids := make([]int, 0, len(rh.idsConfig))
	for id := range rh.idsConfig {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	configs := make([]*core.Configuration, 0, len(ids))
	for _, id := range ids {
		configs = append(configs, rh.idsConfig[id])
	}
	return configs
}

// GetConfigsPerBudget returns the configurations that have a trial on one of
// the given budgets. A nil slice returns all configurations. Configurations
// with several matching trials appear once per trial.
func (rh *RunHistory) GetConfigsPerBudget(budgets []float64) []*core.Configuration {
	if budgets == nil {
		return rh.GetConfigs()
	}
	var configs []*core.Configuration
	for _, k := range rh.order {
		for _, b := range budgets {
			if k.Budget == b {
				configs = append(configs, rh.idsConfig[k.ConfigID])
				break
			}
		}
	}
	return configs
}

// GetIncumbent returns the configuration with the lowest cached cost, or nil
// for an empty history.
func (rh *RunHistory) GetIncumbent() *core.Configuration {
	var incumbent *core.Configuration
	lowest := math.Inf(1)
	for _, config := range rh.GetConfigs() {
		if cost := rh.GetCost(config); cost < lowest {
			lowest = cost
			incumbent = config
		}
	}
	return incumbent
}

// Keys returns the trial keys in insertion order.
func (rh *RunHistory) Keys() []TrialKey {
	keys := make([]TrialKey, len(rh.order))
	copy(keys, rh.order)
	return keys
}

// Get returns the stored value for a trial key.
func (rh *RunHistory) Get(k TrialKey) (TrialValue, bool) {
	v, ok := rh.data[k]
	return v, ok
}

// GetConfig returns the configuration registered under the given identifier.
func (rh *RunHistory) GetConfig(id int) *core.Configuration {
	return rh.idsConfig[id]
}

// GetConfigID returns the identifier assigned to a configuration.
func (rh *RunHistory) GetConfigID(config *core.Configuration) (int, bool) {
	if config == nil {
		return 0, false
	}
	id, ok := rh.configIDs[config.Key()]
	return id, ok
}

// Update merges all trials of another run history into this one under the
// given origin. Configuration identifiers are reassigned on this side.
func (rh *RunHistory) Update(other *RunHistory, origin DataOrigin) error {
	for _, k := range other.order {
		v := other.data[k]
		info := TrialInfo{
			Config:   other.idsConfig[k.ConfigID],
			Instance: k.Instance,
			Seed:     k.Seed,
			Budget:   k.Budget,
		}
		if err := rh.AddWithOrigin(info, v, origin, false); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether two run histories hold the same trial data.
func (rh *RunHistory) Equal(other *RunHistory) bool {
	if other == nil {
		return false
	}
	return reflect.DeepEqual(rh.data, other.data)
}

// checkJSONSerializable rejects trials whose configuration values, costs or
// additional info could not be written to the JSON file later.
func checkJSONSerializable(info TrialInfo, value TrialValue) error {
	checks := []struct {
		name string
		obj  interface{}
	}{
		{"config", info.Config.Values()},
		{"cost", value.Cost},
		{"additional_info", value.AdditionalInfo},
	}
	for _, check := range checks {
		if _, err := json.Marshal(check.obj); err != nil {
			return errors.Wrap(err, errors.UnserializableValue, fmt.Sprintf(
				"Cannot add %s to the run history because it raises an error during JSON encoding.",
				check.name))
		}
	}
	return nil
}
