package runhistory

import (
	"math"

	"github.com/XiaoConstantine/smac-go/pkg/core"
)

// GetCost returns the cached cost of a configuration. Multi-objective costs
// are normalized by the objective bounds and averaged into a scalar. Unknown
// configurations read as NaN.
func (rh *RunHistory) GetCost(config *core.Configuration) float64 {
	id, ok := rh.GetConfigID(config)
	if !ok {
		return math.NaN()
	}
	cost, ok := rh.costPerConfig[id]
	if !ok {
		return math.NaN()
	}
	return rh.scalarize(cost)
}

// GetMinCost returns the lowest cached cost of a configuration across all of
// its trials. Unknown configurations read as NaN.
func (rh *RunHistory) GetMinCost(config *core.Configuration) float64 {
	id, ok := rh.GetConfigID(config)
	if !ok {
		return math.NaN()
	}
	cost, ok := rh.minCostPerConfig[id]
	if !ok {
		return math.NaN()
	}
	return rh.scalarize(cost)
}

// AverageCost returns the per-objective mean cost of a configuration over the
// given keys. A nil slice averages over the highest observed budget of every
// instance-seed pair. Returns nil when no trial matches.
func (rh *RunHistory) AverageCost(config *core.Configuration, keys []InstanceSeedBudgetKey) []float64 {
	rows := rh.costRows(config, keys)
	if len(rows) == 0 {
		return nil
	}
	out := make([]float64, len(rows[0]))
	for _, row := range rows {
		for i, c := range row {
			out[i] += c
		}
	}
	for i := range out {
		out[i] /= float64(len(rows))
	}
	return out
}

// SumCost returns the per-objective total cost of a configuration over the
// given keys. Returns nil when no trial matches.
func (rh *RunHistory) SumCost(config *core.Configuration, keys []InstanceSeedBudgetKey) []float64 {
	rows := rh.costRows(config, keys)
	if len(rows) == 0 {
		return nil
	}
	out := make([]float64, len(rows[0]))
	for _, row := range rows {
		for i, c := range row {
			out[i] += c
		}
	}
	return out
}

// MinCost returns the per-objective minimum cost of a configuration over the
// given keys. Returns nil when no trial matches.
func (rh *RunHistory) MinCost(config *core.Configuration, keys []InstanceSeedBudgetKey) []float64 {
	rows := rh.costRows(config, keys)
	if len(rows) == 0 {
		return nil
	}
	out := make([]float64, len(rows[0]))
	for i := range out {
		out[i] = math.Inf(1)
	}
	for _, row := range rows {
		for i, c := range row {
			if c < out[i] {
				out[i] = c
			}
		}
	}
	return out
}

// NormalizedAverageCost reduces AverageCost to the scalar the intensifiers
// compare. Single-objective costs pass through, multi-objective costs are
// normalized by the objective bounds and averaged. Returns NaN when no trial
// matches.
func (rh *RunHistory) NormalizedAverageCost(config *core.Configuration, keys []InstanceSeedBudgetKey) float64 {
	cost := rh.AverageCost(config, keys)
	if cost == nil {
		return math.NaN()
	}
	return rh.scalarize(cost)
}

// scalarize turns a per-objective cost vector into the single value used for
// comparisons.
func (rh *RunHistory) scalarize(cost []float64) float64 {
	if rh.nObjectives > 1 {
		return mean(normalizeCosts(cost, rh.objectiveBounds))
	}
	return cost[0]
}

// costRows collects the raw cost vectors of a configuration for the given
// keys, in key order. A nil slice selects the highest observed budget of every
// instance-seed pair.
func (rh *RunHistory) costRows(config *core.Configuration, keys []InstanceSeedBudgetKey) [][]float64 {
	if config == nil {
		return nil
	}
	id, ok := rh.configIDs[config.Key()]
	if !ok {
		return nil
	}
	if keys == nil {
		keys = rh.GetTrials(config, true)
	}

	rows := make([][]float64, 0, len(keys))
	for _, key := range keys {
		k := TrialKey{ConfigID: id, Instance: key.Instance, Seed: key.Seed, Budget: key.Budget}
		if v, ok := rh.data[k]; ok {
			rows = append(rows, v.Cost)
		}
	}
	return rows
}

// normalizeCosts maps each objective value into the unit interval using the
// observed bounds. Objectives with degenerate bounds, including those never
// observed on a successful trial, normalize to 1.
func normalizeCosts(values []float64, bounds [][2]float64) []float64 {
	normalized := make([]float64, len(values))
	for i, v := range values {
		lower, upper := bounds[i][0], bounds[i][1]
		if math.IsInf(lower, 0) || math.IsInf(upper, 0) || upper-lower <= 0 {
			normalized[i] = 1
			continue
		}
		normalized[i] = (v - lower) / (upper - lower)
	}
	return normalized
}

func mean(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
