// Package testutil provides shared fixtures for package tests: a small
// two-parameter space, configurations built from it and ready-made scenarios
// for the instance-based and budget-based intensification modes.
package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/smac-go/pkg/core"
)

// Space returns a two-parameter space with a float and an int parameter.
func Space(tb testing.TB) *core.Space {
	tb.Helper()

	space, err := core.NewSpace([]core.Parameter{
		{Name: "alpha", Type: core.ParamFloat, Lower: 0, Upper: 1},
		{Name: "depth", Type: core.ParamInt, Lower: 1, Upper: 32},
	})
	require.NoError(tb, err)
	return space
}

// Config builds a configuration over Space with the given parameter values.
func Config(tb testing.TB, space *core.Space, alpha float64, depth int) *core.Configuration {
	tb.Helper()

	config, err := space.FromValues(map[string]interface{}{
		"alpha": alpha,
		"depth": depth,
	})
	require.NoError(tb, err)
	return config
}

// ConfigCost derives a deterministic cost from a configuration's values so
// tests can rank configurations without running anything.
func ConfigCost(config *core.Configuration) float64 {
	var cost float64
	for _, v := range config.Values() {
		switch x := v.(type) {
		case float64:
			cost += x
		case int:
			cost += float64(x)
		case int64:
			cost += float64(x)
		}
	}
	return cost
}

// Instances returns n instance names i1..iN.
func Instances(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("i%d", i+1)
	}
	return names
}

// Scenario builds a validated scenario for intensification tests. With
// nInstances == 0 the scenario runs in budget mode, otherwise min and max
// bound the instance-seed pair schedule.
func Scenario(tb testing.TB, deterministic bool, minBudget, maxBudget float64, nInstances int) *core.Scenario {
	tb.Helper()

	scenario, err := core.NewScenario(core.Scenario{
		Name:          "testutil-scenario",
		Seed:          42,
		Deterministic: deterministic,
		Instances:     Instances(nInstances),
		MinBudget:     minBudget,
		MaxBudget:     maxBudget,
	})
	require.NoError(tb, err)
	return scenario
}
