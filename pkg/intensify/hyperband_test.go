package intensify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/smac-go/pkg/core"
	pkgErrors "github.com/XiaoConstantine/smac-go/pkg/errors"
	"github.com/XiaoConstantine/smac-go/pkg/runhistory"
)

func TestHyperbandWorkerBracketWalk(t *testing.T) {
	t.Run("1 to 81 eta 3", func(t *testing.T) {
		scenario := shScenario(t, true, 1, 81, 0)
		hb, err := NewHyperbandWorker(scenario, WithEta(3))
		require.NoError(t, err)

		assert.Equal(t, 4, hb.sMax)
		assert.Equal(t, []float64{1, 3, 9, 27, 81}, hb.allBudgets)

		brackets := []struct {
			s       int
			counts  []int
			budgets []float64
		}{
			{4, []int{81, 27, 9, 3, 1}, []float64{1, 3, 9, 27, 81}},
			{3, []int{27, 9, 3, 1}, []float64{3, 9, 27, 81}},
			{2, []int{9, 3, 1}, []float64{9, 27, 81}},
			{1, []int{6, 2}, []float64{27, 81}},
			{0, []int{5}, []float64{81}},
		}
		for i, want := range brackets {
			if i > 0 {
				require.NoError(t, hb.advanceBracket())
			}
			assert.Equal(t, want.s, hb.s)
			assert.Equal(t, want.counts, hb.sh.nConfigsInStage)
			assert.Equal(t, want.budgets, hb.sh.allBudgets)
			assert.False(t, hb.iterationDone)
		}

		// Wrapping past the cheapest bracket closes the hyperband iteration.
		require.NoError(t, hb.advanceBracket())
		assert.Equal(t, 4, hb.s)
		assert.Equal(t, 1, hb.hbIters)
		assert.True(t, hb.iterationDone)
		assert.Equal(t, []int{81, 27, 9, 3, 1}, hb.sh.nConfigsInStage)
	})

	t.Run("1 to 10 eta 2", func(t *testing.T) {
		scenario := shScenario(t, true, 1, 10, 0)
		hb, err := NewHyperbandWorker(scenario, WithEta(2))
		require.NoError(t, err)

		assert.Equal(t, 3, hb.sMax)
		expected := [][]int{{8, 4, 2, 1}, {4, 2, 1}, {4, 2}, {4}}
		for i, counts := range expected {
			if i > 0 {
				require.NoError(t, hb.advanceBracket())
			}
			assert.Equal(t, counts, hb.sh.nConfigsInStage)
		}
	})

	t.Run("instance pairs as budget", func(t *testing.T) {
		scenario := shScenario(t, false, 1, 9, 9)
		hb, err := NewHyperbandWorker(scenario, WithEta(3))
		require.NoError(t, err)

		assert.True(t, hb.instanceAsBudget)
		assert.Equal(t, 2, hb.sMax)
		assert.Equal(t, []float64{1, 3, 9}, hb.allBudgets)
		assert.Equal(t, []int{9, 3, 1}, hb.sh.nConfigsInStage)
		assert.True(t, hb.sh.repeatConfigs)

		require.NoError(t, hb.advanceBracket())
		assert.Equal(t, []int{3, 1}, hb.sh.nConfigsInStage)
		assert.Equal(t, []float64{3, 9}, hb.sh.allBudgets)
		assert.Equal(t, hb.instSeedPairs, hb.sh.instSeedPairs)
	})
}

func TestHyperbandWorkerDelegation(t *testing.T) {
	space := testSpace(t)
	configs := testConfigs(t, space)

	scenario := shScenario(t, true, 1, 4, 0)
	hb, err := NewHyperbandWorker(scenario, WithEta(2))
	require.NoError(t, err)
	require.Equal(t, 2, hb.s)
	require.Equal(t, []int{4, 2, 1}, hb.sh.nConfigsInStage)

	rh := runhistory.New()
	challengers := append([]*core.Configuration(nil), configs...)
	var incumbent *core.Configuration
	var launched []runhistory.TrialInfo
	for i := 0; i < 20 && hb.s == 2; i++ {
		intent, info, err := hb.GetNextRun(challengers, nil, nil, rh, 1)
		require.NoError(t, err)
		require.Equal(t, runhistory.IntentRun, intent)
		challengers = removeConfig(challengers, info.Config)
		launched = append(launched, info)

		value := successValue(configCost(info.Config))
		require.NoError(t, rh.Add(info, value))
		incumbent, _, err = hb.ProcessResults(info, value, incumbent, math.Inf(1), rh)
		require.NoError(t, err)
	}

	// The first bracket runs 4+2+1 trials over the full rung ladder.
	require.Len(t, launched, 7)
	budgets := make([]float64, 0, len(launched))
	for _, info := range launched {
		budgets = append(budgets, info.Budget)
	}
	assert.Equal(t, []float64{1, 1, 1, 1, 2, 2, 4}, budgets)
	assert.Same(t, configs[0], launched[4].Config)
	assert.Same(t, configs[1], launched[5].Config)
	assert.Same(t, configs[0], launched[6].Config)
	assert.Same(t, configs[0], incumbent)

	// Finishing the bracket rolls over to the next one without closing the
	// hyperband iteration.
	assert.Equal(t, 1, hb.s)
	assert.Equal(t, []int{2, 1}, hb.sh.nConfigsInStage)
	assert.Equal(t, []float64{2, 4}, hb.sh.allBudgets)
	assert.False(t, hb.iterationDone)
	assert.Equal(t, 0, hb.hbIters)
	assert.Equal(t, 7, hb.numRun)
	// The last trial re-ran a promoted survivor, not a fresh challenger.
	assert.False(t, hb.newChallenger)
}

func TestHyperbandCoordinator(t *testing.T) {
	space := testSpace(t)
	c1 := testConfig(t, space, 0.1, 2)

	t.Run("validates on construction", func(t *testing.T) {
		_, err := NewHyperband(shScenario(t, true, 0, 0, 1))
		require.Error(t, err)
		assert.Equal(t, pkgErrors.InvalidInput, errorCode(t, err))
	})

	t.Run("worker quota", func(t *testing.T) {
		h, err := NewHyperband(shScenario(t, true, 1, 4, 1), WithEta(2))
		require.NoError(t, err)
		assert.Equal(t, 0, h.NumWorkers())
		assert.True(t, h.AddNewWorker(1))
		assert.False(t, h.AddNewWorker(1))
		assert.Equal(t, 1, h.NumWorkers())
	})

	t.Run("lazy creation and result routing", func(t *testing.T) {
		h, err := NewHyperband(shScenario(t, true, 1, 4, 1), WithEta(2))
		require.NoError(t, err)
		require.Equal(t, 0, h.NumWorkers())

		rh := runhistory.New()
		intent, info, err := h.GetNextRun([]*core.Configuration{c1}, nil, nil, rh, 2)
		require.NoError(t, err)
		assert.Equal(t, runhistory.IntentRun, intent)
		assert.Same(t, c1, info.Config)
		assert.Equal(t, 0, info.Source)
		assert.Equal(t, 1, h.NumWorkers())

		value := successValue(1)
		require.NoError(t, rh.Add(info, value))
		incumbent, _, err := h.ProcessResults(info, value, nil, math.Inf(1), rh)
		require.NoError(t, err)
		assert.Same(t, c1, incumbent)

		stray := info
		stray.Source = 3
		_, _, err = h.ProcessResults(stray, value, incumbent, math.Inf(1), rh)
		require.Error(t, err)
		assert.Equal(t, pkgErrors.UnknownWorker, errorCode(t, err))
	})
}
