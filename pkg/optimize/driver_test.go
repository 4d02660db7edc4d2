package optimize

import (
	"context"
	goerrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/smac-go/internal/testutil"
	"github.com/XiaoConstantine/smac-go/pkg/core"
	pkgErrors "github.com/XiaoConstantine/smac-go/pkg/errors"
	"github.com/XiaoConstantine/smac-go/pkg/intensify"
	"github.com/XiaoConstantine/smac-go/pkg/runhistory"
)

func driverConfigs(t *testing.T, space *core.Space) []*core.Configuration {
	t.Helper()
	return []*core.Configuration{
		testutil.Config(t, space, 0.1, 2),
		testutil.Config(t, space, 0.2, 4),
		testutil.Config(t, space, 0.3, 8),
		testutil.Config(t, space, 0.4, 16),
	}
}

// costRunner reports each configuration's fixture cost, so the cheapest
// challenger must end up incumbent no matter how trials interleave.
func costRunner() TrialRunner {
	return func(ctx context.Context, info runhistory.TrialInfo) runhistory.TrialValue {
		return runhistory.TrialValue{
			Cost:   []float64{testutil.ConfigCost(info.Config)},
			Time:   0.1,
			Status: core.StatusSuccess,
		}
	}
}

func errorCode(t *testing.T, err error) pkgErrors.ErrorCode {
	t.Helper()
	var e *pkgErrors.Error
	require.True(t, goerrors.As(err, &e))
	return e.Code()
}

func TestDriverRunsUntilChallengersExhausted(t *testing.T) {
	space := testutil.Space(t)
	configs := driverConfigs(t, space)
	scenario := testutil.Scenario(t, false, 2, 5, 3)

	worker, err := intensify.NewSuccessiveHalvingWorker(scenario,
		intensify.WithEta(2), intensify.WithNSeeds(2))
	require.NoError(t, err)

	driver, err := New(scenario, worker, costRunner(), WithChallengers(configs))
	require.NoError(t, err)

	result, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.RunID, 36)
	require.NotNil(t, result.Incumbent)
	assert.True(t, result.Incumbent.Equal(configs[0]))
	assert.Equal(t, testutil.ConfigCost(configs[0]), result.Cost)
	assert.Equal(t, 14, result.NumTrials)
	assert.Equal(t, 14, result.History.Len())

	for _, k := range result.History.Keys() {
		v, ok := result.History.Get(k)
		require.True(t, ok)
		assert.Equal(t, core.StatusSuccess, v.Status)
	}
}

func TestDriverParallelWorkers(t *testing.T) {
	space := testutil.Space(t)
	configs := driverConfigs(t, space)
	scenario := testutil.Scenario(t, false, 2, 5, 3)
	scenario.NWorkers = 2

	coordinator, err := intensify.NewSuccessiveHalving(scenario,
		intensify.WithEta(2), intensify.WithNSeeds(2))
	require.NoError(t, err)

	driver, err := New(scenario, coordinator, costRunner(), WithChallengers(configs))
	require.NoError(t, err)

	result, err := driver.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, result.Incumbent)
	assert.True(t, result.Incumbent.Equal(configs[0]))
	assert.GreaterOrEqual(t, result.NumTrials, 7)
	assert.Equal(t, result.NumTrials, result.History.Len())

	for _, k := range result.History.Keys() {
		v, ok := result.History.Get(k)
		require.True(t, ok)
		assert.Equal(t, core.StatusSuccess, v.Status)
	}
}

func TestDriverTrialBudget(t *testing.T) {
	space := testutil.Space(t)
	configs := driverConfigs(t, space)
	scenario := testutil.Scenario(t, true, 1, 4, 0)
	scenario.NTrials = 3

	worker, err := intensify.NewSuccessiveHalvingWorker(scenario, intensify.WithEta(2))
	require.NoError(t, err)

	driver, err := New(scenario, worker, costRunner(), WithChallengers(configs))
	require.NoError(t, err)

	result, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.NumTrials)
	assert.Equal(t, 3, result.History.Len())
}

func TestDriverAskCallback(t *testing.T) {
	space := testutil.Space(t)
	configs := driverConfigs(t, space)
	scenario := testutil.Scenario(t, true, 1, 4, 0)

	worker, err := intensify.NewSuccessiveHalvingWorker(scenario, intensify.WithEta(2))
	require.NoError(t, err)

	driver, err := New(scenario, worker, costRunner(),
		WithAsk(func() []*core.Configuration { return configs }))
	require.NoError(t, err)

	result, err := driver.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, result.Incumbent)
	assert.True(t, result.Incumbent.Equal(configs[0]))
	assert.Equal(t, testutil.ConfigCost(configs[0]), result.Cost)
	assert.Equal(t, 7, result.NumTrials)
}

func TestDriverResumesFromRunHistory(t *testing.T) {
	space := testutil.Space(t)
	configs := driverConfigs(t, space)
	scenario := testutil.Scenario(t, true, 1, 4, 0)

	best := testutil.Config(t, space, 0.05, 1)
	rh := runhistory.New()
	require.NoError(t, rh.Add(
		runhistory.TrialInfo{Config: best, Budget: 4},
		runhistory.TrialValue{Cost: []float64{testutil.ConfigCost(best)}, Status: core.StatusSuccess},
	))

	worker, err := intensify.NewSuccessiveHalvingWorker(scenario, intensify.WithEta(2))
	require.NoError(t, err)

	driver, err := New(scenario, worker, costRunner(),
		WithChallengers(configs), WithRunHistory(rh))
	require.NoError(t, err)

	result, err := driver.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, result.Incumbent)
	assert.True(t, result.Incumbent.Equal(best))
	assert.Equal(t, testutil.ConfigCost(best), result.Cost)
	assert.Equal(t, 7, result.NumTrials)
	assert.Equal(t, 8, result.History.Len())
}

func TestDriverCanceledContext(t *testing.T) {
	space := testutil.Space(t)
	configs := driverConfigs(t, space)
	scenario := testutil.Scenario(t, true, 1, 4, 0)

	worker, err := intensify.NewSuccessiveHalvingWorker(scenario, intensify.WithEta(2))
	require.NoError(t, err)

	driver, err := New(scenario, worker, costRunner(), WithChallengers(configs))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := driver.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, pkgErrors.Canceled, errorCode(t, err))
	assert.Equal(t, 0, result.NumTrials)
	assert.Nil(t, result.Incumbent)
}

func TestDriverSavesRunArtifacts(t *testing.T) {
	space := testutil.Space(t)
	configs := driverConfigs(t, space)
	scenario := testutil.Scenario(t, true, 1, 4, 0)
	scenario.OutputDir = t.TempDir()

	worker, err := intensify.NewSuccessiveHalvingWorker(scenario, intensify.WithEta(2))
	require.NoError(t, err)

	driver, err := New(scenario, worker, costRunner(), WithChallengers(configs))
	require.NoError(t, err)

	result, err := driver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, result.NumTrials)

	runDir := filepath.Join(scenario.OutputDir, driver.RunID())
	_, err = os.Stat(filepath.Join(runDir, "scenario.yaml"))
	assert.NoError(t, err)

	loaded := runhistory.New()
	require.NoError(t, loaded.LoadJSON(filepath.Join(runDir, "runhistory.json"), space))
	assert.True(t, loaded.Equal(result.History))
}

func TestDriverValidation(t *testing.T) {
	scenario := testutil.Scenario(t, true, 1, 4, 0)
	worker, err := intensify.NewSuccessiveHalvingWorker(scenario, intensify.WithEta(2))
	require.NoError(t, err)
	runner := costRunner()

	t.Run("nil scenario", func(t *testing.T) {
		_, err := New(nil, worker, runner)
		require.Error(t, err)
		assert.Equal(t, pkgErrors.InvalidInput, errorCode(t, err))
	})

	t.Run("nil intensifier", func(t *testing.T) {
		_, err := New(scenario, nil, runner)
		require.Error(t, err)
		assert.Equal(t, pkgErrors.InvalidInput, errorCode(t, err))
	})

	t.Run("nil runner", func(t *testing.T) {
		_, err := New(scenario, worker, nil)
		require.Error(t, err)
		assert.Equal(t, pkgErrors.InvalidInput, errorCode(t, err))
	})

	t.Run("no workers", func(t *testing.T) {
		broken := &core.Scenario{Name: "no-workers"}
		_, err := New(broken, worker, runner)
		require.Error(t, err)
		assert.Equal(t, pkgErrors.InvalidInput, errorCode(t, err))
	})
}
