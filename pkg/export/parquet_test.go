package export

import (
	"context"
	goerrors "errors"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/apache/arrow/go/v13/parquet/file"
	"github.com/apache/arrow/go/v13/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/smac-go/internal/testutil"
	"github.com/XiaoConstantine/smac-go/pkg/core"
	pkgErrors "github.com/XiaoConstantine/smac-go/pkg/errors"
	"github.com/XiaoConstantine/smac-go/pkg/runhistory"
)

func instanceHistory(t *testing.T) *runhistory.RunHistory {
	t.Helper()
	space := testutil.Space(t)
	rh := runhistory.New()
	c1 := testutil.Config(t, space, 0.1, 2)
	c2 := testutil.Config(t, space, 0.2, 4)

	require.NoError(t, rh.Add(
		runhistory.TrialInfo{Config: c1, Instance: "i1", Seed: 5},
		runhistory.TrialValue{Cost: []float64{1.5}, Time: 0.25, Status: core.StatusSuccess, StartTime: 10, EndTime: 10.25},
	))
	require.NoError(t, rh.Add(
		runhistory.TrialInfo{Config: c1, Instance: "i2", Seed: 5},
		runhistory.TrialValue{Cost: []float64{2.25}, Status: core.StatusTimeout},
	))
	require.NoError(t, rh.Add(
		runhistory.TrialInfo{Config: c2, Instance: "i1", Seed: 5},
		runhistory.TrialValue{Cost: []float64{4}, Status: core.StatusCrashed},
	))
	return rh
}

func TestNewTrialRecord(t *testing.T) {
	rh := instanceHistory(t)

	rec := NewTrialRecord(rh)
	defer rec.Release()

	assert.EqualValues(t, 3, rec.NumRows())
	assert.EqualValues(t, 9, rec.NumCols())

	configID := rec.Column(0).(*array.Int64)
	assert.Equal(t, int64(1), configID.Value(0))
	assert.Equal(t, int64(1), configID.Value(1))
	assert.Equal(t, int64(2), configID.Value(2))

	instance := rec.Column(1).(*array.String)
	assert.Equal(t, "i1", instance.Value(0))
	assert.Equal(t, "i2", instance.Value(1))
	assert.Zero(t, instance.NullN())

	budget := rec.Column(3).(*array.Float64)
	assert.Equal(t, 3, budget.NullN())

	cost := rec.Column(4).(*array.List)
	costValues := cost.ListValues().(*array.Float64)
	assert.Equal(t, 1.5, costValues.Value(0))
	assert.Equal(t, 2.25, costValues.Value(1))
	assert.Equal(t, 4.0, costValues.Value(2))

	status := rec.Column(6).(*array.String)
	assert.Equal(t, "SUCCESS", status.Value(0))
	assert.Equal(t, "TIMEOUT", status.Value(1))
	assert.Equal(t, "CRASHED", status.Value(2))
}

func TestWriteParquetRoundTrip(t *testing.T) {
	rh := instanceHistory(t)

	filename := filepath.Join(t.TempDir(), "trials.parquet")
	require.NoError(t, WriteParquet(rh, filename))

	reader, err := file.OpenParquetFile(filename, false)
	require.NoError(t, err)
	defer reader.Close()

	arrowReader, err := pqarrow.NewFileReader(reader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)

	table, err := arrowReader.ReadTable(context.Background())
	require.NoError(t, err)
	defer table.Release()

	assert.EqualValues(t, 3, table.NumRows())
	assert.EqualValues(t, 9, table.NumCols())

	configID := table.Column(0).Data().Chunk(0).(*array.Int64)
	assert.Equal(t, int64(1), configID.Value(0))
	assert.Equal(t, int64(2), configID.Value(2))

	status := table.Column(6).Data().Chunk(0).(*array.String)
	assert.Equal(t, "SUCCESS", status.Value(0))
	assert.Equal(t, "CRASHED", status.Value(2))
}

func TestWriteParquetBudgetMode(t *testing.T) {
	space := testutil.Space(t)
	rh := runhistory.New()
	c1 := testutil.Config(t, space, 0.1, 2)
	require.NoError(t, rh.Add(
		runhistory.TrialInfo{Config: c1, Budget: 1.25},
		runhistory.TrialValue{Cost: []float64{4}, Status: core.StatusSuccess},
	))
	require.NoError(t, rh.Add(
		runhistory.TrialInfo{Config: c1, Budget: 2.5},
		runhistory.TrialValue{Cost: []float64{3}, Status: core.StatusSuccess},
	))

	rec := NewTrialRecord(rh)
	defer rec.Release()

	instance := rec.Column(1).(*array.String)
	assert.Equal(t, 2, instance.NullN())

	budget := rec.Column(3).(*array.Float64)
	assert.Zero(t, budget.NullN())
	assert.Equal(t, 1.25, budget.Value(0))
	assert.Equal(t, 2.5, budget.Value(1))
}

func TestWriteParquetValidation(t *testing.T) {
	t.Run("nil run history", func(t *testing.T) {
		err := WriteParquet(nil, "trials.parquet")
		require.Error(t, err)
		assertCode(t, err, pkgErrors.InvalidInput)
	})

	t.Run("wrong suffix", func(t *testing.T) {
		err := WriteParquet(runhistory.New(), "trials.json")
		require.Error(t, err)
		assertCode(t, err, pkgErrors.InvalidInput)
	})
}

func assertCode(t *testing.T, err error, code pkgErrors.ErrorCode) {
	t.Helper()
	var e *pkgErrors.Error
	require.True(t, goerrors.As(err, &e))
	assert.Equal(t, code, e.Code())
}
