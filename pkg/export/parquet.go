// Package export converts run histories into Arrow records and writes them to
// Parquet files for analysis tooling downstream.
package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/apache/arrow/go/v13/parquet"
	"github.com/apache/arrow/go/v13/parquet/pqarrow"

	"github.com/XiaoConstantine/smac-go/pkg/errors"
	"github.com/XiaoConstantine/smac-go/pkg/runhistory"
)

// TrialSchema describes the exported trial table, one trial per row. Instance
// and budget are nullable and mirror the JSON format's null sentinels; cost
// holds one entry per objective.
func TrialSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "config_id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "instance", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "seed", Type: arrow.PrimitiveTypes.Int64},
		{Name: "budget", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "cost", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
		{Name: "time", Type: arrow.PrimitiveTypes.Float64},
		{Name: "status", Type: arrow.BinaryTypes.String},
		{Name: "starttime", Type: arrow.PrimitiveTypes.Float64},
		{Name: "endtime", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
}

// NewTrialRecord builds an Arrow record over all trials of the run history in
// insertion order. The caller releases the record.
func NewTrialRecord(rh *runhistory.RunHistory) arrow.Record {
	builder := array.NewRecordBuilder(memory.DefaultAllocator, TrialSchema())
	defer builder.Release()

	configID := builder.Field(0).(*array.Int64Builder)
	instance := builder.Field(1).(*array.StringBuilder)
	seed := builder.Field(2).(*array.Int64Builder)
	budget := builder.Field(3).(*array.Float64Builder)
	cost := builder.Field(4).(*array.ListBuilder)
	costValues := cost.ValueBuilder().(*array.Float64Builder)
	taTime := builder.Field(5).(*array.Float64Builder)
	status := builder.Field(6).(*array.StringBuilder)
	startTime := builder.Field(7).(*array.Float64Builder)
	endTime := builder.Field(8).(*array.Float64Builder)

	for _, k := range rh.Keys() {
		v, ok := rh.Get(k)
		if !ok {
			continue
		}

		configID.Append(int64(k.ConfigID))
		if k.Instance == "" {
			instance.AppendNull()
		} else {
			instance.Append(k.Instance)
		}
		seed.Append(k.Seed)
		if k.Budget == 0 {
			budget.AppendNull()
		} else {
			budget.Append(k.Budget)
		}
		cost.Append(true)
		costValues.AppendValues(v.Cost, nil)
		taTime.Append(v.Time)
		status.Append(v.Status.String())
		startTime.Append(v.StartTime)
		endTime.Append(v.EndTime)
	}

	return builder.NewRecord()
}

// WriteParquet writes the run history's trial table to a Parquet file.
func WriteParquet(rh *runhistory.RunHistory, filename string) error {
	if rh == nil {
		return errors.New(errors.InvalidInput, "run history must not be nil")
	}
	if !strings.HasSuffix(filename, ".parquet") {
		return errors.New(errors.InvalidInput, fmt.Sprintf("Filename %s must end with .parquet.", filename))
	}

	rec := NewTrialRecord(rh)
	defer rec.Release()

	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, errors.ExportFailed,
			fmt.Sprintf("failed to create parquet file %s", filename))
	}

	writer, err := pqarrow.NewFileWriter(TrialSchema(), f,
		parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return errors.Wrap(err, errors.ExportFailed, "failed to create parquet writer")
	}

	if err := writer.Write(rec); err != nil {
		writer.Close()
		return errors.Wrap(err, errors.ExportFailed,
			fmt.Sprintf("failed to write trials to %s", filename))
	}

	// Closing the writer finalizes the footer and closes the file.
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, errors.ExportFailed,
			fmt.Sprintf("failed to finalize parquet file %s", filename))
	}
	return nil
}
