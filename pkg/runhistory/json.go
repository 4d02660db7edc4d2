package runhistory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/XiaoConstantine/smac-go/pkg/core"
	"github.com/XiaoConstantine/smac-go/pkg/errors"
	"github.com/XiaoConstantine/smac-go/pkg/logging"
)

// runHistoryFile is the on-disk layout. Data rows are positional: [config_id,
// instance, seed, budget, cost, time, status, starttime, endtime,
// additional_info]. Instance and budget are null when unused and cost is a
// scalar for single-objective runs, a list otherwise.
type runHistoryFile struct {
	Data          [][]interface{}                   `json:"data"`
	Configs       map[string]map[string]interface{} `json:"configs"`
	ConfigOrigins map[string]interface{}            `json:"config_origins"`
}

// SaveJSON writes the history to a JSON file. External trials are skipped
// unless saveExternal is set. Configurations are serialized only when one of
// their trials is written; origins are kept for every known configuration.
func (rh *RunHistory) SaveJSON(filename string, saveExternal bool) error {
	if !strings.HasSuffix(filename, ".json") {
		return errors.New(errors.InvalidInput, fmt.Sprintf("Filename %s must end with .json.", filename))
	}

	serialized := map[int]bool{}
	data := make([][]interface{}, 0, len(rh.order))
	for _, k := range rh.order {
		if !saveExternal && rh.external[k] != OriginInternal {
			continue
		}
		v := rh.data[k]
		data = append(data, []interface{}{
			k.ConfigID,
			nullableString(k.Instance),
			k.Seed,
			nullableFloat(k.Budget),
			costValue(v.Cost),
			v.Time,
			int(v.Status),
			v.StartTime,
			v.EndTime,
			v.AdditionalInfo,
		})
		serialized[k.ConfigID] = true
	}

	configs := map[string]map[string]interface{}{}
	for id := range serialized {
		configs[strconv.Itoa(id)] = rh.idsConfig[id].Values()
	}
	origins := map[string]interface{}{}
	for id, config := range rh.idsConfig {
		origins[strconv.Itoa(id)] = nullableString(config.Origin())
	}

	payload, err := json.MarshalIndent(runHistoryFile{
		Data:          data,
		Configs:       configs,
		ConfigOrigins: origins,
	}, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.UnserializableValue, "failed to encode run history")
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.StoreFailed, "failed to create run history directory")
		}
	}
	if err := os.WriteFile(filename, payload, 0o644); err != nil {
		return errors.Wrap(err, errors.StoreFailed, "failed to write run history")
	}
	return nil
}

// LoadJSON replaces the current content with the trials stored in a file. The
// space reconstructs the configurations. On any read or decode failure a
// warning is logged and the history is left empty.
func (rh *RunHistory) LoadJSON(filename string, space *core.Space) error {
	rh.Reset()
	ctx := context.Background()

	raw, err := os.ReadFile(filename)
	if err != nil {
		logging.GetLogger().Warn(ctx,
			"Encountered exception while reading run history from %s. Not adding any trials! (%v)", filename, err)
		return nil
	}
	var payload runHistoryFile
	if err := json.Unmarshal(raw, &payload); err != nil {
		logging.GetLogger().Warn(ctx,
			"Encountered exception while reading run history from %s. Not adding any trials! (%v)", filename, err)
		return nil
	}
	if err := rh.restore(payload, space); err != nil {
		rh.Reset()
		logging.GetLogger().Warn(ctx,
			"Encountered exception while reading run history from %s. Not adding any trials! (%v)", filename, err)
		return nil
	}
	return nil
}

// UpdateFromJSON merges the trials stored in a file into this history under
// the given origin.
func (rh *RunHistory) UpdateFromJSON(filename string, space *core.Space, origin DataOrigin) error {
	other := New()
	if err := other.LoadJSON(filename, space); err != nil {
		return err
	}
	return rh.Update(other, origin)
}

func (rh *RunHistory) restore(payload runHistoryFile, space *core.Space) error {
	maxID := 0
	for idStr, values := range payload.Configs {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return fmt.Errorf("invalid configuration id %q: %w", idStr, err)
		}
		config, err := space.FromValues(values)
		if err != nil {
			return err
		}
		if origin, ok := payload.ConfigOrigins[idStr].(string); ok {
			config.SetOrigin(origin)
		}
		rh.configIDs[config.Key()] = id
		rh.idsConfig[id] = config
		if id > maxID {
			maxID = id
		}
	}
	rh.nID = maxID

	for _, row := range payload.Data {
		if len(row) != 10 {
			return fmt.Errorf("run history entry has %d fields, want 10", len(row))
		}
		configID, err := intField(row[0])
		if err != nil {
			return err
		}
		config := rh.idsConfig[configID]
		if config == nil {
			return fmt.Errorf("run history entry references unknown configuration %d", configID)
		}
		instance, err := stringField(row[1])
		if err != nil {
			return err
		}
		seed, err := intField(row[2])
		if err != nil {
			return err
		}
		budget, err := floatField(row[3])
		if err != nil {
			return err
		}
		cost, err := costField(row[4])
		if err != nil {
			return err
		}
		trialTime, err := floatField(row[5])
		if err != nil {
			return err
		}
		status, err := intField(row[6])
		if err != nil {
			return err
		}
		start, err := floatField(row[7])
		if err != nil {
			return err
		}
		end, err := floatField(row[8])
		if err != nil {
			return err
		}
		extra, err := infoField(row[9])
		if err != nil {
			return err
		}

		info := TrialInfo{Config: config, Instance: instance, Seed: int64(seed), Budget: budget}
		value := TrialValue{
			Cost:           cost,
			Time:           trialTime,
			Status:         core.StatusType(status),
			StartTime:      start,
			EndTime:        end,
			AdditionalInfo: extra,
		}
		if err := rh.Add(info, value); err != nil {
			return err
		}
	}
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(f float64) interface{} {
	if f == 0 {
		return nil
	}
	return f
}

func costValue(cost []float64) interface{} {
	if len(cost) == 1 {
		return cost[0]
	}
	return cost
}

func intField(v interface{}) (int, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	return int(f), nil
}

func floatField(v interface{}) (float64, error) {
	if v == nil {
		return 0, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	return f, nil
}

func stringField(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func costField(v interface{}) ([]float64, error) {
	switch c := v.(type) {
	case float64:
		return []float64{c}, nil
	case []interface{}:
		cost := make([]float64, len(c))
		for i, entry := range c {
			f, ok := entry.(float64)
			if !ok {
				return nil, fmt.Errorf("expected number in cost, got %T", entry)
			}
			cost[i] = f
		}
		return cost, nil
	default:
		return nil, fmt.Errorf("expected number or list as cost, got %T", v)
	}
}

func infoField(v interface{}) (map[string]interface{}, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected object as additional info, got %T", v)
	}
	return m, nil
}
