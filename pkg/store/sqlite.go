// Package store persists run histories in a sqlite database. One archive file
// holds one run history; merging several runs is done in memory through
// RunHistory.Update before saving.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/XiaoConstantine/smac-go/pkg/core"
	"github.com/XiaoConstantine/smac-go/pkg/errors"
	"github.com/XiaoConstantine/smac-go/pkg/logging"
	"github.com/XiaoConstantine/smac-go/pkg/runhistory"
)

// Archive is a sqlite-backed trial archive. Configurations and trials live in
// separate tables joined by the configuration id the run history assigned.
type Archive struct {
	db     *sql.DB
	path   string
	logger *logging.Logger
}

// Open opens (or creates) the archive file at path.
func Open(path string) (*Archive, error) {
	if path == "" {
		return nil, errors.New(errors.InvalidInput, "archive path must not be empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.StoreFailed, "failed to open archive database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	a := &Archive{
		db:     db,
		path:   path,
		logger: logging.GetLogger(),
	}

	if err := a.initDB(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.StoreFailed, "failed to initialize archive schema")
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.StoreFailed, "failed to enable WAL mode")
	}

	pragmas := []string{
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			a.logger.Warn(context.Background(), "Failed to set pragma %s: %v", pragma, err)
		}
	}

	return a, nil
}

func (a *Archive) initDB() error {
	query := `
	CREATE TABLE IF NOT EXISTS configs (
		id INTEGER PRIMARY KEY,
		origin TEXT,
		values_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trials (
		config_id INTEGER NOT NULL,
		instance TEXT NOT NULL DEFAULT '',
		seed INTEGER NOT NULL,
		budget REAL NOT NULL DEFAULT 0,
		cost_json TEXT NOT NULL,
		time REAL NOT NULL,
		status INTEGER NOT NULL,
		starttime REAL NOT NULL,
		endtime REAL NOT NULL,
		additional_info_json TEXT,
		PRIMARY KEY (config_id, instance, seed, budget)
	);
	`

	_, err := a.db.Exec(query)
	return err
}

// Save writes the run history into the archive within a single transaction.
// Existing rows with the same trial key are replaced, so saving the same
// history twice is idempotent.
func (a *Archive) Save(ctx context.Context, rh *runhistory.RunHistory) error {
	if rh == nil {
		return errors.New(errors.InvalidInput, "run history must not be nil")
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.StoreFailed, "failed to begin archive transaction")
	}

	configStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO configs (id, origin, values_json) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, errors.StoreFailed, "failed to prepare configuration statement")
	}
	defer configStmt.Close()

	trialStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO trials
		 (config_id, instance, seed, budget, cost_json, time, status, starttime, endtime, additional_info_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, errors.StoreFailed, "failed to prepare trial statement")
	}
	defer trialStmt.Close()

	seen := make(map[int]bool)
	for _, k := range rh.Keys() {
		v, ok := rh.Get(k)
		if !ok {
			continue
		}

		if !seen[k.ConfigID] {
			config := rh.GetConfig(k.ConfigID)
			if config == nil {
				tx.Rollback()
				return errors.New(errors.StoreFailed,
					fmt.Sprintf("run history has no configuration for id %d", k.ConfigID))
			}
			valuesJSON, err := json.Marshal(config.Values())
			if err != nil {
				tx.Rollback()
				return errors.Wrap(err, errors.UnserializableValue,
					fmt.Sprintf("failed to encode configuration %d", k.ConfigID))
			}
			if _, err := configStmt.ExecContext(ctx, k.ConfigID, config.Origin(), string(valuesJSON)); err != nil {
				tx.Rollback()
				return errors.Wrap(err, errors.StoreFailed,
					fmt.Sprintf("failed to archive configuration %d", k.ConfigID))
			}
			seen[k.ConfigID] = true
		}

		costJSON, err := json.Marshal(v.Cost)
		if err != nil {
			tx.Rollback()
			return errors.Wrap(err, errors.UnserializableValue,
				fmt.Sprintf("failed to encode cost of trial %s", k))
		}

		var additionalJSON interface{}
		if v.AdditionalInfo != nil {
			b, err := json.Marshal(v.AdditionalInfo)
			if err != nil {
				tx.Rollback()
				return errors.Wrap(err, errors.UnserializableValue,
					fmt.Sprintf("failed to encode additional info of trial %s", k))
			}
			additionalJSON = string(b)
		}

		if _, err := trialStmt.ExecContext(ctx,
			k.ConfigID, k.Instance, k.Seed, k.Budget,
			string(costJSON), v.Time, int(v.Status), v.StartTime, v.EndTime, additionalJSON,
		); err != nil {
			tx.Rollback()
			return errors.Wrap(err, errors.StoreFailed,
				fmt.Sprintf("failed to archive trial %s", k))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.StoreFailed, "failed to commit archive transaction")
	}

	a.logger.Debug(ctx, "Archived %d trials across %d configurations to %s",
		rh.Len(), len(seen), a.path)
	return nil
}

// Load rebuilds a run history from the archive. Configurations are
// reconstructed through the given space, trials are replayed through Add in
// their stored order, so configuration ids are reassigned first-seen like in
// the original run.
func (a *Archive) Load(ctx context.Context, space *core.Space) (*runhistory.RunHistory, error) {
	if space == nil {
		return nil, errors.New(errors.InvalidInput, "space must not be nil")
	}

	configs, err := a.loadConfigs(ctx, space)
	if err != nil {
		return nil, err
	}

	rh := runhistory.New()
	if err := a.loadTrials(ctx, configs, rh); err != nil {
		return nil, err
	}

	a.logger.Debug(ctx, "Loaded %d trials from %s", rh.Len(), a.path)
	return rh, nil
}

func (a *Archive) loadConfigs(ctx context.Context, space *core.Space) (map[int]*core.Configuration, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, origin, values_json FROM configs ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.StoreFailed, "failed to read archived configurations")
	}
	defer rows.Close()

	configs := make(map[int]*core.Configuration)
	for rows.Next() {
		var (
			id         int
			origin     sql.NullString
			valuesJSON string
		)
		if err := rows.Scan(&id, &origin, &valuesJSON); err != nil {
			return nil, errors.Wrap(err, errors.StoreFailed, "failed to scan configuration row")
		}

		var values map[string]interface{}
		if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
			return nil, errors.Wrap(err, errors.StoreFailed,
				fmt.Sprintf("failed to decode values of configuration %d", id))
		}

		config, err := space.FromValues(values)
		if err != nil {
			return nil, err
		}
		if origin.Valid && origin.String != "" {
			config.SetOrigin(origin.String)
		}
		configs[id] = config
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.StoreFailed, "failed to iterate configuration rows")
	}
	return configs, nil
}

func (a *Archive) loadTrials(ctx context.Context, configs map[int]*core.Configuration, rh *runhistory.RunHistory) error {
	rows, err := a.db.QueryContext(ctx,
		`SELECT config_id, instance, seed, budget, cost_json, time, status, starttime, endtime, additional_info_json
		 FROM trials ORDER BY rowid`)
	if err != nil {
		return errors.Wrap(err, errors.StoreFailed, "failed to read archived trials")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			configID       int
			instance       string
			seed           int64
			budget         float64
			costJSON       string
			taTime         float64
			status         int
			startTime      float64
			endTime        float64
			additionalJSON sql.NullString
		)
		if err := rows.Scan(&configID, &instance, &seed, &budget,
			&costJSON, &taTime, &status, &startTime, &endTime, &additionalJSON); err != nil {
			return errors.Wrap(err, errors.StoreFailed, "failed to scan trial row")
		}

		config, ok := configs[configID]
		if !ok {
			return errors.New(errors.ResourceNotFound,
				fmt.Sprintf("trial references unknown configuration %d", configID))
		}

		var cost []float64
		if err := json.Unmarshal([]byte(costJSON), &cost); err != nil {
			return errors.Wrap(err, errors.StoreFailed,
				fmt.Sprintf("failed to decode cost of configuration %d", configID))
		}

		var additionalInfo map[string]interface{}
		if additionalJSON.Valid && additionalJSON.String != "" {
			if err := json.Unmarshal([]byte(additionalJSON.String), &additionalInfo); err != nil {
				return errors.Wrap(err, errors.StoreFailed,
					fmt.Sprintf("failed to decode additional info of configuration %d", configID))
			}
		}

		info := runhistory.TrialInfo{
			Config:   config,
			Instance: instance,
			Seed:     seed,
			Budget:   budget,
		}
		value := runhistory.TrialValue{
			Cost:           cost,
			Time:           taTime,
			Status:         core.StatusType(status),
			StartTime:      startTime,
			EndTime:        endTime,
			AdditionalInfo: additionalInfo,
		}
		if err := rh.Add(info, value); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.StoreFailed, "failed to iterate trial rows")
	}
	return nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	if err := a.db.Close(); err != nil {
		return errors.Wrap(err, errors.StoreFailed, "failed to close archive database")
	}
	return nil
}
